package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datajunction/djqs/app/models"
	"github.com/datajunction/djqs/config"
	_ "github.com/datajunction/djqs/database/migrations"
	"github.com/datajunction/djqs/internal/server"
	"github.com/datajunction/djqs/pkg/migration"
)

func TestBootWithStorageResults(t *testing.T) {
	dir := t.TempDir()
	config.Reset()
	t.Cleanup(config.Reset)
	config.Set("INDEX", "sqlite:///"+filepath.Join(dir, "index.db"))
	config.Set("RESULTS_BACKEND", "storage")
	config.Set("STORAGE_DISK", "local")
	config.Set("STORAGE_LOCAL_ROOT", filepath.Join(dir, "results"))

	a, err := server.Boot(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.NoError(t, migration.New(a.DB).WithOutput(io.Discard).Run())

	h := a.Kernel().Handler()
	do := func(method, target, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	require.Equal(t, http.StatusCreated, do(http.MethodPost, "/engines/", `{"name":"sqlite","version":"3","uri":"sqlite://"}`).Code)
	require.Equal(t, http.StatusCreated, do(http.MethodPost, "/catalogs/", `{"name":"default","engines":[{"name":"sqlite","version":"3"}]}`).Code)

	w := do(http.MethodPost, "/queries/", `{"catalog_name":"default","engine_name":"sqlite","engine_version":"3","submitted_query":"SELECT 'a' AS letter"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var submitted models.QueryWithResults
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &submitted))
	assert.Equal(t, models.QueryStateFinished, submitted.State)
	assert.FileExists(t, filepath.Join(dir, "results", submitted.ID+".json"))

	w = do(http.MethodGet, "/queries/"+submitted.ID, "")
	require.Equal(t, http.StatusOK, w.Code)

	var read models.QueryWithResults
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &read))
	require.Len(t, read.Results, 1)
	assert.Equal(t, [][]any{{"a"}}, read.Results[0].Rows)
	assert.Equal(t, "letter", read.Results[0].Columns[0].Name)
}

func TestBootFailsOnBadIndex(t *testing.T) {
	config.Reset()
	t.Cleanup(config.Reset)
	config.Set("INDEX", "druid://localhost:8082")

	_, err := server.Boot(context.Background())
	assert.ErrorContains(t, err, "unsupported database scheme")
}
