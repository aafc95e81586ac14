package testkit_test

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datajunction/djqs/app/models"
	"github.com/datajunction/djqs/pkg/testkit"
)

var echo = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.Copy(w, r.Body)
})

func TestRunFile(t *testing.T) {
	testkit.RunFile(t, echo, "testdata/echo.json")
}

func TestLoadScenarioArray(t *testing.T) {
	scenarios, err := testkit.LoadScenarioArray("testdata/echo.json")
	require.NoError(t, err)
	require.Len(t, scenarios, 2)

	assert.Equal(t, "POST", scenarios[0].RequestMethod)
	body, err := scenarios[1].ExpectedPayload()
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"sqlite_engine","version":"1.0"}`, string(body))
}

func TestLoadScenarioValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"missing url","expectedCode":200}`), 0o644))

	_, err := testkit.LoadScenario(path)
	assert.ErrorContains(t, err, "requestUrl is required")
}

func TestDBIsMigrated(t *testing.T) {
	db := testkit.DB(t)

	for _, table := range []string{"engines", "catalogs", "catalog_engines", "queries", "djqs_failed_jobs"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	require.NoError(t, db.Create(&models.Engine{Name: "sqlite", Version: "1.0", URI: "sqlite://"}).Error)
}
