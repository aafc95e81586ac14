package kernel_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datajunction/djqs/app/engine"
	"github.com/datajunction/djqs/app/jobs"
	"github.com/datajunction/djqs/app/models"
	"github.com/datajunction/djqs/app/routes"
	"github.com/datajunction/djqs/app/services"
	"github.com/datajunction/djqs/internal/kernel"
	"github.com/datajunction/djqs/pkg/cache"
	"github.com/datajunction/djqs/pkg/database"
	"github.com/datajunction/djqs/pkg/event"
	"github.com/datajunction/djqs/pkg/queue"
	"github.com/datajunction/djqs/pkg/testkit"
)

type fixture struct {
	kernel *kernel.HTTPKernel
	queue  *queue.Manager
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testkit.DB(t)

	runner := engine.NewRunner(database.DefaultOptions())
	t.Cleanup(func() { _ = runner.Close() })

	m := queue.NewManager(queue.NewMemoryDriver())
	m.SetBackoff(time.Millisecond)
	bus := event.NewBus()
	queries := services.NewQueryService(db, runner, cache.NewMemoryStore(), m,
		services.WithEvents(bus),
		services.WithResultsKey("test:", time.Minute),
	)
	jobs.Register(m, queries)

	return fixture{
		kernel: kernel.New(routes.Deps{DB: db, Queries: queries, Events: bus}),
		queue:  m,
	}
}

func TestAPIScenarios(t *testing.T) {
	f := newFixture(t)
	testkit.RunFile(t, f.kernel.Handler(), "testdata/api.json")
}

func TestRoutes(t *testing.T) {
	k := kernel.New(routes.Deps{})

	names := map[string]string{}
	for _, ri := range k.Routes() {
		names[ri.Name] = ri.Method + " " + ri.Path
	}
	assert.Equal(t, "POST /queries/", names["queries.submit"])
	assert.Equal(t, "GET /queries/{id}", names["queries.show"])
	assert.Equal(t, "GET /queries/{id}/events", names["queries.events"])
	assert.Equal(t, "GET /queries/{id}/ws", names["queries.ws"])
	assert.Equal(t, "POST /catalogs/{name}/engines/", names["catalogs.engines.add"])
	assert.Equal(t, "GET /engines/{name}/{version}", names["engines.show"])
	assert.Equal(t, "GET /metrics", names["metrics"])
	assert.Equal(t, "GET /health", names["health"])
}

func TestMiddlewareStack(t *testing.T) {
	f := newFixture(t)
	h := f.kernel.Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-1")
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.JSONEq(t, `{"detail":"Method Not Allowed"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	h := f.kernel.Handler()

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "djqs_http_requests_total")
}

func TestAsyncQueryThroughQueue(t *testing.T) {
	f := newFixture(t)
	h := f.kernel.Handler()

	post := func(target, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}
	require.Equal(t, http.StatusCreated, post("/engines/", `{"name":"sqlite","version":"3","uri":"sqlite://"}`).Code)
	require.Equal(t, http.StatusCreated, post("/catalogs/", `{"name":"default","engines":[{"name":"sqlite","version":"3"}]}`).Code)

	w := post("/queries/", `{"catalog_name":"default","engine_name":"sqlite","engine_version":"3","submitted_query":"SELECT 1 AS a; SELECT 2 AS b","async_":true}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var accepted models.QueryWithResults
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	assert.Equal(t, models.QueryStateAccepted, accepted.State)

	ctx, cancel := context.WithCancel(context.Background())
	done := f.queue.StartWorkers(ctx, 1)
	defer func() {
		cancel()
		<-done
	}()

	var got models.QueryWithResults
	require.Eventually(t, func() bool {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/queries/"+accepted.ID, nil))
		if w.Code != http.StatusOK {
			return false
		}
		got = models.QueryWithResults{}
		if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
			return false
		}
		return got.State.Terminal()
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, models.QueryStateFinished, got.State)
	assert.Equal(t, 1.0, got.Progress)
	require.Len(t, got.Results, 2)
	assert.Equal(t, "SELECT 2 AS b", got.Results[1].SQL)
	assert.Empty(t, got.Errors)
}
