package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/datajunction/djqs/app/engine"
	"github.com/datajunction/djqs/app/jobs"
	"github.com/datajunction/djqs/app/models"
	"github.com/datajunction/djqs/app/services"
	"github.com/datajunction/djqs/config"
	"github.com/datajunction/djqs/pkg/cache"
	"github.com/datajunction/djqs/pkg/database"
	"github.com/datajunction/djqs/pkg/event"
	"github.com/datajunction/djqs/pkg/queue"
	"github.com/datajunction/djqs/pkg/testkit"
)

var frozen = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeDispatcher struct {
	mu   sync.Mutex
	jobs []queue.Job
	err  error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, job queue.Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

type fixture struct {
	db       *gorm.DB
	store    *cache.MemoryStore
	dispatch *fakeDispatcher
	bus      *event.Bus
	queries  *services.QueryService
	catalogs *services.CatalogService
	engines  *services.EngineService
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		db:       testkit.DB(t),
		store:    cache.NewMemoryStore(),
		dispatch: &fakeDispatcher{},
		bus:      event.NewBus(),
	}
	runner := engine.NewRunner(database.DefaultOptions())
	t.Cleanup(func() { _ = runner.Close() })

	f.engines = services.NewEngineService(f.db)
	f.catalogs = services.NewCatalogService(f.db)
	f.queries = services.NewQueryService(f.db, runner, f.store, f.dispatch,
		services.WithClock(func() time.Time { return frozen }),
		services.WithEvents(f.bus),
		services.WithResultsKey("", 0),
	)

	_, err := f.engines.Create(ctx, models.EngineCreate{Name: "test_engine", Version: "1.0", URI: "sqlite://"})
	require.NoError(t, err)
	_, err = f.catalogs.Create(ctx, models.CatalogCreate{
		Name:    "test_catalog",
		Engines: []models.EngineRef{{Name: "test_engine", Version: "1.0"}},
	})
	require.NoError(t, err)
	return f
}

func submit(sql string, async bool) models.QueryCreate {
	return models.QueryCreate{
		CatalogName:    "test_catalog",
		EngineName:     "test_engine",
		EngineVersion:  "1.0",
		SubmittedQuery: sql,
		Async:          async,
	}
}

func TestSubmitSync(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	var states []models.QueryState
	f.bus.Listen(services.EventQueryUpdated, func(payload any) {
		states = append(states, payload.(models.QueryWithResults).State)
	})

	out, created, err := f.queries.Submit(ctx, submit("SELECT 1 AS col; SELECT 2 AS another_col", false))
	require.NoError(t, err)
	assert.False(t, created)

	assert.Equal(t, models.QueryStateFinished, out.State)
	assert.Equal(t, 1.0, out.Progress)
	require.NotNil(t, out.ExecutedQuery)
	assert.Equal(t, "SELECT 1 AS col; SELECT 2 AS another_col", *out.ExecutedQuery)
	for _, ts := range []*models.NaiveTime{out.Scheduled, out.Started, out.Finished} {
		require.NotNil(t, ts)
		assert.True(t, frozen.Equal(ts.Time))
	}
	require.Len(t, out.Results, 2)
	assert.Equal(t, "SELECT 2 AS another_col", out.Results[1].SQL)
	assert.Equal(t, []string{}, out.Errors)

	assert.Equal(t, []models.QueryState{
		models.QueryStateAccepted,
		models.QueryStateScheduled,
		models.QueryStateRunning,
		models.QueryStateRunning, // 1/2
		models.QueryStateRunning, // 2/2
		models.QueryStateFinished,
	}, states)

	cached, ok, err := f.store.Get(ctx, out.ID)
	require.NoError(t, err)
	require.True(t, ok)
	var stored models.Results
	require.NoError(t, json.Unmarshal(cached, &stored))
	assert.Len(t, stored, 2)
}

func TestSubmitAsyncDispatchesJob(t *testing.T) {
	f := setup(t)

	out, created, err := f.queries.Submit(context.Background(), submit("SELECT 1 AS col", true))
	require.NoError(t, err)
	assert.True(t, created)

	assert.Equal(t, models.QueryStateAccepted, out.State)
	assert.Nil(t, out.ExecutedQuery)
	assert.Nil(t, out.Scheduled)
	assert.Equal(t, 0.0, out.Progress)
	assert.Equal(t, models.Results{}, out.Results)

	require.Len(t, f.dispatch.jobs, 1)
	job, ok := f.dispatch.jobs[0].(*jobs.ProcessQuery)
	require.True(t, ok)
	assert.Equal(t, out.ID, job.QueryID.String())
}

func TestSubmitAsyncDispatchFailure(t *testing.T) {
	f := setup(t)
	f.dispatch.err = errors.New("queue down")

	_, _, err := f.queries.Submit(context.Background(), submit("SELECT 1", true))
	assert.ErrorContains(t, err, "queue down")
}

func TestProcessByID(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	out, _, err := f.queries.Submit(ctx, submit("SELECT 1 AS col", true))
	require.NoError(t, err)
	id := uuid.MustParse(out.ID)

	require.NoError(t, f.queries.ProcessByID(ctx, id))

	got, err := f.queries.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.QueryStateFinished, got.State)
	require.Len(t, got.Results, 1)
	assert.Equal(t, []models.ColumnMetadata{{Name: "col", Type: models.ColumnTypeStr}}, got.Results[0].Columns)

	// terminal queries are not run again
	require.NoError(t, f.queries.ProcessByID(ctx, id))

	assert.ErrorIs(t, f.queries.ProcessByID(ctx, uuid.New()), services.ErrQueryNotFound)
}

func TestSubmitFailure(t *testing.T) {
	f := setup(t)

	out, _, err := f.queries.Submit(context.Background(), submit("SELECT FROM", false))
	require.NoError(t, err)

	assert.Equal(t, models.QueryStateFailed, out.State)
	assert.Equal(t, 0.0, out.Progress)
	assert.Equal(t, models.Results{}, out.Results)
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0], `near "FROM": syntax error`)

	got, err := f.queries.Get(context.Background(), uuid.MustParse(out.ID))
	require.NoError(t, err)
	assert.Equal(t, out.Errors, got.Errors)
}

func TestSubmitUnknownTargets(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	in := submit("SELECT 1", false)
	in.CatalogName = "nope"
	_, _, err := f.queries.Submit(ctx, in)
	assert.ErrorIs(t, err, services.ErrCatalogNotFound)

	in = submit("SELECT 1", false)
	in.EngineVersion = "2.0"
	_, _, err = f.queries.Submit(ctx, in)
	assert.ErrorIs(t, err, services.ErrEngineNotFound)

	// engine exists but is not part of the catalog
	_, err = f.engines.Create(ctx, models.EngineCreate{Name: "other", Version: "1.0", URI: "sqlite://"})
	require.NoError(t, err)
	in = submit("SELECT 1", false)
	in.EngineName = "other"
	_, _, err = f.queries.Submit(ctx, in)
	assert.ErrorIs(t, err, services.ErrEngineNotFound)
}

func TestGetWithoutResults(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	out, _, err := f.queries.Submit(ctx, submit("SELECT 1", false))
	require.NoError(t, err)
	require.NoError(t, f.store.Delete(ctx, out.ID))

	got, err := f.queries.Get(ctx, uuid.MustParse(out.ID))
	require.NoError(t, err)
	assert.Equal(t, models.Results{}, got.Results)

	_, err = f.queries.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, services.ErrQueryNotFound)
}

func TestCatalogService(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.catalogs.Create(ctx, models.CatalogCreate{Name: "test_catalog"})
	assert.ErrorIs(t, err, services.ErrConflict)

	_, err = f.catalogs.Create(ctx, models.CatalogCreate{
		Name:    "broken",
		Engines: []models.EngineRef{{Name: "druid", Version: "1"}},
	})
	assert.ErrorIs(t, err, services.ErrEngineNotFound)

	_, err = f.engines.Create(ctx, models.EngineCreate{Name: "postgres", Version: "15", URI: "postgresql://localhost/roads"})
	require.NoError(t, err)

	refs := []models.EngineRef{{Name: "postgres", Version: "15"}, {Name: "test_engine", Version: "1.0"}}
	catalog, err := f.catalogs.AddEngines(ctx, "test_catalog", refs)
	require.NoError(t, err)
	assert.Len(t, catalog.Engines, 2)

	// adding the same engines again changes nothing
	catalog, err = f.catalogs.AddEngines(ctx, "test_catalog", refs)
	require.NoError(t, err)
	assert.Len(t, catalog.Engines, 2)

	_, err = f.catalogs.AddEngines(ctx, "missing", refs)
	assert.ErrorIs(t, err, services.ErrCatalogNotFound)

	list, err := f.catalogs.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "postgres", list[0].Engines[0].Name)
}

func TestEngineService(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.engines.Create(ctx, models.EngineCreate{Name: "test_engine", Version: "1.0", URI: "sqlite://"})
	assert.ErrorIs(t, err, services.ErrConflict)

	_, err = f.engines.Get(ctx, "test_engine", "9.9")
	assert.ErrorIs(t, err, services.ErrEngineNotFound)

	engine, err := f.engines.Get(ctx, "test_engine", "1.0")
	require.NoError(t, err)
	assert.Equal(t, "sqlite://", engine.URI)
}

// cancellingExecutor cancels the caller's context mid-run, the way a client
// disconnect or worker shutdown does.
type cancellingExecutor struct{ cancel context.CancelFunc }

func (e cancellingExecutor) Run(ctx context.Context, _, _ string, _ engine.ProgressFunc) (models.Results, error) {
	e.cancel()
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSubmitCancelledMidRunEndsFailed(t *testing.T) {
	f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := services.NewQueryService(f.db, cancellingExecutor{cancel: cancel}, f.store, f.dispatch,
		services.WithClock(func() time.Time { return frozen }),
		services.WithEvents(f.bus),
		services.WithResultsKey("", 0),
	)

	out, created, err := svc.Submit(ctx, submit("SELECT 1", false))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, models.QueryStateFailed, out.State)
	assert.Equal(t, []string{context.Canceled.Error()}, out.Errors)
	require.NotNil(t, out.Finished)

	persisted, err := f.queries.Get(context.Background(), uuid.MustParse(out.ID))
	require.NoError(t, err)
	assert.Equal(t, models.QueryStateFailed, persisted.State)
	assert.Equal(t, 0.0, persisted.Progress)
	require.NotNil(t, persisted.Finished)
	assert.True(t, frozen.Equal(persisted.Finished.Time))

	stored, ok, err := f.store.Get(context.Background(), out.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `[]`, string(stored))
}

// insertFirst makes the next gorm create on table insert a row with the same
// unique key first, as a concurrent request would between the existence
// check and the insert.
func insertFirst(t *testing.T, db *gorm.DB, table, stmt string, args ...any) {
	t.Helper()
	var fired atomic.Bool
	err := db.Callback().Create().Before("gorm:create").Register("test:concurrent_"+table, func(tx *gorm.DB) {
		if tx.Statement.Table != table || !fired.CompareAndSwap(false, true) {
			return
		}
		if _, err := tx.Statement.ConnPool.ExecContext(tx.Statement.Context, stmt, args...); err != nil {
			_ = tx.AddError(err)
		}
	})
	require.NoError(t, err)
}

func TestCreateLosingRaceIsConflict(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	insertFirst(t, f.db, "engines", "INSERT INTO engines (name, version, uri) VALUES (?, ?, ?)", "postgres", "15", "sqlite://")
	_, err := f.engines.Create(ctx, models.EngineCreate{Name: "postgres", Version: "15", URI: "postgresql://localhost/roads"})
	assert.ErrorIs(t, err, services.ErrConflict)

	insertFirst(t, f.db, "catalogs", "INSERT INTO catalogs (name) VALUES (?)", "warehouse")
	_, err = f.catalogs.Create(ctx, models.CatalogCreate{Name: "warehouse"})
	assert.ErrorIs(t, err, services.ErrConflict)
}

func TestSubmitStoresResultsUnderQueryIDByDefault(t *testing.T) {
	t.Setenv("DOTENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.json"))
	config.Reset()
	t.Cleanup(config.Reset)

	f := setup(t)
	runner := engine.NewRunner(database.DefaultOptions())
	t.Cleanup(func() { _ = runner.Close() })
	svc := services.NewQueryService(f.db, runner, f.store, f.dispatch)

	out, _, err := svc.Submit(context.Background(), submit("SELECT 1 AS col", false))
	require.NoError(t, err)

	stored, ok, err := f.store.Get(context.Background(), out.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(stored), "SELECT 1 AS col")
}
