package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/datajunction/djqs/app/engine"
	"github.com/datajunction/djqs/app/jobs"
	"github.com/datajunction/djqs/app/models"
	"github.com/datajunction/djqs/app/repositories"
	"github.com/datajunction/djqs/config"
	"github.com/datajunction/djqs/pkg/cache"
	"github.com/datajunction/djqs/pkg/event"
	"github.com/datajunction/djqs/pkg/logger"
	"github.com/datajunction/djqs/pkg/metrics"
	"github.com/datajunction/djqs/pkg/queue"
)

// EventQueryUpdated is fired with a models.QueryWithResults payload every
// time a query changes state or progress.
const EventQueryUpdated = "query.updated"

// Executor runs SQL on an engine URI.
type Executor interface {
	Run(ctx context.Context, uri, sql string, progress engine.ProgressFunc) (models.Results, error)
}

// Dispatcher schedules background jobs.
type Dispatcher interface {
	Dispatch(ctx context.Context, job queue.Job) error
}

// QueryOption customises a QueryService.
type QueryOption func(*QueryService)

// WithClock replaces time.Now, used to freeze timestamps in tests.
func WithClock(now func() time.Time) QueryOption {
	return func(s *QueryService) { s.now = now }
}

// WithEvents publishes query updates on bus instead of event.Default().
func WithEvents(bus *event.Bus) QueryOption {
	return func(s *QueryService) { s.events = bus }
}

// WithResultsKey overrides the results key prefix and TTL taken from config.
func WithResultsKey(prefix string, ttl time.Duration) QueryOption {
	return func(s *QueryService) {
		s.prefix = prefix
		s.ttl = ttl
	}
}

type QueryService struct {
	queries  *repositories.QueryRepository
	catalogs *CatalogService
	engines  *EngineService
	executor Executor
	results  cache.Store
	queue    Dispatcher
	events   *event.Bus
	prefix   string
	ttl      time.Duration
	now      func() time.Time
}

func NewQueryService(db *gorm.DB, executor Executor, results cache.Store, dispatcher Dispatcher, opts ...QueryOption) *QueryService {
	s := &QueryService{
		queries:  repositories.NewQueryRepository(db),
		catalogs: NewCatalogService(db),
		engines:  NewEngineService(db),
		executor: executor,
		results:  results,
		queue:    dispatcher,
		events:   event.Default(),
		prefix:   config.ResultsPrefix(),
		ttl:      config.ResultsTTL(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit stores a new query and either schedules it (async) or runs it
// before returning. created reports whether the query was only scheduled.
func (s *QueryService) Submit(ctx context.Context, in models.QueryCreate) (out models.QueryWithResults, created bool, err error) {
	catalog, err := s.catalogs.Get(ctx, in.CatalogName)
	if err != nil {
		return out, false, err
	}
	eng, err := s.engines.Get(ctx, in.EngineName, in.EngineVersion)
	if err != nil {
		return out, false, err
	}
	if !catalog.HasEngine(eng.Name, eng.Version) {
		return out, false, fmt.Errorf("%w: %s %s in catalog %s", ErrEngineNotFound, eng.Name, eng.Version, catalog.Name)
	}

	query := models.Query{
		ID:             uuid.New(),
		CatalogName:    catalog.Name,
		EngineName:     eng.Name,
		EngineVersion:  eng.Version,
		SubmittedQuery: in.SubmittedQuery,
		State:          models.QueryStateAccepted,
		Async:          in.Async,
	}
	if err := s.queries.Create(ctx, &query); err != nil {
		return out, false, fmt.Errorf("services: create query: %w", err)
	}
	s.publish(query, nil)

	log := logger.WithCtx(ctx).With("query_id", query.ID.String())
	if in.Async {
		metrics.QueriesSubmitted.WithLabelValues("async").Inc()
		if err := s.queue.Dispatch(ctx, jobs.NewProcessQuery(query.ID)); err != nil {
			return out, false, fmt.Errorf("services: schedule query: %w", err)
		}
		log.Info("query accepted")
		return query.WithResults(nil), true, nil
	}

	metrics.QueriesSubmitted.WithLabelValues("sync").Inc()
	results, err := s.run(ctx, &query, eng.URI)
	if err != nil {
		return out, false, err
	}
	log.Info("query processed", "state", query.State)
	return query.WithResults(results), false, nil
}

// ProcessByID runs a previously accepted query. Queries already in a
// terminal state are left untouched.
func (s *QueryService) ProcessByID(ctx context.Context, id uuid.UUID) error {
	query, err := s.queries.Find(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrQueryNotFound, id)
	}
	if err != nil {
		return err
	}
	_, err = s.Process(ctx, &query)
	return err
}

// Process executes query on its engine and persists the outcome. Execution
// errors do not fail Process: they leave the query FAILED with the driver
// message in Errors.
func (s *QueryService) Process(ctx context.Context, query *models.Query) (models.Results, error) {
	if query.State.Terminal() {
		return s.load(ctx, query.ID), nil
	}
	eng, err := s.engines.Get(ctx, query.EngineName, query.EngineVersion)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, query, eng.URI)
}

func (s *QueryService) run(ctx context.Context, query *models.Query, uri string) (models.Results, error) {
	executed := query.SubmittedQuery
	query.ExecutedQuery = &executed

	scheduled := s.now().UTC()
	query.Scheduled = &scheduled
	query.State = models.QueryStateScheduled
	if err := s.save(ctx, query, nil); err != nil {
		return nil, err
	}

	started := s.now().UTC()
	query.Started = &started
	query.State = models.QueryStateRunning
	if err := s.save(ctx, query, nil); err != nil {
		return nil, err
	}

	begin := time.Now()
	results, runErr := s.executor.Run(ctx, uri, executed, func(done, total int) {
		query.Progress = float64(done) / float64(total)
		if err := s.save(ctx, query, nil); err != nil {
			logger.WithCtx(ctx).Warn("query progress not saved", "query_id", query.ID.String(), "error", err)
		}
	})

	// The outcome is recorded even when ctx was cancelled mid-run, so the
	// query never stays RUNNING.
	ctx = context.WithoutCancel(ctx)

	finished := s.now().UTC()
	query.Finished = &finished
	if runErr != nil {
		query.State = models.QueryStateFailed
		query.Progress = 0
		query.Errors = []string{runErr.Error()}
		results = models.Results{}
	} else {
		query.State = models.QueryStateFinished
		query.Progress = 1
		query.Errors = []string{}
		if results == nil {
			results = models.Results{}
		}
	}

	s.store(ctx, query.ID, results)
	if err := s.save(ctx, query, results); err != nil {
		return nil, err
	}
	metrics.RecordQueryCompleted(string(query.State), begin)
	return results, nil
}

// Get returns the query with its stored results. Missing or unreadable
// results render as an empty list.
func (s *QueryService) Get(ctx context.Context, id uuid.UUID) (models.QueryWithResults, error) {
	query, err := s.queries.Find(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.QueryWithResults{}, fmt.Errorf("%w: %s", ErrQueryNotFound, id)
	}
	if err != nil {
		return models.QueryWithResults{}, err
	}
	return query.WithResults(s.load(ctx, id)), nil
}

func (s *QueryService) save(ctx context.Context, query *models.Query, results models.Results) error {
	if err := s.queries.Save(ctx, query); err != nil {
		return fmt.Errorf("services: save query: %w", err)
	}
	s.publish(*query, results)
	return nil
}

func (s *QueryService) publish(query models.Query, results models.Results) {
	if s.events != nil {
		s.events.Fire(EventQueryUpdated, query.WithResults(results))
	}
}

func (s *QueryService) key(id uuid.UUID) string {
	return s.prefix + id.String()
}

func (s *QueryService) store(ctx context.Context, id uuid.UUID, results models.Results) {
	payload, err := json.Marshal(results)
	if err == nil {
		err = s.results.Set(ctx, s.key(id), payload, s.ttl)
	}
	if err != nil {
		logger.WithCtx(ctx).Error("query results not stored", "query_id", id.String(), "error", err)
	}
}

func (s *QueryService) load(ctx context.Context, id uuid.UUID) models.Results {
	payload, ok, err := s.results.Get(ctx, s.key(id))
	if err != nil {
		logger.WithCtx(ctx).Warn("query results unavailable", "query_id", id.String(), "error", err)
		return models.Results{}
	}
	if !ok {
		return models.Results{}
	}

	var results models.Results
	if err := json.Unmarshal(payload, &results); err != nil {
		logger.WithCtx(ctx).Warn("query results unreadable", "query_id", id.String(), "error", err)
		return models.Results{}
	}
	return results
}
