// Package queue provides the background job system that runs asynchronous
// queries.
//
// Usage:
//
//	// Define a job
//	type ProcessQuery struct { QueryID uuid.UUID `json:"query_id"` }
//	func (j *ProcessQuery) Handle(ctx context.Context) error { ... }
//
//	// Register a factory once at boot, then dispatch
//	queue.Register(func() queue.Job { return &ProcessQuery{} })
//	queue.Dispatch(ctx, &ProcessQuery{QueryID: id})
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/datajunction/djqs/pkg/logger"
	"github.com/datajunction/djqs/pkg/metrics"
)

// Job is the interface every queued job must satisfy.
type Job interface {
	// Handle executes the job. Return a non-nil error to signal failure.
	Handle(ctx context.Context) error
}

// FailedJob holds information about a job that exhausted its retries.
type FailedJob struct {
	Type     string
	Job      Job
	Err      error
	FailedAt time.Time
	Attempts int
}

// Driver is the queue storage backend.
type Driver interface {
	Push(ctx context.Context, payload []byte) error
	// Pop blocks until a payload is available or ctx ends. A nil payload
	// with a nil error means nothing arrived before the driver's timeout.
	Pop(ctx context.Context) ([]byte, error)
}

// ErrUnknownJob is returned when a payload names an unregistered job type.
var ErrUnknownJob = errors.New("queue: unknown job type")

// TypeName is the registry name of job.
func TypeName(job Job) string {
	return fmt.Sprintf("%T", job)
}

// ------------------- Manager -------------------

// Manager is the central queue hub.
type Manager struct {
	mu       sync.RWMutex
	driver   Driver
	registry map[string]func() Job // type name → constructor
	failed   []FailedJob
	maxRetry int
	backoff  time.Duration
	db       *gorm.DB
}

// NewManager returns a Manager on driver with one attempt per job.
func NewManager(driver Driver) *Manager {
	return &Manager{
		driver:   driver,
		registry: map[string]func() Job{},
		maxRetry: 1,
		backoff:  time.Second,
	}
}

// SetDriver swaps the underlying queue driver (e.g. Redis).
func (m *Manager) SetDriver(d Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.driver = d
}

// SetMaxRetry sets how many attempts a job gets before it is recorded as
// failed.
func (m *Manager) SetMaxRetry(n int) {
	if n < 1 {
		n = 1
	}
	m.mu.Lock()
	m.maxRetry = n
	m.mu.Unlock()
}

// SetBackoff sets the base delay between attempts; attempt n waits n*d.
func (m *Manager) SetBackoff(d time.Duration) {
	m.mu.Lock()
	m.backoff = d
	m.mu.Unlock()
}

// Register makes a job type available for deserialization. The type name is
// taken from the job the factory builds.
func (m *Manager) Register(factory func() Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry[TypeName(factory())] = factory
}

// ------------------- Dispatch -------------------

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Dispatch pushes job onto the queue.
func (m *Manager) Dispatch(ctx context.Context, job Job) error {
	typeName := TypeName(job)

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: marshal job %s: %w", typeName, err)
	}

	env, err := json.Marshal(envelope{Type: typeName, Payload: payload})
	if err != nil {
		return fmt.Errorf("queue: marshal envelope: %w", err)
	}

	m.mu.RLock()
	d := m.driver
	m.mu.RUnlock()

	if err := d.Push(ctx, env); err != nil {
		return err
	}
	logger.WithCtx(ctx).Debug("queue: job dispatched", "type", typeName)
	return nil
}

// ------------------- Worker -------------------

// StartWorkers launches n concurrent workers that process jobs until ctx is
// cancelled. The returned channel closes once every worker has exited.
func (m *Manager) StartWorkers(ctx context.Context, n int) <-chan struct{} {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			m.work(ctx)
		}()
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	logger.Info("queue: workers started", "count", n)
	return done
}

func (m *Manager) work(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		m.mu.RLock()
		d := m.driver
		m.mu.RUnlock()

		raw, err := d.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("queue: pop failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		if raw == nil {
			continue
		}

		if err := m.Process(ctx, raw); err != nil {
			logger.Error("queue: job dropped", "error", err)
		}
	}
}

// Process decodes one payload and runs it with retries. Only decoding
// problems are returned; job failures are recorded via FailedJobs.
func (m *Manager) Process(ctx context.Context, raw []byte) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("queue: bad envelope: %w", err)
	}

	m.mu.RLock()
	factory, ok := m.registry[env.Type]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, env.Type)
	}

	job := factory()
	if err := json.Unmarshal(env.Payload, job); err != nil {
		return fmt.Errorf("queue: unmarshal payload %s: %w", env.Type, err)
	}

	m.runWithRetry(ctx, job, env.Type)
	return nil
}

func (m *Manager) runWithRetry(ctx context.Context, job Job, typeName string) {
	m.mu.RLock()
	maxRetry, backoff := m.maxRetry, m.backoff
	m.mu.RUnlock()

	start := time.Now()
	var lastErr error
retry:
	for attempt := 1; attempt <= maxRetry; attempt++ {
		err := job.Handle(ctx)
		if err == nil {
			metrics.RecordQueueJob(typeName, "success", start)
			logger.Info("queue: job processed", "type", typeName)
			return
		}
		lastErr = err
		logger.Warn("queue: job failed", "type", typeName, "attempt", attempt, "error", err)

		if attempt < maxRetry {
			select {
			case <-ctx.Done():
				break retry
			case <-time.After(time.Duration(attempt) * backoff):
			}
		}
	}

	metrics.RecordQueueJob(typeName, "failed", start)
	m.persistFailed(ctx, job, typeName, lastErr, maxRetry)
	logger.Error("queue: job exhausted retries", "type", typeName, "error", lastErr)
}

// FailedJobs returns a snapshot of the jobs that failed in this process.
func (m *Manager) FailedJobs() []FailedJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]FailedJob, len(m.failed))
	copy(out, m.failed)
	return out
}

// ------------------- Package-level default -------------------

var defaultManager = NewManager(NewMemoryDriver())

// Default returns the process-wide Manager.
func Default() *Manager { return defaultManager }

// SetDriver swaps the driver of the default Manager.
func SetDriver(d Driver) { defaultManager.SetDriver(d) }

// SetMaxRetry sets the attempts per job of the default Manager.
func SetMaxRetry(n int) { defaultManager.SetMaxRetry(n) }

// Register adds a job factory to the default Manager.
func Register(factory func() Job) { defaultManager.Register(factory) }

// Dispatch pushes job onto the default Manager.
func Dispatch(ctx context.Context, job Job) error { return defaultManager.Dispatch(ctx, job) }

// StartWorkers starts n workers on the default Manager.
func StartWorkers(ctx context.Context, n int) <-chan struct{} {
	return defaultManager.StartWorkers(ctx, n)
}
