// Package server boots the query service: index database, results backend,
// queue, engine runner, HTTP and gRPC listeners, and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"gorm.io/gorm"

	"github.com/datajunction/djqs/app/engine"
	"github.com/datajunction/djqs/app/jobs"
	"github.com/datajunction/djqs/app/routes"
	"github.com/datajunction/djqs/app/services"
	"github.com/datajunction/djqs/config"
	"github.com/datajunction/djqs/internal/kernel"
	"github.com/datajunction/djqs/pkg/cache"
	"github.com/datajunction/djqs/pkg/database"
	"github.com/datajunction/djqs/pkg/event"
	djgrpc "github.com/datajunction/djqs/pkg/grpc"
	"github.com/datajunction/djqs/pkg/logger"
	"github.com/datajunction/djqs/pkg/queue"
)

const shutdownTimeout = 15 * time.Second

// App holds the long-lived dependencies shared by the HTTP server and the
// queue workers.
type App struct {
	DB      *gorm.DB
	Results cache.Store
	Runner  *engine.Runner
	Queue   *queue.Manager
	Events  *event.Bus
	Queries *services.QueryService

	draining  chan struct{}
	drainOnce sync.Once
	closers   []func() error
}

// Boot loads configuration and connects every backend.
func Boot(ctx context.Context) (*App, error) {
	if err := config.Load(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	a := &App{Events: event.Default(), Queue: queue.Default(), draining: make(chan struct{})}

	if uri := config.LogMongoURI(); uri != "" {
		h, err := logger.NewMongoHandler(ctx, uri, config.LogMongoDB(), config.LogMongoCollection())
		if err != nil {
			logger.Warn("mongo log sink disabled", "error", err)
		} else {
			logger.Attach(h)
			a.closers = append(a.closers, h.Close)
		}
	}

	db, err := database.Open(ctx, config.Index(), database.DefaultOptions())
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, func() error { return database.Close(db) })

	if a.Results, err = cache.Open(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if config.QueueDriver() == "redis" {
		rdb, err := cache.Connect(ctx)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("queue: %w", err)
		}
		a.closers = append(a.closers, rdb.Close)
		a.Queue.SetDriver(queue.NewRedisDriver(rdb, queue.DefaultRedisKey))
	}
	a.Queue.SetMaxRetry(config.QueueMaxRetry())
	a.Queue.UseDB(db)

	a.Runner = engine.NewRunner(database.DefaultOptions())
	a.closers = append(a.closers, a.Runner.Close)

	a.Queries = services.NewQueryService(db, a.Runner, a.Results, a.Queue, services.WithEvents(a.Events))
	jobs.Register(a.Queue, a.Queries)

	logger.Info("djqs booted",
		"app", config.AppName(),
		"results_backend", config.ResultsBackend(),
		"queue_driver", config.QueueDriver(),
	)
	return a, nil
}

// Close releases every backend in reverse boot order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Kernel builds the HTTP kernel for a.
func (a *App) Kernel() *kernel.HTTPKernel {
	return kernel.New(routes.Deps{DB: a.DB, Queries: a.Queries, Events: a.Events, Draining: a.draining})
}

// Drain ends every open query event stream. Serve calls it when the HTTP
// server starts shutting down, since Shutdown waits for active requests.
func (a *App) Drain() {
	a.drainOnce.Do(func() { close(a.draining) })
}

// Serve runs the HTTP server, the optional gRPC server and the in-process
// queue workers until SIGINT or SIGTERM.
func Serve() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := Boot(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	k := a.Kernel()
	go k.Sweep(ctx)

	workersCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	workersDone := closedChan()
	if n := config.QueueWorkers(); n > 0 {
		workersDone = a.Queue.StartWorkers(workersCtx, n)
	}

	if port := config.GRPCPort(); port != "" {
		grpcSrv, err := djgrpc.Start(port, func(ctx context.Context) error {
			return database.Ping(ctx, a.DB)
		})
		if err != nil {
			return err
		}
		defer djgrpc.Stop(grpcSrv)
	}

	srv := &http.Server{
		Addr:              ":" + config.AppPort(),
		Handler:           k.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(a.Drain)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}

	// workers stop before the engine pools close
	stopWorkers()
	select {
	case <-workersDone:
	case <-shutdownCtx.Done():
		logger.Warn("queue workers did not stop in time")
	}
	return nil
}

// Work runs queue workers only, until SIGINT or SIGTERM.
func Work(workers int) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := Boot(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if workers <= 0 {
		workers = config.QueueWorkers()
	}
	if workers <= 0 {
		workers = 1
	}
	<-a.Queue.StartWorkers(ctx, workers)
	logger.Info("queue workers stopped")
	return nil
}

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
