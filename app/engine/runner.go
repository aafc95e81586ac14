// Package engine executes submitted SQL against engine databases.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/datajunction/djqs/app/models"
	"github.com/datajunction/djqs/pkg/database"
	"github.com/datajunction/djqs/pkg/metrics"
)

// ProgressFunc is called after each statement completes.
type ProgressFunc func(done, total int)

// Runner executes statements on engine URIs, keeping one pool per URI.
// Pools are opened outside mu, and concurrent opens of the same URI share a
// single attempt. Failed opens are not cached.
type Runner struct {
	mu      sync.Mutex
	pools   map[string]*gorm.DB
	opening singleflight.Group
	opts    database.Options
}

// NewRunner returns a Runner whose pools use opts.
func NewRunner(opts database.Options) *Runner {
	return &Runner{pools: map[string]*gorm.DB{}, opts: opts}
}

func (r *Runner) cached(uri string) (*gorm.DB, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	db, ok := r.pools[uri]
	return db, ok
}

func (r *Runner) pool(ctx context.Context, uri string) (*gorm.DB, error) {
	if db, ok := r.cached(uri); ok {
		return db, nil
	}

	ch := r.opening.DoChan(uri, func() (any, error) {
		if db, ok := r.cached(uri); ok {
			return db, nil
		}
		db, err := database.Open(ctx, uri, r.opts)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.pools[uri] = db
		r.mu.Unlock()
		return db, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*gorm.DB), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run splits sql into statements and executes them in order on the engine at
// uri. The first failing statement aborts the run.
func (r *Runner) Run(ctx context.Context, uri, sql string, progress ProgressFunc) (models.Results, error) {
	db, err := r.pool(ctx, uri)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	statements := SplitStatements(sql)
	results := make(models.Results, 0, len(statements))

	for i, stmt := range statements {
		res, err := execute(ctx, sqlDB, stmt)
		if err != nil {
			return nil, err
		}
		results = append(results, res)

		if progress != nil {
			progress(i+1, len(statements))
		}
	}

	return results, nil
}

func execute(ctx context.Context, db *sql.DB, stmt string) (models.StatementResults, error) {
	defer metrics.ObserveDBQuery("statement", time.Now())

	rows, err := db.QueryContext(ctx, stmt)
	if err != nil {
		return models.StatementResults{}, err
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return models.StatementResults{}, err
	}
	columns := make([]models.ColumnMetadata, len(colTypes))
	for i, ct := range colTypes {
		columns[i] = models.ColumnMetadata{
			Name: ct.Name(),
			Type: models.ColumnTypeFromDatabase(ct.DatabaseTypeName()),
		}
	}

	data := [][]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return models.StatementResults{}, fmt.Errorf("scan: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		data = append(data, values)
	}
	if err := rows.Err(); err != nil {
		return models.StatementResults{}, err
	}

	return models.StatementResults{
		SQL:      stmt,
		Columns:  columns,
		Rows:     data,
		RowCount: len(data),
	}, nil
}

// Close releases every pooled engine connection.
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var first error
	for uri, db := range r.pools {
		if err := database.Close(db); err != nil && first == nil {
			first = err
		}
		delete(r.pools, uri)
	}
	return first
}
