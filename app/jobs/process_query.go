// Package jobs holds the background jobs of the query service.
package jobs

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/datajunction/djqs/pkg/queue"
)

// Processor runs a stored query to completion.
type Processor interface {
	ProcessByID(ctx context.Context, id uuid.UUID) error
}

var errNoProcessor = errors.New("jobs: ProcessQuery has no processor")

// ProcessQuery executes an asynchronously submitted query.
type ProcessQuery struct {
	QueryID uuid.UUID `json:"query_id"`

	processor Processor
}

// NewProcessQuery returns the job for query id.
func NewProcessQuery(id uuid.UUID) *ProcessQuery {
	return &ProcessQuery{QueryID: id}
}

func (j *ProcessQuery) Handle(ctx context.Context) error {
	if j.processor == nil {
		return errNoProcessor
	}
	return j.processor.ProcessByID(ctx, j.QueryID)
}

// Register makes m able to decode and run ProcessQuery jobs with p.
func Register(m *queue.Manager, p Processor) {
	m.Register(func() queue.Job { return &ProcessQuery{processor: p} })
}
