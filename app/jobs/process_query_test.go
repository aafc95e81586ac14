package jobs_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datajunction/djqs/app/jobs"
	"github.com/datajunction/djqs/pkg/queue"
)

type recorder struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (r *recorder) ProcessByID(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	return nil
}

func (r *recorder) seen() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uuid.UUID(nil), r.ids...)
}

func TestProcessQueryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := queue.NewManager(queue.NewMemoryDriver())
	rec := &recorder{}
	jobs.Register(m, rec)

	id := uuid.New()
	require.NoError(t, m.Dispatch(ctx, jobs.NewProcessQuery(id)))
	done := m.StartWorkers(ctx, 1)

	assert.Eventually(t, func() bool { return len(rec.seen()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []uuid.UUID{id}, rec.seen())

	cancel()
	<-done
	assert.Empty(t, m.FailedJobs())
}

func TestProcessQueryWithoutProcessorFails(t *testing.T) {
	assert.Error(t, jobs.NewProcessQuery(uuid.New()).Handle(context.Background()))
}
