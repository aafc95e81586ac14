package queue_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datajunction/djqs/pkg/database"
	"github.com/datajunction/djqs/pkg/queue"
)

// ─── Job types ────────────────────────────────────────────────────────────────

type echoJob struct {
	Val    string `json:"val"`
	called *atomic.Int32
	seen   chan string
}

func (j *echoJob) Handle(context.Context) error {
	j.called.Add(1)
	if j.seen != nil {
		j.seen <- j.Val
	}
	return nil
}

type failJob struct {
	attempts *atomic.Int32
}

func (j *failJob) Handle(context.Context) error {
	j.attempts.Add(1)
	return errors.New("always fails")
}

func newManager(t *testing.T) *queue.Manager {
	t.Helper()
	m := queue.NewManager(queue.NewMemoryDriver())
	m.SetBackoff(time.Millisecond)
	return m
}

// ─── Tests ────────────────────────────────────────────────────────────────────

func TestDispatchAndProcess(t *testing.T) {
	m := newManager(t)
	called := &atomic.Int32{}
	seen := make(chan string, 1)
	m.Register(func() queue.Job { return &echoJob{called: called, seen: seen} })

	ctx, cancel := context.WithCancel(context.Background())
	done := m.StartWorkers(ctx, 2)

	require.NoError(t, m.Dispatch(ctx, &echoJob{Val: "hello"}))

	select {
	case v := <-seen:
		assert.Equal(t, "hello", v)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not processed")
	}
	assert.EqualValues(t, 1, called.Load())

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not stop")
	}
}

func TestProcessRetriesThenRecordsFailure(t *testing.T) {
	m := newManager(t)
	m.SetMaxRetry(3)
	attempts := &atomic.Int32{}
	m.Register(func() queue.Job { return &failJob{attempts: attempts} })

	db, err := database.Open(context.Background(), "sqlite://", database.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	require.NoError(t, db.AutoMigrate(&queue.FailedJobRecord{}))
	m.UseDB(db)

	raw := []byte(`{"type":"*queue_test.failJob","payload":{}}`)
	require.NoError(t, m.Process(context.Background(), raw))

	assert.EqualValues(t, 3, attempts.Load())

	failed := m.FailedJobs()
	require.Len(t, failed, 1)
	assert.Equal(t, "*queue_test.failJob", failed[0].Type)
	assert.EqualError(t, failed[0].Err, "always fails")
	assert.Equal(t, 3, failed[0].Attempts)

	var records []queue.FailedJobRecord
	require.NoError(t, db.Find(&records).Error)
	require.Len(t, records, 1)
	assert.Equal(t, "*queue_test.failJob", records[0].JobType)
	assert.Equal(t, "always fails", records[0].Error)
}

func TestProcessUnknownJob(t *testing.T) {
	m := newManager(t)

	err := m.Process(context.Background(), []byte(`{"type":"*main.nope","payload":{}}`))
	assert.ErrorIs(t, err, queue.ErrUnknownJob)

	err = m.Process(context.Background(), []byte(`not json`))
	assert.ErrorContains(t, err, "bad envelope")
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "*queue_test.echoJob", queue.TypeName(&echoJob{}))
}

func TestMemoryDriverPushRespectsContext(t *testing.T) {
	d := queue.NewMemoryDriver()
	for i := 0; i < 1000; i++ {
		require.NoError(t, d.Push(context.Background(), []byte("x")))
	}
	assert.Equal(t, 1000, d.Len())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Push(ctx, []byte("x")), context.DeadlineExceeded)
}
