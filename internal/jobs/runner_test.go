package jobs

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licitaradar/radar/internal/model"
)

func TestRunner_RunsJob(t *testing.T) {
	var ran atomic.Int32
	done := make(chan model.Job, 1)

	r := NewRunner(Options{Workers: 1, OnFinished: func(job model.Job, err error) {
		assert.NoError(t, err)
		done <- job
	}})
	r.Register(model.JobSummary, func(ctx context.Context, job model.Job) error {
		ran.Add(1)
		return nil
	})
	r.Start()
	defer r.Shutdown(context.Background())

	require.NoError(t, r.Enqueue(model.Job{SessionID: "s1", Type: model.JobSummary}))

	select {
	case job := <-done:
		assert.Equal(t, "s1", job.SessionID)
	case <-time.After(2 * time.Second):
		t.Fatal("job never finished")
	}
	assert.Equal(t, int32(1), ran.Load())
}

func TestRunner_UnknownTypeRejected(t *testing.T) {
	r := NewRunner(Options{})
	err := r.Enqueue(model.Job{SessionID: "s1", Type: model.JobExcel})
	assert.Error(t, err)
}

func TestRunner_DeduplicatesInflight(t *testing.T) {
	block := make(chan struct{})
	r := NewRunner(Options{Workers: 1})
	r.Register(model.JobExcel, func(ctx context.Context, job model.Job) error {
		<-block
		return nil
	})
	r.Start()
	defer func() {
		close(block)
		r.Shutdown(context.Background())
	}()

	require.NoError(t, r.Enqueue(model.Job{SessionID: "s1", Type: model.JobExcel}))
	// Wait until the worker picked it up so the dedupe set covers a
	// running job, not just a queued one.
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.queue) == 0
	}, time.Second, 5*time.Millisecond)

	err := r.Enqueue(model.Job{SessionID: "s1", Type: model.JobExcel})
	assert.ErrorIs(t, err, ErrDuplicate)

	// A different type for the same session is fine.
	r.Register(model.JobSummary, func(ctx context.Context, job model.Job) error { return nil })
	assert.NoError(t, r.Enqueue(model.Job{SessionID: "s1", Type: model.JobSummary}))
}

func TestRunner_ReleasedAfterCompletion(t *testing.T) {
	var mu sync.Mutex
	runs := 0
	fired := make(chan struct{}, 2)

	r := NewRunner(Options{Workers: 1, OnFinished: func(model.Job, error) { fired <- struct{}{} }})
	r.Register(model.JobSummary, func(ctx context.Context, job model.Job) error {
		mu.Lock()
		runs++
		mu.Unlock()
		return nil
	})
	r.Start()
	defer r.Shutdown(context.Background())

	require.NoError(t, r.Enqueue(model.Job{SessionID: "s1", Type: model.JobSummary}))
	<-fired
	require.NoError(t, r.Enqueue(model.Job{SessionID: "s1", Type: model.JobSummary}))
	<-fired

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, runs)
}

func TestRunner_QueueFull(t *testing.T) {
	r := NewRunner(Options{Workers: 1, QueueSize: 1})
	r.Register(model.JobSummary, func(ctx context.Context, job model.Job) error { return nil })
	// Workers not started: the first job fills the queue.

	require.NoError(t, r.Enqueue(model.Job{SessionID: "s1", Type: model.JobSummary}))
	err := r.Enqueue(model.Job{SessionID: "s2", Type: model.JobSummary})
	assert.ErrorIs(t, err, ErrQueueFull)

	// The rejected job must not stay marked inflight.
	r.mu.Lock()
	_, held := r.inflight[model.Job{SessionID: "s2", Type: model.JobSummary}.DedupeKey()]
	r.mu.Unlock()
	assert.False(t, held)
}

func TestRunner_JobTimeout(t *testing.T) {
	errs := make(chan error, 1)
	r := NewRunner(Options{Workers: 1, JobTimeout: 20 * time.Millisecond,
		OnFinished: func(_ model.Job, err error) { errs <- err }})
	r.Register(model.JobSummary, func(ctx context.Context, job model.Job) error {
		select {
		case <-ctx.Done():
			return eris.Wrap(ctx.Err(), "jobs: summary")
		case <-time.After(5 * time.Second):
			return nil
		}
	})
	r.Start()
	defer r.Shutdown(context.Background())

	require.NoError(t, r.Enqueue(model.Job{SessionID: "s1", Type: model.JobSummary}))
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout never fired")
	}
}

func TestRunner_ShutdownDrainsQueue(t *testing.T) {
	var ran atomic.Int32
	r := NewRunner(Options{Workers: 2})
	r.Register(model.JobSummary, func(ctx context.Context, job model.Job) error {
		ran.Add(1)
		return nil
	})

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, r.Enqueue(model.Job{SessionID: id, Type: model.JobSummary}))
	}
	r.Start()

	require.NoError(t, r.Shutdown(context.Background()))
	assert.Equal(t, int32(3), ran.Load())

	err := r.Enqueue(model.Job{SessionID: "late", Type: model.JobSummary})
	assert.Error(t, err)
}

func TestRunner_ShutdownBounded(t *testing.T) {
	r := NewRunner(Options{Workers: 1, JobTimeout: time.Minute})
	block := make(chan struct{})
	defer close(block)
	r.Register(model.JobSummary, func(ctx context.Context, job model.Job) error {
		<-block
		return nil
	})
	r.Start()
	require.NoError(t, r.Enqueue(model.Job{SessionID: "s1", Type: model.JobSummary}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := r.Shutdown(ctx)
	assert.Error(t, err)
}
