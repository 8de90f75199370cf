// Package jobs runs deferred per-session work (report generation,
// summaries) on a bounded worker pool.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/licitaradar/radar/internal/model"
)

// Handler executes one job type. It must respect ctx cancellation.
type Handler func(ctx context.Context, job model.Job) error

// ErrQueueFull reports a saturated job queue.
var ErrQueueFull = eris.New("jobs: queue full")

// ErrDuplicate reports a job already queued or running for the same
// session and type.
var ErrDuplicate = eris.New("jobs: duplicate job")

// Options tunes the runner. Zero values fall back to defaults.
type Options struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
	// OnFinished observes every finished job, for metrics.
	OnFinished func(job model.Job, err error)
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 2
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.JobTimeout <= 0 {
		o.JobTimeout = 60 * time.Second
	}
	return o
}

// Runner is a fixed-size worker pool with per-(session, type)
// deduplication.
type Runner struct {
	opts     Options
	handlers map[model.JobType]Handler
	queue    chan model.Job
	logger   *zap.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
	closed   bool

	wg sync.WaitGroup
}

func NewRunner(opts Options) *Runner {
	opts = opts.withDefaults()
	return &Runner{
		opts:     opts,
		handlers: map[model.JobType]Handler{},
		queue:    make(chan model.Job, opts.QueueSize),
		inflight: map[string]struct{}{},
		logger:   zap.L().Named("jobs"),
	}
}

// Register installs the handler for a job type. Must be called before
// Start.
func (r *Runner) Register(jobType model.JobType, h Handler) {
	r.handlers[jobType] = h
}

// Start launches the workers. They drain the queue until Shutdown.
func (r *Runner) Start() {
	for i := 0; i < r.opts.Workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
}

// Enqueue queues a job. A job for a (session, type) pair that is
// already queued or running is rejected with ErrDuplicate.
func (r *Runner) Enqueue(job model.Job) error {
	if _, ok := r.handlers[job.Type]; !ok {
		return eris.Errorf("jobs: no handler for type %q", job.Type)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return eris.New("jobs: runner stopped")
	}
	key := job.DedupeKey()
	if _, dup := r.inflight[key]; dup {
		r.mu.Unlock()
		return ErrDuplicate
	}
	r.inflight[key] = struct{}{}
	r.mu.Unlock()

	job.Status = model.JobQueued
	job.EnqueuedAt = time.Now()

	select {
	case r.queue <- job:
		return nil
	default:
		r.release(key)
		return ErrQueueFull
	}
}

// Shutdown stops accepting jobs and waits for running work, bounded by
// ctx. Queued jobs still in the channel are drained by the workers.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()
	close(r.queue)

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "jobs: shutdown")
	}
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for job := range r.queue {
		r.run(job)
	}
}

func (r *Runner) run(job model.Job) {
	defer r.release(job.DedupeKey())

	handler := r.handlers[job.Type]
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.JobTimeout)
	defer cancel()

	start := time.Now()
	err := handler(ctx, job)
	if err != nil {
		r.logger.Error("job failed",
			zap.String("session_id", job.SessionID),
			zap.String("type", string(job.Type)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
	} else {
		r.logger.Debug("job done",
			zap.String("session_id", job.SessionID),
			zap.String("type", string(job.Type)),
			zap.Duration("elapsed", time.Since(start)))
	}
	if r.opts.OnFinished != nil {
		r.opts.OnFinished(job, err)
	}
}

func (r *Runner) release(key string) {
	r.mu.Lock()
	delete(r.inflight, key)
	r.mu.Unlock()
}
