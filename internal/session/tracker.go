package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/licitaradar/radar/internal/model"
	"github.com/licitaradar/radar/internal/store"
)

// Tracker owns the persisted lifecycle of search sessions. Register
// must succeed before any quota is consumed; Update never surfaces an
// error to the pipeline, a lost patch costs observability but never a
// search.
type Tracker struct {
	store      store.Store
	logger     *zap.Logger
	retryDelay time.Duration

	wg sync.WaitGroup
}

func NewTracker(st store.Store) *Tracker {
	return &Tracker{
		store:      st,
		logger:     zap.L(),
		retryDelay: 200 * time.Millisecond,
	}
}

// Register persists a new session row with status created and returns
// its id. This is the one tracker call whose error aborts the caller.
func (t *Tracker) Register(ctx context.Context, userID string, params model.SearchParams) (*model.SearchSession, error) {
	sess := &model.SearchSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		Params:    params,
		Status:    model.StatusCreated,
		StartedAt: time.Now().UTC(),
	}
	if err := t.store.CreateSession(ctx, sess); err != nil {
		return nil, eris.Wrap(err, "session: register")
	}
	t.logger.Info("session registered",
		zap.String("session_id", sess.ID),
		zap.String("user_id", userID),
		zap.String("sector", params.Sector))
	return sess, nil
}

// Update applies a partial patch off the critical path. It returns
// immediately; the write happens on a detached goroutine with one
// retry after a short delay, and failures are logged and swallowed.
func (t *Tracker) Update(sessionID string, patch model.SessionPatch) {
	if patch.Empty() {
		return
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		t.apply(ctx, sessionID, patch)
	}()
}

// UpdateWait applies a patch synchronously with the same retry-once
// policy. Terminal statuses at the end of a pipeline go through here
// so the response never races the row it describes.
func (t *Tracker) UpdateWait(ctx context.Context, sessionID string, patch model.SessionPatch) {
	if patch.Empty() {
		return
	}
	t.apply(ctx, sessionID, patch)
}

func (t *Tracker) apply(ctx context.Context, sessionID string, patch model.SessionPatch) {
	err := t.store.PatchSession(ctx, sessionID, patch)
	if err == nil {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(t.retryDelay):
		if err = t.store.PatchSession(ctx, sessionID, patch); err == nil {
			return
		}
	}
	t.logger.Error("session update lost",
		zap.String("session_id", sessionID),
		zap.Error(err))
}

// Drain waits for in-flight detached updates, bounded by ctx.
func (t *Tracker) Drain(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		t.logger.Warn("session updates still in flight at drain deadline")
	}
}

// Sweep marks every session still created or processing as timed_out.
// Called on graceful shutdown under a short deadline so stuck rows
// never outlive the process that owned them.
func (t *Tracker) Sweep(ctx context.Context, deadline time.Duration, message string) int {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	n, err := t.store.SweepStale(ctx, message)
	if err != nil {
		t.logger.Error("shutdown sweep failed", zap.Error(err))
		return 0
	}
	if n > 0 {
		t.logger.Warn("shutdown sweep closed stale sessions", zap.Int("count", n))
	}
	return n
}
