package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licitaradar/radar/internal/model"
	"github.com/licitaradar/radar/internal/store"
)

// fakeStore implements store.Store with scriptable session methods.
type fakeStore struct {
	mu         sync.Mutex
	created    []*model.SearchSession
	patches    []model.SessionPatch
	createErr  error
	patchErrs  []error // popped per call; nil entry means success
	sweepCount int
	sweepErr   error
	sweepMsg   string
}

func (f *fakeStore) CreateSession(_ context.Context, sess *model.SearchSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, sess)
	return nil
}

func (f *fakeStore) PatchSession(_ context.Context, _ string, patch model.SessionPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches = append(f.patches, patch)
	if len(f.patchErrs) > 0 {
		err := f.patchErrs[0]
		f.patchErrs = f.patchErrs[1:]
		return err
	}
	return nil
}

func (f *fakeStore) SweepStale(_ context.Context, message string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweepMsg = message
	return f.sweepCount, f.sweepErr
}

func (f *fakeStore) patchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.patches)
}

func (f *fakeStore) GetSession(context.Context, string) (*model.SearchSession, error) {
	return nil, store.ErrNotFound
}
func (f *fakeStore) ListSessions(context.Context, store.SessionFilter) ([]model.SearchSession, error) {
	return nil, nil
}
func (f *fakeStore) GetCacheRow(context.Context, string, time.Time) (*store.CacheRow, error) {
	return nil, nil
}
func (f *fakeStore) PutCacheRow(context.Context, store.CacheRow) error        { return nil }
func (f *fakeStore) DeleteExpiredCache(context.Context, time.Time) (int, error) { return 0, nil }
func (f *fakeStore) UpsertFeedback(context.Context, model.Feedback) error     { return nil }
func (f *fakeStore) Migrate(context.Context) error                            { return nil }
func (f *fakeStore) Close() error                                             { return nil }

func newTestTracker(st store.Store) *Tracker {
	tr := NewTracker(st)
	tr.retryDelay = 5 * time.Millisecond
	return tr
}

func TestTracker_Register(t *testing.T) {
	fs := &fakeStore{}
	tr := newTestTracker(fs)

	sess, err := tr.Register(context.Background(), "user-1", model.SearchParams{Sector: "alimentacao"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, model.StatusCreated, sess.Status)
	require.Len(t, fs.created, 1)
}

func TestTracker_RegisterFailureSurfaces(t *testing.T) {
	fs := &fakeStore{createErr: eris.New("db down")}
	tr := newTestTracker(fs)

	_, err := tr.Register(context.Background(), "user-1", model.SearchParams{Sector: "alimentacao"})
	assert.Error(t, err)
}

func TestTracker_UpdateIsDetached(t *testing.T) {
	fs := &fakeStore{}
	tr := newTestTracker(fs)

	tr.Update("sess-1", model.StagePatch(model.StageExecute))
	tr.Drain(context.Background())
	assert.Equal(t, 1, fs.patchCalls())
}

func TestTracker_UpdateRetriesOnce(t *testing.T) {
	fs := &fakeStore{patchErrs: []error{eris.New("transient")}}
	tr := newTestTracker(fs)

	tr.Update("sess-1", model.StatusPatch(model.StatusCompleted))
	tr.Drain(context.Background())
	assert.Equal(t, 2, fs.patchCalls(), "one retry after the first failure")
}

func TestTracker_UpdateSwallowsPersistentFailure(t *testing.T) {
	fs := &fakeStore{patchErrs: []error{eris.New("down"), eris.New("still down")}}
	tr := newTestTracker(fs)

	tr.Update("sess-1", model.StatusPatch(model.StatusCompleted))
	tr.Drain(context.Background())
	assert.Equal(t, 2, fs.patchCalls(), "exactly two attempts, then give up")
}

func TestTracker_EmptyPatchIsNoop(t *testing.T) {
	fs := &fakeStore{}
	tr := newTestTracker(fs)

	tr.Update("sess-1", model.SessionPatch{})
	tr.Drain(context.Background())
	assert.Zero(t, fs.patchCalls())
}

func TestTracker_UpdateWaitIsSynchronous(t *testing.T) {
	fs := &fakeStore{}
	tr := newTestTracker(fs)

	tr.UpdateWait(context.Background(), "sess-1", model.StatusPatch(model.StatusFailed))
	assert.Equal(t, 1, fs.patchCalls())
}

func TestTracker_Sweep(t *testing.T) {
	fs := &fakeStore{sweepCount: 2}
	tr := newTestTracker(fs)

	n := tr.Sweep(context.Background(), 5*time.Second, "server shutdown")
	assert.Equal(t, 2, n)
	assert.Contains(t, fs.sweepMsg, "shutdown")
}

func TestTracker_SweepFailureReturnsZero(t *testing.T) {
	fs := &fakeStore{sweepErr: eris.New("db gone")}
	tr := newTestTracker(fs)

	assert.Zero(t, tr.Sweep(context.Background(), time.Second, "server shutdown"))
}
