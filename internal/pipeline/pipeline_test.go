package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licitaradar/radar/internal/cache"
	"github.com/licitaradar/radar/internal/classify"
	"github.com/licitaradar/radar/internal/jobs"
	"github.com/licitaradar/radar/internal/model"
	"github.com/licitaradar/radar/internal/progress"
	"github.com/licitaradar/radar/internal/report"
	"github.com/licitaradar/radar/internal/results"
	"github.com/licitaradar/radar/internal/session"
	"github.com/licitaradar/radar/internal/source"
	"github.com/licitaradar/radar/internal/store"
	"github.com/licitaradar/radar/pkg/anthropic"
	"github.com/licitaradar/radar/pkg/billing"
)

// recordingStore tracks session rows and the order of lifecycle calls
// shared with the billing fake, so quota ordering is observable.
type recordingStore struct {
	mu        sync.Mutex
	calls     *[]string
	sessions  map[string]*model.SearchSession
	createErr error
}

func newRecordingStore(calls *[]string) *recordingStore {
	return &recordingStore{calls: calls, sessions: map[string]*model.SearchSession{}}
}

func (r *recordingStore) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls != nil {
		*r.calls = append(*r.calls, call)
	}
}

func (r *recordingStore) CreateSession(_ context.Context, sess *model.SearchSession) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.record("register")
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *sess
	r.sessions[sess.ID] = &cp
	return nil
}

func (r *recordingStore) PatchSession(_ context.Context, id string, patch model.SessionPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	if patch.Status != nil && !sess.Status.Terminal() {
		sess.Status = *patch.Status
	}
	if patch.PipelineStage != nil {
		sess.PipelineStage = *patch.PipelineStage
	}
	if patch.ErrorCode != nil {
		sess.ErrorCode = *patch.ErrorCode
	}
	if patch.ErrorMessage != nil {
		sess.ErrorMessage = *patch.ErrorMessage
	}
	if patch.ResponseState != nil {
		sess.ResponseState = *patch.ResponseState
	}
	if patch.ItemsTotal != nil {
		sess.ItemsTotal = *patch.ItemsTotal
	}
	if patch.ItemsRelevant != nil {
		sess.ItemsRelevant = *patch.ItemsRelevant
	}
	if patch.Summary != nil {
		sess.Summary = *patch.Summary
	}
	if patch.ExcelPath != nil {
		sess.ExcelPath = *patch.ExcelPath
	}
	return nil
}

func (r *recordingStore) session(id string) model.SearchSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.sessions[id]
}

func (r *recordingStore) only() model.SearchSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		return *s
	}
	return model.SearchSession{}
}

func (r *recordingStore) GetSession(context.Context, string) (*model.SearchSession, error) {
	return nil, store.ErrNotFound
}
func (r *recordingStore) ListSessions(context.Context, store.SessionFilter) ([]model.SearchSession, error) {
	return nil, nil
}
func (r *recordingStore) SweepStale(context.Context, string) (int, error) { return 0, nil }
func (r *recordingStore) GetCacheRow(context.Context, string, time.Time) (*store.CacheRow, error) {
	return nil, nil
}
func (r *recordingStore) PutCacheRow(context.Context, store.CacheRow) error        { return nil }
func (r *recordingStore) DeleteExpiredCache(context.Context, time.Time) (int, error) { return 0, nil }
func (r *recordingStore) UpsertFeedback(context.Context, model.Feedback) error     { return nil }
func (r *recordingStore) Migrate(context.Context) error                            { return nil }
func (r *recordingStore) Close() error                                             { return nil }

type fakeBilling struct {
	mu         sync.Mutex
	calls      *[]string
	caps       model.PlanCapabilities
	authErr    error
	consumeErr error
	consumed   int
}

func (f *fakeBilling) Authorize(context.Context, string) (model.PlanCapabilities, error) {
	if f.authErr != nil {
		return model.PlanCapabilities{}, f.authErr
	}
	return f.caps, nil
}

func (f *fakeBilling) ConsumeQuota(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.consumeErr != nil {
		return f.consumeErr
	}
	f.consumed++
	if f.calls != nil {
		*f.calls = append(*f.calls, "consume")
	}
	return nil
}

type stubClient struct {
	name  string
	items []model.ProcurementItem
	err   error
	delay time.Duration
}

func (s *stubClient) Name() string { return s.name }
func (s *stubClient) Fetch(ctx context.Context, _ model.SearchParams) ([]model.ProcurementItem, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.items, s.err
}

type memTier struct {
	mu      sync.Mutex
	name    string
	ttl     time.Duration
	entries map[string]*cache.Entry
	puts    int
}

func newMemTier(name string, ttl time.Duration) *memTier {
	return &memTier{name: name, ttl: ttl, entries: map[string]*cache.Entry{}}
}

func (m *memTier) Name() string       { return m.name }
func (m *memTier) TTL() time.Duration { return m.ttl }
func (m *memTier) Get(_ context.Context, key string) (*cache.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[key], nil
}
func (m *memTier) Put(_ context.Context, key string, e *cache.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = e
	m.puts++
	return nil
}

type fakeLLM struct {
	reply string
	err   error
	delay time.Duration
}

func (f *fakeLLM) CreateMessage(ctx context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.MessageResponse{Content: []anthropic.ContentBlock{{Type: "text", Text: f.reply}}}, nil
}

func testProfiles() *classify.ProfileSet {
	return &classify.ProfileSet{Sectors: map[string]classify.SectorProfile{
		"uniformes": {
			Label:          "Uniformes",
			Keywords:       []string{"uniforme", "fardamento"},
			SignatureTerms: []string{"costura"},
		},
	}}
}

type allowAllArbiter struct{}

func (allowAllArbiter) Arbitrate(context.Context, model.ProcurementItem, classify.SectorProfile, model.RelevanceSource) (bool, error) {
	return true, nil
}

type failingArbiter struct{}

func (failingArbiter) Arbitrate(context.Context, model.ProcurementItem, classify.SectorProfile, model.RelevanceSource) (bool, error) {
	return false, eris.New("llm down")
}

func relevantItems() []model.ProcurementItem {
	return []model.ProcurementItem{
		{Source: "pncp", NativeID: "1", Object: "uniforme uniforme uniforme escolar", Region: "SP", ValueBRL: 1000, PublishedAt: time.Now()},
		{Source: "pncp", NativeID: "2", Object: "obra de pavimentação urbana em rodovia estadual longa", Region: "SP", PublishedAt: time.Now()},
	}
}

type env struct {
	calls   []string
	st      *recordingStore
	bill    *fakeBilling
	tier    *memTier
	bus     *progress.Bus
	res     *results.Store
	tracker *session.Tracker
	deps    Deps
}

func newEnv(clients ...source.Client) *env {
	e := &env{}
	e.st = newRecordingStore(&e.calls)
	e.bill = &fakeBilling{calls: &e.calls, caps: model.PlanCapabilities{UserID: "u-1", MaxLookbackDays: 90, ExcelAllowed: true, QuotaRemaining: 3}}
	e.tier = newMemTier("fast", 5*time.Minute)
	e.bus = progress.NewBus(10)
	e.res = results.NewStore(time.Minute)
	e.tracker = session.NewTracker(e.st)
	e.deps = Deps{
		Store:         e.st,
		Tracker:       e.tracker,
		Billing:       e.bill,
		Clients:       clients,
		Cascade:       cache.NewCascade(e.tier),
		Classifier:    classify.NewClassifier(testProfiles(), allowAllArbiter{}, classify.Options{}),
		Profiles:      testProfiles(),
		Bus:           e.bus,
		Results:       e.res,
		Deadline:      5 * time.Second,
		FetchDeadline: time.Second,
		CacheFirst:    true,
	}
	return e
}

func params() model.SearchParams {
	return model.SearchParams{Sector: "uniformes", Regions: []string{"sp"}}
}

func TestRun_SuccessLive(t *testing.T) {
	e := newEnv(&stubClient{name: "pncp", items: relevantItems()})
	o := New(e.deps)

	result, err := o.Run(context.Background(), "tok", params())
	require.NoError(t, err)

	assert.Equal(t, model.ResponseLive, result.ResponseState)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "1", result.Items[0].NativeID)
	assert.Equal(t, model.RelevanceKeyword, result.Items[0].RelevanceSource)
	assert.Equal(t, []string{"pncp"}, result.Sources)
	require.NotNil(t, result.Stats)
	assert.Equal(t, 1000.0, result.Stats.TotalValueBRL)

	o.Drain(context.Background())
	sess := e.st.session(result.SessionID)
	assert.Equal(t, model.StatusCompleted, sess.Status)
	assert.Equal(t, model.StagePersist, sess.PipelineStage)
	assert.Equal(t, 2, sess.ItemsTotal)
	assert.Equal(t, 1, sess.ItemsRelevant)
	assert.Equal(t, []string{"SP"}, sess.Params.Regions)

	// Fetch result was written to the cache.
	assert.Equal(t, 1, e.tier.puts)
}

func TestRun_ArbiterOutageMarksDegraded(t *testing.T) {
	ambiguous := "uniforme " + strings.Repeat("palavra ", 28)
	e := newEnv(&stubClient{name: "pncp", items: []model.ProcurementItem{
		{Source: "pncp", NativeID: "1", Object: ambiguous, Region: "SP", PublishedAt: time.Now()},
	}})
	e.deps.Classifier = classify.NewClassifier(testProfiles(), failingArbiter{}, classify.Options{})
	o := New(e.deps)

	result, err := o.Run(context.Background(), "tok", params())
	require.NoError(t, err)

	assert.Equal(t, artifactDegraded, result.LLMStatus)
	require.Len(t, result.Items, 1, "standard-zone items survive an LLM outage")

	// A clean search against the same collaborators is not colored by
	// the earlier outage.
	e2 := newEnv(&stubClient{name: "pncp", items: relevantItems()})
	o2 := New(e2.deps)
	clean, err := o2.Run(context.Background(), "tok", params())
	require.NoError(t, err)
	assert.Equal(t, artifactSkipped, clean.LLMStatus)

	o.Drain(context.Background())
	o2.Drain(context.Background())
}

func TestRun_RegisterBeforeQuota(t *testing.T) {
	e := newEnv(&stubClient{name: "pncp", items: nil})
	o := New(e.deps)

	_, err := o.Run(context.Background(), "tok", params())
	require.NoError(t, err)
	require.Equal(t, []string{"register", "consume"}, e.calls)
}

func TestRun_RegistrationFailureLeavesQuotaUntouched(t *testing.T) {
	e := newEnv(&stubClient{name: "pncp"})
	e.st.createErr = eris.New("db down")
	o := New(e.deps)

	_, err := o.Run(context.Background(), "tok", params())
	require.Error(t, err)
	assert.Equal(t, model.ErrInternal, model.CodeOf(err))
	assert.Equal(t, 0, e.bill.consumed)
	assert.Empty(t, e.st.sessions)
}

func TestRun_QuotaExhaustedAfterRegistration(t *testing.T) {
	e := newEnv(&stubClient{name: "pncp"})
	e.bill.consumeErr = billing.ErrQuotaExhausted
	o := New(e.deps)

	_, err := o.Run(context.Background(), "tok", params())
	require.Error(t, err)
	assert.Equal(t, model.ErrQuotaExceeded, model.CodeOf(err))

	o.Drain(context.Background())
	sess := e.st.only()
	assert.Equal(t, model.StatusFailed, sess.Status)
	assert.Equal(t, model.ErrQuotaExceeded, sess.ErrorCode)
}

func TestRun_Unauthorized(t *testing.T) {
	e := newEnv(&stubClient{name: "pncp"})
	e.bill.authErr = billing.ErrUnauthorized
	o := New(e.deps)

	_, err := o.Run(context.Background(), "tok", params())
	require.Error(t, err)
	assert.True(t, eris.Is(err, billing.ErrUnauthorized))
	assert.Equal(t, 0, e.bill.consumed)
	assert.Empty(t, e.st.sessions)
}

func TestRun_UnknownSectorFailsInPrepare(t *testing.T) {
	e := newEnv(&stubClient{name: "pncp"})
	o := New(e.deps)

	p := params()
	p.Sector = "mineracao"
	_, err := o.Run(context.Background(), "tok", p)
	require.Error(t, err)
	assert.Equal(t, model.ErrValidation, model.CodeOf(err))

	// Quota was already spent and stays spent.
	assert.Equal(t, 1, e.bill.consumed)
	o.Drain(context.Background())
	sess := e.st.only()
	assert.Equal(t, model.StatusFailed, sess.Status)
	assert.Equal(t, model.StagePrepare, sess.PipelineStage)
}

func TestRun_LookbackBeyondPlanLimit(t *testing.T) {
	e := newEnv(&stubClient{name: "pncp"})
	e.bill.caps.MaxLookbackDays = 7
	o := New(e.deps)

	p := params()
	p.DateFrom = time.Now().AddDate(0, 0, -30).Format(dateLayout)
	_, err := o.Run(context.Background(), "tok", p)
	require.Error(t, err)
	assert.Equal(t, model.ErrValidation, model.CodeOf(err))
}

func TestRun_AllSourcesFailed(t *testing.T) {
	e := newEnv(
		&stubClient{name: "pncp", err: eris.New("down")},
		&stubClient{name: "comprasnet", err: eris.New("down")},
	)
	o := New(e.deps)

	result, err := o.Run(context.Background(), "tok", params())
	require.Error(t, err)
	assert.Equal(t, model.ErrAllSourcesFailed, model.CodeOf(err))
	assert.Equal(t, model.ResponseEmptyFailure, result.ResponseState)

	o.Drain(context.Background())
	sess := e.st.only()
	assert.Equal(t, model.StatusFailed, sess.Status)
	assert.Equal(t, model.ResponseEmptyFailure, sess.ResponseState)

	// The failed search is still pollable with its failure state.
	stored, ok := e.res.Get(result.SessionID)
	require.True(t, ok)
	assert.Equal(t, model.ResponseEmptyFailure, stored.ResponseState)
}

func TestRun_PartialFailureIsDegraded(t *testing.T) {
	e := newEnv(
		&stubClient{name: "pncp", items: relevantItems()},
		&stubClient{name: "comprasnet", err: eris.New("down")},
	)
	o := New(e.deps)

	result, err := o.Run(context.Background(), "tok", params())
	require.NoError(t, err)
	assert.Equal(t, model.ResponseDegraded, result.ResponseState)
	assert.Equal(t, []string{"pncp"}, result.Sources)
}

func TestRun_EmptyLiveResultIsCompleted(t *testing.T) {
	e := newEnv(&stubClient{name: "pncp", items: nil})
	o := New(e.deps)

	result, err := o.Run(context.Background(), "tok", params())
	require.NoError(t, err)
	assert.Equal(t, model.ResponseLive, result.ResponseState)
	assert.Empty(t, result.Items)

	o.Drain(context.Background())
	assert.Equal(t, model.StatusCompleted, e.st.only().Status)
}

func TestRun_CacheFirstWithDetachedRefresh(t *testing.T) {
	// The delay keeps the detached refresh in flight until the test
	// has subscribed to the event stream.
	live := &stubClient{name: "pncp", items: relevantItems(), delay: 200 * time.Millisecond}
	e := newEnv(live)
	o := New(e.deps)

	// Seed the fast tier with a still-valid entry for the same params.
	p := params()
	seeded := p
	seeded.Regions = []string{"SP"}
	seeded.DateTo = time.Now().Truncate(24 * time.Hour).Format(dateLayout)
	seeded.DateFrom = time.Now().Truncate(24 * time.Hour).AddDate(0, 0, -defaultLookbackDays).Format(dateLayout)
	key := cache.Key(seeded)
	e.tier.Put(context.Background(), key, &cache.Entry{
		Items:     relevantItems()[:1],
		Sources:   []string{"pncp"},
		FetchedAt: time.Now().Add(-2 * time.Minute),
	})
	e.tier.puts = 0

	result, err := o.Run(context.Background(), "tok", p)
	require.NoError(t, err)

	assert.Equal(t, model.ResponseCached, result.ResponseState)
	assert.True(t, result.LiveFetchInFlight)
	assert.InDelta(t, 120, result.CacheAgeSeconds, 5)

	ch, cancel := e.bus.Subscribe(result.SessionID)
	defer cancel()

	o.Drain(context.Background())
	// Detached refresh rewrote the cache entry.
	assert.GreaterOrEqual(t, e.tier.puts, 1)

	var sawRefresh bool
	deadline := time.After(2 * time.Second)
	for !sawRefresh {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatal("stream closed before refresh_available")
			}
			if ev.Type == progress.EventRefreshAvailable {
				sawRefresh = true
			}
		case <-deadline:
			t.Fatal("refresh_available never arrived")
		}
	}
}

// seedCache writes a two-minute-old entry under the key Run will
// derive for params().
func seedCache(t *testing.T, e *env, items []model.ProcurementItem) {
	t.Helper()
	seeded := params()
	seeded.Regions = []string{"SP"}
	seeded.DateTo = time.Now().Truncate(24 * time.Hour).Format(dateLayout)
	seeded.DateFrom = time.Now().Truncate(24 * time.Hour).AddDate(0, 0, -defaultLookbackDays).Format(dateLayout)
	e.tier.Put(context.Background(), cache.Key(seeded), &cache.Entry{
		Items:     items,
		Sources:   []string{"pncp"},
		FetchedAt: time.Now().Add(-2 * time.Minute),
	})
	e.tier.puts = 0
}

func TestRun_LiveFirstIgnoresFreshCacheEntry(t *testing.T) {
	e := newEnv(&stubClient{name: "pncp", items: relevantItems()})
	e.deps.CacheFirst = false
	o := New(e.deps)

	seedCache(t, e, relevantItems()[:1])

	result, err := o.Run(context.Background(), "tok", params())
	require.NoError(t, err)
	assert.Equal(t, model.ResponseLive, result.ResponseState)
	assert.False(t, result.LiveFetchInFlight)

	o.Drain(context.Background())
}

func TestRun_LiveFirstFallsBackToCacheOnTotalFailure(t *testing.T) {
	e := newEnv(&stubClient{name: "pncp", err: eris.New("upstream 503")})
	e.deps.CacheFirst = false
	o := New(e.deps)

	seedCache(t, e, relevantItems()[:1])

	result, err := o.Run(context.Background(), "tok", params())
	require.NoError(t, err)
	assert.Equal(t, model.ResponseCached, result.ResponseState)
	assert.False(t, result.LiveFetchInFlight, "no detached refresh when the live fetch already failed")
	assert.InDelta(t, 120, result.CacheAgeSeconds, 5)

	o.Drain(context.Background())
}

func TestRun_PanicStillReachesTerminalState(t *testing.T) {
	e := newEnv(&stubClient{name: "pncp"})
	e.deps.Profiles = nil // prepare will panic
	o := New(e.deps)

	_, err := o.Run(context.Background(), "tok", params())
	require.Error(t, err)
	assert.Equal(t, model.ErrInternal, model.CodeOf(err))

	o.Drain(context.Background())
	sess := e.st.only()
	assert.Equal(t, model.StatusFailed, sess.Status)
	assert.Equal(t, model.ErrInternal, sess.ErrorCode)
}

func TestRun_DeferredGeneration(t *testing.T) {
	e := newEnv(&stubClient{name: "pncp", items: relevantItems()})
	runner := jobs.NewRunner(jobs.Options{Workers: 1})
	runner.Start()
	defer runner.Shutdown(context.Background())

	e.deps.Runner = runner
	e.deps.Summarizer = report.NewSummarizer(&fakeLLM{reply: "Resumo executivo.", delay: 150 * time.Millisecond}, "m", 0, time.Second)
	e.deps.ExcelWriter = report.NewExcelWriter(t.TempDir())
	o := New(e.deps)

	result, err := o.Run(context.Background(), "tok", params())
	require.NoError(t, err)
	assert.Equal(t, artifactProcessing, result.LLMStatus)
	assert.Equal(t, artifactProcessing, result.ExcelStatus)

	ch, cancel := e.bus.Subscribe(result.SessionID)
	defer cancel()

	// The terminal event only fires once both jobs landed.
	var sawComplete bool
	deadline := time.After(3 * time.Second)
	for !sawComplete {
		select {
		case ev, ok := <-ch:
			if !ok {
				sawComplete = true
			} else if ev.Type == progress.EventComplete {
				sawComplete = true
			}
		case <-deadline:
			t.Fatal("complete event never arrived")
		}
	}

	o.Drain(context.Background())
	stored, ok := e.res.Get(result.SessionID)
	require.True(t, ok)
	assert.Equal(t, artifactOK, stored.LLMStatus)
	assert.Equal(t, artifactOK, stored.ExcelStatus)

	sess := e.st.only()
	assert.Equal(t, "Resumo executivo.", sess.Summary)
	assert.NotEmpty(t, sess.ExcelPath)
}

// With instant jobs the worker can finish before generate's own
// goroutine moves on; the final snapshot must still read ok, never a
// late "processing" overwriting the handler's verdict.
func TestRun_DeferredGenerationFastJobs(t *testing.T) {
	e := newEnv(&stubClient{name: "pncp", items: relevantItems()})
	runner := jobs.NewRunner(jobs.Options{Workers: 2})
	runner.Start()
	defer runner.Shutdown(context.Background())

	e.deps.Runner = runner
	e.deps.Summarizer = report.NewSummarizer(&fakeLLM{reply: "Resumo rápido."}, "m", 0, time.Second)
	e.deps.ExcelWriter = report.NewExcelWriter(t.TempDir())
	o := New(e.deps)

	result, err := o.Run(context.Background(), "tok", params())
	require.NoError(t, err)

	o.Drain(context.Background())
	require.Eventually(t, func() bool {
		stored, ok := e.res.Get(result.SessionID)
		return ok && stored.LLMStatus == artifactOK && stored.ExcelStatus == artifactOK
	}, 2*time.Second, 10*time.Millisecond, "artifact statuses stuck at %q/%q", result.LLMStatus, result.ExcelStatus)

	sess := e.st.only()
	assert.Equal(t, "Resumo rápido.", sess.Summary)
	assert.NotEmpty(t, sess.ExcelPath)
}

func TestRun_ExcelSkippedWithoutCapability(t *testing.T) {
	e := newEnv(&stubClient{name: "pncp", items: relevantItems()})
	e.bill.caps.ExcelAllowed = false
	e.deps.ExcelWriter = report.NewExcelWriter(t.TempDir())
	o := New(e.deps)

	result, err := o.Run(context.Background(), "tok", params())
	require.NoError(t, err)
	assert.Equal(t, artifactSkipped, result.ExcelStatus)
}

func TestRun_InlineGenerationFallback(t *testing.T) {
	e := newEnv(&stubClient{name: "pncp", items: relevantItems()})
	e.deps.Summarizer = report.NewSummarizer(&fakeLLM{reply: "Resumo inline."}, "m", 0, time.Second)
	e.deps.ExcelWriter = report.NewExcelWriter(t.TempDir())
	o := New(e.deps)

	result, err := o.Run(context.Background(), "tok", params())
	require.NoError(t, err)
	assert.Equal(t, artifactOK, result.LLMStatus)
	assert.Equal(t, artifactOK, result.ExcelStatus)

	o.Drain(context.Background())
	sess := e.st.only()
	assert.Equal(t, "Resumo inline.", sess.Summary)
	assert.NotEmpty(t, sess.ExcelPath)
}
