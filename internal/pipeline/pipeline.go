// Package pipeline drives one search from validation through persisted
// completion. The orchestrator sequences seven stages and owns failure
// handling; every stage transition goes through the session tracker and
// the progress bus.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/licitaradar/radar/internal/cache"
	"github.com/licitaradar/radar/internal/classify"
	"github.com/licitaradar/radar/internal/jobs"
	"github.com/licitaradar/radar/internal/metrics"
	"github.com/licitaradar/radar/internal/model"
	"github.com/licitaradar/radar/internal/progress"
	"github.com/licitaradar/radar/internal/report"
	"github.com/licitaradar/radar/internal/results"
	"github.com/licitaradar/radar/internal/session"
	"github.com/licitaradar/radar/internal/source"
	"github.com/licitaradar/radar/internal/store"
	"github.com/licitaradar/radar/pkg/billing"
)

// QuotaRefundOnFailure is a product decision, not a bug: a search that
// consumed quota keeps it consumed whatever happens downstream. Changing
// this requires compensating-transaction logic that does not exist.
const QuotaRefundOnFailure = false

const dateLayout = "2006-01-02"

// defaultLookbackDays is applied when the request carries no date range.
const defaultLookbackDays = 30

// Deps wires the orchestrator's collaborators. Runner, Summarizer,
// ExcelWriter and Metrics are optional; the rest are required.
type Deps struct {
	Store       store.Store
	Tracker     *session.Tracker
	Billing     billing.Service
	Clients     []source.Client
	Cascade     *cache.Cascade
	Classifier  *classify.Classifier
	Profiles    *classify.ProfileSet
	Bus         *progress.Bus
	Runner      *jobs.Runner
	Summarizer  *report.Summarizer
	ExcelWriter *report.ExcelWriter
	Results     *results.Store
	Metrics     *metrics.Metrics

	Deadline      time.Duration
	FetchDeadline time.Duration

	// CacheFirst serves any fresh cache entry immediately and refreshes
	// detached. When false the live fetch runs first and the cascade is
	// only consulted after total source failure.
	CacheFirst bool
}

// Orchestrator is the seven-stage search state machine.
type Orchestrator struct {
	deps    Deps
	logger  *zap.Logger
	nowFunc func() time.Time

	// pending maps a session id to its in-flight context so detached
	// job handlers can reach it.
	pending sync.Map

	detached sync.WaitGroup
}

func New(deps Deps) *Orchestrator {
	if deps.Deadline <= 0 {
		deps.Deadline = 60 * time.Second
	}
	if deps.FetchDeadline <= 0 {
		deps.FetchDeadline = 25 * time.Second
	}
	o := &Orchestrator{
		deps:    deps,
		logger:  zap.L().Named("pipeline"),
		nowFunc: time.Now,
	}
	if deps.Runner != nil {
		deps.Runner.Register(model.JobSummary, o.runSummaryJob)
		deps.Runner.Register(model.JobExcel, o.runExcelJob)
	}
	return o
}

// searchContext is the transient state of one pipeline execution. It is
// owned exclusively by that execution and dies with it.
type searchContext struct {
	// mu guards session and result once detached job handlers can
	// touch them.
	mu sync.Mutex

	session *model.SearchSession
	caps    model.PlanCapabilities
	profile classify.SectorProfile
	key     string

	raw    []model.ProcurementItem
	result model.SearchResult
	stage  model.Stage
	start  time.Time

	// async counts detached work (cache refresh, background jobs) that
	// must finish before the terminal complete event is published.
	async sync.WaitGroup
}

// Run executes a search end to end and returns its result. Generate
// work may still be in flight when Run returns; the result then carries
// "processing" sub-statuses and listeners get the terminal event once
// the deferred work lands.
func (o *Orchestrator) Run(ctx context.Context, token string, params model.SearchParams) (model.SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, o.deps.Deadline)
	defer cancel()

	sc := &searchContext{start: o.nowFunc()}

	err := o.runStages(ctx, sc, token, params)
	if err != nil {
		o.fail(sc, err)
		return sc.snapshot(), err
	}
	// Deferred artifact jobs may already be writing; copy under the
	// lock they take.
	return sc.snapshot(), nil
}

func (sc *searchContext) snapshot() model.SearchResult {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.result
}

func (o *Orchestrator) runStages(ctx context.Context, sc *searchContext, token string, params model.SearchParams) (err error) {
	// Any panic in a stage must still reach the failure path; a search
	// is never allowed to vanish with quota spent and no terminal row.
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("pipeline panic",
				zap.Any("panic", r),
				zap.String("stage", string(sc.stage)),
				zap.Stack("stack"))
			err = model.NewPipelineError(sc.stage, model.ErrInternal, eris.Errorf("pipeline: panic: %v", r))
		}
	}()

	type stageFn struct {
		name model.Stage
		fn   func(context.Context, *searchContext) error
	}
	stages := []stageFn{
		{model.StagePrepare, o.prepare},
		{model.StageExecute, o.execute},
		{model.StageFilter, o.filter},
		{model.StageEnrich, o.enrich},
		{model.StageGenerate, o.generate},
		{model.StagePersist, o.persist},
	}

	// Validate is special: it creates the session the other stages
	// report against.
	sc.stage = model.StageValidate
	if err := o.validate(ctx, sc, token, params); err != nil {
		return err
	}

	for _, st := range stages {
		sc.stage = st.name
		o.deps.Tracker.Update(sc.session.ID, model.StagePatch(st.name))
		o.deps.Bus.PublishStage(sc.session.ID, st.name)

		begin := o.nowFunc()
		err := st.fn(ctx, sc)
		if o.deps.Metrics != nil {
			o.deps.Metrics.ObserveStage(st.name, o.nowFunc().Sub(begin))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// validate authorizes the caller, registers the session row, and only
// then consumes quota. Registration failure aborts with quota untouched;
// quota failure after registration marks the session failed. This
// ordering is what keeps every spent credit traceable to a row.
func (o *Orchestrator) validate(ctx context.Context, sc *searchContext, token string, params model.SearchParams) error {
	caps, err := o.deps.Billing.Authorize(ctx, token)
	if err != nil {
		if eris.Is(err, billing.ErrUnauthorized) {
			return model.NewPipelineError(model.StageValidate, model.ErrValidation, err)
		}
		return model.NewPipelineError(model.StageValidate, model.ErrInternal, err)
	}
	sc.caps = caps

	sess, err := o.deps.Tracker.Register(ctx, caps.UserID, params)
	if err != nil {
		// No row, no quota spend.
		return model.NewPipelineError(model.StageValidate, model.ErrInternal, err)
	}
	sc.session = sess
	sc.result.SessionID = sess.ID
	o.deps.Bus.Open(sess.ID)
	o.pending.Store(sess.ID, sc)

	if err := o.deps.Billing.ConsumeQuota(ctx, caps.UserID); err != nil {
		if eris.Is(err, billing.ErrQuotaExhausted) {
			return model.NewPipelineError(model.StageValidate, model.ErrQuotaExceeded, err)
		}
		return model.NewPipelineError(model.StageValidate, model.ErrInternal, err)
	}
	return nil
}

// prepare resolves the sector profile, normalizes the date range and
// enforces plan limits. Everything here fails before any upstream I/O.
func (o *Orchestrator) prepare(ctx context.Context, sc *searchContext) error {
	params := sc.session.Params

	profile, ok := o.deps.Profiles.Get(params.Sector)
	if !ok {
		return model.NewPipelineError(model.StagePrepare, model.ErrValidation,
			eris.Errorf("pipeline: unknown sector %q", params.Sector))
	}
	sc.profile = profile

	today := o.nowFunc().Truncate(24 * time.Hour)
	if params.DateTo == "" {
		params.DateTo = today.Format(dateLayout)
	}
	if params.DateFrom == "" {
		params.DateFrom = today.AddDate(0, 0, -defaultLookbackDays).Format(dateLayout)
	}
	from, err := time.Parse(dateLayout, params.DateFrom)
	if err != nil {
		return model.NewPipelineError(model.StagePrepare, model.ErrValidation,
			eris.Wrapf(err, "pipeline: invalid date_from %q", params.DateFrom))
	}
	to, err := time.Parse(dateLayout, params.DateTo)
	if err != nil {
		return model.NewPipelineError(model.StagePrepare, model.ErrValidation,
			eris.Wrapf(err, "pipeline: invalid date_to %q", params.DateTo))
	}
	if to.Before(from) {
		return model.NewPipelineError(model.StagePrepare, model.ErrValidation,
			eris.New("pipeline: date_to before date_from"))
	}
	if sc.caps.MaxLookbackDays > 0 {
		lookback := int(today.Sub(from).Hours() / 24)
		if lookback > sc.caps.MaxLookbackDays {
			return model.NewPipelineError(model.StagePrepare, model.ErrValidation,
				eris.Errorf("pipeline: lookback %dd exceeds plan limit %dd", lookback, sc.caps.MaxLookbackDays))
		}
	}

	for i, r := range params.Regions {
		params.Regions[i] = normalizeRegion(r)
	}

	sc.session.Params = params
	sc.key = cache.Key(params)
	return nil
}

func normalizeRegion(r string) string {
	out := make([]byte, 0, len(r))
	for i := 0; i < len(r); i++ {
		c := r[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c != ' ' {
			out = append(out, c)
		}
	}
	return string(out)
}

// fail routes every failure through the same terminal path: patch the
// session, store the result for polling, publish the error event.
func (o *Orchestrator) fail(sc *searchContext, err error) {
	code := model.CodeOf(err)
	status := model.StatusFailed
	if code == model.ErrTimeout {
		status = model.StatusTimedOut
	}

	o.logger.Error("search failed",
		zap.String("stage", string(sc.stage)),
		zap.String("error_code", string(code)),
		zap.Error(err))

	if sc.session == nil {
		// Validate failed before registration: nothing persisted,
		// nothing consumed.
		return
	}

	if sc.result.ResponseState == "" {
		sc.result.ResponseState = model.ResponseEmptyFailure
	}

	now := o.nowFunc()
	duration := now.Sub(sc.start).Milliseconds()
	message := err.Error()
	patch := model.SessionPatch{
		Status:        &status,
		PipelineStage: &sc.stage,
		ErrorCode:     &code,
		ErrorMessage:  &message,
		ResponseState: &sc.result.ResponseState,
		CompletedAt:   &now,
		DurationMS:    &duration,
	}
	o.deps.Tracker.UpdateWait(context.Background(), sc.session.ID, patch)

	if o.deps.Results != nil {
		o.deps.Results.Put(sc.result)
	}
	if o.deps.Metrics != nil {
		o.deps.Metrics.SearchFinished(status)
	}
	o.deps.Bus.PublishError(sc.session.ID, code, message)
	o.pending.Delete(sc.session.ID)
}

// Drain waits for detached refreshes and tracker writes, bounded by ctx.
func (o *Orchestrator) Drain(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		o.detached.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	o.deps.Tracker.Drain(ctx)
}
