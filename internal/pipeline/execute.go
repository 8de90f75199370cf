package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/licitaradar/radar/internal/cache"
	"github.com/licitaradar/radar/internal/model"
	"github.com/licitaradar/radar/internal/source"
)

// execute fetches raw items. In cache-first mode a valid entry at any
// tier is served immediately and the live fetch runs detached; in
// live-first mode the cascade is only consulted after every source
// failed.
func (o *Orchestrator) execute(ctx context.Context, sc *searchContext) error {
	if o.deps.CacheFirst {
		if hit := o.deps.Cascade.Get(ctx, sc.key); hit != nil {
			o.serveCached(sc, hit)
			sc.result.LiveFetchInFlight = true
			o.refreshDetached(sc)
			return nil
		}
		if o.deps.Metrics != nil {
			o.deps.Metrics.CacheMiss()
		}
	}

	cons, err := o.consolidator(sc.session.ID).Fetch(ctx, sc.session.Params)
	if err != nil {
		if ctx.Err() != nil {
			return model.NewPipelineError(model.StageExecute, model.ErrTimeout, err)
		}
		o.recordFailures(cons)
		// Cache-first already established the cascade was empty, so a
		// total source failure there is a verified outage. Live-first
		// still has the cascade to fall back on.
		if !o.deps.CacheFirst {
			if hit := o.deps.Cascade.Get(ctx, sc.key); hit != nil {
				o.serveCached(sc, hit)
				return nil
			}
			if o.deps.Metrics != nil {
				o.deps.Metrics.CacheMiss()
			}
		}
		return model.NewPipelineError(model.StageExecute, model.ErrAllSourcesFailed, err)
	}
	o.recordFailures(cons)

	sc.raw = cons.Items
	sc.result.Sources = cons.Succeeded
	if cons.Degraded() {
		sc.result.ResponseState = model.ResponseDegraded
	} else {
		sc.result.ResponseState = model.ResponseLive
	}

	o.deps.Cascade.Put(ctx, sc.key, &cache.Entry{
		Items:     cons.Items,
		Sources:   cons.Succeeded,
		FetchedAt: o.nowFunc(),
	})
	return nil
}

func (o *Orchestrator) serveCached(sc *searchContext, hit *cache.Hit) {
	if o.deps.Metrics != nil {
		o.deps.Metrics.CacheHit(hit.Tier)
	}
	sc.raw = hit.Entry.Items
	sc.result.ResponseState = model.ResponseCached
	sc.result.Sources = hit.Entry.Sources
	sc.result.CacheAgeSeconds = int64(hit.Age.Seconds())
}

// consolidator builds a per-search fan-out so partial-result events
// carry the right session.
func (o *Orchestrator) consolidator(sessionID string) *source.Consolidator {
	cons := source.NewConsolidator(o.deps.FetchDeadline, o.deps.Clients...)
	cons.OnPartial = func(src string, items []model.ProcurementItem) {
		o.deps.Bus.PublishPartial(sessionID, src, len(items))
	}
	return cons
}

func (o *Orchestrator) recordFailures(cons *source.Consolidated) {
	if o.deps.Metrics == nil || cons == nil {
		return
	}
	for src := range cons.Failed {
		o.deps.Metrics.SourceFailed(src)
	}
}

// refreshDetached runs the live fetch behind a cache-first response.
// Its completion only publishes refresh_available; the response already
// sent is never mutated.
func (o *Orchestrator) refreshDetached(sc *searchContext) {
	sessionID := sc.session.ID
	key := sc.key
	params := sc.session.Params

	o.detached.Add(1)
	sc.async.Add(1)
	go func() {
		defer o.detached.Done()
		defer sc.async.Done()

		ctx, cancel := context.WithTimeout(context.Background(), o.deps.FetchDeadline+5*time.Second)
		defer cancel()

		cons, err := o.consolidator(sessionID).Fetch(ctx, params)
		if err != nil {
			o.logger.Warn("detached refresh failed",
				zap.String("session_id", sessionID),
				zap.Error(err))
			return
		}
		o.deps.Cascade.Put(ctx, key, &cache.Entry{
			Items:     cons.Items,
			Sources:   cons.Succeeded,
			FetchedAt: o.nowFunc(),
		})
		o.deps.Bus.PublishRefreshAvailable(sessionID)
	}()
}

func (o *Orchestrator) loadContext(sessionID string) (*searchContext, bool) {
	v, ok := o.pending.Load(sessionID)
	if !ok {
		return nil, false
	}
	return v.(*searchContext), true
}

// filter runs the relevance classifier over the raw set.
func (o *Orchestrator) filter(ctx context.Context, sc *searchContext) error {
	total := len(sc.raw)
	o.deps.Tracker.Update(sc.session.ID, model.SessionPatch{ItemsTotal: &total})

	kept, degraded, err := o.deps.Classifier.ClassifyAll(ctx, sc.raw, sc.session.Params.Sector)
	if err != nil {
		if ctx.Err() != nil {
			return model.NewPipelineError(model.StageFilter, model.ErrTimeout, err)
		}
		return model.NewPipelineError(model.StageFilter, model.ErrInternal, err)
	}
	sc.result.Items = kept
	sc.result.LLMStatus = artifactOK
	if degraded {
		sc.result.LLMStatus = artifactDegraded
	}
	return nil
}

// enrich aggregates statistics over the filtered set.
func (o *Orchestrator) enrich(_ context.Context, sc *searchContext) error {
	stats := &model.SearchStats{
		ByRegion:   map[string]int{},
		ByModality: map[string]int{},
		BySource:   map[string]int{},
	}
	for _, it := range sc.result.Items {
		stats.TotalValueBRL += it.ValueBRL
		if it.Region != "" {
			stats.ByRegion[it.Region]++
		}
		if it.Modality != "" {
			stats.ByModality[it.Modality]++
		}
		stats.BySource[it.Source]++
	}
	sc.result.Stats = stats
	return nil
}
