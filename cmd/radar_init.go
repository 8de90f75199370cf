package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/licitaradar/radar/internal/cache"
	"github.com/licitaradar/radar/internal/classify"
	"github.com/licitaradar/radar/internal/jobs"
	"github.com/licitaradar/radar/internal/metrics"
	"github.com/licitaradar/radar/internal/model"
	"github.com/licitaradar/radar/internal/pipeline"
	"github.com/licitaradar/radar/internal/progress"
	"github.com/licitaradar/radar/internal/report"
	"github.com/licitaradar/radar/internal/results"
	"github.com/licitaradar/radar/internal/session"
	"github.com/licitaradar/radar/internal/source"
	"github.com/licitaradar/radar/internal/store"
	"github.com/licitaradar/radar/pkg/anthropic"
	"github.com/licitaradar/radar/pkg/billing"
)

// radarEnv holds every wired component of the search pipeline. Runner and
// Metrics are nil when the env was built for a one-shot CLI run.
type radarEnv struct {
	Store        store.Store
	Tracker      *session.Tracker
	Bus          *progress.Bus
	Results      *results.Store
	Runner       *jobs.Runner
	Metrics      *metrics.Metrics
	Orchestrator *pipeline.Orchestrator
	Billing      billing.Service
	Local        *cache.LocalTier
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func initSources() []source.Client {
	opts := source.Options{
		RequestTimeout:   cfg.Sources.RequestTimeout,
		BreakerThreshold: cfg.Sources.BreakerThreshold,
		BreakerCooldown:  cfg.Sources.BreakerCooldown,
		RatePerSecond:    cfg.Sources.RatePerSecond,
	}

	var clients []source.Client
	if cfg.Sources.PNCP.Enabled {
		clients = append(clients, source.NewPNCPClient(
			cfg.Sources.PNCP.BaseURL, cfg.Sources.PNCP.PageSize, cfg.Sources.PNCP.MaxPages, opts))
	}
	if cfg.Sources.ComprasNet.Enabled {
		clients = append(clients, source.NewComprasNetClient(cfg.Sources.ComprasNet.BaseURL, opts))
	}
	if cfg.Sources.Gazette.Enabled {
		g := cfg.Sources.Gazette
		clients = append(clients, source.NewGazetteClient(g.Addr, g.User, g.Password, g.Dir, opts))
	}
	return clients
}

// initEnv wires the full pipeline. background enables the job runner and
// metrics registry; the one-shot search command runs without them so
// summary and spreadsheet generation happen inline.
func initEnv(ctx context.Context, b billing.Service, background bool) (*radarEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	local, err := cache.NewLocalTier(cfg.Cache.LocalDir, cfg.Cache.LocalTTL)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	var tiers []cache.Tier
	if cfg.Redis.Addr != "" {
		rc := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		tiers = append(tiers, cache.NewRedisTier(rc, cfg.Cache.FastTTL))
		zap.L().Info("fast cache tier enabled", zap.String("addr", cfg.Redis.Addr))
	} else {
		zap.L().Debug("RADAR_REDIS_ADDR not set, fast cache tier disabled")
	}
	tiers = append(tiers, cache.NewDurableTier(st, cfg.Cache.DurableTTL), local)

	profiles, err := classify.LoadProfiles(cfg.Classify.ProfilesPath)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	var (
		arbiter    classify.Arbiter
		summarizer *report.Summarizer
	)
	if cfg.LLM.Key != "" {
		ac := anthropic.NewClient(cfg.LLM.Key)
		arbiter = classify.NewLLMArbiter(ac, cfg.LLM.Model, cfg.LLM.MaxTokens, cfg.LLM.Timeout)
		summarizer = report.NewSummarizer(ac, cfg.LLM.Model, cfg.LLM.MaxTokens, cfg.LLM.Timeout)
	} else {
		zap.L().Warn("RADAR_LLM_KEY not set, arbitration and summaries disabled")
	}

	classifier := classify.NewClassifier(profiles, arbiter, classify.Options{
		ProximityWindow: cfg.Classify.ProximityWindow,
		AcceptDensity:   cfg.Classify.AcceptDensity,
		StandardDensity: cfg.Classify.StandardDensity,
		MinDensity:      cfg.Classify.MinDensity,
		MaxConcurrency:  cfg.Classify.MaxConcurrency,
	})

	env := &radarEnv{
		Store:   st,
		Tracker: session.NewTracker(st),
		Bus:     progress.NewBus(cfg.Pipeline.MaxPartialEvents),
		Results: results.NewStore(cfg.Pipeline.ResultsRetention),
		Billing: b,
		Local:   local,
	}

	if background {
		env.Metrics = metrics.New()
		env.Runner = jobs.NewRunner(jobs.Options{
			Workers:    cfg.Jobs.Workers,
			JobTimeout: cfg.Jobs.JobTimeout,
			OnFinished: func(job model.Job, err error) {
				result := "ok"
				if err != nil {
					result = "error"
				}
				env.Metrics.JobFinished(job.Type, result)
			},
		})
	}

	env.Orchestrator = pipeline.New(pipeline.Deps{
		Store:         st,
		Tracker:       env.Tracker,
		Billing:       b,
		Clients:       initSources(),
		Cascade:       cache.NewCascade(tiers...),
		Classifier:    classifier,
		Profiles:      profiles,
		Bus:           env.Bus,
		Runner:        env.Runner,
		Summarizer:    summarizer,
		ExcelWriter:   report.NewExcelWriter(cfg.Report.ArtifactDir),
		Results:       env.Results,
		Metrics:       env.Metrics,
		Deadline:      cfg.Pipeline.Deadline,
		FetchDeadline: cfg.Sources.FetchDeadline,
		CacheFirst:    cfg.Cache.CacheFirst,
	})

	if env.Runner != nil {
		env.Runner.Start()
	}

	return env, nil
}

// Close tears the env down in dependency order: finish queued jobs, wait
// for detached work, mark anything still stuck, then close the store.
func (e *radarEnv) Close() {
	if e.Runner != nil {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Jobs.ShutdownTimeout)
		if err := e.Runner.Shutdown(ctx); err != nil {
			zap.L().Warn("job runner shutdown incomplete", zap.Error(err))
		}
		cancel()
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	e.Orchestrator.Drain(drainCtx)
	cancel()

	e.Tracker.Sweep(context.Background(), 5*time.Second, "interrupted by shutdown")

	if err := e.Store.Close(); err != nil {
		zap.L().Warn("store close failed", zap.Error(err))
	}
}
