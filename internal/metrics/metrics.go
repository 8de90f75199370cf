// Package metrics exposes the service's prometheus collectors on a
// private registry served at /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/licitaradar/radar/internal/model"
)

// Metrics bundles every collector the service records into.
type Metrics struct {
	registry *prometheus.Registry

	searchesTotal  *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	cacheTierHits  *prometheus.CounterVec
	cacheMisses    prometheus.Counter
	sourceFailures *prometheus.CounterVec
	breakerOpen    *prometheus.GaugeVec
	jobsTotal      *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.searchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "radar",
		Name:      "searches_total",
		Help:      "Search sessions by terminal outcome.",
	}, []string{"outcome"})

	m.stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "radar",
		Name:      "stage_duration_seconds",
		Help:      "Wall time spent in each pipeline stage.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"stage"})

	m.cacheTierHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "radar",
		Name:      "cache_tier_hits_total",
		Help:      "Cache hits by serving tier.",
	}, []string{"tier"})

	m.cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "radar",
		Name:      "cache_misses_total",
		Help:      "Lookups that missed every cache tier.",
	})

	m.sourceFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "radar",
		Name:      "source_failures_total",
		Help:      "Failed fetches by procurement source.",
	}, []string{"source"})

	m.breakerOpen = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "radar",
		Name:      "source_breaker_open",
		Help:      "1 while the source's circuit breaker is open.",
	}, []string{"source"})

	m.jobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "radar",
		Name:      "jobs_total",
		Help:      "Background jobs by type and result.",
	}, []string{"type", "result"})

	m.registry.MustRegister(
		m.searchesTotal,
		m.stageDuration,
		m.cacheTierHits,
		m.cacheMisses,
		m.sourceFailures,
		m.breakerOpen,
		m.jobsTotal,
	)
	return m
}

// Handler serves the registry in prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SearchFinished(outcome model.SearchStatus) {
	m.searchesTotal.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) ObserveStage(stage model.Stage, d time.Duration) {
	m.stageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
}

func (m *Metrics) CacheHit(tier string) {
	m.cacheTierHits.WithLabelValues(tier).Inc()
}

func (m *Metrics) CacheMiss() {
	m.cacheMisses.Inc()
}

func (m *Metrics) SourceFailed(source string) {
	m.sourceFailures.WithLabelValues(source).Inc()
}

func (m *Metrics) BreakerState(source string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	m.breakerOpen.WithLabelValues(source).Set(v)
}

func (m *Metrics) JobFinished(jobType model.JobType, result string) {
	m.jobsTotal.WithLabelValues(string(jobType), result).Inc()
}
