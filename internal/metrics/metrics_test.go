package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licitaradar/radar/internal/model"
)

func TestMetrics_Exposition(t *testing.T) {
	m := New()
	m.SearchFinished(model.StatusCompleted)
	m.SearchFinished(model.StatusCompleted)
	m.ObserveStage(model.StageExecute, 250*time.Millisecond)
	m.CacheHit("redis")
	m.CacheMiss()
	m.SourceFailed("gazette")
	m.BreakerState("gazette", true)
	m.JobFinished(model.JobExcel, "ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `radar_searches_total{outcome="completed"} 2`)
	assert.Contains(t, body, `radar_cache_tier_hits_total{tier="redis"} 1`)
	assert.Contains(t, body, `radar_cache_misses_total 1`)
	assert.Contains(t, body, `radar_source_failures_total{source="gazette"} 1`)
	assert.Contains(t, body, `radar_source_breaker_open{source="gazette"} 1`)
	assert.Contains(t, body, `radar_jobs_total{result="ok",type="excel"} 1`)
	assert.Contains(t, body, `radar_stage_duration_seconds_count{stage="execute"} 1`)
}

func TestMetrics_BreakerGaugeResets(t *testing.T) {
	m := New()
	m.BreakerState("pncp", true)
	m.BreakerState("pncp", false)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `radar_source_breaker_open{source="pncp"} 0`)
}
