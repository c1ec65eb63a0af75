package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/tokenrisk/internal/analysis/external"
	"github.com/sawpanic/tokenrisk/internal/domain/token"
	"github.com/sawpanic/tokenrisk/internal/engine"
	"github.com/sawpanic/tokenrisk/internal/resilience"
)

var (
	_ engine.Recorder          = (*MetricsRegistry)(nil)
	_ external.Recorder        = (*MetricsRegistry)(nil)
	_ resilience.StateListener = (*MetricsRegistry)(nil).BreakerChanged
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	m := &io_prometheus_client.Metric{}
	require.NoError(t, (<-ch).Write(m))
	if m.GetCounter() != nil {
		return m.GetCounter().GetValue()
	}
	return m.GetGauge().GetValue()
}

func TestRecorderMethods(t *testing.T) {
	m := NewMetricsRegistry(prometheus.NewRegistry())

	m.AnalysisCompleted(engine.ResultComputed, 2*time.Second)
	m.AnalysisCompleted(engine.ResultComputed, time.Second)
	m.AnalysisCompleted(engine.ResultCached, time.Millisecond)
	m.CacheLookup(engine.TierFast, engine.LookupHit)
	m.ProviderResult(token.ProviderBirdeye, token.StatusTimeout, 15*time.Second)

	assert.Equal(t, 2.0, counterValue(t, m.Analyses.WithLabelValues(engine.ResultComputed)))
	assert.Equal(t, 1.0, counterValue(t, m.Analyses.WithLabelValues(engine.ResultCached)))
	assert.Equal(t, 1.0, counterValue(t, m.CacheLookups.WithLabelValues(engine.TierFast, engine.LookupHit)))
	assert.Equal(t, 1.0, counterValue(t, m.ProviderRequests.WithLabelValues(token.ProviderBirdeye, "timeout")))
}

func TestBreakerChanged(t *testing.T) {
	m := NewMetricsRegistry(prometheus.NewRegistry())

	m.BreakerChanged(token.ProviderJupiter, resilience.StateClosed, resilience.StateOpen)
	assert.Equal(t, 2.0, counterValue(t, m.BreakerState.WithLabelValues(token.ProviderJupiter)))

	m.BreakerChanged(token.ProviderJupiter, resilience.StateOpen, resilience.StateHalfOpen)
	assert.Equal(t, 1.0, counterValue(t, m.BreakerState.WithLabelValues(token.ProviderJupiter)))
	assert.Equal(t, 1.0, counterValue(t, m.BreakerTransitions.WithLabelValues(token.ProviderJupiter, "open")))
}

func TestMetricsHandlerServesOwnRegistry(t *testing.T) {
	m := NewMetricsRegistry(prometheus.NewRegistry())
	m.AnalysisCompleted(engine.ResultFallback, time.Second)
	m.StreamOpened()

	rec := httptest.NewRecorder()
	m.MetricsHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	assert.Contains(t, body, `tokenrisk_analyses_total{result="fallback"} 1`)
	assert.Contains(t, body, "tokenrisk_active_streams 1")
}
