// Package metrics exposes Prometheus instrumentation for the analysis engine,
// the provider aggregator and the circuit breakers.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/tokenrisk/internal/domain/token"
	"github.com/sawpanic/tokenrisk/internal/engine"
	"github.com/sawpanic/tokenrisk/internal/resilience"
)

const namespace = "tokenrisk"

// MetricsRegistry holds all Prometheus metrics for the service
type MetricsRegistry struct {
	// Analysis outcomes
	Analyses         *prometheus.CounterVec
	AnalysisDuration *prometheus.HistogramVec
	PhaseDuration    *prometheus.HistogramVec

	// Cache tiers
	CacheLookups *prometheus.CounterVec

	// Providers
	ProviderRequests *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec

	// Breakers
	BreakerState       *prometheus.GaugeVec
	BreakerTransitions *prometheus.CounterVec

	// WebSocket sessions
	ActiveStreams prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewMetricsRegistry creates and registers every metric with reg. A nil reg
// uses the default Prometheus registry.
func NewMetricsRegistry(reg prometheus.Registerer) *MetricsRegistry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &MetricsRegistry{
		Analyses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analyses_total",
				Help:      "Total token analyses by how the result was served",
			},
			[]string{"result"},
		),

		AnalysisDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "analysis_duration_seconds",
				Help:      "End-to-end analysis latency in seconds",
				Buckets:   []float64{0.005, 0.05, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
			},
			[]string{"result"},
		),

		PhaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "phase_duration_seconds",
				Help:      "Duration of each analysis phase in seconds",
				Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
			},
			[]string{"phase"},
		),

		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Cache lookups by tier and result",
			},
			[]string{"tier", "result"},
		),

		ProviderRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_requests_total",
				Help:      "External provider calls by provider and outcome",
			},
			[]string{"provider", "result"},
		),

		ProviderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_duration_seconds",
				Help:      "External provider call latency in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
			},
			[]string{"provider"},
		),

		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),

		BreakerTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_transitions_total",
				Help:      "Circuit breaker transitions by target state",
			},
			[]string{"name", "to"},
		),

		ActiveStreams: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_streams",
				Help:      "Open WebSocket analysis streams",
			},
		),
	}

	reg.MustRegister(
		m.Analyses,
		m.AnalysisDuration,
		m.PhaseDuration,
		m.CacheLookups,
		m.ProviderRequests,
		m.ProviderDuration,
		m.BreakerState,
		m.BreakerTransitions,
		m.ActiveStreams,
	)

	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}
	return m
}

// AnalysisCompleted implements engine.Recorder.
func (m *MetricsRegistry) AnalysisCompleted(result string, elapsed time.Duration) {
	m.Analyses.WithLabelValues(result).Inc()
	m.AnalysisDuration.WithLabelValues(result).Observe(elapsed.Seconds())
}

// CacheLookup implements engine.Recorder.
func (m *MetricsRegistry) CacheLookup(tier, result string) {
	m.CacheLookups.WithLabelValues(tier, result).Inc()
}

// PhaseCompleted implements engine.Recorder.
func (m *MetricsRegistry) PhaseCompleted(phase engine.Phase, elapsed time.Duration) {
	m.PhaseDuration.WithLabelValues(string(phase)).Observe(elapsed.Seconds())
}

// ProviderResult implements external.Recorder.
func (m *MetricsRegistry) ProviderResult(provider string, status token.ProviderStatus, elapsed time.Duration) {
	m.ProviderRequests.WithLabelValues(provider, string(status)).Inc()
	m.ProviderDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// BreakerChanged is a resilience.StateListener.
func (m *MetricsRegistry) BreakerChanged(name string, from, to resilience.State) {
	m.BreakerState.WithLabelValues(name).Set(stateToGaugeValue(to))
	m.BreakerTransitions.WithLabelValues(name, string(to)).Inc()

	log.Debug().
		Str("breaker", name).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("Breaker transition recorded")
}

// StreamOpened and StreamClosed track WebSocket sessions.
func (m *MetricsRegistry) StreamOpened() { m.ActiveStreams.Inc() }
func (m *MetricsRegistry) StreamClosed() { m.ActiveStreams.Dec() }

// MetricsHandler returns an HTTP handler for the registry's metrics
func (m *MetricsRegistry) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func stateToGaugeValue(s resilience.State) float64 {
	switch s {
	case resilience.StateHalfOpen:
		return 1
	case resilience.StateOpen:
		return 2
	default:
		return 0
	}
}
