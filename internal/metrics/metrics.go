// Package metrics exposes Prometheus metrics for pipeline runs and the
// services they call.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nomadcgrang9/SellmeBuyme-sub004/internal/domain"
)

const (
	// Namespace is the namespace for all boardsynth metrics.
	Namespace = "boardsynth"

	// Subsystem is the subsystem for pipeline metrics.
	Subsystem = "pipeline"
)

// Metrics holds all pipeline collectors.
type Metrics struct {
	// Run metrics
	RunsTotal        *prometheus.CounterVec
	RunsInFlight     prometheus.Gauge
	RunDuration      prometheus.Histogram
	StaticAttempts   prometheus.Histogram
	LiveAttempts     prometheus.Histogram
	RecordsCollected prometheus.Histogram

	// State machine
	TransitionsTotal *prometheus.CounterVec

	// Generative service
	LLMCallsTotal   *prometheus.CounterVec
	LLMCallDuration *prometheus.HistogramVec
}

// New creates and registers all metrics on reg, or the default registerer
// when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	m := &Metrics{}

	m.initRunMetrics(factory)
	m.initLLMMetrics(factory)

	return m
}

func (m *Metrics) initRunMetrics(factory promauto.Factory) {
	m.RunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "runs_total",
			Help:      "Total number of finished pipeline runs by terminal state",
		},
		[]string{"outcome"},
	)

	m.RunsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "runs_in_flight",
			Help:      "Number of pipeline runs currently executing",
		},
	)

	m.RunDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a pipeline run",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		},
	)

	attemptBuckets := []float64{0, 1, 2, 3, 4, 5}
	m.StaticAttempts = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "static_attempts",
			Help:      "Static repair cycles used per run",
			Buckets:   attemptBuckets,
		},
	)
	m.LiveAttempts = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "live_attempts",
			Help:      "Live repair cycles used per run",
			Buckets:   attemptBuckets,
		},
	)

	m.RecordsCollected = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "records_collected",
			Help:      "Records collected by the final live attempt of a run",
			Buckets:   prometheus.LinearBuckets(0, 5, 6),
		},
	)

	m.TransitionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "transitions_total",
			Help:      "State machine transitions",
		},
		[]string{"from", "to"},
	)
}

func (m *Metrics) initLLMMetrics(factory promauto.Factory) {
	m.LLMCallsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "llm_calls_total",
			Help:      "Generative service calls by provider and result",
		},
		[]string{"provider", "result"},
	)

	m.LLMCallDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "llm_call_duration_seconds",
			Help:      "Latency of generative service calls including retries",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		},
		[]string{"provider"},
	)
}

// RunStarted marks a run as in flight.
func (m *Metrics) RunStarted() {
	m.RunsInFlight.Inc()
}

// RunFinished records a terminal run.
func (m *Metrics) RunFinished(state domain.State, static, live, records int, elapsed time.Duration) {
	m.RunsInFlight.Dec()
	m.RunsTotal.WithLabelValues(string(state)).Inc()
	m.StaticAttempts.Observe(float64(static))
	m.LiveAttempts.Observe(float64(live))
	m.RecordsCollected.Observe(float64(records))
	m.RunDuration.Observe(elapsed.Seconds())
}

// Transition counts one state change.
func (m *Metrics) Transition(from, to domain.State) {
	m.TransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
}

// LLMCall records one generative service call.
func (m *Metrics) LLMCall(provider, result string, elapsed time.Duration) {
	m.LLMCallsTotal.WithLabelValues(provider, result).Inc()
	m.LLMCallDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}
