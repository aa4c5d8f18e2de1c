// Package metrics exposes Prometheus collectors for the agent loop, model and
// tool calls, and active streams. All recording methods are safe on a nil
// *Metrics so components can take metrics as an optional dependency.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	LoopRunsTotal       *prometheus.CounterVec
	LoopIterations      prometheus.Histogram
	ModelCallsTotal     *prometheus.CounterVec
	ModelCallDuration   *prometheus.HistogramVec
	ToolCallsTotal      *prometheus.CounterVec
	ToolCallDuration    *prometheus.HistogramVec
	StreamsActive       prometheus.Gauge
	ThreadBusyRejected  prometheus.Counter
	ThreadsCreatedTotal prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		LoopRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentloop_runs_total",
				Help: "Total number of loop executions by outcome",
			},
			[]string{"outcome"},
		),
		LoopIterations: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "agentloop_run_iterations",
				Help:    "Model invocations per loop execution",
				Buckets: []float64{1, 2, 3, 5, 8, 13, 25},
			},
		),
		ModelCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentloop_model_calls_total",
				Help: "Total number of model invocations",
			},
			[]string{"provider", "outcome"},
		),
		ModelCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentloop_model_call_duration_seconds",
				Help:    "Duration of model invocations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		ToolCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentloop_tool_calls_total",
				Help: "Total number of tool invocations",
			},
			[]string{"tool_name", "status"},
		),
		ToolCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentloop_tool_call_duration_seconds",
				Help:    "Duration of tool invocations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool_name"},
		),
		StreamsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentloop_streams_active",
				Help: "Number of event streams currently open",
			},
		),
		ThreadBusyRejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "agentloop_thread_busy_total",
				Help: "Requests rejected because their thread was held by another run",
			},
		),
		ThreadsCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "agentloop_threads_created_total",
				Help: "Total number of threads created",
			},
		),
	}

	registry.MustRegister(
		m.LoopRunsTotal,
		m.LoopIterations,
		m.ModelCallsTotal,
		m.ModelCallDuration,
		m.ToolCallsTotal,
		m.ToolCallDuration,
		m.StreamsActive,
		m.ThreadBusyRejected,
		m.ThreadsCreatedTotal,
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns an HTTP handler serving the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// RecordRun records a finished loop execution.
func (m *Metrics) RecordRun(outcome string, iterations int) {
	if m == nil {
		return
	}
	m.LoopRunsTotal.WithLabelValues(outcome).Inc()
	m.LoopIterations.Observe(float64(iterations))
}

// RecordModelCall records one model invocation.
func (m *Metrics) RecordModelCall(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ModelCallsTotal.WithLabelValues(provider, outcome).Inc()
	m.ModelCallDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordToolCall records one tool invocation.
func (m *Metrics) RecordToolCall(name string, isError bool, d time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if isError {
		status = "error"
	}
	m.ToolCallsTotal.WithLabelValues(name, status).Inc()
	m.ToolCallDuration.WithLabelValues(name).Observe(d.Seconds())
}

// StreamOpened increments the active stream gauge.
func (m *Metrics) StreamOpened() {
	if m == nil {
		return
	}
	m.StreamsActive.Inc()
}

// StreamClosed decrements the active stream gauge.
func (m *Metrics) StreamClosed() {
	if m == nil {
		return
	}
	m.StreamsActive.Dec()
}

// RecordThreadBusy counts a request rejected with a busy thread.
func (m *Metrics) RecordThreadBusy() {
	if m == nil {
		return
	}
	m.ThreadBusyRejected.Inc()
}

// RecordThreadCreated counts a newly created thread.
func (m *Metrics) RecordThreadCreated() {
	if m == nil {
		return
	}
	m.ThreadsCreatedTotal.Inc()
}
