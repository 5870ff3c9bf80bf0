// Package metrics holds the Prometheus instrumentation for the service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	registry *prometheus.Registry

	// Query metrics
	QueriesTotal    *prometheus.CounterVec
	QueryDuration   prometheus.Histogram
	FallbackAnswers prometheus.Counter

	// Tool metrics
	ToolInvocationsTotal *prometheus.CounterVec
	ToolDuration         *prometheus.HistogramVec

	// Session metrics
	SessionsCreated prometheus.Counter
	SessionsCleared prometheus.Counter

	// Catalog metrics
	CoursesIndexed prometheus.Gauge
	ChunksIngested prometheus.Counter
}

// New creates and registers all metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queries_total",
				Help: "Total number of user queries",
			},
			[]string{"status"},
		),
		QueryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "query_duration_seconds",
				Help:    "End to end duration of user queries in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		FallbackAnswers: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fallback_answers_total",
				Help: "Total number of queries answered with the fallback text",
			},
		),

		ToolInvocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_invocations_total",
				Help: "Total number of tool invocations",
			},
			[]string{"tool_name", "status"},
		),
		ToolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tool_duration_seconds",
				Help:    "Duration of tool invocations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool_name"},
		),

		SessionsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sessions_created_total",
				Help: "Total number of sessions created",
			},
		),
		SessionsCleared: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sessions_cleared_total",
				Help: "Total number of sessions cleared",
			},
		),

		CoursesIndexed: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "courses_indexed",
				Help: "Number of courses currently indexed",
			},
		),
		ChunksIngested: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chunks_ingested_total",
				Help: "Total number of content chunks ingested",
			},
		),
	}

	m.registerMetrics()

	return m
}

func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.QueriesTotal)
	m.registry.MustRegister(m.QueryDuration)
	m.registry.MustRegister(m.FallbackAnswers)

	m.registry.MustRegister(m.ToolInvocationsTotal)
	m.registry.MustRegister(m.ToolDuration)

	m.registry.MustRegister(m.SessionsCreated)
	m.registry.MustRegister(m.SessionsCleared)

	m.registry.MustRegister(m.CoursesIndexed)
	m.registry.MustRegister(m.ChunksIngested)
}

// RecordToolInvocation implements the registry's invocation recorder.
func (m *Metrics) RecordToolInvocation(name string, success bool, elapsed time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.ToolInvocationsTotal.WithLabelValues(name, status).Inc()
	m.ToolDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}

// RecordQuery records the outcome and duration of one user query.
func (m *Metrics) RecordQuery(success bool, elapsed time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.QueriesTotal.WithLabelValues(status).Inc()
	m.QueryDuration.Observe(elapsed.Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
