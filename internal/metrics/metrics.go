// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "willow_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "willow_http_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "route"},
	)

	// TurnsTotal counts handled turns by the path that produced the reply.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "willow_turns_total",
			Help: "Total number of dialogue turns by reply path",
		},
		[]string{"path"},
	)

	BackendLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "willow_backend_latency_seconds",
			Help:    "Generative backend latency in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		},
		[]string{"provider", "outcome"},
	)

	SynthesisFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "willow_synthesis_failures_total",
			Help: "Total number of failed speech syntheses",
		},
	)

	LeadsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "willow_leads_completed_total",
			Help: "Total number of extracted lead summaries by outcome",
		},
		[]string{"outcome"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "willow_active_sessions",
			Help: "Number of live dialogue sessions",
		},
	)
)
