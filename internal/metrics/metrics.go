// Package metrics holds the relay's prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Execution outcomes.
const (
	OutcomeOK              = "ok"
	OutcomeClientError     = "client_error"
	OutcomeDownstreamError = "downstream_error"
)

var (
	// ExecutionsTotal counts /execute calls per tool and outcome.
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_executions_total",
			Help: "Tool executions handled by the relay.",
		},
		[]string{"tool", "outcome"},
	)

	// ExecutionDuration observes time spent inside a tool, downstream call included.
	ExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_execution_duration_seconds",
			Help:    "Tool execution latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	// DownstreamSessions counts sessions opened against a backing integration.
	DownstreamSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_downstream_sessions_total",
			Help: "Sessions opened against backing integrations.",
		},
		[]string{"integration"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
