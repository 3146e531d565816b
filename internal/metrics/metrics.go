package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "todo_agent_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "todo_agent_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	UsersRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "todo_agent_users_registered_total",
			Help: "Total users registered",
		},
	)

	DocumentsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "todo_agent_documents_ingested_total",
			Help: "Total uploaded documents",
		},
		[]string{"outcome"}, // "ok", "unsupported", "error"
	)

	// Agent metrics
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "todo_agent_turns_total",
			Help: "Total conversation turns",
		},
		[]string{"outcome"}, // "end", "error", "cancelled"
	)

	ModelCallDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "todo_agent_model_call_duration_seconds",
			Help:    "Duration of one streamed model invocation",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "todo_agent_tool_calls_total",
			Help: "Total tool executions",
		},
		[]string{"tool", "outcome"}, // outcome: "ok" or "error"
	)

	TokensStreamed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "todo_agent_tokens_streamed_total",
			Help: "Total text fragments streamed to clients",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "todo_agent_active_sessions",
			Help: "Open WebSocket chat sessions",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "todo_agent_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	BlockedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "todo_agent_blocked_requests_total",
			Help: "Total blocked requests",
		},
		[]string{"reason"},
	)
)
