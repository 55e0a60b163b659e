// Package metrics defines the service's Prometheus instruments. They are
// registered on the default registry and exposed via /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts handled HTTP requests by method, route, and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "confera_http_requests_total",
		Help: "HTTP requests handled, by method, route and status code.",
	}, []string{"method", "route", "status"})

	// HTTPDuration tracks request latency by route.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "confera_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// ChatExchanges counts completed conversational exchanges by mode
	// (blocking or streaming) and outcome.
	ChatExchanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "confera_chat_exchanges_total",
		Help: "Conversational exchanges processed, by mode and outcome.",
	}, []string{"mode", "outcome"})

	// ToolInvocations counts tool executions by tool name and success.
	ToolInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "confera_tool_invocations_total",
		Help: "Tool executions, by tool and success.",
	}, []string{"tool", "success"})

	// ToolDuration tracks per-tool execution latency.
	ToolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "confera_tool_duration_seconds",
		Help:    "Tool execution latency.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"tool"})

	// ModelRequestDuration tracks chat-model round trips by kind (chat,
	// stream, intent, embed).
	ModelRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "confera_model_request_duration_seconds",
		Help:    "Model request latency, by request kind.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"kind"})

	// QADecisions counts routing decisions by source: vector_cache,
	// ai_generated, or error.
	QADecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "confera_qa_decisions_total",
		Help: "Question routing decisions, by answer source.",
	}, []string{"source"})

	// WebsocketConnections gauges currently open websocket sessions.
	WebsocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "confera_websocket_connections",
		Help: "Currently open websocket sessions.",
	})
)

// ObserveToolInvocation records one tool execution.
func ObserveToolInvocation(tool string, success bool, d time.Duration) {
	ToolInvocations.WithLabelValues(tool, strconv.FormatBool(success)).Inc()
	ToolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// ObserveModelRequest records one model round trip.
func ObserveModelRequest(kind string, d time.Duration) {
	ModelRequestDuration.WithLabelValues(kind).Observe(d.Seconds())
}
