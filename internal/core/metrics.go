package core

import "github.com/prometheus/client_golang/prometheus"

var completionLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "healthchat",
		Subsystem: "completion",
		Name:      "latency_seconds",
		Help:      "Latency of completion provider calls",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
	},
	[]string{"model", "status"},
)

var completionTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "healthchat",
		Subsystem: "completion",
		Name:      "tokens_total",
		Help:      "Tokens reported by the completion provider",
	},
	[]string{"model", "type"}, // type: input, output
)

var completionFallbackTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "healthchat",
		Subsystem: "completion",
		Name:      "fallback_total",
		Help:      "Replies replaced by a canned message",
	},
	[]string{"reason"}, // reason: not_configured, provider_error, empty
)

var urgencyTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "healthchat",
		Subsystem: "pipeline",
		Name:      "urgency_total",
		Help:      "Classified replies by urgency level",
	},
	[]string{"level"},
)

var pipelineResultTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "healthchat",
		Subsystem: "pipeline",
		Name:      "messages_total",
		Help:      "Processed user messages by outcome",
	},
	[]string{"outcome"}, // outcome: success, failure
)

func init() {
	prometheus.MustRegister(completionLatency, completionTokensTotal, completionFallbackTotal, urgencyTotal, pipelineResultTotal)
}
