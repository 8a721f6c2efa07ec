package metrics

import "github.com/prometheus/client_golang/prometheus"

// Language model Prometheus metrics.
var (
	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of language model calls",
		},
		[]string{"model", "status"},
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Language model call duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"model"},
	)

	LLMTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Total language model tokens consumed",
		},
		[]string{"model", "type"}, // "prompt" / "completion"
	)

	LLMKeyRotationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_key_rotations_total",
			Help:      "Credential rotations after a retryable failure",
		},
		[]string{"reason"},
	)

	LLMExhaustedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_exhausted_total",
			Help:      "Calls that failed after every credential was tried",
		},
	)
)

var llmMetricsRegistered bool

// RegisterLLMMetrics registers Prometheus language model metrics. Must be called once from main.
func RegisterLLMMetrics() {
	if llmMetricsRegistered {
		return
	}
	prometheus.MustRegister(LLMRequestsTotal)
	prometheus.MustRegister(LLMRequestDuration)
	prometheus.MustRegister(LLMTokensTotal)
	prometheus.MustRegister(LLMKeyRotationsTotal)
	prometheus.MustRegister(LLMExhaustedTotal)
	llmMetricsRegistered = true
}
