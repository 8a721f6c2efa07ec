package metrics

import "github.com/prometheus/client_golang/prometheus"

// Comparison pipeline Prometheus metrics.
var (
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Comparison runs by terminal state",
		},
		[]string{"status"}, // "completed" / "failed"
	)

	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a comparison run",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	RunsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_in_flight",
			Help:      "Comparison runs currently executing",
		},
	)

	VerdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_total",
			Help:      "Verdicts produced by status",
		},
		[]string{"status"},
	)

	FallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Heuristic fallbacks taken instead of a model answer",
		},
		[]string{"stage"}, // "extract" / "compare" / "explain"
	)

	RequirementsExtracted = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "requirements_extracted",
			Help:      "Number of requirements extracted per run",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers Prometheus pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(RunsTotal)
	prometheus.MustRegister(RunDuration)
	prometheus.MustRegister(RunsInFlight)
	prometheus.MustRegister(VerdictsTotal)
	prometheus.MustRegister(FallbacksTotal)
	prometheus.MustRegister(RequirementsExtracted)
	pipelineMetricsRegistered = true
}
