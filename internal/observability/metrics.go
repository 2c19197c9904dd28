package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the rule compiler and runtime evaluator.

var (
	// Runtime Evaluator Metrics
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "beacon_cycle_duration_seconds",
			Help:    "Time taken to run a single evaluation cycle",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 20), // 100μs to ~52s
		},
	)

	RuleEvaluationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_rule_evaluation_total",
			Help: "Total number of rule evaluations",
		},
		[]string{"rule", "result"}, // result: true|false|indeterminate|error
	)

	RuleEvaluationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "beacon_rule_evaluation_duration_seconds",
			Help:    "Time taken to evaluate a single rule's condition tree",
			Buckets: prometheus.ExponentialBuckets(0.000001, 2, 20), // 1μs to ~1s
		},
		[]string{"rule"},
	)

	EmitTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_emit_total",
			Help: "Total number of actions emitted",
		},
		[]string{"rule", "action", "mode"}, // mode: always|on_change|on_enter
	)

	RingBufferEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_ring_buffer_evictions_total",
			Help: "Total number of samples evicted from a sensor's ring buffer",
		},
		[]string{"sensor"},
	)

	CycleErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_cycle_errors_total",
			Help: "Total number of cycles aborted due to a store I/O failure",
		},
		[]string{"kind"}, // kind: read|write
	)

	RulesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "beacon_rules_active",
			Help: "Number of rules currently loaded into the evaluator",
		},
	)

	// Compiler Metrics
	CompileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "beacon_compile_duration_seconds",
			Help:    "Time taken to compile a rule file to IR",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 20),
		},
	)

	CompileDiagnosticsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_compile_diagnostics_total",
			Help: "Total number of diagnostics emitted during compilation",
		},
		[]string{"kind", "severity"}, // severity: error|warning
	)
)
