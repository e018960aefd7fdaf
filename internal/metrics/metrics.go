package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Alert evaluation metrics
	AlertPassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matpulse_alert_passes_total",
			Help: "Total number of alert evaluation passes",
		},
		[]string{"status"}, // status: ok, failed
	)

	RulesCheckedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matpulse_rules_checked_total",
			Help: "Total number of rules checked across all passes",
		},
	)

	RulesTriggeredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matpulse_rules_triggered_total",
			Help: "Total number of rules that triggered a notification",
		},
	)

	PassErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matpulse_pass_errors_total",
			Help: "Total number of rule- and channel-level errors collected during passes",
		},
	)

	PassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matpulse_alert_pass_duration_seconds",
			Help:    "Duration of alert evaluation passes",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// Composite index metrics
	IndexComputationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matpulse_index_computations_total",
			Help: "Total number of composite index computations",
		},
		[]string{"status"}, // status: ok, failed
	)
)
