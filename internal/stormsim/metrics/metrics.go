// Package metrics exposes prometheus instrumentation for the simulation
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const prefix = "stormsim_"

var rowsWritten = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: prefix + "rows_written",
		Help: "Number of output rows delivered, by sink and output kind",
	},
	[]string{"sink", "kind"},
)

var insertErrors = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: prefix + "insert_errors",
		Help: "Number of failed remote table insert attempts",
	},
)

var insertRetries = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: prefix + "insert_retries",
		Help: "Number of retried remote table insert attempts",
	},
)

var trialsCompleted = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: prefix + "trials_completed",
		Help: "Number of simulation trials that ran to completion",
	},
)

var trialsFailed = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: prefix + "trials_failed",
		Help: "Number of simulation trials that failed after all retries",
	},
)

func RecordRowsWritten(sink string, kind string, n int) {
	rowsWritten.WithLabelValues(sink, kind).Add(float64(n))
}

func RecordInsertError() {
	insertErrors.Inc()
}

func RecordInsertRetry() {
	insertRetries.Inc()
}

func RecordTrialCompleted() {
	trialsCompleted.Inc()
}

func RecordTrialFailed() {
	trialsFailed.Inc()
}
