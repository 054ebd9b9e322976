package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		ReconcileRuns,
		ReconcileCandidates,
		ReconcileRunDuration,
	)
}

var (
	// Count of engine runs grouped by trigger and schema mode.
	// trigger: cron|worker
	// mode: reconcile|legacy
	ReconcileRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_reconcile_runs_total",
			Help: "Count of reconciliation engine runs by trigger and schema mode.",
		},
		[]string{"trigger", "mode"},
	)

	// Per-candidate outcomes.
	// outcome: reconciled|failed|flagged|skipped_locked|skipped_terminal|error
	ReconcileCandidates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_reconcile_candidates_total",
			Help: "Per-candidate reconciliation outcomes.",
		},
		[]string{"outcome"},
	)

	ReconcileRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_reconcile_run_duration_seconds",
			Help:    "Duration of one reconciliation engine run in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"mode"},
	)
)
