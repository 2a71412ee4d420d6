package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		reconcilerRuns,
		reconcilerPayments,
		reconcilerFailures,
	)
}

var (
	reconcilerRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconciler_runs_total",
			Help: "Completed reconciliation passes.",
		},
	)

	reconcilerPayments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_payments_total",
			Help: "Payments processed by the reconciler, by outcome (settled/expired/skipped).",
		},
		[]string{"outcome"},
	)

	reconcilerFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconciler_failures_total",
			Help: "Per-payment reconciliation attempts that errored and will be retried.",
		},
	)
)

func IncReconcilerRun()            { reconcilerRuns.Inc() }
func IncReconciled(outcome string) { reconcilerPayments.WithLabelValues(norm(outcome)).Inc() }
func IncReconcilerFailure()        { reconcilerFailures.Inc() }
