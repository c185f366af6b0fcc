package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LedgerConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_ledger_conflicts_total",
		Help: "Conditional balance writes rejected because the version moved",
	})

	LedgerRetriesExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_ledger_retries_exhausted_total",
		Help: "Balance updates abandoned after the retry budget was spent",
	})

	LedgerMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_ledger_mutations_total",
			Help: "Balance mutations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	LedgerAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wallet_ledger_attempts",
		Help:    "Attempts needed per committed balance update",
		Buckets: []float64{1, 2, 3, 4, 5, 8},
	})

	AuditEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_audit_entries_total",
			Help: "Audit entries by writer and result",
		},
		[]string{"writer", "result"},
	)

	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_job_runs_total",
			Help: "Background sweep runs by job and outcome",
		},
		[]string{"job", "outcome"},
	)

	JobItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_job_items_total",
			Help: "Rows transitioned by background sweeps",
		},
		[]string{"job"},
	)
)
