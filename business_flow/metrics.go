package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ledger transactions committed, partitioned by type
	ledgerTransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_transactions_total",
			Help: "Total number of ledger transactions committed",
		},
		[]string{"type"},
	)

	// Duplicate deductions absorbed by the call_id uniqueness constraint
	ledgerIdempotentHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_idempotent_hits_total",
			Help: "Deduction attempts resolved as already billed",
		},
	)

	// Balance compensations that could not be applied after a failed insert.
	// Any increase here needs manual reconciliation.
	ledgerInconsistenciesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_inconsistencies_total",
			Help: "Compensation failures leaving the balance out of sync with the ledger",
		},
	)

	// Low balance notifications fired, partitioned by bucket
	balanceAlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "balance_alerts_total",
			Help: "Low balance notifications fired",
		},
		[]string{"status"},
	)
)
