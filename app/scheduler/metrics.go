package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Completed billing passes across all user workers
	billingPassesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_passes_total",
			Help: "Total number of completed billing detection passes",
		},
	)

	// Calls settled with a new deduction
	billedCallsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_billed_calls_total",
			Help: "Total number of calls billed by the scheduler",
		},
	)

	// Calls left unbilled because no agent assignment could be resolved
	heldCallsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_events_held_total",
			Help: "Call events held for review instead of billed",
		},
	)

	// Last observed prepaid balance per user, refreshed by the balance tick
	userBalanceGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "billing_user_balance",
			Help: "Last observed prepaid balance per user",
		},
		[]string{"user_id"},
	)
)
