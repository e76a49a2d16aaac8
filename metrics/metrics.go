package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	TransactionsRequested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Name:      "transactions_requested_total",
		Help:      "Deposit and withdrawal requests accepted into the pending queue.",
	}, []string{"kind"})

	TransactionsDecided = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Name:      "transactions_decided_total",
		Help:      "Admin decisions applied to pending transactions.",
	}, []string{"kind", "decision"})

	StakingRewardsPaid = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ledger",
		Name:      "staking_rewards_paid_total",
		Help:      "Staking reward payouts.",
	})

	ReferralBonusesPaid = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Name:      "referral_bonuses_paid_total",
		Help:      "Referral bonuses paid, by kind (referral or tier threshold).",
	}, []string{"kind"})

	StoreConflicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Name:      "store_cas_conflicts_total",
		Help:      "Compare-and-swap conflicts seen by the repository, by collection.",
	}, []string{"collection"})

	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ledger",
		Name:      "active_sessions",
		Help:      "Sessions with an armed staking job.",
	})
)

// Registry holds every ledger collector plus the Go runtime collectors.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		TransactionsRequested,
		TransactionsDecided,
		StakingRewardsPaid,
		ReferralBonusesPaid,
		StoreConflicts,
		ActiveSessions,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
}
