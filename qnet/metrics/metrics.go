// Package metrics registers the prometheus collectors each subsystem
// updates. The exporter/HTTP surface itself stays external per spec.md §1
// Non-goals; this package only owns collector registration so C1-C10 have
// somewhere real to record observations.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ReputationScore = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "qnet",
		Subsystem: "reputation",
		Name:      "score",
		Help:      "Current stored reputation score per node (not zeroed by a regular jail).",
	}, []string{"address"})

	JailEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qnet",
		Subsystem: "reputation",
		Name:      "jail_events_total",
		Help:      "Count of jail events by reason.",
	}, []string{"reason"})

	RoundsFinalized = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qnet",
		Subsystem: "consensus",
		Name:      "rounds_finalized_total",
		Help:      "Count of finalized commit-reveal rounds by status.",
	}, []string{"status"})

	DoubleSignsDetected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "qnet",
		Subsystem: "consensus",
		Name:      "double_signs_detected_total",
		Help:      "Count of double-sign events detected across all rounds.",
	})

	ForkReorgs = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "qnet",
		Subsystem: "forkchoice",
		Name:      "reorgs_total",
		Help:      "Count of fork-choice head changes, including a head advancing to its own child.",
	})

	ForkChoiceHeadHeight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "qnet",
		Subsystem: "forkchoice",
		Name:      "head_height",
		Help:      "Height of the current fork-choice head.",
	})

	EmergencyFinalizations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "qnet",
		Subsystem: "macroblock",
		Name:      "emergency_finalizations_total",
		Help:      "Count of progressive/emergency macro-block finalizations and micro-block producer failovers.",
	})

	PoolBalance = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "qnet",
		Subsystem: "rewards",
		Name:      "pool_balance_nano_qnc",
		Help:      "Current balance of each reward pool, in nano-QNC.",
	}, []string{"pool"})

	ActivationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qnet",
		Subsystem: "activation",
		Name:      "activations_total",
		Help:      "Count of accepted node activations by type.",
	}, []string{"node_type"})
)

// MustRegister registers every collector above against reg. Call once at
// startup (cmd/qnetd); safe to call with prometheus.NewRegistry() in tests.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		ReputationScore,
		JailEvents,
		RoundsFinalized,
		DoubleSignsDetected,
		ForkReorgs,
		ForkChoiceHeadHeight,
		EmergencyFinalizations,
		PoolBalance,
		ActivationsTotal,
	)
}
