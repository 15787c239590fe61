package types

// InitialReputationScore is the score assigned to a node on first observation.
const InitialReputationScore = 70.0

// MaxReputationScore / MinReputationScore bound the canonical [0,100] scale.
const (
	MinReputationScore = 0.0
	MaxReputationScore = 100.0
)

// JailRecord marks a node as excluded from production/rewards until a deadline.
type JailRecord struct {
	Reason        string
	JailedUntil   int64 // unix seconds
}

// NodeReputation is the per-node bookkeeping record tracked by the
// reputation ledger (C1).
type NodeReputation struct {
	Address        Address
	Score          float64 // canonical 0-100 scale
	LastSeen       int64
	SuccessCount   uint64
	FailureCount   uint64
	Jail           *JailRecord
}

// EffectiveScore returns 0 while jailed (per spec.md §4.1), else Score.
func (r NodeReputation) EffectiveScore(nowUnix int64) float64 {
	if r.Jail != nil && nowUnix < r.Jail.JailedUntil {
		return 0
	}
	return r.Score
}

// Normalized returns the score divided by 100, per spec.md §4.1's rule that
// any code path treating reputation as a probability must normalize here.
func (r NodeReputation) Normalized(nowUnix int64) float64 {
	return r.EffectiveScore(nowUnix) / MaxReputationScore
}
