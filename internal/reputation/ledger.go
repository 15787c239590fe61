// Package reputation implements C1, the reputation ledger: per-node score
// tracking, decay, jailing and reputation-weighted selection.
package reputation

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/qnet-project/qnet-core/qnet/crypto"
	"github.com/qnet-project/qnet-core/qnet/metrics"
	"github.com/qnet-project/qnet-core/qnet/qnlog"
	"github.com/qnet-project/qnet-core/qnet/types"
)

var log = qnlog.New("reputation")

// Violation classes and penalties, per spec.md §4.1's table.
type Violation string

const (
	ViolationInvalidConsensus    Violation = "InvalidConsensus"
	ViolationMissedReveal        Violation = "MissedReveal"
	ViolationDatabaseSubstitution Violation = "DatabaseSubstitution"
	ViolationStorageDeletion     Violation = "StorageDeletion"
	ViolationChainFork           Violation = "ChainFork"
	ViolationDoubleSign          Violation = "DoubleSign"
)

// critical violations jail for one year and zero the score outright; regular
// violations apply a progressive penalty.
var criticalViolations = map[Violation]bool{
	ViolationDatabaseSubstitution: true,
	ViolationStorageDeletion:      true,
	ViolationChainFork:            true,
	ViolationDoubleSign:           true,
}

const (
	successDelta      = 1.0
	failureDelta      = -2.0
	regularJailHours  = 1
	regularPenalty    = -20.0
	criticalJailHours = 24 * 365 // 1 year
	defaultDecayRate  = 0.01     // 1% per hour
)

// entry is the lock-protected record for one address. Single-writer per
// entry, lock-free-ish reads via RLock (spec.md §5): the map itself is
// guarded by Ledger.mu, but each entry's mutations are funneled through
// Ledger methods so there is exactly one writer path per address.
type entry struct {
	rep types.NodeReputation
}

// Ledger is the concurrent reputation map, C1.
type Ledger struct {
	mu        sync.RWMutex
	entries   map[types.Address]*entry
	decayRate float64
	now       func() time.Time
}

// Option configures a Ledger at construction.
type Option func(*Ledger)

// WithDecayRate overrides the default 1%/hour decay rate.
func WithDecayRate(rate float64) Option {
	return func(l *Ledger) { l.decayRate = rate }
}

// WithClock overrides the wall clock, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func New(opts ...Option) *Ledger {
	l := &Ledger{
		entries:   make(map[types.Address]*entry),
		decayRate: defaultDecayRate,
		now:       time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Ledger) getOrCreate(addr types.Address) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[addr]
	if !ok {
		e = &entry{rep: types.NodeReputation{
			Address:  addr,
			Score:    types.InitialReputationScore,
			LastSeen: l.now().Unix(),
		}}
		l.entries[addr] = e
	}
	return e
}

// Get returns 0 while jailed, the initial score (70) if unknown, else the
// node's current score (spec.md §4.1).
func (l *Ledger) Get(addr types.Address) float64 {
	l.mu.RLock()
	e, ok := l.entries[addr]
	l.mu.RUnlock()
	if !ok {
		return types.InitialReputationScore
	}
	return e.rep.EffectiveScore(l.now().Unix())
}

// Reputation returns a copy of the full record, or a freshly-initialized one
// if the node has never been observed.
func (l *Ledger) Reputation(addr types.Address) types.NodeReputation {
	e := l.getOrCreate(addr)
	l.mu.RLock()
	defer l.mu.RUnlock()
	return e.rep
}

// IsJailed reports whether addr is currently under an active jail record.
func (l *Ledger) IsJailed(addr types.Address) bool {
	l.mu.RLock()
	e, ok := l.entries[addr]
	l.mu.RUnlock()
	if !ok || e.rep.Jail == nil {
		return false
	}
	return l.now().Unix() < e.rep.Jail.JailedUntil
}

// RecordSuccess applies the +1 additive bonus, clamped to [0,100].
func (l *Ledger) RecordSuccess(addr types.Address) {
	e := l.getOrCreate(addr)
	l.mu.Lock()
	defer l.mu.Unlock()
	e.rep.Score = clamp(e.rep.Score + successDelta)
	e.rep.SuccessCount++
	e.rep.LastSeen = l.now().Unix()
	metrics.ReputationScore.WithLabelValues(string(addr)).Set(e.rep.Score)
}

// RecordFailure applies the -2 additive penalty, clamped to [0,100].
func (l *Ledger) RecordFailure(addr types.Address) {
	e := l.getOrCreate(addr)
	l.mu.Lock()
	defer l.mu.Unlock()
	e.rep.Score = clamp(e.rep.Score + failureDelta)
	e.rep.FailureCount++
	e.rep.LastSeen = l.now().Unix()
	metrics.ReputationScore.WithLabelValues(string(addr)).Set(e.rep.Score)
}

// ApplyDecay multiplies every tracked score by (1 - decayRate), one step of
// passive decay per call. C2's FinalizeRound calls it once per finalized
// round, regardless of elapsed wall time.
func (l *Ledger) ApplyDecay() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		e.rep.Score = clamp(e.rep.Score * (1 - l.decayRate))
	}
}

// Jail jails addr for the duration dictated by the violation's class
// (regular: 1h/-20; critical: 1y + score -> 0), per spec.md §4.1. Genesis
// nodes receive no special protection against critical violations.
func (l *Ledger) Jail(addr types.Address, violation Violation) {
	e := l.getOrCreate(addr)
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if criticalViolations[violation] {
		e.rep.Score = 0
		e.rep.Jail = &types.JailRecord{
			Reason:      string(violation),
			JailedUntil: now.Add(criticalJailHours * time.Hour).Unix(),
		}
		log.WithFields(map[string]interface{}{
			"address":   addr,
			"violation": violation,
		}).Warn("critical violation: node jailed for 1 year, reputation zeroed")
	} else {
		e.rep.Score = clamp(e.rep.Score + regularPenalty)
		e.rep.Jail = &types.JailRecord{
			Reason:      string(violation),
			JailedUntil: now.Add(regularJailHours * time.Hour).Unix(),
		}
		log.WithFields(map[string]interface{}{
			"address":   addr,
			"violation": violation,
		}).Warn("regular violation: node jailed for 1 hour")
	}
	metrics.JailEvents.WithLabelValues(string(violation)).Inc()
	metrics.ReputationScore.WithLabelValues(string(addr)).Set(e.rep.Score)
}

// DestroyForDoubleSign is the dedicated entry point for double-sign
// handling (spec.md §4.1): reputation is set to 0 and the node jailed for a
// year, regardless of whether it is a genesis node.
func (l *Ledger) DestroyForDoubleSign(addr types.Address) {
	l.Jail(addr, ViolationDoubleSign)
	metrics.DoubleSignsDetected.Inc()
}

// WeightedSelect picks one candidate with probability proportional to its
// effective score, deterministically seeded by seed (spec.md §4.1/§4.3).
// Ties are broken by the seed alone: two candidates with identical scores
// still produce a single deterministic winner for a given seed.
func (l *Ledger) WeightedSelect(candidates []types.Address, seed string) (types.Address, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	// Sort candidates for a seed-independent, deterministic ordering before
	// applying the seeded draw, so insertion order never perturbs the result.
	ordered := append([]types.Address(nil), candidates...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	weights := make([]float64, len(ordered))
	total := 0.0
	for i, addr := range ordered {
		w := l.Get(addr)
		if w <= 0 {
			w = 0
		}
		weights[i] = w
		total += w
	}
	if total <= 0 {
		// Every candidate is at zero weight; fall back to uniform selection
		// so the seed still determines a winner deterministically.
		idx := int(seedUint64(seed) % uint64(len(ordered)))
		return ordered[idx], true
	}

	target := seedFraction(seed) * total
	cumulative := 0.0
	for i, w := range weights {
		cumulative += w
		if target < cumulative {
			return ordered[i], true
		}
	}
	return ordered[len(ordered)-1], true
}

func seedUint64(seed string) uint64 {
	h := crypto.Digest([]byte(seed))
	var v uint64
	for i := 0; i < 8; i++ {
		v = (v << 8) | uint64(h[i])
	}
	return v
}

// seedFraction maps the seed deterministically into [0, 1).
func seedFraction(seed string) float64 {
	v := seedUint64(seed)
	return float64(v) / float64(math.MaxUint64)
}

func clamp(score float64) float64 {
	if score < types.MinReputationScore {
		return types.MinReputationScore
	}
	if score > types.MaxReputationScore {
		return types.MaxReputationScore
	}
	return score
}
