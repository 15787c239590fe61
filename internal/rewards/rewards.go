// Package rewards implements C9: the three-pool emission/fee/activation
// accounting system, phase transition detection, ping-cycle eligibility and
// lazy, idempotent reward claims.
package rewards

import (
	"math"
	"sync"
	"time"

	"github.com/qnet-project/qnet-core/qnet/metrics"
	"github.com/qnet-project/qnet-core/qnet/qnlog"
	"github.com/qnet-project/qnet-core/qnet/types"
)

var log = qnlog.New("rewards")

// WindowDuration is the 4-hour Pool 1 emission window (spec.md §4.9).
const WindowDuration = 4 * time.Hour

// InitialPool1Rate is the Pool 1 emission at window zero, 251 432.34 QNC.
var InitialPool1Rate = types.FromQNC(251_432.34)

const halvingIntervalYears = 4

// PhaseBurnThreshold / PhaseGenesisYears implement spec.md §3's transition
// trigger: whichever of "90% of 1DEV burned" or "5 years since genesis"
// comes first.
const (
	PhaseBurnThreshold = 0.90
	PhaseGenesisYears  = 5
)

// PoolKind names one of the three independent reward pools.
type PoolKind int

const (
	PoolBaseEmission PoolKind = iota
	PoolTransactionFees
	PoolActivation
)

func (k PoolKind) String() string {
	switch k {
	case PoolBaseEmission:
		return "base_emission"
	case PoolTransactionFees:
		return "transaction_fees"
	case PoolActivation:
		return "activation"
	default:
		return "unknown"
	}
}

// eligibility weight per node type, applied when a window's pool is split
// across the eligible set: Super nodes carry more infrastructure weight
// than Full, and Light nodes (no uptime minimum) carry the least.
func eligibilityWeight(t types.NodeType) float64 {
	switch t {
	case types.NodeSuper:
		return 1.5
	case types.NodeFull:
		return 1.0
	default:
		return 0.5
	}
}

// NodeInfo is what the ledger needs to know about a node to judge ping
// eligibility and compute its share weight.
type NodeInfo struct {
	Type types.NodeType
}

// Ledger tracks pool balances, supply issued so far, the active phase, a
// per-window ping counter and each node's pending (unclaimed) balance.
// A single mutex serializes the whole ledger, all three pools included;
// there is no per-pool lock, so no lock ordering is involved.
type Ledger struct {
	mu sync.Mutex

	genesis       time.Time
	now           func() time.Time
	phase         types.Phase
	totalSupply   types.Amount
	pools         [3]types.Amount
	emissionDone  bool
	pending       map[types.Address]types.Amount
	pingsByWindow map[int64]map[types.Address]uint64
}

type Option func(*Ledger)

func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.now = now } }

// New creates a Ledger whose genesis timestamp is the network's first-block
// timestamp (spec.md §3: "fixed thereafter").
func New(genesis time.Time, opts ...Option) *Ledger {
	l := &Ledger{
		genesis:       genesis,
		now:           time.Now,
		phase:         types.Phase1,
		pending:       make(map[types.Address]types.Amount),
		pingsByWindow: make(map[int64]map[types.Address]uint64),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Phase returns the ledger's current activation phase.
func (l *Ledger) Phase() types.Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.phase
}

// EvaluatePhase advances Phase1 -> Phase2 once either trigger fires:
// burnedFraction >= 90%, or 5 years have elapsed since genesis. The
// transition is one-way (spec.md has no Phase2 -> Phase1 path).
func (l *Ledger) EvaluatePhase(burnedFraction float64) types.Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.phase == types.Phase2 {
		return l.phase
	}

	years := l.now().Sub(l.genesis).Hours() / 24 / 365
	if burnedFraction >= PhaseBurnThreshold || years >= PhaseGenesisYears {
		l.phase = types.Phase2
		log.WithFields(map[string]interface{}{
			"burned_fraction": burnedFraction,
			"years":           years,
		}).Info("activation phase transitioned to Phase2")
	}
	return l.phase
}

// EmitPool1Window credits one 4-hour Pool 1 window at the current halving
// rate, truncating (and permanently stopping future emission) if it would
// push total supply past MaxSupply.
func (l *Ledger) EmitPool1Window() types.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.emissionDone {
		return 0
	}

	years := l.now().Sub(l.genesis).Hours() / 24 / 365
	halvings := math.Floor(years / halvingIntervalYears)
	rate := types.Amount(float64(InitialPool1Rate) * math.Pow(0.5, halvings))

	emission := rate
	if l.totalSupply.Add(emission) >= types.MaxSupply {
		emission = types.MaxSupply.Sub(l.totalSupply)
		l.emissionDone = true
		log.Warn("Pool 1 emission reached MAX_SUPPLY; truncating final window and stopping permanently")
	}

	l.totalSupply = l.totalSupply.Add(emission)
	l.pools[PoolBaseEmission] = l.pools[PoolBaseEmission].Add(emission)
	metrics.PoolBalance.WithLabelValues(PoolBaseEmission.String()).Set(float64(l.pools[PoolBaseEmission]))
	return emission
}

// OnTransactionApplied deposits gas_used x gas_price into Pool 2, the
// integration seam a block executor calls once per applied transaction
// (spec.md §4.9 Pool 2; supplemented from the original source's
// reward_integration module per SPEC_FULL.md).
func (l *Ledger) OnTransactionApplied(gasUsed uint64, gasPrice types.Amount) {
	fee := types.Amount(gasUsed) * gasPrice
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pools[PoolTransactionFees] = l.pools[PoolTransactionFees].Add(fee)
	metrics.PoolBalance.WithLabelValues(PoolTransactionFees.String()).Set(float64(l.pools[PoolTransactionFees]))
}

// OnActivationAccepted deposits a node's activation amount into Pool 3, but
// only in Phase 2 (Phase 1 activations burn on the external 1DEV chain and
// never touch this ledger).
func (l *Ledger) OnActivationAccepted(nodeType types.NodeType, phase types.Phase) {
	if phase != types.Phase2 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	amount := nodeType.ActivationAmount()
	l.pools[PoolActivation] = l.pools[PoolActivation].Add(amount)
	metrics.PoolBalance.WithLabelValues(PoolActivation.String()).Set(float64(l.pools[PoolActivation]))
}

// windowKey buckets a timestamp into its 4-hour window index.
func windowKey(t time.Time) int64 {
	return t.Unix() / int64(WindowDuration/time.Second)
}

// RecordPing registers a successful heartbeat for addr in the current
// window, the bookkeeping spec.md §4.9's eligibility rule reads from.
func (l *Ledger) RecordPing(addr types.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := windowKey(l.now())
	if l.pingsByWindow[key] == nil {
		l.pingsByWindow[key] = make(map[types.Address]uint64)
	}
	l.pingsByWindow[key][addr]++
}

// eligible reports whether addr meets its node type's ping requirement for
// the current window: Light nodes have no minimum; Full/Super need >= 1.
func (l *Ledger) eligible(addr types.Address, info NodeInfo) bool {
	if info.Type == types.NodeLight {
		return true
	}
	key := windowKey(l.now())
	return l.pingsByWindow[key][addr] >= 1
}

// DistributeWindow splits pool's current balance across nodes weighted by
// eligibility and node-type weight, crediting each eligible node's pending
// balance, then deducts the credited total from the pool. Shares are
// truncated to whole nano-QNC, so any remainder stays in the pool; with no
// eligible node nothing is credited and the pool is unchanged.
func (l *Ledger) DistributeWindow(pool PoolKind, nodes map[types.Address]NodeInfo) map[types.Address]types.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := l.pools[pool]
	if total == 0 || len(nodes) == 0 {
		return nil
	}

	totalWeight := 0.0
	weights := make(map[types.Address]float64, len(nodes))
	for addr, info := range nodes {
		if !l.eligible(addr, info) {
			continue
		}
		w := eligibilityWeight(info.Type)
		weights[addr] = w
		totalWeight += w
	}
	if totalWeight == 0 {
		return nil
	}

	credited := make(map[types.Address]types.Amount, len(weights))
	var distributed types.Amount
	for addr, w := range weights {
		share := types.Amount(float64(total) * (w / totalWeight))
		l.pending[addr] = l.pending[addr].Add(share)
		credited[addr] = share
		distributed = distributed.Add(share)
	}

	l.pools[pool] = l.pools[pool].Sub(distributed)
	metrics.PoolBalance.WithLabelValues(pool.String()).Set(float64(l.pools[pool]))
	return credited
}

// PendingReward returns addr's current unclaimed balance.
func (l *Ledger) PendingReward(addr types.Address) types.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending[addr]
}

// Claim settles addr's pending balance to zero and returns the amount
// settled. Re-claims are idempotent: a second call with nothing pending
// returns 0, not an error (spec.md §4.9).
func (l *Ledger) Claim(addr types.Address) (types.Amount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	amount := l.pending[addr]
	if amount == 0 {
		return 0, nil
	}
	l.pending[addr] = 0
	return amount, nil
}

// PoolBalance returns pool's current balance, for diagnostics and tests.
func (l *Ledger) PoolBalance(pool PoolKind) types.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pools[pool]
}

// TotalSupply returns the cumulative amount ever emitted by Pool 1.
func (l *Ledger) TotalSupply() types.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalSupply
}
