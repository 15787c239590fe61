// Package forkresolution implements C5: security validation of a foreign
// chain before it is ever fed into fork-choice, reunification handling, peer
// partition detection, and the burn-weighted fork scoring used to settle
// ties between two otherwise-valid chains.
package forkresolution

import (
	"math"
	"sort"

	"github.com/qnet-project/qnet-core/internal/forkchoice"
	"github.com/qnet-project/qnet-core/internal/reputation"
	"github.com/qnet-project/qnet-core/qnet/iface"
	"github.com/qnet-project/qnet-core/qnet/qnerrors"
	"github.com/qnet-project/qnet-core/qnet/qnlog"
	"github.com/qnet-project/qnet-core/qnet/types"
)

var log = qnlog.New("forkresolution")

const (
	// DefaultMinActiveNodes is the minimum unique-producer count a foreign
	// chain must show (spec.md §4.5 check 2).
	DefaultMinActiveNodes = 10
	// DefaultMaxReorgDepth bounds how many blocks a reunification may revert
	// (spec.md §4.5 check 5).
	DefaultMaxReorgDepth = 100
	// MinDiversityScore is the floor a chain's diversity score must clear
	// (spec.md §4.5 check 3).
	MinDiversityScore = 0.3
	// PartitionMajorityRatio is the share of peers the largest head-group
	// must hold to avoid a PartitionEvent.
	PartitionMajorityRatio = 0.67
)

// Registry resolves the producer identity facts a security check needs:
// whether an address is a known, non-banned node, and its activation type
// for fork-score weighting (spec.md §4.5/§4.9 type_bonus).
type Registry interface {
	IsRegistered(addr types.Address) bool
	IsBanned(addr types.Address) bool
	NodeType(addr types.Address) types.NodeType
}

// Candidate is a foreign chain presented for validation and scoring.
type Candidate struct {
	Blocks     []types.BlockInfo // ordered root-to-tip
	Checkpoint map[uint64]types.Hash
}

func (c Candidate) tip() types.BlockInfo { return c.Blocks[len(c.Blocks)-1] }

func (c Candidate) uniqueProducers() map[types.Address]bool {
	set := make(map[types.Address]bool)
	for _, b := range c.Blocks {
		if b.Producer == "" {
			continue
		}
		set[b.Producer] = true
	}
	return set
}

// Validator runs the five pre-checks of spec.md §4.5 against a Registry and
// a BurnSource, and scores validated chains for tie-breaking.
type Validator struct {
	registry      Registry
	burns         iface.BurnSource
	minActive     int
	maxReorgDepth int
}

type Option func(*Validator)

func WithMinActiveNodes(n int) Option    { return func(v *Validator) { v.minActive = n } }
func WithMaxReorgDepth(n int) Option     { return func(v *Validator) { v.maxReorgDepth = n } }

func NewValidator(registry Registry, burns iface.BurnSource, opts ...Option) *Validator {
	v := &Validator{
		registry:      registry,
		burns:         burns,
		minActive:     DefaultMinActiveNodes,
		maxReorgDepth: DefaultMaxReorgDepth,
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Validate runs all five checks against c, returning the first failure.
func (v *Validator) Validate(c Candidate) error {
	if len(c.Blocks) == 0 {
		return qnerrors.ErrInvalidState
	}

	for _, b := range c.Blocks {
		if b.Height == 0 {
			continue // genesis has no producer to validate
		}
		if !v.registry.IsRegistered(b.Producer) || v.registry.IsBanned(b.Producer) {
			return qnerrors.ErrBannedNode
		}
	}

	unique := c.uniqueProducers()
	if len(unique) < v.minActive {
		return qnerrors.ErrInsufficientActiveNodes
	}

	if score := v.diversityScore(unique); score < MinDiversityScore {
		log.WithField("score", score).Warn("foreign chain failed diversity check")
		return qnerrors.ErrInsufficientDiversity
	}

	for _, b := range c.Blocks {
		if want, ok := c.Checkpoint[b.Height]; ok && want != b.Hash {
			return qnerrors.ErrCheckpointMismatch
		}
	}

	if len(c.Blocks) > v.maxReorgDepth {
		return qnerrors.ErrDeepReorganization
	}
	return nil
}

// diversityScore combines normalized burn-amount variance and normalized
// join-time span, each weighted 0.5, per spec.md §4.5 check 3.
func (v *Validator) diversityScore(producers map[types.Address]bool) float64 {
	var amounts []float64
	var joinTimes []int64
	for addr := range producers {
		for _, att := range v.burns.AttestationsFor(addr) {
			amounts = append(amounts, float64(att.AmountBurned))
			joinTimes = append(joinTimes, att.JoinedAt)
		}
	}
	if len(amounts) == 0 {
		return 0
	}

	return 0.5*normalizedVariance(amounts) + 0.5*normalizedSpan(joinTimes)
}

func normalizedVariance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	variance := 0.0
	maxVal := xs[0]
	for _, x := range xs {
		d := x - mean
		variance += d * d
		if x > maxVal {
			maxVal = x
		}
	}
	variance /= float64(len(xs))
	if maxVal == 0 {
		return 0
	}
	// Normalize by the square of the largest observed value so the score is
	// scale-independent and bounded to roughly [0,1].
	normalized := variance / (maxVal * maxVal)
	if normalized > 1 {
		normalized = 1
	}
	return normalized
}

func normalizedSpan(ts []int64) float64 {
	if len(ts) < 2 {
		return 0
	}
	minT, maxT := ts[0], ts[0]
	for _, t := range ts {
		if t < minT {
			minT = t
		}
		if t > maxT {
			maxT = t
		}
	}
	span := float64(maxT - minT)
	const oneYearSeconds = 365 * 24 * 3600
	normalized := span / oneYearSeconds
	if normalized > 1 {
		normalized = 1
	}
	return normalized
}

// Reorganization describes the chain switch handle_reunification produces
// when the canonical tip moves away from the local tip.
type Reorganization struct {
	From             types.Hash
	To               types.Hash
	CommonHeight     uint64
	BlocksToRevert   int
}

// HandleReunification validates every remote chain, replays all blocks
// (local's tip included) into a transient fork-choice instance, and reports
// whether the resulting canonical tip differs from local's current tip.
func (v *Validator) HandleReunification(local Candidate, remotes []Candidate) (*Reorganization, error) {
	if err := v.Validate(local); err != nil {
		return nil, err
	}
	for _, r := range remotes {
		if err := v.Validate(r); err != nil {
			return nil, err
		}
	}

	localTip := local.tip()
	tree := forkchoice.NewWithGenesis(local.Blocks[0])
	for _, b := range local.Blocks[1:] {
		if err := tree.AddBlock(b); err != nil {
			return nil, err
		}
	}
	for _, r := range remotes {
		for _, b := range r.Blocks {
			// Blocks already present (shared ancestry) are tolerated;
			// AddBlock only fails on a genuinely unknown parent.
			if _, ok := tree.GetBlock(b.Hash); ok {
				continue
			}
			if err := tree.AddBlock(b); err != nil {
				continue
			}
		}
	}

	canonical := tree.Head()
	if canonical == localTip.Hash {
		return nil, nil
	}

	ancestor, err := tree.FindCommonAncestor(localTip.Hash, canonical)
	if err != nil {
		return nil, err
	}
	ancestorInfo, _ := tree.GetBlock(ancestor)
	revert := int(localTip.Height - ancestorInfo.Height)
	return &Reorganization{
		From:           localTip.Hash,
		To:             canonical,
		CommonHeight:   ancestorInfo.Height,
		BlocksToRevert: revert,
	}, nil
}

// PartitionEvent is emitted by DetectPartition when peer heads fragment
// across multiple groups with no clear majority.
type PartitionEvent struct {
	GroupSizes []int
	DetectedAt int64
}

// DetectPartition groups peerHeads by hash and reports a PartitionEvent if
// more than one group exists and the largest holds under 67% of peers.
func DetectPartition(peerHeads map[string]types.Hash, nowUnix int64) *PartitionEvent {
	groups := make(map[types.Hash]int)
	for _, h := range peerHeads {
		groups[h]++
	}
	if len(groups) <= 1 {
		return nil
	}

	sizes := make([]int, 0, len(groups))
	total, largest := 0, 0
	for _, n := range groups {
		sizes = append(sizes, n)
		total += n
		if n > largest {
			largest = n
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(sizes)))

	if float64(largest)/float64(total) < PartitionMajorityRatio {
		return &PartitionEvent{GroupSizes: sizes, DetectedAt: nowUnix}
	}
	return nil
}

// ScoreChain implements the burn-weighted score model of spec.md §4.5:
// Σ ln(burn_amount) × reputation × type_bonus × diversity_bonus + sqrt(length) × 10.
func (v *Validator) ScoreChain(c Candidate, rep *reputation.Ledger) float64 {
	unique := c.uniqueProducers()
	diversityBonus := v.diversityScore(unique)

	var sum float64
	for addr := range unique {
		for _, att := range v.burns.AttestationsFor(addr) {
			if att.AmountBurned <= 0 {
				continue
			}
			sum += math.Log(float64(att.AmountBurned)) *
				rep.Get(addr) *
				v.registry.NodeType(addr).TypeBonus() *
				diversityBonus
		}
	}
	return sum + math.Sqrt(float64(len(c.Blocks)))*10
}

// ResolveFork scores every candidate and returns the winner, tie-broken by
// unique-producer count.
func (v *Validator) ResolveFork(candidates []Candidate, rep *reputation.Ledger) (Candidate, error) {
	if len(candidates) == 0 {
		return Candidate{}, qnerrors.ErrInvalidState
	}

	best := candidates[0]
	bestScore := v.ScoreChain(best, rep)
	bestUnique := len(best.uniqueProducers())

	for _, c := range candidates[1:] {
		score := v.ScoreChain(c, rep)
		unique := len(c.uniqueProducers())
		if score > bestScore || (score == bestScore && unique > bestUnique) {
			best, bestScore, bestUnique = c, score, unique
		}
	}
	return best, nil
}
