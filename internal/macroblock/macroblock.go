// Package macroblock implements C8: the periodic finality layer over a
// window of micro-blocks, using C2's commit-reveal round for participant
// consensus and C3 to publish the next rotation's seed leader.
package macroblock

import (
	"time"

	"github.com/qnet-project/qnet-core/internal/consensus/leader"
	"github.com/qnet-project/qnet-core/internal/consensus/round"
	"github.com/qnet-project/qnet-core/qnet/metrics"
	"github.com/qnet-project/qnet-core/qnet/qnerrors"
	"github.com/qnet-project/qnet-core/qnet/qnlog"
	"github.com/qnet-project/qnet-core/qnet/types"
)

var log = qnlog.New("macroblock")

const (
	// DefaultIntervalMicroBlocks is the number of micro-blocks a macro-block
	// window fixes (configurable 60-90, spec.md §4.8).
	DefaultIntervalMicroBlocks = 90
	MinIntervalMicroBlocks     = 60

	CommitWindow = 15 * time.Second
	RevealWindow = 15 * time.Second

	// MinRevealsRatio is the fraction of committers that must reveal for a
	// normal (non-emergency) finalization.
	MinRevealsRatio = 2.0 / 3.0

	// DefaultEmergencyFloor is the minimum reveal count below which even
	// progressive finalization is impossible (spec.md §4.8).
	DefaultEmergencyFloor = 1
)

// EmergencyFinalization is emitted when the reveal phase closes under the
// 2/3 ratio but at or above emergencyFloor.
type EmergencyFinalization struct {
	Height       uint64
	Participants []types.Address
}

// CriticalAlert additionally fires when the chain is finalizing with a
// single surviving participant.
type CriticalAlert struct {
	Height uint64
}

// Result is everything Finalize reports about one macro-block window.
type Result struct {
	Block                  *types.MacroBlock
	Emergency              *EmergencyFinalization
	Critical               *CriticalAlert
	RevealRatio            float64
}

// Finalizer drives one macro-block's consensus round to completion and
// assembles the resulting MacroBlock.
type Finalizer struct {
	runner   *round.Runner
	selector *leader.Selector
	interval int
	emergencyFloor int
}

type Option func(*Finalizer)

func WithInterval(microBlocks int) Option {
	return func(f *Finalizer) { f.interval = microBlocks }
}

func WithEmergencyFloor(n int) Option {
	return func(f *Finalizer) { f.emergencyFloor = n }
}

func New(runner *round.Runner, selector *leader.Selector, opts ...Option) *Finalizer {
	f := &Finalizer{
		runner:         runner,
		selector:       selector,
		interval:       DefaultIntervalMicroBlocks,
		emergencyFloor: DefaultEmergencyFloor,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// StartRound opens the macro-block's commit-reveal round at macroHeight.
func (f *Finalizer) StartRound(macroHeight uint64) (*types.RoundState, error) {
	return f.runner.StartRound(macroHeight)
}

// Finalize closes the round, applies spec.md §4.8's progressive finalization
// rule, elects the next rotation leader over the reveal beacon, and
// assembles the MacroBlock fixing microBlockHashes and stateRoot.
func (f *Finalizer) Finalize(height uint64, previous types.Hash, microBlockHashes []types.Hash, stateRoot types.Hash, timestamp int64) (*Result, error) {
	summary, err := f.runner.FinalizeRound()
	if err != nil {
		return nil, err
	}

	committers := len(summary.Committers)
	revealers := len(summary.Revealers)
	ratio := 1.0
	if committers > 0 {
		ratio = float64(revealers) / float64(committers)
	}

	res := &Result{RevealRatio: ratio}

	if ratio < MinRevealsRatio {
		if revealers < f.emergencyFloor {
			return nil, qnerrors.Wrap(qnerrors.KindConsensus, "InsufficientNodes",
				"macro-block finalization failed: fewer reveals than the emergency floor",
				qnerrors.ErrInsufficientNodes)
		}
		res.Emergency = &EmergencyFinalization{Height: height, Participants: summary.Revealers}
		metrics.EmergencyFinalizations.Inc()
		log.WithFields(map[string]interface{}{
			"height":    height,
			"ratio":     ratio,
			"revealers": revealers,
		}).Warn("progressive (emergency) macro-block finalization")

		if revealers == 1 {
			res.Critical = &CriticalAlert{Height: height}
			log.WithField("height", height).Error("critical alert: finalizing with a single surviving participant")
		}
	}

	nextLeader, err := f.selector.DetermineLeader(summary.Revealers, summary.RandomBeacon)
	if err != nil {
		return nil, err
	}

	res.Block = &types.MacroBlock{
		Height:           height,
		Timestamp:        timestamp,
		PreviousHash:     previous,
		MicroBlockHashes: microBlockHashes,
		StateRoot:        stateRoot,
		ConsensusData: types.MacroBlockConsensusData{
			Commits:    f.collectCommits(),
			Reveals:    f.collectReveals(),
			NextLeader: nextLeader,
		},
	}
	return res, nil
}

// collectCommits and collectReveals re-read the round state for the full
// commit/reveal payloads; round.Summary itself only names participants.
func (f *Finalizer) collectCommits() map[types.Address]types.Commit {
	state := f.runner.State()
	if state == nil {
		return nil
	}
	out := make(map[types.Address]types.Commit, len(state.Commits))
	for addr, c := range state.Commits {
		out[addr] = c
	}
	return out
}

func (f *Finalizer) collectReveals() map[types.Address]types.Reveal {
	state := f.runner.State()
	if state == nil {
		return nil
	}
	out := make(map[types.Address]types.Reveal, len(state.Reveals))
	for addr, r := range state.Reveals {
		out[addr] = r
	}
	return out
}

// BoundedInterval clamps a configured micro-blocks-per-macro-block interval
// into the [60,90] range spec.md §4.8 allows.
func BoundedInterval(n int) int {
	if n < MinIntervalMicroBlocks {
		return MinIntervalMicroBlocks
	}
	if n > DefaultIntervalMicroBlocks {
		return DefaultIntervalMicroBlocks
	}
	return n
}
