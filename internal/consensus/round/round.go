// Package round implements C2, the commit-reveal round: a two-phase
// random-beacon protocol with double-sign detection.
package round

import (
	"bytes"
	"sync"
	"time"

	"github.com/qnet-project/qnet-core/internal/reputation"
	"github.com/qnet-project/qnet-core/qnet/crypto"
	"github.com/qnet-project/qnet-core/qnet/metrics"
	"github.com/qnet-project/qnet-core/qnet/qnerrors"
	"github.com/qnet-project/qnet-core/qnet/qnlog"
	"github.com/qnet-project/qnet-core/qnet/types"
)

var log = qnlog.New("consensus.round")

const (
	DefaultCommitWindow = 60 * time.Second
	DefaultRevealWindow = 30 * time.Second
)

// Summary is the round-finalization report C8 and operators consume.
type Summary struct {
	Round          uint64
	Status         types.RoundStatus
	Committers     []types.Address
	Revealers      []types.Address
	Delinquents    []types.Address // committed but did not reveal
	RandomBeacon   []byte
	DoubleSigners  []types.Address
}

// Runner drives one commit-reveal round at a time against a shared
// reputation ledger. A canceled round leaves the state machine Failed and
// the next StartRound is permitted (spec.md §5).
type Runner struct {
	mu    sync.Mutex
	state *types.RoundState
	rep   *reputation.Ledger
	now   func() time.Time

	commitWindow time.Duration
	revealWindow time.Duration
}

type Option func(*Runner)

func WithWindows(commit, reveal time.Duration) Option {
	return func(r *Runner) { r.commitWindow, r.revealWindow = commit, reveal }
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

func NewRunner(rep *reputation.Ledger, opts ...Option) *Runner {
	r := &Runner{
		rep:          rep,
		now:          time.Now,
		commitWindow: DefaultCommitWindow,
		revealWindow: DefaultRevealWindow,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// StartRound captures `now` and opens the commit window. Permitted whenever
// no round is active or the previous round reached a terminal status.
func (r *Runner) StartRound(number uint64) (*types.RoundState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != nil && r.state.Status == types.RoundActive {
		return nil, qnerrors.Wrap(qnerrors.KindConsensus, "RoundInProgress",
			"a round is already active", qnerrors.ErrNoActiveRound)
	}

	now := r.now()
	commitEnd := now.Add(r.commitWindow).UnixMilli()
	revealEnd := commitEnd + r.revealWindow.Milliseconds()

	r.state = &types.RoundState{
		Number:      number,
		Phase:       types.PhaseCommit,
		CommitEndMs: commitEnd,
		RevealEndMs: revealEnd,
		Commits:     make(map[types.Address]types.Commit),
		Reveals:     make(map[types.Address]types.Reveal),
		Status:      types.RoundActive,
	}
	return r.state, nil
}

// State returns a snapshot of the current round, or nil if none has started.
func (r *Runner) State() *types.RoundState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		return nil
	}
	cp := *r.state
	return &cp
}

func (r *Runner) nowMs() int64 { return r.now().UnixMilli() }

// AddCommit stores node's commit once its deadline check clears; the phase
// itself moves to Reveal only when AddReveal is first called inside the
// reveal window. A second, differing
// commit from the same node is double-signing: it is rejected and the
// offender jailed.
func (r *Runner) AddCommit(node types.Address, hash types.Hash, sig *types.Signature) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == nil || r.state.Status != types.RoundActive {
		return qnerrors.ErrNoActiveRound
	}
	if r.nowMs() > r.state.CommitEndMs {
		return qnerrors.ErrPhaseTimeout
	}

	commit := types.Commit{Hash: hash, Signature: sig, Timestamp: r.now().Unix()}

	if existing, ok := r.state.Commits[node]; ok {
		if existing.Hash != hash {
			evidence := types.DoubleSignEvidence{
				Round:  r.state.Number,
				Node:   node,
				First:  existing,
				Second: commit,
			}
			r.rep.DestroyForDoubleSign(node)
			log.WithFields(map[string]interface{}{
				"round": evidence.Round,
				"node":  node,
			}).Error("double-sign detected")
			return qnerrors.ErrDoubleSigningDetected
		}
		// Identical resubmission is a no-op, not an error.
		return nil
	}

	r.state.Commits[node] = commit
	return nil
}

// AddReveal validates and stores node's reveal, then records success.
func (r *Runner) AddReveal(node types.Address, reveal types.Reveal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == nil || r.state.Status != types.RoundActive {
		return qnerrors.ErrNoActiveRound
	}
	nowMs := r.nowMs()
	if nowMs < r.state.CommitEndMs {
		return qnerrors.ErrInvalidPhase
	}
	if nowMs > r.state.RevealEndMs {
		return qnerrors.ErrPhaseTimeout
	}
	if r.state.Phase == types.PhaseCommit {
		r.state.Phase = types.PhaseReveal
	}

	commit, ok := r.state.Commits[node]
	if !ok {
		return qnerrors.ErrInvalidReveal
	}
	digest := crypto.DigestConcat(reveal.Value, reveal.Nonce)
	if digest != commit.Hash {
		return qnerrors.ErrInvalidReveal
	}

	r.state.Reveals[node] = reveal
	r.rep.RecordSuccess(node)
	return nil
}

// FinalizeRound closes the round: every committer who did not reveal is
// penalized, decay is applied, and a Summary (incl. the random beacon) is
// returned. The round transitions to Completed.
func (r *Runner) FinalizeRound() (*Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == nil {
		return nil, qnerrors.ErrNoActiveRound
	}

	summary := &Summary{Round: r.state.Number}

	for node := range r.state.Commits {
		summary.Committers = append(summary.Committers, node)
		if _, revealed := r.state.Reveals[node]; !revealed {
			r.rep.RecordFailure(node)
			summary.Delinquents = append(summary.Delinquents, node)
		}
	}
	for node := range r.state.Reveals {
		summary.Revealers = append(summary.Revealers, node)
	}

	r.rep.ApplyDecay()

	summary.RandomBeacon = buildBeacon(r.state)
	r.state.Phase = types.PhaseFinalize
	r.state.Status = types.RoundCompleted
	summary.Status = types.RoundCompleted

	metrics.RoundsFinalized.WithLabelValues(summary.Status.String()).Inc()
	return summary, nil
}

// FailRound aborts the round (e.g. on cancellation), leaving the state
// machine Failed so the next StartRound is permitted (spec.md §5).
func (r *Runner) FailRound() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != nil {
		r.state.Status = types.RoundFailed
		metrics.RoundsFinalized.WithLabelValues(types.RoundFailed.String()).Inc()
	}
}

// buildBeacon concatenates accepted reveal values in a deterministic
// (address-sorted) order so the beacon is independent of map iteration
// order, matching spec.md §4.2 ("concatenation of accepted reveal values").
func buildBeacon(state *types.RoundState) []byte {
	addrs := make([]types.Address, 0, len(state.Reveals))
	for a := range state.Reveals {
		addrs = append(addrs, a)
	}
	sortAddresses(addrs)

	var buf bytes.Buffer
	for _, a := range addrs {
		buf.Write(state.Reveals[a].Value)
	}
	return buf.Bytes()
}

func sortAddresses(addrs []types.Address) {
	for i := 1; i < len(addrs); i++ {
		for j := i; j > 0 && addrs[j-1] > addrs[j]; j-- {
			addrs[j-1], addrs[j] = addrs[j], addrs[j-1]
		}
	}
}
