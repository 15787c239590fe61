// Package leader implements C3, the reputation-weighted leader selector.
package leader

import (
	"github.com/qnet-project/qnet-core/internal/reputation"
	"github.com/qnet-project/qnet-core/qnet/qnerrors"
	"github.com/qnet-project/qnet-core/qnet/qnlog"
	"github.com/qnet-project/qnet-core/qnet/types"
)

var log = qnlog.New("consensus.leader")

// DefaultThreshold is the normalized-scale eligibility bar (0.7 == 70/100).
const DefaultThreshold = 0.7

// Selector wraps a reputation ledger with the filter-then-weighted-select
// policy of spec.md §4.3.
type Selector struct {
	rep       *reputation.Ledger
	threshold float64
}

type Option func(*Selector)

// WithThreshold overrides the default 0.7 normalized-score eligibility bar.
func WithThreshold(t float64) Option {
	return func(s *Selector) { s.threshold = t }
}

func New(rep *reputation.Ledger, opts ...Option) *Selector {
	s := &Selector{rep: rep, threshold: DefaultThreshold}
	for _, o := range opts {
		o(s)
	}
	return s
}

// DetermineLeader filters eligible by normalized reputation >= threshold,
// falling back to the unfiltered set if that leaves nobody, then performs a
// reputation-weighted, beacon-seeded selection.
func (s *Selector) DetermineLeader(eligible []types.Address, beacon []byte) (types.Address, error) {
	if len(eligible) == 0 {
		return "", qnerrors.ErrInsufficientNodes
	}

	filtered := make([]types.Address, 0, len(eligible))
	for _, addr := range eligible {
		if s.rep.Get(addr)/types.MaxReputationScore >= s.threshold {
			filtered = append(filtered, addr)
		}
	}

	candidates := filtered
	if len(candidates) == 0 {
		log.WithField("threshold", s.threshold).Warn("no candidate meets reputation threshold, falling back to unfiltered set")
		candidates = eligible
	}

	winner, ok := s.rep.WeightedSelect(candidates, string(beacon))
	if !ok {
		return "", qnerrors.ErrLeaderSelectionFailed
	}
	return winner, nil
}
