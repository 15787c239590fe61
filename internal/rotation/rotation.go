// Package rotation implements C6: the deterministic producer schedule that
// derives, for any micro-block height, which active Full/Super node is the
// designated producer.
package rotation

import (
	"sort"

	lru "github.com/hashicorp/golang-lru"

	"github.com/qnet-project/qnet-core/internal/reputation"
	"github.com/qnet-project/qnet-core/qnet/qnerrors"
	"github.com/qnet-project/qnet-core/qnet/types"
)

// IntervalBlocks is the rotation period in micro-blocks (spec.md §4.6).
const IntervalBlocks = 30

// DefaultLookahead is the number of future producers a node precomputes for
// the pre-execution hook (spec.md §4.7).
const DefaultLookahead = 3

// ActiveNodeSource supplies the current candidate pool: the addresses of the
// active Full and Super nodes. It does not report node types.
type ActiveNodeSource interface {
	ActiveFullAndSuperNodes() []types.Address
}

// Schedule is the reputation-sorted, rotation-eligible producer set computed
// for one epoch (one cache-able snapshot of the active-node pool).
type Schedule struct {
	producers []types.Address
}

func (s Schedule) Len() int { return len(s.producers) }

// ProducerAt returns the scheduled producer for height under this snapshot.
func (s Schedule) ProducerAt(height uint64) (types.Address, error) {
	if len(s.producers) == 0 {
		return "", qnerrors.ErrInsufficientNodes
	}
	idx := (height / IntervalBlocks) % uint64(len(s.producers))
	return s.producers[idx], nil
}

// Lookahead returns the next n producers starting at height (inclusive),
// one per rotation interval, used by C7's pre-execution hook.
func (s Schedule) Lookahead(height uint64, n int) ([]types.Address, error) {
	if len(s.producers) == 0 {
		return nil, qnerrors.ErrInsufficientNodes
	}
	out := make([]types.Address, 0, n)
	for i := 0; i < n; i++ {
		h := height + uint64(i)*IntervalBlocks
		addr, err := s.ProducerAt(h)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

// Backup returns the next eligible peer after addr in the schedule, used by
// C7's emergency failover (spec.md §4.7: "the next eligible peer in the
// reputation-sorted schedule").
func (s Schedule) Backup(addr types.Address) (types.Address, error) {
	if len(s.producers) == 0 {
		return "", qnerrors.ErrInsufficientNodes
	}
	for i, p := range s.producers {
		if p == addr {
			return s.producers[(i+1)%len(s.producers)], nil
		}
	}
	return s.producers[0], nil
}

// Scheduler builds and caches rotation Schedules, keyed by a caller-supplied
// epoch token (e.g. the active-node pool's generation counter), so repeated
// ProducerAt queries within the same epoch avoid re-sorting the pool.
type Scheduler struct {
	rep    *reputation.Ledger
	active ActiveNodeSource
	cache  *lru.Cache
}

const defaultCacheSize = 8

func New(rep *reputation.Ledger, active ActiveNodeSource) *Scheduler {
	cache, _ := lru.New(defaultCacheSize)
	return &Scheduler{rep: rep, active: active, cache: cache}
}

// BuildSchedule computes (or returns the cached) Schedule for epoch. Callers
// bump epoch whenever the active-node pool's membership changes.
func (s *Scheduler) BuildSchedule(epoch uint64) Schedule {
	if cached, ok := s.cache.Get(epoch); ok {
		return cached.(Schedule)
	}

	candidates := s.active.ActiveFullAndSuperNodes()
	eligible := make([]types.Address, 0, len(candidates))
	for _, addr := range candidates {
		if s.rep.IsJailed(addr) {
			continue
		}
		if s.rep.Get(addr) >= types.InitialReputationScore {
			eligible = append(eligible, addr)
		}
	}

	sort.Slice(eligible, func(i, j int) bool {
		si, sj := s.rep.Get(eligible[i]), s.rep.Get(eligible[j])
		if si != sj {
			return si > sj
		}
		return eligible[i] < eligible[j]
	})

	schedule := Schedule{producers: eligible}
	s.cache.Add(epoch, schedule)
	return schedule
}
