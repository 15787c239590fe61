// Package mempool ships the minimal in-memory Mempool stand-in for the
// out-of-scope collaborator named in spec.md §1 and §6 — used only by this
// module's own tests and its demo entrypoint. Transactions are ordered by
// gas-price descending, oldest-first on ties, via a container/heap priority
// queue guarded by a mutex; eviction under capacity drops the lowest
// priority entry, oldest first among equals.
package mempool

import (
	"container/heap"
	"context"
	"sync"

	"github.com/qnet-project/qnet-core/qnet/iface"
	"github.com/qnet-project/qnet-core/qnet/qnerrors"
	"github.com/qnet-project/qnet-core/qnet/types"
)

// DefaultCapacity bounds the pool; Push on a full pool evicts the lowest
// priority entry before admitting a higher one, and is rejected outright if
// the incoming transaction would itself be the lowest.
const DefaultCapacity = 50_000

// PriorityFunc scores a transaction for queue ordering; the default is
// spec.md §6's gas-price. Swappable per SPEC_FULL.md's "custom priority
// calculator" variant point.
type PriorityFunc func(tx *types.Transaction) float64

func defaultPriority(tx *types.Transaction) float64 {
	return float64(tx.GasPrice)
}

type entry struct {
	tx       *types.Transaction
	priority float64
	seq      uint64 // insertion order, used for FIFO tie-break
	index    int
}

// txHeap is a max-heap on (priority desc, seq asc).
type txHeap []*entry

func (h txHeap) Len() int { return len(h) }
func (h txHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h txHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *txHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *txHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Pool is the reference Mempool implementation.
type Pool struct {
	mu       sync.Mutex
	heap     txHeap
	byHash   map[types.Hash]*entry
	capacity int
	priority PriorityFunc
	seq      uint64
}

type Option func(*Pool)

func WithCapacity(n int) Option { return func(p *Pool) { p.capacity = n } }

func WithPriorityFunc(f PriorityFunc) Option { return func(p *Pool) { p.priority = f } }

func New(opts ...Option) *Pool {
	p := &Pool{
		byHash:   make(map[types.Hash]*entry),
		capacity: DefaultCapacity,
		priority: defaultPriority,
	}
	for _, o := range opts {
		o(p)
	}
	heap.Init(&p.heap)
	return p
}

var _ iface.Mempool = (*Pool)(nil)

// Push admits tx, evicting the current lowest-priority entry if the pool is
// at capacity (spec.md §6: "priority queue with eviction when full"). Push
// rejects tx if it would itself be the lowest priority entry in a full pool.
func (p *Pool) Push(tx *types.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byHash[tx.Hash]; exists {
		return qnerrors.NewValidation("DuplicateTransaction", "transaction already in mempool")
	}

	e := &entry{tx: tx, priority: p.priority(tx), seq: p.seq}
	p.seq++

	if len(p.heap) >= p.capacity {
		lowest := p.heap[len(p.heap)-1]
		for _, cand := range p.heap {
			if cand.priority < lowest.priority || (cand.priority == lowest.priority && cand.seq < lowest.seq) {
				lowest = cand
			}
		}
		if e.priority < lowest.priority {
			return qnerrors.NewValidation("MempoolFull", "transaction priority below current eviction floor")
		}
		heap.Remove(&p.heap, lowest.index)
		delete(p.byHash, lowest.tx.Hash)
	}

	heap.Push(&p.heap, e)
	p.byHash[tx.Hash] = e
	return nil
}

// PopBatch removes and returns up to max highest-priority transactions.
func (p *Pool) PopBatch(ctx context.Context, max int) []iface.MempoolTx {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := max
	if n > len(p.heap) {
		n = len(p.heap)
	}
	out := make([]iface.MempoolTx, 0, n)
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return out
		default:
		}
		e := heap.Pop(&p.heap).(*entry)
		delete(p.byHash, e.tx.Hash)
		out = append(out, iface.MempoolTx{Tx: e.tx, Priority: e.priority})
	}
	return out
}

// Len reports the number of pending transactions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.heap)
}
