// Package forkchoice implements C4: a block tree scored by GHOST subtree
// weight plus reputation, with finalization and pruning. The tree is an
// indexed arena (map[Hash]*node, map[Hash][]Hash for children) rather than
// intrusive back-pointers, per spec.md §9's guidance for cyclic/DAG
// structures.
package forkchoice

import (
	"sync"
	"time"

	"github.com/qnet-project/qnet-core/qnet/metrics"
	"github.com/qnet-project/qnet-core/qnet/qnerrors"
	"github.com/qnet-project/qnet-core/qnet/qnlog"
	"github.com/qnet-project/qnet-core/qnet/types"
)

var log = qnlog.New("forkchoice")

type node struct {
	info types.BlockInfo
}

// EventKind classifies a ForkEvent.
type EventKind int

const (
	EventDetected EventKind = iota
	EventResolved
	EventReorg
	EventFailed
)

// ForkEvent is one entry in the fork-choice's bounded history ring buffer.
type ForkEvent struct {
	Kind      EventKind
	At        int64
	FromHead  types.Hash
	ToHead    types.Hash
	Detail    string
}

const eventHistoryCap = 1000

// Tree is the fork-choice block tree, protected by a single
// reader-writer lock: writers are AddBlock/FinalizeBlock, readers are
// fork-resolution and scoring (spec.md §5).
type Tree struct {
	mu        sync.RWMutex
	blocks    map[types.Hash]*node
	children  map[types.Hash][]types.Hash
	head      types.Hash
	finalized types.Hash
	events    []ForkEvent
	now       func() time.Time
}

type Option func(*Tree)

func WithClock(now func() time.Time) Option {
	return func(t *Tree) { t.now = now }
}

// NewWithGenesis seeds the tree with a root block that is both head and
// finalized.
func NewWithGenesis(genesis types.BlockInfo, opts ...Option) *Tree {
	t := &Tree{
		blocks:   make(map[types.Hash]*node),
		children: make(map[types.Hash][]types.Hash),
		now:      time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	t.blocks[genesis.Hash] = &node{info: genesis}
	t.head = genesis.Hash
	t.finalized = genesis.Hash
	return t
}

// Head returns the current canonical tip.
func (t *Tree) Head() types.Hash {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.head
}

// Finalized returns the current finalized block.
func (t *Tree) Finalized() types.Hash {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.finalized
}

// GetBlock returns the stored BlockInfo for hash.
func (t *Tree) GetBlock(hash types.Hash) (types.BlockInfo, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.blocks[hash]
	if !ok {
		return types.BlockInfo{}, false
	}
	return n.info, true
}

// HasChildren reports whether hash has any known children.
func (t *Tree) HasChildren(hash types.Hash) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.children[hash]) > 0
}

// GetAllForks returns every leaf block (a block with no children).
func (t *Tree) GetAllForks() []types.Hash {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var leaves []types.Hash
	for h := range t.blocks {
		if len(t.children[h]) == 0 {
			leaves = append(leaves, h)
		}
	}
	return leaves
}

// GetBlocksAtHeight returns every known block at the given height.
func (t *Tree) GetBlocksAtHeight(height uint64) []types.Hash {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []types.Hash
	for h, n := range t.blocks {
		if n.info.Height == height {
			out = append(out, h)
		}
	}
	return out
}

// ancestorChain walks from h to the tracked root, collecting every hash
// visited (including h itself). Caller must hold mu.
func (t *Tree) ancestorChain(h types.Hash) map[types.Hash]bool {
	seen := make(map[types.Hash]bool)
	cur := h
	for {
		seen[cur] = true
		n, ok := t.blocks[cur]
		if !ok {
			return seen
		}
		if n.info.Parent == cur {
			return seen
		}
		cur = n.info.Parent
	}
}

// FindCommonAncestor walks both chains back to their first shared block.
func (t *Tree) FindCommonAncestor(a, b types.Hash) (types.Hash, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if _, ok := t.blocks[a]; !ok {
		return types.Hash{}, qnerrors.ErrUnknownBlock
	}
	if _, ok := t.blocks[b]; !ok {
		return types.Hash{}, qnerrors.ErrUnknownBlock
	}

	ancestorsOfA := t.ancestorChain(a)
	cur := b
	for {
		if ancestorsOfA[cur] {
			return cur, nil
		}
		n, ok := t.blocks[cur]
		if !ok || n.info.Parent == cur {
			return types.Hash{}, qnerrors.ErrUnknownBlock
		}
		cur = n.info.Parent
	}
}

// AddBlock inserts block, linking it under its parent, then recomputes head.
func (t *Tree) AddBlock(info types.BlockInfo) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.blocks[info.Parent]; !ok && info.Parent != info.Hash {
		return qnerrors.ErrUnknownParent
	}
	t.blocks[info.Hash] = &node{info: info}
	t.children[info.Parent] = append(t.children[info.Parent], info.Hash)

	t.updateHead()
	return nil
}

// updateHead walks from finalized, at each step following the child with
// the highest chain_score, until it reaches a leaf. Caller must hold mu.
func (t *Tree) updateHead() {
	cur := t.finalized
	for {
		kids := t.children[cur]
		if len(kids) == 0 {
			break
		}
		best := kids[0]
		bestScore := t.chainScore(best)
		for _, k := range kids[1:] {
			if s := t.chainScore(k); s > bestScore {
				best, bestScore = k, s
			}
		}
		cur = best
	}

	if cur != t.head {
		prev := t.head
		t.head = cur
		t.recordEvent(ForkEvent{Kind: EventReorg, At: t.now().Unix(), FromHead: prev, ToHead: cur})
		metrics.ForkReorgs.Inc()
		log.WithFields(map[string]interface{}{"from": prev, "to": cur}).Warn("fork-choice head changed")
	}
	if n, ok := t.blocks[t.head]; ok {
		metrics.ForkChoiceHeadHeight.Set(float64(n.info.Height))
	}
}

// chainScore = subtree_weight + reputation_bonus - age_penalty, per spec.md
// §4.4. Caller must hold mu (read or write).
func (t *Tree) chainScore(hash types.Hash) float64 {
	n, ok := t.blocks[hash]
	if !ok {
		return 0
	}
	weight := float64(t.subtreeWeight(hash))
	repBonus := n.info.ProducerReputation
	age := float64(t.now().Unix()-n.info.Timestamp) / 3600.0
	if age > 1.0 {
		age = 1.0
	}
	if age < 0 {
		age = 0
	}
	return weight + repBonus - age
}

// subtreeWeight = 1 + sum(subtreeWeight(children)), recursively.
func (t *Tree) subtreeWeight(hash types.Hash) int {
	weight := 1
	for _, child := range t.children[hash] {
		weight += t.subtreeWeight(child)
	}
	return weight
}

// FinalizeBlock requires h to descend from the current finalized block.
// On success, finalized advances to h and everything at height <=
// finalized.height that is not an ancestor of h is pruned.
func (t *Tree) FinalizeBlock(h types.Hash) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	target, ok := t.blocks[h]
	if !ok {
		return qnerrors.ErrUnknownBlock
	}
	if !t.isDescendant(h, t.finalized) {
		return qnerrors.ErrInvalidFinalization
	}

	ancestors := t.ancestorChain(h)
	finalizedHeight := target.info.Height
	for hash, n := range t.blocks {
		if n.info.Height <= finalizedHeight && !ancestors[hash] {
			delete(t.blocks, hash)
			delete(t.children, hash)
		}
	}
	// Prune dangling child-list entries left pointing at deleted blocks.
	for parent, kids := range t.children {
		if _, ok := t.blocks[parent]; !ok && parent != types.ZeroHash {
			delete(t.children, parent)
			continue
		}
		kept := kids[:0]
		for _, k := range kids {
			if _, ok := t.blocks[k]; ok {
				kept = append(kept, k)
			}
		}
		t.children[parent] = kept
	}

	t.finalized = h
	return nil
}

// isDescendant reports whether candidate is ancestor or a descendant of it.
// Caller must hold mu.
func (t *Tree) isDescendant(candidate, ancestor types.Hash) bool {
	return t.ancestorChain(candidate)[ancestor]
}

func (t *Tree) recordEvent(e ForkEvent) {
	t.events = append(t.events, e)
	if len(t.events) > eventHistoryCap {
		t.events = t.events[len(t.events)-eventHistoryCap:]
	}
}

// Events returns a copy of the fork-event history ring buffer.
func (t *Tree) Events() []ForkEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]ForkEvent, len(t.events))
	copy(out, t.events)
	return out
}
