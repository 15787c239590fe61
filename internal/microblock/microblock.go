// Package microblock implements C7: the per-height production pipeline that
// assembles a MicroBlock from the mempool, tracks adaptive timeouts, and
// fails over to a deterministic backup producer when the primary misses its
// window.
package microblock

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/qnet-project/qnet-core/internal/rotation"
	"github.com/qnet-project/qnet-core/qnet/crypto"
	"github.com/qnet-project/qnet-core/qnet/iface"
	"github.com/qnet-project/qnet-core/qnet/merkle"
	"github.com/qnet-project/qnet-core/qnet/metrics"
	"github.com/qnet-project/qnet-core/qnet/qnerrors"
	"github.com/qnet-project/qnet-core/qnet/qnlog"
	"github.com/qnet-project/qnet-core/qnet/types"
)

var log = qnlog.New("microblock")

// NetworkConditions is the last-measured packet loss / latency sample fed
// into NetworkAdjust.
type NetworkConditions struct {
	PacketLoss float64
	AvgLatency time.Duration
}

// StateDelta is the speculative execution result the pre-execution hook
// caches per transaction hash (spec.md §4.7).
type StateDelta struct {
	TxHash  types.Hash
	Applied bool
	GasUsed uint64
}

// Executor speculatively applies a transaction against current state; the
// pipeline's pre-execution hook uses it to warm the cache ahead of a node's
// own production turn.
type Executor interface {
	Execute(ctx context.Context, tx *types.Transaction) StateDelta
}

// Builder assembles micro-blocks: mempool drain, adaptive timeout lookup,
// emergency failover, and pre-execution caching all live here.
type Builder struct {
	mempool  iface.Mempool
	schedule *rotation.Scheduler
	exec     Executor
	signer   crypto.Signer

	preExecCache *gocache.Cache
	conditions   NetworkConditions
	now          func() time.Time
}

type Option func(*Builder)

func WithNetworkConditions(c NetworkConditions) Option {
	return func(b *Builder) { b.conditions = c }
}

func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

func WithExecutor(e Executor) Option {
	return func(b *Builder) { b.exec = e }
}

// New builds a Builder. The pre-execution cache's default TTL models "L
// blocks", converted to wall-clock time assuming one micro-block per
// interval; go-cache's janitor sweeps expired entries every lTTL/2.
func New(mempool iface.Mempool, schedule *rotation.Scheduler, signer crypto.Signer, interval time.Duration, opts ...Option) *Builder {
	lTTL := interval * rotation.DefaultLookahead
	b := &Builder{
		mempool:      mempool,
		schedule:     schedule,
		signer:       signer,
		preExecCache: gocache.New(lTTL, lTTL/2),
		now:          time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Assemble drains up to MaxMicroBlockTransactions from the mempool and
// builds the micro-block for height, linked to previous.
func (b *Builder) Assemble(ctx context.Context, height uint64, previous types.Hash, producer types.Address) (*types.MicroBlock, error) {
	batch := b.mempool.PopBatch(ctx, types.MaxMicroBlockTransactions)
	txs := make([]*types.Transaction, 0, len(batch))
	for _, m := range batch {
		txs = append(txs, m.Tx)
	}

	block := &types.MicroBlock{
		Height:       height,
		Timestamp:    b.now().Unix(),
		PreviousHash: previous,
		MerkleRoot:   merkle.Root(merkle.TransactionHashes(txs)),
		Transactions: txs,
		Producer:     producer,
	}

	if b.signer != nil {
		payload := blockSigningPayload(block)
		sig, err := b.signer.Sign(payload)
		if err != nil {
			return nil, qnerrors.Wrap(qnerrors.KindSecurity, "AuthenticationFailed",
				"micro-block signing failed", err)
		}
		sigAndMessage := append(append([]byte{}, sig...), payload...)
		packet := crypto.EncodePacket(sigAndMessage, b.signer.PublicKey())
		block.Signature = &types.Signature{Raw: packet}
	}
	return block, nil
}

func blockSigningPayload(b *types.MicroBlock) []byte {
	digest := crypto.DigestConcat(b.PreviousHash[:], b.MerkleRoot[:])
	return digest[:]
}

// Timeout computes the adaptive timeout for height and attempt (0-indexed
// retry count), folding in the builder's last-observed network conditions.
func (b *Builder) Timeout(height uint64, attempt int) time.Duration {
	base := BaseTimeout(height)
	backed := RetryBackoff(base, attempt)
	return NetworkAdjust(backed, b.conditions.PacketLoss, b.conditions.AvgLatency)
}

// ResolveProducer returns the scheduled producer for height under epoch, or
// the deterministic backup if primary has been given elapsed time without
// producing (spec.md §4.7 emergency failover).
func (b *Builder) ResolveProducer(epoch, height uint64, elapsed time.Duration, attempt int) (types.Address, error) {
	sched := b.schedule.BuildSchedule(epoch)
	primary, err := sched.ProducerAt(height)
	if err != nil {
		return "", err
	}
	if elapsed < b.Timeout(height, attempt) {
		return primary, nil
	}

	backup, err := sched.Backup(primary)
	if err != nil {
		return "", err
	}
	log.WithFields(map[string]interface{}{
		"height":  height,
		"primary": primary,
		"backup":  backup,
	}).Warn("emergency failover: primary producer missed its window")
	metrics.EmergencyFinalizations.Inc()
	return backup, nil
}

// PreExecute speculatively runs tx and caches the resulting delta, keyed by
// transaction hash, for consumption once this node's production turn
// arrives. Intended to be called for the mempool's top-N while this node
// appears in the schedule's next-L lookahead (spec.md §4.7).
func (b *Builder) PreExecute(ctx context.Context, tx *types.Transaction) {
	if b.exec == nil {
		return
	}
	delta := b.exec.Execute(ctx, tx)
	b.preExecCache.SetDefault(tx.Hash.String(), delta)
}

// CachedDelta returns a previously pre-executed delta for hash, if still
// within its TTL window.
func (b *Builder) CachedDelta(hash types.Hash) (StateDelta, bool) {
	v, ok := b.preExecCache.Get(hash.String())
	if !ok {
		return StateDelta{}, false
	}
	return v.(StateDelta), true
}

// ShouldPreExecute reports whether addr appears among the next lookahead
// producers starting at height, under epoch's schedule.
func (b *Builder) ShouldPreExecute(epoch, height uint64, addr types.Address) bool {
	sched := b.schedule.BuildSchedule(epoch)
	next, err := sched.Lookahead(height, rotation.DefaultLookahead)
	if err != nil {
		return false
	}
	for _, p := range next {
		if p == addr {
			return true
		}
	}
	return false
}
