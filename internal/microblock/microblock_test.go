package microblock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qnet-project/qnet-core/internal/microblock"
	"github.com/qnet-project/qnet-core/internal/reputation"
	"github.com/qnet-project/qnet-core/internal/rotation"
	"github.com/qnet-project/qnet-core/qnet/crypto"
	"github.com/qnet-project/qnet-core/qnet/iface"
	"github.com/qnet-project/qnet-core/qnet/types"
)

type fakeMempool struct {
	txs []*types.Transaction
}

func (m *fakeMempool) Push(tx *types.Transaction) error { m.txs = append(m.txs, tx); return nil }
func (m *fakeMempool) PopBatch(ctx context.Context, max int) []iface.MempoolTx {
	n := max
	if n > len(m.txs) {
		n = len(m.txs)
	}
	out := make([]iface.MempoolTx, n)
	for i := 0; i < n; i++ {
		out[i] = iface.MempoolTx{Tx: m.txs[i]}
	}
	m.txs = m.txs[n:]
	return out
}
func (m *fakeMempool) Len() int { return len(m.txs) }

type fixedPool []types.Address

func (p fixedPool) ActiveFullAndSuperNodes() []types.Address { return p }

func newTx(nonce uint64) *types.Transaction {
	tx := &types.Transaction{From: "qnet_aaaaaaaa", Amount: 1, Nonce: nonce, GasPrice: types.MinGasPrice, GasLimit: types.DefaultGasLimitTransfer}
	tx.Hash = crypto.Digest([]byte{byte(nonce)})
	return tx
}

func TestAssembleBuildsSignedMicroBlock(t *testing.T) {
	mp := &fakeMempool{txs: []*types.Transaction{newTx(1), newTx(2)}}
	rep := reputation.New()
	rep.RecordSuccess("node_a")
	sched := rotation.New(rep, fixedPool{"node_a"})
	signer, err := crypto.NewEd25519Signer()
	require.NoError(t, err)

	b := microblock.New(mp, sched, signer, time.Second)
	block, err := b.Assemble(context.Background(), 5, types.ZeroHash, "node_a")
	require.NoError(t, err)
	require.Len(t, block.Transactions, 2)
	require.NotNil(t, block.Signature)
	require.Zero(t, mp.Len())
}

func TestResolveProducerFailsOverAfterTimeout(t *testing.T) {
	mp := &fakeMempool{}
	rep := reputation.New()
	rep.RecordSuccess("node_a")
	rep.RecordSuccess("node_b")
	sched := rotation.New(rep, fixedPool{"node_a", "node_b"})

	b := microblock.New(mp, sched, nil, time.Second)

	primary, err := b.ResolveProducer(1, 45, 0, 0)
	require.NoError(t, err)

	backup, err := b.ResolveProducer(1, 45, 10*time.Second, 0)
	require.NoError(t, err)
	require.NotEqual(t, primary, backup)
}

type recordingExecutor struct{ calls int }

func (e *recordingExecutor) Execute(ctx context.Context, tx *types.Transaction) microblock.StateDelta {
	e.calls++
	return microblock.StateDelta{TxHash: tx.Hash, Applied: true, GasUsed: 21000}
}

func TestPreExecuteCachesDelta(t *testing.T) {
	mp := &fakeMempool{}
	rep := reputation.New()
	rep.RecordSuccess("node_a")
	sched := rotation.New(rep, fixedPool{"node_a"})
	exec := &recordingExecutor{}

	b := microblock.New(mp, sched, nil, time.Second, microblock.WithExecutor(exec))
	tx := newTx(9)
	b.PreExecute(context.Background(), tx)

	delta, ok := b.CachedDelta(tx.Hash)
	require.True(t, ok)
	require.True(t, delta.Applied)
	require.Equal(t, 1, exec.calls)
}

func TestShouldPreExecuteMatchesLookahead(t *testing.T) {
	mp := &fakeMempool{}
	rep := reputation.New()
	for _, a := range []types.Address{"node_a", "node_b", "node_c"} {
		rep.RecordSuccess(a)
	}
	sched := rotation.New(rep, fixedPool{"node_a", "node_b", "node_c"})
	b := microblock.New(mp, sched, nil, time.Second)

	require.True(t, b.ShouldPreExecute(1, 0, "node_a"))
}
