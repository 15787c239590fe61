package codec_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qnet-project/qnet-core/qnet/codec"
	"github.com/qnet-project/qnet-core/qnet/types"
)

func sampleTx(t *testing.T) *types.Transaction {
	t.Helper()
	to := types.Address("qnet_deadbeefcafe0123")
	tx := &types.Transaction{
		From:      types.Address("qnet_0123456789abcdef"),
		To:        &to,
		Amount:    1_000_000_000,
		Nonce:     7,
		GasPrice:  types.MinGasPrice,
		GasLimit:  types.DefaultGasLimitTransfer,
		Timestamp: 1_700_000_000,
		Variant:   types.TxTransfer,
		Payload:   []byte("hello"),
		Signature: &types.Signature{Hybrid: false, Raw: []byte{1, 2, 3}},
	}
	tx.Hash = codec.TransactionHash(tx)
	return tx
}

func TestTransactionRoundTrip(t *testing.T) {
	tx := sampleTx(t)
	encoded := codec.EncodeTransaction(tx)
	decoded, err := codec.DecodeTransaction(encoded)
	require.NoError(t, err)
	require.Equal(t, tx, decoded)
}

func TestTransactionHashDeterministic(t *testing.T) {
	tx1 := sampleTx(t)
	tx2 := sampleTx(t)
	require.Equal(t, codec.TransactionHash(tx1), codec.TransactionHash(tx2))

	tx2.Nonce++
	require.NotEqual(t, codec.TransactionHash(tx1), codec.TransactionHash(tx2))
}

func TestMicroBlockRoundTrip(t *testing.T) {
	b := &types.MicroBlock{
		Height:       42,
		Timestamp:    1_700_000_100,
		PreviousHash: types.Hash{1, 2, 3},
		MerkleRoot:   types.Hash{4, 5, 6},
		Transactions: []*types.Transaction{sampleTx(t), sampleTx(t)},
		Producer:     "node_abc123",
		Signature:    &types.Signature{Hybrid: true, Raw: []byte{9, 9, 9}},
	}
	encoded := codec.EncodeMicroBlock(b)
	decoded, err := codec.DecodeMicroBlock(encoded)
	require.NoError(t, err)
	require.Equal(t, b, decoded)
}

func TestMacroBlockRoundTrip(t *testing.T) {
	b := &types.MacroBlock{
		Height:           3,
		Timestamp:        1_700_000_200,
		PreviousHash:     types.Hash{7, 7, 7},
		MicroBlockHashes: []types.Hash{{1}, {2}, {3}},
		StateRoot:        types.Hash{8, 8, 8},
		ConsensusData:    types.MacroBlockConsensusData{NextLeader: "genesis_node_001"},
	}
	encoded := codec.EncodeMacroBlock(b)
	decoded, err := codec.DecodeMacroBlock(encoded)
	require.NoError(t, err)
	require.Equal(t, b.Height, decoded.Height)
	require.Equal(t, b.MicroBlockHashes, decoded.MicroBlockHashes)
	require.Equal(t, b.StateRoot, decoded.StateRoot)
	require.Equal(t, b.ConsensusData.NextLeader, decoded.ConsensusData.NextLeader)
}

func TestDecodeTransactionTruncated(t *testing.T) {
	tx := sampleTx(t)
	encoded := codec.EncodeTransaction(tx)
	_, err := codec.DecodeTransaction(encoded[:len(encoded)-2])
	require.Error(t, err)
}
