package macroblock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qnet-project/qnet-core/internal/consensus/leader"
	"github.com/qnet-project/qnet-core/internal/consensus/round"
	"github.com/qnet-project/qnet-core/internal/macroblock"
	"github.com/qnet-project/qnet-core/internal/reputation"
	"github.com/qnet-project/qnet-core/qnet/crypto"
	"github.com/qnet-project/qnet-core/qnet/types"
)

func setup(t *testing.T, now *time.Time) (*round.Runner, *leader.Selector) {
	t.Helper()
	rep := reputation.New(reputation.WithClock(func() time.Time { return *now }))
	runner := round.NewRunner(rep,
		round.WithClock(func() time.Time { return *now }),
		round.WithWindows(macroblock.CommitWindow, macroblock.RevealWindow))
	sel := leader.New(rep)
	return runner, sel
}

func TestFinalizeNormalMajorityReveal(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	runner, sel := setup(t, &now)
	f := macroblock.New(runner, sel)

	_, err := f.StartRound(90)
	require.NoError(t, err)

	for _, n := range []string{"genesis_node_001", "genesis_node_002", "genesis_node_003"} {
		require.NoError(t, runner.AddCommit(types.Address(n), crypto.DigestConcat([]byte(n), []byte("nonce")), nil))
	}
	now = now.Add(macroblock.CommitWindow + time.Millisecond)
	for _, n := range []string{"genesis_node_001", "genesis_node_002", "genesis_node_003"} {
		require.NoError(t, runner.AddReveal(types.Address(n), types.Reveal{Value: []byte(n), Nonce: []byte("nonce")}))
	}
	now = now.Add(macroblock.RevealWindow + time.Millisecond)

	res, err := f.Finalize(90, types.ZeroHash, []types.Hash{{1}, {2}}, types.Hash{9}, now.Unix())
	require.NoError(t, err)
	require.Nil(t, res.Emergency)
	require.Nil(t, res.Critical)
	require.NotEmpty(t, res.Block.ConsensusData.NextLeader)
}

func TestFinalizeEmergencyBelowTwoThirds(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	runner, sel := setup(t, &now)
	f := macroblock.New(runner, sel)

	_, err := f.StartRound(90)
	require.NoError(t, err)

	for _, n := range []string{"genesis_node_001", "genesis_node_002", "genesis_node_003"} {
		require.NoError(t, runner.AddCommit(types.Address(n), crypto.DigestConcat([]byte(n), []byte("nonce")), nil))
	}
	now = now.Add(macroblock.CommitWindow + time.Millisecond)
	// Only one of three commits reveals: ratio 1/3 < 2/3, but >= emergency floor of 1.
	require.NoError(t, runner.AddReveal("genesis_node_001", types.Reveal{Value: []byte("genesis_node_001"), Nonce: []byte("nonce")}))
	now = now.Add(macroblock.RevealWindow + time.Millisecond)

	res, err := f.Finalize(90, types.ZeroHash, nil, types.Hash{9}, now.Unix())
	require.NoError(t, err)
	require.NotNil(t, res.Emergency)
	require.NotNil(t, res.Critical) // exactly one revealer -> single-node critical alert
}

func TestFinalizeFailsUnderEmergencyFloor(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	runner, sel := setup(t, &now)
	f := macroblock.New(runner, sel, macroblock.WithEmergencyFloor(2))

	_, err := f.StartRound(90)
	require.NoError(t, err)

	for _, n := range []string{"genesis_node_001", "genesis_node_002", "genesis_node_003"} {
		require.NoError(t, runner.AddCommit(types.Address(n), crypto.DigestConcat([]byte(n), []byte("nonce")), nil))
	}
	now = now.Add(macroblock.CommitWindow + time.Millisecond)
	require.NoError(t, runner.AddReveal("genesis_node_001", types.Reveal{Value: []byte("genesis_node_001"), Nonce: []byte("nonce")}))
	now = now.Add(macroblock.RevealWindow + time.Millisecond)

	_, err = f.Finalize(90, types.ZeroHash, nil, types.Hash{9}, now.Unix())
	require.Error(t, err)
}

func TestBoundedIntervalClamps(t *testing.T) {
	require.Equal(t, macroblock.MinIntervalMicroBlocks, macroblock.BoundedInterval(10))
	require.Equal(t, macroblock.DefaultIntervalMicroBlocks, macroblock.BoundedInterval(500))
	require.Equal(t, 75, macroblock.BoundedInterval(75))
}
