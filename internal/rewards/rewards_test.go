package rewards_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qnet-project/qnet-core/internal/rewards"
	"github.com/qnet-project/qnet-core/qnet/types"
)

func TestEmitPool1WindowAtGenesisMatchesInitialRate(t *testing.T) {
	genesis := time.Unix(1_700_000_000, 0)
	now := genesis
	l := rewards.New(genesis, rewards.WithClock(func() time.Time { return now }))

	emitted := l.EmitPool1Window()
	require.Equal(t, rewards.InitialPool1Rate, emitted)
	require.Equal(t, rewards.InitialPool1Rate, l.TotalSupply())
}

func TestEmitPool1WindowHalvesAfterFourYears(t *testing.T) {
	genesis := time.Unix(1_700_000_000, 0)
	now := genesis.AddDate(4, 0, 1)
	l := rewards.New(genesis, rewards.WithClock(func() time.Time { return now }))

	emitted := l.EmitPool1Window()
	require.InDelta(t, float64(rewards.InitialPool1Rate)/2, float64(emitted), float64(rewards.InitialPool1Rate)*0.01)
}

func TestEmitPool1WindowTruncatesAtMaxSupply(t *testing.T) {
	genesis := time.Unix(1_700_000_000, 0)
	now := genesis
	l := rewards.New(genesis, rewards.WithClock(func() time.Time { return now }))

	// Emitting once from genesis never exceeds MaxSupply.
	first := l.EmitPool1Window()
	require.True(t, first <= types.MaxSupply)
	require.True(t, l.TotalSupply() <= types.MaxSupply)

	// Keep emitting at the genesis rate (about 17,082 windows reach the cap):
	// the last window is truncated to the remaining supply, and emission
	// then stops for good.
	for i := 0; i < 20_000 && l.TotalSupply() < types.MaxSupply; i++ {
		l.EmitPool1Window()
	}
	require.Equal(t, types.MaxSupply, l.TotalSupply())
	require.Equal(t, types.Amount(0), l.EmitPool1Window())
}

func TestOnTransactionAppliedCreditsPool2(t *testing.T) {
	l := rewards.New(time.Unix(1_700_000_000, 0))
	l.OnTransactionApplied(21_000, types.MinGasPrice)
	require.Equal(t, types.Amount(21_000)*types.MinGasPrice, l.PoolBalance(rewards.PoolTransactionFees))
}

func TestOnActivationAcceptedOnlyCreditsInPhase2(t *testing.T) {
	l := rewards.New(time.Unix(1_700_000_000, 0))
	l.OnActivationAccepted(types.NodeFull, types.Phase1)
	require.Equal(t, types.Amount(0), l.PoolBalance(rewards.PoolActivation))

	l.OnActivationAccepted(types.NodeFull, types.Phase2)
	require.Equal(t, types.NodeFull.ActivationAmount(), l.PoolBalance(rewards.PoolActivation))
}

func TestEvaluatePhaseTransitionsOnBurnThreshold(t *testing.T) {
	genesis := time.Unix(1_700_000_000, 0)
	l := rewards.New(genesis, rewards.WithClock(func() time.Time { return genesis }))

	require.Equal(t, types.Phase1, l.Phase())
	phase := l.EvaluatePhase(0.95)
	require.Equal(t, types.Phase2, phase)
}

func TestEvaluatePhaseTransitionsAfterFiveYears(t *testing.T) {
	genesis := time.Unix(1_700_000_000, 0)
	now := genesis.AddDate(5, 0, 1)
	l := rewards.New(genesis, rewards.WithClock(func() time.Time { return now }))

	phase := l.EvaluatePhase(0.0)
	require.Equal(t, types.Phase2, phase)
}

func TestDistributeWindowRespectsPingEligibility(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := rewards.New(now, rewards.WithClock(func() time.Time { return now }))
	l.OnTransactionApplied(100_000, types.MinGasPrice)

	l.RecordPing("node_full_pinged")
	nodes := map[types.Address]rewards.NodeInfo{
		"node_light_silent":  {Type: types.NodeLight},
		"node_full_pinged":   {Type: types.NodeFull},
		"node_full_no_pings": {Type: types.NodeFull},
	}

	credited := l.DistributeWindow(rewards.PoolTransactionFees, nodes)
	require.Contains(t, credited, types.Address("node_light_silent"))
	require.Contains(t, credited, types.Address("node_full_pinged"))
	require.NotContains(t, credited, types.Address("node_full_no_pings"))
}

func TestClaimIsIdempotent(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := rewards.New(now, rewards.WithClock(func() time.Time { return now }))
	l.OnTransactionApplied(100_000, types.MinGasPrice)
	l.RecordPing("node_a")
	l.DistributeWindow(rewards.PoolTransactionFees, map[types.Address]rewards.NodeInfo{
		"node_a": {Type: types.NodeFull},
	})

	require.NotZero(t, l.PendingReward("node_a"))
	claimed, err := l.Claim("node_a")
	require.NoError(t, err)
	require.NotZero(t, claimed)

	second, err := l.Claim("node_a")
	require.NoError(t, err)
	require.Zero(t, second)
	require.Zero(t, l.PendingReward("node_a"))
}
