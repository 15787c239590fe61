package types_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qnet-project/qnet-core/qnet/types"
)

func TestAddressKinds(t *testing.T) {
	require.Equal(t, types.AddressUserWallet, types.Address("qnet_0123456789abcdef").Kind())
	require.Equal(t, types.AddressGenesisNode, types.Address("genesis_node_001").Kind())
	require.Equal(t, types.AddressPeerNode, types.Address("node_0123456789abcdef").Kind())
	require.Equal(t, types.AddressUnknown, types.Address("not-an-address").Kind())
}

func TestGenesisAddressRoundTrip(t *testing.T) {
	addr := types.GenesisAddress(3)
	require.Equal(t, types.Address("genesis_node_003"), addr)
	id, err := addr.GenesisID()
	require.NoError(t, err)
	require.Equal(t, 3, id)
}

func TestReputationEffectiveScoreWhileJailed(t *testing.T) {
	rep := types.NodeReputation{
		Score: 80,
		Jail:  &types.JailRecord{Reason: "DoubleSign", JailedUntil: 1000},
	}
	require.Equal(t, float64(0), rep.EffectiveScore(500))
	require.Equal(t, float64(80), rep.EffectiveScore(1000))
}

func TestReputationNormalized(t *testing.T) {
	rep := types.NodeReputation{Score: 70}
	require.InDelta(t, 0.7, rep.Normalized(0), 1e-9)
}

func TestMaxSupplyIsTwoToThe32QNC(t *testing.T) {
	require.Equal(t, types.Amount(4294967296)*types.NanoPerQNC, types.MaxSupply)
}

func TestNodeTypeActivationAmounts(t *testing.T) {
	require.Equal(t, 5_000*types.NanoPerQNC, types.NodeLight.ActivationAmount())
	require.Equal(t, 7_500*types.NanoPerQNC, types.NodeFull.ActivationAmount())
	require.Equal(t, 10_000*types.NanoPerQNC, types.NodeSuper.ActivationAmount())
}
