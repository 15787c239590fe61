package activation_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qnet-project/qnet-core/internal/activation"
	"github.com/qnet-project/qnet-core/qnet/types"
)

func TestParseCodeRecognizesUserAndGenesisShapes(t *testing.T) {
	kind, _ := activation.ParseCode("QNET-AB12CD-34EF56-78GH90")
	require.Equal(t, activation.CodeUser, kind)

	kind, id := activation.ParseCode("QNET-BOOT-0001-STRAP")
	require.Equal(t, activation.CodeGenesis, kind)
	require.Equal(t, "0001", id)

	kind, _ = activation.ParseCode("not-a-code")
	require.Equal(t, activation.CodeInvalid, kind)
}

func TestActivateAndLoadRoundTripsAcrossDeviceMigration(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	reg := activation.New(activation.WithClock(func() time.Time { return now }))

	code := "QNET-AB12CD-34EF56-78GH90"
	_, err := reg.Activate(code, "qnet_aaaaaaaa", types.NodeFull, "host-1", "", types.Phase1)
	require.NoError(t, err)

	wallet, nodeType, ts, err := reg.LoadActivationCode("qnet_aaaaaaaa", code)
	require.NoError(t, err)
	require.Equal(t, types.Address("qnet_aaaaaaaa"), wallet)
	require.Equal(t, types.NodeFull, nodeType)
	require.Equal(t, now.Unix(), ts)

	_, err = reg.MigrateDevice("qnet_aaaaaaaa", "host-2")
	require.NoError(t, err)

	// Changing HOSTNAME never invalidates decryption: the key depends only
	// on the code.
	wallet2, nodeType2, ts2, err := reg.LoadActivationCode("qnet_aaaaaaaa", code)
	require.NoError(t, err)
	require.Equal(t, wallet, wallet2)
	require.Equal(t, nodeType, nodeType2)
	require.Equal(t, ts, ts2)
}

func TestLoadActivationCodeRejectsWrongCode(t *testing.T) {
	reg := activation.New()
	code := "QNET-AB12CD-34EF56-78GH90"
	_, err := reg.Activate(code, "qnet_aaaaaaaa", types.NodeLight, "host-1", "", types.Phase1)
	require.NoError(t, err)

	_, _, _, err = reg.LoadActivationCode("qnet_aaaaaaaa", "QNET-000000-000000-000000")
	require.Error(t, err)
}

func TestGenesisActivationRequiresWhitelistedIP(t *testing.T) {
	reg := activation.New()
	_, err := reg.Activate("QNET-BOOT-0001-STRAP", "genesis_node_001", types.NodeSuper, "host-1", "10.0.0.9", types.Phase1)
	require.Error(t, err)

	_, err = reg.Activate("QNET-BOOT-0001-STRAP", "genesis_node_001", types.NodeSuper, "host-1", "10.0.0.1", types.Phase1)
	require.NoError(t, err)
}

func TestMigrateDeviceRateLimitsFullAndSuperButNotLight(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	reg := activation.New(activation.WithClock(func() time.Time { return now }))

	code := "QNET-AB12CD-34EF56-78GH91"
	_, err := reg.Activate(code, "qnet_bbbbbbbb", types.NodeFull, "host-1", "", types.Phase1)
	require.NoError(t, err)
	_, err = reg.MigrateDevice("qnet_bbbbbbbb", "host-2")
	require.NoError(t, err)

	_, err = reg.MigrateDevice("qnet_bbbbbbbb", "host-3")
	require.Error(t, err)

	now = now.Add(activation.MigrationInterval + time.Second)
	_, err = reg.MigrateDevice("qnet_bbbbbbbb", "host-3")
	require.NoError(t, err)

	lightCode := "QNET-AB12CD-34EF56-78GH92"
	_, err = reg.Activate(lightCode, "qnet_cccccccc", types.NodeLight, "host-1", "", types.Phase1)
	require.NoError(t, err)
	_, err = reg.MigrateDevice("qnet_cccccccc", "host-2")
	require.NoError(t, err)
	_, err = reg.MigrateDevice("qnet_cccccccc", "host-3")
	require.NoError(t, err)
}
