package microblock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qnet-project/qnet-core/internal/microblock"
)

func TestBaseTimeoutHeightClasses(t *testing.T) {
	require.Equal(t, microblock.FirstBlockGrace, microblock.BaseTimeout(1))
	require.Equal(t, 5*time.Second, microblock.BaseTimeout(0))
	require.Equal(t, 3*time.Second, microblock.BaseTimeout(5))
	require.Equal(t, 2*time.Second, microblock.BaseTimeout(45))
	require.Equal(t, 3*time.Second, microblock.BaseTimeout(31)) // rotation boundary
	require.Equal(t, 5*time.Second, microblock.BaseTimeout(65)) // window overlap (65-1)%90=64>=60
}

func TestRetryBackoffEscalatesAndCaps(t *testing.T) {
	base := 2 * time.Second
	require.Equal(t, base, microblock.RetryBackoff(base, 0))
	require.Equal(t, 3*time.Second, microblock.RetryBackoff(base, 1))
	require.Equal(t, 5*time.Second, microblock.RetryBackoff(base, 2))
	require.Equal(t, microblock.MaxTimeout, microblock.RetryBackoff(base, 3)) // 5x2s=10s hits the cap exactly
	require.Equal(t, microblock.MaxTimeout, microblock.RetryBackoff(5*time.Second, 5))
}

func TestNetworkAdjustAppliesLossAndLatency(t *testing.T) {
	base := 2 * time.Second
	withLoss := microblock.NetworkAdjust(base, 0.20, 0)
	require.Equal(t, time.Duration(float64(base)*1.2), withLoss)

	withLatency := microblock.NetworkAdjust(base, 0, 600*time.Millisecond)
	require.Equal(t, base+60*time.Millisecond, withLatency)

	require.Equal(t, base, microblock.NetworkAdjust(base, 0.05, 100*time.Millisecond))
}
