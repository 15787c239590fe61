package microblock

import "time"

// Timeout classes, per spec.md §4.7's adaptive schedule table.
const (
	bootstrapTimeout    = 5 * time.Second
	earlyNetworkTimeout = 3 * time.Second
	windowOverlapTimeout = 5 * time.Second
	rotationBoundaryTimeout = 3 * time.Second
	steadyStateTimeout  = 2 * time.Second

	// FirstBlockGrace replaces the bootstrap timeout for the very first
	// micro-block of the chain.
	FirstBlockGrace = 15 * time.Second

	// MaxTimeout is the absolute cap after retry back-off and network
	// adjustment are applied.
	MaxTimeout = 10 * time.Second
)

// MacroInterval is C8's micro-blocks-per-macro-block window; the "consensus
// window overlap" timeout class only applies inside the last 30 micro-blocks
// of that window (spec.md §4.7, §4.8).
const MacroInterval = 90

// BaseTimeout implements the height-class table of spec.md §4.7.
func BaseTimeout(height uint64) time.Duration {
	switch {
	case height == 1:
		return FirstBlockGrace
	case height <= 1:
		return bootstrapTimeout
	case height >= 2 && height <= 10:
		return earlyNetworkTimeout
	case height >= 61 && (height-1)%MacroInterval >= 60:
		return windowOverlapTimeout
	case height > 1 && (height-1)%IntervalBlocks == 0:
		return rotationBoundaryTimeout
	default:
		return steadyStateTimeout
	}
}

// IntervalBlocks mirrors rotation.IntervalBlocks; duplicated as a constant
// here (rather than importing internal/rotation) to keep the timeout table
// free of a dependency on the rotation schedule's producer-pool state.
const IntervalBlocks = 30

// RetryBackoff scales base by the multiplier for the given 0-indexed retry
// attempt (0 = first attempt, no backoff), per spec.md §4.7: 1.5x / 2.5x /
// 5x (capped) on the first, second, third-or-later retries.
func RetryBackoff(base time.Duration, attempt int) time.Duration {
	var mult float64
	switch {
	case attempt <= 0:
		mult = 1.0
	case attempt == 1:
		mult = 1.5
	case attempt == 2:
		mult = 2.5
	default:
		mult = 5.0
	}
	d := time.Duration(float64(base) * mult)
	if d > MaxTimeout {
		d = MaxTimeout
	}
	return d
}

// NetworkAdjust stretches timeout for observed packet loss (fraction, e.g.
// 0.15 for 15%) and average latency, per spec.md §4.7: loss > 10% multiplies
// by (1+loss); latency > 500ms adds latency/10ms.
func NetworkAdjust(timeout time.Duration, packetLoss float64, avgLatency time.Duration) time.Duration {
	d := timeout
	if packetLoss > 0.10 {
		d = time.Duration(float64(d) * (1 + packetLoss))
	}
	if avgLatency > 500*time.Millisecond {
		d += avgLatency / 10
	}
	if d > MaxTimeout {
		d = MaxTimeout
	}
	return d
}
