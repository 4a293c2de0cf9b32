package flowtable

import "MirrorScope/internal/model"

// sampleModulus quantizes the sampling rate to 1/10000 steps.
const sampleModulus = 10000

// SampleThreshold converts a rate in (0,1] to the integer threshold used by
// ShouldSample. Computed once per worker, not per packet.
func SampleThreshold(rate float64) uint32 {
	if rate >= 1.0 {
		return sampleModulus
	}
	return uint32(rate * sampleModulus)
}

// ShouldSample decides whether a flow is counted under deterministic
// sampling. The same key always yields the same decision within a run, so a
// logical connection is never split into counted and uncounted fragments
// and merged counters can be compensated exactly by 1/rate. The flip side,
// deliberate: a single low-volume flow has roughly a (1-rate) chance of
// being missed entirely.
func ShouldSample(key model.FlowKey, threshold uint32) bool {
	if threshold >= sampleModulus {
		return true
	}
	return HashKey(key)%sampleModulus < threshold
}
