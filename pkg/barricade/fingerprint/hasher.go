package fingerprint

import "math"

// Hash layout, high to low: anchor bin (9 bits) | target bin (9 bits) | delta ms (14 bits).
const (
	FreqBits   = 9
	DeltaBits  = 14
	FanOut     = 6
	MinDeltaMs = 10
	MaxDeltaMs = 15000

	freqMask  = uint32(1)<<FreqBits - 1
	deltaMask = uint32(1)<<DeltaBits - 1
)

// Address packs an anchor/target pair into a hash. ok is false when the pair
// is too close, too far apart, or a bin does not fit.
func Address(anchor, target Peak) (hash uint32, ok bool) {
	a := uint32(anchor.FreqIdx)
	b := uint32(target.FreqIdx)
	delta := math.Round((target.Time - anchor.Time) * 1000.0)

	if delta < MinDeltaMs || delta > MaxDeltaMs {
		return 0, false
	}
	d := uint32(delta)
	if a > freqMask || b > freqMask || d > deltaMask {
		return 0, false
	}
	return a<<(FreqBits+DeltaBits) | b<<DeltaBits | d, true
}

// SplitAddress reverses Address.
func SplitAddress(hash uint32) (anchorBin, targetBin, deltaMs uint32) {
	return hash >> (FreqBits + DeltaBits) & freqMask, hash >> DeltaBits & freqMask, hash & deltaMask
}

func anchorMs(p Peak) uint32 {
	return uint32(math.Round(p.Time * 1000.0))
}

// pairs calls fn for every hashable anchor/target pair, at most FanOut targets
// per anchor. peaks must be sorted by time.
func pairs(peaks []Peak, fn func(hash uint32, anchor Peak)) {
	for i, anchor := range peaks {
		paired := 0
		for j := i + 1; j < len(peaks) && paired < FanOut; j++ {
			hash, ok := Address(anchor, peaks[j])
			if !ok {
				continue
			}
			fn(hash, anchor)
			paired++
		}
	}
}
