package processor

import "math"

// LoudnessToleranceLU is the acceptable deviation between delivered
// loudness and an output preset's target.
const LoudnessToleranceLU = 0.5

// GainToTarget returns the static gain in dB that moves measured loudness
// onto the target.
//
// Parameters:
//   - measuredLUFS: Integrated loudness of the material (LUFS)
//   - targetLUFS: Desired integrated loudness (LUFS)
//
// Returns:
//   - gain: dB to apply, positive when the material is too quiet
func GainToTarget(measuredLUFS, targetLUFS float64) float64 {
	return targetLUFS - measuredLUFS
}

// CeilingLimitedGain returns the static gain toward a loudness target that
// a true-peak ceiling allows without limiting.
//
// The full gain would put the projected peak at measuredTP + gain. When
// that exceeds the ceiling, the gain is reduced so the projected peak sits
// exactly on the ceiling and limited is true: a limiter has to absorb the
// remainder if the target must still be reached.
//
// Parameters:
//   - measuredLUFS: Integrated loudness of the material (LUFS)
//   - measuredTP: True peak of the material (dBTP)
//   - targetLUFS: Desired integrated loudness (LUFS)
//   - ceilingTP: Highest allowed true peak (dBTP)
//
// Returns:
//   - gain: dB of clean gain available
//   - limited: True when the ceiling cut the gain short of the target
func CeilingLimitedGain(measuredLUFS, measuredTP, targetLUFS, ceilingTP float64) (gain float64, limited bool) {
	gain = GainToTarget(measuredLUFS, targetLUFS)
	headroom := ceilingTP - measuredTP
	if gain <= headroom {
		return gain, false
	}
	return headroom, true
}

// WithinTolerance reports whether delivered loudness is close enough to a
// target. Either measurement at or below the silence floor fails the check,
// since a gated-out measurement says nothing about delivery.
func WithinTolerance(measuredLUFS, targetLUFS, toleranceLU float64) bool {
	if measuredLUFS <= adaptiveSilenceLUFS || targetLUFS <= adaptiveSilenceLUFS {
		return false
	}
	return math.Abs(measuredLUFS-targetLUFS) <= toleranceLU
}
