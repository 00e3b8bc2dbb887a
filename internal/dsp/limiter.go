package dsp

import "math"

const (
	limiterCeiling = 0.98
	limiterKneeDB  = 1.5

	limiterRMSAttackMS  = 10.0
	limiterRMSReleaseMS = 120.0

	limiterPeakAttackMS  = 0.3
	limiterPeakReleaseMS = 50.0

	limiterRMSWeight  = 0.7
	limiterPeakWeight = 0.3

	limiterGainAttackMS  = 1.0
	limiterGainReleaseMS = 80.0
)

// LinkedLimiter is the stereo-linked output safety stage: hybrid
// RMS/peak detection into a soft knee at the 0.98 ceiling. It is purely
// protective and adds no color; driving it past ~6 dB of reduction will
// sound crunchy, which the leveler upstream is meant to prevent.
type LinkedLimiter struct {
	envSqL float64
	envSqR float64

	peakEnvL float64
	peakEnvR float64

	gainSmooth float64

	rmsAttackMix   float64
	rmsReleaseMix  float64
	peakAttackMix  float64
	peakReleaseMix float64
	gainAttackMix  float64
	gainReleaseMix float64
}

func NewLinkedLimiter(sampleRate float64) *LinkedLimiter {
	l := &LinkedLimiter{}
	l.Prepare(sampleRate)
	return l
}

func (l *LinkedLimiter) Prepare(sampleRate float64) {
	l.rmsAttackMix = timeConstantCoeff(limiterRMSAttackMS, sampleRate)
	l.rmsReleaseMix = timeConstantCoeff(limiterRMSReleaseMS, sampleRate)
	l.peakAttackMix = timeConstantCoeff(limiterPeakAttackMS, sampleRate)
	l.peakReleaseMix = timeConstantCoeff(limiterPeakReleaseMS, sampleRate)
	l.gainAttackMix = timeConstantCoeff(limiterGainAttackMS, sampleRate)
	l.gainReleaseMix = timeConstantCoeff(limiterGainReleaseMS, sampleRate)
	l.Reset()
}

func (l *LinkedLimiter) Reset() {
	l.envSqL = 0
	l.envSqR = 0
	l.peakEnvL = 0
	l.peakEnvR = 0
	l.gainSmooth = 1
}

// ComputeGain derives the linked limiter gain for one stereo sample.
// Apply the returned gain to both channels.
func (l *LinkedLimiter) ComputeGain(left, right float64) float64 {
	absL := math.Abs(left)
	absR := math.Abs(right)

	l.envSqL = updateEnvSq(l.envSqL, absL*absL, l.rmsAttackMix, l.rmsReleaseMix)
	l.envSqR = updateEnvSq(l.envSqR, absR*absR, l.rmsAttackMix, l.rmsReleaseMix)
	rms := math.Max(math.Sqrt(math.Max(l.envSqL, l.envSqR)), dbEps)

	if absL > l.peakEnvL {
		l.peakEnvL += l.peakAttackMix * (absL - l.peakEnvL)
	} else {
		l.peakEnvL += l.peakReleaseMix * (absL - l.peakEnvL)
	}
	if absR > l.peakEnvR {
		l.peakEnvR += l.peakAttackMix * (absR - l.peakEnvR)
	} else {
		l.peakEnvR += l.peakReleaseMix * (absR - l.peakEnvR)
	}
	peak := math.Max(math.Max(l.peakEnvL, l.peakEnvR), dbEps)

	hybrid := math.Max(limiterRMSWeight*rms+limiterPeakWeight*peak, dbEps)

	overDB := gainToDB(hybrid) - gainToDB(limiterCeiling)

	var targetGain float64
	switch {
	case overDB <= -limiterKneeDB*0.5:
		targetGain = 1
	case overDB >= limiterKneeDB*0.5:
		targetGain = dbToGain(-overDB)
	default:
		x := overDB + limiterKneeDB*0.5
		targetGain = dbToGain(-(x * x) / (2 * limiterKneeDB))
	}

	if targetGain < l.gainSmooth {
		l.gainSmooth += l.gainAttackMix * (targetGain - l.gainSmooth)
	} else {
		l.gainSmooth += l.gainReleaseMix * (targetGain - l.gainSmooth)
	}

	return l.gainSmooth
}

// GainReductionDB reports the current reduction for metering.
func (l *LinkedLimiter) GainReductionDB() float64 {
	return math.Abs(gainToDB(l.gainSmooth))
}
