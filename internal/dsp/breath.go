package dsp

import "math"

// Breath reducer: softens inhales during low-confidence stretches without
// gating. The fourth power biases the breath probability hard toward
// genuinely non-speech moments, so soft phrase starts survive.
const (
	breathEnvAttackMS  = 5.0
	breathEnvReleaseMS = 40.0

	breathGainAttackMS  = 30.0
	breathGainReleaseMS = 100.0

	breathMaxReductionDB = 10.0
)

// BreathReducer is per-channel.
type BreathReducer struct {
	envelope   float64
	gainSmooth float64

	envAttackMix   float64
	envReleaseMix  float64
	gainAttackMix  float64
	gainReleaseMix float64
}

// NewBreathReducer builds the reducer for a sample rate.
func NewBreathReducer(sampleRate float64) *BreathReducer {
	return &BreathReducer{
		gainSmooth:     1.0,
		envAttackMix:   timeConstantCoeff(breathEnvAttackMS, sampleRate),
		envReleaseMix:  timeConstantCoeff(breathEnvReleaseMS, sampleRate),
		gainAttackMix:  timeConstantCoeff(breathGainAttackMS, sampleRate),
		gainReleaseMix: timeConstantCoeff(breathGainReleaseMS, sampleRate),
	}
}

// Process advances one sample.
func (b *BreathReducer) Process(input, amount float64, sc SpeechSidechain, _ VoiceEnvelope) float64 {
	absIn := math.Abs(input)

	if absIn > b.envelope {
		b.envelope += b.envAttackMix * (absIn - b.envelope)
	} else {
		b.envelope += b.envReleaseMix * (absIn - b.envelope)
	}

	breathProb := math.Pow(1-sc.Confidence, 4)

	targetReductionDB := amount * breathProb * breathMaxReductionDB
	targetGain := dbToGain(-targetReductionDB)

	if targetGain < b.gainSmooth {
		b.gainSmooth += b.gainAttackMix * (targetGain - b.gainSmooth)
	} else {
		b.gainSmooth += b.gainReleaseMix * (targetGain - b.gainSmooth)
	}

	return input * b.gainSmooth
}

// GainReductionDB reports the engaged reduction for metering.
func (b *BreathReducer) GainReductionDB() float64 {
	return -gainToDB(math.Max(b.gainSmooth, dbEps))
}

// Reset clears envelope and gain state.
func (b *BreathReducer) Reset() {
	b.envelope = 0
	b.gainSmooth = 1.0
}
