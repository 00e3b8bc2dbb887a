package dsp

import "math"

// Speech-aware downward expander: controls pauses and room swell without
// hard gating. Attack 10 ms / release 150 ms / hold 80 ms targets the gaps
// between phrases; macroscopic level rides belong to the leveler, which runs
// on slower ballistics and must not be counteracted here.
const (
	expansionRatio   = 2.0
	maxAttenuationDB = 12.0

	expanderAttackMS      = 10.0
	expanderReleaseMS     = 150.0
	expanderFastReleaseMS = 30.0
	expanderHoldMS        = 80.0

	// Below this gain the release switches to the fast coefficient so a
	// phrase onset after long silence is not muffled.
	fastReleaseThreshold = 0.5

	thresholdOffsetDB = 6.0
	minThresholdDB    = -60.0
	maxThresholdDB    = -30.0

	// Stay transparent when the room is already this quiet.
	silenceExpandRMS = 0.0012
)

// SpeechExpander is a stereo-linked downward expander weighted by speech
// confidence: full expansion only when the sidechain hears no speech.
type SpeechExpander struct {
	sampleRate float64

	gainEnv        float64
	attackMix      float64
	releaseMix     float64
	fastReleaseMix float64

	holdCounter int
	holdSamples int

	thresholdDB float64

	currentGain float64
}

// NewSpeechExpander builds the expander for a sample rate.
func NewSpeechExpander(sampleRate float64) *SpeechExpander {
	return &SpeechExpander{
		sampleRate:     sampleRate,
		gainEnv:        1.0,
		attackMix:      timeConstantCoeff(expanderAttackMS, sampleRate),
		releaseMix:     timeConstantCoeff(expanderReleaseMS, sampleRate),
		fastReleaseMix: timeConstantCoeff(expanderFastReleaseMS, sampleRate),
		holdSamples:    max(int(expanderHoldMS*0.001*sampleRate), 1),
		thresholdDB:    minThresholdDB,
		currentGain:    1.0,
	}
}

// Process advances one stereo sample. Both channels share one gain so the
// image cannot wander.
func (e *SpeechExpander) Process(left, right, amount float64, sc SpeechSidechain, envL, envR VoiceEnvelope) (float64, float64) {
	if amount < 0.001 {
		return left, right
	}

	rms := math.Max(envL.RMS, envR.RMS)
	rmsDB := gainToDB(rms)

	if rms < silenceExpandRMS && sc.Confidence < 0.2 {
		return left, right
	}

	e.thresholdDB = clamp(sc.NoiseFloorDB+thresholdOffsetDB, minThresholdDB, maxThresholdDB)

	targetGain := 1.0
	if rmsDB < e.thresholdDB {
		diffDB := e.thresholdDB - rmsDB
		reductionDB := diffDB * (expansionRatio - 1)
		clampedReduction := math.Min(reductionDB, maxAttenuationDB)

		// Weight by inverse speech confidence: expand fully only when the
		// sidechain is sure there is no speech.
		speechWeight := 1 - sc.Confidence
		effectiveReduction := clampedReduction * speechWeight * amount

		targetGain = dbToGain(-effectiveReduction)
	}

	// Signal rising or stable rearms the hold so speech tails are not chased.
	if targetGain >= e.gainEnv*0.99 {
		e.holdCounter = e.holdSamples
	}

	var smoothed float64
	if targetGain < e.gainEnv {
		if e.holdCounter > 0 {
			e.holdCounter--
			smoothed = e.gainEnv
		} else {
			smoothed = e.gainEnv + e.attackMix*(targetGain-e.gainEnv)
		}
	} else {
		releaseMix := e.releaseMix
		if e.gainEnv < fastReleaseThreshold {
			releaseMix = e.fastReleaseMix
		}
		smoothed = e.gainEnv + releaseMix*(targetGain-e.gainEnv)
	}

	e.gainEnv = clamp(smoothed, dbToGain(-maxAttenuationDB), 1.0)
	e.currentGain = e.gainEnv

	return left * e.currentGain, right * e.currentGain
}

// GainReductionDB reports the engaged reduction for metering.
func (e *SpeechExpander) GainReductionDB() float64 {
	return -gainToDB(math.Max(e.currentGain, dbEps))
}

// ThresholdDB reports the adaptive threshold for metering.
func (e *SpeechExpander) ThresholdDB() float64 {
	return e.thresholdDB
}

// Reset clears all state.
func (e *SpeechExpander) Reset() {
	e.gainEnv = 1.0
	e.holdCounter = 0
	e.thresholdDB = minThresholdDB
	e.currentGain = 1.0
}
