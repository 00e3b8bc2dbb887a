package dsp

import "math"

// Early reflection suppressor: reduces perceived distance by cancelling
// short-lag reflections (3 to 18 ms) without touching tone. The late tail
// past 50 ms belongs to the de-verb stage.
const (
	erMaxDelayMS      = 25.0
	erMaxSampleRate   = 96000.0
	erMaxDelaySamples = int(erMaxDelayMS*0.001*erMaxSampleRate) + 1

	erMaxSuppression = 0.35
	erAttackMS       = 60.0
	erReleaseMS      = 250.0

	erCorrelationThreshold = 0.15
	erMinSpeechConf        = 0.2
)

// Tap lags map to typical room geometry: desk (~1 m), near side wall
// (~2.4 m), floor or ceiling (~4.1 m), opposite wall (~6.2 m). Alternating
// sign keeps the estimate from combing.
var (
	erTapDelaysMS = [4]float64{3.0, 7.0, 12.0, 18.0}
	erTapWeights  = [4]float64{0.35, 0.30, 0.20, 0.15}
)

// EarlyReflectionSuppressor is a per-channel micro de-verb. Suppression only
// engages when the tap estimate actually correlates with the input and the
// sidechain hears speech, so dry rooms pass through untouched.
type EarlyReflectionSuppressor struct {
	sampleRate float64

	delayBuffer  []float64
	writePos     int
	tapPositions [4]int

	correlationAcc      float64
	inputEnergyAcc      float64
	reflectionEnergyAcc float64
	frameSamples        int
	frameSize           int

	suppressionEnv float64
	attackMix      float64
	releaseMix     float64

	currentSuppression float64
}

// NewEarlyReflectionSuppressor builds the suppressor for a sample rate up to
// 96 kHz.
func NewEarlyReflectionSuppressor(sampleRate float64) *EarlyReflectionSuppressor {
	e := &EarlyReflectionSuppressor{
		sampleRate:  sampleRate,
		delayBuffer: make([]float64, erMaxDelaySamples),
		frameSize:   max(int(0.005*sampleRate), 8),
		attackMix:   timeConstantCoeff(erAttackMS, sampleRate),
		releaseMix:  timeConstantCoeff(erReleaseMS, sampleRate),
	}
	for i, delayMS := range erTapDelaysMS {
		pos := int(delayMS * 0.001 * sampleRate)
		if pos > erMaxDelaySamples-1 {
			pos = erMaxDelaySamples - 1
		}
		e.tapPositions[i] = pos
	}
	return e
}

// Process advances one sample.
func (e *EarlyReflectionSuppressor) Process(input, amount float64, sc SpeechSidechain) float64 {
	e.delayBuffer[e.writePos] = input

	var reflectionEstimate float64
	for i, tapPos := range e.tapPositions {
		readPos := e.writePos - tapPos
		if readPos < 0 {
			readPos += erMaxDelaySamples
		}
		tap := e.delayBuffer[readPos]
		if i&1 == 1 {
			tap = -tap
		}
		reflectionEstimate += tap * erTapWeights[i]
	}

	e.correlationAcc += input * reflectionEstimate
	e.inputEnergyAcc += input * input
	e.reflectionEnergyAcc += reflectionEstimate * reflectionEstimate
	e.frameSamples++

	if e.frameSamples >= e.frameSize {
		e.updateSuppressionEnvelope(amount, sc)
		e.correlationAcc = 0
		e.inputEnergyAcc = 0
		e.reflectionEnergyAcc = 0
		e.frameSamples = 0
	}

	e.writePos++
	if e.writePos >= erMaxDelaySamples {
		e.writePos = 0
	}

	cancelled := reflectionEstimate * e.currentSuppression
	cancelled = clamp(cancelled, -math.Abs(input), math.Abs(input))

	return input - cancelled
}

func (e *EarlyReflectionSuppressor) updateSuppressionEnvelope(amount float64, sc SpeechSidechain) {
	denom := math.Sqrt(e.inputEnergyAcc * e.reflectionEnergyAcc)
	normCorr := 0.0
	if denom > dbEps {
		normCorr = clamp(e.correlationAcc/denom, -1, 1)
	}

	speechGate := 0.0
	if sc.Confidence > erMinSpeechConf {
		speechGate = clamp01((sc.Confidence - erMinSpeechConf) / (1 - erMinSpeechConf))
	}

	correlationFactor := 0.0
	if normCorr > erCorrelationThreshold {
		correlationFactor = clamp01((normCorr - erCorrelationThreshold) / (1 - erCorrelationThreshold))
	}

	target := erMaxSuppression * speechGate * correlationFactor * amount

	if target > e.suppressionEnv {
		e.suppressionEnv += e.attackMix * (target - e.suppressionEnv)
	} else {
		e.suppressionEnv += e.releaseMix * (target - e.suppressionEnv)
	}

	e.currentSuppression = clamp(e.suppressionEnv, 0, erMaxSuppression)
}

// Suppression reports the engaged suppression factor for metering.
func (e *EarlyReflectionSuppressor) Suppression() float64 {
	return e.currentSuppression
}

// Reset clears all state.
func (e *EarlyReflectionSuppressor) Reset() {
	for i := range e.delayBuffer {
		e.delayBuffer[i] = 0
	}
	e.writePos = 0
	e.correlationAcc = 0
	e.inputEnergyAcc = 0
	e.reflectionEnergyAcc = 0
	e.frameSamples = 0
	e.suppressionEnv = 0
	e.currentSuppression = 0
}
