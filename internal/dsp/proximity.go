package dsp

import "math"

// Shelf corners and smoothing for the close-mic effect.
const (
	proxLowShelfHz  = 180.0
	proxHFShelfHz   = 8000.0
	proxFilterQ     = 0.7
	proxSmoothCoeff = 0.01
	proxMaxBoostDB  = 12.0
)

// Past this setting the top end rolls off slightly, mimicking the HF
// collapse of a genuinely close microphone.
const (
	proxHFRolloffThreshold = 0.7
	proxHFRolloffRange     = 0.3
	proxHFRolloffMaxDB     = -6.0
)

const (
	proxCoeffUpdateDB = 0.05
	proxBypassEps     = 0.001
)

// The low shelf is held back in pauses so room rumble is not boosted,
// and trimmed when clarity is cutting the same low-mid range.
const (
	proxSpeechGateFloor = 0.4
	proxClarityTrim     = 0.3
)

const proxDeverbContribScale = 0.4

// Proximity adds low-end warmth for a close-mic feel. A 180 Hz low
// shelf provides up to 12 dB of boost scaled by the slider; coefficient
// updates are gated so the shelf is only re-derived on audible changes.
type Proximity struct {
	lowShelf biquad
	hfShelf  biquad

	smoothed    float64
	lastBoostDB float64
	lastHFDB    float64

	sampleRate float64
}

func NewProximity(sampleRate float64) *Proximity {
	p := &Proximity{}
	p.Prepare(sampleRate)
	return p
}

func (p *Proximity) Prepare(sampleRate float64) {
	p.sampleRate = sampleRate
	p.Reset()
}

func (p *Proximity) Reset() {
	p.lowShelf.updateLowShelf(proxLowShelfHz, proxFilterQ, 0, p.sampleRate)
	p.hfShelf.updateHighShelf(proxHFShelfHz, proxFilterQ, 0, p.sampleRate)
	p.lowShelf.resetState()
	p.hfShelf.resetState()
	p.smoothed = 0
	p.lastBoostDB = 0
	p.lastHFDB = 0
}

// Process shapes one sample. speechConfidence gates the boost so pauses
// stay lean; clarityAmount trims it so the two stages do not fight over
// the low mids.
func (p *Proximity) Process(input, proximity, speechConfidence, clarityAmount float64) float64 {
	target := clamp01(proximity)
	if target <= proxBypassEps && p.smoothed <= proxBypassEps {
		p.smoothed = 0
		return input
	}

	target *= proxSpeechGateFloor + (1-proxSpeechGateFloor)*clamp01(speechConfidence)
	target *= 1 - proxClarityTrim*clamp01(clarityAmount)

	p.smoothed += (target - p.smoothed) * proxSmoothCoeff

	boostDB := proxMaxBoostDB * p.smoothed
	if math.Abs(boostDB-p.lastBoostDB) > proxCoeffUpdateDB {
		p.lowShelf.updateLowShelf(proxLowShelfHz, proxFilterQ, boostDB, p.sampleRate)
		p.lastBoostDB = boostDB
	}

	hfDB := 0.0
	if p.smoothed > proxHFRolloffThreshold {
		hfDB = proxHFRolloffMaxDB * (p.smoothed - proxHFRolloffThreshold) / proxHFRolloffRange
	}
	if math.Abs(hfDB-p.lastHFDB) > proxCoeffUpdateDB {
		p.hfShelf.updateHighShelf(proxHFShelfHz, proxFilterQ, hfDB, p.sampleRate)
		p.lastHFDB = hfDB
	}

	return p.hfShelf.process(p.lowShelf.process(input))
}

// BoostDB reports the current low-shelf gain.
func (p *Proximity) BoostDB() float64 {
	return p.lastBoostDB
}

// ProximityDeverbContribution maps a proximity setting to the de-verb
// reduction it implies. Closer miking reads as less room, so the engine
// subtracts this from the requested reverb reduction.
func ProximityDeverbContribution(proximity float64) float64 {
	return clamp01(proximity) * proxDeverbContribScale
}
