package dsp

import "math"

// Plosive softener: hidden protection against P/B thumps. A fast envelope
// watches for low-end bursts and dips a 150 Hz low shelf to meet them. The
// hygiene HPF runs in front, so anything that still triggers here is a real
// plosive rather than rumble.
const (
	plosiveShelfHz = 150.0
	plosiveShelfQ  = 0.707

	plosiveEnvAttackMS  = 1.0
	plosiveEnvReleaseMS = 50.0

	plosiveThresholdLin = 0.08
	plosiveMaxSoftenDB  = 8.0
)

// PlosiveSoftener is per-channel and always on.
type PlosiveSoftener struct {
	lowEnv        float64
	plosiveFilter biquad

	sampleRate float64
	attackMix  float64
	releaseMix float64

	currentReductionDB float64
}

// NewPlosiveSoftener builds the softener for a sample rate.
func NewPlosiveSoftener(sampleRate float64) *PlosiveSoftener {
	p := &PlosiveSoftener{
		plosiveFilter: newBiquad(),
		sampleRate:    sampleRate,
		attackMix:     timeConstantCoeff(plosiveEnvAttackMS, sampleRate),
		releaseMix:    timeConstantCoeff(plosiveEnvReleaseMS, sampleRate),
	}
	p.plosiveFilter.updateLowShelf(plosiveShelfHz, plosiveShelfQ, 0, sampleRate)
	return p
}

// Process advances one sample.
func (p *PlosiveSoftener) Process(input float64) float64 {
	absIn := math.Abs(input)

	if absIn > p.lowEnv {
		p.lowEnv += p.attackMix * (absIn - p.lowEnv)
	} else {
		p.lowEnv += p.releaseMix * (absIn - p.lowEnv)
	}

	over := math.Max(p.lowEnv-plosiveThresholdLin, 0)
	targetRed := math.Min(over*20, plosiveMaxSoftenDB)

	// Re-deriving shelf coefficients is the expensive part; skip sub-0.1 dB
	// moves.
	if math.Abs(targetRed-p.currentReductionDB) > 0.1 {
		p.currentReductionDB = targetRed
		p.plosiveFilter.updateLowShelf(plosiveShelfHz, plosiveShelfQ, -p.currentReductionDB, p.sampleRate)
	}

	return p.plosiveFilter.process(input)
}

// ReductionDB reports the engaged shelf cut for metering.
func (p *PlosiveSoftener) ReductionDB() float64 {
	return p.currentReductionDB
}

// Reset clears envelope and filter state.
func (p *PlosiveSoftener) Reset() {
	p.lowEnv = 0
	p.currentReductionDB = 0
	p.plosiveFilter.resetState()
	p.plosiveFilter.updateLowShelf(plosiveShelfHz, plosiveShelfQ, 0, p.sampleRate)
}
