package dsp

import "math"

// Confidence gate band. Below the low edge the gate is fully open;
// above the high edge it is closed.
const (
	cleanupConfLow  = 0.18
	cleanupConfHigh = 0.38
)

const (
	cleanupMaxReductionDB = 2.5

	cleanupShelfHz    = 4500.0
	cleanupShelfQ     = 0.7
	cleanupShelfBlend = 0.6
	cleanupShelfScale = 0.9

	cleanupAttackMS  = 6.0
	cleanupReleaseMS = 90.0
	cleanupHoldMS    = 25.0

	cleanupShelfGateDB = 0.02
)

// If the confidence signal stops moving for this long it is treated as
// dead and the stage falls back to an envelope SNR gate.
const (
	cleanupFlatlineEps = 0.001
	cleanupFlatlineSec = 2.0

	cleanupSNRLow  = 1.4
	cleanupSNRHigh = 3.0
)

// PostNoiseCleanup is a very light second noise pass that tucks hiss
// revealed by the recovery EQ. It engages only when speech confidence
// is low and caps its reduction to a few dB, with an optional HF shelf
// bias so the cut lands on recovered hiss rather than the voice body.
type PostNoiseCleanup struct {
	gain     float64
	lastGate float64

	holdSamples      int
	holdSamplesTotal int

	attackMix  float64
	releaseMix float64

	prevConf             float64
	flatlineSamples      int
	flatlineSamplesTotal int

	hfShelfL    biquad
	hfShelfR    biquad
	lastShelfDB float64

	sampleRate float64
}

func NewPostNoiseCleanup(sampleRate float64) *PostNoiseCleanup {
	c := &PostNoiseCleanup{}
	c.Prepare(sampleRate)
	return c
}

func (c *PostNoiseCleanup) Prepare(sampleRate float64) {
	c.sampleRate = math.Max(sampleRate, 1)
	c.attackMix = timeConstantCoeff(cleanupAttackMS, c.sampleRate)
	c.releaseMix = timeConstantCoeff(cleanupReleaseMS, c.sampleRate)
	c.holdSamplesTotal = max(int(math.Round(cleanupHoldMS*0.001*c.sampleRate)), 1)
	c.flatlineSamplesTotal = max(int(math.Round(cleanupFlatlineSec*c.sampleRate)), 1)
	c.Reset()
}

func (c *PostNoiseCleanup) Reset() {
	c.gain = 1
	c.lastGate = 0
	c.holdSamples = 0
	c.prevConf = 0
	c.flatlineSamples = 0
	c.hfShelfL.setIdentity()
	c.hfShelfR.setIdentity()
	c.hfShelfL.resetState()
	c.hfShelfR.resetState()
	c.lastShelfDB = 0
}

// Process runs one stereo sample through the cleanup gate. envRMS and
// envNoiseFloor feed the fallback SNR gate when confidence flatlines.
func (c *PostNoiseCleanup) Process(left, right, speechConf, envRMS, envNoiseFloor, amount float64, useHFBias bool) (l, r float64) {
	amt := clamp01(amount)
	if amt < 1e-4 {
		c.gain = 1
		return left, right
	}

	if math.Abs(speechConf-c.prevConf) < cleanupFlatlineEps {
		c.flatlineSamples = min(c.flatlineSamples+1, c.flatlineSamplesTotal)
	} else {
		c.flatlineSamples = 0
	}
	c.prevConf = speechConf
	confValid := c.flatlineSamples < c.flatlineSamplesTotal

	var gate float64
	if confValid {
		gate = 1 - smoothstep(cleanupConfLow, cleanupConfHigh, speechConf)
	} else {
		snr := envRMS / (envNoiseFloor + 1e-9)
		gate = 1 - smoothstep(cleanupSNRLow, cleanupSNRHigh, snr)
	}

	gate = clamp01(gate)
	if gate > 0.01 {
		c.holdSamples = c.holdSamplesTotal
		c.lastGate = gate
	} else if c.holdSamples > 0 {
		c.holdSamples--
		gate = c.lastGate
	} else {
		c.lastGate = 0
	}

	maxDB := cleanupMaxReductionDB * amt
	targetGain := dbToGain(-maxDB * gate)

	if targetGain < c.gain {
		c.gain += c.attackMix * (targetGain - c.gain)
	} else {
		c.gain += c.releaseMix * (targetGain - c.gain)
	}

	broadL := left * c.gain
	broadR := right * c.gain
	if !useHFBias {
		return broadL, broadR
	}

	shelfDB := -maxDB * gate * cleanupShelfScale
	if math.Abs(shelfDB-c.lastShelfDB) > cleanupShelfGateDB {
		c.hfShelfL.updateHighShelf(cleanupShelfHz, cleanupShelfQ, shelfDB, c.sampleRate)
		c.hfShelfR.updateHighShelf(cleanupShelfHz, cleanupShelfQ, shelfDB, c.sampleRate)
		c.lastShelfDB = shelfDB
	}

	shelfL := c.hfShelfL.process(broadL)
	shelfR := c.hfShelfR.process(broadR)
	return lerp(broadL, shelfL, cleanupShelfBlend), lerp(broadR, shelfR, cleanupShelfBlend)
}

// ReductionDB reports the current broadband cut as a positive value.
func (c *PostNoiseCleanup) ReductionDB() float64 {
	return -gainToDB(math.Max(c.gain, dbEps))
}
