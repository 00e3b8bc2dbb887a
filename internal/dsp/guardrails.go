package dsp

import "math"

// Monitored bands. Ratios are taken against the speech band.
const (
	guardSpeechBandLowHz  = 250.0
	guardSpeechBandHighHz = 4000.0

	guardLowMidBandLowHz  = 200.0
	guardLowMidBandHighHz = 500.0

	guardHighBandLowHz  = 8000.0
	guardHighBandHighHz = 16000.0
)

const (
	guardMaxLowMidCutDB = 5.0
	guardMaxHighCutDB   = 5.0

	guardLowMidRatioThreshold = 1.5
	guardHighRatioThreshold   = 0.8

	guardRMSTimeMS = 30.0
	guardAttackMS  = 20.0
	guardReleaseMS = 400.0

	guardCutClampDB       = 12.0
	guardHFConfGate       = 0.3
	guardLowUpdateGateDB  = 0.01
	guardHighUpdateGateDB = 0.1
	guardApplyGateDB      = 0.1
)

// SpectralGuardrails is the stereo safety layer. It tracks low-mid and
// high band energy against the speech band and pulls boomy or harsh
// balances back with gentle shelving cuts. Corrections attack fast and
// release slow so the clamp protects without pumping.
type SpectralGuardrails struct {
	speechBand bandFilterPair
	lowMidBand bandFilterPair
	highBand   bandFilterPair

	lowShelfL  biquad
	lowShelfR  biquad
	highShelfL biquad
	highShelfR biquad

	rmsSpeechSq float64
	rmsLowMidSq float64
	rmsHighSq   float64
	rmsMix      float64

	lowMidCutDB float64
	highCutDB   float64
	attackMix   float64
	releaseMix  float64

	sampleRate float64
}

func NewSpectralGuardrails(sampleRate float64) *SpectralGuardrails {
	g := &SpectralGuardrails{}
	g.Prepare(sampleRate)
	return g
}

func (g *SpectralGuardrails) Prepare(sampleRate float64) {
	g.sampleRate = sampleRate
	g.speechBand.init(guardSpeechBandLowHz, guardSpeechBandHighHz, sampleRate)
	g.lowMidBand.init(guardLowMidBandLowHz, guardLowMidBandHighHz, sampleRate)
	g.highBand.init(guardHighBandLowHz, guardHighBandHighHz, sampleRate)
	g.rmsMix = timeConstantCoeff(guardRMSTimeMS, sampleRate)
	g.attackMix = timeConstantCoeff(guardAttackMS, sampleRate)
	g.releaseMix = timeConstantCoeff(guardReleaseMS, sampleRate)
	g.Reset()
}

func (g *SpectralGuardrails) Reset() {
	g.speechBand.resetState()
	g.lowMidBand.resetState()
	g.highBand.resetState()
	g.lowShelfL.setIdentity()
	g.lowShelfR.setIdentity()
	g.highShelfL.setIdentity()
	g.highShelfR.setIdentity()
	g.lowShelfL.resetState()
	g.lowShelfR.resetState()
	g.highShelfL.resetState()
	g.highShelfR.resetState()
	g.rmsSpeechSq = 0
	g.rmsLowMidSq = 0
	g.rmsHighSq = 0
	g.lowMidCutDB = 0
	g.highCutDB = 0
}

// Process runs one stereo sample through the guardrails. Band tracking
// continues while disabled so corrections engage without a warmup gap
// when the stage comes back.
func (g *SpectralGuardrails) Process(left, right float64, enabled bool, speechConfidence float64) (l, r float64) {
	speechSq := g.speechBand.energy(left, right)
	lowMidSq := g.lowMidBand.energy(left, right)
	highSq := g.highBand.energy(left, right)
	g.rmsSpeechSq += g.rmsMix * (speechSq - g.rmsSpeechSq)
	g.rmsLowMidSq += g.rmsMix * (lowMidSq - g.rmsLowMidSq)
	g.rmsHighSq += g.rmsMix * (highSq - g.rmsHighSq)

	if !enabled {
		return left, right
	}

	targetLow, targetHigh := g.targetCuts(speechConfidence)

	lowMix := g.releaseMix
	if targetLow > g.lowMidCutDB {
		lowMix = g.attackMix
	}
	highMix := g.releaseMix
	if targetHigh > g.highCutDB {
		highMix = g.attackMix
	}
	g.lowMidCutDB = clamp(g.lowMidCutDB+lowMix*(targetLow-g.lowMidCutDB), 0, guardCutClampDB)
	g.highCutDB = clamp(g.highCutDB+highMix*(targetHigh-g.highCutDB), 0, guardCutClampDB)

	if g.lowMidCutDB > guardLowUpdateGateDB {
		g.lowShelfL.updateLowShelf(guardLowMidBandHighHz, 0.707, -g.lowMidCutDB, g.sampleRate)
		g.lowShelfR.updateLowShelf(guardLowMidBandHighHz, 0.707, -g.lowMidCutDB, g.sampleRate)
	}
	if g.highCutDB > guardHighUpdateGateDB {
		g.highShelfL.updateHighShelf(guardHighBandLowHz, 0.707, -g.highCutDB, g.sampleRate)
		g.highShelfR.updateHighShelf(guardHighBandLowHz, 0.707, -g.highCutDB, g.sampleRate)
	}

	l, r = left, right
	if g.lowMidCutDB > guardApplyGateDB {
		l = g.lowShelfL.process(l)
		r = g.lowShelfR.process(r)
	}
	if g.highCutDB > guardApplyGateDB {
		l = g.highShelfL.process(l)
		r = g.highShelfR.process(r)
	}
	return l, r
}

func (g *SpectralGuardrails) targetCuts(speechConfidence float64) (lowCut, highCut float64) {
	speechRMS := math.Sqrt(g.rmsSpeechSq)
	if speechRMS < dbEps {
		return 0, 0
	}

	lowMidRatio := math.Sqrt(g.rmsLowMidSq) / speechRMS
	highRatio := math.Sqrt(g.rmsHighSq) / speechRMS

	if lowMidRatio > guardLowMidRatioThreshold {
		excess := (lowMidRatio - guardLowMidRatioThreshold) / guardLowMidRatioThreshold
		lowCut = math.Min(excess*guardMaxLowMidCutDB, guardMaxLowMidCutDB)
	}

	// Harshness cuts only apply on confident speech; bright noise is the
	// denoiser's problem, not a tonal fault to correct.
	if highRatio > guardHighRatioThreshold && speechConfidence >= guardHFConfGate {
		excess := (highRatio - guardHighRatioThreshold) / guardHighRatioThreshold
		highCut = math.Min(excess*guardMaxHighCutDB, guardMaxHighCutDB)
	}
	return lowCut, highCut
}

// LowMidCutDB reports the active boom correction.
func (g *SpectralGuardrails) LowMidCutDB() float64 {
	return g.lowMidCutDB
}

// HighCutDB reports the active harshness correction.
func (g *SpectralGuardrails) HighCutDB() float64 {
	return g.highCutDB
}
