package dsp

import "math"

// Sibilance detection band, plus the 3.5 kHz split used to weigh the
// band against the rest of the high end.
const (
	sibHPFHz   = 4500.0
	sibLPFHz   = 10000.0
	sibFilterQ = 0.707

	hfSplitHz = 3500.0
	hfSplitQ  = 0.707
)

const (
	sibAttackMS  = 0.4
	sibReleaseMS = 60.0

	zcSmoothMS    = 30.0
	unvoicedZCMin = 0.02
	unvoicedZCMax = 0.10

	focusHFWeight = 0.6
	focusMin      = 0.30
	focusMax      = 0.75
)

const (
	levelThreshScale   = 0.12
	levelThreshMin     = 1e-6
	levelThreshFloorDB = -45.0

	deEssRatio    = 6.0
	deEssMaxCutDB = 24.0
	deEssMinGain  = 0.10

	deEssGainAttackMS  = 1.5
	deEssGainReleaseMS = 80.0

	deEssBandHz = 7000.0
	deEssBandQ  = 1.0

	deEssBypassEps  = 0.01
	deEssInputFloor = 1e-10
)

// DeEsserDetector is the shared stereo-linked sibilance detector. It
// tracks the 4.5-10 kHz band, gates on unvoiced content via the HF
// zero-crossing rate, and derives one gain that both channel bands
// follow so the image never wanders.
type DeEsserDetector struct {
	sibHPF biquad
	sibLPF biquad
	hfLPF  biquad

	sibEnv     float64
	gainSmooth float64

	prevHF float64
	zcEnv  float64

	sibAttackMix   float64
	sibReleaseMix  float64
	zcMix          float64
	gainAttackMix  float64
	gainReleaseMix float64

	lastWeight      float64
	lastOverDB      float64
	lastReductionDB float64
}

func NewDeEsserDetector(sampleRate float64) *DeEsserDetector {
	d := &DeEsserDetector{}
	d.Prepare(sampleRate)
	return d
}

func (d *DeEsserDetector) Prepare(sampleRate float64) {
	d.sibHPF.updateHPF(sibHPFHz, sibFilterQ, sampleRate)
	d.sibLPF.updateLPF(sibLPFHz, sibFilterQ, sampleRate)
	d.hfLPF.updateLPF(hfSplitHz, hfSplitQ, sampleRate)
	d.sibAttackMix = timeConstantCoeff(sibAttackMS, sampleRate)
	d.sibReleaseMix = timeConstantCoeff(sibReleaseMS, sampleRate)
	d.zcMix = timeConstantCoeff(zcSmoothMS, sampleRate)
	d.gainAttackMix = timeConstantCoeff(deEssGainAttackMS, sampleRate)
	d.gainReleaseMix = timeConstantCoeff(deEssGainReleaseMS, sampleRate)
	d.Reset()
}

func (d *DeEsserDetector) Reset() {
	d.sibHPF.resetState()
	d.sibLPF.resetState()
	d.hfLPF.resetState()
	d.sibEnv = 0
	d.gainSmooth = 1
	d.prevHF = 0
	d.zcEnv = 0
	d.lastWeight = 0
	d.lastOverDB = 0
	d.lastReductionDB = 0
}

func (d *DeEsserDetector) analyzeSibilanceWeight(x float64) float64 {
	sib := d.sibLPF.process(d.sibHPF.process(x))
	sibAbs := math.Abs(sib)

	low := d.hfLPF.process(x)
	hf := x - low
	hfAbs := math.Abs(hf)

	if sibAbs > d.sibEnv {
		d.sibEnv += d.sibAttackMix * (sibAbs - d.sibEnv)
	} else {
		d.sibEnv += d.sibReleaseMix * (sibAbs - d.sibEnv)
	}

	zc := 0.0
	if math.Signbit(hf) != math.Signbit(d.prevHF) {
		zc = 1
	}
	d.prevHF = hf
	d.zcEnv += d.zcMix * (zc - d.zcEnv)

	unvoiced := smoothstep(unvoicedZCMin, unvoicedZCMax, d.zcEnv)

	focus := clamp01(d.sibEnv / (d.sibEnv + hfAbs*focusHFWeight + dbEps))
	focusW := smoothstep(focusMin, focusMax, focus)

	return clamp01(unvoiced * focusW)
}

// ComputeGain analyses one stereo sample and returns the linked band
// gain. The threshold rides the shared slow level envelope so quiet
// passages do not trip it.
func (d *DeEsserDetector) ComputeGain(left, right, amount float64, envL, envR VoiceEnvelope) float64 {
	amount = clamp01(amount)
	x := math.Max(math.Abs(left), math.Abs(right)) + deEssInputFloor

	d.lastWeight = d.analyzeSibilanceWeight(x)

	levelEnv := math.Max(envL.Slow, envR.Slow)
	linThr := math.Max(levelEnv*levelThreshScale, levelThreshMin)
	thrDB := math.Max(gainToDB(linThr), levelThreshFloorDB)

	envDB := gainToDB(math.Max(d.sibEnv, levelThreshMin))
	d.lastOverDB = math.Max(envDB-thrDB, 0)

	if amount < deEssBypassEps {
		d.gainSmooth += d.gainReleaseMix * (1 - d.gainSmooth)
		return d.gainSmooth
	}

	knee := smoothstep(0, 6, d.lastOverDB)
	targetRed := math.Min(knee*d.lastOverDB*(deEssRatio-1), deEssMaxCutDB*amount)
	targetGain := clamp(dbToGain(-targetRed*d.lastWeight), deEssMinGain, 1)

	if targetGain < d.gainSmooth {
		d.gainSmooth += d.gainAttackMix * (targetGain - d.gainSmooth)
	} else {
		d.gainSmooth += d.gainReleaseMix * (targetGain - d.gainSmooth)
	}

	d.lastReductionDB = -math.Max(gainToDB(d.gainSmooth), -deEssMaxCutDB)
	return d.gainSmooth
}

// GainReductionDB reports the current sibilance cut as a positive value.
func (d *DeEsserDetector) GainReductionDB() float64 {
	return d.lastReductionDB
}

// DeEsserBand applies the detector gain as a 7 kHz peaking cut on one
// channel. Coefficients only re-derive on 0.1 dB steps.
type DeEsserBand struct {
	filter    biquad
	lastCutDB float64

	sampleRate float64
}

func NewDeEsserBand(sampleRate float64) *DeEsserBand {
	b := &DeEsserBand{}
	b.Prepare(sampleRate)
	return b
}

func (b *DeEsserBand) Prepare(sampleRate float64) {
	b.sampleRate = sampleRate
	b.Reset()
}

func (b *DeEsserBand) Reset() {
	b.filter.setIdentity()
	b.filter.resetState()
	b.lastCutDB = 0
}

// Apply folds the detector gain into the band filter and processes one
// sample.
func (b *DeEsserBand) Apply(sample, gain float64) float64 {
	cutDB := math.Max(gainToDB(gain), -deEssMaxCutDB)
	if math.Abs(cutDB-b.lastCutDB) > 0.1 {
		b.filter.updatePeaking(deEssBandHz, deEssBandQ, cutDB, b.sampleRate)
		b.lastCutDB = cutDB
	}
	return b.filter.process(sample)
}
