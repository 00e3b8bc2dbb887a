package dsp

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Pink-reference spectral bias: hidden preconditioning that nudges the
// long-term speech tilt toward -3 dB/oct so downstream denoise, de-ess,
// clarity, and proximity work from a natural balance. Capped at +-2 dB and
// frozen outside speech.
const (
	targetTiltDBPerOct = -3.0
	maxCorrectionDB    = 2.0

	tiltBandLowHz  = 150.0
	tiltBandHighHz = 6000.0

	tiltShelfLoFreq = 250.0
	tiltShelfHiFreq = 4000.0
	tiltShelfQ      = 0.707

	tiltGateOn   = 0.55
	tiltGateFull = 0.75

	tiltGateAttackMS  = 200.0
	tiltGateReleaseMS = 800.0
	tiltSmoothingSec  = 2.0

	tiltGainAttackMS  = 150.0
	tiltGainReleaseMS = 600.0

	tiltFreezeFrames = 50
)

// PinkRefBias analyzes the mid channel and applies matched shelf pairs per
// channel.
type PinkRefBias struct {
	sampleRate float64

	fft         *fourier.FFT
	inputBuffer []float64
	window      []float64
	windowed    []float64
	coeffs      []complex128
	writePos    int

	tiltEst    float64
	gateSmooth float64

	lowShelfL  biquad
	lowShelfR  biquad
	highShelfL biquad
	highShelfR biquad

	targetLoDB  float64
	targetHiDB  float64
	currentLoDB float64
	currentHiDB float64

	gateAttackMix  float64
	gateReleaseMix float64
	tiltMix        float64
	gainAttackMix  float64
	gainReleaseMix float64

	consecutiveLowGateFrames int
	frozen                   bool

	coeffUpdateCounter uint32
}

// NewPinkRefBias builds the stage for a sample rate.
func NewPinkRefBias(sampleRate float64) *PinkRefBias {
	frameSize := 1024
	if sampleRate > 50000 {
		frameSize = 2048
	}

	// Symmetric Hann for the analysis frame.
	window := make([]float64, frameSize)
	denom := float64(frameSize - 1)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/denom))
	}

	hopTimeSec := float64(frameSize/2) / sampleRate

	p := &PinkRefBias{
		sampleRate:  sampleRate,
		fft:         fourier.NewFFT(frameSize),
		inputBuffer: make([]float64, frameSize),
		window:      window,
		windowed:    make([]float64, frameSize),
		coeffs:      make([]complex128, frameSize/2+1),

		tiltEst: targetTiltDBPerOct,

		lowShelfL:  newBiquad(),
		lowShelfR:  newBiquad(),
		highShelfL: newBiquad(),
		highShelfR: newBiquad(),

		gateAttackMix:  1 - math.Exp(-hopTimeSec/(tiltGateAttackMS*0.001)),
		gateReleaseMix: 1 - math.Exp(-hopTimeSec/(tiltGateReleaseMS*0.001)),
		tiltMix:        1 - math.Exp(-hopTimeSec/tiltSmoothingSec),
		gainAttackMix:  timeConstantCoeff(tiltGainAttackMS, sampleRate),
		gainReleaseMix: timeConstantCoeff(tiltGainReleaseMS, sampleRate),

		frozen: true,
	}
	p.lowShelfL.updateLowShelf(tiltShelfLoFreq, tiltShelfQ, 0, sampleRate)
	p.lowShelfR.updateLowShelf(tiltShelfLoFreq, tiltShelfQ, 0, sampleRate)
	p.highShelfL.updateHighShelf(tiltShelfHiFreq, tiltShelfQ, 0, sampleRate)
	p.highShelfR.updateHighShelf(tiltShelfHiFreq, tiltShelfQ, 0, sampleRate)
	return p
}

// Process advances one stereo sample. proximityAmount and deessAmount feed
// the interaction scaling.
func (p *PinkRefBias) Process(l, r, speechConfidence, proximityAmount, deessAmount float64) (float64, float64) {
	mid := 0.5 * (l + r)
	p.inputBuffer[p.writePos] = mid
	p.writePos++

	if p.writePos >= len(p.inputBuffer) {
		hop := len(p.inputBuffer) / 2
		p.analyzeFrame(speechConfidence)
		copy(p.inputBuffer, p.inputBuffer[hop:])
		p.writePos = hop
	}

	p.updateGains(proximityAmount, deessAmount)
	p.coeffUpdateCounter++

	lLo := p.lowShelfL.process(l)
	rLo := p.lowShelfR.process(r)
	return p.highShelfL.process(lLo), p.highShelfR.process(rLo)
}

func (p *PinkRefBias) analyzeFrame(speechConf float64) {
	n := len(p.inputBuffer)
	sr := p.sampleRate

	for i := 0; i < n; i++ {
		p.windowed[i] = p.inputBuffer[i] * p.window[i]
	}
	p.fft.Coefficients(p.coeffs, p.windowed)

	// Weighted regression of log-magnitude against log-frequency, triangular
	// weight centered on 1 kHz.
	var sumW, sumWX, sumWY, sumWXX, sumWXY float64

	binHz := sr / float64(n)
	startBin := int(math.Max(tiltBandLowHz/binHz, 1))
	endBin := int(math.Min(tiltBandHighHz/binHz, float64(n/2)))

	logF0 := math.Log2(1000.0)
	bwLog := math.Log2(tiltBandHighHz / tiltBandLowHz)

	for k := startBin; k < endBin; k++ {
		re := real(p.coeffs[k])
		im := imag(p.coeffs[k])
		pw := re*re + im*im
		sk := 10 * math.Log10(pw+1e-9)

		fk := float64(k) * binHz
		xk := math.Log2(fk)

		dist := math.Abs(xk - logF0)
		w := clamp01(1 - dist/bwLog)

		sumW += w
		sumWX += w * xk
		sumWY += w * sk
		sumWXX += w * xk * xk
		sumWXY += w * xk * sk
	}

	tMeas := targetTiltDBPerOct
	if sumW > 1e-6 {
		meanX := sumWX / sumW
		meanY := sumWY / sumW
		num := sumWXY - sumWX*meanY
		den := sumWXX - sumWX*meanX
		if math.Abs(den) > 1e-9 {
			tMeas = num / den
		}
	}

	rawGate := clamp01((speechConf - tiltGateOn) / (tiltGateFull - tiltGateOn))
	if rawGate > p.gateSmooth {
		p.gateSmooth += p.gateAttackMix * (rawGate - p.gateSmooth)
	} else {
		p.gateSmooth += p.gateReleaseMix * (rawGate - p.gateSmooth)
	}

	if p.gateSmooth < 0.05 {
		p.consecutiveLowGateFrames++
		if p.consecutiveLowGateFrames > tiltFreezeFrames {
			p.frozen = true
		}
	} else {
		p.consecutiveLowGateFrames = 0
		p.frozen = false
	}

	if p.gateSmooth > 0.1 && !p.frozen {
		tMeasSafe := clamp(tMeas, -12, 12)
		p.tiltEst += p.tiltMix * (tMeasSafe - p.tiltEst)
	}

	e := targetTiltDBPerOct - p.tiltEst

	gLo := clamp(e*math.Log2(200.0/1000.0), -maxCorrectionDB, maxCorrectionDB)
	gHi := clamp(e*math.Log2(5000.0/1000.0), -maxCorrectionDB, maxCorrectionDB)

	// Marginal confidence forces zero correction so the bias cannot breathe
	// on noise.
	safeGate := p.gateSmooth
	if speechConf < 0.5 {
		safeGate = 0
	}

	p.targetLoDB = safeGate * gLo * 0.9
	p.targetHiDB = safeGate * gHi

	if p.frozen {
		p.targetLoDB = 0
		p.targetHiDB = 0
	}
}

func (p *PinkRefBias) updateGains(proximityAmount, deessAmount float64) {
	safeTargetLo := p.targetLoDB
	safeTargetHi := p.targetHiDB

	// High proximity already adds warmth; high de-ess already tames highs.
	if proximityAmount > 0.5 {
		safeTargetLo *= 0.75
	}
	if deessAmount > 0.5 {
		safeTargetHi *= 0.7
	}

	mix := p.gainReleaseMix
	if math.Abs(safeTargetLo) > math.Abs(p.currentLoDB) {
		mix = p.gainAttackMix
	}
	p.currentLoDB += mix * (safeTargetLo - p.currentLoDB)

	mixH := p.gainReleaseMix
	if math.Abs(safeTargetHi) > math.Abs(p.currentHiDB) {
		mixH = p.gainAttackMix
	}
	p.currentHiDB += mixH * (safeTargetHi - p.currentHiDB)

	if p.coeffUpdateCounter&31 == 0 {
		p.lowShelfL.updateLowShelf(tiltShelfLoFreq, tiltShelfQ, p.currentLoDB, p.sampleRate)
		p.lowShelfR.updateLowShelf(tiltShelfLoFreq, tiltShelfQ, p.currentLoDB, p.sampleRate)
		p.highShelfL.updateHighShelf(tiltShelfHiFreq, tiltShelfQ, p.currentHiDB, p.sampleRate)
		p.highShelfR.updateHighShelf(tiltShelfHiFreq, tiltShelfQ, p.currentHiDB, p.sampleRate)
	}
}

// TiltEstimate reports the tracked spectral tilt in dB/oct for metering.
func (p *PinkRefBias) TiltEstimate() float64 {
	return p.tiltEst
}

// Reset clears all state and refreezes the stage.
func (p *PinkRefBias) Reset() {
	for i := range p.inputBuffer {
		p.inputBuffer[i] = 0
	}
	p.writePos = 0
	p.tiltEst = targetTiltDBPerOct
	p.gateSmooth = 0
	p.lowShelfL.resetState()
	p.lowShelfR.resetState()
	p.highShelfL.resetState()
	p.highShelfR.resetState()
	p.lowShelfL.updateLowShelf(tiltShelfLoFreq, tiltShelfQ, 0, p.sampleRate)
	p.lowShelfR.updateLowShelf(tiltShelfLoFreq, tiltShelfQ, 0, p.sampleRate)
	p.highShelfL.updateHighShelf(tiltShelfHiFreq, tiltShelfQ, 0, p.sampleRate)
	p.highShelfR.updateHighShelf(tiltShelfHiFreq, tiltShelfQ, 0, p.sampleRate)
	p.targetLoDB = 0
	p.targetHiDB = 0
	p.currentLoDB = 0
	p.currentHiDB = 0
	p.consecutiveLowGateFrames = 0
	p.frozen = true
	p.coeffUpdateCounter = 0
}
