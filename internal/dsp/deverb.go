package dsp

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// De-verb tuning. The stage targets late reverb tail and diffuse decay past
// 50 ms; short-lag reflections and desk coloration belong to the early
// reflection suppressor, so the two never fight over the same artifact.
const (
	deverbPeriodicityMin = 0.55
	deverbF0MinHz        = 70.0
	deverbF0MaxHz        = 320.0

	deverbTransientFluxMin = 0.03
	deverbTransientFluxMax = 0.18

	deverbRiseGateScale = 0.10
	deverbRiseGateEps   = 1e-6

	deverbLateDecayLow  = 0.995
	deverbLateDecayHigh = 0.85
	deverbLateRise      = 0.9995

	deverbEarlyHoldDecayMin = 0.80
	deverbEarlyHoldDecayMax = 0.92
	deverbLateEnvMaxScale   = 1.10
	deverbDirectFloorScale  = 0.02

	deverbFloorTransientMin = 0.12
	deverbFloorTransientMax = 0.55
	deverbFloorMaskMin      = 0.18
	deverbFloorMaskMax      = 0.60
	deverbFloorHoldMin      = 0.10
	deverbFloorHoldMax      = 0.55
	deverbFloorClampMax     = 0.92
	deverbFloorMinSpeech    = 0.08
	deverbFloorMinSilence   = 0.04

	deverbGainAttack  = 0.35
	deverbGainRelease = 0.06

	deverbHarmonicMaxHz   = 6000.0
	deverbHarmonicBWMinHz = 45.0
	deverbHarmonicBWMaxHz = 25.0
	deverbHarmonicProtMin = 0.55
	deverbHarmonicProtMax = 0.35

	deverbMaskerRadiusBins = 20
	deverbMaskerFalloffDiv = 8.0
)

type deverbDetector struct {
	winSize int

	window   []float64
	fft      *fourier.FFT
	windowed []float64
	coeffs   []complex128

	mag       []float64
	prevMag   []float64
	lateEnv   []float64
	earlyHold []float64
	masker    []float64
	gainMask  []float64

	frameTime []float64
	f0Scratch []float64
}

func newDeverbDetector(winSize int) *deverbDetector {
	nyq := winSize / 2
	d := &deverbDetector{
		winSize:   winSize,
		window:    makeSqrtHannWindow(winSize),
		fft:       fourier.NewFFT(winSize),
		windowed:  make([]float64, winSize),
		coeffs:    make([]complex128, nyq+1),
		mag:       make([]float64, nyq+1),
		prevMag:   make([]float64, nyq+1),
		lateEnv:   make([]float64, nyq+1),
		earlyHold: make([]float64, nyq+1),
		masker:    make([]float64, nyq+1),
		gainMask:  make([]float64, nyq+1),
		frameTime: make([]float64, winSize),
		f0Scratch: make([]float64, winSize),
	}
	for i := range d.gainMask {
		d.gainMask[i] = 1.0
	}
	return d
}

// analyze builds the per-bin gain mask. strength is the post-curve amount;
// at zero the mask settles at exact unity while the envelopes keep tracking,
// so engaging the stage later has no warm-up transient.
func (d *deverbDetector) analyze(mono []float64, strength, sampleRate, speechConfidence, proximityAmount float64) []float64 {
	n := d.winSize
	nyq := n / 2
	sr := sampleRate

	copy(d.frameTime, mono)
	for i := 0; i < n; i++ {
		d.windowed[i] = mono[i] * d.window[i]
	}
	d.fft.Coefficients(d.coeffs, d.windowed)
	for i := 0; i <= nyq; i++ {
		d.mag[i] = math.Max(cmplxAbs(d.coeffs[i]), magFloor)
	}

	periodicity, f0 := estimateF0Autocorr(d.frameTime, sr, d.f0Scratch)
	voiced := periodicity > deverbPeriodicityMin && f0 > deverbF0MinHz && f0 < deverbF0MaxHz

	var flux, energy float64
	for i := 1; i <= nyq; i++ {
		flux += math.Max(d.mag[i]-d.prevMag[i], 0)
		energy += d.mag[i]
	}
	transient := smoothstep(deverbTransientFluxMin, deverbTransientFluxMax, flux/(energy+magFloor))

	d.computeMaskerCurve()

	binWidth := sr / float64(n)
	lateK := strength

	// Dig deeper during silence; back off while speech is present.
	floorClampMin := deverbFloorMinSilence
	if speechConfidence > 0.5 {
		floorClampMin = deverbFloorMinSpeech
	}

	for i := 0; i <= nyq; i++ {
		mag := d.mag[i]
		prev := d.prevMag[i]

		freq := float64(i) * binWidth
		frac := clamp01(freq / (sr * 0.5))

		decay := lerp(deverbLateDecayLow, deverbLateDecayHigh, frac)

		// Proximity boosts HF intimacy; easing HF decay here keeps the two
		// stages from double-dipping on the same energy.
		if proximityAmount > 0.6 && frac > 0.5 {
			decay = decay + (1-decay)*0.2
		}

		rise := math.Max(mag-prev, 0)
		riseGate := smoothstep(0, prev*deverbRiseGateScale+deverbRiseGateEps, rise)

		hold := d.earlyHold[i] * lerp(deverbEarlyHoldDecayMin, deverbEarlyHoldDecayMax, 1-strength)
		d.earlyHold[i] = math.Max(hold, mag*riseGate)

		late := d.lateEnv[i]
		if mag < late {
			late = late*decay + mag*(1-decay)
		} else {
			late = late*deverbLateRise + mag*(1-deverbLateRise)
		}
		late = math.Min(late, mag*deverbLateEnvMaxScale+deverbRiseGateEps)

		d.lateEnv[i] = late
		d.prevMag[i] = mag

		direct := math.Max(mag-lateK*late, mag*deverbDirectFloorScale)
		gain := clamp01(direct / mag)

		floor := clamp(max3(
			lerp(deverbFloorTransientMin, deverbFloorTransientMax, transient),
			lerp(deverbFloorMaskMin, deverbFloorMaskMax, 1-(d.masker[i]/(d.masker[i]+late+magFloor))),
			lerp(deverbFloorHoldMin, deverbFloorHoldMax, smoothstep(0, mag*0.25+deverbRiseGateEps, d.earlyHold[i])),
		), floorClampMin, deverbFloorClampMax)

		gain = math.Max(gain, floor)

		if voiced {
			gain = d.protectHarmonic(i, gain, f0, sr, strength)
		}

		prevG := d.gainMask[i]
		if gain > prevG {
			d.gainMask[i] = prevG + (gain-prevG)*deverbGainAttack
		} else {
			d.gainMask[i] = prevG + (gain-prevG)*deverbGainRelease
		}
	}

	return d.gainMask
}

func (d *deverbDetector) computeMaskerCurve() {
	nyq := len(d.mag) - 1
	for i := range d.masker {
		d.masker[i] = 0
	}

	for i := 2; i < nyq-2; i++ {
		m := d.mag[i]
		if m > d.mag[i-1] && m > d.mag[i+1] && m > d.mag[i-2] && m > d.mag[i+2] {
			for di := -deverbMaskerRadiusBins; di <= deverbMaskerRadiusBins; di++ {
				j := i + di
				if j < 0 {
					j = 0
				} else if j > nyq {
					j = nyq
				}
				w := math.Exp(-math.Abs(float64(di)) / deverbMaskerFalloffDiv)
				if v := m * w; v > d.masker[j] {
					d.masker[j] = v
				}
			}
		}
	}
}

func (d *deverbDetector) protectHarmonic(bin int, gain, f0, sr, strength float64) float64 {
	if f0 <= 0 {
		return gain
	}
	binHz := float64(bin) * sr / float64(d.winSize)
	if binHz > deverbHarmonicMaxHz {
		return gain
	}

	h := math.Max(math.Round(binHz/f0), 1)
	dist := math.Abs(binHz - h*f0)
	bw := lerp(deverbHarmonicBWMinHz, deverbHarmonicBWMaxHz, clamp01(binHz/deverbHarmonicMaxHz))
	near := 1 - smoothstep(0, bw, dist)

	protect := lerp(deverbHarmonicProtMin, deverbHarmonicProtMax, strength)
	return math.Max(gain, lerp(gain, protect, near))
}

func (d *deverbDetector) reset() {
	for i := range d.mag {
		d.mag[i] = 0
		d.prevMag[i] = 0
		d.lateEnv[i] = 0
		d.earlyHold[i] = 0
		d.masker[i] = 0
		d.gainMask[i] = 1.0
	}
}

// Deverber is a mono late-reflection suppressor. The engine runs one per
// channel. The ring path runs even at zero amount so the stage delay never
// moves; only the gains change.
type Deverber struct {
	detector *deverbDetector
	channel  *wolaChannel
	dry      *sampleDelay

	winSize int
	hopSize int
	frame   []float64
}

// NewDeverber builds the stage at the standard WOLA geometry.
func NewDeverber() *Deverber {
	return &Deverber{
		detector: newDeverbDetector(wolaWinSize),
		channel:  newWOLAChannel(wolaWinSize, wolaHopSize),
		dry:      newSampleDelay(wolaWinSize),
		winSize:  wolaWinSize,
		hopSize:  wolaHopSize,
		frame:    make([]float64, wolaWinSize),
	}
}

// ProcessSample advances one sample. clarityAmount and proximityAmount feed
// the inter-stage clamps; the output lags the input by one window.
func (dv *Deverber) ProcessSample(in, amount, sampleRate, speechConfidence, clarityAmount, proximityAmount float64) (out, removed float64) {
	strength := aggressiveTail(clamp01(amount))
	if clarityAmount > 0.6 {
		strength *= 0.75
	}

	dv.channel.pushInput(in)

	if dv.channel.frameReady() {
		dv.channel.peekFrame(dv.frame)
		gains := dv.detector.analyze(dv.frame, strength, sampleRate, speechConfidence, proximityAmount)
		dv.channel.processFrame(gains)
		dv.channel.discardInput(dv.hopSize)
	}

	out = dv.channel.popOutput()
	removed = dv.dry.process(in) - out
	return out, removed
}

// Latency reports the fixed delay through the stage in samples.
func (dv *Deverber) Latency() int {
	return dv.winSize
}

// Reset clears stream and detector state.
func (dv *Deverber) Reset() {
	dv.detector.reset()
	dv.channel.reset()
	dv.dry.reset()
}
