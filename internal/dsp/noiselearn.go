package dsp

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Noise learn/remove: static spectral subtraction against an explicitly
// learned fingerprint. Learning is momentary, time-limited, and gated on low
// speech confidence so the profile never absorbs voice. Removal is bounded
// attenuation, so the stage can run during silence without pumping.
const (
	learnConfidenceThreshold = 0.15
	learnTimeLimitSec        = 10.0
	learnEMATauSec           = 0.5
	qualityEMATauSec         = 2.0
	learnGainSmoothAlpha     = 0.2
	learnEps                 = 1e-12
	learnedEnergyMin         = 1e-6
)

// NoiseLearnConfig carries the per-block learn/remove controls. Learn and
// Clear are momentary.
type NoiseLearnConfig struct {
	Enabled bool
	Amount  float64
	Learn   bool
	Clear   bool
}

type noiseLearnDetector struct {
	winSize    int
	hopSize    int
	sampleRate float64

	window   []float64
	fft      *fourier.FFT
	windowed []float64
	coeffs   []complex128

	currentMag []float64
	learnedMag []float64
	gainSmooth []float64

	learnedEnergy float64
	quality       float64

	learnFramesAccum int
	maxLearnFrames   int

	learnMix   float64
	qualityMix float64
}

func newNoiseLearnDetector(winSize, hopSize int, sampleRate float64) *noiseLearnDetector {
	nyq := winSize / 2
	d := &noiseLearnDetector{
		winSize:    winSize,
		hopSize:    hopSize,
		window:     makeSqrtHannWindow(winSize),
		fft:        fourier.NewFFT(winSize),
		windowed:   make([]float64, winSize),
		coeffs:     make([]complex128, nyq+1),
		currentMag: make([]float64, nyq+1),
		learnedMag: make([]float64, nyq+1),
		gainSmooth: make([]float64, nyq+1),
	}
	for i := range d.gainSmooth {
		d.gainSmooth[i] = 1.0
	}
	d.setSampleRate(sampleRate)
	return d
}

func (d *noiseLearnDetector) setSampleRate(sr float64) {
	d.sampleRate = math.Max(sr, 1)
	frameDt := float64(d.hopSize) / d.sampleRate
	d.learnMix = 1 - math.Exp(-frameDt/learnEMATauSec)
	d.qualityMix = 1 - math.Exp(-frameDt/qualityEMATauSec)
	d.maxLearnFrames = int(math.Max(math.Ceil(learnTimeLimitSec/frameDt), 1))
}

// resetState clears smoothing history but keeps the learned profile.
func (d *noiseLearnDetector) resetState() {
	for i := range d.gainSmooth {
		d.gainSmooth[i] = 1.0
	}
}

func (d *noiseLearnDetector) clearProfile() {
	for i := range d.learnedMag {
		d.learnedMag[i] = 0
	}
	d.learnedEnergy = 0
	d.quality = 0
	d.learnFramesAccum = 0
	d.resetState()
}

func (d *noiseLearnDetector) hasProfile() bool {
	return d.learnedEnergy > learnedEnergyMin
}

func (d *noiseLearnDetector) learnProgress() float64 {
	return clamp01(float64(d.learnFramesAccum) / float64(d.maxLearnFrames))
}

func (d *noiseLearnDetector) analyzeFrame(mono []float64, cfg NoiseLearnConfig, sc SpeechSidechain) []float64 {
	nyq := d.winSize / 2

	for i := 0; i < d.winSize; i++ {
		d.windowed[i] = mono[i] * d.window[i]
	}
	d.fft.Coefficients(d.coeffs, d.windowed)
	for i := 0; i <= nyq; i++ {
		d.currentMag[i] = math.Max(cmplxAbs(d.coeffs[i]), magFloor)
	}

	isSilence := sc.Confidence < learnConfidenceThreshold
	notFinished := d.learnFramesAccum < d.maxLearnFrames

	if cfg.Learn && isSilence && notFinished {
		d.learnFramesAccum++

		if d.learnFramesAccum == 1 {
			copy(d.learnedMag, d.currentMag)
		} else {
			for i := 0; i <= nyq; i++ {
				v := d.learnedMag[i]
				d.learnedMag[i] = v + d.learnMix*(d.currentMag[i]-v)
			}
		}

		var energy float64
		for i := 0; i <= nyq; i++ {
			energy += d.learnedMag[i]
		}
		d.learnedEnergy = energy

		// Quality tracks how stable the fingerprint is against the live
		// spectrum. Low frame-to-frame delta means stationary noise.
		var deltaSum, learnedSum float64
		for i := 0; i <= nyq; i++ {
			deltaSum += math.Abs(d.currentMag[i] - d.learnedMag[i])
			learnedSum += d.learnedMag[i]
		}
		normalizedDelta := 1.0
		if learnedSum > learnEps {
			normalizedDelta = deltaSum / learnedSum
		}
		stability := 1 / (1 + normalizedDelta*2)
		d.quality += d.qualityMix * (stability - d.quality)
	} else if !d.hasProfile() {
		d.quality += d.qualityMix * (0 - d.quality)
	}

	amount := clamp01(cfg.Amount)

	if !cfg.Enabled || amount < 1e-4 || !d.hasProfile() {
		d.resetState()
		return d.gainSmooth
	}

	for i := 0; i <= nyq; i++ {
		noise := math.Max(d.learnedMag[i], magFloor)
		signal := math.Max(d.currentMag[i], magFloor)

		reduction := amount * (noise / (signal + learnEps))
		targetGain := clamp01(1 - reduction)

		prev := d.gainSmooth[i]
		d.gainSmooth[i] = prev + learnGainSmoothAlpha*(targetGain-prev)
	}

	return d.gainSmooth
}

// NoiseLearnRemove removes a learned stationary noise fingerprint. Sits right
// after the hygiene HPF so subsonic junk cannot pollute the profile. Stream
// resets keep the profile; only Clear or a sample-rate change drops it.
type NoiseLearnRemove struct {
	detector *noiseLearnDetector
	chanL    *wolaChannel
	chanR    *wolaChannel
	dryL     *sampleDelay
	dryR     *sampleDelay

	winSize int
	hopSize int

	frameL    []float64
	frameR    []float64
	frameMono []float64
}

// NewNoiseLearnRemove builds the stage at the standard WOLA geometry.
func NewNoiseLearnRemove(sampleRate float64) *NoiseLearnRemove {
	return &NoiseLearnRemove{
		detector:  newNoiseLearnDetector(wolaWinSize, wolaHopSize, sampleRate),
		chanL:     newWOLAChannel(wolaWinSize, wolaHopSize),
		chanR:     newWOLAChannel(wolaWinSize, wolaHopSize),
		dryL:      newSampleDelay(wolaWinSize),
		dryR:      newSampleDelay(wolaWinSize),
		winSize:   wolaWinSize,
		hopSize:   wolaHopSize,
		frameL:    make([]float64, wolaWinSize),
		frameR:    make([]float64, wolaWinSize),
		frameMono: make([]float64, wolaWinSize),
	}
}

// Process advances one stereo sample. The sidechain gates learning; removal
// itself ignores speech so it keeps working during silence. Outputs lag the
// inputs by one window.
func (n *NoiseLearnRemove) Process(l, r float64, cfg NoiseLearnConfig, sc SpeechSidechain) (outL, outR, removedL, removedR float64) {
	if cfg.Clear {
		n.detector.clearProfile()
	}

	n.chanL.pushInput(l)
	n.chanR.pushInput(r)

	if n.chanL.frameReady() && n.chanR.frameReady() {
		n.chanL.peekFrame(n.frameL)
		n.chanR.peekFrame(n.frameR)
		for i := 0; i < n.winSize; i++ {
			fl, fr := n.frameL[i], n.frameR[i]
			if math.Abs(fl) >= math.Abs(fr) {
				n.frameMono[i] = fl
			} else {
				n.frameMono[i] = fr
			}
		}

		gains := n.detector.analyzeFrame(n.frameMono, cfg, sc)
		n.chanL.processFrame(gains)
		n.chanR.processFrame(gains)
		n.chanL.discardInput(n.hopSize)
		n.chanR.discardInput(n.hopSize)
	}

	outL = n.chanL.popOutput()
	outR = n.chanR.popOutput()
	removedL = n.dryL.process(l) - outL
	removedR = n.dryR.process(r) - outR
	return outL, outR, removedL, removedR
}

// SetSampleRate re-tunes the learn ballistics. The profile is cleared
// because bins no longer align to the same frequencies.
func (n *NoiseLearnRemove) SetSampleRate(sr float64) {
	n.detector.setSampleRate(sr)
	n.Reset()
	n.detector.clearProfile()
}

// Reset clears stream state but keeps the learned profile.
func (n *NoiseLearnRemove) Reset() {
	n.chanL.reset()
	n.chanR.reset()
	n.dryL.reset()
	n.dryR.reset()
	n.detector.resetState()
}

// ClearProfile drops the learned fingerprint.
func (n *NoiseLearnRemove) ClearProfile() {
	n.detector.clearProfile()
}

// Quality reports fingerprint stability in [0,1].
func (n *NoiseLearnRemove) Quality() float64 {
	return n.detector.quality
}

// LearnProgress reports use of the learn budget in [0,1].
func (n *NoiseLearnRemove) LearnProgress() float64 {
	return n.detector.learnProgress()
}

// HasProfile reports whether a non-trivial fingerprint is stored.
func (n *NoiseLearnRemove) HasProfile() bool {
	return n.detector.hasProfile()
}

// Latency reports the fixed delay through the stage in samples.
func (n *NoiseLearnRemove) Latency() int {
	return n.winSize
}
