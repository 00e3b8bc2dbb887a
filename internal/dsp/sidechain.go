package dsp

import "math"

// Sidechain analysis geometry and ballistics. Confidence smoothing runs at
// the hop rate, so the coefficients below are derived from the hop interval.
const (
	// Each analysis window covers two hops (20 ms), advancing every hop.
	sidechainHopMS = 10.0

	sidechainSpeechLowHz  = 250.0
	sidechainSpeechHighHz = 4000.0

	confidenceAttackMS  = 15.0
	confidenceReleaseMS = 120.0
	confidenceHangMS    = 80.0

	// Frames with total RMS below this are treated as silence outright.
	confidenceSilenceRMS = 0.001

	sidechainNoiseAttackMS  = 500.0
	sidechainNoiseReleaseMS = 50.0
	sidechainNoiseFloorMin  = 1e-12
	sidechainNoiseFloorMax  = 0.01

	flatnessSpeechThreshold = 0.4
	minSpeechRatio          = 0.3

	// Silence escape: once sub-threshold RMS has persisted this long the hang
	// timer is cancelled and release switches to the escape time constant, so
	// confidence collapses well inside 200 ms.
	silenceQualifyMS   = 30.0
	silenceEscapeTauMS = 60.0
)

// SpeechSidechain is the shared speech-activity snapshot. It is produced
// once per sample by the estimator and read by the early-reflection
// suppressor, expander, breath reducer, and the shaping gates; the leveler
// and denoiser keep their own detectors on purpose.
type SpeechSidechain struct {
	// Confidence is the smoothed voiced-speech estimate in [0,1].
	Confidence float64
	// NoiseFloorDB is the tracked frame-energy floor in dB.
	NoiseFloorDB float64
}

// SpeechConfidenceEstimator derives speech confidence from frame energy,
// speech-band ratio, spectral flux, and distance above the tracked noise
// floor. Analysis runs on 20 ms frames with 10 ms hops; rising confidence
// attacks in ~15 ms and re-arms an 80 ms hang that bridges short pauses,
// after which release follows a ~120 ms constant. Sustained silence takes
// the escape path instead, which overrides the hang so downstream
// suppression stages regain authority quickly.
type SpeechConfidenceEstimator struct {
	sampleRate float64
	hopSize    int

	bpLowL, bpLowR   biquad
	bpHighL, bpHighR biquad

	hopEnergyTotal  float64
	hopEnergySpeech float64
	hopSamples      int
	samplesSinceHop int

	prevHopEnergyTotal  float64
	prevHopEnergySpeech float64
	prevHopSamples      int

	prevWindowEnergy float64

	rawConfidence      float64
	smoothedConfidence float64
	noiseFloorSq       float64

	hangCounter int
	hangSamples int

	silentFrames  int
	qualifyFrames int

	attackMix       float64
	releaseMix      float64
	escapeMix       float64
	noiseAttackMix  float64
	noiseReleaseMix float64

	output SpeechSidechain
}

// NewSpeechConfidenceEstimator builds an estimator for the given sample rate.
func NewSpeechConfidenceEstimator(sampleRate float64) *SpeechConfidenceEstimator {
	e := &SpeechConfidenceEstimator{noiseFloorSq: 1e-8}
	e.prepare(sampleRate)
	return e
}

func (e *SpeechConfidenceEstimator) prepare(sampleRate float64) {
	e.sampleRate = sampleRate
	e.hopSize = int(sidechainHopMS * 0.001 * sampleRate)
	if e.hopSize < 1 {
		e.hopSize = 1
	}
	e.hangSamples = int(confidenceHangMS * 0.001 * sampleRate)
	if e.hangSamples < 1 {
		e.hangSamples = 1
	}
	e.qualifyFrames = int(math.Ceil(silenceQualifyMS / sidechainHopMS))

	e.bpLowL.updateHPF(sidechainSpeechLowHz, 0.707, sampleRate)
	e.bpLowR.updateHPF(sidechainSpeechLowHz, 0.707, sampleRate)
	e.bpHighL.updateLPF(sidechainSpeechHighHz, 0.707, sampleRate)
	e.bpHighR.updateLPF(sidechainSpeechHighHz, 0.707, sampleRate)

	hopSec := float64(e.hopSize) / sampleRate
	e.attackMix = 1 - math.Exp(-hopSec/(confidenceAttackMS*0.001))
	e.releaseMix = 1 - math.Exp(-hopSec/(confidenceReleaseMS*0.001))
	e.escapeMix = 1 - math.Exp(-hopSec/(silenceEscapeTauMS*0.001))
	e.noiseAttackMix = 1 - math.Exp(-hopSec/(sidechainNoiseAttackMS*0.001))
	e.noiseReleaseMix = 1 - math.Exp(-hopSec/(sidechainNoiseReleaseMS*0.001))
}

// Process consumes one stereo sample and returns the current snapshot.
// Analysis only; the audio is not modified.
func (e *SpeechConfidenceEstimator) Process(left, right float64) SpeechSidechain {
	mono := 0.5 * (left + right)

	speechL := e.bpHighL.process(e.bpLowL.process(left))
	speechR := e.bpHighR.process(e.bpLowR.process(right))
	speechMono := 0.5 * (speechL + speechR)

	e.hopEnergyTotal += mono * mono
	e.hopEnergySpeech += speechMono * speechMono
	e.hopSamples++
	e.samplesSinceHop++

	if e.samplesSinceHop >= e.hopSize {
		e.analyzeFrame()
		e.samplesSinceHop = 0
	}

	return e.output
}

func (e *SpeechConfidenceEstimator) analyzeFrame() {
	// The window is the previous hop plus the one just completed; only the
	// very first analysis runs on a single hop's worth of samples.
	windowTotal := e.prevHopEnergyTotal + e.hopEnergyTotal
	windowSpeech := e.prevHopEnergySpeech + e.hopEnergySpeech
	windowSamples := e.prevHopSamples + e.hopSamples
	if windowSamples == 0 {
		return
	}
	n := float64(windowSamples)

	rmsTotal := math.Sqrt(windowTotal / n)
	rmsSpeech := math.Sqrt(windowSpeech / n)

	speechRatio := 0.0
	if rmsTotal > dbEps {
		speechRatio = clamp01(rmsSpeech / rmsTotal)
	}

	// Flux: speech modulates frame energy, steady noise does not.
	flux := 0.0
	if e.prevWindowEnergy > dbEps {
		ratio := windowTotal / (e.prevWindowEnergy + dbEps)
		flux = clamp01(math.Abs(math.Log(ratio)) / 2)
	}
	e.prevWindowEnergy = windowTotal

	// Flatness proxy from band concentration; a real flatness would need an
	// FFT the sidechain does not want to pay for.
	flatness := 0.0
	if speechRatio > minSpeechRatio {
		flatness = 1 - clamp01((1-speechRatio)*1.5)
	}

	aboveFloor := 0.0
	if rmsTotal*rmsTotal > e.noiseFloorSq*4 {
		ratio := rmsTotal / (math.Sqrt(e.noiseFloorSq) + dbEps)
		aboveFloor = clamp01(ratio / 10)
	}

	// Floor tracks the window-energy minimum: slow downward, faster upward,
	// hard-clamped so it cannot drift over long sessions.
	currentSq := windowTotal / n
	if currentSq < e.noiseFloorSq {
		e.noiseFloorSq += e.noiseAttackMix * (currentSq - e.noiseFloorSq)
	} else {
		e.noiseFloorSq += e.noiseReleaseMix * (currentSq - e.noiseFloorSq)
	}
	e.noiseFloorSq = clamp(e.noiseFloorSq, sidechainNoiseFloorMin, sidechainNoiseFloorMax)

	raw := 0.0
	if rmsTotal > confidenceSilenceRMS {
		srScore := 0.0
		if speechRatio > minSpeechRatio {
			srScore = clamp01((speechRatio - minSpeechRatio) / (1 - minSpeechRatio))
		}
		flatScore := 0.0
		if flatness > flatnessSpeechThreshold {
			flatScore = clamp01((flatness - flatnessSpeechThreshold) / (1 - flatnessSpeechThreshold))
		}
		raw = 0.4*srScore + 0.2*flatScore + 0.2*flux + 0.2*aboveFloor
	}
	e.rawConfidence = clamp01(raw)

	if rmsTotal < confidenceSilenceRMS {
		e.silentFrames++
	} else {
		e.silentFrames = 0
	}
	escape := e.silentFrames >= e.qualifyFrames

	switch {
	case e.rawConfidence > e.smoothedConfidence:
		e.smoothedConfidence += e.attackMix * (e.rawConfidence - e.smoothedConfidence)
		e.hangCounter = e.hangSamples
	case escape:
		// Escape path: genuine silence should not ride out the hang.
		e.hangCounter = 0
		e.smoothedConfidence += e.escapeMix * (e.rawConfidence - e.smoothedConfidence)
	case e.hangCounter > 0:
		dec := e.hopSize
		if dec > e.hangCounter {
			dec = e.hangCounter
		}
		e.hangCounter -= dec
	default:
		e.smoothedConfidence += e.releaseMix * (e.rawConfidence - e.smoothedConfidence)
	}

	e.output.Confidence = clamp01(e.smoothedConfidence)
	e.output.NoiseFloorDB = 10 * math.Log10(math.Max(e.noiseFloorSq, dbEps))

	e.prevHopEnergyTotal = e.hopEnergyTotal
	e.prevHopEnergySpeech = e.hopEnergySpeech
	e.prevHopSamples = e.hopSamples
	e.hopEnergyTotal = 0
	e.hopEnergySpeech = 0
	e.hopSamples = 0
}

// Output returns the latest snapshot without advancing analysis.
func (e *SpeechConfidenceEstimator) Output() SpeechSidechain {
	return e.output
}

// Reset clears all estimator state, filters included.
func (e *SpeechConfidenceEstimator) Reset() {
	e.hopEnergyTotal = 0
	e.hopEnergySpeech = 0
	e.hopSamples = 0
	e.samplesSinceHop = 0
	e.prevHopEnergyTotal = 0
	e.prevHopEnergySpeech = 0
	e.prevHopSamples = 0
	e.prevWindowEnergy = 0
	e.rawConfidence = 0
	e.smoothedConfidence = 0
	e.noiseFloorSq = 1e-8
	e.hangCounter = 0
	e.silentFrames = 0
	e.output = SpeechSidechain{}
	e.bpLowL.resetState()
	e.bpLowR.resetState()
	e.bpHighL.resetState()
	e.bpHighR.resetState()
}
