package dsp

import "math"

// Auto-capture windowing. Capture starts at the first signal above the
// silence threshold and stops early once silence has held long enough.
const (
	autoCaptureSeconds   = 30.0
	autoFastTauSec       = 0.02
	autoSlowTauSec       = 0.25
	autoSilenceHoldSec   = 0.6
	autoSilenceThreshold = 0.0005
	autoLowBandCutoffHz  = 250.0
	autoHighBandCutoffHz = 5000.0
	autoBandQ            = 0.707
)

// SuggestProgress reports how much voiced material the capture has banked.
type SuggestProgress struct {
	Seconds       float64
	TargetSeconds float64
	Active        bool
}

// SuggestedSettings is the starting parameter set a capture recommends. The
// clarity value is a mud cut; rumble and hiss carry the residual-noise tone
// bias.
type SuggestedSettings struct {
	NoiseReduction  float64
	ReverbReduction float64
	Clarity         float64
	Proximity       float64
	DeEsser         float64
	Leveler         float64
	Rumble          float64
	Hiss            float64
	OutputGainDB    float64
}

// AutoAnalyzer listens to up to thirty seconds of program material and
// recommends starting parameters from coarse envelope and band statistics.
// Feed it the mono mix; it keeps no per-channel state.
type AutoAnalyzer struct {
	sampleRate     float64
	captureSamples int
	seen           int
	started        bool
	silenceSamples int

	alphaFast float64
	alphaSlow float64
	envFast   float64
	envSlow   float64

	minEnvFast float64
	maxEnvFast float64
	sumEnvFast float64
	sumEnvSlow float64

	totalEnergy float64
	lowEnergy   float64
	highEnergy  float64
	lowpass     biquad
	highpass    biquad
}

// NewAutoAnalyzer builds an analyzer for a sample rate.
func NewAutoAnalyzer(sampleRate float64) *AutoAnalyzer {
	a := &AutoAnalyzer{
		lowpass:  newBiquad(),
		highpass: newBiquad(),
	}
	a.Reset(sampleRate)
	return a
}

// Reset clears all capture state and retunes for a sample rate.
func (a *AutoAnalyzer) Reset(sampleRate float64) {
	a.sampleRate = sampleRate
	a.captureSamples = int(sampleRate * autoCaptureSeconds)
	a.seen = 0
	a.started = false
	a.silenceSamples = 0
	a.alphaFast = 1 - math.Exp(-1/(autoFastTauSec*sampleRate))
	a.alphaSlow = 1 - math.Exp(-1/(autoSlowTauSec*sampleRate))
	a.envFast = 0
	a.envSlow = 0
	a.minEnvFast = math.MaxFloat64
	a.maxEnvFast = 0
	a.sumEnvFast = 0
	a.sumEnvSlow = 0
	a.totalEnergy = 0
	a.lowEnergy = 0
	a.highEnergy = 0
	a.lowpass.updateLPF(autoLowBandCutoffHz, autoBandQ, sampleRate)
	a.highpass.updateHPF(autoHighBandCutoffHz, autoBandQ, sampleRate)
	a.lowpass.resetState()
	a.highpass.resetState()
}

// ProcessSample advances the capture by one mono sample.
func (a *AutoAnalyzer) ProcessSample(sample float64) {
	if a.seen >= a.captureSamples || a.captureSamples == 0 {
		return
	}

	abs := math.Abs(sample)
	a.envFast += (abs - a.envFast) * a.alphaFast
	a.envSlow += (abs - a.envSlow) * a.alphaSlow

	if a.envSlow >= autoSilenceThreshold {
		a.started = true
		a.silenceSamples = 0
	} else if a.started {
		a.silenceSamples++
	}
	if !a.started {
		return
	}

	a.minEnvFast = math.Min(a.minEnvFast, a.envFast)
	a.maxEnvFast = math.Max(a.maxEnvFast, a.envFast)
	a.sumEnvFast += a.envFast
	a.sumEnvSlow += a.envSlow

	low := a.lowpass.process(sample)
	high := a.highpass.process(sample)
	a.totalEnergy += sample * sample
	a.lowEnergy += low * low
	a.highEnergy += high * high

	a.seen++
}

// Done reports whether the capture window is complete, either by filling or
// by sustained trailing silence.
func (a *AutoAnalyzer) Done() bool {
	if a.captureSamples == 0 {
		return false
	}
	if a.seen >= a.captureSamples {
		return true
	}
	if a.started {
		return a.silenceSamples >= int(a.sampleRate*autoSilenceHoldSec)
	}
	return false
}

// HasData reports whether any voiced material was captured.
func (a *AutoAnalyzer) HasData() bool {
	return a.seen > 0
}

// Progress reports capture state for display.
func (a *AutoAnalyzer) Progress() SuggestProgress {
	return SuggestProgress{
		Seconds:       float64(a.seen) / math.Max(a.sampleRate, 1),
		TargetSeconds: autoCaptureSeconds,
		Active:        a.started,
	}
}

// Finish converts the captured statistics into suggested settings and resets
// the analyzer for the next capture.
func (a *AutoAnalyzer) Finish() SuggestedSettings {
	const eps = 1e-8
	count := float64(a.seen)
	if count < 1 {
		count = 1
	}
	avgFast := a.sumEnvFast / count
	avgSlow := a.sumEnvSlow / count
	totalEnergy := math.Max(a.totalEnergy, eps)
	lowRatio := clamp01(a.lowEnergy / totalEnergy)
	highRatio := clamp01(a.highEnergy / totalEnergy)

	// A high floor relative to the average envelope means steady broadband
	// noise under the speech.
	noiseRatio := clamp01(a.minEnvFast / (avgFast + eps))
	noiseReduction := clamp((noiseRatio-0.03)/0.25, 0, 0.8)

	// Slow/fast near 1 means sustained sound filling the gaps (wet); well
	// above 1 means dynamic speech with real pauses (dry).
	reverbRatio := clamp(avgSlow/(avgFast+eps), 0, 3)
	reverbReduction := clamp((1.25-reverbRatio)/0.25, 0, 0.9)

	mudCut := clamp((lowRatio-0.22)/0.25, 0, 0.8)
	proximity := clamp((0.22-lowRatio)/0.22, 0, 0.6)
	deEsser := clamp((highRatio-0.12)/0.2, 0, 0.8)

	dynDB := 20 * math.Log10((a.maxEnvFast+eps)/(avgFast+eps))
	leveler := clamp((dynDB-6)/12, 0, 0.8)

	var rumble, hiss float64
	if lowRatio > highRatio*1.3 {
		rumble = 0.5
	} else if highRatio > lowRatio*1.3 {
		hiss = 0.5
	}

	rms := math.Sqrt(totalEnergy / count)
	rmsDB := 20 * math.Log10(rms+eps)
	outputGainDB := 0.0
	if rmsDB >= -60 {
		outputGainDB = clamp(-18-rmsDB, -12, 12)
	}

	a.Reset(a.sampleRate)

	return SuggestedSettings{
		NoiseReduction:  noiseReduction,
		ReverbReduction: reverbReduction,
		Clarity:         mudCut,
		Proximity:       proximity,
		DeEsser:         deEsser,
		Leveler:         leveler,
		Rumble:          rumble,
		Hiss:            hiss,
		OutputGainDB:    outputGainDB,
	}
}
