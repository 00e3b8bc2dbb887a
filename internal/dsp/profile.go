package dsp

import "math"

// Profile analysis geometry. Frames are 50 ms; variance metrics integrate
// over the last 20 frames (one second), HF variance over 16.
const (
	profileFrameMS        = 50.0
	profileEarlyWindowMS  = 50.0
	profileOnsetRearmMS   = 100.0
	profileRMSVarFrames   = 20
	profileHFVarFrames    = 16
	profileNoiseAttackMS  = 500.0
	profileNoiseReleaseMS = 100.0
	profileDecayDelayMS   = 75.0
	profileDecayWindowMS  = 200.0
	profileSpeechGateMult = 2.5
)

// AudioProfile is the rolling measurement snapshot the calibration layer
// compares against its targets. Produced by ProfileAnalyzer once per 50 ms
// frame; all fields are plain scalars so a copy is a consistent view.
type AudioProfile struct {
	RMS           float64
	Peak          float64
	CrestFactorDB float64
	RMSVariance   float64
	NoiseFloor    float64
	SNRDB         float64
	// EarlyLateRatio compares direct energy (first 50 ms after an onset)
	// against the diffuse remainder; 1.0 reads as dry, values toward 0 as
	// reverberant. Clamped to [0,2].
	EarlyLateRatio float64
	// DecaySlope is the speech-gated relative RMS slope per frame; sustained
	// negative values indicate energy decaying into a room tail.
	DecaySlope    float64
	PresenceRatio float64
	AirRatio      float64
	// HFVariance tracks 6-12 kHz energy variance, near zero for whispered
	// material.
	HFVariance float64
}

// ProfileAnalyzer computes AudioProfile metrics from a stereo stream. One
// instance watches the engine input and a second the engine output; both run
// frame-based so the per-sample cost is a few filters and accumulators.
type ProfileAnalyzer struct {
	sampleRate float64
	frameSize  int

	presence bandFilterPair
	air      bandFilterPair
	hfVar    bandFilterPair
	fullband bandFilterPair

	sampleCount    int
	energyTotal    float64
	energyPresence float64
	energyAir      float64
	energyHF       float64
	energyFullband float64
	peakAbs        float64

	rmsHistory [profileRMSVarFrames]float64
	rmsIdx     int
	hfHistory  [profileHFVarFrames]float64
	hfIdx      int

	noiseFloorSq float64
	noiseAttack  float64
	noiseRelease float64

	// Early/late accumulation is anchored at energy onsets: a rise above the
	// floor gate after a quiet stretch restarts the early window, so the
	// ratio measures direct sound against what follows it.
	earlyEnergy  float64
	lateEnergy   float64
	earlySamples int
	lateSamples  int
	earlyWindow  int
	quietSamples int
	onsetRearm   int

	prevRMS          float64
	decayDelayFrames int
	decayWindow      int
	decayAccum       float64
	decayCount       int
	speechActive     bool
	speechFrames     int
	stableDecay      float64

	profile AudioProfile
}

// NewProfileAnalyzer builds an analyzer for the given sample rate.
func NewProfileAnalyzer(sampleRate float64) *ProfileAnalyzer {
	a := &ProfileAnalyzer{noiseFloorSq: 1e-8}
	a.prepare(sampleRate)
	return a
}

func (a *ProfileAnalyzer) prepare(sampleRate float64) {
	a.sampleRate = sampleRate
	a.frameSize = int(profileFrameMS * 0.001 * sampleRate)
	if a.frameSize < 1 {
		a.frameSize = 1
	}
	a.earlyWindow = int(profileEarlyWindowMS * 0.001 * sampleRate)
	a.onsetRearm = int(profileOnsetRearmMS * 0.001 * sampleRate)

	a.decayDelayFrames = int(math.Floor(profileDecayDelayMS / profileFrameMS))
	if a.decayDelayFrames < 1 {
		a.decayDelayFrames = 1
	}
	a.decayWindow = int(math.Ceil(profileDecayWindowMS / profileFrameMS))

	frameSec := float64(a.frameSize) / sampleRate
	a.noiseAttack = 1 - math.Exp(-frameSec/(profileNoiseAttackMS*0.001))
	a.noiseRelease = 1 - math.Exp(-frameSec/(profileNoiseReleaseMS*0.001))

	a.presence.init(2000, 5000, sampleRate)
	a.air.init(8000, 16000, sampleRate)
	a.hfVar.init(6000, 12000, sampleRate)
	a.fullband.init(100, 8000, sampleRate)
}

// Process consumes one stereo sample. Analysis only.
func (a *ProfileAnalyzer) Process(left, right float64) {
	mono := 0.5 * (left + right)
	monoSq := mono * mono

	if abs := math.Abs(mono); abs > a.peakAbs {
		a.peakAbs = abs
	}
	a.energyTotal += monoSq

	a.energyPresence += a.presence.energy(left, right)
	a.energyAir += a.air.energy(left, right)
	a.energyHF += a.hfVar.energy(left, right)
	a.energyFullband += a.fullband.energy(left, right)

	// Early/late bookkeeping. Energy gate sits 2.5x (amplitude) above the
	// tracked floor; a gated sample after a long enough quiet run re-anchors
	// the early window and ages out half the old evidence.
	gate := monoSq > a.noiseFloorSq*profileSpeechGateMult*profileSpeechGateMult
	if gate {
		if a.quietSamples >= a.onsetRearm {
			a.earlySamples = 0
			a.earlyEnergy *= 0.5
			a.lateEnergy *= 0.5
			a.lateSamples /= 2
		}
		a.quietSamples = 0
	} else if a.quietSamples < a.onsetRearm {
		a.quietSamples++
	}
	if a.earlySamples < a.earlyWindow {
		a.earlyEnergy += monoSq
		a.earlySamples++
	} else {
		a.lateEnergy += monoSq
		a.lateSamples++
	}

	a.sampleCount++
	if a.sampleCount >= a.frameSize {
		a.analyzeFrame()
	}
}

func (a *ProfileAnalyzer) analyzeFrame() {
	if a.sampleCount == 0 {
		return
	}
	n := float64(a.sampleCount)

	rms := math.Sqrt(a.energyTotal / n)
	peak := a.peakAbs
	crestDB := 0.0
	if rms > dbEps {
		crestDB = 20 * math.Log10(peak/rms)
	}

	a.rmsHistory[a.rmsIdx] = rms
	a.rmsIdx = (a.rmsIdx + 1) % profileRMSVarFrames
	var rmsMean float64
	for _, v := range a.rmsHistory {
		rmsMean += v
	}
	rmsMean /= profileRMSVarFrames
	var rmsVar float64
	for _, v := range a.rmsHistory {
		d := v - rmsMean
		rmsVar += d * d
	}
	rmsVar /= profileRMSVarFrames

	frameSq := a.energyTotal / n
	if frameSq < a.noiseFloorSq {
		a.noiseFloorSq += a.noiseAttack * (frameSq - a.noiseFloorSq)
	} else {
		a.noiseFloorSq += a.noiseRelease * (frameSq - a.noiseFloorSq)
	}
	a.noiseFloorSq = clamp(a.noiseFloorSq, 1e-12, 0.1)
	noiseFloor := math.Sqrt(a.noiseFloorSq)

	snrDB := 60.0
	if noiseFloor > dbEps {
		snrDB = 20 * math.Log10(math.Max(rms, dbEps)/noiseFloor)
	}

	earlyLate := 0.5
	if a.lateEnergy > dbEps && a.lateSamples > 0 && a.earlySamples > 0 {
		earlyMean := a.earlyEnergy / float64(a.earlySamples)
		lateMean := a.lateEnergy / float64(a.lateSamples)
		earlyLate = earlyMean / math.Max(lateMean, dbEps)
	} else if a.earlyEnergy > dbEps {
		earlyLate = 1.0
	}

	// Decay slope, gated on clear speech activity and delayed past the
	// onset so plosives and phrase attacks do not read as room decay.
	speechFrame := rms > noiseFloor*profileSpeechGateMult
	switch {
	case speechFrame && !a.speechActive:
		a.speechActive = true
		a.speechFrames = 0
	case speechFrame:
		a.speechFrames++
	default:
		a.speechActive = false
		a.speechFrames = 0
	}
	if a.speechActive && a.speechFrames >= a.decayDelayFrames && a.prevRMS > dbEps && rms > dbEps {
		a.decayAccum += (rms - a.prevRMS) / a.prevRMS
		a.decayCount++
		if a.decayCount >= a.decayWindow {
			a.stableDecay = a.decayAccum / float64(a.decayCount)
			a.decayAccum = 0
			a.decayCount = 0
		}
	}
	a.prevRMS = rms

	presenceRatio := 0.0
	airRatio := 0.0
	if a.energyFullband > dbEps {
		presenceRatio = a.energyPresence / a.energyFullband
		airRatio = a.energyAir / a.energyFullband
	}

	hfFrame := a.energyHF / n
	a.hfHistory[a.hfIdx] = hfFrame
	a.hfIdx = (a.hfIdx + 1) % profileHFVarFrames
	var hfMean float64
	for _, v := range a.hfHistory {
		hfMean += v
	}
	hfMean /= profileHFVarFrames
	var hfVar float64
	for _, v := range a.hfHistory {
		d := v - hfMean
		hfVar += d * d
	}
	hfVar /= profileHFVarFrames

	a.profile = AudioProfile{
		RMS:            rms,
		Peak:           peak,
		CrestFactorDB:  crestDB,
		RMSVariance:    rmsVar,
		NoiseFloor:     noiseFloor,
		SNRDB:          snrDB,
		EarlyLateRatio: clamp(earlyLate, 0, 2),
		DecaySlope:     a.stableDecay,
		PresenceRatio:  presenceRatio,
		AirRatio:       airRatio,
		HFVariance:     hfVar,
	}

	a.sampleCount = 0
	a.energyTotal = 0
	a.energyPresence = 0
	a.energyAir = 0
	a.energyHF = 0
	a.energyFullband = 0
	a.peakAbs = 0
}

// Profile returns the last completed frame's metrics.
func (a *ProfileAnalyzer) Profile() AudioProfile {
	return a.profile
}

// FinalizeFrame folds a partial frame into the profile at a block boundary.
func (a *ProfileAnalyzer) FinalizeFrame() {
	if a.sampleCount > 0 {
		a.analyzeFrame()
	}
}

// Reset clears measurement state and the published profile.
func (a *ProfileAnalyzer) Reset() {
	a.sampleCount = 0
	a.energyTotal = 0
	a.energyPresence = 0
	a.energyAir = 0
	a.energyHF = 0
	a.energyFullband = 0
	a.peakAbs = 0
	a.rmsHistory = [profileRMSVarFrames]float64{}
	a.rmsIdx = 0
	a.hfHistory = [profileHFVarFrames]float64{}
	a.hfIdx = 0
	a.noiseFloorSq = 1e-8
	a.earlyEnergy = 0
	a.lateEnergy = 0
	a.earlySamples = 0
	a.lateSamples = 0
	a.quietSamples = 0
	a.prevRMS = 0
	a.decayAccum = 0
	a.decayCount = 0
	a.speechActive = false
	a.speechFrames = 0
	a.stableDecay = 0
	a.profile = AudioProfile{}
	a.presence.resetState()
	a.air.resetState()
	a.hfVar.resetState()
	a.fullband.resetState()
}
