package engine

import (
	"fmt"
	"math"

	"github.com/voicemend/voicemend/internal/dsp"
)

// Stage amount resolution. Advanced knobs and macro targets live in [0,1];
// resolution scales them onto the stage domain, where 1.0 is the nominal
// depth and 2.0 the overdrive ceiling. Reverb-linked amounts stay in [0,1]
// because the de-verb chain compounds three stages.
const (
	stageAmountMax = 2.0
	minStageAmount = 0.001
)

// Macro mode engages and disengages over a short parameter crossfade so a
// toggle never steps the resolved amounts.
const macroCrossfadeSec = 0.046

// Denoiser sensitivity derived from the resolved amount. NoiseMode adds its
// bias on top before the clamp.
const (
	denoiseSensBase    = 0.2
	denoiseSensSlope   = 0.8
	denoiseToneNeutral = 0.5
)

// Inter-module clamps applied after the slew limiter. Strong proximity
// boost makes low-mid cuts audible, and heavy shaping plus heavy de-verb
// compound into a hollow sound, so the later stage always yields.
const (
	proxClarityClampAt    = 0.4
	proxClarityClampScale = 0.7
	reverbClampProxAt     = 0.6
	reverbClampClarityAt  = 0.6
	reverbClampScale      = 0.75
	denoiseClampClarityAt = 0.8
	denoiseClampScale     = 0.85
)

// Leveler interaction guards. When the de-esser is already cutting hard or
// the limiter is engaged, the leveler backs off instead of stacking gain
// moves on the same syllable.
const (
	levelerDeEssGuardDB      = -3.0
	levelerDeEssGuardScale   = 0.7
	levelerLimiterGuardDB    = 2.0
	levelerLimiterGuardScale = 0.8
)

// Speech-band recovery reaches full compensation at 6 dB of measured loss
// across the subtractive stages.
const recoveryFullLossDB = 6.0

// Loudness compensation holds the processed program near the input
// loudness. The correction is slow and tightly bounded so it can never act
// as a second leveler.
const (
	loudnessCompTauSec = 10.0
	loudnessCompMin    = 0.9
	loudnessCompMax    = 1.1
	loudnessCompOnDB   = 0.1
)

// Output preset gain rides toward the LUFS target under the true-peak
// ceiling.
const presetGainTauSec = 0.5

// Peak meter ballistics.
const (
	peakDecayDBPerSec = 13.0
	peakFloorDB       = -80.0
)

// Pump detection thresholds. A block qualifies when the compensation gain
// jumps, the limiter digs in, or the leveler and limiter both moved while
// the loudness drifted.
const (
	pumpLoudnessDeltaDB = 2.0
	pumpLimiterGRDB     = 1.5
	pumpMovementDB      = 5.0
	pumpMovementMinDB   = 1.0
	pumpCooldownBlocks  = 50
)

// A finished macro transition that shifts block RMS by more than this is
// flagged as audible.
const audibleShiftDB = 0.1

// Absolute output ceiling. Anything past it is a fault upstream, so the
// clamp scales both channels to preserve the image.
const hardClampPeak = 4.0

// Pre/post RMS envelopes for loudness compensation.
const rmsEnvTauSec = 2.0

const envFloor = 1e-8

// State describes the engine's coarse lifecycle for hosts.
type State int

const (
	// StateActive is normal processing with no stored noise fingerprint.
	StateActive State = iota
	// StateLearning is set while the static noise learner is sampling.
	StateLearning
	// StateHolding is set once a learned fingerprint is stored and applied.
	StateHolding
	// StateBypassed marks a block that was passed through untouched after
	// an internal fault. The next block runs the chain again.
	StateBypassed
)

func (s State) String() string {
	switch s {
	case StateLearning:
		return "learning"
	case StateHolding:
		return "holding"
	case StateBypassed:
		return "bypassed"
	default:
		return "active"
	}
}

// Config fixes the engine's immutable processing setup.
type Config struct {
	// SampleRate in Hz. The engine does no resampling.
	SampleRate float64
	// MaxBlock is the largest frame count one ProcessBlock call may carry.
	// Delta taps and scratch are sized once from it.
	MaxBlock int
	// ModelPath optionally points at an ONNX mask model for the denoiser
	// advisor. Empty keeps the pure DSP path.
	ModelPath string
}

// channelProcessor bundles the per-channel stage instances. Left and right
// run identical chains; linked decisions (expander, de-esser, leveler,
// limiter) live on the engine and feed both sides one gain.
type channelProcessor struct {
	envelope  *dsp.EnvelopeTracker
	earlyRef  *dsp.EarlyReflectionSuppressor
	plosive   *dsp.PlosiveSoftener
	breath    *dsp.BreathReducer
	safety    *dsp.SafetyHPF
	deverb    *dsp.Deverber
	proximity *dsp.Proximity
	clarity   *dsp.Clarity
	deEss     *dsp.DeEsserBand
}

func newChannelProcessor(sampleRate float64) *channelProcessor {
	return &channelProcessor{
		envelope:  dsp.NewEnvelopeTracker(sampleRate),
		earlyRef:  dsp.NewEarlyReflectionSuppressor(sampleRate),
		plosive:   dsp.NewPlosiveSoftener(sampleRate),
		breath:    dsp.NewBreathReducer(sampleRate),
		safety:    dsp.NewSafetyHPF(sampleRate),
		deverb:    dsp.NewDeverber(),
		proximity: dsp.NewProximity(sampleRate),
		clarity:   dsp.NewClarity(sampleRate),
		deEss:     dsp.NewDeEsserBand(sampleRate),
	}
}

func (c *channelProcessor) reset() {
	c.envelope.Reset()
	c.earlyRef.Reset()
	c.plosive.Reset()
	c.breath.Reset()
	c.safety.Reset()
	c.deverb.Reset()
	c.proximity.Reset()
	c.clarity.Reset()
	c.deEss.Reset()
}

// Engine is the deterministic speech-restoration chain. One instance owns
// all stage state for a stereo stream. ProcessBlock must be called from a
// single goroutine; Params and Meters are safe to touch from any.
type Engine struct {
	cfg    Config
	params *Params
	meters *Meters

	left  *channelProcessor
	right *channelProcessor

	speechHPF  *dsp.SpeechHPF
	sidechain  *dsp.SpeechConfidenceEstimator
	noiseLearn *dsp.NoiseLearnRemove
	tone       *dsp.HissRumble
	expander   *dsp.SpeechExpander
	tilt       *dsp.PinkRefBias
	denoiser   *dsp.StreamingDenoiser
	clarityDet *dsp.ClarityDetector
	deEssDet   *dsp.DeEsserDetector
	leveler    *dsp.LinkedCompressor
	guardrails *dsp.SpectralGuardrails
	recovery   *dsp.RecoveryStage
	cleanup    *dsp.PostNoiseCleanup
	limiter    *dsp.LinkedLimiter
	loudness   *dsp.LoudnessMeter

	inputProfile  *dsp.ProfileAnalyzer
	outputProfile *dsp.ProfileAnalyzer
	speechPre     *dsp.SpeechBandTracker
	speechPost    *dsp.SpeechBandTracker
	slew          dsp.SpectralControlLimiters
	calibrator    *Calibrator

	// Macro crossfade and mode-switch bookkeeping.
	prevMacroMode    bool
	haveSnapshot     bool
	prevHash         uint64
	xfadeTotal       int
	xfadeLeft        int
	xfadeToMacro     bool
	pendingModeCheck bool

	// Gain rides.
	rmsAlpha      float64
	preRMSEnv     float64
	postRMSEnv    float64
	loudCompGain  float64
	prevCompGain  float64
	activePreset  OutputPreset
	presetGainDB  float64
	presetGainLin float64

	// Meter ballistics and pump bookkeeping. The previous-block gain
	// reductions feed the movement correlation, so they must only be
	// written after pump detection ran.
	inPeakDBL       float64
	inPeakDBR       float64
	outPeakDBL      float64
	outPeakDBR      float64
	lastOutRMSDB    float64
	prevLevelerGain float64
	prevLevelerGRDB float64
	prevLimiterGRDB float64
	pumpCooldown    int

	// Per-block taps and scratch, sized MaxBlock.
	deltaNoiseLearnL []float64
	deltaNoiseLearnR []float64
	deltaDenoiseL    []float64
	deltaDenoiseR    []float64
	deltaDeverbL     []float64
	deltaDeverbR     []float64
	deltaDeEssL      []float64
	deltaDeEssR      []float64
	scratchL         []float64
	scratchR         []float64
	saveL            []float64
	saveR            []float64
	lastBlock        int

	bypassed bool
}

// New builds an engine for the given configuration. All windowed stages
// are constructed up front, so Latency is valid before the first block.
func New(cfg Config) (*Engine, error) {
	if cfg.SampleRate < 8000 || cfg.SampleRate > 192000 {
		return nil, fmt.Errorf("engine: sample rate %.0f Hz outside [8000, 192000]", cfg.SampleRate)
	}
	if cfg.MaxBlock <= 0 || cfg.MaxBlock > 1<<16 {
		return nil, fmt.Errorf("engine: max block %d outside [1, %d]", cfg.MaxBlock, 1<<16)
	}

	sr := cfg.SampleRate
	e := &Engine{
		cfg:    cfg,
		params: NewParams(),
		meters: NewMeters(),

		left:  newChannelProcessor(sr),
		right: newChannelProcessor(sr),

		speechHPF:  dsp.NewSpeechHPF(sr),
		sidechain:  dsp.NewSpeechConfidenceEstimator(sr),
		noiseLearn: dsp.NewNoiseLearnRemove(sr),
		tone:       dsp.NewHissRumble(sr),
		expander:   dsp.NewSpeechExpander(sr),
		tilt:       dsp.NewPinkRefBias(sr),
		denoiser:   dsp.NewStreamingDenoiser(sr),
		clarityDet: dsp.NewClarityDetector(sr),
		deEssDet:   dsp.NewDeEsserDetector(sr),
		leveler:    dsp.NewLinkedCompressor(sr),
		guardrails: dsp.NewSpectralGuardrails(sr),
		recovery:   dsp.NewRecoveryStage(sr),
		cleanup:    dsp.NewPostNoiseCleanup(sr),
		limiter:    dsp.NewLinkedLimiter(sr),
		loudness:   dsp.NewLoudnessMeter(sr),

		inputProfile:  dsp.NewProfileAnalyzer(sr),
		outputProfile: dsp.NewProfileAnalyzer(sr),
		speechPre:     dsp.NewSpeechBandTracker(sr),
		speechPost:    dsp.NewSpeechBandTracker(sr),
		calibrator:    NewCalibrator(sr),

		rmsAlpha:        1 - math.Exp(-1/(rmsEnvTauSec*sr)),
		loudCompGain:    1,
		prevCompGain:    1,
		presetGainLin:   1,
		prevLevelerGain: 1,
		inPeakDBL:       peakFloorDB,
		inPeakDBR:       peakFloorDB,
		outPeakDBL:      peakFloorDB,
		outPeakDBR:      peakFloorDB,
		lastOutRMSDB:    peakFloorDB,

		deltaNoiseLearnL: make([]float64, cfg.MaxBlock),
		deltaNoiseLearnR: make([]float64, cfg.MaxBlock),
		deltaDenoiseL:    make([]float64, cfg.MaxBlock),
		deltaDenoiseR:    make([]float64, cfg.MaxBlock),
		deltaDeverbL:     make([]float64, cfg.MaxBlock),
		deltaDeverbR:     make([]float64, cfg.MaxBlock),
		deltaDeEssL:      make([]float64, cfg.MaxBlock),
		deltaDeEssR:      make([]float64, cfg.MaxBlock),
		scratchL:         make([]float64, cfg.MaxBlock),
		scratchR:         make([]float64, cfg.MaxBlock),
		saveL:            make([]float64, cfg.MaxBlock),
		saveR:            make([]float64, cfg.MaxBlock),
	}
	e.denoiser.Prepare(sr, cfg.ModelPath)
	return e, nil
}

// Params exposes the lock-free control surface shared with host threads.
func (e *Engine) Params() *Params { return e.params }

// Meters exposes the meter arena shared with host threads.
func (e *Engine) Meters() *Meters { return e.meters }

// SampleRate reports the configured rate.
func (e *Engine) SampleRate() float64 { return e.cfg.SampleRate }

// Latency reports the fixed chain delay in samples. The windowed stages
// always run their rings, even when disabled, so this never varies with
// settings.
func (e *Engine) Latency() int {
	return e.noiseLearn.Latency() + e.denoiser.Latency() + e.left.deverb.Latency()
}

// SetMainsFrequency narrows the hum attenuator to the regional mains base,
// 50 or 60 Hz.
func (e *Engine) SetMainsFrequency(baseHz int) {
	e.denoiser.SetMainsFrequency(baseHz)
}

// State reports the coarse lifecycle.
func (e *Engine) State() State {
	switch {
	case e.bypassed:
		return StateBypassed
	case e.params.learnNoise.Load() && e.noiseLearn.LearnProgress() < 1:
		return StateLearning
	case e.noiseLearn.HasProfile():
		return StateHolding
	default:
		return StateActive
	}
}

// InputProfile returns the running profile measured at the hygiene filter
// output.
func (e *Engine) InputProfile() dsp.AudioProfile { return e.inputProfile.Profile() }

// OutputProfile returns the running profile measured at the engine output.
func (e *Engine) OutputProfile() dsp.AudioProfile { return e.outputProfile.Profile() }

// Conditions reports the condition flags the calibrator derived from the
// input profile.
func (e *Engine) Conditions() DetectedConditions { return e.calibrator.Conditions() }

// Loudness returns the integrated loudness of everything processed so far,
// measured before any output preset gain.
func (e *Engine) Loudness() (lufs float64, ok bool) { return e.loudness.LoudnessGlobal() }

// TruePeakDB returns the highest oversampled peak seen so far, measured
// before any output preset gain.
func (e *Engine) TruePeakDB() float64 { return e.loudness.TruePeakDB() }

// FinalizeProfiles flushes partial analysis frames at end of stream so the
// last profile read covers everything processed.
func (e *Engine) FinalizeProfiles() {
	e.inputProfile.FinalizeFrame()
	e.outputProfile.FinalizeFrame()
}

// NoiseLearnDelta returns the removed-signal tap of the static noise stage
// for the last block. The slices alias engine storage and are valid until
// the next ProcessBlock call.
func (e *Engine) NoiseLearnDelta() (l, r []float64) {
	return e.deltaNoiseLearnL[:e.lastBlock], e.deltaNoiseLearnR[:e.lastBlock]
}

// DenoiseDelta returns the removed-signal tap of the spectral denoiser for
// the last block.
func (e *Engine) DenoiseDelta() (l, r []float64) {
	return e.deltaDenoiseL[:e.lastBlock], e.deltaDenoiseR[:e.lastBlock]
}

// DeverbDelta returns the removed-signal tap of the de-verb stage for the
// last block.
func (e *Engine) DeverbDelta() (l, r []float64) {
	return e.deltaDeverbL[:e.lastBlock], e.deltaDeverbR[:e.lastBlock]
}

// DeEsserDelta returns the removed-signal tap of the de-esser for the last
// block.
func (e *Engine) DeEsserDelta() (l, r []float64) {
	return e.deltaDeEssL[:e.lastBlock], e.deltaDeEssR[:e.lastBlock]
}

// Reset returns every stage to cold state. The learned noise fingerprint
// survives; Params.ClearNoiseProfile drops it explicitly. Not safe to call
// concurrently with ProcessBlock; the audio side uses the reset one-shot.
func (e *Engine) Reset() { e.resetState() }

// Close releases denoiser advisor resources. The engine must not be used
// afterwards.
func (e *Engine) Close() error { return e.denoiser.Close() }

func (e *Engine) resetState() {
	e.speechHPF.Reset()
	e.sidechain.Reset()
	e.noiseLearn.Reset()
	e.tone.Reset()
	e.expander.Reset()
	e.tilt.Reset()
	e.denoiser.Reset()
	e.clarityDet.Reset()
	e.deEssDet.Reset()
	e.leveler.Reset()
	e.guardrails.Reset()
	e.recovery.Reset()
	e.cleanup.Reset()
	e.limiter.Reset()
	e.loudness.Reset()
	e.inputProfile.Reset()
	e.outputProfile.Reset()
	e.speechPre.Reset()
	e.speechPost.Reset()
	e.left.reset()
	e.right.reset()
	e.slew.Reset()
	e.calibrator.Reset()
	e.meters.Reset()

	e.prevMacroMode = false
	e.haveSnapshot = false
	e.prevHash = 0
	e.xfadeTotal = 0
	e.xfadeLeft = 0
	e.xfadeToMacro = false
	e.pendingModeCheck = false

	e.preRMSEnv = 0
	e.postRMSEnv = 0
	e.loudCompGain = 1
	e.prevCompGain = 1
	e.activePreset = OutputNone
	e.presetGainDB = 0
	e.presetGainLin = 1

	e.inPeakDBL = peakFloorDB
	e.inPeakDBR = peakFloorDB
	e.outPeakDBL = peakFloorDB
	e.outPeakDBR = peakFloorDB
	e.lastOutRMSDB = peakFloorDB
	e.prevLevelerGain = 1
	e.prevLevelerGRDB = 0
	e.prevLimiterGRDB = 0
	e.pumpCooldown = 0
	e.bypassed = false
}

// blockControls is the per-block resolution of the control surface: stage
// amounts after macro blending, safeguards, slew, and inter-module clamps,
// plus the block accumulators the finish step consumes.
type blockControls struct {
	snap Snapshot

	denoise   float64
	reverb    float64
	proximity float64
	clarity   float64
	deEsser   float64
	leveler   float64
	breath    float64
	rumble    float64
	hiss      float64

	erAmount     float64
	expandAmount float64
	deverbAmount float64
	recoveryComp float64
	outputGain   float64

	noiseCfg   dsp.NoiseLearnConfig
	denoiseCfg dsp.DenoiseConfig

	outSumSq          float64
	outPeak           float64
	maxLevelerDeltaDB float64
	pumpSeen          bool
}

func (e *Engine) beginBlock(frames int) blockControls {
	snap := e.params.TakeSnapshot()

	if snap.ResetRequest {
		e.resetState()
	}
	if snap.CalibrateTarget {
		e.calibrator.SetTarget(TargetProfileAround(e.inputProfile.Profile()))
	}
	if snap.OutputPreset != e.activePreset {
		e.activePreset = snap.OutputPreset
		e.presetGainDB = 0
		e.presetGainLin = 1
	}

	hash := snap.Hash()
	if e.haveSnapshot && snap.MacroMode != e.prevMacroMode {
		e.xfadeTotal = int(math.Round(macroCrossfadeSec * e.cfg.SampleRate))
		if e.xfadeTotal < 1 {
			e.xfadeTotal = 1
		}
		e.xfadeLeft = e.xfadeTotal
		e.xfadeToMacro = snap.MacroMode
		e.meters.RecordModeTransition(e.prevHash, hash, e.lastOutRMSDB)
		e.pendingModeCheck = true
	}
	blend := 0.0
	switch {
	case e.xfadeLeft > 0:
		t := float64(e.xfadeTotal-e.xfadeLeft) / float64(e.xfadeTotal)
		if e.xfadeToMacro {
			blend = t
		} else {
			blend = 1 - t
		}
	case snap.MacroMode:
		blend = 1
	}
	e.xfadeLeft -= frames
	if e.xfadeLeft < 0 {
		e.xfadeLeft = 0
	}
	e.prevMacroMode = snap.MacroMode
	e.prevHash = hash
	e.haveSnapshot = true

	targets := computeMacroTargets(snap.MacroDistance, snap.MacroClarity, snap.MacroConsistency, e.calibrator.Factors())
	mix := func(advanced, macro float64) float64 { return advanced + (macro-advanced)*blend }

	rawNoise := clamp(mix(snap.NoiseReduction, targets.NoiseReduction)*stageAmountMax, 0, stageAmountMax)
	rawReverb := clamp(mix(snap.ReverbReduction, targets.ReverbReduction)*stageAmountMax, 0, 1)
	rawProx := clamp(mix(snap.Proximity, targets.Proximity)*stageAmountMax, 0, stageAmountMax)
	rawClarity := clamp(mix(snap.Clarity, targets.Clarity)*stageAmountMax, 0, stageAmountMax)
	rawDeEss := clamp(mix(snap.DeEsser, targets.DeEsser)*stageAmountMax, 0, stageAmountMax)
	rawLeveler := clamp(mix(snap.Leveler, targets.Leveler)*stageAmountMax, 0, stageAmountMax)
	rawBreath := clamp01(mix(snap.BreathControl, targets.BreathControl))
	rumble := mix(snap.Rumble, targets.Rumble)
	hiss := mix(snap.Hiss, targets.Hiss)

	e.meters.SetResolvedParams(rawNoise, rawReverb, rawClarity, rawDeEss, rawProx, rawLeveler, rawBreath)

	cond := e.calibrator.Conditions()
	speechLossDB := dsp.SpeechBandLossDB(e.speechPre.Energy(), e.speechPost.Energy())
	lim := e.slew.Process(rawNoise, rawClarity, rawDeEss, rawReverb, rawProx,
		cond.Whisper, cond.NoisyEnvironment, speechLossDB)
	e.meters.SetSpeechProtection(speechLossDB, lim.SpeechProtectionScale, lim.SpeechProtectionActive)
	e.meters.SetEnergyBudget(lim.EnergyBudgetScale, lim.EnergyBudgetActive)

	denoise, clarity, deEsser := lim.Denoise, lim.Clarity, lim.DeEsser
	reverb, prox := lim.Reverb, lim.Proximity
	if prox > proxClarityClampAt {
		clarity *= proxClarityClampScale
	}
	if prox > reverbClampProxAt || clarity > reverbClampClarityAt {
		reverb *= reverbClampScale
	}
	if clarity > denoiseClampClarityAt {
		denoise *= denoiseClampScale
	}

	recoveryComp := 0.0
	if speechLossDB < 0 {
		recoveryComp = clamp01(-speechLossDB / recoveryFullLossDB)
	}

	deverbAmount := clamp(reverb-dsp.ProximityDeverbContribution(prox), 0, 1)
	denoiseAmount := clamp01(denoise)
	if snap.BypassRestoration {
		deverbAmount = 0
		denoiseAmount = 0
	}

	return blockControls{
		snap: snap,

		denoise:   denoise,
		reverb:    reverb,
		proximity: prox,
		clarity:   clarity,
		deEsser:   deEsser,
		leveler:   rawLeveler,
		breath:    rawBreath,
		rumble:    rumble,
		hiss:      hiss,

		erAmount:     clamp01(reverb * 0.5),
		expandAmount: clamp01(reverb * 0.6),
		deverbAmount: deverbAmount,
		recoveryComp: recoveryComp,
		outputGain:   dbToGain(snap.OutputGainDB),

		noiseCfg: dsp.NoiseLearnConfig{
			Enabled: snap.NoiseLearnAmount > minStageAmount,
			Amount:  snap.NoiseLearnAmount,
			Learn:   snap.LearnNoise,
			Clear:   snap.ClearNoise,
		},
		denoiseCfg: dsp.DenoiseConfig{
			Amount:      denoiseAmount,
			Sensitivity: clamp(denoiseSensBase+denoiseSensSlope*denoise+snap.NoiseMode.Bias(), denoiseSensBase, 1),
			Tone:        denoiseToneNeutral,
			UseML:       snap.UseML,
		},
	}
}

// ProcessBlock runs one block in place. Both slices must share a length of
// at most MaxBlock frames. A panic inside the chain is recovered, the input
// is restored untouched, and the error reports the fault.
func (e *Engine) ProcessBlock(left, right []float64) (err error) {
	if len(left) != len(right) {
		return fmt.Errorf("engine: channel length mismatch: %d vs %d", len(left), len(right))
	}
	n := len(left)
	if n == 0 {
		return nil
	}
	if n > e.cfg.MaxBlock {
		return fmt.Errorf("engine: block of %d frames exceeds max %d", n, e.cfg.MaxBlock)
	}

	copy(e.saveL[:n], left)
	copy(e.saveR[:n], right)
	defer func() {
		if rec := recover(); rec != nil {
			copy(left, e.saveL[:n])
			copy(right, e.saveR[:n])
			zeroSlice(e.deltaNoiseLearnL[:n])
			zeroSlice(e.deltaNoiseLearnR[:n])
			zeroSlice(e.deltaDenoiseL[:n])
			zeroSlice(e.deltaDenoiseR[:n])
			zeroSlice(e.deltaDeverbL[:n])
			zeroSlice(e.deltaDeverbR[:n])
			zeroSlice(e.deltaDeEssL[:n])
			zeroSlice(e.deltaDeEssR[:n])
			e.bypassed = true
			err = fmt.Errorf("engine: chain fault, block bypassed: %v", rec)
		}
	}()
	e.bypassed = false
	e.lastBlock = n

	bc := e.beginBlock(n)
	snap := bc.snap
	sr := e.cfg.SampleRate

	for i := 0; i < n; i++ {
		l, r := left[i], right[i]

		e.inPeakDBL = peakHoldDB(e.inPeakDBL, l)
		e.inPeakDBR = peakHoldDB(e.inPeakDBR, r)

		l, r = e.speechHPF.Process(l, r)
		sc := e.sidechain.Process(l, r)
		e.inputProfile.Process(l, r)
		e.speechPre.Process(l, r)
		e.preRMSEnv += e.rmsAlpha * (0.5*(l*l+r*r) - e.preRMSEnv)

		var remL, remR float64
		l, r, remL, remR = e.noiseLearn.Process(l, r, bc.noiseCfg, sc)
		e.deltaNoiseLearnL[i], e.deltaNoiseLearnR[i] = remL, remR

		envL := e.left.envelope.ProcessSample(l)
		envR := e.right.envelope.ProcessSample(r)

		l, r = e.tone.Process(l, r, bc.rumble, bc.hiss, sc)

		if !snap.BypassRestoration && bc.erAmount > minStageAmount {
			l = e.left.earlyRef.Process(l, bc.erAmount, sc)
			r = e.right.earlyRef.Process(r, bc.erAmount, sc)
		}
		if bc.expandAmount > minStageAmount {
			l, r = e.expander.Process(l, r, bc.expandAmount, sc, envL, envR)
		}
		if !snap.BypassRestoration {
			l, r = e.tilt.Process(l, r, sc.Confidence, bc.proximity, bc.deEsser)
		}

		l, r, remL, remR = e.denoiser.ProcessSample(l, r, bc.denoiseCfg)
		e.deltaDenoiseL[i], e.deltaDenoiseR[i] = remL, remR

		l = e.left.plosive.Process(l)
		r = e.right.plosive.Process(r)
		l = e.left.breath.Process(l, bc.breath, sc, envL)
		r = e.right.breath.Process(r, bc.breath, sc, envR)

		if !snap.BypassRestoration {
			l = e.left.safety.Process(l)
			r = e.right.safety.Process(r)
		}

		l, remL = e.left.deverb.ProcessSample(l, bc.deverbAmount, sr, sc.Confidence, bc.clarity, bc.proximity)
		r, remR = e.right.deverb.ProcessSample(r, bc.deverbAmount, sr, sc.Confidence, bc.clarity, bc.proximity)
		e.deltaDeverbL[i], e.deltaDeverbR[i] = remL, remR
		e.speechPost.Process(l, r)

		if !snap.BypassShaping {
			l = e.left.proximity.Process(l, bc.proximity, sc.Confidence, bc.clarity)
			r = e.right.proximity.Process(r, bc.proximity, sc.Confidence, bc.clarity)
		}

		drive := 0.0
		if !snap.BypassShaping {
			drive = e.clarityDet.Analyze(l, r)
		}
		l = e.left.clarity.Process(l, bc.clarity, sc.Confidence, drive)
		r = e.right.clarity.Process(r, bc.clarity, sc.Confidence, drive)

		preL, preR := l, r
		if !snap.BypassDynamics {
			g := e.deEssDet.ComputeGain(l, r, bc.deEsser, envL, envR)
			l = e.left.deEss.Apply(l, g)
			r = e.right.deEss.Apply(r, g)
		}
		e.deltaDeEssL[i], e.deltaDeEssR[i] = preL-l, preR-r

		if !snap.BypassDynamics {
			amount := bc.leveler
			if bc.deEsser > minStageAmount {
				inPow := preL*preL + preR*preR
				outPow := l*l + r*r
				if inPow > envFloor*envFloor {
					if redDB := 10 * math.Log10((outPow+dbEps)/(inPow+dbEps)); redDB < levelerDeEssGuardDB {
						amount *= levelerDeEssGuardScale
					}
				}
			}
			if e.limiter.GainReductionDB() > levelerLimiterGuardDB {
				amount *= levelerLimiterGuardScale
			}
			g := e.leveler.ComputeGain(envL, envR, amount, sc.Confidence, bc.proximity, bc.clarity)
			deltaDB := 20 * math.Log10(math.Max(g, 1e-6)/math.Max(e.prevLevelerGain, 1e-6))
			if a := math.Abs(deltaDB); a > bc.maxLevelerDeltaDB {
				bc.maxLevelerDeltaDB = a
			}
			e.prevLevelerGain = g
			if e.leveler.PumpDetected() {
				bc.pumpSeen = true
			}
			l *= g
			r *= g
		}

		l, r = e.guardrails.Process(l, r, true, sc.Confidence)

		if !snap.BypassRestoration {
			l, r = e.recovery.Process(l, r, sc.Confidence, bc.recoveryComp)
			l, r = e.cleanup.Process(l, r, sc.Confidence,
				math.Max(envL.RMS, envR.RMS), math.Max(envL.NoiseFloor, envR.NoiseFloor),
				bc.denoise, true)
		}

		if !snap.BypassDynamics {
			g := e.limiter.ComputeGain(l, r)
			l *= g
			r *= g
		}

		l *= bc.outputGain
		r *= bc.outputGain
		e.postRMSEnv += e.rmsAlpha * (0.5*(l*l+r*r) - e.postRMSEnv)

		l *= e.loudCompGain
		r *= e.loudCompGain
		e.scratchL[i], e.scratchR[i] = l, r

		if snap.OutputPreset != OutputNone {
			l *= e.presetGainLin
			r *= e.presetGainLin
		}

		if !isFinite(l) || !isFinite(r) {
			l, r = 0, 0
			e.preRMSEnv = 0
			e.postRMSEnv = 0
			e.loudCompGain = 1
		}
		if peak := math.Max(math.Abs(l), math.Abs(r)); peak > hardClampPeak {
			s := hardClampPeak / peak
			l *= s
			r *= s
		}

		e.outPeakDBL = peakHoldDB(e.outPeakDBL, l)
		e.outPeakDBR = peakHoldDB(e.outPeakDBR, r)
		e.outputProfile.Process(l, r)

		bc.outSumSq += 0.5 * (l*l + r*r)
		if a := math.Abs(l); a > bc.outPeak {
			bc.outPeak = a
		}
		if a := math.Abs(r); a > bc.outPeak {
			bc.outPeak = a
		}

		left[i], right[i] = l, r
	}

	e.finishBlock(&bc, n)
	return nil
}

func (e *Engine) finishBlock(bc *blockControls, n int) {
	e.loudness.AddFrames(e.scratchL[:n], e.scratchR[:n])

	frames := float64(n)
	sr := e.cfg.SampleRate

	if bc.snap.OutputPreset != OutputNone {
		targetDB := 0.0
		if lufs, ok := e.loudness.LoudnessGlobal(); ok {
			if want, have := bc.snap.OutputPreset.LUFSTarget(); have {
				targetDB = clamp(want-lufs, -outputGainRangeDB, outputGainRangeDB)
			}
		}
		if ceiling, have := bc.snap.OutputPreset.TruePeakCeiling(); have {
			if tp := e.loudness.TruePeakDB(); !math.IsInf(tp, -1) {
				targetDB = math.Min(targetDB, ceiling-tp)
			}
		}
		alpha := 1 - math.Exp(-frames/(presetGainTauSec*sr))
		e.presetGainDB += (targetDB - e.presetGainDB) * alpha
		e.presetGainLin = dbToGain(e.presetGainDB)
	}

	profile := e.inputProfile.Profile()
	e.calibrator.Update(profile, n)

	rmsDB := levelDB(math.Sqrt(bc.outSumSq / frames))
	peakDB := levelDB(bc.outPeak)
	compGR := e.leveler.GainReductionDB()
	limGR := e.limiter.GainReductionDB()
	totalGR := compGR + limGR
	e.meters.SetOutputStats(rmsDB, peakDB, peakDB-rmsDB, totalGR)
	e.meters.SetGainReduction(totalGR, totalGR)
	e.lastOutRMSDB = rmsDB

	alpha := 1 - math.Exp(-frames/(loudnessCompTauSec*sr))
	errorDB := 0.0
	if e.preRMSEnv > envFloor && e.postRMSEnv > envFloor {
		target := clamp(math.Sqrt(e.preRMSEnv/e.postRMSEnv), loudnessCompMin, loudnessCompMax)
		e.loudCompGain += (target - e.loudCompGain) * alpha
		errorDB = 10 * math.Log10(e.preRMSEnv/e.postRMSEnv)
	} else {
		e.loudCompGain += (1 - e.loudCompGain) * alpha
	}
	compDB := gainToDB(e.loudCompGain)
	e.meters.SetLoudnessComp(compDB, errorDB, math.Abs(compDB) > loudnessCompOnDB)

	e.leveler.UpdateFromProfile(profile.CrestFactorDB, profile.RMSVariance)

	decay := peakDecayDBPerSec * frames / sr
	e.inPeakDBL = decayPeakDB(e.inPeakDBL, decay)
	e.inPeakDBR = decayPeakDB(e.inPeakDBR, decay)
	e.outPeakDBL = decayPeakDB(e.outPeakDBL, decay)
	e.outPeakDBR = decayPeakDB(e.outPeakDBR, decay)
	e.meters.SetInputPeaks(e.inPeakDBL, e.inPeakDBR)
	e.meters.SetOutputPeaks(e.outPeakDBL, e.outPeakDBR)

	sc := e.sidechain.Output()
	e.meters.SetSpeechConfidence(sc.Confidence)
	e.meters.SetNoiseFloorDB(sc.NoiseFloorDB)
	e.meters.SetDeEsserGRDB(e.deEssDet.GainReductionDB())
	e.meters.SetLimiterGRDB(limGR)
	e.meters.SetEarlyReflection(0.5 * (e.left.earlyRef.Suppression() + e.right.earlyRef.Suppression()))
	lowCut, highCut := e.guardrails.LowMidCutDB(), e.guardrails.HighCutDB()
	e.meters.SetGuardrailCuts(lowCut, highCut)
	e.meters.SetExpanderAttenDB(e.expander.GainReductionDB())
	e.meters.SetToneState(e.tone.RumbleHz(), e.tone.HissCutDB())
	e.meters.SetProximityBoostDB(0.5 * (e.left.proximity.BoostDB() + e.right.proximity.BoostDB()))
	e.meters.SetClarityCutDB(0.5 * (e.left.clarity.CutDB() + e.right.clarity.CutDB()))
	e.meters.SetRecoveryAirDB(e.recovery.AirDB())
	e.meters.SetCleanupDB(e.cleanup.ReductionDB())
	e.meters.SetNoiseLearnState(e.noiseLearn.Quality(), e.noiseLearn.LearnProgress(), e.noiseLearn.HasProfile())
	e.meters.SetMLAvailable(e.denoiser.MLEngaged())
	e.meters.SetLevelerDeltaDB(bc.maxLevelerDeltaDB)

	deltaDB := 20 * math.Log10(math.Max(e.loudCompGain, 1e-6)/math.Max(e.prevCompGain, 1e-6))
	movement := math.Abs(compGR-e.prevLevelerGRDB) + math.Abs(limGR-e.prevLimiterGRDB)
	trigger := math.Abs(deltaDB) > pumpLoudnessDeltaDB || limGR > pumpLimiterGRDB
	if movement > pumpMovementDB && math.Abs(deltaDB) > pumpMovementMinDB {
		trigger = true
	}
	if e.pumpCooldown == 0 {
		switch {
		case bc.pumpSeen:
			e.meters.RecordPumpEvent(bc.maxLevelerDeltaDB)
			e.pumpCooldown = pumpCooldownBlocks
		case trigger:
			e.meters.RecordPumpEvent(math.Abs(deltaDB))
			e.pumpCooldown = pumpCooldownBlocks
		}
	} else {
		e.pumpCooldown--
	}
	e.prevCompGain = e.loudCompGain
	e.prevLevelerGRDB = compGR
	e.prevLimiterGRDB = limGR

	if e.pendingModeCheck && e.xfadeLeft == 0 {
		if math.Abs(rmsDB-e.meters.PreSwitchRMSDB()) > audibleShiftDB {
			e.meters.SetAudibleChange(true)
		}
		e.pendingModeCheck = false
	}
}

func peakHoldDB(cur, sample float64) float64 {
	db := 20 * math.Log10(math.Max(math.Abs(sample), 1e-6))
	if db > cur {
		return db
	}
	return cur
}

func decayPeakDB(cur, amount float64) float64 {
	cur -= amount
	if cur < peakFloorDB {
		return peakFloorDB
	}
	return cur
}

func levelDB(v float64) float64 {
	db := 20 * math.Log10(math.Max(v, envFloor))
	if db < peakFloorDB {
		return peakFloorDB
	}
	return db
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func zeroSlice(s []float64) {
	for i := range s {
		s[i] = 0
	}
}
