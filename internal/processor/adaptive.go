// Package processor drives the two-pass restoration of audio files.
package processor

import (
	"math"

	"github.com/voicemend/voicemend/internal/dsp"
	"github.com/voicemend/voicemend/internal/engine"
)

// Adaptive tuning constants.
// These thresholds control how the resolved engine settings respond to the
// Pass 1 measurements. The tier boundaries are calibrated against the same
// reference envelope the engine's clean-audio detection uses.
const (
	// Speech-to-noise ratio tiers (dB) for denoise intensity
	snrPristine = 30.0 // Treated studio, barely any audible floor
	snrClean    = 20.0 // Quiet domestic room
	snrTypical  = 12.0 // Ordinary home recording
	snrNoisy    = 6.0  // Constant audible noise under speech

	// Denoise amounts per SNR tier
	noiseReductionPristine = 0.15
	noiseReductionClean    = 0.35
	noiseReductionTypical  = 0.50
	noiseReductionNoisy    = 0.65
	noiseReductionSevere   = 0.80

	// Noise floor (dBFS) above which the aggressive denoise curve engages
	// when the ratio tier already calls for heavy reduction
	aggressiveFloorDB = -45.0

	// Early/late energy ratio tiers for reverb reduction
	earlyLateDry     = 0.50 // Direct sound dominates, treated room
	earlyLateNormal  = 0.30 // Mild untreated-room character
	earlyLateLive    = 0.15 // Clearly audible tail
	earlyLateDistant = 0.05 // Diffuse field, mic far from the mouth

	// Reverb reduction amounts per tier
	reverbReductionOff     = 0.0
	reverbReductionLight   = 0.15
	reverbReductionMedium  = 0.35
	reverbReductionStrong  = 0.55
	reverbReductionExtreme = 0.70

	// Proximity amounts per mic-distance tier
	proximityClose   = 0.05 // Close mic already has body
	proximityNormal  = 0.15
	proximityDistant = 0.30
	proximityFar     = 0.40 // DistantMic classification

	// Presence ratio tiers (2-5 kHz share of total energy) for the mud cut
	presenceOpen    = 0.008
	presenceNormal  = 0.004
	presenceCovered = 0.0015

	// Mud cut amounts per presence tier
	clarityBright = 0.05
	clarityNormal = 0.15
	clarityMuddy  = 0.25
	clarityDull   = 0.35

	// Air ratio tiers (10 kHz+ share of total energy) for the de-esser
	airHarsh    = 0.008
	airSibilant = 0.005
	airPresent  = 0.002

	// De-esser amounts per air tier
	deEsserStrong = 0.45
	deEsserMedium = 0.30
	deEsserLight  = 0.15
	deEsserOff    = 0.0

	// Short-term RMS variance tiers (linear) for the leveler
	varianceConsistent = 0.0015 // Professional delivery consistency
	varianceModerate   = 0.005
	varianceWide       = 0.015

	// Leveler amounts per variance tier
	levelerGentle = 0.30
	levelerMedium = 0.50
	levelerFirm   = 0.65
	levelerHeavy  = 0.80
	levelerMax    = 0.85

	// Crest factor (dB) above which the leveler gets a transient bump
	crestSpiky = 30.0

	// Breath control amounts by environment
	breathDefault = 0.20
	breathClean   = 0.30 // Breaths stand out against a silent floor
	breathNoisy   = 0.10 // Floor masks breaths, gating would pump

	// Hygiene tone defaults when no capture recommendation exists
	rumbleDefault = 0.25
	rumbleNoisy   = 0.45
	hissDefault   = 0.10
	hissModerate  = 0.20
	hissStrong    = 0.40
	hissWhisper   = 0.15 // Whispered speech lives in the hiss band

	// Noise floor tiers (dBFS) for the hygiene tone controls
	floorHissy    = -55.0
	floorElevated = -60.0
	rumbleFloorDB = -50.0

	// HF energy variance above which hiss is broadband rather than program
	hissVariance = 1e-6

	// Static make-up gain targeting
	adaptiveLevelTargetLUFS = -18.0 // Informal spoken-word delivery level
	adaptiveGainLimitDB     = 12.0  // Largest static trim or boost applied
	adaptiveSilenceLUFS     = -70.0 // Below this the loudness measurement is noise

	// Sanitization bounds
	settingsGainLimitDB = 24.0
)

// EngineSettings is the resolved parameter set written to the engine before
// Pass 2. Resolution layers it together from the adaptive tuners, the
// capture recommendation, scenario presets, macro positions, and explicit
// flag overrides, in that order.
type EngineSettings struct {
	// Scenario preset the values came from, for reporting. PresetManual
	// when the settings were derived or given explicitly.
	Preset engine.ScenarioPreset

	// Macro mode drives the whole chain from three dials. Any advanced
	// write below revokes it.
	MacroMode    bool
	Distance     float64
	MacroClarity float64
	Consistency  float64

	// Advanced stage amounts, all 0..1
	NoiseReduction  float64
	NoiseMode       engine.NoiseMode
	Rumble          float64
	Hiss            float64
	ReverbReduction float64
	Proximity       float64
	Clarity         float64
	DeEsser         float64
	Leveler         float64
	BreathControl   float64

	// Noise profile learning
	NoiseLearnAmount float64
	LearnNoiseSecs   float64

	// Output stage
	OutputGainDB float64
	OutputPreset engine.OutputPreset

	// Model-based denoising
	UseML     bool
	ModelPath string
}

// DefaultEngineSettings returns the neutral baseline: every stage at zero,
// no preset, macro off. The engine still applies hygiene filtering and
// safety limiting at this baseline.
func DefaultEngineSettings() EngineSettings {
	return EngineSettings{
		Preset:       engine.PresetManual,
		NoiseMode:    engine.NoiseNormal,
		OutputPreset: engine.OutputNone,
	}
}

// Overrides carries the advanced knob values supplied explicitly on the
// command line. Nil fields were not given. Any advanced field revokes macro
// mode, matching the engine's macro lock.
type Overrides struct {
	NoiseReduction  *float64
	NoiseAggressive *bool
	Rumble          *float64
	Hiss            *float64
	ReverbReduction *float64
	Proximity       *float64
	Clarity         *float64
	DeEsser         *float64
	Leveler         *float64
	BreathControl   *float64
	OutputGainDB    *float64
}

// anyAdvanced reports whether at least one macro-revoking override was
// supplied. The output gain is not macro-derived, so it does not count.
func (o Overrides) anyAdvanced() bool {
	return o.NoiseReduction != nil || o.NoiseAggressive != nil ||
		o.Rumble != nil || o.Hiss != nil || o.ReverbReduction != nil ||
		o.Proximity != nil || o.Clarity != nil || o.DeEsser != nil ||
		o.Leveler != nil || o.BreathControl != nil
}

// AdaptSettings tunes the engine settings from the Pass 1 analysis. This is
// the default resolution path when no preset, macro position, or capture
// recommendation was requested. Each tuner owns one stage; explicit flag
// overrides are applied afterwards and win.
func AdaptSettings(settings *EngineSettings, analysis *AudioAnalysis) {
	if analysis == nil {
		return
	}

	tuneNoiseReduction(settings, analysis)
	tuneNoiseTone(settings, analysis)
	tuneReverbReduction(settings, analysis)
	tuneProximity(settings, analysis)
	tuneClarity(settings, analysis)
	tuneDeEsser(settings, analysis)
	tuneLeveler(settings, analysis)
	tuneBreathControl(settings, analysis)
	tuneOutputGain(settings, analysis)

	sanitizeSettings(settings)
}

// tuneNoiseReduction adapts the denoiser amount from the speech-to-noise
// ratio, with the measured floor deciding between the normal and aggressive
// reduction curves.
//
// Strategy:
//   - High SNR: light reduction, preserve the natural floor
//   - Low SNR: heavy reduction, speech is fighting the noise
//   - Heavy reduction with a loud absolute floor: aggressive curve, the
//     artifact risk is worth it when the floor would otherwise dominate
func tuneNoiseReduction(settings *EngineSettings, analysis *AudioAnalysis) {
	switch {
	case analysis.SNR >= snrPristine:
		settings.NoiseReduction = noiseReductionPristine
	case analysis.SNR >= snrClean:
		settings.NoiseReduction = noiseReductionClean
	case analysis.SNR >= snrTypical:
		settings.NoiseReduction = noiseReductionTypical
	case analysis.SNR >= snrNoisy:
		settings.NoiseReduction = noiseReductionNoisy
	default:
		settings.NoiseReduction = noiseReductionSevere
	}

	settings.NoiseMode = engine.NoiseNormal
	if analysis.SNR < snrTypical && analysis.NoiseFloor > aggressiveFloorDB {
		settings.NoiseMode = engine.NoiseAggressive
	}
}

// tuneNoiseTone adapts the rumble and hiss controls.
//
// Strategy:
//   - Prefer the capture analyzer's recommendation when it gathered enough
//     voiced material, since it measured the band energies directly
//   - Otherwise fall back to floor-level tiers with a hygiene minimum
//   - Whispered speech caps the hiss cut so the voice itself survives
func tuneNoiseTone(settings *EngineSettings, analysis *AudioAnalysis) {
	if analysis.SuggestValid {
		settings.Rumble = analysis.Suggested.Rumble
		settings.Hiss = analysis.Suggested.Hiss
	} else {
		settings.Rumble = rumbleDefault
		if analysis.Conditions.NoisyEnvironment || analysis.NoiseFloor > rumbleFloorDB {
			settings.Rumble = rumbleNoisy
		}

		switch {
		case analysis.HFVariance > hissVariance && analysis.NoiseFloor > floorHissy:
			settings.Hiss = hissStrong
		case analysis.NoiseFloor > floorElevated:
			settings.Hiss = hissModerate
		default:
			settings.Hiss = hissDefault
		}
	}

	if analysis.Conditions.Whisper && settings.Hiss > hissWhisper {
		settings.Hiss = hissWhisper
	}
}

// tuneReverbReduction adapts the dereverb amount from the early/late energy
// ratio, the most direct room-character measurement available.
//
// Strategy:
//   - Direct-dominant capture: leave the stage off, artifacts cost more than
//     an inaudible tail
//   - Progressively diffuse capture: progressively stronger suppression
//   - DistantMic classification: full strength regardless of the raw ratio
func tuneReverbReduction(settings *EngineSettings, analysis *AudioAnalysis) {
	switch {
	case analysis.EarlyLateRatio >= earlyLateDry:
		settings.ReverbReduction = reverbReductionOff
	case analysis.EarlyLateRatio >= earlyLateNormal:
		settings.ReverbReduction = reverbReductionLight
	case analysis.EarlyLateRatio >= earlyLateLive:
		settings.ReverbReduction = reverbReductionMedium
	case analysis.EarlyLateRatio >= earlyLateDistant:
		settings.ReverbReduction = reverbReductionStrong
	default:
		settings.ReverbReduction = reverbReductionExtreme
	}

	if analysis.Conditions.DistantMic && settings.ReverbReduction < reverbReductionExtreme {
		settings.ReverbReduction = reverbReductionExtreme
	}
}

// tuneProximity adapts the body restoration from the same mic-distance
// evidence the dereverb uses. A distant mic loses proximity effect first,
// so the two stages scale together.
func tuneProximity(settings *EngineSettings, analysis *AudioAnalysis) {
	switch {
	case analysis.EarlyLateRatio >= earlyLateDry:
		settings.Proximity = proximityClose
	case analysis.EarlyLateRatio >= earlyLateNormal:
		settings.Proximity = proximityNormal
	default:
		settings.Proximity = proximityDistant
	}

	if analysis.Conditions.DistantMic {
		settings.Proximity = proximityFar
	}
}

// tuneClarity adapts the mud cut from the presence share of total energy.
//
// Strategy:
//   - Low presence share means low-mid buildup is covering the 2-5 kHz
//     intelligibility band: cut more mud
//   - Open, bright capture needs only the hygiene minimum
func tuneClarity(settings *EngineSettings, analysis *AudioAnalysis) {
	switch {
	case analysis.PresenceRatio >= presenceOpen:
		settings.Clarity = clarityBright
	case analysis.PresenceRatio >= presenceNormal:
		settings.Clarity = clarityNormal
	case analysis.PresenceRatio >= presenceCovered:
		settings.Clarity = clarityMuddy
	default:
		settings.Clarity = clarityDull
	}
}

// tuneDeEsser adapts sibilance control from the air-band share of total
// energy. Whispered speech halves the result since its entire character
// lives where the de-esser bites.
func tuneDeEsser(settings *EngineSettings, analysis *AudioAnalysis) {
	switch {
	case analysis.AirRatio >= airHarsh:
		settings.DeEsser = deEsserStrong
	case analysis.AirRatio >= airSibilant:
		settings.DeEsser = deEsserMedium
	case analysis.AirRatio >= airPresent:
		settings.DeEsser = deEsserLight
	default:
		settings.DeEsser = deEsserOff
	}

	if analysis.Conditions.Whisper {
		settings.DeEsser *= 0.5
	}
}

// tuneLeveler adapts gain riding from delivery consistency.
//
// Strategy:
// - Short-term RMS variance tiers decide the base amount
// - A very spiky crest factor adds a transient-taming bump on top
func tuneLeveler(settings *EngineSettings, analysis *AudioAnalysis) {
	switch {
	case analysis.RMSVariance <= varianceConsistent:
		settings.Leveler = levelerGentle
	case analysis.RMSVariance <= varianceModerate:
		settings.Leveler = levelerMedium
	case analysis.RMSVariance <= varianceWide:
		settings.Leveler = levelerFirm
	default:
		settings.Leveler = levelerHeavy
	}

	if analysis.CrestFactor > crestSpiky {
		settings.Leveler = math.Min(settings.Leveler+0.10, levelerMax)
	}
}

// tuneBreathControl adapts breath attenuation to the environment. Against a
// silent floor breaths are the loudest remaining artifact; against a noisy
// floor they are masked and gating them would pump the noise instead.
func tuneBreathControl(settings *EngineSettings, analysis *AudioAnalysis) {
	switch {
	case analysis.Conditions.NoisyEnvironment:
		settings.BreathControl = breathNoisy
	case analysis.Conditions.CleanAudio:
		settings.BreathControl = breathClean
	default:
		settings.BreathControl = breathDefault
	}
}

// tuneOutputGain sets a static make-up gain toward the informal delivery
// level. Skipped entirely when an output preset is active, because the
// loudness targeting stage owns the level there and a static gain would
// fight it.
func tuneOutputGain(settings *EngineSettings, analysis *AudioAnalysis) {
	if settings.OutputPreset != engine.OutputNone {
		settings.OutputGainDB = 0
		return
	}
	if analysis.InputLUFS <= adaptiveSilenceLUFS {
		return
	}
	settings.OutputGainDB = clamp(adaptiveLevelTargetLUFS-analysis.InputLUFS,
		-adaptiveGainLimitDB, adaptiveGainLimitDB)
}

// ApplySuggested copies the capture analyzer's recommendation into the
// settings. The recommendation already carries the safety clamps from its
// ramp derivation, so the values transfer directly.
func ApplySuggested(settings *EngineSettings, suggested dsp.SuggestedSettings) {
	settings.NoiseReduction = suggested.NoiseReduction
	settings.ReverbReduction = suggested.ReverbReduction
	settings.Clarity = suggested.Clarity
	settings.Proximity = suggested.Proximity
	settings.DeEsser = suggested.DeEsser
	settings.Leveler = suggested.Leveler
	settings.Rumble = suggested.Rumble
	settings.Hiss = suggested.Hiss
	if settings.OutputPreset == engine.OutputNone {
		settings.OutputGainDB = suggested.OutputGainDB
	}
}

// ApplyPresetValues writes a scenario preset's advanced parameter set into
// the settings. A preset acts as a block of advanced writes, so it revokes
// macro mode.
func ApplyPresetValues(settings *EngineSettings, values engine.PresetValues) {
	settings.MacroMode = false
	settings.NoiseReduction = values.NoiseReduction
	settings.NoiseMode = values.NoiseMode
	settings.ReverbReduction = values.ReverbReduction
	settings.Proximity = values.Proximity
	settings.Clarity = values.Clarity
	settings.DeEsser = values.DeEsser
	settings.Leveler = values.Leveler
	settings.BreathControl = values.BreathControl
}

// ApplyOverrides writes the explicitly supplied knob values into the
// settings. Any advanced override revokes macro mode, the same lock the
// engine's own setters enforce.
func ApplyOverrides(settings *EngineSettings, overrides Overrides) {
	if overrides.anyAdvanced() {
		settings.MacroMode = false
	}

	if overrides.NoiseReduction != nil {
		settings.NoiseReduction = *overrides.NoiseReduction
	}
	if overrides.NoiseAggressive != nil {
		settings.NoiseMode = engine.NoiseNormal
		if *overrides.NoiseAggressive {
			settings.NoiseMode = engine.NoiseAggressive
		}
	}
	if overrides.Rumble != nil {
		settings.Rumble = *overrides.Rumble
	}
	if overrides.Hiss != nil {
		settings.Hiss = *overrides.Hiss
	}
	if overrides.ReverbReduction != nil {
		settings.ReverbReduction = *overrides.ReverbReduction
	}
	if overrides.Proximity != nil {
		settings.Proximity = *overrides.Proximity
	}
	if overrides.Clarity != nil {
		settings.Clarity = *overrides.Clarity
	}
	if overrides.DeEsser != nil {
		settings.DeEsser = *overrides.DeEsser
	}
	if overrides.Leveler != nil {
		settings.Leveler = *overrides.Leveler
	}
	if overrides.BreathControl != nil {
		settings.BreathControl = *overrides.BreathControl
	}
	if overrides.OutputGainDB != nil {
		settings.OutputGainDB = *overrides.OutputGainDB
	}

	sanitizeSettings(settings)
}

// sanitizeSettings applies final safety bounds so a bad measurement or an
// out-of-range flag value can never push the engine outside its parameter
// domain.
func sanitizeSettings(settings *EngineSettings) {
	settings.Distance = clamp(sanitizeFloat(settings.Distance, 0), 0, 1)
	settings.MacroClarity = clamp(sanitizeFloat(settings.MacroClarity, 0), 0, 1)
	settings.Consistency = clamp(sanitizeFloat(settings.Consistency, 0), 0, 1)

	settings.NoiseReduction = clamp(sanitizeFloat(settings.NoiseReduction, 0), 0, 1)
	settings.Rumble = clamp(sanitizeFloat(settings.Rumble, 0), 0, 1)
	settings.Hiss = clamp(sanitizeFloat(settings.Hiss, 0), 0, 1)
	settings.ReverbReduction = clamp(sanitizeFloat(settings.ReverbReduction, 0), 0, 1)
	settings.Proximity = clamp(sanitizeFloat(settings.Proximity, 0), 0, 1)
	settings.Clarity = clamp(sanitizeFloat(settings.Clarity, 0), 0, 1)
	settings.DeEsser = clamp(sanitizeFloat(settings.DeEsser, 0), 0, 1)
	settings.Leveler = clamp(sanitizeFloat(settings.Leveler, 0), 0, 1)
	settings.BreathControl = clamp(sanitizeFloat(settings.BreathControl, 0), 0, 1)
	settings.NoiseLearnAmount = clamp(sanitizeFloat(settings.NoiseLearnAmount, 0), 0, 1)

	settings.OutputGainDB = clamp(sanitizeFloat(settings.OutputGainDB, 0),
		-settingsGainLimitDB, settingsGainLimitDB)

	if settings.LearnNoiseSecs < 0 {
		settings.LearnNoiseSecs = 0
	}
}

// sanitizeFloat replaces NaN and infinities with a safe default.
func sanitizeFloat(val, defaultVal float64) float64 {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return defaultVal
	}
	return val
}

// clamp constrains val to the inclusive range [min, max].
func clamp(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
