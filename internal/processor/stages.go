package processor

import "github.com/voicemend/voicemend/internal/engine"

// MeterSnapshot is a value copy of the engine's meter arena, taken once
// after the final block so the report and tips read a consistent state.
type MeterSnapshot struct {
	SpeechConfidence float64
	NoiseFloorDB     float64
	DeEsserGRDB      float64
	LimiterGRDB      float64
	EarlyReflection  float64
	GuardrailLowDB   float64
	GuardrailHighDB  float64
	ExpanderAttenDB  float64
	RumbleHz         float64
	HissCutDB        float64
	ProximityBoostDB float64
	ClarityCutDB     float64
	RecoveryAirDB    float64
	CleanupDB        float64

	NoiseLearnQuality  float64
	NoiseLearnProgress float64
	NoiseLearnHeld     bool

	// Resolved per-stage amounts. In macro mode these are the derived
	// values, so they reflect what actually drove the chain.
	ResolvedNoise     float64
	ResolvedDeverb    float64
	ResolvedClarity   float64
	ResolvedDeEsser   float64
	ResolvedProximity float64
	ResolvedLeveler   float64
	ResolvedBreath    float64

	LoudnessCompDB     float64
	LoudnessErrorDB    float64
	LoudnessCompActive bool

	SpeechProtLossDB float64
	SpeechProtScale  float64
	SpeechProtActive bool

	EnergyBudgetScale  float64
	EnergyBudgetActive bool

	OutputRMSDB   float64
	OutputPeakDB  float64
	OutputCrestDB float64
	TotalGRDB     float64

	ModeTransitions int64
	PumpEvents      int64
	PumpSeverityDB  float64
	LevelerDeltaDB  float64
	MLAvailable     bool
}

// captureMeters reads every reporting meter once.
func captureMeters(m *engine.Meters) MeterSnapshot {
	var s MeterSnapshot

	s.SpeechConfidence = m.SpeechConfidence()
	s.NoiseFloorDB = m.NoiseFloorDB()
	s.DeEsserGRDB = m.DeEsserGRDB()
	s.LimiterGRDB = m.LimiterGRDB()
	s.EarlyReflection = m.EarlyReflection()
	s.GuardrailLowDB, s.GuardrailHighDB = m.GuardrailCuts()
	s.ExpanderAttenDB = m.ExpanderAttenDB()
	s.RumbleHz, s.HissCutDB = m.ToneState()
	s.ProximityBoostDB = m.ProximityBoostDB()
	s.ClarityCutDB = m.ClarityCutDB()
	s.RecoveryAirDB = m.RecoveryAirDB()
	s.CleanupDB = m.CleanupDB()

	s.NoiseLearnQuality, s.NoiseLearnProgress, s.NoiseLearnHeld = m.NoiseLearnState()

	s.ResolvedNoise, s.ResolvedDeverb, s.ResolvedClarity, s.ResolvedDeEsser,
		s.ResolvedProximity, s.ResolvedLeveler, s.ResolvedBreath = m.ResolvedParams()

	s.LoudnessCompDB, s.LoudnessErrorDB, s.LoudnessCompActive = m.LoudnessComp()
	s.SpeechProtLossDB, s.SpeechProtScale, s.SpeechProtActive = m.SpeechProtection()
	s.EnergyBudgetScale, s.EnergyBudgetActive = m.EnergyBudget()
	s.OutputRMSDB, s.OutputPeakDB, s.OutputCrestDB, s.TotalGRDB = m.OutputStats()

	s.ModeTransitions = m.ModeTransitions()
	s.PumpEvents = m.PumpEvents()
	s.PumpSeverityDB = m.PumpSeverityDB()
	s.LevelerDeltaDB = m.LevelerDeltaDB()
	s.MLAvailable = m.MLAvailable()

	return s
}

// StageActivity is one line of the report's stage summary: what one stage
// was asked to do and the headline measurement of what it did.
type StageActivity struct {
	// Name as printed in the report.
	Name string
	// Amount is the resolved control value, 0..1. Always-on stages with no
	// control report 1.
	Amount float64
	// Active reports whether the stage did audible work on this file.
	Active bool
	// EffectDB is the stage's headline measurement. Its meaning is
	// stage-specific: gain reduction, boost, cut depth.
	EffectDB float64
	// Note is a short qualifier, empty when there is nothing to add.
	Note string
}

// activeAmount is the control level below which a stage is reported as
// idle.
const activeAmount = 0.01

// BuildStageActivity derives the per-stage summary from the resolved
// settings and the final meter state. The resolved amounts come from the
// meter arena rather than the settings so macro-derived values are shown
// as the chain actually ran them.
func BuildStageActivity(settings EngineSettings, m MeterSnapshot) []StageActivity {
	stages := make([]StageActivity, 0, 12)

	if settings.LearnNoiseSecs > 0 || m.NoiseLearnHeld {
		note := "profile held"
		if !m.NoiseLearnHeld {
			note = "no profile captured"
		}
		stages = append(stages, StageActivity{
			Name:     "Noise profile",
			Amount:   settings.NoiseLearnAmount,
			Active:   m.NoiseLearnHeld,
			EffectDB: 0,
			Note:     note,
		})
	}

	denoiseNote := settings.NoiseMode.String()
	if settings.UseML && m.MLAvailable {
		denoiseNote += ", model assisted"
	}
	stages = append(stages, StageActivity{
		Name:     "Denoise",
		Amount:   m.ResolvedNoise,
		Active:   m.ResolvedNoise >= activeAmount,
		EffectDB: m.CleanupDB,
		Note:     denoiseNote,
	})

	stages = append(stages, StageActivity{
		Name:     "Tone hygiene",
		Amount:   maxFloat(settings.Rumble, settings.Hiss),
		Active:   settings.Rumble >= activeAmount || settings.Hiss >= activeAmount,
		EffectDB: m.HissCutDB,
		Note:     "",
	})

	stages = append(stages, StageActivity{
		Name:     "Dereverb",
		Amount:   m.ResolvedDeverb,
		Active:   m.ResolvedDeverb >= activeAmount,
		EffectDB: m.EarlyReflection,
	})

	stages = append(stages, StageActivity{
		Name:     "Proximity",
		Amount:   m.ResolvedProximity,
		Active:   m.ResolvedProximity >= activeAmount,
		EffectDB: m.ProximityBoostDB,
	})

	stages = append(stages, StageActivity{
		Name:     "Clarity",
		Amount:   m.ResolvedClarity,
		Active:   m.ResolvedClarity >= activeAmount,
		EffectDB: m.ClarityCutDB,
	})

	stages = append(stages, StageActivity{
		Name:     "De-esser",
		Amount:   m.ResolvedDeEsser,
		Active:   m.ResolvedDeEsser >= activeAmount,
		EffectDB: m.DeEsserGRDB,
	})

	stages = append(stages, StageActivity{
		Name:     "Expander",
		Amount:   1,
		Active:   true,
		EffectDB: m.ExpanderAttenDB,
		Note:     "always on",
	})

	stages = append(stages, StageActivity{
		Name:     "Breath control",
		Amount:   m.ResolvedBreath,
		Active:   m.ResolvedBreath >= activeAmount,
		EffectDB: 0,
	})

	stages = append(stages, StageActivity{
		Name:     "Leveler",
		Amount:   m.ResolvedLeveler,
		Active:   m.ResolvedLeveler >= activeAmount,
		EffectDB: m.LevelerDeltaDB,
	})

	guardrailDepth := minFloat(m.GuardrailLowDB, m.GuardrailHighDB)
	stages = append(stages, StageActivity{
		Name:     "Guardrails",
		Amount:   1,
		Active:   guardrailDepth < -0.1,
		EffectDB: guardrailDepth,
		Note:     "always on",
	})

	stages = append(stages, StageActivity{
		Name:     "Limiter",
		Amount:   1,
		Active:   m.LimiterGRDB < -0.1,
		EffectDB: m.LimiterGRDB,
		Note:     "always on",
	})

	if settings.OutputPreset != engine.OutputNone {
		note := settings.OutputPreset.String()
		if m.LoudnessCompActive {
			note += ", compensation engaged"
		}
		stages = append(stages, StageActivity{
			Name:     "Loudness target",
			Amount:   1,
			Active:   true,
			EffectDB: m.LoudnessCompDB,
			Note:     note,
		})
	}

	return stages
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
