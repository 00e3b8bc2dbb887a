package processor

import (
	"math"
	"testing"

	"github.com/voicemend/voicemend/internal/dsp"
	"github.com/voicemend/voicemend/internal/engine"
)

// makeAnalysis returns a measurement set for an unremarkable home recording.
// Individual tests mutate the fields they tier on.
func makeAnalysis() *AudioAnalysis {
	return &AudioAnalysis{
		InputLUFS:      -25.0,
		InputTruePeak:  -6.0,
		RMSLevel:       -28.0,
		PeakLevel:      -6.0,
		CrestFactor:    22.0,
		RMSVariance:    0.003,
		NoiseFloor:     -65.0,
		SNR:            25.0,
		EarlyLateRatio: 0.45,
		DecaySlope:     0.0,
		PresenceRatio:  0.005,
		AirRatio:       0.003,
		HFVariance:     1e-7,
		DurationSecs:   30.0,
		SampleRate:     44100,
		Channels:       1,
		BitDepth:       16,
	}
}

func TestTuneNoiseReduction(t *testing.T) {
	tests := []struct {
		name       string
		snr        float64
		noiseFloor float64
		wantAmount float64
		wantMode   engine.NoiseMode
	}{
		{
			name:       "pristine studio",
			snr:        35.0, // above snrPristine (30)
			noiseFloor: -80.0,
			wantAmount: 0.15, // noiseReductionPristine
			wantMode:   engine.NoiseNormal,
		},
		{
			name:       "quiet room",
			snr:        25.0, // between snrClean (20) and snrPristine (30)
			noiseFloor: -70.0,
			wantAmount: 0.35, // noiseReductionClean
			wantMode:   engine.NoiseNormal,
		},
		{
			name:       "typical home recording",
			snr:        15.0, // between snrTypical (12) and snrClean (20)
			noiseFloor: -60.0,
			wantAmount: 0.50, // noiseReductionTypical
			wantMode:   engine.NoiseNormal,
		},
		{
			name:       "noisy but quiet floor stays normal",
			snr:        8.0,   // between snrNoisy (6) and snrTypical (12)
			noiseFloor: -60.0, // below aggressiveFloorDB (-45)
			wantAmount: 0.65,  // noiseReductionNoisy
			wantMode:   engine.NoiseNormal,
		},
		{
			name:       "noisy with loud floor goes aggressive",
			snr:        8.0,
			noiseFloor: -40.0, // above aggressiveFloorDB (-45)
			wantAmount: 0.65,
			wantMode:   engine.NoiseAggressive,
		},
		{
			name:       "severe noise",
			snr:        3.0, // below snrNoisy (6)
			noiseFloor: -35.0,
			wantAmount: 0.80, // noiseReductionSevere
			wantMode:   engine.NoiseAggressive,
		},
		{
			name:       "boundary: exactly at snrTypical stays normal curve",
			snr:        12.0,  // exactly snrTypical, not < snrTypical
			noiseFloor: -40.0, // loud floor, but SNR tier does not allow aggressive
			wantAmount: 0.50,
			wantMode:   engine.NoiseNormal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := makeAnalysis()
			analysis.SNR = tt.snr
			analysis.NoiseFloor = tt.noiseFloor

			settings := DefaultEngineSettings()
			tuneNoiseReduction(&settings, analysis)

			if settings.NoiseReduction != tt.wantAmount {
				t.Errorf("NoiseReduction = %.2f, want %.2f", settings.NoiseReduction, tt.wantAmount)
			}
			if settings.NoiseMode != tt.wantMode {
				t.Errorf("NoiseMode = %v, want %v", settings.NoiseMode, tt.wantMode)
			}
		})
	}
}

func TestTuneReverbReduction(t *testing.T) {
	tests := []struct {
		name       string
		earlyLate  float64
		distantMic bool
		wantAmount float64
	}{
		{
			name:       "treated room stays untouched",
			earlyLate:  0.60, // above earlyLateDry (0.50)
			wantAmount: 0.0,  // reverbReductionOff
		},
		{
			name:       "mild room character",
			earlyLate:  0.40, // between earlyLateNormal (0.30) and earlyLateDry (0.50)
			wantAmount: 0.15, // reverbReductionLight
		},
		{
			name:       "audible tail",
			earlyLate:  0.20, // between earlyLateLive (0.15) and earlyLateNormal (0.30)
			wantAmount: 0.35, // reverbReductionMedium
		},
		{
			name:       "live room",
			earlyLate:  0.10, // between earlyLateDistant (0.05) and earlyLateLive (0.15)
			wantAmount: 0.55, // reverbReductionStrong
		},
		{
			name:       "diffuse capture",
			earlyLate:  0.02, // below earlyLateDistant (0.05)
			wantAmount: 0.70, // reverbReductionExtreme
		},
		{
			name:       "distant mic classification forces full strength",
			earlyLate:  0.40, // would tier to light
			distantMic: true,
			wantAmount: 0.70,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := makeAnalysis()
			analysis.EarlyLateRatio = tt.earlyLate
			analysis.Conditions.DistantMic = tt.distantMic

			settings := DefaultEngineSettings()
			tuneReverbReduction(&settings, analysis)

			if settings.ReverbReduction != tt.wantAmount {
				t.Errorf("ReverbReduction = %.2f, want %.2f", settings.ReverbReduction, tt.wantAmount)
			}
		})
	}
}

func TestTuneProximity(t *testing.T) {
	tests := []struct {
		name       string
		earlyLate  float64
		distantMic bool
		wantAmount float64
	}{
		{
			name:       "close mic keeps its body",
			earlyLate:  0.60,
			wantAmount: 0.05, // proximityClose
		},
		{
			name:       "normal working distance",
			earlyLate:  0.40,
			wantAmount: 0.15, // proximityNormal
		},
		{
			name:       "thin distant capture",
			earlyLate:  0.20,
			wantAmount: 0.30, // proximityDistant
		},
		{
			name:       "distant mic classification",
			earlyLate:  0.20,
			distantMic: true,
			wantAmount: 0.40, // proximityFar
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := makeAnalysis()
			analysis.EarlyLateRatio = tt.earlyLate
			analysis.Conditions.DistantMic = tt.distantMic

			settings := DefaultEngineSettings()
			tuneProximity(&settings, analysis)

			if settings.Proximity != tt.wantAmount {
				t.Errorf("Proximity = %.2f, want %.2f", settings.Proximity, tt.wantAmount)
			}
		})
	}
}

func TestTuneClarity(t *testing.T) {
	tests := []struct {
		name       string
		presence   float64
		wantAmount float64
	}{
		{name: "bright open capture", presence: 0.009, wantAmount: 0.05}, // >= presenceOpen
		{name: "normal balance", presence: 0.005, wantAmount: 0.15},      // >= presenceNormal
		{name: "covered voice", presence: 0.002, wantAmount: 0.25},       // >= presenceCovered
		{name: "dull muddy capture", presence: 0.0005, wantAmount: 0.35}, // below presenceCovered
		{name: "boundary: exactly presenceOpen", presence: 0.008, wantAmount: 0.05},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := makeAnalysis()
			analysis.PresenceRatio = tt.presence

			settings := DefaultEngineSettings()
			tuneClarity(&settings, analysis)

			if settings.Clarity != tt.wantAmount {
				t.Errorf("Clarity = %.2f, want %.2f", settings.Clarity, tt.wantAmount)
			}
		})
	}
}

func TestTuneDeEsser(t *testing.T) {
	tests := []struct {
		name       string
		airRatio   float64
		whisper    bool
		wantAmount float64
	}{
		{name: "harsh HF emphasis", airRatio: 0.010, wantAmount: 0.45},    // >= airHarsh
		{name: "sibilant capture", airRatio: 0.006, wantAmount: 0.30},     // >= airSibilant
		{name: "ordinary air content", airRatio: 0.003, wantAmount: 0.15}, // >= airPresent
		{name: "dark capture skips de-esser", airRatio: 0.001, wantAmount: 0.0},
		{name: "whisper halves the amount", airRatio: 0.010, whisper: true, wantAmount: 0.225},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := makeAnalysis()
			analysis.AirRatio = tt.airRatio
			analysis.Conditions.Whisper = tt.whisper

			settings := DefaultEngineSettings()
			tuneDeEsser(&settings, analysis)

			if math.Abs(settings.DeEsser-tt.wantAmount) > 1e-9 {
				t.Errorf("DeEsser = %.3f, want %.3f", settings.DeEsser, tt.wantAmount)
			}
		})
	}
}

func TestTuneLeveler(t *testing.T) {
	tests := []struct {
		name       string
		variance   float64
		crest      float64
		wantAmount float64
	}{
		{
			name:       "professional consistency",
			variance:   0.001, // below varianceConsistent (0.0015)
			crest:      25.0,
			wantAmount: 0.30, // levelerGentle
		},
		{
			name:       "moderate movement",
			variance:   0.004,
			crest:      25.0,
			wantAmount: 0.50, // levelerMedium
		},
		{
			name:       "wide movement",
			variance:   0.010,
			crest:      25.0,
			wantAmount: 0.65, // levelerFirm
		},
		{
			name:       "uncontrolled levels",
			variance:   0.030,
			crest:      25.0,
			wantAmount: 0.80, // levelerHeavy
		},
		{
			name:       "spiky crest adds a bump",
			variance:   0.004,
			crest:      32.0, // above crestSpiky (30)
			wantAmount: 0.60, // levelerMedium + 0.10
		},
		{
			name:       "bump saturates at the cap",
			variance:   0.030,
			crest:      32.0,
			wantAmount: 0.85, // levelerMax
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := makeAnalysis()
			analysis.RMSVariance = tt.variance
			analysis.CrestFactor = tt.crest

			settings := DefaultEngineSettings()
			tuneLeveler(&settings, analysis)

			if math.Abs(settings.Leveler-tt.wantAmount) > 1e-9 {
				t.Errorf("Leveler = %.2f, want %.2f", settings.Leveler, tt.wantAmount)
			}
		})
	}
}

func TestTuneBreathControl(t *testing.T) {
	tests := []struct {
		name       string
		noisy      bool
		clean      bool
		wantAmount float64
	}{
		{name: "default environment", wantAmount: 0.20},
		{name: "clean recording exposes breaths", clean: true, wantAmount: 0.30},
		{name: "noisy floor masks breaths", noisy: true, wantAmount: 0.10},
		{name: "noisy wins over clean", noisy: true, clean: true, wantAmount: 0.10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := makeAnalysis()
			analysis.Conditions.NoisyEnvironment = tt.noisy
			analysis.Conditions.CleanAudio = tt.clean

			settings := DefaultEngineSettings()
			tuneBreathControl(&settings, analysis)

			if settings.BreathControl != tt.wantAmount {
				t.Errorf("BreathControl = %.2f, want %.2f", settings.BreathControl, tt.wantAmount)
			}
		})
	}
}

func TestTuneNoiseTone(t *testing.T) {
	t.Run("capture recommendation wins when valid", func(t *testing.T) {
		analysis := makeAnalysis()
		analysis.SuggestValid = true
		analysis.Suggested = dsp.SuggestedSettings{Rumble: 0.33, Hiss: 0.12}

		settings := DefaultEngineSettings()
		tuneNoiseTone(&settings, analysis)

		if settings.Rumble != 0.33 {
			t.Errorf("Rumble = %.2f, want 0.33", settings.Rumble)
		}
		if settings.Hiss != 0.12 {
			t.Errorf("Hiss = %.2f, want 0.12", settings.Hiss)
		}
	})

	t.Run("fallback tiers on the measured floor", func(t *testing.T) {
		analysis := makeAnalysis()
		analysis.NoiseFloor = -52.0 // above floorHissy, below rumbleFloorDB
		analysis.HFVariance = 5e-6  // above hissVariance

		settings := DefaultEngineSettings()
		tuneNoiseTone(&settings, analysis)

		if settings.Rumble != 0.25 { // rumbleDefault, floor not above -50
			t.Errorf("Rumble = %.2f, want 0.25", settings.Rumble)
		}
		if settings.Hiss != 0.40 { // hissStrong
			t.Errorf("Hiss = %.2f, want 0.40", settings.Hiss)
		}
	})

	t.Run("noisy environment raises the rumble cut", func(t *testing.T) {
		analysis := makeAnalysis()
		analysis.Conditions.NoisyEnvironment = true

		settings := DefaultEngineSettings()
		tuneNoiseTone(&settings, analysis)

		if settings.Rumble != 0.45 { // rumbleNoisy
			t.Errorf("Rumble = %.2f, want 0.45", settings.Rumble)
		}
	})

	t.Run("whisper caps the hiss cut", func(t *testing.T) {
		analysis := makeAnalysis()
		analysis.SuggestValid = true
		analysis.Suggested = dsp.SuggestedSettings{Rumble: 0.2, Hiss: 0.5}
		analysis.Conditions.Whisper = true

		settings := DefaultEngineSettings()
		tuneNoiseTone(&settings, analysis)

		if settings.Hiss != 0.15 { // hissWhisper
			t.Errorf("Hiss = %.2f, want 0.15", settings.Hiss)
		}
	})
}

func TestTuneOutputGain(t *testing.T) {
	tests := []struct {
		name         string
		inputLUFS    float64
		outputPreset engine.OutputPreset
		wantGain     float64
	}{
		{
			name:      "quiet source gets make-up gain",
			inputLUFS: -26.0,
			wantGain:  8.0, // -18 - (-26)
		},
		{
			name:      "loud source gets trimmed",
			inputLUFS: -12.0,
			wantGain:  -6.0,
		},
		{
			name:      "very quiet source clamps at the limit",
			inputLUFS: -45.0,
			wantGain:  12.0, // adaptiveGainLimitDB
		},
		{
			name:      "silent measurement leaves gain alone",
			inputLUFS: -80.0, // below adaptiveSilenceLUFS (-70)
			wantGain:  0.0,
		},
		{
			name:         "output preset owns the level",
			inputLUFS:    -26.0,
			outputPreset: engine.OutputBroadcast,
			wantGain:     0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := makeAnalysis()
			analysis.InputLUFS = tt.inputLUFS

			settings := DefaultEngineSettings()
			settings.OutputPreset = tt.outputPreset
			tuneOutputGain(&settings, analysis)

			if math.Abs(settings.OutputGainDB-tt.wantGain) > 1e-9 {
				t.Errorf("OutputGainDB = %.1f, want %.1f", settings.OutputGainDB, tt.wantGain)
			}
		})
	}
}

func TestAdaptSettingsSanitizesBadMeasurements(t *testing.T) {
	analysis := makeAnalysis()
	analysis.SNR = math.NaN()
	analysis.EarlyLateRatio = math.Inf(1)
	analysis.RMSVariance = math.NaN()
	analysis.InputLUFS = math.NaN()

	settings := DefaultEngineSettings()
	AdaptSettings(&settings, analysis)

	check := func(name string, v float64) {
		t.Helper()
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("%s = %v after sanitization", name, v)
		}
		if name != "OutputGainDB" && (v < 0 || v > 1) {
			t.Errorf("%s = %v outside [0, 1]", name, v)
		}
	}
	check("NoiseReduction", settings.NoiseReduction)
	check("ReverbReduction", settings.ReverbReduction)
	check("Proximity", settings.Proximity)
	check("Clarity", settings.Clarity)
	check("DeEsser", settings.DeEsser)
	check("Leveler", settings.Leveler)
	check("BreathControl", settings.BreathControl)
	check("Rumble", settings.Rumble)
	check("Hiss", settings.Hiss)
	check("OutputGainDB", settings.OutputGainDB)
}

func TestAdaptSettingsNilAnalysis(t *testing.T) {
	settings := DefaultEngineSettings()
	AdaptSettings(&settings, nil)

	if settings != DefaultEngineSettings() {
		t.Errorf("settings changed on nil analysis: %+v", settings)
	}
}

func TestApplyPresetValues(t *testing.T) {
	values, ok := engine.PresetPodcastNoisy.Values()
	if !ok {
		t.Fatalf("PresetPodcastNoisy.Values() not ok")
	}

	settings := DefaultEngineSettings()
	settings.MacroMode = true
	ApplyPresetValues(&settings, values)

	if settings.MacroMode {
		t.Errorf("MacroMode still set after preset application")
	}
	if settings.NoiseReduction != values.NoiseReduction {
		t.Errorf("NoiseReduction = %.2f, want %.2f", settings.NoiseReduction, values.NoiseReduction)
	}
	if settings.Leveler != values.Leveler {
		t.Errorf("Leveler = %.2f, want %.2f", settings.Leveler, values.Leveler)
	}
	if settings.NoiseMode != values.NoiseMode {
		t.Errorf("NoiseMode = %v, want %v", settings.NoiseMode, values.NoiseMode)
	}
}

func TestApplySuggested(t *testing.T) {
	suggested := dsp.SuggestedSettings{
		NoiseReduction:  0.4,
		ReverbReduction: 0.3,
		Clarity:         0.2,
		Proximity:       0.1,
		DeEsser:         0.25,
		Leveler:         0.6,
		Rumble:          0.35,
		Hiss:            0.15,
		OutputGainDB:    5.0,
	}

	t.Run("copies all values", func(t *testing.T) {
		settings := DefaultEngineSettings()
		ApplySuggested(&settings, suggested)

		if settings.NoiseReduction != 0.4 {
			t.Errorf("NoiseReduction = %.2f, want 0.40", settings.NoiseReduction)
		}
		if settings.OutputGainDB != 5.0 {
			t.Errorf("OutputGainDB = %.1f, want 5.0", settings.OutputGainDB)
		}
	})

	t.Run("output preset suppresses the suggested gain", func(t *testing.T) {
		settings := DefaultEngineSettings()
		settings.OutputPreset = engine.OutputYouTube
		ApplySuggested(&settings, suggested)

		if settings.OutputGainDB != 0.0 {
			t.Errorf("OutputGainDB = %.1f, want 0.0 with output preset", settings.OutputGainDB)
		}
	})
}

func TestApplyOverrides(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	b := func(v bool) *bool { return &v }

	t.Run("advanced override revokes macro", func(t *testing.T) {
		settings := DefaultEngineSettings()
		settings.MacroMode = true

		ApplyOverrides(&settings, Overrides{DeEsser: f(0.5)})

		if settings.MacroMode {
			t.Errorf("MacroMode still set after advanced override")
		}
		if settings.DeEsser != 0.5 {
			t.Errorf("DeEsser = %.2f, want 0.50", settings.DeEsser)
		}
	})

	t.Run("gain override keeps macro", func(t *testing.T) {
		settings := DefaultEngineSettings()
		settings.MacroMode = true

		ApplyOverrides(&settings, Overrides{OutputGainDB: f(-3.0)})

		if !settings.MacroMode {
			t.Errorf("MacroMode revoked by a gain-only override")
		}
		if settings.OutputGainDB != -3.0 {
			t.Errorf("OutputGainDB = %.1f, want -3.0", settings.OutputGainDB)
		}
	})

	t.Run("aggressive flag switches the mode", func(t *testing.T) {
		settings := DefaultEngineSettings()
		ApplyOverrides(&settings, Overrides{NoiseAggressive: b(true)})

		if settings.NoiseMode != engine.NoiseAggressive {
			t.Errorf("NoiseMode = %v, want NoiseAggressive", settings.NoiseMode)
		}
	})

	t.Run("out-of-range values are clamped", func(t *testing.T) {
		settings := DefaultEngineSettings()
		ApplyOverrides(&settings, Overrides{
			Leveler:      f(1.7),
			OutputGainDB: f(99.0),
		})

		if settings.Leveler != 1.0 {
			t.Errorf("Leveler = %.2f, want clamp to 1.00", settings.Leveler)
		}
		if settings.OutputGainDB != 24.0 { // settingsGainLimitDB
			t.Errorf("OutputGainDB = %.1f, want clamp to 24.0", settings.OutputGainDB)
		}
	})

	t.Run("nil fields leave settings untouched", func(t *testing.T) {
		settings := DefaultEngineSettings()
		settings.NoiseReduction = 0.42

		ApplyOverrides(&settings, Overrides{})

		if settings.NoiseReduction != 0.42 {
			t.Errorf("NoiseReduction = %.2f, want 0.42", settings.NoiseReduction)
		}
	})
}

func TestClampAndSanitize(t *testing.T) {
	if got := clamp(5.0, 0.0, 1.0); got != 1.0 {
		t.Errorf("clamp(5, 0, 1) = %v, want 1", got)
	}
	if got := clamp(-5.0, 0.0, 1.0); got != 0.0 {
		t.Errorf("clamp(-5, 0, 1) = %v, want 0", got)
	}
	if got := clamp(0.5, 0.0, 1.0); got != 0.5 {
		t.Errorf("clamp(0.5, 0, 1) = %v, want 0.5", got)
	}
	if got := sanitizeFloat(math.NaN(), 0.3); got != 0.3 {
		t.Errorf("sanitizeFloat(NaN, 0.3) = %v, want 0.3", got)
	}
	if got := sanitizeFloat(math.Inf(-1), 0.0); got != 0.0 {
		t.Errorf("sanitizeFloat(-Inf, 0) = %v, want 0", got)
	}
	if got := sanitizeFloat(0.7, 0.0); got != 0.7 {
		t.Errorf("sanitizeFloat(0.7, 0) = %v, want 0.7", got)
	}
}
