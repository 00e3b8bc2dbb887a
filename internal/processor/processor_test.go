package processor

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/voicemend/voicemend/internal/audio"
	"github.com/voicemend/voicemend/internal/dsp"
	"github.com/voicemend/voicemend/internal/engine"
)

func TestGenerateOutputPath(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "wav extension replaced",
			input: "/tmp/session.wav",
			want:  "/tmp/session-restored.wav",
		},
		{
			name:  "other extension replaced",
			input: "/tmp/interview.flac",
			want:  "/tmp/interview-restored.wav",
		},
		{
			name:  "no extension",
			input: "/tmp/take1",
			want:  "/tmp/take1-restored.wav",
		},
		{
			name:  "relative path keeps directory",
			input: "recordings/ep42.wav",
			want:  filepath.Join("recordings", "ep42-restored.wav"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := generateOutputPath(tt.input)
			if got != tt.want {
				t.Errorf("generateOutputPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestOutputBitDepth(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{8, 16}, // 8-bit sources are promoted
		{16, 16},
		{24, 24},
		{32, 32},
	}

	for _, tt := range tests {
		if got := outputBitDepth(tt.in); got != tt.want {
			t.Errorf("outputBitDepth(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCalculateFrameLevel(t *testing.T) {
	t.Run("empty buffers floor at -60", func(t *testing.T) {
		if got := calculateFrameLevel(nil, nil); got != -60.0 {
			t.Errorf("calculateFrameLevel(nil) = %v, want -60", got)
		}
	})

	t.Run("digital silence floors at -60", func(t *testing.T) {
		left := make([]float64, 256)
		right := make([]float64, 256)
		if got := calculateFrameLevel(left, right); got != -60.0 {
			t.Errorf("calculateFrameLevel(zeros) = %v, want -60", got)
		}
	})

	t.Run("full scale clamps at 0", func(t *testing.T) {
		left := make([]float64, 256)
		right := make([]float64, 256)
		for i := range left {
			left[i] = 2.0
			right[i] = 2.0
		}
		if got := calculateFrameLevel(left, right); got != 0.0 {
			t.Errorf("calculateFrameLevel(overs) = %v, want clamp at 0", got)
		}
	})

	t.Run("known RMS", func(t *testing.T) {
		// A constant 0.1 across both channels has RMS 0.1, -20 dB.
		left := make([]float64, 256)
		right := make([]float64, 256)
		for i := range left {
			left[i] = 0.1
			right[i] = 0.1
		}
		got := calculateFrameLevel(left, right)
		if math.Abs(got-(-20.0)) > 0.01 {
			t.Errorf("calculateFrameLevel(0.1) = %v, want -20", got)
		}
	})
}

func TestResolveSettings(t *testing.T) {
	analysis := makeAnalysis()
	analysis.SNR = 25.0 // pristine enough to pick the light tier

	t.Run("default path adapts to the analysis", func(t *testing.T) {
		config := DefaultRestorationConfig()
		settings := resolveSettings(config, analysis)

		if settings.MacroMode {
			t.Errorf("MacroMode = true, want adaptive path without macro")
		}
		if settings.NoiseReduction == 0 {
			t.Errorf("NoiseReduction = 0, want adaptive fill-in")
		}
		if settings.Leveler == 0 {
			t.Errorf("Leveler = 0, want adaptive fill-in")
		}
	})

	t.Run("auto applies the capture suggestion", func(t *testing.T) {
		a := makeAnalysis()
		a.SuggestValid = true
		a.Suggested = dsp.SuggestedSettings{
			NoiseReduction:  0.42,
			ReverbReduction: 0.21,
			Clarity:         0.33,
			Proximity:       0.11,
			DeEsser:         0.22,
			Leveler:         0.44,
			Rumble:          0.35,
			Hiss:            0.12,
		}

		config := DefaultRestorationConfig()
		config.Auto = true
		settings := resolveSettings(config, a)

		if settings.NoiseReduction != 0.42 {
			t.Errorf("NoiseReduction = %v, want suggested 0.42", settings.NoiseReduction)
		}
		if settings.Rumble != 0.35 {
			t.Errorf("Rumble = %v, want suggested 0.35", settings.Rumble)
		}
	})

	t.Run("auto without a valid suggestion falls back to adaptive", func(t *testing.T) {
		a := makeAnalysis()
		a.SuggestValid = false

		config := DefaultRestorationConfig()
		config.Auto = true
		settings := resolveSettings(config, a)

		if settings.NoiseReduction == 0 {
			t.Errorf("NoiseReduction = 0, want adaptive fallback")
		}
	})

	t.Run("scenario preset wins over macro dials", func(t *testing.T) {
		config := DefaultRestorationConfig()
		config.Preset = engine.PresetPodcastNoisy
		config.MacroMode = true
		config.Distance = 0.9
		settings := resolveSettings(config, analysis)

		if settings.Preset != engine.PresetPodcastNoisy {
			t.Errorf("Preset = %v, want PresetPodcastNoisy", settings.Preset)
		}
		if settings.MacroMode {
			t.Errorf("MacroMode = true, want preset to revoke macro")
		}
		if settings.NoiseReduction != 0.35 { // podcast preset value
			t.Errorf("NoiseReduction = %v, want 0.35 from preset", settings.NoiseReduction)
		}
	})

	t.Run("macro dials pass through", func(t *testing.T) {
		config := DefaultRestorationConfig()
		config.MacroMode = true
		config.Distance = 0.7
		config.MacroClarity = 0.3
		config.Consistency = 0.6
		settings := resolveSettings(config, analysis)

		if !settings.MacroMode {
			t.Errorf("MacroMode = false, want true")
		}
		if settings.Distance != 0.7 || settings.MacroClarity != 0.3 || settings.Consistency != 0.6 {
			t.Errorf("macro dials = %v/%v/%v, want 0.7/0.3/0.6",
				settings.Distance, settings.MacroClarity, settings.Consistency)
		}
	})

	t.Run("overrides win last", func(t *testing.T) {
		config := DefaultRestorationConfig()
		config.Preset = engine.PresetPodcastNoisy
		nr := 0.05
		config.Overrides.NoiseReduction = &nr
		settings := resolveSettings(config, analysis)

		if settings.NoiseReduction != 0.05 {
			t.Errorf("NoiseReduction = %v, want override 0.05", settings.NoiseReduction)
		}
	})

	t.Run("learn window arms the learn amount", func(t *testing.T) {
		config := DefaultRestorationConfig()
		config.LearnNoiseSecs = 2.0
		settings := resolveSettings(config, analysis)

		if settings.LearnNoiseSecs != 2.0 {
			t.Errorf("LearnNoiseSecs = %v, want 2.0", settings.LearnNoiseSecs)
		}
		if settings.NoiseLearnAmount != defaultNoiseLearnAmount {
			t.Errorf("NoiseLearnAmount = %v, want %v", settings.NoiseLearnAmount, defaultNoiseLearnAmount)
		}
	})

	t.Run("model path enables assistance", func(t *testing.T) {
		config := DefaultRestorationConfig()
		config.ModelPath = "/models/denoise.bin"
		settings := resolveSettings(config, analysis)

		if !settings.UseML {
			t.Errorf("UseML = false, want true with a model path")
		}
		if settings.ModelPath != "/models/denoise.bin" {
			t.Errorf("ModelPath = %q, want propagation", settings.ModelPath)
		}
	})

	t.Run("output preset propagates and suppresses adaptive gain", func(t *testing.T) {
		a := makeAnalysis()
		a.InputLUFS = -30.0 // would otherwise earn makeup gain

		config := DefaultRestorationConfig()
		config.OutputPreset = engine.OutputBroadcast
		settings := resolveSettings(config, a)

		if settings.OutputPreset != engine.OutputBroadcast {
			t.Errorf("OutputPreset = %v, want OutputBroadcast", settings.OutputPreset)
		}
		if settings.OutputGainDB != 0 {
			t.Errorf("OutputGainDB = %v, want 0 when the loudness target owns gain", settings.OutputGainDB)
		}
	})
}

func TestApplySettings(t *testing.T) {
	t.Run("advanced knobs land on the parameter surface", func(t *testing.T) {
		params := engine.NewParams()
		settings := DefaultEngineSettings()
		settings.NoiseReduction = 0.4
		settings.NoiseMode = engine.NoiseAggressive
		settings.Rumble = 0.3
		settings.Hiss = 0.2
		settings.ReverbReduction = 0.25
		settings.Proximity = 0.15
		settings.Clarity = 0.35
		settings.DeEsser = 0.45
		settings.Leveler = 0.55
		settings.BreathControl = 0.1
		settings.OutputGainDB = 3.0
		settings.OutputPreset = engine.OutputYouTube
		settings.UseML = true

		applySettings(params, settings)
		snap := params.TakeSnapshot()

		if snap.MacroMode {
			t.Errorf("MacroMode = true, want advanced mode")
		}
		if snap.NoiseReduction != 0.4 || snap.NoiseMode != engine.NoiseAggressive {
			t.Errorf("noise = %v/%v, want 0.4 aggressive", snap.NoiseReduction, snap.NoiseMode)
		}
		if snap.Rumble != 0.3 || snap.Hiss != 0.2 {
			t.Errorf("tone = %v/%v, want 0.3/0.2", snap.Rumble, snap.Hiss)
		}
		if snap.ReverbReduction != 0.25 || snap.Proximity != 0.15 {
			t.Errorf("space = %v/%v, want 0.25/0.15", snap.ReverbReduction, snap.Proximity)
		}
		if snap.Clarity != 0.35 || snap.DeEsser != 0.45 {
			t.Errorf("voicing = %v/%v, want 0.35/0.45", snap.Clarity, snap.DeEsser)
		}
		if snap.Leveler != 0.55 || snap.BreathControl != 0.1 {
			t.Errorf("dynamics = %v/%v, want 0.55/0.1", snap.Leveler, snap.BreathControl)
		}
		if snap.OutputGainDB != 3.0 {
			t.Errorf("OutputGainDB = %v, want 3.0", snap.OutputGainDB)
		}
		if snap.OutputPreset != engine.OutputYouTube {
			t.Errorf("OutputPreset = %v, want OutputYouTube", snap.OutputPreset)
		}
		if !snap.UseML {
			t.Errorf("UseML = false, want true")
		}
	})

	t.Run("macro dials survive because no advanced setter fires", func(t *testing.T) {
		params := engine.NewParams()
		settings := DefaultEngineSettings()
		settings.MacroMode = true
		settings.Distance = 0.6
		settings.MacroClarity = 0.4
		settings.Consistency = 0.8

		applySettings(params, settings)
		snap := params.TakeSnapshot()

		if !snap.MacroMode {
			t.Errorf("MacroMode = false, want macro branch to hold")
		}
		if snap.MacroDistance != 0.6 || snap.MacroClarity != 0.4 || snap.MacroConsistency != 0.8 {
			t.Errorf("macro dials = %v/%v/%v, want 0.6/0.4/0.8",
				snap.MacroDistance, snap.MacroClarity, snap.MacroConsistency)
		}
	})
}

func TestProcessAudioEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping full two-pass restoration in short mode")
	}

	path := generateTestAudio(t, TestAudioOptions{
		DurationSecs: 3.0,
		SampleRate:   44100,
		ToneFreq:     220.0,
		ToneLevel:    -23.0,
		NoiseLevel:   -55.0,
	})
	defer cleanupTestAudio(t, path)

	config := DefaultRestorationConfig()
	config.GenerateReport = false

	var lastPass int
	var lastProgress float64
	result, err := ProcessAudio(path, config, func(pass int, passName string, progress, level float64, analysis *AudioAnalysis) {
		if pass < lastPass {
			t.Errorf("pass went backwards: %d after %d", pass, lastPass)
		}
		lastPass = pass
		lastProgress = progress
	})
	if err != nil {
		t.Fatalf("ProcessAudio() error = %v", err)
	}

	if lastPass != 2 || lastProgress != 1.0 {
		t.Errorf("final callback = pass %d progress %.2f, want pass 2 at 1.0", lastPass, lastProgress)
	}

	wantOutput := strings.TrimSuffix(path, filepath.Ext(path)) + "-restored.wav"
	if result.OutputPath != wantOutput {
		t.Errorf("OutputPath = %q, want %q", result.OutputPath, wantOutput)
	}
	if _, err := os.Stat(result.OutputPath); err != nil {
		t.Fatalf("restored file missing: %v", err)
	}

	reader, metadata, err := audio.OpenAudioFile(result.OutputPath)
	if err != nil {
		t.Fatalf("failed to open restored file: %v", err)
	}
	defer reader.Close()

	if metadata.SampleRate != 44100 {
		t.Errorf("output SampleRate = %d, want 44100", metadata.SampleRate)
	}
	if metadata.Channels != 1 {
		t.Errorf("output Channels = %d, want mono preserved", metadata.Channels)
	}
	if math.Abs(metadata.Duration-3.0) > 0.05 {
		t.Errorf("output Duration = %.3f, want 3.0 after latency compensation", metadata.Duration)
	}

	if result.Analysis == nil {
		t.Fatalf("result carries no analysis")
	}
	if len(result.Stages) == 0 {
		t.Errorf("result carries no stage activity")
	}
	if result.Settings.NoiseReduction == 0 && result.Settings.Leveler == 0 {
		t.Errorf("result settings look unresolved: %+v", result.Settings)
	}
}
