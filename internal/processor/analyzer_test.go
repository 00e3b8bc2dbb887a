package processor

import (
	"math"
	"strings"
	"testing"

	"github.com/voicemend/voicemend/internal/dsp"
)

func TestAnalyzeAudioTone(t *testing.T) {
	// 997 Hz is the standard alignment frequency: it never lands exactly on
	// an FFT bin or a sample-rate divisor.
	path := generateTestAudio(t, TestAudioOptions{
		DurationSecs: 5.0,
		SampleRate:   44100,
		ToneFreq:     997.0,
		ToneLevel:    -20.0,
		NoiseLevel:   -60.0,
	})
	defer cleanupTestAudio(t, path)

	analysis, err := AnalyzeAudio(path, nil)
	if err != nil {
		t.Fatalf("AnalyzeAudio() error = %v", err)
	}

	if analysis.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want 44100", analysis.SampleRate)
	}
	if analysis.Channels != 1 {
		t.Errorf("Channels = %d, want 1", analysis.Channels)
	}
	if analysis.BitDepth != 16 {
		t.Errorf("BitDepth = %d, want 16", analysis.BitDepth)
	}
	if math.Abs(analysis.DurationSecs-5.0) > 0.05 {
		t.Errorf("DurationSecs = %.3f, want 5.0", analysis.DurationSecs)
	}

	// A -20 dBFS sine has -23 dB RMS. Allow measurement slack from the
	// added noise and block edges.
	if analysis.RMSLevel < -24.5 || analysis.RMSLevel > -21.5 {
		t.Errorf("RMSLevel = %.2f dB, want about -23", analysis.RMSLevel)
	}
	if analysis.PeakLevel < -21.0 || analysis.PeakLevel > -19.0 {
		t.Errorf("PeakLevel = %.2f dB, want about -20", analysis.PeakLevel)
	}
	if analysis.CrestFactor < 2.0 || analysis.CrestFactor > 4.5 {
		t.Errorf("CrestFactor = %.2f dB, want about 3", analysis.CrestFactor)
	}

	// Loudness must have integrated: the tone sits far above the gate.
	if analysis.InputLUFS < -24.0 || analysis.InputLUFS > -18.0 {
		t.Errorf("InputLUFS = %.2f, want about -21 for a -20 dBFS sine", analysis.InputLUFS)
	}
	if analysis.InputTruePeak < -21.0 || analysis.InputTruePeak > -18.0 {
		t.Errorf("InputTruePeak = %.2f, want about -20", analysis.InputTruePeak)
	}

	if analysis.NoiseFloor < -90.0 || analysis.NoiseFloor > -30.0 {
		t.Errorf("NoiseFloor = %.2f dB outside clamp range", analysis.NoiseFloor)
	}

	// A steady tone well above the floor is captureable material.
	if !analysis.SuggestValid {
		t.Errorf("SuggestValid = false, want capture recommendation for steady tone")
	}
}

func TestAnalyzeAudioProgress(t *testing.T) {
	path := generateTestAudio(t, TestAudioOptions{
		DurationSecs: 3.0,
		SampleRate:   44100,
		ToneFreq:     440.0,
		ToneLevel:    -23.0,
	})
	defer cleanupTestAudio(t, path)

	type update struct {
		pass     int
		passName string
		progress float64
		final    bool
	}
	var updates []update

	_, err := AnalyzeAudio(path, func(pass int, passName string, progress, level float64, analysis *AudioAnalysis) {
		updates = append(updates, update{pass, passName, progress, analysis != nil})
	})
	if err != nil {
		t.Fatalf("AnalyzeAudio() error = %v", err)
	}

	if len(updates) < 2 {
		t.Fatalf("got %d progress updates, want at least start and finish", len(updates))
	}

	first := updates[0]
	if first.pass != 1 || first.progress != 0.0 || first.final {
		t.Errorf("first update = %+v, want pass 1 progress 0 without analysis", first)
	}

	last := updates[len(updates)-1]
	if last.progress != 1.0 {
		t.Errorf("last update progress = %.2f, want 1.0", last.progress)
	}
	if !last.final {
		t.Errorf("last update carried no analysis")
	}

	prev := -1.0
	for i, u := range updates {
		if u.pass != 1 {
			t.Errorf("update %d pass = %d, want 1", i, u.pass)
		}
		if u.passName != "Analysing" {
			t.Errorf("update %d passName = %q, want Analysing", i, u.passName)
		}
		if u.progress < prev {
			t.Errorf("update %d progress %.3f went backwards from %.3f", i, u.progress, prev)
		}
		prev = u.progress
	}
}

func TestAnalyzeAudioMissingFile(t *testing.T) {
	_, err := AnalyzeAudio("/nonexistent/missing.wav", nil)
	if err == nil {
		t.Fatalf("AnalyzeAudio() on missing file succeeded")
	}
	if !strings.Contains(err.Error(), "analysis pass failed to open input") {
		t.Errorf("error = %q, want open-input wrapping", err)
	}
}

func TestDeriveNoiseFloor(t *testing.T) {
	tests := []struct {
		name     string
		profile  dsp.AudioProfile
		rmsLevel float64
		want     float64
	}{
		{
			name:     "measured floor converts to dB",
			profile:  dsp.AudioProfile{NoiseFloor: 0.01}, // -40 dBFS
			rmsLevel: -20.0,
			want:     -40.0,
		},
		{
			name:     "very low measured floor clamps at -90",
			profile:  dsp.AudioProfile{NoiseFloor: 1e-6},
			rmsLevel: -20.0,
			want:     -90.0,
		},
		{
			name:     "loud measured floor clamps at -30",
			profile:  dsp.AudioProfile{NoiseFloor: 0.1}, // -20 dBFS
			rmsLevel: -10.0,
			want:     -30.0,
		},
		{
			name:     "no measurement falls back to RMS minus 15",
			profile:  dsp.AudioProfile{},
			rmsLevel: -30.0,
			want:     -45.0,
		},
		{
			name:     "silent file gets the default",
			profile:  dsp.AudioProfile{},
			rmsLevel: -120.0,
			want:     -60.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := deriveNoiseFloor(tt.profile, tt.rmsLevel)
			if math.Abs(got-tt.want) > 0.1 {
				t.Errorf("deriveNoiseFloor() = %.2f, want %.2f", got, tt.want)
			}
		})
	}
}

func TestLinearToDB(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{name: "unity", in: 1.0, want: 0.0},
		{name: "half amplitude", in: 0.5, want: -6.0206},
		{name: "tenth amplitude", in: 0.1, want: -20.0},
		{name: "zero floors at -120", in: 0.0, want: -120.0},
		{name: "denormal floors at -120", in: 1e-9, want: -120.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LinearToDB(tt.in)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("LinearToDB(%v) = %.4f, want %.4f", tt.in, got, tt.want)
			}
		})
	}
}

func TestProgressFraction(t *testing.T) {
	if got := progressFraction(50, 100); got != 0.5 {
		t.Errorf("progressFraction(50, 100) = %v, want 0.5", got)
	}
	if got := progressFraction(150, 100); got != 1.0 {
		t.Errorf("progressFraction(150, 100) = %v, want saturation at 1", got)
	}
	if got := progressFraction(10, 0); got != 0.0 {
		t.Errorf("progressFraction(10, 0) = %v, want 0 for unknown total", got)
	}
}
