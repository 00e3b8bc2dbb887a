package dsp

import (
	"math"
	"testing"
)

func TestControlSlewFirstWriteSnaps(t *testing.T) {
	var s ControlSlew
	if got := s.Process(0.8, false, false); got != 0.8 {
		t.Errorf("first write = %v, want snap to 0.8", got)
	}
}

func TestControlSlewRateLimits(t *testing.T) {
	tests := []struct {
		name    string
		whisper bool
		noisy   bool
		want    float64
	}{
		{"base rate", false, false, baseSlewPerFrame},
		{"whisper halves", true, false, baseSlewPerFrame * whisperSlewMult},
		{"noisy backs off", false, true, baseSlewPerFrame * noisySlewMult},
		{"whisper wins over noisy", true, true, baseSlewPerFrame * whisperSlewMult},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s ControlSlew
			s.Process(0, false, false)
			got := s.Process(1, tt.whisper, tt.noisy)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("one step toward 1 = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestControlSlewSmallMovesPassThrough(t *testing.T) {
	var s ControlSlew
	s.Process(0.5, false, false)
	if got := s.Process(0.501, false, false); got != 0.501 {
		t.Errorf("sub-limit move = %v, want 0.501", got)
	}
}

func TestControlSlewResetSnapsAgain(t *testing.T) {
	var s ControlSlew
	s.Process(0.9, false, false)
	s.Process(0, false, false)
	s.Reset()
	if got := s.Process(0.4, false, false); got != 0.4 {
		t.Errorf("post-reset write = %v, want snap to 0.4", got)
	}
}

func TestSpectralLimitersFirstBlockSnapsToSafeguardedTargets(t *testing.T) {
	var l SpectralControlLimiters
	got := l.Process(0.8, 0.6, 0.5, 0.5, 0.3, false, false, 0)

	if got.Denoise != 0.8 {
		t.Errorf("Denoise = %v, want 0.8", got.Denoise)
	}
	if got.Clarity != 0.6 || got.DeEsser != 0.5 || got.Proximity != 0.3 {
		t.Errorf("untouched controls = %v, %v, %v", got.Clarity, got.DeEsser, got.Proximity)
	}

	// Denoise at 0.8 exhausts the energy budget: reverb runs at 60%.
	if math.Abs(got.Reverb-0.3) > 1e-12 {
		t.Errorf("Reverb = %v, want 0.3 under the energy budget", got.Reverb)
	}
	if !got.EnergyBudgetActive || math.Abs(got.EnergyBudgetScale-0.6) > 1e-12 {
		t.Errorf("energy budget = %v scale %v, want active at 0.6", got.EnergyBudgetActive, got.EnergyBudgetScale)
	}
	if got.SpeechProtectionActive {
		t.Error("speech protection active with no measured loss")
	}
}

func TestSpectralLimitersEnergyBudgetInactiveAtLowDenoise(t *testing.T) {
	var l SpectralControlLimiters
	got := l.Process(0.3, 0, 0, 0.5, 0, false, false, 0)
	if got.EnergyBudgetActive {
		t.Error("energy budget active below the denoise threshold")
	}
	if got.Reverb != 0.5 {
		t.Errorf("Reverb = %v, want 0.5 untouched", got.Reverb)
	}
}

func TestSpectralLimitersSpeechProtection(t *testing.T) {
	tests := []struct {
		name      string
		lossDB    float64
		wantScale float64
	}{
		{"no loss", 0, 1},
		{"loss inside allowance", -2, 1},
		{"moderate loss", -3, 0.8},
		{"deep loss bottoms out", -7, 0.6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l SpectralControlLimiters
			got := l.Process(0.2, 0, 0, 0.2, 0, false, false, tt.lossDB)
			if math.Abs(got.SpeechProtectionScale-tt.wantScale) > 1e-12 {
				t.Errorf("scale = %v, want %v", got.SpeechProtectionScale, tt.wantScale)
			}
			wantActive := tt.wantScale < 0.99
			if got.SpeechProtectionActive != wantActive {
				t.Errorf("active = %v, want %v", got.SpeechProtectionActive, wantActive)
			}
			if math.Abs(got.Denoise-0.2*tt.wantScale) > 1e-12 {
				t.Errorf("Denoise = %v, want %v", got.Denoise, 0.2*tt.wantScale)
			}
		})
	}
}

func TestSpectralLimitersSlewAfterSnap(t *testing.T) {
	var l SpectralControlLimiters
	l.Process(0.8, 0.6, 0.5, 0.5, 0.3, false, false, 0)
	got := l.Process(0, 0, 0, 0, 0, false, false, 0)

	if math.Abs(got.Denoise-(0.8-baseSlewPerFrame)) > 1e-12 {
		t.Errorf("Denoise after one block = %v, want %v", got.Denoise, 0.8-baseSlewPerFrame)
	}
	if math.Abs(got.Reverb-(0.3-baseSlewPerFrame)) > 1e-12 {
		t.Errorf("Reverb after one block = %v, want %v", got.Reverb, 0.3-baseSlewPerFrame)
	}
}
