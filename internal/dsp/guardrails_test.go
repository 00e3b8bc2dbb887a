package dsp

import (
	"math"
	"testing"
)

func TestSpectralGuardrailsTargetCutPolicy(t *testing.T) {
	tests := []struct {
		name     string
		speech   float64
		lowMid   float64
		high     float64
		conf     float64
		wantLow  float64
		wantHigh float64
	}{
		{"silence", 0, 0, 0, 1, 0, 0},
		{"balanced", 0.01, 0.012, 0.005, 1, 0, 0},
		{"boomy", 0.01, 0.02, 0.005, 1, 5.0 / 3.0, 0},
		{"boomClamped", 0.01, 0.06, 0.005, 1, 5, 0},
		{"harsh", 0.01, 0.01, 0.012, 1, 0, 2.5},
		{"harshNoSpeech", 0.01, 0.01, 0.012, 0.2, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewSpectralGuardrails(48000)
			g.rmsSpeechSq = tt.speech * tt.speech
			g.rmsLowMidSq = tt.lowMid * tt.lowMid
			g.rmsHighSq = tt.high * tt.high

			low, high := g.targetCuts(tt.conf)
			if math.Abs(low-tt.wantLow) > 1e-9 {
				t.Errorf("low cut = %v, want %v", low, tt.wantLow)
			}
			if math.Abs(high-tt.wantHigh) > 1e-9 {
				t.Errorf("high cut = %v, want %v", high, tt.wantHigh)
			}
		})
	}
}

func TestSpectralGuardrailsDisabledTracksWithoutCutting(t *testing.T) {
	g := NewSpectralGuardrails(48000)
	w := 2 * math.Pi * 300.0 / 48000.0
	for i := 0; i < 9600; i++ {
		x := 0.4 * math.Sin(w*float64(i))
		l, r := g.Process(x, x, false, 1)
		if l != x || r != x {
			t.Fatalf("disabled stage altered sample %d: (%v, %v), want %v", i, l, r, x)
		}
	}
	if g.rmsSpeechSq == 0 {
		t.Error("band tracking stopped while disabled")
	}
	if g.LowMidCutDB() != 0 || g.HighCutDB() != 0 {
		t.Errorf("cuts engaged while disabled: low %v high %v", g.LowMidCutDB(), g.HighCutDB())
	}
}

func TestSpectralGuardrailsAttackFastReleaseSlow(t *testing.T) {
	g := NewSpectralGuardrails(48000)
	g.rmsSpeechSq = 1e-4
	g.rmsLowMidSq = 4e-4

	for i := 0; i < 4800; i++ {
		g.Process(0, 0, true, 1)
	}
	afterAttack := g.LowMidCutDB()
	if afterAttack < 1.5 || afterAttack > 5.0/3.0 {
		t.Fatalf("low-mid cut = %v after 100 ms of boom, want near the %v target", afterAttack, 5.0/3.0)
	}

	g.rmsSpeechSq = 1e-4
	g.rmsLowMidSq = 1e-4
	for i := 0; i < 4800; i++ {
		g.Process(0, 0, true, 1)
	}
	afterRelease := g.LowMidCutDB()
	if afterRelease < 1.1 || afterRelease > 1.5 {
		t.Errorf("low-mid cut = %v after 100 ms of release, want a slow tail from %v", afterRelease, afterAttack)
	}
}

func TestSpectralGuardrailsHighCutGatedBySpeechConfidence(t *testing.T) {
	g := NewSpectralGuardrails(48000)
	g.rmsSpeechSq = 1e-4
	g.rmsHighSq = 1.44e-4
	for i := 0; i < 2400; i++ {
		g.Process(0, 0, true, 0)
	}
	if got := g.HighCutDB(); got > 0.01 {
		t.Errorf("HighCutDB() = %v with no speech confidence, want no harshness cut", got)
	}

	g = NewSpectralGuardrails(48000)
	g.rmsSpeechSq = 1e-4
	g.rmsHighSq = 1.44e-4
	for i := 0; i < 4800; i++ {
		g.Process(0, 0, true, 1)
	}
	if got := g.HighCutDB(); got < 2.2 || got > 2.51 {
		t.Errorf("HighCutDB() = %v on confident harsh speech, want near 2.5", got)
	}
}
