package dsp

import (
	"math"
	"testing"
)

func TestLinkedLimiterTransparentBelowCeiling(t *testing.T) {
	l := NewLinkedLimiter(48000)
	w := 2 * math.Pi * 997.0 / 48000.0
	for i := 0; i < 9600; i++ {
		x := 0.3 * math.Sin(w*float64(i))
		if gain := l.ComputeGain(x, x); gain != 1 {
			t.Fatalf("gain = %v at sample %d for a -10 dB sine, want 1", gain, i)
		}
	}
}

func TestLinkedLimiterEngagesOnHotSignal(t *testing.T) {
	l := NewLinkedLimiter(48000)
	w := 2 * math.Pi * 997.0 / 48000.0
	gain := 1.0
	for i := 0; i < 24000; i++ {
		x := 1.5 * math.Sin(w*float64(i))
		gain = l.ComputeGain(x, x)
	}

	if gain < 0.7 || gain > 0.92 {
		t.Errorf("gain = %v on a +3.5 dB sine, want soft limiting engaged", gain)
	}
	if red := l.GainReductionDB(); red < 0.5 || red > 3.5 {
		t.Errorf("GainReductionDB() = %v, want moderate reduction", red)
	}
}

func TestLinkedLimiterRecoversAfterBurst(t *testing.T) {
	l := NewLinkedLimiter(48000)
	w := 2 * math.Pi * 997.0 / 48000.0

	minGain := 1.0
	for i := 0; i < 4800; i++ {
		x := 1.5 * math.Sin(w*float64(i))
		minGain = math.Min(minGain, l.ComputeGain(x, x))
	}
	if minGain > 0.95 {
		t.Fatalf("burst barely engaged the limiter: min gain %v", minGain)
	}

	gain := minGain
	for i := 0; i < 48000; i++ {
		gain = l.ComputeGain(0, 0)
	}
	if gain < 0.999 {
		t.Errorf("gain = %v one second after the burst, want released to 1", gain)
	}
}

func TestLinkedLimiterResetRestoresUnity(t *testing.T) {
	l := NewLinkedLimiter(48000)
	for i := 0; i < 4800; i++ {
		l.ComputeGain(1.5, -1.5)
	}
	l.Reset()
	if red := l.GainReductionDB(); red != 0 {
		t.Errorf("GainReductionDB() = %v after Reset, want 0", red)
	}
}
