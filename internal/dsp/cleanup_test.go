package dsp

import (
	"math"
	"testing"
)

func TestPostNoiseCleanupZeroAmountPassesThrough(t *testing.T) {
	c := NewPostNoiseCleanup(48000)
	l, r := c.Process(0.4, -0.4, 0, 0.01, 0.001, 0, false)
	if l != 0.4 || r != -0.4 {
		t.Errorf("zero amount altered samples to (%v, %v)", l, r)
	}
}

func TestPostNoiseCleanupDucksLowConfidence(t *testing.T) {
	c := NewPostNoiseCleanup(48000)
	var l float64
	for i := 0; i < 4800; i++ {
		l, _ = c.Process(1, 1, 0, 0.01, 0.001, 1, false)
	}
	if l < 0.747 || l > 0.753 {
		t.Errorf("ducked sample = %v, want near the 2.5 dB cap", l)
	}
	if red := c.ReductionDB(); red < 2.45 || red > 2.52 {
		t.Errorf("ReductionDB() = %v, want near 2.5", red)
	}
}

func TestPostNoiseCleanupOpensOnSpeech(t *testing.T) {
	c := NewPostNoiseCleanup(48000)
	for i := 0; i < 4800; i++ {
		l, r := c.Process(0.5, 0.5, 0.5, 0.05, 0.001, 1, false)
		if l != 0.5 || r != 0.5 {
			t.Fatalf("sample %d ducked to (%v, %v) on confident speech", i, l, r)
		}
	}
}

func TestPostNoiseCleanupHoldThenRelease(t *testing.T) {
	c := NewPostNoiseCleanup(48000)
	for i := 0; i < 300; i++ {
		c.Process(1, 1, 0, 0.01, 0.001, 1, false)
	}
	atFlip := c.ReductionDB()

	// Hold keeps the gate closed for 25 ms after confidence returns.
	for i := 0; i < 1150; i++ {
		c.Process(1, 1, 1, 0.05, 0.001, 1, false)
	}
	inHold := c.ReductionDB()
	if inHold < atFlip+0.5 {
		t.Errorf("ReductionDB() = %v inside hold, want still deepening past %v", inHold, atFlip)
	}

	for i := 0; i < 9600; i++ {
		c.Process(1, 1, 1, 0.05, 0.001, 1, false)
	}
	if red := c.ReductionDB(); red > 1 {
		t.Errorf("ReductionDB() = %v after release, want under 1", red)
	}
}

func TestPostNoiseCleanupFlatlineFallsBackToSNRGate(t *testing.T) {
	c := NewPostNoiseCleanup(48000)
	for i := 0; i < 95000; i++ {
		c.Process(0.3, 0.3, 0.5, 0.001, 0.001, 1, false)
	}
	if red := c.ReductionDB(); red > 0.05 {
		t.Fatalf("ReductionDB() = %v before the flatline trips, want open", red)
	}

	for i := 0; i < 9600; i++ {
		c.Process(0.3, 0.3, 0.5, 0.001, 0.001, 1, false)
	}
	if red := c.ReductionDB(); red < 2.3 {
		t.Errorf("ReductionDB() = %v after the flatline, want the SNR gate closing", red)
	}
}

func TestPostNoiseCleanupHFBiasDeepensHighs(t *testing.T) {
	broad := NewPostNoiseCleanup(48000)
	biased := NewPostNoiseCleanup(48000)

	samples := 48000
	w := 2 * math.Pi * 12000.0 / 48000.0
	outBroad := make([]float64, samples)
	outBiased := make([]float64, samples)
	for i := 0; i < samples; i++ {
		x := 0.3 * math.Sin(w*float64(i))
		outBroad[i], _ = broad.Process(x, x, 0, 0.01, 0.001, 1, false)
		outBiased[i], _ = biased.Process(x, x, 0, 0.01, 0.001, 1, true)
	}

	tail := samples / 2
	broadRMS := rmsOf(outBroad[len(outBroad)-tail:])
	biasedRMS := rmsOf(outBiased[len(outBiased)-tail:])
	if biasedRMS > 0.97*broadRMS {
		t.Errorf("HF-biased RMS %v vs broadband %v at 12 kHz, want a deeper cut", biasedRMS, broadRMS)
	}
}
