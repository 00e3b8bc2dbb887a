package dsp

import (
	"math"
	"math/rand"
	"testing"
)

// noiseSignal returns reproducible uniform noise in [-amp, amp].
func noiseSignal(seed int64, amp float64, samples int) []float64 {
	rng := rand.New(rand.NewSource(seed))
	x := make([]float64, samples)
	for i := range x {
		x[i] = amp * (2*rng.Float64() - 1)
	}
	return x
}

func TestSpectralDenoiserLatency(t *testing.T) {
	d := NewSpectralDenoiser(48000)
	if got := d.Latency(); got != wolaWinSize {
		t.Errorf("Latency() = %d, want %d", got, wolaWinSize)
	}
}

func TestSpectralDenoiserAmountZeroIsNearTransparent(t *testing.T) {
	d := NewSpectralDenoiser(48000)
	cfg := DenoiseConfig{Amount: 0, Sensitivity: 0.5, Tone: 0.5}

	samples := 3 * 48000
	dither := noiseSignal(7, 0.008, samples)
	in := make([]float64, samples)
	out := make([]float64, samples)
	removed := make([]float64, samples)
	w := 2 * math.Pi * 997.0 / 48000.0
	for i := range in {
		in[i] = 0.4*math.Sin(w*float64(i)) + dither[i]
		o, _, rm, _ := d.ProcessSample(in[i], in[i], cfg)
		out[i] = o
		removed[i] = rm
	}

	tail := 48000
	inRMS := rmsOf(in[len(in)-tail:])
	outRMS := rmsOf(out[len(out)-tail:])
	if ratio := outRMS / inRMS; ratio < 0.94 || ratio > 1.0005 {
		t.Errorf("amount 0 output/input RMS = %v, want near 1", ratio)
	}
	if remRMS := rmsOf(removed[len(removed)-tail:]); remRMS > 0.2*inRMS {
		t.Errorf("amount 0 removed RMS %v against input %v", remRMS, inRMS)
	}
}

func TestSpectralDenoiserReductionGrowsWithAmount(t *testing.T) {
	in := noiseSignal(11, 0.1, 4*48000)

	run := func(amount float64) (outRMS, removedRMS float64) {
		d := NewSpectralDenoiser(48000)
		cfg := DenoiseConfig{Amount: amount, Sensitivity: 1, Tone: 0.5}
		out := make([]float64, len(in))
		removed := make([]float64, len(in))
		for i, x := range in {
			o, _, rm, _ := d.ProcessSample(x, x, cfg)
			out[i] = o
			removed[i] = rm
		}
		tail := 48000
		return rmsOf(out[len(out)-tail:]), rmsOf(removed[len(removed)-tail:])
	}

	lowOut, _ := run(0.3)
	highOut, highRemoved := run(1.0)
	inRMS := rmsOf(in[len(in)-48000:])

	if highOut > lowOut*(1+1e-9) {
		t.Errorf("full amount passes more noise than amount 0.3: %v > %v", highOut, lowOut)
	}
	if highOut > 0.995*inRMS {
		t.Errorf("full amount leaves output RMS %v of input %v, want some reduction", highOut, inRMS)
	}
	if highRemoved < 0.01*inRMS {
		t.Errorf("full amount removed RMS %v of input %v, want visible removal", highRemoved, inRMS)
	}
}

func TestSpectralDenoiserDeltaContract(t *testing.T) {
	d := NewSpectralDenoiser(48000)
	cfg := DenoiseConfig{Amount: 0.8, Sensitivity: 0.7, Tone: 0.5}

	samples := 2 * 48000
	in := noiseSignal(5, 0.05, samples)
	w := 2 * math.Pi * 200.0 / 48000.0
	out := make([]float64, samples)
	removed := make([]float64, samples)
	for i := range in {
		in[i] += 0.2 * math.Sin(w*float64(i))
		o, _, rm, _ := d.ProcessSample(in[i], in[i], cfg)
		out[i] = o
		removed[i] = rm
	}

	// removed is aligned with the output, which lags the input by one
	// window: delayed input == output + removed, sample for sample.
	lat := d.Latency()
	var worst float64
	for i := lat; i < samples; i++ {
		worst = math.Max(worst, math.Abs(in[i-lat]-(out[i]+removed[i])))
	}
	if worst > 1e-9 {
		t.Errorf("delta contract violated by %g", worst)
	}
}

func TestSpectralDenoiserHarmonicProtection(t *testing.T) {
	// Force full speech probability and maximum reduction, then verify the
	// bins around a 200 Hz fundamental and its harmonics keep a protective
	// gain floor while off-harmonic bins stay free to cut deep.
	d := NewSpectralDenoiser(48000)
	det := d.detector
	for i := range det.gains {
		det.gains[i] = 0.01
	}
	det.applyHarmonicProtection(48000, 200, 1.0, 1.0)

	binWidth := 48000.0 / float64(det.winSize)
	fundBin := int(200 / binWidth)
	if got := det.gains[fundBin]; got < 0.9 {
		t.Errorf("gain at the 200 Hz bin = %v with full confidence, want >= 0.9", got)
	}
	if got := det.gains[int(400/binWidth)]; got < 0.9 {
		t.Errorf("gain at the first harmonic = %v, want >= 0.9", got)
	}
	if got := det.gains[int(300/binWidth)]; got != 0.01 {
		t.Errorf("off-harmonic 300 Hz bin moved to %v, want untouched", got)
	}

	// Moderate confidence still bounds the cut on protected bins.
	for i := range det.gains {
		det.gains[i] = 0.01
	}
	det.applyHarmonicProtection(48000, 200, 0.5, 1.0)
	if got := det.gains[fundBin]; got < 0.7 {
		t.Errorf("gain at the 200 Hz bin = %v at confidence 0.5, want a protective floor >= 0.7", got)
	}
}

func TestSpectralDenoiserNoiseFloorMeter(t *testing.T) {
	d := NewSpectralDenoiser(48000)
	if got := d.NoiseFloorDB(); got > -100 {
		t.Fatalf("fresh NoiseFloorDB() = %v, want far below -100", got)
	}

	cfg := DenoiseConfig{Amount: 0.5, Sensitivity: 0.5, Tone: 0.5}
	for _, x := range noiseSignal(3, 0.1, 2*48000) {
		d.ProcessSample(x, x, cfg)
	}

	if got := d.NoiseFloorDB(); got < -90 || got > -15 {
		t.Errorf("NoiseFloorDB() after 2 s of noise = %v, want a plausible floor reading", got)
	}
	if c := d.NoiseConfidence(); c < 0 || c > 1 {
		t.Errorf("NoiseConfidence() = %v, want within [0, 1]", c)
	}

	d.Reset()
	if got := d.NoiseFloorDB(); got > -100 {
		t.Errorf("NoiseFloorDB() after Reset = %v, want the fresh floor", got)
	}
	if got := d.NoiseConfidence(); got != 1 {
		t.Errorf("NoiseConfidence() after Reset = %v, want 1", got)
	}
}

func TestSpectralDenoiserMainsSelection(t *testing.T) {
	tests := []struct {
		name   string
		baseHz int
		count  int
		first  float64
	}{
		{"fifty", 50, 3, 50},
		{"sixty", 60, 3, 60},
		{"unknown", 0, 6, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewSpectralDenoiser(48000)
			d.SetMainsFrequency(tt.baseHz)
			freqs := d.detector.humFreqs
			if len(freqs) != tt.count {
				t.Fatalf("humFreqs length = %d, want %d", len(freqs), tt.count)
			}
			if freqs[0] != tt.first {
				t.Errorf("humFreqs[0] = %v, want %v", freqs[0], tt.first)
			}
		})
	}
}
