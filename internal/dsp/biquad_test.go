package dsp

import (
	"math"
	"testing"
)

// filterGainAt drives the filter with a unit sine and returns the amplitude
// ratio measured over the second half of the run, after transients settle.
func filterGainAt(f *biquad, freq, sampleRate float64) float64 {
	const n = 9600
	var sumIn, sumOut float64
	for i := 0; i < n; i++ {
		x := math.Sin(2 * math.Pi * freq * float64(i) / sampleRate)
		y := f.process(x)
		if i >= n/2 {
			sumIn += x * x
			sumOut += y * y
		}
	}
	return math.Sqrt(sumOut / sumIn)
}

func TestBiquadIdentityPassesThrough(t *testing.T) {
	f := newBiquad()
	for i := 0; i < 100; i++ {
		x := math.Sin(float64(i) * 0.37)
		if y := f.process(x); math.Abs(y-x) > 1e-12 {
			t.Fatalf("identity biquad altered sample %d: got %v want %v", i, y, x)
		}
	}
}

func TestBiquadFrequencyResponses(t *testing.T) {
	const sr = 48000.0

	tests := []struct {
		name   string
		setup  func(f *biquad)
		freq   float64
		wantLo float64
		wantHi float64
	}{
		{
			name:   "hpf passes well above cutoff",
			setup:  func(f *biquad) { f.updateHPF(100, 0.707, sr) },
			freq:   1000,
			wantLo: 0.97,
			wantHi: 1.03,
		},
		{
			name:   "hpf cuts a decade below cutoff",
			setup:  func(f *biquad) { f.updateHPF(1000, 0.707, sr) },
			freq:   100,
			wantLo: 0,
			wantHi: 0.05,
		},
		{
			name:   "lpf passes well below cutoff",
			setup:  func(f *biquad) { f.updateLPF(4000, 0.707, sr) },
			freq:   500,
			wantLo: 0.97,
			wantHi: 1.03,
		},
		{
			name:   "lpf cuts a decade above cutoff",
			setup:  func(f *biquad) { f.updateLPF(500, 0.707, sr) },
			freq:   5000,
			wantLo: 0,
			wantHi: 0.05,
		},
		{
			name:   "high shelf boosts the top by its gain",
			setup:  func(f *biquad) { f.updateHighShelf(2000, 1.0, 6, sr) },
			freq:   10000,
			wantLo: 1.8,
			wantHi: 2.1,
		},
		{
			name:   "low shelf cuts the bottom by its gain",
			setup:  func(f *biquad) { f.updateLowShelf(2000, 0.707, -6, sr) },
			freq:   200,
			wantLo: 0.45,
			wantHi: 0.56,
		},
		{
			name:   "peaking boost lands on center",
			setup:  func(f *biquad) { f.updatePeaking(1000, 2.0, 6, sr) },
			freq:   1000,
			wantLo: 1.9,
			wantHi: 2.05,
		},
		{
			name:   "peaking stays flat off center",
			setup:  func(f *biquad) { f.updatePeaking(1000, 2.0, 6, sr) },
			freq:   100,
			wantLo: 0.97,
			wantHi: 1.05,
		},
		{
			name:   "shelf under the gain threshold is identity",
			setup:  func(f *biquad) { f.updateHighShelf(2000, 1.0, 0.005, sr) },
			freq:   5000,
			wantLo: 0.999,
			wantHi: 1.001,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBiquad()
			tt.setup(&f)
			got := filterGainAt(&f, tt.freq, sr)
			if got < tt.wantLo || got > tt.wantHi {
				t.Errorf("gain at %.0f Hz = %v, want in [%v, %v]", tt.freq, got, tt.wantLo, tt.wantHi)
			}
		})
	}
}

func TestBiquadQFormShelfMatchesGainAtExtremes(t *testing.T) {
	const sr = 48000.0
	f := newBiquad()
	f.updateHighShelfQ(kwShelfHz, kwShelfQ, kwShelfGainDB, sr)

	// The K-weighting shelf should be flat at the bottom of the band and
	// close to its full +4 dB at the top.
	if got := filterGainAt(&f, 100, sr); got < 0.99 || got > 1.01 {
		t.Errorf("K shelf gain at 100 Hz = %v, want ~1", got)
	}
	f.resetState()
	want := math.Pow(10, kwShelfGainDB/20)
	if got := filterGainAt(&f, 15000, sr); got < want*0.96 || got > want*1.04 {
		t.Errorf("K shelf gain at 15 kHz = %v, want ~%v", got, want)
	}
}

func TestBiquadResetStateSilencesTail(t *testing.T) {
	f := newBiquad()
	f.updateLPF(1000, 0.707, 48000)

	f.process(1)
	ringing := false
	for i := 0; i < 8; i++ {
		if math.Abs(f.process(0)) > 1e-6 {
			ringing = true
		}
	}
	if !ringing {
		t.Fatal("impulse produced no tail, response measurement is broken")
	}

	f.resetState()
	for i := 0; i < 32; i++ {
		if y := f.process(0); math.Abs(y) > 1e-12 {
			t.Fatalf("sample %d after reset = %v, want silence", i, y)
		}
	}
}

func TestBandFilterPairIsolatesBand(t *testing.T) {
	const sr = 48000.0

	bandEnergy := func(freq float64) float64 {
		var pair bandFilterPair
		pair.init(200, 500, sr)
		var sum float64
		for i := 0; i < 9600; i++ {
			x := 0.5 * math.Sin(2*math.Pi*freq*float64(i)/sr)
			e := pair.energy(x, x)
			if i >= 4800 {
				sum += e
			}
		}
		return sum
	}

	inBand := bandEnergy(300)
	outOfBand := bandEnergy(4000)
	if inBand < outOfBand*50 {
		t.Errorf("in-band energy %v not dominant over out-of-band %v", inBand, outOfBand)
	}
}
