package dsp

import (
	"math"
	"testing"
)

func rmsOf(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

// feedLearnRemove streams an equal-channel sine through the stage and
// returns the left wet and removed outputs.
func feedLearnRemove(n *NoiseLearnRemove, cfg NoiseLearnConfig, sc SpeechSidechain, freq, amp float64, samples int) (out, removed []float64) {
	out = make([]float64, samples)
	removed = make([]float64, samples)
	w := 2 * math.Pi * freq / 48000.0
	for i := 0; i < samples; i++ {
		x := amp * math.Sin(w*float64(i))
		o, _, rm, _ := n.Process(x, x, cfg, sc)
		out[i] = o
		removed[i] = rm
	}
	return out, removed
}

func TestNoiseLearnRemoveLatency(t *testing.T) {
	n := NewNoiseLearnRemove(48000)
	if got := n.Latency(); got != wolaWinSize {
		t.Errorf("Latency() = %d, want %d", got, wolaWinSize)
	}
}

func TestNoiseLearnRemoveDisabledIsDelayedIdentity(t *testing.T) {
	n := NewNoiseLearnRemove(48000)
	samples := 5 * wolaWinSize
	in := make([]float64, samples)
	w := 2 * math.Pi * 997.0 / 48000.0
	for i := range in {
		in[i] = 0.4 * math.Sin(w*float64(i))
	}

	var worstRemoved, worstDelay float64
	for i, x := range in {
		out, _, rm, _ := n.Process(x, x, NoiseLearnConfig{}, SpeechSidechain{})
		worstRemoved = math.Max(worstRemoved, math.Abs(rm))
		if i >= wolaWinSize {
			worstDelay = math.Max(worstDelay, math.Abs(out-in[i-wolaWinSize]))
		}
	}
	if worstRemoved > 1e-9 {
		t.Errorf("disabled stage removed up to %g, want nothing", worstRemoved)
	}
	if worstDelay > 1e-9 {
		t.Errorf("disabled stage deviates from delayed input by %g", worstDelay)
	}
}

func TestNoiseLearnLearningGatedBySpeechConfidence(t *testing.T) {
	n := NewNoiseLearnRemove(48000)
	sc := SpeechSidechain{Confidence: 0.5}
	feedLearnRemove(n, NoiseLearnConfig{Learn: true}, sc, 997, 0.1, 48000)

	if n.HasProfile() {
		t.Error("profile learned while the sidechain reported speech")
	}
	if got := n.LearnProgress(); got != 0 {
		t.Errorf("LearnProgress() = %v, want 0", got)
	}
}

func TestNoiseLearnRemovesLearnedTone(t *testing.T) {
	n := NewNoiseLearnRemove(48000)

	learnSamples := 3 * 48000
	feedLearnRemove(n, NoiseLearnConfig{Learn: true}, SpeechSidechain{}, 997, 0.1, learnSamples)

	if !n.HasProfile() {
		t.Fatal("no profile after 3 s of learning on silence")
	}
	frames := (learnSamples-wolaWinSize)/wolaHopSize + 1
	wantProgress := float64(frames) / float64(n.detector.maxLearnFrames)
	if got := n.LearnProgress(); math.Abs(got-wantProgress) > 1e-9 {
		t.Errorf("LearnProgress() = %v, want %v", got, wantProgress)
	}
	if q := n.Quality(); q < 0.5 || q > 1 {
		t.Errorf("Quality() = %v on a stationary fingerprint, want in (0.5, 1]", q)
	}

	cfg := NoiseLearnConfig{Enabled: true, Amount: 1}
	out, removed := feedLearnRemove(n, cfg, SpeechSidechain{}, 997, 0.1, 2*48000)

	tail := 48000
	inRMS := 0.1 / math.Sqrt2
	outRMS := rmsOf(out[len(out)-tail:])
	remRMS := rmsOf(removed[len(removed)-tail:])
	if outRMS > 0.15*inRMS {
		t.Errorf("learned tone leaks through: out RMS %v of input %v", outRMS, inRMS)
	}
	if remRMS < 0.8*inRMS {
		t.Errorf("removed RMS %v, want close to input %v", remRMS, inRMS)
	}
}

func TestNoiseLearnOutputPlusRemovedIsDelayedInput(t *testing.T) {
	n := NewNoiseLearnRemove(48000)
	feedLearnRemove(n, NoiseLearnConfig{Learn: true}, SpeechSidechain{}, 997, 0.1, 2*48000)

	samples := 6 * wolaWinSize
	in := make([]float64, samples)
	w := 2 * math.Pi * 997.0 / 48000.0
	for i := range in {
		in[i] = 0.1 * math.Sin(w*float64(i))
	}

	cfg := NoiseLearnConfig{Enabled: true, Amount: 0.7}
	var worst float64
	for i, x := range in {
		out, _, rm, _ := n.Process(x, x, cfg, SpeechSidechain{Confidence: 0.3})
		if i >= wolaWinSize {
			worst = math.Max(worst, math.Abs(in[i-wolaWinSize]-(out+rm)))
		}
	}
	if worst > 1e-9 {
		t.Errorf("out+removed deviates from delayed input by %g", worst)
	}
}

func TestNoiseLearnResetKeepsProfile(t *testing.T) {
	n := NewNoiseLearnRemove(48000)
	feedLearnRemove(n, NoiseLearnConfig{Learn: true}, SpeechSidechain{}, 997, 0.1, 48000)
	if !n.HasProfile() {
		t.Fatal("no profile after learning")
	}

	n.Reset()
	if !n.HasProfile() {
		t.Error("Reset() dropped the learned profile")
	}

	n.ClearProfile()
	if n.HasProfile() {
		t.Error("ClearProfile() kept the profile")
	}
	if got := n.LearnProgress(); got != 0 {
		t.Errorf("LearnProgress() = %v after clear, want 0", got)
	}
	if got := n.Quality(); got != 0 {
		t.Errorf("Quality() = %v after clear, want 0", got)
	}
}

func TestNoiseLearnClearFlagAndSampleRateDropProfile(t *testing.T) {
	n := NewNoiseLearnRemove(48000)
	feedLearnRemove(n, NoiseLearnConfig{Learn: true}, SpeechSidechain{}, 997, 0.1, 24000)
	if !n.HasProfile() {
		t.Fatal("no profile after learning")
	}

	n.Process(0, 0, NoiseLearnConfig{Clear: true}, SpeechSidechain{})
	if n.HasProfile() {
		t.Error("Clear flag did not drop the profile")
	}

	feedLearnRemove(n, NoiseLearnConfig{Learn: true}, SpeechSidechain{}, 997, 0.1, 24000)
	if !n.HasProfile() {
		t.Fatal("no profile after relearning")
	}
	n.SetSampleRate(44100)
	if n.HasProfile() {
		t.Error("sample rate change kept a profile tuned to stale bin frequencies")
	}
}
