package dsp

import (
	"math"
	"testing"
)

// stepEnvelope feeds n copies of a constant level and returns the last
// snapshot. Constant drive makes the one-pole recursions exactly solvable,
// so expectations below come straight from the published time constants.
func stepEnvelope(tr *EnvelopeTracker, level float64, n int) VoiceEnvelope {
	var env VoiceEnvelope
	for i := 0; i < n; i++ {
		env = tr.ProcessSample(level)
	}
	return env
}

func TestEnvelopeStepBallistics(t *testing.T) {
	tr := NewEnvelopeTracker(48000)

	// 20 ms at 0.5: the 1 ms fast stage is fully settled, the 20 ms slow
	// stage has covered one time constant, RMS likewise.
	env := stepEnvelope(tr, 0.5, 960)

	wantFast := 0.5 * (1 - math.Exp(-960.0/48))
	wantSlow := 0.5 * (1 - math.Exp(-960.0/960))
	wantRMS := 0.5 * math.Sqrt(1-math.Exp(-960.0/960))

	if math.Abs(env.Fast-wantFast) > 1e-9 {
		t.Errorf("Fast = %v, want %v", env.Fast, wantFast)
	}
	if math.Abs(env.Slow-wantSlow) > 1e-9 {
		t.Errorf("Slow = %v, want %v", env.Slow, wantSlow)
	}
	if math.Abs(env.RMS-wantRMS) > 1e-9 {
		t.Errorf("RMS = %v, want %v", env.RMS, wantRMS)
	}
	if env.Fast <= env.Slow {
		t.Errorf("fast stage %v should lead slow stage %v on attack", env.Fast, env.Slow)
	}
}

func TestEnvelopeReleaseOrdering(t *testing.T) {
	tr := NewEnvelopeTracker(48000)
	held := stepEnvelope(tr, 0.5, 4800)

	// 100 ms of silence: fast releases on a 60 ms constant, slow on 300 ms,
	// so slow must now sit above fast.
	got := stepEnvelope(tr, 0, 4800)

	wantFast := held.Fast * math.Exp(-4800.0/2880)
	wantSlow := held.Slow * math.Exp(-4800.0/14400)

	if math.Abs(got.Fast-wantFast) > 1e-9 {
		t.Errorf("Fast after release = %v, want %v", got.Fast, wantFast)
	}
	if math.Abs(got.Slow-wantSlow) > 1e-9 {
		t.Errorf("Slow after release = %v, want %v", got.Slow, wantSlow)
	}
	if got.Fast >= got.Slow {
		t.Errorf("fast %v should release below slow %v", got.Fast, got.Slow)
	}
}

func TestEnvelopeNoiseFloorAsymmetry(t *testing.T) {
	tr := NewEnvelopeTracker(48000)

	// 100 ms at 0.2 barely moves the 5 s upward constant.
	env := stepEnvelope(tr, 0.2, 4800)
	wantRise := 0.2 + (1e-4-0.2)*math.Exp(-4800.0/240000)
	if math.Abs(env.NoiseFloor-wantRise) > 1e-9 {
		t.Errorf("NoiseFloor after speech = %v, want %v", env.NoiseFloor, wantRise)
	}
	if env.NoiseFloor > 0.01 {
		t.Errorf("NoiseFloor %v climbed toward speech level 0.2", env.NoiseFloor)
	}
	if env.Confidence != 1 {
		t.Errorf("Confidence = %v, want clamped to 1 with this much headroom", env.Confidence)
	}

	// 20 ms of silence drops it visibly, the 100 ms downward constant is
	// fifty times faster than the climb.
	got := stepEnvelope(tr, 0, 960)
	wantFall := env.NoiseFloor * math.Exp(-960.0/4800)
	if math.Abs(got.NoiseFloor-wantFall) > 1e-9 {
		t.Errorf("NoiseFloor after silence = %v, want %v", got.NoiseFloor, wantFall)
	}
}

func TestEnvelopeResetClearsState(t *testing.T) {
	tr := NewEnvelopeTracker(48000)
	stepEnvelope(tr, 0.5, 4800)

	tr.Reset()
	env := tr.ProcessSample(0)

	if env.Fast != 0 || env.Slow != 0 || env.RMS != 0 {
		t.Errorf("envelopes after reset = %+v, want zeros", env)
	}
	if env.Confidence != 0 {
		t.Errorf("Confidence after reset = %v, want 0", env.Confidence)
	}
	if env.NoiseFloor > 1e-4 || env.NoiseFloor < 9e-5 {
		t.Errorf("NoiseFloor after reset = %v, want near the 1e-4 seed", env.NoiseFloor)
	}
}
