package dsp

import "testing"

// stepExpander advances n identical samples and returns the last left output.
func stepExpander(e *SpeechExpander, in, amount float64, sc SpeechSidechain, rms float64, n int) float64 {
	env := VoiceEnvelope{RMS: rms}
	out := in
	for i := 0; i < n; i++ {
		out, _ = e.Process(in, in, amount, sc, env, env)
	}
	return out
}

func TestSpeechExpanderZeroAmountPassesThrough(t *testing.T) {
	e := NewSpeechExpander(48000)
	sc := SpeechSidechain{NoiseFloorDB: -40}
	if out := stepExpander(e, 0.25, 0, sc, 0.005, 100); out != 0.25 {
		t.Errorf("out = %v at zero amount, want untouched 0.25", out)
	}
}

func TestSpeechExpanderQuietRoomStaysTransparent(t *testing.T) {
	e := NewSpeechExpander(48000)
	sc := SpeechSidechain{NoiseFloorDB: -40}
	if out := stepExpander(e, 0.001, 1, sc, 0.0005, 4800); out != 0.001 {
		t.Errorf("out = %v on an already quiet room, want untouched input", out)
	}
}

func TestSpeechExpanderAttenuatesPauses(t *testing.T) {
	e := NewSpeechExpander(48000)
	sc := SpeechSidechain{Confidence: 0, NoiseFloorDB: -40}

	out := stepExpander(e, 0.5, 1, sc, 0.005, 9600)
	if ratio := out / 0.5; ratio < 0.24 || ratio > 0.27 {
		t.Errorf("pause gain = %v, want the full 12 dB cut engaged", ratio)
	}
	if got := e.ThresholdDB(); got != -34 {
		t.Errorf("ThresholdDB() = %v, want noise floor plus offset", got)
	}
	if red := e.GainReductionDB(); red < 11.9 || red > 12.0001 {
		t.Errorf("GainReductionDB() = %v, want the attenuation cap", red)
	}
}

func TestSpeechExpanderAmountScalesDepth(t *testing.T) {
	e := NewSpeechExpander(48000)
	sc := SpeechSidechain{Confidence: 0, NoiseFloorDB: -40}

	stepExpander(e, 0.5, 0.5, sc, 0.005, 9600)
	if red := e.GainReductionDB(); red < 5.9 || red > 6.1 {
		t.Errorf("GainReductionDB() = %v at half amount, want about 6", red)
	}
}

func TestSpeechExpanderSpeechConfidenceDisablesCut(t *testing.T) {
	e := NewSpeechExpander(48000)
	sc := SpeechSidechain{Confidence: 1, NoiseFloorDB: -40}
	env := VoiceEnvelope{RMS: 0.005}

	for i := 0; i < 4800; i++ {
		l, r := e.Process(0.5, -0.5, 1, sc, env, env)
		if l != 0.5 || r != -0.5 {
			t.Fatalf("sample %d altered to (%v, %v) during confident speech", i, l, r)
		}
	}
}

func TestSpeechExpanderHoldBridgesShortDips(t *testing.T) {
	e := NewSpeechExpander(48000)
	loud := SpeechSidechain{Confidence: 0, NoiseFloorDB: -40}
	stepExpander(e, 0.5, 1, loud, 0.1, 2400)

	stepExpander(e, 0.5, 1, loud, 0.005, 3000)
	if red := e.GainReductionDB(); red > 0.01 {
		t.Errorf("GainReductionDB() = %v inside the hold window, want no cut yet", red)
	}

	stepExpander(e, 0.5, 1, loud, 0.005, 840+4800)
	if red := e.GainReductionDB(); red < 6 {
		t.Errorf("GainReductionDB() = %v after the hold expired, want the cut engaged", red)
	}
}

func TestSpeechExpanderReleasesIntoSpeechOnset(t *testing.T) {
	e := NewSpeechExpander(48000)
	sc := SpeechSidechain{Confidence: 0, NoiseFloorDB: -40}
	stepExpander(e, 0.5, 1, sc, 0.005, 9600)

	stepExpander(e, 0.5, 1, sc, 0.1, 28800)
	if red := e.GainReductionDB(); red > 0.3 {
		t.Errorf("GainReductionDB() = %v well after the onset, want released", red)
	}
}
