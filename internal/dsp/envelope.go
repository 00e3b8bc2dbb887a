package dsp

import "math"

// Envelope time constants, chosen for spoken voice:
// fast follows transients and sibilance, slow follows syllables and phrases,
// the RMS window integrates true energy, and the noise floor rises far slower
// than speech so it settles on the constant bottom of the signal.
const (
	envFastAttackMS   = 1.0
	envFastReleaseMS  = 60.0
	envSlowAttackMS   = 20.0
	envSlowReleaseMS  = 300.0
	envRMSWindowMS    = 20.0
	envNoiseAttackMS  = 5000.0
	envNoiseReleaseMS = 100.0

	// Slow envelope this far above the noise floor counts as full confidence.
	envConfidenceSNRDB = 12.0
)

// VoiceEnvelope is the per-sample envelope snapshot shared by the dynamics
// stages. It is produced once per channel per sample, upstream of anything
// that alters dynamics, and consumed read-only.
type VoiceEnvelope struct {
	// Fast tracks peaks and transients; feeds the de-esser and expander.
	Fast float64
	// Slow tracks syllable and phrase level; feeds the leveler and gate logic.
	Slow float64
	// RMS is the integrated energy view used for threshold decisions.
	RMS float64
	// Confidence is an SNR heuristic in [0,1].
	Confidence float64
	// NoiseFloor is the tracked constant bottom of the signal.
	NoiseFloor float64
}

// EnvelopeTracker computes VoiceEnvelope snapshots for one channel.
type EnvelopeTracker struct {
	fastAtt, fastRel   float64
	slowAtt, slowRel   float64
	rmsAlpha           float64
	noiseAtt, noiseRel float64

	fast  float64
	slow  float64
	rmsSq float64
	noise float64
}

// NewEnvelopeTracker builds a tracker for the given sample rate.
func NewEnvelopeTracker(sampleRate float64) *EnvelopeTracker {
	t := &EnvelopeTracker{noise: 1e-4}
	t.prepare(sampleRate)
	return t
}

func (t *EnvelopeTracker) prepare(sampleRate float64) {
	t.fastAtt = timeConstantCoeff(envFastAttackMS, sampleRate)
	t.fastRel = timeConstantCoeff(envFastReleaseMS, sampleRate)
	t.slowAtt = timeConstantCoeff(envSlowAttackMS, sampleRate)
	t.slowRel = timeConstantCoeff(envSlowReleaseMS, sampleRate)

	rmsSamples := math.Max(envRMSWindowMS*0.001*sampleRate, 1)
	t.rmsAlpha = 1 - math.Exp(-1/rmsSamples)

	t.noiseAtt = timeConstantCoeff(envNoiseAttackMS, sampleRate)
	t.noiseRel = timeConstantCoeff(envNoiseReleaseMS, sampleRate)
}

// ProcessSample advances the tracker and returns the envelope snapshot.
func (t *EnvelopeTracker) ProcessSample(in float64) VoiceEnvelope {
	xAbs := math.Abs(in)
	xSq := xAbs * xAbs

	if xAbs > t.fast {
		t.fast += t.fastAtt * (xAbs - t.fast)
	} else {
		t.fast += t.fastRel * (xAbs - t.fast)
	}

	if xAbs > t.slow {
		t.slow += t.slowAtt * (xAbs - t.slow)
	} else {
		t.slow += t.slowRel * (xAbs - t.slow)
	}

	t.rmsSq += t.rmsAlpha * (xSq - t.rmsSq)
	if t.rmsSq < 0 {
		t.rmsSq = 0
	}

	// Noise floor: drop fast when the signal dips below the estimate, rise
	// very slowly otherwise so speech never drags the floor upward.
	if xAbs < t.noise {
		t.noise += t.noiseRel * (xAbs - t.noise)
	} else {
		t.noise += t.noiseAtt * (xAbs - t.noise)
	}

	snr := gainToDB(math.Max(t.slow, dbEps)) - gainToDB(math.Max(t.noise, dbEps))

	return VoiceEnvelope{
		Fast:       t.fast,
		Slow:       t.slow,
		RMS:        math.Sqrt(t.rmsSq),
		Confidence: clamp01(snr / envConfidenceSNRDB),
		NoiseFloor: t.noise,
	}
}

// Reset clears the tracker state.
func (t *EnvelopeTracker) Reset() {
	t.fast = 0
	t.slow = 0
	t.rmsSq = 0
	t.noise = 1e-4
}
