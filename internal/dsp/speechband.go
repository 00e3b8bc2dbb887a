package dsp

import "math"

// Speech band bounds for the loss safeguard. The wide Q keeps the band edges
// gentle so the measurement tracks intelligibility energy rather than acting
// as a brick wall.
const (
	speechBandLowHz  = 300.0
	speechBandHighHz = 3000.0
	speechBandQ      = 0.5
	speechBandTauSec = 2.0
	speechBandEps    = 1e-10
)

// SpeechBandTracker measures average power in the 300 Hz to 3 kHz band with a
// slow envelope. One tracker sits before the subtractive restoration stages
// and one after; the dB ratio between them feeds the speech protection
// safeguard in SpectralControlLimiters.
type SpeechBandTracker struct {
	hpfL  biquad
	hpfR  biquad
	lpfL  biquad
	lpfR  biquad
	env   float64
	alpha float64
}

// NewSpeechBandTracker builds a tracker for a sample rate.
func NewSpeechBandTracker(sampleRate float64) *SpeechBandTracker {
	t := &SpeechBandTracker{
		hpfL: newBiquad(),
		hpfR: newBiquad(),
		lpfL: newBiquad(),
		lpfR: newBiquad(),
	}
	t.Prepare(sampleRate)
	return t
}

// Prepare retunes the band filters and envelope for a sample rate and clears
// state.
func (t *SpeechBandTracker) Prepare(sampleRate float64) {
	t.hpfL.updateHPF(speechBandLowHz, speechBandQ, sampleRate)
	t.hpfR.updateHPF(speechBandLowHz, speechBandQ, sampleRate)
	t.lpfL.updateLPF(speechBandHighHz, speechBandQ, sampleRate)
	t.lpfR.updateLPF(speechBandHighHz, speechBandQ, sampleRate)
	t.alpha = 1 - math.Exp(-1/(speechBandTauSec*sampleRate))
	t.Reset()
}

// Process advances one stereo frame.
func (t *SpeechBandTracker) Process(l, r float64) {
	bl := t.lpfL.process(t.hpfL.process(l))
	br := t.lpfR.process(t.hpfR.process(r))
	power := 0.5 * (bl*bl + br*br)
	t.env += t.alpha * (power - t.env)
}

// Energy reports the smoothed band power.
func (t *SpeechBandTracker) Energy() float64 {
	return t.env
}

// Reset clears filter and envelope state.
func (t *SpeechBandTracker) Reset() {
	t.hpfL.resetState()
	t.hpfR.resetState()
	t.lpfL.resetState()
	t.lpfR.resetState()
	t.env = 0
}

// SpeechBandLossDB compares band energy measured after the subtractive stages
// against the energy before them. Negative values mean the stages removed
// speech energy.
func SpeechBandLossDB(pre, post float64) float64 {
	ratio := (post + speechBandEps) / (pre + speechBandEps)
	return clamp(10*math.Log10(ratio), -24, 24)
}
