package dsp

// SpeechHPF strips subsonic energy below the voice range before anything
// downstream can learn from it. Hidden hygiene; no user control.
type SpeechHPF struct {
	filterL biquad
	filterR biquad
}

const (
	speechHPFCutoffHz = 90.0
	speechHPFQ        = 0.707
)

// NewSpeechHPF builds the filter pair for a sample rate.
func NewSpeechHPF(sampleRate float64) *SpeechHPF {
	h := &SpeechHPF{
		filterL: newBiquad(),
		filterR: newBiquad(),
	}
	h.filterL.updateHPF(speechHPFCutoffHz, speechHPFQ, sampleRate)
	h.filterR.updateHPF(speechHPFCutoffHz, speechHPFQ, sampleRate)
	return h
}

// Prepare re-tunes for a new sample rate.
func (h *SpeechHPF) Prepare(sampleRate float64) {
	h.filterL.updateHPF(speechHPFCutoffHz, speechHPFQ, sampleRate)
	h.filterR.updateHPF(speechHPFCutoffHz, speechHPFQ, sampleRate)
}

// Process advances one stereo sample.
func (h *SpeechHPF) Process(left, right float64) (float64, float64) {
	return h.filterL.process(left), h.filterR.process(right)
}

// Reset clears filter state.
func (h *SpeechHPF) Reset() {
	h.filterL.resetState()
	h.filterR.resetState()
}

const safetyHPFCutoffHz = 80.0

// SafetyHPF is the per-channel 80 Hz guard in front of the de-verb stage.
// It catches low-frequency buildup the restoration stages can introduce.
type SafetyHPF struct {
	filter biquad
}

// NewSafetyHPF builds the filter for a sample rate.
func NewSafetyHPF(sampleRate float64) *SafetyHPF {
	h := &SafetyHPF{filter: newBiquad()}
	h.filter.updateHPF(safetyHPFCutoffHz, speechHPFQ, sampleRate)
	return h
}

// Prepare re-tunes for a new sample rate.
func (h *SafetyHPF) Prepare(sampleRate float64) {
	h.filter.updateHPF(safetyHPFCutoffHz, speechHPFQ, sampleRate)
}

// Process advances one sample.
func (h *SafetyHPF) Process(in float64) float64 {
	return h.filter.process(in)
}

// Reset clears filter state.
func (h *SafetyHPF) Reset() {
	h.filter.resetState()
}
