package dsp

// Hiss/rumble processor: dedicated broadband cleanup that does not depend on
// denoiser speech gating, so it keeps working through silence. Rumble raises
// the HPF cutoff; hiss cuts a high shelf, relaxed while speech is present to
// protect sibilance.
const (
	rumbleMinHz = 20.0
	rumbleMaxHz = 70.0

	hissShelfHz   = 8000.0
	hissMaxCutDB  = -24.0
	toneSmooth    = 0.02
	toneUpdateMod = 31
)

// HissRumble is stereo with per-channel filter state.
type HissRumble struct {
	rumbleL biquad
	rumbleR biquad
	hissL   biquad
	hissR   biquad

	sampleRate float64

	rumbleHzCurrent float64
	rumbleHzTarget  float64

	hissDBCurrent float64
	hissDBTarget  float64

	updateCounter uint32
}

// NewHissRumble builds the processor for a sample rate, starting flat.
func NewHissRumble(sampleRate float64) *HissRumble {
	h := &HissRumble{
		rumbleL:    newBiquad(),
		rumbleR:    newBiquad(),
		hissL:      newBiquad(),
		hissR:      newBiquad(),
		sampleRate: sampleRate,

		rumbleHzCurrent: rumbleMinHz,
		rumbleHzTarget:  rumbleMinHz,
	}
	h.rumbleL.updateHPF(rumbleMinHz, 0.707, sampleRate)
	h.rumbleR.updateHPF(rumbleMinHz, 0.707, sampleRate)
	return h
}

// Process advances one stereo sample. rumbleAmount and hissAmount are
// independent [0,1] controls.
func (h *HissRumble) Process(inputL, inputR, rumbleAmount, hissAmount float64, sc SpeechSidechain) (float64, float64) {
	h.rumbleHzTarget = rumbleMinHz + (rumbleMaxHz-rumbleMinHz)*clamp01(rumbleAmount)

	speechRelax := clamp01(1 - sc.Confidence)
	h.hissDBTarget = hissMaxCutDB * clamp01(hissAmount) * speechRelax

	h.rumbleHzCurrent += (h.rumbleHzTarget - h.rumbleHzCurrent) * toneSmooth
	h.hissDBCurrent += (h.hissDBTarget - h.hissDBCurrent) * toneSmooth

	// Coefficient updates are throttled; the parameter smoothing above keeps
	// the steps inaudible.
	if h.updateCounter&toneUpdateMod == 0 {
		h.rumbleL.updateHPF(h.rumbleHzCurrent, 0.707, h.sampleRate)
		h.rumbleR.updateHPF(h.rumbleHzCurrent, 0.707, h.sampleRate)
		h.hissL.updateHighShelf(hissShelfHz, 0.707, h.hissDBCurrent, h.sampleRate)
		h.hissR.updateHighShelf(hissShelfHz, 0.707, h.hissDBCurrent, h.sampleRate)
	}
	h.updateCounter++

	l := h.hissL.process(h.rumbleL.process(inputL))
	r := h.hissR.process(h.rumbleR.process(inputR))
	return l, r
}

// RumbleHz reports the engaged HPF cutoff for metering.
func (h *HissRumble) RumbleHz() float64 {
	return h.rumbleHzCurrent
}

// HissCutDB reports the engaged shelf cut for metering.
func (h *HissRumble) HissCutDB() float64 {
	return h.hissDBCurrent
}

// SetSampleRate re-tunes the processor and clears state.
func (h *HissRumble) SetSampleRate(sampleRate float64) {
	h.sampleRate = sampleRate
	h.Reset()
}

// Reset clears filter and smoothing state.
func (h *HissRumble) Reset() {
	h.rumbleL.resetState()
	h.rumbleR.resetState()
	h.hissL.resetState()
	h.hissR.resetState()
	h.rumbleL.updateHPF(rumbleMinHz, 0.707, h.sampleRate)
	h.rumbleR.updateHPF(rumbleMinHz, 0.707, h.sampleRate)
	h.hissL.setIdentity()
	h.hissR.setIdentity()

	h.rumbleHzCurrent = rumbleMinHz
	h.rumbleHzTarget = rumbleMinHz
	h.hissDBCurrent = 0
	h.hissDBTarget = 0

	h.updateCounter = 0
}
