package dsp

import "math"

// Slew limits for spectrally sensitive controls. Fast frame-to-frame control
// changes in the spectral stages cause metallic shimmer and warble, so their
// targets are rate-limited per block. Broadband gains (leveler, limiter,
// output) are intentionally exempt.
const (
	baseSlewPerFrame   = 0.015
	whisperSlewMult    = 0.5
	noisySlewMult      = 0.75
	absMaxSlewPerFrame = 0.05
)

// ControlSlew rate-limits a single control value. The first write snaps to
// the target so startup never slews from zero.
type ControlSlew struct {
	current     float64
	initialized bool
}

// Process moves toward target at a rate bounded by the detected conditions
// and returns the limited value.
func (s *ControlSlew) Process(target float64, whisper, noisy bool) float64 {
	if !s.initialized {
		s.current = target
		s.initialized = true
		return target
	}

	limit := slewLimitFor(whisper, noisy)
	delta := target - s.current
	if math.Abs(delta) > limit {
		delta = clamp(delta, -limit, limit)
	}
	s.current += delta
	return s.current
}

func slewLimitFor(whisper, noisy bool) float64 {
	limit := baseSlewPerFrame
	switch {
	case whisper:
		limit *= whisperSlewMult
	case noisy:
		limit *= noisySlewMult
	}
	return math.Min(limit, absMaxSlewPerFrame)
}

// Reset returns the limiter to its uninitialized state.
func (s *ControlSlew) Reset() {
	s.current = 0
	s.initialized = false
}

// Current reports the limited value without advancing it.
func (s *ControlSlew) Current() float64 {
	return s.current
}

// LimitedControls carries the slew-limited spectral control set plus the
// safeguard decisions that shaped it, for meter reporting.
type LimitedControls struct {
	Denoise   float64
	Clarity   float64
	DeEsser   float64
	Reverb    float64
	Proximity float64

	SpeechProtectionActive bool
	SpeechProtectionScale  float64
	EnergyBudgetActive     bool
	EnergyBudgetScale      float64
}

// SpectralControlLimiters slew-limits the five spectral controls together and
// applies two pre-slew safeguards: an energy budget that backs off reverb
// reduction when denoise is already removing a lot, and a speech-band
// protection that scales down both subtractive stages when measured
// speech-band loss exceeds 2 dB.
type SpectralControlLimiters struct {
	denoise   ControlSlew
	clarity   ControlSlew
	deesser   ControlSlew
	reverb    ControlSlew
	proximity ControlSlew
}

// Process applies safeguards then slew-limits each control.
func (l *SpectralControlLimiters) Process(denoise, clarity, deesser, reverb, proximity float64, whisper, noisy bool, speechLossDB float64) LimitedControls {
	// Energy budget: denoise and reverb reduction stack; past 0.4 denoise the
	// reverb stage gives ground, bottoming out at 60%.
	reverbBudgetScale := 1.0
	if denoise > 0.4 {
		excess := (denoise - 0.4) / 0.4
		reverbBudgetScale = clamp(1-excess*0.4, 0.6, 1.0)
	}

	speechProtectionScale := 1.0
	if speechLossDB < -2 {
		deficit := -2 - speechLossDB
		speechProtectionScale = clamp(1-math.Min(deficit/5, 0.4), 0.6, 1.0)
	}

	finalDenoise := denoise * speechProtectionScale
	finalReverb := reverb * reverbBudgetScale * speechProtectionScale

	return LimitedControls{
		Denoise:   l.denoise.Process(finalDenoise, whisper, noisy),
		Clarity:   l.clarity.Process(clarity, whisper, noisy),
		DeEsser:   l.deesser.Process(deesser, whisper, noisy),
		Reverb:    l.reverb.Process(finalReverb, whisper, noisy),
		Proximity: l.proximity.Process(proximity, whisper, noisy),

		SpeechProtectionActive: speechProtectionScale < 0.99,
		SpeechProtectionScale:  speechProtectionScale,
		EnergyBudgetActive:     reverbBudgetScale < 0.99,
		EnergyBudgetScale:      reverbBudgetScale,
	}
}

// Reset clears all limiter state.
func (l *SpectralControlLimiters) Reset() {
	l.denoise.Reset()
	l.clarity.Reset()
	l.deesser.Reset()
	l.reverb.Reset()
	l.proximity.Reset()
}
