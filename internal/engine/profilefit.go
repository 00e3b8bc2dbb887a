package engine

import (
	"math"

	"github.com/voicemend/voicemend/internal/dsp"
)

// TargetProfile is the measurement envelope the calibration layer steers
// toward. Immutable at runtime; calibration only ever compares against it.
type TargetProfile struct {
	RMSMin           float64
	RMSMax           float64
	CrestDBMin       float64
	CrestDBMax       float64
	RMSVarianceMax   float64
	NoiseFloorMin    float64
	NoiseFloorMax    float64
	SNRDBMin         float64
	EarlyLateMin     float64
	EarlyLateMax     float64
	DecaySlopeMin    float64
	DecaySlopeMax    float64
	PresenceRatioMax float64
	AirRatioMax      float64
	HFVarianceMax    float64
}

// ProfessionalVO is the default target envelope, taken from measured
// reference voice-over recordings.
var ProfessionalVO = TargetProfile{
	RMSMin:           0.045,
	RMSMax:           0.060,
	CrestDBMin:       23.0,
	CrestDBMax:       27.0,
	RMSVarianceMax:   0.0015,
	NoiseFloorMin:    0.010,
	NoiseFloorMax:    0.015,
	SNRDBMin:         10.0,
	EarlyLateMin:     0.50,
	EarlyLateMax:     0.70,
	DecaySlopeMin:    -0.0001,
	DecaySlopeMax:    0.0001,
	PresenceRatioMax: 0.01,
	AirRatioMax:      0.005,
	HFVarianceMax:    3e-7,
}

// TargetProfileAround builds a target centred on a measured profile: the
// two-sided ranges borrow the professional-voiceover band widths and the
// one-sided caps get 20% headroom. Backs the external calibration snapshot
// event.
func TargetProfileAround(p dsp.AudioProfile) TargetProfile {
	return TargetProfile{
		RMSMin:           math.Max(p.RMS-0.0075, 0),
		RMSMax:           p.RMS + 0.0075,
		CrestDBMin:       p.CrestFactorDB - 2,
		CrestDBMax:       p.CrestFactorDB + 2,
		RMSVarianceMax:   p.RMSVariance * 1.2,
		NoiseFloorMin:    math.Max(p.NoiseFloor-0.0025, 0),
		NoiseFloorMax:    p.NoiseFloor + 0.0025,
		SNRDBMin:         p.SNRDB - 2,
		EarlyLateMin:     math.Max(p.EarlyLateRatio-0.1, 0),
		EarlyLateMax:     p.EarlyLateRatio + 0.1,
		DecaySlopeMin:    p.DecaySlope - 0.0001,
		DecaySlopeMax:    p.DecaySlope + 0.0001,
		PresenceRatioMax: p.PresenceRatio * 1.2,
		AirRatioMax:      p.AirRatio * 1.2,
		HFVarianceMax:    p.HFVariance * 1.2,
	}
}

func inRange(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}

// Contains reports whether every metric of the profile sits inside the
// target envelope. Drives clean-audio detection.
func (t TargetProfile) Contains(p dsp.AudioProfile) bool {
	return inRange(p.RMS, t.RMSMin, t.RMSMax) &&
		inRange(p.CrestFactorDB, t.CrestDBMin, t.CrestDBMax) &&
		p.RMSVariance <= t.RMSVarianceMax &&
		p.SNRDB >= t.SNRDBMin &&
		inRange(p.EarlyLateRatio, t.EarlyLateMin, t.EarlyLateMax) &&
		inRange(p.DecaySlope, t.DecaySlopeMin, t.DecaySlopeMax) &&
		p.PresenceRatio <= t.PresenceRatioMax &&
		p.AirRatio <= t.AirRatioMax &&
		p.HFVariance <= t.HFVarianceMax
}

// DetectedConditions are hard-rule classifications of the input. They gate
// calibration caps and the spectral control slew; they never touch audio
// directly.
type DetectedConditions struct {
	// Whisper: breathy HF content with low SNR.
	Whisper bool
	// DistantMic: diffuse reverb field with sustained decay.
	DistantMic bool
	// NoisyEnvironment: high noise floor with poor SNR.
	NoisyEnvironment bool
	// CleanAudio: already at professional quality.
	CleanAudio bool
}

// DetectConditions applies the threshold rules to one profile snapshot.
// DistantMic here is the raw rule; the calibrator wraps it in hysteresis.
func DetectConditions(p dsp.AudioProfile) DetectedConditions {
	return DetectedConditions{
		Whisper:          p.HFVariance > 1e-6 && p.SNRDB < 15.0,
		DistantMic:       p.EarlyLateRatio < 0.05 && p.DecaySlope < -0.0005,
		NoisyEnvironment: p.NoiseFloor > 0.05 && p.SNRDB < 6.0,
		CleanAudio:       p.SNRDB >= 10.0 && p.EarlyLateRatio >= 0.4 && p.HFVariance <= 3e-7,
	}
}
