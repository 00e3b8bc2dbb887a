package engine

import (
	"math"

	"github.com/voicemend/voicemend/internal/dsp"
)

// Macro mapping curves. Every range minimum is zero so a macro at zero always
// maps to an advanced value of zero; the tone mapping is the exception, with
// 0.5 as its no-bias centre.
const (
	distanceReverbMax     = 0.85
	distanceProximityMax  = 0.7
	clarityNoiseMax       = 0.75
	clarityDeEssMax       = 0.6
	clarityToneCenter     = 0.5
	clarityToneRange      = 0.15
	clarityPresenceMax    = 0.5
	clarityBreathMax      = 0.4
	consistencyLevelerMax = 0.8
)

// mapDistanceToReverb biases reverb reduction toward the early part of the
// distance range, where early reflections dominate the distant impression.
func mapDistanceToReverb(d float64) float64 {
	return math.Pow(smoothstep01(d), 0.7) * distanceReverbMax
}

// mapDistanceToProximity starts gently and steepens so low settings cannot
// turn harsh from over-proximity.
func mapDistanceToProximity(d float64) float64 {
	return d * d * distanceProximityMax
}

func mapClarityToNoise(c float64) float64 {
	return c * clarityNoiseMax
}

// mapClarityToDeEss starts slow; the de-esser can be aggressive.
func mapClarityToDeEss(c float64) float64 {
	return smoothstep01(c) * clarityDeEssMax
}

// mapClarityToTone leans the residual-noise tone toward hiss cutting as
// clarity rises, preserving brightness.
func mapClarityToTone(c float64) float64 {
	return clamp(clarityToneCenter+c*clarityToneRange, 0, 1)
}

// mapConsistencyToLeveler uses an S-curve to smooth the middle range where
// pumping is most audible.
func mapConsistencyToLeveler(k float64) float64 {
	return smoothstep01(k) * consistencyLevelerMax
}

// MacroTargets is the advanced-parameter set a macro position requests.
type MacroTargets struct {
	NoiseReduction  float64
	ReverbReduction float64
	Proximity       float64
	Clarity         float64
	DeEsser         float64
	Leveler         float64
	BreathControl   float64
	Rumble          float64
	Hiss            float64
}

// computeMacroTargets maps the three macro knobs through the curve set and
// applies the calibration scales. The tone bias is expressed as the
// rumble/hiss pair: above centre biases hiss cutting, below centre rumble
// cutting. Leveler ignores the clean-audio attenuation so minimal leveling
// stays allowed on clean audio.
func computeMacroTargets(distance, clarity, consistency float64, cal CalibrationFactors) MacroTargets {
	atten := cal.CleanAudioAtten
	tone := mapClarityToTone(clarity)
	return MacroTargets{
		NoiseReduction:  mapClarityToNoise(clarity) * cal.Noise * atten,
		ReverbReduction: mapDistanceToReverb(distance) * cal.Reverb * atten,
		Proximity:       mapDistanceToProximity(distance) * cal.Proximity * atten,
		Clarity:         smoothstep01(clarity) * clarityPresenceMax * cal.Clarity * atten,
		DeEsser:         mapClarityToDeEss(clarity) * cal.DeEsser * atten,
		Leveler:         mapConsistencyToLeveler(consistency) * cal.Leveler,
		BreathControl:   clarity * clarityBreathMax * atten,
		Rumble:          clamp01((clarityToneCenter - tone) * 2),
		Hiss:            clamp01((tone - clarityToneCenter) * 2),
	}
}

// reverseMacroEstimate recovers approximate macro knob positions from an
// advanced parameter set by inverting each mapping curve and averaging per
// group. Lossy: many advanced sets collapse onto the same macro position.
func reverseMacroEstimate(reverb, proximity, noise, deess, leveler float64) (distance, clarity, consistency float64) {
	dReverb := invSmoothstep01(math.Pow(clamp01(reverb/distanceReverbMax), 1/0.7))
	dProx := math.Sqrt(clamp01(proximity / distanceProximityMax))
	distance = 0.5 * (dReverb + dProx)

	cNoise := clamp01(noise / clarityNoiseMax)
	cDeEss := invSmoothstep01(clamp01(deess / clarityDeEssMax))
	clarity = 0.5 * (cNoise + cDeEss)

	consistency = invSmoothstep01(clamp01(leveler / consistencyLevelerMax))
	return distance, clarity, consistency
}

// Calibration behavior.
const (
	calibrationSmoothCoeff = 0.92
	cleanAudioHysteresis   = 0.1
	cleanModeResidual      = 0.1

	distantEnterEarlyLate  = 0.05
	distantExitEarlyLate   = 0.10
	distantEnterDecaySlope = -0.0005
	distantExitDecaySlope  = -0.0002
	distantHoldSec         = 0.3
)

// CalibrationFactors scale the macro outputs by how far the measured profile
// sits from target. All ones means full macro authority.
type CalibrationFactors struct {
	Noise           float64
	Reverb          float64
	Proximity       float64
	Clarity         float64
	DeEsser         float64
	Leveler         float64
	CleanAudioAtten float64
}

func neutralCalibration() CalibrationFactors {
	return CalibrationFactors{
		Noise:           1,
		Reverb:          1,
		Proximity:       1,
		Clarity:         1,
		DeEsser:         1,
		Leveler:         1,
		CleanAudioAtten: 1,
	}
}

// smoothToward interpolates toward target factors. coeff 0 is instant, 1
// never moves.
func (f *CalibrationFactors) smoothToward(target CalibrationFactors, coeff float64) {
	blend := 1 - coeff
	f.Noise += (target.Noise - f.Noise) * blend
	f.Reverb += (target.Reverb - f.Reverb) * blend
	f.Proximity += (target.Proximity - f.Proximity) * blend
	f.Clarity += (target.Clarity - f.Clarity) * blend
	f.DeEsser += (target.DeEsser - f.DeEsser) * blend
	f.Leveler += (target.Leveler - f.Leveler) * blend
	f.CleanAudioAtten += (target.CleanAudioAtten - f.CleanAudioAtten) * blend
}

// maxScale is the strongest correction the factor set requests.
func (f CalibrationFactors) maxScale() float64 {
	m := f.Noise
	for _, v := range [...]float64{f.Reverb, f.Proximity, f.Clarity, f.DeEsser, f.Leveler} {
		if v > m {
			m = v
		}
	}
	return m
}

// softLanding rises from 0 at the target to 1 once distance exceeds the
// threshold, easing corrections off asymptotically instead of overshooting.
func softLanding(distance, threshold float64) float64 {
	if distance <= 0 {
		return 0
	}
	if distance >= threshold {
		return 1
	}
	t := distance / threshold
	return t * t * (3 - 2*t)
}

// Calibrator turns the measured input profile into smoothed calibration
// factors once per block. Distant detection carries asymmetric hysteresis
// with a hold so brief improvements cannot flicker the proximity mapping.
// Clean-audio mode releases only once the profile requests a correction
// stronger than the clean-mode residual plus a margin.
type Calibrator struct {
	target  TargetProfile
	factors CalibrationFactors
	pending CalibrationFactors
	cond    DetectedConditions

	wasClean    bool
	wasDistant  bool
	distantHold float64
	sampleRate  float64
}

// NewCalibrator starts from the professional voiceover target with neutral
// factors.
func NewCalibrator(sampleRate float64) *Calibrator {
	return &Calibrator{
		target:     ProfessionalVO,
		factors:    neutralCalibration(),
		pending:    neutralCalibration(),
		sampleRate: sampleRate,
	}
}

// SetTarget replaces the target profile. Used by the external calibration
// event; the calibrator never snapshots a target on its own.
func (c *Calibrator) SetTarget(t TargetProfile) { c.target = t }

// Target reports the active target profile.
func (c *Calibrator) Target() TargetProfile { return c.target }

// Update ingests one block's input profile and advances the smoothed factors.
func (c *Calibrator) Update(profile dsp.AudioProfile, blockFrames int) {
	c.cond = DetectConditions(profile)
	c.cond.DistantMic = c.distantWithHysteresis(profile, blockFrames)
	c.computeTargetFactors(profile)
	c.factors.smoothToward(c.pending, calibrationSmoothCoeff)
}

// Factors reports the smoothed calibration factors.
func (c *Calibrator) Factors() CalibrationFactors { return c.factors }

// Conditions reports the last detected conditions with hysteresis applied.
func (c *Calibrator) Conditions() DetectedConditions { return c.cond }

// Reset restores neutral factors and drops hysteresis state. The target
// profile is preserved.
func (c *Calibrator) Reset() {
	c.factors = neutralCalibration()
	c.pending = neutralCalibration()
	c.cond = DetectedConditions{}
	c.wasClean = false
	c.wasDistant = false
	c.distantHold = 0
}

// distantWithHysteresis applies asymmetric enter/exit thresholds plus a hold
// in samples. Entry is easy, exit needs both better ratios and an expired
// hold.
func (c *Calibrator) distantWithHysteresis(p dsp.AudioProfile, blockFrames int) bool {
	meetsEntry := p.EarlyLateRatio < distantEnterEarlyLate && p.DecaySlope < distantEnterDecaySlope
	meetsExit := p.EarlyLateRatio > distantExitEarlyLate || p.DecaySlope > distantExitDecaySlope

	if c.wasDistant {
		if meetsExit {
			if c.distantHold > 0 {
				c.distantHold -= float64(blockFrames)
				return true
			}
			c.wasDistant = false
			return false
		}
		c.distantHold = distantHoldSec * c.sampleRate
		return true
	}
	if meetsEntry {
		c.wasDistant = true
		c.distantHold = distantHoldSec * c.sampleRate
		return true
	}
	return false
}

func (c *Calibrator) computeTargetFactors(input dsp.AudioProfile) {
	raw := c.rawFactors(input)

	isClean := c.cond.CleanAudio || c.target.Contains(input)
	useClean := isClean
	if c.wasClean && !isClean {
		// Boundary wobble: stay clean until the profile requests a correction
		// clearly above the clean-mode residual.
		useClean = raw.maxScale() < cleanModeResidual+cleanAudioHysteresis
	}
	c.wasClean = useClean

	if useClean {
		c.pending = CalibrationFactors{
			Noise:           0.05,
			Clarity:         0.05,
			Leveler:         0.1,
			CleanAudioAtten: cleanModeResidual,
		}
		return
	}
	c.pending = raw
}

// rawFactors ladders each owned metric's distance-to-target through a soft
// landing, then applies the whisper/noisy condition caps.
func (c *Calibrator) rawFactors(input dsp.AudioProfile) CalibrationFactors {
	target := c.target
	cond := c.cond

	snrDistance := target.SNRDBMin - input.SNRDB
	noise := 0.0
	if snrDistance > 0 {
		noise = clamp01(snrDistance/10) * softLanding(snrDistance, 5)
	}
	switch {
	case cond.Whisper && cond.NoisyEnvironment:
		noise *= 0.35
	case cond.Whisper:
		noise *= 0.5
	case cond.NoisyEnvironment:
		noise *= 0.8
	}

	elDistance := target.EarlyLateMin - input.EarlyLateRatio
	reverb := 0.0
	if elDistance > 0 {
		reverb = clamp01(elDistance/0.5) * softLanding(elDistance, 0.2)
	}

	// Proximity keys off reverb character, not level: loud-but-diffuse speech
	// is still distant. Whisper disables it entirely.
	var proximity float64
	switch {
	case cond.Whisper:
		proximity = 0
	case cond.DistantMic:
		proximity = 0.8 * softLanding(math.Max(elDistance, 0), 0.3)
	case input.EarlyLateRatio < target.EarlyLateMin:
		proximity = clamp(elDistance, 0, 0.5) * softLanding(elDistance, 0.2)
	}

	presenceDistance := target.PresenceRatioMax - input.PresenceRatio
	clarity := 0.0
	if presenceDistance >= 0 {
		clarity = clamp01(input.SNRDB/15) * softLanding(presenceDistance, 0.005)
	}
	switch {
	case cond.Whisper && cond.NoisyEnvironment:
		clarity *= 0.15
	case cond.Whisper:
		clarity *= 0.25
	case cond.NoisyEnvironment:
		clarity *= 0.40
	}

	deesser := 0.0
	if !cond.Whisper {
		hfExcess := input.HFVariance - target.HFVarianceMax
		if hfExcess > 0 {
			deesser = clamp01(hfExcess/1e-6) * softLanding(hfExcess, 5e-7)
		}
	}

	varianceDistance := input.RMSVariance - target.RMSVarianceMax
	leveler := 0.0
	if varianceDistance > 0 {
		leveler = clamp01(varianceDistance/0.002) * softLanding(varianceDistance, 0.0005)
	}
	if input.CrestFactorDB < 22 {
		leveler *= 0.7
	}

	return CalibrationFactors{
		Noise:           noise,
		Reverb:          reverb,
		Proximity:       proximity,
		Clarity:         clarity,
		DeEsser:         deesser,
		Leveler:         leveler,
		CleanAudioAtten: 1,
	}
}
