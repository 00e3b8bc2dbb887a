package dsp

import "math"

// Detector band limits and ballistics for the vocal body range.
const (
	clarityDetectorHPFHz = 120.0
	clarityDetectorLPFHz = 380.0
	clarityDetectorQ     = 0.7

	clarityRMSAttackMS  = 30.0
	clarityRMSReleaseMS = 250.0

	clarityZCDecay       = 0.995
	clarityZCAttack      = 0.005
	clarityZCVoicedScale = 6.0
)

// Shaper tuning. The cut is subtractive only; presence and air are
// handled upstream by the pink reference bias.
const (
	clarityShaperHz = 250.0
	clarityShaperQ  = 0.7

	clarityMaxCutDB      = 64.0
	claritySmoothCoeff   = 0.02
	clarityCoeffUpdateDB = 0.05
	clarityBypassEps     = 0.001

	clarityHardCapDB     = 48.0
	claritySpeechCapDB   = 30.0
	claritySpeechCapConf = 0.6
)

// ClarityDetector is the shared stereo-linked body-energy detector. It
// band-limits the input to 120-380 Hz and derives a drive signal that
// only opens during voiced content, so the shaper leaves sibilance and
// noise alone.
type ClarityDetector struct {
	hp biquad
	lp biquad

	envSq      float64
	attackMix  float64
	releaseMix float64

	prevSign float64
	zcEnergy float64
}

func NewClarityDetector(sampleRate float64) *ClarityDetector {
	d := &ClarityDetector{}
	d.Prepare(sampleRate)
	return d
}

func (d *ClarityDetector) Prepare(sampleRate float64) {
	d.hp.updateHPF(clarityDetectorHPFHz, clarityDetectorQ, sampleRate)
	d.lp.updateLPF(clarityDetectorLPFHz, clarityDetectorQ, sampleRate)
	d.attackMix = timeConstantCoeff(clarityRMSAttackMS, sampleRate)
	d.releaseMix = timeConstantCoeff(clarityRMSReleaseMS, sampleRate)
	d.Reset()
}

func (d *ClarityDetector) Reset() {
	d.hp.resetState()
	d.lp.resetState()
	d.envSq = 0
	d.prevSign = 1
	d.zcEnergy = 0
}

// Analyze returns the body-energy drive in [0,1] for one stereo sample.
func (d *ClarityDetector) Analyze(left, right float64) float64 {
	x := math.Max(math.Abs(left), math.Abs(right))

	band := d.lp.process(d.hp.process(x))
	d.envSq = updateEnvSq(d.envSq, band*band, d.attackMix, d.releaseMix)
	rms := math.Max(math.Sqrt(d.envSq), dbEps)

	// Zero crossings run on the signed mid signal. A high crossing rate
	// means sibilant or noisy content, which closes the drive.
	mid := 0.5 * (left + right)
	sign := 1.0
	if math.Signbit(mid) {
		sign = -1.0
	}
	zc := 0.0
	if sign != d.prevSign {
		zc = 1.0
	}
	d.prevSign = sign

	d.zcEnergy = d.zcEnergy*clarityZCDecay + zc*clarityZCAttack
	voiced := clamp01(1 - d.zcEnergy*clarityZCVoicedScale)

	return clamp01(rms * voiced)
}

// Clarity is the per-channel low-mid cleanup shaper. It cuts congestion
// around 250 Hz during voiced speech, driven by the shared detector so
// both channels move together.
type Clarity struct {
	shaper    biquad
	lastCutDB float64

	sampleRate float64
}

func NewClarity(sampleRate float64) *Clarity {
	c := &Clarity{}
	c.Prepare(sampleRate)
	return c
}

func (c *Clarity) Prepare(sampleRate float64) {
	c.sampleRate = sampleRate
	c.Reset()
}

func (c *Clarity) Reset() {
	c.shaper.updateLowShelf(clarityShaperHz, clarityShaperQ, 0, c.sampleRate)
	c.shaper.resetState()
	c.lastCutDB = 0
}

// Process applies the dynamic low-mid cut for one sample.
func (c *Clarity) Process(input, clarity, speechConfidence, drive float64) float64 {
	if clarity <= clarityBypassEps {
		return input
	}

	x := aggressiveTail(clarity)
	maxCut := speechWeighted(clarityMaxCutDB, speechConfidence)

	cut := x * maxCut * drive
	cut = math.Min(cut, clarityHardCapDB)
	if speechConfidence > claritySpeechCapConf {
		cut = math.Min(cut, claritySpeechCapDB)
	}
	target := -cut

	// Re-derive coefficients only while the smoothed cut is still moving
	// toward the target.
	c.lastCutDB += claritySmoothCoeff * (target - c.lastCutDB)
	if math.Abs(c.lastCutDB-target) > clarityCoeffUpdateDB {
		c.shaper.updateLowShelf(clarityShaperHz, clarityShaperQ, c.lastCutDB, c.sampleRate)
	}

	return c.shaper.process(input)
}

// CutDB reports the current shelf gain, zero or below.
func (c *Clarity) CutDB() float64 {
	return c.lastCutDB
}
