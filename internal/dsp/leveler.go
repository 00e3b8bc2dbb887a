package dsp

import "math"

// Profile-driven adaptation. Low crest slows the attack and softens the
// ratio; high RMS variance lengthens the release.
const (
	crestAdaptThresholdDB = 22.0
	lowCrestAttackMult    = 1.5
	lowCrestRatioMult     = 0.7

	rmsVarianceThreshold = 0.0015
	highVarianceRelMult  = 1.3

	levelerAdaptMS = 100.0
)

const (
	levelerNoiseFloorInit   = 1e-4
	levelerNoiseFloorDownMS = 300.0
	levelerNoiseFloorUpMS   = 8000.0
	levelerGateFloorMult    = 2.5

	levelerRMSAttackMS  = 30.0
	levelerRMSReleaseMS = 250.0

	levelerPeakAttackMS  = 10.0
	levelerPeakReleaseMS = 120.0

	levelerHybridRMSWeight  = 0.75
	levelerHybridPeakWeight = 0.25
)

// Stage 1 levels toward the VO target with a wide knee and staged
// ratios; stage 2 tames peaks fast and transparently.
const (
	levelerTargetDB   = -24.0
	levelerRatioLowDB = 3.0
	levelerRatioMidDB = 8.0
	levelerRatioLow   = 1.6
	levelerRatioMid   = 2.2
	levelerRatioHigh  = 3.2
	levelerKneeDB     = 10.0

	peakTamerThresholdDB = -12.0
	peakTamerRatio       = 10.0
	peakTamerKneeDB      = 4.0
)

// Proximity raises broadband RMS with low-end energy and clarity lowers
// it; both nudge the target so tone settings do not read as level
// changes to the detector.
const (
	levelerProxTargetDB    = 2.0
	levelerClarityTargetDB = 1.0
)

// Program-adaptive gain smoothing. Heavy reduction recovers fast so the
// program never stays ducked after a loud passage; light reduction releases
// slowly so breaths and word gaps do not flutter the gain.
const (
	levelerGainAttackMS = 20.0
	levelerRelFastMS    = 400.0
	levelerRelSlowMS    = 900.0
	levelerHighGRDB     = 6.0
)

const (
	gainReductionAvgRel  = 0.995
	gainReductionPeakRel = 0.9997

	makeupMarginDB = 12.0
	makeupScale    = 0.45
	makeupMaxDB    = 4.0
	makeupMinConf  = 0.3

	levelerBypassEps  = 0.01
	levelerFreezeConf = 0.2

	pumpDeltaThresholdDB = 3.0
	pumpMinActivityDB    = 0.5
)

// LinkedCompressor is the stereo-linked leveler. It manages macroscopic
// volume changes with a hybrid RMS/peak detector; brickwall duty stays
// with the limiter. Both channels share one gain so the image holds.
//
// The shared speech sidechain never drives gain reduction directly. It
// only gates behavior: the silence freeze and the makeup gate. Level
// detection runs on the per-channel envelope followers plus an internal
// noise floor, which keeps restoration and leveling from forming a
// feedback loop.
type LinkedCompressor struct {
	envSqL float64
	envSqR float64

	peakEnvL float64
	peakEnvR float64

	noiseFloor float64
	nfDownMix  float64
	nfUpMix    float64

	rmsAttackMix     float64
	rmsAttackSlowMix float64
	rmsReleaseMix    float64
	rmsReleaseHiMix  float64
	peakAttackMix    float64
	peakReleaseMix   float64

	gainAttackMix float64
	relFastMix    float64
	relSlowMix    float64

	smoothedReductionDB float64
	gainReductionEnv    float64
	peakReductionDB     float64
	lastGain            float64
	lastDeltaDB         float64

	crestFactorDB float64
	rmsVariance   float64
	adaptMix      float64
}

func NewLinkedCompressor(sampleRate float64) *LinkedCompressor {
	c := &LinkedCompressor{}
	c.Prepare(sampleRate)
	return c
}

func (c *LinkedCompressor) Prepare(sampleRate float64) {
	c.nfDownMix = timeConstantCoeff(levelerNoiseFloorDownMS, sampleRate)
	c.nfUpMix = timeConstantCoeff(levelerNoiseFloorUpMS, sampleRate)
	c.rmsAttackMix = timeConstantCoeff(levelerRMSAttackMS, sampleRate)
	c.rmsAttackSlowMix = timeConstantCoeff(levelerRMSAttackMS*lowCrestAttackMult, sampleRate)
	c.rmsReleaseMix = timeConstantCoeff(levelerRMSReleaseMS, sampleRate)
	c.rmsReleaseHiMix = timeConstantCoeff(levelerRMSReleaseMS*highVarianceRelMult, sampleRate)
	c.peakAttackMix = timeConstantCoeff(levelerPeakAttackMS, sampleRate)
	c.peakReleaseMix = timeConstantCoeff(levelerPeakReleaseMS, sampleRate)
	c.adaptMix = timeConstantCoeff(levelerAdaptMS, sampleRate)
	c.gainAttackMix = timeConstantCoeff(levelerGainAttackMS, sampleRate)
	c.relFastMix = timeConstantCoeff(levelerRelFastMS, sampleRate)
	c.relSlowMix = timeConstantCoeff(levelerRelSlowMS, sampleRate)
	c.Reset()
}

func (c *LinkedCompressor) Reset() {
	c.envSqL = 0
	c.envSqR = 0
	c.peakEnvL = 0
	c.peakEnvR = 0
	c.noiseFloor = levelerNoiseFloorInit
	c.smoothedReductionDB = 0
	c.gainReductionEnv = 0
	c.peakReductionDB = 0
	c.lastGain = 1
	c.lastDeltaDB = 0
	c.crestFactorDB = 25
	c.rmsVariance = 0.001
}

// UpdateFromProfile feeds the measured input profile into the adaptive
// ballistics. Called once per block; values are smoothed over ~100 ms
// so adaptation never steps audibly.
func (c *LinkedCompressor) UpdateFromProfile(crestFactorDB, rmsVariance float64) {
	c.crestFactorDB += c.adaptMix * (crestFactorDB - c.crestFactorDB)
	c.rmsVariance += c.adaptMix * (rmsVariance - c.rmsVariance)
}

func levelerSoftKnee(overDB, ratio, kneeDB float64) float64 {
	half := 0.5 * kneeDB
	switch {
	case overDB <= -half:
		return 0
	case overDB >= half:
		return overDB * (1 - 1/ratio)
	default:
		x := overDB + half
		return x * x / (2 * kneeDB) * (1 - 1/ratio)
	}
}

// ComputeGain derives the linked leveler gain for one sample from the
// per-channel envelope followers. Apply the returned gain to both
// channels.
func (c *LinkedCompressor) ComputeGain(envL, envR VoiceEnvelope, amount, speechConf, proxAmount, clarityAmount float64) float64 {
	if amount < levelerBypassEps {
		c.Reset()
		return 1
	}

	absL := envL.Fast
	absR := envR.Fast
	absMax := math.Max(math.Max(absL, absR), dbEps)

	if absMax < c.noiseFloor {
		c.noiseFloor += c.nfDownMix * (absMax - c.noiseFloor)
	} else {
		c.noiseFloor += c.nfUpMix * (absMax - c.noiseFloor)
	}

	// Silence freeze: hold the applied gain through pauses instead of
	// releasing toward unity, so room tone never swells between phrases.
	if speechConf < levelerFreezeConf && absMax < c.noiseFloor*levelerGateFloorMult {
		c.peakReductionDB *= gainReductionPeakRel
		c.lastDeltaDB = 0
		return c.lastGain
	}

	// Gate for analysis only; breaths and room tone must not drive the
	// detector.
	gatedL, gatedR := absL, absR
	if gatedL < c.noiseFloor*levelerGateFloorMult {
		gatedL = 0
	}
	if gatedR < c.noiseFloor*levelerGateFloorMult {
		gatedR = 0
	}

	rmsAtk := c.rmsAttackMix
	if c.crestFactorDB < crestAdaptThresholdDB {
		rmsAtk = c.rmsAttackSlowMix
	}
	rmsRel := c.rmsReleaseMix
	if c.rmsVariance > rmsVarianceThreshold {
		rmsRel = c.rmsReleaseHiMix
	}

	c.envSqL = updateEnvSq(c.envSqL, gatedL*gatedL, rmsAtk, rmsRel)
	c.envSqR = updateEnvSq(c.envSqR, gatedR*gatedR, rmsAtk, rmsRel)
	rmsMax := math.Max(math.Sqrt(c.envSqL), math.Sqrt(c.envSqR))

	if gatedL > c.peakEnvL {
		c.peakEnvL += c.peakAttackMix * (gatedL - c.peakEnvL)
	} else {
		c.peakEnvL += c.peakReleaseMix * (gatedL - c.peakEnvL)
	}
	if gatedR > c.peakEnvR {
		c.peakEnvR += c.peakAttackMix * (gatedR - c.peakEnvR)
	} else {
		c.peakEnvR += c.peakReleaseMix * (gatedR - c.peakEnvR)
	}
	peakMax := math.Max(c.peakEnvL, c.peakEnvR)

	hybrid := math.Max(levelerHybridRMSWeight*rmsMax+levelerHybridPeakWeight*peakMax, dbEps)
	hybridDB := gainToDB(hybrid)
	peakDB := gainToDB(math.Max(peakMax, dbEps))

	targetDB := levelerTargetDB + levelerProxTargetDB*clamp01(proxAmount) -
		levelerClarityTargetDB*clamp01(clarityAmount)
	over1 := hybridDB - targetDB

	ratioMult := 1.0
	if c.crestFactorDB < crestAdaptThresholdDB {
		ratioMult = lowCrestRatioMult
	}
	var ratio1 float64
	switch {
	case over1 < levelerRatioLowDB:
		ratio1 = 1 + (levelerRatioLow-1)*ratioMult
	case over1 < levelerRatioMidDB:
		ratio1 = 1 + (levelerRatioMid-1)*ratioMult
	default:
		ratio1 = 1 + (levelerRatioHigh-1)*ratioMult
	}
	red1DB := levelerSoftKnee(over1, ratio1, levelerKneeDB)

	over2 := peakDB - peakTamerThresholdDB
	red2DB := levelerSoftKnee(over2, peakTamerRatio, peakTamerKneeDB)

	totalReductionDB := math.Max(red1DB+red2DB, 0) * amount

	// Adaptive release on the applied reduction: while the smoothed
	// reduction is heavy the fast constant recovers it, once it is light
	// the slow constant takes over.
	if totalReductionDB > c.smoothedReductionDB {
		c.smoothedReductionDB += c.gainAttackMix * (totalReductionDB - c.smoothedReductionDB)
	} else {
		relMix := c.relSlowMix
		if c.smoothedReductionDB > levelerHighGRDB {
			relMix = c.relFastMix
		}
		c.smoothedReductionDB += relMix * (totalReductionDB - c.smoothedReductionDB)
	}
	gain := dbToGain(-c.smoothedReductionDB)

	c.gainReductionEnv = c.gainReductionEnv*gainReductionAvgRel +
		c.smoothedReductionDB*(1-gainReductionAvgRel)
	if c.smoothedReductionDB > c.peakReductionDB {
		c.peakReductionDB = c.smoothedReductionDB
	} else {
		c.peakReductionDB *= gainReductionPeakRel
	}
	c.lastDeltaDB = c.smoothedReductionDB - c.gainReductionEnv

	// Conservative makeup: only compensate leveling of actual speech,
	// never lift room tone.
	marginDB := hybridDB - gainToDB(math.Max(c.noiseFloor, dbEps))
	makeupDB := 0.0
	if marginDB > makeupMarginDB && speechConf >= makeupMinConf {
		makeupDB = math.Min(c.gainReductionEnv*makeupScale, makeupMaxDB)
	}

	c.lastGain = gain * dbToGain(makeupDB)
	return c.lastGain
}

// GainReductionDB reports the held peak reduction for metering.
func (c *LinkedCompressor) GainReductionDB() float64 {
	return c.peakReductionDB
}

// GainDeltaDB reports how far the instantaneous reduction sits from its
// slow average. Large swings here are what a listener hears as pumping.
func (c *LinkedCompressor) GainDeltaDB() float64 {
	return c.lastDeltaDB
}

// PumpDetected reports whether the gain is visibly swinging while the
// leveler is actively working.
func (c *LinkedCompressor) PumpDetected() bool {
	return math.Abs(c.lastDeltaDB) > pumpDeltaThresholdDB &&
		c.gainReductionEnv > pumpMinActivityDB
}
