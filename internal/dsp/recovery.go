package dsp

import "math"

// Shelf corners for the speech-gated compensation EQ.
const (
	recoveryPresenceHz = 2500.0
	recoveryAirHz      = 10000.0
	recoveryQ          = 0.707
)

// Slow attack keeps brightness from pumping; the faster release avoids
// a dull hangover after speech ends.
const (
	recoveryAttackMS  = 150.0
	recoveryReleaseMS = 60.0
)

const (
	recoveryPresenceMinDB = 1.5
	recoveryPresenceMaxDB = 2.5
	recoveryAirMinDB      = 2.0
	recoveryAirMaxDB      = 4.0

	recoverySpeechOn  = 0.6
	recoverySpeechOff = 0.3

	recoveryCoeffGateDB = 0.05
)

// RecoveryStage restores presence and air lost to the subtractive
// stages. It only opens on confident speech and returns to flat during
// silence, so noise is never lifted.
type RecoveryStage struct {
	presenceL biquad
	presenceR biquad
	airL      biquad
	airR      biquad

	lastPresenceDB float64
	lastAirDB      float64

	gainSmooth float64
	attackMix  float64
	releaseMix float64

	sampleRate float64
}

func NewRecoveryStage(sampleRate float64) *RecoveryStage {
	r := &RecoveryStage{}
	r.Prepare(sampleRate)
	return r
}

func (r *RecoveryStage) Prepare(sampleRate float64) {
	r.sampleRate = sampleRate
	r.attackMix = timeConstantCoeff(recoveryAttackMS, sampleRate)
	r.releaseMix = timeConstantCoeff(recoveryReleaseMS, sampleRate)
	r.Reset()
}

func (r *RecoveryStage) Reset() {
	r.presenceL.setIdentity()
	r.presenceR.setIdentity()
	r.airL.setIdentity()
	r.airR.setIdentity()
	r.presenceL.resetState()
	r.presenceR.resetState()
	r.airL.resetState()
	r.airR.resetState()
	r.lastPresenceDB = 0
	r.lastAirDB = 0
	r.gainSmooth = 0
}

// Process applies the recovery EQ to one stereo sample. compensation
// in [0,1] scales how much restoration is warranted; the engine derives
// it from the measured speech-band loss across the chain.
func (r *RecoveryStage) Process(left, right, speechConfidence, compensation float64) (l, rOut float64) {
	conf := clamp01(speechConfidence)
	comp := clamp01(compensation)

	var targetActivity float64
	switch {
	case conf >= recoverySpeechOn:
		targetActivity = comp
	case conf <= recoverySpeechOff:
		targetActivity = 0
	default:
		ramp := (conf - recoverySpeechOff) / (recoverySpeechOn - recoverySpeechOff)
		targetActivity = ramp * comp
	}

	if targetActivity > r.gainSmooth {
		r.gainSmooth += r.attackMix * (targetActivity - r.gainSmooth)
	} else {
		r.gainSmooth += r.releaseMix * (targetActivity - r.gainSmooth)
	}

	// Gains scale from flat at zero activity so silence carries no lift
	// and re-entry has no discontinuity.
	basePresence := recoveryPresenceMinDB + (recoveryPresenceMaxDB-recoveryPresenceMinDB)*comp
	targetPresence := r.gainSmooth * basePresence

	baseAir := recoveryAirMinDB + (recoveryAirMaxDB-recoveryAirMinDB)*comp
	targetAir := r.gainSmooth * baseAir

	if math.Abs(targetPresence-r.lastPresenceDB) > recoveryCoeffGateDB {
		r.presenceL.updateHighShelf(recoveryPresenceHz, recoveryQ, targetPresence, r.sampleRate)
		r.presenceR.updateHighShelf(recoveryPresenceHz, recoveryQ, targetPresence, r.sampleRate)
		r.lastPresenceDB = targetPresence
	}
	if math.Abs(targetAir-r.lastAirDB) > recoveryCoeffGateDB {
		r.airL.updateHighShelf(recoveryAirHz, recoveryQ, targetAir, r.sampleRate)
		r.airR.updateHighShelf(recoveryAirHz, recoveryQ, targetAir, r.sampleRate)
		r.lastAirDB = targetAir
	}

	// Filters always run; at 0 dB they are identity, so there is no
	// early-return discontinuity or stale state on re-entry.
	l = r.airL.process(r.presenceL.process(left))
	rOut = r.airR.process(r.presenceR.process(right))
	return l, rOut
}

// PresenceDB reports the current presence-shelf gain.
func (r *RecoveryStage) PresenceDB() float64 {
	return r.lastPresenceDB
}

// AirDB reports the current air-shelf gain.
func (r *RecoveryStage) AirDB() float64 {
	return r.lastAirDB
}
