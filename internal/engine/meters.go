package engine

import (
	"math"
	"sync/atomic"
)

// atomicFloat stores a float64 as raw bits so readers on other goroutines
// always see a whole value. Relaxed semantics are fine for meters; the UI
// only ever samples the latest published state.
type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) Store(v float64) {
	f.bits.Store(math.Float64bits(v))
}

func (f *atomicFloat) Load() float64 {
	return math.Float64frombits(f.bits.Load())
}

// Meters is the lock-free telemetry arena shared between the processing
// goroutine and any observer (TUI level meter, report generator). The engine
// publishes once per block; readers may sample at any rate.
//
// Beyond the basic peaks it carries four layers of diagnostics: the resolved
// parameter values after macro mapping, the safeguard interventions that
// altered them, the audible outcome of the block, and mode-switch integrity
// counters for verifying that macro transitions stay inaudible.
type Meters struct {
	inputPeakL  atomicFloat
	inputPeakR  atomicFloat
	outputPeakL atomicFloat
	outputPeakR atomicFloat
	gainRedL    atomicFloat
	gainRedR    atomicFloat

	speechConfidence atomicFloat
	noiseFloorDB     atomicFloat
	deEsserGRDB      atomicFloat
	limiterGRDB      atomicFloat
	earlyReflection  atomicFloat
	guardLowCutDB    atomicFloat
	guardHighCutDB   atomicFloat
	expanderAttenDB  atomicFloat
	hissCutDB        atomicFloat
	rumbleHz         atomicFloat
	proximityBoostDB atomicFloat
	clarityCutDB     atomicFloat
	recoveryAirDB    atomicFloat
	cleanupDB        atomicFloat

	noiseLearnQuality  atomicFloat
	noiseLearnProgress atomicFloat
	noiseProfileHeld   atomic.Bool

	// Layer 1: resolved parameters after macro mapping, before safeguards.
	noiseResolved     atomicFloat
	deverbResolved    atomicFloat
	clarityResolved   atomicFloat
	deesserResolved   atomicFloat
	proximityResolved atomicFloat
	levelerResolved   atomicFloat
	breathResolved    atomicFloat

	// Layer 2: safeguard interventions.
	loudnessCompDB    atomicFloat
	loudnessErrorDB   atomicFloat
	loudnessActive    atomic.Bool
	speechBandLossDB  atomicFloat
	speechProtActive  atomic.Bool
	speechProtScale   atomicFloat
	energyBudgetOn    atomic.Bool
	energyBudgetScale atomicFloat

	// Layer 3: audible outcome.
	outputRMSDB  atomicFloat
	outputPeakDB atomicFloat
	outputCrest  atomicFloat
	totalGRDB    atomicFloat

	// Layer 4: mode-switch integrity.
	modeTransitions  atomic.Int64
	paramsHashBefore atomic.Uint64
	paramsHashAfter  atomic.Uint64
	audibleChange    atomic.Bool
	preSwitchRMSDB   atomicFloat

	pumpEvents     atomic.Int64
	pumpSeverityDB atomicFloat
	levelerDeltaDB atomicFloat

	mlAvailable atomic.Bool
}

// NewMeters returns a zeroed arena.
func NewMeters() *Meters {
	m := &Meters{}
	m.Reset()
	return m
}

func (m *Meters) SetInputPeaks(l, r float64)  { m.inputPeakL.Store(l); m.inputPeakR.Store(r) }
func (m *Meters) SetOutputPeaks(l, r float64) { m.outputPeakL.Store(l); m.outputPeakR.Store(r) }
func (m *Meters) SetGainReduction(l, r float64) {
	m.gainRedL.Store(l)
	m.gainRedR.Store(r)
}

func (m *Meters) InputPeaks() (l, r float64)  { return m.inputPeakL.Load(), m.inputPeakR.Load() }
func (m *Meters) OutputPeaks() (l, r float64) { return m.outputPeakL.Load(), m.outputPeakR.Load() }
func (m *Meters) GainReduction() (l, r float64) {
	return m.gainRedL.Load(), m.gainRedR.Load()
}

func (m *Meters) SetSpeechConfidence(v float64) { m.speechConfidence.Store(v) }
func (m *Meters) SpeechConfidence() float64     { return m.speechConfidence.Load() }
func (m *Meters) SetNoiseFloorDB(v float64)     { m.noiseFloorDB.Store(v) }
func (m *Meters) NoiseFloorDB() float64         { return m.noiseFloorDB.Load() }
func (m *Meters) SetDeEsserGRDB(v float64)      { m.deEsserGRDB.Store(v) }
func (m *Meters) DeEsserGRDB() float64          { return m.deEsserGRDB.Load() }
func (m *Meters) SetLimiterGRDB(v float64)      { m.limiterGRDB.Store(v) }
func (m *Meters) LimiterGRDB() float64          { return m.limiterGRDB.Load() }
func (m *Meters) SetEarlyReflection(v float64)  { m.earlyReflection.Store(v) }
func (m *Meters) EarlyReflection() float64      { return m.earlyReflection.Load() }
func (m *Meters) SetGuardrailCuts(lowDB, highDB float64) {
	m.guardLowCutDB.Store(lowDB)
	m.guardHighCutDB.Store(highDB)
}
func (m *Meters) GuardrailCuts() (lowDB, highDB float64) {
	return m.guardLowCutDB.Load(), m.guardHighCutDB.Load()
}
func (m *Meters) SetExpanderAttenDB(v float64) { m.expanderAttenDB.Store(v) }
func (m *Meters) ExpanderAttenDB() float64     { return m.expanderAttenDB.Load() }
func (m *Meters) SetToneState(rumbleHz, hissCutDB float64) {
	m.rumbleHz.Store(rumbleHz)
	m.hissCutDB.Store(hissCutDB)
}
func (m *Meters) ToneState() (rumbleHz, hissCutDB float64) {
	return m.rumbleHz.Load(), m.hissCutDB.Load()
}
func (m *Meters) SetProximityBoostDB(v float64) { m.proximityBoostDB.Store(v) }
func (m *Meters) ProximityBoostDB() float64     { return m.proximityBoostDB.Load() }
func (m *Meters) SetClarityCutDB(v float64)     { m.clarityCutDB.Store(v) }
func (m *Meters) ClarityCutDB() float64         { return m.clarityCutDB.Load() }
func (m *Meters) SetRecoveryAirDB(v float64)    { m.recoveryAirDB.Store(v) }
func (m *Meters) RecoveryAirDB() float64        { return m.recoveryAirDB.Load() }
func (m *Meters) SetCleanupDB(v float64)        { m.cleanupDB.Store(v) }
func (m *Meters) CleanupDB() float64            { return m.cleanupDB.Load() }

func (m *Meters) SetNoiseLearnState(quality, progress float64, held bool) {
	m.noiseLearnQuality.Store(quality)
	m.noiseLearnProgress.Store(progress)
	m.noiseProfileHeld.Store(held)
}
func (m *Meters) NoiseLearnState() (quality, progress float64, held bool) {
	return m.noiseLearnQuality.Load(), m.noiseLearnProgress.Load(), m.noiseProfileHeld.Load()
}

// SetResolvedParams publishes the post-macro, pre-safeguard parameter set.
func (m *Meters) SetResolvedParams(noise, deverb, clarity, deesser, proximity, leveler, breath float64) {
	m.noiseResolved.Store(noise)
	m.deverbResolved.Store(deverb)
	m.clarityResolved.Store(clarity)
	m.deesserResolved.Store(deesser)
	m.proximityResolved.Store(proximity)
	m.levelerResolved.Store(leveler)
	m.breathResolved.Store(breath)
}

// ResolvedParams reads back the Layer 1 set in the same order.
func (m *Meters) ResolvedParams() (noise, deverb, clarity, deesser, proximity, leveler, breath float64) {
	return m.noiseResolved.Load(), m.deverbResolved.Load(), m.clarityResolved.Load(),
		m.deesserResolved.Load(), m.proximityResolved.Load(), m.levelerResolved.Load(),
		m.breathResolved.Load()
}

func (m *Meters) SetLoudnessComp(compDB, errorDB float64, active bool) {
	m.loudnessCompDB.Store(compDB)
	m.loudnessErrorDB.Store(errorDB)
	m.loudnessActive.Store(active)
}
func (m *Meters) LoudnessComp() (compDB, errorDB float64, active bool) {
	return m.loudnessCompDB.Load(), m.loudnessErrorDB.Load(), m.loudnessActive.Load()
}

func (m *Meters) SetSpeechProtection(lossDB, scale float64, active bool) {
	m.speechBandLossDB.Store(lossDB)
	m.speechProtScale.Store(scale)
	m.speechProtActive.Store(active)
}
func (m *Meters) SpeechProtection() (lossDB, scale float64, active bool) {
	return m.speechBandLossDB.Load(), m.speechProtScale.Load(), m.speechProtActive.Load()
}

func (m *Meters) SetEnergyBudget(scale float64, active bool) {
	m.energyBudgetScale.Store(scale)
	m.energyBudgetOn.Store(active)
}
func (m *Meters) EnergyBudget() (scale float64, active bool) {
	return m.energyBudgetScale.Load(), m.energyBudgetOn.Load()
}

func (m *Meters) SetOutputStats(rmsDB, peakDB, crestDB, totalGRDB float64) {
	m.outputRMSDB.Store(rmsDB)
	m.outputPeakDB.Store(peakDB)
	m.outputCrest.Store(crestDB)
	m.totalGRDB.Store(totalGRDB)
}
func (m *Meters) OutputStats() (rmsDB, peakDB, crestDB, totalGRDB float64) {
	return m.outputRMSDB.Load(), m.outputPeakDB.Load(), m.outputCrest.Load(), m.totalGRDB.Load()
}

// RecordModeTransition logs one macro/advanced switch along with the
// parameter hashes on either side. Hashes that differ while the audible
// change flag stays false is the healthy case.
func (m *Meters) RecordModeTransition(hashBefore, hashAfter uint64, preRMSDB float64) {
	m.modeTransitions.Add(1)
	m.paramsHashBefore.Store(hashBefore)
	m.paramsHashAfter.Store(hashAfter)
	m.preSwitchRMSDB.Store(preRMSDB)
}
func (m *Meters) ModeTransitions() int64 { return m.modeTransitions.Load() }
func (m *Meters) ParamHashes() (before, after uint64) {
	return m.paramsHashBefore.Load(), m.paramsHashAfter.Load()
}
func (m *Meters) SetAudibleChange(v bool) { m.audibleChange.Store(v) }
func (m *Meters) AudibleChange() bool     { return m.audibleChange.Load() }
func (m *Meters) PreSwitchRMSDB() float64 { return m.preSwitchRMSDB.Load() }

func (m *Meters) RecordPumpEvent(severityDB float64) {
	m.pumpEvents.Add(1)
	m.pumpSeverityDB.Store(severityDB)
}
func (m *Meters) PumpEvents() int64           { return m.pumpEvents.Load() }
func (m *Meters) PumpSeverityDB() float64     { return m.pumpSeverityDB.Load() }
func (m *Meters) SetLevelerDeltaDB(v float64) { m.levelerDeltaDB.Store(v) }
func (m *Meters) LevelerDeltaDB() float64     { return m.levelerDeltaDB.Load() }
func (m *Meters) SetMLAvailable(v bool)       { m.mlAvailable.Store(v) }
func (m *Meters) MLAvailable() bool           { return m.mlAvailable.Load() }

// Reset restores every meter to its idle value. Scales reset to 1 and the
// outcome dB floors to -80 so a freshly reset arena reads as silence rather
// than as full-scale.
func (m *Meters) Reset() {
	m.inputPeakL.Store(0)
	m.inputPeakR.Store(0)
	m.outputPeakL.Store(0)
	m.outputPeakR.Store(0)
	m.gainRedL.Store(0)
	m.gainRedR.Store(0)

	m.speechConfidence.Store(0)
	m.noiseFloorDB.Store(-80)
	m.deEsserGRDB.Store(0)
	m.limiterGRDB.Store(0)
	m.earlyReflection.Store(0)
	m.guardLowCutDB.Store(0)
	m.guardHighCutDB.Store(0)
	m.expanderAttenDB.Store(0)
	m.hissCutDB.Store(0)
	m.rumbleHz.Store(0)
	m.proximityBoostDB.Store(0)
	m.clarityCutDB.Store(0)
	m.recoveryAirDB.Store(0)
	m.cleanupDB.Store(0)

	m.noiseLearnQuality.Store(0)
	m.noiseLearnProgress.Store(0)
	m.noiseProfileHeld.Store(false)

	m.noiseResolved.Store(0)
	m.deverbResolved.Store(0)
	m.clarityResolved.Store(0)
	m.deesserResolved.Store(0)
	m.proximityResolved.Store(0)
	m.levelerResolved.Store(0)
	m.breathResolved.Store(0)

	m.loudnessCompDB.Store(0)
	m.loudnessErrorDB.Store(0)
	m.loudnessActive.Store(false)
	m.speechBandLossDB.Store(0)
	m.speechProtActive.Store(false)
	m.speechProtScale.Store(1)
	m.energyBudgetOn.Store(false)
	m.energyBudgetScale.Store(1)

	m.outputRMSDB.Store(-80)
	m.outputPeakDB.Store(-80)
	m.outputCrest.Store(0)
	m.totalGRDB.Store(0)

	m.modeTransitions.Store(0)
	m.paramsHashBefore.Store(0)
	m.paramsHashAfter.Store(0)
	m.audibleChange.Store(false)
	m.preSwitchRMSDB.Store(-80)

	m.pumpEvents.Store(0)
	m.pumpSeverityDB.Store(0)
	m.levelerDeltaDB.Store(0)
}
