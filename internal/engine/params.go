package engine

import (
	"math"
	"sync/atomic"
)

const outputGainRangeDB = 24.0

// Params is the control surface shared between the host side and the audio
// side. Every field is an atomic so the audio side never blocks and never
// observes a torn value. Individual fields are read independently; the audio
// side folds them into one Snapshot per block.
//
// Macro mode and the advanced set are exclusive writers in spirit: storing an
// advanced parameter while macro mode is engaged revokes macro mode, and the
// macro knobs are re-estimated from the advanced values so re-engaging does
// not jump. Last writer wins.
type Params struct {
	noiseReduction   atomicFloat
	rumble           atomicFloat
	hiss             atomicFloat
	noiseLearnAmount atomicFloat
	reverbReduction  atomicFloat
	proximity        atomicFloat
	clarity          atomicFloat
	deEsser          atomicFloat
	leveler          atomicFloat
	breathControl    atomicFloat
	outputGainDB     atomicFloat

	macroDistance    atomicFloat
	macroClarity     atomicFloat
	macroConsistency atomicFloat

	macroMode         atomic.Bool
	bypassRestoration atomic.Bool
	bypassShaping     atomic.Bool
	bypassDynamics    atomic.Bool
	useML             atomic.Bool
	learnNoise        atomic.Bool
	clearNoise        atomic.Bool
	resetRequest      atomic.Bool
	calibrateTarget   atomic.Bool

	noiseMode    atomic.Int64
	outputPreset atomic.Int64
}

// NewParams returns a control surface with everything at rest: all amounts
// zero, normal noise mode, no output preset, macro mode off.
func NewParams() *Params {
	return &Params{}
}

// Snapshot is one block's read of the control surface. ClearNoise,
// ResetRequest, and CalibrateTarget are one-shots consumed by the read that
// observed them.
type Snapshot struct {
	NoiseReduction   float64
	NoiseMode        NoiseMode
	Rumble           float64
	Hiss             float64
	NoiseLearnAmount float64
	ReverbReduction  float64
	Proximity        float64
	Clarity          float64
	DeEsser          float64
	Leveler          float64
	BreathControl    float64
	OutputGainDB     float64

	MacroMode        bool
	MacroDistance    float64
	MacroClarity     float64
	MacroConsistency float64

	BypassRestoration bool
	BypassShaping     bool
	BypassDynamics    bool
	UseML             bool
	LearnNoise        bool
	ClearNoise        bool
	ResetRequest      bool
	CalibrateTarget   bool

	OutputPreset OutputPreset
}

// TakeSnapshot reads the control surface for one block and consumes the
// pending one-shots.
func (p *Params) TakeSnapshot() Snapshot {
	return Snapshot{
		NoiseReduction:   p.noiseReduction.Load(),
		NoiseMode:        NoiseMode(p.noiseMode.Load()),
		Rumble:           p.rumble.Load(),
		Hiss:             p.hiss.Load(),
		NoiseLearnAmount: p.noiseLearnAmount.Load(),
		ReverbReduction:  p.reverbReduction.Load(),
		Proximity:        p.proximity.Load(),
		Clarity:          p.clarity.Load(),
		DeEsser:          p.deEsser.Load(),
		Leveler:          p.leveler.Load(),
		BreathControl:    p.breathControl.Load(),
		OutputGainDB:     p.outputGainDB.Load(),

		MacroMode:        p.macroMode.Load(),
		MacroDistance:    p.macroDistance.Load(),
		MacroClarity:     p.macroClarity.Load(),
		MacroConsistency: p.macroConsistency.Load(),

		BypassRestoration: p.bypassRestoration.Load(),
		BypassShaping:     p.bypassShaping.Load(),
		BypassDynamics:    p.bypassDynamics.Load(),
		UseML:             p.useML.Load(),
		LearnNoise:        p.learnNoise.Load(),
		ClearNoise:        p.clearNoise.Swap(false),
		ResetRequest:      p.resetRequest.Swap(false),
		CalibrateTarget:   p.calibrateTarget.Swap(false),

		OutputPreset: OutputPreset(p.outputPreset.Load()),
	}
}

// revokeMacro drops macro mode after a direct advanced write and re-estimates
// the macro knob positions from the advanced values.
func (p *Params) revokeMacro() {
	if !p.macroMode.Swap(false) {
		return
	}
	d, c, k := reverseMacroEstimate(
		p.reverbReduction.Load(),
		p.proximity.Load(),
		p.noiseReduction.Load(),
		p.deEsser.Load(),
		p.leveler.Load(),
	)
	p.macroDistance.Store(d)
	p.macroClarity.Store(c)
	p.macroConsistency.Store(k)
}

func (p *Params) SetNoiseReduction(v float64) {
	p.noiseReduction.Store(clamp01(v))
	p.revokeMacro()
}

func (p *Params) SetNoiseMode(m NoiseMode) {
	p.noiseMode.Store(int64(m))
	p.revokeMacro()
}

func (p *Params) SetRumble(v float64) {
	p.rumble.Store(clamp01(v))
	p.revokeMacro()
}

func (p *Params) SetHiss(v float64) {
	p.hiss.Store(clamp01(v))
	p.revokeMacro()
}

func (p *Params) SetReverbReduction(v float64) {
	p.reverbReduction.Store(clamp01(v))
	p.revokeMacro()
}

func (p *Params) SetProximity(v float64) {
	p.proximity.Store(clamp01(v))
	p.revokeMacro()
}

func (p *Params) SetClarity(v float64) {
	p.clarity.Store(clamp01(v))
	p.revokeMacro()
}

func (p *Params) SetDeEsser(v float64) {
	p.deEsser.Store(clamp01(v))
	p.revokeMacro()
}

func (p *Params) SetLeveler(v float64) {
	p.leveler.Store(clamp01(v))
	p.revokeMacro()
}

func (p *Params) SetBreathControl(v float64) {
	p.breathControl.Store(clamp01(v))
	p.revokeMacro()
}

// SetNoiseLearnAmount controls the static noise remover depth. It is not part
// of the macro blend, so it never revokes macro mode.
func (p *Params) SetNoiseLearnAmount(v float64) {
	p.noiseLearnAmount.Store(clamp01(v))
}

// SetOutputGainDB sets the post-chain trim. Not part of the macro blend.
func (p *Params) SetOutputGainDB(db float64) {
	p.outputGainDB.Store(clamp(db, -outputGainRangeDB, outputGainRangeDB))
}

func (p *Params) SetMacroMode(on bool)          { p.macroMode.Store(on) }
func (p *Params) SetMacroDistance(v float64)    { p.macroDistance.Store(clamp01(v)) }
func (p *Params) SetMacroClarity(v float64)     { p.macroClarity.Store(clamp01(v)) }
func (p *Params) SetMacroConsistency(v float64) { p.macroConsistency.Store(clamp01(v)) }

func (p *Params) SetBypassRestoration(on bool) { p.bypassRestoration.Store(on) }
func (p *Params) SetBypassShaping(on bool)     { p.bypassShaping.Store(on) }
func (p *Params) SetBypassDynamics(on bool)    { p.bypassDynamics.Store(on) }
func (p *Params) SetUseML(on bool)             { p.useML.Store(on) }

// SetLearnNoise holds the static noise remover in learn mode while true.
func (p *Params) SetLearnNoise(on bool) { p.learnNoise.Store(on) }

// ClearNoiseProfile requests a one-shot profile wipe on the next block.
func (p *Params) ClearNoiseProfile() { p.clearNoise.Store(true) }

// RequestReset asks the audio side to clear all stage state on the next
// block.
func (p *Params) RequestReset() { p.resetRequest.Store(true) }

// RequestTargetCalibration asks the audio side to snapshot the current input
// profile as the new calibration target on the next block. The engine never
// does this on its own.
func (p *Params) RequestTargetCalibration() { p.calibrateTarget.Store(true) }

func (p *Params) SetOutputPreset(o OutputPreset) { p.outputPreset.Store(int64(o)) }

// ApplyPreset writes a scenario preset into the advanced set in one go and
// revokes macro mode once.
func (p *Params) ApplyPreset(v PresetValues) {
	p.noiseReduction.Store(clamp01(v.NoiseReduction))
	p.noiseMode.Store(int64(v.NoiseMode))
	p.reverbReduction.Store(clamp01(v.ReverbReduction))
	p.proximity.Store(clamp01(v.Proximity))
	p.clarity.Store(clamp01(v.Clarity))
	p.deEsser.Store(clamp01(v.DeEsser))
	p.leveler.Store(clamp01(v.Leveler))
	p.breathControl.Store(clamp01(v.BreathControl))
	p.revokeMacro()
}

const (
	fnvOffset uint64 = 14695981039346656037
	fnvPrime  uint64 = 1099511628211
)

func fnvMix(h, v uint64) uint64 {
	for i := 0; i < 8; i++ {
		h ^= v & 0xff
		h *= fnvPrime
		v >>= 8
	}
	return h
}

// Hash folds the parameter state so a macro/advanced mode switch can be
// checked for accidental parameter drift.
func (s Snapshot) Hash() uint64 {
	h := fnvOffset
	for _, v := range [...]float64{
		s.NoiseReduction, s.Rumble, s.Hiss, s.NoiseLearnAmount,
		s.ReverbReduction, s.Proximity, s.Clarity, s.DeEsser,
		s.Leveler, s.BreathControl, s.OutputGainDB,
		s.MacroDistance, s.MacroClarity, s.MacroConsistency,
	} {
		h = fnvMix(h, math.Float64bits(v))
	}
	var flags uint64
	for i, b := range [...]bool{
		s.MacroMode, s.BypassRestoration, s.BypassShaping,
		s.BypassDynamics, s.UseML, s.LearnNoise,
	} {
		if b {
			flags |= 1 << uint(i)
		}
	}
	h = fnvMix(h, flags)
	h = fnvMix(h, uint64(s.NoiseMode))
	h = fnvMix(h, uint64(s.OutputPreset))
	return h
}
