package processor

import (
	"github.com/voicemend/voicemend/internal/dsp"
	"github.com/voicemend/voicemend/internal/engine"
)

// ProcessingResult contains everything the report and the UI need about one
// completed restoration.
type ProcessingResult struct {
	OutputPath string

	// Loudness as measured, input from Pass 1 and output from the written
	// samples including any preset gain.
	InputLUFS      float64
	OutputLUFS     float64
	InputTruePeak  float64
	OutputTruePeak float64

	// NoiseFloor is the Pass 1 estimate in dBFS.
	NoiseFloor float64

	// Analysis is the full Pass 1 measurement set.
	Analysis *AudioAnalysis

	// Settings are the resolved engine settings Pass 2 ran with.
	Settings EngineSettings

	// Meters is the engine's meter arena after the final block.
	Meters MeterSnapshot

	// OutputProfile is the engine's in-chain measurement of what it
	// produced, comparable field by field with Analysis.Profile.
	OutputProfile dsp.AudioProfile

	// Conditions are the classifications the engine held at the end of
	// Pass 2.
	Conditions engine.DetectedConditions

	// Stages summarises per-stage activity for the report.
	Stages []StageActivity
}

// newProcessingResult assembles the result from the finished engine and the
// output loudness meter.
func newProcessingResult(outputPath string, settings EngineSettings, analysis *AudioAnalysis, eng *engine.Engine, outputLoudness *dsp.LoudnessMeter) *ProcessingResult {
	snapshot := captureMeters(eng.Meters())

	outputLUFS := snapshot.OutputRMSDB
	if lufs, ok := outputLoudness.LoudnessGlobal(); ok {
		outputLUFS = lufs
	}

	return &ProcessingResult{
		OutputPath:     outputPath,
		InputLUFS:      analysis.InputLUFS,
		OutputLUFS:     outputLUFS,
		InputTruePeak:  analysis.InputTruePeak,
		OutputTruePeak: outputLoudness.TruePeakDB(),
		NoiseFloor:     analysis.NoiseFloor,
		Analysis:       analysis,
		Settings:       settings,
		Meters:         snapshot,
		OutputProfile:  eng.OutputProfile(),
		Conditions:     eng.Conditions(),
		Stages:         BuildStageActivity(settings, snapshot),
	}
}
