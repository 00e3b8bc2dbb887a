package processor

import (
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/voicemend/voicemend/internal/audio"
	"github.com/voicemend/voicemend/internal/dsp"
	"github.com/voicemend/voicemend/internal/engine"
)

const (
	// blockFrames is the frame count handed to the engine per call. Small
	// enough for responsive progress updates, large enough that the call
	// overhead disappears against the stage work.
	blockFrames = 512

	passNameAnalysing = "Analysing"
	passNameRestoring = "Restoring"

	// silenceFloorDB is the meter level reported when a block carries no
	// measurable signal.
	silenceFloorDB = -60.0

	// restoreProgressInterval is how many blocks pass between Pass 2
	// progress callbacks.
	restoreProgressInterval = 20

	// defaultNoiseLearnAmount is the removal depth used when a leading
	// noise region is learned and no explicit override was given.
	defaultNoiseLearnAmount = 0.7
)

// ProgressCallback receives per-pass progress updates. pass is 1 or 2,
// progress runs 0..1, level is the current block RMS in dBFS for the live
// meter, and analysis stays nil until the analysis pass completes.
type ProgressCallback func(pass int, passName string, progress float64, level float64, analysis *AudioAnalysis)

// RestorationConfig carries the command-line intent for one file. The
// zero-ish value from DefaultRestorationConfig means: derive everything
// from the analysis pass and write a report.
type RestorationConfig struct {
	// Preset names a scenario preset. PresetManual applies none.
	Preset engine.ScenarioPreset

	// Macro dial positions. MacroMode is set when any macro flag was given;
	// the three dials then drive the whole chain.
	MacroMode    bool
	Distance     float64
	MacroClarity float64
	Consistency  float64

	// Auto replaces the adaptive derivation with the capture analyzer's
	// recommendation from the analysis pass.
	Auto bool

	// Overrides holds advanced knob values supplied explicitly. They are
	// applied last and win over every other source.
	Overrides Overrides

	// LearnNoiseSecs treats the leading seconds of the file as noise only
	// and feeds them to the profile learner before restoration judges them.
	LearnNoiseSecs float64

	// OutputPreset selects a delivery loudness target applied after the
	// chain.
	OutputPreset engine.OutputPreset

	// ModelPath points at an ONNX mask model for the denoiser advisor.
	// Empty keeps the pure DSP path.
	ModelPath string

	// MainsHz is the regional mains base frequency, 50 or 60, for the
	// denoiser's hum attenuation set.
	MainsHz int

	// GenerateReport controls the sidecar report next to the output file.
	GenerateReport bool
}

// DefaultRestorationConfig returns the stock configuration: adaptive
// derivation, no preset, 50 Hz mains, report generation on.
func DefaultRestorationConfig() *RestorationConfig {
	return &RestorationConfig{
		Preset:         engine.PresetManual,
		OutputPreset:   engine.OutputNone,
		MainsHz:        50,
		GenerateReport: true,
	}
}

// ProcessAudio performs the complete two-pass restoration:
//   - Pass 1: stream the file through the analysis chain (loudness, profile,
//     capture) and resolve the engine settings from the measurements
//   - Pass 2: stream the file through the restoration engine and write
//     <basename>-restored.wav next to the input
//
// If progressCallback is not nil it receives updates from both passes.
func ProcessAudio(inputPath string, config *RestorationConfig, progressCallback ProgressCallback) (*ProcessingResult, error) {
	analysis, err := AnalyzeAudio(inputPath, progressCallback)
	if err != nil {
		return nil, fmt.Errorf("pass 1 failed: %w", err)
	}

	settings := resolveSettings(config, analysis)

	outputPath := generateOutputPath(inputPath)
	result, err := restoreWithEngine(inputPath, outputPath, settings, analysis, config, progressCallback)
	if err != nil {
		return nil, fmt.Errorf("pass 2 failed: %w", err)
	}

	return result, nil
}

// resolveSettings layers the final engine settings from the configured
// sources. The main sources are mutually exclusive with the priority
// auto > preset > macro > adaptive; explicit advanced overrides are applied
// on top of whichever source won and revoke macro mode per the engine's
// lock. A capture recommendation that gathered too little voiced material
// falls back to the adaptive derivation.
func resolveSettings(config *RestorationConfig, analysis *AudioAnalysis) EngineSettings {
	settings := DefaultEngineSettings()
	settings.OutputPreset = config.OutputPreset
	settings.LearnNoiseSecs = config.LearnNoiseSecs
	if config.LearnNoiseSecs > 0 {
		settings.NoiseLearnAmount = defaultNoiseLearnAmount
	}
	if config.ModelPath != "" {
		settings.UseML = true
		settings.ModelPath = config.ModelPath
	}

	switch {
	case config.Auto && analysis.SuggestValid:
		ApplySuggested(&settings, analysis.Suggested)
	case config.Preset != engine.PresetManual:
		if values, ok := config.Preset.Values(); ok {
			ApplyPresetValues(&settings, values)
			settings.Preset = config.Preset
		}
	case config.MacroMode:
		settings.MacroMode = true
		settings.Distance = config.Distance
		settings.MacroClarity = config.MacroClarity
		settings.Consistency = config.Consistency
	default:
		AdaptSettings(&settings, analysis)
	}

	ApplyOverrides(&settings, config.Overrides)

	return settings
}

// applySettings writes the resolved settings to the engine's parameter
// surface. The macro dials and the advanced knobs are written from
// exclusive branches because every advanced setter revokes macro mode.
func applySettings(params *engine.Params, settings EngineSettings) {
	if settings.MacroMode {
		params.SetMacroDistance(settings.Distance)
		params.SetMacroClarity(settings.MacroClarity)
		params.SetMacroConsistency(settings.Consistency)
		params.SetMacroMode(true)
	} else {
		params.SetNoiseReduction(settings.NoiseReduction)
		params.SetNoiseMode(settings.NoiseMode)
		params.SetRumble(settings.Rumble)
		params.SetHiss(settings.Hiss)
		params.SetReverbReduction(settings.ReverbReduction)
		params.SetProximity(settings.Proximity)
		params.SetClarity(settings.Clarity)
		params.SetDeEsser(settings.DeEsser)
		params.SetLeveler(settings.Leveler)
		params.SetBreathControl(settings.BreathControl)
	}

	params.SetNoiseLearnAmount(settings.NoiseLearnAmount)
	params.SetOutputGainDB(settings.OutputGainDB)
	params.SetOutputPreset(settings.OutputPreset)
	params.SetUseML(settings.UseML)
}

// restoreWithEngine performs Pass 2: stream the input through the engine
// block by block and write the restored audio. The engine's latency is
// compensated by discarding the first Latency() output frames and flushing
// the same count of silence after the input ends, so the output duration
// matches the input exactly.
func restoreWithEngine(inputPath, outputPath string, settings EngineSettings, analysis *AudioAnalysis, config *RestorationConfig, progressCallback ProgressCallback) (*ProcessingResult, error) {
	reader, metadata, err := audio.OpenAudioFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer reader.Close()

	sampleRate := float64(metadata.SampleRate)

	eng, err := engine.New(engine.Config{
		SampleRate: sampleRate,
		MaxBlock:   blockFrames,
		ModelPath:  settings.ModelPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	defer eng.Close()

	if config.MainsHz != 0 {
		eng.SetMainsFrequency(config.MainsHz)
	}
	applySettings(eng.Params(), settings)

	writer, err := audio.CreateAudioFile(outputPath, metadata.SampleRate, outputBitDepth(metadata.BitDepth), metadata.Channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	defer writer.Close()

	// Output loudness is measured on the samples actually written,
	// including any preset gain, so the report shows delivered loudness.
	outputLoudness := dsp.NewLoudnessMeter(sampleRate)

	left := make([]float64, blockFrames)
	right := make([]float64, blockFrames)

	totalFrames := int64(metadata.Duration * sampleRate)
	latency := eng.Latency()
	toDrop := latency

	learnFrames := int64(settings.LearnNoiseSecs * sampleRate)
	learning := learnFrames > 0
	if learning {
		eng.Params().SetLearnNoise(true)
	}

	if progressCallback != nil {
		progressCallback(2, passNameRestoring, 0.0, silenceFloorDB, analysis)
	}

	var framesIn int64
	blocks := 0

	writeBlock := func(n int) error {
		start := 0
		if toDrop > 0 {
			skip := toDrop
			if skip > n {
				skip = n
			}
			start = skip
			toDrop -= skip
		}
		if start >= n {
			return nil
		}
		if err := writer.WriteStereo(left[start:n], right[start:n]); err != nil {
			return err
		}
		outputLoudness.AddFrames(left[start:n], right[start:n])
		return nil
	}

	for {
		n, err := reader.ReadStereo(left, right)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read audio: %w", err)
		}

		if err := eng.ProcessBlock(left[:n], right[:n]); err != nil {
			return nil, fmt.Errorf("restoration failed: %w", err)
		}

		if err := writeBlock(n); err != nil {
			return nil, fmt.Errorf("failed to write audio: %w", err)
		}

		framesIn += int64(n)
		blocks++

		if learning && framesIn >= learnFrames {
			eng.Params().SetLearnNoise(false)
			learning = false
		}

		if progressCallback != nil && blocks%restoreProgressInterval == 0 {
			progressCallback(2, passNameRestoring, progressFraction(framesIn, totalFrames), calculateFrameLevel(left[:n], right[:n]), analysis)
		}
	}

	if framesIn == 0 {
		return nil, fmt.Errorf("no audio frames in %s", inputPath)
	}

	// Flush the latency tail with silence so the delayed end of the
	// program material reaches the output.
	remaining := latency
	for remaining > 0 {
		n := remaining
		if n > blockFrames {
			n = blockFrames
		}
		zeroBlock(left[:n])
		zeroBlock(right[:n])
		if err := eng.ProcessBlock(left[:n], right[:n]); err != nil {
			return nil, fmt.Errorf("restoration failed during flush: %w", err)
		}
		if err := writeBlock(n); err != nil {
			return nil, fmt.Errorf("failed to write audio: %w", err)
		}
		remaining -= n
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalise output file: %w", err)
	}

	eng.FinalizeProfiles()

	if progressCallback != nil {
		progressCallback(2, passNameRestoring, 1.0, silenceFloorDB, analysis)
	}

	return newProcessingResult(outputPath, settings, analysis, eng, outputLoudness), nil
}

// outputBitDepth mirrors the input depth on the output, except 8-bit input
// which is promoted to 16: the writer produces signed PCM only and 8-bit
// would waste the restoration's dynamic range anyway.
func outputBitDepth(inputBitDepth int) int {
	if inputBitDepth == 8 {
		return 16
	}
	return inputBitDepth
}

// generateOutputPath derives the output filename from the input filename.
// Example: /path/to/episode.wav becomes /path/to/episode-restored.wav
func generateOutputPath(inputPath string) string {
	dir := filepath.Dir(inputPath)
	filename := filepath.Base(inputPath)
	ext := filepath.Ext(filename)
	nameWithoutExt := strings.TrimSuffix(filename, ext)

	return filepath.Join(dir, nameWithoutExt+"-restored.wav")
}

// calculateFrameLevel returns the RMS level of one stereo block in dB for
// the live meter, clamped to the display range.
func calculateFrameLevel(left, right []float64) float64 {
	if len(left) == 0 {
		return silenceFloorDB
	}

	var sumSquares float64
	for i := range left {
		sumSquares += left[i]*left[i] + right[i]*right[i]
	}
	rms := math.Sqrt(sumSquares / float64(2*len(left)))
	if rms < 1e-5 {
		return silenceFloorDB
	}

	levelDB := 20.0 * math.Log10(rms)
	if levelDB < silenceFloorDB {
		return silenceFloorDB
	}
	if levelDB > 0.0 {
		return 0.0
	}
	return levelDB
}

func zeroBlock(buf []float64) {
	for i := range buf {
		buf[i] = 0
	}
}
