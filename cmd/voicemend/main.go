package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/voicemend/voicemend/internal/cli"
	"github.com/voicemend/voicemend/internal/engine"
	"github.com/voicemend/voicemend/internal/logging"
	"github.com/voicemend/voicemend/internal/mains"
	"github.com/voicemend/voicemend/internal/processor"
	"github.com/voicemend/voicemend/internal/ui"
)

var (
	version = "0.1.0"
)

// CLI defines the command-line interface. The three macro dials and the
// advanced flags are mutually exclusive by construction: supplying any
// advanced flag revokes macro mode, matching the engine's exclusive-write
// lock.
type CLI struct {
	Version bool `short:"v" help:"Show version information"`
	Analyse bool `short:"a" help:"Analyse only: print measurements and suggested settings, write no audio"`

	Preset string `short:"p" help:"Scenario preset: podcast, voiceover, interview or broadcast" placeholder:"name"`
	Auto   bool   `help:"Tune every stage from the capture analyzer's recommendation"`

	Clean   *float64 `group:"Macro dials" help:"Macro dial Distance/Clean, 0..1 (enables macro mode)" placeholder:"0..1"`
	Enhance *float64 `group:"Macro dials" help:"Macro dial Clarity/Enhance, 0..1 (enables macro mode)" placeholder:"0..1"`
	Control *float64 `group:"Macro dials" help:"Macro dial Consistency/Control, 0..1 (enables macro mode)" placeholder:"0..1"`

	Noise           *float64 `group:"Advanced dials" help:"Noise reduction amount, 0..1" placeholder:"0..1"`
	NoiseAggressive *bool    `group:"Advanced dials" help:"Use the aggressive spectral noise mode"`
	Rumble          *float64 `group:"Advanced dials" help:"Rumble (low-cut) amount, 0..1" placeholder:"0..1"`
	Hiss            *float64 `group:"Advanced dials" help:"Hiss (high-shelf cut) amount, 0..1" placeholder:"0..1"`
	Reverb          *float64 `group:"Advanced dials" help:"Reverb reduction amount, 0..1" placeholder:"0..1"`
	Proximity       *float64 `group:"Advanced dials" help:"Proximity warmth amount, 0..1" placeholder:"0..1"`
	Clarity         *float64 `group:"Advanced dials" help:"Clarity (mud cut) amount, 0..1" placeholder:"0..1"`
	Deess           *float64 `group:"Advanced dials" help:"De-esser amount, 0..1" placeholder:"0..1"`
	Leveler         *float64 `group:"Advanced dials" help:"Leveler amount, 0..1" placeholder:"0..1"`
	Breath          *float64 `group:"Advanced dials" help:"Breath control amount, 0..1" placeholder:"0..1"`
	Gain            *float64 `group:"Advanced dials" help:"Output gain in dB" placeholder:"dB"`

	LearnNoise   float64 `group:"Processing" help:"Treat the leading N seconds as noise only and learn a removal profile" placeholder:"seconds"`
	OutputPreset string  `group:"Processing" help:"Delivery loudness target: broadcast, youtube or spotify" placeholder:"name"`
	Model        string  `group:"Processing" type:"existingfile" help:"ONNX spectral-mask model for the denoiser advisor" placeholder:"path"`
	Mains        int     `group:"Processing" help:"Mains base frequency override, 50 or 60 (default: from the system timezone)"`
	Report       bool    `group:"Processing" default:"true" negatable:"" help:"Write the sidecar restoration report"`

	Files []string `arg:"" name:"files" help:"Audio files to restore" type:"existingfile" optional:""`
}

func main() {
	cliArgs := &CLI{}
	ctx := kong.Parse(cliArgs,
		kong.Name("voicemend"),
		kong.Description("Speech restoration for spoken-voice recordings"),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
		},
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
	)

	if cliArgs.Version {
		cli.PrintVersion(version)
		os.Exit(0)
	}

	if len(cliArgs.Files) == 0 {
		cli.PrintError("No input files specified")
		ctx.PrintUsage(false)
		os.Exit(1)
	}

	config, err := buildConfig(cliArgs)
	if err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}

	interactive := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	var exitCode int
	switch {
	case cliArgs.Analyse:
		exitCode = runAnalysis(cliArgs.Files, interactive)
	case interactive:
		exitCode = runRestoration(cliArgs.Files, config)
	default:
		exitCode = runRestorationPlain(cliArgs.Files, config)
	}
	os.Exit(exitCode)
}

// buildConfig translates the flag surface into a restoration config,
// validating ranges once here so the pipeline never sees out-of-range
// values.
func buildConfig(cliArgs *CLI) (*processor.RestorationConfig, error) {
	config := processor.DefaultRestorationConfig()

	preset, err := engine.ParseScenarioPreset(cliArgs.Preset)
	if err != nil {
		return nil, err
	}
	config.Preset = preset

	outputPreset, err := engine.ParseOutputPreset(cliArgs.OutputPreset)
	if err != nil {
		return nil, err
	}
	config.OutputPreset = outputPreset

	config.Auto = cliArgs.Auto

	if cliArgs.Clean != nil || cliArgs.Enhance != nil || cliArgs.Control != nil {
		config.MacroMode = true
		config.Distance = dialValue(cliArgs.Clean)
		config.MacroClarity = dialValue(cliArgs.Enhance)
		config.Consistency = dialValue(cliArgs.Control)
	}

	dials := map[string]*float64{
		"clean": cliArgs.Clean, "enhance": cliArgs.Enhance, "control": cliArgs.Control,
		"noise": cliArgs.Noise, "rumble": cliArgs.Rumble, "hiss": cliArgs.Hiss,
		"reverb": cliArgs.Reverb, "proximity": cliArgs.Proximity, "clarity": cliArgs.Clarity,
		"deess": cliArgs.Deess, "leveler": cliArgs.Leveler, "breath": cliArgs.Breath,
	}
	for name, v := range dials {
		if v != nil && (*v < 0 || *v > 1) {
			return nil, fmt.Errorf("--%s must be between 0 and 1, got %g", name, *v)
		}
	}

	config.Overrides = processor.Overrides{
		NoiseReduction:  cliArgs.Noise,
		NoiseAggressive: cliArgs.NoiseAggressive,
		Rumble:          cliArgs.Rumble,
		Hiss:            cliArgs.Hiss,
		ReverbReduction: cliArgs.Reverb,
		Proximity:       cliArgs.Proximity,
		Clarity:         cliArgs.Clarity,
		DeEsser:         cliArgs.Deess,
		Leveler:         cliArgs.Leveler,
		BreathControl:   cliArgs.Breath,
		OutputGainDB:    cliArgs.Gain,
	}

	if cliArgs.LearnNoise < 0 {
		return nil, fmt.Errorf("--learn-noise must not be negative")
	}
	config.LearnNoiseSecs = cliArgs.LearnNoise

	switch {
	case cliArgs.Mains == 0:
		config.MainsHz = mains.Frequency()
	case mains.Supported(cliArgs.Mains):
		config.MainsHz = cliArgs.Mains
	default:
		return nil, fmt.Errorf("--mains must be 50 or 60, got %d", cliArgs.Mains)
	}

	config.ModelPath = cliArgs.Model
	config.GenerateReport = cliArgs.Report

	return config, nil
}

// dialValue resolves an optional macro dial: unset dials sit at zero.
func dialValue(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// runRestoration processes the queue under the TUI. Processing runs in a
// goroutine posting messages to the Bubbletea program; the model owns all
// display state.
func runRestoration(files []string, config *processor.RestorationConfig) int {
	model := ui.NewModel(files)
	p := tea.NewProgram(model, tea.WithAltScreen())

	var failed int

	go func() {
		for i, inputPath := range files {
			fileStartTime := time.Now()

			p.Send(ui.FileStartMsg{
				FileIndex: i,
				FileName:  inputPath,
			})

			ph := &progressHandler{send: p.Send}

			result, err := processor.ProcessAudio(inputPath, config, ph.callback)
			if err != nil {
				failed++
				p.Send(ui.FileCompleteMsg{
					FileIndex: i,
					Error:     err,
				})
				continue
			}

			if config.GenerateReport {
				// Report failures must not fail the restoration; the
				// audio is already on disk.
				_ = writeReport(inputPath, fileStartTime, ph, result)
			}

			p.Send(ui.FileCompleteMsg{
				FileIndex: i,
				Result:    result,
			})
		}

		p.Send(ui.AllCompleteMsg{})
	}()

	if _, err := p.Run(); err != nil {
		cli.PrintError(fmt.Sprintf("UI error: %v", err))
		return 1
	}
	if failed > 0 {
		return 1
	}
	return 0
}

// runRestorationPlain is the non-TTY path: one line per pass transition,
// results printed as plain text.
func runRestorationPlain(files []string, config *processor.RestorationConfig) int {
	var failed int

	for _, inputPath := range files {
		fileStartTime := time.Now()
		fmt.Printf("Processing %s\n", filepath.Base(inputPath))

		ph := &progressHandler{
			send: func(tea.Msg) {},
			onPassStart: func(pass int, passName string) {
				fmt.Printf("  Pass %d/2: %s\n", pass, passName)
			},
		}

		result, err := processor.ProcessAudio(inputPath, config, ph.callback)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "  Error: %v\n", err)
			continue
		}

		if config.GenerateReport {
			_ = writeReport(inputPath, fileStartTime, ph, result)
		}

		fmt.Printf("  Done: %s (%.1f LUFS -> %.1f LUFS)\n",
			filepath.Base(result.OutputPath), result.InputLUFS, result.OutputLUFS)
	}

	if failed > 0 {
		return 1
	}
	return 0
}

// runAnalysis runs Pass 1 only for each file and prints the measurement
// dump. Interactive runs show a spinner while the pass streams.
func runAnalysis(files []string, interactive bool) int {
	var failed int

	for _, inputPath := range files {
		var analysis *processor.AudioAnalysis
		var err error

		if interactive {
			analysis, err = analyseWithSpinner(inputPath)
		} else {
			analysis, err = processor.AnalyzeAudio(inputPath, nil)
		}

		if err != nil {
			failed++
			cli.PrintError(fmt.Sprintf("%s: %v", filepath.Base(inputPath), err))
			continue
		}

		logging.DisplayAnalysisResults(os.Stdout, inputPath, analysis)
	}

	if failed > 0 {
		return 1
	}
	return 0
}

// analyseWithSpinner wraps one AnalyzeAudio call in the analysis TUI.
func analyseWithSpinner(inputPath string) (*processor.AudioAnalysis, error) {
	p := tea.NewProgram(ui.NewAnalysisModel())

	go func() {
		p.Send(ui.AnalysisStartMsg{FilePath: inputPath})

		analysis, err := processor.AnalyzeAudio(inputPath, func(pass int, passName string, progress float64, level float64, _ *processor.AudioAnalysis) {
			p.Send(ui.AnalysisProgressMsg{
				Progress: progress,
				Level:    level,
			})
		})

		p.Send(ui.AnalysisCompleteMsg{
			Analysis: analysis,
			Error:    err,
		})
	}()

	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("UI error: %w", err)
	}

	final := finalModel.(ui.AnalysisModel)
	if final.Error != nil {
		return nil, final.Error
	}
	if final.Analysis == nil {
		return nil, fmt.Errorf("analysis interrupted")
	}
	return final.Analysis, nil
}

// writeReport assembles the sidecar report for one completed restoration.
func writeReport(inputPath string, startTime time.Time, ph *progressHandler, result *processor.ProcessingResult) error {
	ph.finish()
	return logging.GenerateReport(logging.ReportData{
		InputPath:    inputPath,
		OutputPath:   result.OutputPath,
		StartTime:    startTime,
		EndTime:      time.Now(),
		Pass1Time:    ph.pass1Time,
		Pass2Time:    ph.pass2Time,
		Result:       result,
		SampleRate:   result.Analysis.SampleRate,
		Channels:     result.Analysis.Channels,
		DurationSecs: result.Analysis.DurationSecs,
	})
}

// progressHandler forwards pipeline progress to the UI and tracks per-pass
// wall time for the report.
type progressHandler struct {
	send        func(tea.Msg)
	onPassStart func(pass int, passName string)

	currentPass int
	passStart   time.Time
	pass1Time   time.Duration
	pass2Time   time.Duration
}

func (ph *progressHandler) callback(pass int, passName string, progress float64, level float64, analysis *processor.AudioAnalysis) {
	if pass != ph.currentPass {
		// Close out the previous pass here rather than on its last progress
		// report, which may undershoot 1.0 when the header overestimates the
		// stream length.
		ph.finish()
		ph.currentPass = pass
		ph.passStart = time.Now()
		if ph.onPassStart != nil {
			ph.onPassStart(pass, passName)
		}
	}
	if progress >= 1.0 {
		switch pass {
		case 1:
			ph.pass1Time = time.Since(ph.passStart)
		case 2:
			ph.pass2Time = time.Since(ph.passStart)
		}
	}

	ph.send(ui.ProgressMsg{
		Pass:     pass,
		PassName: passName,
		Progress: progress,
		Level:    level,
		Analysis: analysis,
	})
}

// finish records wall time for the pass still being timed, unless its own
// completion callback already did. Callers invoke it once the pipeline
// returns so a final report under 1.0 cannot leave a pass unaccounted.
func (ph *progressHandler) finish() {
	elapsed := time.Since(ph.passStart)
	switch ph.currentPass {
	case 1:
		if ph.pass1Time == 0 {
			ph.pass1Time = elapsed
		}
	case 2:
		if ph.pass2Time == 0 {
			ph.pass2Time = elapsed
		}
	}
}
