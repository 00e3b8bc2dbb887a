// Package logging handles generation of restoration reports for processed audio files

package logging

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/voicemend/voicemend/internal/engine"
	"github.com/voicemend/voicemend/internal/processor"
)

// ============================================================================
// Measurement Interpretation Functions
// ============================================================================
// These functions interpret capture measurements and return human-readable
// descriptions of recording characteristics. Threshold values follow the
// adaptive tuning tiers so the report reads the same way the tuner decides.

// interpretSNR describes the speech-to-noise separation of the capture.
//
// Reference values for spoken word:
// - Treated studio: 30+ dB
// - Quiet domestic room: 20-30 dB
// - Typical home recording: 12-20 dB
// - Untreated or outdoor capture: below 12 dB
func interpretSNR(db float64) string {
	switch {
	case db >= 30:
		return "pristine studio capture"
	case db >= 20:
		return "clean capture"
	case db >= 12:
		return "typical home recording"
	case db >= 6:
		return "noisy capture"
	default:
		return "noise-dominated capture"
	}
}

// interpretNoiseFloor describes how audible the background is in pauses.
func interpretNoiseFloor(db float64) string {
	switch {
	case db <= -70:
		return "inaudible floor"
	case db <= -60:
		return "studio-grade floor"
	case db <= -50:
		return "audible in pauses"
	case db <= -40:
		return "intrusive floor"
	default:
		return "competes with speech"
	}
}

// interpretCrest describes the peak-to-average ratio of the capture.
// Natural speech runs 18-28 dB; lower values indicate prior compression,
// higher values indicate plosives or handling spikes.
func interpretCrest(crest float64) string {
	switch {
	case crest < 12:
		return "heavily compressed"
	case crest < 18:
		return "controlled dynamics"
	case crest < 28:
		return "natural speech dynamics"
	default:
		return "spiky, uncontrolled peaks"
	}
}

// interpretEarlyLate describes the direct-to-diffuse balance of the room.
// Direct energy in the first 50 ms after an onset is compared against the
// diffuse remainder; close-miked speech in a treated room reads high.
func interpretEarlyLate(ratio float64) string {
	switch {
	case ratio >= 0.5:
		return "dry, close-miked"
	case ratio >= 0.3:
		return "normal room"
	case ratio >= 0.15:
		return "live room"
	case ratio >= 0.05:
		return "untreated space"
	default:
		return "distant, diffuse capture"
	}
}

// interpretDecaySlope describes the energy decay after speech offsets.
// Sustained negative slope indicates energy draining into a room tail.
func interpretDecaySlope(slope float64) string {
	switch {
	case slope >= -0.0001:
		return "no audible tail"
	case slope >= -0.0005:
		return "short room tail"
	default:
		return "sustained reverb tail"
	}
}

// interpretLUFS describes the integrated loudness against distribution
// practice. Spoken-word platforms target -16 to -14 LUFS; broadcast -23.
func interpretLUFS(lufs float64) string {
	switch {
	case lufs < -30:
		return "very quiet, large gain needed"
	case lufs < -23:
		return "quiet capture"
	case lufs <= -16:
		return "broadcast range"
	case lufs <= -13:
		return "streaming range"
	default:
		return "hot, little headroom"
	}
}

// interpretPresence describes the 2-5 kHz energy share that carries
// intelligibility.
func interpretPresence(ratio float64) string {
	switch {
	case ratio < 0.0015:
		return "muffled or covered"
	case ratio < 0.008:
		return "balanced presence"
	default:
		return "forward, bright"
	}
}

// interpretAir describes the 8-16 kHz energy share.
func interpretAir(ratio float64) string {
	switch {
	case ratio < 0.002:
		return "dull top end"
	case ratio < 0.005:
		return "natural air"
	default:
		return "harsh or sibilant top"
	}
}

// interpretRMSVariance describes level consistency across the file.
func interpretRMSVariance(variance float64) string {
	switch {
	case variance < 0.0015:
		return "very consistent level"
	case variance < 0.005:
		return "moderate level movement"
	default:
		return "wide level swings"
	}
}

// interpretHFVariance describes voicing stability from 6-12 kHz energy
// variance. Whispered delivery shows elevated variance with low SNR.
func interpretHFVariance(variance float64) string {
	switch {
	case variance <= 3e-7:
		return "steady voicing"
	case variance <= 1e-6:
		return "mixed voicing"
	default:
		return "breathy or whispered delivery"
	}
}

// =============================================================================

// writeSection writes a section header with title and dashed underline.
// The underline length matches the title length.
func writeSection(f *os.File, title string) {
	fmt.Fprintln(f, title)
	fmt.Fprintln(f, strings.Repeat("-", len(title)))
}

// ReportData contains all the information needed to generate a restoration report
type ReportData struct {
	InputPath    string
	OutputPath   string
	StartTime    time.Time
	EndTime      time.Time
	Pass1Time    time.Duration
	Pass2Time    time.Duration
	Result       *processor.ProcessingResult
	SampleRate   int
	Channels     int
	DurationSecs float64 // Duration in seconds
}

// GenerateReport creates a detailed restoration report and saves it alongside
// the output file. The report filename will be <output>-restored.log
//
// Report structure:
// 1. Header - file info and timestamp
// 2. Processing Summary - pass timings
// 3. Capture Conditions - detected recording conditions
// 4. Restoration Chain - per-stage activity with rationale
// 5. Loudness Measurements - two-column table (Input/Restored)
// 6. Voice Profile - two-column table with interpretations
// 7. Loudness Target - delivery target conformance (when requested)
// 8. Recording Tips - prioritised advice for the next session
// 9. Engine Diagnostics - detailed debug info
func GenerateReport(data ReportData) error {
	// Generate report filename: interview-restored.wav → interview-restored.log
	logPath := strings.TrimSuffix(data.OutputPath, filepath.Ext(data.OutputPath)) + ".log"

	// Create report file
	f, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	defer f.Close()

	// Header
	writeReportHeader(f, data)

	// Processing Summary (timings)
	writeProcessingSummary(f, data)

	if data.Result == nil {
		return nil
	}

	// Capture Conditions (analysis that informs tuning decisions)
	writeCaptureConditions(f, data.Result)

	// Restoration Chain
	writeRestorationChain(f, data.Result)

	// Loudness Measurements Table (Input → Restored)
	writeLoudnessTable(f, data.Result)

	// Voice Profile Table
	writeVoiceProfileTable(f, data.Result)

	// Loudness Target conformance
	writeLoudnessTarget(f, data.Result)

	// Recording Tips
	writeRecordingTips(f, data.Result)

	// Engine Diagnostics
	writeEngineDiagnostics(f, data.Result)

	return nil
}

// writeRecordingTips outputs prioritised advice for improving the next
// capture. Skipped entirely when no rule fires.
func writeRecordingTips(f *os.File, result *processor.ProcessingResult) {
	tips := GenerateRecordingTips(result)
	if len(tips) == 0 {
		return
	}

	writeSection(f, "Recording Tips")
	for i, tip := range tips {
		fmt.Fprintf(f, "%d. %s\n", i+1, wrapText(tip.Message, 72, "   "))
	}
	fmt.Fprintln(f, "")
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}

	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60

	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}

	hours := minutes / 60
	minutes = minutes % 60
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}

// channelName returns a human-readable channel name
func channelName(channels int) string {
	switch channels {
	case 1:
		return "mono"
	case 2:
		return "stereo"
	default:
		return fmt.Sprintf("%d channels", channels)
	}
}

func writeReportHeader(f *os.File, data ReportData) {
	fmt.Fprintln(f, "Voicemend Restoration Report")
	fmt.Fprintln(f, "============================")
	fmt.Fprintf(f, "File: %s\n", filepath.Base(data.InputPath))
	fmt.Fprintf(f, "Processed: %s\n", data.EndTime.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(f, "Format: %d Hz %s\n", data.SampleRate, channelName(data.Channels))
	fmt.Fprintf(f, "Duration: %s\n", formatDuration(time.Duration(data.DurationSecs*float64(time.Second))))
	fmt.Fprintln(f, "")
}

// writeProcessingSummary outputs the processing time summary for both passes.
func writeProcessingSummary(f *os.File, data ReportData) {
	writeSection(f, "Processing Summary")

	fmt.Fprintf(f, "Pass 1 (Analysis):    %s\n", formatDuration(data.Pass1Time))
	fmt.Fprintf(f, "Pass 2 (Restoration): %s\n", formatDuration(data.Pass2Time))

	totalTime := data.EndTime.Sub(data.StartTime)
	fmt.Fprintf(f, "Total:                %s", formatDuration(totalTime))

	if data.DurationSecs > 0 && totalTime > 0 {
		audioDuration := time.Duration(data.DurationSecs * float64(time.Second))
		rtf := float64(audioDuration) / float64(totalTime)
		fmt.Fprintf(f, " (%.0fx real-time)", rtf)
	}
	fmt.Fprintln(f, "")
	fmt.Fprintln(f, "")
}

// writeCaptureConditions outputs the detected recording conditions with the
// measurements that triggered them.
func writeCaptureConditions(f *os.File, result *processor.ProcessingResult) {
	writeSection(f, "Capture Conditions")

	analysis := result.Analysis
	if analysis == nil {
		fmt.Fprintln(f, "No analysis available")
		fmt.Fprintln(f, "")
		return
	}

	c := result.Conditions
	detected := false

	if c.Whisper {
		fmt.Fprintf(f, "Whispered or breathy delivery (HF variance %.1e, SNR %.1f dB)\n",
			analysis.HFVariance, analysis.SNR)
		detected = true
	}
	if c.DistantMic {
		fmt.Fprintf(f, "Distant microphone (early/late %.2f, decay slope %.5f)\n",
			analysis.EarlyLateRatio, analysis.DecaySlope)
		detected = true
	}
	if c.NoisyEnvironment {
		fmt.Fprintf(f, "Noisy environment (floor %.1f dB, SNR %.1f dB)\n",
			analysis.NoiseFloor, analysis.SNR)
		detected = true
	}
	if c.CleanAudio {
		fmt.Fprintln(f, "Clean capture, already near professional quality")
		detected = true
	}

	if !detected {
		fmt.Fprintln(f, "No special conditions detected")
	}
	fmt.Fprintln(f, "")
}

// tuningSource names where the resolved settings came from.
func tuningSource(settings processor.EngineSettings) string {
	switch {
	case settings.MacroMode:
		return fmt.Sprintf("macro dials (distance %.2f, clarity %.2f, consistency %.2f)",
			settings.Distance, settings.MacroClarity, settings.Consistency)
	case settings.Preset != engine.PresetManual:
		return fmt.Sprintf("scenario preset %q", settings.Preset.String())
	default:
		return "adaptive analysis"
	}
}

// writeRestorationChain outputs the stage-by-stage summary with the
// measurements that drove each stage's tuning.
func writeRestorationChain(f *os.File, result *processor.ProcessingResult) {
	fmt.Fprintln(f, "Restoration Chain (in processing order)")
	fmt.Fprintln(f, "---------------------------------------")
	fmt.Fprintf(f, "Tuning source: %s\n", tuningSource(result.Settings))
	fmt.Fprintln(f, "")

	for i, stage := range result.Stages {
		prefix := fmt.Sprintf("%2d. ", i+1)
		writeStage(f, prefix, stage, result)
	}
	fmt.Fprintln(f, "")
}

// writeStage outputs one chain entry: header line with the resolved amount,
// an effect line when the stage measured audible work, and a rationale line
// tying the amount back to the capture analysis.
func writeStage(f *os.File, prefix string, stage processor.StageActivity, result *processor.ProcessingResult) {
	header := fmt.Sprintf("%s%s:", prefix, stage.Name)
	if !stage.Active {
		header += " idle"
	} else {
		header += fmt.Sprintf(" %.0f%%", stage.Amount*100)
	}
	if stage.Note != "" {
		header += fmt.Sprintf(" (%s)", stage.Note)
	}
	fmt.Fprintln(f, header)

	if stage.Active && math.Abs(stage.EffectDB) >= 0.05 {
		fmt.Fprintf(f, "        Effect: %+.1f dB\n", stage.EffectDB)
	}

	if rationale := stageRationale(stage, result); rationale != "" {
		fmt.Fprintf(f, "        Rationale: %s\n", rationale)
	}
}

// stageRationale returns the measurement that justified a stage's amount.
// Always-on safety stages have no tuning decision to explain.
func stageRationale(stage processor.StageActivity, result *processor.ProcessingResult) string {
	analysis := result.Analysis
	if analysis == nil {
		return ""
	}
	m := result.Meters

	switch stage.Name {
	case "Noise profile":
		return fmt.Sprintf("quality %.0f%%, coverage %.0f%%",
			m.NoiseLearnQuality*100, m.NoiseLearnProgress*100)
	case "Denoise":
		return fmt.Sprintf("SNR %.1f dB against a %.1f dB floor (%s)",
			analysis.SNR, analysis.NoiseFloor, interpretSNR(analysis.SNR))
	case "Tone hygiene":
		return fmt.Sprintf("floor %.1f dB, HF variance %.1e", analysis.NoiseFloor, analysis.HFVariance)
	case "Dereverb":
		return fmt.Sprintf("early/late %.2f (%s)", analysis.EarlyLateRatio, interpretEarlyLate(analysis.EarlyLateRatio))
	case "Proximity":
		return fmt.Sprintf("early/late %.2f, decay slope %.5f", analysis.EarlyLateRatio, analysis.DecaySlope)
	case "Clarity":
		return fmt.Sprintf("presence ratio %.4f (%s)", analysis.PresenceRatio, interpretPresence(analysis.PresenceRatio))
	case "De-esser":
		return fmt.Sprintf("air ratio %.4f (%s)", analysis.AirRatio, interpretAir(analysis.AirRatio))
	case "Breath control":
		return fmt.Sprintf("HF variance %.1e (%s)", analysis.HFVariance, interpretHFVariance(analysis.HFVariance))
	case "Leveler":
		return fmt.Sprintf("RMS variance %.4f, crest %.1f dB (%s)",
			analysis.RMSVariance, analysis.CrestFactor, interpretRMSVariance(analysis.RMSVariance))
	case "Loudness target":
		preset := result.Settings.OutputPreset
		target, ok := preset.LUFSTarget()
		ceiling, _ := preset.TruePeakCeiling()
		if !ok {
			return ""
		}
		return fmt.Sprintf("target %.1f LUFS, ceiling %.1f dBTP", target, ceiling)
	default:
		return ""
	}
}

// writeLoudnessTable outputs a two-column comparison table for level metrics.
// Columns: Input (Pass 1), Restored (Pass 2 output)
func writeLoudnessTable(f *os.File, result *processor.ProcessingResult) {
	writeSection(f, "Loudness Measurements")

	analysis := result.Analysis
	m := result.Meters

	inputLUFS := math.NaN()
	inputTP := math.NaN()
	inputRMS := math.NaN()
	inputPeak := math.NaN()
	inputCrest := math.NaN()
	inputFloor := math.NaN()
	if analysis != nil {
		inputLUFS = analysis.InputLUFS
		inputTP = analysis.InputTruePeak
		inputRMS = analysis.RMSLevel
		inputPeak = analysis.PeakLevel
		inputCrest = analysis.CrestFactor
		inputFloor = analysis.NoiseFloor
	}

	// The engine's cleanup estimate is a negative offset against the
	// tracked input floor.
	restoredFloor := math.NaN()
	if analysis != nil {
		restoredFloor = analysis.NoiseFloor + m.CleanupDB
	}

	table := NewMetricTable()
	table.AddRow("Integrated Loudness",
		[]string{formatMetricLUFS(inputLUFS, 1), formatMetricLUFS(result.OutputLUFS, 1)},
		"LUFS", interpretLUFS(result.OutputLUFS))
	table.AddRow("True Peak",
		[]string{formatMetric(inputTP, 1), formatMetric(result.OutputTruePeak, 1)},
		"dBTP", "")
	table.AddRow("RMS Level",
		[]string{formatMetricDB(inputRMS, 1), formatMetricDB(m.OutputRMSDB, 1)},
		"dBFS", "")
	table.AddRow("Peak Level",
		[]string{formatMetricDB(inputPeak, 1), formatMetricDB(m.OutputPeakDB, 1)},
		"dBFS", "")
	table.AddRow("Crest Factor",
		[]string{formatMetric(inputCrest, 1), formatMetric(m.OutputCrestDB, 1)},
		"dB", interpretCrest(m.OutputCrestDB))
	table.AddRow("Noise Floor",
		[]string{formatMetricDB(inputFloor, 1), formatMetricDB(restoredFloor, 1)},
		"dBFS", interpretNoiseFloor(inputFloor))

	fmt.Fprint(f, table.String())
	fmt.Fprintln(f, "")
}

// writeVoiceProfileTable outputs a two-column comparison table for the
// spectral and temporal voice profile. Input metrics carry interpretations;
// the restored column shows the engine's output-side profile.
func writeVoiceProfileTable(f *os.File, result *processor.ProcessingResult) {
	writeSection(f, "Voice Profile")

	analysis := result.Analysis
	if analysis == nil {
		fmt.Fprintln(f, "No voice profile available")
		fmt.Fprintln(f, "")
		return
	}

	out := result.OutputProfile

	table := NewMetricTable()
	table.AddRow("SNR",
		[]string{formatMetric(analysis.SNR, 1), formatMetric(out.SNRDB, 1)},
		"dB", interpretSNR(analysis.SNR))
	table.AddRow("RMS Variance",
		[]string{formatMetric(analysis.RMSVariance, 6), formatMetric(out.RMSVariance, 6)},
		"", interpretRMSVariance(analysis.RMSVariance))
	table.AddRow("Early/Late Ratio",
		[]string{formatMetric(analysis.EarlyLateRatio, 2), formatMetric(out.EarlyLateRatio, 2)},
		"", interpretEarlyLate(analysis.EarlyLateRatio))
	table.AddRow("Decay Slope",
		[]string{formatMetric(analysis.DecaySlope, 6), formatMetric(out.DecaySlope, 6)},
		"", interpretDecaySlope(analysis.DecaySlope))
	table.AddRow("Presence Ratio",
		[]string{formatMetric(analysis.PresenceRatio, 4), formatMetric(out.PresenceRatio, 4)},
		"", interpretPresence(analysis.PresenceRatio))
	table.AddRow("Air Ratio",
		[]string{formatMetric(analysis.AirRatio, 4), formatMetric(out.AirRatio, 4)},
		"", interpretAir(analysis.AirRatio))
	table.AddRow("HF Variance",
		[]string{formatMetric(analysis.HFVariance, 8), formatMetric(out.HFVariance, 8)},
		"", interpretHFVariance(analysis.HFVariance))

	// When output gain was applied, show the variance compensated back to
	// input level so the columns compare like with like.
	gain := result.Settings.OutputGainDB
	if adjusted := normaliseForGain(out.RMSVariance, gain, 2); !math.IsNaN(adjusted) {
		table.AddRow("RMS Variance (gain-adjusted)",
			[]string{MissingValue, formatMetric(adjusted, 6)},
			"", fmt.Sprintf("restored column scaled back %.1f dB", gain))
	}

	fmt.Fprint(f, table.String())
	fmt.Fprintln(f, "")
}

// writeLoudnessTarget outputs conformance against the requested delivery
// target. Skipped when no target was requested.
func writeLoudnessTarget(f *os.File, result *processor.ProcessingResult) {
	preset := result.Settings.OutputPreset
	if preset == engine.OutputNone {
		return
	}

	target, ok := preset.LUFSTarget()
	ceiling, _ := preset.TruePeakCeiling()
	if !ok {
		return
	}

	writeSection(f, "Loudness Target")

	fmt.Fprintf(f, "Preset:     %s\n", preset.String())
	fmt.Fprintf(f, "Target:     %.1f LUFS\n", target)
	fmt.Fprintf(f, "Ceiling:    %.1f dBTP\n", ceiling)
	fmt.Fprintln(f, "")
	fmt.Fprintf(f, "Delivered:  %.1f LUFS, %.1f dBTP\n", result.OutputLUFS, result.OutputTruePeak)

	deviation := math.Abs(result.OutputLUFS - target)
	if processor.WithinTolerance(result.OutputLUFS, target, processor.LoudnessToleranceLU) {
		fmt.Fprintf(f, "Result: ✓ Within target (deviation: %.2f LU)\n", deviation)
	} else {
		fmt.Fprintf(f, "Result: ⚠ Outside tolerance (deviation: %.2f LU)\n", deviation)
		// Report whether a further static gain could close the gap without
		// breaching the true-peak ceiling.
		gain, limited := processor.CeilingLimitedGain(result.OutputLUFS, result.OutputTruePeak, target, ceiling)
		if limited {
			fmt.Fprintf(f, "Remaining correction: %+.1f dB (ceiling limited)\n", gain)
		} else {
			fmt.Fprintf(f, "Remaining correction: %+.1f dB\n", gain)
		}
	}
	fmt.Fprintln(f, "")
}

// writeEngineDiagnostics outputs the engine's internal counters and safety
// systems state for debugging.
func writeEngineDiagnostics(f *os.File, result *processor.ProcessingResult) {
	writeSection(f, "Engine Diagnostics")

	m := result.Meters

	fmt.Fprintf(f, "Speech confidence:    %.2f\n", m.SpeechConfidence)
	fmt.Fprintf(f, "Tracked noise floor:  %.1f dB\n", m.NoiseFloorDB)
	fmt.Fprintf(f, "Total gain reduction: %.1f dB\n", m.TotalGRDB)
	fmt.Fprintf(f, "Guardrail cuts:       %.1f dB low, %.1f dB high\n", m.GuardrailLowDB, m.GuardrailHighDB)
	fmt.Fprintf(f, "Recovery air:         %+.1f dB\n", m.RecoveryAirDB)
	fmt.Fprintf(f, "Mode transitions:     %d\n", m.ModeTransitions)

	if m.PumpEvents > 0 {
		fmt.Fprintf(f, "Pump events:          %d (severity %.1f dB)\n", m.PumpEvents, m.PumpSeverityDB)
	} else {
		fmt.Fprintln(f, "Pump events:          none")
	}

	if m.SpeechProtActive {
		fmt.Fprintf(f, "Speech protection:    engaged (loss %.1f dB, scale %.2f)\n", m.SpeechProtLossDB, m.SpeechProtScale)
	} else {
		fmt.Fprintln(f, "Speech protection:    idle")
	}

	if m.EnergyBudgetActive {
		fmt.Fprintf(f, "Energy budget:        engaged (scale %.2f)\n", m.EnergyBudgetScale)
	} else {
		fmt.Fprintln(f, "Energy budget:        idle")
	}

	if m.LoudnessCompActive {
		fmt.Fprintf(f, "Loudness comp:        %+.1f dB (error %.1f dB)\n", m.LoudnessCompDB, m.LoudnessErrorDB)
	}
	fmt.Fprintln(f, "")
}
