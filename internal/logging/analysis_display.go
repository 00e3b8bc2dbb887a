// Package logging handles generation of restoration reports for processed audio files.
// This file provides console display for analysis-only mode.

package logging

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/voicemend/voicemend/internal/processor"
)

// DisplayAnalysisResults outputs Pass 1 analysis results to the console.
// Used by --analyse mode for rapid inspection without full processing.
func DisplayAnalysisResults(w io.Writer, inputPath string, analysis *processor.AudioAnalysis) {
	// Header
	fmt.Fprintln(w, strings.Repeat("=", 70))
	fmt.Fprintf(w, "ANALYSIS: %s\n", filepath.Base(inputPath))
	fmt.Fprintln(w, strings.Repeat("=", 70))

	// File info
	fmt.Fprintf(w, "Duration:    %s\n", formatDurationHMS(analysis.DurationSecs))
	fmt.Fprintf(w, "Sample Rate: %d Hz\n", analysis.SampleRate)
	fmt.Fprintf(w, "Channels:    %s\n", channelName(analysis.Channels))
	fmt.Fprintf(w, "Bit Depth:   %d-bit\n", analysis.BitDepth)
	fmt.Fprintln(w)

	// Loudness section
	writeAnalysisSection(w, "LOUDNESS")
	fmt.Fprintf(w, "  Integrated:     %s LUFS (%s)\n", formatMetricLUFS(analysis.InputLUFS, 1), interpretLUFS(analysis.InputLUFS))
	fmt.Fprintf(w, "  True Peak:      %.1f dBTP\n", analysis.InputTruePeak)
	fmt.Fprintln(w)

	// Dynamics section
	writeAnalysisSection(w, "DYNAMICS")
	fmt.Fprintf(w, "  RMS Level:      %s dBFS\n", formatMetricDB(analysis.RMSLevel, 1))
	fmt.Fprintf(w, "  Peak Level:     %s dBFS\n", formatMetricDB(analysis.PeakLevel, 1))
	fmt.Fprintf(w, "  Crest Factor:   %.1f dB (%s)\n", analysis.CrestFactor, interpretCrest(analysis.CrestFactor))
	fmt.Fprintf(w, "  RMS Variance:   %.6f (%s)\n", analysis.RMSVariance, interpretRMSVariance(analysis.RMSVariance))
	fmt.Fprintln(w)

	// Noise section
	writeAnalysisSection(w, "NOISE")
	fmt.Fprintf(w, "  Noise Floor:    %.1f dBFS (%s)\n", analysis.NoiseFloor, interpretNoiseFloor(analysis.NoiseFloor))
	fmt.Fprintf(w, "  SNR:            %.1f dB (%s)\n", analysis.SNR, interpretSNR(analysis.SNR))
	fmt.Fprintln(w)

	// Room section
	writeAnalysisSection(w, "ROOM")
	fmt.Fprintf(w, "  Early/Late:     %.2f (%s)\n", analysis.EarlyLateRatio, interpretEarlyLate(analysis.EarlyLateRatio))
	fmt.Fprintf(w, "  Decay Slope:    %.6f (%s)\n", analysis.DecaySlope, interpretDecaySlope(analysis.DecaySlope))
	fmt.Fprintln(w)

	// Voice section
	writeAnalysisSection(w, "VOICE")
	fmt.Fprintf(w, "  Presence:       %.4f (%s)\n", analysis.PresenceRatio, interpretPresence(analysis.PresenceRatio))
	fmt.Fprintf(w, "  Air:            %.4f (%s)\n", analysis.AirRatio, interpretAir(analysis.AirRatio))
	fmt.Fprintf(w, "  HF Variance:    %.2e (%s)\n", analysis.HFVariance, interpretHFVariance(analysis.HFVariance))
	fmt.Fprintln(w)

	// Conditions section
	writeAnalysisSection(w, "CONDITIONS")
	detected := false
	if analysis.Conditions.Whisper {
		fmt.Fprintln(w, "  Whispered or breathy delivery")
		detected = true
	}
	if analysis.Conditions.DistantMic {
		fmt.Fprintln(w, "  Distant microphone")
		detected = true
	}
	if analysis.Conditions.NoisyEnvironment {
		fmt.Fprintln(w, "  Noisy environment")
		detected = true
	}
	if analysis.Conditions.CleanAudio {
		fmt.Fprintln(w, "  Clean capture, near professional quality")
		detected = true
	}
	if !detected {
		fmt.Fprintln(w, "  No special conditions detected")
	}
	fmt.Fprintln(w)

	// Suggested settings section
	writeAnalysisSection(w, "SUGGESTED SETTINGS")
	if analysis.SuggestValid {
		s := analysis.Suggested
		fmt.Fprintf(w, "  Noise Reduction:  %.0f%%\n", s.NoiseReduction*100)
		fmt.Fprintf(w, "  Reverb Reduction: %.0f%%\n", s.ReverbReduction*100)
		fmt.Fprintf(w, "  Clarity:          %.0f%%\n", s.Clarity*100)
		fmt.Fprintf(w, "  Proximity:        %.0f%%\n", s.Proximity*100)
		fmt.Fprintf(w, "  De-esser:         %.0f%%\n", s.DeEsser*100)
		fmt.Fprintf(w, "  Leveler:          %.0f%%\n", s.Leveler*100)
		fmt.Fprintf(w, "  Rumble:           %.0f%%\n", s.Rumble*100)
		fmt.Fprintf(w, "  Hiss:             %.0f%%\n", s.Hiss*100)
		fmt.Fprintf(w, "  Output Gain:      %+.1f dB\n", s.OutputGainDB)
	} else {
		fmt.Fprintln(w, "  Insufficient speech captured for a suggestion")
	}
}

// writeAnalysisSection writes a section header for analysis output.
func writeAnalysisSection(w io.Writer, title string) {
	fmt.Fprintln(w, title)
}

// formatDurationHMS formats duration as "Xh Ym Zs" or "Ym Zs" or "Z.Xs".
func formatDurationHMS(seconds float64) string {
	if seconds < 60 {
		return fmt.Sprintf("%.1fs", seconds)
	}

	totalSeconds := int(seconds)
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	secs := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, secs)
	}
	return fmt.Sprintf("%dm %ds", minutes, secs)
}
