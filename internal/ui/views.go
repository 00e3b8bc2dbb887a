package ui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// UI palette. Matches internal/cli so the help screen and the TUI agree.
var (
	uiPrimary = lipgloss.Color("#0087AF")
	uiSuccess = lipgloss.Color("#00AA5F")
	uiActive  = lipgloss.Color("#FFA500")
	uiMuted   = lipgloss.Color("#888888")
	uiError   = lipgloss.Color("#D70000")
)

// renderProcessingView renders the main queue view.
func renderProcessingView(m Model) string {
	var b strings.Builder

	b.WriteString(renderHeader(m))
	b.WriteString("\n\n")

	b.WriteString(renderFileQueue(m))
	b.WriteString("\n\n")

	b.WriteString(renderOverallProgress(m))

	return b.String()
}

// renderHeader renders the application header.
func renderHeader(m Model) string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(uiPrimary).
		Render("Voicemend 🎙 - Speech Restoration")

	subtitle := lipgloss.NewStyle().
		Foreground(uiMuted).
		Italic(true).
		Render(fmt.Sprintf("Restoring %d file(s)", m.TotalFiles))

	return title + "\n" + subtitle
}

// renderFileQueue renders the list of files with their status.
func renderFileQueue(m Model) string {
	var b strings.Builder

	for i, file := range m.Files {
		b.WriteString(renderFileEntry(file, i, m.CurrentIndex))
		b.WriteString("\n")
	}

	return b.String()
}

// renderFileEntry renders a single file entry in the queue.
func renderFileEntry(file FileProgress, index int, currentIndex int) string {
	fileName := filepath.Base(file.InputPath)

	switch file.Status {
	case StatusComplete:
		icon := lipgloss.NewStyle().Foreground(uiSuccess).Render("✓")
		summary := ""
		outputName := restoredOutputName(fileName)
		if file.Result != nil {
			outputName = filepath.Base(file.Result.OutputPath)
			delta := file.Result.OutputLUFS - file.Result.InputLUFS
			summary = fmt.Sprintf("Input: %.1f LUFS | Output: %.1f LUFS | Δ %+.1f dB | Noise floor: %.0f dBFS",
				file.Result.InputLUFS, file.Result.OutputLUFS, delta, file.Result.NoiseFloor)
		}
		return fmt.Sprintf(" %s %s → %s\n   %s", icon, fileName, outputName, summary)

	case StatusAnalysing, StatusRestoring:
		icon := lipgloss.NewStyle().Foreground(uiActive).Render("⚙")
		return fmt.Sprintf(" %s %s → %s\n%s",
			icon, fileName, restoredOutputName(fileName),
			renderFileDetails(file))

	case StatusError:
		icon := lipgloss.NewStyle().Foreground(uiError).Render("✗")
		return fmt.Sprintf(" %s %s\n   Error: %v", icon, fileName, file.Error)

	default:
		icon := lipgloss.NewStyle().Foreground(uiMuted).Render("○")
		return fmt.Sprintf(" %s %s\n   Queued...", icon, fileName)
	}
}

// renderFileDetails renders detailed progress for the active file.
func renderFileDetails(file FileProgress) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(uiPrimary).
		Padding(0, 1).
		Width(62)

	var content strings.Builder

	passName := file.PassName
	if passName == "" {
		passName = "Analysing"
	}
	content.WriteString(fmt.Sprintf("Pass %d/2: %s\n", maxInt(file.CurrentPass, 1), passName))

	content.WriteString(renderProgressBar(file.Progress, 40))
	content.WriteString("\n\n")

	elapsed := file.ElapsedTime.Seconds()
	var remaining float64
	if file.Progress > 0 {
		remaining = (elapsed / file.Progress) - elapsed
	}
	content.WriteString(fmt.Sprintf("⏱  Elapsed: %.1fs | Remaining: ~%.1fs\n", elapsed, remaining))

	if file.CurrentLevel != 0 {
		content.WriteString(fmt.Sprintf("📊 Level: %.1f dBFS | Peak: %.1f dBFS", file.CurrentLevel, file.PeakLevel))
	}

	// Once Pass 1 has finished the key findings ride along and stay up
	// while the restoration pass runs.
	if file.Analysis != nil {
		content.WriteString(fmt.Sprintf("\n🔍 %.1f LUFS | noise floor %.0f dBFS | SNR %.0f dB",
			file.Analysis.InputLUFS, file.Analysis.NoiseFloor, file.Analysis.SNR))
	}

	return box.Render(content.String())
}

// renderProgressBar renders a fixed-width progress bar.
func renderProgressBar(progress float64, width int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	filled := int(progress * float64(width))
	empty := width - filled

	bar := strings.Repeat("█", filled) + strings.Repeat("░", empty)
	percentage := int(progress * 100)

	return fmt.Sprintf("%s %d%%", bar, percentage)
}

// renderOverallProgress renders the queue progress footer.
func renderOverallProgress(m Model) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(uiMuted).
		Padding(0, 1).
		Width(62)

	var content string
	if m.CurrentIndex >= 0 && m.CurrentIndex < len(m.Files) {
		content = fmt.Sprintf("Restoring file %d of %d (%d complete)",
			m.CurrentIndex+1, m.TotalFiles, m.CompletedFiles)
	} else {
		content = fmt.Sprintf("Overall: %d/%d complete", m.CompletedFiles, m.TotalFiles)
	}

	return box.Render(content)
}

// renderCompletionSummary renders the final summary once the queue drains.
func renderCompletionSummary(m Model) string {
	var b strings.Builder

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(uiSuccess).
		Render("✨ Restoration Complete")
	b.WriteString(header)
	b.WriteString("\n\n")

	for _, file := range m.Files {
		switch file.Status {
		case StatusComplete:
			b.WriteString(renderCompletedFile(file))
			b.WriteString("\n")
		case StatusError:
			icon := lipgloss.NewStyle().Foreground(uiError).Render("✗")
			b.WriteString(fmt.Sprintf(" %s %s\n   Error: %v\n", icon, filepath.Base(file.InputPath), file.Error))
		}
	}

	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", 62))
	b.WriteString("\n")
	if m.FailedFiles > 0 {
		b.WriteString(fmt.Sprintf("%d of %d file(s) restored, %d failed\n", m.CompletedFiles, m.TotalFiles, m.FailedFiles))
	} else {
		b.WriteString(fmt.Sprintf("All %d file(s) restored ✓\n", m.TotalFiles))
	}

	return b.String()
}

// renderCompletedFile renders the summary line for one restored file.
func renderCompletedFile(file FileProgress) string {
	fileName := filepath.Base(file.InputPath)

	icon := lipgloss.NewStyle().Foreground(uiSuccess).Render("✓")

	if file.Result == nil {
		return fmt.Sprintf(" %s %s", icon, fileName)
	}

	r := file.Result
	return fmt.Sprintf(" %s %s → %s\n"+
		"   Before: %.1f LUFS | After: %.1f LUFS | True peak: %.1f dBTP\n"+
		"   Noise floor: %.0f dBFS | Confidence peak: %.2f",
		icon, fileName, filepath.Base(r.OutputPath),
		r.InputLUFS, r.OutputLUFS, r.OutputTruePeak,
		r.NoiseFloor, r.Meters.SpeechConfidence)
}

// restoredOutputName mirrors the processor's output naming for display
// before the result exists.
func restoredOutputName(input string) string {
	ext := filepath.Ext(input)
	base := strings.TrimSuffix(input, ext)
	return base + "-restored.wav"
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
