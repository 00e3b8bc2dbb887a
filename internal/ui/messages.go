package ui

import (
	"github.com/voicemend/voicemend/internal/processor"
)

// ProgressMsg carries a progress update from the restoration pipeline.
type ProgressMsg struct {
	Pass     int     // 1 (analysing) or 2 (restoring)
	PassName string  // "Analysing" or "Restoring"
	Progress float64 // 0.0 to 1.0
	Level    float64 // Current block level in dBFS
	Analysis *processor.AudioAnalysis
}

// FileStartMsg indicates a new file has started processing.
type FileStartMsg struct {
	FileIndex int
	FileName  string
}

// FileCompleteMsg indicates a file has finished processing.
type FileCompleteMsg struct {
	FileIndex int
	Result    *processor.ProcessingResult
	Error     error
}

// AllCompleteMsg indicates the whole queue has been processed.
type AllCompleteMsg struct{}
