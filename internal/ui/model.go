// Package ui provides the Bubbletea terminal user interface for voicemend:
// a file queue with per-pass progress, a live level meter, and a completion
// summary. All state changes arrive as messages on a buffered channel so the
// processing goroutine never blocks on the terminal.
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/voicemend/voicemend/internal/processor"
)

// FileStatus is the processing state of a single file in the queue.
type FileStatus int

const (
	StatusQueued FileStatus = iota
	StatusAnalysing
	StatusRestoring
	StatusComplete
	StatusError
)

// FileProgress tracks one audio file through both passes.
type FileProgress struct {
	InputPath string
	Status    FileStatus

	// Pass tracking
	CurrentPass int // 1 or 2
	PassName    string

	Progress    float64 // 0.0 to 1.0
	StartTime   time.Time
	ElapsedTime time.Duration

	// Pass 1 measurements, once available
	Analysis *processor.AudioAnalysis

	// Live meter
	CurrentLevel float64 // dBFS
	PeakLevel    float64 // highest level seen so far

	// Completion
	Result *processor.ProcessingResult
	Error  error
}

// Model is the Bubbletea model for the restoration queue UI.
type Model struct {
	Files          []FileProgress
	CurrentIndex   int
	TotalFiles     int
	CompletedFiles int
	FailedFiles    int

	StartTime time.Time
	Done      bool

	// ProgressChan receives messages from the processing goroutine.
	ProgressChan chan tea.Msg

	Width  int
	Height int
}

// NewModel creates the queue model for the given input files.
func NewModel(inputFiles []string) Model {
	files := make([]FileProgress, len(inputFiles))
	for i, path := range inputFiles {
		files[i] = FileProgress{
			InputPath: path,
			Status:    StatusQueued,
			PeakLevel: -60.0,
		}
	}

	return Model{
		Files:        files,
		CurrentIndex: -1,
		TotalFiles:   len(inputFiles),
		StartTime:    time.Now(),
		ProgressChan: make(chan tea.Msg, 100),
	}
}

// Init starts listening for progress messages.
func (m Model) Init() tea.Cmd {
	return waitForProgress(m.ProgressChan)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case ProgressMsg:
		if m.CurrentIndex >= 0 && m.CurrentIndex < len(m.Files) {
			m.Files[m.CurrentIndex] = updateFileProgress(m.Files[m.CurrentIndex], msg)
		}
		return m, waitForProgress(m.ProgressChan)

	case FileStartMsg:
		m.CurrentIndex = msg.FileIndex
		m.Files[m.CurrentIndex].Status = StatusAnalysing
		m.Files[m.CurrentIndex].StartTime = time.Now()
		return m, waitForProgress(m.ProgressChan)

	case FileCompleteMsg:
		if m.CurrentIndex >= 0 && m.CurrentIndex < len(m.Files) {
			m.Files[m.CurrentIndex].Result = msg.Result
			m.Files[m.CurrentIndex].Error = msg.Error

			if msg.Error != nil {
				m.Files[m.CurrentIndex].Status = StatusError
				m.FailedFiles++
			} else {
				m.Files[m.CurrentIndex].Status = StatusComplete
				m.CompletedFiles++
			}
		}
		return m, waitForProgress(m.ProgressChan)

	case AllCompleteMsg:
		m.Done = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the UI.
func (m Model) View() string {
	if m.Width == 0 {
		return "Initialising..."
	}

	if m.Done {
		return renderCompletionSummary(m)
	}

	return renderProcessingView(m)
}

// updateFileProgress folds one ProgressMsg into a FileProgress.
func updateFileProgress(fp FileProgress, msg ProgressMsg) FileProgress {
	// The elapsed timer restarts per pass so the remaining estimate is
	// based on the current pass's rate, not the whole file's.
	if msg.Pass != fp.CurrentPass {
		fp.StartTime = time.Now()
	}

	fp.Progress = msg.Progress
	fp.CurrentPass = msg.Pass
	fp.PassName = msg.PassName
	fp.ElapsedTime = time.Since(fp.StartTime)

	if msg.Analysis != nil {
		fp.Analysis = msg.Analysis
	}

	if msg.Level != 0 {
		fp.CurrentLevel = msg.Level
		if msg.Level > fp.PeakLevel {
			fp.PeakLevel = msg.Level
		}
	}

	switch msg.Pass {
	case 1:
		fp.Status = StatusAnalysing
	case 2:
		fp.Status = StatusRestoring
	}

	return fp
}

// waitForProgress returns a command that blocks on the next progress message.
func waitForProgress(progressChan chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-progressChan
	}
}
