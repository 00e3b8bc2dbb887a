package main

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func TestProgressHandlerTimesPassThatUndershootsCompletion(t *testing.T) {
	ph := &progressHandler{send: func(tea.Msg) {}}

	// The first pass never reports 1.0, as happens when the header duration
	// overestimates the stream length.
	ph.callback(1, "Analyzing", 0.2, 0, nil)
	time.Sleep(time.Millisecond)
	ph.callback(1, "Analyzing", 0.97, 0, nil)
	time.Sleep(time.Millisecond)

	ph.callback(2, "Restoring", 0.1, 0, nil)
	if ph.pass1Time <= 0 {
		t.Error("pass 1 time not recorded when pass 2 started")
	}

	// The second pass undershoots too; finish runs when the report is
	// written.
	time.Sleep(time.Millisecond)
	ph.callback(2, "Restoring", 0.95, 0, nil)
	ph.finish()
	if ph.pass2Time <= 0 {
		t.Error("pass 2 time not recorded after finish")
	}
}

func TestProgressHandlerKeepsCompletionTiming(t *testing.T) {
	ph := &progressHandler{send: func(tea.Msg) {}}

	ph.callback(1, "Analyzing", 0.5, 0, nil)
	time.Sleep(time.Millisecond)
	ph.callback(1, "Analyzing", 1.0, 0, nil)
	recorded := ph.pass1Time
	if recorded <= 0 {
		t.Fatal("pass 1 time not recorded at completion")
	}

	// A later finish must not restate a pass its own callback closed.
	time.Sleep(time.Millisecond)
	ph.finish()
	if ph.pass1Time != recorded {
		t.Errorf("pass 1 time rewritten by finish: %v, want %v", ph.pass1Time, recorded)
	}
}
