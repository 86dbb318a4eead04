package state

import (
	"fmt"
	"time"
)

type State int

const (
	StateIdle State = iota
	StateRecording
	StatePaused
	StatePreviewing
	StateSubmitting
	StateRestarting
	StateSubmitted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRecording:
		return "Recording"
	case StatePaused:
		return "Paused"
	case StatePreviewing:
		return "Previewing"
	case StateSubmitting:
		return "Submitting"
	case StateRestarting:
		return "Restarting"
	case StateSubmitted:
		return "Submitted"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the session can no longer change.
func (s State) Terminal() bool {
	return s == StateSubmitted || s == StateFailed
}

// Snapshot is a copy of the observable session state.
type Snapshot struct {
	State           State
	Ready           bool
	Started         bool
	Recording       bool
	Playing         bool
	NeedsNewSegment bool
	NeedsConcat     bool
	RecordedSeconds int
	MaxSeconds      int
	Checklist       []ChecklistItem
}

// Elapsed 格式化为 M:SS
func (s Snapshot) Elapsed() string {
	return FormatDuration(s.RecordedSeconds)
}

// FormatDuration renders whole seconds as M:SS.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// Config holds the recording policy.
type Config struct {
	MinSeconds int
	MaxSeconds int
	Tick       time.Duration
	RetryDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		MinSeconds: 15,
		MaxSeconds: 300,
		Tick:       time.Second,
		RetryDelay: 100 * time.Millisecond,
	}
}
