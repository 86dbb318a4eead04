package audio

import (
	"errors"
	"fmt"
)

var (
	ErrBusy           = errors.New("audio device busy")
	ErrNotRecording   = errors.New("not recording")
	ErrNotPlaying     = errors.New("no playback loaded")
	ErrNoSamples      = errors.New("no audio samples")
	ErrUnknownFormat  = errors.New("unknown audio format")
	ErrStreamNotReady = errors.New("audio stream not opened")
)

// RecorderFault wraps every failure reported by the Engine.
type RecorderFault struct {
	Op  string
	Err error
}

func (f *RecorderFault) Error() string {
	return fmt.Sprintf("audio %s: %v", f.Op, f.Err)
}

func (f *RecorderFault) Unwrap() error {
	return f.Err
}

func fault(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RecorderFault{Op: op, Err: err}
}
