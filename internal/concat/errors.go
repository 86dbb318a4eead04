package concat

import (
	"errors"
	"fmt"
)

var (
	ErrFFmpegNotFound = errors.New("ffmpeg not found")
	ErrFFmpegTimeout  = errors.New("ffmpeg execution timed out")
	ErrMissingInput   = errors.New("concat input missing")
	ErrNoOutput       = errors.New("ffmpeg produced no output")
)

// Fault is returned by every failed concatenation.
type Fault struct {
	Manifest string
	Err      error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("concatenate %s: %v", f.Manifest, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}
