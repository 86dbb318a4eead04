package state

import (
	"errors"
	"fmt"
)

var (
	ErrBusy                = errors.New("another operation is in progress")
	ErrNotReady            = errors.New("session not prepared")
	ErrNotStarted          = errors.New("start recording first")
	ErrChecklistIncomplete = errors.New("checklist not complete")
	ErrTooShort            = errors.New("recording too short")
	ErrMaxDuration         = errors.New("maximum recording length reached")
	ErrNoPreview           = errors.New("nothing is loaded for playback")
	ErrTerminal            = errors.New("session is over")
)

// FatalError ends the session; the host has to discard it and build a new one.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("session failed during %s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err ended the session.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}
