package state

import (
	"context"
	"time"

	"github.com/bmbmjmdm/hear-you-out/internal/segment"
)

// Device is the recorder/player the session drives. One operation at a time.
type Device interface {
	StartRecording(path string) error
	PauseRecording() error
	ResumeRecording() error
	StopRecording() error

	StartPlayback(path string) error
	PausePlayback() error
	ResumePlayback() error
	StopPlayback() error
	Seek(ms int) error

	SetMeterHandler(func(level float64))
	SetPositionHandler(func(pos, total time.Duration))
	SetCompletionHandler(func())
	ClearHandlers()
}

// Segments is the on-disk side of a session.
type Segments interface {
	Init() error
	Path(seg segment.Segment) string
	ManifestPath() string
	Exists(seg segment.Segment) bool
	Delete(seg segment.Segment) error
	PromoteConcatenated() error
	Clear() error
}

type Concatenator interface {
	Concatenate(ctx context.Context, manifestPath, outputPath string) error
}

// Submitter uploads the encoded answer and returns its id.
type Submitter interface {
	SubmitAnswer(ctx context.Context, questionID, audioBase64 string) (string, error)
}

type Transcriber interface {
	TranscribeFile(ctx context.Context, path string) (string, error)
}

// NoticeKind 提示类型
type NoticeKind int

const (
	NoticeShake NoticeKind = iota
	NoticeStartFirst
	NoticeChecklist
	NoticeTooShort
	NoticeMaxDuration
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeShake:
		return "shake"
	case NoticeStartFirst:
		return "start-first"
	case NoticeChecklist:
		return "checklist"
	case NoticeTooShort:
		return "too-short"
	case NoticeMaxDuration:
		return "max-duration"
	default:
		return "unknown"
	}
}

// Notifier receives everything the user should see. Calls come from
// operation goroutines and the timer, never while the manager holds its lock.
type Notifier interface {
	Changed(snap Snapshot)
	Notice(kind NoticeKind)
	Alert(err error)
	Fatal(err error)
	Meter(level float64)
	Progress(pos, total time.Duration)
}

// Question is the prompt being answered.
type Question struct {
	ID        string
	Text      string
	Checklist []string
}

type Deps struct {
	Device    Device
	Segments  Segments
	Concat    Concatenator
	Submitter Submitter
	Notifier  Notifier
	Question  Question
	// Encode reads the final recording for upload; audio.EncodeFile when nil.
	Encode func(path string) (string, error)
}
