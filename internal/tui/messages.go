package tui

import (
	"time"

	"github.com/bmbmjmdm/hear-you-out/internal/api"
	"github.com/bmbmjmdm/hear-you-out/internal/cards"
	"github.com/bmbmjmdm/hear-you-out/internal/state"
)

// cardsLoadedMsg follows a load or a dual-slot reload.
type cardsLoadedMsg struct {
	err error
}

type refilledMsg struct {
	slot cards.Slot
	err  error
}

// Session messages carry the generation of the session that produced them;
// anything from a discarded session is dropped.

type sessionReadyMsg struct {
	gen     int
	session Session
	err     error
}

type sessionClosedMsg struct {
	gen int
}

type snapshotMsg struct {
	gen  int
	snap state.Snapshot
}

type noticeMsg struct {
	gen  int
	kind state.NoticeKind
}

type alertMsg struct {
	gen int
	err error
}

type fatalMsg struct {
	gen int
	err error
}

type meterMsg struct {
	gen   int
	level float64
}

type progressMsg struct {
	gen        int
	pos, total time.Duration
}

// opDoneMsg reports the result of a session operation.
type opDoneMsg struct {
	op  string
	err error
}

type submittedMsg struct {
	gen      int
	answerID string
	err      error
}

type transcriptMsg struct {
	text string
	err  error
}

type statsMsg struct {
	stats *api.AnswerStats
	err   error
}

type hintMsg struct {
	text string
}

type answerProgressMsg struct {
	pos, total time.Duration
}

type answerDoneMsg struct{}

type answerStartedMsg struct {
	err error
}

type clearNoticeMsg struct {
	id int
}
