package tui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bmbmjmdm/hear-you-out/internal/api"
	"github.com/bmbmjmdm/hear-you-out/internal/audio"
	"github.com/bmbmjmdm/hear-you-out/internal/cards"
	"github.com/bmbmjmdm/hear-you-out/internal/state"
	"github.com/bmbmjmdm/hear-you-out/internal/store"
)

// loadCmd fills both card slots; reload marks a dual-slot reload.
func loadCmd(ctx context.Context, q *cards.Queue, reload bool) tea.Cmd {
	return func() tea.Msg {
		if reload {
			return cardsLoadedMsg{err: q.Reload(ctx)}
		}
		return cardsLoadedMsg{err: q.Load(ctx)}
	}
}

// refillCmd refills the slot vacated by a swap in the background.
func refillCmd(ctx context.Context, q *cards.Queue, slot cards.Slot) tea.Cmd {
	return func() tea.Msg {
		return refilledMsg{slot: slot, err: q.Refill(ctx, slot)}
	}
}

func newSessionCmd(ctx context.Context, factory SessionFactory, gen int, q api.Question, notify state.Notifier) tea.Cmd {
	return func() tea.Msg {
		s, err := factory(ctx, state.Question{ID: q.ID, Text: q.Text, Checklist: q.Checklist}, notify)
		return sessionReadyMsg{gen: gen, session: s, err: err}
	}
}

// closeCmd tears a session down. The next session must not start before
// sessionClosedMsg arrives: both drive the same audio device.
func closeCmd(ctx context.Context, s Session, gen int) tea.Cmd {
	return func() tea.Msg {
		s.Close(ctx)
		return sessionClosedMsg{gen: gen}
	}
}

func opCmd(ctx context.Context, op string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(ctx)}
	}
}

// submitCmd uploads the recording and records it as the last answered question.
func submitCmd(ctx context.Context, s Session, q *cards.Queue, question api.Question, gen int) tea.Cmd {
	return func() tea.Msg {
		id, err := s.Submit(ctx)
		if err != nil {
			return submittedMsg{gen: gen, err: err}
		}
		if err := q.Answered(ctx, question, id); err != nil {
			return submittedMsg{gen: gen, answerID: id, err: err}
		}
		return submittedMsg{gen: gen, answerID: id}
	}
}

func statsCmd(ctx context.Context, prefs *store.Prefs, account Account) tea.Cmd {
	return func() tea.Msg {
		last, err := prefs.LastAnswered(ctx)
		if err != nil {
			return statsMsg{err: err}
		}
		if last == nil || last.AnswerID == "" {
			return statsMsg{err: errNoAnswerYet}
		}
		stats, err := account.AnswerStats(ctx, last.AnswerID)
		return statsMsg{stats: stats, err: err}
	}
}

// hintCmd shows a one-time tutorial hint.
func hintCmd(ctx context.Context, prefs *store.Prefs, name, text string) tea.Cmd {
	return func() tea.Msg {
		done, err := prefs.TutorialDone(ctx, name)
		if err != nil || done {
			return nil
		}
		if err := prefs.MarkTutorialDone(ctx, name); err != nil {
			return nil
		}
		return hintMsg{text: text}
	}
}

func playAnswerCmd(player AnswerPlayer, r *relay, audioBase64 string) tea.Cmd {
	return func() tea.Msg {
		if player == nil {
			return answerStartedMsg{err: errors.New("no audio output")}
		}
		data, err := audio.DecodeBase64(audioBase64)
		if err != nil {
			return answerStartedMsg{err: err}
		}
		player.SetPositionHandler(func(pos, total time.Duration) {
			r.send(answerProgressMsg{pos: pos, total: total})
		})
		player.SetCompletionHandler(func() {
			r.send(answerDoneMsg{})
		})
		return answerStartedMsg{err: player.PlayData(data)}
	}
}

func transcribeAnswerCmd(ctx context.Context, t Transcriber, audioBase64 string) tea.Cmd {
	return func() tea.Msg {
		data, err := audio.DecodeBase64(audioBase64)
		if err != nil {
			return transcriptMsg{err: err}
		}
		text, err := t.TranscribeAudio(ctx, data)
		return transcriptMsg{text: text, err: err}
	}
}

func clearNoticeCmd(id int) tea.Cmd {
	return tea.Tick(noticeTimeout, func(time.Time) tea.Msg {
		return clearNoticeMsg{id: id}
	})
}
