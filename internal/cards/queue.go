package cards

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/bmbmjmdm/hear-you-out/internal/api"
	"github.com/bmbmjmdm/hear-you-out/internal/store"
)

// Source is the remote side of the queue. *api.Client satisfies it.
type Source interface {
	Question(ctx context.Context) (*api.Question, error)
	NextAnswer(ctx context.Context, questionID string, seen []string) (*api.Answer, error)
	Vote(ctx context.Context, answerID string, vote api.Vote) error
	Flag(ctx context.Context, answerID, reason string) error
}

// SeenStore persists what was answered and served. *store.Prefs satisfies it.
type SeenStore interface {
	LastAnswered(ctx context.Context) (*store.Answered, error)
	SetAnswered(ctx context.Context, a store.Answered) error
	Served(ctx context.Context) ([]string, error)
	AddServed(ctx context.Context, id string) error
}

// Advance is the outcome of consuming the active card.
type Advance struct {
	Card Card
	// Vacated is the slot to refill in the background.
	Vacated Slot
	// Reload is set when both slots hold no content; nothing was swapped.
	Reload bool
}

// Queue is the two-slot card buffer. One slot is shown while the other is refilled.
type Queue struct {
	src   Source
	prefs SeenStore
	log   *zap.SugaredLogger

	refillMu sync.Mutex

	mu             sync.Mutex
	slots          [2]Card
	active         Slot
	loadedQuestion string
	seen           *Seen

	wg sync.WaitGroup
}

func NewQueue(src Source, prefs SeenStore, log *zap.SugaredLogger) *Queue {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Queue{src: src, prefs: prefs, log: log, seen: NewSeen(nil)}
}

// Load fills both slots from scratch.
func (q *Queue) Load(ctx context.Context) error {
	served, err := q.prefs.Served(ctx)
	if err != nil {
		return fmt.Errorf("failed to load served answers: %w", err)
	}

	q.mu.Lock()
	q.slots = [2]Card{}
	q.active = SlotA
	q.loadedQuestion = ""
	q.seen.ResetDurable(served)
	q.seen.ResetEphemeral()
	q.mu.Unlock()

	if err := q.Refill(ctx, SlotA); err != nil {
		return err
	}
	return q.Refill(ctx, SlotB)
}

// Reload is the dual-slot reload issued when both slots ran out of content.
func (q *Queue) Reload(ctx context.Context) error {
	q.log.Infow("Reloading both card slots")
	return q.Load(ctx)
}

// Refill replaces the content of slot with exactly one card. Calls are serialized.
// On error the slot holds a no-content card.
func (q *Queue) Refill(ctx context.Context, slot Slot) error {
	q.refillMu.Lock()
	defer q.refillMu.Unlock()

	card, err := q.next(ctx)
	if err != nil {
		card = Card{Kind: KindNoContent}
	}

	q.mu.Lock()
	q.slots[slot] = card
	q.mu.Unlock()

	q.log.Debugw("Slot refilled", "slot", slot, "kind", card.Kind)
	return err
}

func (q *Queue) next(ctx context.Context) (Card, error) {
	question, err := q.src.Question(ctx)
	if err != nil {
		return Card{}, fmt.Errorf("failed to get question: %w", err)
	}
	last, err := q.prefs.LastAnswered(ctx)
	if err != nil {
		return Card{}, err
	}

	q.mu.Lock()
	loaded := q.loadedQuestion
	q.mu.Unlock()

	if (last == nil || last.QuestionID != question.ID) && loaded != question.ID {
		q.mu.Lock()
		q.loadedQuestion = question.ID
		q.mu.Unlock()
		return Card{Kind: KindQuestion, Question: question}, nil
	}

	// 只为用户回答过的问题拉取别人的回答
	if last == nil {
		return Card{Kind: KindNoContent}, nil
	}
	answer, err := q.src.NextAnswer(ctx, last.QuestionID, q.seen.All())
	if err != nil {
		return Card{}, fmt.Errorf("failed to get answer: %w", err)
	}
	if answer == nil {
		return Card{Kind: KindNoContent}, nil
	}
	q.seen.AddEphemeral(answer.ID)
	return Card{Kind: KindAnswer, Answer: answer, QuestionText: last.Text}, nil
}

func (q *Queue) Active() Card {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.slots[q.active]
}

func (q *Queue) ActiveSlot() Slot {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

// Slot returns the content of s without consuming it.
func (q *Queue) Slot(s Slot) Card {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.slots[s]
}

// Advance consumes the active card and swaps slots. The caller refills Vacated,
// or calls Reload when Reload is set.
func (q *Queue) Advance() Advance {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.slots[SlotA].Kind == KindNoContent && q.slots[SlotB].Kind == KindNoContent {
		return Advance{Card: q.slots[q.active], Vacated: q.active, Reload: true}
	}

	vacated := q.active
	card := q.slots[vacated]
	q.slots[vacated] = Card{}
	q.active = vacated.Other()
	return Advance{Card: card, Vacated: vacated}
}

// Rate votes on an answer without waiting for the server.
func (q *Queue) Rate(ctx context.Context, answerID string, vote api.Vote) {
	q.markServed(ctx, answerID)
	q.fire(ctx, "vote", answerID, func(ctx context.Context) error {
		return q.src.Vote(ctx, answerID, vote)
	})
}

// Flag reports an answer without waiting for the server.
func (q *Queue) Flag(ctx context.Context, answerID, reason string) {
	q.markServed(ctx, answerID)
	q.fire(ctx, "flag", answerID, func(ctx context.Context) error {
		return q.src.Flag(ctx, answerID, reason)
	})
}

func (q *Queue) markServed(ctx context.Context, answerID string) {
	q.seen.AddDurable(answerID)
	if err := q.prefs.AddServed(ctx, answerID); err != nil {
		q.log.Warnw("Failed to persist served answer", "answer_id", answerID, "error", err)
	}
}

func (q *Queue) fire(ctx context.Context, op, answerID string, call func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if err := call(ctx); err != nil {
			q.log.Warnw("Fire-and-forget call failed", "op", op, "answer_id", answerID, "error", err)
		}
	}()
}

// Wait blocks until pending votes and flags have returned.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Answered records a submitted answer: the question becomes the last answered one
// and the user's own answer is the only durable seen id.
func (q *Queue) Answered(ctx context.Context, question api.Question, answerID string) error {
	err := q.prefs.SetAnswered(ctx, store.Answered{
		QuestionID: question.ID,
		Text:       question.Text,
		AnswerID:   answerID,
	})
	if err != nil {
		return fmt.Errorf("failed to save answered question: %w", err)
	}
	q.seen.ResetDurable([]string{answerID})
	q.seen.ResetEphemeral()
	return nil
}

// Seen exposes the session's seen list.
func (q *Queue) Seen() *Seen {
	return q.seen
}
