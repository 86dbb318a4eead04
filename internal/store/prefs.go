package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

const (
	keyDeviceID     = "device_id"
	keyUserID       = "user_id"
	keyLastAnswered = "last_answered"
	keyServed       = "served_answers"
	keyTutorial     = "tutorial:"
)

// Answered is the snapshot kept of the last question the user answered.
type Answered struct {
	QuestionID string    `json:"question_id"`
	Text       string    `json:"text"`
	AnswerID   string    `json:"answer_id"`
	At         time.Time `json:"at"`
}

// Prefs is the typed view of the KV used by the client.
type Prefs struct {
	kv KV
}

func NewPrefs(kv KV) *Prefs {
	return &Prefs{kv: kv}
}

// DeviceID returns the stable device id, generating one on first use.
func (p *Prefs) DeviceID(ctx context.Context) (string, error) {
	id, ok, err := p.kv.Get(ctx, keyDeviceID)
	if err != nil {
		return "", err
	}
	if ok && id != "" {
		return id, nil
	}
	id = uuid.NewString()
	if err := p.kv.Set(ctx, keyDeviceID, id); err != nil {
		return "", err
	}
	return id, nil
}

func (p *Prefs) UserID(ctx context.Context) (string, error) {
	id, _, err := p.kv.Get(ctx, keyUserID)
	return id, err
}

func (p *Prefs) SetUserID(ctx context.Context, id string) error {
	return p.kv.Set(ctx, keyUserID, id)
}

// LastAnswered returns nil when nothing was answered yet.
func (p *Prefs) LastAnswered(ctx context.Context) (*Answered, error) {
	raw, ok, err := p.kv.Get(ctx, keyLastAnswered)
	if err != nil || !ok {
		return nil, err
	}
	var a Answered
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return nil, fmt.Errorf("failed to decode last answered question: %w", err)
	}
	return &a, nil
}

// SetAnswered records a fresh answer and resets the served list to just that answer,
// so the user never gets their own recording back.
func (p *Prefs) SetAnswered(ctx context.Context, a Answered) error {
	if a.At.IsZero() {
		a.At = time.Now()
	}
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode last answered question: %w", err)
	}
	if err := p.kv.Set(ctx, keyLastAnswered, string(data)); err != nil {
		return err
	}
	served := []string{}
	if a.AnswerID != "" {
		served = append(served, a.AnswerID)
	}
	return p.setServed(ctx, served)
}

// Served returns the answer ids already rated or flagged for the current question.
func (p *Prefs) Served(ctx context.Context) ([]string, error) {
	raw, ok, err := p.kv.Get(ctx, keyServed)
	if err != nil || !ok {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("failed to decode served answers: %w", err)
	}
	return ids, nil
}

// AddServed appends id to the served list unless already present.
func (p *Prefs) AddServed(ctx context.Context, id string) error {
	ids, err := p.Served(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(ids, id) {
		return nil
	}
	return p.setServed(ctx, append(ids, id))
}

func (p *Prefs) setServed(ctx context.Context, ids []string) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode served answers: %w", err)
	}
	return p.kv.Set(ctx, keyServed, string(data))
}

// TutorialDone reports whether the one-time hint name was already shown.
func (p *Prefs) TutorialDone(ctx context.Context, name string) (bool, error) {
	v, ok, err := p.kv.Get(ctx, keyTutorial+name)
	return ok && v == "1", err
}

func (p *Prefs) MarkTutorialDone(ctx context.Context, name string) error {
	return p.kv.Set(ctx, keyTutorial+name, "1")
}
