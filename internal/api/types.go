package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Question 当前问题
type Question struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	Checklist []string `json:"checklist"`
}

// Answer is another user's recorded answer.
type Answer struct {
	ID         string `json:"id"`
	AudioData  string `json:"audio_data"`
	QuestionID string `json:"question_id,omitempty"`
}

type AnswerStats struct {
	ID           string `json:"id"`
	NumAgrees    int    `json:"num_agrees"`
	NumDisagrees int    `json:"num_disagrees"`
	NumAbstains  int    `json:"num_abstains"`
	NumServes    int    `json:"num_serves"`
}

// Session is what login returns. The token is kept in memory only.
type Session struct {
	AccessToken  string          `json:"access_token"`
	UserID       string          `json:"user_id"`
	FeatureFlags map[string]bool `json:"feature_flags"`
}

// Vote values understood by the server.
type Vote int

const (
	VoteDisagree Vote = -1
	VoteAbstain  Vote = 0
	VoteAgree    Vote = 1
)

func (v Vote) String() string {
	switch v {
	case VoteAgree:
		return "agree"
	case VoteDisagree:
		return "disagree"
	default:
		return "abstain"
	}
}

type answerRequest struct {
	QuestionID string `json:"question_id"`
	AudioData  string `json:"audio_data"`
	UserID     string `json:"user_id"`
}

type voteRequest struct {
	UserID   string `json:"user_id"`
	AnswerID string `json:"answer_id"`
	Vote     Vote   `json:"vote"`
}

type flagRequest struct {
	UserID   string `json:"user_id"`
	AnswerID string `json:"answer_id"`
	Reason   string `json:"reason"`
}

type registerRequest struct {
	DeviceID string `json:"device_id"`
}

type idResponse struct {
	ID string `json:"id"`
}

var (
	ErrNoSession   = errors.New("not logged in")
	ErrEmptyResult = errors.New("empty response")
)

// Error is an application error reported by the server.
type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Detail)
}

// errorBody matches {"detail": ...}; detail is a string or a validation list.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

func (b *errorBody) text() string {
	if len(b.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(b.Detail, &s); err == nil {
		return s
	}
	var list []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(b.Detail, &list); err == nil {
		msgs := make([]string, 0, len(list))
		for _, item := range list {
			msgs = append(msgs, item.Msg)
		}
		return strings.Join(msgs, "; ")
	}
	return string(b.Detail)
}
