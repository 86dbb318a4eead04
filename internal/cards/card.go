package cards

import (
	"github.com/bmbmjmdm/hear-you-out/internal/api"
)

type Kind int

const (
	KindEmpty Kind = iota
	KindQuestion
	KindAnswer
	KindNoContent
)

func (k Kind) String() string {
	switch k {
	case KindQuestion:
		return "question"
	case KindAnswer:
		return "answer"
	case KindNoContent:
		return "no-content"
	default:
		return "empty"
	}
}

// Card is one pending item of a slot.
type Card struct {
	Kind     Kind
	Question *api.Question
	Answer   *api.Answer
	// QuestionText is the question an Answer card responds to.
	QuestionText string
}

type Slot int

const (
	SlotA Slot = iota
	SlotB
)

func (s Slot) Other() Slot {
	return 1 - s
}

func (s Slot) String() string {
	if s == SlotA {
		return "A"
	}
	return "B"
}
