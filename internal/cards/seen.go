package cards

import (
	"slices"
	"sync"
)

// Seen is the session's list of answers not to serve again: the durable ids
// (persisted, rated or flagged) followed by the ephemeral ids loaded into this queue.
type Seen struct {
	mu        sync.Mutex
	durable   []string
	ephemeral []string
}

func NewSeen(durable []string) *Seen {
	return &Seen{durable: slices.Clone(durable)}
}

// All returns durable ids then ephemeral ids.
func (s *Seen) All() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.durable)+len(s.ephemeral))
	out = append(out, s.durable...)
	return append(out, s.ephemeral...)
}

func (s *Seen) AddDurable(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.durable, id) {
		s.durable = append(s.durable, id)
	}
}

func (s *Seen) AddEphemeral(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ephemeral = append(s.ephemeral, id)
}

func (s *Seen) ResetDurable(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.durable = slices.Clone(ids)
}

func (s *Seen) ResetEphemeral() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ephemeral = nil
}
