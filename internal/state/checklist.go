package state

import "fmt"

type ChecklistItem struct {
	Text string
	Done bool
}

func newChecklist(items []string) []ChecklistItem {
	list := make([]ChecklistItem, len(items))
	for i, text := range items {
		list[i] = ChecklistItem{Text: text}
	}
	return list
}

func checklistDone(list []ChecklistItem) bool {
	for _, item := range list {
		if !item.Done {
			return false
		}
	}
	return true
}

func resetChecklist(list []ChecklistItem) {
	for i := range list {
		list[i].Done = false
	}
}

// Acknowledge marks checklist item i as covered (or not).
func (m *Manager) Acknowledge(i int, done bool) error {
	m.mu.Lock()
	if m.state.Terminal() {
		m.mu.Unlock()
		return ErrTerminal
	}
	if i < 0 || i >= len(m.checklist) {
		m.mu.Unlock()
		return fmt.Errorf("checklist item %d out of range", i)
	}
	m.checklist[i].Done = done
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.notify.Changed(snap)
	return nil
}

func (m *Manager) Checklist() []ChecklistItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ChecklistItem, len(m.checklist))
	copy(out, m.checklist)
	return out
}
