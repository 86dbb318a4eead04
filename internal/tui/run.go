package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the card UI until the user quits, then tears the session down.
func Run(ctx context.Context, deps Deps) error {
	m := New(ctx, deps)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	m.relay.attach(p)
	defer m.relay.detach()

	final, err := p.Run()
	if fm, ok := final.(Model); ok {
		fm.shutdown(context.WithoutCancel(ctx))
	}
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

// shutdown closes the recording session and waits for pending votes.
func (m Model) shutdown(ctx context.Context) {
	m.relay.detach()
	if m.session != nil {
		m.session.Close(ctx)
	}
	// a close may still be in flight when the program quits
	if m.retiring != nil {
		m.retiring.Close(ctx)
	}
	if m.deps.Player != nil {
		m.deps.Player.ClearHandlers()
		if err := m.deps.Player.StopPlayback(); err != nil {
			m.log.Debugw("Teardown: stop answer playback", "error", err)
		}
	}
	m.deps.Queue.Wait()
}
