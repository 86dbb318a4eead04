package state

import (
	"context"
	"time"
)

// Tick advances the recording clock by one step. Reaching MaxSeconds stops
// the clock in the same tick and pauses capture.
func (m *Manager) Tick(ctx context.Context) {
	m.mu.Lock()
	if !m.recording || m.state.Terminal() || m.closed {
		m.mu.Unlock()
		return
	}
	m.recordedSeconds++
	reached := m.recordedSeconds >= m.cfg.MaxSeconds
	if reached {
		m.recordedSeconds = m.cfg.MaxSeconds
		m.recording = false
		m.setStateLocked(StatePaused)
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.notify.Changed(snap)
	if !reached {
		return
	}

	m.log.Infow("Maximum recording length reached", "seconds", snap.RecordedSeconds)
	m.notify.Notice(NoticeMaxDuration)

	if err := m.acquireWait(ctx); err != nil {
		m.log.Warnw("Could not pause at maximum length", "error", err)
		return
	}
	defer m.release()

	m.mu.Lock()
	capturing := m.capturing
	m.mu.Unlock()
	if !capturing {
		return
	}
	if err := m.dev.PauseRecording(); err != nil {
		m.alert("pause recording", err)
		return
	}
	m.mu.Lock()
	m.capturing = false
	m.mu.Unlock()
}

// Run drives Tick until ctx ends or the session is closed.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}
