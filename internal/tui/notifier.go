package tui

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bmbmjmdm/hear-you-out/internal/state"
)

// relay forwards callbacks from audio and timer goroutines into the running program.
type relay struct {
	mu      sync.Mutex
	program *tea.Program
}

func (r *relay) attach(p *tea.Program) {
	r.mu.Lock()
	r.program = p
	r.mu.Unlock()
}

func (r *relay) detach() {
	r.attach(nil)
}

func (r *relay) send(msg tea.Msg) {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// sessionNotifier is the state.Notifier of one recording session.
type sessionNotifier struct {
	relay *relay
	gen   int
}

func (n sessionNotifier) Changed(snap state.Snapshot) {
	n.relay.send(snapshotMsg{gen: n.gen, snap: snap})
}

func (n sessionNotifier) Notice(kind state.NoticeKind) {
	n.relay.send(noticeMsg{gen: n.gen, kind: kind})
}

func (n sessionNotifier) Alert(err error) {
	n.relay.send(alertMsg{gen: n.gen, err: err})
}

func (n sessionNotifier) Fatal(err error) {
	n.relay.send(fatalMsg{gen: n.gen, err: err})
}

func (n sessionNotifier) Meter(level float64) {
	n.relay.send(meterMsg{gen: n.gen, level: level})
}

func (n sessionNotifier) Progress(pos, total time.Duration) {
	n.relay.send(progressMsg{gen: n.gen, pos: pos, total: total})
}
