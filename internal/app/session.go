package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bmbmjmdm/hear-you-out/internal/segment"
	"github.com/bmbmjmdm/hear-you-out/internal/state"
	"github.com/bmbmjmdm/hear-you-out/internal/tui"
)

// recordingSession ties a state.Manager to its own segment directory and timer.
type recordingSession struct {
	*state.Manager
	segs   *segment.Store
	cancel context.CancelFunc
	log    *zap.SugaredLogger
}

// Close stops the timer, tears the manager down and removes the session files.
func (s *recordingSession) Close(ctx context.Context) {
	s.cancel()
	s.Manager.Close(ctx)
	if err := s.segs.Remove(); err != nil {
		s.log.Warnw("Failed to remove session directory", "dir", s.segs.Dir(), "error", err)
	}
}

type sessionFactory struct {
	root   string
	policy state.Config
	deps   state.Deps
	log    *zap.SugaredLogger
}

// New prepares a session under a fresh directory. Device, Concat and
// Submitter are shared; Segments, Notifier and Question are per session.
func (f *sessionFactory) New(ctx context.Context, q state.Question, notify state.Notifier) (tui.Session, error) {
	id := uuid.NewString()
	segs := segment.NewStore(filepath.Join(f.root, id))

	deps := f.deps
	deps.Segments = segs
	deps.Notifier = notify
	deps.Question = q

	log := f.log.With("session", id[:8], "question_id", q.ID)
	mgr := state.NewManager(f.policy, deps, log)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &recordingSession{Manager: mgr, segs: segs, cancel: cancel, log: log}

	if err := mgr.Prepare(ctx); err != nil {
		s.Close(ctx)
		return nil, fmt.Errorf("failed to prepare session: %w", err)
	}
	go mgr.Run(runCtx)

	log.Debugw("Session ready", "dir", segs.Dir())
	return s, nil
}
