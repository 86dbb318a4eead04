package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bmbmjmdm/hear-you-out/internal/audio"
	"github.com/bmbmjmdm/hear-you-out/internal/segment"
)

// Manager 录音会话状态机
//
// mu guards the fields below. op is the busy guard: every user action takes
// it with TryLock and callers that find it held are dropped with ErrBusy.
// Collaborators and the Notifier are always called without mu held.
type Manager struct {
	cfg      Config
	dev      Device
	segs     Segments
	concat   Concatenator
	submit   Submitter
	notify   Notifier
	encode   func(path string) (string, error)
	question Question
	log      *zap.SugaredLogger

	op sync.Mutex

	mu              sync.Mutex
	state           State
	ready           bool
	started         bool
	recording       bool
	capturing       bool
	open            bool
	playing         bool
	loaded          bool
	playbackPaused  bool
	needsNewSegment bool
	needsConcat     bool
	recordedSeconds int
	strikes         int
	checklist       []ChecklistItem
	closed          bool
	done            chan struct{}
}

func NewManager(cfg Config, deps Deps, log *zap.SugaredLogger) *Manager {
	def := DefaultConfig()
	if cfg.MaxSeconds <= 0 {
		cfg.MaxSeconds = def.MaxSeconds
	}
	if cfg.Tick <= 0 {
		cfg.Tick = def.Tick
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	encode := deps.Encode
	if encode == nil {
		encode = audio.EncodeFile
	}

	m := &Manager{
		cfg:       cfg,
		dev:       deps.Device,
		segs:      deps.Segments,
		concat:    deps.Concat,
		submit:    deps.Submitter,
		notify:    deps.Notifier,
		encode:    encode,
		question:  deps.Question,
		log:       log,
		state:     StateIdle,
		checklist: newChecklist(deps.Question.Checklist),
		done:      make(chan struct{}),
	}

	m.dev.SetMeterHandler(m.notify.Meter)
	m.dev.SetPositionHandler(m.notify.Progress)
	m.dev.SetCompletionHandler(m.playbackFinished)
	return m
}

func (m *Manager) Question() Question {
	return m.question
}

// Snapshot returns a copy of the observable state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	list := make([]ChecklistItem, len(m.checklist))
	copy(list, m.checklist)
	return Snapshot{
		State:           m.state,
		Ready:           m.ready,
		Started:         m.started,
		Recording:       m.recording,
		Playing:         m.playing,
		NeedsNewSegment: m.needsNewSegment,
		NeedsConcat:     m.needsConcat,
		RecordedSeconds: m.recordedSeconds,
		MaxSeconds:      m.cfg.MaxSeconds,
		Checklist:       list,
	}
}

func (m *Manager) setStateLocked(s State) {
	old := m.state
	m.state = s
	if old != s {
		m.log.Infof("State changed: %s -> %s", old, s)
	}
}

func (m *Manager) changed() {
	m.notify.Changed(m.Snapshot())
}

// acquire takes the busy guard or reports why the call is dropped.
func (m *Manager) acquire() error {
	if !m.op.TryLock() {
		return ErrBusy
	}
	m.mu.Lock()
	terminal := m.state.Terminal() || m.closed
	m.mu.Unlock()
	if terminal {
		m.op.Unlock()
		return ErrTerminal
	}
	return nil
}

// acquireWait retries acquire every RetryDelay until it succeeds or ctx ends.
func (m *Manager) acquireWait(ctx context.Context) error {
	for {
		err := m.acquire()
		if !errors.Is(err, ErrBusy) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.cfg.RetryDelay):
		}
	}
}

func (m *Manager) release() {
	m.op.Unlock()
}

// fail moves the session to StateFailed and tells the Notifier exactly once.
func (m *Manager) fail(op string, err error) error {
	fatal := &FatalError{Op: op, Err: err}

	m.mu.Lock()
	already := m.state == StateFailed
	if !already {
		m.setStateLocked(StateFailed)
		m.recording = false
		m.capturing = false
		m.playing = false
	}
	m.mu.Unlock()

	if !already {
		m.log.Errorw("Session failed", "op", op, "error", err)
		m.notify.Fatal(fatal)
		m.changed()
	}
	return fatal
}

// alert reports a recoverable failure; the state is left as it was.
func (m *Manager) alert(op string, err error) error {
	err = fmt.Errorf("failed to %s: %w", op, err)
	m.log.Warnw("Recoverable audio failure", "op", op, "error", err)
	m.notify.Alert(err)
	return err
}

// strike answers an action attempted before any recording.
func (m *Manager) strike() error {
	m.mu.Lock()
	m.strikes++
	kind := NoticeShake
	if m.strikes%2 == 0 {
		kind = NoticeStartFirst
	}
	m.mu.Unlock()

	m.notify.Notice(kind)
	return ErrNotStarted
}

// Prepare writes the manifest. Nothing can be recorded before it succeeds.
func (m *Manager) Prepare(ctx context.Context) error {
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.release()

	m.mu.Lock()
	ready := m.ready
	m.mu.Unlock()
	if ready {
		return nil
	}

	if err := m.segs.Init(); err != nil {
		return m.fail("prepare", err)
	}

	m.mu.Lock()
	m.ready = true
	m.mu.Unlock()
	m.changed()
	return nil
}

// Record starts, resumes or extends the recording.
func (m *Manager) Record(ctx context.Context) error {
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.release()

	m.mu.Lock()
	ready, started, recording := m.ready, m.started, m.recording
	atMax := m.recordedSeconds >= m.cfg.MaxSeconds
	loaded, needsNew := m.loaded, m.needsNewSegment
	m.mu.Unlock()

	switch {
	case !ready:
		return ErrNotReady
	case recording:
		return nil
	case atMax:
		m.notify.Notice(NoticeMaxDuration)
		return ErrMaxDuration
	}

	if !started {
		if err := m.dev.StartRecording(m.segs.Path(segment.Original)); err != nil {
			return m.fail("start recording", err)
		}
		m.mu.Lock()
		m.started = true
		m.recording = true
		m.capturing = true
		m.open = true
		m.setStateLocked(StateRecording)
		m.mu.Unlock()
		m.changed()
		return nil
	}

	if loaded {
		if err := m.dev.StopPlayback(); err != nil {
			return m.alert("stop playback", err)
		}
		m.mu.Lock()
		m.loaded = false
		m.playing = false
		m.playbackPaused = false
		m.mu.Unlock()
	}

	if needsNew {
		if err := m.dev.StartRecording(m.segs.Path(segment.Additional)); err != nil {
			m.mu.Lock()
			m.setStateLocked(StatePaused)
			m.mu.Unlock()
			m.changed()
			return m.alert("start additional segment", err)
		}
		m.mu.Lock()
		m.needsConcat = true
		m.needsNewSegment = false
		m.open = true
		m.mu.Unlock()
	} else if err := m.dev.ResumeRecording(); err != nil {
		return m.alert("resume recording", err)
	}

	m.mu.Lock()
	m.recording = true
	m.capturing = true
	m.setStateLocked(StateRecording)
	m.mu.Unlock()
	m.changed()
	return nil
}

// Pause stops capture or playback. Calling it when neither runs does nothing.
func (m *Manager) Pause(ctx context.Context) error {
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.release()
	return m.pauseLocked()
}

// PauseOnRelease is Pause for the end of a hold-to-record gesture: it waits
// for the guard instead of being dropped.
func (m *Manager) PauseOnRelease(ctx context.Context) error {
	if err := m.acquireWait(ctx); err != nil {
		return err
	}
	defer m.release()
	return m.pauseLocked()
}

func (m *Manager) pauseLocked() error {
	m.mu.Lock()
	recording, capturing, playing := m.recording, m.capturing, m.playing
	m.mu.Unlock()

	switch {
	case recording || capturing:
		if err := m.dev.PauseRecording(); err != nil {
			return m.alert("pause recording", err)
		}
		m.mu.Lock()
		m.recording = false
		m.capturing = false
		m.setStateLocked(StatePaused)
		m.mu.Unlock()
	case playing:
		if err := m.dev.PausePlayback(); err != nil {
			return m.alert("pause playback", err)
		}
		m.mu.Lock()
		m.playing = false
		m.playbackPaused = true
		m.setStateLocked(StatePaused)
		m.mu.Unlock()
	default:
		return nil
	}
	m.changed()
	return nil
}

// finalize closes the open segment and merges a pending additional segment,
// leaving a single contiguous original. Every failure here is fatal.
func (m *Manager) finalize(ctx context.Context, op string) error {
	m.mu.Lock()
	open, needsConcat := m.open, m.needsConcat
	m.mu.Unlock()

	if open {
		if err := m.dev.StopRecording(); err != nil {
			return m.fail(op+": stop recording", err)
		}
		m.mu.Lock()
		m.open = false
		m.recording = false
		m.capturing = false
		m.mu.Unlock()
	}

	if needsConcat {
		if err := m.concat.Concatenate(ctx, m.segs.ManifestPath(), m.segs.Path(segment.Concatenated)); err != nil {
			return m.fail(op+": concatenate", err)
		}
		if err := m.segs.PromoteConcatenated(); err != nil {
			return m.fail(op+": promote concatenated", err)
		}
		m.mu.Lock()
		m.needsConcat = false
		m.mu.Unlock()
	}

	m.mu.Lock()
	m.needsNewSegment = true
	m.mu.Unlock()
	return nil
}

// Preview plays back everything recorded so far.
func (m *Manager) Preview(ctx context.Context) error {
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.release()

	m.mu.Lock()
	started, playing := m.started, m.playing
	resume := m.loaded && m.playbackPaused && !m.open && !m.needsConcat
	m.mu.Unlock()

	if !started {
		return m.strike()
	}
	if playing {
		return nil
	}

	if resume {
		if err := m.dev.ResumePlayback(); err != nil {
			return m.alert("resume playback", err)
		}
	} else {
		if err := m.finalize(ctx, "preview"); err != nil {
			return err
		}
		if err := m.dev.StartPlayback(m.segs.Path(segment.Original)); err != nil {
			m.mu.Lock()
			m.setStateLocked(StatePaused)
			m.mu.Unlock()
			m.changed()
			return m.alert("start playback", err)
		}
	}

	m.mu.Lock()
	m.playing = true
	m.loaded = true
	m.playbackPaused = false
	m.setStateLocked(StatePreviewing)
	m.mu.Unlock()
	m.changed()
	return nil
}

// Seek moves the preview position.
func (m *Manager) Seek(ctx context.Context, ms int) error {
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.release()

	m.mu.Lock()
	loaded := m.loaded
	m.mu.Unlock()
	if !loaded {
		return ErrNoPreview
	}
	if err := m.dev.Seek(ms); err != nil {
		return m.alert("seek", err)
	}
	return nil
}

func (m *Manager) playbackFinished() {
	m.mu.Lock()
	if !m.playing {
		m.mu.Unlock()
		return
	}
	m.playing = false
	m.playbackPaused = false
	if m.state == StatePreviewing {
		m.setStateLocked(StatePaused)
	}
	m.mu.Unlock()
	m.changed()
}

// stopPlayback unloads the preview, if any.
func (m *Manager) stopPlayback() error {
	m.mu.Lock()
	loaded := m.loaded
	m.mu.Unlock()
	if !loaded {
		return nil
	}
	if err := m.dev.StopPlayback(); err != nil {
		return err
	}
	m.mu.Lock()
	m.loaded = false
	m.playing = false
	m.playbackPaused = false
	m.mu.Unlock()
	return nil
}

// Restart throws the recording away and returns to Idle. The caller asks for confirmation.
func (m *Manager) Restart(ctx context.Context) error {
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.release()

	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if !started {
		return m.strike()
	}

	m.mu.Lock()
	m.setStateLocked(StateRestarting)
	m.mu.Unlock()

	if err := m.stopPlayback(); err != nil {
		m.log.Warnw("Failed to stop playback before restart", "error", err)
	}
	if err := m.finalize(ctx, "restart"); err != nil {
		return err
	}
	if err := m.segs.Clear(); err != nil {
		return m.fail("restart: delete segments", err)
	}

	m.mu.Lock()
	m.started = false
	m.recording = false
	m.capturing = false
	m.open = false
	m.playing = false
	m.loaded = false
	m.playbackPaused = false
	m.needsNewSegment = false
	m.needsConcat = false
	m.recordedSeconds = 0
	resetChecklist(m.checklist)
	m.setStateLocked(StateIdle)
	m.mu.Unlock()
	m.changed()
	return nil
}

// Submit uploads the recording. The caller asks for confirmation.
func (m *Manager) Submit(ctx context.Context) (string, error) {
	if err := m.acquire(); err != nil {
		return "", err
	}
	defer m.release()

	m.mu.Lock()
	started := m.started
	complete := checklistDone(m.checklist)
	seconds := m.recordedSeconds
	m.mu.Unlock()

	switch {
	case !started:
		return "", m.strike()
	case !complete:
		m.notify.Notice(NoticeChecklist)
		return "", ErrChecklistIncomplete
	case seconds < m.cfg.MinSeconds:
		m.notify.Notice(NoticeTooShort)
		return "", ErrTooShort
	case seconds > m.cfg.MaxSeconds:
		m.notify.Notice(NoticeMaxDuration)
		return "", ErrMaxDuration
	}

	m.mu.Lock()
	m.setStateLocked(StateSubmitting)
	m.mu.Unlock()
	m.changed()

	if err := m.stopPlayback(); err != nil {
		m.log.Warnw("Failed to stop playback before submit", "error", err)
	}
	if err := m.finalize(ctx, "submit"); err != nil {
		return "", err
	}

	data, err := m.encode(m.segs.Path(segment.Original))
	if err != nil {
		return "", m.fail("submit: encode", err)
	}

	id, err := m.submit.SubmitAnswer(ctx, m.question.ID, data)
	if err != nil {
		return "", m.fail("submit: upload", err)
	}

	if err := m.segs.Clear(); err != nil {
		m.log.Warnw("Failed to delete segments after submit", "error", err)
	}

	m.mu.Lock()
	m.setStateLocked(StateSubmitted)
	m.mu.Unlock()
	m.log.Infow("Answer submitted", "answer_id", id, "question_id", m.question.ID, "seconds", seconds)
	m.changed()
	return id, nil
}

// Transcribe finalizes the recording and returns its text.
func (m *Manager) Transcribe(ctx context.Context, t Transcriber) (string, error) {
	if err := m.acquire(); err != nil {
		return "", err
	}
	defer m.release()

	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if !started {
		return "", m.strike()
	}

	if err := m.stopPlayback(); err != nil {
		return "", m.alert("stop playback", err)
	}
	if err := m.finalize(ctx, "transcribe"); err != nil {
		return "", err
	}

	m.mu.Lock()
	m.setStateLocked(StatePaused)
	m.mu.Unlock()
	m.changed()

	text, err := t.TranscribeFile(ctx, m.segs.Path(segment.Original))
	if err != nil {
		return "", m.alert("transcribe", err)
	}
	return text, nil
}

// Close tears the session down. Errors are logged and swallowed.
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.done)
	m.mu.Unlock()

	m.dev.ClearHandlers()

	// wait briefly for an in-flight operation; teardown proceeds regardless
	waitCtx, cancel := context.WithTimeout(ctx, 10*m.cfg.RetryDelay)
	defer cancel()
	locked := m.op.TryLock()
	for !locked && waitCtx.Err() == nil {
		time.Sleep(m.cfg.RetryDelay)
		locked = m.op.TryLock()
	}
	if locked {
		defer m.op.Unlock()
	}

	m.mu.Lock()
	open, loaded, submitted := m.open, m.loaded, m.state == StateSubmitted
	m.recording = false
	m.capturing = false
	m.playing = false
	m.mu.Unlock()

	if loaded {
		if err := m.dev.StopPlayback(); err != nil {
			m.log.Debugw("Teardown: stop playback", "error", err)
		}
	}
	if open {
		if err := m.dev.StopRecording(); err != nil {
			m.log.Debugw("Teardown: stop recording", "error", err)
		}
	}
	if !submitted {
		if err := m.segs.Clear(); err != nil {
			m.log.Debugw("Teardown: delete segments", "error", err)
		}
	}
}
