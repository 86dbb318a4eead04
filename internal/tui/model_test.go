package tui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmbmjmdm/hear-you-out/internal/api"
	"github.com/bmbmjmdm/hear-you-out/internal/cards"
	"github.com/bmbmjmdm/hear-you-out/internal/state"
	"github.com/bmbmjmdm/hear-you-out/internal/store"
)

type fakeSession struct {
	mu        sync.Mutex
	calls     []string
	snap      state.Snapshot
	submitID  string
	submitErr error
	closed    bool
	acked     map[int]bool
	// busy makes Pause fail with ErrBusy and PauseOnRelease wait
	busy bool
}

func newFakeSession(checklist ...string) *fakeSession {
	s := &fakeSession{submitID: "mine", acked: map[int]bool{}}
	for _, text := range checklist {
		s.snap.Checklist = append(s.snap.Checklist, state.ChecklistItem{Text: text})
	}
	s.snap.MaxSeconds = 300
	return s
}

func (f *fakeSession) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeSession) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeSession) Record(context.Context) error {
	f.record("record")
	f.mu.Lock()
	f.snap.Recording = true
	f.snap.Started = true
	f.mu.Unlock()
	return nil
}

func (f *fakeSession) Pause(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return state.ErrBusy
	}
	f.calls = append(f.calls, "pause")
	f.snap.Recording = false
	f.snap.Playing = false
	return nil
}

func (f *fakeSession) PauseOnRelease(ctx context.Context) error {
	for {
		f.mu.Lock()
		if !f.busy {
			f.calls = append(f.calls, "pause-on-release")
			f.snap.Recording = false
			f.mu.Unlock()
			return nil
		}
		f.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (f *fakeSession) setBusy(busy bool) {
	f.mu.Lock()
	f.busy = busy
	f.mu.Unlock()
}

func (f *fakeSession) Preview(context.Context) error {
	f.record("preview")
	f.mu.Lock()
	f.snap.Playing = true
	f.mu.Unlock()
	return nil
}

func (f *fakeSession) Seek(_ context.Context, ms int) error {
	f.record("seek")
	if ms < 0 {
		return errors.New("negative seek")
	}
	return nil
}

func (f *fakeSession) Restart(context.Context) error {
	f.record("restart")
	return nil
}

func (f *fakeSession) Submit(context.Context) (string, error) {
	f.record("submit")
	return f.submitID, f.submitErr
}

func (f *fakeSession) Transcribe(context.Context, state.Transcriber) (string, error) {
	f.record("transcribe")
	return "hello there", nil
}

func (f *fakeSession) Acknowledge(i int, done bool) error {
	f.record("ack")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked[i] = done
	return nil
}

func (f *fakeSession) Snapshot() state.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSession) Close(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSession) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeSource struct {
	mu       sync.Mutex
	question api.Question
	answers  []api.Answer
	votes    map[string]api.Vote
}

func (f *fakeSource) Question(context.Context) (*api.Question, error) {
	q := f.question
	return &q, nil
}

func (f *fakeSource) NextAnswer(_ context.Context, _ string, seen []string) (*api.Answer, error) {
	for _, a := range f.answers {
		found := false
		for _, id := range seen {
			found = found || id == a.ID
		}
		if !found {
			out := a
			return &out, nil
		}
	}
	return nil, nil
}

func (f *fakeSource) Vote(_ context.Context, id string, v api.Vote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.votes[id] = v
	return nil
}

func (f *fakeSource) Flag(context.Context, string, string) error { return nil }

type fakeAccount struct{}

func (fakeAccount) Session() *api.Session {
	return &api.Session{UserID: "0123456789", FeatureFlags: map[string]bool{"stats": true, "beta": false}}
}

func (fakeAccount) AnswerStats(_ context.Context, id string) (*api.AnswerStats, error) {
	return &api.AnswerStats{ID: id, NumAgrees: 2, NumServes: 5}, nil
}

type harness struct {
	src      *fakeSource
	prefs    *store.Prefs
	queue    *cards.Queue
	sessions []*fakeSession
	model    Model
}

func newHarness(t *testing.T, answeredQuestion string, answers ...string) *harness {
	t.Helper()
	ctx := context.Background()
	kv, err := store.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	h := &harness{
		src:   &fakeSource{question: api.Question{ID: "q1", Text: "Is remote work better?", Checklist: []string{"cost", "focus"}}, votes: map[string]api.Vote{}},
		prefs: store.NewPrefs(kv),
	}
	for _, id := range answers {
		h.src.answers = append(h.src.answers, api.Answer{ID: id, AudioData: "AAAA"})
	}
	if answeredQuestion != "" {
		require.NoError(t, h.prefs.SetAnswered(ctx, store.Answered{QuestionID: answeredQuestion, Text: "Old question", AnswerID: "mine"}))
	}
	h.queue = cards.NewQueue(h.src, h.prefs, nil)

	h.model = New(ctx, Deps{
		Queue:   h.queue,
		Prefs:   h.prefs,
		Account: fakeAccount{},
		NewSession: func(_ context.Context, q state.Question, _ state.Notifier) (Session, error) {
			s := newFakeSession(q.Checklist...)
			h.sessions = append(h.sessions, s)
			return s, nil
		},
		Policy: Policy{MinSeconds: 15, MaxSeconds: 300, WarnSeconds: 240},
	})
	return h
}

func (h *harness) update(t *testing.T, msg tea.Msg) tea.Cmd {
	t.Helper()
	next, cmd := h.model.Update(msg)
	h.model = next.(Model)
	return cmd
}

// load runs the initial load and the session factory synchronously.
func (h *harness) load(t *testing.T) {
	t.Helper()
	require.NoError(t, h.queue.Load(context.Background()))
	h.update(t, cardsLoadedMsg{})
	if h.model.card.Kind == cards.KindQuestion {
		h.update(t, sessionReadyMsg{gen: h.model.gen, session: h.newSession()})
	}
}

func (h *harness) newSession() Session {
	s := newFakeSession("cost", "focus")
	h.sessions = append(h.sessions, s)
	return s
}

func (h *harness) session() *fakeSession {
	return h.sessions[len(h.sessions)-1]
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNewModelIsLoading(t *testing.T) {
	h := newHarness(t, "")
	assert.True(t, h.model.loading)
	assert.Contains(t, h.model.View(), "Loading cards")
}

func TestQuestionCardStartsSession(t *testing.T) {
	h := newHarness(t, "")
	require.NoError(t, h.queue.Load(context.Background()))

	cmd := h.update(t, cardsLoadedMsg{})
	assert.NotNil(t, cmd)
	assert.Equal(t, cards.KindQuestion, h.model.card.Kind)
	assert.True(t, h.model.starting)
	assert.Equal(t, 1, h.model.gen)

	h.update(t, sessionReadyMsg{gen: 1, session: h.newSession()})
	assert.False(t, h.model.starting)
	assert.NotNil(t, h.model.session)
	assert.Contains(t, h.model.View(), "Is remote work better?")
}

func TestStaleSessionIsClosed(t *testing.T) {
	h := newHarness(t, "")
	h.load(t)

	stale := newFakeSession()
	cmd := h.update(t, sessionReadyMsg{gen: 0, session: stale})
	require.NotNil(t, cmd)
	cmd()
	assert.True(t, stale.closed)
	assert.NotSame(t, stale, h.model.session)
}

func TestSpaceTogglesRecordAndPause(t *testing.T) {
	h := newHarness(t, "")
	h.load(t)

	cmd := h.update(t, tea.KeyMsg{Type: tea.KeySpace})
	require.NotNil(t, cmd)
	assert.Equal(t, opDoneMsg{op: "record"}, cmd())

	cmd = h.update(t, tea.KeyMsg{Type: tea.KeySpace})
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, []string{"record", "pause-on-release"}, h.session().Calls())
}

func TestStopPressWaitsForBusySession(t *testing.T) {
	h := newHarness(t, "")
	h.load(t)

	cmd := h.update(t, tea.KeyMsg{Type: tea.KeySpace})
	require.NotNil(t, cmd)
	cmd()

	s := h.session()
	s.setBusy(true)
	cmd = h.update(t, tea.KeyMsg{Type: tea.KeySpace})
	require.NotNil(t, cmd)

	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()

	time.Sleep(10 * time.Millisecond)
	assert.True(t, s.Snapshot().Recording)
	s.setBusy(false)

	select {
	case msg := <-done:
		assert.Equal(t, opDoneMsg{op: "record"}, msg)
	case <-time.After(time.Second):
		t.Fatal("stop press was not retried")
	}
	assert.False(t, s.Snapshot().Recording)
	assert.Equal(t, []string{"record", "pause-on-release"}, s.Calls())
}

func TestPreviewCanBePaused(t *testing.T) {
	h := newHarness(t, "")
	h.load(t)
	s := h.session()

	run := func(msg tea.KeyMsg) {
		t.Helper()
		cmd := h.update(t, msg)
		require.NotNil(t, cmd)
		cmd()
	}

	run(tea.KeyMsg{Type: tea.KeySpace})
	run(tea.KeyMsg{Type: tea.KeySpace})
	run(keyRunes("p"))
	require.True(t, s.Snapshot().Playing)

	// p again pauses the preview
	run(keyRunes("p"))
	assert.False(t, s.Snapshot().Playing)

	// space while the preview plays pauses it instead of recording
	run(keyRunes("p"))
	run(tea.KeyMsg{Type: tea.KeySpace})
	assert.False(t, s.Snapshot().Playing)
	assert.False(t, s.Snapshot().Recording)

	assert.Equal(t, []string{"record", "pause-on-release", "preview", "pause", "preview", "pause"}, s.Calls())
}

func TestChecklistKeyAcknowledges(t *testing.T) {
	h := newHarness(t, "")
	h.load(t)

	cmd := h.update(t, keyRunes("2"))
	require.NotNil(t, cmd)
	cmd()
	assert.True(t, h.session().acked[1])

	assert.Nil(t, h.update(t, keyRunes("9")))
}

func TestSubmitNeedsConfirmation(t *testing.T) {
	h := newHarness(t, "")
	h.load(t)
	h.update(t, snapshotMsg{gen: h.model.gen, snap: state.Snapshot{Started: true, RecordedSeconds: 20}})

	assert.Nil(t, h.update(t, keyRunes("s")))
	assert.Equal(t, "submit", h.model.confirm)
	assert.Contains(t, h.model.View(), "Submit this answer?")

	h.update(t, keyRunes("n"))
	assert.Empty(t, h.model.confirm)
	assert.Empty(t, h.session().Calls())

	h.update(t, keyRunes("s"))
	cmd := h.update(t, keyRunes("y"))
	require.NotNil(t, cmd)
	msg := cmd()
	assert.Equal(t, submittedMsg{gen: h.model.gen, answerID: "mine"}, msg)

	last, err := h.prefs.LastAnswered(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "q1", last.QuestionID)

	cmd = h.update(t, msg)
	assert.NotNil(t, cmd)
	assert.Nil(t, h.model.session)
	assert.True(t, h.model.loading)
	assert.Equal(t, "Answer submitted. Here is what others said.", h.model.notice)
}

func TestFatalRecreatesSession(t *testing.T) {
	h := newHarness(t, "")
	h.load(t)
	first := h.model.session
	gen := h.model.gen

	cmd := h.update(t, fatalMsg{gen: gen, err: errors.New("concatenation failed")})
	assert.NotNil(t, cmd)
	assert.Nil(t, h.model.session)
	assert.Equal(t, gen+1, h.model.gen)
	assert.True(t, h.model.closing)
	assert.Contains(t, h.model.errText, "concatenation failed")

	// late events from the discarded session are dropped
	h.update(t, snapshotMsg{gen: gen, snap: state.Snapshot{RecordedSeconds: 99}})
	assert.Zero(t, h.model.snap.RecordedSeconds)

	h.update(t, sessionClosedMsg{gen: gen + 1})
	assert.False(t, h.model.closing)
	assert.True(t, h.model.starting)
	assert.Equal(t, gen+2, h.model.gen)

	h.update(t, sessionReadyMsg{gen: gen + 2, session: h.newSession()})
	assert.NotSame(t, first, h.model.session)
}

func TestFatalStartsNothingUntilTeardownEnds(t *testing.T) {
	h := newHarness(t, "")
	h.load(t)
	old := h.session()
	gen := h.model.gen

	h.update(t, fatalMsg{gen: gen, err: errors.New("stop failed")})
	assert.False(t, h.model.starting)
	assert.Contains(t, h.model.View(), "Preparing recorder")

	// neither a refill nor a retry key starts a second session meanwhile
	assert.Nil(t, h.update(t, refilledMsg{slot: cards.SlotB}))
	assert.Nil(t, h.update(t, tea.KeyMsg{Type: tea.KeySpace}))
	assert.False(t, h.model.starting)

	msg := closeCmd(context.Background(), old, h.model.gen)()
	assert.True(t, old.isClosed())
	assert.Equal(t, sessionClosedMsg{gen: gen + 1}, msg)

	// a close from an older generation is ignored
	assert.Nil(t, h.update(t, sessionClosedMsg{gen: gen}))
	assert.False(t, h.model.starting)

	cmd := h.update(t, msg)
	require.NotNil(t, cmd)
	assert.True(t, h.model.starting)
}

func TestNoticeTexts(t *testing.T) {
	p := Policy{MinSeconds: 15, MaxSeconds: 300}
	assert.Contains(t, noticeText(state.NoticeTooShort, p), "0:15")
	assert.Contains(t, noticeText(state.NoticeMaxDuration, p), "5:00")
	assert.NotEqual(t, noticeText(state.NoticeShake, p), noticeText(state.NoticeStartFirst, p))
}

func TestNoticeClears(t *testing.T) {
	h := newHarness(t, "")
	h.load(t)

	h.update(t, noticeMsg{gen: h.model.gen, kind: state.NoticeChecklist})
	assert.NotEmpty(t, h.model.notice)
	id := h.model.noticeID

	h.update(t, clearNoticeMsg{id: id - 1})
	assert.NotEmpty(t, h.model.notice)
	h.update(t, clearNoticeMsg{id: id})
	assert.Empty(t, h.model.notice)
}

func TestTimerWarnsNearLimit(t *testing.T) {
	h := newHarness(t, "")
	h.load(t)
	h.update(t, snapshotMsg{gen: h.model.gen, snap: state.Snapshot{
		State: state.StateRecording, Started: true, Recording: true, RecordedSeconds: 250, MaxSeconds: 300,
	}})

	view := h.model.View()
	assert.Contains(t, view, "4:10 / 5:00")
}

func TestVoteAdvancesAndRates(t *testing.T) {
	h := newHarness(t, "q1", "a1", "a2")
	h.load(t)
	require.Equal(t, cards.KindAnswer, h.model.card.Kind)
	require.Equal(t, "a1", h.model.card.Answer.ID)

	cmd := h.update(t, tea.KeyMsg{Type: tea.KeyRight})
	assert.NotNil(t, cmd)
	h.queue.Wait()
	assert.Equal(t, api.VoteAgree, h.src.votes["a1"])
	assert.Equal(t, "a2", h.model.card.Answer.ID)
	assert.Equal(t, cards.SlotB, h.queue.ActiveSlot())
}

func TestFlagNeedsConfirmation(t *testing.T) {
	h := newHarness(t, "q1", "a1", "a2")
	h.load(t)

	h.update(t, keyRunes("f"))
	assert.Equal(t, "flag", h.model.confirm)
	h.update(t, keyRunes("y"))
	h.queue.Wait()

	served, err := h.prefs.Served(context.Background())
	require.NoError(t, err)
	assert.Contains(t, served, "a1")
	assert.Equal(t, "a2", h.model.card.Answer.ID)
}

func TestBothEmptyReloads(t *testing.T) {
	h := newHarness(t, "q1")
	h.load(t)
	require.Equal(t, cards.KindNoContent, h.model.card.Kind)

	cmd := h.update(t, tea.KeyMsg{Type: tea.KeyRight})
	require.NotNil(t, cmd)
	assert.True(t, h.model.loading)
	assert.Equal(t, cardsLoadedMsg{}, cmd())
}

func TestTranscriptWithoutKey(t *testing.T) {
	h := newHarness(t, "")
	h.load(t)

	h.update(t, keyRunes("t"))
	assert.Contains(t, h.model.notice, "OpenAI")
}

func TestStatsKey(t *testing.T) {
	h := newHarness(t, "q0")
	h.load(t)

	cmd := h.update(t, keyRunes("i"))
	require.NotNil(t, cmd)
	h.update(t, cmd())
	require.NotNil(t, h.model.stats)
	assert.Equal(t, "mine", h.model.stats.ID)
	assert.Contains(t, h.model.View(), "heard 5 times")
}

func TestStatusLineShowsFlags(t *testing.T) {
	h := newHarness(t, "")
	assert.Equal(t, "user 01234567 · stats", h.model.statusLine())
}

func TestShutdownClosesRetiringSession(t *testing.T) {
	h := newHarness(t, "")
	h.load(t)
	old := h.session()

	h.update(t, fatalMsg{gen: h.model.gen, err: errors.New("stop failed")})
	require.Same(t, old, h.model.retiring)

	h.model.shutdown(context.Background())
	assert.True(t, old.isClosed())
}
