package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/bmbmjmdm/hear-you-out/internal/api"
	"github.com/bmbmjmdm/hear-you-out/internal/cards"
	"github.com/bmbmjmdm/hear-you-out/internal/state"
	"github.com/bmbmjmdm/hear-you-out/internal/store"
)

// Session is one recording session for the question on screen. *state.Manager
// wrapped with its segment directory satisfies it.
type Session interface {
	Record(ctx context.Context) error
	Pause(ctx context.Context) error
	PauseOnRelease(ctx context.Context) error
	Preview(ctx context.Context) error
	Seek(ctx context.Context, ms int) error
	Restart(ctx context.Context) error
	Submit(ctx context.Context) (string, error)
	Transcribe(ctx context.Context, t state.Transcriber) (string, error)
	Acknowledge(i int, done bool) error
	Snapshot() state.Snapshot
	Close(ctx context.Context)
}

// SessionFactory prepares a fresh session; it is called again after a fatal error.
type SessionFactory func(ctx context.Context, q state.Question, notify state.Notifier) (Session, error)

// AnswerPlayer plays other users' answers.
type AnswerPlayer interface {
	PlayData(data []byte) error
	StopPlayback() error
	SetPositionHandler(func(pos, total time.Duration))
	SetCompletionHandler(func())
	ClearHandlers()
}

type Transcriber interface {
	TranscribeFile(ctx context.Context, path string) (string, error)
	TranscribeAudio(ctx context.Context, data []byte) (string, error)
}

// Account is the logged-in side of the API.
type Account interface {
	Session() *api.Session
	AnswerStats(ctx context.Context, answerID string) (*api.AnswerStats, error)
}

type Policy struct {
	MinSeconds  int
	MaxSeconds  int
	WarnSeconds int
}

type Deps struct {
	Queue      *cards.Queue
	Prefs      *store.Prefs
	Account    Account
	NewSession SessionFactory
	Player     AnswerPlayer
	// Transcriber is optional; transcripts are disabled without it.
	Transcriber Transcriber
	Policy      Policy
	Log         *zap.SugaredLogger
}

const (
	seekStep      = 5 * time.Second
	noticeTimeout = 4 * time.Second
	flagReason    = "inappropriate"
)

var errNoAnswerYet = errors.New("answer a question first")

// Model is the root bubbletea model: one card at a time from the queue.
type Model struct {
	ctx   context.Context
	deps  Deps
	log   *zap.SugaredLogger
	relay *relay

	keys    keyMap
	help    help.Model
	spinner spinner.Model
	bar     progress.Model
	width   int

	loading bool
	card    cards.Card

	// recording session of the question card
	session  Session
	gen      int
	starting bool
	closing  bool
	retiring Session
	snap     state.Snapshot
	level    float64
	pos      time.Duration
	total    time.Duration

	answerPlaying bool
	answerPos     time.Duration
	answerTotal   time.Duration

	confirm    string
	working    string
	transcript string
	hint       string
	notice     string
	errText    string
	noticeID   int
	stats      *api.AnswerStats
}

func New(ctx context.Context, deps Deps) Model {
	if deps.Log == nil {
		deps.Log = zap.NewNop().Sugar()
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = activeStyle

	return Model{
		ctx:     ctx,
		deps:    deps,
		log:     deps.Log,
		relay:   &relay{},
		keys:    defaultKeyMap(),
		help:    help.New(),
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40), progress.WithoutPercentage()),
		loading: true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, loadCmd(m.ctx, m.deps.Queue, false))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		m.bar.Width = max(10, min(60, msg.Width-24))
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case cardsLoadedMsg:
		m.loading = false
		var cmd tea.Cmd
		if msg.err != nil {
			cmd = m.showError(msg.err)
		}
		next := tea.Batch(cmd, m.showActive())
		return m, next

	case refilledMsg:
		if msg.err != nil {
			m.log.Warnw("Refill failed", "slot", msg.slot, "error", msg.err)
		}
		next := m.showActive()
		return m, next

	case sessionReadyMsg:
		if msg.gen != m.gen {
			if msg.session != nil {
				return m, closeCmd(m.ctx, msg.session, msg.gen)
			}
			return m, nil
		}
		m.starting = false
		if msg.err != nil {
			m.log.Errorw("Failed to prepare recording session", "error", msg.err)
			next := m.showError(msg.err)
			return m, next
		}
		m.session = msg.session
		m.snap = msg.session.Snapshot()
		return m, nil

	case sessionClosedMsg:
		if msg.gen != m.gen || !m.closing {
			return m, nil
		}
		m.closing = false
		m.retiring = nil
		next := m.showActive()
		return m, next

	case snapshotMsg:
		if msg.gen == m.gen {
			m.snap = msg.snap
		}
		return m, nil

	case meterMsg:
		if msg.gen == m.gen {
			m.level = msg.level
		}
		return m, nil

	case progressMsg:
		if msg.gen == m.gen {
			m.pos, m.total = msg.pos, msg.total
		}
		return m, nil

	case noticeMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		next := m.showNotice(noticeText(msg.kind, m.deps.Policy))
		return m, next

	case alertMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		next := m.showError(msg.err)
		return m, next

	case fatalMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		m.log.Errorw("Recording session failed, starting over", "error", msg.err)
		old := m.session
		if old == nil {
			// failed while preparing; the factory reports the error
			return m, nil
		}
		m.session = nil
		m.gen++
		m.closing = true
		m.retiring = old
		m.snap = state.Snapshot{}
		notice := m.showError(fmt.Errorf("starting over: %w", msg.err))
		// the replacement starts on sessionClosedMsg
		return m, tea.Batch(notice, closeCmd(m.ctx, old, m.gen))

	case opDoneMsg:
		m.working = ""
		next := m.opResult(msg)
		return m, next

	case submittedMsg:
		m.working = ""
		if msg.gen != m.gen {
			return m, nil
		}
		if msg.answerID == "" {
			next := m.opResult(opDoneMsg{op: "submit", err: msg.err})
			return m, next
		}
		old := m.session
		m.session = nil
		m.gen++
		m.closing = true
		m.retiring = old
		m.snap = state.Snapshot{}
		m.loading = true
		var notice tea.Cmd
		if msg.err != nil {
			// uploaded, but the local record of it failed
			m.log.Warnw("Failed to save answered question", "answer_id", msg.answerID, "error", msg.err)
			notice = m.showError(msg.err)
		} else {
			notice = m.showNotice("Answer submitted. Here is what others said.")
		}
		return m, tea.Batch(closeCmd(m.ctx, old, m.gen), notice, loadCmd(m.ctx, m.deps.Queue, true))

	case transcriptMsg:
		m.working = ""
		if msg.err != nil {
			if errors.Is(msg.err, state.ErrBusy) || errors.Is(msg.err, state.ErrNotStarted) {
				return m, nil
			}
			next := m.showError(msg.err)
			return m, next
		}
		m.transcript = msg.text
		if m.transcript == "" {
			m.transcript = "(nothing recognized)"
		}
		return m, nil

	case statsMsg:
		if msg.err != nil {
			next := m.showError(msg.err)
			return m, next
		}
		m.stats = msg.stats
		return m, nil

	case hintMsg:
		m.hint = msg.text
		return m, nil

	case answerStartedMsg:
		if msg.err != nil {
			m.answerPlaying = false
			next := m.showError(msg.err)
			return m, next
		}
		return m, nil

	case answerProgressMsg:
		m.answerPos, m.answerTotal = msg.pos, msg.total
		return m, nil

	case answerDoneMsg:
		m.answerPlaying = false
		return m, nil

	case clearNoticeMsg:
		if msg.id == m.noticeID {
			m.notice = ""
			m.errText = ""
		}
		return m, nil
	}

	return m, nil
}

// showActive renders the queue's active card, starting a recording session
// when it is a question.
func (m *Model) showActive() tea.Cmd {
	if m.loading {
		return nil
	}
	card := m.deps.Queue.Active()
	if sameCard(card, m.card) {
		if card.Kind == cards.KindQuestion && m.idle() {
			return m.startSession(*card.Question)
		}
		return nil
	}

	m.card = card
	m.transcript = ""
	m.hint = ""
	m.confirm = ""
	m.answerPlaying = false
	m.answerPos, m.answerTotal = 0, 0

	switch card.Kind {
	case cards.KindQuestion:
		var cmd tea.Cmd
		if m.idle() {
			cmd = m.startSession(*card.Question)
		}
		return tea.Batch(cmd, hintCmd(m.ctx, m.deps.Prefs, "question",
			"Record your answer with space. Cover every checklist item, then submit with s."))
	case cards.KindAnswer:
		return hintCmd(m.ctx, m.deps.Prefs, "answer",
			"Press enter to hear someone else's answer, then vote with the arrow keys.")
	}
	return nil
}

// idle reports that no session exists, is being prepared or is being torn down.
func (m *Model) idle() bool {
	return m.session == nil && !m.starting && !m.closing
}

func sameCard(a, b cards.Card) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case cards.KindQuestion:
		return a.Question.ID == b.Question.ID
	case cards.KindAnswer:
		return a.Answer.ID == b.Answer.ID
	default:
		return true
	}
}

func (m *Model) startSession(q api.Question) tea.Cmd {
	m.gen++
	m.starting = true
	m.snap = state.Snapshot{}
	m.level = 0
	m.pos, m.total = 0, 0
	return newSessionCmd(m.ctx, m.deps.NewSession, m.gen, q, sessionNotifier{relay: m.relay, gen: m.gen})
}

// advance consumes the active card.
func (m *Model) advance() tea.Cmd {
	step := m.deps.Queue.Advance()
	if step.Reload {
		m.loading = true
		return loadCmd(m.ctx, m.deps.Queue, true)
	}
	return tea.Batch(refillCmd(m.ctx, m.deps.Queue, step.Vacated), m.showActive())
}

func (m *Model) showNotice(text string) tea.Cmd {
	m.noticeID++
	m.notice = text
	m.errText = ""
	return clearNoticeCmd(m.noticeID)
}

func (m *Model) showError(err error) tea.Cmd {
	m.noticeID++
	m.notice = ""
	m.errText = err.Error()
	return clearNoticeCmd(m.noticeID)
}

// opResult surfaces errors the session did not already report through its notifier.
func (m *Model) opResult(msg opDoneMsg) tea.Cmd {
	switch {
	case msg.err == nil:
		return nil
	case errors.Is(msg.err, state.ErrNoPreview):
		return m.showNotice("Nothing to seek in. Preview first with p.")
	case errors.Is(msg.err, state.ErrNotReady):
		return m.showNotice("Still preparing the recorder.")
	case errors.Is(msg.err, state.ErrBusy),
		errors.Is(msg.err, state.ErrTerminal),
		errors.Is(msg.err, state.ErrNotStarted),
		errors.Is(msg.err, state.ErrChecklistIncomplete),
		errors.Is(msg.err, state.ErrTooShort),
		errors.Is(msg.err, state.ErrMaxDuration),
		state.IsFatal(msg.err):
		m.log.Debugw("Operation rejected", "op", msg.op, "error", msg.err)
		return nil
	default:
		// alerts were already shown
		m.log.Debugw("Operation failed", "op", msg.op, "error", msg.err)
		return nil
	}
}

func noticeText(kind state.NoticeKind, p Policy) string {
	switch kind {
	case state.NoticeShake:
		return "Record something first."
	case state.NoticeStartFirst:
		return "Press space to start recording."
	case state.NoticeChecklist:
		return "Cover every checklist item (1-9) before submitting."
	case state.NoticeTooShort:
		return fmt.Sprintf("Answers must be at least %s long.", state.FormatDuration(p.MinSeconds))
	case state.NoticeMaxDuration:
		return fmt.Sprintf("Maximum length of %s reached.", state.FormatDuration(p.MaxSeconds))
	default:
		return ""
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) && msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.confirm != "" {
		return m.handleConfirm(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Stats):
		return m, statsCmd(m.ctx, m.deps.Prefs, m.deps.Account)
	}

	if m.loading {
		return m, nil
	}
	m.hint = ""

	switch m.card.Kind {
	case cards.KindQuestion:
		return m.handleQuestionKey(msg)
	case cards.KindAnswer:
		return m.handleAnswerKey(msg)
	case cards.KindNoContent:
		switch {
		case key.Matches(msg, m.keys.Reload):
			m.loading = true
			return m, loadCmd(m.ctx, m.deps.Queue, true)
		case key.Matches(msg, m.keys.Next):
			next := m.advance()
			return m, next
		}
	}
	return m, nil
}

func (m Model) handleConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	action := m.confirm
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.confirm = ""
	case key.Matches(msg, m.keys.Cancel):
		m.confirm = ""
		return m, nil
	default:
		return m, nil
	}

	switch action {
	case "restart":
		if m.session == nil {
			return m, nil
		}
		m.transcript = ""
		return m, opCmd(m.ctx, "restart", m.session.Restart)
	case "submit":
		if m.session == nil {
			return m, nil
		}
		m.working = "Submitting"
		return m, submitCmd(m.ctx, m.session, m.deps.Queue, *m.card.Question, m.gen)
	case "flag":
		if m.card.Kind != cards.KindAnswer {
			return m, nil
		}
		id := m.card.Answer.ID
		stop := m.stopAnswer()
		m.deps.Queue.Flag(m.ctx, id, flagReason)
		next := tea.Batch(stop, m.showNotice("Thanks, the answer was reported."), m.advance())
		return m, next
	}
	return m, nil
}

func (m Model) handleQuestionKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.session
	if s == nil {
		if m.idle() && key.Matches(msg, m.keys.Record) {
			next := m.startSession(*m.card.Question)
			return m, next
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Record):
		return m, opCmd(m.ctx, "record", func(ctx context.Context) error {
			snap := s.Snapshot()
			switch {
			case snap.Recording:
				// stopping waits for the guard instead of being dropped
				return s.PauseOnRelease(ctx)
			case snap.Playing:
				return s.Pause(ctx)
			}
			return s.Record(ctx)
		})

	case key.Matches(msg, m.keys.Preview):
		return m, opCmd(m.ctx, "preview", func(ctx context.Context) error {
			if s.Snapshot().Playing {
				return s.Pause(ctx)
			}
			return s.Preview(ctx)
		})

	case key.Matches(msg, m.keys.SeekBack), key.Matches(msg, m.keys.SeekFwd):
		target := m.pos - seekStep
		if key.Matches(msg, m.keys.SeekFwd) {
			target = m.pos + seekStep
		}
		target = max(0, target)
		return m, opCmd(m.ctx, "seek", func(ctx context.Context) error {
			return s.Seek(ctx, int(target.Milliseconds()))
		})

	case key.Matches(msg, m.keys.Restart):
		if !m.snap.Started {
			return m, opCmd(m.ctx, "restart", s.Restart)
		}
		m.confirm = "restart"
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		if !m.snap.Started {
			return m, submitCmd(m.ctx, s, m.deps.Queue, *m.card.Question, m.gen)
		}
		m.confirm = "submit"
		return m, nil

	case key.Matches(msg, m.keys.Check):
		i := int(msg.String()[0] - '1')
		if i >= len(m.snap.Checklist) {
			return m, nil
		}
		done := !m.snap.Checklist[i].Done
		return m, opCmd(m.ctx, "checklist", func(context.Context) error {
			return s.Acknowledge(i, done)
		})

	case key.Matches(msg, m.keys.Transcribe):
		if m.deps.Transcriber == nil {
			next := m.showNotice("Transcripts need an OpenAI API key (HYO_OPENAI__API_KEY).")
			return m, next
		}
		m.working = "Transcribing"
		return m, func() tea.Msg {
			text, err := s.Transcribe(m.ctx, m.deps.Transcriber)
			return transcriptMsg{text: text, err: err}
		}
	}
	return m, nil
}

func (m Model) handleAnswerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	answer := m.card.Answer

	switch {
	case key.Matches(msg, m.keys.Play):
		if m.answerPlaying {
			next := m.stopAnswer()
			return m, next
		}
		m.answerPlaying = true
		return m, playAnswerCmd(m.deps.Player, m.relay, answer.AudioData)

	case key.Matches(msg, m.keys.Agree), key.Matches(msg, m.keys.Disagree), key.Matches(msg, m.keys.Abstain):
		vote := api.VoteAbstain
		switch {
		case key.Matches(msg, m.keys.Agree):
			vote = api.VoteAgree
		case key.Matches(msg, m.keys.Disagree):
			vote = api.VoteDisagree
		}
		stop := m.stopAnswer()
		m.deps.Queue.Rate(m.ctx, answer.ID, vote)
		next := tea.Batch(stop, m.advance())
		return m, next

	case key.Matches(msg, m.keys.Flag):
		m.confirm = "flag"
		return m, nil

	case key.Matches(msg, m.keys.Transcribe):
		if m.deps.Transcriber == nil {
			next := m.showNotice("Transcripts need an OpenAI API key (HYO_OPENAI__API_KEY).")
			return m, next
		}
		m.working = "Transcribing"
		return m, transcribeAnswerCmd(m.ctx, m.deps.Transcriber, answer.AudioData)
	}
	return m, nil
}

func (m *Model) stopAnswer() tea.Cmd {
	if !m.answerPlaying {
		return nil
	}
	m.answerPlaying = false
	player := m.deps.Player
	return func() tea.Msg {
		if err := player.StopPlayback(); err != nil {
			return answerStartedMsg{err: err}
		}
		return answerDoneMsg{}
	}
}
