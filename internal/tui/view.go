package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bmbmjmdm/hear-you-out/internal/cards"
	"github.com/bmbmjmdm/hear-you-out/internal/state"
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("hear you out"))
	b.WriteString("  ")
	b.WriteString(statusStyle.Render(m.statusLine()))
	b.WriteString("\n\n")

	if m.loading {
		b.WriteString(m.spinner.View() + " Loading cards...\n")
	} else {
		b.WriteString(cardStyle.Render(m.renderCard()))
		b.WriteString("\n")
	}

	if m.stats != nil {
		b.WriteString(m.renderStats())
		b.WriteString("\n")
	}

	switch {
	case m.confirm != "":
		b.WriteString(confirmStyle.Render(confirmText(m.confirm) + " [y/n]"))
		b.WriteString("\n")
	case m.working != "":
		b.WriteString(m.spinner.View() + " " + m.working + "...\n")
	}
	if m.hint != "" {
		b.WriteString(hintStyle.Render(m.hint))
		b.WriteString("\n")
	}
	if m.notice != "" {
		b.WriteString(noticeStyle.Render(m.notice))
		b.WriteString("\n")
	}
	if m.errText != "" {
		b.WriteString(errorStyle.Render("⚠ " + m.errText))
		b.WriteString("\n")
	}

	b.WriteString(dividerStyle.Render(strings.Repeat("─", max(20, min(m.width, 80)))))
	b.WriteString("\n")
	b.WriteString(m.help.View(cardKeys{keys: m.keys, kind: m.card.Kind}))
	b.WriteString("\n")
	return b.String()
}

func (m Model) statusLine() string {
	if m.deps.Account == nil {
		return ""
	}
	sess := m.deps.Account.Session()
	if sess == nil {
		return "offline"
	}
	line := "user " + shortID(sess.UserID)

	var flags []string
	for name, on := range sess.FeatureFlags {
		if on {
			flags = append(flags, name)
		}
	}
	if len(flags) > 0 {
		sort.Strings(flags)
		line += " · " + strings.Join(flags, ", ")
	}
	return line
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func confirmText(action string) string {
	switch action {
	case "restart":
		return "Throw away this recording and start over?"
	case "submit":
		return "Submit this answer?"
	case "flag":
		return "Report this answer as inappropriate?"
	}
	return action + "?"
}

func (m Model) renderCard() string {
	switch m.card.Kind {
	case cards.KindQuestion:
		return m.renderQuestion()
	case cards.KindAnswer:
		return m.renderAnswer()
	case cards.KindNoContent:
		return dimStyle.Render("No more answers right now.\nPress r to check again.")
	default:
		return dimStyle.Render("...")
	}
}

func (m Model) renderQuestion() string {
	var b strings.Builder
	b.WriteString(questionStyle.Render(m.card.Question.Text))
	b.WriteString("\n\n")

	for i, item := range m.snap.Checklist {
		mark, style := "[ ]", uncheckedStyle
		if item.Done {
			mark, style = "[x]", checkedStyle
		}
		b.WriteString(style.Render(fmt.Sprintf("%s %d %s", mark, i+1, item.Text)))
		b.WriteString("\n")
	}
	if len(m.snap.Checklist) > 0 {
		b.WriteString("\n")
	}

	if m.session == nil {
		if m.starting || m.closing {
			b.WriteString(m.spinner.View() + " Preparing recorder...")
		} else {
			b.WriteString(errorStyle.Render("Recorder unavailable. Press space to retry."))
		}
		return b.String()
	}

	b.WriteString(m.renderTimer())
	b.WriteString("\n")

	switch {
	case m.snap.Recording:
		b.WriteString(levelBar(m.level, 30))
	case m.snap.Playing || m.total > 0:
		b.WriteString(m.bar.ViewAs(fraction(m.pos, m.total)))
		b.WriteString(" ")
		b.WriteString(dimStyle.Render(fmt.Sprintf("%s / %s", clock(m.pos), clock(m.total))))
	}

	if m.transcript != "" {
		b.WriteString("\n\n")
		b.WriteString(transcriptStyle.Render("“" + m.transcript + "”"))
	}
	return b.String()
}

func (m Model) renderTimer() string {
	snap := m.snap
	limit := snap.MaxSeconds
	if limit == 0 {
		limit = m.deps.Policy.MaxSeconds
	}
	elapsed := fmt.Sprintf("%s / %s", snap.Elapsed(), state.FormatDuration(limit))

	label := snap.State.String()
	style := dimStyle
	switch {
	case snap.Recording && m.deps.Policy.WarnSeconds > 0 && snap.RecordedSeconds >= m.deps.Policy.WarnSeconds:
		style = warnStyle
		label = "● " + label
	case snap.Recording:
		style = recordingStyle
		label = "● " + label
	case snap.Playing:
		style = activeStyle
		label = "▶ " + label
	}
	return style.Render(label+"  "+elapsed) + " " + m.bar.ViewAs(fraction(time.Duration(snap.RecordedSeconds), time.Duration(limit)))
}

func (m Model) renderAnswer() string {
	var b strings.Builder
	if m.card.QuestionText != "" {
		b.WriteString(dimStyle.Render("Someone answered:"))
		b.WriteString("\n")
		b.WriteString(questionStyle.Render(m.card.QuestionText))
		b.WriteString("\n\n")
	}

	if m.answerPlaying {
		b.WriteString(activeStyle.Render("▶ Playing "))
		b.WriteString(m.bar.ViewAs(fraction(m.answerPos, m.answerTotal)))
		b.WriteString(" ")
		b.WriteString(dimStyle.Render(fmt.Sprintf("%s / %s", clock(m.answerPos), clock(m.answerTotal))))
	} else {
		b.WriteString(dimStyle.Render("Press enter to listen."))
	}

	if m.transcript != "" {
		b.WriteString("\n\n")
		b.WriteString(transcriptStyle.Render("“" + m.transcript + "”"))
	}
	return b.String()
}

func (m Model) renderStats() string {
	s := m.stats
	return statusStyle.Render(fmt.Sprintf(
		"Your last answer: heard %d times · %d agree · %d disagree · %d passed",
		s.NumServes, s.NumAgrees, s.NumDisagrees, s.NumAbstains,
	))
}

// levelBar draws an input meter; level is an RMS in 0..1.
func levelBar(level float64, width int) string {
	n := int(level * 4 * float64(width))
	n = max(0, min(width, n))
	return activeStyle.Render(strings.Repeat("▮", n)) + dimStyle.Render(strings.Repeat("▯", width-n))
}

func fraction(pos, total time.Duration) float64 {
	if total <= 0 {
		return 0
	}
	return min(1, float64(pos)/float64(total))
}

func clock(d time.Duration) string {
	return state.FormatDuration(int(d.Round(time.Second) / time.Second))
}
