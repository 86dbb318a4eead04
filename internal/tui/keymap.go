package tui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/bmbmjmdm/hear-you-out/internal/cards"
)

type keyMap struct {
	// question card
	Record     key.Binding
	Preview    key.Binding
	SeekBack   key.Binding
	SeekFwd    key.Binding
	Restart    key.Binding
	Submit     key.Binding
	Check      key.Binding
	Transcribe key.Binding

	// answer card
	Play     key.Binding
	Agree    key.Binding
	Disagree key.Binding
	Abstain  key.Binding
	Flag     key.Binding

	// no-content card
	Reload key.Binding
	Next   key.Binding

	Stats   key.Binding
	Help    key.Binding
	Quit    key.Binding
	Confirm key.Binding
	Cancel  key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Record:     key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "record/pause")),
		Preview:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "preview/pause")),
		SeekBack:   key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "-5s")),
		SeekFwd:    key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "+5s")),
		Restart:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "restart")),
		Submit:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "submit")),
		Check:      key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"), key.WithHelp("1-9", "checklist")),
		Transcribe: key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "transcript")),

		Play:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play/stop")),
		Agree:    key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "agree")),
		Disagree: key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "disagree")),
		Abstain:  key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "pass")),
		Flag:     key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "flag")),

		Reload: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Next:   key.NewBinding(key.WithKeys("right", "enter"), key.WithHelp("→", "next")),

		Stats:   key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "my answer stats")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Confirm: key.NewBinding(key.WithKeys("y", "enter"), key.WithHelp("y", "yes")),
		Cancel:  key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "no")),
	}
}

// cardKeys adapts the key map to help.KeyMap for the card on screen.
type cardKeys struct {
	keys keyMap
	kind cards.Kind
}

func (c cardKeys) ShortHelp() []key.Binding {
	k := c.keys
	switch c.kind {
	case cards.KindQuestion:
		return []key.Binding{k.Record, k.Preview, k.Submit, k.Check, k.Help, k.Quit}
	case cards.KindAnswer:
		return []key.Binding{k.Play, k.Agree, k.Disagree, k.Abstain, k.Help, k.Quit}
	case cards.KindNoContent:
		return []key.Binding{k.Reload, k.Next, k.Help, k.Quit}
	default:
		return []key.Binding{k.Quit}
	}
}

func (c cardKeys) FullHelp() [][]key.Binding {
	k := c.keys
	switch c.kind {
	case cards.KindQuestion:
		return [][]key.Binding{
			{k.Record, k.Preview, k.SeekBack, k.SeekFwd},
			{k.Check, k.Restart, k.Submit, k.Transcribe},
			{k.Stats, k.Help, k.Quit},
		}
	case cards.KindAnswer:
		return [][]key.Binding{
			{k.Play, k.Transcribe},
			{k.Agree, k.Disagree, k.Abstain, k.Flag},
			{k.Stats, k.Help, k.Quit},
		}
	default:
		return [][]key.Binding{c.ShortHelp()}
	}
}
