package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

// keyMap holds the browser key bindings.
type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Toggle  key.Binding
	All     key.Binding
	Filter  key.Binding
	Clear   key.Binding
	Confirm key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Toggle: key.NewBinding(
		key.WithKeys(" ", "space"),
		key.WithHelp("space", "ask again"),
	),
	All: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "ask all again"),
	),
	Filter: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "filter"),
	),
	Clear: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "clear filter"),
	),
	Confirm: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "print selection"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// keyBarText renders the key hint line.
func keyBarText(filtering bool) string {
	if filtering {
		return keyStyle.Render("enter") + keyDescStyle.Render(":apply") + "  " +
			keyStyle.Render("esc") + keyDescStyle.Render(":cancel")
	}
	var parts []string
	for _, b := range []key.Binding{keys.Up, keys.Down, keys.Toggle, keys.All, keys.Filter, keys.Confirm, keys.Quit} {
		h := b.Help()
		parts = append(parts, keyStyle.Render(h.Key)+keyDescStyle.Render(":"+h.Desc))
	}
	return strings.Join(parts, "  ")
}

