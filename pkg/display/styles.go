package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Palette adapts to terminal capabilities via lipgloss.
var (
	colorCyan   = lipgloss.Color("51")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorDim    = lipgloss.Color("240")
)

// Styles renders prompt fragments. The renderer is bound to the output
// writer, so anything that is not a color terminal gets plain text.
type Styles struct {
	Question lipgloss.Style
	Hint     lipgloss.Style
	Key      lipgloss.Style
	Invalid  lipgloss.Style
	Current  lipgloss.Style
}

// NewStyles builds styles for w.
func NewStyles(w io.Writer) Styles {
	r := lipgloss.NewRenderer(w)
	return Styles{
		Question: r.NewStyle().Bold(true).Foreground(colorCyan),
		Hint:     r.NewStyle().Foreground(colorDim),
		Key:      r.NewStyle().Bold(true),
		Invalid:  r.NewStyle().Foreground(colorRed),
		Current:  r.NewStyle().Foreground(colorYellow),
	}
}

// ChoiceLines renders "key) label" lines with keys padded to a common
// display width.
func (s Styles) ChoiceLines(keys, labels []string) []string {
	width := 0
	for _, k := range keys {
		if w := runewidth.StringWidth(k); w > width {
			width = w
		}
	}
	lines := make([]string, len(keys))
	for i, k := range keys {
		pad := strings.Repeat(" ", width-runewidth.StringWidth(k))
		lines[i] = fmt.Sprintf("%s)%s %s", s.Key.Render(k), pad, labels[i])
	}
	return lines
}

// RenderMarkdown converts a markdown string to styled terminal output.
// Falls back to the raw input if glamour is unavailable or rendering fails.
func RenderMarkdown(md string, width int) string {
	if strings.TrimSpace(md) == "" {
		return md
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}
