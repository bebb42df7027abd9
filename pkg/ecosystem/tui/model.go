// Package tui is a read-only browser over a variables file and the facts
// remembered for it. The operator can mark variables to ask again; the
// selection is returned as a force-ask list.
package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/yourlabs/remember/pkg/diagram"
	"github.com/yourlabs/remember/pkg/facts"
	"github.com/yourlabs/remember/pkg/schema"
)

var (
	colorCyan = lipgloss.Color("51")
	colorDim  = lipgloss.Color("240")

	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	dimStyle      = lipgloss.NewStyle().Foreground(colorDim)
	keyStyle      = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	keyDescStyle  = lipgloss.NewStyle().Foreground(colorDim)
)

// Row is one variable as shown in the browser.
type Row struct {
	Name      string
	Question  string
	Rule      string
	Default   string
	When      string
	Value     any
	Known     bool
	DependsOn []string
	Forced    bool
}

// Model is the Bubble Tea model of the fact browser.
type Model struct {
	title     string
	rows      []Row
	visible   []int // indexes into rows matching the filter
	selected  int   // index into visible
	filter    textinput.Model
	filtering bool
	confirmed bool
	width     int
	height    int
}

// NewModel builds a browser over f. cached holds the remembered facts; g
// may be nil, in which case dependencies are not shown.
func NewModel(title string, f *schema.File, cached facts.Set, g *diagram.Graph) Model {
	rows := make([]Row, 0, len(f.Remember))
	for _, v := range f.Remember {
		r := Row{
			Name:     v.Name,
			Question: v.Question,
			Rule:     ruleLabel(v),
			When:     v.When,
		}
		if v.HasDefault() {
			r.Default = *v.Default
		}
		r.Value, r.Known = cached[v.Name]
		if g != nil {
			r.DependsOn = g.DependsOn(v.Name)
		}
		rows = append(rows, r)
	}

	ti := textinput.New()
	ti.Placeholder = "Filter..."
	ti.CharLimit = 64
	ti.Width = 30
	ti.Prompt = "/ "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(colorCyan).Bold(true)

	m := Model{title: title, rows: rows, filter: ti}
	m.applyFilter()
	return m
}

func ruleLabel(v schema.Variable) string {
	switch {
	case v.Regexp != "":
		return "regexp"
	case len(v.Choices) > 0:
		return "choices"
	case v.Type != "":
		return v.Type
	default:
		return "string"
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		if m.filtering {
			return m.updateFilter(msg)
		}
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Confirm):
			m.confirmed = true
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.selected > 0 {
				m.selected--
			}
		case key.Matches(msg, keys.Down):
			if m.selected < len(m.visible)-1 {
				m.selected++
			}
		case key.Matches(msg, keys.Toggle):
			if r := m.current(); r != nil {
				r.Forced = !r.Forced
			}
		case key.Matches(msg, keys.All):
			all := true
			for _, i := range m.visible {
				all = all && m.rows[i].Forced
			}
			for _, i := range m.visible {
				m.rows[i].Forced = !all
			}
		case key.Matches(msg, keys.Filter):
			m.filtering = true
			m.filter.Focus()
			return m, textinput.Blink
		case key.Matches(msg, keys.Clear):
			m.filter.Reset()
			m.applyFilter()
		}
	}
	return m, nil
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.filter.Reset()
		fallthrough
	case "enter":
		m.filtering = false
		m.filter.Blur()
		m.applyFilter()
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

// applyFilter recomputes the visible rows and keeps the selection in range.
func (m *Model) applyFilter() {
	q := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	m.visible = make([]int, 0, len(m.rows))
	for i, r := range m.rows {
		if q == "" || strings.Contains(strings.ToLower(r.Name), q) || strings.Contains(strings.ToLower(r.Question), q) {
			m.visible = append(m.visible, i)
		}
	}
	if m.selected >= len(m.visible) {
		m.selected = max(len(m.visible)-1, 0)
	}
}

func (m *Model) current() *Row {
	if len(m.visible) == 0 {
		return nil
	}
	return &m.rows[m.visible[m.selected]]
}

// Confirmed reports whether the operator accepted the selection.
func (m Model) Confirmed() bool { return m.confirmed }

// ForceAsk returns the marked variables as a sorted force-ask list.
func (m Model) ForceAsk() string {
	var names []string
	for _, r := range m.rows {
		if r.Forced {
			names = append(names, r.Name)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("  remember: " + m.title))
	b.WriteString("\n\n")

	nameWidth, ruleWidth := 0, 0
	for _, r := range m.rows {
		nameWidth = max(nameWidth, runewidth.StringWidth(r.Name))
		ruleWidth = max(ruleWidth, runewidth.StringWidth(r.Rule))
	}

	if len(m.visible) == 0 {
		b.WriteString(dimStyle.Render("  no variables match"))
		b.WriteString("\n")
	}
	for vi, i := range m.visible {
		r := m.rows[i]
		mark := "[ ]"
		if r.Forced {
			mark = "[x]"
		}
		value := dimStyle.Render("(not remembered)")
		if r.Known {
			value = "= " + fmt.Sprint(r.Value)
		}
		line := fmt.Sprintf("%s %s  %s  %s", mark, pad(r.Name, nameWidth), pad(r.Rule, ruleWidth), value)
		if vi == m.selected {
			b.WriteString(selectedStyle.Render("▸ " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	if r := m.current(); r != nil {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("  question: ") + r.Question + "\n")
		if r.Default != "" {
			b.WriteString(dimStyle.Render("  default:  ") + r.Default + "\n")
		}
		if r.When != "" {
			b.WriteString(dimStyle.Render("  when:     ") + r.When + "\n")
		}
		if len(r.DependsOn) > 0 {
			b.WriteString(dimStyle.Render("  reads:    ") + strings.Join(r.DependsOn, ", ") + "\n")
		}
	}

	b.WriteString("\n")
	if m.filtering {
		b.WriteString("  " + m.filter.View() + "\n")
	} else if q := m.filter.Value(); q != "" {
		b.WriteString(dimStyle.Render("  filter: "+q) + "\n")
	}
	b.WriteString("  " + keyBarText(m.filtering))
	return b.String()
}

func pad(s string, width int) string {
	return s + strings.Repeat(" ", width-runewidth.StringWidth(s))
}
