package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/yourlabs/remember/pkg/diagram"
	"github.com/yourlabs/remember/pkg/facts"
	"github.com/yourlabs/remember/pkg/schema"
)

func testModel(t *testing.T) Model {
	t.Helper()
	f, err := schema.Load(strings.NewReader(`
remember:
  - name: project
    question: Project name?
    regexp: "[a-z]+"
  - name: domain
    question: Domain for {{ .project }}?
    type: hostname
    default: "{{ .project }}.example.com"
  - name: use_tls
    question: Serve over HTTPS?
    type: boolean
`))
	if err != nil {
		t.Fatal(err)
	}
	g, err := diagram.Build(f)
	if err != nil {
		t.Fatal(err)
	}
	return NewModel("webapp", f, facts.Set{"project": "shop", "use_tls": true}, g)
}

func press(m Model, keys ...string) Model {
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "up":
			msg = tea.KeyMsg{Type: tea.KeyUp}
		case "space":
			msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestNewModel_Rows(t *testing.T) {
	m := testModel(t)
	if len(m.rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(m.rows))
	}
	project, domain := m.rows[0], m.rows[1]
	if !project.Known || project.Value != "shop" || project.Rule != "regexp" {
		t.Errorf("project row = %+v", project)
	}
	if domain.Known {
		t.Error("domain is not remembered")
	}
	if domain.Default != "{{ .project }}.example.com" {
		t.Errorf("domain default = %q", domain.Default)
	}
	if len(domain.DependsOn) != 1 || domain.DependsOn[0] != "project" {
		t.Errorf("domain reads %v", domain.DependsOn)
	}
}

func TestModel_ToggleAndConfirm(t *testing.T) {
	m := press(testModel(t), "down", "space", "down", "space", "up", "up", "up")
	if m.selected != 0 {
		t.Errorf("selected = %d", m.selected)
	}
	if got := m.ForceAsk(); got != "domain,use_tls" {
		t.Errorf("ForceAsk = %q", got)
	}
	m = press(m, "enter")
	if !m.Confirmed() {
		t.Error("enter confirms the selection")
	}
}

func TestModel_ToggleAll(t *testing.T) {
	m := press(testModel(t), "a")
	if got := m.ForceAsk(); got != "domain,project,use_tls" {
		t.Errorf("ForceAsk = %q", got)
	}
	m = press(m, "a")
	if got := m.ForceAsk(); got != "" {
		t.Errorf("second toggle clears, got %q", got)
	}
}

func TestModel_QuitWithoutConfirm(t *testing.T) {
	m := testModel(t)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if next.(Model).Confirmed() {
		t.Error("quit must not confirm")
	}
}

func TestModel_Filter(t *testing.T) {
	m := press(testModel(t), "/", "h", "t", "t", "p", "enter")
	if m.filtering {
		t.Fatal("enter leaves filter mode")
	}
	if len(m.visible) != 1 || m.rows[m.visible[0]].Name != "use_tls" {
		t.Fatalf("visible = %v", m.visible)
	}
	m = press(m, "space")
	if got := m.ForceAsk(); got != "use_tls" {
		t.Errorf("ForceAsk = %q", got)
	}
	m = press(m, "esc")
	if len(m.visible) != 3 {
		t.Errorf("esc clears the filter, visible = %v", m.visible)
	}
}

func TestModel_FilterNoMatch(t *testing.T) {
	m := press(testModel(t), "/", "z", "z", "enter", "space")
	if !strings.Contains(m.View(), "no variables match") {
		t.Errorf("view:\n%s", m.View())
	}
	if m.ForceAsk() != "" {
		t.Error("nothing to toggle")
	}
}

func TestModel_View(t *testing.T) {
	m := testModel(t)
	view := m.View()
	for _, want := range []string{"remember: webapp", "project", "= shop", "(not remembered)", "question: Project name?"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	view = press(m, "down").View()
	if !strings.Contains(view, "reads:") || !strings.Contains(view, "default:") {
		t.Errorf("detail for domain missing:\n%s", view)
	}
}
