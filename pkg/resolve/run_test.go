package resolve

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/yourlabs/remember/pkg/display"
	"github.com/yourlabs/remember/pkg/facts"
	"github.com/yourlabs/remember/pkg/fault"
	"github.com/yourlabs/remember/pkg/prompt"
)

const colors = `
fact: palette
remember:
  - name: color
    question: Favorite color?
  - name: shade
    question: Shade of {{ .color }}?
    default: light
`

func TestRun_AsksAndSaves(t *testing.T) {
	f := loadFile(t, colors)
	p := answering("blue", "")
	store := &memStore{}

	res, err := New(p, store, nil).Run(context.Background(), &Request{File: f, Name: "palette"})
	if err != nil {
		t.Fatal(err)
	}
	want := facts.Set{"color": "blue", "shade": "light"}
	if !reflect.DeepEqual(store.saves["palette"], want) {
		t.Errorf("saved %v, want %v", store.saves["palette"], want)
	}
	if !reflect.DeepEqual(res.Asked, []string{"color", "shade"}) {
		t.Errorf("asked = %v", res.Asked)
	}
	if p.calls[1].text != "Shade of blue? (default: light)" {
		t.Errorf("second prompt = %q", p.calls[1].text)
	}
}

func TestRun_ReusesCachedFacts(t *testing.T) {
	f := loadFile(t, colors)
	p := answering("red")
	store := &memStore{}

	res, err := New(p, store, nil).Run(context.Background(), &Request{
		File:  f,
		Name:  "palette",
		Prior: facts.Set{"color": "blue", "shade": "dark"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(p.calls) != 0 {
		t.Errorf("prompted %d times for cached facts", len(p.calls))
	}
	if res.Facts["color"] != "blue" || res.Facts["shade"] != "dark" {
		t.Errorf("facts = %v", res.Facts)
	}
	if !reflect.DeepEqual(res.Reused, []string{"color", "shade"}) {
		t.Errorf("reused = %v", res.Reused)
	}
}

func TestRun_ForceAsk(t *testing.T) {
	prior := facts.Set{"color": "blue", "shade": "dark"}

	tests := []struct {
		name      string
		force     string
		prevState string
		answers   []string
		want      facts.Set
		prompts   int
	}{
		{"one variable", "color", "", []string{"red"}, facts.Set{"color": "red", "shade": "dark"}, 1},
		{"wildcard", "*", "", []string{"red", "pale"}, facts.Set{"color": "red", "shade": "pale"}, 2},
		{"all", "all", "", []string{"", ""}, facts.Set{"color": "", "shade": "light"}, 2},
		{"list with spaces", "shade, other", "", []string{"pale"}, facts.Set{"color": "blue", "shade": "pale"}, 1},
		{"previous success", "*", StateSuccess, nil, prior, 0},
		{"previous failure", "color", "failed", []string{"red"}, facts.Set{"color": "red", "shade": "dark"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := answering(tt.answers...)
			res, err := New(p, nil, nil).Run(context.Background(), &Request{
				File:          loadFile(t, colors),
				Prior:         prior,
				ForceAsk:      tt.force,
				PreviousState: tt.prevState,
			})
			if err != nil {
				t.Fatal(err)
			}
			if len(p.calls) != tt.prompts {
				t.Errorf("prompted %d times, want %d", len(p.calls), tt.prompts)
			}
			if !reflect.DeepEqual(res.Facts, tt.want) {
				t.Errorf("facts = %v, want %v", res.Facts, tt.want)
			}
		})
	}
}

func TestRun_ForcedShowsCurrentAndRevalidates(t *testing.T) {
	f := loadFile(t, `
remember:
  - name: home
    question: Home?
    type: path
`)
	p := answering("", "/srv")
	res, err := New(p, nil, nil).Run(context.Background(), &Request{
		File:     f,
		Prior:    facts.Set{"home": "/opt"},
		ForceAsk: "home",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Facts["home"] != "/srv" {
		t.Errorf("home = %v", res.Facts["home"])
	}
	if len(p.calls) != 2 || !strings.Contains(p.calls[0].text, "Current: /opt") {
		t.Errorf("calls = %+v", p.calls)
	}
	if !strings.Contains(p.calls[1].invalid, `""`) {
		t.Errorf("invalid = %q", p.calls[1].invalid)
	}
}

func TestRun_ForcedDependencyAskedOnce(t *testing.T) {
	// shade's question needs color, which is asked as a dependency before
	// the loop reaches it, so the later forced ask is skipped.
	f := loadFile(t, `
remember:
  - name: shade
    question: Shade of {{ .color }}?
  - name: color
    question: Color?
`)
	p := answering("red", "dark")
	res, err := New(p, nil, nil).Run(context.Background(), &Request{File: f, ForceAsk: "*"})
	if err != nil {
		t.Fatal(err)
	}
	if len(p.calls) != 2 {
		t.Errorf("prompted %d times, want 2", len(p.calls))
	}
	if !reflect.DeepEqual(res.Asked, []string{"shade", "color"}) {
		t.Errorf("asked = %v", res.Asked)
	}
}

func TestRun_WhenFalseSkips(t *testing.T) {
	f := loadFile(t, `
remember:
  - name: use_tls
    question: HTTPS?
    type: boolean
  - name: acme_email
    question: ACME email?
    type: email
    when: use_tls
`)
	p := answering("no")
	store := &memStore{}
	res, err := New(p, store, nil).Run(context.Background(), &Request{
		File:  f,
		Name:  "web",
		Prior: facts.Set{"acme_email": "old@example.com"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(p.calls) != 1 {
		t.Errorf("prompted %d times, want 1", len(p.calls))
	}
	if _, ok := store.saves["web"]["acme_email"]; ok {
		t.Error("skipped variable must be absent from saved facts")
	}
	if !reflect.DeepEqual(res.Skipped, []string{"acme_email"}) {
		t.Errorf("skipped = %v", res.Skipped)
	}
}

func TestRun_WhenTrueAsks(t *testing.T) {
	f := loadFile(t, `
remember:
  - name: use_tls
    question: HTTPS?
    type: boolean
  - name: acme_email
    question: ACME email?
    type: email
    when: use_tls
`)
	p := answering("yes", "ops@example.com")
	res, err := New(p, nil, nil).Run(context.Background(), &Request{File: f})
	if err != nil {
		t.Fatal(err)
	}
	if res.Facts["use_tls"] != true || res.Facts["acme_email"] != "ops@example.com" {
		t.Errorf("facts = %v", res.Facts)
	}
}

func TestRun_OverridesAndState(t *testing.T) {
	store := &memStore{}
	p := answering("blue", "")
	_, err := New(p, store, nil).Run(context.Background(), &Request{
		File:      loadFile(t, colors),
		Name:      "palette",
		Overrides: map[string]any{"shade": "forced", "extra": 3},
		State:     StateSuccess,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := facts.Set{"color": "blue", "shade": "forced", "extra": 3, "state": "success"}
	if !reflect.DeepEqual(store.saves["palette"], want) {
		t.Errorf("saved %v, want %v", store.saves["palette"], want)
	}
}

func TestRun_RunContextVisibleButNotSaved(t *testing.T) {
	f := loadFile(t, `
remember:
  - name: path
    question: Path?
    default: /srv/{{ .role_name }}
`)
	store := &memStore{}
	_, err := New(notInteractive(), store, nil).Run(context.Background(), &Request{
		File:    f,
		Name:    "app",
		Context: map[string]any{"role_name": "nginx"},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := facts.Set{"path": "/srv/nginx"}
	if !reflect.DeepEqual(store.saves["app"], want) {
		t.Errorf("saved %v, want %v", store.saves["app"], want)
	}
}

func TestRun_NotInteractiveLeavesUnset(t *testing.T) {
	store := &memStore{}
	f := loadFile(t, `
remember:
  - name: color
    question: Favorite color?
  - name: shade
    question: Shade?
    default: light
`)
	res, err := New(notInteractive(), store, nil).Run(context.Background(), &Request{File: f, Name: "palette"})
	if err != nil {
		t.Fatal(err)
	}
	if store.saves["palette"]["shade"] != "light" {
		t.Errorf("saved %v", store.saves["palette"])
	}
	if !reflect.DeepEqual(res.Unset, []string{"color"}) {
		t.Errorf("unset = %v", res.Unset)
	}
	if _, ok := store.saves["palette"]["color"]; ok {
		t.Error("unset variable must not be saved")
	}
}

func TestRun_ForcedNotInteractiveKeepsCached(t *testing.T) {
	store := &memStore{}
	f := loadFile(t, `
remember:
  - name: color
    question: Favorite color?
`)
	res, err := New(notInteractive(), store, nil).Run(context.Background(), &Request{
		File:     f,
		Name:     "palette",
		Prior:    facts.Set{"color": "blue"},
		ForceAsk: "color",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Unset) != 0 {
		t.Errorf("unset = %v", res.Unset)
	}
	if !reflect.DeepEqual(res.Reused, []string{"color"}) {
		t.Errorf("reused = %v", res.Reused)
	}
	if store.saves["palette"]["color"] != "blue" {
		t.Errorf("saved %v", store.saves["palette"])
	}
}

func TestRun_UnsetDependencyFails(t *testing.T) {
	_, err := New(notInteractive(), &memStore{}, nil).Run(context.Background(), &Request{
		File: loadFile(t, colors),
		Name: "palette",
	})
	if !errors.Is(err, fault.ErrUnresolvableExpression) {
		t.Fatalf("expected UnresolvableExpression, got %v", err)
	}
	if !strings.Contains(err.Error(), "color has no value") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestRun_AbortSavesNothing(t *testing.T) {
	store := &memStore{}
	_, err := New(answering("blue", "^C"), store, nil).Run(context.Background(), &Request{
		File: loadFile(t, colors),
		Name: "palette",
	})
	if !errors.Is(err, fault.ErrAborted) {
		t.Fatalf("expected Aborted, got %v", err)
	}
	if len(store.saves) != 0 {
		t.Error("nothing may be saved after an abort")
	}
	var fe *fault.Error
	if !errors.As(err, &fe) {
		t.Fatalf("expected *fault.Error, got %T", err)
	}
	if fe.Partial["color"] != "blue" {
		t.Errorf("partial = %v", fe.Partial)
	}
}

func TestRun_PersistenceFailure(t *testing.T) {
	store := &memStore{err: errors.New("read-only file system")}
	_, err := New(answering("blue", ""), store, nil).Run(context.Background(), &Request{
		File: loadFile(t, colors),
		Name: "palette",
	})
	if !errors.Is(err, fault.ErrPersistenceFailure) {
		t.Fatalf("expected PersistenceFailure, got %v", err)
	}
}

func TestRun_UnresolvableWhen(t *testing.T) {
	f := loadFile(t, `
remember:
  - name: a
    question: A?
    when: missing == "x"
`)
	_, err := New(answering("x"), nil, nil).Run(context.Background(), &Request{File: f})
	if !errors.Is(err, fault.ErrSpecNotFound) {
		t.Fatalf("expected SpecNotFound, got %v", err)
	}
}

// ttyStub is a prompt.Terminal fed from a fixed byte stream.
type ttyStub struct {
	in   *bytes.Reader
	out  bytes.Buffer
	mode string
}

func (s *ttyStub) Read(p []byte) (int, error)  { return s.in.Read(p) }
func (s *ttyStub) Write(p []byte) (int, error) { return s.out.Write(p) }
func (s *ttyStub) IsInteractive() bool         { return true }
func (s *ttyStub) MakeRaw(bool) (prompt.State, error) {
	prev := s.mode
	s.mode = "raw"
	return prev, nil
}
func (s *ttyStub) Restore(st prompt.State) error {
	s.mode = st.(string)
	return nil
}
func (s *ttyStub) ControlChars() (prompt.ControlChars, error) { return prompt.DefaultControlChars, nil }
func (s *ttyStub) FlushInput() error                          { return nil }

func TestRun_TerminalSession(t *testing.T) {
	term := &ttyStub{in: bytes.NewReader([]byte("bluw\x7fe\r\r")), mode: "cooked"}
	store := &memStore{}
	d := prompt.New(term, display.Discard())

	_, err := New(d, store, nil).Run(context.Background(), &Request{File: loadFile(t, colors), Name: "palette"})
	if err != nil {
		t.Fatal(err)
	}
	want := facts.Set{"color": "blue", "shade": "light"}
	if !reflect.DeepEqual(store.saves["palette"], want) {
		t.Errorf("saved %v, want %v", store.saves["palette"], want)
	}
	if term.mode != "cooked" {
		t.Errorf("terminal left in %s mode", term.mode)
	}
}

func TestRun_TerminalInterrupt(t *testing.T) {
	term := &ttyStub{in: bytes.NewReader([]byte("bl\x03")), mode: "cooked"}
	store := &memStore{}
	d := prompt.New(term, display.Discard())

	_, err := New(d, store, nil).Run(context.Background(), &Request{File: loadFile(t, colors), Name: "palette"})
	if !errors.Is(err, fault.ErrAborted) {
		t.Fatalf("expected Aborted, got %v", err)
	}
	if err.Error() != "user requested abort!" {
		t.Errorf("message = %q", err.Error())
	}
	if term.mode != "cooked" {
		t.Errorf("terminal left in %s mode", term.mode)
	}
	if len(store.saves) != 0 {
		t.Error("nothing may be saved after an interrupt")
	}
}

func TestForced(t *testing.T) {
	tests := []struct {
		list, name string
		want       bool
	}{
		{"", "a", false},
		{"a", "a", true},
		{"b,a", "a", true},
		{" b , a ", "a", true},
		{"ab", "a", false},
		{"*", "a", true},
		{"all", "a", true},
		{",,", "a", false},
	}
	for _, tt := range tests {
		if got := Forced(tt.list, tt.name); got != tt.want {
			t.Errorf("Forced(%q, %q) = %v, want %v", tt.list, tt.name, got, tt.want)
		}
	}
}

func TestFactName(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		ctx     map[string]any
		want    string
		wantErr error
	}{
		{"file template", "fact: \"{{ .role_name }}.{{ .env }}\"\nremember: []", map[string]any{"role_name": "web", "env": "prod"}, "web_prod", nil},
		{"context override", "fact: ignored\nremember: []", map[string]any{"remember_fact": "custom"}, "custom", nil},
		{"role name", "remember: []", map[string]any{"role_name": "/etc/roles/yourlabs.nginx,1.2"}, "yourlabs_nginx", nil},
		{"nothing", "remember: []", nil, "", fault.ErrMalformedSpec},
		{"undefined", "fact: \"{{ .nope }}\"\nremember: []", map[string]any{}, "", fault.ErrUnresolvableExpression},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FactName(loadFile(t, tt.doc), tt.ctx)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
