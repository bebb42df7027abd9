package facts

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/yourlabs/remember/pkg/fault"
)

func TestRender_Format(t *testing.T) {
	content, err := Render(Set{"zeta": "last", "alpha": true, "mid": "x"})
	if err != nil {
		t.Fatal(err)
	}
	want := strings.Join([]string{
		"#!/bin/sh",
		"cat <<EOF",
		"{",
		`    "alpha": true,`,
		`    "mid": "x",`,
		`    "zeta": "last"`,
		"}",
		"EOF",
	}, "\n")
	if string(content) != want {
		t.Errorf("got:\n%s\nwant:\n%s", content, want)
	}
}

func TestRender_Empty(t *testing.T) {
	content, err := Render(nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "#!/bin/sh\ncat <<EOF\n{}\nEOF" {
		t.Errorf("got %q", content)
	}
}

func TestRoundTrip(t *testing.T) {
	orig := Set{
		"color":   "blue",
		"use_tls": true,
		"port":    int64(8443),
		"nested":  map[string]any{"b": "2", "a": "1"},
		"html":    "<b>&</b>",
	}
	content, err := Render(orig)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Extract(content)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, orig) {
		t.Errorf("round trip mismatch:\n got %#v\nwant %#v", got, orig)
	}
	keys := got.Keys()
	if strings.Join(keys, ",") != "color,html,nested,port,use_tls" {
		t.Errorf("keys = %v", keys)
	}
}

func TestRender_ShellSpecialCharacters(t *testing.T) {
	orig := Set{"cmd": "echo $HOME `id` a\\b \"q\""}
	content, err := Render(orig)
	if err != nil {
		t.Fatal(err)
	}
	body := string(content)
	for _, raw := range []string{"$", "`", `\\`} {
		if strings.Contains(body, raw) {
			t.Errorf("artifact still contains %q: %s", raw, body)
		}
	}
	got, err := Extract(content)
	if err != nil {
		t.Fatal(err)
	}
	if got["cmd"] != orig["cmd"] {
		t.Errorf("got %q, want %q", got["cmd"], orig["cmd"])
	}
}

// TestArtifactExecutes runs the artifact with /bin/sh and decodes its output.
func TestArtifactExecutes(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("no sh available")
	}
	orig := Set{"cmd": "echo $HOME `id` a\\b", "n": int64(3)}
	content, err := Render(orig)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "app.fact")
	if err := os.WriteFile(path, content, 0o755); err != nil {
		t.Fatal(err)
	}
	out, err := exec.Command(sh, path).Output()
	if err != nil {
		t.Fatalf("run artifact: %v", err)
	}
	got, err := Extract(out)
	if err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if !reflect.DeepEqual(got, orig) {
		t.Errorf("got %#v, want %#v", got, orig)
	}
}

func TestExtract_Errors(t *testing.T) {
	tests := map[string]string{
		"empty":        "",
		"unterminated": "#!/bin/sh\ncat <<EOF\n{}\n",
		"bad json":     "#!/bin/sh\ncat <<EOF\n{nope\nEOF",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Extract([]byte(content)); err == nil {
				t.Error("expected error")
			}
		})
	}
	if _, err := Extract([]byte("")); !errors.Is(err, ErrNoFacts) {
		t.Errorf("empty content should be ErrNoFacts, got %v", err)
	}
}

func TestExtract_BareJSON(t *testing.T) {
	got, err := Extract([]byte(`{"a": "b"}`))
	if err != nil {
		t.Fatal(err)
	}
	if got["a"] != "b" {
		t.Errorf("got %v", got)
	}
}

func TestFactName(t *testing.T) {
	tests := map[string]string{
		"yourlabs.remember": "yourlabs_remember",
		"a/b.c":             "a_b_c",
		"plain":             "plain",
	}
	for in, want := range tests {
		if got := FactName(in); got != want {
			t.Errorf("FactName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRoleName(t *testing.T) {
	tests := map[string]string{
		"github.com/you/your.role":     "your.role",
		"github.com/you/your.role/":    "your.role",
		"your.role,v1.2":               "your.role",
		"roles/yourlabs.remember,main": "yourlabs.remember",
		"plain":                        "plain",
	}
	for in, want := range tests {
		if got := RoleName(in); got != want {
			t.Errorf("RoleName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStore_LoadMissing(t *testing.T) {
	s := NewStore(t.TempDir(), nil)
	set, err := s.Load("nothing_here")
	if err != nil {
		t.Fatal(err)
	}
	if len(set) != 0 {
		t.Errorf("expected empty set, got %v", set)
	}
}

func TestStore_SaveLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "facts.d")
	s := NewStore(dir, nil)

	if err := s.Save("your.role", Set{"color": "blue"}); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "your_role.fact")
	if s.Path("your.role") != path {
		t.Errorf("path = %s", s.Path("your.role"))
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("mode = %v, want 0755", info.Mode().Perm())
	}

	// full overwrite, no merge
	if err := s.Save("your.role", Set{"size": "L"}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load("your.role")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, Set{"size": "L"}) {
		t.Errorf("got %v", got)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

func TestStore_SaveFailure(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "facts.d")
	if err := os.WriteFile(blocker, []byte("not a directory"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewStore(blocker, nil)
	err := s.Save("app", Set{"a": "b"})
	if !errors.Is(err, fault.ErrPersistenceFailure) {
		t.Fatalf("expected PersistenceFailure, got %v", err)
	}
}

func TestStore_LoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "app.fact"), []byte("#!/bin/sh\ncat <<EOF\n{\nEOF"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := NewStore(dir, nil).Load("app"); err == nil {
		t.Error("corrupt artifact must not load silently")
	}
}

func TestSet_Clone(t *testing.T) {
	var nilSet Set
	c := nilSet.Clone()
	if c == nil {
		t.Fatal("clone of nil must be usable")
	}
	orig := Set{"a": 1}
	c = orig.Clone()
	c["a"] = 2
	if orig["a"] != 1 {
		t.Error("clone must not alias")
	}
}
