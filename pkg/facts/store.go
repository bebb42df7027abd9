package facts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/yourlabs/remember/pkg/display"
	"github.com/yourlabs/remember/pkg/fault"
)

// DefaultDir is where local facts are read from by the fact gatherer.
const DefaultDir = "/etc/ansible/facts.d"

// Ext is the artifact file extension.
const Ext = ".fact"

// Store reads and writes fact artifacts in a directory.
type Store struct {
	Dir  string
	disp *display.Display
}

// NewStore creates a store rooted at dir (DefaultDir when empty).
func NewStore(dir string, disp *display.Display) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	if disp == nil {
		disp = display.Discard()
	}
	return &Store{Dir: dir, disp: disp}
}

// Path returns the artifact path for a fact name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.Dir, FactName(name)+Ext)
}

// Load reads the fact set stored under name. A missing artifact is an empty
// set, not an error.
func (s *Store) Load(name string) (Set, error) {
	path := s.Path(name)
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		s.disp.VV("no cached facts", "path", path)
		return Set{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read facts %s: %w", path, err)
	}
	set, err := Extract(content)
	if err != nil {
		return nil, fmt.Errorf("parse facts %s: %w", path, err)
	}
	s.disp.VV("loaded cached facts", "path", path, "count", len(set))
	return set, nil
}

// Save overwrites the artifact for name with set. The write goes through a
// temporary file in the same directory and a rename, so readers never see
// a partial artifact.
func (s *Store) Save(name string, set Set) error {
	path := s.Path(name)
	fail := func(err error, op string) error {
		return &fault.Error{Kind: fault.PersistenceFailure, Msg: fmt.Sprintf("%s %s", op, path), Err: err}
	}

	content, err := Render(set)
	if err != nil {
		return fail(err, "render")
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fail(err, "create directory for")
	}

	tmp, err := os.CreateTemp(s.Dir, "."+FactName(name)+"-*.tmp")
	if err != nil {
		return fail(err, "create temporary file for")
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		cleanup()
		return fail(err, "write")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fail(err, "sync")
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fail(err, "close")
	}
	if err := os.Chmod(tmpName, 0o755); err != nil {
		cleanup()
		return fail(err, "chmod")
	}
	if os.Geteuid() == 0 {
		if err := os.Chown(tmpName, 0, 0); err != nil {
			cleanup()
			return fail(err, "chown")
		}
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fail(err, "rename")
	}

	s.disp.V("saved facts", "path", path)
	s.disp.VV("fact content", "path", path, "content", string(content))
	return nil
}
