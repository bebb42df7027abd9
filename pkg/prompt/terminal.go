package prompt

import (
	"errors"
	"os"

	"github.com/chzyer/readline"
	"github.com/mattn/go-isatty"
	"github.com/muesli/cancelreader"
)

// ttyTerminal is a Terminal on the process's own file descriptors.
type ttyTerminal struct {
	in  *os.File
	out *os.File

	// reader wraps in while the terminal is raw so a pending read can be
	// interrupted.
	reader cancelreader.CancelReader
}

// ttyState holds the saved modes of input and, when it is a separate
// terminal, output.
type ttyState struct {
	in  *readline.State
	out *readline.State
}

// NewTerminal returns a Terminal reading from in and writing to out,
// normally os.Stdin and os.Stdout.
func NewTerminal(in, out *os.File) Terminal {
	return &ttyTerminal{in: in, out: out}
}

func (t *ttyTerminal) Read(p []byte) (int, error) {
	if t.reader != nil {
		return t.reader.Read(p)
	}
	return t.in.Read(p)
}

func (t *ttyTerminal) Write(p []byte) (int, error) { return t.out.Write(p) }

// CancelRead unblocks a pending Read, which then fails with
// cancelreader.ErrCanceled.
func (t *ttyTerminal) CancelRead() bool {
	if t.reader == nil {
		return false
	}
	return t.reader.Cancel()
}

func (t *ttyTerminal) IsInteractive() bool {
	return t.in != nil && readline.IsTerminal(int(t.in.Fd()))
}

// outIsSeparateTTY reports whether output is a terminal other than input.
// Redirected output (a file) cannot be put in raw mode.
func (t *ttyTerminal) outIsSeparateTTY() bool {
	if t.out == nil || t.out.Fd() == t.in.Fd() {
		return false
	}
	fd := t.out.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (t *ttyTerminal) MakeRaw(echo bool) (State, error) {
	inFd := int(t.in.Fd())
	saved := &ttyState{}

	st, err := readline.MakeRaw(inFd)
	if err != nil {
		return nil, err
	}
	saved.in = st

	if t.outIsSeparateTTY() {
		ost, err := readline.MakeRaw(int(t.out.Fd()))
		if err != nil {
			_ = readline.Restore(inFd, saved.in)
			return nil, err
		}
		saved.out = ost
	}

	if echo {
		if err := enableEcho(inFd); err != nil {
			_ = t.Restore(saved)
			return nil, err
		}
	}

	if r, err := cancelreader.NewReader(t.in); err == nil {
		t.reader = r
	}
	return saved, nil
}

func (t *ttyTerminal) Restore(s State) error {
	saved, ok := s.(*ttyState)
	if !ok || saved == nil {
		return errors.New("restore: not a saved terminal state")
	}
	var errs []error
	if t.reader != nil {
		errs = append(errs, t.reader.Close())
		t.reader = nil
	}
	if saved.out != nil {
		errs = append(errs, readline.Restore(int(t.out.Fd()), saved.out))
	}
	if saved.in != nil {
		errs = append(errs, readline.Restore(int(t.in.Fd()), saved.in))
	}
	return errors.Join(errs...)
}

func (t *ttyTerminal) ControlChars() (ControlChars, error) {
	return controlChars(int(t.in.Fd()))
}

func (t *ttyTerminal) FlushInput() error {
	return flushInput(int(t.in.Fd()))
}
