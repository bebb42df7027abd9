// Package prompt reads one line of operator input from a raw-mode terminal.
//
// The driver owns the terminal for the duration of a single Prompt call: it
// saves the current mode, switches to raw mode so that interrupt and erase
// bytes arrive individually, and restores the saved mode on every exit path.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/yourlabs/remember/pkg/display"
	"github.com/yourlabs/remember/pkg/fault"
)

// clearLine moves to the beginning of the line and erases it.
const clearLine = "\r\x1b[K"

// ControlChars are the bytes the driver reacts to besides line endings.
type ControlChars struct {
	Interrupt byte
	Erase     []byte
}

// DefaultControlChars is used when the terminal configuration cannot be read.
var DefaultControlChars = ControlChars{Interrupt: 0x03, Erase: []byte{0x7f, 0x08}}

// State is an opaque saved terminal mode.
type State any

// Terminal is the device a prompt runs on. Reads are expected to deliver
// input as it arrives; the driver reads one byte at a time.
type Terminal interface {
	io.Reader
	io.Writer
	// IsInteractive reports whether input is attached to a live terminal.
	IsInteractive() bool
	// MakeRaw switches to raw mode, keeping local echo when echo is set,
	// and returns the mode to restore.
	MakeRaw(echo bool) (State, error)
	Restore(State) error
	ControlChars() (ControlChars, error)
	// FlushInput discards input typed before the prompt was shown.
	FlushInput() error
}

// Driver renders prompts and collects answers.
type Driver struct {
	term Terminal
	disp *display.Display

	// Echo keeps local echo on while typing. Enabled by New.
	Echo bool
}

// New creates a driver on term, rendering prompt text through disp.
func New(term Terminal, disp *display.Display) *Driver {
	return &Driver{term: term, disp: disp, Echo: true}
}

// session is the per-call prompt state.
type session struct {
	chars ControlChars
	buf   []byte
	echo  bool
}

func (s *session) isErase(c byte) bool {
	for _, e := range s.chars.Erase {
		if c == e {
			return true
		}
	}
	return false
}

// Prompt shows text (and the reason the previous answer was rejected, if
// any) and returns the line typed by the operator.
//
// Without a terminal it returns "" with a NotInteractive error, which callers
// treat as "no answer". The interrupt byte yields an Aborted error. The
// terminal mode is restored before Prompt returns in every case.
func (d *Driver) Prompt(ctx context.Context, text, invalid string) (line string, err error) {
	styles := d.disp.Styles()
	msg := text
	if invalid != "" {
		msg += "\n" + styles.Invalid.Render("Your answer did not validate: "+invalid)
	}
	d.disp.Display(msg)

	if !d.term.IsInteractive() {
		d.disp.Warning("Not waiting for response to prompt as stdin is not interactive")
		return "", &fault.Error{Kind: fault.NotInteractive}
	}

	s := &session{chars: DefaultControlChars, echo: d.Echo}
	if cc, ccErr := d.term.ControlChars(); ccErr == nil {
		s.chars = mergeControlChars(cc)
	} else {
		d.disp.VV("using default control characters", "error", ccErr)
	}

	saved, err := d.term.MakeRaw(d.Echo)
	if err != nil {
		return "", fmt.Errorf("set raw mode: %w", err)
	}
	defer func() {
		if rerr := d.term.Restore(saved); rerr != nil && err == nil {
			line, err = "", fmt.Errorf("restore terminal: %w", rerr)
		}
	}()

	if ferr := d.term.FlushInput(); ferr != nil {
		d.disp.VV("flush pending input", "error", ferr)
	}

	return d.readLine(ctx, s)
}

// maxEmptyReads bounds consecutive reads that return neither a byte nor an
// error.
const maxEmptyReads = 100

// canceler is implemented by terminals whose pending Read can be unblocked.
type canceler interface {
	CancelRead() bool
}

type readResult struct {
	c   byte
	err error
}

// readBytes reads one byte from the terminal for each request until done is
// closed. No read is outstanding between requests, so input typed after the
// line ends stays in the terminal for the next prompt.
func (d *Driver) readBytes(want <-chan struct{}, out chan<- readResult, done <-chan struct{}) {
	for {
		select {
		case <-want:
		case <-done:
			return
		}
		r := d.readByte()
		select {
		case out <- r:
		case <-done:
			return
		}
	}
}

func (d *Driver) readByte() readResult {
	var b [1]byte
	for range maxEmptyReads {
		n, err := d.term.Read(b[:])
		if n > 0 {
			return readResult{c: b[0]}
		}
		if err != nil {
			return readResult{err: err}
		}
	}
	return readResult{err: io.ErrNoProgress}
}

func (d *Driver) readLine(ctx context.Context, s *session) (string, error) {
	if err := ctx.Err(); err != nil {
		d.write(clearLine)
		return "", err
	}

	want := make(chan struct{})
	input := make(chan readResult)
	done := make(chan struct{})
	defer close(done)
	go d.readBytes(want, input, done)

	for {
		var r readResult
		select {
		case want <- struct{}{}:
		case <-ctx.Done():
			d.write(clearLine)
			return "", ctx.Err()
		}
		select {
		case r = <-input:
		case <-ctx.Done():
			if c, ok := d.term.(canceler); ok {
				c.CancelRead()
			}
			d.write(clearLine)
			return "", ctx.Err()
		}

		if r.err != nil {
			if errors.Is(r.err, io.EOF) {
				d.write(clearLine)
				return string(s.buf), nil
			}
			return "", fmt.Errorf("read input: %w", r.err)
		}

		c := r.c
		switch {
		case c == s.chars.Interrupt:
			d.write(clearLine)
			return "", &fault.Error{Kind: fault.Aborted}
		case c == '\r' || c == '\n':
			d.write(clearLine)
			return string(s.buf), nil
		case s.isErase(c):
			if len(s.buf) > 0 {
				s.buf = s.buf[:len(s.buf)-1]
			}
			d.write(clearLine)
			if s.echo {
				d.write(string(s.buf))
			}
		default:
			s.buf = append(s.buf, c)
		}
	}
}

func (d *Driver) write(s string) {
	_, _ = io.WriteString(d.term, s)
}

// mergeControlChars fills disabled (zero) entries from the defaults.
func mergeControlChars(cc ControlChars) ControlChars {
	if cc.Interrupt == 0 {
		cc.Interrupt = DefaultControlChars.Interrupt
	}
	var erase []byte
	for _, e := range cc.Erase {
		if e != 0 {
			erase = append(erase, e)
		}
	}
	if len(erase) == 0 {
		erase = DefaultControlChars.Erase
	}
	cc.Erase = erase
	return cc
}
