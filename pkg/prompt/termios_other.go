//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package prompt

import "errors"

var errNoTermios = errors.New("terminal control characters unavailable on this platform")

func controlChars(fd int) (ControlChars, error) {
	return ControlChars{}, errNoTermios
}

func enableEcho(fd int) error {
	return nil
}

func flushInput(fd int) error {
	return nil
}
