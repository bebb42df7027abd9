//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package prompt

import "golang.org/x/sys/unix"

// controlChars reads the interrupt (VINTR) and erase (VERASE) bytes from the
// terminal configuration.
func controlChars(fd int) (ControlChars, error) {
	t, err := unix.IoctlGetTermios(fd, ioctlReadTermios)
	if err != nil {
		return ControlChars{}, err
	}
	return ControlChars{
		Interrupt: byte(t.Cc[unix.VINTR]),
		Erase:     []byte{byte(t.Cc[unix.VERASE])},
	}, nil
}

// enableEcho turns local echo back on after raw mode cleared it.
func enableEcho(fd int) error {
	t, err := unix.IoctlGetTermios(fd, ioctlReadTermios)
	if err != nil {
		return err
	}
	t.Lflag |= unix.ECHO
	return unix.IoctlSetTermios(fd, ioctlWriteTermios, t)
}
