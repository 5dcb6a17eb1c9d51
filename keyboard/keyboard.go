// Package keyboard puts the controlling terminal into raw mode so
// that single key presses can be polled without blocking, and
// guarantees the previous terminal settings are restored.
package keyboard

import (
	"os"

	"golang.org/x/sys/unix"
	errgo "gopkg.in/errgo.v1"
)

// Keyboard holds the saved terminal state. Closing it restores the
// terminal; Close is idempotent so it can be deferred on every exit
// path and also called explicitly in the shutdown sequence.
type Keyboard struct {
	fd    int
	saved *unix.Termios
}

// Open switches stdin to raw mode (no canonical processing, no echo,
// no signal generation, non-blocking reads).
func Open() (*Keyboard, error) {
	fd := int(os.Stdin.Fd())
	saved, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, errgo.Notef(err, "cannot read terminal attributes")
	}
	raw := *saved
	raw.Lflag &^= unix.ICANON | unix.ECHO | unix.ISIG
	raw.Cc[unix.VMIN] = 0
	raw.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &raw); err != nil {
		return nil, errgo.Notef(err, "cannot set raw terminal mode")
	}
	return &Keyboard{
		fd:    fd,
		saved: saved,
	}, nil
}

// Poll returns a pending key press, if any, without blocking.
func (k *Keyboard) Poll() (byte, bool) {
	var buf [1]byte
	n, err := unix.Read(k.fd, buf[:])
	if err != nil || n != 1 {
		return 0, false
	}
	return buf[0], true
}

// Close restores the terminal settings saved by Open.
func (k *Keyboard) Close() error {
	if k.saved == nil {
		return nil
	}
	saved := k.saved
	k.saved = nil
	if err := unix.IoctlSetTermios(k.fd, unix.TCSETS, saved); err != nil {
		return errgo.Notef(err, "cannot restore terminal attributes")
	}
	return nil
}
