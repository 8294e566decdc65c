//go:build unix

package retry

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

var transientErrnos = map[syscall.Errno]struct{}{
	unix.EAGAIN:    {},
	unix.EBUSY:     {},
	unix.ETIMEDOUT: {},
	unix.ESTALE:    {},
}

// IsTransient reports whether err carries a busy, timeout or stale-handle errno
func IsTransient(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}
	_, ok := transientErrnos[errno]
	return ok
}
