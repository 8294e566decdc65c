//go:build windows

package retry

import (
	"errors"
	"syscall"

	"golang.org/x/sys/windows"
)

var transientErrnos = map[syscall.Errno]struct{}{
	windows.ERROR_SHARING_VIOLATION: {},
	windows.ERROR_BAD_NETPATH:       {},
	windows.ERROR_NETNAME_DELETED:   {},
	windows.ERROR_SEM_TIMEOUT:       {},
}

// IsTransient reports whether err carries a sharing, network or timeout errno
func IsTransient(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}
	_, ok := transientErrnos[errno]
	return ok
}
