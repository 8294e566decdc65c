//go:build unix

package retry

import (
	"io/fs"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransientErrno(t *testing.T) {
	wrapped := &fs.PathError{Op: "stat", Path: "/mnt/share/file", Err: syscall.EBUSY}
	assert.True(t, IsTransient(wrapped))
	assert.True(t, IsTransient(syscall.ESTALE))
	assert.False(t, IsTransient(&fs.PathError{Op: "stat", Path: "/x", Err: syscall.EACCES}))
}
