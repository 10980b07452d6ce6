//go:build linux

package chunkstore

import (
	"os"

	"golang.org/x/sys/unix"
)

// openTmpFile creates an anonymous file in dir that is deleted on close.
// O_TMPFILE needs Linux 3.11+ and filesystem support; callers fall back to
// os.CreateTemp on error.
func openTmpFile(dir string) (*os.File, error) {
	fd, err := unix.Open(dir, unix.O_RDWR|unix.O_TMPFILE|unix.O_CLOEXEC, 0600)
	if err != nil {
		return nil, err
	}
	return os.NewFile(uintptr(fd), ""), nil
}
