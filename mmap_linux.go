//go:build linux

package csf

import (
	"os"

	"golang.org/x/sys/unix"
)

// madvPopulateWrite is MADV_POPULATE_WRITE, Linux 5.14+.
const madvPopulateWrite = 23

// fallocateFile reserves size bytes for file so that writing through a
// mapping cannot hit SIGBUS on a full disk. Filesystems without
// fallocate only get the size set.
func fallocateFile(file *os.File, size int64) error {
	fd := int(file.Fd())
	_ = unix.Fallocate(fd, 0, 0, size)
	return unix.Ftruncate(fd, size)
}

// prefaultRegion populates the pages of a writable mapping up front.
// Older kernels return EINVAL, which is ignored.
func prefaultRegion(data []byte) {
	if len(data) > 0 {
		_ = unix.Madvise(data, madvPopulateWrite)
	}
}

// adviseRandom disables readahead on a mapped function: queries touch
// three windows at random positions.
func adviseRandom(data []byte) {
	if len(data) > 0 {
		_ = unix.Madvise(data, unix.MADV_RANDOM)
	}
}
