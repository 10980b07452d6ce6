//go:build linux

package chunkstore

import "golang.org/x/sys/unix"

// adviseSequential hints to the kernel that a mapped bucket will be read
// sequentially. Best-effort: errors are silently ignored.
func adviseSequential(data []byte) {
	if len(data) == 0 {
		return
	}
	_ = unix.Madvise(data, unix.MADV_SEQUENTIAL)
}
