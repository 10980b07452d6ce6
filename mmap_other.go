//go:build !linux && !darwin

package csf

import "os"

// fallocateFile only sets the size; blocks may be allocated lazily.
func fallocateFile(file *os.File, size int64) error {
	return file.Truncate(size)
}

func prefaultRegion(data []byte) {}

func adviseRandom(data []byte) {}
