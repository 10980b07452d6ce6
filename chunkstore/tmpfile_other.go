//go:build !linux

package chunkstore

import (
	"errors"
	"os"
)

// openTmpFile is unavailable outside Linux; callers fall back to
// os.CreateTemp.
func openTmpFile(dir string) (*os.File, error) {
	return nil, errors.ErrUnsupported
}
