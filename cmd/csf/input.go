package main

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const maxLineSize = 1 << 20

// compression selects the decompressor for an input file.
type compression int

const (
	compressionNone compression = iota
	compressionGzip
	compressionZstd
)

// readCloser closes a decompressor and the file beneath it.
type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r *readCloser) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// openInput opens path, or stdin for "" and "-", through c.
func openInput(path string, c compression) (io.ReadCloser, error) {
	var file io.ReadCloser = io.NopCloser(os.Stdin)
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		file = f
	}
	switch c {
	case compressionGzip:
		zr, err := gzip.NewReader(file)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("gzip: %w", err), file.Close())
		}
		return &readCloser{Reader: zr, closers: []io.Closer{zr, file}}, nil
	case compressionZstd:
		zr, err := zstd.NewReader(file)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("zstd: %w", err), file.Close())
		}
		return &readCloser{Reader: zr, closers: []io.Closer{zr.IOReadCloser(), file}}, nil
	}
	return file, nil
}

// lineSource yields the lines of a file, without terminators, and can be
// read any number of times. The first read error ends every later pass
// and is kept in err.
type lineSource struct {
	path        string
	compression compression
	err         error
}

func isStdin(path string) bool {
	return path == "" || path == "-"
}

// lines returns the lines of src. Yielded slices are only valid until the
// next iteration.
func (src *lineSource) lines() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		if src.err != nil {
			return
		}
		r, err := openInput(src.path, src.compression)
		if err != nil {
			src.err = err
			return
		}
		defer r.Close()

		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 64<<10), maxLineSize)
		for sc.Scan() {
			if !yield(bytes.TrimSuffix(sc.Bytes(), []byte{'\r'})) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			src.err = fmt.Errorf("read %s: %w", src.path, err)
		}
	}
}

// valueSource yields big-endian 64-bit values from a file, any number of
// times.
type valueSource struct {
	path string
	err  error
}

func (src *valueSource) values() iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		if src.err != nil {
			return
		}
		f, err := os.Open(src.path)
		if err != nil {
			src.err = err
			return
		}
		defer f.Close()

		br := bufio.NewReader(f)
		var buf [8]byte
		for {
			_, err := io.ReadFull(br, buf[:])
			if err == io.EOF {
				return
			}
			if err != nil {
				src.err = fmt.Errorf("read %s: %w", src.path, err)
				return
			}
			if !yield(binary.BigEndian.Uint64(buf[:])) {
				return
			}
		}
	}
}
