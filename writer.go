package csf

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/edsrzf/mmap-go"
	csferrors "github.com/tamirms/csf/errors"
	"github.com/tamirms/csf/internal/encoding"
)

// header returns the serialized header of f.
func (f *Function[K]) header() header {
	h := header{
		Magic:        magic,
		Version:      version,
		NumKeys:      f.n,
		GlobalSeed:   f.globalSeed,
		DefaultValue: f.defaultValue,
		Transform:    f.transform.ID(),
		Codec:        f.codecID,
	}
	if f.n > 0 {
		h.MaxCodeword = uint8(f.w)
		h.ChunkShift = uint8(f.chunkShift)
		h.NumChunks = uint64(f.NumChunks())
		h.DataBits = f.dataBits
		h.DecoderLen = f.decoder.NumBits() / 8
	}
	return h
}

// decoderBytes returns the serialized decoder, empty for an empty function.
func (f *Function[K]) decoderBytes() ([]byte, error) {
	if f.decoder == nil {
		return nil, nil
	}
	return f.decoder.AppendBinary(nil)
}

// encodeInto serializes f into buf, which must be exactly the size the
// header reports.
func (f *Function[K]) encodeInto(buf []byte, h *header) error {
	dec, err := f.decoderBytes()
	if err != nil {
		return err
	}
	if uint64(len(dec)) != h.DecoderLen || uint64(len(buf)) != h.size() {
		return fmt.Errorf("serialized size mismatch: %w", csferrors.ErrCorrupted)
	}

	h.encodeTo(buf[:headerSize])
	off := headerSize
	off += encoding.PutWords(buf[off:], f.offsetSeed)
	off += encoding.PutWords(buf[off:], f.data[:h.dataWords()])
	off += copy(buf[off:], dec)

	ftr := footer{Checksum: xxhash.Sum64(buf[:off])}
	ftr.encodeTo(buf[off:])
	return nil
}

// MarshalBinary returns the serialized form of f.
func (f *Function[K]) MarshalBinary() ([]byte, error) {
	if f.closed.Load() {
		return nil, csferrors.ErrFunctionClosed
	}
	h := f.header()
	buf := make([]byte, h.size())
	if err := f.encodeInto(buf, &h); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteTo streams the serialized form of f to w. The checksum is computed
// while writing.
func (f *Function[K]) WriteTo(w io.Writer) (int64, error) {
	if f.closed.Load() {
		return 0, csferrors.ErrFunctionClosed
	}
	h := f.header()
	dec, err := f.decoderBytes()
	if err != nil {
		return 0, err
	}

	digest := xxhash.New()
	cw := &countingWriter{w: io.MultiWriter(w, digest)}
	bw := bufio.NewWriter(cw)

	var hdr [headerSize]byte
	h.encodeTo(hdr[:])
	bw.Write(hdr[:])
	var word [8]byte
	for _, words := range [][]uint64{f.offsetSeed, f.data[:h.dataWords()]} {
		for _, x := range words {
			binary.LittleEndian.PutUint64(word[:], x)
			bw.Write(word[:])
		}
	}
	bw.Write(dec)
	if err := bw.Flush(); err != nil {
		return cw.n, err
	}

	var ftr [footerSize]byte
	(&footer{Checksum: digest.Sum64()}).encodeTo(ftr[:])
	n, err := w.Write(ftr[:])
	return cw.n + int64(n), err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// WriteFile writes the serialized form of f to path using an mmap-backed
// writer. The file is pre-allocated so a full disk fails here rather than
// with SIGBUS. On error the partial file is removed.
func (f *Function[K]) WriteFile(path string) (err error) {
	if f.closed.Load() {
		return csferrors.ErrFunctionClosed
	}
	h := f.header()
	size := int64(h.size())

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create function file: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, os.Remove(path))
		}
	}()

	// Pre-allocate disk blocks to prevent SIGBUS on disk full
	if err := fallocateFile(file, size); err != nil {
		primaryErr := fmt.Errorf("failed to allocate disk space: %w", err)
		return errors.Join(primaryErr, file.Close())
	}

	mm, err := mmap.MapRegion(file, int(size), mmap.RDWR, 0, 0)
	if err != nil {
		primaryErr := fmt.Errorf("failed to mmap file: %w", err)
		return errors.Join(primaryErr, file.Close())
	}

	// Prefault the whole mapping; every byte is written once.
	prefaultRegion(mm)

	if err := f.encodeInto(mm, &h); err != nil {
		return errors.Join(err, mm.Unmap(), file.Close())
	}

	// Flush dirty pages to file (ensures writes visible before unmap)
	if err := mm.Flush(); err != nil {
		primaryErr := fmt.Errorf("mmap flush failed: %w", err)
		return errors.Join(primaryErr, mm.Unmap(), file.Close())
	}
	if err := mm.Unmap(); err != nil {
		primaryErr := fmt.Errorf("mmap unmap failed: %w", err)
		return errors.Join(primaryErr, file.Close())
	}
	return file.Close()
}
