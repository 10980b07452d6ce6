package csf

import (
	"errors"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/edsrzf/mmap-go"
	"github.com/tamirms/csf/codec"
	csferrors "github.com/tamirms/csf/errors"
	"github.com/tamirms/csf/internal/encoding"
)

// Open memory-maps a serialized function for querying. The word regions
// are used in place; Close unmaps them.
//
// transform may be nil for []byte, string and uint64 keys. Its ID must
// match the one the function was built with.
func Open[K any](path string, transform Transform[K]) (*Function[K], error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open function file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat function file: %w", err)
	}
	if stat.Size() < headerSize+footerSize {
		return nil, csferrors.ErrTruncatedFile
	}

	mm, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap function file: %w", err)
	}
	f, err := load(mm, transform)
	if err != nil {
		return nil, errors.Join(err, mm.Unmap())
	}
	adviseRandom(mm)
	f.mmap = mm
	return f, nil
}

// OpenBytes loads a serialized function from memory. Word regions are
// used in place when data is 8-byte aligned and copied otherwise. The
// caller must not modify data while the function is in use.
func OpenBytes[K any](data []byte, transform Transform[K]) (*Function[K], error) {
	return load(data, transform)
}

// load parses the header, the offset/seed table, the data words and the
// decoder. The checksum is only checked by Verify.
func load[K any](data []byte, transform Transform[K]) (*Function[K], error) {
	if len(data) < headerSize+footerSize {
		return nil, csferrors.ErrTruncatedFile
	}
	h, err := decodeHeader(data[:headerSize])
	if err != nil {
		return nil, err
	}
	size := h.size()
	if size == 0 {
		return nil, csferrors.ErrCorrupted
	}
	if uint64(len(data)) < size {
		return nil, csferrors.ErrTruncatedFile
	}
	if uint64(len(data)) > size {
		return nil, fmt.Errorf("%d trailing bytes: %w", uint64(len(data))-size, csferrors.ErrCorrupted)
	}

	if transform == nil {
		if transform, err = defaultTransform[K](); err != nil {
			return nil, err
		}
	}
	if transform.ID() != h.Transform {
		return nil, fmt.Errorf("%w: built with %v, opened with %v", csferrors.ErrTransformMismatch, h.Transform, transform.ID())
	}

	f := &Function[K]{
		n:            h.NumKeys,
		globalSeed:   h.GlobalSeed,
		defaultValue: h.DefaultValue,
		chunkShift:   uint(h.ChunkShift),
		w:            int(h.MaxCodeword),
		dataBits:     h.DataBits,
		codecID:      h.Codec,
		transform:    transform,
		raw:          data,
	}
	if h.NumKeys == 0 {
		return f, nil
	}

	off := uint64(headerSize)
	tableEnd := off + 8*h.tableEntries()
	dataEnd := tableEnd + 8*h.dataWords()
	f.offsetSeed = wordsAt(data[off:tableEnd])
	f.data = wordsAt(data[tableEnd:dataEnd])

	dec, n, err := codec.ParseDecoder(data[dataEnd : dataEnd+h.DecoderLen])
	if err != nil {
		return nil, err
	}
	if uint64(n) != h.DecoderLen || dec.Width() != f.w {
		return nil, csferrors.ErrCorrupted
	}
	f.decoder = dec

	if err := checkOffsets(f.offsetSeed, f.w, h.DataBits); err != nil {
		return nil, err
	}
	return f, nil
}

// wordsAt views buf as words, copying if it is misaligned.
func wordsAt(buf []byte) []uint64 {
	if words, ok := encoding.WordsView(buf); ok {
		return words
	}
	return encoding.CopyWords(buf)
}

// checkOffsets verifies that the offsets start at 0, that every chunk
// holds at least w variables, and that the last offset is dataBits.
// Queries rely on all three to stay inside the data words.
func checkOffsets(table []uint64, w int, dataBits uint64) error {
	if offsetSeed(table[0]).offset() != 0 {
		return csferrors.ErrCorrupted
	}
	for q := 1; q < len(table); q++ {
		lo, hi := offsetSeed(table[q-1]).offset(), offsetSeed(table[q]).offset()
		if hi < lo || hi-lo < uint64(w) {
			return fmt.Errorf("chunk %d: %w", q-1, csferrors.ErrCorrupted)
		}
	}
	if offsetSeed(table[len(table)-1]).offset() != dataBits {
		return csferrors.ErrCorrupted
	}
	return nil
}

// Verify checks the checksum of a function returned by Open or OpenBytes.
// Built functions have nothing to check and return nil.
func (f *Function[K]) Verify() error {
	if f.closed.Load() {
		return csferrors.ErrFunctionClosed
	}
	if f.raw == nil {
		return nil
	}
	end := len(f.raw) - footerSize
	ft, err := decodeFooter(f.raw[end:])
	if err != nil {
		return err
	}
	if xxhash.Sum64(f.raw[:end]) != ft.Checksum {
		return csferrors.ErrChecksumFailed
	}
	return nil
}
