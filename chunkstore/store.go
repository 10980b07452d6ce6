// Package chunkstore buffers hashed keys on disk and replays them grouped
// into chunks by hash prefix.
//
// Each added key is reduced to its hash triple and stored with its value
// as a 32-byte record. Records are routed by the top 8 bits of h0 into 256
// temporary bucket files, so memory stays bounded by the buffered writers
// while keys are added. ForEachChunk reads the buckets back in order, sorts
// each one, detects duplicate triples, and cuts the sorted stream into
// chunks by the top log2Chunks bits of h0.
//
// A Store is not safe for concurrent use.
package chunkstore

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/edsrzf/mmap-go"
	csferrors "github.com/tamirms/csf/errors"
	"github.com/tamirms/csf/internal/triple"
)

const (
	numBuckets = 256
	bucketBits = 8

	// RecordSize is the on-disk size of one record: h0, h1, h2, value.
	RecordSize = 32

	writerBufferSize = 16 << 10
)

// Record is one key as seen by the solver: its hash triple and the value
// it maps to.
type Record struct {
	Hash  [3]uint64
	Value uint64
}

// Chunk is a group of records sharing the top log2Chunks bits of h0,
// sorted by hash. The callback of ForEachChunk owns Records.
type Chunk struct {
	Index   int
	Records []Record
}

type bucket struct {
	file *os.File
	path string // empty for anonymous O_TMPFILE files
	w    *bufio.Writer
	n    uint64
}

// Store is a disk-backed multiset of hashed keys.
type Store struct {
	tempDir     string
	seed        uint64
	size        uint64
	log2Chunks  int
	buckets     [numBuckets]bucket
	frequencies map[uint64]uint64
	closed      bool
}

// New creates an empty store hashing with seed. Temporary files are
// created in tempDir, or os.TempDir() if tempDir is empty.
func New(tempDir string, seed uint64) (*Store, error) {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	info, err := os.Stat(tempDir)
	if err != nil {
		return nil, fmt.Errorf("stat temp dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("temp dir %q is not a directory", tempDir)
	}
	return &Store{
		tempDir:     tempDir,
		seed:        seed,
		frequencies: make(map[uint64]uint64),
	}, nil
}

// Seed returns the global seed the stored triples were computed with.
func (s *Store) Seed() uint64 {
	return s.seed
}

// Size returns the number of records added since the last Reset.
func (s *Store) Size() uint64 {
	return s.size
}

// ValueFrequencies returns the number of records per value. The map is
// owned by the store and must not be modified.
func (s *Store) ValueFrequencies() map[uint64]uint64 {
	return s.frequencies
}

// Log2Chunks sets the number of chunks to 1<<log2 and returns the shift
// that maps h0 to its chunk index. A shift of 64 means a single chunk.
func (s *Store) Log2Chunks(log2 int) int {
	s.log2Chunks = log2
	return 64 - log2
}

// NumChunks returns the number of chunks ForEachChunk produces.
func (s *Store) NumChunks() int {
	return 1 << s.log2Chunks
}

// Add hashes key with the store seed and records it with value.
func (s *Store) Add(key []byte, value uint64) error {
	return s.AddHash(triple.Hash(key, s.seed), value)
}

// AddHash records a triple computed by the caller with Seed().
func (s *Store) AddHash(h [3]uint64, value uint64) error {
	if s.closed {
		return csferrors.ErrStoreClosed
	}
	b := &s.buckets[h[0]>>(64-bucketBits)]
	if b.w == nil {
		if err := s.openBucket(b); err != nil {
			return err
		}
	}

	var rec [RecordSize]byte
	binary.LittleEndian.PutUint64(rec[0:8], h[0])
	binary.LittleEndian.PutUint64(rec[8:16], h[1])
	binary.LittleEndian.PutUint64(rec[16:24], h[2])
	binary.LittleEndian.PutUint64(rec[24:32], value)
	if _, err := b.w.Write(rec[:]); err != nil {
		return fmt.Errorf("write bucket: %w", err)
	}
	b.n++
	s.size++
	s.frequencies[value]++
	return nil
}

// Reset discards all records and switches to a new seed. Bucket files are
// truncated and reused.
func (s *Store) Reset(seed uint64) error {
	if s.closed {
		return csferrors.ErrStoreClosed
	}
	for i := range s.buckets {
		b := &s.buckets[i]
		if b.file == nil {
			continue
		}
		if err := b.file.Truncate(0); err != nil {
			return fmt.Errorf("truncate bucket %d: %w", i, err)
		}
		if _, err := b.file.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("rewind bucket %d: %w", i, err)
		}
		b.w.Reset(b.file)
		b.n = 0
	}
	s.seed = seed
	s.size = 0
	clear(s.frequencies)
	return nil
}

// ForEachChunk calls fn for every chunk in index order, including empty
// ones. It stops at the first error from fn or from ctx. Two records with
// equal triples abort the iteration with ErrDuplicateKey.
func (s *Store) ForEachChunk(ctx context.Context, fn func(Chunk) error) error {
	if s.closed {
		return csferrors.ErrStoreClosed
	}
	numChunks := s.NumChunks()
	shift := uint(64 - s.log2Chunks)
	chunkOf := func(h0 uint64) int {
		if shift == 64 {
			return 0
		}
		return int(h0 >> shift)
	}

	cur := 0
	var pending []Record
	var buf []Record
	for i := range s.buckets {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		buf, err = s.readBucket(&s.buckets[i], buf[:0])
		if err != nil {
			return fmt.Errorf("read bucket %d: %w", i, err)
		}
		slices.SortFunc(buf, compareRecords)
		for j := 1; j < len(buf); j++ {
			if buf[j].Hash == buf[j-1].Hash {
				return fmt.Errorf("%w: triple %016x collides in bucket %d", csferrors.ErrDuplicateKey, buf[j].Hash[0], i)
			}
		}

		for _, r := range buf {
			for q := chunkOf(r.Hash[0]); cur < q; cur++ {
				if err := fn(Chunk{Index: cur, Records: pending}); err != nil {
					return err
				}
				pending = nil
			}
			pending = append(pending, r)
		}
	}
	for ; cur < numChunks; cur++ {
		if err := fn(Chunk{Index: cur, Records: pending}); err != nil {
			return err
		}
		pending = nil
	}
	return nil
}

// Close removes all temporary files. Close is idempotent.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var errs []error
	for i := range s.buckets {
		b := &s.buckets[i]
		if b.file == nil {
			continue
		}
		errs = append(errs, b.file.Close())
		if b.path != "" {
			errs = append(errs, os.Remove(b.path))
		}
		*b = bucket{}
	}
	return errors.Join(errs...)
}

// openBucket creates the temp file of a bucket.
// Tries O_TMPFILE on Linux for auto-cleanup, falls back to regular temp file.
func (s *Store) openBucket(b *bucket) error {
	f, err := openTmpFile(s.tempDir)
	if err != nil {
		f, err = os.CreateTemp(s.tempDir, "csf-bucket-*.tmp")
		if err != nil {
			return fmt.Errorf("create bucket file: %w", err)
		}
		b.path = f.Name()
	}
	b.file = f
	b.w = bufio.NewWriterSize(f, writerBufferSize)
	return nil
}

// readBucket flushes a bucket and appends its records to dst.
func (s *Store) readBucket(b *bucket, dst []Record) ([]Record, error) {
	if b.n == 0 {
		return dst, nil
	}
	if err := b.w.Flush(); err != nil {
		return dst, err
	}
	size := int(b.n * RecordSize)
	mm, err := mmap.MapRegion(b.file, size, mmap.RDONLY, 0, 0)
	if err != nil {
		return dst, fmt.Errorf("mmap: %w", err)
	}
	adviseSequential(mm)

	for off := 0; off < size; off += RecordSize {
		rec := mm[off : off+RecordSize]
		dst = append(dst, Record{
			Hash: [3]uint64{
				binary.LittleEndian.Uint64(rec[0:8]),
				binary.LittleEndian.Uint64(rec[8:16]),
				binary.LittleEndian.Uint64(rec[16:24]),
			},
			Value: binary.LittleEndian.Uint64(rec[24:32]),
		})
	}
	return dst, mm.Unmap()
}

func compareRecords(a, b Record) int {
	for i := range a.Hash {
		if a.Hash[i] != b.Hash[i] {
			if a.Hash[i] < b.Hash[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
