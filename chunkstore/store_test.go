package chunkstore

import (
	"context"
	"encoding/binary"
	"errors"
	"hash/fnv"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	csferrors "github.com/tamirms/csf/errors"
)

// Named seeds for deterministic reproduction.
const (
	testSeed1 = 0x1234567890ABCDEF
	testSeed2 = 0xFEDCBA9876543210
)

func newTestRNG(t testing.TB) *rand.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	s1 := binary.LittleEndian.Uint64(sum[:8])
	s2 := binary.LittleEndian.Uint64(sum[8:])
	return rand.New(rand.NewPCG(testSeed1^s1, testSeed2^s2))
}

func newTestStore(t *testing.T, seed uint64) *Store {
	t.Helper()
	s, err := New(t.TempDir(), seed)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func collect(t *testing.T, s *Store) []Chunk {
	t.Helper()
	var chunks []Chunk
	err := s.ForEachChunk(context.Background(), func(c Chunk) error {
		chunks = append(chunks, c)
		return nil
	})
	if err != nil {
		t.Fatalf("ForEachChunk: %v", err)
	}
	return chunks
}

func TestChunksInOrder(t *testing.T) {
	rng := newTestRNG(t)
	s := newTestStore(t, rng.Uint64())
	shift := s.Log2Chunks(6)
	if shift != 58 {
		t.Fatalf("Log2Chunks(6) shift = %d, want 58", shift)
	}

	const n = 20000
	key := make([]byte, 8)
	for i := range n {
		binary.LittleEndian.PutUint64(key, rng.Uint64())
		if err := s.Add(key, uint64(i%7)); err != nil {
			t.Fatal(err)
		}
	}
	if s.Size() != n {
		t.Fatalf("Size() = %d, want %d", s.Size(), n)
	}

	chunks := collect(t, s)
	if len(chunks) != s.NumChunks() || len(chunks) != 64 {
		t.Fatalf("got %d chunks, want 64", len(chunks))
	}
	total := 0
	for q, c := range chunks {
		if c.Index != q {
			t.Fatalf("chunk %d reported index %d", q, c.Index)
		}
		for i, r := range c.Records {
			if got := int(r.Hash[0] >> shift); got != q {
				t.Fatalf("record with prefix %d in chunk %d", got, q)
			}
			if i > 0 && compareRecords(c.Records[i-1], r) >= 0 {
				t.Fatalf("chunk %d not sorted at %d", q, i)
			}
		}
		total += len(c.Records)
	}
	if total != n {
		t.Fatalf("chunks hold %d records, want %d", total, n)
	}
}

func TestValuesAndFrequencies(t *testing.T) {
	s := newTestStore(t, 1)
	s.Log2Chunks(0)
	keys := []string{"a", "b", "c", "d"}
	values := []uint64{10, 20, 10, 30}
	for i, k := range keys {
		if err := s.Add([]byte(k), values[i]); err != nil {
			t.Fatal(err)
		}
	}

	freq := s.ValueFrequencies()
	if freq[10] != 2 || freq[20] != 1 || freq[30] != 1 || len(freq) != 3 {
		t.Fatalf("frequencies = %v", freq)
	}

	chunks := collect(t, s)
	if len(chunks) != 1 || len(chunks[0].Records) != 4 {
		t.Fatalf("want one chunk of 4 records, got %d chunks", len(chunks))
	}
	var sum uint64
	for _, r := range chunks[0].Records {
		sum += r.Value
	}
	if sum != 70 {
		t.Fatalf("value sum = %d, want 70", sum)
	}
}

func TestDuplicateKey(t *testing.T) {
	s := newTestStore(t, 7)
	s.Log2Chunks(2)
	for _, k := range []string{"x", "y", "x"} {
		if err := s.Add([]byte(k), 0); err != nil {
			t.Fatal(err)
		}
	}
	err := s.ForEachChunk(context.Background(), func(Chunk) error { return nil })
	if !errors.Is(err, csferrors.ErrDuplicateKey) {
		t.Fatalf("err = %v, want ErrDuplicateKey", err)
	}
}

func TestResetChangesSeed(t *testing.T) {
	s := newTestStore(t, 1)
	s.Log2Chunks(0)
	for _, k := range []string{"x", "y", "x"} {
		s.Add([]byte(k), 0)
	}
	if err := s.Reset(2); err != nil {
		t.Fatal(err)
	}
	if s.Size() != 0 || len(s.ValueFrequencies()) != 0 || s.Seed() != 2 {
		t.Fatalf("after Reset: size %d, %d values, seed %d", s.Size(), len(s.ValueFrequencies()), s.Seed())
	}
	for _, k := range []string{"x", "y"} {
		s.Add([]byte(k), 5)
	}
	chunks := collect(t, s)
	if len(chunks[0].Records) != 2 {
		t.Fatalf("after Reset: %d records, want 2", len(chunks[0].Records))
	}
}

func TestEmptyStore(t *testing.T) {
	s := newTestStore(t, 0)
	s.Log2Chunks(3)
	chunks := collect(t, s)
	if len(chunks) != 8 {
		t.Fatalf("got %d chunks, want 8", len(chunks))
	}
	for _, c := range chunks {
		if len(c.Records) != 0 {
			t.Fatalf("chunk %d has %d records", c.Index, len(c.Records))
		}
	}
}

// TestForEachChunkTwice checks iteration does not consume the records.
func TestForEachChunkTwice(t *testing.T) {
	s := newTestStore(t, 3)
	s.Log2Chunks(1)
	for i := range 100 {
		s.Add([]byte{byte(i)}, uint64(i))
	}
	a, b := collect(t, s), collect(t, s)
	for q := range a {
		if len(a[q].Records) != len(b[q].Records) {
			t.Fatalf("chunk %d: %d then %d records", q, len(a[q].Records), len(b[q].Records))
		}
	}
}

func TestCloseRemovesFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	for i := range 1000 {
		s.Add([]byte{byte(i), byte(i >> 8)}, 0)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	left, _ := filepath.Glob(filepath.Join(dir, "*"))
	if len(left) != 0 {
		t.Fatalf("files left after Close: %v", left)
	}
	if err := s.Add([]byte("k"), 0); !errors.Is(err, csferrors.ErrStoreClosed) {
		t.Fatalf("Add after Close: err = %v, want ErrStoreClosed", err)
	}
}

func TestForEachChunkCanceled(t *testing.T) {
	s := newTestStore(t, 0)
	s.Add([]byte("k"), 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.ForEachChunk(ctx, func(Chunk) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestCallbackErrorStops(t *testing.T) {
	s := newTestStore(t, 0)
	s.Log2Chunks(4)
	stop := errors.New("stop")
	calls := 0
	err := s.ForEachChunk(context.Background(), func(Chunk) error {
		calls++
		if calls == 3 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) || calls != 3 {
		t.Fatalf("err = %v after %d calls, want stop after 3", err, calls)
	}
}

func TestNewRejectsFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(f, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := New(f, 0); err == nil {
		t.Fatal("New on a regular file succeeded")
	}
}
