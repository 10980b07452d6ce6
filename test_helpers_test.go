package csf

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand/v2"
	"slices"
	"testing"
)

// Named seeds for deterministic reproduction.
const (
	testSeed1 = 0x1234567890ABCDEF
	testSeed2 = 0xFEDCBA9876543210
)

// newTestRNG returns a PCG generator seeded from the test name, so every
// test draws its own reproducible stream.
func newTestRNG(t testing.TB) *rand.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	s1 := binary.LittleEndian.Uint64(sum[:8])
	s2 := binary.LittleEndian.Uint64(sum[8:])
	return rand.New(rand.NewPCG(testSeed1^s1, testSeed2^s2))
}

// fillFromRNG fills buf with pseudo-random bytes from rng.
func fillFromRNG(rng *rand.Rand, buf []byte) {
	for i := 0; i+8 <= len(buf); i += 8 {
		binary.LittleEndian.PutUint64(buf[i:], rng.Uint64())
	}
	if tail := len(buf) % 8; tail > 0 {
		v := rng.Uint64()
		start := len(buf) - tail
		for j := 0; j < tail; j++ {
			buf[start+j] = byte(v >> (j * 8))
		}
	}
}

// generateRandomKeys creates n distinct pseudo-random keys of the specified size.
func generateRandomKeys(rng *rand.Rand, n, keySize int) [][]byte {
	keys := make([][]byte, 0, n)
	seen := make(map[string]bool, n)
	for len(keys) < n {
		k := make([]byte, keySize)
		fillFromRNG(rng, k)
		if seen[string(k)] {
			continue
		}
		seen[string(k)] = true
		keys = append(keys, k)
	}
	return keys
}

// generateUint64Keys creates n distinct pseudo-random uint64 keys.
func generateUint64Keys(rng *rand.Rand, n int) []uint64 {
	keys := make([]uint64, 0, n)
	seen := make(map[uint64]bool, n)
	for len(keys) < n {
		k := rng.Uint64()
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}

// skewedValues draws n values from a geometric distribution over a small
// alphabet, the shape compressed functions are built for.
func skewedValues(rng *rand.Rand, n int) []uint64 {
	values := make([]uint64, n)
	for i := range values {
		v := uint64(0)
		for v < 40 && rng.IntN(2) == 0 {
			v++
		}
		values[i] = v * 1000
	}
	return values
}

// buildBytes builds a function over keys with values, failing the test on
// error.
func buildBytes(t *testing.T, keys [][]byte, values []uint64, opts ...BuildOption) *Function[[]byte] {
	t.Helper()
	if values != nil {
		opts = append([]BuildOption{WithValues(slices.Values(values))}, opts...)
	}
	opts = append([]BuildOption{WithTempDir(t.TempDir())}, opts...)
	f, err := Build(t.Context(), slices.Values(keys), Bytes{}, opts...)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return f
}

// verifyValues checks that every key maps to its value, or to its ordinal
// when values is nil.
func verifyValues[K any](t *testing.T, f *Function[K], keys []K, values []uint64) {
	t.Helper()
	for i, k := range keys {
		want := uint64(i)
		if values != nil {
			want = values[i]
		}
		if got := f.Get(k); got != want {
			t.Fatalf("key %d: Get = %d, want %d", i, got, want)
		}
	}
}
