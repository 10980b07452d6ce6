package bits

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"testing"
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

// TestFastRange64Monotonicity verifies that for a fixed n,
// h1 < h2 implies FastRange64(h1,n) <= FastRange64(h2,n).
func TestFastRange64Monotonicity(t *testing.T) {
	rng := newTestRNG(t)
	const iterations = 10000

	for i := 0; i < iterations; i++ {
		n := rng.Uint64N(math.MaxUint64) + 1
		h1 := rng.Uint64()
		h2 := rng.Uint64()
		if h1 > h2 {
			h1, h2 = h2, h1
		}

		r1 := FastRange64(h1, n)
		r2 := FastRange64(h2, n)
		if r1 > r2 {
			t.Fatalf("iter %d: monotonicity violated: FastRange64(0x%X, %d)=%d > FastRange64(0x%X, %d)=%d",
				i, h1, n, r1, h2, n, r2)
		}
	}
}

// TestFastRange64Range verifies that the result is always in [0, n).
func TestFastRange64Range(t *testing.T) {
	rng := newTestRNG(t)
	const iterations = 10000

	for i := 0; i < iterations; i++ {
		n := rng.Uint64N(1<<40) + 1
		h := rng.Uint64()

		if got := FastRange64(h, n); got >= n {
			t.Fatalf("iter %d: FastRange64(0x%X, %d)=%d >= %d", i, h, n, got, n)
		}
	}
}

func TestFastRange64EdgeCases(t *testing.T) {
	for _, h := range []uint64{0, 1, math.MaxUint64, 0xDEADBEEF} {
		if got := FastRange64(h, 0); got != 0 {
			t.Errorf("FastRange64(0x%X, 0) = %d, want 0", h, got)
		}
		if got := FastRange64(h, 1); got != 0 {
			t.Errorf("FastRange64(0x%X, 1) = %d, want 0", h, got)
		}
	}

	// h=MaxUint64 maps to n-1 for any n >= 2
	for n := uint64(2); n <= 100; n++ {
		if got := FastRange64(math.MaxUint64, n); got != n-1 {
			t.Errorf("FastRange64(MaxUint64, %d) = %d, want %d", n, got, n-1)
		}
	}
}

func TestMask(t *testing.T) {
	tests := []struct {
		w    int
		want uint64
	}{
		{0, 0},
		{1, 1},
		{7, 0x7F},
		{63, math.MaxUint64 >> 1},
		{64, math.MaxUint64},
	}
	for _, tc := range tests {
		if got := Mask(tc.w); got != tc.want {
			t.Errorf("Mask(%d) = 0x%X, want 0x%X", tc.w, got, tc.want)
		}
	}
}

func TestMsb(t *testing.T) {
	tests := []struct {
		x    uint64
		want int
	}{
		{0, -1},
		{1, 0},
		{2, 1},
		{3, 1},
		{1024, 10},
		{math.MaxUint64, 63},
	}
	for _, tc := range tests {
		if got := Msb(tc.x); got != tc.want {
			t.Errorf("Msb(%d) = %d, want %d", tc.x, got, tc.want)
		}
	}
}

// TestWindowMatchesBitByBit compares Window against a naive per-bit read,
// including windows that straddle word boundaries.
func TestWindowMatchesBitByBit(t *testing.T) {
	rng := newTestRNG(t)
	words := make([]uint64, 16)
	for i := range words {
		words[i] = rng.Uint64()
	}
	totalBits := uint64(len(words) * 64)

	bit := func(pos uint64) uint64 {
		return words[pos/64] >> (pos % 64) & 1
	}

	for i := 0; i < 5000; i++ {
		w := 1 + rng.IntN(64)
		pos := rng.Uint64N(totalBits - uint64(w) + 1)

		var want uint64
		for k := 0; k < w; k++ {
			want |= bit(pos+uint64(k)) << k
		}
		if got := Window(words, pos, w); got != want {
			t.Fatalf("Window(pos=%d, w=%d) = 0x%X, want 0x%X", pos, w, got, want)
		}
	}
}

// TestWindowLastBits reads a window ending exactly at the last bit, which
// must not touch a word past the end.
func TestWindowLastBits(t *testing.T) {
	words := []uint64{0, 0x8000000000000001}
	if got := Window(words, 127, 1); got != 1 {
		t.Errorf("Window(127, 1) = %d, want 1", got)
	}
	if got := Window(words, 64, 64); got != 0x8000000000000001 {
		t.Errorf("Window(64, 64) = 0x%X, want 0x8000000000000001", got)
	}
}

func TestVectorAppend(t *testing.T) {
	rng := newTestRNG(t)
	v := NewVector(0)
	var ref []bool

	for i := 0; i < 2000; i++ {
		n := rng.IntN(65)
		x := rng.Uint64()
		v.AppendBits(x, n)
		for k := 0; k < n; k++ {
			ref = append(ref, x>>k&1 != 0)
		}
	}

	if v.Len() != uint64(len(ref)) {
		t.Fatalf("Len() = %d, want %d", v.Len(), len(ref))
	}
	for i, want := range ref {
		if got := v.Get(uint64(i)); got != want {
			t.Fatalf("bit %d = %v, want %v", i, got, want)
		}
	}
}

func TestVectorAppendWords(t *testing.T) {
	rng := newTestRNG(t)
	src := []uint64{rng.Uint64(), rng.Uint64(), rng.Uint64()}

	for _, n := range []uint64{0, 1, 63, 64, 65, 130, 192} {
		v := NewVector(256)
		v.AppendBits(0x5, 3) // misalign the destination
		v.Append(src, n)

		if v.Len() != 3+n {
			t.Fatalf("n=%d: Len() = %d, want %d", n, v.Len(), 3+n)
		}
		for i := uint64(0); i < n; i++ {
			want := src[i/64]>>(i%64)&1 != 0
			if got := v.Get(3 + i); got != want {
				t.Fatalf("n=%d: bit %d = %v, want %v", n, i, got, want)
			}
		}
	}
}
