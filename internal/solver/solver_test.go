package solver

import (
	"encoding/binary"
	"hash/fnv"
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

type window struct {
	e        [3]uint32
	codeword uint64
	length   int
}

// randomWindows builds a chunk-like system: numKeys keys with codeword
// lengths in [1, width], over (sum*deltaTimes256>>8)+width variables.
func randomWindows(rng *rand.Rand, numKeys, width int, deltaTimes256 int) ([]window, int) {
	ws := make([]window, numKeys)
	sum := 0
	for i := range ws {
		ws[i].length = 1 + rng.IntN(width)
		ws[i].codeword = rng.Uint64() & (uint64(1)<<ws[i].length - 1)
		sum += ws[i].length
	}
	nv := (sum * deltaTimes256 >> 8) + width
	for i := range ws {
		for j := range 3 {
			ws[i].e[j] = uint32(rng.IntN(nv - width))
		}
	}
	return ws, nv
}

func addWindows(s *Solver, ws []window, nv, width int) {
	s.Reset(nv)
	for _, w := range ws {
		s.AddWindow(w.e[0], w.e[1], w.e[2], w.codeword, w.length, width)
	}
}

// checkWindows reads the three windows of every key from the solution and
// checks their XOR carries the codeword in its top bits.
func checkWindows(t *testing.T, sol []uint64, ws []window, width int) {
	t.Helper()
	bit := func(p uint32) uint64 { return sol[p/64] >> (p % 64) & 1 }
	for i, w := range ws {
		var x uint64
		for k := range width {
			b := bit(w.e[0]+uint32(k)) ^ bit(w.e[1]+uint32(k)) ^ bit(w.e[2]+uint32(k))
			x |= b << k
		}
		if got := x >> uint(width-w.length); got != w.codeword {
			t.Fatalf("key %d: decoded %b, want %b (length %d)", i, got, w.codeword, w.length)
		}
	}
}

func TestSolveChunkLikeSystems(t *testing.T) {
	rng := newTestRNG(t)
	s := New()
	const width = 17

	solved := 0
	for attempt := range 10 {
		ws, nv := randomWindows(rng, 1500, width, 281)
		addWindows(s, ws, nv, width)
		res := s.Solve(false)
		if res.Outcome != Solved {
			t.Logf("attempt %d: unsolvable (peeled %d/%d, dense %d)", attempt, res.Peeled, res.Equations, res.Dense)
			continue
		}
		solved++
		checkWindows(t, res.Solution, ws, width)
		if res.Peeled > res.Equations {
			t.Fatalf("peeled %d > equations %d", res.Peeled, res.Equations)
		}
	}
	if solved < 5 {
		t.Fatalf("only %d/10 systems solved at DELTA 1.10", solved)
	}
}

// TestPeelOnlyHighSlack uses enough variables for peeling to succeed on
// its own; the peel-only result must satisfy every equation.
func TestPeelOnlyHighSlack(t *testing.T) {
	rng := newTestRNG(t)
	s := New()
	const width = 12

	solved := 0
	for range 10 {
		ws, nv := randomWindows(rng, 500, width, 400)
		addWindows(s, ws, nv, width)
		res := s.Solve(true)
		if res.Outcome != Solved {
			continue
		}
		solved++
		if res.Peeled != res.Equations || res.Dense != 0 || res.Active != 0 {
			t.Fatalf("peel-only solve reported peeled=%d/%d dense=%d active=%d",
				res.Peeled, res.Equations, res.Dense, res.Active)
		}
		checkWindows(t, res.Solution, ws, width)
	}
	if solved < 8 {
		t.Fatalf("only %d/10 systems peeled at DELTA 1.56", solved)
	}
}

func TestPeelOnlyRejectsCore(t *testing.T) {
	s := New()
	s.Reset(3)
	s.AddEquation(0, 1, 2, 1)
	s.AddEquation(0, 1, 2, 1)

	if res := s.Solve(true); res.Outcome != Unsolvable {
		t.Fatalf("peel-only on a 2-core: %v, want unsolvable", res.Outcome)
	}
	res := s.Solve(false)
	if res.Outcome != Solved {
		t.Fatalf("consistent 2-core: %v, want solved", res.Outcome)
	}
	sol := res.Solution[0]
	if (sol^sol>>1^sol>>2)&1 != 1 {
		t.Fatalf("solution %03b does not satisfy x0^x1^x2 = 1", sol&7)
	}
}

func TestInconsistentSystem(t *testing.T) {
	s := New()
	s.Reset(4)
	s.AddEquation(0, 1, 2, 1)
	s.AddEquation(0, 1, 2, 0)
	if res := s.Solve(false); res.Outcome != Unsolvable {
		t.Fatalf("x0^x1^x2 = 0 and = 1: %v, want unsolvable", res.Outcome)
	}

	s.Reset(4)
	s.AddEquation(3, 3, 3, 1)
	s.AddEquation(3, 3, 3, 0)
	if res := s.Solve(false); res.Outcome != Unsolvable {
		t.Fatalf("x3 = 0 and x3 = 1: %v, want unsolvable", res.Outcome)
	}
}

func TestRepeatedVariablesCancel(t *testing.T) {
	s := New()
	s.Reset(8)
	s.AddEquation(5, 5, 5, 1) // x5 = 1
	s.AddEquation(2, 2, 7, 1) // x7 = 1
	s.AddEquation(1, 4, 1, 0) // x4 = 0
	s.AddEquation(6, 3, 3, 1) // x6 = 1

	if s.NumEquations() != 4 {
		t.Fatalf("NumEquations() = %d, want 4", s.NumEquations())
	}
	res := s.Solve(false)
	if res.Outcome != Solved {
		t.Fatal("unsolvable")
	}
	want := uint64(1<<5 | 1<<7 | 1<<6)
	if got := res.Solution[0] & (1<<5 | 1<<7 | 1<<4 | 1<<6); got != want {
		t.Fatalf("solution %08b, want %08b on bits 4-7", got, want)
	}
}

func TestEmptySystem(t *testing.T) {
	s := New()
	s.Reset(17)
	res := s.Solve(false)
	if res.Outcome != Solved {
		t.Fatal("empty system unsolvable")
	}
	if len(res.Solution) != 1 || res.Solution[0] != 0 {
		t.Fatalf("empty system solution = %v, want one zero word", res.Solution)
	}
}

// TestDenseElimination builds a system with no degree-1 variable at all,
// so everything goes through lazy and dense elimination.
func TestDenseElimination(t *testing.T) {
	rng := newTestRNG(t)
	s := New()
	for range 20 {
		const nv = 30
		s.Reset(nv)
		type eq struct {
			v   [3]uint32
			rhs uint8
		}
		// Plant a solution so the system is consistent.
		planted := rng.Uint64() & (1<<nv - 1)
		var eqs []eq
		for range 25 {
			var e eq
			for {
				e.v = [3]uint32{uint32(rng.IntN(nv)), uint32(rng.IntN(nv)), uint32(rng.IntN(nv))}
				if e.v[0] != e.v[1] && e.v[0] != e.v[2] && e.v[1] != e.v[2] {
					break
				}
			}
			e.rhs = uint8((planted>>e.v[0] ^ planted>>e.v[1] ^ planted>>e.v[2]) & 1)
			eqs = append(eqs, e)
		}
		// Duplicate every equation so no variable has degree 1.
		for _, e := range append(eqs, eqs...) {
			s.AddEquation(e.v[0], e.v[1], e.v[2], e.rhs)
		}

		res := s.Solve(false)
		if res.Outcome != Solved {
			t.Fatal("consistent system reported unsolvable")
		}
		if res.Peeled != 0 {
			t.Fatalf("peeled %d equations, want 0", res.Peeled)
		}
		sol := res.Solution[0]
		for i, e := range eqs {
			if got := uint8((sol>>e.v[0] ^ sol>>e.v[1] ^ sol>>e.v[2]) & 1); got != e.rhs {
				t.Fatalf("equation %d violated", i)
			}
		}
	}
}

func BenchmarkSolveChunk(b *testing.B) {
	rng := rand.New(rand.NewPCG(testSeed1, testSeed2))
	const width = 17
	ws, nv := randomWindows(rng, 1500, width, 281)
	s := New()
	b.ResetTimer()
	for range b.N {
		addWindows(s, ws, nv, width)
		s.Solve(false)
	}
}
