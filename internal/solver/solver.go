// Package solver solves the sparse GF(2) systems behind a compressed
// function chunk.
//
// Each key contributes one equation per bit of its codeword: the XOR of
// the three variables at e0+k, e1+k and e2+k must equal codeword bit k.
// Repeated variables cancel in pairs, so an equation has one or three
// variables.
//
// Solving runs in four phases:
//
//  1. Peeling: repeatedly remove an equation owning a variable of degree 1.
//  2. Lazy Gaussian elimination on the remaining 2-core: variables are
//     idle until activated; an equation with a single idle variable solves
//     it and is substituted into the others. Substitution only fills in
//     active variables, which are stored as a growing bitset.
//  3. Dense elimination over the active variables.
//  4. Back-substitution of the lazily solved and then the peeled
//     equations, the latter in reverse peeling order.
package solver

import (
	"math/bits"
	"slices"
)

// Outcome is the result of one solve attempt.
type Outcome int

const (
	// Unsolvable means the system is inconsistent; the caller retries with
	// different equations.
	Unsolvable Outcome = iota
	// Solved means Solution satisfies every equation.
	Solved
)

func (o Outcome) String() string {
	if o == Solved {
		return "solved"
	}
	return "unsolvable"
}

// Result holds the outcome of Solve and diagnostic counters.
type Result struct {
	Outcome Outcome
	// Solution holds one bit per variable, bit v of Solution[v/64].
	// Only valid when Outcome is Solved, and only until the next Reset.
	Solution []uint64

	Equations int // equations in the system
	Peeled    int // equations removed by peeling
	Active    int // variables activated by lazy elimination
	Dense     int // equations left for dense elimination
}

// Solver accumulates equations and solves them. A Solver reuses its
// buffers across Reset calls and is not safe for concurrent use.
type Solver struct {
	numVariables int

	vars  []uint32 // 3 slots per equation
	count []uint8  // variables per equation (1 or 3)
	rhs   []uint8

	// peeling
	degree  []uint32
	xorEq   []uint32
	removed []bool
	queue   []uint32
	peelVar []uint32
	peelEq  []uint32

	solution []uint64
}

// New returns an empty solver.
func New() *Solver {
	return &Solver{}
}

// Reset clears all equations and sets the number of variables.
func (s *Solver) Reset(numVariables int) {
	s.numVariables = numVariables
	s.vars = s.vars[:0]
	s.count = s.count[:0]
	s.rhs = s.rhs[:0]
}

// NumEquations returns the number of equations added since Reset.
func (s *Solver) NumEquations() int {
	return len(s.count)
}

// AddEquation adds x[a] ^ x[b] ^ x[c] = bit.
func (s *Solver) AddEquation(a, b, c uint32, bit uint8) {
	switch {
	case a == b:
		s.vars = append(s.vars, c, 0, 0)
		s.count = append(s.count, 1)
	case a == c:
		s.vars = append(s.vars, b, 0, 0)
		s.count = append(s.count, 1)
	case b == c:
		s.vars = append(s.vars, a, 0, 0)
		s.count = append(s.count, 1)
	default:
		s.vars = append(s.vars, a, b, c)
		s.count = append(s.count, 3)
	}
	s.rhs = append(s.rhs, bit&1)
}

// AddWindow adds the equations of one key: the XOR of the width-bit
// windows starting at e0, e1 and e2 must have the length-bit codeword as
// its top bits. Window bit k of the window at e is variable e+k; the
// codeword's least significant bit sits at window bit width-length.
func (s *Solver) AddWindow(e0, e1, e2 uint32, codeword uint64, length, width int) {
	base := width - length
	for i := range length {
		k := uint32(base + i)
		s.AddEquation(e0+k, e1+k, e2+k, uint8(codeword>>uint(i)))
	}
}

// Solve attempts to solve the system. With peelOnly set, a system that
// does not peel completely is reported Unsolvable without elimination.
func (s *Solver) Solve(peelOnly bool) Result {
	res := Result{Equations: len(s.count)}

	nv := s.numVariables
	s.solution = resize(s.solution, (nv+63)/64)
	clear(s.solution)

	s.peel()
	res.Peeled = len(s.peelEq)

	if res.Peeled < res.Equations {
		if peelOnly {
			return res
		}
		var ok bool
		res.Active, res.Dense, ok = s.eliminateCore()
		if !ok {
			return res
		}
	}

	// Reverse peeling order: every other variable of a peeled equation is
	// either peeled later or belongs to the core, so it is already fixed.
	for i := len(s.peelEq) - 1; i >= 0; i-- {
		v, eq := s.peelVar[i], s.peelEq[i]
		bit := s.rhs[eq]
		for j := range int(s.count[eq]) {
			if u := s.vars[3*int(eq)+j]; u != v {
				bit ^= s.get(u)
			}
		}
		if bit != 0 {
			s.set(v)
		}
	}

	res.Outcome = Solved
	res.Solution = s.solution
	return res
}

// peel strips equations owning a degree-1 variable. It leaves degree[v]
// equal to the number of unpeeled equations containing v.
func (s *Solver) peel() {
	nv := s.numVariables
	ne := len(s.count)

	s.degree = resize(s.degree, nv)
	s.xorEq = resize(s.xorEq, nv)
	s.removed = resize(s.removed, ne)
	clear(s.degree)
	clear(s.xorEq)
	clear(s.removed)
	s.queue = s.queue[:0]
	s.peelVar = s.peelVar[:0]
	s.peelEq = s.peelEq[:0]

	for eq := range ne {
		for j := range int(s.count[eq]) {
			v := s.vars[3*eq+j]
			s.degree[v]++
			s.xorEq[v] ^= uint32(eq)
		}
	}
	for v := range nv {
		if s.degree[v] == 1 {
			s.queue = append(s.queue, uint32(v))
		}
	}

	for len(s.queue) > 0 {
		v := s.queue[len(s.queue)-1]
		s.queue = s.queue[:len(s.queue)-1]
		if s.degree[v] != 1 {
			continue
		}
		eq := s.xorEq[v]
		s.peelVar = append(s.peelVar, v)
		s.peelEq = append(s.peelEq, eq)
		s.removed[eq] = true
		for j := range int(s.count[eq]) {
			u := s.vars[3*int(eq)+j]
			s.degree[u]--
			s.xorEq[u] ^= eq
			if s.degree[u] == 1 {
				s.queue = append(s.queue, u)
			}
		}
	}
}

const (
	stateIdle uint8 = iota
	stateActive
	stateSolved
)

// eliminateCore solves the equations left by peel, writing the values of
// every core variable into the solution. It returns the number of active
// variables, the size of the dense system, and false if the core is
// inconsistent.
func (s *Solver) eliminateCore() (numActive, numDense int, ok bool) {
	nv := s.numVariables

	var core []uint32
	for eq := range s.count {
		if !s.removed[eq] {
			core = append(core, uint32(eq))
		}
	}
	nc := len(core)

	// Core adjacency: offsets into adj for each variable, by core degree.
	offsets := make([]uint32, nv+1)
	for v := range nv {
		offsets[v+1] = offsets[v] + s.degree[v]
	}
	adj := make([]uint32, offsets[nv])
	fill := slices.Clone(offsets[:nv])
	for ci, eq := range core {
		for j := range int(s.count[eq]) {
			v := s.vars[3*int(eq)+j]
			adj[fill[v]] = uint32(ci)
			fill[v]++
		}
	}

	state := make([]uint8, nv)
	activeIdx := make([]uint32, nv)
	priority := make([]uint8, nc)
	active := make([][]uint64, nc)
	rhs := make([]uint8, nc)
	done := make([]bool, nc)
	stack := make([]uint32, 0, nc)
	for ci, eq := range core {
		priority[ci] = s.count[eq]
		rhs[ci] = s.rhs[eq]
		if priority[ci] <= 1 {
			stack = append(stack, uint32(ci))
		}
	}

	// Activation order: heaviest core variables first.
	order := make([]uint32, 0, nc)
	for v := range nv {
		if s.degree[v] > 0 {
			order = append(order, uint32(v))
		}
	}
	slices.SortStableFunc(order, func(a, b uint32) int {
		return int(s.degree[b]) - int(s.degree[a])
	})
	next := 0

	type solvedEq struct {
		v  uint32
		ci uint32
	}
	var solved []solvedEq
	var dense []uint32

	for remaining := nc; remaining > 0; {
		if len(stack) == 0 {
			for state[order[next]] != stateIdle {
				next++
			}
			v := order[next]
			state[v] = stateActive
			activeIdx[v] = uint32(numActive)
			for _, ci := range adj[offsets[v]:offsets[v+1]] {
				if done[ci] {
					continue
				}
				active[ci] = setBit(active[ci], numActive)
				priority[ci]--
				if priority[ci] <= 1 {
					stack = append(stack, ci)
				}
			}
			numActive++
			continue
		}

		ci := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if done[ci] {
			continue
		}
		done[ci] = true
		remaining--

		if priority[ci] == 0 {
			dense = append(dense, ci)
			continue
		}

		eq := core[ci]
		var v uint32
		for j := range int(s.count[eq]) {
			if u := s.vars[3*int(eq)+j]; state[u] == stateIdle {
				v = u
				break
			}
		}
		state[v] = stateSolved
		solved = append(solved, solvedEq{v: v, ci: ci})
		for _, cj := range adj[offsets[v]:offsets[v+1]] {
			if done[cj] {
				continue
			}
			active[cj] = xorInto(active[cj], active[ci])
			rhs[cj] ^= rhs[ci]
			priority[cj]--
			if priority[cj] <= 1 {
				stack = append(stack, cj)
			}
		}
	}

	values, ok := solveDense(dense, active, rhs, numActive)
	if !ok {
		return numActive, len(dense), false
	}

	for v := range nv {
		if state[v] == stateActive && getBit(values, int(activeIdx[v])) {
			s.set(uint32(v))
		}
	}
	for _, se := range solved {
		bit := rhs[se.ci] ^ parity(active[se.ci], values)
		if bit != 0 {
			s.set(se.v)
		}
	}
	return numActive, len(dense), true
}

// solveDense runs Gaussian elimination on the rows listed in dense,
// returning one value bit per active variable. Free variables are zero.
func solveDense(dense []uint32, active [][]uint64, rhs []uint8, numActive int) ([]uint64, bool) {
	words := (numActive + 63) / 64
	values := make([]uint64, words)
	if len(dense) == 0 {
		return values, true
	}

	rows := make([][]uint64, len(dense))
	b := make([]uint8, len(dense))
	for i, ci := range dense {
		rows[i] = make([]uint64, words)
		copy(rows[i], active[ci])
		b[i] = rhs[ci]
	}

	pivotCol := make([]int, 0, len(rows))
	rank := 0
	for col := 0; col < numActive && rank < len(rows); col++ {
		w, mask := col/64, uint64(1)<<(col%64)
		p := -1
		for i := rank; i < len(rows); i++ {
			if rows[i][w]&mask != 0 {
				p = i
				break
			}
		}
		if p < 0 {
			continue
		}
		rows[rank], rows[p] = rows[p], rows[rank]
		b[rank], b[p] = b[p], b[rank]
		for i := rank + 1; i < len(rows); i++ {
			if rows[i][w]&mask != 0 {
				for k := w; k < words; k++ {
					rows[i][k] ^= rows[rank][k]
				}
				b[i] ^= b[rank]
			}
		}
		pivotCol = append(pivotCol, col)
		rank++
	}

	for i := rank; i < len(rows); i++ {
		if b[i] != 0 {
			return nil, false
		}
	}

	for r := rank - 1; r >= 0; r-- {
		if b[r]^parity(rows[r], values) != 0 {
			values[pivotCol[r]/64] |= uint64(1) << (pivotCol[r] % 64)
		}
	}
	return values, true
}

func (s *Solver) get(v uint32) uint8 {
	return uint8(s.solution[v>>6] >> (v & 63) & 1)
}

func (s *Solver) set(v uint32) {
	s.solution[v>>6] |= uint64(1) << (v & 63)
}

func setBit(row []uint64, i int) []uint64 {
	w := i / 64
	if len(row) <= w {
		row = append(row, make([]uint64, w+1-len(row))...)
	}
	row[w] |= uint64(1) << (i % 64)
	return row
}

func getBit(row []uint64, i int) bool {
	w := i / 64
	return w < len(row) && row[w]>>(i%64)&1 != 0
}

// xorInto XORs src into dst, growing dst as needed.
func xorInto(dst, src []uint64) []uint64 {
	if len(dst) < len(src) {
		dst = append(dst, make([]uint64, len(src)-len(dst))...)
	}
	for i, w := range src {
		dst[i] ^= w
	}
	return dst
}

// parity returns the parity of popcount(row & values).
func parity(row, values []uint64) uint8 {
	var acc uint64
	for i := range min(len(row), len(values)) {
		acc ^= row[i] & values[i]
	}
	return uint8(bits.OnesCount64(acc) & 1)
}

func resize[T any](s []T, n int) []T {
	if cap(s) < n {
		return make([]T, n)
	}
	return s[:n]
}
