package csf

import (
	"fmt"

	"github.com/tamirms/csf/chunkstore"
	"github.com/tamirms/csf/codec"
	csferrors "github.com/tamirms/csf/errors"
	"github.com/tamirms/csf/internal/solver"
	"github.com/tamirms/csf/internal/triple"
)

// BuildStats holds diagnostic counters collected while solving chunks.
// They do not affect the built function.
type BuildStats struct {
	Chunks     int
	Attempts   int // global construction attempts, 1 unless duplicates were found
	Unsolvable int // chunk systems that failed and were retried with a new local seed

	Equations      uint64 // equations over all solved systems
	DenseEquations uint64 // equations left for dense elimination in solved systems

	PeeledSolved        uint64 // equations peeled in solved systems
	VariablesSolved     uint64
	PeeledUnsolvable    uint64 // equations peeled in failed systems
	VariablesUnsolvable uint64

	// Indexed by the longest codeword length in the chunk.
	TriesByLongest    [codec.MaxCodewordLength + 1]int
	FailuresByLongest [codec.MaxCodewordLength + 1]int
}

// PeeledFraction returns the mean fraction of solved-system variables
// that peeling alone accounted for.
func (s *BuildStats) PeeledFraction() float64 {
	if s.VariablesSolved == 0 {
		return 0
	}
	return float64(s.PeeledSolved) / float64(s.VariablesSolved)
}

func (s *BuildStats) merge(o *BuildStats) {
	s.Chunks += o.Chunks
	s.Unsolvable += o.Unsolvable
	s.Equations += o.Equations
	s.DenseEquations += o.DenseEquations
	s.PeeledSolved += o.PeeledSolved
	s.VariablesSolved += o.VariablesSolved
	s.PeeledUnsolvable += o.PeeledUnsolvable
	s.VariablesUnsolvable += o.VariablesUnsolvable
	for i := range s.TriesByLongest {
		s.TriesByLongest[i] += o.TriesByLongest[i]
		s.FailuresByLongest[i] += o.FailuresByLongest[i]
	}
}

// chunkOutcome is the result of one solve attempt on a chunk.
type chunkOutcome int

const (
	chunkUnsolvable chunkOutcome = iota
	chunkSolved
)

// chunkSolution is the solved state of one chunk. bits holds numVariables
// bits; offsets are assigned when chunks are assembled.
type chunkSolution struct {
	seed         uint64
	numVariables uint64
	bits         []uint64
}

// chunkSolver solves chunks one at a time and reuses its buffers.
// Not safe for concurrent use; each worker owns one.
type chunkSolver struct {
	coder    *codec.Coder
	w        int
	peelOnly bool
	solver   *solver.Solver
	stats    BuildStats
}

func newChunkSolver(coder *codec.Coder) *chunkSolver {
	return &chunkSolver{
		coder:    coder,
		w:        coder.MaxCodewordLength(),
		peelOnly: deltaTimes256 >= peelOnlyDelta,
		solver:   solver.New(),
	}
}

// solve finds a local seed under which the system of the chunk is
// solvable, trying seeds 0, seedStep, 2*seedStep, ...
func (cs *chunkSolver) solve(records []chunkstore.Record) (chunkSolution, error) {
	sumOfLengths := 0
	longest := 0
	for _, r := range records {
		l := cs.coder.CodewordLength(r.Value)
		if l == 0 {
			return chunkSolution{}, fmt.Errorf("%w: %d", csferrors.ErrValueNotCoded, r.Value)
		}
		sumOfLengths += l
		longest = max(longest, l)
	}
	numVariables := uint64(sumOfLengths*deltaTimes256>>8) + uint64(cs.w)
	cs.stats.Chunks++

	seed := uint64(0)
	for {
		cs.stats.TriesByLongest[longest]++
		outcome, res := cs.attempt(records, seed, numVariables)
		if outcome == chunkSolved {
			cs.stats.Equations += uint64(res.Equations)
			cs.stats.DenseEquations += uint64(res.Dense)
			cs.stats.PeeledSolved += uint64(res.Peeled)
			cs.stats.VariablesSolved += numVariables
			return chunkSolution{
				seed:         seed,
				numVariables: numVariables,
				bits:         append([]uint64(nil), res.Solution...),
			}, nil
		}
		cs.stats.FailuresByLongest[longest]++
		cs.stats.Unsolvable++
		cs.stats.PeeledUnsolvable += uint64(res.Peeled)
		cs.stats.VariablesUnsolvable += numVariables

		seed += seedStep
		if seed == 0 {
			return chunkSolution{}, csferrors.ErrLocalSeedsExhausted
		}
	}
}

// attempt builds and solves the system of a chunk under one local seed.
// Positions are drawn from the first numVariables-w variables so every
// window stays inside the chunk.
func (cs *chunkSolver) attempt(records []chunkstore.Record, seed, numVariables uint64) (chunkOutcome, solver.Result) {
	s := cs.solver
	s.Reset(int(numVariables))
	for _, r := range records {
		code, length, _ := cs.coder.Codeword(r.Value)
		e := triple.Equation(r.Hash, seed, numVariables-uint64(cs.w))
		s.AddWindow(uint32(e[0]), uint32(e[1]), uint32(e[2]), code, length, cs.w)
	}
	res := s.Solve(cs.peelOnly)
	if res.Outcome != solver.Solved {
		return chunkUnsolvable, res
	}
	return chunkSolved, res
}
