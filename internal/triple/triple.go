// Package triple derives the hash triple of a key and the three equation
// positions a triple selects inside a chunk.
//
// Both functions are used unchanged at construction and at query time;
// any change here invalidates every serialized function.
package triple

import (
	"math/bits"

	intbits "github.com/tamirms/csf/internal/bits"
	"github.com/zeebo/xxh3"
)

// Secrets from WyHash v4, used to decorrelate the three positions.
const (
	wyp0 = 0xa0761d6478bd642f
	wyp1 = 0xe7037ed1a0b428db
	wyp2 = 0x8ebc6af09c88c6e3
	wyp3 = 0x589965cc75374cc3
)

// NotMember is the position returned for every slot of an equation over an
// empty variable range.
const NotMember = -1

// wymix performs a 128-bit multiply and XOR fold.
// This is the core mixing primitive from WyHash v4.
func wymix(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	return hi ^ lo
}

// Hash returns the hash triple of key under seed.
// h0 and h1 are the halves of xxHash3-128; h2 folds them with the seed.
func Hash(key []byte, seed uint64) [3]uint64 {
	h := xxh3.Hash128Seed(key, seed)
	return [3]uint64{
		h.Lo,
		h.Hi,
		wymix(h.Lo^wyp0, h.Hi^seed^wyp1),
	}
}

// Equation returns the three variable positions selected by t under the
// chunk-local seed, each in [0, numVariables). The local seed occupies the
// top bits of a word and is XORed in unshifted.
//
// numVariables == 0 means the chunk holds no keys, so t cannot belong to
// the domain; every position is then NotMember.
func Equation(t [3]uint64, localSeed, numVariables uint64) [3]int64 {
	if numVariables == 0 {
		return [3]int64{NotMember, NotMember, NotMember}
	}
	return [3]int64{
		int64(intbits.FastRange64(wymix(t[0]^localSeed^wyp0, t[1]^wyp3), numVariables)),
		int64(intbits.FastRange64(wymix(t[1]^localSeed^wyp1, t[2]^wyp0), numVariables)),
		int64(intbits.FastRange64(wymix(t[2]^localSeed^wyp2, t[0]^wyp1), numVariables)),
	}
}
