// Package bits provides low-level bit manipulation primitives.
package bits

import "math/bits"

// FastRange64 maps a 64-bit hash uniformly to [0, n).
// Uses the "fastrange" technique: multiply and take high bits.
// This is the standard way to map hashes to ranges without modulo bias.
func FastRange64(hash, n uint64) uint64 {
	hi, _ := bits.Mul64(hash, n)
	return hi
}

// Mask returns a word with the low w bits set. w must be in [0, 64].
func Mask(w int) uint64 {
	if w >= 64 {
		return ^uint64(0)
	}
	return uint64(1)<<w - 1
}

// Window reads w bits (w <= 64) starting at bit position pos of words.
// Bit pos becomes the least significant bit of the result. The window may
// straddle two words; words must hold at least pos+w bits.
func Window(words []uint64, pos uint64, w int) uint64 {
	wi := pos >> 6
	bi := uint(pos & 63)
	v := words[wi] >> bi
	if int(bi)+w > 64 {
		v |= words[wi+1] << (64 - bi)
	}
	return v & Mask(w)
}

// Msb returns the index of the most significant set bit of x, or -1 if x is 0.
func Msb(x uint64) int {
	return bits.Len64(x) - 1
}
