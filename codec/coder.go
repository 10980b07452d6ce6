package codec

import (
	"fmt"
	"math/bits"
	"slices"

	csferrors "github.com/tamirms/csf/errors"
)

type codeword struct {
	code   uint64 // right-aligned
	length int
}

// Coder maps the values of one distribution to codewords.
// A Coder is immutable and safe for concurrent use.
type Coder struct {
	codewords map[uint64]codeword
	maxLength int
	decoder   *Decoder
}

// Codeword returns the right-aligned codeword of v and its length.
// ok is false if v was not part of the distribution.
func (c *Coder) Codeword(v uint64) (code uint64, length int, ok bool) {
	cw, ok := c.codewords[v]
	return cw.code, cw.length, ok
}

// CodewordLength returns the codeword length of v, or 0 if v is not coded.
func (c *Coder) CodewordLength(v uint64) int {
	return c.codewords[v].length
}

// MaxCodewordLength returns the length of the longest codeword, which is
// also the window width the decoder expects.
func (c *Coder) MaxCodewordLength() int {
	return c.maxLength
}

// NumSymbols returns the number of distinct values the coder handles.
func (c *Coder) NumSymbols() int {
	return len(c.codewords)
}

// Decoder returns the decoder paired with this coder.
func (c *Coder) Decoder() *Decoder {
	return c.decoder
}

// canonicalCodes assigns canonical codes to entries with the given
// lengths. order lists the entry indices by increasing length, ties kept
// in entry order; codes increase along order.
func canonicalCodes(lengths []int) (codes []uint64, order []int) {
	order = make([]int, len(lengths))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return lengths[a] - lengths[b]
	})

	codes = make([]uint64, len(lengths))
	var code uint64
	prev := 0
	for i, e := range order {
		if i > 0 {
			code++
		}
		code <<= uint(lengths[e] - prev)
		prev = lengths[e]
		codes[e] = code
	}
	return codes, order
}

// newCoder assembles a coder from per-entry codeword lengths. entries[i] is
// the value coded by entry i, except for the escape entry (escapeIndex >= 0)
// whose codeword prefixes the raw bits of every value in escaped.
func newCoder(entries []uint64, lengths []int, escapeIndex int, escaped []uint64) (*Coder, error) {
	codes, order := canonicalCodes(lengths)

	escapedSymbolLength := 0
	if escapeIndex >= 0 {
		escapedSymbolLength = 1
		for _, v := range escaped {
			escapedSymbolLength = max(escapedSymbolLength, bits.Len64(v))
		}
	}

	maxLength := 0
	for i, l := range lengths {
		if i == escapeIndex {
			l += escapedSymbolLength
		}
		maxLength = max(maxLength, l)
	}
	if maxLength > MaxCodewordLength {
		return nil, fmt.Errorf("%w: %d bits", csferrors.ErrCodewordTooLong, maxLength)
	}

	c := &Coder{
		codewords: make(map[uint64]codeword, len(entries)+len(escaped)),
		maxLength: maxLength,
	}
	for i, v := range entries {
		if i == escapeIndex {
			continue
		}
		c.codewords[v] = codeword{code: codes[i], length: lengths[i]}
	}
	for _, v := range escaped {
		c.codewords[v] = codeword{
			code:   codes[escapeIndex]<<uint(escapedSymbolLength) | v,
			length: lengths[escapeIndex] + escapedSymbolLength,
		}
	}

	c.decoder = newDecoder(entries, lengths, codes, order, maxLength, escapeIndex, escapedSymbolLength)
	return c, nil
}
