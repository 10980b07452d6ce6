// Package codec turns values into prefix-free codewords and back.
//
// Every codec only decides a codeword length per distinct value; codes are
// then assigned canonically, which lets all codecs share one table-driven
// decoder. Codewords are read left-justified from a window of
// MaxCodewordLength bits, so a decoder can be handed a window whose low
// bits are arbitrary.
//
// Symbols are ranked by decreasing frequency, ties broken by increasing
// value. Rank-based codecs (unary, gamma) give shorter codewords to
// lower ranks.
package codec

import (
	"fmt"
	"math/bits"
	"slices"
	"strings"

	csferrors "github.com/tamirms/csf/errors"
)

// MaxCodewordLength is the longest codeword any coder may produce.
// Windows of up to 63 bits keep every decoding boundary representable in
// a uint64.
const MaxCodewordLength = 63

// DefaultLimit is the default decoding table limit for LLHUFFMAN.
const DefaultLimit = 20

// ID identifies a codec in serialized functions. 0 is reserved.
type ID uint8

const (
	IDUnary ID = iota + 1
	IDBinary
	IDGamma
	IDHuffman
	IDLengthLimitedHuffman
)

// String returns the command-line name of the codec.
func (id ID) String() string {
	switch id {
	case IDUnary:
		return "UNARY"
	case IDBinary:
		return "BINARY"
	case IDGamma:
		return "GAMMA"
	case IDHuffman:
		return "HUFFMAN"
	case IDLengthLimitedHuffman:
		return "LLHUFFMAN"
	default:
		return fmt.Sprintf("ID(%d)", uint8(id))
	}
}

// Codec builds a coder for a value-frequency distribution.
type Codec interface {
	ID() ID
	NewCoder(frequencies map[uint64]uint64) (*Coder, error)
}

// ByName returns the codec with the given name (case-insensitive):
// UNARY, BINARY, GAMMA, HUFFMAN or LLHUFFMAN. limit is only used by
// LLHUFFMAN.
func ByName(name string, limit int) (Codec, error) {
	switch strings.ToUpper(name) {
	case "UNARY":
		return Unary{}, nil
	case "BINARY":
		return Binary{}, nil
	case "GAMMA":
		return Gamma{}, nil
	case "HUFFMAN":
		return Huffman{}, nil
	case "LLHUFFMAN":
		if limit < 1 {
			return nil, csferrors.ErrInvalidLimit
		}
		return Huffman{Limit: limit}, nil
	default:
		return nil, fmt.Errorf("%w: %q", csferrors.ErrUnknownCodec, name)
	}
}

// Unary codes the symbol of rank r with r+1 bits; the last symbol shares
// the length of its predecessor.
type Unary struct{}

func (Unary) ID() ID { return IDUnary }

func (Unary) NewCoder(frequencies map[uint64]uint64) (*Coder, error) {
	ranked := rankSymbols(frequencies)
	lengths := make([]int, len(ranked))
	for r := range lengths {
		lengths[r] = r + 1
	}
	if n := len(lengths); n > 1 {
		lengths[n-1] = n - 1
	}
	return newCoder(symbolValues(ranked), lengths, -1, nil)
}

// Binary codes every symbol with the same number of bits.
type Binary struct{}

func (Binary) ID() ID { return IDBinary }

func (Binary) NewCoder(frequencies map[uint64]uint64) (*Coder, error) {
	ranked := rankSymbols(frequencies)
	width := max(1, bits.Len(uint(max(len(ranked), 1)-1)))
	lengths := make([]int, len(ranked))
	for i := range lengths {
		lengths[i] = width
	}
	return newCoder(symbolValues(ranked), lengths, -1, nil)
}

// Gamma codes the symbol of rank r with the Elias-gamma length of r+1.
type Gamma struct{}

func (Gamma) ID() ID { return IDGamma }

func (Gamma) NewCoder(frequencies map[uint64]uint64) (*Coder, error) {
	ranked := rankSymbols(frequencies)
	lengths := make([]int, len(ranked))
	for r := range lengths {
		lengths[r] = 2*(bits.Len64(uint64(r)+1)-1) + 1
	}
	return newCoder(symbolValues(ranked), lengths, -1, nil)
}

// Huffman builds an optimal prefix code. A positive Limit caps the
// decoding table at Limit entries: the Limit-1 most frequent symbols get
// Huffman codewords, and the rest share an escape codeword followed by
// their raw value.
type Huffman struct {
	Limit int
}

func (h Huffman) ID() ID {
	if h.Limit > 0 {
		return IDLengthLimitedHuffman
	}
	return IDHuffman
}

func (h Huffman) NewCoder(frequencies map[uint64]uint64) (*Coder, error) {
	ranked := rankSymbols(frequencies)
	if h.Limit <= 0 || len(ranked) <= h.Limit {
		weights := make([]uint64, len(ranked))
		for i, s := range ranked {
			weights[i] = s.freq
		}
		return newCoder(symbolValues(ranked), huffmanLengths(weights), -1, nil)
	}

	kept := ranked[:h.Limit-1]
	escaped := symbolValues(ranked[h.Limit-1:])

	weights := make([]uint64, len(kept)+1)
	entries := make([]uint64, len(kept)+1)
	for i, s := range kept {
		weights[i] = s.freq
		entries[i] = s.value
	}
	for _, s := range ranked[h.Limit-1:] {
		weights[len(kept)] += s.freq
	}
	return newCoder(entries, huffmanLengths(weights), len(kept), escaped)
}

type symbolFreq struct {
	value uint64
	freq  uint64
}

// rankSymbols orders the distribution by decreasing frequency, then
// increasing value.
func rankSymbols(frequencies map[uint64]uint64) []symbolFreq {
	ranked := make([]symbolFreq, 0, len(frequencies))
	for v, f := range frequencies {
		ranked = append(ranked, symbolFreq{value: v, freq: f})
	}
	slices.SortFunc(ranked, func(a, b symbolFreq) int {
		if a.freq != b.freq {
			if a.freq > b.freq {
				return -1
			}
			return 1
		}
		switch {
		case a.value < b.value:
			return -1
		case a.value > b.value:
			return 1
		}
		return 0
	})
	return ranked
}

func symbolValues(ranked []symbolFreq) []uint64 {
	values := make([]uint64, len(ranked))
	for i, s := range ranked {
		values[i] = s.value
	}
	return values
}
