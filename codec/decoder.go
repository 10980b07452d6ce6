package codec

import (
	"encoding/binary"
	"fmt"

	csferrors "github.com/tamirms/csf/errors"
	intbits "github.com/tamirms/csf/internal/bits"
	"github.com/tamirms/csf/internal/encoding"
)

const (
	decoderHeaderSize = 16
	decoderGroupSize  = 16
	noEscape          = -1
)

// Decoder inverts a canonical code. Codewords of equal length form a group;
// for each group the decoder keeps the left-justified value one past its
// last codeword, so decoding is a scan over at most 63 boundaries.
//
// Serialized layout (little-endian):
//
//	Offset  Size  Field
//	0       1     width (window bits, = max codeword length)
//	1       1     escaped symbol length (0 = no escape)
//	2       1     escape shift
//	3       1     number of groups G
//	4       4     escape index (int32, -1 = none)
//	8       4     number of symbols S
//	12      4     reserved (zero)
//	16      16×G  groups: [lastCodewordPlusOne u64][howManyUpTo u32][shift u32]
//	16+16G  8×S   symbols in canonical order
type Decoder struct {
	width               int
	lastCodewordPlusOne []uint64
	howManyUpTo         []uint64
	shift               []uint8
	symbols             []uint64
	escapeIndex         int
	escapeShift         uint
	escapedSymbolLength int
}

func newDecoder(entries []uint64, lengths []int, codes []uint64, order []int, width, escapeIndex, escapedSymbolLength int) *Decoder {
	d := &Decoder{
		width:               width,
		symbols:             make([]uint64, len(order)),
		escapeIndex:         noEscape,
		escapedSymbolLength: escapedSymbolLength,
	}
	for pos, e := range order {
		d.symbols[pos] = entries[e]
		l := lengths[e]
		if e == escapeIndex {
			d.escapeIndex = pos
			d.escapeShift = uint(width - l - escapedSymbolLength)
		}
		if pos == len(order)-1 || lengths[order[pos+1]] != l {
			s := uint(width - l)
			d.lastCodewordPlusOne = append(d.lastCodewordPlusOne, (codes[e]+1)<<s)
			d.howManyUpTo = append(d.howManyUpTo, uint64(pos+1))
			d.shift = append(d.shift, uint8(s))
		}
	}
	return d
}

// Width returns the window width Decode expects.
func (d *Decoder) Width() int {
	return d.width
}

// Decode returns the value whose codeword is the prefix of the width-bit
// window. Bits below the codeword are ignored. Windows that match no
// codeword decode to an unspecified symbol.
func (d *Decoder) Decode(window uint64) uint64 {
	for g, lcpo := range d.lastCodewordPlusOne {
		if window < lcpo {
			s := d.shift[g]
			idx := d.howManyUpTo[g] - (lcpo>>s - window>>s)
			if int(idx) == d.escapeIndex {
				return window >> d.escapeShift & intbits.Mask(d.escapedSymbolLength)
			}
			return d.symbols[idx]
		}
	}
	if len(d.symbols) == 0 {
		return 0
	}
	return d.symbols[len(d.symbols)-1]
}

// NumBits returns the size of the serialized decoder in bits.
func (d *Decoder) NumBits() uint64 {
	return 8 * uint64(d.binarySize())
}

func (d *Decoder) binarySize() int {
	return decoderHeaderSize + decoderGroupSize*len(d.lastCodewordPlusOne) + 8*len(d.symbols)
}

// AppendBinary appends the serialized decoder to dst.
func (d *Decoder) AppendBinary(dst []byte) ([]byte, error) {
	var hdr [decoderHeaderSize]byte
	hdr[0] = uint8(d.width)
	hdr[1] = uint8(d.escapedSymbolLength)
	hdr[2] = uint8(d.escapeShift)
	hdr[3] = uint8(len(d.lastCodewordPlusOne))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(int32(d.escapeIndex)))
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(len(d.symbols)))
	dst = append(dst, hdr[:]...)

	for g, lcpo := range d.lastCodewordPlusOne {
		dst = binary.LittleEndian.AppendUint64(dst, lcpo)
		dst = binary.LittleEndian.AppendUint32(dst, uint32(d.howManyUpTo[g]))
		dst = binary.LittleEndian.AppendUint32(dst, uint32(d.shift[g]))
	}
	return encoding.AppendWords(dst, d.symbols), nil
}

// ParseDecoder decodes a decoder serialized by AppendBinary. It returns the
// number of bytes consumed.
func ParseDecoder(buf []byte) (*Decoder, int, error) {
	if len(buf) < decoderHeaderSize {
		return nil, 0, csferrors.ErrTruncatedFile
	}
	d := &Decoder{
		width:               int(buf[0]),
		escapedSymbolLength: int(buf[1]),
		escapeShift:         uint(buf[2]),
		escapeIndex:         int(int32(binary.LittleEndian.Uint32(buf[4:8]))),
	}
	numGroups := int(buf[3])
	numSymbols := int(binary.LittleEndian.Uint32(buf[8:12]))

	if d.width > MaxCodewordLength || numGroups > MaxCodewordLength {
		return nil, 0, fmt.Errorf("%w: decoder width %d, %d groups", csferrors.ErrCorrupted, d.width, numGroups)
	}
	size := decoderHeaderSize + decoderGroupSize*numGroups + 8*numSymbols
	if len(buf) < size {
		return nil, 0, csferrors.ErrTruncatedFile
	}

	off := decoderHeaderSize
	d.lastCodewordPlusOne = make([]uint64, numGroups)
	d.howManyUpTo = make([]uint64, numGroups)
	d.shift = make([]uint8, numGroups)
	// Decode indexes symbols by howManyUpTo[g] minus the codewords between
	// the window and lastCodewordPlusOne[g]. Groups must be increasing and
	// hold no more codewords than their counts so the index stays in range.
	var prevLcpo, prevCount uint64
	for g := range numGroups {
		lcpo := binary.LittleEndian.Uint64(buf[off:])
		count := uint64(binary.LittleEndian.Uint32(buf[off+8:]))
		shift := binary.LittleEndian.Uint32(buf[off+12:])
		if shift > uint32(d.width) || count <= prevCount || count > uint64(numSymbols) ||
			lcpo <= prevLcpo || lcpo&intbits.Mask(int(shift)) != 0 ||
			lcpo>>shift-prevLcpo>>shift > count-prevCount {
			return nil, 0, fmt.Errorf("%w: decoder group %d", csferrors.ErrCorrupted, g)
		}
		d.lastCodewordPlusOne[g] = lcpo
		d.howManyUpTo[g] = count
		d.shift[g] = uint8(shift)
		prevLcpo, prevCount = lcpo, count
		off += decoderGroupSize
	}
	if numGroups > 0 && d.howManyUpTo[numGroups-1] != uint64(numSymbols) {
		return nil, 0, fmt.Errorf("%w: decoder symbol count", csferrors.ErrCorrupted)
	}
	if d.escapeIndex < noEscape || d.escapeIndex >= numSymbols {
		return nil, 0, fmt.Errorf("%w: decoder escape index %d", csferrors.ErrCorrupted, d.escapeIndex)
	}

	d.symbols = encoding.CopyWords(buf[off : off+8*numSymbols])
	return d, size, nil
}
