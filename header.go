package csf

import (
	"encoding/binary"

	"github.com/tamirms/csf/codec"
	csferrors "github.com/tamirms/csf/errors"
)

const (
	// magic number for serialized functions
	// "CSF3" in little-endian
	magic = uint32(0x33465343)

	// version is the current format version
	version = uint16(0x0001)

	// headerSize is the exact size of the serialized header (64 bytes)
	headerSize = 64

	// footerSize is the exact size of the serialized footer (16 bytes)
	footerSize = 16
)

// header is the 64-byte header of a serialized function.
//
// Layout:
//
//	Offset  Size  Field            Type
//	0       4     Magic            0x33465343 ("CSF3")
//	4       2     Version          0x0001
//	6       1     MaxCodeword      uint8 (w)
//	7       1     ChunkShift       uint8 (64 means one chunk)
//	8       8     NumKeys          uint64_le
//	16      8     GlobalSeed       uint64_le
//	24      8     DefaultValue     uint64_le
//	32      8     NumChunks        uint64_le (0 when NumKeys is 0)
//	40      8     DataBits         uint64_le
//	48      8     DecoderLen       uint64_le (bytes)
//	56      1     Transform        uint8 (TransformID)
//	57      1     Codec            uint8 (codec.ID)
//	58      6     Reserved         [6]byte (zero)
//
// The header is followed by the offset/seed table (NumChunks+1 words, none
// when NumChunks is 0), the data words, the decoder and the footer. Word
// regions start 8-byte aligned so they can be viewed in place.
type header struct {
	Magic        uint32
	Version      uint16
	MaxCodeword  uint8
	ChunkShift   uint8
	NumKeys      uint64
	GlobalSeed   uint64
	DefaultValue uint64
	NumChunks    uint64
	DataBits     uint64
	DecoderLen   uint64
	Transform    TransformID
	Codec        codec.ID
	Reserved     [6]byte
}

// encodeTo serializes the header to an existing buffer.
func (h *header) encodeTo(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	buf[6] = h.MaxCodeword
	buf[7] = h.ChunkShift
	binary.LittleEndian.PutUint64(buf[8:16], h.NumKeys)
	binary.LittleEndian.PutUint64(buf[16:24], h.GlobalSeed)
	binary.LittleEndian.PutUint64(buf[24:32], h.DefaultValue)
	binary.LittleEndian.PutUint64(buf[32:40], h.NumChunks)
	binary.LittleEndian.PutUint64(buf[40:48], h.DataBits)
	binary.LittleEndian.PutUint64(buf[48:56], h.DecoderLen)
	buf[56] = byte(h.Transform)
	buf[57] = byte(h.Codec)
	copy(buf[58:64], h.Reserved[:])
}

// decodeHeader parses a 64-byte header and checks its fields are
// consistent with each other.
func decodeHeader(buf []byte) (*header, error) {
	if len(buf) < headerSize {
		return nil, csferrors.ErrTruncatedFile
	}

	h := &header{
		Magic:        binary.LittleEndian.Uint32(buf[0:4]),
		Version:      binary.LittleEndian.Uint16(buf[4:6]),
		MaxCodeword:  buf[6],
		ChunkShift:   buf[7],
		NumKeys:      binary.LittleEndian.Uint64(buf[8:16]),
		GlobalSeed:   binary.LittleEndian.Uint64(buf[16:24]),
		DefaultValue: binary.LittleEndian.Uint64(buf[24:32]),
		NumChunks:    binary.LittleEndian.Uint64(buf[32:40]),
		DataBits:     binary.LittleEndian.Uint64(buf[40:48]),
		DecoderLen:   binary.LittleEndian.Uint64(buf[48:56]),
		Transform:    TransformID(buf[56]),
		Codec:        codec.ID(buf[57]),
	}
	copy(h.Reserved[:], buf[58:64])

	if h.Magic != magic {
		return nil, csferrors.ErrInvalidMagic
	}
	if h.Version != version {
		return nil, csferrors.ErrInvalidVersion
	}
	if h.NumKeys == 0 {
		if h.NumChunks != 0 || h.DataBits != 0 || h.DecoderLen != 0 {
			return nil, csferrors.ErrCorrupted
		}
		return h, nil
	}
	if h.MaxCodeword == 0 || h.MaxCodeword > codec.MaxCodewordLength {
		return nil, csferrors.ErrCorrupted
	}
	if h.ChunkShift == 0 || h.ChunkShift > 64 {
		return nil, csferrors.ErrCorrupted
	}
	if h.NumChunks != uint64(1)<<(64-h.ChunkShift) {
		return nil, csferrors.ErrCorrupted
	}
	if h.DataBits > maxVariables {
		return nil, csferrors.ErrCorrupted
	}
	return h, nil
}

// tableEntries returns the number of offset/seed words.
func (h *header) tableEntries() uint64 {
	if h.NumChunks == 0 {
		return 0
	}
	return h.NumChunks + 1
}

// dataWords returns the number of 64-bit data words.
func (h *header) dataWords() uint64 {
	return (h.DataBits + 63) / 64
}

// size returns the size in bytes of the serialized function, or 0 if it
// overflows.
func (h *header) size() uint64 {
	words := h.tableEntries() + h.dataWords()
	if words > (1<<61) || h.DecoderLen > (1<<62) {
		return 0
	}
	return headerSize + 8*words + h.DecoderLen + footerSize
}

// footer is the 16-byte trailer of a serialized function.
//
// Layout:
//
//	Offset  Size  Field     Type
//	0       8     Checksum  uint64_le (xxHash64 of all preceding bytes)
//	8       8     Reserved  [8]byte (zero)
type footer struct {
	Checksum uint64
	Reserved [8]byte
}

// encodeTo serializes the footer into an existing buffer.
func (f *footer) encodeTo(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], f.Checksum)
	copy(buf[8:16], f.Reserved[:])
}

// decodeFooter parses a 16-byte footer.
func decodeFooter(buf []byte) (*footer, error) {
	if len(buf) < footerSize {
		return nil, csferrors.ErrTruncatedFile
	}
	f := &footer{
		Checksum: binary.LittleEndian.Uint64(buf[0:8]),
	}
	copy(f.Reserved[:], buf[8:16])
	return f, nil
}
