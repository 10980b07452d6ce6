// Package encoding converts between byte buffers and 64-bit word arrays.
//
// WordsView reinterprets memory in place and is only correct on
// little-endian architectures (amd64, arm64). PutWords and CopyWords are
// portable.
package encoding

import (
	"encoding/binary"
	"unsafe"
)

// WordsView returns buf viewed as len(buf)/8 uint64 words without copying.
// ok is false when buf is not 8-byte aligned or its length is not a
// multiple of 8; callers then fall back to CopyWords.
func WordsView(buf []byte) (words []uint64, ok bool) {
	if len(buf)%8 != 0 {
		return nil, false
	}
	if len(buf) == 0 {
		return []uint64{}, true
	}
	ptr := unsafe.Pointer(unsafe.SliceData(buf))
	if uintptr(ptr)%8 != 0 {
		return nil, false
	}
	return unsafe.Slice((*uint64)(ptr), len(buf)/8), true
}

// CopyWords decodes len(buf)/8 little-endian words into a new slice.
func CopyWords(buf []byte) []uint64 {
	words := make([]uint64, len(buf)/8)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(buf[i*8:])
	}
	return words
}

// PutWords encodes words little-endian into dst, which must hold
// 8*len(words) bytes. Returns the number of bytes written.
func PutWords(dst []byte, words []uint64) int {
	_ = dst[:8*len(words)]
	for i, w := range words {
		binary.LittleEndian.PutUint64(dst[i*8:], w)
	}
	return 8 * len(words)
}

// AppendWords appends words little-endian to dst.
func AppendWords(dst []byte, words []uint64) []byte {
	for _, w := range words {
		dst = binary.LittleEndian.AppendUint64(dst, w)
	}
	return dst
}
