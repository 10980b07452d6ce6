package csf

import (
	"sync/atomic"

	"github.com/edsrzf/mmap-go"
	"github.com/tamirms/csf/codec"
	"github.com/tamirms/csf/internal/bits"
	"github.com/tamirms/csf/internal/triple"
)

// Function is an immutable compressed static function from keys of type K
// to uint64 values.
//
// Get returns the value of every key of the build set. For other keys it
// returns an arbitrary value, occasionally the default value: there is no
// membership test.
//
// Thread Safety:
// - Get, GetBytes and the other read methods are safe for concurrent use
// - Close must only be called after all queries have completed
type Function[K any] struct {
	n            uint64
	globalSeed   uint64
	defaultValue uint64
	chunkShift   uint
	w            int

	offsetSeed []uint64 // packed offsetSeed entries, numChunks+1
	data       []uint64
	dataBits   uint64
	decoder    *codec.Decoder
	codecID    codec.ID

	transform Transform[K]
	stats     BuildStats

	raw    []byte    // serialized form, set by Open and OpenBytes
	mmap   mmap.MMap // set by Open
	closed atomic.Bool
}

// Get returns the value associated with key.
func (f *Function[K]) Get(key K) uint64 {
	if f.n == 0 {
		return f.defaultValue
	}
	var scratch [64]byte
	return f.GetBytes(f.transform.AppendBytes(scratch[:0], key))
}

// GetBytes returns the value associated with an already transformed key.
func (f *Function[K]) GetBytes(key []byte) uint64 {
	if f.n == 0 {
		return f.defaultValue
	}
	return f.GetHash(triple.Hash(key, f.globalSeed))
}

// GetHash returns the value associated with the key whose triple under
// GlobalSeed is t.
func (f *Function[K]) GetHash(t [3]uint64) uint64 {
	if f.n == 0 {
		return f.defaultValue
	}
	q := chunkOf(t[0], f.chunkShift)

	lo := offsetSeed(f.offsetSeed[q])
	chunkOffset := lo.offset()
	nextChunkOffset := offsetSeed(f.offsetSeed[q+1]).offset()
	w := f.w

	e := triple.Equation(t, lo.seed(), nextChunkOffset-chunkOffset-uint64(w))
	if e[0] == triple.NotMember {
		return f.defaultValue
	}
	x := bits.Window(f.data, chunkOffset+uint64(e[0]), w) ^
		bits.Window(f.data, chunkOffset+uint64(e[1]), w) ^
		bits.Window(f.data, chunkOffset+uint64(e[2]), w)
	return f.decoder.Decode(x)
}

// ContainsKey always reports true: the function stores no membership
// information.
func (f *Function[K]) ContainsKey(key K) bool {
	return true
}

// Size returns the number of keys the function was built from.
func (f *Function[K]) Size() uint64 {
	return f.n
}

// NumChunks returns the number of chunks, 0 for an empty function.
func (f *Function[K]) NumChunks() int {
	if len(f.offsetSeed) == 0 {
		return 0
	}
	return len(f.offsetSeed) - 1
}

// NumBits returns the size of the function in bits: the data bits, the
// offset/seed table, and the decoder.
func (f *Function[K]) NumBits() uint64 {
	if f.n == 0 {
		return 0
	}
	return f.dataBits + 64*uint64(len(f.offsetSeed)) + f.decoder.NumBits()
}

// BitsPerKey returns NumBits divided by Size.
func (f *Function[K]) BitsPerKey() float64 {
	if f.n == 0 {
		return 0
	}
	return float64(f.NumBits()) / float64(f.n)
}

// MaxCodewordLength returns the width of the windows read per query.
func (f *Function[K]) MaxCodewordLength() int {
	return f.w
}

// Codec returns the identifier of the codec the values were coded with.
func (f *Function[K]) Codec() codec.ID {
	return f.codecID
}

// BuildStats returns the solver counters of the build. Functions loaded
// with Open or OpenBytes return zero stats.
func (f *Function[K]) BuildStats() BuildStats {
	return f.stats
}

// Close releases the mapping of a function returned by Open. For other
// functions it is a no-op. Close is idempotent.
func (f *Function[K]) Close() error {
	if f.closed.Swap(true) {
		return nil
	}
	if f.mmap != nil {
		err := f.mmap.Unmap()
		f.mmap = nil
		return err
	}
	return nil
}
