package csf

const (
	// deltaTimes256 is the variable-to-equation slack, 1.10 × 256 rounded down.
	deltaTimes256 = 281

	// peelOnlyDelta is the slack at and above which systems are solved by
	// peeling alone.
	peelOnlyDelta = 315

	// log2ChunkSize is the log2 of the expected keys per chunk.
	log2ChunkSize = 10

	seedBits   = 10
	seedShift  = 64 - seedBits
	seedStep   = uint64(1) << seedShift
	offsetMask = ^uint64(0) >> seedBits
	seedMask   = ^offsetMask

	// maxVariables bounds the total variable count, which must fit in the
	// offset field.
	maxVariables = offsetMask
)

// offsetSeed is one packed entry of the chunk table: the local seed of a
// chunk in the top 10 bits, unshifted, and the cumulative variable offset
// of the chunk in the low 54 bits.
type offsetSeed uint64

func packOffsetSeed(offset, seed uint64) offsetSeed {
	return offsetSeed(offset&offsetMask | seed&seedMask)
}

func (o offsetSeed) offset() uint64 {
	return uint64(o) & offsetMask
}

func (o offsetSeed) seed() uint64 {
	return uint64(o) & seedMask
}

// chunkOf returns the chunk of h0. A shift of 64 means a single chunk.
func chunkOf(h0 uint64, chunkShift uint) uint64 {
	if chunkShift == 64 {
		return 0
	}
	return h0 >> chunkShift
}
