package bits

// Vector is an append-only bit vector backed by little-endian-ordered
// 64-bit words: bit i lives in words[i/64] at position i%64.
type Vector struct {
	words  []uint64
	length uint64
}

// NewVector returns an empty vector with room for capacityBits bits.
func NewVector(capacityBits uint64) *Vector {
	return &Vector{
		words: make([]uint64, 0, (capacityBits+63)/64),
	}
}

// Len returns the number of bits appended so far.
func (v *Vector) Len() uint64 {
	return v.length
}

// Words returns the backing words. Bits past Len are zero.
func (v *Vector) Words() []uint64 {
	return v.words
}

// AppendBits appends the low n bits of x (n <= 64).
func (v *Vector) AppendBits(x uint64, n int) {
	if n == 0 {
		return
	}
	x &= Mask(n)

	bitPos := uint(v.length & 63)
	if bitPos == 0 {
		v.words = append(v.words, x)
	} else {
		v.words[len(v.words)-1] |= x << bitPos
		if int(bitPos)+n > 64 {
			v.words = append(v.words, x>>(64-bitPos))
		}
	}
	v.length += uint64(n)
}

// Append appends the first n bits of src.
func (v *Vector) Append(src []uint64, n uint64) {
	i := 0
	for ; n >= 64; n -= 64 {
		v.AppendBits(src[i], 64)
		i++
	}
	if n > 0 {
		v.AppendBits(src[i], int(n))
	}
}

// Get reports whether bit pos is set.
func (v *Vector) Get(pos uint64) bool {
	return v.words[pos>>6]>>(pos&63)&1 != 0
}
