package lib

import "math/bits"

// Bit64 alias for uint64, provides bit twiddling methods on 64-bit words,
// generalized from Bit32 for the allocator's per-page bitmaps.
type Bit64 uint64

// Ones returns the number of set bits.
func (b Bit64) Ones() int {
	return bits.OnesCount64(uint64(b))
}

// Zeros returns the number of clear bits.
func (b Bit64) Zeros() int {
	return 64 - b.Ones()
}

// Findfirstset returns the index of the lowest set bit, or -1 if b is zero.
func (b Bit64) Findfirstset() int {
	if b == 0 {
		return -1
	}
	return bits.TrailingZeros64(uint64(b))
}

// Setbit returns b with bit n set.
func (b Bit64) Setbit(n uint) Bit64 {
	return b | (1 << n)
}

// Clearbit returns b with bit n cleared.
func (b Bit64) Clearbit(n uint) Bit64 {
	return b &^ (1 << n)
}
