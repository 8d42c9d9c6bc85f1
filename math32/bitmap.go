package math32

import "math/bits"

// Bitmap is a growable bit set indexed by dense ids. Searches use it as their
// closed set and clear it between runs without giving the memory back.
type Bitmap []uint64

func blockOf(x uint32) (int, uint64) {
	return int(x >> 6), 1 << (x & 63)
}

// Set marks x, growing the bitmap when x is past the end.
func (b *Bitmap) Set(x uint32) {
	blk, mask := blockOf(x)
	if blk >= len(*b) {
		b.Grow(x)
	}
	(*b)[blk] |= mask
}

// Remove unmarks x. The bitmap never shrinks.
func (b *Bitmap) Remove(x uint32) {
	if blk, mask := blockOf(x); blk < len(*b) {
		(*b)[blk] &^= mask
	}
}

// Contains reports whether x is marked.
func (b Bitmap) Contains(x uint32) bool {
	blk, mask := blockOf(x)
	return blk < len(b) && b[blk]&mask != 0
}

// Count returns the number of marked ids.
func (b Bitmap) Count() int {
	n := 0
	for _, w := range b {
		n += bits.OnesCount64(w)
	}
	return n
}

// Clear unmarks everything and keeps the capacity.
func (b *Bitmap) Clear() {
	clear(*b)
}

// Grow makes room for ids up to and including x.
func (b *Bitmap) Grow(x uint32) {
	need := int(x>>6) + 1
	if need <= len(*b) {
		return
	}
	if need <= cap(*b) {
		*b = (*b)[:need]
		return
	}
	grown := make(Bitmap, need, max(need, 2*cap(*b)))
	copy(grown, *b)
	*b = grown
}
