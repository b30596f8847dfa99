// Package bitbuf implements the packed bit buffer shared by every codec in
// the description: fixed-width integers, Golomb-Rice and Elias-Delta codes.
//
// Bits are stored MSB-first inside 64-bit words: bit position p lives in
// word p>>6 at bit 63-(p&63). Writes are OR-merged into zeroed words, so a
// position may only be written once.
//
// Writer is the construction-only cursor. Bits is an immutable view whose
// reads take an explicit position and are safe for concurrent use.
package bitbuf

import (
	"fmt"
	"math/bits"
)

// =============================================================================
// Writer
// =============================================================================

// Writer appends bits at a private cursor. Not safe for concurrent use.
type Writer struct {
	words []uint64
	pos   uint64
}

// NewWriter returns a writer with room for capacityBits before it grows.
func NewWriter(capacityBits uint64) *Writer {
	return &Writer{words: make([]uint64, 0, (capacityBits+63)>>6)}
}

// Position returns the number of bits written so far.
func (w *Writer) Position() uint64 {
	return w.pos
}

// Bits returns an immutable view of everything written so far. The view
// stays valid after further writes; it simply does not see them.
func (w *Writer) Bits() Bits {
	return Bits{words: w.words[:(w.pos+63)>>6], size: w.pos}
}

func (w *Writer) grow(n uint64) {
	need := int((w.pos + n + 63) >> 6)
	if need > len(w.words) {
		w.words = append(w.words, make([]uint64, need-len(w.words))...)
	}
}

// Skip advances the cursor over n zero bits.
func (w *Writer) Skip(n uint64) {
	w.grow(n)
	w.pos += n
}

// WriteBit appends the low bit of bit.
func (w *Writer) WriteBit(bit uint64) {
	w.WriteNumber(bit&1, 1)
}

// WriteNumber appends the low width bits of value, most significant first.
// width must be in [0, 64].
func (w *Writer) WriteNumber(value uint64, width int) {
	if width == 0 {
		return
	}
	if width < 0 || width > 64 {
		panic(fmt.Sprintf("recsplit: bit width %d out of range", width))
	}
	if width < 64 {
		value &= (uint64(1) << width) - 1
	}
	w.grow(uint64(width))

	idx := w.pos >> 6
	free := 64 - int(w.pos&63)
	if width <= free {
		w.words[idx] |= value << (free - width)
	} else {
		rest := width - free
		w.words[idx] |= value >> rest
		w.words[idx+1] |= value << (64 - rest)
	}
	w.pos += uint64(width)
}

func (w *Writer) writeOnes(n uint64) {
	for n >= 63 {
		w.WriteNumber(1<<63-1, 63)
		n -= 63
	}
	w.WriteNumber(1<<n-1, int(n))
}

// WriteGolombRice appends value as a unary quotient value>>shift (ones
// terminated by a zero) followed by the shift-bit remainder.
func (w *Writer) WriteGolombRice(shift int, value uint64) {
	w.writeOnes(value >> shift)
	w.Skip(1)
	w.WriteNumber(value, shift)
}

// WriteEliasDelta appends value, which must be positive.
func (w *Writer) WriteEliasDelta(value uint64) {
	if value == 0 {
		panic("recsplit: Elias-Delta requires a positive value")
	}
	n := bits.Len64(value)
	l := bits.Len(uint(n))
	w.Skip(uint64(l - 1))
	w.WriteNumber(uint64(n), l)
	w.WriteNumber(value, n-1)
}

// Write appends every bit of other.
func (w *Writer) Write(other Bits) {
	w.WriteRange(other, 0, other.size)
}

// WriteRange appends bits [from, to) of other.
func (w *Writer) WriteRange(other Bits, from, to uint64) {
	for from < to {
		n := min(to-from, 64)
		w.WriteNumber(other.ReadNumber(from, int(n)), int(n))
		from += n
	}
}

// =============================================================================
// Size calculators
// =============================================================================

// GolombRiceSize returns the encoded length of value at the given shift.
func GolombRiceSize(shift int, value uint64) uint64 {
	return value>>shift + 1 + uint64(shift)
}

// EliasDeltaSize returns the encoded length of a positive value.
func EliasDeltaSize(value uint64) uint64 {
	n := bits.Len64(value)
	l := bits.Len(uint(n))
	return uint64(2*l + n - 2)
}
