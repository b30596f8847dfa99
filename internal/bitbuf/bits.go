package bitbuf

import (
	"fmt"
	"math/bits"
)

// Bits is an immutable bit sequence. All reads are position-explicit.
type Bits struct {
	words []uint64
	size  uint64
}

// Size returns the length in bits.
func (b Bits) Size() uint64 {
	return b.size
}

// Words returns the backing words. Callers must not modify them.
func (b Bits) Words() []uint64 {
	return b.words
}

// ReadBit returns the bit at pos.
func (b Bits) ReadBit(pos uint64) uint64 {
	return b.words[pos>>6] >> (63 - pos&63) & 1
}

// ReadNumber returns width bits starting at pos, width in [0, 64].
func (b Bits) ReadNumber(pos uint64, width int) uint64 {
	if width == 0 {
		return 0
	}
	idx := pos >> 6
	off := int(pos & 63)
	x := b.words[idx] << off
	if free := 64 - off; width > free && idx+1 < uint64(len(b.words)) {
		x |= b.words[idx+1] >> free
	}
	return x >> (64 - width)
}

// readUnary counts the ones starting at pos and returns the count and the
// position just past the terminating zero.
func (b Bits) readUnary(pos uint64) (uint64, uint64) {
	var count uint64
	for {
		idx := pos >> 6
		if idx >= uint64(len(b.words)) {
			panic(fmt.Sprintf("recsplit: unterminated unary code at bit %d", pos))
		}
		off := pos & 63
		ones := uint64(bits.LeadingZeros64(^(b.words[idx] << off)))
		if avail := 64 - off; ones < avail {
			return count + ones, pos + ones + 1
		}
		count += 64 - off
		pos += 64 - off
	}
}

// ReadGolombRice decodes a Golomb-Rice value at pos and returns it with the
// position of the next code.
func (b Bits) ReadGolombRice(pos uint64, shift int) (uint64, uint64) {
	q, pos := b.readUnary(pos)
	return q<<shift | b.ReadNumber(pos, shift), pos + uint64(shift)
}

// SkipGolombRice returns the position just past the Golomb-Rice code at pos.
func (b Bits) SkipGolombRice(pos uint64, shift int) uint64 {
	_, pos = b.readUnary(pos)
	return pos + uint64(shift)
}

// ReadEliasDelta decodes an Elias-Delta value at pos and returns it with the
// position of the next code.
func (b Bits) ReadEliasDelta(pos uint64) (uint64, uint64) {
	zeros := 0
	for b.ReadBit(pos) == 0 {
		zeros++
		pos++
		if zeros > 6 {
			panic(fmt.Sprintf("recsplit: malformed Elias-Delta code at bit %d", pos))
		}
	}
	l := zeros + 1
	n := int(b.ReadNumber(pos, l))
	pos += uint64(l)
	if n == 0 || n > 64 {
		panic(fmt.Sprintf("recsplit: malformed Elias-Delta length %d at bit %d", n, pos))
	}
	value := uint64(1)<<(n-1) | b.ReadNumber(pos, n-1)
	return value, pos + uint64(n-1)
}
