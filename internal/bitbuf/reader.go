package bitbuf

// Reader is a sequential cursor over Bits for parsing headers. Each caller
// owns its Reader; the underlying Bits stay shared and immutable.
type Reader struct {
	bits Bits
	pos  uint64
}

// NewReader starts reading b at pos.
func NewReader(b Bits, pos uint64) *Reader {
	return &Reader{bits: b, pos: pos}
}

// Position returns the cursor.
func (r *Reader) Position() uint64 {
	return r.pos
}

// Remaining returns the number of unread bits.
func (r *Reader) Remaining() uint64 {
	if r.pos >= r.bits.size {
		return 0
	}
	return r.bits.size - r.pos
}

// ReadBit reads one bit.
func (r *Reader) ReadBit() uint64 {
	v := r.bits.ReadBit(r.pos)
	r.pos++
	return v
}

// ReadNumber reads a width-bit value.
func (r *Reader) ReadNumber(width int) uint64 {
	v := r.bits.ReadNumber(r.pos, width)
	r.pos += uint64(width)
	return v
}

// ReadGolombRice reads one Golomb-Rice value.
func (r *Reader) ReadGolombRice(shift int) uint64 {
	v, next := r.bits.ReadGolombRice(r.pos, shift)
	r.pos = next
	return v
}

// SkipGolombRice advances past one Golomb-Rice value.
func (r *Reader) SkipGolombRice(shift int) {
	r.pos = r.bits.SkipGolombRice(r.pos, shift)
}

// ReadEliasDelta reads one Elias-Delta value.
func (r *Reader) ReadEliasDelta() uint64 {
	v, next := r.bits.ReadEliasDelta(r.pos)
	r.pos = next
	return v
}
