package recsplit

import (
	"github.com/tamirms/recsplit/internal/bitbuf"
)

// Description is the immutable, bit-packed encoding of a minimal perfect
// hash function. It carries no copy of the build parameters; evaluators
// must be created with the same leaf and bucket sizes that built it.
type Description struct {
	bits bitbuf.Bits
}

// BitLen returns the encoded length in bits.
func (d *Description) BitLen() uint64 {
	return d.bits.Size()
}

// EncodedLen returns the length of the byte serialization, a multiple of 8.
func (d *Description) EncodedLen() int {
	return d.bits.EncodedLen()
}

// PutBytes serializes the description into dst, which must hold at least
// EncodedLen bytes, and returns the number of bytes written.
func (d *Description) PutBytes(dst []byte) (int, error) {
	return d.bits.PutBytes(dst)
}

// Bytes returns a newly allocated serialization.
func (d *Description) Bytes() []byte {
	return d.bits.Bytes()
}

// DescriptionFromBytes wraps a serialization produced by PutBytes or Bytes.
// On little-endian hosts an 8-byte aligned data slice (for example a
// memory-mapped file) is used in place without copying; data must then stay
// valid and unmodified for the lifetime of the description.
func DescriptionFromBytes(data []byte) (*Description, error) {
	b, err := bitbuf.FromBytes(data)
	if err != nil {
		return nil, err
	}
	return &Description{bits: b}, nil
}
