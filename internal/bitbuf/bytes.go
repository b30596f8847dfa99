package bitbuf

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	rserrors "github.com/tamirms/recsplit/errors"
)

var nativeLittleEndian = func() bool {
	x := uint16(1)
	return *(*byte)(unsafe.Pointer(&x)) == 1
}()

// EncodedLen returns the number of bytes PutBytes writes.
func (b Bits) EncodedLen() int {
	return len(b.words) * 8
}

// PutBytes writes the words as little-endian uint64s into dst and returns
// the number of bytes written.
func (b Bits) PutBytes(dst []byte) (int, error) {
	n := b.EncodedLen()
	if len(dst) < n {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", rserrors.ErrTruncatedDescription, n, len(dst))
	}
	for i, w := range b.words {
		binary.LittleEndian.PutUint64(dst[i*8:], w)
	}
	return n, nil
}

// Bytes returns a freshly allocated little-endian serialization.
func (b Bits) Bytes() []byte {
	out := make([]byte, b.EncodedLen())
	_, _ = b.PutBytes(out)
	return out
}

// FromBytes returns a view over data produced by PutBytes. When data is
// 8-byte aligned on a little-endian host the view aliases data, so data
// must outlive the returned Bits and must not be modified. Otherwise the
// words are copied.
func FromBytes(data []byte) (Bits, error) {
	if len(data)%8 != 0 {
		return Bits{}, fmt.Errorf("%w: length %d is not a multiple of 8", rserrors.ErrTruncatedDescription, len(data))
	}
	n := len(data) / 8
	if n == 0 {
		return Bits{}, nil
	}
	ptr := unsafe.Pointer(unsafe.SliceData(data))
	if nativeLittleEndian && uintptr(ptr)%8 == 0 {
		return Bits{words: unsafe.Slice((*uint64)(ptr), n), size: uint64(n) * 64}, nil
	}
	words := make([]uint64, n)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(data[i*8:])
	}
	return Bits{words: words, size: uint64(n) * 64}, nil
}
