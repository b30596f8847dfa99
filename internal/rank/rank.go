// Package rank implements a two-level rank/select index over a bit vector
// stored inside a bit buffer.
//
// Layout: Elias-Delta(size+1), then one absolute count per super-block, one
// count relative to its super-block per 64-bit block, then the raw bits.
// Super-block size grows with log2(size) so the index overhead stays
// sub-linear.
package rank

import (
	"fmt"
	"math/bits"
	"sort"

	rserrors "github.com/tamirms/recsplit/errors"
	"github.com/tamirms/recsplit/internal/bitbuf"
)

// Rank is a read-only view over an encoded bit vector.
type Rank struct {
	bits       bitbuf.Bits
	size       uint64
	superShift int
	superWidth int
	blockWidth int
	superStart uint64
	blockStart uint64
	rawStart   uint64
	end        uint64
	total      uint64
}

type geometry struct {
	superShift int
	superWidth int
	blockWidth int
	numBlocks  uint64
	numSuper   uint64
}

func geometryFor(size uint64) geometry {
	superShift := max(6, 2*bits.Len(uint(bits.Len64(size))))
	g := geometry{
		superShift: superShift,
		superWidth: bits.Len64(size),
		numBlocks:  (size + 63) >> 6,
	}
	if superShift > 6 {
		g.blockWidth = superShift
	}
	perSuper := uint64(1) << (superShift - 6)
	g.numSuper = (g.numBlocks + perSuper - 1) / perSuper
	return g
}

// Generate encodes the first size bits of set into w and returns a view
// over them. set uses the usual little-endian word convention: bit i is
// set[i>>6]>>(i&63)&1.
func Generate(set []uint64, size uint64, w *bitbuf.Writer) Rank {
	start := w.Position()
	g := geometryFor(size)
	w.WriteEliasDelta(size + 1)

	word := func(i uint64) uint64 {
		if i >= uint64(len(set)) {
			return 0
		}
		v := set[i]
		if rem := size - i<<6; rem < 64 {
			v &= uint64(1)<<rem - 1
		}
		return v
	}

	perSuper := uint64(1) << (g.superShift - 6)
	var count uint64
	for s := uint64(0); s < g.numSuper; s++ {
		w.WriteNumber(count, g.superWidth)
		for b := s * perSuper; b < min((s+1)*perSuper, g.numBlocks); b++ {
			count += uint64(bits.OnesCount64(word(b)))
		}
	}
	count = 0
	for b := uint64(0); b < g.numBlocks; b++ {
		if b%perSuper == 0 {
			count = 0
		}
		w.WriteNumber(count, g.blockWidth)
		count += uint64(bits.OnesCount64(word(b)))
	}
	for b := uint64(0); b < g.numBlocks; b++ {
		n := min(64, size-b<<6)
		w.WriteNumber(bits.Reverse64(word(b))>>(64-n), int(n))
	}

	r, _, err := Load(w.Bits(), start)
	if err != nil {
		panic(fmt.Sprintf("recsplit: reloading freshly written rank index: %v", err))
	}
	return r
}

// Load parses the index starting at pos and returns it with the position
// just past its raw bits.
func Load(b bitbuf.Bits, pos uint64) (Rank, uint64, error) {
	if pos >= b.Size() {
		return Rank{}, 0, fmt.Errorf("%w: rank index at bit %d", rserrors.ErrTruncatedDescription, pos)
	}
	sizePlusOne, pos := b.ReadEliasDelta(pos)
	size := sizePlusOne - 1
	g := geometryFor(size)

	r := Rank{
		bits:       b,
		size:       size,
		superShift: g.superShift,
		superWidth: g.superWidth,
		blockWidth: g.blockWidth,
		superStart: pos,
	}
	r.blockStart = r.superStart + g.numSuper*uint64(g.superWidth)
	r.rawStart = r.blockStart + g.numBlocks*uint64(g.blockWidth)
	r.end = r.rawStart + size
	if r.end > b.Size() || r.end < r.rawStart {
		return Rank{}, 0, fmt.Errorf("%w: rank index of %d bits ends past the buffer", rserrors.ErrTruncatedDescription, size)
	}
	if size > 0 {
		r.total = r.rankBelow(size-1) + r.bits.ReadBit(r.rawStart+size-1)
	}
	return r, r.end, nil
}

// Size returns the number of bits in the vector.
func (r Rank) Size() uint64 { return r.size }

// Count returns the number of set bits.
func (r Rank) Count() uint64 { return r.total }

// Get reports whether bit x is set; false for x >= Size.
func (r Rank) Get(x uint64) bool {
	if x >= r.size {
		return false
	}
	return r.bits.ReadBit(r.rawStart+x) == 1
}

// Rank returns the number of set bits in [0, x). x >= Size yields Count.
func (r Rank) Rank(x uint64) uint64 {
	if x >= r.size {
		return r.total
	}
	return r.rankBelow(x)
}

func (r Rank) rankBelow(x uint64) uint64 {
	block := x >> 6
	super := block >> (r.superShift - 6)
	c := r.bits.ReadNumber(r.superStart+super*uint64(r.superWidth), r.superWidth)
	c += r.bits.ReadNumber(r.blockStart+block*uint64(r.blockWidth), r.blockWidth)
	if rem := int(x & 63); rem > 0 {
		c += uint64(bits.OnesCount64(r.bits.ReadNumber(r.rawStart+block<<6, rem)))
	}
	return c
}

// Select returns the position of the k-th set bit (0-based), or false when
// fewer than k+1 bits are set.
func (r Rank) Select(k uint64) (uint64, bool) {
	if k >= r.total {
		return 0, false
	}
	p := sort.Search(int(r.size), func(i int) bool {
		return r.Rank(uint64(i)+1) > k
	})
	return uint64(p), true
}
