// Package monotone encodes a non-decreasing integer sequence as an affine
// trend plus three levels of non-negative residuals.
//
// value[i] = (i*factor)>>32 + add
//
//	+ level1[i>>6]*level1Factor
//	+ level2[i>>3]*level2Factor
//	+ level3[i]
//
// Each level stores block minima of what the levels above leave over, in
// fixed-width fields whose widths are recorded in the header, so get(i)
// costs three fixed-position reads.
package monotone

import (
	"fmt"
	"math"
	"math/bits"

	rserrors "github.com/tamirms/recsplit/errors"
	"github.com/tamirms/recsplit/internal/bitbuf"
	intbits "github.com/tamirms/recsplit/internal/bits"
)

const (
	level1Shift  = 6
	level2Shift  = 3
	level1Factor = 16
	level2Factor = 4
)

// List is a read-only view over an encoded sequence.
type List struct {
	bits   bitbuf.Bits
	count  uint64
	factor uint64
	add    int64

	width1, width2, width3 int
	start1, start2, start3 uint64
}

type plan struct {
	count  uint64
	factor uint64
	add    int64

	level1, level2, level3 []uint64
	width1, width2, width3 int
}

func zigzag(v int64) uint64   { return uint64(v<<1) ^ uint64(v>>63) }
func unzigzag(v uint64) int64 { return int64(v>>1) ^ -int64(v&1) }

func newPlan(data []uint64) (*plan, error) {
	if len(data) == 0 {
		return nil, rserrors.ErrEmptySequence
	}
	for i := 1; i < len(data); i++ {
		if data[i] < data[i-1] {
			return nil, fmt.Errorf("%w: value[%d]=%d < value[%d]=%d",
				rserrors.ErrNotMonotone, i, data[i], i-1, data[i-1])
		}
	}
	// the offset and residuals are computed in int64
	if last := data[len(data)-1]; last > math.MaxInt64 {
		return nil, fmt.Errorf("%w: value[%d]=%d", rserrors.ErrValueOutOfRange, len(data)-1, last)
	}

	p := &plan{count: uint64(len(data))}
	if p.count > 1 {
		diff := data[len(data)-1] - data[0]
		if hi := diff >> 32; hi < p.count-1 {
			p.factor, _ = bits.Div64(hi, diff<<32, p.count-1)
		}
	}

	residual := make([]uint64, len(data))
	p.add = int64(data[0])
	for i, v := range data {
		p.add = min(p.add, int64(v)-int64(intbits.MulHi32(uint64(i), p.factor)))
	}
	for i, v := range data {
		residual[i] = uint64(int64(v) - int64(intbits.MulHi32(uint64(i), p.factor)) - p.add)
	}

	p.level1 = make([]uint64, (len(data)+(1<<level1Shift)-1)>>level1Shift)
	for j := range p.level1 {
		lo := j << level1Shift
		m := residual[lo]
		for _, r := range residual[lo:min(lo+(1<<level1Shift), len(data))] {
			m = min(m, r)
		}
		p.level1[j] = m / level1Factor
	}

	p.level2 = make([]uint64, (len(data)+(1<<level2Shift)-1)>>level2Shift)
	for k := range p.level2 {
		lo := k << level2Shift
		base := p.level1[lo>>level1Shift] * level1Factor
		m := residual[lo] - base
		for _, r := range residual[lo:min(lo+(1<<level2Shift), len(data))] {
			m = min(m, r-base)
		}
		p.level2[k] = m / level2Factor
	}

	p.level3 = make([]uint64, len(data))
	for i, r := range residual {
		p.level3[i] = r - p.level1[i>>level1Shift]*level1Factor - p.level2[i>>level2Shift]*level2Factor
	}

	p.width1 = maxWidth(p.level1)
	p.width2 = maxWidth(p.level2)
	p.width3 = maxWidth(p.level3)
	return p, nil
}

func maxWidth(values []uint64) int {
	var m uint64
	for _, v := range values {
		m = max(m, v)
	}
	return bits.Len64(m)
}

func (p *plan) headerSize() uint64 {
	fw := bits.Len64(p.factor)
	return bitbuf.EliasDeltaSize(p.count) +
		bitbuf.EliasDeltaSize(zigzag(p.add)+1) +
		bitbuf.EliasDeltaSize(uint64(fw)+1) + uint64(fw) +
		bitbuf.EliasDeltaSize(uint64(p.width1)+1) +
		bitbuf.EliasDeltaSize(uint64(p.width2)+1) +
		bitbuf.EliasDeltaSize(uint64(p.width3)+1)
}

func (p *plan) size() uint64 {
	return p.headerSize() +
		uint64(len(p.level1))*uint64(p.width1) +
		uint64(len(p.level2))*uint64(p.width2) +
		uint64(len(p.level3))*uint64(p.width3)
}

func (p *plan) write(w *bitbuf.Writer) {
	fw := bits.Len64(p.factor)
	w.WriteEliasDelta(p.count)
	w.WriteEliasDelta(zigzag(p.add) + 1)
	w.WriteEliasDelta(uint64(fw) + 1)
	w.WriteNumber(p.factor, fw)
	w.WriteEliasDelta(uint64(p.width1) + 1)
	w.WriteEliasDelta(uint64(p.width2) + 1)
	w.WriteEliasDelta(uint64(p.width3) + 1)
	for _, v := range p.level1 {
		w.WriteNumber(v, p.width1)
	}
	for _, v := range p.level2 {
		w.WriteNumber(v, p.width2)
	}
	for _, v := range p.level3 {
		w.WriteNumber(v, p.width3)
	}
}

// Size returns the encoded length of data in bits without writing it.
func Size(data []uint64) (uint64, error) {
	p, err := newPlan(data)
	if err != nil {
		return 0, err
	}
	return p.size(), nil
}

// Generate encodes data, which must be non-empty, non-decreasing and at most
// math.MaxInt64, into w and returns a view over it.
func Generate(data []uint64, w *bitbuf.Writer) (List, error) {
	p, err := newPlan(data)
	if err != nil {
		return List{}, err
	}
	start := w.Position()
	p.write(w)
	l, _, err := Load(w.Bits(), start)
	return l, err
}

// Load parses a list starting at pos and returns it with the position just
// past its last field.
func Load(b bitbuf.Bits, pos uint64) (List, uint64, error) {
	if pos >= b.Size() {
		return List{}, 0, fmt.Errorf("%w: monotone list at bit %d", rserrors.ErrTruncatedDescription, pos)
	}
	r := bitbuf.NewReader(b, pos)
	l := List{bits: b}
	l.count = r.ReadEliasDelta()
	l.add = unzigzag(r.ReadEliasDelta() - 1)
	fw := int(r.ReadEliasDelta() - 1)
	if fw > 64 {
		return List{}, 0, fmt.Errorf("%w: monotone factor width %d", rserrors.ErrCorruptedDescription, fw)
	}
	l.factor = r.ReadNumber(fw)
	l.width1 = int(r.ReadEliasDelta() - 1)
	l.width2 = int(r.ReadEliasDelta() - 1)
	l.width3 = int(r.ReadEliasDelta() - 1)
	if l.width1 > 64 || l.width2 > 64 || l.width3 > 64 {
		return List{}, 0, fmt.Errorf("%w: monotone level widths %d/%d/%d",
			rserrors.ErrCorruptedDescription, l.width1, l.width2, l.width3)
	}

	n1 := (l.count + (1 << level1Shift) - 1) >> level1Shift
	n2 := (l.count + (1 << level2Shift) - 1) >> level2Shift
	l.start1 = r.Position()
	l.start2 = l.start1 + n1*uint64(l.width1)
	l.start3 = l.start2 + n2*uint64(l.width2)
	end := l.start3 + l.count*uint64(l.width3)
	if end > b.Size() || end < l.start1 {
		return List{}, 0, fmt.Errorf("%w: monotone list of %d values ends past the buffer",
			rserrors.ErrTruncatedDescription, l.count)
	}
	return l, end, nil
}

// Len returns the number of values.
func (l List) Len() uint64 { return l.count }

// Get returns value i.
func (l List) Get(i uint64) uint64 {
	v := uint64(int64(intbits.MulHi32(i, l.factor)) + l.add)
	v += l.bits.ReadNumber(l.start1+(i>>level1Shift)*uint64(l.width1), l.width1) * level1Factor
	v += l.bits.ReadNumber(l.start2+(i>>level2Shift)*uint64(l.width2), l.width2) * level2Factor
	v += l.bits.ReadNumber(l.start3+i*uint64(l.width3), l.width3)
	return v
}

// GetPair returns values i and i+1.
func (l List) GetPair(i uint64) (uint64, uint64) {
	return l.Get(i), l.Get(i + 1)
}
