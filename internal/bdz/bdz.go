// Package bdz builds the fallback minimal perfect hash for keys that did not
// fit the primary structure, by peeling a random 3-uniform hypergraph.
//
// Layout: Elias-Delta(size+1), Elias-Delta(hashIndex+1), a rank index over
// the "used" vertex bitmap, then 2 bits of g per used vertex in vertex order.
package bdz

import (
	"fmt"

	"go.uber.org/zap"

	rserrors "github.com/tamirms/recsplit/errors"
	"github.com/tamirms/recsplit/internal/bitbuf"
	"github.com/tamirms/recsplit/internal/rank"
	"github.com/tamirms/recsplit/internal/settings"
)

// HashFunc is the seeded key hash the structure is built on.
type HashFunc[K any] func(key K, seed uint64) uint64

// BDZ is a read-only view over an encoded fallback structure.
type BDZ struct {
	bits      bitbuf.Bits
	size      uint64
	hashIndex uint64
	segment   uint64
	used      rank.Rank
	gStart    uint64
	end       uint64
}

// segmentLength returns the vertex count of each of the three parts; the
// whole array holds about 3 + 1.23*size vertices.
func segmentLength(size uint64) uint64 {
	return max(1, (size*123/100+3+2)/3)
}

// vertices returns the three vertices of a key hash, one per segment.
func vertices(hash, segment uint64) [3]uint64 {
	var v [3]uint64
	for j := range v {
		v[j] = uint64(j)*segment + uint64(settings.Reduce(settings.SupplementalHash(hash, uint64(j)), int(segment)))
	}
	return v
}

type peeled struct {
	key    uint32
	vertex uint64
}

// Generate encodes keys into w. Keys must be distinct; retries with the
// next hash index until the hypergraph peels completely.
func Generate[K any](keys []K, hash HashFunc[K], w *bitbuf.Writer, logger *zap.Logger) (*BDZ, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	size := uint64(len(keys))
	segment := segmentLength(size)
	arrayLength := 3 * segment

	edges := make([][3]uint64, size)
	degree := make([]uint32, arrayLength)
	xorEdges := make([]uint32, arrayLength)
	order := make([]peeled, 0, size)
	queue := make([]uint64, 0, arrayLength)

	var hashIndex uint64
	for ; ; hashIndex++ {
		clear(degree)
		clear(xorEdges)
		order = order[:0]
		queue = queue[:0]

		for i, k := range keys {
			edges[i] = vertices(hash(k, hashIndex), segment)
			for _, v := range edges[i] {
				degree[v]++
				xorEdges[v] ^= uint32(i)
			}
		}
		for v := range degree {
			if degree[v] == 1 {
				queue = append(queue, uint64(v))
			}
		}
		for len(queue) > 0 {
			v := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			if degree[v] != 1 {
				continue
			}
			e := xorEdges[v]
			order = append(order, peeled{key: e, vertex: v})
			for _, u := range edges[e] {
				degree[u]--
				xorEdges[u] ^= e
				if degree[u] == 1 {
					queue = append(queue, u)
				}
			}
		}
		if uint64(len(order)) == size {
			break
		}
		logger.Debug("bdz peeling failed, retrying",
			zap.Uint64("hashIndex", hashIndex),
			zap.Int("peeled", len(order)),
			zap.Uint64("keys", size))
	}

	g := make([]uint8, arrayLength)
	usedSet := make([]uint64, (arrayLength+63)/64)
	for i := len(order) - 1; i >= 0; i-- {
		p := order[i]
		e := edges[p.key]
		var idx, sum uint8
		for j, u := range e {
			if u == p.vertex {
				idx = uint8(j)
			} else {
				sum += g[u]
			}
		}
		g[p.vertex] = (idx + 3 - sum%3) % 3
		usedSet[p.vertex>>6] |= 1 << (p.vertex & 63)
	}

	start := w.Position()
	w.WriteEliasDelta(size + 1)
	w.WriteEliasDelta(hashIndex + 1)
	rank.Generate(usedSet, arrayLength, w)
	for v := uint64(0); v < arrayLength; v++ {
		if usedSet[v>>6]>>(v&63)&1 == 1 {
			w.WriteNumber(uint64(g[v]), 2)
		}
	}

	d, _, err := Load(w.Bits(), start)
	if err != nil {
		return nil, err
	}
	if hashIndex > 0 {
		logger.Debug("bdz built", zap.Uint64("keys", size), zap.Uint64("hashIndex", hashIndex))
	}
	return d, nil
}

// Load parses a structure starting at pos and returns it with the position
// just past it.
func Load(b bitbuf.Bits, pos uint64) (*BDZ, uint64, error) {
	if pos >= b.Size() {
		return nil, 0, fmt.Errorf("%w: bdz block at bit %d", rserrors.ErrTruncatedDescription, pos)
	}
	r := bitbuf.NewReader(b, pos)
	d := &BDZ{bits: b}
	d.size = r.ReadEliasDelta() - 1
	d.hashIndex = r.ReadEliasDelta() - 1
	d.segment = segmentLength(d.size)

	used, next, err := rank.Load(b, r.Position())
	if err != nil {
		return nil, 0, err
	}
	if used.Size() != 3*d.segment || used.Count() != d.size {
		return nil, 0, fmt.Errorf("%w: bdz used bitmap has %d of %d vertices for %d keys",
			rserrors.ErrCorruptedDescription, used.Count(), used.Size(), d.size)
	}
	d.used = used
	d.gStart = next
	d.end = next + 2*d.size
	if d.end > b.Size() {
		return nil, 0, fmt.Errorf("%w: bdz assignment ends past the buffer", rserrors.ErrTruncatedDescription)
	}
	return d, d.end, nil
}

// Size returns the number of keys.
func (d *BDZ) Size() uint64 { return d.size }

// HashIndex returns the seed the key hash must be evaluated at.
func (d *BDZ) HashIndex() uint64 { return d.hashIndex }

// End returns the position just past the structure.
func (d *BDZ) End() uint64 { return d.end }

func (d *BDZ) g(v uint64) uint64 {
	if !d.used.Get(v) {
		return 0
	}
	return d.bits.ReadNumber(d.gStart+2*d.used.Rank(v), 2)
}

// Evaluate maps the hash of a key at HashIndex to [0, Size). Member keys get
// distinct results; other hashes get some in-range value.
func (d *BDZ) Evaluate(hash uint64) uint64 {
	if d.size == 0 {
		return 0
	}
	v := vertices(hash, d.segment)
	target := v[(d.g(v[0])+d.g(v[1])+d.g(v[2]))%3]
	return min(d.used.Rank(target), d.size-1)
}
