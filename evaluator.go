package recsplit

import (
	"fmt"

	rserrors "github.com/tamirms/recsplit/errors"
	"github.com/tamirms/recsplit/internal/bdz"
	"github.com/tamirms/recsplit/internal/bitbuf"
	"github.com/tamirms/recsplit/internal/monotone"
	"github.com/tamirms/recsplit/internal/settings"
)

// Evaluator answers lookups against a Description. It is read-only and
// safe for concurrent use.
type Evaluator[K any] struct {
	hash     UniversalHash[K]
	settings *settings.Settings
	bits     bitbuf.Bits

	n             uint64
	bucketCount   uint64
	minOffsetDiff uint64
	minStartDiff  uint64
	offsets       monotone.List
	starts        monotone.List
	dataStart     uint64
	primarySize   uint64
	alt           *bdz.BDZ
	end           uint64
}

// Stats holds description statistics.
type Stats struct {
	NumKeys         uint64
	NumBuckets      uint64
	PrimaryKeys     uint64
	AlternativeKeys uint64
	TotalBits       uint64
	BitsPerKey      float64
}

// newEvaluator parses the fixed header and the list headers. Bucket data
// and the fallback assignment are only located, not read.
func newEvaluator[K any](hash UniversalHash[K], s *settings.Settings, b bitbuf.Bits) (e *Evaluator[K], err error) {
	if b.Size() == 0 {
		return nil, fmt.Errorf("%w: empty description", rserrors.ErrTruncatedDescription)
	}
	defer func() {
		// malformed codes surface as panics from the bit readers
		if r := recover(); r != nil {
			e, err = nil, fmt.Errorf("%w: %v", rserrors.ErrCorruptedDescription, r)
		}
	}()

	e = &Evaluator[K]{hash: hash, settings: s, bits: b}
	r := bitbuf.NewReader(b, 0)
	e.n = r.ReadEliasDelta() - 1
	hasAlt := r.ReadBit() == 1
	e.minOffsetDiff = r.ReadEliasDelta() - 1
	e.minStartDiff = r.ReadEliasDelta() - 1
	e.bucketCount = s.BucketCount(e.n)

	var pos uint64
	if e.offsets, pos, err = monotone.Load(b, r.Position()); err != nil {
		return nil, fmt.Errorf("offset list: %w", err)
	}
	if e.starts, pos, err = monotone.Load(b, pos); err != nil {
		return nil, fmt.Errorf("start list: %w", err)
	}
	if e.offsets.Len() != e.bucketCount+1 || e.starts.Len() != e.bucketCount+1 {
		return nil, fmt.Errorf("%w: %d offsets and %d starts for %d buckets (built with other settings?)",
			rserrors.ErrCorruptedDescription, e.offsets.Len(), e.starts.Len(), e.bucketCount)
	}
	e.dataStart = pos
	e.primarySize = e.offsets.Get(e.bucketCount) + e.bucketCount*e.minOffsetDiff
	e.end = e.dataStart + e.starts.Get(e.bucketCount) + e.bucketCount*e.minStartDiff
	if e.end > b.Size() {
		return nil, fmt.Errorf("%w: bucket data ends at bit %d of %d", rserrors.ErrTruncatedDescription, e.end, b.Size())
	}

	altKeys := uint64(0)
	if hasAlt {
		if e.alt, e.end, err = bdz.Load(b, e.end); err != nil {
			return nil, fmt.Errorf("fallback: %w", err)
		}
		altKeys = e.alt.Size()
	}
	if e.primarySize+altKeys != e.n {
		return nil, fmt.Errorf("%w: %d primary + %d alternative keys, header says %d",
			rserrors.ErrCorruptedDescription, e.primarySize, altKeys, e.n)
	}
	return e, nil
}

// Evaluate returns the index of key in [0, n). Keys outside the original
// set get an arbitrary in-range index. A key that lands in an empty bucket
// of a description without a fallback block gets 0, which is
// indistinguishable from a legitimate 0.
func (e *Evaluator[K]) Evaluate(key K) uint64 {
	hash := e.hash.Hash(key, 0)
	b := settings.BucketOf(hash, e.bucketCount)
	lo, hi := e.offsets.GetPair(b)
	offset := lo + b*e.minOffsetDiff
	size := hi + e.minOffsetDiff - lo

	switch size {
	case 0:
		if e.alt == nil {
			return 0
		}
		return e.primarySize + e.alt.Evaluate(e.hash.Hash(key, e.alt.HashIndex()))
	case 1:
		return offset
	}
	pos := e.dataStart + e.starts.Get(b) + b*e.minStartDiff
	return offset + e.evaluateBucket(key, hash, int(size), pos)
}

// evaluateBucket replays the construction search for one key: at each
// split it decodes the accepted attempt index, picks the key's part and
// skips the encodings of the parts before it.
func (e *Evaluator[K]) evaluateBucket(key K, hash uint64, size int, pos uint64) uint64 {
	var base, seed, add uint64
	for size > e.settings.LeafSize() {
		v, next := e.bits.ReadGolombRice(pos, e.settings.GolombRiceShift(size))
		pos = next
		index := base + v + 1
		if s := settings.UniversalHashIndex(index); s != seed {
			hash, seed = e.hash.Hash(key, s), s
		}

		split := e.settings.Split(size)
		part := partOf(hash, index, size, split)
		_, first := partSizes(size, split)
		switch {
		case split > 0:
			for range part {
				pos = e.skip(first, pos)
			}
			add += uint64(part * first)
			size = first
		case part == 0:
			size = first
		default:
			pos = e.skip(first, pos)
			add += uint64(first)
			size -= first
		}
		base = index
	}
	if size <= 1 {
		return add
	}

	v, _ := e.bits.ReadGolombRice(pos, e.settings.GolombRiceShift(size))
	index := base + v + 1
	if s := settings.UniversalHashIndex(index); s != seed {
		hash = e.hash.Hash(key, s)
	}
	return add + uint64(settings.Reduce(settings.SupplementalHash(hash, index), size))
}

// skip returns the position just past the encoding of a node of the given
// size starting at pos.
func (e *Evaluator[K]) skip(size int, pos uint64) uint64 {
	if size <= 1 {
		return pos
	}
	pos = e.bits.SkipGolombRice(pos, e.settings.GolombRiceShift(size))
	if size <= e.settings.LeafSize() {
		return pos
	}
	split := e.settings.Split(size)
	parts, first := partSizes(size, split)
	if split > 0 {
		for range parts {
			pos = e.skip(first, pos)
		}
		return pos
	}
	pos = e.skip(first, pos)
	return e.skip(size-first, pos)
}

// Size returns the number of keys the description maps.
func (e *Evaluator[K]) Size() uint64 {
	return e.n
}

// Stats returns statistics for the description.
func (e *Evaluator[K]) Stats() *Stats {
	bitsPerKey := float64(0)
	if e.n > 0 {
		bitsPerKey = float64(e.end) / float64(e.n)
	}
	return &Stats{
		NumKeys:         e.n,
		NumBuckets:      e.bucketCount,
		PrimaryKeys:     e.primarySize,
		AlternativeKeys: e.n - e.primarySize,
		TotalBits:       e.end,
		BitsPerKey:      bitsPerKey,
	}
}
