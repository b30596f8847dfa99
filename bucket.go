package recsplit

import (
	"fmt"
	"slices"

	rserrors "github.com/tamirms/recsplit/errors"
	"github.com/tamirms/recsplit/internal/bitbuf"
	"github.com/tamirms/recsplit/internal/settings"
)

// keyHash pairs a key handle with its hash at the current batch seed.
type keyHash struct {
	hash uint64
	key  uint32
}

// bucketResult is the encoding of one bucket. Alternative buckets carry no
// bits; their keys go to the fallback structure.
type bucketResult struct {
	bits        bitbuf.Bits
	count       int
	alternative bool
}

// bucketEncoder holds the reusable scratch space of one worker.
type bucketEncoder[K any] struct {
	keys     []K
	hash     UniversalHash[K]
	settings *settings.Settings
	maxBits  uint64 // longer encodings go to the fallback

	w       *bitbuf.Writer
	entries []keyHash
	scratch []keyHash
	sorted  []uint64
	counts  []int
}

func (e *bucketEncoder[K]) reset(size int) {
	e.entries = slices.Grow(e.entries[:0], size)[:size]
	e.scratch = slices.Grow(e.scratch[:0], size)[:size]
	e.sorted = slices.Grow(e.sorted[:0], size)[:size]
}

// encodeBucket encodes the keys at the given handles. hashes holds every
// key's seed-0 hash.
func (e *bucketEncoder[K]) encodeBucket(bucket uint64, handles []uint32, hashes []uint64) (bucketResult, error) {
	res := bucketResult{count: len(handles)}
	if len(handles) == 0 {
		return res, nil
	}

	e.reset(len(handles))
	for i, k := range handles {
		e.entries[i] = keyHash{hash: hashes[k], key: k}
		e.sorted[i] = hashes[k]
	}
	slices.Sort(e.sorted)
	for i := 1; i < len(e.sorted); i++ {
		if e.sorted[i] == e.sorted[i-1] {
			return res, fmt.Errorf("%w: bucket %d holds two keys with hash %#x",
				rserrors.ErrDuplicateKey, bucket, e.sorted[i])
		}
	}

	if len(handles) > e.settings.MaxBucketSize() {
		res.alternative = true
		return res, nil
	}

	e.w = bitbuf.NewWriter(uint64(len(handles)) * 3)
	e.encode(e.entries, 0)
	if e.w.Position() > e.maxBits {
		res.alternative = true
		return res, nil
	}
	res.bits = e.w.Bits()
	return res, nil
}

func (e *bucketEncoder[K]) encode(entries []keyHash, base uint64) {
	switch size := len(entries); {
	case size <= 1:
	case size <= e.settings.LeafSize():
		e.encodeLeaf(entries, base)
	default:
		e.encodeSplit(entries, base)
	}
}

// rehash moves entries to the batch seed of index when index opens a new
// batch.
func (e *bucketEncoder[K]) rehash(entries []keyHash, index uint64) {
	if !settings.NeedNewUniversalHashIndex(index) {
		return
	}
	seed := settings.UniversalHashIndex(index)
	for i := range entries {
		entries[i].hash = e.hash.Hash(e.keys[entries[i].key], seed)
	}
}

func (e *bucketEncoder[K]) encodeLeaf(entries []keyHash, base uint64) {
	index := base + 1
	for ; ; index++ {
		e.rehash(entries, index)
		if isBijection(entries, index) {
			break
		}
	}
	e.w.WriteGolombRice(e.settings.GolombRiceShift(len(entries)), index-base-1)
}

func isBijection(entries []keyHash, index uint64) bool {
	var used uint32
	for _, en := range entries {
		bit := uint32(1) << settings.Reduce(settings.SupplementalHash(en.hash, index), len(entries))
		if used&bit != 0 {
			return false
		}
		used |= bit
	}
	return true
}

// partOf returns which part of a split node a hash falls into at index.
func partOf(hash, index uint64, size, split int) int {
	x := settings.Reduce(settings.SupplementalHash(hash, index), size)
	if split > 0 {
		return x / (size / split)
	}
	if x < -split {
		return 0
	}
	return 1
}

// partSizes returns the number of parts and the size of the first part.
func partSizes(size, split int) (parts, first int) {
	if split > 0 {
		return split, size / split
	}
	return 2, -split
}

func (e *bucketEncoder[K]) trySplit(entries []keyHash, index uint64, split int) bool {
	size := len(entries)
	parts, first := partSizes(size, split)
	e.counts = slices.Grow(e.counts[:0], parts)[:parts]
	clear(e.counts)
	for _, en := range entries {
		p := partOf(en.hash, index, size, split)
		e.counts[p]++
		limit := first
		if split < 0 && p == 1 {
			limit = size - first
		}
		if e.counts[p] > limit {
			return false
		}
	}
	// no part exceeds its size and the sizes sum to size, so all match
	return true
}

func (e *bucketEncoder[K]) encodeSplit(entries []keyHash, base uint64) {
	size := len(entries)
	split := e.settings.Split(size)
	index := base + 1
	for ; ; index++ {
		e.rehash(entries, index)
		if e.trySplit(entries, index, split) {
			break
		}
	}
	e.w.WriteGolombRice(e.settings.GolombRiceShift(size), index-base-1)

	// stable partition by part, through the scratch buffer
	parts, first := partSizes(size, split)
	scratch := e.scratch[:size]
	next := e.counts[:parts]
	next[0] = 0
	for p := 1; p < parts; p++ {
		next[p] = next[p-1] + first
	}
	for _, en := range entries {
		p := partOf(en.hash, index, size, split)
		scratch[next[p]] = en
		next[p]++
	}
	copy(entries, scratch)

	if split > 0 {
		for p := 0; p < parts; p++ {
			e.encode(entries[p*first:(p+1)*first], index)
		}
		return
	}
	e.encode(entries[:first], index)
	e.encode(entries[first:], index)
}
