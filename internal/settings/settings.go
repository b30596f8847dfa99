// Package settings derives the construction constants shared by the
// generator and the evaluator from the two tunables, leaf size and average
// bucket size. Every derivation is pure; both sides must agree bit for bit.
package settings

import (
	"fmt"
	"math"

	rserrors "github.com/tamirms/recsplit/errors"
	intbits "github.com/tamirms/recsplit/internal/bits"
)

const (
	// Accepted ranges of the two tunables, inclusive.
	MinLeafSize          = 1
	MaxLeafSize          = 25
	MinAverageBucketSize = 4
	MaxAverageBucketSize = 65536

	// A bucket is routed to the fallback when it holds more than
	// MaxBucketFactor times the average number of keys, or when its encoding
	// exceeds MaxBucketFactor*8 bits per average key.
	MaxBucketFactor = 8

	// Attempt indices are grouped into batches of 2^UniversalHashShift that
	// share one call into the external hash.
	UniversalHashShift = 18

	// memoLimit caps the per-size tables; larger sizes are derived on demand.
	memoLimit = 1 << 16
)

// Settings holds the tunables and the memoized split and code-shift tables.
type Settings struct {
	leafSize          int
	averageBucketSize int
	primaryBound      int
	secondaryBound    int

	split []int32
	shift []uint8
}

// New validates the tunables and precomputes the tables.
func New(leafSize, averageBucketSize int) (*Settings, error) {
	if leafSize < MinLeafSize || leafSize > MaxLeafSize {
		return nil, fmt.Errorf("%w: got %d", rserrors.ErrInvalidLeafSize, leafSize)
	}
	if averageBucketSize < MinAverageBucketSize || averageBucketSize > MaxAverageBucketSize {
		return nil, fmt.Errorf("%w: got %d", rserrors.ErrInvalidBucketSize, averageBucketSize)
	}

	s := &Settings{
		leafSize:          leafSize,
		averageBucketSize: averageBucketSize,
	}
	s.primaryBound = leafSize * max(2, int(math.Ceil(0.35*float64(leafSize)+0.5)))
	if leafSize < 7 {
		s.secondaryBound = s.primaryBound * int(math.Ceil(0.21*float64(leafSize)+0.9))
	} else {
		s.secondaryBound = s.primaryBound * 2
	}

	limit := min(s.MaxBucketSize(), memoLimit) + 1
	s.split = make([]int32, limit)
	s.shift = make([]uint8, limit)
	for size := 0; size < limit; size++ {
		split := s.calcSplit(size)
		s.split[size] = int32(split)
		s.shift[size] = uint8(s.calcShift(size, split))
	}
	return s, nil
}

// LeafSize returns the largest node size solved by a direct bijection.
func (s *Settings) LeafSize() int { return s.leafSize }

// AverageBucketSize returns the target number of keys per bucket.
func (s *Settings) AverageBucketSize() int { return s.averageBucketSize }

// MaxBucketSize is the largest key count a primary bucket may hold.
func (s *Settings) MaxBucketSize() int { return s.averageBucketSize * MaxBucketFactor }

// MaxBucketBits is the largest encoding a primary bucket may occupy.
func (s *Settings) MaxBucketBits() uint64 {
	return uint64(s.averageBucketSize) * MaxBucketFactor * 8
}

// BucketCount returns max(1, round(n/averageBucketSize)).
func (s *Settings) BucketCount(n uint64) uint64 {
	return BucketCount(n, s.averageBucketSize)
}

// BucketCount returns max(1, round(n/avg)).
func BucketCount(n uint64, avg int) uint64 {
	a := uint64(avg)
	return max(1, (n+a/2)/a)
}

// Split returns how a node of the given size is divided: a positive value f
// splits it into f equal parts, a negative value -u splits it into a first
// part of u keys and a second part holding the rest. Only meaningful for
// size > LeafSize.
func (s *Settings) Split(size int) int {
	if size < len(s.split) {
		return int(s.split[size])
	}
	return s.calcSplit(size)
}

func (s *Settings) calcSplit(size int) int {
	if size <= s.leafSize {
		return 0
	}
	var unit int
	switch {
	case size > s.secondaryBound:
		half := (size + 1) / 2
		unit = s.secondaryBound * ((half + s.secondaryBound - 1) / s.secondaryBound)
	case size > s.primaryBound:
		unit = s.primaryBound
	default:
		unit = s.leafSize
	}
	fanout := (size + unit - 1) / unit
	if fanout*unit == size {
		return fanout
	}
	return -unit
}

// GolombRiceShift returns the remainder width used for the attempt index
// of a node of the given size.
func (s *Settings) GolombRiceShift(size int) int {
	if size < len(s.shift) {
		return int(s.shift[size])
	}
	return s.calcShift(size, s.calcSplit(size))
}

// calcShift picks the Rice parameter for a geometric attempt count whose
// per-attempt success probability is p: the Golomb modulus
// ceil(-ln(2-p)/ln(1-p)) rounded down to a power of two.
func (s *Settings) calcShift(size, split int) int {
	if size <= 1 {
		return 0
	}
	p := math.Exp(s.logSuccessProbability(size, split))
	if p >= 1 {
		return 0
	}
	m := math.Ceil(-math.Log(2-p) / math.Log1p(-p))
	if m <= 1 {
		return 0
	}
	return int(math.Floor(math.Log2(m)))
}

// logSuccessProbability returns the log probability that one attempt index
// succeeds for a node of the given size.
func (s *Settings) logSuccessProbability(size, split int) float64 {
	n := float64(size)
	logFactorial := func(k int) float64 {
		v, _ := math.Lgamma(float64(k) + 1)
		return v
	}
	if size <= s.leafSize {
		// all size! orderings out of size^size placements
		return logFactorial(size) - n*math.Log(n)
	}

	var parts []int
	if split > 0 {
		unit := size / split
		for range split {
			parts = append(parts, unit)
		}
	} else {
		parts = []int{-split, size + split}
	}
	logp := logFactorial(size)
	for _, k := range parts {
		logp += float64(k)*math.Log(float64(k)/n) - logFactorial(k)
	}
	return logp
}

// UniversalHashIndex returns the external hash seed for an attempt index.
func UniversalHashIndex(index uint64) uint64 {
	return index >> UniversalHashShift
}

// NeedNewUniversalHashIndex reports whether index starts a new batch.
func NeedNewUniversalHashIndex(index uint64) bool {
	return index&(1<<UniversalHashShift-1) == 0
}

// SupplementalHash derives the 32-bit placement value of a key hash for one
// attempt index.
func SupplementalHash(hash, index uint64) uint32 {
	return uint32(intbits.Mix64(hash+index*intbits.Golden) >> 32)
}

// Reduce maps x into [0, n).
func Reduce(x uint32, n int) int {
	return int(intbits.Reduce(x, uint32(n)))
}

// BucketOf maps a key's attempt-0 hash to its bucket.
func BucketOf(hash, bucketCount uint64) uint64 {
	return uint64(intbits.FastRange32(hash, uint32(bucketCount)))
}
