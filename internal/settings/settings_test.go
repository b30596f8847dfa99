package settings

import (
	"encoding/binary"
	"errors"
	"hash/fnv"
	"math/rand/v2"
	"testing"

	rserrors "github.com/tamirms/recsplit/errors"
)

// Named seeds for deterministic reproduction.
const (
	testSeed1 = 0x1234567890ABCDEF
	testSeed2 = 0xFEDCBA9876543210
)

func newTestRNG(t testing.TB) *rand.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	s1 := binary.LittleEndian.Uint64(sum[:8])
	s2 := binary.LittleEndian.Uint64(sum[8:])
	return rand.New(rand.NewPCG(testSeed1^s1, testSeed2^s2))
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name      string
		leaf, avg int
		wantErr   error
	}{
		{"MinLeaf", MinLeafSize, 100, nil},
		{"MaxLeaf", MaxLeafSize, 100, nil},
		{"LeafZero", MinLeafSize - 1, 100, rserrors.ErrInvalidLeafSize},
		{"LeafTooLarge", MaxLeafSize + 1, 100, rserrors.ErrInvalidLeafSize},
		{"MinBucket", 8, MinAverageBucketSize, nil},
		{"MaxBucket", 8, MaxAverageBucketSize, nil},
		{"BucketTooSmall", 8, MinAverageBucketSize - 1, rserrors.ErrInvalidBucketSize},
		{"BucketTooLarge", 8, MaxAverageBucketSize + 1, rserrors.ErrInvalidBucketSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.leaf, tt.avg)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("New(%d, %d) error = %v, want %v", tt.leaf, tt.avg, err, tt.wantErr)
			}
		})
	}
}

func TestBucketCount(t *testing.T) {
	tests := []struct {
		n    uint64
		avg  int
		want uint64
	}{
		{0, 100, 1},
		{26, 256, 1},
		{49, 100, 1},
		{150, 100, 2},
		{149, 100, 1},
		{100000, 100, 1000},
		{100049, 100, 1000},
		{100050, 100, 1001},
	}
	for _, tt := range tests {
		if got := BucketCount(tt.n, tt.avg); got != tt.want {
			t.Errorf("BucketCount(%d, %d) = %d, want %d", tt.n, tt.avg, got, tt.want)
		}
	}
}

// checkPartition walks the split tree of a node and verifies it partitions
// the node exactly and always shrinks toward the leaves.
func checkPartition(t *testing.T, s *Settings, size int) {
	t.Helper()
	if size <= s.LeafSize() {
		return
	}
	split := s.Split(size)
	switch {
	case split > 1:
		if size%split != 0 {
			t.Fatalf("leaf %d: size %d split into %d unequal parts", s.LeafSize(), size, split)
		}
		checkPartition(t, s, size/split)
	case split < 0:
		first := -split
		if first <= 0 || first >= size {
			t.Fatalf("leaf %d: size %d uneven split has first part %d", s.LeafSize(), size, first)
		}
		checkPartition(t, s, first)
		checkPartition(t, s, size-first)
	default:
		t.Fatalf("leaf %d: size %d has split %d", s.LeafSize(), size, split)
	}
}

func TestSplitPartitions(t *testing.T) {
	for leaf := MinLeafSize; leaf <= MaxLeafSize; leaf++ {
		s, err := New(leaf, 100)
		if err != nil {
			t.Fatal(err)
		}
		for size := 0; size <= 2000; size++ {
			checkPartition(t, s, size)
		}
		// beyond the memo table
		for _, size := range []int{memoLimit + 1, 3*memoLimit + 7} {
			checkPartition(t, s, size)
		}
	}
}

func TestSplitKnownValues(t *testing.T) {
	s, err := New(8, 100)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		size, want int
	}{
		{8, 0},
		{16, 2},
		{32, 4},
		{36, -32},
		{64, 2},
		{100, -64},
		{128, 2},
	}
	for _, tt := range tests {
		if got := s.Split(tt.size); got != tt.want {
			t.Errorf("Split(%d) = %d, want %d", tt.size, got, tt.want)
		}
	}
}

func TestGolombRiceShift(t *testing.T) {
	s, err := New(8, 100)
	if err != nil {
		t.Fatal(err)
	}
	for _, size := range []int{0, 1} {
		if got := s.GolombRiceShift(size); got != 0 {
			t.Errorf("GolombRiceShift(%d) = %d, want 0", size, got)
		}
	}
	// a leaf of 8 needs about 8^8/8! = 416 attempts on average
	if got := s.GolombRiceShift(8); got < 7 || got > 9 {
		t.Errorf("GolombRiceShift(8) = %d, want about 8", got)
	}
	// leaf shifts grow with leaf size
	for size := 3; size <= 8; size++ {
		if s.GolombRiceShift(size) < s.GolombRiceShift(size-1) {
			t.Errorf("GolombRiceShift(%d) < GolombRiceShift(%d)", size, size-1)
		}
	}
	// memoized and on-demand paths agree
	for size := 0; size < 1000; size++ {
		if got, want := s.GolombRiceShift(size), s.calcShift(size, s.calcSplit(size)); got != want {
			t.Fatalf("GolombRiceShift(%d) = %d, recomputed %d", size, got, want)
		}
	}
}

func TestUniversalHashBatching(t *testing.T) {
	const batch = 1 << UniversalHashShift
	tests := []struct {
		index   uint64
		want    uint64
		newSeed bool
	}{
		{0, 0, true},
		{1, 0, false},
		{batch - 1, 0, false},
		{batch, 1, true},
		{batch + 1, 1, false},
		{5 * batch, 5, true},
	}
	for _, tt := range tests {
		if got := UniversalHashIndex(tt.index); got != tt.want {
			t.Errorf("UniversalHashIndex(%d) = %d, want %d", tt.index, got, tt.want)
		}
		if got := NeedNewUniversalHashIndex(tt.index); got != tt.newSeed {
			t.Errorf("NeedNewUniversalHashIndex(%d) = %v, want %v", tt.index, got, tt.newSeed)
		}
	}
}

// TestSupplementalHashSpreads checks that consecutive attempt indices give
// a key fresh, roughly uniform placements.
func TestSupplementalHashSpreads(t *testing.T) {
	rng := newTestRNG(t)
	const n, attempts = 16, 64000
	hash := rng.Uint64()
	var counts [n]int
	for i := uint64(0); i < attempts; i++ {
		counts[Reduce(SupplementalHash(hash, i), n)]++
	}
	for slot, c := range counts {
		if c < attempts/n*8/10 || c > attempts/n*12/10 {
			t.Errorf("slot %d got %d placements, want about %d", slot, c, attempts/n)
		}
	}
	if SupplementalHash(hash, 7) != SupplementalHash(hash, 7) {
		t.Fatal("SupplementalHash is not deterministic")
	}
}

func TestBucketOfRange(t *testing.T) {
	rng := newTestRNG(t)
	for i := 0; i < 10000; i++ {
		count := rng.Uint64N(1<<20) + 1
		if b := BucketOf(rng.Uint64(), count); b >= count {
			t.Fatalf("BucketOf = %d, bucket count %d", b, count)
		}
	}
}
