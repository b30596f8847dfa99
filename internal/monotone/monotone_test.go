package monotone

import (
	"encoding/binary"
	"errors"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"testing"

	rserrors "github.com/tamirms/recsplit/errors"
	"github.com/tamirms/recsplit/internal/bitbuf"
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

func randomWalk(rng *rand.Rand, n int, start uint64, maxStep uint64) []uint64 {
	out := make([]uint64, n)
	v := start
	for i := range out {
		out[i] = v
		v += rng.Uint64N(maxStep + 1)
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	rng := newTestRNG(t)
	tests := []struct {
		name string
		data []uint64
	}{
		{"Single", []uint64{7}},
		{"SingleZero", []uint64{0}},
		{"Constant", []uint64{5, 5, 5, 5, 5, 5, 5, 5, 5, 5}},
		{"ConstantLong", randomWalk(rng, 1000, 123456, 0)},
		{"StrictlyIncreasing", func() []uint64 {
			out := make([]uint64, 777)
			for i := range out {
				out[i] = uint64(i)*3 + 1
			}
			return out
		}()},
		{"Offsets", randomWalk(rng, 10001, 0, 200)},
		{"BitPositions", randomWalk(rng, 5000, 0, 2000)},
		{"Bursty", func() []uint64 {
			out := randomWalk(rng, 3000, 0, 3)
			for i := 1500; i < len(out); i++ {
				out[i] += 1 << 20
			}
			return out
		}()},
		{"Large", randomWalk(rng, 2000, 1<<40, 1<<30)},
		{"TwoValues", []uint64{0, 1 << 33}},
		{"MaxValue", []uint64{0, 1, math.MaxInt64}},
		{"MaxValueConstant", []uint64{math.MaxInt64, math.MaxInt64}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := bitbuf.NewWriter(0)
			w.WriteNumber(0x2A, 7) // unaligned start
			start := w.Position()
			l, err := Generate(tt.data, w)
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if l.Len() != uint64(len(tt.data)) {
				t.Fatalf("Len = %d, want %d", l.Len(), len(tt.data))
			}
			for i, want := range tt.data {
				if got := l.Get(uint64(i)); got != want {
					t.Fatalf("Get(%d) = %d, want %d", i, got, want)
				}
			}
			for i := 0; i+1 < len(tt.data); i++ {
				a, b := l.GetPair(uint64(i))
				if a != tt.data[i] || b != tt.data[i+1] {
					t.Fatalf("GetPair(%d) = (%d, %d), want (%d, %d)", i, a, b, tt.data[i], tt.data[i+1])
				}
			}

			size, err := Size(tt.data)
			if err != nil {
				t.Fatalf("Size: %v", err)
			}
			if got := w.Position() - start; got != size {
				t.Fatalf("wrote %d bits, Size = %d", got, size)
			}

			loaded, end, err := Load(w.Bits(), start)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if end != w.Position() {
				t.Fatalf("Load end = %d, want %d", end, w.Position())
			}
			if loaded.Get(uint64(len(tt.data)-1)) != tt.data[len(tt.data)-1] {
				t.Fatal("loaded list disagrees on the last value")
			}
		})
	}
}

// TestCompact checks that a smooth sequence costs far less than storing
// each value in full.
func TestCompact(t *testing.T) {
	rng := newTestRNG(t)
	data := randomWalk(rng, 10000, 0, 200)
	size, err := Size(data)
	if err != nil {
		t.Fatal(err)
	}
	if perValue := float64(size) / float64(len(data)); perValue > 14 {
		t.Errorf("%.2f bits per value, want at most 14", perValue)
	}
}

func TestRejectsInvalidInput(t *testing.T) {
	w := bitbuf.NewWriter(0)
	if _, err := Generate([]uint64{1, 2, 3, 2}, w); !errors.Is(err, rserrors.ErrNotMonotone) {
		t.Errorf("Generate(decreasing) error = %v, want ErrNotMonotone", err)
	}
	if _, err := Generate(nil, w); !errors.Is(err, rserrors.ErrEmptySequence) {
		t.Errorf("Generate(empty) error = %v, want ErrEmptySequence", err)
	}
	if _, err := Size([]uint64{9, 8}); !errors.Is(err, rserrors.ErrNotMonotone) {
		t.Errorf("Size(decreasing) error = %v, want ErrNotMonotone", err)
	}
	if _, err := Generate([]uint64{0, 1<<63 + 5}, w); !errors.Is(err, rserrors.ErrValueOutOfRange) {
		t.Errorf("Generate(above MaxInt64) error = %v, want ErrValueOutOfRange", err)
	}
	if _, err := Size([]uint64{math.MaxUint64}); !errors.Is(err, rserrors.ErrValueOutOfRange) {
		t.Errorf("Size(MaxUint64) error = %v, want ErrValueOutOfRange", err)
	}
	if w.Position() != 0 {
		t.Errorf("rejected input wrote %d bits", w.Position())
	}
}

func TestLoadTruncated(t *testing.T) {
	rng := newTestRNG(t)
	w := bitbuf.NewWriter(0)
	if _, err := Generate(randomWalk(rng, 4000, 0, 1000), w); err != nil {
		t.Fatal(err)
	}
	cut, err := bitbuf.FromBytes(w.Bits().Bytes()[:128])
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(cut, 0); !errors.Is(err, rserrors.ErrTruncatedDescription) {
		t.Fatalf("Load(truncated) error = %v, want ErrTruncatedDescription", err)
	}
}
