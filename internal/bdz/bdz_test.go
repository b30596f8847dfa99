package bdz

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	rserrors "github.com/tamirms/recsplit/errors"
	"github.com/tamirms/recsplit/internal/bitbuf"
	intbits "github.com/tamirms/recsplit/internal/bits"
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

func mixHash(key, seed uint64) uint64 {
	return intbits.Mix64(key ^ intbits.Mix64(seed+intbits.Golden))
}

func uniqueKeys(rng *rand.Rand, n int) []uint64 {
	seen := make(map[uint64]struct{}, n)
	keys := make([]uint64, 0, n)
	for len(keys) < n {
		k := rng.Uint64()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

func checkPermutation(t *testing.T, d *BDZ, keys []uint64, hash HashFunc[uint64]) {
	t.Helper()
	seen := make([]bool, len(keys))
	for _, k := range keys {
		idx := d.Evaluate(hash(k, d.HashIndex()))
		if idx >= uint64(len(keys)) {
			t.Fatalf("key %#x -> %d, out of range [0, %d)", k, idx, len(keys))
		}
		if seen[idx] {
			t.Fatalf("key %#x -> %d, already taken", k, idx)
		}
		seen[idx] = true
	}
}

func TestPermutation(t *testing.T) {
	rng := newTestRNG(t)
	sizes := []int{1, 2, 3, 5, 10, 64, 100, 1000, 20000}
	if testing.Short() {
		sizes = sizes[:7]
	}
	for _, n := range sizes {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			keys := uniqueKeys(rng, n)
			w := bitbuf.NewWriter(0)
			w.WriteNumber(1, 3) // unaligned start
			d, err := Generate(keys, mixHash, w, nil)
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if d.Size() != uint64(n) {
				t.Fatalf("Size = %d, want %d", d.Size(), n)
			}
			if d.End() != w.Position() {
				t.Fatalf("End = %d, writer at %d", d.End(), w.Position())
			}
			checkPermutation(t, d, keys, mixHash)

			// a structure parsed back from bytes answers identically
			loaded, _, err := Load(mustFromBytes(t, w.Bits().Bytes()), 3)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			for _, k := range keys {
				h := mixHash(k, d.HashIndex())
				if loaded.Evaluate(h) != d.Evaluate(h) {
					t.Fatalf("loaded structure disagrees for key %#x", k)
				}
			}
		})
	}
}

func TestSpaceUsage(t *testing.T) {
	rng := newTestRNG(t)
	keys := uniqueKeys(rng, 10000)
	w := bitbuf.NewWriter(0)
	if _, err := Generate(keys, mixHash, w, nil); err != nil {
		t.Fatal(err)
	}
	// 1.23 bits of bitmap plus 2 bits of g per key, plus rank overhead
	if perKey := float64(w.Position()) / float64(len(keys)); perKey > 4.5 {
		t.Errorf("%.2f bits per key, want at most 4.5", perKey)
	}
}

// TestNonMemberInRange evaluates random hashes and expects in-range answers.
func TestNonMemberInRange(t *testing.T) {
	rng := newTestRNG(t)
	keys := uniqueKeys(rng, 500)
	d, err := Generate(keys, mixHash, bitbuf.NewWriter(0), nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10000; i++ {
		if idx := d.Evaluate(rng.Uint64()); idx >= d.Size() {
			t.Fatalf("non-member hash -> %d, size %d", idx, d.Size())
		}
	}
}

// TestRetriesNextHashIndex forces a degenerate hypergraph at seed 0 and
// expects construction to move on to seed 1 and log the retry.
func TestRetriesNextHashIndex(t *testing.T) {
	rng := newTestRNG(t)
	keys := uniqueKeys(rng, 300)
	collapsing := func(key, seed uint64) uint64 {
		if seed == 0 {
			return 42
		}
		return mixHash(key, seed)
	}

	core, logs := observer.New(zapcore.DebugLevel)
	d, err := Generate(keys, collapsing, bitbuf.NewWriter(0), zap.New(core))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if d.HashIndex() == 0 {
		t.Fatal("HashIndex = 0, want a retry past the collapsing seed")
	}
	checkPermutation(t, d, keys, collapsing)
	if logs.FilterMessage("bdz peeling failed, retrying").Len() == 0 {
		t.Error("no retry was logged")
	}
}

func TestLoadTruncated(t *testing.T) {
	rng := newTestRNG(t)
	w := bitbuf.NewWriter(0)
	if _, err := Generate(uniqueKeys(rng, 2000), mixHash, w, nil); err != nil {
		t.Fatal(err)
	}
	data := w.Bits().Bytes()
	cut := mustFromBytes(t, data[:len(data)/2/8*8])
	if _, _, err := Load(cut, 0); !errors.Is(err, rserrors.ErrTruncatedDescription) {
		t.Fatalf("Load(truncated) error = %v, want ErrTruncatedDescription", err)
	}
}

func mustFromBytes(t *testing.T, data []byte) bitbuf.Bits {
	t.Helper()
	b, err := bitbuf.FromBytes(data)
	if err != nil {
		t.Fatal(err)
	}
	return b
}
