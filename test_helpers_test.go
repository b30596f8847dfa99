package recsplit

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"math/rand/v2"
	"testing"

	"github.com/tamirms/recsplit/hashfunc"
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

// fillFromRNG fills buf with pseudo-random bytes from rng.
func fillFromRNG(rng *rand.Rand, buf []byte) {
	for i := 0; i+8 <= len(buf); i += 8 {
		binary.LittleEndian.PutUint64(buf[i:], rng.Uint64())
	}
	if tail := len(buf) % 8; tail > 0 {
		v := rng.Uint64()
		start := len(buf) - tail
		for j := 0; j < tail; j++ {
			buf[start+j] = byte(v >> (j * 8))
		}
	}
}

// generateRandomKeys creates n deterministic pseudo-random keys of the specified size.
func generateRandomKeys(rng *rand.Rand, n, keySize int) [][]byte {
	keys := make([][]byte, n)
	for i := range keys {
		keys[i] = make([]byte, keySize)
		fillFromRNG(rng, keys[i])
	}
	return keys
}

// uniqueUint64Keys returns n distinct pseudo-random integers.
func uniqueUint64Keys(rng *rand.Rand, n int) []uint64 {
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

// buildUint64 generates a description for integer keys and parses it back.
func buildUint64(t testing.TB, keys []uint64, opts ...BuildOption) (*Builder[uint64], *Description, *Evaluator[uint64]) {
	t.Helper()
	b, err := NewBuilder[uint64](hashfunc.Uint64{}, opts...)
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	desc, err := b.Generate(context.Background(), keys)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	eval, err := b.NewEvaluator(desc)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	return b, desc, eval
}

// checkBijection verifies every key maps to a distinct index in [0, n).
func checkBijection[K any](t testing.TB, eval *Evaluator[K], keys []K) {
	t.Helper()
	seen := make([]bool, len(keys))
	for i, k := range keys {
		idx := eval.Evaluate(k)
		if idx >= uint64(len(keys)) {
			t.Fatalf("key %d -> %d, out of range [0, %d)", i, idx, len(keys))
		}
		if seen[idx] {
			t.Fatalf("key %d -> %d, already taken", i, idx)
		}
		seen[idx] = true
	}
}
