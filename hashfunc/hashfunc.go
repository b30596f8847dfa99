// Package hashfunc provides ready-made seeded hash families for recsplit.
//
// Every type here satisfies recsplit.UniversalHash for its key type, is
// stateless (or pools its state) and is safe for concurrent use.
package hashfunc

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
	"github.com/zeebo/xxh3"

	intbits "github.com/tamirms/recsplit/internal/bits"
)

// XXH3 hashes byte-slice keys with seeded XXH3-64.
type XXH3 struct{}

// Hash returns the XXH3-64 hash of key under seed.
func (XXH3) Hash(key []byte, seed uint64) uint64 {
	return xxh3.HashSeed(key, seed)
}

// XXH3String hashes string keys with seeded XXH3-64.
type XXH3String struct{}

// Hash returns the XXH3-64 hash of key under seed.
func (XXH3String) Hash(key string, seed uint64) uint64 {
	return xxh3.HashStringSeed(key, seed)
}

// XXHash hashes byte-slice keys with seeded XXH64.
type XXHash struct{}

var digestPool = sync.Pool{
	New: func() any { return xxhash.NewWithSeed(0) },
}

// Hash returns the XXH64 hash of key under seed.
func (XXHash) Hash(key []byte, seed uint64) uint64 {
	d := digestPool.Get().(*xxhash.Digest)
	d.ResetWithSeed(seed)
	_, _ = d.Write(key)
	h := d.Sum64()
	digestPool.Put(d)
	return h
}

// Murmur3 hashes byte-slice keys with MurmurHash3 (x64, 128-bit, low word).
// The 64-bit seed is folded to murmur3's 32-bit seed, so seeds below 2^32
// give distinct functions.
type Murmur3 struct{}

// Hash returns the murmur3 hash of key under seed.
func (Murmur3) Hash(key []byte, seed uint64) uint64 {
	return murmur3.Sum64WithSeed(key, uint32(seed)^uint32(seed>>32))
}

// Uint64 hashes integer keys with a keyed 64-bit finalizer.
type Uint64 struct{}

// Hash mixes key with a per-seed constant.
func (Uint64) Hash(key, seed uint64) uint64 {
	return intbits.Mix64(key ^ intbits.Mix64(seed+intbits.Golden))
}

// ByName returns the byte-slice family registered under name: "xxh3",
// "xxhash" or "murmur3".
func ByName(name string) (func(key []byte, seed uint64) uint64, bool) {
	switch name {
	case "xxh3":
		return XXH3{}.Hash, true
	case "xxhash":
		return XXHash{}.Hash, true
	case "murmur3":
		return Murmur3{}.Hash, true
	}
	return nil, false
}
