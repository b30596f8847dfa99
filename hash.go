package recsplit

// UniversalHash is the caller-supplied family of hash functions. For
// distinct seeds, Hash must behave like independent pseudorandom functions
// of the key. Implementations must be safe for concurrent use.
//
// Keys whose seed-0 hashes are equal are rejected as duplicates, so the
// family must not collide on distinct keys at seed 0.
type UniversalHash[K any] interface {
	Hash(key K, seed uint64) uint64
}

// HashFunc adapts a plain function to UniversalHash.
type HashFunc[K any] func(key K, seed uint64) uint64

// Hash calls f(key, seed).
func (f HashFunc[K]) Hash(key K, seed uint64) uint64 {
	return f(key, seed)
}
