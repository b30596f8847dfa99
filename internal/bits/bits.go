// Package bits provides low-level hash mixing and range reduction primitives.
package bits

import "math/bits"

// Golden is the 64-bit golden-ratio increment used to derive per-attempt
// mixer inputs.
const Golden = 0x9e3779b97f4a7c15

// Reduce maps a 32-bit value uniformly to [0, n) by fixed-point
// multiplication. Monotone in x for a fixed n; never uses modulo.
func Reduce(x, n uint32) uint32 {
	return uint32((uint64(x) * uint64(n)) >> 32)
}

// FastRange32 maps a 64-bit hash uniformly to [0, n) returning uint32.
// It multiplies and takes the high word, so every input bit contributes.
func FastRange32(hash uint64, n uint32) uint32 {
	if n == 0 {
		return 0
	}
	hi, _ := bits.Mul64(hash, uint64(n))
	return uint32(hi)
}

// Mix64 is a bijective avalanche finalizer (Stafford variant 13).
func Mix64(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// MulHi32 returns (i * factor) >> 32 computed without 64-bit overflow.
func MulHi32(i, factor uint64) uint64 {
	hi, lo := bits.Mul64(i, factor)
	return hi<<32 | lo>>32
}
