package math

import "math/bits"

// IsPowerOfTwo reports whether given integer is a power of two.
func IsPowerOfTwo(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}

// CeilToPowerOfTwo returns the least power of two integer value greater than
// or equal to n.
func CeilToPowerOfTwo(n uint64) uint64 {
	if n <= 2 {
		return n
	}
	n--
	n = formatBits(n)
	n++
	return n
}

// Log2 returns the exponent of a power of two n.
func Log2(n uint64) uint {
	return uint(bits.TrailingZeros64(n))
}

// AlignUp rounds n up to a multiple of align, which MUST be a power of two.
func AlignUp(n, align uint64) uint64 {
	return (n + align - 1) &^ (align - 1)
}

// DivCeil returns n/d rounded up.
func DivCeil(n, d uint64) uint64 {
	return (n + d - 1) / d
}

func formatBits(n uint64) uint64 {
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n
}
