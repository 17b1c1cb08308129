//go:build amd64 || 386

package lock

// On x86 the fast path sets bit 0 with a fetch-or instead of a compare-and-swap.
const hasBitTestAndSet = true
