// Package link exposes the few runtime internals the lock paths spin with.
package link

import _ "unsafe"

//go:linkname ProcYield runtime.procyield
func ProcYield(cycles uint32)

//go:linkname FastRand runtime.fastrand
func FastRand() uint32

// Backoff spins for a randomized number of PAUSE cycles, never fewer than floor.
func Backoff(floor, spread uint32) {
	r := FastRand() % spread
	if r < floor {
		r = floor
	}
	ProcYield(r)
}
