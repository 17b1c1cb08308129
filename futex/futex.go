// Package futex blocks on and wakes execution contexts keyed by the address
// of a 32-bit word. The blocking itself is the host's job; this package only
// translates arguments and clamps timeouts into the host's range.
package futex

import (
	"math"
	"sync"
	"time"

	"github.com/tezrry/kthread/internal/parking"
	"github.com/tezrry/kthread/pkg/errors"
)

// WaitResult is the outcome reported by the host.
type WaitResult = parking.Result

const (
	WaitOK       = parking.OK
	WaitNotEqual = parking.NotEqual
	WaitTimedOut = parking.TimedOut
)

// Infinite is the host timeout value that never expires.
const Infinite int64 = -1

// MaxTimeout is the largest timeout, in nanoseconds, the host can represent.
const MaxTimeout uint64 = math.MaxInt64

// Waiter is the host's blocking primitive.
// AtomicWait takes a timeout in nanoseconds, negative meaning forever.
type Waiter interface {
	AtomicWait(addr *uint32, expect uint32, timeout int64) WaitResult
	AtomicNotify(addr *uint32, count uint32) uint32
}

var (
	defaultOnce   sync.Once
	defaultWaiter Waiter
)

// Default returns the process-wide emulated waiter used by zero-value locks.
func Default() Waiter {
	defaultOnce.Do(func() {
		defaultWaiter = parking.NewLot()
	})
	return defaultWaiter
}

// Wait blocks while *addr == expect, until a Wake, a change of the value or a
// spurious wakeup. It returns at once if the value already differs.
func Wait(w Waiter, addr *uint32, expect uint32) {
	w.AtomicWait(addr, expect, Infinite)
}

// TimedWait is Wait bounded by timeout. It returns errors.ErrTimeout if the
// deadline passes first. A timeout <= 0 only checks the value without blocking.
func TimedWait(w Waiter, addr *uint32, expect uint32, timeout time.Duration) error {
	if timeout < 0 {
		timeout = 0
	}
	return TimedWaitNanos(w, addr, expect, uint64(timeout))
}

// TimedWaitNanos is TimedWait with a raw nanosecond count. Counts beyond
// MaxTimeout are clamped to an infinite wait.
func TimedWaitNanos(w Waiter, addr *uint32, expect uint32, ns uint64) error {
	timeout := Infinite
	if ns <= MaxTimeout {
		timeout = int64(ns)
	}

	switch w.AtomicWait(addr, expect, timeout) {
	case WaitTimedOut:
		return errors.ErrTimeout
	default:
		return nil
	}
}

// Wake unblocks at most n contexts waiting on addr.
func Wake(w Waiter, addr *uint32, n uint32) {
	if n == 0 {
		return
	}
	w.AtomicNotify(addr, n)
}

// WakeAll unblocks every context waiting on addr.
func WakeAll(w Waiter, addr *uint32) {
	Wake(w, addr, math.MaxUint32)
}
