package lock

import (
	"fmt"
	"sync/atomic"

	"github.com/tezrry/kthread/futex"
	"github.com/tezrry/kthread/link"
	"github.com/tezrry/kthread/pkg/errors"
)

// Mutex states. contended has the locked bit set, so a single bit test on
// bit 0 tells whether the mutex is held.
const (
	unlocked  uint32 = 0b00
	locked    uint32 = 0b01
	contended uint32 = 0b11
)

// mutexSpin is how many backoff rounds Lock spends on a merely locked mutex
// before marking it contended and parking.
const mutexSpin = 4

// Mutex is a three-state futex lock. The zero value is an unlocked mutex
// parked through futex.Default; use NewMutex to park through a specific host.
//
// Recursive locking and unlocking from a context that does not hold the lock
// are caller errors.
type Mutex struct {
	state uint32
	futex futex.Waiter
}

// NewMutex returns an unlocked mutex whose waiters park on w.
func NewMutex(w futex.Waiter) *Mutex {
	return &Mutex{futex: w}
}

func (m *Mutex) waiter() futex.Waiter {
	if m.futex != nil {
		return m.futex
	}
	return futex.Default()
}

// TryLock acquires the mutex if it is unlocked and reports whether it did.
// It never blocks.
func (m *Mutex) TryLock() bool {
	return m.lockFast()
}

// Lock acquires the mutex, parking the caller while another context holds it.
func (m *Mutex) Lock() {
	if m.lockFast() {
		return
	}
	m.lockSlow()
}

func (m *Mutex) lockFast() bool {
	if hasBitTestAndSet {
		return bitTestAndSet(&m.state)
	}
	return compareAndSwap(&m.state)
}

func (m *Mutex) lockSlow() {
	for i := 0; i < mutexSpin; i++ {
		s := atomic.LoadUint32(&m.state)
		if s == contended {
			break
		}
		if s == unlocked && m.lockFast() {
			return
		}
		link.Backoff(30, 100)
	}

	w := m.waiter()

	// Already contended: park first instead of writing the line again.
	if atomic.LoadUint32(&m.state) == contended {
		futex.Wait(w, &m.state, contended)
	}

	// Whoever has parked once takes the lock as contended, so its own Unlock
	// keeps waking the remaining waiters.
	for atomic.SwapUint32(&m.state, contended) != unlocked {
		futex.Wait(w, &m.state, contended)
	}
}

// Unlock releases the mutex and wakes one parked waiter if there are any.
func (m *Mutex) Unlock() {
	switch atomic.SwapUint32(&m.state, unlocked) {
	case unlocked:
		panic(fmt.Errorf("%w: unlock of unlocked mutex", errors.ErrMisuse))
	case contended:
		futex.Wake(m.waiter(), &m.state, 1)
	}
}

func bitTestAndSet(state *uint32) bool {
	return atomic.OrUint32(state, locked)&locked == 0
}

func compareAndSwap(state *uint32) bool {
	return atomic.CompareAndSwapUint32(state, unlocked, locked)
}
