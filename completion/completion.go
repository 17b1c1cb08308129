// Package completion implements the reference-counted completion flag shared
// by a spawner and the worker it launched.
//
// The cell lives in linear memory as two words, the state followed by the
// strong count. Both are only ever touched through sync/atomic.
package completion

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tezrry/kthread/alloc"
	"github.com/tezrry/kthread/futex"
	"github.com/tezrry/kthread/linmem"
	"github.com/tezrry/kthread/pkg/errors"
)

const (
	pending uint32 = 0
	done    uint32 = 1
)

// CellSize is the linear-memory footprint of one handle.
const CellSize = 8

const (
	cellAlign  = 4
	refsOffset = 4
)

// Handle is one strong reference to a completion cell. Copying a Handle does
// not add a reference; use Retain.
type Handle struct {
	ptr   linmem.Ptr
	alloc alloc.Allocator
	futex futex.Waiter
}

// New allocates a pending cell holding one reference.
func New(a alloc.Allocator, w futex.Waiter) (Handle, error) {
	p, err := a.Alloc(CellSize, cellAlign)
	if err != nil {
		return Handle{}, err
	}

	h := Handle{ptr: p, alloc: a, futex: w}
	atomic.StoreUint32(h.word(), pending)
	atomic.StoreUint32(h.refs(), 1)
	return h, nil
}

// FromPtr rebuilds a handle from the state word address, taking over the
// reference its sender transferred along with it.
func FromPtr(a alloc.Allocator, w futex.Waiter, p linmem.Ptr) Handle {
	return Handle{ptr: p, alloc: a, futex: w}
}

// Ptr returns the address of the state word.
func (h Handle) Ptr() linmem.Ptr {
	return h.ptr
}

func (h Handle) word() *uint32 {
	return h.alloc.Memory().Word(h.ptr)
}

func (h Handle) refs() *uint32 {
	return h.alloc.Memory().Word(h.ptr + refsOffset)
}

// Refs returns the current strong count.
func (h Handle) Refs() uint32 {
	return atomic.LoadUint32(h.refs())
}

// Retain adds a reference and returns it.
func (h Handle) Retain() Handle {
	if atomic.AddUint32(h.refs(), 1) == 1 {
		panic(fmt.Errorf("%w: retain of released completion handle %#x", errors.ErrMisuse, uint32(h.ptr)))
	}
	return h
}

// Release drops this reference, freeing the cell with the last one.
func (h Handle) Release() {
	switch atomic.AddUint32(h.refs(), ^uint32(0)) {
	case 0:
		h.alloc.Free(h.ptr, CellSize, cellAlign)
	case ^uint32(0):
		panic(fmt.Errorf("%w: release of released completion handle %#x", errors.ErrMisuse, uint32(h.ptr)))
	}
}

// Signal marks the cell done and wakes a waiter.
func (h Handle) Signal() {
	w := h.word()
	atomic.StoreUint32(w, done)
	futex.Wake(h.futex, w, 1)
}

// Done reports whether Signal has been called.
func (h Handle) Done() bool {
	return atomic.LoadUint32(h.word()) == done
}

// WaitUntilDone blocks until Signal has been called.
func (h Handle) WaitUntilDone() {
	w := h.word()
	for atomic.LoadUint32(w) == pending {
		futex.Wait(h.futex, w, pending)
	}
}

// TimedWaitUntilDone is WaitUntilDone bounded by timeout, errors.ErrTimeout
// is returned if the cell is still pending at the deadline.
func (h Handle) TimedWaitUntilDone(timeout time.Duration) error {
	w := h.word()
	deadline := time.Now().Add(timeout)
	for atomic.LoadUint32(w) == pending {
		if err := futex.TimedWait(h.futex, w, pending, time.Until(deadline)); err != nil {
			if atomic.LoadUint32(w) == done {
				return nil
			}
			return err
		}
	}
	return nil
}
