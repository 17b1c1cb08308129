// Package parking is the host's blocking primitive: it parks callers on the
// address of a 32-bit word and unparks them on notify, with the semantics of
// a Linux futex or wasm memory.atomic.wait32/notify.
package parking

import (
	"sync"
	"sync/atomic"
	"time"
	"unsafe"
)

// Result is the outcome of a wait.
type Result uint8

const (
	// OK means the caller was unparked by a notify, or spuriously.
	OK Result = iota
	// NotEqual means the word did not hold the expected value.
	NotEqual
	// TimedOut means the timeout elapsed before a notify.
	TimedOut
)

func (r Result) String() string {
	switch r {
	case OK:
		return "ok"
	case NotEqual:
		return "not-equal"
	case TimedOut:
		return "timed-out"
	}
	return "unknown"
}

// Parker parks and unparks execution contexts keyed by word address.
// A negative timeout waits forever.
type Parker interface {
	AtomicWait(addr *uint32, expect uint32, timeout int64) Result
	AtomicNotify(addr *uint32, count uint32) uint32
}

const (
	bucketBits = 8
	numBuckets = 1 << bucketBits
)

type waiter struct {
	addr   uintptr
	prev   *waiter
	next   *waiter
	linked bool
	ch     chan struct{}
}

var waiterPool = sync.Pool{New: func() any { return &waiter{ch: make(chan struct{}, 1)} }}

type bucket struct {
	mu   sync.Mutex
	head *waiter
	tail *waiter
	_    [64 - unsafe.Sizeof(sync.Mutex{}) - 2*unsafe.Sizeof((*waiter)(nil))]byte
}

// Lot is an emulated futex: waiters are queued FIFO in hashed buckets and
// sleep on a private channel. The zero value is ready to use.
type Lot struct {
	buckets [numBuckets]bucket
}

// NewLot returns an empty parking lot.
func NewLot() *Lot {
	return new(Lot)
}

func (inst *Lot) bucket(addr uintptr) *bucket {
	h := uint64(addr>>2) * 0x9E3779B97F4A7C15
	return &inst.buckets[h>>(64-bucketBits)]
}

// AtomicWait implements Parker.
func (inst *Lot) AtomicWait(addr *uint32, expect uint32, timeout int64) Result {
	key := uintptr(unsafe.Pointer(addr))
	b := inst.bucket(key)

	// The check and the enqueue happen under the bucket lock, the same lock
	// AtomicNotify takes, so a store+notify cannot slip in between them.
	b.mu.Lock()
	if atomic.LoadUint32(addr) != expect {
		b.mu.Unlock()
		return NotEqual
	}
	if timeout == 0 {
		b.mu.Unlock()
		return TimedOut
	}

	w := waiterPool.Get().(*waiter)
	w.addr = key
	b.push(w)
	b.mu.Unlock()

	if timeout < 0 {
		<-w.ch
		waiterPool.Put(w)
		return OK
	}

	timer := time.NewTimer(time.Duration(timeout))
	select {
	case <-w.ch:
		timer.Stop()
		waiterPool.Put(w)
		return OK

	case <-timer.C:
		b.mu.Lock()
		if w.linked {
			b.remove(w)
			b.mu.Unlock()
			waiterPool.Put(w)
			return TimedOut
		}
		b.mu.Unlock()

		// lost the race against a notify that already unlinked us
		<-w.ch
		waiterPool.Put(w)
		return OK
	}
}

// AtomicNotify implements Parker.
func (inst *Lot) AtomicNotify(addr *uint32, count uint32) uint32 {
	key := uintptr(unsafe.Pointer(addr))
	b := inst.bucket(key)

	var woken uint32
	b.mu.Lock()
	for w := b.head; w != nil && woken < count; {
		next := w.next
		if w.addr == key {
			b.remove(w)
			w.ch <- struct{}{}
			woken++
		}
		w = next
	}
	b.mu.Unlock()
	return woken
}

// Waiters returns how many contexts are parked on addr.
func (inst *Lot) Waiters(addr *uint32) int {
	key := uintptr(unsafe.Pointer(addr))
	b := inst.bucket(key)

	n := 0
	b.mu.Lock()
	for w := b.head; w != nil; w = w.next {
		if w.addr == key {
			n++
		}
	}
	b.mu.Unlock()
	return n
}

func (b *bucket) push(w *waiter) {
	w.linked = true
	w.next = nil
	w.prev = b.tail
	if b.tail != nil {
		b.tail.next = w
	} else {
		b.head = w
	}
	b.tail = w
}

func (b *bucket) remove(w *waiter) {
	if w.prev != nil {
		w.prev.next = w.next
	} else {
		b.head = w.next
	}
	if w.next != nil {
		w.next.prev = w.prev
	} else {
		b.tail = w.prev
	}
	w.prev, w.next = nil, nil
	w.linked = false
}
