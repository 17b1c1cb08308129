package alloc

import (
	"github.com/tezrry/kthread/container/lock"
	"github.com/tezrry/kthread/futex"
	"github.com/tezrry/kthread/linmem"
)

// Locked makes an Allocator safe for concurrent use. Every call holds the
// mutex for the whole underlying operation.
type Locked struct {
	mu    *lock.Mutex
	inner Allocator
}

// NewLocked wraps inner, parking contended callers on w.
func NewLocked(inner Allocator, w futex.Waiter) *Locked {
	return &Locked{
		mu:    lock.NewMutex(w),
		inner: inner,
	}
}

func (inst *Locked) Alloc(n, align uint32) (linmem.Ptr, error) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.inner.Alloc(n, align)
}

func (inst *Locked) Free(p linmem.Ptr, n, align uint32) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.inner.Free(p, n, align)
}

func (inst *Locked) Resize(p linmem.Ptr, old, n, align uint32) bool {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.inner.Resize(p, old, n, align)
}

func (inst *Locked) Memory() *linmem.Memory {
	return inst.inner.Memory()
}

// Stats returns the wrapped allocator's counters if it keeps any.
func (inst *Locked) Stats() (Stats, bool) {
	s, ok := inst.inner.(interface{ Stats() Stats })
	if !ok {
		return Stats{}, false
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()
	return s.Stats(), true
}
