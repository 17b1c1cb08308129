// Package linmem emulates a shared linear memory: one flat, growable byte
// space addressed by 32-bit offsets, whose words are shared between workers
// and mutated through sync/atomic.
//
// The whole capacity is reserved up front so the backing array never moves;
// a *uint32 handed out by Word stays valid for the life of the Memory, which
// is what allows the futex wait-set to key waiters by address.
package linmem

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/tezrry/kthread/pkg/errors"
)

// PageSize is the growth granularity of a Memory.
const PageSize = 64 << 10

// MaxPages is the largest page count a Memory can reserve. The top page of
// the 32-bit space is left out so the end of every page fits in a Ptr.
const MaxPages = 1<<16 - 1

// Ptr is an offset into a Memory. The zero Ptr is null and never allocated.
type Ptr uint32

// Null is the address no allocation ever returns.
const Null Ptr = 0

// Reserved is the size of the guard area at the bottom of every Memory.
const Reserved = 8

type Memory struct {
	words []uint64
	bytes []byte
	pages atomic.Uint32
	max   uint32
}

// New reserves maxPages of linear memory and commits the first initial pages.
func New(initial, maxPages uint32) (*Memory, error) {
	if maxPages == 0 || maxPages > MaxPages || initial > maxPages {
		return nil, fmt.Errorf("%w: memory pages initial=%d max=%d", errors.ErrInvalidConfig, initial, maxPages)
	}

	inst := &Memory{
		words: make([]uint64, uint64(maxPages)*PageSize/8),
		max:   maxPages,
	}
	inst.bytes = unsafe.Slice((*byte)(unsafe.Pointer(&inst.words[0])), len(inst.words)*8)
	inst.pages.Store(initial)
	return inst, nil
}

// Pages returns the number of committed pages.
func (inst *Memory) Pages() uint32 {
	return inst.pages.Load()
}

// MaxPages returns the page limit given to New.
func (inst *Memory) MaxPages() uint32 {
	return inst.max
}

// Size returns the committed size in bytes.
func (inst *Memory) Size() uint64 {
	return uint64(inst.pages.Load()) * PageSize
}

// Grow commits delta more pages and returns the previous page count.
func (inst *Memory) Grow(delta uint32) (uint32, error) {
	for {
		old := inst.pages.Load()
		if uint64(old)+uint64(delta) > uint64(inst.max) {
			return old, errors.ErrOutOfMemory
		}
		if inst.pages.CompareAndSwap(old, old+delta) {
			return old, nil
		}
	}
}

// Word returns the 32-bit cell at p for use with sync/atomic.
// p must be non-null, 4-byte aligned and inside the committed range.
func (inst *Memory) Word(p Ptr) *uint32 {
	inst.check(p, 4, 4)
	return (*uint32)(unsafe.Pointer(&inst.bytes[p]))
}

// Bytes returns the live view of n bytes at p.
func (inst *Memory) Bytes(p Ptr, n uint32) []byte {
	inst.check(p, n, 1)
	return inst.bytes[p : uint64(p)+uint64(n) : uint64(p)+uint64(n)]
}

// Contains reports whether addr points into this memory.
func (inst *Memory) Contains(addr *uint32) bool {
	base := uintptr(unsafe.Pointer(&inst.bytes[0]))
	a := uintptr(unsafe.Pointer(addr))
	return a >= base && a < base+uintptr(len(inst.bytes))
}

func (inst *Memory) check(p Ptr, n, align uint32) {
	if p == Null || uint32(p)%align != 0 || uint64(p)+uint64(n) > inst.Size() {
		panic(fmt.Errorf("%w: linear memory access %#x+%d out of range or misaligned", errors.ErrMisuse, uint32(p), n))
	}
}
