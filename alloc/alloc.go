// Package alloc hands out blocks of linear memory. Pages is a size-class
// allocator that is not safe for concurrent use; Locked serializes any
// Allocator behind a futex mutex.
package alloc

import (
	"fmt"

	"github.com/tezrry/kthread/linmem"
	"github.com/tezrry/kthread/pkg/errors"
	util_math "github.com/tezrry/kthread/util/math"
)

// Allocator allocates blocks of a linear memory. Free and Resize must be
// given the length and alignment the block was allocated (or last resized) with.
type Allocator interface {
	Alloc(n, align uint32) (linmem.Ptr, error)
	Free(p linmem.Ptr, n, align uint32)
	Resize(p linmem.Ptr, old, n, align uint32) bool
	Memory() *linmem.Memory
}

const (
	minClassShift = 3
	maxClassShift = 15
	numClasses    = maxClassShift - minClassShift + 1

	// MinBlock is the smallest block handed out.
	MinBlock = 1 << minClassShift
	// MaxClassBlock is the largest size served from a size class, bigger
	// requests take whole pages.
	MaxClassBlock = 1 << maxClassShift
)

// Stats is a snapshot of allocator activity.
type Stats struct {
	InUse  uint64
	Allocs uint64
	Frees  uint64
	Pages  uint32
}

type class struct {
	free linmem.Ptr
	next linmem.Ptr
	end  linmem.Ptr
}

// Pages carves power-of-two size classes out of whole pages, with the free
// list of each class threaded through the free blocks themselves. Requests
// above MaxClassBlock are rounded up to a power-of-two page count.
type Pages struct {
	mem      *linmem.Memory
	classes  [numClasses]class
	bigFree  map[uint32][]linmem.Ptr
	nextPage uint32
	stats    Stats
}

// NewPages returns an allocator for mem that starts at page base; the pages
// below it are left to the caller.
func NewPages(mem *linmem.Memory, base uint32) *Pages {
	if base == 0 {
		base = 1
	}
	return &Pages{
		mem:      mem,
		bigFree:  make(map[uint32][]linmem.Ptr),
		nextPage: base,
	}
}

func (inst *Pages) Memory() *linmem.Memory {
	return inst.mem
}

// Stats returns the activity counters.
func (inst *Pages) Stats() Stats {
	return inst.stats
}

func sizeOf(n, align uint32) uint64 {
	if align == 0 {
		align = 1
	}
	size := util_math.AlignUp(uint64(n), uint64(align))
	if size < uint64(align) {
		size = uint64(align)
	}
	if size < MinBlock {
		size = MinBlock
	}
	return size
}

func pagesOf(size uint64) uint32 {
	return uint32(util_math.CeilToPowerOfTwo(util_math.DivCeil(size, linmem.PageSize)))
}

func classOf(size uint64) (idx int, blockSize uint64) {
	blockSize = util_math.CeilToPowerOfTwo(size)
	return int(util_math.Log2(blockSize)) - minClassShift, blockSize
}

// Alloc returns a block of at least n bytes aligned to align, which must be
// a power of two no larger than a page.
func (inst *Pages) Alloc(n, align uint32) (linmem.Ptr, error) {
	if align == 0 {
		align = 1
	}
	if !util_math.IsPowerOfTwo(uint64(align)) || align > linmem.PageSize {
		panic(fmt.Errorf("%w: alignment %d", errors.ErrMisuse, align))
	}

	size := sizeOf(n, align)
	if size > MaxClassBlock {
		pages := pagesOf(size)
		p, err := inst.allocPages(pages)
		if err != nil {
			return linmem.Null, err
		}
		inst.stats.Allocs++
		inst.stats.InUse += uint64(pages) * linmem.PageSize
		return p, nil
	}

	idx, blockSize := classOf(size)
	c := &inst.classes[idx]
	if c.free != linmem.Null {
		p := c.free
		c.free = linmem.Ptr(*inst.mem.Word(p))
		inst.stats.Allocs++
		inst.stats.InUse += blockSize
		return p, nil
	}

	if c.next == c.end {
		page, err := inst.allocPages(1)
		if err != nil {
			return linmem.Null, err
		}
		c.next, c.end = page, page+linmem.PageSize
	}

	p := c.next
	c.next += linmem.Ptr(blockSize)
	inst.stats.Allocs++
	inst.stats.InUse += blockSize
	return p, nil
}

// Free returns the block at p to its class or page list.
func (inst *Pages) Free(p linmem.Ptr, n, align uint32) {
	if p == linmem.Null {
		return
	}

	size := sizeOf(n, align)
	inst.stats.Frees++
	if size > MaxClassBlock {
		pages := pagesOf(size)
		inst.bigFree[pages] = append(inst.bigFree[pages], p)
		inst.stats.InUse -= uint64(pages) * linmem.PageSize
		return
	}

	idx, blockSize := classOf(size)
	c := &inst.classes[idx]
	*inst.mem.Word(p) = uint32(c.free)
	c.free = p
	inst.stats.InUse -= blockSize
}

// Resize reports whether the block at p can hold n bytes in place. It can
// when the new length falls in the same class or page run as the old one.
func (inst *Pages) Resize(p linmem.Ptr, old, n, align uint32) bool {
	if p == linmem.Null {
		return false
	}

	oldSize, newSize := sizeOf(old, align), sizeOf(n, align)
	switch {
	case oldSize > MaxClassBlock && newSize > MaxClassBlock:
		return pagesOf(oldSize) == pagesOf(newSize)
	case oldSize <= MaxClassBlock && newSize <= MaxClassBlock:
		a, _ := classOf(oldSize)
		b, _ := classOf(newSize)
		return a == b
	default:
		return false
	}
}

func (inst *Pages) allocPages(n uint32) (linmem.Ptr, error) {
	if list := inst.bigFree[n]; len(list) > 0 {
		p := list[len(list)-1]
		inst.bigFree[n] = list[:len(list)-1]
		return p, nil
	}

	if committed := inst.mem.Pages(); inst.nextPage+n > committed {
		if _, err := inst.mem.Grow(inst.nextPage + n - committed); err != nil {
			return linmem.Null, fmt.Errorf("%w: %d pages: %w", errors.ErrAllocation, n, err)
		}
	}

	p := linmem.Ptr(inst.nextPage * linmem.PageSize)
	inst.nextPage += n
	inst.stats.Pages += n
	return p, nil
}
