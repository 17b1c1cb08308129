// Package thread emulates kernel threads on top of a host that can launch
// independent workers over a shared linear memory. A Runtime is the
// process-wide context every worker's trampoline reaches; Spawn, Join and
// Detach drive the lifetime of each worker through a reference-counted
// completion cell.
package thread

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/tezrry/kthread/alloc"
	"github.com/tezrry/kthread/container/lock"
	"github.com/tezrry/kthread/container/slot"
	"github.com/tezrry/kthread/futex"
	"github.com/tezrry/kthread/host"
	"github.com/tezrry/kthread/linmem"
	"github.com/tezrry/kthread/pkg/errors"
	"github.com/tezrry/kthread/pkg/logging"
)

// Host is what the runtime needs from the worker launcher.
type Host interface {
	futex.Waiter
	CreateWorker(entry host.Entry, arg, done linmem.Ptr) (int, error)
	ReleaseSlot(idx int)
}

// Static cells in the page below the heap.
const (
	idCounterPtr linmem.Ptr = linmem.Reserved
	heapBasePage            = 1
)

const (
	DefaultMemoryPages    = 16
	DefaultMaxMemoryPages = 1024
)

type Runtime struct {
	host   Host
	config Config
	logger logging.Logger
	mem    *linmem.Memory
	alloc  *alloc.Locked

	// Go values cannot be stored in linear memory where the collector
	// cannot see them, so arguments stay boxed here and the argument
	// block only carries the box key.
	boxMu *lock.Mutex
	boxes *slot.Table[any]

	mainID uint32
}

// NewRuntime creates the runtime for host h and takes identifier 0 for the
// calling context.
func NewRuntime(h Host, config ...ConfigFunc) (*Runtime, error) {
	inst := &Runtime{
		host: h,
		config: Config{
			MemoryPages:    DefaultMemoryPages,
			MaxMemoryPages: DefaultMaxMemoryPages,
		},
	}

	for _, cf := range config {
		cf(&inst.config)
	}

	if inst.config.MemoryPages < heapBasePage {
		return nil, fmt.Errorf("%w: MemoryPages MUST be at least %d, got %d", errors.ErrInvalidConfig, heapBasePage, inst.config.MemoryPages)
	}

	mem, err := linmem.New(inst.config.MemoryPages, inst.config.MaxMemoryPages)
	if err != nil {
		return nil, err
	}

	inst.logger = inst.config.Logger
	if inst.logger == nil {
		if l, ok := h.(interface{ Logger() logging.Logger }); ok {
			inst.logger = l.Logger()
		} else {
			inst.logger = logging.GetDefaultLogger()
		}
	}

	inst.mem = mem
	inst.alloc = alloc.NewLocked(alloc.NewPages(mem, heapBasePage), h)
	inst.boxMu = lock.NewMutex(h)
	inst.boxes = slot.New[any](64)
	inst.mainID = inst.nextID()
	return inst, nil
}

func (inst *Runtime) nextID() uint32 {
	return atomic.AddUint32(inst.mem.Word(idCounterPtr), 1) - 1
}

// IDCounter returns the address of the shared identifier counter.
func (inst *Runtime) IDCounter() linmem.Ptr {
	return idCounterPtr
}

// MainID returns the identifier of the context that created the runtime.
func (inst *Runtime) MainID() uint32 {
	return inst.mainID
}

// Memory returns the shared linear memory.
func (inst *Runtime) Memory() *linmem.Memory {
	return inst.mem
}

// Allocator returns the runtime's thread-safe allocator.
func (inst *Runtime) Allocator() *alloc.Locked {
	return inst.alloc
}

// Boxes returns the number of arguments waiting to be picked up by a worker.
func (inst *Runtime) Boxes() int {
	inst.boxMu.Lock()
	defer inst.boxMu.Unlock()
	return inst.boxes.Live()
}

// Close closes the host if it can be closed. Running workers are not stopped.
func (inst *Runtime) Close() error {
	if c, ok := inst.host.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (inst *Runtime) box(v any) uint32 {
	inst.boxMu.Lock()
	defer inst.boxMu.Unlock()
	return uint32(inst.boxes.Allocate(v))
}

func (inst *Runtime) unbox(key uint32) any {
	inst.boxMu.Lock()
	defer inst.boxMu.Unlock()
	v, _ := inst.boxes.Get(int(key))
	inst.boxes.Release(int(key))
	return v
}

type ctxKey struct{}

// CurrentID returns the identifier of the worker ctx was handed to, or 0 for
// any context not derived from a worker's. The identifier travels with the
// context only: worker code that passes context.Background() gets 0 as well,
// which is indistinguishable from the main context. Use IDFromContext to tell
// the two apart.
func CurrentID(ctx context.Context) uint32 {
	id, _ := IDFromContext(ctx)
	return id
}

// IDFromContext returns the worker identifier carried by ctx, ok is false
// when ctx was not derived from a worker's context.
func IDFromContext(ctx context.Context) (id uint32, ok bool) {
	id, ok = ctx.Value(ctxKey{}).(uint32)
	return
}
