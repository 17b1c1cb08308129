package thread

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/valyala/bytebufferpool"

	"github.com/tezrry/kthread/completion"
	"github.com/tezrry/kthread/linmem"
	"github.com/tezrry/kthread/pkg/errors"
)

// argBlockSize is the linear-memory footprint of an argument block.
const argBlockSize = 8

// Thread is the spawner's bookkeeping for one worker. It must be consumed by
// exactly one Join or Detach.
type Thread struct {
	rt       *Runtime
	slot     int
	done     completion.Handle
	consumed atomic.Bool
}

// Spawn launches a worker running entry(ctx, arg). The argument is handed
// over through a freshly allocated block, skipped when T carries no data.
//
// Allocation failures and a host refusing the worker are returned as a
// *SpawnError, in which case nothing is left running and nothing leaks.
// A failure of entry itself, returned or panicked, is logged by the worker
// and does not reach Join.
func Spawn[T any](rt *Runtime, cfg SpawnConfig, entry func(ctx context.Context, arg T) error, arg T) (*Thread, error) {
	a := cfg.Allocator
	if a == nil {
		a = rt.alloc
	}
	parent := cfg.Context
	if parent == nil {
		parent = context.Background()
	}

	argPtr := linmem.Null
	if unsafe.Sizeof(arg) != 0 {
		p, err := a.Alloc(argBlockSize, argBlockSize)
		if err != nil {
			return nil, &SpawnError{Cause: err}
		}
		atomic.StoreUint32(a.Memory().Word(p), rt.box(arg))
		argPtr = p
	}

	freeArg := func() {
		if argPtr != linmem.Null {
			rt.unbox(atomic.LoadUint32(a.Memory().Word(argPtr)))
			a.Free(argPtr, argBlockSize, argBlockSize)
		}
	}

	done, err := completion.New(a, rt.host)
	if err != nil {
		freeArg()
		return nil, &SpawnError{Cause: err}
	}

	// The worker's reference exists before the worker does.
	done.Retain()

	trampoline := func(argBlock, doneWord linmem.Ptr) {
		id := rt.nextID()
		cell := completion.FromPtr(a, rt.host, doneWord)

		var v T
		if argBlock != linmem.Null {
			v, _ = rt.unbox(atomic.LoadUint32(a.Memory().Word(argBlock))).(T)
		}

		defer func() {
			cell.Signal()
			cell.Release()
			if argBlock != linmem.Null {
				a.Free(argBlock, argBlockSize, argBlockSize)
			}
		}()

		ctx := context.WithValue(parent, ctxKey{}, id)
		rt.invoke(id, func() error { return entry(ctx, v) })
	}

	slot, err := rt.host.CreateWorker(trampoline, argPtr, done.Ptr())
	if err != nil {
		// the worker's reference, then ours
		done.Release()
		done.Release()
		freeArg()
		return nil, &SpawnError{Cause: err}
	}

	return &Thread{rt: rt, slot: slot, done: done}, nil
}

// invoke runs the entry and reports its failure. It never panics.
func (inst *Runtime) invoke(id uint32, f func() error) {
	defer func() {
		if r := recover(); r != nil {
			inst.reportPanic(id, r, debug.Stack())
		}
	}()

	if err := f(); err != nil {
		inst.logger.Errorf("thread %d exited with error: %v", id, err)
	}
}

func (inst *Runtime) reportPanic(id uint32, r interface{}, stack []byte) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	_, _ = fmt.Fprintf(buf, "thread %d panicked: %v\n", id, r)
	_, _ = buf.Write(stack)
	inst.logger.Errorf("%s", buf.String())
}

// Slot returns the host slot index tracking the worker.
func (t *Thread) Slot() int {
	return t.slot
}

func (t *Thread) consume(op string) {
	if !t.consumed.CompareAndSwap(false, true) {
		panic(fmt.Errorf("%w: %s of a joined or detached thread", errors.ErrMisuse, op))
	}
}

func (t *Thread) reclaim() {
	t.rt.host.ReleaseSlot(t.slot)
	t.done.Release()
}

// Join waits for the worker's entry to finish, then reclaims its slot.
func (t *Thread) Join() {
	t.consume("join")
	t.done.WaitUntilDone()
	t.reclaim()
}

// JoinTimeout is Join bounded by timeout. On errors.ErrTimeout the thread is
// left unconsumed and may be joined or detached later.
func (t *Thread) JoinTimeout(timeout time.Duration) error {
	t.consume("join")
	if err := t.done.TimedWaitUntilDone(timeout); err != nil {
		t.consumed.Store(false)
		return err
	}
	t.reclaim()
	return nil
}

// Detach gives up on the worker without waiting for it. The worker keeps
// running and frees the completion cell itself when it finishes.
func (t *Thread) Detach() {
	t.consume("detach")
	t.reclaim()
}
