// Package host launches workers and provides the blocking primitive they
// synchronize with. It is the collaborator the thread package runs on: a
// pooled goroutine per worker, a slot table of live workers and a futex
// wait-set keyed by word address.
package host

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/multierr"

	"github.com/tezrry/kthread/container/gopool"
	"github.com/tezrry/kthread/container/lock"
	"github.com/tezrry/kthread/container/slot"
	"github.com/tezrry/kthread/futex"
	"github.com/tezrry/kthread/internal/parking"
	"github.com/tezrry/kthread/linmem"
	"github.com/tezrry/kthread/pkg/errors"
	"github.com/tezrry/kthread/pkg/logging"
)

// Entry is the routine a new worker runs exactly once, with the argument
// block and completion word addresses it was created with.
type Entry func(arg, done linmem.Ptr)

type _Worker struct {
	entry Entry
	arg   linmem.Ptr
	done  linmem.Ptr
}

type Host struct {
	ctx     context.Context
	cancel  context.CancelFunc
	config  Config
	logger  logging.Logger
	flusher logging.Flusher
	pool    gopool.Pool
	parker  parking.Parker

	mu     lock.SpinLock
	slots  *slot.Table[*_Worker]
	closed atomic.Bool
}

var _ futex.Waiter = (*Host)(nil)

// New creates a host ready to launch workers.
func New(config ...ConfigFunc) (*Host, error) {
	inst := &Host{
		config: Config{
			MaxWorkers:     DefaultMaxWorkers,
			ExpiryDuration: ants.DefaultCleanIntervalTime,
			ReleaseTimeout: 3 * time.Second,
			LogLevel:       logging.InfoLevel,
		},
	}

	for _, cf := range config {
		cf(&inst.config)
	}

	if inst.config.MaxWorkers < 1 {
		return nil, fmt.Errorf("%w: MaxWorkers MUST be greater than 0, got %d", errors.ErrInvalidConfig, inst.config.MaxWorkers)
	}

	inst.logger = inst.config.Logger
	if inst.logger == nil {
		if inst.config.LogPath != "" {
			var err error
			inst.logger, inst.flusher, err = logging.CreateLoggerAsLocalFile(inst.config.LogPath, inst.config.LogLevel)
			if err != nil {
				return nil, err
			}
		} else {
			inst.logger = logging.GetDefaultLogger()
		}
	}

	inst.parker = parking.NewLot()
	if inst.config.NativeFutex {
		if native, ok := parking.NewNative(); ok {
			inst.parker = native
		} else {
			inst.logger.Warnf("native futex is not available on this platform, falling back to the parking lot")
		}
	}

	pool, err := gopool.NewAntsPool(inst.config.MaxWorkers,
		ants.WithNonblocking(true),
		ants.WithExpiryDuration(inst.config.ExpiryDuration),
		ants.WithPreAlloc(inst.config.PreAlloc),
		ants.WithLogger(logging.Printer{Logger: inst.logger}),
		ants.WithPanicHandler(func(p interface{}) {
			inst.logger.Errorf("worker escaped its entry with a panic: %v", p)
		}),
	)
	if err != nil {
		return nil, err
	}

	inst.pool = pool
	inst.slots = slot.New[*_Worker](64)
	inst.ctx, inst.cancel = context.WithCancel(context.Background())
	return inst, nil
}

// CreateWorker launches a worker that will call entry(arg, done) once and
// returns the slot index tracking it.
func (inst *Host) CreateWorker(entry Entry, arg, done linmem.Ptr) (int, error) {
	if inst.closed.Load() {
		return -1, errors.ErrHostClosed
	}

	w := &_Worker{entry: entry, arg: arg, done: done}
	inst.mu.Lock()
	idx := inst.slots.Allocate(w)
	inst.mu.Unlock()

	if err := inst.pool.Schedule(inst.ctx, runWorker, w); err != nil {
		inst.ReleaseSlot(idx)
		inst.logger.Warnf("worker refused: %v", err)
		return -1, err
	}

	inst.logger.Debugf("worker launched in slot %d", idx)
	return idx, nil
}

func runWorker(_ context.Context, param ...interface{}) {
	w := param[0].(*_Worker)
	w.entry(w.arg, w.done)
}

// ReleaseSlot reclaims slot idx for reuse. Releasing a slot twice corrupts
// the table.
func (inst *Host) ReleaseSlot(idx int) {
	inst.mu.Lock()
	inst.slots.Release(idx)
	inst.mu.Unlock()
}

// AtomicWait implements futex.Waiter.
func (inst *Host) AtomicWait(addr *uint32, expect uint32, timeout int64) futex.WaitResult {
	return inst.parker.AtomicWait(addr, expect, timeout)
}

// AtomicNotify implements futex.Waiter.
func (inst *Host) AtomicNotify(addr *uint32, count uint32) uint32 {
	return inst.parker.AtomicNotify(addr, count)
}

// Running returns how many workers are executing right now.
func (inst *Host) Running() int {
	return inst.pool.Running()
}

// Slots returns the number of live slots and of slots ever created.
func (inst *Host) Slots() (live, total int) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.slots.Live(), inst.slots.Len()
}

// Logger returns the logger the host reports through.
func (inst *Host) Logger() logging.Logger {
	return inst.logger
}

// Close refuses new workers and releases the pool. Running workers are not
// interrupted.
func (inst *Host) Close() error {
	if !inst.closed.CompareAndSwap(false, true) {
		return nil
	}

	inst.cancel()
	err := inst.pool.Release(inst.config.ReleaseTimeout)
	if inst.flusher != nil {
		err = multierr.Append(err, inst.flusher())
	}
	return err
}
