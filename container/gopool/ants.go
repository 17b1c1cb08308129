package gopool

import (
	"context"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/tezrry/kthread/pkg/errors"
)

// AntsPool is a Pool on top of an ants.Pool.
type AntsPool struct {
	pool *ants.Pool
}

// NewAntsPool creates a pool of at most size goroutines.
func NewAntsPool(size int, options ...ants.Option) (*AntsPool, error) {
	p, err := ants.NewPool(size, options...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err)
	}
	return &AntsPool{pool: p}, nil
}

func (inst *AntsPool) Schedule(ctx context.Context, f TaskFunc, param ...interface{}) error {
	task := newTask(ctx, f, param...)
	if err := inst.pool.Submit(task.run); err != nil {
		freeTask(task)
		switch err {
		case ants.ErrPoolClosed:
			return fmt.Errorf("%w: %w", errors.ErrHostClosed, err)
		default:
			return fmt.Errorf("%w: %w", errors.ErrWorkerRefused, err)
		}
	}
	return nil
}

func (inst *AntsPool) Running() int {
	return inst.pool.Running()
}

func (inst *AntsPool) Release(timeout time.Duration) error {
	if timeout <= 0 {
		inst.pool.Release()
		return nil
	}
	return inst.pool.ReleaseTimeout(timeout)
}
