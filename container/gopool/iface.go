package gopool

import (
	"context"
	"time"
)

type TaskFunc func(ctx context.Context, param ...interface{})

// Pool runs tasks on recycled goroutines.
type Pool interface {
	// Schedule runs task exactly once on a pooled goroutine, or returns an
	// error without running it.
	Schedule(ctx context.Context, task TaskFunc, param ...interface{}) error
	// Running returns the number of goroutines currently running a task.
	Running() int
	// Release stops accepting tasks and waits up to timeout for idle workers to exit.
	Release(timeout time.Duration) error
}
