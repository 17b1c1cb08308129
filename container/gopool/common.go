package gopool

import (
	"context"
	"sync"
)

var taskPool = sync.Pool{New: func() any { return new(_Task) }}

func newTask(ctx context.Context, f TaskFunc, param ...any) *_Task {
	inst := taskPool.Get().(*_Task)
	inst.ctx = ctx
	inst.f = f
	inst.param = param
	return inst
}

func freeTask(task *_Task) {
	task.ctx = nil
	task.f = nil
	task.param = nil
	taskPool.Put(task)
}

type _Task struct {
	ctx   context.Context
	f     TaskFunc
	param []any
}

// run hands cancellation to the task itself, a scheduled task always runs.
func (inst *_Task) run() {
	ctx, f, param := inst.ctx, inst.f, inst.param
	freeTask(inst)
	f(ctx, param...)
}
