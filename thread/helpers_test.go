package thread

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tezrry/kthread/container/slot"
	"github.com/tezrry/kthread/futex"
	"github.com/tezrry/kthread/host"
	"github.com/tezrry/kthread/linmem"
)

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Debugf(format string, args ...interface{}) {}
func (l *recordingLogger) Infof(format string, args ...interface{})  {}
func (l *recordingLogger) Warnf(format string, args ...interface{})  {}
func (l *recordingLogger) Fatalf(format string, args ...interface{}) {}

func (l *recordingLogger) Errorf(format string, args ...interface{}) {
	l.mu.Lock()
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
	l.mu.Unlock()
}

func (l *recordingLogger) Errors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.errors...)
}

type launch struct {
	entry host.Entry
	arg   linmem.Ptr
	done  linmem.Ptr
}

// manualHost queues workers until the test starts them.
type manualHost struct {
	futex.Waiter
	mu       sync.Mutex
	slots    *slot.Table[launch]
	pending  []launch
	refuse   error
	released []int
}

func newManualHost() *manualHost {
	return &manualHost{
		Waiter: futex.Default(),
		slots:  slot.New[launch](0),
	}
}

func (h *manualHost) CreateWorker(entry host.Entry, arg, done linmem.Ptr) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.refuse != nil {
		return -1, h.refuse
	}
	l := launch{entry: entry, arg: arg, done: done}
	h.pending = append(h.pending, l)
	return h.slots.Allocate(l), nil
}

func (h *manualHost) ReleaseSlot(idx int) {
	h.mu.Lock()
	h.slots.Release(idx)
	h.released = append(h.released, idx)
	h.mu.Unlock()
}

func (h *manualHost) pop() launch {
	h.mu.Lock()
	defer h.mu.Unlock()
	l := h.pending[0]
	h.pending = h.pending[1:]
	return l
}

// start runs the oldest queued worker on its own goroutine.
func (h *manualHost) start() <-chan struct{} {
	l := h.pop()
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		l.entry(l.arg, l.done)
	}()
	return exited
}

func newRuntime(t *testing.T, config ...host.ConfigFunc) (*Runtime, *recordingLogger) {
	h, err := host.New(config...)
	require.NoError(t, err)

	logger := &recordingLogger{}
	rt, err := NewRuntime(h, WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	return rt, logger
}

func inUse(t *testing.T, rt *Runtime) uint64 {
	s, ok := rt.Allocator().Stats()
	require.True(t, ok)
	return s.InUse
}
