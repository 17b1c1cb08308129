package host

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tezrry/kthread/linmem"
	"github.com/tezrry/kthread/pkg/errors"
	"github.com/tezrry/kthread/pkg/logging"
)

func newHost(t *testing.T, config ...ConfigFunc) *Host {
	h, err := New(config...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestHostInvalidConfig(t *testing.T) {
	_, err := New(WithMaxWorkers(0))
	require.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestHostCreateWorker(t *testing.T) {
	h := newHost(t)

	type call struct{ arg, done linmem.Ptr }
	calls := make(chan call, 1)
	idx, err := h.CreateWorker(func(arg, done linmem.Ptr) {
		calls <- call{arg, done}
	}, 16, 24)
	require.NoError(t, err)
	require.Equal(t, 0, idx)
	require.Equal(t, call{16, 24}, <-calls)

	live, total := h.Slots()
	require.Equal(t, 1, live)
	require.Equal(t, 1, total)

	h.ReleaseSlot(idx)
	live, total = h.Slots()
	require.Equal(t, 0, live)
	require.Equal(t, 1, total)
}

func TestHostSlotReuse(t *testing.T) {
	h := newHost(t)
	noop := func(arg, done linmem.Ptr) {}

	var idx []int
	for i := 0; i < 4; i++ {
		n, err := h.CreateWorker(noop, 0, 0)
		require.NoError(t, err)
		idx = append(idx, n)
	}
	require.Equal(t, []int{0, 1, 2, 3}, idx)

	h.ReleaseSlot(2)
	h.ReleaseSlot(0)

	n, err := h.CreateWorker(noop, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	n, err = h.CreateWorker(noop, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	n, err = h.CreateWorker(noop, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 4, n)
}

func TestHostConcurrentSlots(t *testing.T) {
	h := newHost(t)

	var mu sync.Mutex
	live := make(map[int]bool)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				n, err := h.CreateWorker(func(arg, done linmem.Ptr) {}, 0, 0)
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				if live[n] {
					t.Errorf("slot %d issued to two live workers", n)
				}
				live[n] = true
				mu.Unlock()

				mu.Lock()
				delete(live, n)
				mu.Unlock()
				h.ReleaseSlot(n)
			}
		}()
	}
	wg.Wait()

	n, _ := h.Slots()
	require.Zero(t, n)
}

func TestHostRefusesBeyondMaxWorkers(t *testing.T) {
	h := newHost(t, WithMaxWorkers(1))

	block := make(chan struct{})
	_, err := h.CreateWorker(func(arg, done linmem.Ptr) { <-block }, 0, 0)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.Running() == 1 }, 5*time.Second, time.Millisecond)

	_, err = h.CreateWorker(func(arg, done linmem.Ptr) {}, 0, 0)
	require.ErrorIs(t, err, errors.ErrWorkerRefused)

	live, total := h.Slots()
	require.Equal(t, 1, live)
	require.Equal(t, 2, total)
	close(block)
}

func TestHostClosed(t *testing.T) {
	h, err := New()
	require.NoError(t, err)
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	_, err = h.CreateWorker(func(arg, done linmem.Ptr) {}, 0, 0)
	require.ErrorIs(t, err, errors.ErrHostClosed)
}

func TestHostFutex(t *testing.T) {
	for _, native := range []bool{false, true} {
		h := newHost(t, WithNativeFutex(native))

		word := new(uint32)
		require.Equal(t, uint32(0), h.AtomicNotify(word, 1))

		done := make(chan struct{})
		go func() {
			for atomic.LoadUint32(word) == 0 {
				h.AtomicWait(word, 0, -1)
			}
			close(done)
		}()
		time.Sleep(5 * time.Millisecond)
		atomic.StoreUint32(word, 1)
		h.AtomicNotify(word, 1)

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("waiter not woken, native=%v", native)
		}
	}
}

func TestHostLogPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host.log")
	h, err := New(WithLogPath(path, logging.DebugLevel))
	require.NoError(t, err)

	n, err := h.CreateWorker(func(arg, done linmem.Ptr) {}, 0, 0)
	require.NoError(t, err)
	h.ReleaseSlot(n)
	require.NoError(t, h.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "worker launched in slot 0")
}
