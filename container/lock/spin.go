package lock

import (
	"runtime"
	"sync/atomic"

	"github.com/tezrry/kthread/link"
)

// spinLimit bounds the PAUSE loop before a SpinLock yields its P.
const spinLimit = 64

// SpinLock is a test-and-set lock for critical sections of a few dozen
// instructions, such as the host's slot table bookkeeping.
type SpinLock int32

func (lk *SpinLock) Lock() {
	if atomic.CompareAndSwapInt32((*int32)(lk), 0, 1) {
		return
	}

	for iter := 0; !atomic.CompareAndSwapInt32((*int32)(lk), 0, 1); iter++ {
		if iter < spinLimit {
			link.Backoff(30, 100)
		} else {
			runtime.Gosched()
		}
	}
}

func (lk *SpinLock) Unlock() {
	atomic.StoreInt32((*int32)(lk), 0)
}

func (lk *SpinLock) TryLock() bool {
	return atomic.CompareAndSwapInt32((*int32)(lk), 0, 1)
}
