package lock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSpinLock(t *testing.T) {
	var lk SpinLock
	lk.Lock()
	require.False(t, lk.TryLock())
	lk.Unlock()
	require.True(t, lk.TryLock())
	lk.Unlock()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				lk.Lock()
				counter++
				lk.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 8000, counter)
}

func BenchmarkSpinLock(b *testing.B) {
	var lk SpinLock
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			lk.Lock()
			lk.Unlock()
		}
	})
}
