package gopool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/require"

	"github.com/tezrry/kthread/pkg/errors"
)

var _ Pool = (*AntsPool)(nil)

func TestAntsPoolSchedule(t *testing.T) {
	p, err := NewAntsPool(4)
	require.NoError(t, err)
	defer p.Release(time.Second)

	var wg sync.WaitGroup
	sum := make(chan int, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		err := p.Schedule(context.Background(), func(ctx context.Context, param ...interface{}) {
			defer wg.Done()
			sum <- param[0].(int) * param[1].(int)
		}, i, 2)
		require.NoError(t, err)
	}
	wg.Wait()
	close(sum)

	total := 0
	for v := range sum {
		total += v
	}
	require.Equal(t, 56, total)
}

func TestAntsPoolRefuses(t *testing.T) {
	p, err := NewAntsPool(1, ants.WithNonblocking(true))
	require.NoError(t, err)

	block := make(chan struct{})
	require.NoError(t, p.Schedule(context.Background(), func(context.Context, ...interface{}) { <-block }))
	require.Eventually(t, func() bool { return p.Running() == 1 }, 5*time.Second, time.Millisecond)

	err = p.Schedule(context.Background(), func(context.Context, ...interface{}) {})
	require.ErrorIs(t, err, errors.ErrWorkerRefused)
	require.ErrorIs(t, err, ants.ErrPoolOverload)

	close(block)
	require.NoError(t, p.Release(time.Second))

	err = p.Schedule(context.Background(), func(context.Context, ...interface{}) {})
	require.ErrorIs(t, err, errors.ErrHostClosed)
}

func TestAntsPoolCancelledStillRuns(t *testing.T) {
	p, err := NewAntsPool(1)
	require.NoError(t, err)
	defer p.Release(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := make(chan error, 1)
	require.NoError(t, p.Schedule(ctx, func(ctx context.Context, _ ...interface{}) { ran <- ctx.Err() }))
	require.ErrorIs(t, <-ran, context.Canceled)
}
