package thread_test

import (
	"context"
	"fmt"

	"github.com/tezrry/kthread/host"
	"github.com/tezrry/kthread/thread"
)

func ExampleSpawn() {
	h, err := host.New(host.WithMaxWorkers(8))
	if err != nil {
		panic(err)
	}
	rt, err := thread.NewRuntime(h)
	if err != nil {
		panic(err)
	}
	defer rt.Close()

	type args struct{ x int }
	result := make(chan int, 1)
	th, err := thread.Spawn(rt, thread.SpawnConfig{}, func(ctx context.Context, a args) error {
		result <- a.x + 1
		return nil
	}, args{x: 41})
	if err != nil {
		panic(err)
	}
	th.Join()

	fmt.Println(<-result)
	// Output: 42
}
