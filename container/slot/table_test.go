package slot

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableAppend(t *testing.T) {
	tb := New[string](0)
	require.Equal(t, 0, tb.Allocate("a"))
	require.Equal(t, 1, tb.Allocate("b"))
	require.Equal(t, 2, tb.Allocate("c"))
	require.Equal(t, 3, tb.Len())
	require.Equal(t, 3, tb.Live())

	v, ok := tb.Get(1)
	require.True(t, ok)
	require.Equal(t, "b", v)

	_, ok = tb.Get(3)
	require.False(t, ok)
	_, ok = tb.Get(-1)
	require.False(t, ok)
}

func TestTableReuseLIFO(t *testing.T) {
	tb := New[int](4)
	for i := 0; i < 4; i++ {
		require.Equal(t, i, tb.Allocate(i*10))
	}

	tb.Release(1)
	tb.Release(3)
	_, ok := tb.Get(1)
	require.False(t, ok)
	require.Equal(t, 2, tb.Live())

	// free list is a stack: last released first
	require.Equal(t, 3, tb.Allocate(30))
	require.Equal(t, 1, tb.Allocate(10))
	require.Equal(t, 4, tb.Allocate(40))
	require.Equal(t, 5, tb.Len())
}

func TestTableInterleaved(t *testing.T) {
	const n = 64
	tb := New[int](0)
	live := make(map[int]bool)

	for round := 0; round < 8; round++ {
		var got []int
		for i := 0; i < n; i++ {
			idx := tb.Allocate(i)
			require.False(t, live[idx], "index %d issued twice", idx)
			live[idx] = true
			got = append(got, idx)
		}
		// release every other index, in interleaved order
		for i := 0; i < len(got); i += 2 {
			tb.Release(got[i])
			delete(live, got[i])
		}

		before := tb.Len()
		for i := 0; i < n/2; i++ {
			idx := tb.Allocate(-i)
			require.Less(t, idx, before, "free list must be drained before appending")
			require.False(t, live[idx])
			live[idx] = true
		}
		require.Equal(t, before, tb.Len())
		require.Equal(t, len(live), tb.Live())
	}
}
