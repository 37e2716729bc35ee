package ringbuf

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuffer(t *testing.T) {
	testCases := []struct {
		name string
		size int
		put  []int
		full bool
	}{
		{name: "empty", size: 4},
		{name: "partial", size: 4, put: []int{1, 2}},
		{name: "full", size: 4, put: []int{1, 2, 3}, full: true},
		{name: "single slot", size: 2, put: []int{7}, full: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := New[int](tc.size)
			for _, v := range tc.put {
				require.True(t, b.Put(v))
			}
			require.Equal(t, len(tc.put), b.Available())
			require.Equal(t, tc.full, b.Full())
			if tc.full {
				require.False(t, b.Put(100))
				require.Equal(t, len(tc.put), b.Available())
			}
			for n, v := range tc.put {
				p, ok := b.Peek(len(tc.put) - n - 1)
				require.True(t, ok)
				require.Equal(t, tc.put[len(tc.put)-1], p)
				got, ok := b.Get()
				require.True(t, ok)
				require.Equal(t, v, got)
			}
			_, ok := b.Get()
			require.False(t, ok)
			require.True(t, b.Empty())
		})
	}
}

func TestBufferWrapAround(t *testing.T) {
	b := New[byte](4)
	for i := 0; i < 20; i++ {
		require.True(t, b.Put(byte(i)))
		require.True(t, b.Put(byte(i+100)))
		require.Equal(t, 2, b.Available())
		require.Equal(t, 1, b.Space())
		v, ok := b.Get()
		require.True(t, ok)
		require.Equal(t, byte(i), v)
		v, ok = b.Get()
		require.True(t, ok)
		require.Equal(t, byte(i+100), v)
	}
}

func TestBufferPeekOutOfRange(t *testing.T) {
	b := New[byte](8)
	_, ok := b.Peek(0)
	require.False(t, ok)
	b.Put(1)
	b.Put(2)
	_, ok = b.Peek(2)
	require.False(t, ok)
	_, ok = b.Peek(-1)
	require.False(t, ok)
	v, ok := b.Peek(1)
	require.True(t, ok)
	require.Equal(t, byte(2), v)
	require.Equal(t, 2, b.Available())
}

func TestBufferFlush(t *testing.T) {
	b := New[byte](8)
	for i := 0; i < 5; i++ {
		b.Put(byte(i))
	}
	b.Get()
	b.Flush()
	require.Equal(t, 0, b.Available())
	require.True(t, b.Empty())
	require.True(t, b.Put(9))
	v, ok := b.Get()
	require.True(t, ok)
	require.Equal(t, byte(9), v)
}

func TestBufferConcurrentFIFO(t *testing.T) {
	const count = 10000
	b := New[int](16)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < count; {
			if b.Put(i) {
				i++
			}
		}
	}()
	for expected := 0; expected < count; {
		if v, ok := b.Get(); ok {
			require.Equal(t, expected, v)
			expected++
		}
	}
	wg.Wait()
	require.True(t, b.Empty())
}
