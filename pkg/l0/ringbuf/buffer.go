// Package ringbuf provides a fixed capacity FIFO shared by exactly one
// producer and one consumer without locking.
package ringbuf

import "sync/atomic"

// Buffer is a circular FIFO of capacity N holding at most N-1 elements.
// Put must only be called by the producer, Get/Peek/Flush only by the
// consumer.
type Buffer[T any] struct {
	data []T
	head atomic.Uint32 // next slot to write, owned by producer
	tail atomic.Uint32 // next slot to read, owned by consumer
}

// New creates a Buffer with n slots, n must be at least 2.
func New[T any](n int) *Buffer[T] {
	if n < 2 {
		n = 2
	}
	return &Buffer[T]{data: make([]T, n)}
}

// Cap returns the number of slots.
func (b *Buffer[T]) Cap() int {
	return len(b.data)
}

// Available returns the number of elements ready to read.
func (b *Buffer[T]) Available() int {
	n := uint32(len(b.data))
	return int((n - b.tail.Load() + b.head.Load()) % n)
}

// Space returns the number of elements which can be put.
func (b *Buffer[T]) Space() int {
	return len(b.data) - 1 - b.Available()
}

// Empty indicates no element is available.
func (b *Buffer[T]) Empty() bool {
	return b.head.Load() == b.tail.Load()
}

// Full indicates Put will fail.
func (b *Buffer[T]) Full() bool {
	return b.Available() == len(b.data)-1
}

// Put appends v, returns false if the buffer is full.
func (b *Buffer[T]) Put(v T) bool {
	if b.Full() {
		return false
	}
	head := b.head.Load()
	b.data[head] = v
	b.head.Store((head + 1) % uint32(len(b.data)))
	return true
}

// Get removes the oldest element.
func (b *Buffer[T]) Get() (v T, ok bool) {
	if b.Empty() {
		return
	}
	tail := b.tail.Load()
	v = b.data[tail]
	b.tail.Store((tail + 1) % uint32(len(b.data)))
	return v, true
}

// Peek reads the element at offset from the oldest without removing it.
func (b *Buffer[T]) Peek(offset int) (v T, ok bool) {
	if offset < 0 || offset >= b.Available() {
		return
	}
	idx := (int(b.tail.Load()) + offset) % len(b.data)
	return b.data[idx], true
}

// Flush drops everything. Both sides must be quiescent.
func (b *Buffer[T]) Flush() {
	b.head.Store(0)
	b.tail.Store(0)
}
