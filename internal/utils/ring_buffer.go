package utils

import "sync"

// RingBuffer is a fixed-size circular buffer of elements of type T.
// Pushing into a full buffer overwrites the oldest element.
// Elements are kept in arrival order, oldest first.
//
// Example:
//
//	rb := NewRingBuffer[time.Duration](3)
//	rb.Push(1 * time.Millisecond)
//	rb.Push(2 * time.Millisecond)
//	rb.Push(3 * time.Millisecond)
//	rb.Push(4 * time.Millisecond) // 1ms is overwritten
//	fmt.Println(rb.ToSlice())     // [2ms 3ms 4ms]
type RingBuffer[T any] struct {
	data  []T // backing array
	size  int // capacity
	count int // number of stored elements
	head  int // index of the oldest element
	tail  int // index of the next write
	mu    sync.RWMutex
}

// NewRingBuffer creates a buffer holding at most size elements.
// A non-positive size panics.
func NewRingBuffer[T any](size int) *RingBuffer[T] {
	if size <= 0 {
		panic("ring buffer size must be positive")
	}
	return &RingBuffer[T]{
		data: make([]T, size),
		size: size,
	}
}

// Push appends item, overwriting the oldest element when the buffer is full.
func (rb *RingBuffer[T]) Push(item T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.data[rb.tail] = item
	rb.tail = (rb.tail + 1) % rb.size

	if rb.count < rb.size {
		rb.count++
	} else {
		rb.head = (rb.head + 1) % rb.size
	}
}

// Len returns the number of stored elements, always within [0, Cap()].
func (rb *RingBuffer[T]) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// Cap returns the capacity of the buffer.
func (rb *RingBuffer[T]) Cap() int {
	return rb.size
}

// At returns the i-th element, 0 being the oldest.
// Panics when i is outside [0, Len()).
func (rb *RingBuffer[T]) At(i int) T {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if i < 0 || i >= rb.count {
		panic("index out of range")
	}
	return rb.data[(rb.head+i)%rb.size]
}

// ToSlice returns a copy of the stored elements, oldest first.
func (rb *RingBuffer[T]) ToSlice() []T {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	result := make([]T, rb.count)
	for i := 0; i < rb.count; i++ {
		result[i] = rb.data[(rb.head+i)%rb.size]
	}
	return result
}

// Reset drops every element while keeping the capacity.
func (rb *RingBuffer[T]) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	var zero T
	for i := range rb.data {
		rb.data[i] = zero
	}
	rb.count, rb.head, rb.tail = 0, 0, 0
}
