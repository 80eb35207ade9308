// unsafering implements a fixed size history buffer that has no concurrency
// support. It should only be used from a single goroutine, such as a bubbletea
// model's Update and View. Wrap it in a mutex if that is ever not the case.
package unsafering

import "iter"

type Buffer[T any] struct {
	data  []T
	count int
	write int
}

// New panics if size is not positive.
func New[T any](size int) *Buffer[T] {
	if size <= 0 {
		panic("unsafering: size must be positive")
	}
	return &Buffer[T]{data: make([]T, size)}
}

// Push appends v, overwriting the oldest element once the buffer is full.
func (r *Buffer[T]) Push(v T) {
	r.data[r.write] = v
	r.write = (r.write + 1) % len(r.data)
	r.count = min(r.count+1, len(r.data))
}

func (r *Buffer[T]) Len() int { return r.count }

func (r *Buffer[T]) Cap() int { return len(r.data) }

// At returns the i'th element, oldest first.
func (r *Buffer[T]) At(i int) (val T, ok bool) {
	if i < 0 || i >= r.count {
		return val, false
	}
	return r.data[r.index(i, r.count)], true
}

// Newest returns the most recently pushed element.
func (r *Buffer[T]) Newest() (val T, ok bool) {
	return r.At(r.count - 1)
}

// All iterates the buffer oldest to newest.
//
//	for v := range buf.All() {
//	    fmt.Println(v)
//	}
func (r *Buffer[T]) All() iter.Seq[T] {
	return r.Recent(r.count)
}

// Recent iterates over the n most recent elements, oldest to newest.
func (r *Buffer[T]) Recent(n int) iter.Seq[T] {
	return func(yield func(T) bool) {
		n := min(max(n, 0), r.count)
		for i := range n {
			if !yield(r.data[r.index(i, n)]) {
				return
			}
		}
	}
}

func (r *Buffer[T]) Clear() {
	clear(r.data)
	r.count = 0
	r.write = 0
}

// index maps position i within a window of the newest n elements to a slot.
func (r *Buffer[T]) index(i, n int) int {
	size := len(r.data)
	return (r.write - n + i + size) % size
}
