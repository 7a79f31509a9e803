// Package queue provides the FIFO containers behind the dispatcher's ready queues.
package queue

import "errors"

// ErrEmpty is returned by Dequeue on an empty queue.
var ErrEmpty = errors.New("queue is empty")

// FIFO is a first-in first-out queue.
// Values are kept in insertion order; nothing reorders them except Remove.
type FIFO[T comparable] struct {
	first *item[T]
	last  *item[T]
	size  int
}

// item wraps a value and points at the next item, so the queue can traverse.
type item[T comparable] struct {
	v    T
	next *item[T]
}

// NewFIFO creates an empty FIFO.
func NewFIFO[T comparable]() *FIFO[T] {
	return &FIFO[T]{}
}

// Enqueue appends v to the back of the queue.
func (q *FIFO[T]) Enqueue(v T) {
	it := &item[T]{v: v}
	if q.first == nil {
		q.first = it
	} else {
		q.last.next = it
	}
	q.last = it
	q.size++
}

// Dequeue removes and returns the front value.
func (q *FIFO[T]) Dequeue() (T, error) {
	var zero T
	if q.first == nil {
		return zero, ErrEmpty
	}
	v := q.first.v
	if q.first == q.last {
		q.first = nil
		q.last = nil
	} else {
		q.first = q.first.next
	}
	q.size--
	return v, nil
}

// Peek returns the front value without removing it.
// ok is false when the queue is empty.
func (q *FIFO[T]) Peek() (v T, ok bool) {
	if q.first == nil {
		return v, false
	}
	return q.first.v, true
}

// Len returns the number of queued values.
func (q *FIFO[T]) Len() int {
	return q.size
}

// Contains reports whether v is queued.
func (q *FIFO[T]) Contains(v T) bool {
	for it := q.first; it != nil; it = it.next {
		if it.v == v {
			return true
		}
	}
	return false
}

// Remove unlinks the first occurrence of v.
// It returns false if v is not in the queue.
func (q *FIFO[T]) Remove(v T) bool {
	var prev *item[T]
	for it := q.first; it != nil; prev, it = it, it.next {
		if it.v != v {
			continue
		}
		if prev == nil {
			q.first = it.next
		} else {
			prev.next = it.next
		}
		if q.last == it {
			q.last = prev
		}
		q.size--
		return true
	}
	return false
}

// Values returns the queued values from front to back.
func (q *FIFO[T]) Values() []T {
	out := make([]T, 0, q.size)
	for it := q.first; it != nil; it = it.next {
		out = append(out, it.v)
	}
	return out
}
