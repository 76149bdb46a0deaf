package util

import "sync/atomic"

// AtomicPtr holds a pointer that is swapped whole, e.g. a cached snapshot
// shared between a reader goroutine and its owner.
type AtomicPtr[T any] struct {
	ptr atomic.Pointer[T]
}

func (ap *AtomicPtr[T]) Load() *T {
	return ap.ptr.Load()
}

func (ap *AtomicPtr[T]) Store(val *T) {
	ap.ptr.Store(val)
}

// Swap stores val and returns the previous pointer.
func (ap *AtomicPtr[T]) Swap(val *T) *T {
	return ap.ptr.Swap(val)
}
