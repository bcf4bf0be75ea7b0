// Package handle maps opaque numeric handles to Go values so that state can be
// referenced from across the native boundary without handing out Go pointers.
//
// Handles are drawn from one process-wide monotonic counter. A handle is never
// reused, so a stale handle arriving late from native code resolves to nothing
// instead of to somebody else's state.
package handle

import (
	"sync"
	"sync/atomic"
)

// Handle is an opaque, pointer-sized identifier. Zero is never issued.
type Handle uint64

var counter atomic.Uint64

// Next reserves a fresh handle from the process-wide sequence.
func Next() Handle {
	return Handle(counter.Add(1))
}

// Table is a concurrency-safe map from Handle to T.
// Critical sections are limited to the map operation itself.
type Table[T any] struct {
	mu      sync.RWMutex
	entries map[Handle]T
}

// NewTable creates an empty table.
func NewTable[T any]() *Table[T] {
	return &Table[T]{entries: make(map[Handle]T)}
}

// Put stores v under a fresh handle and returns the handle.
func (t *Table[T]) Put(v T) Handle {
	h := Next()
	t.mu.Lock()
	t.entries[h] = v
	t.mu.Unlock()
	return h
}

// Store stores v under a handle obtained from Next, typically one already
// issued to another table for the same piece of state.
func (t *Table[T]) Store(h Handle, v T) {
	t.mu.Lock()
	t.entries[h] = v
	t.mu.Unlock()
}

// Load returns the value stored under h.
func (t *Table[T]) Load(h Handle) (T, bool) {
	t.mu.RLock()
	v, ok := t.entries[h]
	t.mu.RUnlock()
	return v, ok
}

// Delete removes h and returns the value it held. The second result is false
// when h was unknown or already deleted, which makes Delete safe to use as the
// single "reclaim exactly once" decision point.
func (t *Table[T]) Delete(h Handle) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.entries[h]
	if ok {
		delete(t.entries, h)
	}
	return v, ok
}

// Len reports the number of live handles.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
