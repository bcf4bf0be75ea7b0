package bridge

import (
	"context"
	"sync/atomic"
	"time"
)

type outcome[T any] struct {
	value T
	err   error
}

// Slot is a one-shot rendezvous between a native callback and a waiting
// caller. The first Fill wins; later fills are discarded.
type Slot[T any] struct {
	filled atomic.Bool
	ch     chan outcome[T]
}

// NewSlot creates an empty slot.
func NewSlot[T any]() *Slot[T] {
	return &Slot[T]{ch: make(chan outcome[T], 1)}
}

// Fill deposits a result. It reports false when the slot already held one.
// Fill never blocks.
func (s *Slot[T]) Fill(v T, err error) bool {
	if !s.filled.CompareAndSwap(false, true) {
		return false
	}
	s.ch <- outcome[T]{value: v, err: err}
	return true
}

// Wait blocks until the slot is filled, the timeout elapses or ctx is done.
// A non-positive timeout waits without a deadline. Timeouts return ErrTimeout;
// cancellation returns ctx.Err().
func (s *Slot[T]) Wait(ctx context.Context, timeout time.Duration) (T, error) {
	var zero T
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case o := <-s.ch:
		return o.value, o.err
	case <-expired:
		return zero, ErrTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
