package bridge

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/fgrzl/lndkit/internal/handle"
)

// Handle identifies a live subscription or bidirectional stream.
type Handle = handle.Handle

// callIDKey is an unexported type for context keys in this package.
type callIDKey struct{}

// WithCallID returns a new context carrying id. Bridge calls made with it log
// and tap their frames under that id instead of a fresh one.
func WithCallID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, callIDKey{}, id)
}

// CallIDFromContext retrieves the call id from the context, if present.
func CallIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(callIDKey{}).(uuid.UUID)
	return id, ok
}

func callIDFor(ctx context.Context) uuid.UUID {
	if id, ok := CallIDFromContext(ctx); ok {
		return id
	}
	return uuid.New()
}

// callContext is the state a unary call hands across the boundary. Only its
// handle is given to native code.
type callContext struct {
	method     string
	callID     uuid.UUID
	onResponse func(data []byte)
	onError    func(message string)
}

// stream is the bridge-side state of a subscription or bidirectional stream.
//
// Dispatch holds the read side of gate while running caller logic and close
// takes the write side, so once close returns no handler is running and none
// will start. Calling close from inside a handler of the same stream
// deadlocks; a handler uses Bridge.StopAsync, which sets stopRequested so no
// further handler starts and leaves close to another goroutine.
type stream struct {
	id     handle.Handle
	method string
	callID uuid.UUID

	gate          sync.RWMutex
	closed        bool
	stopRequested atomic.Bool

	// stopping runs before the gate closes; stopped runs after. native is
	// false when the native side ended the stream itself.
	stopping func()
	stopped  func(native bool) error
}

func (s *stream) enter() bool {
	s.gate.RLock()
	if s.closed || s.stopRequested.Load() {
		s.gate.RUnlock()
		return false
	}
	return true
}

func (s *stream) leave() {
	s.gate.RUnlock()
}

func (s *stream) close() bool {
	s.gate.Lock()
	defer s.gate.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	return true
}
