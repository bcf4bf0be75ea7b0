// Package bridge turns the callback-based native ABI into typed unary calls,
// subscriptions and bidirectional streams.
//
// Every call allocates bridge-side state and hands native code only a numeric
// handle to it. Native callbacks resolve the handle through a table (unary
// calls) or the Registry (streams); a handle that no longer resolves is a late
// or duplicate callback and is dropped. State is reclaimed exactly once: when a
// unary call returns, when a stream is stopped, when a stream's native side
// reports an error, or when setup fails.
package bridge

import (
	"log/slog"
	"time"

	"github.com/fgrzl/lndkit/internal/handle"
	"github.com/fgrzl/lndkit/pkg/abi"
)

// Bridge owns the handle tables for calls made through it. It is safe for
// concurrent use.
type Bridge struct {
	log      *slog.Logger
	timeout  time.Duration
	registry *Registry
	taps     []FrameTap

	contexts *handle.Table[*callContext]
	streams  *handle.Table[*stream]
}

// New creates a bridge. A nil opts uses DefaultOptions.
func New(opts *Options) *Bridge {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Bridge{
		log:      opts.logger(),
		timeout:  opts.CallTimeout,
		registry: opts.registry(),
		taps:     append([]FrameTap(nil), opts.Taps...),
		contexts: handle.NewTable[*callContext](),
		streams:  handle.NewTable[*stream](),
	}
}

// Stop ends the subscription or bidirectional stream identified by h. When
// Stop returns no handler for h is running and none will run again. A second
// Stop, or a Stop after the native side ended the stream, returns an error
// matching ErrInvalidHandle.
//
// Stop must not be called synchronously from a handler of the same stream;
// use StopAsync there.
func (b *Bridge) Stop(h Handle) error {
	return b.release(h, true)
}

// StopAsync ends the stream identified by h without waiting for running
// handlers, so it may be called from a handler of that same stream. No
// handler for h starts after StopAsync returns. The result of the underlying
// Stop is delivered on the returned channel.
func (b *Bridge) StopAsync(h Handle) <-chan error {
	done := make(chan error, 1)
	st, ok := b.streams.Load(h)
	if !ok {
		done <- callError(KindInvalidHandle, "", ErrInvalidHandle)
		return done
	}
	st.stopRequested.Store(true)
	go func() {
		done <- b.release(h, true)
	}()
	return done
}

// Outstanding reports how many calls and streams still hold bridge-side
// state. It returns to zero once every call has returned and every stream has
// ended.
func (b *Bridge) Outstanding() int {
	return b.contexts.Len() + b.streams.Len()
}

func (b *Bridge) release(h Handle, native bool) error {
	st, ok := b.streams.Delete(h)
	if !ok {
		return callError(KindInvalidHandle, "", ErrInvalidHandle)
	}
	b.registry.Unregister(h)
	if st.stopping != nil {
		st.stopping()
	}
	st.close()

	log := b.log.With(slog.String("method", st.method), slog.String("call_id", st.callID.String()))
	if native {
		log.Debug("bridge: stream stopped", slog.Uint64("handle", uint64(h)))
	} else {
		log.Debug("bridge: stream ended by native side", slog.Uint64("handle", uint64(h)))
	}
	if st.stopped != nil {
		return st.stopped(native)
	}
	return nil
}

// unaryCallback builds the callback bundle for a unary context handle.
func (b *Bridge) unaryCallback(h handle.Handle) abi.Callback {
	return abi.Callback{
		OnResponse:      b.onUnaryResponse,
		OnError:         b.onUnaryError,
		ResponseContext: uintptr(h),
		ErrorContext:    uintptr(h),
	}
}

func (b *Bridge) onUnaryResponse(ctx uintptr, data []byte) {
	cc, ok := b.contexts.Delete(handle.Handle(ctx))
	if !ok {
		b.log.Debug("bridge: dropping response for released context", slog.Uint64("handle", uint64(ctx)))
		return
	}
	defer b.recoverHandler(cc.method)
	cc.onResponse(data)
}

func (b *Bridge) onUnaryError(ctx uintptr, message string) {
	cc, ok := b.contexts.Delete(handle.Handle(ctx))
	if !ok {
		b.log.Debug("bridge: dropping error for released context",
			slog.Uint64("handle", uint64(ctx)),
			slog.String("error", message))
		return
	}
	defer b.recoverHandler(cc.method)
	cc.onError(message)
}

// recvStream builds the callback bundle for a registered stream id.
func (b *Bridge) recvStream(id handle.Handle) abi.RecvStream {
	return abi.RecvStream{
		OnResponse:      b.onStreamFrame,
		OnError:         b.onStreamError,
		ResponseContext: uintptr(id),
		ErrorContext:    uintptr(id),
	}
}

func (b *Bridge) onStreamFrame(ctx uintptr, data []byte) {
	if !b.registry.DispatchFrame(handle.Handle(ctx), data) {
		b.log.Debug("bridge: dropping frame for inactive stream", slog.Uint64("handle", uint64(ctx)))
	}
}

func (b *Bridge) onStreamError(ctx uintptr, message string) {
	if !b.registry.DispatchError(handle.Handle(ctx), message) {
		b.log.Debug("bridge: dropping error for inactive stream",
			slog.Uint64("handle", uint64(ctx)),
			slog.String("error", message))
	}
}

// recoverHandler keeps a panicking caller handler from unwinding into native
// code.
func (b *Bridge) recoverHandler(method string) {
	if r := recover(); r != nil {
		b.log.Error("bridge: handler panicked",
			slog.String("method", method),
			slog.Any("panic", r))
	}
}
