package bridge

import (
	"context"
	"log/slog"
	"reflect"

	"github.com/fgrzl/lndkit/pkg/abi"
	"github.com/fgrzl/lndkit/pkg/codec"
)

// Subscription describes one server-streaming entry point of the native
// library, e.g. subscribePeerEvents.
type Subscription[Req, Event any] struct {
	Name    string
	Native  abi.SubscribeFunc
	Request codec.Codec[Req]
	Event   codec.Codec[Event]
}

// Subscribe starts the stream and returns immediately. onEvent is called once
// per native frame, on the native callback's goroutine, and may be called
// concurrently if the native side does so.
//
// A frame that does not decode is reported to onEvent as a decode failure and
// the stream continues. A native error is reported as a transport failure and
// ends the stream; its handle is released and Stop will return
// ErrInvalidHandle. Otherwise the stream runs until Stop.
func (s *Subscription[Req, Event]) Subscribe(ctx context.Context, b *Bridge, req Req, onEvent func(Event, error)) (Handle, error) {
	if err := s.validate(req, onEvent); err != nil {
		return 0, callError(KindSetupFailure, s.Name, err)
	}
	if err := ctx.Err(); err != nil {
		return 0, callError(KindCanceled, s.Name, err)
	}

	data, err := s.Request.Encode(req)
	if err != nil {
		return 0, callError(KindEncodeFailure, s.Name, err)
	}

	st := &stream{method: s.Name, callID: callIDFor(ctx)}
	log := b.log.With(slog.String("method", s.Name), slog.String("call_id", st.callID.String()))

	var zero Event
	st.id = b.registry.Register(Dispatch{
		OnFrame: func(data []byte) {
			if !st.enter() {
				log.Debug("bridge: stream not active, dropping frame")
				return
			}
			defer st.leave()
			defer b.recoverHandler(s.Name)

			b.tap(Frame{CallID: st.callID, Method: s.Name, Stream: st.id, Direction: Inbound, Kind: FrameEvent, Data: data})
			ev, err := s.Event.Decode(data)
			if err != nil {
				log.Warn("bridge: skipping event that did not decode", slog.Int("bytes", len(data)), slog.Any("error", err))
				onEvent(zero, callError(KindDecodeFailure, s.Name, err))
				return
			}
			onEvent(ev, nil)
		},
		OnError: func(message string) {
			if st.enter() {
				func() {
					defer st.leave()
					defer b.recoverHandler(s.Name)
					b.tap(Frame{CallID: st.callID, Method: s.Name, Stream: st.id, Direction: Inbound, Kind: FrameError, Error: message})
					onEvent(zero, callError(KindTransportFailure, s.Name, &TransportError{Message: message}))
				}()
			}
			log.Warn("bridge: subscription failed", slog.String("error", message))
			_ = b.release(st.id, false)
		},
	})
	b.streams.Store(st.id, st)

	b.tap(Frame{CallID: st.callID, Method: s.Name, Stream: st.id, Direction: Outbound, Kind: FrameRequest, Data: data})
	log.Debug("bridge: subscription started", slog.Uint64("handle", uint64(st.id)))
	s.Native(data, b.recvStream(st.id))
	return st.id, nil
}

func (s *Subscription[Req, Event]) validate(req Req, onEvent func(Event, error)) error {
	var missing []string
	if s.Native == nil {
		missing = append(missing, "Native")
	}
	if s.Request == nil {
		missing = append(missing, "Request")
	}
	if s.Event == nil {
		missing = append(missing, "Event")
	}
	if isNil(req) {
		missing = append(missing, "request")
	}
	if onEvent == nil {
		missing = append(missing, "onEvent")
	}
	if len(missing) > 0 {
		return &ConfigError{Method: s.Name, Missing: missing}
	}
	return nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
