package bridge

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fgrzl/lndkit/pkg/abi"
	"github.com/fgrzl/lndkit/pkg/codec"
)

// Unary describes one request/response entry point of the native library.
//
//	var GetInfo = bridge.Unary[*lnrpc.GetInfoRequest, *lnrpc.GetInfoResponse]{
//		Name:     "getInfo",
//		Native:   cabi.GetInfo,
//		Request:  codec.Proto[*lnrpc.GetInfoRequest](),
//		Response: codec.Proto[*lnrpc.GetInfoResponse](),
//	}
type Unary[Req, Resp any] struct {
	Name     string
	Native   abi.UnaryFunc
	Request  codec.Codec[Req]
	Response codec.Codec[Resp]

	// Timeout overrides the bridge's CallTimeout when positive.
	Timeout time.Duration
}

// Call encodes req, invokes the native function and blocks until its callback
// fires, the timeout elapses or ctx is done. Calls are never retried.
func (u *Unary[Req, Resp]) Call(ctx context.Context, b *Bridge, req Req) (Resp, error) {
	var zero Resp
	if err := u.validate(); err != nil {
		return zero, callError(KindSetupFailure, u.Name, err)
	}
	if err := ctx.Err(); err != nil {
		return zero, callError(KindCanceled, u.Name, err)
	}

	data, err := u.Request.Encode(req)
	if err != nil {
		return zero, callError(KindEncodeFailure, u.Name, err)
	}

	callID := callIDFor(ctx)
	log := b.log.With(slog.String("method", u.Name), slog.String("call_id", callID.String()))
	slot := NewSlot[Resp]()

	h := b.contexts.Put(&callContext{
		method: u.Name,
		callID: callID,
		onResponse: func(data []byte) {
			b.tap(Frame{CallID: callID, Method: u.Name, Direction: Inbound, Kind: FrameResponse, Data: data})
			resp, err := u.Response.Decode(data)
			if err != nil {
				log.Warn("bridge: response did not decode", slog.Int("bytes", len(data)), slog.Any("error", err))
				slot.Fill(zero, callError(KindDecodeFailure, u.Name, err))
				return
			}
			slot.Fill(resp, nil)
		},
		onError: func(message string) {
			b.tap(Frame{CallID: callID, Method: u.Name, Direction: Inbound, Kind: FrameError, Error: message})
			slot.Fill(zero, callError(KindTransportFailure, u.Name, &TransportError{Message: message}))
		},
	})
	// A callback that has not fired by now will find nothing.
	defer b.contexts.Delete(h)

	b.tap(Frame{CallID: callID, Method: u.Name, Direction: Outbound, Kind: FrameRequest, Data: data})
	log.Debug("bridge: unary call started", slog.Int("bytes", len(data)))
	u.Native(data, b.unaryCallback(h))

	timeout := b.timeout
	if u.Timeout > 0 {
		timeout = u.Timeout
	}
	resp, err := slot.Wait(ctx, timeout)
	switch {
	case err == nil:
		log.Debug("bridge: unary call completed")
		return resp, nil
	case errors.Is(err, ErrTimeout):
		log.Warn("bridge: unary call timed out", slog.Duration("timeout", timeout))
		return zero, callError(KindTimeout, u.Name, ErrTimeout)
	case err == ctx.Err():
		log.Debug("bridge: unary call canceled", slog.Any("error", err))
		return zero, callError(KindCanceled, u.Name, err)
	default:
		return zero, err
	}
}

func (u *Unary[Req, Resp]) validate() error {
	var missing []string
	if u.Native == nil {
		missing = append(missing, "Native")
	}
	if u.Request == nil {
		missing = append(missing, "Request")
	}
	if u.Response == nil {
		missing = append(missing, "Response")
	}
	if len(missing) > 0 {
		return &ConfigError{Method: u.Name, Missing: missing}
	}
	return nil
}
