// Package lndkit calls an embedded lnd through its callback-based C interface
// with typed requests and responses.
//
// Each lnd method is described once as a bridge.Unary, bridge.Subscription or
// bridge.Bidi and then invoked through a Bridge:
//
//	b, err := lndkit.NewFromEnv()
//	info, err := lndkit.Call(ctx, b, getInfo, &lnrpc.GetInfoRequest{})
package lndkit

import (
	"context"

	"github.com/fgrzl/lndkit/pkg/bridge"
)

type Bridge = bridge.Bridge
type Options = bridge.Options
type Handle = bridge.Handle
type Frame = bridge.Frame
type FrameTap = bridge.FrameTap
type CallError = bridge.CallError
type TransportError = bridge.TransportError
type ConfigError = bridge.ConfigError

var (
	ErrTimeout       = bridge.ErrTimeout
	ErrInvalidHandle = bridge.ErrInvalidHandle
	ErrSetupFailed   = bridge.ErrSetupFailed
	ErrStreamNotOpen = bridge.ErrStreamNotOpen
)

// New creates a bridge. A nil opts uses the defaults.
func New(opts *Options) *Bridge {
	return bridge.New(opts)
}

// NewFromEnv creates a bridge configured from LNDKIT_* environment variables.
func NewFromEnv(taps ...FrameTap) (*Bridge, error) {
	opts, err := bridge.LoadOptions()
	if err != nil {
		return nil, err
	}
	opts.Taps = taps
	return bridge.New(opts), nil
}

// Call performs one unary request.
func Call[Req, Resp any](ctx context.Context, b *Bridge, method *bridge.Unary[Req, Resp], req Req) (Resp, error) {
	return method.Call(ctx, b, req)
}

// Subscribe starts a server stream. Stop it with b.Stop.
func Subscribe[Req, Event any](ctx context.Context, b *Bridge, method *bridge.Subscription[Req, Event], req Req, onEvent func(Event, error)) (Handle, error) {
	return method.Subscribe(ctx, b, req, onEvent)
}

// OpenBidi opens a bidirectional stream.
func OpenBidi[Req, Resp any](ctx context.Context, b *Bridge, method *bridge.Bidi[Req, Resp], cfg bridge.BidiConfig[Req, Resp]) (*bridge.BidiStream[Req, Resp], error) {
	return method.Open(ctx, b, cfg)
}
