package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fgrzl/lndkit/pkg/abi"
	"github.com/fgrzl/lndkit/pkg/codec"
)

// BidiState is the lifecycle of a bidirectional stream.
type BidiState int32

const (
	BidiOpening BidiState = iota
	BidiOpen
	BidiStopping
	BidiStopped
)

func (s BidiState) String() string {
	switch s {
	case BidiOpening:
		return "opening"
	case BidiOpen:
		return "open"
	case BidiStopping:
		return "stopping"
	case BidiStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Bidi describes a bidirectional entry point such as channelAcceptor, where
// the native side pushes requests and expects responses pushed back.
type Bidi[Req, Resp any] struct {
	Name     string
	Native   abi.BidiFunc
	Send     abi.SendStreamFunc
	Stop     abi.StopStreamFunc
	Request  codec.Codec[Req]
	Response codec.Codec[Resp]
}

// BidiConfig holds the handlers of one open stream. Both are required.
type BidiConfig[Req, Resp any] struct {
	// OnRequest observes every inbound request, or the error that replaced it.
	OnRequest func(req Req, err error)

	// GetResponse maps the latest request, and the one before it when
	// hasPrevious is set, to an optional response.
	GetResponse func(req Req, previous Req, hasPrevious bool) (Resp, bool)
}

// BidiStream is an open bidirectional stream.
type BidiStream[Req, Resp any] struct {
	def *Bidi[Req, Resp]
	b   *Bridge
	st  *stream
	log *slog.Logger

	// sendMu orders pushes, including the flush of deferred responses.
	sendMu sync.Mutex

	mu      sync.Mutex
	state   BidiState
	ptr     abi.StreamPtr
	pending [][]byte
	last    Req
	hasLast bool
}

// Open starts the stream and returns once the native side has handed back
// its stream pointer. Responses produced before that are held and pushed in
// order as soon as it is known.
func (d *Bidi[Req, Resp]) Open(ctx context.Context, b *Bridge, cfg BidiConfig[Req, Resp]) (*BidiStream[Req, Resp], error) {
	if err := d.validate(cfg); err != nil {
		return nil, callError(KindSetupFailure, d.Name, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, callError(KindCanceled, d.Name, err)
	}

	st := &stream{method: d.Name, callID: callIDFor(ctx)}
	bs := &BidiStream[Req, Resp]{
		def: d,
		b:   b,
		st:  st,
		log: b.log.With(slog.String("method", d.Name), slog.String("call_id", st.callID.String())),
	}
	st.stopping = bs.markStopping
	st.stopped = bs.finish
	st.id = b.registry.Register(Dispatch{
		OnFrame: func(data []byte) { bs.onFrame(data, cfg) },
		OnError: func(message string) { bs.onError(message, cfg) },
	})
	b.streams.Store(st.id, st)

	bs.log.Debug("bridge: opening stream", slog.Uint64("handle", uint64(st.id)))
	ptr := d.Native(b.recvStream(st.id))
	if ptr == 0 {
		_ = b.release(st.id, false)
		bs.log.Warn("bridge: native stream setup failed")
		return nil, callError(KindSetupFailure, d.Name, ErrSetupFailed)
	}
	if err := bs.establish(ptr); err != nil {
		return nil, err
	}
	return bs, nil
}

// Handle identifies the stream to Bridge.Stop.
func (s *BidiStream[Req, Resp]) Handle() Handle {
	return s.st.id
}

// State reports the current lifecycle state.
func (s *BidiStream[Req, Resp]) State() BidiState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastRequest returns the most recent inbound request that decoded.
func (s *BidiStream[Req, Resp]) LastRequest() (Req, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.hasLast
}

// Send encodes resp and pushes it to the native side. It may be called from
// any goroutine, including from GetResponse's caller. Before the stream is
// established the response is deferred; once stopping it fails with
// ErrStreamNotOpen.
func (s *BidiStream[Req, Resp]) Send(resp Resp) error {
	data, err := s.def.Response.Encode(resp)
	if err != nil {
		return callError(KindEncodeFailure, s.def.Name, err)
	}
	return s.push(data)
}

// Stop ends the stream. See Bridge.Stop.
func (s *BidiStream[Req, Resp]) Stop() error {
	return s.b.Stop(s.st.id)
}

// StopAsync ends the stream without waiting for running handlers. See
// Bridge.StopAsync.
func (s *BidiStream[Req, Resp]) StopAsync() <-chan error {
	return s.b.StopAsync(s.st.id)
}

func (s *BidiStream[Req, Resp]) push(data []byte) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	state, ptr := s.state, s.ptr
	if state == BidiOpening {
		s.pending = append(s.pending, append([]byte(nil), data...))
		s.mu.Unlock()
		s.log.Debug("bridge: response deferred until stream is established")
		return nil
	}
	s.mu.Unlock()

	if state != BidiOpen {
		return callError(KindInvalidHandle, s.def.Name, ErrStreamNotOpen)
	}
	return s.sendNative(ptr, data)
}

// sendNative requires sendMu.
func (s *BidiStream[Req, Resp]) sendNative(ptr abi.StreamPtr, data []byte) error {
	s.b.tap(Frame{CallID: s.st.callID, Method: s.def.Name, Stream: s.st.id, Direction: Outbound, Kind: FrameResponse, Data: data})
	if rc := s.def.Send(ptr, data); rc != 0 {
		s.log.Warn("bridge: native send failed", slog.Int("code", rc))
		return callError(KindTransportFailure, s.def.Name, &TransportError{Message: fmt.Sprintf("send stream returned %d", rc)})
	}
	return nil
}

func (s *BidiStream[Req, Resp]) establish(ptr abi.StreamPtr) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	if s.state != BidiOpening {
		// The native side failed the stream before setup returned.
		s.mu.Unlock()
		if rc := s.def.Stop(ptr); rc != 0 {
			s.log.Warn("bridge: native stop failed", slog.Int("code", rc))
		}
		return callError(KindSetupFailure, s.def.Name, ErrSetupFailed)
	}
	s.ptr = ptr
	s.state = BidiOpen
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	s.log.Debug("bridge: stream established", slog.Int("deferred", len(pending)))
	for _, data := range pending {
		if err := s.sendNative(ptr, data); err != nil {
			s.log.Warn("bridge: deferred response not delivered", slog.Any("error", err))
		}
	}
	return nil
}

func (s *BidiStream[Req, Resp]) onFrame(data []byte, cfg BidiConfig[Req, Resp]) {
	if !s.st.enter() {
		s.log.Debug("bridge: stream not active, dropping frame")
		return
	}
	defer s.st.leave()
	defer s.b.recoverHandler(s.def.Name)

	s.b.tap(Frame{CallID: s.st.callID, Method: s.def.Name, Stream: s.st.id, Direction: Inbound, Kind: FrameRequest, Data: data})
	req, err := s.def.Request.Decode(data)
	if err != nil {
		var zero Req
		s.log.Warn("bridge: skipping request that did not decode", slog.Int("bytes", len(data)), slog.Any("error", err))
		cfg.OnRequest(zero, callError(KindDecodeFailure, s.def.Name, err))
		return
	}
	cfg.OnRequest(req, nil)

	s.mu.Lock()
	previous, hasPrevious := s.last, s.hasLast
	s.last, s.hasLast = req, true
	s.mu.Unlock()

	resp, ok := cfg.GetResponse(req, previous, hasPrevious)
	if !ok {
		return
	}
	if err := s.Send(resp); err != nil {
		s.log.Warn("bridge: response not sent", slog.Any("error", err))
	}
}

func (s *BidiStream[Req, Resp]) onError(message string, cfg BidiConfig[Req, Resp]) {
	if s.st.enter() {
		func() {
			defer s.st.leave()
			defer s.b.recoverHandler(s.def.Name)
			var zero Req
			s.b.tap(Frame{CallID: s.st.callID, Method: s.def.Name, Stream: s.st.id, Direction: Inbound, Kind: FrameError, Error: message})
			cfg.OnRequest(zero, callError(KindTransportFailure, s.def.Name, &TransportError{Message: message}))
		}()
	}
	s.log.Warn("bridge: stream failed", slog.String("error", message))
	_ = s.b.release(s.st.id, false)
}

func (s *BidiStream[Req, Resp]) markStopping() {
	s.mu.Lock()
	if s.state != BidiStopped {
		s.state = BidiStopping
	}
	s.mu.Unlock()
}

// finish runs once the gate is closed. native is false when the native side
// already ended the stream, in which case there is nothing to stop.
func (s *BidiStream[Req, Resp]) finish(native bool) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	ptr := s.ptr
	s.state = BidiStopped
	s.pending = nil
	s.mu.Unlock()

	if !native || ptr == 0 {
		return nil
	}
	if rc := s.def.Stop(ptr); rc != 0 {
		s.log.Warn("bridge: native stop failed", slog.Int("code", rc))
		return callError(KindTransportFailure, s.def.Name, &TransportError{Message: fmt.Sprintf("stop stream returned %d", rc)})
	}
	return nil
}

func (d *Bidi[Req, Resp]) validate(cfg BidiConfig[Req, Resp]) error {
	var missing []string
	if d.Native == nil {
		missing = append(missing, "Native")
	}
	if d.Send == nil {
		missing = append(missing, "Send")
	}
	if d.Stop == nil {
		missing = append(missing, "Stop")
	}
	if d.Request == nil {
		missing = append(missing, "Request")
	}
	if d.Response == nil {
		missing = append(missing, "Response")
	}
	if cfg.OnRequest == nil {
		missing = append(missing, "OnRequest")
	}
	if cfg.GetResponse == nil {
		missing = append(missing, "GetResponse")
	}
	if len(missing) > 0 {
		return &ConfigError{Method: d.Name, Missing: missing}
	}
	return nil
}
