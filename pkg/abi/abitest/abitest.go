// Package abitest provides in-process fakes of native entry points for tests.
//
// Fakes hand buffers to callbacks the way native code does: each buffer is
// only valid during the callback and is overwritten as soon as it returns, so
// code that retains a buffer without copying fails its tests.
package abitest

import (
	"sync"

	"github.com/fgrzl/lndkit/pkg/abi"
)

const poison = 0xA5

// Behavior decides what a fake unary entry point does with one call.
type Behavior func(u *Unary, req []byte, cb abi.Callback)

// Respond answers every call with data from a separate goroutine.
func Respond(data []byte) Behavior {
	return func(u *Unary, req []byte, cb abi.Callback) {
		go deliver(cb.OnResponse, cb.ResponseContext, data)
	}
}

// Fail answers every call with a native error message.
func Fail(message string) Behavior {
	return func(u *Unary, req []byte, cb abi.Callback) {
		go cb.OnError(cb.ErrorContext, message)
	}
}

// RespondTwice fires the response callback twice, first then second, which a
// correct native library never does.
func RespondTwice(first, second []byte) Behavior {
	return func(u *Unary, req []byte, cb abi.Callback) {
		go func() {
			deliver(cb.OnResponse, cb.ResponseContext, first)
			deliver(cb.OnResponse, cb.ResponseContext, second)
		}()
	}
}

// Hold keeps the callback without firing it. Tests fire it later with
// Unary.FireHeld to simulate a callback arriving after a timeout.
func Hold() Behavior {
	return func(u *Unary, req []byte, cb abi.Callback) {
		u.mu.Lock()
		u.held = append(u.held, cb)
		u.mu.Unlock()
	}
}

// Unary is a fake request/response entry point.
type Unary struct {
	behavior Behavior

	mu       sync.Mutex
	requests [][]byte
	held     []abi.Callback
}

// NewUnary creates a fake that applies behavior to every call.
func NewUnary(behavior Behavior) *Unary {
	return &Unary{behavior: behavior}
}

// Call implements abi.UnaryFunc.
func (u *Unary) Call(req []byte, cb abi.Callback) {
	u.mu.Lock()
	u.requests = append(u.requests, append([]byte(nil), req...))
	u.mu.Unlock()
	u.behavior(u, req, cb)
}

// Requests returns copies of every request buffer received.
func (u *Unary) Requests() [][]byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([][]byte(nil), u.requests...)
}

// FireHeld delivers data to every callback captured by Hold and forgets them.
// It returns the number of callbacks fired.
func (u *Unary) FireHeld(data []byte) int {
	u.mu.Lock()
	held := u.held
	u.held = nil
	u.mu.Unlock()
	for _, cb := range held {
		deliver(cb.OnResponse, cb.ResponseContext, data)
	}
	return len(held)
}

// Server is a fake server-streaming entry point. Frames pushed by the test
// are delivered synchronously, in order, to every subscriber.
type Server struct {
	mu       sync.Mutex
	subs     []abi.RecvStream
	requests [][]byte
}

// NewServer creates a fake with no subscribers.
func NewServer() *Server {
	return &Server{}
}

// Subscribe implements abi.SubscribeFunc.
func (s *Server) Subscribe(req []byte, recv abi.RecvStream) {
	s.mu.Lock()
	s.requests = append(s.requests, append([]byte(nil), req...))
	s.subs = append(s.subs, recv)
	s.mu.Unlock()
}

// Subscribers reports how many subscriptions have been opened.
func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Requests returns copies of every subscribe request received.
func (s *Server) Requests() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.requests...)
}

// Push delivers data to every subscriber.
func (s *Server) Push(data []byte) {
	for _, recv := range s.snapshot() {
		deliver(recv.OnResponse, recv.ResponseContext, data)
	}
}

// Fail delivers a native error to every subscriber and drops them, as the
// native side does when a stream dies.
func (s *Server) Fail(message string) {
	subs := s.snapshot()
	s.mu.Lock()
	s.subs = nil
	s.mu.Unlock()
	for _, recv := range subs {
		recv.OnError(recv.ErrorContext, message)
	}
}

func (s *Server) snapshot() []abi.RecvStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]abi.RecvStream(nil), s.subs...)
}

// Bidi is a fake bidirectional entry point holding at most one stream.
type Bidi struct {
	// FailSetup makes Open return a zero stream pointer.
	FailSetup bool
	// OnOpen runs inside Open before the stream pointer is returned, so
	// frames it pushes arrive before the bridge knows the pointer.
	OnOpen func(b *Bidi)
	// SendCode and StopCode are returned by Send and Stop.
	SendCode int
	StopCode int

	mu    sync.Mutex
	recv  abi.RecvStream
	open  bool
	sent  [][]byte
	stops int
}

const fakeStream abi.StreamPtr = 0xB1D1

// Open implements abi.BidiFunc.
func (b *Bidi) Open(recv abi.RecvStream) abi.StreamPtr {
	if b.FailSetup {
		return 0
	}
	b.mu.Lock()
	b.recv = recv
	b.open = true
	b.mu.Unlock()
	if b.OnOpen != nil {
		b.OnOpen(b)
	}
	return fakeStream
}

// Send implements abi.SendStreamFunc.
func (b *Bidi) Send(stream abi.StreamPtr, data []byte) int {
	if stream != fakeStream {
		return -1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return -1
	}
	b.sent = append(b.sent, append([]byte(nil), data...))
	return b.SendCode
}

// Stop implements abi.StopStreamFunc.
func (b *Bidi) Stop(stream abi.StreamPtr) int {
	if stream != fakeStream {
		return -1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stops++
	b.open = false
	return b.StopCode
}

// Push delivers one inbound request frame.
func (b *Bidi) Push(data []byte) {
	b.mu.Lock()
	recv := b.recv
	b.mu.Unlock()
	if recv.OnResponse == nil {
		return
	}
	deliver(recv.OnResponse, recv.ResponseContext, data)
}

// Fail delivers a native error and closes the stream.
func (b *Bidi) Fail(message string) {
	b.mu.Lock()
	recv := b.recv
	b.open = false
	b.mu.Unlock()
	if recv.OnError == nil {
		return
	}
	recv.OnError(recv.ErrorContext, message)
}

// Sent returns copies of every response pushed through Send.
func (b *Bidi) Sent() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte(nil), b.sent...)
}

// Stops reports how many times Stop was called.
func (b *Bidi) Stops() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stops
}

// deliver hands a private copy of data to fn and poisons it afterwards.
func deliver(fn abi.ResponseFunc, ctx uintptr, data []byte) {
	buf := append([]byte(nil), data...)
	fn(ctx, buf)
	for i := range buf {
		buf[i] = poison
	}
}
