// Package abi describes the callback-based entry points exported by the
// native lnd library, expressed as Go function types.
//
// The shapes mirror liblnd.h: every call takes a request buffer and a bundle
// of two callbacks plus two opaque context words. The native side invokes one
// of the callbacks from a thread it owns. Contexts are plain integers so that
// no Go pointer ever crosses the boundary; the bridge resolves them through
// its own handle tables.
package abi

// ResponseFunc receives one payload. data is only valid for the duration of
// the call; implementations that retain it must copy.
type ResponseFunc func(ctx uintptr, data []byte)

// ErrorFunc receives a native error message.
type ErrorFunc func(ctx uintptr, message string)

// Callback mirrors CCallback.
type Callback struct {
	OnResponse      ResponseFunc
	OnError         ErrorFunc
	ResponseContext uintptr
	ErrorContext    uintptr
}

// RecvStream mirrors CRecvStream. It has the same layout as Callback but
// OnResponse may be invoked any number of times.
type RecvStream Callback

// StreamPtr identifies a native bidirectional stream. Zero means no stream.
type StreamPtr uintptr

// UnaryFunc is a request/response entry point, e.g. getInfo.
type UnaryFunc func(req []byte, cb Callback)

// SubscribeFunc is a server-streaming entry point, e.g. subscribePeerEvents.
type SubscribeFunc func(req []byte, recv RecvStream)

// BidiFunc opens a bidirectional stream, e.g. channelAcceptor. A zero
// StreamPtr means the stream could not be created.
type BidiFunc func(recv RecvStream) StreamPtr

// SendStreamFunc pushes one encoded message onto a bidirectional stream.
// Zero means success.
type SendStreamFunc func(stream StreamPtr, data []byte) int

// StopStreamFunc closes a bidirectional stream. Zero means success.
type StopStreamFunc func(stream StreamPtr) int
