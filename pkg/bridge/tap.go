package bridge

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/fgrzl/lndkit/internal/handle"
)

// Direction tells which way a frame crossed the boundary.
type Direction uint8

const (
	Outbound Direction = iota + 1
	Inbound
)

func (d Direction) String() string {
	switch d {
	case Outbound:
		return "out"
	case Inbound:
		return "in"
	default:
		return "unknown"
	}
}

// FrameKind classifies a frame.
type FrameKind uint8

const (
	FrameRequest FrameKind = iota + 1
	FrameResponse
	FrameEvent
	FrameError
)

func (k FrameKind) String() string {
	switch k {
	case FrameRequest:
		return "request"
	case FrameResponse:
		return "response"
	case FrameEvent:
		return "event"
	case FrameError:
		return "error"
	default:
		return "unknown"
	}
}

// Frame is one buffer or error message observed at the boundary. Stream is
// zero for unary calls.
type Frame struct {
	CallID    uuid.UUID
	Method    string
	Stream    handle.Handle
	Direction Direction
	Kind      FrameKind
	Data      []byte
	Error     string
}

// FrameTap observes boundary traffic. Tap runs on the goroutine that produced
// the frame, possibly a native thread, and must not block for long.
// f.Data is only valid for the duration of the call.
type FrameTap interface {
	Tap(f Frame)
}

// TapFunc adapts a function to FrameTap.
type TapFunc func(f Frame)

func (fn TapFunc) Tap(f Frame) {
	fn(f)
}

func (b *Bridge) tap(f Frame) {
	for _, t := range b.taps {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.log.Error("bridge: frame tap panicked",
						slog.String("method", f.Method),
						slog.Any("panic", r))
				}
			}()
			t.Tap(f)
		}()
	}
}
