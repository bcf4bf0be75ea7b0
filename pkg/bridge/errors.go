package bridge

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTimeout       = errors.New("bridge: call timed out")
	ErrInvalidHandle = errors.New("bridge: invalid handle")
	ErrSetupFailed   = errors.New("bridge: native stream setup failed")
	ErrStreamNotOpen = errors.New("bridge: stream not open")
)

// ErrorKind classifies a failed bridge operation.
type ErrorKind int

const (
	KindEncodeFailure ErrorKind = iota + 1
	KindTransportFailure
	KindDecodeFailure
	KindTimeout
	KindSetupFailure
	KindInvalidHandle
	KindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case KindEncodeFailure:
		return "encode failure"
	case KindTransportFailure:
		return "transport failure"
	case KindDecodeFailure:
		return "decode failure"
	case KindTimeout:
		return "timeout"
	case KindSetupFailure:
		return "setup failure"
	case KindInvalidHandle:
		return "invalid handle"
	case KindCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// CallError is returned by every bridge operation that fails. Err carries the
// underlying cause: a *TransportError, a *codec.DecodeError, one of the
// sentinels above, or a context error.
type CallError struct {
	Kind   ErrorKind
	Method string
	Err    error
}

func (e *CallError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Method, e.Kind, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// Is matches another *CallError by kind, so callers can write
// errors.Is(err, &bridge.CallError{Kind: bridge.KindTimeout}).
func (e *CallError) Is(target error) bool {
	t, ok := target.(*CallError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Method == "" || t.Method == e.Method)
}

// TransportError carries the message reported by the native error callback.
type TransportError struct {
	Message string
}

func (e *TransportError) Error() string {
	return "native: " + e.Message
}

// ConfigError lists every required field missing from a stream request.
type ConfigError struct {
	Method  string
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: missing required fields: %s", e.Method, strings.Join(e.Missing, ", "))
}

func callError(kind ErrorKind, method string, err error) *CallError {
	return &CallError{Kind: kind, Method: method, Err: err}
}
