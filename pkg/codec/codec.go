// Package codec converts typed messages to and from the opaque byte buffers
// exchanged with the native library.
package codec

import (
	"fmt"
)

// Codec encodes values of T to bytes and decodes bytes back into T.
// Implementations must be safe for concurrent use.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(data []byte) (T, error)
}

// DecodeError reports a buffer that did not parse as the expected type.
type DecodeError struct {
	Type  string
	Len   int
	Cause string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s (%d bytes): %s", e.Type, e.Len, e.Cause)
}

// EncodeError reports a value that could not be encoded. For well-typed
// input this indicates a programming error.
type EncodeError struct {
	Type  string
	Cause error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Type, e.Cause)
}

func (e *EncodeError) Unwrap() error {
	return e.Cause
}

// decodeGuard turns a panic inside a third-party unmarshaler into a
// DecodeError so a malformed frame can never take the process down.
func decodeGuard(typeName string, n int, err *error) {
	if r := recover(); r != nil {
		*err = &DecodeError{Type: typeName, Len: n, Cause: fmt.Sprintf("panic: %v", r)}
	}
}

func encodeGuard(typeName string, err *error) {
	if r := recover(); r != nil {
		*err = &EncodeError{Type: typeName, Cause: fmt.Errorf("panic: %v", r)}
	}
}

func typeName[T any]() string {
	var zero T
	return fmt.Sprintf("%T", zero)
}
