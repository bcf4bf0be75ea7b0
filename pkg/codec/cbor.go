package codec

import (
	"github.com/fxamacker/cbor/v2"
)

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	if cborEnc, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
	if cborDec, err = (cbor.DecOptions{}).DecMode(); err != nil {
		panic(err)
	}
}

// CBOR returns a codec for plain Go values using deterministic CBOR. It is
// used for payloads that are not protobuf messages and by the journal.
func CBOR[T any]() Codec[T] {
	return cborCodec[T]{name: typeName[T]()}
}

type cborCodec[T any] struct {
	name string
}

func (c cborCodec[T]) Encode(v T) (data []byte, err error) {
	defer encodeGuard(c.name, &err)
	data, err = cborEnc.Marshal(v)
	if err != nil {
		return nil, &EncodeError{Type: c.name, Cause: err}
	}
	return data, nil
}

func (c cborCodec[T]) Decode(data []byte) (v T, err error) {
	defer decodeGuard(c.name, len(data), &err)
	if err := cborDec.Unmarshal(data, &v); err != nil {
		var zero T
		return zero, &DecodeError{Type: c.name, Len: len(data), Cause: err.Error()}
	}
	return v, nil
}
