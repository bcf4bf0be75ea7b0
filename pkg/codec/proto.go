package codec

import (
	"google.golang.org/protobuf/proto"
)

// Proto returns a codec for generated protobuf messages such as the lnrpc
// types. T must be a pointer message type, e.g. *lnrpc.GetInfoResponse.
func Proto[T proto.Message]() Codec[T] {
	return protoCodec[T]{name: typeName[T]()}
}

type protoCodec[T proto.Message] struct {
	name string
}

func (c protoCodec[T]) Encode(v T) (data []byte, err error) {
	defer encodeGuard(c.name, &err)
	data, err = proto.Marshal(v)
	if err != nil {
		return nil, &EncodeError{Type: c.name, Cause: err}
	}
	return data, nil
}

func (c protoCodec[T]) Decode(data []byte) (v T, err error) {
	defer decodeGuard(c.name, len(data), &err)
	var zero T
	// New works on a typed nil pointer: generated messages resolve their
	// descriptor without dereferencing the receiver.
	msg := zero.ProtoReflect().Type().New().Interface().(T)
	if err := proto.Unmarshal(data, msg); err != nil {
		return zero, &DecodeError{Type: c.name, Len: len(data), Cause: err.Error()}
	}
	return msg, nil
}
