//go:build cgo && liblnd

package cabi

/*
#cgo LDFLAGS: -llnd
#include <stdint.h>
#include <stdlib.h>
#include "liblnd.h"

extern void lndkitOnResponse(void* ctx, char* data, int length);
extern void lndkitOnError(void* ctx, char* message);

typedef void (*lndkit_unary_fn)(char*, int, CCallback);
typedef void (*lndkit_stream_fn)(char*, int, CRecvStream);
typedef uintptr_t (*lndkit_bidi_fn)(CRecvStream);

static CCallback lndkit_callback(uintptr_t token) {
	CCallback cb;
	cb.onResponse = (void (*)(void*, const char*, int))lndkitOnResponse;
	cb.onError = (void (*)(void*, const char*))lndkitOnError;
	cb.responseContext = (void*)token;
	cb.errorContext = (void*)token;
	return cb;
}

static CRecvStream lndkit_recv_stream(uintptr_t token) {
	CRecvStream rs;
	rs.onResponse = (void (*)(void*, const char*, int))lndkitOnResponse;
	rs.onError = (void (*)(void*, const char*))lndkitOnError;
	rs.responseContext = (void*)token;
	rs.errorContext = (void*)token;
	return rs;
}

static void lndkit_call_unary(void* fn, char* data, int length, uintptr_t token) {
	((lndkit_unary_fn)fn)(data, length, lndkit_callback(token));
}

static void lndkit_call_stream(void* fn, char* data, int length, uintptr_t token) {
	((lndkit_stream_fn)fn)(data, length, lndkit_recv_stream(token));
}

static uintptr_t lndkit_call_bidi(void* fn, uintptr_t token) {
	return ((lndkit_bidi_fn)fn)(lndkit_recv_stream(token));
}
*/
import "C"

import (
	"unsafe"

	"github.com/fgrzl/lndkit/pkg/abi"
)

// Unary adapts a liblnd request/response function such as C.getInfo.
func Unary(fn unsafe.Pointer) abi.UnaryFunc {
	return func(req []byte, cb abi.Callback) {
		tok := register(kindUnary, cb)
		data := C.CBytes(req)
		defer C.free(data)
		C.lndkit_call_unary(fn, (*C.char)(data), C.int(len(req)), C.uintptr_t(tok))
	}
}

// Server adapts a liblnd server-streaming function such as
// C.subscribePeerEvents.
func Server(fn unsafe.Pointer) abi.SubscribeFunc {
	return func(req []byte, recv abi.RecvStream) {
		tok := register(kindServer, abi.Callback(recv))
		data := C.CBytes(req)
		defer C.free(data)
		C.lndkit_call_stream(fn, (*C.char)(data), C.int(len(req)), C.uintptr_t(tok))
	}
}

// Bidi adapts a liblnd bidirectional function such as C.channelAcceptor.
func Bidi(fn unsafe.Pointer) abi.BidiFunc {
	return func(recv abi.RecvStream) abi.StreamPtr {
		tok := register(kindBidi, abi.Callback(recv))
		ptr := abi.StreamPtr(C.lndkit_call_bidi(fn, C.uintptr_t(tok)))
		if ptr == 0 {
			forget(tok)
			return 0
		}
		attach(tok, ptr)
		return ptr
	}
}

// SendStream implements abi.SendStreamFunc over SendStreamC.
func SendStream(stream abi.StreamPtr, data []byte) int {
	buf := C.CBytes(data)
	defer C.free(buf)
	return int(C.SendStreamC(C.uintptr_t(stream), (*C.char)(buf), C.int(len(data))))
}

// StopStream implements abi.StopStreamFunc over StopStreamC and releases the
// stream's token.
func StopStream(stream abi.StreamPtr) int {
	rc := int(C.StopStreamC(C.uintptr_t(stream)))
	detach(stream)
	return rc
}
