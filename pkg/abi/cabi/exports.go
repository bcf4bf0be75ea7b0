//go:build cgo && liblnd

package cabi

/*
#include <stdint.h>
*/
import "C"

import (
	"log/slog"
	"unsafe"

	"github.com/fgrzl/lndkit/internal/handle"
)

//export lndkitOnResponse
func lndkitOnResponse(ctx unsafe.Pointer, data *C.char, length C.int) {
	tok := handle.Handle(uintptr(ctx))
	e, ok := resolve(tok)
	if !ok {
		slog.Debug("cabi: response for released token", slog.Uint64("token", uint64(tok)))
		return
	}
	buf := C.GoBytes(unsafe.Pointer(data), length)
	e.cb.OnResponse(e.cb.ResponseContext, buf)
}

//export lndkitOnError
func lndkitOnError(ctx unsafe.Pointer, message *C.char) {
	tok := handle.Handle(uintptr(ctx))
	e, ok := resolve(tok)
	if !ok {
		slog.Debug("cabi: error for released token", slog.Uint64("token", uint64(tok)))
		return
	}
	if e.kind != kindUnary {
		// a native stream error is terminal
		forget(tok)
	}
	e.cb.OnError(e.cb.ErrorContext, C.GoString(message))
}
