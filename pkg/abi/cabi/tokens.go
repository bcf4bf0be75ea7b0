package cabi

import (
	"sync"

	"github.com/fgrzl/lndkit/internal/handle"
	"github.com/fgrzl/lndkit/pkg/abi"
)

type tokenKind uint8

const (
	kindUnary tokenKind = iota + 1
	kindServer
	kindBidi
)

type entry struct {
	kind tokenKind
	cb   abi.Callback
	// ptr is the native stream of a bidi token once setup has returned.
	ptr abi.StreamPtr
}

var (
	tokens = handle.NewTable[entry]()
	// streams maps a native bidi stream pointer to its token.
	streams = handle.NewTable[handle.Handle]()
	// bidiMu keeps tokens and streams consistent for bidi entries.
	bidiMu sync.Mutex
)

func register(kind tokenKind, cb abi.Callback) handle.Handle {
	return tokens.Put(entry{kind: kind, cb: cb})
}

// attach records the stream pointer of a bidi token. A token already released
// by a native error during setup is left alone.
func attach(tok handle.Handle, ptr abi.StreamPtr) bool {
	bidiMu.Lock()
	defer bidiMu.Unlock()
	e, ok := tokens.Load(tok)
	if !ok {
		return false
	}
	e.ptr = ptr
	tokens.Store(tok, e)
	streams.Store(handle.Handle(ptr), tok)
	return true
}

// detach releases the token of a stopped bidi stream.
func detach(ptr abi.StreamPtr) {
	bidiMu.Lock()
	defer bidiMu.Unlock()
	if tok, ok := streams.Delete(handle.Handle(ptr)); ok {
		tokens.Delete(tok)
	}
}

// forget releases tok and, for a bidi token, its stream pointer entry.
func forget(tok handle.Handle) {
	bidiMu.Lock()
	defer bidiMu.Unlock()
	e, ok := tokens.Delete(tok)
	if !ok || e.kind != kindBidi || e.ptr == 0 {
		return
	}
	if cur, ok := streams.Load(handle.Handle(e.ptr)); ok && cur == tok {
		streams.Delete(handle.Handle(e.ptr))
	}
}

// resolve looks up tok. The first callback of a unary call releases it.
func resolve(tok handle.Handle) (entry, bool) {
	e, ok := tokens.Load(tok)
	if ok && e.kind == kindUnary {
		_, ok = tokens.Delete(tok)
	}
	return e, ok
}

// Live reports the number of tokens still held for native code.
func Live() int {
	return tokens.Len()
}
