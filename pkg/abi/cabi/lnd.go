//go:build cgo && liblnd

package cabi

/*
#include "liblnd.h"
*/
import "C"

import (
	"unsafe"
)

// Entry points used by the lndkit facade. Any other liblnd function can be
// adapted the same way with Unary, Server or Bidi.
var (
	GetInfo     = Unary(unsafe.Pointer(C.getInfo))
	AddInvoice  = Unary(unsafe.Pointer(C.addInvoice))
	ConnectPeer = Unary(unsafe.Pointer(C.connectPeer))

	SubscribePeerEvents = Server(unsafe.Pointer(C.subscribePeerEvents))
	SubscribeInvoices   = Server(unsafe.Pointer(C.subscribeInvoices))

	ChannelAcceptor = Bidi(unsafe.Pointer(C.channelAcceptor))
)
