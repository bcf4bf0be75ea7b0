// Package cabi binds the C entry points of liblnd to the function types in
// package abi.
//
// It is only built with cgo and the liblnd build tag, and expects liblnd.h
// and the shared library to be reachable through CGO_CFLAGS and CGO_LDFLAGS:
//
//	CGO_CFLAGS=-I/path/to/lnd CGO_LDFLAGS="-L/path/to/lnd -llnd" go build -tags liblnd
//
// Native code never sees Go pointers. Each call registers its abi callback
// bundle under a token and passes the token as the C context. Tokens of unary
// calls are released by the first callback, tokens of bidirectional streams
// by StopStream or a native error, and tokens of server streams by a native
// error only: liblnd has no way to stop a server stream, so a subscription
// that is stopped on the Go side keeps its token until the process exits.
package cabi
