package bridge

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fgrzl/lndkit/pkg/codec"
)

type getInfoRequest struct{}

type getInfoResponse struct {
	Version        string `cbor:"version"`
	IdentityPubkey string `cbor:"identity_pubkey"`
	NumPeers       uint32 `cbor:"num_peers"`
}

type peerEventSubscription struct{}

type peerEvent struct {
	PubKey string `cbor:"pub_key"`
	Type   int32  `cbor:"type"`
}

type channelAcceptRequest struct {
	PendingChanID []byte `cbor:"pending_chan_id"`
	FundingAmt    uint64 `cbor:"funding_amt"`
}

type channelAcceptResponse struct {
	Accept        bool   `cbor:"accept"`
	PendingChanID []byte `cbor:"pending_chan_id"`
}

const testPubkey = "02546bfe3778d7f8aea43224337d082bcc4521150569c94c9052413ae5b6599c2d"

// undecodable is a truncated CBOR text string.
var undecodable = []byte{0x63, 'a'}

func newTestBridge(t *testing.T, taps ...FrameTap) *Bridge {
	t.Helper()
	return New(&Options{
		CallTimeout: 2 * time.Second,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Registry:    NewRegistry(),
		Taps:        taps,
	})
}

func mustEncode[T any](t *testing.T, v T) []byte {
	t.Helper()
	data, err := codec.CBOR[T]().Encode(v)
	require.NoError(t, err)
	return data
}

// frameRecorder is a FrameTap that keeps copies of everything it sees.
type frameRecorder struct {
	mu     sync.Mutex
	frames []Frame
}

func (r *frameRecorder) Tap(f Frame) {
	f.Data = append([]byte(nil), f.Data...)
	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()
}

func (r *frameRecorder) Frames() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Frame(nil), r.frames...)
}

func waitOutstanding(t *testing.T, b *Bridge, want int) {
	t.Helper()
	require.Eventually(t, func() bool { return b.Outstanding() == want }, time.Second, 5*time.Millisecond)
}
