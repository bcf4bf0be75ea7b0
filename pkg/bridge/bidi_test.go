package bridge

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fgrzl/lndkit/pkg/abi/abitest"
	"github.com/fgrzl/lndkit/pkg/codec"
)

func channelAcceptor(fake *abitest.Bidi) *Bidi[channelAcceptRequest, channelAcceptResponse] {
	return &Bidi[channelAcceptRequest, channelAcceptResponse]{
		Name:     "channelAcceptor",
		Native:   fake.Open,
		Send:     fake.Send,
		Stop:     fake.Stop,
		Request:  codec.CBOR[channelAcceptRequest](),
		Response: codec.CBOR[channelAcceptResponse](),
	}
}

// acceptLarge accepts channels of at least 20k sats.
func acceptLarge(req channelAcceptRequest, _ channelAcceptRequest, _ bool) (channelAcceptResponse, bool) {
	return channelAcceptResponse{Accept: req.FundingAmt >= 20_000, PendingChanID: req.PendingChanID}, true
}

func decodeSent(t *testing.T, fake *abitest.Bidi) []channelAcceptResponse {
	t.Helper()
	c := codec.CBOR[channelAcceptResponse]()
	var out []channelAcceptResponse
	for _, data := range fake.Sent() {
		resp, err := c.Decode(data)
		require.NoError(t, err)
		out = append(out, resp)
	}
	return out
}

func TestBidiPushesResponsePerRequest(t *testing.T) {
	// Arrange
	b := newTestBridge(t)
	fake := &abitest.Bidi{}
	var mu sync.Mutex
	var seen []channelAcceptRequest
	var previous []bool
	stream, err := channelAcceptor(fake).Open(t.Context(), b, BidiConfig[channelAcceptRequest, channelAcceptResponse]{
		OnRequest: func(req channelAcceptRequest, err error) {
			require.NoError(t, err)
			mu.Lock()
			seen = append(seen, req)
			mu.Unlock()
		},
		GetResponse: func(req, prev channelAcceptRequest, hasPrev bool) (channelAcceptResponse, bool) {
			mu.Lock()
			previous = append(previous, hasPrev)
			mu.Unlock()
			return acceptLarge(req, prev, hasPrev)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, BidiOpen, stream.State())

	// Act
	fake.Push(mustEncode(t, channelAcceptRequest{PendingChanID: []byte{1}, FundingAmt: 50_000}))
	fake.Push(mustEncode(t, channelAcceptRequest{PendingChanID: []byte{2}, FundingAmt: 1_000}))

	// Assert
	sent := decodeSent(t, fake)
	require.Len(t, sent, 2)
	assert.True(t, sent[0].Accept)
	assert.Equal(t, []byte{1}, sent[0].PendingChanID)
	assert.False(t, sent[1].Accept)
	assert.Equal(t, []byte{2}, sent[1].PendingChanID)
	assert.Len(t, seen, 2)
	assert.Equal(t, []bool{false, true}, previous)

	last, ok := stream.LastRequest()
	require.True(t, ok)
	assert.Equal(t, uint64(1_000), last.FundingAmt)
	require.NoError(t, stream.Stop())
}

func TestBidiDefersResponsesUntilEstablished(t *testing.T) {
	// Arrange
	b := newTestBridge(t)
	fake := &abitest.Bidi{
		OnOpen: func(f *abitest.Bidi) {
			f.Push(mustEncode(t, channelAcceptRequest{PendingChanID: []byte{1}, FundingAmt: 30_000}))
			f.Push(mustEncode(t, channelAcceptRequest{PendingChanID: []byte{2}, FundingAmt: 40_000}))
		},
	}

	// Act
	stream, err := channelAcceptor(fake).Open(t.Context(), b, BidiConfig[channelAcceptRequest, channelAcceptResponse]{
		OnRequest:   func(channelAcceptRequest, error) {},
		GetResponse: acceptLarge,
	})

	// Assert
	require.NoError(t, err)
	sent := decodeSent(t, fake)
	require.Len(t, sent, 2)
	assert.Equal(t, []byte{1}, sent[0].PendingChanID)
	assert.Equal(t, []byte{2}, sent[1].PendingChanID)
	require.NoError(t, stream.Stop())
}

func TestBidiSetupFailureReclaimsContext(t *testing.T) {
	// Arrange
	b := newTestBridge(t)
	fake := &abitest.Bidi{FailSetup: true}

	// Act
	stream, err := channelAcceptor(fake).Open(t.Context(), b, BidiConfig[channelAcceptRequest, channelAcceptResponse]{
		OnRequest:   func(channelAcceptRequest, error) {},
		GetResponse: acceptLarge,
	})

	// Assert
	assert.Nil(t, stream)
	assert.ErrorIs(t, err, ErrSetupFailed)
	assert.ErrorIs(t, err, &CallError{Kind: KindSetupFailure})
	assert.Zero(t, b.Outstanding())
	assert.Zero(t, fake.Stops())
}

func TestBidiStopCallsNativeStopOnce(t *testing.T) {
	// Arrange
	b := newTestBridge(t)
	fake := &abitest.Bidi{}
	stream, err := channelAcceptor(fake).Open(t.Context(), b, BidiConfig[channelAcceptRequest, channelAcceptResponse]{
		OnRequest:   func(channelAcceptRequest, error) {},
		GetResponse: acceptLarge,
	})
	require.NoError(t, err)

	// Act
	first := stream.Stop()
	second := b.Stop(stream.Handle())

	// Assert
	assert.NoError(t, first)
	assert.ErrorIs(t, second, ErrInvalidHandle)
	assert.Equal(t, 1, fake.Stops())
	assert.Equal(t, BidiStopped, stream.State())
	assert.ErrorIs(t, stream.Send(channelAcceptResponse{Accept: true}), ErrStreamNotOpen)
	assert.Zero(t, b.Outstanding())
}

func TestBidiSendPushesAsynchronously(t *testing.T) {
	// Arrange
	b := newTestBridge(t)
	fake := &abitest.Bidi{}
	stream, err := channelAcceptor(fake).Open(t.Context(), b, BidiConfig[channelAcceptRequest, channelAcceptResponse]{
		OnRequest: func(channelAcceptRequest, error) {},
		GetResponse: func(channelAcceptRequest, channelAcceptRequest, bool) (channelAcceptResponse, bool) {
			return channelAcceptResponse{}, false
		},
	})
	require.NoError(t, err)

	// Act
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, stream.Send(channelAcceptResponse{Accept: true}))
		}()
	}
	wg.Wait()

	// Assert
	assert.Len(t, fake.Sent(), 4)
	require.NoError(t, stream.Stop())
}

func TestBidiReportsNativeSendFailure(t *testing.T) {
	// Arrange
	b := newTestBridge(t)
	fake := &abitest.Bidi{SendCode: 1}
	stream, err := channelAcceptor(fake).Open(t.Context(), b, BidiConfig[channelAcceptRequest, channelAcceptResponse]{
		OnRequest:   func(channelAcceptRequest, error) {},
		GetResponse: acceptLarge,
	})
	require.NoError(t, err)

	// Act
	err = stream.Send(channelAcceptResponse{Accept: true})

	// Assert
	assert.ErrorIs(t, err, &CallError{Kind: KindTransportFailure})
	require.NoError(t, stream.Stop())
}

func TestBidiNativeErrorStopsStream(t *testing.T) {
	// Arrange
	b := newTestBridge(t)
	fake := &abitest.Bidi{}
	var got error
	stream, err := channelAcceptor(fake).Open(t.Context(), b, BidiConfig[channelAcceptRequest, channelAcceptResponse]{
		OnRequest:   func(_ channelAcceptRequest, err error) { got = err },
		GetResponse: acceptLarge,
	})
	require.NoError(t, err)

	// Act
	fake.Fail("acceptor stream closed")

	// Assert
	var te *TransportError
	require.ErrorAs(t, got, &te)
	assert.Equal(t, "acceptor stream closed", te.Message)
	assert.Equal(t, BidiStopped, stream.State())
	assert.Zero(t, b.Outstanding())
	assert.Zero(t, fake.Stops())
	assert.ErrorIs(t, stream.Stop(), ErrInvalidHandle)
}

func TestBidiSkipsUndecodableRequest(t *testing.T) {
	// Arrange
	b := newTestBridge(t)
	fake := &abitest.Bidi{}
	var errs []error
	stream, err := channelAcceptor(fake).Open(t.Context(), b, BidiConfig[channelAcceptRequest, channelAcceptResponse]{
		OnRequest: func(_ channelAcceptRequest, err error) {
			if err != nil {
				errs = append(errs, err)
			}
		},
		GetResponse: acceptLarge,
	})
	require.NoError(t, err)

	// Act
	fake.Push(undecodable)
	fake.Push(mustEncode(t, channelAcceptRequest{PendingChanID: []byte{9}, FundingAmt: 25_000}))

	// Assert
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], &CallError{Kind: KindDecodeFailure})
	assert.Len(t, fake.Sent(), 1)
	require.NoError(t, stream.Stop())
}

func TestBidiReportsEveryMissingField(t *testing.T) {
	// Arrange
	b := newTestBridge(t)
	d := &Bidi[channelAcceptRequest, channelAcceptResponse]{Name: "channelAcceptor"}

	// Act
	_, err := d.Open(t.Context(), b, BidiConfig[channelAcceptRequest, channelAcceptResponse]{})

	// Assert
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"Native", "Send", "Stop", "Request", "Response", "OnRequest", "GetResponse"}, ce.Missing)
	assert.Zero(t, b.Outstanding())
}

func TestBidiNativeErrorWhileOpeningFailsSetup(t *testing.T) {
	// Arrange
	b := newTestBridge(t)
	fake := &abitest.Bidi{OnOpen: func(f *abitest.Bidi) { f.Fail("acceptor rejected") }}
	var got error

	// Act
	stream, err := channelAcceptor(fake).Open(t.Context(), b, BidiConfig[channelAcceptRequest, channelAcceptResponse]{
		OnRequest:   func(_ channelAcceptRequest, err error) { got = err },
		GetResponse: acceptLarge,
	})

	// Assert
	assert.Nil(t, stream)
	assert.ErrorIs(t, err, &CallError{Kind: KindSetupFailure})
	assert.ErrorIs(t, err, ErrSetupFailed)
	var te *TransportError
	require.ErrorAs(t, got, &te)
	assert.Equal(t, "acceptor rejected", te.Message)
	assert.Equal(t, 1, fake.Stops())
	assert.Zero(t, b.Outstanding())
}

func TestBidiNativeStopFailureStillReleases(t *testing.T) {
	// Arrange
	b := newTestBridge(t)
	fake := &abitest.Bidi{StopCode: 1}
	stream, err := channelAcceptor(fake).Open(t.Context(), b, BidiConfig[channelAcceptRequest, channelAcceptResponse]{
		OnRequest:   func(channelAcceptRequest, error) {},
		GetResponse: acceptLarge,
	})
	require.NoError(t, err)

	// Act
	err = stream.Stop()

	// Assert
	assert.ErrorIs(t, err, &CallError{Kind: KindTransportFailure})
	var te *TransportError
	assert.ErrorAs(t, err, &te)
	assert.Equal(t, BidiStopped, stream.State())
	assert.Zero(t, b.Outstanding())
	assert.Equal(t, 1, fake.Stops())
	assert.ErrorIs(t, stream.Stop(), ErrInvalidHandle)
}

func TestBidiStopAsyncFromRequestHandler(t *testing.T) {
	// Arrange
	b := newTestBridge(t)
	fake := &abitest.Bidi{}
	var stream *BidiStream[channelAcceptRequest, channelAcceptResponse]
	var stopped <-chan error
	stream, err := channelAcceptor(fake).Open(t.Context(), b, BidiConfig[channelAcceptRequest, channelAcceptResponse]{
		OnRequest: func(channelAcceptRequest, error) {
			if stopped == nil {
				stopped = stream.StopAsync()
			}
		},
		GetResponse: acceptLarge,
	})
	require.NoError(t, err)

	// Act
	fake.Push(mustEncode(t, channelAcceptRequest{PendingChanID: []byte{1}, FundingAmt: 25_000}))
	fake.Push(mustEncode(t, channelAcceptRequest{PendingChanID: []byte{2}, FundingAmt: 25_000}))

	// Assert
	require.NotNil(t, stopped)
	require.NoError(t, <-stopped)
	assert.Equal(t, BidiStopped, stream.State())
	assert.Equal(t, 1, fake.Stops())
	assert.Zero(t, b.Outstanding())
}
