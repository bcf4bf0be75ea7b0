package abitest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fgrzl/lndkit/pkg/abi"
)

func TestDeliverPoisonsBufferAfterCallback(t *testing.T) {
	// Arrange
	var retained []byte
	var copied []byte
	fn := func(ctx uintptr, data []byte) {
		retained = data
		copied = append([]byte(nil), data...)
	}

	// Act
	deliver(fn, 1, []byte("frame"))

	// Assert
	assert.Equal(t, []byte("frame"), copied)
	for _, c := range retained {
		assert.Equal(t, byte(poison), c)
	}
}

func TestUnaryHoldAndFire(t *testing.T) {
	// Arrange
	u := NewUnary(Hold())
	got := make(chan uintptr, 1)
	cb := abi.Callback{
		OnResponse:      func(ctx uintptr, data []byte) { got <- ctx },
		ResponseContext: 42,
	}

	// Act
	u.Call([]byte{1}, cb)
	fired := u.FireHeld([]byte{2})

	// Assert
	assert.Equal(t, 1, fired)
	select {
	case ctx := <-got:
		assert.Equal(t, uintptr(42), ctx)
	case <-time.After(time.Second):
		t.Fatal("held callback was not fired")
	}
	assert.Equal(t, [][]byte{{1}}, u.Requests())
	assert.Zero(t, u.FireHeld(nil))
}

func TestServerPushesToEverySubscriber(t *testing.T) {
	// Arrange
	s := NewServer()
	var a, b [][]byte
	s.Subscribe(nil, abi.RecvStream{OnResponse: func(_ uintptr, d []byte) { a = append(a, append([]byte(nil), d...)) }})
	s.Subscribe(nil, abi.RecvStream{OnResponse: func(_ uintptr, d []byte) { b = append(b, append([]byte(nil), d...)) }})

	// Act
	s.Push([]byte{1})
	s.Push([]byte{2})

	// Assert
	require.Equal(t, 2, s.Subscribers())
	assert.Equal(t, [][]byte{{1}, {2}}, a)
	assert.Equal(t, a, b)
}

func TestBidiRejectsSendAfterStop(t *testing.T) {
	// Arrange
	b := &Bidi{}
	ptr := b.Open(abi.RecvStream{})

	// Act
	ok := b.Send(ptr, []byte("accept"))
	stopped := b.Stop(ptr)
	late := b.Send(ptr, []byte("late"))

	// Assert
	assert.Zero(t, ok)
	assert.Zero(t, stopped)
	assert.Equal(t, -1, late)
	assert.Equal(t, [][]byte{[]byte("accept")}, b.Sent())
	assert.Equal(t, 1, b.Stops())
}

func TestBidiSetupFailure(t *testing.T) {
	b := &Bidi{FailSetup: true}
	assert.Zero(t, b.Open(abi.RecvStream{}))
}
