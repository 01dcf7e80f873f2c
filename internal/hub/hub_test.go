package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRegisterBindUnregister(t *testing.T) {
	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	a := h.NewConnection(nil)
	b := h.NewConnection(nil)
	h.Register(a)
	h.Register(b)
	require.Eventually(t, func() bool { return h.ConnectionCount() == 2 }, time.Second, time.Millisecond)
	assert.Zero(t, h.TabCount())

	h.BindTab(a, "tab-1")
	h.BindTab(b, "tab-1")
	assert.Equal(t, 1, h.TabCount())
	assert.True(t, h.HasActiveConnections("tab-1"))

	h.Unregister(a)
	require.Eventually(t, func() bool { return h.ConnectionCount() == 1 }, time.Second, time.Millisecond)
	assert.True(t, h.HasActiveConnections("tab-1"))

	_, open := <-a.Send
	assert.False(t, open)

	h.Unregister(b)
	require.Eventually(t, func() bool { return h.TabCount() == 0 }, time.Second, time.Millisecond)
	assert.False(t, h.HasActiveConnections("tab-1"))
}

func TestUnregisterAfterShutdown(t *testing.T) {
	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	conn := h.NewConnection(nil)
	h.Register(conn)
	h.BindTab(conn, "tab-1")
	require.Eventually(t, func() bool { return h.ConnectionCount() == 1 }, time.Second, time.Millisecond)

	cancel()
	<-done

	unregistered := make(chan struct{})
	go func() {
		h.Unregister(conn)
		close(unregistered)
	}()
	select {
	case <-unregistered:
	case <-time.After(time.Second):
		t.Fatal("Unregister blocked after the hub stopped")
	}
	assert.Zero(t, h.ConnectionCount())
	assert.False(t, h.HasActiveConnections("tab-1"))
	_, open := <-conn.Send
	assert.False(t, open)

	late := h.NewConnection(nil)
	h.Register(late)
	assert.Equal(t, 1, h.ConnectionCount())
	h.Unregister(late)
	assert.Zero(t, h.ConnectionCount())
}

func TestSendBufferFull(t *testing.T) {
	h := NewHub(nil)
	conn := h.NewConnection(nil)

	for i := 0; i < cap(conn.Send); i++ {
		require.NoError(t, h.SendToConnection(conn, []byte("x")))
	}
	assert.ErrorIs(t, h.SendToConnection(conn, []byte("x")), ErrBufferFull)
	assert.ErrorIs(t, h.SendJSONToConnection(conn, map[string]string{"op": "post"}), ErrBufferFull)
}
