package websocket

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	hub := NewHub(log)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func testClient(hub *Hub, eventID uint32) *Client {
	return &Client{ID: "c", EventID: eventID, hub: hub, send: make(chan []byte, 4)}
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func TestHub_BroadcastIsScopedToEvent(t *testing.T) {
	hub := newTestHub(t)

	a := testClient(hub, 1)
	b := testClient(hub, 2)
	hub.register <- a
	hub.register <- b

	hub.BroadcastToEvent(1, map[string]string{"content": "hello"})

	assert.JSONEq(t, `{"content":"hello"}`, string(receive(t, a)))
	select {
	case <-b.send:
		t.Fatal("client of another event received the message")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := newTestHub(t)

	c := testClient(hub, 7)
	hub.register <- c
	require.Eventually(t, func() bool { return hub.ClientCount(7) == 1 }, time.Second, 5*time.Millisecond)

	hub.unregister <- c
	require.Eventually(t, func() bool { return hub.ClientCount(7) == 0 }, time.Second, 5*time.Millisecond)

	_, ok := <-c.send
	assert.False(t, ok)
}

func TestHub_SlowClientIsDropped(t *testing.T) {
	hub := newTestHub(t)

	c := &Client{ID: "slow", EventID: 3, hub: hub, send: make(chan []byte)}
	hub.register <- c
	require.Eventually(t, func() bool { return hub.ClientCount(3) == 1 }, time.Second, 5*time.Millisecond)

	hub.BroadcastToEvent(3, "x")
	require.Eventually(t, func() bool { return hub.ClientCount(3) == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_DisconnectOnlyDropsThatUser(t *testing.T) {
	hub := newTestHub(t)

	leaving := &Client{ID: "leaving", UserID: 11, EventID: 5, hub: hub, send: make(chan []byte, 4)}
	staying := &Client{ID: "staying", UserID: 12, EventID: 5, hub: hub, send: make(chan []byte, 4)}
	elsewhere := &Client{ID: "elsewhere", UserID: 11, EventID: 6, hub: hub, send: make(chan []byte, 4)}
	hub.register <- leaving
	hub.register <- staying
	hub.register <- elsewhere
	require.Eventually(t, func() bool { return hub.ClientCount(5) == 2 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return hub.ClientCount(6) == 1 }, time.Second, 5*time.Millisecond)

	hub.Disconnect(5, 11)
	assert.Equal(t, 1, hub.ClientCount(5))
	assert.Equal(t, 1, hub.ClientCount(6))
	_, ok := <-leaving.send
	assert.False(t, ok)

	hub.BroadcastToEvent(5, "still here")
	assert.JSONEq(t, `"still here"`, string(receive(t, staying)))
}

func TestHub_CloseRoom(t *testing.T) {
	hub := newTestHub(t)

	a := testClient(hub, 9)
	b := &Client{ID: "b", EventID: 9, hub: hub, send: make(chan []byte, 4)}
	hub.register <- a
	hub.register <- b
	require.Eventually(t, func() bool { return hub.ClientCount(9) == 2 }, time.Second, 5*time.Millisecond)

	hub.CloseRoom(9)
	assert.Equal(t, 0, hub.ClientCount(9))
	_, ok := <-a.send
	assert.False(t, ok)
	_, ok = <-b.send
	assert.False(t, ok)

	hub.unregister <- a
}
