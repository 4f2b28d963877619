package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegisteredClient(t *testing.T, hub *Hub, meetingID string) *Client {
	t.Helper()
	client := &Client{hub: hub, Send: make(chan []byte, 4), MeetingID: meetingID}
	hub.Register <- client
	return client
}

func receive(t *testing.T, client *Client) Message {
	t.Helper()
	select {
	case raw := <-client.Send:
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return Message{}
	}
}

func TestNotifyMeetingReachesGlobalAndSubscribedClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	global := newRegisteredClient(t, hub, "")
	subscribed := newRegisteredClient(t, hub, "m1")
	other := newRegisteredClient(t, hub, "m2")

	hub.NotifyMeeting("m1", "meeting.update", map[string]string{"id": "m1"})

	msg := receive(t, global)
	assert.Equal(t, "meeting.update", msg.Action)

	// The subscriber sees the global broadcast and the targeted copy.
	first := receive(t, subscribed)
	second := receive(t, subscribed)
	assert.Equal(t, "meeting.update", first.Action)
	assert.Equal(t, "meeting.update", second.Action)

	// A client on a different meeting only sees the global broadcast.
	receive(t, other)
	select {
	case extra := <-other.Send:
		t.Fatalf("unexpected extra message: %s", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnregisterStopsDelivery(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := newRegisteredClient(t, hub, "m1")
	hub.Unregister <- client

	// The hub closes the send channel on unregister.
	select {
	case _, ok := <-client.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel was not closed")
	}
}
