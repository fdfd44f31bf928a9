package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokulwholesaleinc-web/zamutints-sub000/internal/license"
	"github.com/gokulwholesaleinc-web/zamutints-sub000/pkg/contracts/events"
)

type decodedMessage struct {
	Type events.MessageType       `json:"type"`
	Data events.LicenseStatusData `json:"data"`
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHub(t *testing.T, status license.Status) *Hub {
	t.Helper()
	hub := NewHub(func() license.Status { return status }, discardLogger())
	hub.Start()
	t.Cleanup(hub.Stop)
	return hub
}

func receive(t *testing.T, c *Client) decodedMessage {
	t.Helper()
	select {
	case raw, ok := <-c.send:
		require.True(t, ok, "send queue closed")
		var msg decodedMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message queued")
		return decodedMessage{}
	}
}

func TestHubGreetsClientWithCurrentStatus(t *testing.T) {
	hub := newTestHub(t, license.Status{State: license.StateInvalid, Error: "License has been revoked"})

	client := NewClient(hub, newMockConnection(), "trace-1", discardLogger())
	require.True(t, hub.Register(client))

	msg := receive(t, client)
	assert.Equal(t, events.MessageTypeConnect, msg.Type)
	assert.Equal(t, client.ID(), msg.Data.ClientID)
	assert.False(t, msg.Data.Valid)
	assert.Equal(t, "invalid", msg.Data.State)
	assert.Equal(t, "License has been revoked", msg.Data.Error)
	assert.Equal(t, 1, hub.ClientCount())
}

func TestHubBroadcastsLicenseEvents(t *testing.T) {
	hub := newTestHub(t, license.Status{Valid: true, State: license.StateValid})

	a := NewClient(hub, newMockConnection(), "", discardLogger())
	b := NewClient(hub, newMockConnection(), "", discardLogger())
	require.True(t, hub.Register(a))
	require.True(t, hub.Register(b))
	receive(t, a)
	receive(t, b)

	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	hub.OnLicenseEvent(license.StatusEvent{
		Status: license.Status{State: license.StateInvalid, Error: "license server did not answer within 10s"},
		Reason: license.EventHeartbeat,
		At:     at,
	})

	for _, c := range []*Client{a, b} {
		msg := receive(t, c)
		assert.Equal(t, events.MessageTypeLicenseStatus, msg.Type)
		assert.Equal(t, "invalid", msg.Data.State)
		assert.Equal(t, license.EventHeartbeat, msg.Data.Reason)
		assert.True(t, at.Equal(msg.Data.At))
	}
}

func TestHubDisconnectsSlowClient(t *testing.T) {
	hub := newTestHub(t, license.Status{Valid: true, State: license.StateValid})

	slow := NewClient(hub, newMockConnection(), "", discardLogger())
	require.True(t, hub.Register(slow))
	require.Eventually(t, func() bool { return len(slow.send) == 1 }, time.Second, 5*time.Millisecond)

	// Fill the queue behind the connect message.
	for len(slow.send) < cap(slow.send) {
		slow.send <- []byte(`{}`)
	}

	hub.OnLicenseEvent(license.StatusEvent{Status: license.Status{State: license.StateInvalid}, Reason: license.EventHeartbeat})

	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)

	// Drain; the queue must end closed.
	for range slow.send {
	}
}

func TestHubStop(t *testing.T) {
	hub := NewHub(nil, discardLogger())
	hub.Start()

	client := NewClient(hub, newMockConnection(), "", discardLogger())
	require.True(t, hub.Register(client))

	hub.Stop()
	hub.Stop()

	assert.Equal(t, 0, hub.ClientCount())
	for range client.send {
	}

	assert.False(t, hub.Register(NewClient(hub, newMockConnection(), "", discardLogger())))

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastQueueSize*2; i++ {
			hub.OnLicenseEvent(license.StatusEvent{Reason: license.EventShutdown})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("OnLicenseEvent blocked after Stop")
	}

	hub.Start()
	assert.Equal(t, 0, hub.ClientCount(), "a stopped hub does not restart")
}

func TestServeWSPumpsMessages(t *testing.T) {
	hub := NewHub(func() license.Status {
		return license.Status{Valid: true, State: license.StateValid, Mode: license.ModeDevelopment}
	}, discardLogger())
	hub.Start()

	conn := newMockConnection()
	ServeWS(hub, conn, "trace-ws", discardLogger())

	hub.OnLicenseEvent(license.StatusEvent{
		Status: license.Status{Valid: true, State: license.StateValid},
		Reason: license.EventActivation,
	})

	require.Eventually(t, func() bool { return len(conn.messages()) >= 2 }, 2*time.Second, 5*time.Millisecond)

	msgs := conn.messages()
	var first, second decodedMessage
	require.NoError(t, json.Unmarshal(msgs[0].Data, &first))
	require.NoError(t, json.Unmarshal(msgs[1].Data, &second))
	assert.Equal(t, events.MessageTypeConnect, first.Type)
	assert.Equal(t, license.ModeDevelopment, first.Data.Mode)
	assert.Equal(t, events.MessageTypeLicenseStatus, second.Type)
	assert.Equal(t, license.EventActivation, second.Data.Reason)

	hub.Stop()

	require.Eventually(t, conn.isClosed, 2*time.Second, 5*time.Millisecond)
	last := conn.messages()[len(conn.messages())-1]
	assert.Equal(t, gorilla.CloseMessage, last.Type)
}

func TestServeWSAfterStopClosesConnection(t *testing.T) {
	hub := NewHub(nil, discardLogger())
	hub.Start()
	hub.Stop()

	conn := newMockConnection()
	ServeWS(hub, conn, "", discardLogger())

	assert.True(t, conn.isClosed())
}
