package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rehome-app/rehome-api/internal/presence"
)

// testClient builds a client with no underlying connection; close() tolerates
// a nil conn, so registry bookkeeping can be tested without a socket.
func testClient(userID string, manager *Manager) *Client {
	return &Client{
		ID:        uuid.New(),
		UserID:    userID,
		send:      make(chan []byte, sendBufferSize),
		manager:   manager,
		closeChan: make(chan struct{}),
	}
}

func TestManagerRegistry(t *testing.T) {
	directory := presence.NewMemoryDirectory()
	m := NewManager(directory)
	userID := uuid.New().String()

	c1 := testClient(userID, m)
	c2 := testClient(userID, m)
	m.AddClient(c1)
	m.AddClient(c2)

	online, err := directory.IsOnline(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, online)

	m.RemoveClient(c1.ID)
	online, _ = directory.IsOnline(context.Background(), userID)
	assert.True(t, online, "one session left")

	m.RemoveClient(c2.ID)
	online, _ = directory.IsOnline(context.Background(), userID)
	assert.False(t, online)

	// Removing an unknown client is a no-op.
	m.RemoveClient(uuid.New())
}

func TestSendToUser(t *testing.T) {
	m := NewManager(presence.NewMemoryDirectory())
	userID := uuid.New().String()

	client := testClient(userID, m)
	m.AddClient(client)

	m.SendToUser(userID, Event{Type: EventNewMessage, ConversationID: "conv-1"})

	select {
	case raw := <-client.send:
		var event Event
		require.NoError(t, json.Unmarshal(raw, &event))
		assert.Equal(t, EventNewMessage, event.Type)
		assert.Equal(t, "conv-1", event.ConversationID)
		assert.False(t, event.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}

	// No registered connection: silently dropped.
	m.SendToUser(uuid.New().String(), Event{Type: EventNewMessage})
}

func TestPush(t *testing.T) {
	m := NewManager(presence.NewMemoryDirectory())
	userID := uuid.New()

	client := testClient(userID.String(), m)
	m.AddClient(client)

	m.Push(userID, "adoption_requested", map[string]any{"pet_name": "Rex"})

	select {
	case raw := <-client.send:
		var event Event
		require.NoError(t, json.Unmarshal(raw, &event))
		assert.Equal(t, EventType("adoption_requested"), event.Type)

		var payload map[string]any
		require.NoError(t, json.Unmarshal(event.Payload, &payload))
		assert.Equal(t, "Rex", payload["pet_name"])
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestShutdown(t *testing.T) {
	directory := presence.NewMemoryDirectory()
	m := NewManager(directory)

	m.AddClient(testClient(uuid.New().String(), m))
	m.AddClient(testClient(uuid.New().String(), m))
	m.Shutdown()

	m.clientsMutex.RLock()
	assert.Empty(t, m.clients)
	m.clientsMutex.RUnlock()

	m.userMutex.RLock()
	assert.Empty(t, m.userClients)
	m.userMutex.RUnlock()
}
