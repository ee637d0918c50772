package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rehome-app/rehome-api/internal/presence"
)

// EventType identifies a websocket event.
type EventType string

const (
	EventNewMessage  EventType = "new_message"
	EventMessageRead EventType = "message_read"
	EventTyping      EventType = "typing"
	EventStopTyping  EventType = "stop_typing"
	EventConnected   EventType = "connected"
	EventOnlineUsers EventType = "online_users"
)

// Event is the wire format pushed to clients. Adoption transitions reuse it
// with their own Type values (adoption_requested, adoption_completed, ...).
type Event struct {
	Type           EventType       `json:"type"`
	ConversationID string          `json:"conversation_id,omitempty"`
	UserID         string          `json:"user_id,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// Manager owns all live websocket connections of this process and the
// mapping from user id to connections. It also keeps the presence directory
// in sync as sessions come and go.
type Manager struct {
	clients      map[uuid.UUID]*Client
	clientsMutex sync.RWMutex
	userClients  map[string]map[uuid.UUID]bool
	userMutex    sync.RWMutex
	directory    presence.Directory
}

// NewManager creates a manager backed by the given presence directory.
func NewManager(directory presence.Directory) *Manager {
	return &Manager{
		clients:     make(map[uuid.UUID]*Client),
		userClients: make(map[string]map[uuid.UUID]bool),
		directory:   directory,
	}
}

// AddClient registers a new connection.
func (m *Manager) AddClient(client *Client) {
	m.clientsMutex.Lock()
	m.clients[client.ID] = client
	m.clientsMutex.Unlock()

	m.userMutex.Lock()
	if _, exists := m.userClients[client.UserID]; !exists {
		m.userClients[client.UserID] = make(map[uuid.UUID]bool)
	}
	m.userClients[client.UserID][client.ID] = true
	m.userMutex.Unlock()

	if err := m.directory.Connect(context.Background(), client.UserID); err != nil {
		log.Printf("presence: connect failed for user %s: %v", client.UserID, err)
	}

	log.Printf("websocket client %s connected for user %s", client.ID, client.UserID)
}

// RemoveClient unregisters a connection.
func (m *Manager) RemoveClient(clientID uuid.UUID) {
	m.clientsMutex.RLock()
	client, exists := m.clients[clientID]
	m.clientsMutex.RUnlock()

	if !exists {
		return
	}

	userID := client.UserID

	m.userMutex.Lock()
	if clients, ok := m.userClients[userID]; ok {
		delete(clients, clientID)
		if len(clients) == 0 {
			delete(m.userClients, userID)
		}
	}
	m.userMutex.Unlock()

	m.clientsMutex.Lock()
	delete(m.clients, clientID)
	m.clientsMutex.Unlock()

	if err := m.directory.Disconnect(context.Background(), userID); err != nil {
		log.Printf("presence: disconnect failed for user %s: %v", userID, err)
	}

	log.Printf("websocket client %s disconnected for user %s", clientID, userID)
}

// SendToUser delivers an event to every connection of one user. Users with
// no live connection are skipped; the event's source of truth is persisted
// elsewhere and clients catch up by re-fetching.
func (m *Manager) SendToUser(userID string, event Event) {
	if userID == "" {
		return
	}

	m.userMutex.RLock()
	clientIDs, exists := m.userClients[userID]
	m.userMutex.RUnlock()

	if !exists || len(clientIDs) == 0 {
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		log.Printf("websocket: marshaling event: %v", err)
		return
	}

	for clientID := range clientIDs {
		m.clientsMutex.RLock()
		client, exists := m.clients[clientID]
		m.clientsMutex.RUnlock()

		if !exists {
			continue
		}

		go func(c *Client) {
			select {
			case c.send <- eventJSON:
			default:
				// The client is too slow to drain its queue; drop it.
				log.Printf("websocket: send queue full for client %s, closing", c.ID)
				c.close()
				m.RemoveClient(c.ID)
			}
		}(client)
	}
}

// Push satisfies the adoption workflow's EventBus: fire-and-forget delivery
// of a typed event to one user.
func (m *Manager) Push(userID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("websocket: marshaling payload for %s: %v", eventType, err)
		return
	}
	m.SendToUser(userID.String(), Event{
		Type:      EventType(eventType),
		Timestamp: time.Now(),
		Payload:   data,
	})
}

// Online returns the users currently online according to the directory.
func (m *Manager) Online(ctx context.Context) ([]string, error) {
	return m.directory.Online(ctx)
}

// Shutdown closes every connection and clears the registry.
func (m *Manager) Shutdown() {
	m.clientsMutex.Lock()
	for _, client := range m.clients {
		client.close()
	}
	m.clients = make(map[uuid.UUID]*Client)
	m.clientsMutex.Unlock()

	m.userMutex.Lock()
	m.userClients = make(map[string]map[uuid.UUID]bool)
	m.userMutex.Unlock()
}
