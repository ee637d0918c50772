package websocket

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// How long to wait for a pong before dropping the connection.
	pongWait = 60 * time.Second

	// Ping interval, kept under pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum size of an inbound client frame.
	maxMessageSize = 64 * 1024

	// Outbound queue depth per connection.
	sendBufferSize = 256

	writeWait = 10 * time.Second
)

// Client is one live websocket connection.
type Client struct {
	ID        uuid.UUID
	UserID    string
	conn      *websocket.Conn
	send      chan []byte
	manager   *Manager
	closeChan chan struct{}
}

// NewClient wraps an upgraded connection.
func NewClient(userID string, conn *websocket.Conn, manager *Manager) *Client {
	return &Client{
		ID:        uuid.New(),
		UserID:    userID,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		manager:   manager,
		closeChan: make(chan struct{}),
	}
}

// Start registers the client and launches its read and write pumps.
func (c *Client) Start() {
	c.manager.AddClient(c)

	go c.readPump()
	go c.writePump()
}

func (c *Client) close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// readPump consumes frames from the client until the connection drops.
func (c *Client) readPump() {
	defer func() {
		c.manager.RemoveClient(c.ID)
		c.close()
		close(c.closeChan)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket: unexpected close: %v", err)
			}
			break
		}

		c.handleIncomingMessage(message)
	}
}

// writePump pushes queued events and keepalive pings to the client.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("websocket: writing message: %v", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closeChan:
			return
		}
	}
}

// typingPayload is the body of typing relay frames: the peer to notify.
type typingPayload struct {
	RecipientID string `json:"recipient_id"`
}

// handleIncomingMessage routes frames sent by the client. Chat text goes
// through the HTTP API; the socket only carries ephemeral signals.
func (c *Client) handleIncomingMessage(message []byte) {
	var event Event
	if err := json.Unmarshal(message, &event); err != nil {
		log.Printf("websocket: unmarshaling client event: %v", err)
		return
	}

	// Never trust the sender field from the wire.
	event.UserID = c.UserID
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	switch event.Type {
	case EventTyping, EventStopTyping:
		var p typingPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil || p.RecipientID == "" {
			return
		}
		c.manager.SendToUser(p.RecipientID, event)
	default:
		log.Printf("websocket: unhandled client event type: %s", event.Type)
	}
}
