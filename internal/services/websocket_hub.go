package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cattlebreed/server/internal/observability"
	"github.com/gorilla/websocket"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// EventPublisher receives domain events; services accept a nil publisher
type EventPublisher interface {
	Publish(topic string, msg WSMessage)
}

// Common message types
const (
	WSTypeRecordCreated  = "record_created"
	WSTypeRecordUpdated  = "record_updated"
	WSTypeRecordDeleted  = "record_deleted"
	WSTypeRecordsCleared = "records_cleared"
	WSTypeRecordsSynced  = "records_synced"
	WSTypeExportCreated  = "export_created"
	WSTypeAuthState      = "auth_state"
	WSTypeError          = "error"
	WSTypeSubscribe      = "subscribe"
	WSTypeUnsubscribe    = "unsubscribe"
	WSTypeSubscribed     = "subscribed"
	WSTypePing           = "ping"
	WSTypePong           = "pong"
)

// Topics
const (
	TopicRecords = "records"
	TopicExports = "exports"
	TopicAuth    = "auth"
)

// IsKnownTopic reports whether clients may subscribe to topic
func IsKnownTopic(topic string) bool {
	switch topic {
	case TopicRecords, TopicExports, TopicAuth:
		return true
	}
	return false
}

const clientBufferSize = 64

// WSClient represents a connected WebSocket client
type WSClient struct {
	ID         string
	Send       chan []byte
	conn       *websocket.Conn
	hub        *WebSocketHub
	topics     map[string]bool
	closedOnce sync.Once
}

type topicMsg struct {
	topic   string
	message []byte
}

// WebSocketHub fans published events out to subscribed clients
type WebSocketHub struct {
	clients    map[*WSClient]bool
	topics     map[string]map[*WSClient]bool
	unregister chan *WSClient
	broadcast  chan topicMsg
	done       chan struct{}
	mu         sync.RWMutex
}

// NewWebSocketHub creates a new WebSocket hub
func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*WSClient]bool),
		topics:     make(map[string]map[*WSClient]bool),
		unregister: make(chan *WSClient),
		broadcast:  make(chan topicMsg, 256),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until ctx is done
func (h *WebSocketHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				h.removeLocked(client)
			}
			h.mu.Unlock()
			return

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()
			observability.WithField("client_id", client.ID).Debug("WebSocket client disconnected")

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.topics[msg.topic] {
				select {
				case client.Send <- msg.message:
				default:
					// slow consumer
					h.removeLocked(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *WebSocketHub) removeLocked(client *WSClient) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	for topic := range client.topics {
		if subs, ok := h.topics[topic]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.topics, topic)
			}
		}
	}
	close(client.Send)
}

// Publish queues msg for subscribers of topic. It never blocks; events are
// dropped when the queue is full.
func (h *WebSocketHub) Publish(topic string, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		observability.WithError(err).Error("Error marshaling WebSocket message")
		return
	}

	select {
	case h.broadcast <- topicMsg{topic: topic, message: data}:
	default:
		observability.WithField("topic", topic).Warn("WebSocket broadcast queue full, dropping event")
	}
}

// Subscribe adds a client to a topic
func (h *WebSocketHub) Subscribe(client *WSClient, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	client.topics[topic] = true
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*WSClient]bool)
	}
	h.topics[topic][client] = true
}

// Unsubscribe removes a client from a topic
func (h *WebSocketHub) Unsubscribe(client *WSClient, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(client.topics, topic)
	if subs, ok := h.topics[topic]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SubscriberCount returns the number of subscribers for a topic
func (h *WebSocketHub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// NewClient creates a client and registers it with the hub. conn may be nil
// in tests that only read from Send.
func (h *WebSocketHub) NewClient(id string, conn *websocket.Conn) *WSClient {
	c := &WSClient{
		ID:     id,
		Send:   make(chan []byte, clientBufferSize),
		conn:   conn,
		hub:    h,
		topics: make(map[string]bool),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.done:
		close(c.Send)
	default:
		h.clients[c] = true
		observability.WithField("client_id", id).Debug("WebSocket client connected")
	}
	return c
}

// Close unregisters the client and closes its connection
func (c *WSClient) Close() {
	c.closedOnce.Do(func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// Reply queues a message for this client only
func (c *WSClient) Reply(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

// WritePump pumps messages from the hub to the websocket connection
func (c *WSClient) WritePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump handles subscribe/unsubscribe/ping control messages until the
// connection drops
func (c *WSClient) ReadPump() {
	defer c.Close()

	c.conn.SetReadLimit(4 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				observability.WithError(err).Warn("WebSocket read error")
			}
			return
		}
		c.handleControl(data)
	}
}

func (c *WSClient) handleControl(data []byte) {
	var msg struct {
		Type  string `json:"type"`
		Topic string `json:"topic"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		c.Reply(WSMessage{Type: WSTypeError, Payload: "invalid message"})
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		if !IsKnownTopic(msg.Topic) {
			c.Reply(WSMessage{Type: WSTypeError, Payload: "unknown topic: " + msg.Topic})
			return
		}
		c.hub.Subscribe(c, msg.Topic)
		c.Reply(WSMessage{Type: WSTypeSubscribed, Payload: msg.Topic})
	case WSTypeUnsubscribe:
		c.hub.Unsubscribe(c, msg.Topic)
	case WSTypePing:
		c.Reply(WSMessage{Type: WSTypePong})
	default:
		c.Reply(WSMessage{Type: WSTypeError, Payload: "unsupported message type: " + msg.Type})
	}
}

// publish is the nil-safe form services use
func publish(p EventPublisher, topic, msgType string, payload interface{}) {
	if p == nil {
		return
	}
	p.Publish(topic, WSMessage{Type: msgType, Payload: payload})
}
