package websockets

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/bwise1/waste_patrol/internal/geo"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBuffer     = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewWebSocketManager initializes a WebSocketManager
func NewWebSocketManager() *WebSocketManager {
	return &WebSocketManager{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the WebSocket manager and blocks until ctx is cancelled.
func (manager *WebSocketManager) Run(ctx context.Context) {
	defer close(manager.done)

	for {
		select {
		case <-ctx.Done():
			manager.mu.Lock()
			for client := range manager.clients {
				delete(manager.clients, client)
				close(client.send)
			}
			manager.mu.Unlock()
			return

		case client := <-manager.register:
			manager.mu.Lock()
			manager.clients[client] = true
			manager.mu.Unlock()

		case client := <-manager.unregister:
			manager.mu.Lock()
			if _, exists := manager.clients[client]; exists {
				delete(manager.clients, client)
				close(client.send)
				log.WithField("user_id", client.userID()).Debug("websocket client disconnected")
			}
			manager.mu.Unlock()

		case event := <-manager.broadcast:
			message, err := json.Marshal(event)
			if err != nil {
				log.WithError(err).WithField("type", event.Type).Error("marshal websocket event")
				continue
			}
			manager.mu.Lock()
			for client := range manager.clients {
				if !client.wants(event) {
					continue
				}
				select {
				case client.send <- message:
				default:
					// slow consumer
					delete(manager.clients, client)
					close(client.send)
				}
			}
			manager.mu.Unlock()
		}
	}
}

// Broadcast queues an event for delivery. It never blocks the caller; events
// are dropped when the queue is full or the manager has stopped.
func (manager *WebSocketManager) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case <-manager.done:
	case manager.broadcast <- event:
	default:
		log.WithField("type", event.Type).Warn("websocket broadcast queue full, dropping event")
	}
}

// ClientCount returns the number of connected clients.
func (manager *WebSocketManager) ClientCount() int {
	manager.mu.RLock()
	defer manager.mu.RUnlock()
	return len(manager.clients)
}

// HandleConnections upgrades HTTP requests to WebSocket connections
func (manager *WebSocketManager) HandleConnections(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Error("websocket upgrade")
		return
	}

	client := &Client{hub: manager, Conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case manager.register <- client:
	case <-manager.done:
		conn.Close()
		return
	}

	go client.writePump()
	client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("websocket read")
			}
			return
		}

		var message Message
		if err := json.Unmarshal(msg, &message); err != nil {
			log.WithError(err).Debug("invalid websocket message")
			continue
		}

		switch message.Type {
		case MsgTypeSubscribe:
			c.subscribe(message)
		case MsgTypeUnsubscribe:
			c.subscribe(Message{UserID: message.UserID})
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) subscribe(m Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.UserID = m.UserID
	c.Latitude = m.Latitude
	c.Longitude = m.Longitude
	c.Radius = m.Radius
	if c.Radius < 0 {
		c.Radius = 0
	}
}

func (c *Client) userID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.UserID
}

// wants reports whether the event falls inside the client's radius.
func (c *Client) wants(e Event) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Radius == 0 || e.Latitude == nil || e.Longitude == nil {
		return true
	}
	return geo.Distance(c.Latitude, c.Longitude, *e.Latitude, *e.Longitude) <= c.Radius
}
