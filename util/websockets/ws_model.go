package websockets

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Message types
const (
	MsgTypeSubscribe   = "subscribe"
	MsgTypeUnsubscribe = "unsubscribe"

	EventReportCreated       = "report.created"
	EventReportAssigned      = "report.assigned"
	EventReportStatusChanged = "report.status_changed"
	EventReportResolved      = "report.resolved"
)

// Client represents a connected WebSocket user
type Client struct {
	hub  *WebSocketManager
	Conn *websocket.Conn
	send chan []byte

	mu        sync.RWMutex
	UserID    string
	Latitude  float64
	Longitude float64
	Radius    float64 // metres, 0 means everything
}

type WebSocketManager struct {
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

// Event is pushed to subscribers. Events with a location are only delivered to
// clients whose subscription radius covers it.
type Event struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
	Latitude  *float64  `json:"-"`
	Longitude *float64  `json:"-"`
}

// Message struct for incoming WebSocket messages
type Message struct {
	Type      string  `json:"type"`
	UserID    string  `json:"user_id"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	Radius    float64 `json:"radius,omitempty"`
}
