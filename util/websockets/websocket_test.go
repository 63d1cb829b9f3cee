package websockets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func ptr(v float64) *float64 { return &v }

func startHub(t *testing.T) (*WebSocketManager, string, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewWebSocketManager()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleConnections))
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	return hub, url, func() {
		cancel()
		<-hub.done
		srv.Close()
	}
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func waitForClients(t *testing.T, hub *WebSocketManager, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.ClientCount() == n }, time.Second, 10*time.Millisecond)
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(msg, &out))
	return out
}

func TestBroadcastFiltersByRadius(t *testing.T) {
	hub, url, stop := startHub(t)
	defer stop()

	all := dial(t, url)
	defer all.Close()
	near := dial(t, url)
	defer near.Close()
	waitForClients(t, hub, 2)

	// Dhaka centre, 2 km radius
	require.NoError(t, near.WriteJSON(Message{Type: MsgTypeSubscribe, Latitude: 23.8103, Longitude: 90.4125, Radius: 2000}))
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		for c := range hub.clients {
			c.mu.RLock()
			subscribed := c.Radius > 0
			c.mu.RUnlock()
			if subscribed {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	// Chittagong, well outside the radius
	hub.Broadcast(Event{Type: EventReportCreated, Data: map[string]string{"report_code": "WR-FAR"}, Latitude: ptr(22.3569), Longitude: ptr(91.7832)})
	hub.Broadcast(Event{Type: EventReportCreated, Data: map[string]string{"report_code": "WR-NEAR"}, Latitude: ptr(23.8110), Longitude: ptr(90.4130)})

	first := readEvent(t, all)
	second := readEvent(t, all)
	assert.Equal(t, "WR-FAR", first["data"].(map[string]any)["report_code"])
	assert.Equal(t, "WR-NEAR", second["data"].(map[string]any)["report_code"])

	got := readEvent(t, near)
	assert.Equal(t, EventReportCreated, got["type"])
	assert.Equal(t, "WR-NEAR", got["data"].(map[string]any)["report_code"])
}

func TestUnregisterOnClose(t *testing.T) {
	hub, url, stop := startHub(t)
	defer stop()

	conn := dial(t, url)
	waitForClients(t, hub, 1)
	require.NoError(t, conn.Close())
	waitForClients(t, hub, 0)
}

func TestBroadcastAfterStopDoesNotBlock(t *testing.T) {
	hub, _, stop := startHub(t)
	stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			hub.Broadcast(Event{Type: EventReportResolved})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked after the manager stopped")
	}
}

func TestClientWants(t *testing.T) {
	c := &Client{}
	assert.True(t, c.wants(Event{Latitude: ptr(10), Longitude: ptr(10)}))

	c.subscribe(Message{Latitude: 23.8103, Longitude: 90.4125, Radius: 1000})
	assert.True(t, c.wants(Event{}))
	assert.True(t, c.wants(Event{Latitude: ptr(23.8103), Longitude: ptr(90.4125)}))
	assert.False(t, c.wants(Event{Latitude: ptr(23.9), Longitude: ptr(90.4125)}))

	c.subscribe(Message{Radius: -5})
	assert.Equal(t, 0.0, c.Radius)
}
