package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialTestClient(t *testing.T, hub *WebSocketHub) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		hub.AddClient(conn)
	}))
	t.Cleanup(srv.Close)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func clientCount(hub *WebSocketHub) int {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	return len(hub.clients)
}

func waitClients(t *testing.T, hub *WebSocketHub, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if clientCount(hub) == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("hub has %d clients, want %d", clientCount(hub), n)
}

func TestWebSocketHubBroadcast(t *testing.T) {
	hub := NewWebSocketHub()
	conn := dialTestClient(t, hub)
	waitClients(t, hub, 1)

	hub.Broadcast(WebSocketEvent{
		Type:    "volume_changed",
		Payload: VolumeChangedPayload{Address: "AA:BB:CC:00:00:01", LocalVolume: 8, AbsVolume: 68},
	})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var got WebSocketEvent
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if got.Type != "volume_changed" {
		t.Errorf("event type = %q, want volume_changed", got.Type)
	}
}

func TestWebSocketHubDropsFailedClient(t *testing.T) {
	hub := NewWebSocketHub()
	conn := dialTestClient(t, hub)
	waitClients(t, hub, 1)
	conn.Close()

	// The first write after the close can still land in the TCP
	// buffer; keep broadcasting until the failure surfaces.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hub.Broadcast(WebSocketEvent{Type: "ping"})
		if clientCount(hub) == 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("closed client was never dropped from the hub")
}
