package utils

// WebSocketBroadcaster adapts the hub to the session manager's event
// sink: avrcp events come in as (name, payload) pairs and go out as
// WebSocketEvent frames.
type WebSocketBroadcaster struct {
	wsHub *WebSocketHub
}

// NewWebSocketBroadcaster creates a new broadcaster instance
func NewWebSocketBroadcaster(wsHub *WebSocketHub) *WebSocketBroadcaster {
	return &WebSocketBroadcaster{
		wsHub: wsHub,
	}
}

// Broadcast fans one session event out to all WebSocket clients.
func (b *WebSocketBroadcaster) Broadcast(event string, payload interface{}) {
	b.wsHub.Broadcast(WebSocketEvent{
		Type:    event,
		Payload: payload,
	})
}
