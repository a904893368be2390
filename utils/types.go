package utils

// WebSocket
type WebSocketEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type DeviceConnectedPayload struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	TwsPlus bool   `json:"tws"`
}

type DeviceDisconnectedPayload struct {
	Address string `json:"address"`
}

type ActiveDevicePayload struct {
	Address string `json:"address"`
}

type PlayStatePayload struct {
	Status     byte  `json:"status"`
	PositionMs int64 `json:"position_ms"`
}

type TrackChangedPayload struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album"`
}

type VolumeChangedPayload struct {
	Address     string `json:"address"`
	LocalVolume int    `json:"local"`
	AbsVolume   int    `json:"remote"`
}
