package bridge

import (
	"fmt"
	"log"

	"github.com/godbus/dbus/v5"

	"github.com/usenocturne/avrcpd/avrcp"
)

// The native AVRCP stack (HAL shim) sits on the system bus. Outbound
// responses and commands are method calls against it; inbound requests
// arrive as signals handled in signals.go.
const (
	halService = "org.avrcpd.Hal1"
	halPath    = "/org/avrcpd/hal"
	halIface   = "org.avrcpd.Hal1"
)

// Bridge connects the session manager to the native stack over D-Bus.
// It implements avrcp.Responder, avrcp.MediaSession and
// avrcp.AudioRouting against the same bus object.
type Bridge struct {
	conn     *dbus.Conn
	obj      dbus.BusObject
	mgr      *avrcp.Manager
	stopChan chan struct{}
}

// New connects to the system bus and binds the HAL object. The
// returned bridge has no manager yet; call Start once one exists.
func New() (*Bridge, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system D-Bus: %w", err)
	}
	return &Bridge{
		conn:     conn,
		obj:      conn.Object(halService, halPath),
		stopChan: make(chan struct{}),
	}, nil
}

// Start subscribes to HAL signals and begins feeding mgr.
func (b *Bridge) Start(mgr *avrcp.Manager) error {
	b.mgr = mgr
	rule := fmt.Sprintf("type='signal',interface='%s'", halIface)
	call := b.conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule)
	if call.Err != nil {
		return fmt.Errorf("failed to add match rule: %w", call.Err)
	}
	go b.handleSignals()
	return nil
}

// Stop ends the signal loop.
func (b *Bridge) Stop() {
	close(b.stopChan)
}

func (b *Bridge) call(method string, args ...interface{}) error {
	call := b.obj.Call(halIface+"."+method, 0, args...)
	if call.Err != nil {
		return fmt.Errorf("%s failed: %w", method, call.Err)
	}
	return nil
}

// avrcp.Responder

func (b *Bridge) RegisterNotificationRspPlayStatus(rspType int, status byte, addr string) error {
	return b.call("RegisterNotificationRspPlayStatus", int32(rspType), status, addr)
}

func (b *Bridge) RegisterNotificationRspTrackChange(rspType int, uid uint64, addr string) error {
	return b.call("RegisterNotificationRspTrackChange", int32(rspType), uid, addr)
}

func (b *Bridge) RegisterNotificationRspPlayPos(rspType int, posMs uint32, addr string) error {
	return b.call("RegisterNotificationRspPlayPos", int32(rspType), posMs, addr)
}

func (b *Bridge) RegisterNotificationRspAddrPlayerChanged(rspType int, playerID int, uidCounter uint16, addr string) error {
	return b.call("RegisterNotificationRspAddrPlayerChanged", int32(rspType), int32(playerID), uidCounter, addr)
}

func (b *Bridge) RegisterNotificationRspAvailPlayersChanged(rspType int, addr string) error {
	return b.call("RegisterNotificationRspAvailPlayersChanged", int32(rspType), addr)
}

func (b *Bridge) RegisterNotificationRspNowPlayingChanged(rspType int, addr string) error {
	return b.call("RegisterNotificationRspNowPlayingChanged", int32(rspType), addr)
}

func (b *Bridge) RegisterNotificationRspUIDsChanged(rspType int, uidCounter uint16, addr string) error {
	return b.call("RegisterNotificationRspUIDsChanged", int32(rspType), uidCounter, addr)
}

func (b *Bridge) RegisterNotificationRspAppSettingsChanged(rspType int, addr string) error {
	return b.call("RegisterNotificationRspAppSettingsChanged", int32(rspType), addr)
}

func (b *Bridge) GetPlayStatusRsp(addr string, status byte, songLenMs, posMs uint32) error {
	return b.call("GetPlayStatusRsp", addr, status, songLenMs, posMs)
}

func (b *Bridge) GetElementAttrRsp(addr string, attrs map[int]string) error {
	wire := make(map[int32]string, len(attrs))
	for id, v := range attrs {
		wire[int32(id)] = v
	}
	return b.call("GetElementAttrRsp", addr, wire)
}

func (b *Bridge) SetVolume(volume int, addr string) error {
	return b.call("SetVolume", int32(volume), addr)
}

func (b *Bridge) SetAddressedPlayerRsp(addr string, status int) error {
	return b.call("SetAddressedPlayerRsp", addr, int32(status))
}

func (b *Bridge) SetBrowsedPlayerRsp(addr string, status int, depth byte, numItems int, folders []string) error {
	if folders == nil {
		folders = []string{}
	}
	return b.call("SetBrowsedPlayerRsp", addr, int32(status), depth, int32(numItems), folders)
}

func (b *Bridge) MediaPlayerListRsp(addr string, status int, uidCounter uint16, items []avrcp.PlayerListItem) error {
	type wireItem struct {
		ID         int32
		Type       byte
		SubType    int32
		PlayStatus byte
		Features   []byte
		Name       string
	}
	wire := make([]wireItem, 0, len(items))
	for _, it := range items {
		wire = append(wire, wireItem{
			ID:         int32(it.ID),
			Type:       it.Type,
			SubType:    int32(it.SubType),
			PlayStatus: it.PlayStatus,
			Features:   it.Features[:],
			Name:       it.Name,
		})
	}
	return b.call("MediaPlayerListRsp", addr, int32(status), uidCounter, wire)
}

func (b *Bridge) GetTotalNumOfItemsRsp(addr string, status int, uidCounter uint16, numItems int) error {
	return b.call("GetTotalNumOfItemsRsp", addr, int32(status), uidCounter, uint32(numItems))
}

func (b *Bridge) PlayItemRsp(addr string, status int) error {
	return b.call("PlayItemRsp", addr, int32(status))
}

func (b *Bridge) SearchRsp(addr string, status int, uidCounter uint16, numItems int) error {
	return b.call("SearchRsp", addr, int32(status), uidCounter, uint32(numItems))
}

func (b *Bridge) AddToNowPlayingRsp(addr string, status int) error {
	return b.call("AddToNowPlayingRsp", addr, int32(status))
}

// avrcp.MediaSession

func (b *Bridge) PlaybackState() avrcp.PlayState {
	var status byte
	var posMs int64
	if err := b.obj.Call(halIface+".GetPlaybackState", 0).Store(&status, &posMs); err != nil {
		log.Printf("BRIDGE: GetPlaybackState failed: %v", err)
		return avrcp.PlayState{Status: avrcp.PlayStatusStopped, PositionMs: -1}
	}
	return avrcp.PlayState{Status: status, PositionMs: posMs}
}

func (b *Bridge) Metadata() avrcp.MediaAttributes {
	var title, artist, album, genre string
	var trackNum, totalTracks int32
	var playingTimeMs int64
	err := b.obj.Call(halIface+".GetMetadata", 0).Store(
		&title, &artist, &album, &genre, &trackNum, &totalTracks, &playingTimeMs)
	if err != nil {
		log.Printf("BRIDGE: GetMetadata failed: %v", err)
		return avrcp.MediaAttributes{}
	}
	return avrcp.MediaAttributes{
		Exists:        title != "" || artist != "" || album != "",
		Title:         title,
		Artist:        artist,
		Album:         album,
		Genre:         genre,
		TrackNumber:   int64(trackNum),
		TotalTracks:   int64(totalTracks),
		PlayingTimeMs: playingTimeMs,
	}
}

func (b *Bridge) SongLengthMs() int64 {
	return b.Metadata().PlayingTimeMs
}

func (b *Bridge) DispatchMediaKey(key int, pressed bool) {
	if err := b.call("DispatchMediaKey", int32(key), pressed); err != nil {
		log.Printf("BRIDGE: DispatchMediaKey failed: %v", err)
	}
}

// avrcp.AudioRouting

func (b *Bridge) StreamVolume() int {
	var v int32
	if err := b.obj.Call(halIface+".GetStreamVolume", 0).Store(&v); err != nil {
		log.Printf("BRIDGE: GetStreamVolume failed: %v", err)
		return 0
	}
	return int(v)
}

func (b *Bridge) MaxStreamVolume() int {
	var v int32
	if err := b.obj.Call(halIface+".GetMaxStreamVolume", 0).Store(&v); err != nil {
		log.Printf("BRIDGE: GetMaxStreamVolume failed: %v", err)
		return 0
	}
	return int(v)
}

func (b *Bridge) SetStreamVolume(volume int, showUI bool) {
	if err := b.call("SetStreamVolume", int32(volume), showUI); err != nil {
		log.Printf("BRIDGE: SetStreamVolume failed: %v", err)
	}
}

func (b *Bridge) IsMusicActive() bool {
	var active bool
	if err := b.obj.Call(halIface+".IsMusicActive", 0).Store(&active); err != nil {
		log.Printf("BRIDGE: IsMusicActive failed: %v", err)
		return false
	}
	return active
}

func (b *Bridge) SetAbsoluteVolumeSupported(supported bool, initialVolume int) {
	if err := b.call("SetAbsoluteVolumeSupported", supported, int32(initialVolume)); err != nil {
		log.Printf("BRIDGE: SetAbsoluteVolumeSupported failed: %v", err)
	}
}
