package avrcp

import (
	"errors"
	"time"
)

// NotifyState tracks where a notification registration sits in its
// lifecycle. A CHANGED response may only ever be emitted from
// NotifyInterim, and emitting it moves the state to NotifyChanged
// (disarmed) until the controller re-registers.
type NotifyState int

const (
	NotifyNone NotifyState = iota
	NotifyInterim
	NotifyChanged
)

func (s NotifyState) String() string {
	switch s {
	case NotifyNone:
		return "none"
	case NotifyInterim:
		return "interim"
	case NotifyChanged:
		return "changed"
	default:
		return "unknown"
	}
}

// Errors returned by session operations.
var (
	ErrNoSlot              = errors.New("avrcp: no free connection slot")
	ErrUnknownDevice       = errors.New("avrcp: device not connected")
	ErrInvalidPlayer       = errors.New("avrcp: invalid player id")
	ErrNoAvailablePlayers  = errors.New("avrcp: no available players")
	ErrNotSupported        = errors.New("avrcp: operation not supported")
	ErrMediaInUse          = errors.New("avrcp: media in use")
	ErrVolumeRangeExceeded = errors.New("avrcp: volume outside 0..127")
	ErrDispatcherStopped   = errors.New("avrcp: dispatcher stopped")
)

// PlayState is the projected playback state for one device or for the
// session as a whole. PositionMs is -1 when unknown.
type PlayState struct {
	Status     byte
	PositionMs int64
	UpdatedAt  time.Time
}

// DeviceFeature bits advertised by the remote on connect.
const (
	FeatMetadata  = 1 << 0
	FeatAbsVolume = 1 << 1
	FeatBrowse    = 1 << 2
	FeatAvrcp16   = 1 << 3
	FeatCoverArt  = 1 << 4
)

// DeviceSlot is the per-connection state record. All fields are owned
// by the dispatcher goroutine; nothing here is safe for concurrent
// access.
type DeviceSlot struct {
	Addr     string
	Name     string
	Occupied bool
	Active   bool
	TwsPlus  bool
	Features uint32

	// Generation increments on every connect into this slot so delayed
	// timer work can detect it is acting on a stale occupant.
	Generation uint64

	// Notification registration state per event id.
	Notify map[int]NotifyState

	// Playback projection.
	CurrentPlayState   PlayState
	LastRspPlayStatus  int // -1 until first response
	LastStateUpdate    time.Time
	PlayStatusTimedOut bool
	TracksPlayed       int

	// Play position reporting.
	PlaybackIntervalMs   int64
	NextPosMs            int64
	PrevPosMs            int64
	LastReportedPosition int64

	// PosSeq and PlayStatusSeq invalidate scheduled position and
	// play-status timers the same way VolSeq does for volume.
	PosSeq        uint64
	PlayStatusSeq uint64

	// Volume negotiation.
	AbsVolSupported      bool
	RemoteVolume         int // last volume the remote reported, -1 unknown
	InitialRemoteVolume  int
	LastRemoteVolume     int // last volume we sent to the remote
	LastLocalVolume      int
	LocalVolume          int // stream-index copy used to seed set requests
	LastSetVolume        int
	LastRequestedVolume  int // collapsed pending request, -1 when none
	LastDirection        int
	VolCmdSetInFlight    bool
	VolCmdAdjustInFlight bool
	AbsVolRetries        int
	BlacklistVolume      int

	// VolSeq increments on every outbound volume command so a stale
	// timeout timer can detect the command it guarded has already
	// resolved.
	VolSeq uint64

	// Player reporting. PendingAvailPlayers marks a player-set change
	// that happened while the slot was inactive; activation flushes it.
	ReportedPlayerID    int
	PendingAvailPlayers bool

	// Passthrough.
	LastPassthroughKey int
	KeyPressState      int
}

// Reset returns every field to its initial value. Called on disconnect
// and when a slot is first allocated.
func (s *DeviceSlot) Reset() {
	s.Addr = ""
	s.Name = ""
	s.Occupied = false
	s.Active = false
	s.TwsPlus = false
	s.Features = 0
	s.Notify = map[int]NotifyState{
		EvtPlayStatusChanged:   NotifyChanged,
		EvtTrackChanged:        NotifyChanged,
		EvtPlayPosChanged:      NotifyChanged,
		EvtAvailPlayersChanged: NotifyChanged,
		EvtAddrPlayerChanged:   NotifyChanged,
		EvtNowPlayingChanged:   NotifyChanged,
		EvtUIDsChanged:         NotifyChanged,
		EvtAppSettingsChanged:  NotifyChanged,
	}
	s.CurrentPlayState = PlayState{Status: PlayStatusStopped, PositionMs: -1}
	s.LastRspPlayStatus = -1
	s.LastStateUpdate = time.Time{}
	s.PlayStatusTimedOut = false
	s.TracksPlayed = 0
	s.PlaybackIntervalMs = 0
	s.NextPosMs = 0
	s.PrevPosMs = 0
	s.LastReportedPosition = -1
	s.PosSeq++
	s.PlayStatusSeq++
	s.AbsVolSupported = false
	s.RemoteVolume = -1
	s.InitialRemoteVolume = -1
	s.LastRemoteVolume = -1
	s.LastLocalVolume = -1
	s.LocalVolume = -1
	s.LastSetVolume = -1
	s.LastRequestedVolume = -1
	s.LastDirection = 0
	s.VolCmdSetInFlight = false
	s.VolCmdAdjustInFlight = false
	s.AbsVolRetries = 0
	s.BlacklistVolume = -1
	s.VolSeq++
	s.ReportedPlayerID = NoPlayerID
	s.PendingAvailPlayers = false
	s.LastPassthroughKey = KeyUnknown
	s.KeyPressState = KeyStateRelease
}

// Armed reports whether the given event is registered and waiting for a
// CHANGED response.
func (s *DeviceSlot) Armed(event int) bool {
	return s.Occupied && s.Notify[event] == NotifyInterim
}

// PlayerListItem is one row of a media-player-list browse response.
type PlayerListItem struct {
	ID         int
	Type       byte
	SubType    int
	PlayStatus byte
	Features   [16]byte
	Name       string
}

// Responder is the outbound native-stack surface. The bridge package
// implements it over D-Bus; tests implement it in memory.
type Responder interface {
	RegisterNotificationRspPlayStatus(rspType int, status byte, addr string) error
	RegisterNotificationRspTrackChange(rspType int, uid uint64, addr string) error
	RegisterNotificationRspPlayPos(rspType int, posMs uint32, addr string) error
	RegisterNotificationRspAddrPlayerChanged(rspType int, playerID int, uidCounter uint16, addr string) error
	RegisterNotificationRspAvailPlayersChanged(rspType int, addr string) error
	RegisterNotificationRspNowPlayingChanged(rspType int, addr string) error
	RegisterNotificationRspUIDsChanged(rspType int, uidCounter uint16, addr string) error
	RegisterNotificationRspAppSettingsChanged(rspType int, addr string) error
	GetPlayStatusRsp(addr string, status byte, songLenMs, posMs uint32) error
	GetElementAttrRsp(addr string, attrs map[int]string) error
	SetVolume(volume int, addr string) error
	SetAddressedPlayerRsp(addr string, status int) error
	SetBrowsedPlayerRsp(addr string, status int, depth byte, numItems int, folders []string) error
	MediaPlayerListRsp(addr string, status int, uidCounter uint16, items []PlayerListItem) error
	GetTotalNumOfItemsRsp(addr string, status int, uidCounter uint16, numItems int) error
	PlayItemRsp(addr string, status int) error
	SearchRsp(addr string, status int, uidCounter uint16, numItems int) error
	AddToNowPlayingRsp(addr string, status int) error
}

// MediaSession is the local media stack the daemon projects from.
type MediaSession interface {
	PlaybackState() PlayState
	Metadata() MediaAttributes
	SongLengthMs() int64
	DispatchMediaKey(key int, pressed bool)
}

// AudioRouting abstracts the local volume path.
type AudioRouting interface {
	StreamVolume() int
	MaxStreamVolume() int
	SetStreamVolume(volume int, showUI bool)
	IsMusicActive() bool
	SetAbsoluteVolumeSupported(supported bool, initialVolume int)
}

// Store persists per-device volume and the runtime absolute-volume
// blacklist across daemon restarts.
type Store interface {
	Volume(addr string) (int, bool)
	SetVolume(addr string, volume int) error
	Blacklisted(addr string) bool
	Blacklist(addr string) error
	Unblacklist(addr string) error
}
