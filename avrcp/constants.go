package avrcp

import "time"

// Wire-level constants. These match the btrc HAL enums and must not be
// renumbered.

// Response codes sent back on the control channel.
const (
	RspAccepted = 9
	RspRejected = 10
	RspChanged  = 13
	RspInterim  = 15
)

// Status codes for browse and control responses.
const (
	StatusNoError            = 0x04
	StatusInvalidDirection   = 0x07
	StatusNotADirectory      = 0x08
	StatusDoesNotExist       = 0x09
	StatusInternalError      = 0x03
	StatusInvalidScope       = 0x0a
	StatusRangeOutOfBounds   = 0x0b
	StatusUIDADirectory      = 0x0c
	StatusMediaInUse         = 0x0d
	StatusNowPlayingListFull = 0x0e
	StatusSearchNotSupported = 0x0f
	StatusSearchInProgress   = 0x10
	StatusInvalidPlayerID    = 0x11
	StatusPlayerNotBrowsable = 0x12
	StatusPlayerNotAddressed = 0x13
	StatusNoValidSearchRes   = 0x14
	StatusNoAvailablePlayers = 0x15
	StatusAddrPlayerChanged  = 0x16
)

// Notification event ids.
const (
	EvtPlayStatusChanged  = 1
	EvtTrackChanged       = 2
	EvtTrackReachedEnd    = 3
	EvtTrackReachedStart  = 4
	EvtPlayPosChanged     = 5
	EvtAppSettingsChanged = 8
	EvtNowPlayingChanged  = 9
	EvtAvailPlayersChanged = 0x0a
	EvtAddrPlayerChanged  = 0x0b
	EvtUIDsChanged        = 0x0c
	EvtVolumeChanged      = 0x0d
)

// Play status on the wire.
const (
	PlayStatusStopped byte = 0
	PlayStatusPlaying byte = 1
	PlayStatusPaused  byte = 2
	PlayStatusFwdSeek byte = 3
	PlayStatusRevSeek byte = 4
	PlayStatusError   byte = 255
)

// Media element attribute ids.
const (
	AttrTitle       = 1
	AttrArtist      = 2
	AttrAlbum       = 3
	AttrTrackNumber = 4
	AttrTotalTracks = 5
	AttrGenre       = 6
	AttrPlayingTime = 7
	AttrCoverArt    = 8
)

// Browse scopes.
const (
	ScopePlayerList byte = 0
	ScopeFileSystem byte = 1
	ScopeSearch     byte = 2
	ScopeNowPlaying byte = 3
)

// Key press states carried with passthrough operations.
const (
	KeyStatePress   = 0
	KeyStateRelease = 1
)

// Session-level constants.
const (
	// AbsVolMax is the AVRCP absolute volume ceiling (7 bits).
	AbsVolMax = 127

	// BaseVolStep is the smallest volume nudge used during retries.
	BaseVolStep = 1

	// MaxVolRetries bounds volume command retries before a device is
	// declared volume-unsupported.
	MaxVolRetries = 6

	// CmdTimeout is how long an outstanding volume command (and the
	// play-status response preference window) stays valid.
	CmdTimeout = 2 * time.Second

	// InvalidSlot marks an address with no slot.
	InvalidSlot = 0xFF

	// NoPlayerID means no addressed player.
	NoPlayerID = 0

	// NoTrackPosition is reported when no track is selected.
	NoTrackPosition = 0xFFFFFFFF

	// AbsVolFlagDelay defers the absolute-volume support update to the
	// audio router so a late device-disconnect notification cannot
	// clear the flag after we set it.
	AbsVolFlagDelay = 100 * time.Millisecond
)

// MaxConnections values supported by the slot table.
const (
	SingleConnection = 1
	DualConnections  = 2
)
