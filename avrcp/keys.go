package avrcp

// Media key codes dispatched to the local media session.
const (
	KeyUnknown = 0
	KeyPlay    = 126
	KeyPause   = 127
	KeyStop    = 86
	KeyNext    = 87
	KeyPrevious = 88
	KeyFastForward = 90
	KeyRewind  = 89
	KeyRecord  = 130
	KeyEject   = 129
	KeyVolumeUp   = 24
	KeyVolumeDown = 25
	KeyMute    = 164
)

// AVRCP passthrough operation ids (AV/C subset the stack forwards).
const (
	OpSelect   = 0x00
	OpUp       = 0x01
	OpDown     = 0x02
	OpLeft     = 0x03
	OpRight    = 0x04
	OpRootMenu = 0x09
	OpContentsMenu = 0x0B
	OpFavoriteMenu = 0x0C
	OpExit     = 0x0D
	OpVolUp    = 0x41
	OpVolDown  = 0x42
	OpMute     = 0x43
	OpPlay     = 0x44
	OpStop     = 0x45
	OpPause    = 0x46
	OpRecord   = 0x47
	OpRewind   = 0x48
	OpFastForward = 0x49
	OpEject    = 0x4A
	OpForward  = 0x4B
	OpBackward = 0x4C
)

// passthroughToKey maps a passthrough operation onto a media key.
// Operations with no sensible local mapping return KeyUnknown and the
// arbiter drops them.
func passthroughToKey(op int) int {
	switch op {
	case OpPlay:
		return KeyPlay
	case OpPause:
		return KeyPause
	case OpStop:
		return KeyStop
	case OpForward:
		return KeyNext
	case OpBackward:
		return KeyPrevious
	case OpFastForward:
		return KeyFastForward
	case OpRewind:
		return KeyRewind
	case OpRecord:
		return KeyRecord
	case OpEject:
		return KeyEject
	case OpVolUp:
		return KeyVolumeUp
	case OpVolDown:
		return KeyVolumeDown
	case OpMute:
		return KeyMute
	default:
		return KeyUnknown
	}
}

func keyName(key int) string {
	switch key {
	case KeyPlay:
		return "PLAY"
	case KeyPause:
		return "PAUSE"
	case KeyStop:
		return "STOP"
	case KeyNext:
		return "NEXT"
	case KeyPrevious:
		return "PREVIOUS"
	case KeyFastForward:
		return "FAST_FORWARD"
	case KeyRewind:
		return "REWIND"
	case KeyRecord:
		return "RECORD"
	case KeyEject:
		return "EJECT"
	case KeyVolumeUp:
		return "VOLUME_UP"
	case KeyVolumeDown:
		return "VOLUME_DOWN"
	case KeyMute:
		return "MUTE"
	default:
		return "UNKNOWN"
	}
}
