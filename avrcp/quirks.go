package avrcp

import "strings"

// Carkit interoperability tables. Entries are OUI prefixes of the
// remote address or substrings of the advertised name, collected from
// field reports. Devices on the player-state-update list keep
// receiving play status updates even while inactive, because their UI
// locks up otherwise.

var playStateUpdateQuirkAddrs = []string{
	"BC:30:7E",
	"00:1E:43",
	"9C:DF:03",
	"00:0A:08",
	"00:04:79",
	"28:A1:83",
}

var playStateUpdateQuirkNames = []string{
	"Audi",
	"Porsche",
}

// mediaAttrQuirkAddrs lists head units that crash on non-blank
// artist/album strings. Attribute responses to them carry only the
// title.
var mediaAttrQuirkAddrs = []string{
	"00:17:53",
}

// HasPlayStateUpdateQuirk reports whether the device must receive play
// status updates regardless of which slot is active.
func HasPlayStateUpdateQuirk(addr, name string) bool {
	for _, prefix := range playStateUpdateQuirkAddrs {
		if strings.HasPrefix(strings.ToUpper(addr), prefix) {
			return true
		}
	}
	for _, n := range playStateUpdateQuirkNames {
		if name != "" && strings.Contains(name, n) {
			return true
		}
	}
	return false
}

// HasMediaAttrQuirk reports whether attribute responses to the device
// must be restricted to the title.
func HasMediaAttrQuirk(addr string) bool {
	for _, prefix := range mediaAttrQuirkAddrs {
		if strings.HasPrefix(strings.ToUpper(addr), prefix) {
			return true
		}
	}
	return false
}
