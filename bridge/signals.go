package bridge

import (
	"fmt"
	"log"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/usenocturne/avrcpd/avrcp"
)

// handleSignals is the inbound pump: every AVRCP request the native
// stack forwards arrives here and is handed to the session manager.
func (b *Bridge) handleSignals() {
	sigChan := make(chan *dbus.Signal, 32)
	b.conn.Signal(sigChan)

	for sig := range sigChan {
		select {
		case <-b.stopChan:
			return
		default:
		}
		if !strings.HasPrefix(sig.Name, halIface+".") {
			continue
		}
		name := strings.TrimPrefix(sig.Name, halIface+".")
		if err := b.dispatch(name, sig.Body); err != nil {
			log.Printf("BRIDGE: %s: %v", name, err)
		}
	}
}

func (b *Bridge) dispatch(name string, body []interface{}) error {
	switch name {
	case "DeviceConnected":
		addr, ok1 := str(body, 0)
		devName, ok2 := str(body, 1)
		tws, ok3 := boolean(body, 2)
		features, ok4 := num(body, 3)
		if !(ok1 && ok2 && ok3 && ok4) {
			return errBody(name, body)
		}
		return b.mgr.Connect(addr, devName, tws, uint32(features))

	case "DeviceDisconnected":
		addr, ok := str(body, 0)
		if !ok {
			return errBody(name, body)
		}
		return b.mgr.Disconnect(addr)

	case "ActiveDeviceChanged":
		addr, ok := str(body, 0)
		if !ok {
			return errBody(name, body)
		}
		return b.mgr.SetActiveDevice(addr)

	case "RegisterNotification":
		addr, ok1 := str(body, 0)
		event, ok2 := num(body, 1)
		param, ok3 := num(body, 2)
		if !(ok1 && ok2 && ok3) {
			return errBody(name, body)
		}
		return b.mgr.RegisterNotification(addr, int(event), int(param))

	case "GetPlayStatus":
		addr, ok := str(body, 0)
		if !ok {
			return errBody(name, body)
		}
		return b.mgr.GetPlayStatus(addr)

	case "GetElementAttributes":
		addr, ok := str(body, 0)
		if !ok || len(body) < 2 {
			return errBody(name, body)
		}
		raw, ok := body[1].([]int32)
		if !ok {
			return errBody(name, body)
		}
		ids := make([]int, len(raw))
		for i, id := range raw {
			ids[i] = int(id)
		}
		return b.mgr.GetElementAttributes(addr, ids)

	case "VolumeChanged":
		addr, ok1 := str(body, 0)
		vol, ok2 := num(body, 1)
		ctype, ok3 := num(body, 2)
		if !(ok1 && ok2 && ok3) {
			return errBody(name, body)
		}
		return b.mgr.VolumeChanged(addr, int(vol), int(ctype))

	case "Passthrough":
		addr, ok1 := str(body, 0)
		op, ok2 := num(body, 1)
		state, ok3 := num(body, 2)
		if !(ok1 && ok2 && ok3) {
			return errBody(name, body)
		}
		return b.mgr.HandlePassthrough(addr, int(op), int(state))

	case "SetAddressedPlayer":
		addr, ok1 := str(body, 0)
		id, ok2 := num(body, 1)
		if !(ok1 && ok2) {
			return errBody(name, body)
		}
		return b.mgr.SetAddressedPlayer(addr, int(id))

	case "SetBrowsedPlayer":
		addr, ok1 := str(body, 0)
		id, ok2 := num(body, 1)
		if !(ok1 && ok2) {
			return errBody(name, body)
		}
		return b.mgr.SetBrowsedPlayer(addr, int(id))

	case "GetFolderItems":
		addr, ok1 := str(body, 0)
		scope, ok2 := num(body, 1)
		start, ok3 := num(body, 2)
		end, ok4 := num(body, 3)
		if !(ok1 && ok2 && ok3 && ok4) {
			return errBody(name, body)
		}
		return b.mgr.GetFolderItems(addr, byte(scope), int(start), int(end))

	case "GetTotalNumOfItems":
		addr, ok1 := str(body, 0)
		scope, ok2 := num(body, 1)
		if !(ok1 && ok2) {
			return errBody(name, body)
		}
		return b.mgr.GetTotalNumOfItems(addr, byte(scope))

	case "PlayItem":
		addr, ok1 := str(body, 0)
		scope, ok2 := num(body, 1)
		uid, ok3 := num(body, 2)
		if !(ok1 && ok2 && ok3) {
			return errBody(name, body)
		}
		return b.mgr.PlayItem(addr, byte(scope), uint64(uid))

	case "Search":
		addr, ok1 := str(body, 0)
		text, ok2 := str(body, 1)
		if !(ok1 && ok2) {
			return errBody(name, body)
		}
		return b.mgr.Search(addr, text)

	case "AddToNowPlaying":
		addr, ok1 := str(body, 0)
		scope, ok2 := num(body, 1)
		uid, ok3 := num(body, 2)
		if !(ok1 && ok2 && ok3) {
			return errBody(name, body)
		}
		return b.mgr.AddToNowPlaying(addr, byte(scope), uint64(uid))

	case "PlaybackStateChanged":
		status, ok1 := num(body, 0)
		pos, ok2 := num(body, 1)
		addr, ok3 := str(body, 2) // empty for player-level changes
		if !(ok1 && ok2 && ok3) {
			return errBody(name, body)
		}
		return b.mgr.UpdatePlaybackState(avrcp.PlayState{
			Status:     byte(status),
			PositionMs: pos,
		}, addr)

	case "MetadataChanged":
		if len(body) < 7 {
			return errBody(name, body)
		}
		title, ok1 := str(body, 0)
		artist, ok2 := str(body, 1)
		album, ok3 := str(body, 2)
		genre, ok4 := str(body, 3)
		trackNum, ok5 := num(body, 4)
		totalTracks, ok6 := num(body, 5)
		lengthMs, ok7 := num(body, 6)
		if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6 && ok7) {
			return errBody(name, body)
		}
		return b.mgr.UpdateMetadata(avrcp.MediaAttributes{
			Exists:        title != "" || artist != "" || album != "",
			Title:         title,
			Artist:        artist,
			Album:         album,
			Genre:         genre,
			TrackNumber:   int64(trackNum),
			TotalTracks:   int64(totalTracks),
			PlayingTimeMs: lengthMs,
		})

	case "PlayersChanged":
		if len(body) < 1 {
			return errBody(name, body)
		}
		names, ok := body[0].([]string)
		if !ok {
			return errBody(name, body)
		}
		items := make([]avrcp.PlayerListItem, 0, len(names))
		for _, n := range names {
			items = append(items, avrcp.PlayerListItem{Type: 1, Name: n})
		}
		return b.mgr.UpdatePlayers(items)

	case "LocalVolumeChanged":
		vol, ok := num(body, 0)
		if !ok {
			return errBody(name, body)
		}
		return b.mgr.SetAbsoluteVolume(int(vol))

	default:
		log.Printf("BRIDGE: unhandled signal %s", name)
		return nil
	}
}

// str, boolean and num pull loosely typed D-Bus body members out. The
// HAL shim is not strict about its integer widths, so num accepts any
// of them.
func str(body []interface{}, i int) (string, bool) {
	if i >= len(body) {
		return "", false
	}
	s, ok := body[i].(string)
	return s, ok
}

func boolean(body []interface{}, i int) (bool, bool) {
	if i >= len(body) {
		return false, false
	}
	v, ok := body[i].(bool)
	return v, ok
}

func num(body []interface{}, i int) (int64, bool) {
	if i >= len(body) {
		return 0, false
	}
	switch v := body[i].(type) {
	case byte:
		return int64(v), true
	case int16:
		return int64(v), true
	case uint16:
		return int64(v), true
	case int32:
		return int64(v), true
	case uint32:
		return int64(v), true
	case int64:
		return v, true
	case uint64:
		return int64(v), true
	default:
		return 0, false
	}
}

func errBody(name string, body []interface{}) error {
	return fmt.Errorf("unexpected body for %s (%d members)", name, len(body))
}
