package avrcp

import "log"

// Notification registration handling. Registering always answers with
// an INTERIM carrying the current value; the next change answers with
// exactly one CHANGED and disarms the event until the controller
// re-registers.

// Track UID conventions: the addressed-player queue always reports
// track 0 when a track is selected; "no track" is all 0xFF.
const (
	trackSelectedUID uint64 = 0
	noTrackUID       uint64 = 0xFFFFFFFFFFFFFFFF
)

// handleRegisterNotification runs on the dispatcher goroutine.
// param carries the playback interval in seconds for EvtPlayPosChanged
// and is ignored for everything else.
func (m *Manager) handleRegisterNotification(addr string, eventID, param int) {
	s := m.slots.Slot(addr)
	if s == nil {
		log.Printf("AVRCP: register notification %d from unknown device %s", eventID, addr)
		return
	}

	currStatus := s.CurrentPlayState.Status
	if m.fastForward {
		currStatus = PlayStatusFwdSeek
	}
	if m.rewind {
		currStatus = PlayStatusRevSeek
	}

	switch eventID {
	case EvtPlayStatusChanged:
		s.Notify[EvtPlayStatusChanged] = NotifyInterim
		s.PlayStatusSeq++
		s.PlayStatusTimedOut = false
		if HasPlayStateUpdateQuirk(s.Addr, s.Name) &&
			(currStatus == PlayStatusPaused || currStatus == PlayStatusStopped) &&
			m.audio.IsMusicActive() {
			// The carkit locks its UI to the interim value; report
			// PLAYING whenever audio is actually moving.
			currStatus = PlayStatusPlaying
		}
		switch {
		case s.LastRspPlayStatus != -1 && s.LastRspPlayStatus != int(currStatus):
			// The status moved since our last response. Answer the
			// registration with the stale value, then immediately fire
			// CHANGED with the fresh one.
			m.rsp.RegisterNotificationRspPlayStatus(RspInterim, byte(s.LastRspPlayStatus), s.Addr)
			s.Notify[EvtPlayStatusChanged] = NotifyChanged
			if !s.PlayStatusTimedOut {
				m.schedulePlayStatusTimeout(s)
			}
		case s.LastRspPlayStatus == -1 && currStatus == PlayStatusPlaying:
			// Fresh connection while music is already playing: report
			// STOPPED first so the carkit redraws on the CHANGED.
			m.rsp.RegisterNotificationRspPlayStatus(RspInterim, PlayStatusStopped, s.Addr)
			s.Notify[EvtPlayStatusChanged] = NotifyChanged
			if !s.PlayStatusTimedOut {
				m.schedulePlayStatusTimeout(s)
			}
		}
		m.rsp.RegisterNotificationRspPlayStatus(m.rspType(s, EvtPlayStatusChanged), currStatus, s.Addr)
		s.LastRspPlayStatus = int(currStatus)

	case EvtTrackChanged:
		s.Notify[EvtTrackChanged] = NotifyInterim
		m.sendTrackChangedRsp(s, true)

	case EvtPlayPosChanged:
		if param <= 0 {
			param = 1
		}
		interval := int64(param) * 1000
		if interval < m.posUpdateFloorMs {
			interval = m.posUpdateFloorMs
		}
		s.Notify[EvtPlayPosChanged] = NotifyInterim
		s.PlaybackIntervalMs = interval
		m.sendPlayPosNotification(s, true)

	case EvtAvailPlayersChanged:
		s.Notify[EvtAvailPlayersChanged] = NotifyInterim
		s.PendingAvailPlayers = false
		m.rsp.RegisterNotificationRspAvailPlayersChanged(RspInterim, s.Addr)

	case EvtAddrPlayerChanged:
		s.Notify[EvtAddrPlayerChanged] = NotifyInterim
		m.rsp.RegisterNotificationRspAddrPlayerChanged(RspInterim, m.players.AddressedID(), m.uidCounter, s.Addr)
		s.ReportedPlayerID = m.players.AddressedID()

	case EvtUIDsChanged:
		s.Notify[EvtUIDsChanged] = NotifyInterim
		m.rsp.RegisterNotificationRspUIDsChanged(RspInterim, m.uidCounter, s.Addr)

	case EvtNowPlayingChanged:
		s.Notify[EvtNowPlayingChanged] = NotifyInterim
		m.rsp.RegisterNotificationRspNowPlayingChanged(RspInterim, s.Addr)

	case EvtAppSettingsChanged:
		// Settings values are not stored here, but the REGISTER still
		// gets its INTERIM ack.
		s.Notify[EvtAppSettingsChanged] = NotifyInterim
		m.rsp.RegisterNotificationRspAppSettingsChanged(RspInterim, s.Addr)

	default:
		log.Printf("AVRCP: register notification for unsupported event %d from %s", eventID, addr)
	}
}

// rspType maps the slot's current registration state onto the wire
// response code for the event.
func (m *Manager) rspType(s *DeviceSlot, event int) int {
	if s.Notify[event] == NotifyInterim {
		return RspInterim
	}
	return RspChanged
}

// sendTrackChangedRsp emits the track-changed response. registering
// selects INTERIM; otherwise the event must be armed and CHANGED
// disarms it.
func (m *Manager) sendTrackChangedRsp(s *DeviceSlot, registering bool) {
	if !registering && s.Notify[EvtTrackChanged] != NotifyInterim {
		return
	}
	rspType := RspChanged
	s.Notify[EvtTrackChanged] = NotifyChanged
	if registering {
		rspType = RspInterim
		s.Notify[EvtTrackChanged] = NotifyInterim
	}
	uid := trackSelectedUID
	if !m.mediaAttrs.Exists {
		uid = noTrackUID
	}
	m.rsp.RegisterNotificationRspTrackChange(rspType, uid, s.Addr)
}

// schedulePlayStatusTimeout opens the window during which play-status
// responses keep preferring the last responded value over the truth.
func (m *Manager) schedulePlayStatusTimeout(s *DeviceSlot) {
	s.PlayStatusSeq++
	addr, seq := s.Addr, s.PlayStatusSeq
	m.disp.Delay("play-status-timeout", CmdTimeout, func() error {
		if cur := m.slots.Slot(addr); cur != nil && cur.PlayStatusSeq == seq {
			cur.PlayStatusTimedOut = true
		}
		return nil
	})
}
