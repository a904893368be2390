package avrcp

import (
	"log"
	"time"
)

// Playback state projection. The session keeps one true state from the
// local media stack and projects a possibly different view per slot:
// inactive slots get forced PAUSED while another slot streams, and
// responses within CmdTimeout of the previous one prefer the previously
// responded status so carkits that race GetPlayStatus against their own
// passthrough commands don't see the state flap.

// UpdatePlaybackState feeds a new session play state in. device is the
// address the update is scoped to, or empty for a player-level change
// that fans out to every slot.
func (m *Manager) UpdatePlaybackState(state PlayState, device string) error {
	return m.disp.Enqueue("update-playback-state", func() error {
		m.updatePlaybackState(state, device)
		return nil
	})
}

func (m *Manager) updatePlaybackState(state PlayState, device string) {
	state.UpdatedAt = time.Now()
	if device == "" {
		m.updatePlayerStateAndPosition(state)
		return
	}
	s := m.slots.Slot(device)
	if s == nil {
		log.Printf("PLAYBACK: state change for not connected device %s", device)
		return
	}
	m.updatePlayStatusForSlot(s, state)
	if state.Status == PlayStatusPlaying {
		for _, o := range m.slots.Occupied() {
			if o != s && !o.Active && o.LastRspPlayStatus == int(PlayStatusPlaying) {
				m.updatePlayStatusForSlot(o, PlayState{
					Status:     PlayStatusPaused,
					PositionMs: -1,
					UpdatedAt:  state.UpdatedAt,
				})
			}
		}
	}
}

func (m *Manager) updatePlayerStateAndPosition(state PlayState) {
	m.currentPlayState = state
	m.lastStateUpdate = state.UpdatedAt
	for _, s := range m.slots.Occupied() {
		switch {
		case state.Status != PlayStatusPlaying || m.playStateUpdatable(s):
			m.updatePlayStatusForSlot(s, state)
		case s.LastRspPlayStatus == int(PlayStatusPlaying):
			// Single-stream arbitration: a slot that can't be playing
			// anymore gets told PAUSED.
			m.updatePlayStatusForSlot(s, PlayState{
				Status:     PlayStatusPaused,
				PositionMs: -1,
				UpdatedAt:  state.UpdatedAt,
			})
		}
	}
	for _, s := range m.slots.Occupied() {
		m.sendPlayPosNotification(s, false)
	}
	m.emit("play_state", map[string]interface{}{
		"status":   state.Status,
		"position": state.PositionMs,
	})
}

// playStateUpdatable reports whether the slot should receive a PLAYING
// update: active slots always, plus devices on the quirk list whose UI
// otherwise freezes.
func (m *Manager) playStateUpdatable(s *DeviceSlot) bool {
	if m.slots.Len() < DualConnections {
		return true
	}
	if !m.slots.AllOccupied() {
		return s.Active
	}
	return s.Active || HasPlayStateUpdateQuirk(s.Addr, s.Name)
}

func (m *Manager) updatePlayStatusForSlot(s *DeviceSlot, state PlayState) {
	newStatus := state.Status
	oldStatus := s.CurrentPlayState.Status
	if m.fastForward {
		newStatus = PlayStatusFwdSeek
	}
	if m.rewind {
		newStatus = PlayStatusRevSeek
	}
	if HasPlayStateUpdateQuirk(s.Addr, s.Name) &&
		(newStatus == PlayStatusPaused || newStatus == PlayStatusStopped) &&
		m.audio.IsMusicActive() {
		log.Printf("PLAYBACK: %s on play-state quirk list and audio active, not saving %d", s.Addr, newStatus)
		return
	}

	s.CurrentPlayState = state
	s.LastStateUpdate = state.UpdatedAt
	s.LastPassthroughKey = KeyUnknown

	if s.Armed(EvtPlayStatusChanged) && oldStatus != newStatus {
		s.Notify[EvtPlayStatusChanged] = NotifyChanged
		m.rsp.RegisterNotificationRspPlayStatus(RspChanged, newStatus, s.Addr)
		s.LastRspPlayStatus = int(newStatus)
		if !s.PlayStatusTimedOut {
			m.schedulePlayStatusTimeout(s)
		}
	}
}

// UpdateMetadata feeds the current track attributes in; an attribute
// change fires armed track-changed notifications.
func (m *Manager) UpdateMetadata(attrs MediaAttributes) error {
	return m.disp.Enqueue("update-metadata", func() error {
		m.updateMetadata(attrs)
		return nil
	})
}

func (m *Manager) updateMetadata(attrs MediaAttributes) {
	if attrs.Equal(m.mediaAttrs) {
		return
	}
	m.mediaAttrs = attrs
	m.songLengthMs = attrs.PlayingTimeMs
	for _, s := range m.slots.Occupied() {
		if s.Armed(EvtTrackChanged) {
			s.TracksPlayed++
			m.sendTrackChangedRsp(s, false)
		}
	}
	m.emit("track_changed", map[string]interface{}{
		"title":  attrs.Title,
		"artist": attrs.Artist,
		"album":  attrs.Album,
	})
}

// playPosition dead-reckons the slot's current position: last known
// position plus elapsed wall time while playing, clamped to the song
// length. Returns -1 when unknown.
func (m *Manager) playPosition(s *DeviceSlot) int64 {
	if s.CurrentPlayState.PositionMs == -1 {
		if s.CurrentPlayState.Status == PlayStatusPlaying {
			return 0
		}
		return -1
	}
	var pos int64
	if s.CurrentPlayState.Status == PlayStatusPlaying && !m.sessionPaused() {
		pos = time.Since(s.LastStateUpdate).Milliseconds() + s.CurrentPlayState.PositionMs
	} else if s.CurrentPlayState.Status == PlayStatusPlaying && HasPlayStateUpdateQuirk(s.Addr, s.Name) {
		pos = m.currentPlayState.PositionMs
	} else {
		pos = s.CurrentPlayState.PositionMs
	}
	if m.mediaAttrs.PlayingTimeMs >= 0 && pos > m.mediaAttrs.PlayingTimeMs {
		pos = m.mediaAttrs.PlayingTimeMs
	}
	return pos
}

func (m *Manager) sessionPaused() bool {
	switch m.currentPlayState.Status {
	case PlayStatusPaused, PlayStatusStopped:
		return true
	}
	return false
}

// sendPlayPosNotification emits or schedules a play-position report.
// requested means a fresh registration, which always answers.
func (m *Manager) sendPlayPosNotification(s *DeviceSlot, requested bool) {
	if !requested && s.Notify[EvtPlayPosChanged] != NotifyInterim {
		return
	}
	pos := m.playPosition(s)
	// Some remotes go into a bad state when sent 0xFFFFFFFF for a
	// non-playing state.
	if !requested && pos == -1 && s.CurrentPlayState.Status != PlayStatusPlaying {
		return
	}
	if requested || (s.LastReportedPosition != pos &&
		(pos >= s.NextPosMs || pos <= s.PrevPosMs)) {
		rspType := m.rspType(s, EvtPlayPosChanged)
		if !requested {
			s.Notify[EvtPlayPosChanged] = NotifyChanged
			rspType = RspChanged
		}
		wirePos := uint32(NoTrackPosition)
		if pos >= 0 {
			wirePos = uint32(pos)
		}
		m.rsp.RegisterNotificationRspPlayPos(rspType, wirePos, s.Addr)
		s.LastReportedPosition = pos
		if pos >= 0 {
			s.NextPosMs = pos + s.PlaybackIntervalMs
			s.PrevPosMs = pos - s.PlaybackIntervalMs
		} else {
			s.NextPosMs = -1
			s.PrevPosMs = -1
		}
	}

	s.PosSeq++ // supersede any earlier scheduled emission
	if s.Notify[EvtPlayPosChanged] == NotifyInterim &&
		s.CurrentPlayState.Status == PlayStatusPlaying && !m.sessionPaused() {
		delay := s.PlaybackIntervalMs
		if s.NextPosMs != -1 {
			base := pos
			if base < 0 {
				base = 0
			}
			delay = s.NextPosMs - base
		}
		if delay < 0 {
			delay = 0
		}
		addr, seq := s.Addr, s.PosSeq
		m.disp.Delay("play-pos-interval", time.Duration(delay)*time.Millisecond, func() error {
			if cur := m.slots.Slot(addr); cur != nil && cur.PosSeq == seq {
				m.sendPlayPosNotification(cur, false)
			}
			return nil
		})
	}
}

// handleGetPlayStatus answers a GetPlayStatus request. Within the
// response preference window the last responded status wins over the
// projected truth.
func (m *Manager) handleGetPlayStatus(addr string) {
	s := m.slots.Slot(addr)
	if s == nil {
		log.Printf("PLAYBACK: GetPlayStatus from unknown device %s", addr)
		return
	}
	status := s.CurrentPlayState.Status
	if m.fastForward {
		status = PlayStatusFwdSeek
	}
	if m.rewind {
		status = PlayStatusRevSeek
	}
	if !s.PlayStatusTimedOut && s.LastRspPlayStatus != -1 &&
		s.LastRspPlayStatus != int(status) {
		status = byte(s.LastRspPlayStatus)
	}
	pos := m.playPosition(s)
	// An unknown position reads as 0 in a GetPlayStatus response; the
	// no-position sentinel belongs to position notifications only.
	wirePos := uint32(0)
	if pos >= 0 {
		wirePos = uint32(pos)
	}
	songLen := uint32(0)
	if m.songLengthMs > 0 {
		songLen = uint32(m.songLengthMs)
	}
	m.rsp.GetPlayStatusRsp(addr, status, songLen, wirePos)
}

// handleGetElementAttr answers a GetElementAttributes request.
func (m *Manager) handleGetElementAttr(addr string, ids []int) {
	m.rsp.GetElementAttrRsp(addr, m.mediaAttrs.Response(ids, HasMediaAttrQuirk(addr)))
}
