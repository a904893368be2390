package avrcp

import (
	"log"
	"math"
)

// Absolute volume negotiation. The phone-side volume index lives in
// 0..audioStreamMax, the AVRCP side in 0..127. The two conversions are
// intentionally asymmetric (ceil out, round in) so a round trip never
// drifts downward.

func (m *Manager) localToRemote(volume int) int {
	v := int(math.Ceil(float64(volume) * AbsVolMax / float64(m.audioStreamMax)))
	if v < 0 {
		v = 0
	}
	if v > AbsVolMax {
		v = AbsVolMax
	}
	return v
}

func (m *Manager) remoteToLocal(absVol int) int {
	return int(math.Round(float64(absVol) * float64(m.audioStreamMax) / AbsVolMax))
}

// SetAbsoluteVolume asks every active absolute-volume device to move
// to the given local volume index. Called by the audio router when the
// user changes the stream volume.
func (m *Manager) SetAbsoluteVolume(volume int) error {
	if volume < 0 || volume > m.audioStreamMax {
		return ErrVolumeRangeExceeded
	}
	return m.disp.Enqueue("set-absolute-volume", func() error {
		m.setAbsoluteVolume(volume)
		return nil
	})
}

// AdjustVolume steps the active device volume by direction (+1/-1)
// volume steps.
func (m *Manager) AdjustVolume(direction int) error {
	return m.disp.Enqueue("adjust-volume", func() error {
		active := m.slots.Active()
		if active == nil || !active.AbsVolSupported {
			return nil
		}
		target := active.LocalVolume + direction*m.volumeStep
		if target < 0 {
			target = 0
		}
		if target > m.audioStreamMax {
			target = m.audioStreamMax
		}
		m.setAbsoluteVolume(target)
		return nil
	})
}

// setAbsoluteVolume runs on the dispatcher goroutine.
func (m *Manager) setAbsoluteVolume(volume int) {
	avrcpVolume := m.localToRemote(volume)
	for _, s := range m.slots.Occupied() {
		if !s.Active || !s.AbsVolSupported {
			continue
		}
		if s.VolCmdSetInFlight || s.VolCmdAdjustInFlight {
			// Collapse rapid volume changes: only the newest target is
			// kept while a command is outstanding.
			s.LastRequestedVolume = avrcpVolume
			log.Printf("VOL: command in flight for %s, cached target %d", s.Addr, avrcpVolume)
			continue
		}
		if s.InitialRemoteVolume == -1 {
			if !s.TwsPlus {
				log.Printf("VOL: %s never reported initial volume, blacklisting (vol %d)", s.Addr, volume)
				s.BlacklistVolume = volume
				m.blacklistDevice(s)
				break
			}
			log.Printf("VOL: TWS+ %s initial volume not notified yet", s.Addr)
			continue
		}
		if err := m.rsp.SetVolume(avrcpVolume, s.Addr); err != nil {
			log.Printf("VOL: SetVolume to %s failed: %v", s.Addr, err)
			continue
		}
		s.VolCmdSetInFlight = true
		s.LastRemoteVolume = avrcpVolume
		s.LastLocalVolume = volume
		s.LastRequestedVolume = -1
		m.scheduleVolTimeout(s)
	}
}

// scheduleVolTimeout arms the command timeout for the slot's current
// volume command. The timer is never cancelled; expiry revalidates the
// sequence number instead.
func (m *Manager) scheduleVolTimeout(s *DeviceSlot) {
	s.VolSeq++
	addr, seq := s.Addr, s.VolSeq
	m.disp.Delay("abs-vol-timeout", CmdTimeout, func() error {
		m.onVolTimeout(addr, seq)
		return nil
	})
}

func (m *Manager) onVolTimeout(addr string, seq uint64) {
	s := m.slots.Slot(addr)
	if s == nil {
		for _, o := range m.slots.Occupied() {
			o.VolCmdSetInFlight = false
			o.VolCmdAdjustInFlight = false
		}
		return
	}
	if s.VolSeq != seq || (!s.VolCmdSetInFlight && !s.VolCmdAdjustInFlight) {
		// The command this timer guarded already resolved.
		return
	}
	log.Printf("VOL: command to %s timed out (retry %d)", addr, s.AbsVolRetries)
	s.VolCmdSetInFlight = false
	s.VolCmdAdjustInFlight = false
	if s.AbsVolRetries >= MaxVolRetries {
		s.AbsVolRetries = 0
		m.blacklistDevice(s)
		return
	}
	s.AbsVolRetries++
	if err := m.rsp.SetVolume(s.LastRemoteVolume, s.Addr); err != nil {
		log.Printf("VOL: retry SetVolume to %s failed: %v", s.Addr, err)
		return
	}
	s.VolCmdSetInFlight = true
	m.scheduleVolTimeout(s)
}

// handleVolumeChanged processes a volume report from the remote:
// INTERIM/CHANGED for remote-initiated changes, ACCEPT/REJECTED as the
// resolution of our own set command. Runs on the dispatcher goroutine.
func (m *Manager) handleVolumeChanged(addr string, absVol int, ctype int) {
	s := m.slots.Slot(addr)
	if s == nil {
		log.Printf("VOL: volume change from unknown device %s", addr)
		return
	}
	// A slot holding a BlacklistVolume is blacklisted but still owed a
	// late initial report, which unblacklists it below.
	if (!s.Active && s.InitialRemoteVolume != -1) ||
		(!s.AbsVolSupported && s.BlacklistVolume == -1) {
		log.Printf("VOL: volume change from %s ignored", addr)
		return
	}
	absVol &= 0x7f

	// An outstanding command with a newer cached target resolves by
	// immediately sending the cached value.
	if (s.VolCmdSetInFlight || s.VolCmdAdjustInFlight) &&
		s.LastRequestedVolume != -1 && s.LastRequestedVolume != absVol {
		if err := m.rsp.SetVolume(s.LastRequestedVolume, s.Addr); err == nil {
			s.LastRemoteVolume = s.LastRequestedVolume
			s.LastRequestedVolume = -1
			s.LocalVolume = m.remoteToLocal(absVol)
			m.scheduleVolTimeout(s)
		}
		return
	}

	if ctype == RspAccepted || ctype == RspRejected {
		if !s.VolCmdSetInFlight && !s.VolCmdAdjustInFlight {
			log.Printf("VOL: unsolicited %d response from %s, ignored", ctype, addr)
			return
		}
		s.VolSeq++ // invalidate the pending timeout
		s.VolCmdSetInFlight = false
		s.VolCmdAdjustInFlight = false
		s.AbsVolRetries = 0
	}

	// A TWS+ earbud joining its already-negotiated pair inherits that
	// volume without a fresh negotiation.
	if ctype == RspInterim && m.slots.AllOccupied() && s.InitialRemoteVolume == -1 && s.TwsPlus {
		for _, o := range m.slots.Occupied() {
			if o != s && o.InitialRemoteVolume != -1 && o.TwsPlus {
				log.Printf("VOL: volume already set for TWS+ pair, inheriting for %s", s.Addr)
				s.InitialRemoteVolume = absVol
				s.RemoteVolume = absVol
				s.LocalVolume = m.remoteToLocal(absVol)
				break
			}
		}
	}

	volIndex := m.remoteToLocal(absVol)
	showUI := true
	if s.InitialRemoteVolume == -1 {
		showUI = false
		s.InitialRemoteVolume = absVol
		if s.BlacklistVolume != -1 {
			// The device reported after all; take it back off the
			// blacklist and restore the volume we were holding.
			if err := m.store.Unblacklist(s.Addr); err != nil {
				log.Printf("VOL: unblacklist %s failed: %v", s.Addr, err)
			}
			restore := s.BlacklistVolume
			s.RemoteVolume = absVol
			s.LocalVolume = restore
			s.BlacklistVolume = -1
			s.AbsVolSupported = true
			m.setAbsoluteVolume(restore)
			return
		}
		if m.absVolThreshold > 0 && m.absVolThreshold < m.audioStreamMax && volIndex > m.absVolThreshold {
			log.Printf("VOL: remote initial volume too high: %d > %d", volIndex, m.absVolThreshold)
			s.RemoteVolume = absVol
			s.LocalVolume = volIndex
			s.LastRequestedVolume = -1
			m.setAbsoluteVolume(m.absVolThreshold)
			return
		}
	}

	switch {
	case s.LocalVolume != volIndex &&
		(ctype == RspChanged || ctype == RspInterim || ctype == RspAccepted):
		if ctype == RspAccepted {
			showUI = false
		}
		if !s.Active && (ctype == RspChanged || ctype == RspInterim) {
			log.Printf("VOL: not changing volume from inactive device %s", addr)
			return
		}
		s.LocalVolume = volIndex
		s.LastRequestedVolume = -1
		if s.LastLocalVolume != -1 && ctype == RspAccepted && s.LastLocalVolume != volIndex {
			// Remote moved further than requested: local and remote
			// volume steps differ.
			s.LastLocalVolume = s.LocalVolume
		}
		m.audio.SetStreamVolume(s.LocalVolume, showUI)
		s.RemoteVolume = absVol
		m.emit("volume_changed", map[string]interface{}{
			"address": s.Addr,
			"local":   s.LocalVolume,
			"remote":  absVol,
		})

	case s.LastRemoteVolume > 0 && s.LastRemoteVolume < AbsVolMax &&
		s.LocalVolume == volIndex && ctype == RspAccepted:
		// The remote accepted but didn't move. Nudge one step in the
		// direction we were heading and try again.
		if m.remoteToLocal(s.LastRemoteVolume) < s.LocalVolume {
			s.LastDirection = -1
		} else {
			s.LastDirection = 1
		}
		retry := s.LastRemoteVolume + s.LastDirection*BaseVolStep
		if retry < 0 {
			retry = 0
		}
		if retry > AbsVolMax {
			retry = AbsVolMax
		}
		log.Printf("VOL: %s didn't tune volume, retrying one step to %d", addr, retry)
		if err := m.rsp.SetVolume(retry, s.Addr); err == nil {
			s.LastRemoteVolume = retry
			s.VolCmdAdjustInFlight = true
			m.scheduleVolTimeout(s)
		}
		s.LastDirection = 0

	case ctype == RspRejected:
		log.Printf("VOL: set absolute volume rejected by %s", addr)
	}
}

// blacklistDevice marks the slot's device volume-unsupported and
// persists that on the runtime blacklist. TWS+ earbuds are exempt:
// their volume path is shared with the pair.
func (m *Manager) blacklistDevice(s *DeviceSlot) {
	if s.TwsPlus {
		log.Printf("VOL: not blacklisting TWS+ device %s", s.Addr)
		return
	}
	log.Printf("VOL: blacklisting %s for absolute volume", s.Addr)
	if err := m.store.Blacklist(s.Addr); err != nil {
		log.Printf("VOL: persist blacklist for %s failed: %v", s.Addr, err)
	}
	s.AbsVolSupported = false
	m.audio.SetAbsoluteVolumeSupported(false, s.LocalVolume)
	m.emit("volume_blacklisted", map[string]string{"address": s.Addr})
}

// seedVolume initializes the slot's local volume copy on activation
// from the persisted map, falling back to the current stream volume.
func (m *Manager) seedVolume(s *DeviceSlot) {
	if v, ok := m.store.Volume(s.Addr); ok {
		s.LocalVolume = v
		return
	}
	s.LocalVolume = m.audio.StreamVolume()
}

// storeVolumes persists the last known local volume of every slot.
// The active slot reads the live stream volume first.
func (m *Manager) storeVolumes() {
	for _, s := range m.slots.Occupied() {
		if s.LocalVolume == -1 {
			continue
		}
		if s.Active {
			s.LocalVolume = m.audio.StreamVolume()
		}
		if v, ok := m.store.Volume(s.Addr); !ok || v != s.LocalVolume {
			if err := m.store.SetVolume(s.Addr, s.LocalVolume); err != nil {
				log.Printf("VOL: persist volume for %s failed: %v", s.Addr, err)
			}
		}
	}
}
