package avrcp

import (
	"log"
	"time"
)

// Passthrough command arbitration. Carkits are chatty: they repeat
// releases, resend PLAY while music is already playing, and race their
// own commands against our notifications. Everything that reaches the
// local media session has been filtered here first.

const keyLogSize = 20

type keyLogEntry struct {
	When       time.Time
	Addr       string
	Key        int
	Pressed    bool
	Dispatched bool
}

// keyLogRing keeps the last few passthrough decisions for Dump.
type keyLogRing struct {
	entries [keyLogSize]keyLogEntry
	next    int
	count   int
}

func (r *keyLogRing) add(e keyLogEntry) {
	r.entries[r.next] = e
	r.next = (r.next + 1) % keyLogSize
	if r.count < keyLogSize {
		r.count++
	}
}

// snapshot returns entries oldest first.
func (r *keyLogRing) snapshot() []keyLogEntry {
	out := make([]keyLogEntry, 0, r.count)
	start := r.next - r.count
	if start < 0 {
		start += keyLogSize
	}
	for i := 0; i < r.count; i++ {
		out = append(out, r.entries[(start+i)%keyLogSize])
	}
	return out
}

// HandlePassthrough feeds a passthrough operation from the remote in.
func (m *Manager) HandlePassthrough(addr string, op, state int) error {
	return m.disp.Enqueue("passthrough", func() error {
		m.handlePassthrough(addr, op, state)
		return nil
	})
}

func (m *Manager) handlePassthrough(addr string, op, state int) {
	key := passthroughToKey(op)
	pressed := state == KeyStatePress
	s := m.slots.Slot(addr)
	if s == nil {
		log.Printf("KEY: passthrough op %#x from unknown device %s", op, addr)
		return
	}
	if key == KeyUnknown {
		log.Printf("KEY: passthrough op %#x from %s has no mapping, dropped", op, addr)
		return
	}
	entry := keyLogEntry{When: time.Now(), Addr: addr, Key: key, Pressed: pressed}

	if !s.Active {
		if key == KeyPlay && pressed {
			// PLAY from a background carkit means the user switched
			// seats: hand the audio over. When music is already moving
			// the resume that follows the handoff must not double-play.
			log.Printf("KEY: PLAY from inactive %s, triggering handoff", addr)
			if m.currentPlayState.Status == PlayStatusPlaying {
				m.ignorePlay = true
			}
			m.setActiveDevice(addr)
		} else {
			log.Printf("KEY: %s from inactive device %s dropped", keyName(key), addr)
		}
		m.keyLog.add(entry)
		return
	}

	if m.ignorePlay {
		if key == KeyPlay {
			if !pressed {
				m.ignorePlay = false
			}
			log.Printf("KEY: ignoring PLAY from %s after handoff", addr)
			m.keyLog.add(entry)
			return
		}
		m.ignorePlay = false
	}

	switch key {
	case KeyVolumeUp, KeyVolumeDown:
		if pressed {
			dir := 1
			if key == KeyVolumeDown {
				dir = -1
			}
			v := m.audio.StreamVolume() + dir*m.volumeStep
			if v < 0 {
				v = 0
			}
			if v > m.audioStreamMax {
				v = m.audioStreamMax
			}
			m.audio.SetStreamVolume(v, true)
		}
		m.keyLog.add(entry)
		return
	case KeyMute:
		if pressed {
			m.audio.SetStreamVolume(0, true)
		}
		m.keyLog.add(entry)
		return
	}

	playing := m.currentPlayState.Status == PlayStatusPlaying
	if key == KeyPlay && pressed && playing &&
		(s.LastPassthroughKey == KeyUnknown || s.LastPassthroughKey == KeyPlay) {
		log.Printf("KEY: redundant PLAY from %s while playing, dropped", addr)
		m.keyLog.add(entry)
		return
	}
	if key == KeyPause && pressed && !playing &&
		(s.LastPassthroughKey == KeyUnknown || s.LastPassthroughKey == KeyPause) {
		log.Printf("KEY: redundant PAUSE from %s while not playing, dropped", addr)
		m.keyLog.add(entry)
		return
	}

	if key != KeyFastForward && key != KeyRewind && (m.fastForward || m.rewind) {
		// A transport key during a seek ends the seek.
		m.fastForward = false
		m.rewind = false
		s.KeyPressState = KeyStateRelease
	}

	if key == KeyFastForward || key == KeyRewind {
		if pressed {
			s.KeyPressState = KeyStatePress
			m.fastForward = key == KeyFastForward
			m.rewind = key == KeyRewind
		} else {
			if s.KeyPressState != KeyStatePress {
				log.Printf("KEY: repeated %s release from %s dropped", keyName(key), addr)
				m.keyLog.add(entry)
				return
			}
			s.KeyPressState = KeyStateRelease
			m.fastForward = false
			m.rewind = false
			// Seek releases don't produce a playback-state callback,
			// so the armed play-status notification fires here.
			if s.Armed(EvtPlayStatusChanged) {
				s.Notify[EvtPlayStatusChanged] = NotifyChanged
				m.rsp.RegisterNotificationRspPlayStatus(RspChanged, s.CurrentPlayState.Status, s.Addr)
				s.LastRspPlayStatus = int(s.CurrentPlayState.Status)
			}
		}
	}

	if (key == KeyPlay || key == KeyPause) && pressed {
		s.LastPassthroughKey = key
	}

	entry.Dispatched = true
	m.keyLog.add(entry)
	m.keysDispatched.Inc()
	log.Printf("KEY: dispatching %s (pressed=%t) from %s", keyName(key), pressed, addr)
	m.session.DispatchMediaKey(key, pressed)
}
