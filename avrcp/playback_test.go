package avrcp

import (
	"testing"
	"time"
)

func TestInactiveSlotForcedPaused(t *testing.T) {
	e := newTestEnv(t)
	e.connect(t, addrA, "Car")
	e.connect(t, addrB, "Speaker")
	if err := e.mgr.SetActiveDevice(addrB); err != nil {
		t.Fatalf("SetActiveDevice failed: %v", err)
	}
	e.mgr.RegisterNotification(addrB, EvtPlayStatusChanged, 0)
	e.mgr.UpdatePlaybackState(PlayState{Status: PlayStatusPlaying, PositionMs: 0}, "")
	e.mgr.RegisterNotification(addrB, EvtPlayStatusChanged, 0)
	e.sync(t)

	// Audio moves to the other seat; the slot that last heard PLAYING
	// must be told PAUSED.
	if err := e.mgr.SetActiveDevice(addrA); err != nil {
		t.Fatalf("SetActiveDevice failed: %v", err)
	}
	e.mgr.UpdatePlaybackState(PlayState{Status: PlayStatusPlaying, PositionMs: 5000}, "")
	e.sync(t)

	r := e.rsp.lastNotify(EvtPlayStatusChanged)
	if r.rspType != RspChanged || r.status != PlayStatusPaused || r.addr != addrB {
		t.Errorf("got rspType=%d status=%d addr=%s, want changed paused for %s",
			r.rspType, r.status, r.addr, addrB)
	}
	e.on(t, func() {
		if got := e.mgr.slots.Slot(addrB).CurrentPlayState.Status; got != PlayStatusPaused {
			t.Errorf("background slot status = %d, want paused", got)
		}
		if got := e.mgr.slots.Slot(addrA).CurrentPlayState.Status; got != PlayStatusPlaying {
			t.Errorf("active slot status = %d, want playing", got)
		}
	})
}

func TestDeviceScopedStateUpdate(t *testing.T) {
	e := newTestEnv(t)
	e.connect(t, addrA, "Car")
	e.connect(t, addrB, "Speaker")

	e.mgr.UpdatePlaybackState(PlayState{Status: PlayStatusPlaying, PositionMs: 0}, addrA)
	e.sync(t)

	e.on(t, func() {
		if got := e.mgr.slots.Slot(addrA).CurrentPlayState.Status; got != PlayStatusPlaying {
			t.Errorf("scoped slot status = %d, want playing", got)
		}
		if got := e.mgr.slots.Slot(addrB).CurrentPlayState.Status; got != PlayStatusStopped {
			t.Errorf("other slot status = %d, want untouched stopped", got)
		}
	})
}

func TestQuirkDeviceKeepsPlayingWhileMusicActive(t *testing.T) {
	e := newTestEnv(t)
	quirkAddr := "BC:30:7E:00:00:01"
	e.connect(t, quirkAddr, "Head Unit")
	e.audio.mu.Lock()
	e.audio.musicActive = true
	e.audio.mu.Unlock()

	e.mgr.UpdatePlaybackState(PlayState{Status: PlayStatusPlaying, PositionMs: 0}, quirkAddr)
	e.mgr.UpdatePlaybackState(PlayState{Status: PlayStatusPaused, PositionMs: 1000}, quirkAddr)
	e.sync(t)

	e.on(t, func() {
		if got := e.mgr.slots.Slot(quirkAddr).CurrentPlayState.Status; got != PlayStatusPlaying {
			t.Errorf("slot status = %d, quirk device must keep playing while audio runs", got)
		}
	})
}

func TestPlayPositionDeadReckoning(t *testing.T) {
	e := newTestEnv(t)
	e.connect(t, addrA, "Car")

	e.on(t, func() {
		s := e.mgr.slots.Slot(addrA)
		m := e.mgr

		// Unknown position.
		s.CurrentPlayState = PlayState{Status: PlayStatusPaused, PositionMs: -1}
		if got := m.playPosition(s); got != -1 {
			t.Errorf("paused unknown position = %d, want -1", got)
		}
		s.CurrentPlayState.Status = PlayStatusPlaying
		if got := m.playPosition(s); got != 0 {
			t.Errorf("playing unknown position = %d, want 0", got)
		}

		// Elapsed wall time advances a playing position.
		m.currentPlayState.Status = PlayStatusPlaying
		m.mediaAttrs.PlayingTimeMs = 600000
		s.CurrentPlayState = PlayState{Status: PlayStatusPlaying, PositionMs: 1000}
		s.LastStateUpdate = time.Now().Add(-2 * time.Second)
		got := m.playPosition(s)
		if got < 3000 || got > 3500 {
			t.Errorf("dead-reckoned position = %d, want about 3000", got)
		}

		// Clamped to the song length.
		m.mediaAttrs.PlayingTimeMs = 2500
		if got := m.playPosition(s); got != 2500 {
			t.Errorf("position = %d, want clamped to 2500", got)
		}

		// A paused slot does not advance.
		s.CurrentPlayState = PlayState{Status: PlayStatusPaused, PositionMs: 1200}
		if got := m.playPosition(s); got != 1200 {
			t.Errorf("paused position = %d, want 1200", got)
		}
	})
}

func TestPlayPosChangedOnThresholdCrossing(t *testing.T) {
	e := newTestEnv(t)
	e.connect(t, addrA, "Car")
	e.mgr.RegisterNotification(addrA, EvtPlayPosChanged, 3)
	e.sync(t)
	before := e.rsp.notifyCount(EvtPlayPosChanged)

	e.mgr.UpdatePlaybackState(PlayState{Status: PlayStatusPlaying, PositionMs: 0}, "")
	e.sync(t)

	if got := e.rsp.notifyCount(EvtPlayPosChanged); got != before+1 {
		t.Fatalf("threshold crossing sent %d responses, want 1", got-before)
	}
	r := e.rsp.lastNotify(EvtPlayPosChanged)
	if r.rspType != RspChanged || r.posMs > 100 {
		t.Errorf("got rspType=%d pos=%d, want changed near 0", r.rspType, r.posMs)
	}
	e.on(t, func() {
		s := e.mgr.slots.Slot(addrA)
		if s.Armed(EvtPlayPosChanged) {
			t.Error("play-pos still armed after CHANGED")
		}
		if s.NextPosMs != s.LastReportedPosition+s.PlaybackIntervalMs {
			t.Errorf("NextPosMs = %d, want last+interval", s.NextPosMs)
		}
	})
}

func TestNoUnsolicitedPositionForStoppedSlot(t *testing.T) {
	e := newTestEnv(t)
	e.connect(t, addrA, "Car")
	e.mgr.RegisterNotification(addrA, EvtPlayPosChanged, 3)
	e.sync(t)
	before := e.rsp.notifyCount(EvtPlayPosChanged)

	// Still stopped with no position; the armed event must stay quiet.
	e.mgr.UpdatePlaybackState(PlayState{Status: PlayStatusStopped, PositionMs: -1}, "")
	e.sync(t)
	if got := e.rsp.notifyCount(EvtPlayPosChanged); got != before {
		t.Errorf("stopped slot sent %d unsolicited position responses", got-before)
	}
}

func TestGetPlayStatusPrefersLastResponse(t *testing.T) {
	e := newTestEnv(t)
	e.connect(t, addrA, "Car")
	e.mgr.RegisterNotification(addrA, EvtPlayStatusChanged, 0)
	e.mgr.UpdatePlaybackState(PlayState{Status: PlayStatusPlaying, PositionMs: 0}, "")
	e.sync(t)

	// The slot moves on without a response going out.
	e.on(t, func() {
		s := e.mgr.slots.Slot(addrA)
		s.CurrentPlayState.Status = PlayStatusPaused
		s.PlayStatusTimedOut = false
	})
	e.mgr.GetPlayStatus(addrA)
	e.sync(t)
	e.rsp.mu.Lock()
	got := e.rsp.playStatusRsps[len(e.rsp.playStatusRsps)-1]
	e.rsp.mu.Unlock()
	if got.status != PlayStatusPlaying {
		t.Errorf("status = %d inside the preference window, want last responded playing", got.status)
	}

	// Past the window the truth wins.
	e.on(t, func() {
		e.mgr.slots.Slot(addrA).PlayStatusTimedOut = true
	})
	e.mgr.GetPlayStatus(addrA)
	e.sync(t)
	e.rsp.mu.Lock()
	got = e.rsp.playStatusRsps[len(e.rsp.playStatusRsps)-1]
	e.rsp.mu.Unlock()
	if got.status != PlayStatusPaused {
		t.Errorf("status = %d after the window, want paused", got.status)
	}
}

func TestGetPlayStatusCarriesSongLength(t *testing.T) {
	e := newTestEnv(t)
	e.connect(t, addrA, "Car")
	e.mgr.UpdateMetadata(testAttrs())
	e.mgr.GetPlayStatus(addrA)
	e.sync(t)

	e.rsp.mu.Lock()
	got := e.rsp.playStatusRsps[len(e.rsp.playStatusRsps)-1]
	e.rsp.mu.Unlock()
	if got.songLen != uint32(testAttrs().PlayingTimeMs) {
		t.Errorf("songLen = %d, want %d", got.songLen, testAttrs().PlayingTimeMs)
	}
	if got.posMs != 0 {
		t.Errorf("posMs = %d, want 0 for an unknown position", got.posMs)
	}
}

func TestMetadataEqualShortCircuits(t *testing.T) {
	e := newTestEnv(t)
	e.connect(t, addrA, "Car")
	e.mgr.RegisterNotification(addrA, EvtTrackChanged, 0)
	e.sync(t)
	before := e.rsp.notifyCount(EvtTrackChanged)

	e.mgr.UpdateMetadata(testAttrs())
	e.mgr.UpdateMetadata(testAttrs())
	e.sync(t)

	if got := e.rsp.notifyCount(EvtTrackChanged); got != before+1 {
		t.Errorf("identical metadata sent %d track-changed responses, want 1", got-before)
	}
	e.on(t, func() {
		if got := e.mgr.slots.Slot(addrA).TracksPlayed; got != 1 {
			t.Errorf("TracksPlayed = %d, want 1", got)
		}
	})
}

func TestGetElementAttrTitleOnlyQuirk(t *testing.T) {
	e := newTestEnv(t)
	quirkAddr := "00:17:53:00:00:01"
	e.connect(t, quirkAddr, "Head Unit")
	e.mgr.UpdateMetadata(testAttrs())
	e.mgr.GetElementAttributes(quirkAddr, []int{AttrTitle, AttrArtist, AttrAlbum})
	e.sync(t)

	e.rsp.mu.Lock()
	got := e.rsp.attrRsps[len(e.rsp.attrRsps)-1]
	e.rsp.mu.Unlock()
	if got.attrs[AttrTitle] != testAttrs().Title {
		t.Errorf("title = %q, want %q", got.attrs[AttrTitle], testAttrs().Title)
	}
	if got.attrs[AttrArtist] != "" || got.attrs[AttrAlbum] != "" {
		t.Errorf("quirk device received artist=%q album=%q, want blank", got.attrs[AttrArtist], got.attrs[AttrAlbum])
	}
}
