package avrcp

import "log"

// Media player registry. Player ids are handed out monotonically and
// never reused: a changed player set retires every id so a controller
// holding a stale id gets a clean rejection instead of the wrong
// player.

type PlayerRegistry struct {
	items       []PlayerListItem
	addressedID int
	lastUsedID  int
}

func NewPlayerRegistry() *PlayerRegistry {
	return &PlayerRegistry{addressedID: NoPlayerID}
}

func (r *PlayerRegistry) Len() int { return len(r.items) }

// AddressedID returns the currently addressed player id, NoPlayerID
// when none is addressed.
func (r *PlayerRegistry) AddressedID() int { return r.addressedID }

// Get returns the player with the given id.
func (r *PlayerRegistry) Get(id int) (PlayerListItem, bool) {
	for _, it := range r.items {
		if it.ID == id {
			return it, true
		}
	}
	return PlayerListItem{}, false
}

// Addressed returns the addressed player, or false when none.
func (r *PlayerRegistry) Addressed() (PlayerListItem, bool) {
	return r.Get(r.addressedID)
}

// Players returns the registry contents in id order.
func (r *PlayerRegistry) Players() []PlayerListItem {
	out := make([]PlayerListItem, len(r.items))
	copy(out, r.items)
	return out
}

// sameView reports whether the incoming list describes the same set of
// players, in order, with the same capabilities, as the registry
// holds. Feature bits are part of the view: a controller caches them
// against the player id, so a capability flip must retire the id.
// Ids on the incoming items are ignored.
func (r *PlayerRegistry) sameView(items []PlayerListItem) bool {
	if len(items) != len(r.items) {
		return false
	}
	for i, it := range items {
		if it.Name != r.items[i].Name || it.Type != r.items[i].Type ||
			it.SubType != r.items[i].SubType || it.Features != r.items[i].Features {
			return false
		}
	}
	return true
}

// Update replaces the registry contents. When the incoming list is the
// same view, play status is refreshed in place and ids survive.
// Otherwise every id is retired and the list gets fresh ids. Returns
// whether the set of players changed.
func (r *PlayerRegistry) Update(items []PlayerListItem) bool {
	if r.sameView(items) {
		for i := range items {
			r.items[i].PlayStatus = items[i].PlayStatus
		}
		return false
	}
	prevAddressed, hadAddressed := r.Addressed()
	r.items = make([]PlayerListItem, len(items))
	copy(r.items, items)
	r.addressedID = NoPlayerID
	for i := range r.items {
		r.lastUsedID++
		r.items[i].ID = r.lastUsedID
		if hadAddressed && r.items[i].Name == prevAddressed.Name {
			r.addressedID = r.items[i].ID
		}
	}
	if r.addressedID == NoPlayerID && len(r.items) > 0 {
		r.addressedID = r.items[0].ID
	}
	return true
}

// SetAddressed marks the given id as addressed. Returns false when the
// id is not in the registry.
func (r *PlayerRegistry) SetAddressed(id int) bool {
	if _, ok := r.Get(id); !ok {
		return false
	}
	r.addressedID = id
	return true
}

// UpdatePlayers feeds the current local player list in. The session
// assigns ids; ids on the items are ignored.
func (m *Manager) UpdatePlayers(items []PlayerListItem) error {
	return m.disp.Enqueue("update-players", func() error {
		m.updatePlayers(items)
		return nil
	})
}

func (m *Manager) updatePlayers(items []PlayerListItem) {
	prevAddressed := m.players.AddressedID()
	if !m.players.Update(items) {
		return
	}
	m.uidCounter++
	log.Printf("PLAYERS: player set changed, %d players, addressed %d", m.players.Len(), m.players.AddressedID())
	// Players are a global concept: unprompted CHANGED goes to the
	// active device only. Background slots hold the change until they
	// become active.
	for _, s := range m.slots.Occupied() {
		if !s.Armed(EvtAvailPlayersChanged) {
			continue
		}
		if !s.Active {
			s.PendingAvailPlayers = true
			continue
		}
		s.Notify[EvtAvailPlayersChanged] = NotifyChanged
		m.rsp.RegisterNotificationRspAvailPlayersChanged(RspChanged, s.Addr)
	}
	m.uidsChanged()
	if m.players.AddressedID() != prevAddressed {
		m.addressedPlayerChanged()
	}
	m.emit("players_changed", map[string]interface{}{
		"count":     m.players.Len(),
		"addressed": m.players.AddressedID(),
	})
}

// SetAddressedPlayerLocal switches the addressed player from the local
// side (the media stack's active session moved).
func (m *Manager) SetAddressedPlayerLocal(id int) error {
	return m.disp.Do("set-addressed-player-local", func() error {
		if !m.players.SetAddressed(id) {
			return ErrInvalidPlayer
		}
		m.uidCounter++
		m.uidsChanged()
		m.addressedPlayerChanged()
		return nil
	})
}

// uidsChanged notifies the active slot that the UID counter moved.
func (m *Manager) uidsChanged() {
	for _, s := range m.slots.Occupied() {
		if !s.Active || !s.Armed(EvtUIDsChanged) {
			continue
		}
		s.Notify[EvtUIDsChanged] = NotifyChanged
		m.rsp.RegisterNotificationRspUIDsChanged(RspChanged, m.uidCounter, s.Addr)
	}
}

// addressedPlayerChanged notifies armed slots. Inactive slots keep
// their stale ReportedPlayerID; activation flushes the change so a
// carkit in the background doesn't redraw over the active one.
func (m *Manager) addressedPlayerChanged() {
	for _, s := range m.slots.Occupied() {
		if !s.Active {
			continue
		}
		m.flushAddrPlayerChanged(s)
	}
}

// flushAvailPlayersChanged delivers a player-set change the slot missed
// while it was in the background.
func (m *Manager) flushAvailPlayersChanged(s *DeviceSlot) {
	if !s.PendingAvailPlayers {
		return
	}
	s.PendingAvailPlayers = false
	if !s.Armed(EvtAvailPlayersChanged) {
		return
	}
	s.Notify[EvtAvailPlayersChanged] = NotifyChanged
	m.rsp.RegisterNotificationRspAvailPlayersChanged(RspChanged, s.Addr)
}

// flushAddrPlayerChanged sends the addressed-player CHANGED to the slot
// if it is armed and its last reported id is stale, then follows with a
// track-changed so the controller refreshes what's playing.
func (m *Manager) flushAddrPlayerChanged(s *DeviceSlot) {
	id := m.players.AddressedID()
	if !s.Armed(EvtAddrPlayerChanged) || s.ReportedPlayerID == id {
		return
	}
	s.Notify[EvtAddrPlayerChanged] = NotifyChanged
	m.rsp.RegisterNotificationRspAddrPlayerChanged(RspChanged, id, m.uidCounter, s.Addr)
	s.ReportedPlayerID = id
	m.sendTrackChangedRsp(s, false)
}

// handleSetAddressedPlayer answers a controller's SetAddressedPlayer.
func (m *Manager) handleSetAddressedPlayer(addr string, id int) {
	status := StatusNoError
	switch {
	case m.players.Len() == 0:
		status = StatusNoAvailablePlayers
	case id == NoPlayerID || id == m.players.AddressedID():
		// The no-player sentinel and the already-addressed id are both
		// accepted without a switch.
	case !m.players.SetAddressed(id):
		status = StatusInvalidPlayerID
	default:
		m.uidCounter++
		m.uidsChanged()
		m.addressedPlayerChanged()
	}
	m.rsp.SetAddressedPlayerRsp(addr, status)
}

// handleSetBrowsedPlayer answers SetBrowsedPlayer. Browsing roots at
// the now-playing queue: depth 0, no folders.
func (m *Manager) handleSetBrowsedPlayer(addr string, id int) {
	if m.players.Len() == 0 {
		m.rsp.SetBrowsedPlayerRsp(addr, StatusNoAvailablePlayers, 0, 0, nil)
		return
	}
	if _, ok := m.players.Get(id); !ok {
		m.rsp.SetBrowsedPlayerRsp(addr, StatusInvalidPlayerID, 0, 0, nil)
		return
	}
	numItems := 0
	if m.mediaAttrs.Exists {
		numItems = 1
	}
	m.rsp.SetBrowsedPlayerRsp(addr, StatusNoError, 0, numItems, nil)
}

// handleGetFolderItems answers a browse listing. Only the player-list
// scope is served; a controller never sees more than the addressed
// player, and an empty registry gets a placeholder so strict carkits
// don't drop the link.
func (m *Manager) handleGetFolderItems(addr string, scope byte, start, end int) {
	if scope != ScopePlayerList {
		m.rsp.MediaPlayerListRsp(addr, StatusInvalidScope, m.uidCounter, nil)
		return
	}
	if start > end {
		m.rsp.MediaPlayerListRsp(addr, StatusRangeOutOfBounds, m.uidCounter, nil)
		return
	}
	items := []PlayerListItem{m.addressedOrPlaceholder()}
	m.rsp.MediaPlayerListRsp(addr, StatusNoError, m.uidCounter, items)
}

func (m *Manager) addressedOrPlaceholder() PlayerListItem {
	if p, ok := m.players.Addressed(); ok {
		p.PlayStatus = m.currentPlayState.Status
		return p
	}
	return PlayerListItem{
		ID:         NoPlayerID,
		Type:       1, // audio
		PlayStatus: PlayStatusStopped,
		Name:       "Dummy Player",
	}
}

// handleGetTotalNumOfItems counts items per scope: one player in the
// player list, one now-playing item when a track is selected.
func (m *Manager) handleGetTotalNumOfItems(addr string, scope byte) {
	switch scope {
	case ScopePlayerList:
		m.rsp.GetTotalNumOfItemsRsp(addr, StatusNoError, m.uidCounter, 1)
	case ScopeNowPlaying:
		n := 0
		if m.mediaAttrs.Exists {
			n = 1
		}
		m.rsp.GetTotalNumOfItemsRsp(addr, StatusNoError, m.uidCounter, n)
	default:
		m.rsp.GetTotalNumOfItemsRsp(addr, StatusInvalidScope, m.uidCounter, 0)
	}
}

// Item-level browsing past the player list isn't served; each request
// gets the matching rejection rather than silence so the controller
// can move on.

func (m *Manager) handlePlayItem(addr string, scope byte, uid uint64) {
	log.Printf("PLAYERS: PlayItem scope %d uid %d from %s rejected", scope, uid, addr)
	m.rsp.PlayItemRsp(addr, StatusInternalError)
}

func (m *Manager) handleSearch(addr string, text string) {
	log.Printf("PLAYERS: search %q from %s not supported", text, addr)
	m.rsp.SearchRsp(addr, StatusSearchNotSupported, m.uidCounter, 0)
}

func (m *Manager) handleAddToNowPlaying(addr string, scope byte, uid uint64) {
	log.Printf("PLAYERS: AddToNowPlaying scope %d uid %d from %s rejected", scope, uid, addr)
	m.rsp.AddToNowPlayingRsp(addr, StatusInternalError)
}
