package avrcp

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"go.uber.org/atomic"
)

// Config carries the tunables of a session manager.
type Config struct {
	// MaxConnections is how many simultaneous control channels are
	// served (1 or 2).
	MaxConnections int

	// QueueDepth bounds the dispatcher request queue.
	QueueDepth int

	// VolumeStep is how many local volume indexes one volume key press
	// moves.
	VolumeStep int

	// AbsVolThreshold caps the local volume adopted from a remote's
	// first volume report. 0 disables the clamp.
	AbsVolThreshold int

	// PosUpdateFloorMs floors the play-position reporting interval so
	// an aggressive controller can't ask for sub-second updates.
	PosUpdateFloorMs int64
}

// DefaultConfig returns the values used when the config file leaves a
// field out.
func DefaultConfig() Config {
	return Config{
		MaxConnections:   DualConnections,
		QueueDepth:       DefaultQueueDepth,
		VolumeStep:       1,
		AbsVolThreshold:  0,
		PosUpdateFloorMs: 3000,
	}
}

// EventSink receives session events for fan-out to websocket clients.
type EventSink interface {
	Broadcast(event string, payload interface{})
}

// Manager is the AVRCP target-role session manager. All mutable state
// is owned by the dispatcher goroutine; the exported methods are the
// only way in.
type Manager struct {
	disp    *Dispatcher
	slots   *SlotTable
	players *PlayerRegistry
	rsp     Responder
	session MediaSession
	audio   AudioRouting
	store   Store
	events  EventSink

	audioStreamMax   int
	volumeStep       int
	absVolThreshold  int
	posUpdateFloorMs int64

	uidCounter       uint16
	mediaAttrs       MediaAttributes
	songLengthMs     int64
	currentPlayState PlayState
	lastStateUpdate  time.Time

	fastForward bool
	rewind      bool
	ignorePlay  bool

	keyLog         keyLogRing
	keysDispatched atomic.Uint64
}

// NewManager wires a session manager. events may be nil.
func NewManager(cfg Config, rsp Responder, session MediaSession, audio AudioRouting, store Store, events EventSink) *Manager {
	def := DefaultConfig()
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = def.MaxConnections
	}
	if cfg.QueueDepth == 0 {
		cfg.QueueDepth = def.QueueDepth
	}
	if cfg.VolumeStep == 0 {
		cfg.VolumeStep = def.VolumeStep
	}
	if cfg.PosUpdateFloorMs == 0 {
		cfg.PosUpdateFloorMs = def.PosUpdateFloorMs
	}
	m := &Manager{
		disp:             NewDispatcher(cfg.QueueDepth),
		slots:            NewSlotTable(cfg.MaxConnections),
		players:          NewPlayerRegistry(),
		rsp:              rsp,
		session:          session,
		audio:            audio,
		store:            store,
		events:           events,
		volumeStep:       cfg.VolumeStep,
		absVolThreshold:  cfg.AbsVolThreshold,
		posUpdateFloorMs: cfg.PosUpdateFloorMs,
		currentPlayState: PlayState{Status: PlayStatusStopped, PositionMs: -1},
	}
	m.audioStreamMax = audio.MaxStreamVolume()
	if m.audioStreamMax <= 0 {
		m.audioStreamMax = 1
	}
	return m
}

// Start launches the worker and seeds the session view from the local
// media stack.
func (m *Manager) Start() {
	m.disp.Start()
	m.disp.Enqueue("seed-session", func() error {
		m.mediaAttrs = m.session.Metadata()
		m.songLengthMs = m.session.SongLengthMs()
		state := m.session.PlaybackState()
		state.UpdatedAt = time.Now()
		m.currentPlayState = state
		m.lastStateUpdate = state.UpdatedAt
		return nil
	})
}

// Stop persists volumes and shuts the worker down.
func (m *Manager) Stop() {
	if err := m.disp.Do("store-volumes", func() error {
		m.storeVolumes()
		return nil
	}); err != nil {
		log.Printf("AVRCP: volume persistence on shutdown failed: %v", err)
	}
	m.disp.Stop()
}

func (m *Manager) emit(event string, payload interface{}) {
	if m.events != nil {
		m.events.Broadcast(event, payload)
	}
}

// Connect binds a remote control channel to a slot.
func (m *Manager) Connect(addr, name string, twsPlus bool, features uint32) error {
	return m.disp.Do("connect", func() error {
		s, err := m.slots.Connect(addr, name, twsPlus, features)
		if err != nil {
			return err
		}
		if s.AbsVolSupported && m.store.Blacklisted(addr) {
			log.Printf("AVRCP: %s is volume-blacklisted, disabling absolute volume", addr)
			s.AbsVolSupported = false
		}
		m.seedVolume(s)
		log.Printf("AVRCP: connected %s (%s) tws=%t features=%#x absvol=%t", addr, name, twsPlus, features, s.AbsVolSupported)
		if m.slots.Active() == nil {
			m.setActiveDevice(addr)
		}
		m.emit("device_connected", map[string]interface{}{
			"address": addr,
			"name":    name,
			"tws":     twsPlus,
		})
		return nil
	})
}

// Disconnect releases the slot bound to addr.
func (m *Manager) Disconnect(addr string) error {
	return m.disp.Do("disconnect", func() error {
		s := m.slots.Slot(addr)
		if s == nil {
			return ErrUnknownDevice
		}
		wasActive := s.Active
		if s.LocalVolume != -1 {
			vol := s.LocalVolume
			if wasActive {
				vol = m.audio.StreamVolume()
			}
			if err := m.store.SetVolume(addr, vol); err != nil {
				log.Printf("AVRCP: persist volume for %s failed: %v", addr, err)
			}
		}
		if _, err := m.slots.Disconnect(addr); err != nil {
			return err
		}
		log.Printf("AVRCP: disconnected %s", addr)
		if wasActive {
			next := m.slots.Occupied()
			if len(next) > 0 {
				m.setActiveDevice(next[0].Addr)
			} else {
				m.audio.SetAbsoluteVolumeSupported(false, m.audio.StreamVolume())
			}
		}
		m.emit("device_disconnected", map[string]string{"address": addr})
		return nil
	})
}

// SetActiveDevice routes audio (and with it volume and playback
// projection) to addr's slot.
func (m *Manager) SetActiveDevice(addr string) error {
	return m.disp.Do("set-active-device", func() error {
		if m.slots.Slot(addr) == nil {
			return ErrUnknownDevice
		}
		m.setActiveDevice(addr)
		return nil
	})
}

// setActiveDevice runs on the dispatcher goroutine.
func (m *Manager) setActiveDevice(addr string) {
	prev := m.slots.Active()
	if prev != nil && prev.Addr != addr && !m.slots.TwsPair(prev.Addr, addr) {
		if prev.LocalVolume != -1 {
			prev.LocalVolume = m.audio.StreamVolume()
			if err := m.store.SetVolume(prev.Addr, prev.LocalVolume); err != nil {
				log.Printf("AVRCP: persist volume for %s failed: %v", prev.Addr, err)
			}
		}
	}
	target := m.slots.SetActive(addr)
	if target == nil {
		m.audio.SetAbsoluteVolumeSupported(false, m.audio.StreamVolume())
		return
	}
	log.Printf("AVRCP: active device now %s", addr)
	if target.LocalVolume == -1 {
		m.seedVolume(target)
	}
	m.audio.SetStreamVolume(target.LocalVolume, false)
	m.scheduleAbsVolumeFlag(target)

	// Flush notifications the slot missed while in the background.
	m.flushAvailPlayersChanged(target)
	m.flushAddrPlayerChanged(target)
	m.updatePlayStatusForSlot(target, m.currentPlayState)
	m.sendPlayPosNotification(target, false)

	m.emit("active_device", map[string]string{"address": addr})
}

// scheduleAbsVolumeFlag defers the absolute-volume support update so a
// disconnect racing the activation cannot leave the flag pointing at a
// gone device. Expiry revalidates the slot generation.
func (m *Manager) scheduleAbsVolumeFlag(s *DeviceSlot) {
	addr, gen, supported, vol := s.Addr, s.Generation, s.AbsVolSupported, s.LocalVolume
	m.disp.Delay("abs-vol-flag", AbsVolFlagDelay, func() error {
		cur := m.slots.Slot(addr)
		if cur == nil || cur.Generation != gen || !cur.Active {
			return nil
		}
		m.audio.SetAbsoluteVolumeSupported(supported, vol)
		return nil
	})
}

// Inbound control-channel requests. The bridge calls these from its
// signal loop; each hops onto the dispatcher goroutine.

func (m *Manager) RegisterNotification(addr string, eventID, param int) error {
	return m.disp.Enqueue("register-notification", func() error {
		m.handleRegisterNotification(addr, eventID, param)
		return nil
	})
}

func (m *Manager) GetPlayStatus(addr string) error {
	return m.disp.Enqueue("get-play-status", func() error {
		m.handleGetPlayStatus(addr)
		return nil
	})
}

func (m *Manager) GetElementAttributes(addr string, ids []int) error {
	return m.disp.Enqueue("get-element-attributes", func() error {
		m.handleGetElementAttr(addr, ids)
		return nil
	})
}

func (m *Manager) VolumeChanged(addr string, absVol, ctype int) error {
	return m.disp.Enqueue("volume-changed", func() error {
		m.handleVolumeChanged(addr, absVol, ctype)
		return nil
	})
}

func (m *Manager) SetAddressedPlayer(addr string, id int) error {
	return m.disp.Enqueue("set-addressed-player", func() error {
		m.handleSetAddressedPlayer(addr, id)
		return nil
	})
}

func (m *Manager) SetBrowsedPlayer(addr string, id int) error {
	return m.disp.Enqueue("set-browsed-player", func() error {
		m.handleSetBrowsedPlayer(addr, id)
		return nil
	})
}

func (m *Manager) GetFolderItems(addr string, scope byte, start, end int) error {
	return m.disp.Enqueue("get-folder-items", func() error {
		m.handleGetFolderItems(addr, scope, start, end)
		return nil
	})
}

func (m *Manager) GetTotalNumOfItems(addr string, scope byte) error {
	return m.disp.Enqueue("get-total-num-of-items", func() error {
		m.handleGetTotalNumOfItems(addr, scope)
		return nil
	})
}

func (m *Manager) PlayItem(addr string, scope byte, uid uint64) error {
	return m.disp.Enqueue("play-item", func() error {
		m.handlePlayItem(addr, scope, uid)
		return nil
	})
}

func (m *Manager) Search(addr, text string) error {
	return m.disp.Enqueue("search", func() error {
		m.handleSearch(addr, text)
		return nil
	})
}

func (m *Manager) AddToNowPlaying(addr string, scope byte, uid uint64) error {
	return m.disp.Enqueue("add-to-now-playing", func() error {
		m.handleAddToNowPlaying(addr, scope, uid)
		return nil
	})
}

// DeviceSnapshot is a read-only copy of one slot for the HTTP surface.
type DeviceSnapshot struct {
	Address         string            `json:"address"`
	Name            string            `json:"name"`
	Active          bool              `json:"active"`
	TwsPlus         bool              `json:"tws_plus"`
	AbsVolSupported bool              `json:"abs_vol_supported"`
	PlayStatus      byte              `json:"play_status"`
	PositionMs      int64             `json:"position_ms"`
	LocalVolume     int               `json:"local_volume"`
	RemoteVolume    int               `json:"remote_volume"`
	TracksPlayed    int               `json:"tracks_played"`
	Notifications   map[string]string `json:"notifications"`
}

// Snapshot is a consistent copy of the whole session.
type Snapshot struct {
	Devices         []DeviceSnapshot `json:"devices"`
	Track           MediaAttributes  `json:"track"`
	PlayStatus      byte             `json:"play_status"`
	PositionMs      int64            `json:"position_ms"`
	Players         []PlayerListItem `json:"players"`
	AddressedPlayer int              `json:"addressed_player"`
	UIDCounter      uint16           `json:"uid_counter"`
	KeysDispatched  uint64           `json:"keys_dispatched"`
	TasksProcessed  uint64           `json:"tasks_processed"`
}

var eventNames = map[int]string{
	EvtPlayStatusChanged:   "play_status",
	EvtTrackChanged:        "track",
	EvtPlayPosChanged:      "play_pos",
	EvtAppSettingsChanged:  "app_settings",
	EvtNowPlayingChanged:   "now_playing",
	EvtAvailPlayersChanged: "avail_players",
	EvtAddrPlayerChanged:   "addr_player",
}

// Snapshot returns a consistent view of the session, taken on the
// dispatcher goroutine.
func (m *Manager) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := m.disp.Do("snapshot", func() error {
		snap = Snapshot{
			Track:           m.mediaAttrs,
			PlayStatus:      m.currentPlayState.Status,
			PositionMs:      m.currentPlayState.PositionMs,
			Players:         m.players.Players(),
			AddressedPlayer: m.players.AddressedID(),
			UIDCounter:      m.uidCounter,
			KeysDispatched:  m.keysDispatched.Load(),
			TasksProcessed:  m.disp.Processed(),
		}
		for _, s := range m.slots.Occupied() {
			d := DeviceSnapshot{
				Address:         s.Addr,
				Name:            s.Name,
				Active:          s.Active,
				TwsPlus:         s.TwsPlus,
				AbsVolSupported: s.AbsVolSupported,
				PlayStatus:      s.CurrentPlayState.Status,
				PositionMs:      m.playPosition(s),
				LocalVolume:     s.LocalVolume,
				RemoteVolume:    s.RemoteVolume,
				TracksPlayed:    s.TracksPlayed,
				Notifications:   map[string]string{},
			}
			for ev, name := range eventNames {
				d.Notifications[name] = s.Notify[ev].String()
			}
			snap.Devices = append(snap.Devices, d)
		}
		return nil
	})
	return snap, err
}

// Dump renders the full session state as text for the debug endpoint.
func (m *Manager) Dump() (string, error) {
	var b strings.Builder
	err := m.disp.Do("dump", func() error {
		fmt.Fprintf(&b, "AVRCP session\n")
		fmt.Fprintf(&b, "  play status: %d position: %d song length: %d\n",
			m.currentPlayState.Status, m.currentPlayState.PositionMs, m.songLengthMs)
		fmt.Fprintf(&b, "  track: %s\n", m.mediaAttrs)
		fmt.Fprintf(&b, "  ff=%t rew=%t ignorePlay=%t uidCounter=%d\n",
			m.fastForward, m.rewind, m.ignorePlay, m.uidCounter)
		fmt.Fprintf(&b, "  keys dispatched: %d tasks processed: %d\n",
			m.keysDispatched.Load(), m.disp.Processed())
		fmt.Fprintf(&b, "players (addressed %d):\n", m.players.AddressedID())
		for _, p := range m.players.Players() {
			fmt.Fprintf(&b, "  [%d] %s type=%d status=%d\n", p.ID, p.Name, p.Type, p.PlayStatus)
		}
		for i := 0; i < m.slots.Len(); i++ {
			s := m.slots.At(i)
			if !s.Occupied {
				fmt.Fprintf(&b, "slot %d: empty\n", i)
				continue
			}
			fmt.Fprintf(&b, "slot %d: %s (%s) active=%t tws=%t gen=%d\n",
				i, s.Addr, s.Name, s.Active, s.TwsPlus, s.Generation)
			fmt.Fprintf(&b, "  play: status=%d lastRsp=%d timedOut=%t tracks=%d\n",
				s.CurrentPlayState.Status, s.LastRspPlayStatus, s.PlayStatusTimedOut, s.TracksPlayed)
			fmt.Fprintf(&b, "  pos: interval=%d next=%d prev=%d lastReported=%d\n",
				s.PlaybackIntervalMs, s.NextPosMs, s.PrevPosMs, s.LastReportedPosition)
			fmt.Fprintf(&b, "  vol: supported=%t local=%d remote=%d initial=%d lastSent=%d requested=%d retries=%d inflight=%t/%t blkVol=%d\n",
				s.AbsVolSupported, s.LocalVolume, s.RemoteVolume, s.InitialRemoteVolume,
				s.LastRemoteVolume, s.LastRequestedVolume, s.AbsVolRetries,
				s.VolCmdSetInFlight, s.VolCmdAdjustInFlight, s.BlacklistVolume)
			var evs []string
			for ev, name := range eventNames {
				if s.Notify[ev] == NotifyInterim {
					evs = append(evs, name)
				}
			}
			sort.Strings(evs)
			fmt.Fprintf(&b, "  armed: %s\n", strings.Join(evs, " "))
		}
		fmt.Fprintf(&b, "recent keys:\n")
		for _, e := range m.keyLog.snapshot() {
			fmt.Fprintf(&b, "  %s %s %s pressed=%t dispatched=%t\n",
				e.When.Format(time.RFC3339), e.Addr, keyName(e.Key), e.Pressed, e.Dispatched)
		}
		return nil
	})
	return b.String(), err
}
