package avrcp

import (
	"sync"
	"testing"
)

// In-memory collaborators for session tests. Everything is guarded by
// one mutex; tests synchronize with the worker through sync() before
// reading.

type notifyRsp struct {
	event   int
	rspType int
	status  byte
	uid     uint64
	posMs   uint32
	player  int
	addr    string
}

type volumeCmd struct {
	volume int
	addr   string
}

type fakeResponder struct {
	mu         sync.Mutex
	notifyRsps []notifyRsp
	volumeCmds []volumeCmd

	playStatusRsps []struct {
		addr    string
		status  byte
		songLen uint32
		posMs   uint32
	}
	attrRsps []struct {
		addr  string
		attrs map[int]string
	}
	addrPlayerRsps []struct {
		addr   string
		status int
	}
	browsedPlayerRsps []struct {
		addr   string
		status int
	}
	playerListRsps []struct {
		addr   string
		status int
		items  []PlayerListItem
	}
	totalItemsRsps []struct {
		addr   string
		status int
		num    int
	}
	playItemRsps []int
	searchRsps   []int
	nowPlayRsps  []int
}

func (f *fakeResponder) record(r notifyRsp) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifyRsps = append(f.notifyRsps, r)
}

func (f *fakeResponder) RegisterNotificationRspPlayStatus(rspType int, status byte, addr string) error {
	f.record(notifyRsp{event: EvtPlayStatusChanged, rspType: rspType, status: status, addr: addr})
	return nil
}

func (f *fakeResponder) RegisterNotificationRspTrackChange(rspType int, uid uint64, addr string) error {
	f.record(notifyRsp{event: EvtTrackChanged, rspType: rspType, uid: uid, addr: addr})
	return nil
}

func (f *fakeResponder) RegisterNotificationRspPlayPos(rspType int, posMs uint32, addr string) error {
	f.record(notifyRsp{event: EvtPlayPosChanged, rspType: rspType, posMs: posMs, addr: addr})
	return nil
}

func (f *fakeResponder) RegisterNotificationRspAddrPlayerChanged(rspType int, playerID int, uidCounter uint16, addr string) error {
	f.record(notifyRsp{event: EvtAddrPlayerChanged, rspType: rspType, player: playerID, addr: addr})
	return nil
}

func (f *fakeResponder) RegisterNotificationRspAvailPlayersChanged(rspType int, addr string) error {
	f.record(notifyRsp{event: EvtAvailPlayersChanged, rspType: rspType, addr: addr})
	return nil
}

func (f *fakeResponder) RegisterNotificationRspNowPlayingChanged(rspType int, addr string) error {
	f.record(notifyRsp{event: EvtNowPlayingChanged, rspType: rspType, addr: addr})
	return nil
}

func (f *fakeResponder) RegisterNotificationRspUIDsChanged(rspType int, uidCounter uint16, addr string) error {
	f.record(notifyRsp{event: EvtUIDsChanged, rspType: rspType, addr: addr})
	return nil
}

func (f *fakeResponder) RegisterNotificationRspAppSettingsChanged(rspType int, addr string) error {
	f.record(notifyRsp{event: EvtAppSettingsChanged, rspType: rspType, addr: addr})
	return nil
}

func (f *fakeResponder) GetPlayStatusRsp(addr string, status byte, songLenMs, posMs uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playStatusRsps = append(f.playStatusRsps, struct {
		addr    string
		status  byte
		songLen uint32
		posMs   uint32
	}{addr, status, songLenMs, posMs})
	return nil
}

func (f *fakeResponder) GetElementAttrRsp(addr string, attrs map[int]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attrRsps = append(f.attrRsps, struct {
		addr  string
		attrs map[int]string
	}{addr, attrs})
	return nil
}

func (f *fakeResponder) SetVolume(volume int, addr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volumeCmds = append(f.volumeCmds, volumeCmd{volume: volume, addr: addr})
	return nil
}

func (f *fakeResponder) SetAddressedPlayerRsp(addr string, status int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addrPlayerRsps = append(f.addrPlayerRsps, struct {
		addr   string
		status int
	}{addr, status})
	return nil
}

func (f *fakeResponder) SetBrowsedPlayerRsp(addr string, status int, depth byte, numItems int, folders []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.browsedPlayerRsps = append(f.browsedPlayerRsps, struct {
		addr   string
		status int
	}{addr, status})
	return nil
}

func (f *fakeResponder) MediaPlayerListRsp(addr string, status int, uidCounter uint16, items []PlayerListItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playerListRsps = append(f.playerListRsps, struct {
		addr   string
		status int
		items  []PlayerListItem
	}{addr, status, items})
	return nil
}

func (f *fakeResponder) GetTotalNumOfItemsRsp(addr string, status int, uidCounter uint16, numItems int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.totalItemsRsps = append(f.totalItemsRsps, struct {
		addr   string
		status int
		num    int
	}{addr, status, numItems})
	return nil
}

func (f *fakeResponder) PlayItemRsp(addr string, status int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playItemRsps = append(f.playItemRsps, status)
	return nil
}

func (f *fakeResponder) SearchRsp(addr string, status int, uidCounter uint16, numItems int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchRsps = append(f.searchRsps, status)
	return nil
}

func (f *fakeResponder) AddToNowPlayingRsp(addr string, status int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nowPlayRsps = append(f.nowPlayRsps, status)
	return nil
}

// lastNotify returns the most recent notification response for event,
// or nil.
func (f *fakeResponder) lastNotify(event int) *notifyRsp {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.notifyRsps) - 1; i >= 0; i-- {
		if f.notifyRsps[i].event == event {
			r := f.notifyRsps[i]
			return &r
		}
	}
	return nil
}

func (f *fakeResponder) notifyCount(event int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.notifyRsps {
		if r.event == event {
			n++
		}
	}
	return n
}

func (f *fakeResponder) lastVolumeCmd() *volumeCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.volumeCmds) == 0 {
		return nil
	}
	c := f.volumeCmds[len(f.volumeCmds)-1]
	return &c
}

type mediaKey struct {
	key     int
	pressed bool
}

type fakeSession struct {
	mu       sync.Mutex
	state    PlayState
	metadata MediaAttributes
	keys     []mediaKey
}

func (f *fakeSession) PlaybackState() PlayState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSession) Metadata() MediaAttributes {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metadata
}

func (f *fakeSession) SongLengthMs() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metadata.PlayingTimeMs
}

func (f *fakeSession) DispatchMediaKey(key int, pressed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, mediaKey{key: key, pressed: pressed})
}

func (f *fakeSession) dispatched() []mediaKey {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]mediaKey, len(f.keys))
	copy(out, f.keys)
	return out
}

type fakeAudio struct {
	mu          sync.Mutex
	volume      int
	max         int
	musicActive bool
	setCalls    []int
	absVolFlags []bool
}

func (f *fakeAudio) StreamVolume() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume
}

func (f *fakeAudio) MaxStreamVolume() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.max
}

func (f *fakeAudio) SetStreamVolume(volume int, showUI bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = volume
	f.setCalls = append(f.setCalls, volume)
}

func (f *fakeAudio) IsMusicActive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.musicActive
}

func (f *fakeAudio) SetAbsoluteVolumeSupported(supported bool, initialVolume int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.absVolFlags = append(f.absVolFlags, supported)
}

type fakeStore struct {
	mu        sync.Mutex
	volumes   map[string]int
	blacklist map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		volumes:   make(map[string]int),
		blacklist: make(map[string]bool),
	}
}

func (f *fakeStore) Volume(addr string) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.volumes[addr]
	return v, ok
}

func (f *fakeStore) SetVolume(addr string, volume int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volumes[addr] = volume
	return nil
}

func (f *fakeStore) Blacklisted(addr string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blacklist[addr]
}

func (f *fakeStore) Blacklist(addr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blacklist[addr] = true
	return nil
}

func (f *fakeStore) Unblacklist(addr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blacklist, addr)
	return nil
}

type testEnv struct {
	mgr     *Manager
	rsp     *fakeResponder
	session *fakeSession
	audio   *fakeAudio
	store   *fakeStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, DefaultConfig())
}

func newTestEnvWithConfig(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	rsp := &fakeResponder{}
	session := &fakeSession{state: PlayState{Status: PlayStatusStopped, PositionMs: -1}}
	audio := &fakeAudio{volume: 8, max: 15}
	st := newFakeStore()
	mgr := NewManager(cfg, rsp, session, audio, st, nil)
	mgr.Start()
	t.Cleanup(mgr.Stop)
	return &testEnv{mgr: mgr, rsp: rsp, session: session, audio: audio, store: st}
}

// sync waits until every previously submitted task has run.
func (e *testEnv) sync(t *testing.T) {
	t.Helper()
	if err := e.mgr.disp.Do("test-sync", func() error { return nil }); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
}

// on runs fn on the worker goroutine, for tests that need to poke
// internal state safely.
func (e *testEnv) on(t *testing.T, fn func()) {
	t.Helper()
	if err := e.mgr.disp.Do("test-on", func() error {
		fn()
		return nil
	}); err != nil {
		t.Fatalf("on failed: %v", err)
	}
}

const (
	addrA = "AA:BB:CC:00:00:01"
	addrB = "AA:BB:CC:00:00:02"
)

func (e *testEnv) connect(t *testing.T, addr, name string) {
	t.Helper()
	if err := e.mgr.Connect(addr, name, false, FeatMetadata|FeatAbsVolume|FeatBrowse); err != nil {
		t.Fatalf("Connect(%s) failed: %v", addr, err)
	}
}
