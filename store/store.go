package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileStore persists per-device volume and the absolute-volume
// blacklist as one JSON file. Writes go through a temp file rename so
// a crash mid-save can't truncate the map.
type FileStore struct {
	mu   sync.RWMutex
	path string
	data storeData
}

type volumeEntry struct {
	Volume    int       `json:"volume"`
	UpdatedAt time.Time `json:"updated_at"`
}

type storeData struct {
	Volumes   map[string]volumeEntry `json:"volumes"`
	Blacklist []string               `json:"blacklist"`
}

// retention bounds how long a device's volume survives without being
// seen again.
const retention = 90 * 24 * time.Hour

// New loads (or creates) the store at path. Volume entries not updated
// within the retention window are pruned on load.
func New(path string) (*FileStore, error) {
	s := &FileStore{
		path: path,
		data: storeData{Volumes: make(map[string]volumeEntry)},
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		// A corrupt store is not fatal: start over rather than refuse
		// to run.
		log.Printf("STORE: %s is corrupt, starting fresh: %v", path, err)
		s.data = storeData{Volumes: make(map[string]volumeEntry)}
		return s, nil
	}
	if s.data.Volumes == nil {
		s.data.Volumes = make(map[string]volumeEntry)
	}
	pruned := 0
	cutoff := time.Now().Add(-retention)
	for addr, e := range s.data.Volumes {
		if e.UpdatedAt.Before(cutoff) {
			delete(s.data.Volumes, addr)
			pruned++
		}
	}
	if pruned > 0 {
		log.Printf("STORE: pruned %d stale volume entries", pruned)
		if err := s.save(); err != nil {
			log.Printf("STORE: save after prune failed: %v", err)
		}
	}
	return s, nil
}

// Volume returns the persisted local volume for addr.
func (s *FileStore) Volume(addr string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data.Volumes[key(addr)]
	return e.Volume, ok
}

// SetVolume persists the local volume for addr.
func (s *FileStore) SetVolume(addr string, volume int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Volumes[key(addr)] = volumeEntry{Volume: volume, UpdatedAt: time.Now()}
	return s.save()
}

// Blacklisted reports whether addr is on the absolute-volume
// blacklist.
func (s *FileStore) Blacklisted(addr string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.data.Blacklist {
		if a == key(addr) {
			return true
		}
	}
	return false
}

// Blacklist adds addr to the absolute-volume blacklist.
func (s *FileStore) Blacklist(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.data.Blacklist {
		if a == key(addr) {
			return nil
		}
	}
	s.data.Blacklist = append(s.data.Blacklist, key(addr))
	return s.save()
}

// Unblacklist removes addr from the absolute-volume blacklist.
func (s *FileStore) Unblacklist(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.data.Blacklist {
		if a == key(addr) {
			s.data.Blacklist = append(s.data.Blacklist[:i], s.data.Blacklist[i+1:]...)
			return s.save()
		}
	}
	return nil
}

// save writes the store under the lock held by the caller.
func (s *FileStore) save() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}

func key(addr string) string {
	return strings.ToUpper(addr)
}
