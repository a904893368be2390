package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/usenocturne/avrcpd/avrcp"
)

type InfoResponse struct {
	Version   string `json:"version"`
	UptimeSec int64  `json:"uptime_sec"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}
	s.wsHub.AddClient(conn)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "Method not allowed"})
		return
	}

	response := InfoResponse{
		Version:   s.version,
		UptimeSec: int64(time.Since(s.started).Seconds()),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "Error encoding response"})
		return
	}
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "Method not allowed"})
		return
	}

	snap, err := s.mgr.Snapshot()
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "Failed to read session state: " + err.Error()})
		return
	}
	devices := snap.Devices
	if devices == nil {
		devices = []avrcp.DeviceSnapshot{}
	}

	if err := json.NewEncoder(w).Encode(devices); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "Error encoding response"})
		return
	}
}

func (s *Server) handleSetActiveDevice(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "Method not allowed"})
		return
	}

	address := strings.TrimPrefix(r.URL.Path, "/devices/active/")
	if address == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "Device address is required"})
		return
	}

	if err := s.mgr.SetActiveDevice(address); err != nil {
		if err == avrcp.ErrUnknownDevice {
			w.WriteHeader(http.StatusNotFound)
		} else {
			w.WriteHeader(http.StatusInternalServerError)
		}
		json.NewEncoder(w).Encode(ErrorResponse{Error: "Failed to set active device: " + err.Error()})
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleMediaStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "Method not allowed"})
		return
	}

	snap, err := s.mgr.Snapshot()
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "Failed to read session state: " + err.Error()})
		return
	}

	response := map[string]interface{}{
		"play_status": snap.PlayStatus,
		"position_ms": snap.PositionMs,
		"track":       snap.Track,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "Error encoding response"})
		return
	}
}

func (s *Server) handleSetVolume(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "Method not allowed"})
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/media/volume/")
	if raw == "up" || raw == "down" {
		dir := 1
		if raw == "down" {
			dir = -1
		}
		if err := s.mgr.AdjustVolume(dir); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(ErrorResponse{Error: "Failed to adjust volume: " + err.Error()})
			return
		}
		w.WriteHeader(http.StatusOK)
		return
	}
	volume, err := strconv.Atoi(raw)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "Volume must be an integer or up/down"})
		return
	}

	if err := s.mgr.SetAbsoluteVolume(volume); err != nil {
		if err == avrcp.ErrVolumeRangeExceeded {
			w.WriteHeader(http.StatusBadRequest)
		} else {
			w.WriteHeader(http.StatusInternalServerError)
		}
		json.NewEncoder(w).Encode(ErrorResponse{Error: "Failed to set volume: " + err.Error()})
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handlePlayers(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "Method not allowed"})
		return
	}

	snap, err := s.mgr.Snapshot()
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "Failed to read session state: " + err.Error()})
		return
	}

	players := snap.Players
	if players == nil {
		players = []avrcp.PlayerListItem{}
	}
	response := map[string]interface{}{
		"players":   players,
		"addressed": snap.AddressedPlayer,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "Error encoding response"})
		return
	}
}

func (s *Server) handleSetAddressedPlayer(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "Method not allowed"})
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/players/addressed/")
	id, err := strconv.Atoi(raw)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "Player id must be an integer"})
		return
	}

	if err := s.mgr.SetAddressedPlayerLocal(id); err != nil {
		if err == avrcp.ErrInvalidPlayer {
			w.WriteHeader(http.StatusNotFound)
		} else {
			w.WriteHeader(http.StatusInternalServerError)
		}
		json.NewEncoder(w).Encode(ErrorResponse{Error: "Failed to set addressed player: " + err.Error()})
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDebugDump(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	dump, err := s.mgr.Dump()
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(dump))
}
