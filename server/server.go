package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/usenocturne/avrcpd/avrcp"
	"github.com/usenocturne/avrcpd/utils"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	mgr     *avrcp.Manager
	wsHub   *utils.WebSocketHub
	router  *http.ServeMux
	httpSrv *http.Server
	started time.Time
	version string
}

// NewServer creates a new Server instance.
func NewServer(mgr *avrcp.Manager, wsHub *utils.WebSocketHub, version string) *Server {
	s := &Server{
		mgr:     mgr,
		wsHub:   wsHub,
		router:  http.NewServeMux(),
		started: time.Now(),
		version: version,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/info", corsMiddleware(s.handleInfo))
	s.router.HandleFunc("/devices", corsMiddleware(s.handleDevices))
	s.router.HandleFunc("/devices/active/", corsMiddleware(s.handleSetActiveDevice))
	s.router.HandleFunc("/media/status", corsMiddleware(s.handleMediaStatus))
	s.router.HandleFunc("/media/volume/", corsMiddleware(s.handleSetVolume))
	s.router.HandleFunc("/players", corsMiddleware(s.handlePlayers))
	s.router.HandleFunc("/players/addressed/", corsMiddleware(s.handleSetAddressedPlayer))
	s.router.HandleFunc("/debug/avrcp", s.handleDebugDump)
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// Start starts the HTTP server and blocks until it exits.
func (s *Server) Start(addr string) error {
	s.httpSrv = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	log.Printf("Starting server on %s", addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the HTTP server down gracefully.
func (s *Server) Stop() error {
	if s.httpSrv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}
