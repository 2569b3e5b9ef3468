// Package server provides the HTTP and WebSocket surface of the detection
// engine.
package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kishor/mergescan/internal/scan"
	"github.com/kishor/mergescan/internal/server/api"
	"github.com/kishor/mergescan/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Engine    *scan.Engine
}

// Server is the HTTP front end of the scan engine.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Engine != nil {
		h := api.NewScanHandler(s.config.Engine)

		s.mux.HandleFunc("/api/scan", h.Scan)
		s.mux.HandleFunc("/api/results", h.Results)
		s.mux.HandleFunc("/api/calibrate", h.Calibrate)
		s.mux.HandleFunc("/api/config", h.Config)

		templateRouter := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name := strings.TrimPrefix(r.URL.Path, "/api/templates")
			name = strings.TrimPrefix(name, "/")
			h.Templates(w, r, name)
		})
		s.mux.Handle("/api/templates", templateRouter)
		s.mux.Handle("/api/templates/", templateRouter)

		liveRouter := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			action := strings.TrimPrefix(r.URL.Path, "/api/live")
			action = strings.TrimPrefix(action, "/")
			h.Live(w, r, action)
		})
		s.mux.Handle("/api/live", liveRouter)
		s.mux.Handle("/api/live/", liveRouter)

		s.mux.Handle("/api/preview", NewPreviewHandler(s.config.Engine))
		s.mux.Handle("/ws/detections", NewDetectionsHandler(s.config.Engine))
	}

	if s.config.Store != nil {
		historyHandler := api.NewHistoryHandler(s.config.Store)
		s.mux.Handle("/api/history", historyHandler)
		s.mux.Handle("/api/history/", historyHandler)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
