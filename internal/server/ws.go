package server

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/kishor/mergescan/internal/scan"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// DetectionsHandler streams live scan updates over WebSocket. Each client
// gets its own engine subscription; a slow client drops updates rather than
// stalling the scan loop.
type DetectionsHandler struct {
	engine *scan.Engine
}

// NewDetectionsHandler creates a DetectionsHandler for the given engine.
func NewDetectionsHandler(e *scan.Engine) *DetectionsHandler {
	return &DetectionsHandler{engine: e}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *DetectionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.engine.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Keep connection alive by reading messages until the client goes
		// away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(u); err != nil {
				return
			}
		}
	}
}
