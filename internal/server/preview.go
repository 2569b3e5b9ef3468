package server

import (
	"net/http"

	"github.com/kishor/mergescan/internal/scan"
)

// PreviewHandler serves a single JPEG snapshot of the configured capture
// region, for region setup and debugging.
type PreviewHandler struct {
	engine *scan.Engine
}

// NewPreviewHandler creates a PreviewHandler for the given engine.
func NewPreviewHandler(e *scan.Engine) *PreviewHandler {
	return &PreviewHandler{engine: e}
}

// ServeHTTP handles GET requests to /api/preview.
func (h *PreviewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, err := h.engine.Snapshot()
	if err != nil {
		http.Error(w, "Snapshot failed", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}
