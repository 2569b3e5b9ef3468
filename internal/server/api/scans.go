// Package api provides the HTTP API handlers for the detection engine.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/kishor/mergescan/internal/scan"
)

// ScanHandler exposes the engine's scan, calibration, configuration and
// live-loop operations.
type ScanHandler struct {
	engine *scan.Engine
}

// NewScanHandler creates a ScanHandler driving the given engine.
func NewScanHandler(e *scan.Engine) *ScanHandler {
	return &ScanHandler{engine: e}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// Scan handles POST /api/scan: one on-demand cycle.
func (h *ScanHandler) Scan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	results, err := h.engine.Scan(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, scan.ErrNoTemplates):
			writeError(w, http.StatusConflict, "No templates loaded")
		case errors.Is(err, scan.ErrCaptureFailed):
			writeError(w, http.StatusServiceUnavailable, "Frame capture failed")
		default:
			writeError(w, http.StatusInternalServerError, "Scan failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results":   results,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// Results handles GET /api/results: the last completed cycle's detections.
func (h *ScanHandler) Results(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	results, at := h.engine.LastResults()
	resp := map[string]interface{}{"results": results}
	if !at.IsZero() {
		resp["timestamp"] = at.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

type templateResponse struct {
	Name      string  `json:"name"`
	Threshold float32 `json:"threshold"`
	Priority  int     `json:"priority"`
	Rarity    string  `json:"rarity"`
	Reference bool    `json:"reference"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
}

// Templates handles GET /api/templates and DELETE /api/templates/{name}.
func (h *ScanHandler) Templates(w http.ResponseWriter, r *http.Request, name string) {
	switch {
	case r.Method == http.MethodGet && name == "":
		h.listTemplates(w)
	case r.Method == http.MethodDelete && name != "":
		if _, ok := h.engine.Store().Get(name); !ok {
			writeError(w, http.StatusNotFound, "Template not found")
			return
		}
		h.engine.Invalidate(name)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ScanHandler) listTemplates(w http.ResponseWriter) {
	all := h.engine.Store().All()
	resp := struct {
		Templates    []templateResponse `json:"templates"`
		ResizeFactor float64            `json:"resize_factor"`
	}{
		Templates:    make([]templateResponse, 0, len(all)),
		ResizeFactor: h.engine.Store().ResizeFactor(),
	}
	for _, t := range all {
		resp.Templates = append(resp.Templates, templateResponse{
			Name:      t.Name,
			Threshold: t.Threshold,
			Priority:  t.Priority,
			Rarity:    t.Rarity,
			Reference: t.Reference,
			Width:     t.Width,
			Height:    t.Height,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Calibrate handles POST /api/calibrate: sweep the resize factor against the
// current frame using the reference templates.
func (h *ScanHandler) Calibrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	factor, err := h.engine.Calibrate(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, scan.ErrNoReferences):
			writeError(w, http.StatusConflict, "No reference templates loaded")
		case errors.Is(err, scan.ErrCaptureFailed):
			writeError(w, http.StatusServiceUnavailable, "Frame capture failed")
		default:
			writeError(w, http.StatusInternalServerError, "Calibration failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]float64{"resize_factor": factor})
}

// Config handles GET and PUT /api/config.
func (h *ScanHandler) Config(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.engine.Config())
	case http.MethodPut:
		cfg := h.engine.Config()
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		h.engine.SetConfig(cfg)
		writeJSON(w, http.StatusOK, h.engine.Config())
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Live handles the live-loop endpoints: POST /api/live/start, POST
// /api/live/stop and GET /api/live.
func (h *ScanHandler) Live(w http.ResponseWriter, r *http.Request, action string) {
	switch {
	case r.Method == http.MethodGet && action == "":
		writeJSON(w, http.StatusOK, map[string]bool{
			"running":     h.engine.Running(),
			"accelerated": h.engine.Accelerated(),
		})
	case r.Method == http.MethodPost && action == "start":
		if err := h.engine.Start(); err != nil {
			if errors.Is(err, scan.ErrAlreadyRunning) {
				writeError(w, http.StatusConflict, "Live scan already running")
				return
			}
			writeError(w, http.StatusInternalServerError, "Failed to start live scan")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"running": true})
	case r.Method == http.MethodPost && action == "stop":
		h.engine.Stop()
		writeJSON(w, http.StatusOK, map[string]bool{"running": false})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
