package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/kishor/mergescan/internal/match"
	"github.com/kishor/mergescan/internal/store"
)

// HistoryHandler serves persisted scan cycles.
type HistoryHandler struct {
	store *store.Store
}

// NewHistoryHandler creates a HistoryHandler reading from the given store.
func NewHistoryHandler(s *store.Store) *HistoryHandler {
	return &HistoryHandler{store: s}
}

type historyRecord struct {
	ID          string            `json:"id"`
	StartedAt   string            `json:"started_at"`
	DurationMs  int64             `json:"duration_ms"`
	Skipped     bool              `json:"skipped"`
	ChangeRatio float64           `json:"change_ratio"`
	Results     []match.Detection `json:"results"`
}

func toHistoryRecord(rec *store.ScanRecord) historyRecord {
	return historyRecord{
		ID:          rec.ID,
		StartedAt:   rec.StartedAt.Format(time.RFC3339),
		DurationMs:  rec.DurationMs,
		Skipped:     rec.Skipped,
		ChangeRatio: rec.ChangeRatio,
		Results:     rec.Results,
	}
}

// ServeHTTP routes GET /api/history and GET /api/history/{id}.
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := pathTail(r.URL.Path, "/api/history")
	if id != "" {
		h.get(w, id)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := h.store.Scans().Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list scan history")
		return
	}

	resp := struct {
		Scans []historyRecord `json:"scans"`
	}{Scans: make([]historyRecord, 0, len(records))}
	for _, rec := range records {
		resp.Scans = append(resp.Scans, toHistoryRecord(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HistoryHandler) get(w http.ResponseWriter, id string) {
	rec, err := h.store.Scans().Get(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Scan not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get scan")
		return
	}
	writeJSON(w, http.StatusOK, toHistoryRecord(rec))
}

// pathTail strips a route prefix and the separating slash from a path.
func pathTail(path, prefix string) string {
	tail := path[len(prefix):]
	if len(tail) > 0 && tail[0] == '/' {
		tail = tail[1:]
	}
	return tail
}
