package api

import (
	"net/http"
	"strconv"

	"github.com/ayusman/wave/internal/gesture"
	"github.com/ayusman/wave/internal/store"
)

// Limits for GET /api/history.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// HistoryHandler serves the event journal.
type HistoryHandler struct {
	store *store.Store
}

func NewHistoryHandler(s *store.Store) *HistoryHandler {
	return &HistoryHandler{store: s}
}

type eventResponse struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Hand  string `json:"hand"`
	Time  string `json:"time"`
}

type historyResponse struct {
	Events []eventResponse       `json:"events"`
	Counts map[gesture.Label]int `json:"counts"`
}

// ServeHTTP handles GET /api/history?limit=N, newest events first.
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, MaxHistoryLimit)
	}

	events, err := h.store.Events().Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read history")
		return
	}
	counts, err := h.store.Events().CountByLabel()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count events")
		return
	}

	response := historyResponse{
		Events: make([]eventResponse, 0, len(events)),
		Counts: counts,
	}
	for _, ev := range events {
		response.Events = append(response.Events, eventResponse{
			ID:    ev.ID,
			Label: string(ev.Label),
			Hand:  ev.Hand,
			Time:  ev.Time.Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}

	writeJSON(w, http.StatusOK, response)
}
