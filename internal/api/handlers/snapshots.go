package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/chronocam/chronocam/internal/scheduler"
)

const defaultSnapshotLimit = 100

// SnapshotsHandler lists the archived captures, newest first, with
// an optional fuzzy filename filter
type SnapshotsHandler struct {
	scheduler *scheduler.Scheduler
	logger    interface {
		Error(string, error, ...any)
	}
}

// NewSnapshotsHandler creates a new snapshots handler
func NewSnapshotsHandler(sched *scheduler.Scheduler, logger interface {
	Error(string, error, ...any)
}) *SnapshotsHandler {
	return &SnapshotsHandler{scheduler: sched, logger: logger}
}

// Searcher is the store capability this handler needs
type Searcher interface {
	Search(query string, limit int) []string
}

// ServeHTTP handles archive listing requests
func (h *SnapshotsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	store, ok := h.scheduler.SnapshotStore().(Searcher)
	if !ok {
		http.Error(w, "archive not available", http.StatusNotImplemented)
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := parseLimit(r, defaultSnapshotLimit)

	files := store.Search(query, limit)
	if files == nil {
		files = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]any{
		"snapshots": files,
		"count":     len(files),
	}); err != nil {
		h.logger.Error("failed to encode snapshot listing", err)
	}
}

func parseLimit(r *http.Request, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
