package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/chronocam/chronocam/internal/scheduler"
)

// StatusHandler serves the dashboard's status payload
type StatusHandler struct {
	scheduler *scheduler.Scheduler
	logger    interface {
		Error(string, error, ...any)
	}
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(sched *scheduler.Scheduler, logger interface {
	Error(string, error, ...any)
}) *StatusHandler {
	return &StatusHandler{scheduler: sched, logger: logger}
}

// ServeHTTP handles status requests
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	report := h.scheduler.Status()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(report); err != nil {
		h.logger.Error("failed to encode status response", err)
	}
}
