package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/chronocam/chronocam/internal/scheduler"
)

// ConfigureHandler reads and reloads the capture schedule
type ConfigureHandler struct {
	scheduler *scheduler.Scheduler
	logger    interface {
		Info(string, ...any)
		Error(string, error, ...any)
	}
}

// NewConfigureHandler creates a new configure handler
func NewConfigureHandler(sched *scheduler.Scheduler, logger interface {
	Info(string, ...any)
	Error(string, error, ...any)
}) *ConfigureHandler {
	return &ConfigureHandler{scheduler: sched, logger: logger}
}

// Get returns the current schedule with the camera password masked
func (h *ConfigureHandler) Get(w http.ResponseWriter, r *http.Request) {
	sched := h.scheduler.Schedule()
	sched.Password = ""

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(sched); err != nil {
		h.logger.Error("failed to encode schedule", err)
	}
}

// Reload validates and applies a new schedule generation. Invalid
// schedules are rejected wholesale and the running generation stays
// active. A blank password keeps the current one, so the settings
// form never has to echo credentials back.
func (h *ConfigureHandler) Reload(w http.ResponseWriter, r *http.Request) {
	current := h.scheduler.Schedule()

	next := current.Clone()
	if err := json.NewDecoder(r.Body).Decode(next); err != nil {
		h.logger.Error("failed to decode schedule", err)
		h.sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if next.Password == "" {
		next.Password = current.Password
	}

	if err := h.scheduler.ReloadConfig(next); err != nil {
		h.logger.Error("schedule reload rejected", err)
		h.sendErrorResponse(w, "Invalid schedule: "+err.Error(), http.StatusBadRequest)
		return
	}

	h.logger.Info("schedule reloaded via API",
		"generation", h.scheduler.Generation(),
		"remote_addr", r.RemoteAddr,
	)

	// Immediate feedback on whether the camera is reachable under
	// the new settings. Detached context: the probe outlives this
	// request.
	go h.scheduler.RunHealthProbe(context.Background())

	writeOK(w)
}

// sendErrorResponse sends an error response
func (h *ConfigureHandler) sendErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]interface{}{
		"error":   true,
		"message": message,
		"code":    statusCode,
	}

	_ = json.NewEncoder(w).Encode(response)
}
