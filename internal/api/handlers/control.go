package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/chronocam/chronocam/internal/scheduler"
)

// ControlHandler exposes the scheduler's control entry points:
// pause, resume and snapshot-now
type ControlHandler struct {
	scheduler *scheduler.Scheduler
	logger    interface {
		Info(string, ...any)
		Error(string, error, ...any)
	}
}

// NewControlHandler creates a new control handler
func NewControlHandler(sched *scheduler.Scheduler, logger interface {
	Info(string, ...any)
	Error(string, error, ...any)
}) *ControlHandler {
	return &ControlHandler{scheduler: sched, logger: logger}
}

// Pause handles pause requests
func (h *ControlHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("pause requested", "remote_addr", r.RemoteAddr)
	h.scheduler.Pause()
	writeOK(w)
}

// Resume handles resume requests
func (h *ControlHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("resume requested", "remote_addr", r.RemoteAddr)
	h.scheduler.Resume()
	writeOK(w)
}

// Snapshot handles snapshot-now requests. The capture runs inline;
// failures come back classified so the dashboard can show them.
func (h *ControlHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("snapshot requested", "remote_addr", r.RemoteAddr)

	if camErr := h.scheduler.ForceSnapshot(r.Context()); camErr != nil {
		h.logger.Error("manual snapshot failed", camErr)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": false,
			"error": map[string]string{
				"code":    string(camErr.Code),
				"message": camErr.Message,
			},
		})
		return
	}

	writeOK(w)
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"ok":true}`))
}
