package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/chronocam/chronocam/pkg/events"
)

// EventsHandler streams bus events to a dashboard client as
// Server-Sent Events. There is no replay: a client only sees events
// published while it is connected.
type EventsHandler struct {
	bus    *events.Bus
	logger interface {
		Debug(string, ...any)
		Error(string, error, ...any)
	}
}

// NewEventsHandler creates a new SSE events handler
func NewEventsHandler(bus *events.Bus, logger interface {
	Debug(string, ...any)
	Error(string, error, ...any)
}) *EventsHandler {
	return &EventsHandler{bus: bus, logger: logger}
}

// ServeHTTP handles one SSE connection for its whole lifetime
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	// Set headers for SSE
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("X-Accel-Buffering", "no") // Disable Nginx buffering

	sub := h.bus.Subscribe()
	defer h.bus.Unsubscribe(sub)

	h.logger.Debug("SSE client connected", "id", sub.ID(), "remote_addr", r.RemoteAddr)

	// Confirm the stream is up before the first real event
	fmt.Fprintf(w, ": connected %s\n\n", sub.ID())
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug("SSE client disconnected", "id", sub.ID())
			return

		case ev, open := <-sub.Events():
			if !open {
				// Dropped by the bus for not keeping up
				h.logger.Debug("SSE client dropped", "id", sub.ID())
				return
			}
			if err := writeEvent(w, flusher, ev); err != nil {
				h.logger.Error("failed to write SSE event", err, "id", sub.ID())
				return
			}
		}
	}
}

// writeEvent writes one event in SSE wire format and flushes it
func writeEvent(w http.ResponseWriter, flusher http.Flusher, ev events.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
