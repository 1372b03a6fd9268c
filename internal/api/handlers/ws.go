package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chronocam/chronocam/pkg/events"
)

const wsWriteTimeout = 5 * time.Second

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

// WSHandler streams bus events over a WebSocket, for dashboard
// clients that prefer it over SSE. Same semantics: no replay,
// per-connection subscriber, dropped when it cannot keep up.
type WSHandler struct {
	bus    *events.Bus
	logger interface {
		Debug(string, ...any)
	}
}

// NewWSHandler creates a new WebSocket events handler
func NewWSHandler(bus *events.Bus, logger interface {
	Debug(string, ...any)
}) *WSHandler {
	return &WSHandler{bus: bus, logger: logger}
}

// ServeHTTP upgrades the connection and serves it until it closes
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.serveConnection(conn)
}

func (h *WSHandler) serveConnection(conn *websocket.Conn) {
	defer conn.Close()

	sub := h.bus.Subscribe()
	defer h.bus.Unsubscribe(sub)

	h.logger.Debug("websocket client connected", "id", sub.ID())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, open := <-sub.Events():
			if !open {
				h.logger.Debug("websocket client dropped", "id", sub.ID())
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-done:
			h.logger.Debug("websocket client disconnected", "id", sub.ID())
			return
		}
	}
}
