package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/chronocam/chronocam/internal/api/handlers"
	"github.com/chronocam/chronocam/internal/config"
	"github.com/chronocam/chronocam/internal/scheduler"
	"github.com/chronocam/chronocam/pkg/events"
)

// Version is the API/application version
const Version = "1.0.0"

// Server represents the API server
type Server struct {
	router    chi.Router
	config    *config.Config
	scheduler *scheduler.Scheduler
	bus       *events.Bus
	logger    interface {
		Debug(string, ...any)
		Error(string, error, ...any)
		Info(string, ...any)
	}
}

// NewServer creates a new API server
func NewServer(
	cfg *config.Config,
	sched *scheduler.Scheduler,
	bus *events.Bus,
	logger interface {
		Debug(string, ...any)
		Error(string, error, ...any)
		Info(string, ...any)
	},
) *Server {
	server := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		scheduler: sched,
		bus:       bus,
		logger:    logger,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// setupRoutes configures all routes and middleware
func (s *Server) setupRoutes() {
	// Global middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	// CORS middleware
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")
			w.Header().Set("Access-Control-Max-Age", "3600")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	control := handlers.NewControlHandler(s.scheduler, s.logger)
	configure := handlers.NewConfigureHandler(s.scheduler, s.logger)

	// API version 1 routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Service health check
		r.Get("/health", handlers.NewHealthHandler(Version, s.scheduler, s.bus, s.logger).ServeHTTP)

		// Dashboard status
		r.Get("/status", handlers.NewStatusHandler(s.scheduler, s.logger).ServeHTTP)

		// Live event feeds (SSE and WebSocket)
		r.Get("/events", handlers.NewEventsHandler(s.bus, s.logger).ServeHTTP)
		r.Get("/ws", handlers.NewWSHandler(s.bus, s.logger).ServeHTTP)

		// Archive listing
		r.Get("/snapshots", handlers.NewSnapshotsHandler(s.scheduler, s.logger).ServeHTTP)

		// Scheduler control
		r.Post("/control/pause", control.Pause)
		r.Post("/control/resume", control.Resume)
		r.Post("/control/snapshot", control.Snapshot)

		// Schedule read/reload
		r.Get("/config", configure.Get)
		r.Post("/config", configure.Reload)
	})

	// Well-known latest image for the dashboard preview
	s.router.Get("/latest.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		http.ServeFile(w, r, s.scheduler.LatestImagePath())
	})

	// Root info
	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"name":"ChronoCam","version":"` + Version + `","api":"v1"}`))
	})

	// 404 handler
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"Not found"}`))
	})
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// GetRouter returns the chi router
func (s *Server) GetRouter() chi.Router {
	return s.router
}
