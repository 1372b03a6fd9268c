package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/chronocam/chronocam/internal/api"
	"github.com/chronocam/chronocam/internal/camera"
	"github.com/chronocam/chronocam/internal/config"
	"github.com/chronocam/chronocam/internal/health"
	"github.com/chronocam/chronocam/internal/mqtt"
	"github.com/chronocam/chronocam/internal/scheduler"
	"github.com/chronocam/chronocam/internal/snapshot"
	"github.com/chronocam/chronocam/internal/utils/logger"
	"github.com/chronocam/chronocam/pkg/events"
)

const (
	// Banner is the application banner
	Banner = `
 ██████╗██╗  ██╗██████╗  ██████╗ ███╗   ██╗ ██████╗  ██████╗ █████╗ ███╗   ███╗
██╔════╝██║  ██║██╔══██╗██╔═══██╗████╗  ██║██╔═══██╗██╔════╝██╔══██╗████╗ ████║
██║     ███████║██████╔╝██║   ██║██╔██╗ ██║██║   ██║██║     ███████║██╔████╔██║
██║     ██╔══██║██╔══██╗██║   ██║██║╚██╗██║██║   ██║██║     ██╔══██║██║╚██╔╝██║
╚██████╗██║  ██║██║  ██║╚██████╔╝██║ ╚████║╚██████╔╝╚██████╗██║  ██║██║ ╚═╝ ██║
 ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝ ╚═════╝ ╚═╝  ╚═══╝ ╚═════╝  ╚═════╝╚═╝  ╚═╝╚═╝     ╚═╝

Scheduled Webcam Capture & Live Dashboard
Version: %s
`
)

func main() {
	// Print banner
	fmt.Printf(Banner, api.Version)
	fmt.Println()

	// Local overrides for development setups
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup logger
	slogger := cfg.SetupLogger()
	slog.SetDefault(slogger)

	// Create adapter for our interface
	log := logger.NewAdapter(slogger)

	log.Info("starting ChronoCam",
		slog.String("version", api.Version),
		slog.String("listen", cfg.Server.Listen),
		slog.String("data_path", cfg.Storage.DataPath),
	)

	// Load the capture schedule (fatal when unreadable or invalid)
	schedStore := config.NewScheduleStore(cfg.Storage.SchedulePath, log.WithComponent("config"))
	sched, err := schedStore.Load()
	if err != nil {
		log.Error("failed to load schedule", err)
		os.Exit(1)
	}

	// Optional S3/MinIO snapshot mirror
	var mirror snapshot.Mirror
	if cfg.Mirror.Enabled {
		m, err := snapshot.NewMinioMirror(cfg.Mirror)
		if err != nil {
			log.Error("failed to set up snapshot mirror", err)
			os.Exit(1)
		}
		mirror = m
		log.Info("snapshot mirror enabled", slog.String("bucket", cfg.Mirror.Bucket))
	}

	storeFactory := func(s *config.Schedule) (scheduler.Store, error) {
		dir := s.SavePath
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(cfg.Storage.DataPath, dir)
		}
		return snapshot.NewStore(dir, s.RetainHistory, mirror, log.WithComponent("snapshot"))
	}

	// Core components
	bus := events.NewBus(events.DefaultBufferSize, log.WithComponent("events"))
	tracker := health.NewTracker(health.DefaultFailureThreshold)
	cam := camera.NewClient(config.DefaultFetchTimeout, log.WithComponent("camera"))

	sch, err := scheduler.New(sched, cam, storeFactory, tracker, bus, schedStore, log.WithComponent("scheduler"))
	if err != nil {
		log.Error("failed to create scheduler", err)
		os.Exit(1)
	}

	// Optional MQTT event bridge
	mqttCtx, mqttCancel := context.WithCancel(context.Background())
	defer mqttCancel()
	if cfg.MQTT.Enabled {
		publisher, err := mqtt.NewPublisher(cfg.MQTT, bus, log.WithComponent("mqtt"))
		if err != nil {
			log.Error("failed to connect mqtt publisher", err)
			os.Exit(1)
		}
		defer publisher.Close()
		go publisher.Run(mqttCtx)
	}

	// Create API server
	apiServer := api.NewServer(cfg, sch, bus, log)

	// Create HTTP server. No write timeout: SSE and WebSocket
	// connections are long-lived and a deadline would cut every stream.
	httpServer := &http.Server{
		Addr:        cfg.Server.Listen,
		Handler:     apiServer,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: 120 * time.Second,
	}

	// Start the capture loop
	sch.Start()

	// Start server in goroutine
	go func() {
		log.Info("HTTP server starting",
			slog.String("address", httpServer.Addr),
			slog.String("api_version", "v1"),
		)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed", err)
			os.Exit(1)
		}
	}()

	// Print API endpoints
	printEndpoints(cfg.Server.Listen)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	sch.Stop()
	mqttCancel()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", err)
		os.Exit(1)
	}

	log.Info("server stopped gracefully")
}

// printEndpoints prints available API endpoints
func printEndpoints(listen string) {
	baseURL := fmt.Sprintf("http://localhost%s", listen)
	if listen[0] != ':' {
		baseURL = fmt.Sprintf("http://%s", listen)
	}

	fmt.Println("\n🚀 API Endpoints:")
	fmt.Println("────────────────────────────────────────────────")
	fmt.Printf("  Service Health:  GET  %s/api/v1/health\n", baseURL)
	fmt.Printf("  Status:          GET  %s/api/v1/status\n", baseURL)
	fmt.Printf("  Live Events:     GET  %s/api/v1/events (SSE)\n", baseURL)
	fmt.Printf("  Live Events:     GET  %s/api/v1/ws (WebSocket)\n", baseURL)
	fmt.Printf("  Archive:         GET  %s/api/v1/snapshots\n", baseURL)
	fmt.Printf("  Pause:           POST %s/api/v1/control/pause\n", baseURL)
	fmt.Printf("  Resume:          POST %s/api/v1/control/resume\n", baseURL)
	fmt.Printf("  Snapshot Now:    POST %s/api/v1/control/snapshot\n", baseURL)
	fmt.Printf("  Schedule:        GET/POST %s/api/v1/config\n", baseURL)
	fmt.Printf("  Latest Image:    GET  %s/latest.jpg\n", baseURL)
	fmt.Println("────────────────────────────────────────────────")
}
