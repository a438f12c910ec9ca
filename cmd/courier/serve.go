package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/pmarren/courier/internal/adapters/tracing"
	"github.com/pmarren/courier/internal/connectivity"
	"github.com/pmarren/courier/internal/server"
)

// serveCmd starts the HTTP API server
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the Courier HTTP API server.

The server provides REST endpoints for session management, streaming sends,
connection state, telemetry, and storage control, plus a WebSocket feed of
session and reasoning events.

Required configuration:
  - Backend endpoint (COURIER_BACKEND_URL)
  - Backend credential (COURIER_BACKEND_TOKEN)

Optional:
  - PostgreSQL storage (COURIER_POSTGRES_URL; defaults to the file store)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

// runServer initializes and starts the HTTP API server
func runServer(ctx context.Context) error {
	log.Println("Starting Courier API server...")
	log.Printf("  HTTP:    http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("  Backend: %s", cfg.Backend.URL)
	log.Printf("  Storage: %s", storageBackendName())
	log.Println()

	// Initialize OpenTelemetry tracing
	shutdown, err := tracing.InitTracer("courier-api")
	if err != nil {
		log.Printf("Warning: Failed to initialize tracing: %v", err)
	} else {
		defer func() {
			if err := shutdown(ctx); err != nil {
				log.Printf("Error shutting down tracer: %v", err)
			}
		}()
		log.Println("OpenTelemetry tracing initialized")
	}

	eng, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.close()
	log.Printf("Session store loaded (%d sessions)", eng.store.Count())

	hub := server.NewHub(eng.store)
	eng.store.AddListener(hub)

	monitor := connectivity.New(cfg.Backend.URL, eng.agg,
		connectivity.WithInterval(time.Duration(cfg.Monitor.ProbeIntervalSeconds)*time.Second),
		connectivity.WithOnSample(hub.PublishConnectionSample),
	)
	monitor.Start(ctx)
	defer monitor.Stop()
	log.Printf("Connection monitor started (probe every %ds)", cfg.Monitor.ProbeIntervalSeconds)

	client := eng.newStreamClient(server.NewStreamEvents(hub, eng.agg))

	srv := server.NewServer(cfg, eng.store, eng.autosaver, client, monitor, eng.agg, hub)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Println("Server started. Press Ctrl+C to stop.")

	sigCtx, stop := signalContext(ctx)
	defer stop()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-sigCtx.Done():
	}

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
	return nil
}
