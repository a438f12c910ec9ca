// Package server exposes the engine over HTTP: a chi router for the REST
// surface and a WebSocket hub pushing live engine events.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pmarren/courier/internal/analytics"
	"github.com/pmarren/courier/internal/config"
	"github.com/pmarren/courier/internal/connectivity"
	"github.com/pmarren/courier/internal/session"
	"github.com/pmarren/courier/internal/stream"
)

type Server struct {
	config     *config.Config
	router     *chi.Mux
	httpServer *http.Server

	store     *session.Store
	autosaver *session.Autosaver
	client    *stream.Client
	monitor   *connectivity.Monitor
	agg       *analytics.Aggregator
	hub       *Hub
}

func NewServer(
	cfg *config.Config,
	store *session.Store,
	autosaver *session.Autosaver,
	client *stream.Client,
	monitor *connectivity.Monitor,
	agg *analytics.Aggregator,
	hub *Hub,
) *Server {
	s := &Server{
		config:    cfg,
		store:     store,
		autosaver: autosaver,
		client:    client,
		monitor:   monitor,
		agg:       agg,
		hub:       hub,
	}

	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(loggerMiddleware)
	r.Use(recoveryMiddleware)
	r.Use(corsMiddleware(s.config.Server.CORSOrigins))
	r.Use(metricsMiddleware)

	healthHandler := NewHealthHandler()
	r.Get("/health", healthHandler.Handle)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		sessionsHandler := NewSessionsHandler(s.store)
		r.Post("/sessions", sessionsHandler.Create)
		r.Get("/sessions", sessionsHandler.List)
		r.Get("/sessions/current", sessionsHandler.Current)
		r.Get("/sessions/{id}", sessionsHandler.Get)
		r.Post("/sessions/{id}/switch", sessionsHandler.Switch)
		r.Delete("/sessions/{id}", sessionsHandler.Delete)
		r.Get("/sessions/{id}/messages", sessionsHandler.Messages)

		messagesHandler := NewMessagesHandler(s.client)
		r.Post("/sessions/{id}/messages", messagesHandler.Send)
		r.Get("/sessions/{id}/stream", messagesHandler.StreamStatus)

		connectionHandler := NewConnectionHandler(s.monitor)
		r.Get("/connection", connectionHandler.State)
		r.Post("/connection/retry", connectionHandler.Retry)

		analyticsHandler := NewAnalyticsHandler(s.agg, s.config.Autosave.AnalyticsWindowDays)
		r.Get("/analytics/stats", analyticsHandler.Stats)
		r.Get("/analytics/report", analyticsHandler.Report)
		r.Get("/analytics/recommendation", analyticsHandler.Recommendation)
		r.Get("/analytics/export", analyticsHandler.Export)
		r.Delete("/analytics", analyticsHandler.Clear)

		storageHandler := NewStorageHandler(s.autosaver)
		r.Get("/storage", storageHandler.Status)
		r.Put("/storage/autosave", storageHandler.SetEnabled)
		r.Get("/storage/export", storageHandler.Export)
		r.Post("/storage/import", storageHandler.Import)
		r.Delete("/storage", storageHandler.Clear)

		wsHandler := NewWSHandler(s.hub, s.config.Server.CORSOrigins)
		r.Get("/ws", wsHandler.Handle)
	})

	s.router = r
}

// Router exposes the handler tree, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("server: listening", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
