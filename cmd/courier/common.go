package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pmarren/courier/internal/adapters/id"
	"github.com/pmarren/courier/internal/adapters/kv"
	"github.com/pmarren/courier/internal/analytics"
	"github.com/pmarren/courier/internal/config"
	"github.com/pmarren/courier/internal/ports"
	"github.com/pmarren/courier/internal/session"
	"github.com/pmarren/courier/internal/stream"
)

// Version information (set via ldflags)
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// Shared global configuration, loaded by the root command
var cfg *config.Config

// engine bundles the pieces every CLI command needs: the durable store, the
// in-memory session collection, and the telemetry log over the same storage.
type engine struct {
	kv        ports.KVStore
	store     *session.Store
	autosaver *session.Autosaver
	agg       *analytics.Aggregator

	closeKV func()
}

// openStorage selects the durable backend: PostgreSQL when configured,
// otherwise the on-disk store under the data directory.
func openStorage(ctx context.Context) (ports.KVStore, func(), error) {
	if cfg.IsPostgresConfigured() {
		store, err := kv.ConnectPostgres(ctx, cfg.Storage.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect storage: %w", err)
		}
		return store, store.Close, nil
	}

	store, err := kv.NewFileStore(cfg.Storage.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open data directory: %w", err)
	}
	return store, func() {}, nil
}

// openEngine builds the session store over the configured storage, loading
// the persisted snapshot and telemetry log. The caller must call close.
func openEngine(ctx context.Context) (*engine, error) {
	store, closeKV, err := openStorage(ctx)
	if err != nil {
		return nil, err
	}

	sessions := session.NewStore(id.New())
	autosaver := session.NewAutosaver(ctx, sessions, store,
		session.WithDebounce(time.Duration(cfg.Autosave.DebounceMs)*time.Millisecond))
	if !cfg.Autosave.Enabled {
		autosaver.SetEnabled(false)
	}
	agg := analytics.New(ctx, store)

	return &engine{
		kv:        store,
		store:     sessions,
		autosaver: autosaver,
		agg:       agg,
		closeKV:   closeKV,
	}, nil
}

// close flushes pending writes and releases the storage backend.
func (e *engine) close() {
	e.autosaver.Close()
	e.closeKV()
}

// newStreamClient wires the streaming reasoning client against the engine.
// obs may be nil; the server passes the hub-backed observer.
func (e *engine) newStreamClient(obs stream.Observer) *stream.Client {
	return stream.NewClient(stream.Config{
		BaseURL:     cfg.Backend.URL,
		Credentials: ports.StaticCredential(cfg.Backend.Token),
		Policy:      conflictPolicy(),
		Observer:    obs,
	}, e.store, e.agg, id.New())
}

func conflictPolicy() stream.ConflictPolicy {
	if cfg.Stream.ConflictPolicy == "cancel_replace" {
		return stream.ConflictCancelReplace
	}
	return stream.ConflictReject
}

func storageBackendName() string {
	if cfg.IsPostgresConfigured() {
		return "postgres"
	}
	return "file"
}

// signalContext derives a context cancelled by SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// maskSecret masks a secret string for display
func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "(set)"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// boolStatus returns a status string for a boolean
func boolStatus(b bool) string {
	if b {
		return "configured"
	}
	return "not configured"
}
