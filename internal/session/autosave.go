package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pmarren/courier/internal/adapters/metrics"
	"github.com/pmarren/courier/internal/domain"
	"github.com/pmarren/courier/internal/domain/models"
	"github.com/pmarren/courier/internal/ports"
)

const (
	// SessionsKey is the durable-store entry holding the full session array.
	SessionsKey = "sessions"
	// AutosaveKey holds the autosave boolean preference.
	AutosaveKey = "autosave_enabled"

	// DebounceWindow coalesces mutation bursts into one snapshot write.
	DebounceWindow = 2 * time.Second

	writeTimeout = 5 * time.Second
)

// Autosaver snapshots the whole session collection to the durable store with
// debounced writes. It is best-effort: failures are logged and surfaced on an
// error callback, never to the mutating caller.
type Autosaver struct {
	store *Store
	kv    ports.KVStore

	debounce time.Duration
	onError  func(error)

	mu      sync.Mutex
	timer   *time.Timer
	enabled bool
	closed  bool
}

var _ ports.SessionListener = (*Autosaver)(nil)

type AutosaverOption func(*Autosaver)

// WithDebounce overrides the debounce window (tests use a short one).
func WithDebounce(d time.Duration) AutosaverOption {
	return func(a *Autosaver) { a.debounce = d }
}

// WithSaveErrorCallback registers an observer for persistence failures.
func WithSaveErrorCallback(fn func(error)) AutosaverOption {
	return func(a *Autosaver) { a.onError = fn }
}

// NewAutosaver loads the autosave preference and the persisted session
// collection (tolerating missing or corrupt snapshots), installs the result
// into the store, and registers itself as a store listener.
func NewAutosaver(ctx context.Context, store *Store, kv ports.KVStore, opts ...AutosaverOption) *Autosaver {
	a := &Autosaver{
		store:    store,
		kv:       kv,
		debounce: DebounceWindow,
		enabled:  true,
	}
	for _, opt := range opts {
		opt(a)
	}

	if data, err := kv.Get(ctx, AutosaveKey); err == nil {
		a.enabled = string(data) != "false"
	}

	a.loadSnapshot(ctx)
	store.AddListener(a)
	return a
}

func (a *Autosaver) loadSnapshot(ctx context.Context) {
	data, err := a.kv.Get(ctx, SessionsKey)
	if err != nil {
		if err != domain.ErrKeyNotFound {
			slog.Warn("autosave: failed to read snapshot, starting empty", "error", err)
		}
		return
	}

	var sessions []*models.ChatSession
	if err := json.Unmarshal(data, &sessions); err != nil {
		slog.Warn("autosave: corrupt snapshot, starting empty", "error", err)
		return
	}
	a.store.Install(sessions)
	slog.Info("autosave: snapshot loaded", "sessions", len(sessions))
}

// Enabled reports the autosave toggle.
func (a *Autosaver) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

// SetEnabled flips the toggle and persists the preference immediately.
func (a *Autosaver) SetEnabled(enabled bool) {
	a.mu.Lock()
	a.enabled = enabled
	if !enabled && a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()

	value := "true"
	if !enabled {
		value = "false"
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := a.kv.Set(ctx, AutosaveKey, []byte(value)); err != nil {
		a.reportError(fmt.Errorf("persist autosave preference: %w", err))
	}
}

// SessionChanged implements ports.SessionListener: deletions write through
// immediately, every other mutation schedules a debounced snapshot.
func (a *Autosaver) SessionChanged(change ports.Change) {
	switch change.Kind {
	case ports.ChangeSessionDeleted:
		a.writeNow()
	case ports.ChangeSessionSwitched:
		// Pure bookkeeping, nothing to persist.
	default:
		a.Schedule()
	}
}

// Schedule arms the single-slot debounce timer. Repeated calls within the
// window replace the pending write rather than queueing additional ones.
func (a *Autosaver) Schedule() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.enabled || a.closed {
		return
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.debounce, a.writeNow)
}

// writeNow serializes the full collection and writes it, bypassing debounce.
func (a *Autosaver) writeNow() {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	enabled := a.enabled
	a.mu.Unlock()

	if !enabled {
		return
	}

	data, err := json.Marshal(a.store.Snapshot())
	if err != nil {
		a.reportError(fmt.Errorf("encode session snapshot: %w", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := a.kv.Set(ctx, SessionsKey, data); err != nil {
		a.reportError(fmt.Errorf("write session snapshot: %w", err))
		return
	}
	metrics.AutosaveWrites.Inc()
}

// ClearAll removes the persisted collection immediately.
func (a *Autosaver) ClearAll() {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := a.kv.Delete(ctx, SessionsKey); err != nil {
		a.reportError(fmt.Errorf("clear session snapshot: %w", err))
	}
}

// Export serializes the current collection.
func (a *Autosaver) Export() ([]byte, error) {
	return json.Marshal(a.store.Snapshot())
}

// Import merges a serialized snapshot into the store, upserting by session
// id. A decode failure leaves existing state untouched and returns false.
func (a *Autosaver) Import(data []byte) bool {
	var sessions []*models.ChatSession
	if err := json.Unmarshal(data, &sessions); err != nil {
		slog.Warn("autosave: import failed", "error", err)
		return false
	}
	a.store.Upsert(sessions)
	a.writeNow()
	return true
}

// SizeBytes reports the serialized size of the current collection.
func (a *Autosaver) SizeBytes() int64 {
	data, err := json.Marshal(a.store.Snapshot())
	if err != nil {
		return 0
	}
	return int64(len(data))
}

// SizeHuman renders SizeBytes for display.
func (a *Autosaver) SizeHuman() string {
	n := a.SizeBytes()
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// Close flushes any pending write and stops the timer.
func (a *Autosaver) Close() {
	a.mu.Lock()
	pending := a.timer != nil
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.closed = true
	a.mu.Unlock()

	if pending {
		a.writeNow()
	}
}

func (a *Autosaver) reportError(err error) {
	slog.Warn("autosave: persistence failure", "error", err)
	metrics.AutosaveErrors.Inc()
	if a.onError != nil {
		a.onError(err)
	}
}
