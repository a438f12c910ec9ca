// Package analytics turns the engine's raw telemetry log into statistics and
// adaptive timeout recommendations.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/pmarren/courier/internal/adapters/metrics"
	"github.com/pmarren/courier/internal/domain"
	"github.com/pmarren/courier/internal/domain/models"
	"github.com/pmarren/courier/internal/ports"
)

const (
	// MaxEvents caps the ring buffer; oldest events are evicted first.
	MaxEvents = 1000

	// StorageKey is the durable-store entry holding the event log.
	StorageKey = "analytics_events"

	persistTimeout = 5 * time.Second
)

// Fixed recommendations used until enough telemetry has accumulated.
const (
	DefaultConnectionTimeoutMs = 30_000
	DefaultResponseTimeoutMs   = 120_000
	minRecommendationEvents    = 10
)

// Aggregator records timestamped events into a bounded ring buffer backed by
// the durable store and computes statistics on demand. It implements
// ports.TelemetrySink.
type Aggregator struct {
	mu     sync.Mutex
	events []models.AnalyticsEvent

	store   ports.KVStore
	onError func(error)
}

var _ ports.TelemetrySink = (*Aggregator)(nil)

type Option func(*Aggregator)

// WithErrorCallback registers an observer for persistence failures. Failures
// are always logged and never propagate to the recording caller.
func WithErrorCallback(fn func(error)) Option {
	return func(a *Aggregator) {
		a.onError = fn
	}
}

// New creates an aggregator and loads any persisted event log. A missing or
// corrupt snapshot degrades to an empty buffer.
func New(ctx context.Context, store ports.KVStore, opts ...Option) *Aggregator {
	a := &Aggregator{store: store}
	for _, opt := range opts {
		opt(a)
	}

	data, err := store.Get(ctx, StorageKey)
	if err != nil {
		if err != domain.ErrKeyNotFound {
			slog.Warn("analytics: failed to load event log, starting empty", "error", err)
		}
		return a
	}

	var events []models.AnalyticsEvent
	if err := json.Unmarshal(data, &events); err != nil {
		slog.Warn("analytics: corrupt event log, starting empty", "error", err)
		return a
	}
	if len(events) > MaxEvents {
		events = events[len(events)-MaxEvents:]
	}
	a.events = events
	return a
}

// Record appends an event, stamping it with the current time when unset, and
// persists the truncated buffer best-effort.
func (a *Aggregator) Record(event models.AnalyticsEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	a.mu.Lock()
	a.events = append(a.events, event)
	if len(a.events) > MaxEvents {
		a.events = a.events[len(a.events)-MaxEvents:]
	}
	snapshot := make([]models.AnalyticsEvent, len(a.events))
	copy(snapshot, a.events)
	a.mu.Unlock()

	a.persist(snapshot)
}

// RecordResponse records the outcome of one agentic cycle. Successful cycles
// are stored as success events, failed ones as error events.
func (a *Aggregator) RecordResponse(model string, duration time.Duration, responseLength int, success bool, errText string) {
	eventType := models.EventSuccess
	if !success {
		eventType = models.EventError
	}
	a.Record(models.AnalyticsEvent{
		Type:           eventType,
		Model:          model,
		ResponseTimeMs: duration.Milliseconds(),
		ResponseLength: responseLength,
		Success:        success,
		Error:          errText,
	})
}

// RecordConnection records one health-probe sample.
func (a *Aggregator) RecordConnection(sample models.ConnectionSample) {
	a.Record(models.AnalyticsEvent{
		Type:      models.EventConnection,
		Timestamp: sample.Timestamp,
		LatencyMs: sample.LatencyMs,
		Quality:   sample.Quality,
		Status:    sample.Status,
	})
}

// RecordTimeout records that a configured limit was exceeded.
func (a *Aggregator) RecordTimeout(cause models.TimeoutCause, configured, actual time.Duration, model string) {
	a.Record(models.AnalyticsEvent{
		Type:         models.EventTimeout,
		Cause:        cause,
		ConfiguredMs: configured.Milliseconds(),
		ActualMs:     actual.Milliseconds(),
		Model:        model,
	})
}

func (a *Aggregator) persist(events []models.AnalyticsEvent) {
	data, err := json.Marshal(events)
	if err != nil {
		a.reportError(fmt.Errorf("encode event log: %w", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := a.store.Set(ctx, StorageKey, data); err != nil {
		a.reportError(fmt.Errorf("persist event log: %w", err))
	}
}

func (a *Aggregator) reportError(err error) {
	slog.Warn("analytics: persistence failure", "error", err)
	metrics.AnalyticsPersistErrors.Inc()
	if a.onError != nil {
		a.onError(err)
	}
}

// Events returns a copy of the current buffer, oldest first.
func (a *Aggregator) Events() []models.AnalyticsEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.AnalyticsEvent, len(a.events))
	copy(out, a.events)
	return out
}

// Clear resets the buffer and deletes the persisted log.
func (a *Aggregator) Clear() {
	a.mu.Lock()
	a.events = nil
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := a.store.Delete(ctx, StorageKey); err != nil {
		a.reportError(fmt.Errorf("clear event log: %w", err))
	}
}

// Export serializes the current buffer as JSON.
func (a *Aggregator) Export() ([]byte, error) {
	return json.Marshal(a.Events())
}

func (a *Aggregator) eventsInWindow(windowDays int) []models.AnalyticsEvent {
	cutoff := time.Now().UTC().AddDate(0, 0, -windowDays)
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []models.AnalyticsEvent
	for _, e := range a.events {
		if !e.Timestamp.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// TimeoutStats summarizes timeout events within the window.
type TimeoutStats struct {
	Total              int            `json:"total"`
	ConnectionTimeouts int            `json:"connection_timeouts"`
	ResponseTimeouts   int            `json:"response_timeouts"`
	AvgConfiguredMs    float64        `json:"avg_configured_ms"`
	AvgActualMs        float64        `json:"avg_actual_ms"`
	ByModel            map[string]int `json:"by_model"`
}

func (a *Aggregator) TimeoutStats(windowDays int) TimeoutStats {
	stats := TimeoutStats{ByModel: map[string]int{}}

	var sumConfigured, sumActual int64
	for _, e := range a.eventsInWindow(windowDays) {
		if e.Type != models.EventTimeout {
			continue
		}
		stats.Total++
		switch e.Cause {
		case models.TimeoutCauseConnection:
			stats.ConnectionTimeouts++
		case models.TimeoutCauseResponse:
			stats.ResponseTimeouts++
		}
		sumConfigured += e.ConfiguredMs
		sumActual += e.ActualMs
		if e.Model != "" {
			stats.ByModel[e.Model]++
		}
	}

	if stats.Total > 0 {
		stats.AvgConfiguredMs = float64(sumConfigured) / float64(stats.Total)
		stats.AvgActualMs = float64(sumActual) / float64(stats.Total)
	}
	return stats
}

// ResponseTimeStats summarizes success/error events within the window.
type ResponseTimeStats struct {
	Total       int                `json:"total"`
	MeanMs      float64            `json:"mean_ms"`
	MedianMs    int64              `json:"median_ms"`
	P95Ms       int64              `json:"p95_ms"`
	SuccessRate float64            `json:"success_rate"`
	AvgByModel  map[string]float64 `json:"avg_by_model"`
}

func (a *Aggregator) ResponseTimeStats(windowDays int) ResponseTimeStats {
	stats := ResponseTimeStats{AvgByModel: map[string]float64{}}

	var times []int64
	var successes int
	modelSums := map[string]int64{}
	modelCounts := map[string]int{}

	for _, e := range a.eventsInWindow(windowDays) {
		if e.Type != models.EventSuccess && e.Type != models.EventError {
			continue
		}
		times = append(times, e.ResponseTimeMs)
		if e.Success {
			successes++
		}
		if e.Model != "" {
			modelSums[e.Model] += e.ResponseTimeMs
			modelCounts[e.Model]++
		}
	}

	n := len(times)
	stats.Total = n
	if n == 0 {
		return stats
	}

	var sum int64
	for _, t := range times {
		sum += t
	}
	sorted := make([]int64, n)
	copy(sorted, times)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	stats.MeanMs = float64(sum) / float64(n)
	// Median takes the lower-middle element for even counts rather than
	// averaging the two middles.
	stats.MedianMs = sorted[(n-1)/2]
	stats.P95Ms = sorted[p95Index(n)]
	stats.SuccessRate = float64(successes) / float64(n)
	for model, total := range modelSums {
		stats.AvgByModel[model] = float64(total) / float64(modelCounts[model])
	}
	return stats
}

// p95Index is floor(n*0.95), clamped to the last element. For n divisible by
// 20 this lands one past the 95th percentile value; callers rely on that
// exact boundary.
func p95Index(n int) int {
	idx := int(float64(n) * 0.95)
	if idx >= n {
		idx = n - 1
	}
	return idx
}

// ConnectionQualityStats summarizes connection samples within the window.
type ConnectionQualityStats struct {
	Total            int                      `json:"total"`
	AvgLatencyMs     float64                  `json:"avg_latency_ms"`
	QualityHistogram map[string]int           `json:"quality_histogram"`
	CurrentQuality   models.ConnectionQuality `json:"current_quality,omitempty"`
}

func (a *Aggregator) ConnectionQualityStats(windowDays int) ConnectionQualityStats {
	stats := ConnectionQualityStats{QualityHistogram: map[string]int{}}

	var sum int64
	for _, e := range a.eventsInWindow(windowDays) {
		if e.Type != models.EventConnection {
			continue
		}
		stats.Total++
		sum += e.LatencyMs
		stats.QualityHistogram[string(e.Quality)]++
		// Window slice is oldest-first, so the last match wins.
		stats.CurrentQuality = e.Quality
	}

	if stats.Total > 0 {
		stats.AvgLatencyMs = float64(sum) / float64(stats.Total)
	}
	return stats
}

// Recommendation is the adaptive timeout suggestion derived from history.
type Recommendation struct {
	ConnectionTimeoutMs int64   `json:"connection_timeout_ms"`
	ResponseTimeoutMs   int64   `json:"response_timeout_ms"`
	Confidence          float64 `json:"confidence"`
}

// RecommendedTimeouts derives timeouts from accumulated telemetry. With fewer
// than ten recorded events it returns fixed defaults with zero confidence.
func (a *Aggregator) RecommendedTimeouts() Recommendation {
	a.mu.Lock()
	total := len(a.events)
	a.mu.Unlock()

	if total < minRecommendationEvents {
		return Recommendation{
			ConnectionTimeoutMs: DefaultConnectionTimeoutMs,
			ResponseTimeoutMs:   DefaultResponseTimeoutMs,
			Confidence:          0,
		}
	}

	// Whole-history windows: the recommendation considers everything the
	// buffer still holds.
	const allDays = 1 << 20
	timeouts := a.TimeoutStats(allDays)
	responses := a.ResponseTimeStats(allDays)

	connection := clampMs(int64(timeouts.AvgActualMs*1.5), 10_000, 60_000)
	response := clampMs(int64(float64(responses.P95Ms)*1.5), 30_000, 600_000)

	confidence := float64(total) / 100
	if confidence > 1 {
		confidence = 1
	}

	return Recommendation{
		ConnectionTimeoutMs: connection,
		ResponseTimeoutMs:   response,
		Confidence:          confidence,
	}
}

func clampMs(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
