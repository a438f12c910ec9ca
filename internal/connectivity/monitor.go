// Package connectivity estimates reachability and latency to the backend via
// periodic lightweight health probes.
package connectivity

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pmarren/courier/internal/adapters/httpclient"
	"github.com/pmarren/courier/internal/adapters/metrics"
	"github.com/pmarren/courier/internal/domain/models"
	"github.com/pmarren/courier/internal/ports"
)

const DefaultProbeInterval = 30 * time.Second

// Latency thresholds for quality classification.
const (
	latencyExcellent = 100 * time.Millisecond
	latencyGood      = 300 * time.Millisecond
	latencyFair      = 1000 * time.Millisecond
)

// Monitor drives the online/offline/slow/reconnecting state machine. Probes
// run on their own goroutine and never block callers.
type Monitor struct {
	healthURL string
	client    *http.Client
	sink      ports.TelemetrySink
	interval  time.Duration
	onSample  func(models.ConnectionSample)

	mu        sync.Mutex
	current   models.ConnectionSample
	reachable bool

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

type Option func(*Monitor)

func WithInterval(d time.Duration) Option {
	return func(m *Monitor) { m.interval = d }
}

func WithHTTPClient(c *http.Client) Option {
	return func(m *Monitor) { m.client = c }
}

// WithOnSample registers a callback invoked with every visible state change.
// The callback runs on the monitor goroutine and must not block.
func WithOnSample(fn func(models.ConnectionSample)) Option {
	return func(m *Monitor) { m.onSample = fn }
}

// WithInitialReachability seeds the platform reachability flag; the initial
// state reflects it.
func WithInitialReachability(reachable bool) Option {
	return func(m *Monitor) { m.reachable = reachable }
}

func New(baseURL string, sink ports.TelemetrySink, opts ...Option) *Monitor {
	m := &Monitor{
		healthURL: strings.TrimSuffix(baseURL, "/") + "/health",
		client:    httpclient.NewShort(),
		sink:      sink,
		interval:  DefaultProbeInterval,
		reachable: true,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	status := models.ConnectionOnline
	quality := models.QualityGood
	if !m.reachable {
		status = models.ConnectionOffline
		quality = models.QualityPoor
	}
	m.current = models.ConnectionSample{
		Status:    status,
		Quality:   quality,
		Timestamp: time.Now().UTC(),
	}
	return m
}

// Start launches the probe loop. Stop or context cancellation ends it.
func (m *Monitor) Start(ctx context.Context) {
	go func() {
		defer close(m.done)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case <-ticker.C:
				m.runProbe(ctx)
			}
		}
	}()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
}

// State returns the most recent sample.
func (m *Monitor) State() models.ConnectionSample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// SetReachable applies a platform reachability-change signal, transitioning
// directly to online/offline outside the polling cadence.
func (m *Monitor) SetReachable(reachable bool) {
	m.mu.Lock()
	m.reachable = reachable
	m.mu.Unlock()

	if reachable {
		m.setState(models.ConnectionSample{
			Status:    models.ConnectionOnline,
			Quality:   models.QualityGood,
			Timestamp: time.Now().UTC(),
		}, false)
	} else {
		m.setState(models.ConnectionSample{
			Status:    models.ConnectionOffline,
			Quality:   models.QualityPoor,
			Timestamp: time.Now().UTC(),
		}, false)
	}
}

// Retry is an explicit caller-triggered probe: reconnecting immediately, then
// online or offline from a single probe outcome.
func (m *Monitor) Retry(ctx context.Context) models.ConnectionSample {
	m.setState(models.ConnectionSample{
		Status:    models.ConnectionReconnecting,
		Quality:   m.State().Quality,
		Timestamp: time.Now().UTC(),
	}, false)

	latency, err := m.probe(ctx)
	sample := models.ConnectionSample{
		LatencyMs: latency.Milliseconds(),
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		sample.Status = models.ConnectionOffline
		sample.Quality = models.QualityPoor
	} else {
		// Quality is not reassessed beyond success/failure here.
		sample.Status = models.ConnectionOnline
		sample.Quality = models.QualityGood
	}
	m.setState(sample, true)
	return sample
}

func (m *Monitor) runProbe(ctx context.Context) {
	m.mu.Lock()
	reachable := m.reachable
	m.mu.Unlock()

	if !reachable {
		m.setState(models.ConnectionSample{
			Status:    models.ConnectionOffline,
			Quality:   models.QualityPoor,
			Timestamp: time.Now().UTC(),
		}, true)
		return
	}

	latency, err := m.probe(ctx)
	sample := classify(latency, err)
	m.setState(sample, true)
}

// probe issues the health request and returns the round-trip latency. A
// non-success status is reported as errNonSuccess.
func (m *Monitor) probe(ctx context.Context) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.healthURL, nil)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	resp, err := m.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return latency, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return latency, errNonSuccess{status: resp.StatusCode}
	}
	return latency, nil
}

type errNonSuccess struct{ status int }

func (e errNonSuccess) Error() string { return http.StatusText(e.status) }

func classify(latency time.Duration, err error) models.ConnectionSample {
	sample := models.ConnectionSample{
		LatencyMs: latency.Milliseconds(),
		Timestamp: time.Now().UTC(),
	}

	switch {
	case err != nil:
		if _, ok := err.(errNonSuccess); ok {
			sample.Status = models.ConnectionSlow
			sample.Quality = models.QualityPoor
		} else {
			sample.Status = models.ConnectionOffline
			sample.Quality = models.QualityPoor
		}
	case latency < latencyExcellent:
		sample.Status = models.ConnectionOnline
		sample.Quality = models.QualityExcellent
	case latency < latencyGood:
		sample.Status = models.ConnectionOnline
		sample.Quality = models.QualityGood
	case latency < latencyFair:
		sample.Status = models.ConnectionSlow
		sample.Quality = models.QualityFair
	default:
		sample.Status = models.ConnectionSlow
		sample.Quality = models.QualityPoor
	}
	return sample
}

// setState installs the sample as the visible state; probe outcomes are also
// forwarded to the telemetry sink.
func (m *Monitor) setState(sample models.ConnectionSample, probeOutcome bool) {
	m.mu.Lock()
	prev := m.current.Status
	m.current = sample
	m.mu.Unlock()

	if prev != sample.Status {
		slog.Info("connectivity: state changed",
			"from", prev, "to", sample.Status,
			"quality", sample.Quality, "latency_ms", sample.LatencyMs)
	}

	metrics.ConnectionLatency.Set(float64(sample.LatencyMs))
	for _, s := range []models.ConnectionStatus{
		models.ConnectionOnline, models.ConnectionOffline,
		models.ConnectionSlow, models.ConnectionReconnecting,
	} {
		v := 0.0
		if s == sample.Status {
			v = 1.0
		}
		metrics.ConnectionStatus.WithLabelValues(string(s)).Set(v)
	}

	if probeOutcome && m.sink != nil {
		m.sink.RecordConnection(sample)
	}
	if m.onSample != nil {
		m.onSample(sample)
	}
}
