package connectivity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmarren/courier/internal/domain/models"
)

type captureSink struct {
	mu      sync.Mutex
	samples []models.ConnectionSample
}

func (c *captureSink) RecordConnection(sample models.ConnectionSample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples = append(c.samples, sample)
}

func (c *captureSink) RecordResponse(string, time.Duration, int, bool, string) {}

func (c *captureSink) RecordTimeout(models.TimeoutCause, time.Duration, time.Duration, string) {}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.samples)
}

func TestClassifyLatencyTiers(t *testing.T) {
	cases := []struct {
		name    string
		latency time.Duration
		err     error
		status  models.ConnectionStatus
		quality models.ConnectionQuality
	}{
		{"excellent", 50 * time.Millisecond, nil, models.ConnectionOnline, models.QualityExcellent},
		{"good lower bound", 100 * time.Millisecond, nil, models.ConnectionOnline, models.QualityGood},
		{"good", 250 * time.Millisecond, nil, models.ConnectionOnline, models.QualityGood},
		{"fair lower bound", 300 * time.Millisecond, nil, models.ConnectionSlow, models.QualityFair},
		{"fair", 800 * time.Millisecond, nil, models.ConnectionSlow, models.QualityFair},
		{"poor", 1500 * time.Millisecond, nil, models.ConnectionSlow, models.QualityPoor},
		{"request failure", 20 * time.Millisecond, errors.New("refused"), models.ConnectionOffline, models.QualityPoor},
		{"non-success status", 40 * time.Millisecond, errNonSuccess{status: 503}, models.ConnectionSlow, models.QualityPoor},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sample := classify(tc.latency, tc.err)
			assert.Equal(t, tc.status, sample.Status)
			assert.Equal(t, tc.quality, sample.Quality)
			assert.Equal(t, tc.latency.Milliseconds(), sample.LatencyMs)
		})
	}
}

func TestMonitorInitialState(t *testing.T) {
	m := New("http://localhost:0", nil)
	state := m.State()
	assert.Equal(t, models.ConnectionOnline, state.Status)
	assert.Equal(t, models.QualityGood, state.Quality)

	offline := New("http://localhost:0", nil, WithInitialReachability(false))
	state = offline.State()
	assert.Equal(t, models.ConnectionOffline, state.Status)
	assert.Equal(t, models.QualityPoor, state.Quality)
}

func TestMonitorProbeLoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := &captureSink{}
	m := New(srv.URL, sink, WithInterval(20*time.Millisecond))
	m.Start(context.Background())
	defer m.Stop()

	require.Eventually(t, func() bool {
		return sink.count() >= 2
	}, 2*time.Second, 10*time.Millisecond)

	state := m.State()
	assert.Equal(t, models.ConnectionOnline, state.Status)
}

func TestMonitorProbeFailureGoesOffline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from now on

	sink := &captureSink{}
	m := New(srv.URL, sink, WithInterval(20*time.Millisecond))
	m.Start(context.Background())
	defer m.Stop()

	require.Eventually(t, func() bool {
		return m.State().Status == models.ConnectionOffline
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, models.QualityPoor, m.State().Quality)
}

func TestMonitorNonSuccessStatusIsSlow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	m := New(srv.URL, nil, WithInterval(20*time.Millisecond))
	m.Start(context.Background())
	defer m.Stop()

	require.Eventually(t, func() bool {
		return m.State().Status == models.ConnectionSlow
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, models.QualityPoor, m.State().Quality)
}

func TestMonitorUnreachableSkipsProbe(t *testing.T) {
	var requests int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
	}))
	defer srv.Close()

	sink := &captureSink{}
	m := New(srv.URL, sink,
		WithInterval(20*time.Millisecond),
		WithInitialReachability(false))
	m.Start(context.Background())
	defer m.Stop()

	// Probe cycles still record offline samples without touching the network.
	require.Eventually(t, func() bool {
		return sink.count() >= 2
	}, 2*time.Second, 10*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, requests)
}

func TestSetReachableTransitionsImmediately(t *testing.T) {
	sink := &captureSink{}
	var observed []models.ConnectionSample
	m := New("http://localhost:0", sink, WithOnSample(func(s models.ConnectionSample) {
		observed = append(observed, s)
	}))

	m.SetReachable(false)
	assert.Equal(t, models.ConnectionOffline, m.State().Status)

	m.SetReachable(true)
	assert.Equal(t, models.ConnectionOnline, m.State().Status)
	assert.Equal(t, models.QualityGood, m.State().Quality)

	// Reachability flips are visible state changes but not probe outcomes.
	assert.Zero(t, sink.count())
	assert.Len(t, observed, 2)
}

func TestRetrySuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := &captureSink{}
	var statuses []models.ConnectionStatus
	m := New(srv.URL, sink, WithOnSample(func(s models.ConnectionSample) {
		statuses = append(statuses, s.Status)
	}))

	sample := m.Retry(context.Background())
	assert.Equal(t, models.ConnectionOnline, sample.Status)
	assert.Equal(t, models.QualityGood, sample.Quality)

	// Reconnecting is shown before the probe result lands.
	require.Len(t, statuses, 2)
	assert.Equal(t, models.ConnectionReconnecting, statuses[0])
	assert.Equal(t, models.ConnectionOnline, statuses[1])

	// Only the probe outcome reaches telemetry.
	assert.Equal(t, 1, sink.count())
}

func TestRetryFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	m := New(srv.URL, &captureSink{})
	sample := m.Retry(context.Background())
	assert.Equal(t, models.ConnectionOffline, sample.Status)
	assert.Equal(t, models.QualityPoor, sample.Quality)
	assert.Equal(t, models.ConnectionOffline, m.State().Status)
}

func TestMonitorStopIsIdempotent(t *testing.T) {
	m := New("http://localhost:0", nil, WithInterval(time.Hour))
	m.Start(context.Background())
	m.Stop()
	m.Stop()
}
