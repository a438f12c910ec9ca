package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StreamsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_streams_started_total",
		Help: "Total agentic streams opened",
	})

	StreamsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_streams_completed_total",
		Help: "Total agentic streams finished, by outcome",
	}, []string{"outcome"})

	StreamDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "courier_stream_duration_seconds",
		Help:    "Agentic stream duration from request to terminal event",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	ReasoningSteps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_reasoning_steps_total",
		Help: "Total decoded reasoning step frames",
	})

	FramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_frames_dropped_total",
		Help: "Total malformed stream frames dropped",
	})

	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "courier_sessions_active",
		Help: "Number of sessions currently held in memory",
	})

	ConnectionLatency = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "courier_connection_latency_ms",
		Help: "Latency of the most recent health probe in milliseconds",
	})

	ConnectionStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "courier_connection_status",
		Help: "Current connectivity state (1 for the active state, 0 otherwise)",
	}, []string{"status"})

	AutosaveWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_autosave_writes_total",
		Help: "Total debounced snapshot writes",
	})

	AutosaveErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_autosave_errors_total",
		Help: "Total failed snapshot writes",
	})

	AnalyticsPersistErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_analytics_persist_errors_total",
		Help: "Total failed telemetry log writes",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_http_requests_total",
		Help: "Total HTTP requests served, by method, path and status",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "courier_http_request_duration_seconds",
		Help:    "HTTP request duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	WSClientsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "courier_ws_clients_connected",
		Help: "Number of connected dashboard WebSocket clients",
	})
)
