package models

import (
	"time"
)

type ConnectionStatus string

const (
	ConnectionOnline       ConnectionStatus = "online"
	ConnectionOffline      ConnectionStatus = "offline"
	ConnectionSlow         ConnectionStatus = "slow"
	ConnectionReconnecting ConnectionStatus = "reconnecting"
)

type ConnectionQuality string

const (
	QualityExcellent ConnectionQuality = "excellent"
	QualityGood      ConnectionQuality = "good"
	QualityFair      ConnectionQuality = "fair"
	QualityPoor      ConnectionQuality = "poor"
)

// ConnectionSample is the outcome of one health probe. The most recent sample
// is the monitor's externally visible state.
type ConnectionSample struct {
	Status    ConnectionStatus  `json:"status"`
	Quality   ConnectionQuality `json:"quality"`
	LatencyMs int64             `json:"latency_ms"`
	Timestamp time.Time         `json:"timestamp"`
}

type EventType string

const (
	EventTimeout    EventType = "timeout"
	EventConnection EventType = "connection"
	EventResponse   EventType = "response"
	EventError      EventType = "error"
	EventSuccess    EventType = "success"
)

// TimeoutCause distinguishes which configured limit a timeout event tripped.
type TimeoutCause string

const (
	TimeoutCauseConnection TimeoutCause = "connection"
	TimeoutCauseResponse   TimeoutCause = "response"
)

// AnalyticsEvent is one append-only entry in the telemetry ring buffer.
// Events are never mutated after creation.
type AnalyticsEvent struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// Timeout events
	Cause        TimeoutCause `json:"cause,omitempty"`
	ConfiguredMs int64        `json:"configured_ms,omitempty"`
	ActualMs     int64        `json:"actual_ms,omitempty"`

	// Response/success/error events
	Model          string `json:"model,omitempty"`
	ResponseTimeMs int64  `json:"response_time_ms,omitempty"`
	ResponseLength int    `json:"response_length,omitempty"`
	Success        bool   `json:"success,omitempty"`
	Error          string `json:"error,omitempty"`

	// Connection events
	LatencyMs int64             `json:"latency_ms,omitempty"`
	Quality   ConnectionQuality `json:"quality,omitempty"`
	Status    ConnectionStatus  `json:"status,omitempty"`
}
