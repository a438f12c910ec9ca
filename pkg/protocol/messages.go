package protocol

// ErrorMessage reports a failure to the client.
type ErrorMessage struct {
	Code    string `msgpack:"code" json:"code"`
	Message string `msgpack:"message" json:"message"`
}

// SessionEvent carries session lifecycle changes (created, deleted,
// switched).
type SessionEvent struct {
	SessionID string `msgpack:"session_id" json:"session_id"`
	Title     string `msgpack:"title,omitempty" json:"title,omitempty"`
	Model     string `msgpack:"model,omitempty" json:"model,omitempty"`
}

// MessageEvent carries message append/update notifications. Updates during a
// live stream include the folded transcript so clients can render progress
// without tracking individual steps.
type MessageEvent struct {
	SessionID  string `msgpack:"session_id" json:"session_id"`
	MessageID  string `msgpack:"message_id" json:"message_id"`
	Role       string `msgpack:"role" json:"role"`
	Content    string `msgpack:"content,omitempty" json:"content,omitempty"`
	Thinking   string `msgpack:"thinking,omitempty" json:"thinking,omitempty"`
	IsThinking bool   `msgpack:"is_thinking,omitempty" json:"is_thinking,omitempty"`
	IsComplete bool   `msgpack:"is_complete,omitempty" json:"is_complete,omitempty"`
	IsError    bool   `msgpack:"is_error,omitempty" json:"is_error,omitempty"`
}

// ReasoningStepEvent mirrors one decoded step frame.
type ReasoningStepEvent struct {
	SessionID   string `msgpack:"session_id" json:"session_id"`
	MessageID   string `msgpack:"message_id" json:"message_id"`
	StepNumber  int    `msgpack:"step_number" json:"step_number"`
	StepType    string `msgpack:"step_type" json:"step_type"`
	Description string `msgpack:"description,omitempty" json:"description,omitempty"`
	Tool        string `msgpack:"tool,omitempty" json:"tool,omitempty"`
	DurationMs  int64  `msgpack:"duration_ms,omitempty" json:"duration_ms,omitempty"`
}

// StreamEvent marks the start or end of an agentic stream.
type StreamEvent struct {
	SessionID  string `msgpack:"session_id" json:"session_id"`
	MessageID  string `msgpack:"message_id" json:"message_id"`
	Model      string `msgpack:"model,omitempty" json:"model,omitempty"`
	Success    bool   `msgpack:"success,omitempty" json:"success,omitempty"`
	DurationMs int64  `msgpack:"duration_ms,omitempty" json:"duration_ms,omitempty"`
	Error      string `msgpack:"error,omitempty" json:"error,omitempty"`
}

// ConnectionSampleEvent mirrors the monitor's visible state.
type ConnectionSampleEvent struct {
	Status    string `msgpack:"status" json:"status"`
	Quality   string `msgpack:"quality" json:"quality"`
	LatencyMs int64  `msgpack:"latency_ms" json:"latency_ms"`
	Timestamp int64  `msgpack:"timestamp" json:"timestamp"`
}

// AnalyticsSummaryEvent carries the refreshed recommendation after new
// telemetry lands.
type AnalyticsSummaryEvent struct {
	TotalEvents         int     `msgpack:"total_events" json:"total_events"`
	ConnectionTimeoutMs int64   `msgpack:"connection_timeout_ms" json:"connection_timeout_ms"`
	ResponseTimeoutMs   int64   `msgpack:"response_timeout_ms" json:"response_timeout_ms"`
	Confidence          float64 `msgpack:"confidence" json:"confidence"`
}

// Subscribe is sent by a client to opt into engine events.
type Subscribe struct {
	// SessionID narrows delivery to one session; empty subscribes to all.
	SessionID string `msgpack:"session_id,omitempty" json:"session_id,omitempty"`
}

// SubscribeAck confirms a subscription and tells the client where the
// sequence starts.
type SubscribeAck struct {
	Seq uint64 `msgpack:"seq" json:"seq"`
}
