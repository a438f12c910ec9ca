package models

import (
	"encoding/json"
	"time"
)

type StepType string

const (
	StepTypePlanning    StepType = "planning"
	StepTypeToolCall    StepType = "tool_call"
	StepTypeAnalysis    StepType = "analysis"
	StepTypeSynthesis   StepType = "synthesis"
	StepTypeFinalAnswer StepType = "final_answer"
	StepTypeComplete    StepType = "complete"
	StepTypeError       StepType = "error"
)

// IsTerminal reports whether a step of this type ends the stream.
func (t StepType) IsTerminal() bool {
	return t == StepTypeComplete || t == StepTypeFinalAnswer || t == StepTypeError
}

// Known tool names emitted by the backend.
const (
	ToolSearchEmails    = "search_emails"
	ToolExtractEntities = "extract_entities"
	ToolFetchThread     = "fetch_thread"
)

// ToolCall identifies the tool a reasoning step invoked, with a typed payload
// per known tool and a raw fallback for tools this build does not know about.
type ToolCall struct {
	Name string `json:"tool"`

	// Exactly one of the typed payloads is set for known tools.
	Search   *SearchParams   `json:"search,omitempty"`
	Entities *EntitiesParams `json:"entities,omitempty"`
	Thread   *ThreadParams   `json:"thread,omitempty"`

	// Raw preserves the parameters of unknown tools verbatim.
	Raw json.RawMessage `json:"raw,omitempty"`
}

type SearchParams struct {
	Query       string `json:"query"`
	MaxDaysBack int    `json:"max_days_back,omitempty"`
	Limit       int    `json:"limit,omitempty"`
}

type EntitiesParams struct {
	MessageID string   `json:"message_id,omitempty"`
	Kinds     []string `json:"kinds,omitempty"`
}

type ThreadParams struct {
	ThreadID string `json:"thread_id"`
}

// ParseToolCall builds a ToolCall from the wire form {tool, parameters}.
// Unknown tools keep their parameters as raw JSON.
func ParseToolCall(name string, params json.RawMessage) *ToolCall {
	tc := &ToolCall{Name: name}
	switch name {
	case ToolSearchEmails:
		var p SearchParams
		if err := json.Unmarshal(params, &p); err == nil {
			tc.Search = &p
			return tc
		}
	case ToolExtractEntities:
		var p EntitiesParams
		if err := json.Unmarshal(params, &p); err == nil {
			tc.Entities = &p
			return tc
		}
	case ToolFetchThread:
		var p ThreadParams
		if err := json.Unmarshal(params, &p); err == nil {
			tc.Thread = &p
			return tc
		}
	}
	tc.Raw = params
	return tc
}

// ToolResult is the opaque outcome of a tool invocation.
type ToolResult struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// ReasoningStep is one unit of the backend's disclosed work for an in-flight
// assistant message. Steps are append-only in arrival order; the buffer is
// discarded once the message finalizes.
type ReasoningStep struct {
	StepNumber  int         `json:"step_number"`
	Type        StepType    `json:"step_type"`
	Description string      `json:"description,omitempty"`
	Content     string      `json:"content,omitempty"`
	ToolCall    *ToolCall   `json:"tool_call,omitempty"`
	ToolResult  *ToolResult `json:"tool_result,omitempty"`
	DurationMs  int64       `json:"duration_ms,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}
