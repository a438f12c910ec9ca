package models

import (
	"time"
)

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// MessageMetadata carries the streaming side-channel of a message: the
// reasoning transcript accumulated while the response is produced, plus
// completion/error markers. Extra holds fields the engine does not interpret.
type MessageMetadata struct {
	Thinking         string         `json:"thinking,omitempty"`
	Model            string         `json:"model,omitempty"`
	GenerationTimeMs int64          `json:"generation_time_ms,omitempty"`
	IsThinking       bool           `json:"is_thinking,omitempty"`
	IsComplete       bool           `json:"is_complete,omitempty"`
	IsError          bool           `json:"is_error,omitempty"`
	Error            string         `json:"error,omitempty"`
	Extra            map[string]any `json:"extra,omitempty"`
}

// Merge overlays the non-zero fields of other onto m (shallow merge; Extra
// keys are upserted individually). Boolean markers are taken from other
// unconditionally so a finalizer can clear is_thinking.
func (m *MessageMetadata) Merge(other MessageMetadata) {
	if other.Thinking != "" {
		m.Thinking = other.Thinking
	}
	if other.Model != "" {
		m.Model = other.Model
	}
	if other.GenerationTimeMs != 0 {
		m.GenerationTimeMs = other.GenerationTimeMs
	}
	m.IsThinking = other.IsThinking
	m.IsComplete = other.IsComplete
	m.IsError = other.IsError
	if other.Error != "" {
		m.Error = other.Error
	}
	for k, v := range other.Extra {
		if m.Extra == nil {
			m.Extra = make(map[string]any)
		}
		m.Extra[k] = v
	}
}

// ChatMessage is a single message in a session. Assistant messages are
// mutated in place while their response streams and become immutable once the
// owning stream reaches a terminal state.
type ChatMessage struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Role      MessageRole     `json:"role"`
	Content   string          `json:"content"`
	Timestamp time.Time       `json:"timestamp"`
	Metadata  MessageMetadata `json:"metadata"`
}

func NewChatMessage(id, sessionID string, role MessageRole, content string) *ChatMessage {
	return &ChatMessage{
		ID:        id,
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

func NewUserMessage(id, sessionID, content string) *ChatMessage {
	return NewChatMessage(id, sessionID, MessageRoleUser, content)
}

// NewPendingAssistantMessage creates the placeholder an agentic stream fills
// in: empty content, reasoning-in-progress marker set.
func NewPendingAssistantMessage(id, sessionID, model string) *ChatMessage {
	msg := NewChatMessage(id, sessionID, MessageRoleAssistant, "")
	msg.Metadata = MessageMetadata{
		Model:      model,
		IsThinking: true,
	}
	return msg
}

// MessageUpdate is a partial update applied to the last message of a session.
// Nil fields are left untouched; Metadata is shallow-merged.
type MessageUpdate struct {
	Content  *string
	Metadata *MessageMetadata
}

// Apply mutates msg with the update's populated fields.
func (u MessageUpdate) Apply(msg *ChatMessage) {
	if u.Content != nil {
		msg.Content = *u.Content
	}
	if u.Metadata != nil {
		msg.Metadata.Merge(*u.Metadata)
	}
}

func (m *ChatMessage) Clone() *ChatMessage {
	out := *m
	if m.Metadata.Extra != nil {
		out.Metadata.Extra = make(map[string]any, len(m.Metadata.Extra))
		for k, v := range m.Metadata.Extra {
			out.Metadata.Extra[k] = v
		}
	}
	return &out
}
