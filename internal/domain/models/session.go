package models

import (
	"time"
)

// ChatSession represents one conversation with the assistant. Messages are
// embedded in creation order; the newest session sorts first in listings.
type ChatSession struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Model        string         `json:"model"`
	MessageCount int            `json:"message_count"`
	Messages     []*ChatMessage `json:"messages"`
	IsActive     bool           `json:"is_active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func NewChatSession(id, title, model string) *ChatSession {
	now := time.Now().UTC()
	return &ChatSession{
		ID:        id,
		Title:     title,
		Model:     model,
		Messages:  []*ChatMessage{},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch recomputes the derived fields after a mutation.
func (s *ChatSession) Touch() {
	s.MessageCount = len(s.Messages)
	s.UpdatedAt = time.Now().UTC()
}

// LastMessage returns the most recently appended message, or nil.
func (s *ChatSession) LastMessage() *ChatMessage {
	if len(s.Messages) == 0 {
		return nil
	}
	return s.Messages[len(s.Messages)-1]
}

// Clone returns a deep copy safe to hand to readers while the original keeps
// mutating under the store lock.
func (s *ChatSession) Clone() *ChatSession {
	out := *s
	out.Messages = make([]*ChatMessage, len(s.Messages))
	for i, m := range s.Messages {
		out.Messages[i] = m.Clone()
	}
	return &out
}
