package ports

import (
	"time"

	"github.com/pmarren/courier/internal/domain/models"
)

// SessionStore is the slice of the session/message store the streaming client
// depends on.
type SessionStore interface {
	Session(sessionID string) (*models.ChatSession, error)
	AppendMessage(sessionID string, msg *models.ChatMessage) error
	UpdateLastMessage(sessionID string, update models.MessageUpdate) error
}

// TelemetrySink receives timing and outcome telemetry from the streaming
// client and the connection monitor.
type TelemetrySink interface {
	RecordResponse(model string, duration time.Duration, responseLength int, success bool, errText string)
	RecordConnection(sample models.ConnectionSample)
	RecordTimeout(cause models.TimeoutCause, configured, actual time.Duration, model string)
}

// ChangeKind enumerates session store mutations.
type ChangeKind string

const (
	ChangeSessionCreated  ChangeKind = "session_created"
	ChangeSessionDeleted  ChangeKind = "session_deleted"
	ChangeSessionSwitched ChangeKind = "session_switched"
	ChangeMessageAppended ChangeKind = "message_appended"
	ChangeMessageUpdated  ChangeKind = "message_updated"
)

// Change describes one store mutation, delivered synchronously to listeners
// after the mutation has been applied.
type Change struct {
	Kind      ChangeKind
	SessionID string
	MessageID string
}

// SessionListener observes session store mutations. Implementations must not
// block; long work should be handed off to their own goroutines.
type SessionListener interface {
	SessionChanged(change Change)
}

// SessionListenerFunc adapts a function to the SessionListener interface.
type SessionListenerFunc func(change Change)

func (f SessionListenerFunc) SessionChanged(change Change) { f(change) }
