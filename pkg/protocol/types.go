// Package protocol defines the Courier real-time binary protocol for pushing
// engine events (session changes, reasoning steps, connectivity samples) to
// dashboard clients over WebSocket.
package protocol

// MessageType represents the type of protocol message
type MessageType uint16

const (
	// TypeErrorMessage (1) - Error notification
	TypeErrorMessage MessageType = 1
	// TypeSessionCreated (2) - A new session was created
	TypeSessionCreated MessageType = 2
	// TypeSessionDeleted (3) - A session was deleted
	TypeSessionDeleted MessageType = 3
	// TypeSessionSwitched (4) - The current session changed
	TypeSessionSwitched MessageType = 4
	// TypeMessageAppended (5) - A message was appended to a session
	TypeMessageAppended MessageType = 5
	// TypeMessageUpdated (6) - An in-flight message was updated
	TypeMessageUpdated MessageType = 6
	// TypeReasoningStep (7) - One decoded reasoning step from a live stream
	TypeReasoningStep MessageType = 7
	// TypeStreamStarted (8) - An agentic stream opened
	TypeStreamStarted MessageType = 8
	// TypeStreamFinished (9) - An agentic stream reached a terminal state
	TypeStreamFinished MessageType = 9
	// TypeConnectionSample (10) - Connectivity state change or probe outcome
	TypeConnectionSample MessageType = 10
	// TypeAnalyticsSummary (11) - Refreshed statistics snapshot
	TypeAnalyticsSummary MessageType = 11
	// TypeSubscribe (20) - Client subscribes to engine events
	TypeSubscribe MessageType = 20
	// TypeSubscribeAck (21) - Server acknowledges subscription
	TypeSubscribeAck MessageType = 21
)

// String returns the string representation of the message type
func (t MessageType) String() string {
	switch t {
	case TypeErrorMessage:
		return "ErrorMessage"
	case TypeSessionCreated:
		return "SessionCreated"
	case TypeSessionDeleted:
		return "SessionDeleted"
	case TypeSessionSwitched:
		return "SessionSwitched"
	case TypeMessageAppended:
		return "MessageAppended"
	case TypeMessageUpdated:
		return "MessageUpdated"
	case TypeReasoningStep:
		return "ReasoningStep"
	case TypeStreamStarted:
		return "StreamStarted"
	case TypeStreamFinished:
		return "StreamFinished"
	case TypeConnectionSample:
		return "ConnectionSample"
	case TypeAnalyticsSummary:
		return "AnalyticsSummary"
	case TypeSubscribe:
		return "Subscribe"
	case TypeSubscribeAck:
		return "SubscribeAck"
	default:
		return "Unknown"
	}
}
