package protocol

import (
	"github.com/vmihailenco/msgpack/v5"
)

// Envelope wraps all protocol messages with common metadata for routing and
// ordering. Envelopes are serialized using MessagePack and pushed over the
// dashboard WebSocket.
type Envelope struct {
	// Seq is the server's monotonically increasing event sequence number.
	Seq uint64 `msgpack:"seq" json:"seq"`

	// SessionID scopes the event to one chat session; empty for engine-wide
	// events such as connectivity samples.
	SessionID string `msgpack:"session_id,omitempty" json:"session_id,omitempty"`

	// Type is the numeric message type
	Type MessageType `msgpack:"type" json:"type"`

	// Meta contains optional metadata including OpenTelemetry tracing fields
	Meta map[string]interface{} `msgpack:"meta,omitempty" json:"meta,omitempty"`

	// Body contains the message-specific payload
	Body interface{} `msgpack:"body" json:"body"`
}

// Common meta keys
const (
	MetaKeyTimestamp = "timestamp"
	MetaKeyTraceID   = "messaging.trace_id"
	MetaKeySpanID    = "messaging.span_id"
)

func NewEnvelope(seq uint64, sessionID string, msgType MessageType, body interface{}) *Envelope {
	return &Envelope{
		Seq:       seq,
		SessionID: sessionID,
		Type:      msgType,
		Body:      body,
	}
}

func (e *Envelope) WithMeta(key string, value interface{}) *Envelope {
	if e.Meta == nil {
		e.Meta = make(map[string]interface{})
	}
	e.Meta[key] = value
	return e
}

// WithTracing adds OpenTelemetry tracing fields
func (e *Envelope) WithTracing(traceID, spanID string) *Envelope {
	return e.WithMeta(MetaKeyTraceID, traceID).WithMeta(MetaKeySpanID, spanID)
}

// Encode serializes the envelope to MessagePack.
func (e *Envelope) Encode() ([]byte, error) {
	return msgpack.Marshal(e)
}

// Decode deserializes a MessagePack envelope.
func Decode(data []byte) (*Envelope, error) {
	var e Envelope
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
