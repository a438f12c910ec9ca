package protocol

import (
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

func TestMessageTypeString(t *testing.T) {
	tests := []struct {
		msgType MessageType
		want    string
	}{
		{TypeErrorMessage, "ErrorMessage"},
		{TypeSessionCreated, "SessionCreated"},
		{TypeMessageUpdated, "MessageUpdated"},
		{TypeReasoningStep, "ReasoningStep"},
		{TypeStreamFinished, "StreamFinished"},
		{TypeConnectionSample, "ConnectionSample"},
		{TypeSubscribeAck, "SubscribeAck"},
		{MessageType(999), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.msgType.String(); got != tt.want {
				t.Errorf("MessageType(%d).String() = %q, want %q", tt.msgType, got, tt.want)
			}
		})
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env := NewEnvelope(7, "cs_abc", TypeReasoningStep, ReasoningStepEvent{
		SessionID:  "cs_abc",
		MessageID:  "cm_def",
		StepNumber: 2,
		StepType:   "tool_call",
		Tool:       "search_emails",
		DurationMs: 420,
	}).WithTracing("trace-1", "span-1")

	data, err := env.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.Seq != 7 {
		t.Errorf("expected seq 7, got %d", decoded.Seq)
	}
	if decoded.SessionID != "cs_abc" {
		t.Errorf("expected session cs_abc, got %s", decoded.SessionID)
	}
	if decoded.Type != TypeReasoningStep {
		t.Errorf("expected type %d, got %d", TypeReasoningStep, decoded.Type)
	}
	if decoded.Meta[MetaKeyTraceID] != "trace-1" {
		t.Errorf("expected trace meta, got %v", decoded.Meta)
	}

	// Body survives as a generic map; re-encode it into the typed struct.
	bodyBytes, err := msgpack.Marshal(decoded.Body)
	if err != nil {
		t.Fatal(err)
	}
	var step ReasoningStepEvent
	if err := msgpack.Unmarshal(bodyBytes, &step); err != nil {
		t.Fatal(err)
	}
	if step.Tool != "search_emails" {
		t.Errorf("expected tool search_emails, got %s", step.Tool)
	}
	if step.StepNumber != 2 {
		t.Errorf("expected step 2, got %d", step.StepNumber)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte{0xc1, 0x00}); err == nil {
		t.Error("expected decode error")
	}
}

func TestWithMetaInitializesMap(t *testing.T) {
	env := NewEnvelope(1, "", TypeSubscribeAck, SubscribeAck{Seq: 1})
	env.WithMeta(MetaKeyTimestamp, int64(1234))
	if env.Meta[MetaKeyTimestamp] != int64(1234) {
		t.Errorf("unexpected meta: %v", env.Meta)
	}
}
