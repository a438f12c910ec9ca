package server

import (
	"github.com/pmarren/courier/internal/analytics"
	"github.com/pmarren/courier/internal/domain/models"
	"github.com/pmarren/courier/internal/stream"
	"github.com/pmarren/courier/pkg/protocol"
)

// StreamEvents forwards stream lifecycle callbacks to the hub. After a
// stream finishes it also pushes the refreshed timeout recommendation, since
// the terminal outcome just landed in the telemetry log.
type StreamEvents struct {
	hub *Hub
	agg *analytics.Aggregator
}

func NewStreamEvents(hub *Hub, agg *analytics.Aggregator) *StreamEvents {
	return &StreamEvents{hub: hub, agg: agg}
}

var _ stream.Observer = (*StreamEvents)(nil)

func (e *StreamEvents) StreamStarted(sessionID, messageID, model string) {
	e.hub.Broadcast(sessionID, protocol.TypeStreamStarted, protocol.StreamEvent{
		SessionID: sessionID,
		MessageID: messageID,
		Model:     model,
	})
}

func (e *StreamEvents) ReasoningStep(sessionID, messageID string, step *models.ReasoningStep) {
	body := protocol.ReasoningStepEvent{
		SessionID:   sessionID,
		MessageID:   messageID,
		StepNumber:  step.StepNumber,
		StepType:    string(step.Type),
		Description: step.Description,
		DurationMs:  step.DurationMs,
	}
	if step.ToolCall != nil {
		body.Tool = step.ToolCall.Name
	}
	e.hub.Broadcast(sessionID, protocol.TypeReasoningStep, body)
}

func (e *StreamEvents) StreamFinished(sessionID, messageID string, success bool, durationMs int64, errText string) {
	e.hub.Broadcast(sessionID, protocol.TypeStreamFinished, protocol.StreamEvent{
		SessionID:  sessionID,
		MessageID:  messageID,
		Success:    success,
		DurationMs: durationMs,
		Error:      errText,
	})

	rec := e.agg.RecommendedTimeouts()
	e.hub.Broadcast("", protocol.TypeAnalyticsSummary, protocol.AnalyticsSummaryEvent{
		TotalEvents:         len(e.agg.Events()),
		ConnectionTimeoutMs: rec.ConnectionTimeoutMs,
		ResponseTimeoutMs:   rec.ResponseTimeoutMs,
		Confidence:          rec.Confidence,
	})
}
