package stream

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pmarren/courier/internal/domain/models"
)

var stepLabels = map[models.StepType]string{
	models.StepTypePlanning:    "Planning",
	models.StepTypeToolCall:    "Tool call",
	models.StepTypeAnalysis:    "Analysis",
	models.StepTypeSynthesis:   "Synthesis",
	models.StepTypeFinalAnswer: "Final answer",
	models.StepTypeError:       "Error",
}

// FoldTranscript renders the reasoning steps collected so far into the
// human-readable transcript shown while a response streams. Steps appear in
// arrival order; step numbers from the server are displayed as-is even when
// a misbehaving server sends gaps or duplicates.
func FoldTranscript(steps []*models.ReasoningStep) string {
	var b strings.Builder
	for i, step := range steps {
		if i > 0 {
			b.WriteString("\n\n")
		}

		label := stepLabels[step.Type]
		if label == "" {
			label = string(step.Type)
		}
		fmt.Fprintf(&b, "Step %d — %s", step.StepNumber, label)
		if step.ToolCall != nil {
			fmt.Fprintf(&b, " (%s)", step.ToolCall.Name)
		}
		if step.Description != "" {
			fmt.Fprintf(&b, ": %s", step.Description)
		}
		if step.DurationMs > 0 {
			fmt.Fprintf(&b, " [%dms]", step.DurationMs)
		}

		if step.Content != "" {
			b.WriteString("\n")
			b.WriteString(step.Content)
		}
		if detail := toolDetail(step.ToolCall); detail != "" {
			b.WriteString("\n")
			b.WriteString(detail)
		}
		if step.ToolResult != nil && !step.ToolResult.Success && step.ToolResult.Error != "" {
			fmt.Fprintf(&b, "\nTool failed: %s", step.ToolResult.Error)
		}
	}
	return b.String()
}

func toolDetail(tc *models.ToolCall) string {
	if tc == nil {
		return ""
	}
	switch {
	case tc.Search != nil:
		return fmt.Sprintf("Searching emails for %q", tc.Search.Query)
	case tc.Entities != nil:
		if len(tc.Entities.Kinds) > 0 {
			return fmt.Sprintf("Extracting entities: %s", strings.Join(tc.Entities.Kinds, ", "))
		}
		return "Extracting entities"
	case tc.Thread != nil:
		return fmt.Sprintf("Fetching thread %s", tc.Thread.ThreadID)
	case len(tc.Raw) > 0:
		// Unknown tool: show compacted parameters.
		var compact json.RawMessage
		if err := json.Unmarshal(tc.Raw, &compact); err == nil {
			if data, err := json.Marshal(compact); err == nil {
				return fmt.Sprintf("Parameters: %s", data)
			}
		}
	}
	return ""
}
