// Package stream drives agentic request/response cycles against the AI
// backend: it opens the step-stream channel, decodes frames, updates the
// in-flight assistant message, and reports timing telemetry.
package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pmarren/courier/internal/adapters/httpclient"
	"github.com/pmarren/courier/internal/adapters/metrics"
	"github.com/pmarren/courier/internal/domain"
	"github.com/pmarren/courier/internal/domain/models"
	"github.com/pmarren/courier/internal/ports"
)

var tracer = otel.GetTracerProvider().Tracer("courier/stream")

const streamPath = "/api/agentic/stream"

// Fallback texts written when a stream ends without usable content. Message
// finalization always produces some content, even on total failure.
const (
	fallbackFinalText  = "Analysis complete."
	noResponseText     = "No response received. Please try again."
	interruptedText    = "The response stream was interrupted before completion."
	errorPrefix        = "The assistant could not complete this request: "
	transportErrPrefix = "Failed to reach the assistant backend: "
)

// ConflictPolicy decides what a send does when the session already has a
// live stream. The engine never cancels a stream on its own.
type ConflictPolicy int

const (
	// ConflictReject fails the new send with domain.ErrStreamInFlight.
	ConflictReject ConflictPolicy = iota
	// ConflictCancelReplace cancels the prior stream and proceeds.
	ConflictCancelReplace
)

// Observer receives stream lifecycle callbacks, delivered from the send call
// and the stream goroutine. Implementations must not block.
type Observer interface {
	StreamStarted(sessionID, messageID, model string)
	ReasoningStep(sessionID, messageID string, step *models.ReasoningStep)
	StreamFinished(sessionID, messageID string, success bool, durationMs int64, errText string)
}

// Config carries the client's wiring.
type Config struct {
	BaseURL     string
	Credentials ports.CredentialSource
	HTTPClient  *http.Client
	Policy      ConflictPolicy
	// Observer, when set, is notified of stream starts, decoded reasoning
	// steps, and terminal outcomes.
	Observer Observer
}

// Client drives one agentic cycle per call, single-flight per session.
type Client struct {
	baseURL     string
	credentials ports.CredentialSource
	httpClient  *http.Client
	policy      ConflictPolicy

	store     ports.SessionStore
	telemetry ports.TelemetrySink
	ids       ports.IDGenerator
	observer  Observer

	mu       sync.Mutex
	inflight map[string]*Stream
	// steps accumulates reasoning steps per in-flight assistant message id;
	// an entry is discarded when its message finalizes.
	steps map[string][]*models.ReasoningStep
}

func NewClient(cfg Config, store ports.SessionStore, telemetry ports.TelemetrySink, ids ports.IDGenerator) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = httpclient.NewStreaming()
	}
	return &Client{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		credentials: cfg.Credentials,
		httpClient:  httpClient,
		policy:      cfg.Policy,
		store:       store,
		telemetry:   telemetry,
		ids:         ids,
		observer:    cfg.Observer,
		inflight:    make(map[string]*Stream),
		steps:       make(map[string][]*models.ReasoningStep),
	}
}

// Stream is the handle for one in-flight agentic cycle. Cancellation is
// explicit and opt-in; nothing cancels a stream automatically.
type Stream struct {
	SessionID string
	MessageID string

	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Done is closed when the cycle reaches a terminal state.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Cancel aborts the in-flight request. The message is still finalized with a
// failure explanation.
func (s *Stream) Cancel() { s.cancel() }

// Wait blocks until the cycle finishes or ctx is cancelled.
func (s *Stream) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return s.Err()
	}
}

// Err returns the terminal error, valid once Done is closed.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// SendOptions are the per-call parameters of an agentic send.
type SendOptions struct {
	SessionID       string
	Text            string
	Model           string
	MaxLookbackDays int
}

// agenticRequest is the wire body of the streaming request.
type agenticRequest struct {
	Message     string `json:"message"`
	ModelName   string `json:"model_name"`
	MaxDaysBack int    `json:"max_days_back"`
	SessionID   string `json:"session_id"`
}

// stepFrame is the wire form of one decoded `data:` frame.
type stepFrame struct {
	StepType    string `json:"step_type"`
	StepNumber  *int   `json:"step_number"`
	Description string `json:"description"`
	Content     string `json:"content"`
	ToolCall    *struct {
		Tool       string          `json:"tool"`
		Parameters json.RawMessage `json:"parameters"`
	} `json:"tool_call"`
	ToolResult *models.ToolResult `json:"tool_result"`
	DurationMs int64              `json:"duration_ms"`
	Error      string             `json:"error"`
}

// SendAgenticMessage appends the user message, creates the placeholder
// assistant message, opens the step-stream channel, and processes it on its
// own goroutine. Precondition failures (missing credential or endpoint)
// reject the call before the channel is opened, leaving only the appended
// user message behind.
func (c *Client) SendAgenticMessage(ctx context.Context, opts SendOptions) (*Stream, error) {
	if strings.TrimSpace(opts.Text) == "" {
		return nil, domain.ErrEmptyContent
	}

	sess, err := c.store.Session(opts.SessionID)
	if err != nil {
		return nil, err
	}
	model := opts.Model
	if model == "" {
		model = sess.Model
	}

	userMsg := models.NewUserMessage(c.ids.GenerateMessageID(), opts.SessionID, opts.Text)
	if err := c.store.AppendMessage(opts.SessionID, userMsg); err != nil {
		return nil, err
	}

	if c.baseURL == "" {
		return nil, domain.ErrMissingEndpoint
	}
	token, err := c.credentials.BearerToken(ctx)
	if err != nil || token == "" {
		return nil, domain.ErrMissingCredential
	}

	c.mu.Lock()
	for {
		prior, ok := c.inflight[opts.SessionID]
		if !ok {
			break
		}
		if c.policy == ConflictReject {
			c.mu.Unlock()
			return nil, domain.ErrStreamInFlight
		}
		c.mu.Unlock()
		prior.Cancel()
		<-prior.Done()
		// A concurrent replace may have claimed the slot while the lock was
		// released; re-check so exactly one stream owns the session.
		c.mu.Lock()
	}

	// The stream outlives the caller's request scope; cancellation is only
	// ever explicit through the handle.
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	assistantMsg := models.NewPendingAssistantMessage(c.ids.GenerateMessageID(), opts.SessionID, model)
	st := &Stream{
		SessionID: opts.SessionID,
		MessageID: assistantMsg.ID,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	c.inflight[opts.SessionID] = st
	c.steps[assistantMsg.ID] = nil
	c.mu.Unlock()

	if err := c.store.AppendMessage(opts.SessionID, assistantMsg); err != nil {
		c.release(st)
		cancel()
		close(st.done)
		return nil, err
	}

	metrics.StreamsStarted.Inc()
	if c.observer != nil {
		c.observer.StreamStarted(opts.SessionID, assistantMsg.ID, model)
	}
	go c.run(streamCtx, st, opts, model, token)

	return st, nil
}

// InFlight reports whether the session currently has a live stream.
func (c *Client) InFlight(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[sessionID]
	return ok
}

func (c *Client) release(st *Stream) {
	c.mu.Lock()
	if c.inflight[st.SessionID] == st {
		delete(c.inflight, st.SessionID)
	}
	delete(c.steps, st.MessageID)
	c.mu.Unlock()
}

func (c *Client) appendStep(messageID string, step *models.ReasoningStep) []*models.ReasoningStep {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps[messageID] = append(c.steps[messageID], step)
	out := make([]*models.ReasoningStep, len(c.steps[messageID]))
	copy(out, c.steps[messageID])
	return out
}

func (c *Client) bufferedSteps(messageID string) []*models.ReasoningStep {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*models.ReasoningStep, len(c.steps[messageID]))
	copy(out, c.steps[messageID])
	return out
}

func (c *Client) hasStepBuffer(messageID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.steps[messageID]
	return ok
}

// run processes the whole cycle: request, frame loop, finalization.
func (c *Client) run(ctx context.Context, st *Stream, opts SendOptions, model, token string) {
	ctx, span := tracer.Start(ctx, "stream.agentic_message", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", opts.SessionID),
		attribute.String("message.id", st.MessageID),
		attribute.String("llm.model", model),
	)

	start := time.Now()
	outcome := c.consume(ctx, st, opts, model, token)
	duration := time.Since(start)

	transcript := FoldTranscript(c.bufferedSteps(st.MessageID))
	content := outcome.content
	meta := models.MessageMetadata{
		Thinking:         transcript,
		Model:            model,
		GenerationTimeMs: duration.Milliseconds(),
		IsComplete:       true,
		IsError:          outcome.declaredError,
		Error:            outcome.errText,
	}
	update := models.MessageUpdate{Content: &content, Metadata: &meta}
	if err := c.store.UpdateLastMessage(opts.SessionID, update); err != nil {
		slog.Error("stream: failed to finalize message",
			"session_id", opts.SessionID, "message_id", st.MessageID, "error", err)
	}

	c.release(st)
	st.setErr(outcome.err)

	label := "success"
	if !outcome.success {
		label = "failure"
		span.SetStatus(codes.Error, outcome.errText)
	}
	span.SetAttributes(
		attribute.Int("stream.steps", outcome.stepCount),
		attribute.Bool("stream.success", outcome.success),
	)
	metrics.StreamsCompleted.WithLabelValues(label).Inc()
	metrics.StreamDuration.Observe(duration.Seconds())

	c.telemetry.RecordResponse(model, duration, len(content), outcome.success, outcome.errText)
	if c.observer != nil {
		c.observer.StreamFinished(opts.SessionID, st.MessageID, outcome.success, duration.Milliseconds(), outcome.errText)
	}
	close(st.done)
}

// streamOutcome summarizes how a cycle ended.
type streamOutcome struct {
	content       string
	success       bool
	declaredError bool
	errText       string
	err           error
	stepCount     int
}

// consume opens the channel and processes frames until a terminal condition.
func (c *Client) consume(ctx context.Context, st *Stream, opts SendOptions, model, token string) streamOutcome {
	body, err := json.Marshal(agenticRequest{
		Message:     opts.Text,
		ModelName:   model,
		MaxDaysBack: opts.MaxLookbackDays,
		SessionID:   opts.SessionID,
	})
	if err != nil {
		return failureOutcome(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+streamPath, bytes.NewReader(body))
	if err != nil {
		return failureOutcome(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return failureOutcome(fmt.Errorf("send request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("backend returned %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
		return failureOutcome(err)
	}

	reader := bufio.NewReader(resp.Body)
	decoded := 0

	for {
		// ReadBytes buffers partial lines internally; a frame split across
		// network reads is reassembled on the line boundary.
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if len(line) > 0 {
				if outcome, terminal := c.handleLine(st, line, model, &decoded); terminal {
					outcome.stepCount = decoded
					return outcome
				}
			}
			if err == io.EOF {
				if decoded == 0 {
					// Distinct from a transport error: the channel closed
					// cleanly without ever delivering a frame.
					return streamOutcome{
						content: noResponseText,
						errText: "no data received",
						err:     domain.ErrNoResponse,
					}
				}
				return streamOutcome{
					content:       interruptedText,
					declaredError: true,
					errText:       "stream ended without a terminal event",
					err:           domain.ErrNoResponse,
					stepCount:     decoded,
				}
			}
			return failureOutcome(fmt.Errorf("read stream: %w", err))
		}

		if outcome, terminal := c.handleLine(st, line, model, &decoded); terminal {
			outcome.stepCount = decoded
			return outcome
		}
	}
}

// handleLine processes one reassembled line. It returns a terminal outcome
// when the frame ends the stream.
func (c *Client) handleLine(st *Stream, line []byte, model string, decoded *int) (streamOutcome, bool) {
	text := strings.TrimSpace(string(line))
	if text == "" || !strings.HasPrefix(text, "data: ") {
		return streamOutcome{}, false
	}

	var frame stepFrame
	if err := json.Unmarshal([]byte(strings.TrimPrefix(text, "data: ")), &frame); err != nil {
		// Malformed frames are dropped; the stream continues.
		metrics.FramesDropped.Inc()
		slog.Debug("stream: dropped malformed frame", "message_id", st.MessageID, "error", err)
		return streamOutcome{}, false
	}
	*decoded++

	stepType := models.StepType(frame.StepType)
	switch stepType {
	case models.StepTypeComplete, models.StepTypeFinalAnswer:
		content := frame.Content
		if content == "" {
			content = fallbackFinalText
		}
		return streamOutcome{content: content, success: true}, true

	case models.StepTypeError:
		reason := frame.Error
		if reason == "" {
			reason = frame.Content
		}
		if reason == "" {
			reason = "unknown error"
		}
		return streamOutcome{
			content:       errorPrefix + reason,
			declaredError: true,
			errText:       reason,
		}, true
	}

	if frame.StepNumber == nil {
		// Non-terminal frames without a step number carry nothing we can
		// order; skip them.
		slog.Debug("stream: skipped frame without step_number", "step_type", frame.StepType)
		return streamOutcome{}, false
	}

	step := &models.ReasoningStep{
		StepNumber:  *frame.StepNumber,
		Type:        stepType,
		Description: frame.Description,
		Content:     frame.Content,
		ToolResult:  frame.ToolResult,
		DurationMs:  frame.DurationMs,
		Timestamp:   time.Now().UTC(),
	}
	if frame.ToolCall != nil {
		step.ToolCall = models.ParseToolCall(frame.ToolCall.Tool, frame.ToolCall.Parameters)
	}

	steps := c.appendStep(st.MessageID, step)
	metrics.ReasoningSteps.Inc()
	if c.observer != nil {
		c.observer.ReasoningStep(st.SessionID, st.MessageID, step)
	}

	transcript := FoldTranscript(steps)
	update := models.MessageUpdate{
		Metadata: &models.MessageMetadata{
			Thinking:   transcript,
			Model:      model,
			IsThinking: true,
		},
	}
	if err := c.store.UpdateLastMessage(st.SessionID, update); err != nil {
		slog.Warn("stream: failed to push transcript update",
			"session_id", st.SessionID, "error", err)
	}
	return streamOutcome{}, false
}

func failureOutcome(err error) streamOutcome {
	return streamOutcome{
		content:       transportErrPrefix + err.Error(),
		declaredError: true,
		errText:       err.Error(),
		err:           err,
	}
}
