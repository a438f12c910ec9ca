package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pmarren/courier/internal/analytics"
	"github.com/pmarren/courier/internal/connectivity"
	"github.com/pmarren/courier/internal/domain"
	"github.com/pmarren/courier/internal/session"
	"github.com/pmarren/courier/internal/stream"
)

// respondJSON writes a JSON response with the given status code
func respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// respondError writes an error JSON response
func respondError(w http.ResponseWriter, errorType string, message string, status int) {
	respondJSON(w, errorResponse{Error: errorType, Message: message, Status: status}, status)
}

func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsNotFound(err):
		respondError(w, "not_found", err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrStreamInFlight):
		respondError(w, "stream_in_flight", err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrMissingCredential), errors.Is(err, domain.ErrMissingEndpoint):
		respondError(w, "precondition_failed", err.Error(), http.StatusPreconditionFailed)
	case errors.Is(err, domain.ErrEmptyContent), errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrImportFailed):
		respondError(w, "invalid_request", err.Error(), http.StatusBadRequest)
	default:
		respondError(w, "internal_error", err.Error(), http.StatusInternalServerError)
	}
}

// parseIntQuery parses an integer query parameter with a default value
func parseIntQuery(r *http.Request, name string, defaultValue int) int {
	value := r.URL.Query().Get(name)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// SessionsHandler exposes the session store over HTTP.
type SessionsHandler struct {
	store *session.Store
}

func NewSessionsHandler(store *session.Store) *SessionsHandler {
	return &SessionsHandler{store: store}
}

type createSessionRequest struct {
	Title string `json:"title"`
	Model string `json:"model"`
}

func (h *SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid_request", "invalid JSON body", http.StatusBadRequest)
		return
	}
	sess := h.store.CreateSession(req.Title, req.Model)
	respondJSON(w, sess, http.StatusCreated)
}

func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, h.store.Sessions(), http.StatusOK)
}

func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.store.Session(chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, sess, http.StatusOK)
}

func (h *SessionsHandler) Current(w http.ResponseWriter, r *http.Request) {
	sess := h.store.CurrentSession()
	if sess == nil {
		respondError(w, "not_found", "no current session", http.StatusNotFound)
		return
	}
	respondJSON(w, sess, http.StatusOK)
}

func (h *SessionsHandler) Switch(w http.ResponseWriter, r *http.Request) {
	if err := h.store.SwitchSession(chi.URLParam(r, "id")); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteSession(chi.URLParam(r, "id")); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionsHandler) Messages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.store.Messages(chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, msgs, http.StatusOK)
}

// MessagesHandler drives agentic sends through the streaming client.
type MessagesHandler struct {
	client *stream.Client
}

func NewMessagesHandler(client *stream.Client) *MessagesHandler {
	return &MessagesHandler{client: client}
}

type sendMessageRequest struct {
	Text        string `json:"text"`
	Model       string `json:"model"`
	MaxDaysBack int    `json:"max_days_back"`
}

type sendMessageResponse struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
}

// Send starts the agentic cycle and returns immediately; progress arrives on
// the WebSocket.
func (h *MessagesHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid_request", "invalid JSON body", http.StatusBadRequest)
		return
	}

	st, err := h.client.SendAgenticMessage(r.Context(), stream.SendOptions{
		SessionID:       chi.URLParam(r, "id"),
		Text:            req.Text,
		Model:           req.Model,
		MaxLookbackDays: req.MaxDaysBack,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, sendMessageResponse{
		SessionID: st.SessionID,
		MessageID: st.MessageID,
	}, http.StatusAccepted)
}

func (h *MessagesHandler) StreamStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]bool{
		"in_flight": h.client.InFlight(chi.URLParam(r, "id")),
	}, http.StatusOK)
}

// ConnectionHandler exposes the connectivity monitor.
type ConnectionHandler struct {
	monitor *connectivity.Monitor
}

func NewConnectionHandler(monitor *connectivity.Monitor) *ConnectionHandler {
	return &ConnectionHandler{monitor: monitor}
}

func (h *ConnectionHandler) State(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, h.monitor.State(), http.StatusOK)
}

func (h *ConnectionHandler) Retry(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, h.monitor.Retry(r.Context()), http.StatusOK)
}

// AnalyticsHandler exposes aggregated telemetry.
type AnalyticsHandler struct {
	agg        *analytics.Aggregator
	windowDays int
}

func NewAnalyticsHandler(agg *analytics.Aggregator, windowDays int) *AnalyticsHandler {
	return &AnalyticsHandler{agg: agg, windowDays: windowDays}
}

func (h *AnalyticsHandler) window(r *http.Request) int {
	return parseIntQuery(r, "window_days", h.windowDays)
}

func (h *AnalyticsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	window := h.window(r)
	respondJSON(w, map[string]interface{}{
		"window_days":        window,
		"timeouts":           h.agg.TimeoutStats(window),
		"response_times":     h.agg.ResponseTimeStats(window),
		"connection_quality": h.agg.ConnectionQualityStats(window),
		"recommendation":     h.agg.RecommendedTimeouts(),
	}, http.StatusOK)
}

func (h *AnalyticsHandler) Report(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(h.agg.Report(h.window(r))))
}

func (h *AnalyticsHandler) Recommendation(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, h.agg.RecommendedTimeouts(), http.StatusOK)
}

func (h *AnalyticsHandler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := h.agg.Export()
	if err != nil {
		respondError(w, "internal_error", err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (h *AnalyticsHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.agg.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// StorageHandler exposes the autosave pipeline: toggle, import/export, size.
type StorageHandler struct {
	autosaver *session.Autosaver
}

func NewStorageHandler(autosaver *session.Autosaver) *StorageHandler {
	return &StorageHandler{autosaver: autosaver}
}

func (h *StorageHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]interface{}{
		"enabled":    h.autosaver.Enabled(),
		"size_bytes": h.autosaver.SizeBytes(),
		"size_human": h.autosaver.SizeHuman(),
	}, http.StatusOK)
}

type setAutosaveRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *StorageHandler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	var req setAutosaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid_request", "invalid JSON body", http.StatusBadRequest)
		return
	}
	h.autosaver.SetEnabled(req.Enabled)
	w.WriteHeader(http.StatusNoContent)
}

func (h *StorageHandler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := h.autosaver.Export()
	if err != nil {
		respondError(w, "internal_error", err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="courier-sessions.json"`)
	w.Write(data)
}

func (h *StorageHandler) Import(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 32<<20))
	if err != nil {
		respondError(w, "invalid_request", "failed to read body", http.StatusBadRequest)
		return
	}
	if !h.autosaver.Import(data) {
		respondDomainError(w, domain.ErrImportFailed)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *StorageHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.autosaver.ClearAll()
	w.WriteHeader(http.StatusNoContent)
}

// HealthHandler reports process liveness.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler { return &HealthHandler{} }

func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}
