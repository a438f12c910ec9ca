package server

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pmarren/courier/internal/adapters/metrics"
	"github.com/pmarren/courier/internal/domain/models"
	"github.com/pmarren/courier/internal/ports"
	"github.com/pmarren/courier/pkg/protocol"
)

const writeDeadline = 10 * time.Second

// wsClient wraps one dashboard connection. Gorilla permits at most one
// concurrent writer per connection, so every outbound frame goes through the
// client's write mutex; broadcasts arrive from handler, stream, and monitor
// goroutines alike.
type wsClient struct {
	conn   *websocket.Conn
	filter string // session filter ("" = all); guarded by the hub lock

	wmu sync.Mutex
}

func (c *wsClient) send(data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Hub fans engine events out to connected dashboard clients as MessagePack
// envelopes. It observes the session store and receives connectivity samples
// from the monitor.
type Hub struct {
	store ports.SessionStore

	mu    sync.RWMutex
	conns map[*websocket.Conn]*wsClient

	seq atomic.Uint64
}

func NewHub(store ports.SessionStore) *Hub {
	return &Hub{
		store: store,
		conns: make(map[*websocket.Conn]*wsClient),
	}
}

var _ ports.SessionListener = (*Hub)(nil)

// Subscribe registers a connection, optionally filtered to one session, and
// returns the current sequence number for the ack. Re-subscribing an already
// registered connection only changes its filter.
func (h *Hub) Subscribe(conn *websocket.Conn, sessionID string) uint64 {
	h.mu.Lock()
	client, ok := h.conns[conn]
	if !ok {
		client = &wsClient{conn: conn}
		h.conns[conn] = client
	}
	client.filter = sessionID
	n := len(h.conns)
	h.mu.Unlock()

	metrics.WSClientsConnected.Set(float64(n))
	slog.Debug("hub: client subscribed", "session_filter", sessionID, "total", n)
	return h.seq.Load()
}

// SendError reports a protocol failure to a single client.
func (h *Hub) SendError(conn *websocket.Conn, code, message string) {
	env := protocol.NewEnvelope(h.seq.Add(1), "", protocol.TypeErrorMessage,
		protocol.ErrorMessage{Code: code, Message: message}).
		WithMeta(protocol.MetaKeyTimestamp, time.Now().UnixMilli())
	data, err := env.Encode()
	if err != nil {
		slog.Error("hub: failed to encode error envelope", "error", err)
		return
	}
	if err := h.SendTo(conn, data); err != nil {
		slog.Debug("hub: failed to deliver error envelope", "error", err)
	}
}

// SendTo writes one already-encoded frame to a registered connection through
// its write mutex.
func (h *Hub) SendTo(conn *websocket.Conn, data []byte) error {
	h.mu.RLock()
	client, ok := h.conns[conn]
	h.mu.RUnlock()
	if !ok {
		return websocket.ErrCloseSent
	}
	return client.send(data)
}

func (h *Hub) Unsubscribe(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	n := len(h.conns)
	h.mu.Unlock()

	metrics.WSClientsConnected.Set(float64(n))
}

// SessionChanged implements ports.SessionListener: every store mutation
// becomes a protocol event.
func (h *Hub) SessionChanged(change ports.Change) {
	switch change.Kind {
	case ports.ChangeSessionCreated, ports.ChangeSessionDeleted, ports.ChangeSessionSwitched:
		h.broadcastSessionEvent(change)
	case ports.ChangeMessageAppended, ports.ChangeMessageUpdated:
		h.broadcastMessageEvent(change)
	}
}

func (h *Hub) broadcastSessionEvent(change ports.Change) {
	body := protocol.SessionEvent{SessionID: change.SessionID}
	msgType := protocol.TypeSessionDeleted
	switch change.Kind {
	case ports.ChangeSessionCreated:
		msgType = protocol.TypeSessionCreated
		if sess, err := h.store.Session(change.SessionID); err == nil {
			body.Title = sess.Title
			body.Model = sess.Model
		}
	case ports.ChangeSessionSwitched:
		msgType = protocol.TypeSessionSwitched
	}
	h.Broadcast(change.SessionID, msgType, body)
}

func (h *Hub) broadcastMessageEvent(change ports.Change) {
	body := protocol.MessageEvent{
		SessionID: change.SessionID,
		MessageID: change.MessageID,
	}

	sess, err := h.store.Session(change.SessionID)
	if err == nil {
		for _, msg := range sess.Messages {
			if msg.ID == change.MessageID {
				body.Role = string(msg.Role)
				body.Content = msg.Content
				body.Thinking = msg.Metadata.Thinking
				body.IsThinking = msg.Metadata.IsThinking
				body.IsComplete = msg.Metadata.IsComplete
				body.IsError = msg.Metadata.IsError
				break
			}
		}
	}

	msgType := protocol.TypeMessageAppended
	if change.Kind == ports.ChangeMessageUpdated {
		msgType = protocol.TypeMessageUpdated
	}
	h.Broadcast(change.SessionID, msgType, body)
}

// PublishConnectionSample forwards a monitor sample to all clients.
func (h *Hub) PublishConnectionSample(sample models.ConnectionSample) {
	h.Broadcast("", protocol.TypeConnectionSample, protocol.ConnectionSampleEvent{
		Status:    string(sample.Status),
		Quality:   string(sample.Quality),
		LatencyMs: sample.LatencyMs,
		Timestamp: sample.Timestamp.UnixMilli(),
	})
}

// Broadcast encodes one envelope and writes it to every matching connection.
// A failed write drops the connection.
func (h *Hub) Broadcast(sessionID string, msgType protocol.MessageType, body interface{}) {
	env := protocol.NewEnvelope(h.seq.Add(1), sessionID, msgType, body).
		WithMeta(protocol.MetaKeyTimestamp, time.Now().UnixMilli())
	data, err := env.Encode()
	if err != nil {
		slog.Error("hub: failed to encode envelope", "type", msgType.String(), "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*wsClient, 0, len(h.conns))
	for _, client := range h.conns {
		if client.filter == "" || sessionID == "" || client.filter == sessionID {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		if err := client.send(data); err != nil {
			slog.Warn("hub: dropping client after write failure", "error", err)
			h.Unsubscribe(client.conn)
			client.conn.Close()
		}
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
