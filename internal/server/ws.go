package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/pmarren/courier/pkg/protocol"
)

// WSHandler upgrades dashboard connections and wires them into the hub.
type WSHandler struct {
	upgrader websocket.Upgrader
	hub      *Hub
}

func NewWSHandler(hub *Hub, allowedOrigins []string) *WSHandler {
	allowedOriginsMap := make(map[string]bool)
	for _, origin := range allowedOrigins {
		allowedOriginsMap[origin] = true
	}

	return &WSHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				return allowedOriginsMap[origin]
			},
		},
		hub: hub,
	}
}

func (h *WSHandler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws: upgrade failed", "error", err)
		return
	}

	sessionFilter := r.URL.Query().Get("session_id")
	seq := h.hub.Subscribe(conn, sessionFilter)

	ack := protocol.NewEnvelope(seq, sessionFilter, protocol.TypeSubscribeAck, protocol.SubscribeAck{Seq: seq})
	if data, err := ack.Encode(); err == nil {
		h.hub.SendTo(conn, data)
	}

	go h.readLoop(conn)
}

// readLoop drains client frames. The only client-to-server message is a
// Subscribe that narrows or widens the session filter; everything else is
// ignored. Exits (and unsubscribes) when the connection closes.
func (h *WSHandler) readLoop(conn *websocket.Conn) {
	defer func() {
		h.hub.Unsubscribe(conn)
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		env, err := protocol.Decode(data)
		if err != nil {
			slog.Debug("ws: rejecting undecodable frame", "error", err)
			h.hub.SendError(conn, "bad_frame", "frame could not be decoded")
			continue
		}
		if env.Type != protocol.TypeSubscribe {
			continue
		}

		var sub protocol.Subscribe
		if body, err := msgpack.Marshal(env.Body); err == nil {
			msgpack.Unmarshal(body, &sub)
		}
		h.hub.Subscribe(conn, sub.SessionID)
	}
}
