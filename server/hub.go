package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/confera/confera/protocol"
)

const WriteTimeout = 10 * time.Second

// Hub tracks which websocket connections belong to which event room and
// which attendee, so answers can be delivered to the whole event or to a
// single person.
type Hub struct {
	eventSubs map[string]map[*websocket.Conn]struct{}
	eventMu   sync.RWMutex

	userSubs map[string]map[*websocket.Conn]struct{}
	userMu   sync.RWMutex

	// writeLocks holds one *sync.Mutex per connection. gorilla/websocket
	// allows only a single concurrent writer, and broadcasts can race with a
	// connection's own handler replies.
	writeLocks sync.Map
}

func NewHub() *Hub {
	return &Hub{
		eventSubs: make(map[string]map[*websocket.Conn]struct{}),
		userSubs:  make(map[string]map[*websocket.Conn]struct{}),
	}
}

// Join subscribes a connection to an event room and, when userID is
// non-empty, to that attendee's personal channel.
func (h *Hub) Join(eventID, userID string, conn *websocket.Conn) {
	h.eventMu.Lock()
	if h.eventSubs[eventID] == nil {
		h.eventSubs[eventID] = make(map[*websocket.Conn]struct{})
	}
	h.eventSubs[eventID][conn] = struct{}{}
	total := len(h.eventSubs[eventID])
	h.eventMu.Unlock()

	if userID != "" {
		h.userMu.Lock()
		if h.userSubs[userID] == nil {
			h.userSubs[userID] = make(map[*websocket.Conn]struct{})
		}
		h.userSubs[userID][conn] = struct{}{}
		h.userMu.Unlock()
	}

	slog.Info("ws: joined event", "event_id", eventID, "user_id", userID, "total", total)
}

// Leave drops a connection from every room it joined.
func (h *Hub) Leave(conn *websocket.Conn) {
	h.eventMu.Lock()
	for eventID, subs := range h.eventSubs {
		delete(subs, conn)
		if len(subs) == 0 {
			delete(h.eventSubs, eventID)
		}
	}
	h.eventMu.Unlock()

	h.userMu.Lock()
	for userID, subs := range h.userSubs {
		delete(subs, conn)
		if len(subs) == 0 {
			delete(h.userSubs, userID)
		}
	}
	h.userMu.Unlock()

	h.writeLocks.Delete(conn)
}

// BroadcastToEvent sends an envelope to every connection in an event room.
// A nil except connection means no exclusion.
func (h *Hub) BroadcastToEvent(eventID string, except *websocket.Conn, msgType protocol.MessageType, body any) {
	h.eventMu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.eventSubs[eventID]))
	for conn := range h.eventSubs[eventID] {
		if conn != except {
			conns = append(conns, conn)
		}
	}
	h.eventMu.RUnlock()

	data, err := encodeEnvelope(eventID, msgType, body)
	if err != nil {
		return
	}
	for _, conn := range conns {
		if err := h.writeBinary(conn, data); err != nil {
			slog.Warn("ws: broadcast error (client likely disconnected)", "error", err, "event_id", eventID)
			h.Leave(conn)
		}
	}
}

// SendToUser delivers an envelope to every connection a single attendee has
// open, used for personalized answers.
func (h *Hub) SendToUser(userID, eventID string, msgType protocol.MessageType, body any) {
	h.userMu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.userSubs[userID]))
	for conn := range h.userSubs[userID] {
		conns = append(conns, conn)
	}
	h.userMu.RUnlock()

	if len(conns) == 0 {
		slog.Warn("ws: no connections for user", "user_id", userID)
		return
	}

	data, err := encodeEnvelope(eventID, msgType, body)
	if err != nil {
		return
	}
	for _, conn := range conns {
		if err := h.writeBinary(conn, data); err != nil {
			slog.Error("ws: user send error", "error", err, "user_id", userID)
			h.Leave(conn)
		}
	}
}

// SendToConn delivers an envelope to one connection.
func (h *Hub) SendToConn(conn *websocket.Conn, eventID string, msgType protocol.MessageType, body any) {
	data, err := encodeEnvelope(eventID, msgType, body)
	if err != nil {
		return
	}
	if err := h.writeBinary(conn, data); err != nil {
		slog.Error("ws: send error", "error", err)
	}
}

func encodeEnvelope(eventID string, msgType protocol.MessageType, body any) ([]byte, error) {
	env := protocol.NewEnvelope(eventID, msgType, body)
	data, err := env.Encode()
	if err != nil {
		slog.Error("ws: encode envelope error", "type", msgType, "error", err)
		return nil, err
	}
	return data, nil
}

func (h *Hub) writeBinary(conn *websocket.Conn, data []byte) error {
	lock, _ := h.writeLocks.LoadOrStore(conn, &sync.Mutex{})
	mu := lock.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	return conn.WriteMessage(websocket.BinaryMessage, data)
}
