package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"realtime-service/internal/models"
	"realtime-service/internal/observability"
	"realtime-service/internal/presence"
)

// Hub routes events to named rooms and to users' connections. Rooms are
// strings: every connection sits in its personal room for its whole life,
// and joins/leaves conversation rooms on request. Delivery is best effort;
// a write error evicts the connection.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*websocket.Conn]bool
	conns   map[*websocket.Conn]map[string]bool
	info    map[*websocket.Conn]ConnInfo
	locks   map[*websocket.Conn]*sync.Mutex
	tracker *presence.Tracker
}

// NewHub creates an empty hub.
func NewHub(tracker *presence.Tracker) *Hub {
	return &Hub{
		rooms:   make(map[string]map[*websocket.Conn]bool),
		conns:   make(map[*websocket.Conn]map[string]bool),
		info:    make(map[*websocket.Conn]ConnInfo),
		locks:   make(map[*websocket.Conn]*sync.Mutex),
		tracker: tracker,
	}
}

// AddConnection registers a connection and joins its personal room.
func (h *Hub) AddConnection(conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	h.conns[conn] = make(map[string]bool)
	h.info[conn] = info
	h.locks[conn] = &sync.Mutex{}
	h.mu.Unlock()
	h.JoinRoom(conn, models.UserRoom(info.UserID))
}

// RemoveConnection drops a connection from every room.
func (h *Hub) RemoveConnection(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range h.conns[conn] {
		h.leaveRoomLocked(conn, room)
	}
	delete(h.conns, conn)
	delete(h.info, conn)
	delete(h.locks, conn)
}

// JoinRoom adds a connection to a room. Idempotent.
func (h *Hub) JoinRoom(conn *websocket.Conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[conn]; !ok {
		return
	}
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*websocket.Conn]bool)
	}
	h.rooms[room][conn] = true
	h.conns[conn][room] = true
}

// LeaveRoom removes a connection from a room. The personal room is never
// left.
func (h *Hub) LeaveRoom(conn *websocket.Conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if info, ok := h.info[conn]; ok && room == models.UserRoom(info.UserID) {
		return
	}
	h.leaveRoomLocked(conn, room)
}

func (h *Hub) leaveRoomLocked(conn *websocket.Conn, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, conn)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if rooms, ok := h.conns[conn]; ok {
		delete(rooms, room)
	}
}

// Info returns the registration info for a connection.
func (h *Hub) Info(conn *websocket.Conn) (ConnInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	info, ok := h.info[conn]
	return info, ok
}

// RoomSize reports how many connections sit in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// EmitToRoom broadcasts to every connection in the room and returns the
// delivery count.
func (h *Hub) EmitToRoom(room string, event string, data interface{}) int {
	return h.EmitToRoomExcept(room, event, data, nil)
}

// EmitToRoomExcept broadcasts to a room, skipping the originating
// connection. Used for typing indicators and read receipts, where the actor
// already knows.
func (h *Hub) EmitToRoomExcept(room string, event string, data interface{}, exclude *websocket.Conn) int {
	h.mu.RLock()
	targets := make([]*websocket.Conn, 0, len(h.rooms[room]))
	for conn := range h.rooms[room] {
		if conn != exclude {
			targets = append(targets, conn)
		}
	}
	h.mu.RUnlock()

	return h.deliver(targets, event, data)
}

// EmitToRoomExceptUser broadcasts to a room, skipping every connection of
// one user. Read receipts go out this way: the reader already knows.
func (h *Hub) EmitToRoomExceptUser(room string, event string, data interface{}, excludeUserID int) int {
	h.mu.RLock()
	targets := make([]*websocket.Conn, 0, len(h.rooms[room]))
	for conn := range h.rooms[room] {
		if info, ok := h.info[conn]; ok && info.UserID == excludeUserID {
			continue
		}
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	return h.deliver(targets, event, data)
}

// EmitToUser resolves the user's connections through the presence tracker
// and delivers directly. Returns false when the user is offline; nothing is
// queued or retried.
func (h *Hub) EmitToUser(userID int, event string, data interface{}) bool {
	return h.deliver(h.tracker.Connections(userID), event, data) > 0
}

// EmitToUsers delivers per user and returns how many users were reached.
func (h *Hub) EmitToUsers(userIDs []int, event string, data interface{}) int {
	reached := 0
	for _, userID := range userIDs {
		if h.EmitToUser(userID, event, data) {
			reached++
		}
	}
	return reached
}

// BroadcastAll delivers to every registered connection except the excluded
// one. Used for presence transitions.
func (h *Hub) BroadcastAll(event string, data interface{}, exclude *websocket.Conn) int {
	h.mu.RLock()
	targets := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		if conn != exclude {
			targets = append(targets, conn)
		}
	}
	h.mu.RUnlock()

	return h.deliver(targets, event, data)
}

// Send writes a single event to one connection, serialized with any room
// fan-out targeting the same connection. Used for acks on the ws channel.
func (h *Hub) Send(conn *websocket.Conn, event string, data interface{}) error {
	payload, err := json.Marshal(models.RealtimeEvent{Type: event, Data: data})
	if err != nil {
		return err
	}
	return h.write(conn, payload)
}

var errConnGone = errors.New("connection no longer registered")

// write pushes one frame to a connection under its write lock. gorilla
// allows a single writer per connection, and emits arrive concurrently from
// HTTP handlers, read loops and tickers.
func (h *Hub) write(conn *websocket.Conn, payload []byte) error {
	h.mu.RLock()
	lock, ok := h.locks[conn]
	h.mu.RUnlock()
	if !ok {
		return errConnGone
	}
	lock.Lock()
	defer lock.Unlock()
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (h *Hub) deliver(targets []*websocket.Conn, event string, data interface{}) int {
	payload, err := json.Marshal(models.RealtimeEvent{Type: event, Data: data})
	if err != nil {
		log.Printf("marshal %s event: %v", event, err)
		return 0
	}

	delivered := 0
	for _, conn := range targets {
		if err := h.write(conn, payload); err != nil {
			if errors.Is(err, errConnGone) {
				continue
			}
			log.Printf("websocket write error: %v", err)
			h.evict(conn, err)
			continue
		}
		delivered++
	}
	return delivered
}

func (h *Hub) evict(conn *websocket.Conn, cause error) {
	info, ok := h.Info(conn)
	conn.Close()
	h.RemoveConnection(conn)
	if !ok {
		return
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), "ws_events.realtime", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"event":       "ws_error",
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      cause.Error(),
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}, headers)
	observability.IncWSEvent("realtime", "ws_error")
}
