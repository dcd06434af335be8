package presence

import (
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"realtime-service/internal/kvstore"
)

const (
	// OnlineUsersSet is the KV store set holding online user ids. It has no
	// TTL; membership follows presence transitions exactly.
	OnlineUsersSet = "online_users"

	lastSeenKeyPrefix = "last_seen:"

	// LastSeenTTL bounds how long a last-seen marker outlives its refresh.
	LastSeenTTL = 5 * time.Minute
)

// Tracker maps users to their active connections. A user is online iff at
// least one connection maps to them; the offline transition fires only when
// the last connection closes.
type Tracker struct {
	mu    sync.RWMutex
	conns map[int]map[string]*websocket.Conn
	store *kvstore.Store
	now   func() time.Time
}

// NewTracker constructs a Tracker backed by the KV store.
func NewTracker(store *kvstore.Store) *Tracker {
	return &Tracker{
		conns: make(map[int]map[string]*websocket.Conn),
		store: store,
		now:   time.Now,
	}
}

// Register records a connection for a user. It reports whether this was the
// user's first connection, i.e. the offline-to-online transition. The set
// insertion happens inside the same critical section as the mapping update,
// so a racing unregister cannot interleave between the two.
func (t *Tracker) Register(userID int, connID string, conn *websocket.Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	userConns, ok := t.conns[userID]
	if !ok {
		userConns = make(map[string]*websocket.Conn)
		t.conns[userID] = userConns
	}
	userConns[connID] = conn

	t.store.AddToSet(OnlineUsersSet, strconv.Itoa(userID))
	_ = t.store.Set(lastSeenKeyPrefix+strconv.Itoa(userID), t.now(), LastSeenTTL)
	return !ok
}

// Unregister drops a connection. It reports whether this was the user's last
// connection, i.e. the online-to-offline transition. The set removal happens
// atomically with the mapping removal, under the same lock as Register, so
// a user holding a live connection is never absent from the online set.
func (t *Tracker) Unregister(userID int, connID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	userConns, ok := t.conns[userID]
	if !ok {
		return false
	}
	delete(userConns, connID)
	wentOffline := len(userConns) == 0
	if wentOffline {
		delete(t.conns, userID)
		t.store.RemoveFromSet(OnlineUsersSet, strconv.Itoa(userID))
		t.store.Delete(lastSeenKeyPrefix + strconv.Itoa(userID))
	}
	return wentOffline
}

// IsOnline reports whether the user has at least one active connection.
func (t *Tracker) IsOnline(userID int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.conns[userID]) > 0
}

// OnlineUsers lists every user with at least one active connection.
func (t *Tracker) OnlineUsers() []int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	users := make([]int, 0, len(t.conns))
	for userID := range t.conns {
		users = append(users, userID)
	}
	return users
}

// Connections resolves a user's active connections for direct delivery.
func (t *Tracker) Connections(userID int) []*websocket.Conn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	conns := make([]*websocket.Conn, 0, len(t.conns[userID]))
	for _, conn := range t.conns[userID] {
		conns = append(conns, conn)
	}
	return conns
}

// ConnectionCount reports how many connections a user holds.
func (t *Tracker) ConnectionCount(userID int) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.conns[userID])
}

// LastSeen returns the user's last-seen marker if it is still live.
func (t *Tracker) LastSeen(userID int) (time.Time, bool) {
	var seen time.Time
	ok, err := t.store.Get(lastSeenKeyPrefix+strconv.Itoa(userID), &seen)
	if err != nil || !ok {
		return time.Time{}, false
	}
	return seen, true
}
