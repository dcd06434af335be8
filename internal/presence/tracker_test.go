package presence

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"realtime-service/internal/kvstore"
)

func TestFirstConnectionGoesOnline(t *testing.T) {
	store := kvstore.New()
	tracker := NewTracker(store)

	wentOnline := tracker.Register(1, "conn-a", &websocket.Conn{})
	require.True(t, wentOnline)
	require.True(t, tracker.IsOnline(1))
	require.True(t, store.InSet(OnlineUsersSet, "1"))

	seen, ok := tracker.LastSeen(1)
	require.True(t, ok)
	require.WithinDuration(t, time.Now(), seen, time.Second)
}

func TestSecondConnectionIsNotATransition(t *testing.T) {
	tracker := NewTracker(kvstore.New())

	require.True(t, tracker.Register(1, "conn-a", &websocket.Conn{}))
	require.False(t, tracker.Register(1, "conn-b", &websocket.Conn{}))
	require.Equal(t, 2, tracker.ConnectionCount(1))
}

func TestOfflineOnlyOnLastDisconnect(t *testing.T) {
	store := kvstore.New()
	tracker := NewTracker(store)

	tracker.Register(1, "conn-a", &websocket.Conn{})
	tracker.Register(1, "conn-b", &websocket.Conn{})

	require.False(t, tracker.Unregister(1, "conn-a"))
	require.True(t, tracker.IsOnline(1))
	require.True(t, store.InSet(OnlineUsersSet, "1"))

	require.True(t, tracker.Unregister(1, "conn-b"))
	require.False(t, tracker.IsOnline(1))
	require.False(t, store.InSet(OnlineUsersSet, "1"))

	_, ok := tracker.LastSeen(1)
	require.False(t, ok)
}

func TestUnregisterUnknownUser(t *testing.T) {
	tracker := NewTracker(kvstore.New())
	require.False(t, tracker.Unregister(99, "conn-x"))
}

func TestOnlineUsersListsEveryTrackedUser(t *testing.T) {
	tracker := NewTracker(kvstore.New())

	tracker.Register(1, "conn-a", &websocket.Conn{})
	tracker.Register(2, "conn-b", &websocket.Conn{})

	require.ElementsMatch(t, []int{1, 2}, tracker.OnlineUsers())
}

func TestConnectionsReturnsAllForUser(t *testing.T) {
	tracker := NewTracker(kvstore.New())

	a := &websocket.Conn{}
	b := &websocket.Conn{}
	tracker.Register(1, "conn-a", a)
	tracker.Register(1, "conn-b", b)
	tracker.Register(2, "conn-c", &websocket.Conn{})

	conns := tracker.Connections(1)
	require.Len(t, conns, 2)
	require.Contains(t, conns, a)
	require.Contains(t, conns, b)
}

func TestOnlineSetConsistentUnderChurn(t *testing.T) {
	store := kvstore.New()
	tracker := NewTracker(store)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			connID := fmt.Sprintf("churn-%d", i)
			for j := 0; j < 200; j++ {
				tracker.Register(1, connID, &websocket.Conn{})
				tracker.Unregister(1, connID)
			}
		}(i)
	}
	wg.Wait()

	// A user registering after the churn settles must appear in the set:
	// set membership moves atomically with the connection mapping.
	tracker.Register(1, "conn-final", &websocket.Conn{})
	require.True(t, tracker.IsOnline(1))
	require.True(t, store.InSet(OnlineUsersSet, "1"))
}
