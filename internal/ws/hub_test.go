package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"realtime-service/internal/kvstore"
	"realtime-service/internal/models"
	"realtime-service/internal/presence"
)

func newTestHub() (*Hub, *presence.Tracker) {
	tracker := presence.NewTracker(kvstore.New())
	return NewHub(tracker), tracker
}

func TestAddConnectionJoinsPersonalRoom(t *testing.T) {
	hub, _ := newTestHub()
	conn := &websocket.Conn{}

	hub.AddConnection(conn, ConnInfo{ConnID: "c1", UserID: 7})

	require.Equal(t, 1, hub.RoomSize(models.UserRoom(7)))
	info, ok := hub.Info(conn)
	require.True(t, ok)
	require.Equal(t, 7, info.UserID)
}

func TestJoinRoomIsIdempotent(t *testing.T) {
	hub, _ := newTestHub()
	conn := &websocket.Conn{}
	hub.AddConnection(conn, ConnInfo{ConnID: "c1", UserID: 7})

	room := models.ConversationRoom(3)
	hub.JoinRoom(conn, room)
	hub.JoinRoom(conn, room)

	require.Equal(t, 1, hub.RoomSize(room))
}

func TestJoinRoomIgnoresUnregisteredConn(t *testing.T) {
	hub, _ := newTestHub()

	hub.JoinRoom(&websocket.Conn{}, models.ConversationRoom(3))

	require.Equal(t, 0, hub.RoomSize(models.ConversationRoom(3)))
}

func TestLeaveRoomNeverLeavesPersonalRoom(t *testing.T) {
	hub, _ := newTestHub()
	conn := &websocket.Conn{}
	hub.AddConnection(conn, ConnInfo{ConnID: "c1", UserID: 7})

	hub.LeaveRoom(conn, models.UserRoom(7))

	require.Equal(t, 1, hub.RoomSize(models.UserRoom(7)))
}

func TestLeaveRoomRemovesMembership(t *testing.T) {
	hub, _ := newTestHub()
	conn := &websocket.Conn{}
	hub.AddConnection(conn, ConnInfo{ConnID: "c1", UserID: 7})

	room := models.ConversationRoom(3)
	hub.JoinRoom(conn, room)
	hub.LeaveRoom(conn, room)

	require.Equal(t, 0, hub.RoomSize(room))
}

func TestRemoveConnectionClearsAllRooms(t *testing.T) {
	hub, _ := newTestHub()
	conn := &websocket.Conn{}
	hub.AddConnection(conn, ConnInfo{ConnID: "c1", UserID: 7})
	hub.JoinRoom(conn, models.ConversationRoom(3))
	hub.JoinRoom(conn, models.ConversationRoom(4))

	hub.RemoveConnection(conn)

	require.Equal(t, 0, hub.RoomSize(models.UserRoom(7)))
	require.Equal(t, 0, hub.RoomSize(models.ConversationRoom(3)))
	require.Equal(t, 0, hub.RoomSize(models.ConversationRoom(4)))
	_, ok := hub.Info(conn)
	require.False(t, ok)
}

func TestTwoConnectionsShareARoom(t *testing.T) {
	hub, _ := newTestHub()
	connA := &websocket.Conn{}
	connB := &websocket.Conn{}
	hub.AddConnection(connA, ConnInfo{ConnID: "a", UserID: 1})
	hub.AddConnection(connB, ConnInfo{ConnID: "b", UserID: 2})

	room := models.ConversationRoom(3)
	hub.JoinRoom(connA, room)
	hub.JoinRoom(connB, room)
	require.Equal(t, 2, hub.RoomSize(room))

	hub.RemoveConnection(connA)
	require.Equal(t, 1, hub.RoomSize(room))
}

func TestEmitToOfflineUserReportsMiss(t *testing.T) {
	hub, _ := newTestHub()

	delivered := hub.EmitToUser(42, models.EventNewMessage, nil)

	require.False(t, delivered)
}

func TestEmitToEmptyRoomDeliversNothing(t *testing.T) {
	hub, _ := newTestHub()

	require.Equal(t, 0, hub.EmitToRoom(models.ConversationRoom(9), models.EventUserTyping, nil))
}

func TestEmitToUsersCountsReachedUsers(t *testing.T) {
	hub, _ := newTestHub()

	// Nobody online: no user is reached.
	require.Equal(t, 0, hub.EmitToUsers([]int{1, 2, 3}, models.EventNewMessage, nil))
}

// newLiveConn upgrades a real websocket pair and registers the server side
// with the hub and tracker.
func newLiveConn(t *testing.T, hub *Hub, tracker *presence.Tracker, userID int, connID string) (client, server *websocket.Conn, cleanup func()) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	upgraded := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		upgraded <- conn
	}))

	client, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	server = <-upgraded

	hub.AddConnection(server, ConnInfo{ConnID: connID, UserID: userID})
	tracker.Register(userID, connID, server)

	return client, server, func() {
		client.Close()
		server.Close()
		srv.Close()
	}
}

func TestConcurrentEmitsToOneConnection(t *testing.T) {
	hub, tracker := newTestHub()
	client, server, cleanup := newLiveConn(t, hub, tracker, 7, "c1")
	defer cleanup()

	go func() {
		for {
			if _, _, err := client.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				hub.EmitToUser(7, models.EventNewMessage, map[string]int{"n": j})
			}
		}()
	}
	wg.Wait()

	// Every write went through; nothing panicked and nothing was evicted.
	require.True(t, tracker.IsOnline(7))
	_, registered := hub.Info(server)
	require.True(t, registered)
}

func TestSendDeliversSingleEvent(t *testing.T) {
	hub, tracker := newTestHub()
	client, server, cleanup := newLiveConn(t, hub, tracker, 7, "c1")
	defer cleanup()

	require.NoError(t, hub.Send(server, models.EventMessageSent, map[string]int{"id": 1}))

	var event models.RealtimeEvent
	require.NoError(t, client.ReadJSON(&event))
	require.Equal(t, models.EventMessageSent, event.Type)
}

func TestSendToRemovedConnectionFails(t *testing.T) {
	hub, tracker := newTestHub()
	_, server, cleanup := newLiveConn(t, hub, tracker, 7, "c1")
	defer cleanup()

	hub.RemoveConnection(server)

	require.Error(t, hub.Send(server, models.EventMessageSent, nil))
}

func TestEmitToRoomExceptUserSkipsEveryConnOfUser(t *testing.T) {
	hub, tracker := newTestHub()
	clientA, serverA, cleanupA := newLiveConn(t, hub, tracker, 1, "a")
	defer cleanupA()
	clientB, serverB, cleanupB := newLiveConn(t, hub, tracker, 2, "b")
	defer cleanupB()

	room := models.ConversationRoom(3)
	hub.JoinRoom(serverA, room)
	hub.JoinRoom(serverB, room)

	delivered := hub.EmitToRoomExceptUser(room, models.EventMessageRead, map[string]int{"message_id": 10}, 1)
	require.Equal(t, 1, delivered)

	var event models.RealtimeEvent
	require.NoError(t, clientB.ReadJSON(&event))
	require.Equal(t, models.EventMessageRead, event.Type)

	// The excluded user's connection sees nothing.
	require.NoError(t, clientA.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := clientA.ReadMessage()
	require.Error(t, err)
}
