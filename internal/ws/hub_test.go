package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	upgrader := NewUpgrader(nil)
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(r.URL.Query().Get("room"), conn)
	}))
}

func dial(t *testing.T, srv *httptest.Server, room string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?room=" + room
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func waitForRoomSize(t *testing.T, hub *Hub, room string, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.RoomSize(room) == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastReachesRoomOnly(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := newTestServer(t, hub)
	defer srv.Close()

	a := dial(t, srv, "trivia-1")
	defer a.Close()
	b := dial(t, srv, "trivia-2")
	defer b.Close()
	waitForRoomSize(t, hub, "trivia-1", 1)
	waitForRoomSize(t, hub, "trivia-2", 1)

	hub.Broadcast("trivia-1", Message{Type: "leaderboard", Data: []int{1, 2}})

	var got Message
	require.NoError(t, a.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, a.ReadJSON(&got))
	assert.Equal(t, "leaderboard", got.Type)

	require.NoError(t, b.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := b.ReadMessage()
	assert.Error(t, err, "other room should not receive the message")
}

func TestHub_ClientLeaves(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := newTestServer(t, hub)
	defer srv.Close()

	conn := dial(t, srv, "trivia-1")
	waitForRoomSize(t, hub, "trivia-1", 1)

	conn.Close()
	waitForRoomSize(t, hub, "trivia-1", 0)
}

func TestNewUpgrader_CheckOrigin(t *testing.T) {
	u := NewUpgrader([]string{"https://academy.test"})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "https://academy.test")
	assert.True(t, u.CheckOrigin(r))

	r.Header.Set("Origin", "https://evil.test")
	assert.False(t, u.CheckOrigin(r))

	r.Header.Del("Origin")
	assert.True(t, u.CheckOrigin(r))
}
