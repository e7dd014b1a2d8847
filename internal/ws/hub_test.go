package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"trivia_backend/internal/domain"
	"trivia_backend/internal/event"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/pool" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func newServer(t *testing.T) (*Hub, *httptest.Server) {
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	r := gin.New()
	r.GET("/ws/pool", HandleWS(hub, ""))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, srv
}

func TestHubBroadcastsBusEvents(t *testing.T) {
	hub, srv := newServer(t)
	bus := event.NewBus(4)
	hub.Subscribe(bus)

	all := dial(t, srv, "")
	assert.Equal(t, MsgReady, read(t, all).Type)
	other := dial(t, srv, "?weekId=2026-W01")
	assert.Equal(t, MsgReady, read(t, other).Type)
	require.Eventually(t, func() bool { return hub.Len() == 2 }, time.Second, 10*time.Millisecond)

	bus.Publish(context.Background(), domain.EventPoolUpdated{Pool: domain.WeeklyPool{
		WeekID: "2026-W42", Status: domain.PoolStatusOpen, LotteryPool: 3_500, RolloverIn: 500,
	}})

	msg := read(t, all)
	assert.Equal(t, MsgPoolUpdated, msg.Type)
	assert.Equal(t, "2026-W42", msg.WeekID)
	data, ok := msg.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(4_000), data["currentPrizePool"])

	// the client following another week sees nothing
	bus.Publish(context.Background(), domain.EventBurnCompleted{WeekID: "2026-W01", Amount: 10, TxHash: "0x01"})
	assert.Equal(t, MsgBurnCompleted, read(t, other).Type)
	assert.Equal(t, MsgBurnCompleted, read(t, all).Type)

	bus.Stop()
}

func TestClientSubscribeAndPing(t *testing.T) {
	hub, srv := newServer(t)
	conn := dial(t, srv, "")
	read(t, conn)

	require.NoError(t, conn.WriteJSON(SubscribePayload{Type: MsgSubscribe, WeekID: "2026-W42"}))
	ack := read(t, conn)
	assert.Equal(t, MsgReady, ack.Type)
	assert.Equal(t, "2026-W42", ack.WeekID)

	require.NoError(t, conn.WriteJSON(SubscribePayload{Type: MsgSubscribe, WeekID: "2026-W99"}))
	assert.Equal(t, MsgError, read(t, conn).Type)

	require.NoError(t, conn.WriteJSON(SubscribePayload{Type: MsgPing}))
	assert.Equal(t, MsgPong, read(t, conn).Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("nope")))
	assert.Equal(t, MsgError, read(t, conn).Type)

	hub.Broadcast(Envelope{Type: MsgDrawCompleted, WeekID: "2026-W41"})
	hub.Broadcast(Envelope{Type: MsgDrawCompleted, WeekID: "2026-W42"})
	msg := read(t, conn)
	assert.Equal(t, "2026-W42", msg.WeekID)
}

func TestHandleWSRejectsBadWeek(t *testing.T) {
	_, srv := newServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/pool?weekId=bad"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestHubClose(t *testing.T) {
	hub, srv := newServer(t)
	conn := dial(t, srv, "")
	read(t, conn)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	hub.Close()
	assert.Zero(t, hub.Len())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
