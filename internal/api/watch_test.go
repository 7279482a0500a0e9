package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialWatch(t *testing.T, ta *testApp, ticket string) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(ta.mux)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?ticket=" + url.QueryEscape(ticket)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestServeWatch(t *testing.T) {
	ta := newTestApp(t)
	created := ta.createRoom(t, "Friday Night", "alice")

	conn := dialWatch(t, ta, created.WatchTicket)
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var room Room
	require.NoError(t, conn.ReadJSON(&room), "expected an initial room snapshot")
	assert.Equal(t, created.Room.Id, room.Id)
	assert.Len(t, room.Users, 1)
}

func TestServeWatch_roomGone(t *testing.T) {
	ta := newTestApp(t)
	created := ta.createRoom(t, "Friday Night", "alice")

	conn := dialWatch(t, ta, created.WatchTicket)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var room Room
	require.NoError(t, conn.ReadJSON(&room))

	require.NoError(t, ta.gs.AdminDeleteRoom(context.Background(), created.Room.Id))

	err := conn.ReadJSON(&room)
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway),
		"expected the socket to close once the room is gone, got %v", err)
}

func TestServeWatch_invalidTicket(t *testing.T) {
	ta := newTestApp(t)

	rec := ta.do(t, http.MethodGet, "/ws?ticket=bogus", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
