package api

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-pairup/internal/store"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
	pollInterval = time.Second
)

// serveWatch upgrades the connection and streams room snapshots to a
// ticket holder. The socket re-reads the room on an interval and pushes
// only when something changed, so a watcher sees the same state a
// polling client would, just without re-requesting.
func (s *PairUpApp) serveWatch(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	roomId, _, err := s.verifyWatchTicket(ticket)
	if err != nil {
		s.log.Printf("watch ticket rejected: %v", err)
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			return slices.Contains(s.allowedOrigins, origin)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("websocket upgrade:", err)
		return
	}

	go s.watchRoom(conn, roomId)
}

func (s *PairUpApp) watchRoom(conn *websocket.Conn, roomId string) {
	pollTicker := time.NewTicker(pollInterval)
	pingTicker := time.NewTicker(pingInterval)
	closed := make(chan struct{})

	defer func() {
		pollTicker.Stop()
		pingTicker.Stop()
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Discard client frames; the socket is one-way. Reading is still
	// required to process control frames and notice the close.
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var lastUpdated time.Time
	for {
		select {
		case <-closed:
			return
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-pollTicker.C:
			room, err := s.rooms.GetById(context.Background(), roomId)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					conn.SetWriteDeadline(time.Now().Add(writeWait))
					conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "room gone"),
						time.Now().Add(writeWait))
					return
				}
				s.log.Println("watch poll:", err)
				continue
			}

			if !room.UpdatedAt.After(lastUpdated) {
				continue
			}
			lastUpdated = room.UpdatedAt

			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(newRoomResponse(room)); err != nil {
				return
			}
		}
	}
}
