package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/npezzotti/go-pairup/internal/config"
	"github.com/npezzotti/go-pairup/internal/game"
	"github.com/npezzotti/go-pairup/internal/kvstore"
	"github.com/npezzotti/go-pairup/internal/stats"
	"github.com/npezzotti/go-pairup/internal/store"
	"github.com/npezzotti/go-pairup/internal/testutil"
	"github.com/npezzotti/go-pairup/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testApp struct {
	app   *PairUpApp
	mux   *http.ServeMux
	gs    *game.GameServer
	rooms *store.RoomStore
	admin *store.AdminStore
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	kv := kvstore.NewMemoryStore()
	rooms := store.NewRoomStore(kv)
	users := store.NewActiveUserStore(kv)
	markers := store.NewMarkerStore(kv)
	admin := store.NewAdminStore(kv)
	require.NoError(t, admin.EnsurePassword(context.Background(), "hunter2"))

	sp := &stats.MockStatsUpdater{}
	sp.On("RegisterMetric", mock.Anything).Return()
	sp.On("Incr", mock.Anything).Return()
	sp.On("Decr", mock.Anything).Return()

	logger := testutil.TestLogger(t)
	gs := game.NewGameServer(logger, rooms, users, markers, sp)

	cfg, err := config.NewConfig(config.Params{
		ServerAddr:    "localhost:0",
		Backend:       config.BackendMemory,
		AdminPassword: "hunter2",
		Base64Secret:  "c29tZV9zZWNyZXQ=",
	})
	require.NoError(t, err)

	mux := http.NewServeMux()
	app := NewPairUpApp(mux, logger, gs, rooms, markers, admin, cfg)

	return &testApp{app: app, mux: mux, gs: gs, rooms: rooms, admin: admin}
}

func (ta *testApp) do(t *testing.T, method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	ta.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func (ta *testApp) createRoom(t *testing.T, name, username string) CreateRoomResponse {
	t.Helper()
	rec := ta.do(t, http.MethodPost, "/api/rooms", CreateRoomRequest{
		Name:        name,
		MemberLimit: 8,
		Username:    username,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
	return decodeBody[CreateRoomResponse](t, rec)
}

func TestCreateRoomHandler(t *testing.T) {
	ta := newTestApp(t)

	resp := ta.createRoom(t, "Friday Night", "alice")
	assert.NotEmpty(t, resp.Room.Id)
	assert.NotEmpty(t, resp.UserId)
	assert.NotEmpty(t, resp.WatchTicket)
	assert.Equal(t, resp.UserId, resp.Room.MasterId)
	require.Len(t, resp.Room.Users, 1)
	assert.True(t, resp.Room.Users[0].IsMaster)
	assert.False(t, resp.Room.HasPassword)

	tcases := []struct {
		name     string
		body     any
		expected int
	}{
		{
			name:     "missing name",
			body:     CreateRoomRequest{MemberLimit: 8, Username: "bob"},
			expected: http.StatusBadRequest,
		},
		{
			name:     "missing username",
			body:     CreateRoomRequest{Name: "other", MemberLimit: 8},
			expected: http.StatusBadRequest,
		},
		{
			name:     "duplicate name",
			body:     CreateRoomRequest{Name: "friday night", MemberLimit: 8, Username: "bob"},
			expected: http.StatusConflict,
		},
		{
			name:     "member limit out of range",
			body:     CreateRoomRequest{Name: "other", MemberLimit: 1, Username: "bob"},
			expected: http.StatusConflict,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			rec := ta.do(t, http.MethodPost, "/api/rooms", tc.body, nil)
			assert.Equal(t, tc.expected, rec.Code)
		})
	}
}

func TestJoinRoomHandler(t *testing.T) {
	ta := newTestApp(t)
	created := ta.createRoom(t, "Friday Night", "alice")

	rec := ta.do(t, http.MethodPost, "/api/rooms/join", JoinRoomRequest{
		RoomId:   created.Room.Id,
		Username: "bob",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[CreateRoomResponse](t, rec)
	assert.Len(t, resp.Room.Users, 2)
	assert.NotEmpty(t, resp.WatchTicket)
	assert.NotEqual(t, created.UserId, resp.UserId)

	rec = ta.do(t, http.MethodPost, "/api/rooms/join", JoinRoomRequest{
		RoomId:   "missing",
		Username: "carol",
	}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJoinRoomHandler_wrongPassword(t *testing.T) {
	ta := newTestApp(t)

	rec := ta.do(t, http.MethodPost, "/api/rooms", CreateRoomRequest{
		Name:        "protected",
		Password:    "s3cret",
		MemberLimit: 8,
		Username:    "alice",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[CreateRoomResponse](t, rec)
	assert.True(t, created.Room.HasPassword)

	rec = ta.do(t, http.MethodPost, "/api/rooms/join", JoinRoomRequest{
		RoomId:   created.Room.Id,
		Username: "bob",
		Password: "nope",
	}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRoomResponseHidesSelections(t *testing.T) {
	ta := newTestApp(t)
	created := ta.createRoom(t, "Friday Night", "alice")
	roomId := created.Room.Id

	joined := decodeBody[CreateRoomResponse](t, ta.do(t, http.MethodPost, "/api/rooms/join",
		JoinRoomRequest{RoomId: roomId, Username: "bob"}, nil))

	rec := ta.do(t, http.MethodPost, "/api/rooms/start", RoomActionRequest{
		RoomId: roomId,
		UserId: created.UserId,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ta.do(t, http.MethodPost, "/api/rooms/vote", CastVoteRequest{
		RoomId:       roomId,
		UserId:       created.UserId,
		TargetUserId: joined.UserId,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.NotContains(t, raw, "selections", "expected individual picks to stay private")
	assert.Equal(t, float64(1), raw["votes_cast"])
}

func TestVoteResolutionHandler(t *testing.T) {
	ta := newTestApp(t)
	created := ta.createRoom(t, "Friday Night", "alice")
	roomId := created.Room.Id

	joined := decodeBody[CreateRoomResponse](t, ta.do(t, http.MethodPost, "/api/rooms/join",
		JoinRoomRequest{RoomId: roomId, Username: "bob"}, nil))

	rec := ta.do(t, http.MethodPost, "/api/rooms/start", RoomActionRequest{
		RoomId: roomId,
		UserId: created.UserId,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ta.do(t, http.MethodPost, "/api/rooms/vote", CastVoteRequest{
		RoomId:       roomId,
		UserId:       created.UserId,
		TargetUserId: joined.UserId,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ta.do(t, http.MethodPost, "/api/rooms/vote", CastVoteRequest{
		RoomId:       roomId,
		UserId:       joined.UserId,
		TargetUserId: created.UserId,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[Room](t, rec)
	assert.Equal(t, types.GameStateCompleted, resp.GameState)
	require.NotNil(t, resp.MatchResult)
	assert.Len(t, resp.MatchResult.Pairs, 1)
}

func TestPollRoomHandler(t *testing.T) {
	ta := newTestApp(t)
	created := ta.createRoom(t, "Friday Night", "alice")

	rec := ta.do(t, http.MethodGet, "/api/rooms/poll?id="+created.Room.Id+"&username=alice", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[PollResponse](t, rec)
	require.NotNil(t, resp.Room)
	assert.Equal(t, created.Room.Id, resp.Room.Id)
	assert.Nil(t, resp.Removed)

	rec = ta.do(t, http.MethodGet, "/api/rooms/poll?id=never-existed&username=alice", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ta.do(t, http.MethodGet, "/api/rooms/poll?id="+created.Room.Id, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "expected missing username to be rejected")
}

func TestPollRoomHandler_removalNotice(t *testing.T) {
	ta := newTestApp(t)
	created := ta.createRoom(t, "Friday Night", "alice")
	token := ta.adminToken(t)

	rec := ta.do(t, http.MethodDelete, "/api/admin/rooms?id="+created.Room.Id, nil, map[string]string{
		"Authorization": "Bearer " + token,
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ta.do(t, http.MethodGet, "/api/rooms/poll?id="+created.Room.Id+"&username=alice", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[PollResponse](t, rec)
	assert.Nil(t, resp.Room)
	require.NotNil(t, resp.Removed)
	assert.True(t, resp.Removed.WasDeleted)
	require.NotNil(t, resp.Removed.Kicked)
	assert.Equal(t, types.KickRoomDeleted, resp.Removed.Kicked.Reason)
	assert.Equal(t, types.RoomDeleteAdmin, resp.Removed.Kicked.RoomDeleteReason)
	require.NotNil(t, resp.Removed.RoomDeleted)
	assert.Equal(t, types.RoomDeleteAdmin, resp.Removed.RoomDeleted.Reason)
}

func TestLeaveRoomHandler(t *testing.T) {
	ta := newTestApp(t)
	created := ta.createRoom(t, "Friday Night", "alice")

	rec := ta.do(t, http.MethodPost, "/api/rooms/leave", RoomActionRequest{
		RoomId: created.Room.Id,
		UserId: created.UserId,
	}, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ta.do(t, http.MethodPost, "/api/rooms/leave", RoomActionRequest{
		RoomId: created.Room.Id,
		UserId: created.UserId,
	}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChangeRoleHandler(t *testing.T) {
	ta := newTestApp(t)
	created := ta.createRoom(t, "Friday Night", "alice")

	rec := ta.do(t, http.MethodPost, "/api/rooms/role", ChangeRoleRequest{
		RoomId: created.Room.Id,
		UserId: created.UserId,
		Role:   types.RoleObserver,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[Room](t, rec)
	require.Len(t, resp.Users, 1)
	assert.Equal(t, types.RoleObserver, resp.Users[0].Role)
}
