package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/npezzotti/go-pairup/internal/game"
	"github.com/npezzotti/go-pairup/internal/store"
	"github.com/npezzotti/go-pairup/internal/types"
)

type User struct {
	Id          string     `json:"id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name"`
	JoinedAt    time.Time  `json:"joined_at"`
	Role        types.Role `json:"role"`
	IsMaster    bool       `json:"is_master"`
}

// Room is the response shape for a room. Selections stay private (picks
// are anonymous until resolution); only the running vote count is
// exposed. IsMaster is recomputed from MasterId here, never read from a
// stored flag.
type Room struct {
	Id          string             `json:"id"`
	Name        string             `json:"name"`
	HasPassword bool               `json:"has_password"`
	MemberLimit int                `json:"member_limit"`
	GameState   types.GameState    `json:"game_state"`
	Users       []User             `json:"users"`
	VotesCast   int                `json:"votes_cast"`
	MatchResult *types.MatchResult `json:"match_result,omitempty"`
	MasterId    string             `json:"master_id"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func newRoomResponse(room *types.Room) Room {
	users := make([]User, len(room.Users))
	for i, u := range room.Users {
		users[i] = User{
			Id:          u.Id,
			Username:    u.Username,
			DisplayName: u.DisplayName,
			JoinedAt:    u.JoinedAt,
			Role:        u.Role,
			IsMaster:    room.IsMaster(u.Id),
		}
	}

	return Room{
		Id:          room.Id,
		Name:        room.Name,
		HasPassword: room.Password != "",
		MemberLimit: room.MemberLimit,
		GameState:   room.GameState,
		Users:       users,
		VotesCast:   len(room.Selections),
		MatchResult: room.MatchResult,
		MasterId:    room.MasterId,
		CreatedAt:   room.CreatedAt,
		UpdatedAt:   room.UpdatedAt,
	}
}

func (s *PairUpApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *PairUpApp) writeDomainError(w http.ResponseWriter, err error) {
	errResp := domainError(err)
	if errResp.StatusCode >= http.StatusInternalServerError {
		s.log.Printf("request failed: %v", err)
	}
	s.writeJson(w, errResp.StatusCode, errResp)
}

type CreateRoomRequest struct {
	Name        string `json:"name"`
	Password    string `json:"password"`
	MemberLimit int    `json:"member_limit"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

type CreateRoomResponse struct {
	Room        Room   `json:"room"`
	UserId      string `json:"user_id"`
	WatchTicket string `json:"watch_ticket"`
}

func (s *PairUpApp) createRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.Name == "" || req.Username == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, err := s.gs.CreateRoom(r.Context(), game.CreateRoomParams{
		Name:        req.Name,
		Password:    req.Password,
		MemberLimit: req.MemberLimit,
		Username:    req.Username,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	ticket, err := s.createWatchTicket(room.Id, room.MasterId)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJson(w, http.StatusCreated, CreateRoomResponse{
		Room:        newRoomResponse(room),
		UserId:      room.MasterId,
		WatchTicket: ticket,
	})
}

type JoinRoomRequest struct {
	RoomId      string     `json:"room_id"`
	Password    string     `json:"password"`
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name"`
	Role        types.Role `json:"role"`
}

func (s *PairUpApp) joinRoom(w http.ResponseWriter, r *http.Request) {
	var req JoinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.RoomId == "" || req.Username == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, user, err := s.gs.JoinRoom(r.Context(), game.JoinRoomParams{
		RoomId:      req.RoomId,
		Password:    req.Password,
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Role:        req.Role,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	ticket, err := s.createWatchTicket(room.Id, user.Id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, CreateRoomResponse{
		Room:        newRoomResponse(room),
		UserId:      user.Id,
		WatchTicket: ticket,
	})
}

type RoomActionRequest struct {
	RoomId       string `json:"room_id"`
	UserId       string `json:"user_id"`
	TargetUserId string `json:"target_user_id"`
}

func (s *PairUpApp) leaveRoom(w http.ResponseWriter, r *http.Request) {
	var req RoomActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoomId == "" || req.UserId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.gs.LeaveRoom(r.Context(), req.RoomId, req.UserId); err != nil {
		s.writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *PairUpApp) kickUser(w http.ResponseWriter, r *http.Request) {
	var req RoomActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoomId == "" || req.UserId == "" || req.TargetUserId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.gs.KickUser(r.Context(), req.RoomId, req.UserId, req.TargetUserId); err != nil {
		s.writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type ChangeRoleRequest struct {
	RoomId string     `json:"room_id"`
	UserId string     `json:"user_id"`
	Role   types.Role `json:"role"`
}

func (s *PairUpApp) changeRole(w http.ResponseWriter, r *http.Request) {
	var req ChangeRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoomId == "" || req.UserId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, err := s.gs.ChangeRole(r.Context(), req.RoomId, req.UserId, req.Role)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, newRoomResponse(room))
}

func (s *PairUpApp) startGame(w http.ResponseWriter, r *http.Request) {
	var req RoomActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoomId == "" || req.UserId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, err := s.gs.StartGame(r.Context(), req.RoomId, req.UserId)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, newRoomResponse(room))
}

type CastVoteRequest struct {
	RoomId       string `json:"room_id"`
	UserId       string `json:"user_id"`
	TargetUserId string `json:"target_user_id"`
}

func (s *PairUpApp) castVote(w http.ResponseWriter, r *http.Request) {
	var req CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoomId == "" || req.UserId == "" || req.TargetUserId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, err := s.gs.CastVote(r.Context(), req.RoomId, req.UserId, req.TargetUserId)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, newRoomResponse(room))
}

func (s *PairUpApp) returnToWaiting(w http.ResponseWriter, r *http.Request) {
	var req RoomActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoomId == "" || req.UserId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, err := s.gs.ReturnToWaiting(r.Context(), req.RoomId, req.UserId)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, newRoomResponse(room))
}

// RemovalNotice explains a room the client can no longer see. Kicked
// describes why this username lost access; RoomDeleted describes why the
// whole room went away. Either may be absent once the markers expire.
type RemovalNotice struct {
	Kicked      *types.KickMarker       `json:"kicked,omitempty"`
	RoomDeleted *types.RoomDeleteMarker `json:"room_deleted,omitempty"`
	WasDeleted  bool                    `json:"was_deleted"`
}

type PollResponse struct {
	Room    *Room          `json:"room,omitempty"`
	Removed *RemovalNotice `json:"removed,omitempty"`
}

// pollRoom is the polling entry point: it refreshes the caller's
// presence, then returns the room, or, if the room or the caller's
// membership is gone, consults the markers to say why.
func (s *PairUpApp) pollRoom(w http.ResponseWriter, r *http.Request) {
	roomId := r.URL.Query().Get("id")
	username := r.URL.Query().Get("username")
	if roomId == "" || username == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// A heartbeat for a user who was just kicked is a benign no-op.
	if err := s.gs.Heartbeat(r.Context(), username); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.writeDomainError(w, err)
		return
	}

	room, err := s.rooms.GetById(r.Context(), roomId)
	if err == nil {
		resp := newRoomResponse(room)
		s.writeJson(w, http.StatusOK, PollResponse{Room: &resp})
		return
	}
	if !errors.Is(err, store.ErrNotFound) {
		s.writeDomainError(w, err)
		return
	}

	notice, nerr := s.removalNotice(r, roomId, username)
	if nerr != nil {
		s.writeDomainError(w, nerr)
		return
	}
	if notice == nil {
		errResp := NewNotFoundError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, PollResponse{Removed: notice})
}

func (s *PairUpApp) removalNotice(r *http.Request, roomId, username string) (*RemovalNotice, error) {
	kicked, err := s.markers.GetUserKickMarker(r.Context(), username)
	if err != nil {
		return nil, err
	}
	deleted, err := s.markers.GetRoomDeleteMarker(r.Context(), roomId)
	if err != nil {
		return nil, err
	}
	wasDeleted, err := s.rooms.WasDeleted(r.Context(), roomId)
	if err != nil {
		return nil, err
	}

	if kicked == nil && deleted == nil && !wasDeleted {
		return nil, nil
	}
	return &RemovalNotice{Kicked: kicked, RoomDeleted: deleted, WasDeleted: wasDeleted}, nil
}
