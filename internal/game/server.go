package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/npezzotti/go-pairup/internal/stats"
	"github.com/npezzotti/go-pairup/internal/store"
	"github.com/npezzotti/go-pairup/internal/types"
	"github.com/teris-io/shortid"
)

// Metric names registered by the game server.
const (
	StatActiveRooms       = "ActiveRooms"
	StatActiveUsers       = "ActiveUsers"
	StatVotesCast         = "VotesCast"
	StatMatchesCompleted  = "MatchesCompleted"
	StatUsersSweptTimeout = "UsersSweptTimeout"
)

// DefaultInactivityTimeout is how long a user may go without a heartbeat
// before the sweep removes them.
const DefaultInactivityTimeout = 2 * time.Minute

// GameServer hosts every room operation: create/join/leave/kick, the
// waiting -> linking -> completed -> waiting cycle, vote resolution and
// the inactivity sweep. It holds no room state of its own; every
// operation reads the aggregate from the store, mutates it and writes it
// back, tolerating concurrent removal of the same entities.
type GameServer struct {
	log               *log.Logger
	rooms             *store.RoomStore
	users             *store.ActiveUserStore
	markers           *store.MarkerStore
	stats             stats.StatsProvider
	InactivityTimeout time.Duration
}

func NewGameServer(logger *log.Logger, rooms *store.RoomStore, users *store.ActiveUserStore, markers *store.MarkerStore, sp stats.StatsProvider) *GameServer {
	sp.RegisterMetric(StatActiveRooms)
	sp.RegisterMetric(StatActiveUsers)
	sp.RegisterMetric(StatVotesCast)
	sp.RegisterMetric(StatMatchesCompleted)
	sp.RegisterMetric(StatUsersSweptTimeout)

	return &GameServer{
		log:               logger,
		rooms:             rooms,
		users:             users,
		markers:           markers,
		stats:             sp,
		InactivityTimeout: DefaultInactivityTimeout,
	}
}

type CreateRoomParams struct {
	Name        string `json:"name"`
	Password    string `json:"password"`
	MemberLimit int    `json:"member_limit"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

type JoinRoomParams struct {
	RoomId      string     `json:"room_id"`
	Password    string     `json:"password"`
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name"`
	Role        types.Role `json:"role"`
}

// CreateRoom creates a room and admits its creator as master and
// attender.
func (g *GameServer) CreateRoom(ctx context.Context, params CreateRoomParams) (*types.Room, error) {
	if params.MemberLimit < types.MinMemberLimit || params.MemberLimit > types.MaxMemberLimit {
		return nil, fmt.Errorf("member limit %d out of range: %w", params.MemberLimit, store.ErrConflict)
	}

	if _, err := g.rooms.GetByName(ctx, params.Name); err == nil {
		return nil, fmt.Errorf("room name %q taken: %w", params.Name, store.ErrConflict)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if err := g.checkUsernameFree(ctx, params.Username); err != nil {
		return nil, err
	}

	id, err := shortid.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate room id: %w", err)
	}

	now := time.Now().UTC()
	creator := types.User{
		Id:          uuid.NewString(),
		Username:    params.Username,
		DisplayName: params.DisplayName,
		JoinedAt:    now,
		Role:        types.RoleAttender,
	}

	room := &types.Room{
		Id:          id,
		Name:        params.Name,
		Password:    params.Password,
		MemberLimit: params.MemberLimit,
		Users:       []types.User{creator},
		GameState:   types.GameStateWaiting,
		MasterId:    creator.Id,
		CreatedAt:   now,
	}

	if err := g.rooms.Save(ctx, room); err != nil {
		return nil, err
	}

	if err := g.users.Save(ctx, &types.ActiveUser{
		Username:     creator.Username,
		RoomId:       room.Id,
		UserId:       creator.Id,
		LastActivity: now,
	}); err != nil {
		return nil, err
	}

	g.stats.Incr(StatActiveRooms)
	g.stats.Incr(StatActiveUsers)
	g.log.Printf("created room %q (%s) for %q", room.Name, room.Id, creator.Username)
	return room, nil
}

// JoinRoom admits a user into an existing room.
func (g *GameServer) JoinRoom(ctx context.Context, params JoinRoomParams) (*types.Room, *types.User, error) {
	room, err := g.rooms.GetById(ctx, params.RoomId)
	if err != nil {
		return nil, nil, err
	}

	if room.GameState != types.GameStateWaiting {
		return nil, nil, fmt.Errorf("game already in progress in room %q: %w", room.Id, store.ErrConflict)
	}
	if room.IsFull() {
		return nil, nil, fmt.Errorf("room %q is full: %w", room.Id, store.ErrConflict)
	}
	if room.Password != "" && room.Password != params.Password {
		return nil, nil, fmt.Errorf("wrong password for room %q: %w", room.Id, store.ErrForbidden)
	}
	if err := g.checkUsernameFree(ctx, params.Username); err != nil {
		return nil, nil, err
	}

	role := params.Role
	if role == "" {
		role = types.RoleAttender
	}
	if role != types.RoleAttender && role != types.RoleObserver {
		return nil, nil, fmt.Errorf("unknown role %q: %w", params.Role, store.ErrConflict)
	}

	now := time.Now().UTC()
	user := types.User{
		Id:          uuid.NewString(),
		Username:    params.Username,
		DisplayName: params.DisplayName,
		JoinedAt:    now,
		Role:        role,
	}
	room.Users = append(room.Users, user)

	if err := g.rooms.Save(ctx, room); err != nil {
		return nil, nil, err
	}

	if err := g.users.Save(ctx, &types.ActiveUser{
		Username:     user.Username,
		RoomId:       room.Id,
		UserId:       user.Id,
		LastActivity: now,
	}); err != nil {
		return nil, nil, err
	}

	g.stats.Incr(StatActiveUsers)
	g.log.Printf("user %q joined room %q", user.Username, room.Id)
	return room, &user, nil
}

// LeaveRoom removes a user voluntarily. No kick marker is written; the
// user initiated the removal themselves.
func (g *GameServer) LeaveRoom(ctx context.Context, roomId, userId string) error {
	room, err := g.rooms.GetById(ctx, roomId)
	if err != nil {
		return err
	}

	user, ok := room.User(userId)
	if !ok {
		return fmt.Errorf("user %q in room %q: %w", userId, roomId, store.ErrNotFound)
	}

	if err := g.users.Delete(ctx, user.Username); err != nil {
		return err
	}
	g.stats.Decr(StatActiveUsers)

	return g.removeFromRoom(ctx, room, userId, types.RoomDeleteEmpty)
}

// KickUser removes target from the room on the master's authority and
// records a MASTER kick marker for the target's polling client.
func (g *GameServer) KickUser(ctx context.Context, roomId, actorUserId, targetUserId string) error {
	room, err := g.rooms.GetById(ctx, roomId)
	if err != nil {
		return err
	}
	if !room.IsMaster(actorUserId) {
		return fmt.Errorf("user %q is not master of room %q: %w", actorUserId, roomId, store.ErrForbidden)
	}
	if actorUserId == targetUserId {
		return fmt.Errorf("master cannot kick self: %w", store.ErrConflict)
	}
	return g.kick(ctx, room, targetUserId, types.KickMaster)
}

// AdminKick removes target on admin authority with an ADMIN marker.
func (g *GameServer) AdminKick(ctx context.Context, roomId, targetUserId string) error {
	room, err := g.rooms.GetById(ctx, roomId)
	if err != nil {
		return err
	}
	return g.kick(ctx, room, targetUserId, types.KickAdmin)
}

func (g *GameServer) kick(ctx context.Context, room *types.Room, targetUserId string, reason types.KickReason) error {
	target, ok := room.User(targetUserId)
	if !ok {
		return fmt.Errorf("user %q in room %q: %w", targetUserId, room.Id, store.ErrNotFound)
	}

	if err := g.markers.SetUserKickMarker(ctx, target.Username, reason, ""); err != nil {
		return err
	}
	if err := g.users.Delete(ctx, target.Username); err != nil {
		return err
	}
	g.stats.Decr(StatActiveUsers)

	g.log.Printf("user %q kicked from room %q (%s)", target.Username, room.Id, reason)
	return g.removeFromRoom(ctx, room, targetUserId, types.RoomDeleteEmpty)
}

// ChangeRole switches a member between attender and observer. Any vote
// already recorded in the current round is deliberately left in place;
// completion counting compares against current attenders only.
func (g *GameServer) ChangeRole(ctx context.Context, roomId, userId string, role types.Role) (*types.Room, error) {
	if role != types.RoleAttender && role != types.RoleObserver {
		return nil, fmt.Errorf("unknown role %q: %w", role, store.ErrConflict)
	}

	room, err := g.rooms.GetById(ctx, roomId)
	if err != nil {
		return nil, err
	}

	var found bool
	for i := range room.Users {
		if room.Users[i].Id == userId {
			room.Users[i].Role = role
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("user %q in room %q: %w", userId, roomId, store.ErrNotFound)
	}

	if err := g.rooms.Save(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// StartGame moves the room from waiting to linking, clearing any prior
// selections and match result.
func (g *GameServer) StartGame(ctx context.Context, roomId, actorUserId string) (*types.Room, error) {
	room, err := g.rooms.GetById(ctx, roomId)
	if err != nil {
		return nil, err
	}

	if !room.IsMaster(actorUserId) {
		return nil, fmt.Errorf("user %q is not master of room %q: %w", actorUserId, roomId, store.ErrForbidden)
	}
	if room.GameState != types.GameStateWaiting {
		return nil, fmt.Errorf("room %q is not waiting: %w", roomId, store.ErrConflict)
	}
	if len(room.Attenders()) < 2 {
		return nil, fmt.Errorf("room %q needs at least two attenders: %w", roomId, store.ErrConflict)
	}

	room.Selections = nil
	room.MatchResult = nil
	room.GameState = types.GameStateLinking

	if err := g.rooms.Save(ctx, room); err != nil {
		return nil, err
	}

	g.log.Printf("room %q entered linking", room.Id)
	return room, nil
}

// CastVote records one selection. The round resolves automatically the
// moment the number of recorded selections equals the number of current
// attenders.
func (g *GameServer) CastVote(ctx context.Context, roomId, voterId, targetId string) (*types.Room, error) {
	room, err := g.rooms.GetById(ctx, roomId)
	if err != nil {
		return nil, err
	}

	if room.GameState != types.GameStateLinking {
		return nil, fmt.Errorf("room %q is not linking: %w", roomId, store.ErrConflict)
	}
	voter, ok := room.User(voterId)
	if !ok {
		return nil, fmt.Errorf("voter %q in room %q: %w", voterId, roomId, store.ErrNotFound)
	}
	if voter.Role != types.RoleAttender {
		return nil, fmt.Errorf("user %q is not an attender: %w", voterId, store.ErrForbidden)
	}
	if !room.HasUser(targetId) {
		return nil, fmt.Errorf("target %q in room %q: %w", targetId, roomId, store.ErrNotFound)
	}
	if _, voted := room.Selection(voterId); voted {
		return nil, fmt.Errorf("user %q already voted: %w", voterId, store.ErrConflict)
	}

	room.Selections = append(room.Selections, types.Selection{VoterId: voterId, ChosenId: targetId})
	g.stats.Incr(StatVotesCast)

	// Completion compares the selection count against current attenders
	// without pruning votes from members who have since switched to
	// observer. See ChangeRole.
	if len(room.Selections) >= len(room.Attenders()) {
		return room, g.finishRound(ctx, room)
	}

	return room, g.rooms.Save(ctx, room)
}

// ReturnToWaiting cycles a completed room back to waiting without
// touching its remaining members.
func (g *GameServer) ReturnToWaiting(ctx context.Context, roomId, actorUserId string) (*types.Room, error) {
	room, err := g.rooms.GetById(ctx, roomId)
	if err != nil {
		return nil, err
	}

	if !room.IsMaster(actorUserId) {
		return nil, fmt.Errorf("user %q is not master of room %q: %w", actorUserId, roomId, store.ErrForbidden)
	}
	if room.GameState != types.GameStateCompleted {
		return nil, fmt.Errorf("room %q is not completed: %w", roomId, store.ErrConflict)
	}

	room.Selections = nil
	room.MatchResult = nil
	room.GameState = types.GameStateWaiting

	if err := g.rooms.Save(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// AdminDeleteRoom force-deletes a room, kicking every remaining member
// with a ROOM_DELETED marker that carries the ADMIN delete reason.
func (g *GameServer) AdminDeleteRoom(ctx context.Context, roomId string) error {
	return g.deleteRoom(ctx, roomId, types.RoomDeleteAdmin)
}

func (g *GameServer) deleteRoom(ctx context.Context, roomId string, reason types.RoomDeleteReason) error {
	room, err := g.rooms.GetById(ctx, roomId)
	if err != nil {
		return err
	}

	for _, user := range room.Users {
		if err := g.markers.SetUserKickMarker(ctx, user.Username, types.KickRoomDeleted, reason); err != nil {
			return err
		}
		if err := g.users.Delete(ctx, user.Username); err != nil {
			return err
		}
		g.stats.Decr(StatActiveUsers)
	}

	if err := g.markers.SetRoomDeleteMarker(ctx, roomId, reason); err != nil {
		return err
	}
	if err := g.rooms.Delete(ctx, roomId); err != nil {
		return err
	}

	g.stats.Decr(StatActiveRooms)
	g.log.Printf("deleted room %q (%s)", roomId, reason)
	return nil
}

// Heartbeat refreshes a username's last-activity timestamp.
func (g *GameServer) Heartbeat(ctx context.Context, username string) error {
	record, err := g.users.Get(ctx, username)
	if err != nil {
		return err
	}
	record.LastActivity = time.Now().UTC()
	return g.users.Save(ctx, record)
}

// removeFromRoom takes userId out of the room's user and selection sets,
// hands the master role to the first remaining member by join order if
// needed, and deletes the room (with the given reason) once empty.
func (g *GameServer) removeFromRoom(ctx context.Context, room *types.Room, userId string, emptyReason types.RoomDeleteReason) error {
	room.RemoveUser(userId)
	room.RemoveSelection(userId)

	if len(room.Users) == 0 {
		if err := g.markers.SetRoomDeleteMarker(ctx, room.Id, emptyReason); err != nil {
			return err
		}
		if err := g.rooms.Delete(ctx, room.Id); err != nil {
			return err
		}
		g.stats.Decr(StatActiveRooms)
		g.log.Printf("deleted empty room %q (%s)", room.Id, emptyReason)
		return nil
	}

	if room.MasterId == userId {
		room.MasterId = room.Users[0].Id
		g.log.Printf("room %q master handed to %q", room.Id, room.Users[0].Username)
	}

	return g.rooms.Save(ctx, room)
}

func (g *GameServer) checkUsernameFree(ctx context.Context, username string) error {
	if _, err := g.users.Get(ctx, username); err == nil {
		return fmt.Errorf("username %q taken: %w", username, store.ErrConflict)
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}
