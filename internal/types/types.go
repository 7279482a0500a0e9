package types

import (
	"strings"
	"time"
)

type Role string

const (
	RoleAttender Role = "attender"
	RoleObserver Role = "observer"
)

type GameState string

const (
	GameStateWaiting   GameState = "waiting"
	GameStateLinking   GameState = "linking"
	GameStateCompleted GameState = "completed"
)

const (
	MinMemberLimit = 2
	MaxMemberLimit = 99
)

type User struct {
	Id          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	JoinedAt    time.Time `json:"joined_at"`
	Role        Role      `json:"role"`
}

// Selection records one voter's active pick. Selections are kept as an
// ordered list so that resolution processes them in submission order.
type Selection struct {
	VoterId  string `json:"voter_id"`
	ChosenId string `json:"chosen_id"`
}

type Pair struct {
	User1 User `json:"user1"`
	User2 User `json:"user2"`
}

type MatchResult struct {
	Pairs       []Pair    `json:"pairs"`
	Unmatched   []User    `json:"unmatched"`
	CompletedAt time.Time `json:"completed_at"`
}

// Room is the aggregate root for one matching session. Users and
// Selections are slices rather than maps so their JSON round-trips
// preserve insertion order, which master handover and resolution
// tie-breaking depend on.
type Room struct {
	Id          string       `json:"id"`
	Name        string       `json:"name"`
	Password    string       `json:"password,omitempty"`
	MemberLimit int          `json:"member_limit"`
	Users       []User       `json:"users"`
	Selections  []Selection  `json:"selections"`
	GameState   GameState    `json:"game_state"`
	MatchResult *MatchResult `json:"match_result,omitempty"`
	MasterId    string       `json:"master_id"`
	CreatedAt   time.Time    `json:"created_at,omitempty"`
	UpdatedAt   time.Time    `json:"updated_at,omitempty"`
}

// NameKey is the index key form of a room name. Uniqueness is
// case-insensitive, so the lowercase form is the only key ever stored.
func NameKey(name string) string {
	return strings.ToLower(name)
}

func (r *Room) User(id string) (User, bool) {
	for _, u := range r.Users {
		if u.Id == id {
			return u, true
		}
	}
	return User{}, false
}

func (r *Room) HasUser(id string) bool {
	_, ok := r.User(id)
	return ok
}

func (r *Room) RemoveUser(id string) bool {
	for i, u := range r.Users {
		if u.Id == id {
			r.Users = append(r.Users[:i], r.Users[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Room) Attenders() []User {
	var attenders []User
	for _, u := range r.Users {
		if u.Role == RoleAttender {
			attenders = append(attenders, u)
		}
	}
	return attenders
}

func (r *Room) Selection(voterId string) (string, bool) {
	for _, s := range r.Selections {
		if s.VoterId == voterId {
			return s.ChosenId, true
		}
	}
	return "", false
}

func (r *Room) RemoveSelection(voterId string) {
	for i, s := range r.Selections {
		if s.VoterId == voterId {
			r.Selections = append(r.Selections[:i], r.Selections[i+1:]...)
			return
		}
	}
}

func (r *Room) IsFull() bool {
	return len(r.Users) >= r.MemberLimit
}

// IsMaster is derived from MasterId at the read boundary. It is never
// persisted on the user record, which could go stale after a handover.
func (r *Room) IsMaster(userId string) bool {
	return r.MasterId != "" && r.MasterId == userId
}

// ActiveUser is the process-wide presence record for one username. Its
// existence is the sole authority for "is this username taken".
type ActiveUser struct {
	Username     string    `json:"username"`
	RoomId       string    `json:"room_id"`
	UserId       string    `json:"user_id"`
	LastActivity time.Time `json:"last_activity"`
}

type KickReason string

const (
	KickInactivity  KickReason = "INACTIVITY"
	KickRoomDeleted KickReason = "ROOM_DELETED"
	KickMaster      KickReason = "MASTER"
	KickAdmin       KickReason = "ADMIN"
)

type RoomDeleteReason string

const (
	RoomDeleteEmpty      RoomDeleteReason = "EMPTY"
	RoomDeleteInactivity RoomDeleteReason = "INACTIVITY"
	RoomDeleteAdmin      RoomDeleteReason = "ADMIN"
)

// KickMarker explains after the fact why a username lost access. When the
// kick was caused by a room deletion, RoomDeleteReason carries the cause
// of that deletion alongside.
type KickMarker struct {
	Reason           KickReason       `json:"reason"`
	RoomDeleteReason RoomDeleteReason `json:"room_delete_reason,omitempty"`
	Timestamp        time.Time        `json:"timestamp"`
}

type RoomDeleteMarker struct {
	Reason    RoomDeleteReason `json:"reason"`
	Timestamp time.Time        `json:"timestamp"`
}
