package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt"
)

const watchTicketExp = time.Minute

const (
	roomIdClaim = "room-id"
	userIdClaim = "user-id"
	expClaim    = "exp"
)

type AdminLoginRequest struct {
	Password string `json:"password"`
}

type AdminLoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

func (s *PairUpApp) adminLogin(w http.ResponseWriter, r *http.Request) {
	var req AdminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	token, err := s.admin.Login(r.Context(), req.Password)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	ttl, _, err := s.admin.RemainingTTL(r.Context(), token)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, AdminLoginResponse{
		Token:     token,
		ExpiresIn: int64(ttl / time.Second),
	})
}

type AdminSessionsResponse struct {
	Sessions []string `json:"sessions"`
}

func (s *PairUpApp) adminSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.admin.ListSessions(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, AdminSessionsResponse{Sessions: sessions})
}

type AdminRevokeRequest struct {
	Token string `json:"token"`
}

func (s *PairUpApp) adminRevoke(w http.ResponseWriter, r *http.Request) {
	var req AdminRevokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.admin.Revoke(r.Context(), req.Token); err != nil {
		s.writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type AdminListRoomsResponse struct {
	RoomIds []string `json:"room_ids"`
}

func (s *PairUpApp) adminListRooms(w http.ResponseWriter, r *http.Request) {
	ids, err := s.rooms.ListIds(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, AdminListRoomsResponse{RoomIds: ids})
}

func (s *PairUpApp) adminDeleteRoom(w http.ResponseWriter, r *http.Request) {
	roomId := r.URL.Query().Get("id")
	if roomId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.gs.AdminDeleteRoom(r.Context(), roomId); err != nil {
		s.writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *PairUpApp) adminKick(w http.ResponseWriter, r *http.Request) {
	var req RoomActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoomId == "" || req.TargetUserId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.gs.AdminKick(r.Context(), req.RoomId, req.TargetUserId); err != nil {
		s.writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type AdminShutdownRequest struct {
	Down bool `json:"down"`
}

func (s *PairUpApp) adminShutdown(w http.ResponseWriter, r *http.Request) {
	var req AdminShutdownRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.admin.SetShutdown(r.Context(), req.Down); err != nil {
		s.writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// createWatchTicket signs a short-lived ticket authorizing one watch
// socket for one room membership. Tickets are how the websocket
// endpoint authenticates, since the game itself has no login.
func (s *PairUpApp) createWatchTicket(roomId, userId string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		roomIdClaim: roomId,
		userIdClaim: userId,
		expClaim:    time.Now().Add(watchTicketExp).Unix(),
	})

	return token.SignedString(s.signingKey)
}

func (s *PairUpApp) verifyWatchTicket(ticket string) (roomId, userId string, err error) {
	token, err := jwt.Parse(ticket, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return "", "", fmt.Errorf("parse ticket: %w", err)
	}
	if !token.Valid {
		return "", "", fmt.Errorf("invalid ticket")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", fmt.Errorf("invalid ticket claims")
	}
	roomId, ok = claims[roomIdClaim].(string)
	if !ok {
		return "", "", fmt.Errorf("invalid room id claim")
	}
	userId, ok = claims[userIdClaim].(string)
	if !ok {
		return "", "", fmt.Errorf("invalid user id claim")
	}

	return roomId, userId, nil
}
