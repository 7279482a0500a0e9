package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/npezzotti/go-pairup/internal/kvstore"
	"github.com/npezzotti/go-pairup/internal/types"
)

// DefaultMarkerTTL bounds how long a kick or room-delete marker stays
// readable by polling clients.
const DefaultMarkerTTL = time.Minute

// Rank tables for marker reasons. Each is the single source of truth for
// its priority order; both set operations compare through it. An unknown
// reason ranks lowest.
var kickReasonRank = map[types.KickReason]int{
	types.KickInactivity:  0,
	types.KickRoomDeleted: 1,
	types.KickMaster:      2,
	types.KickAdmin:       3,
}

var roomDeleteReasonRank = map[types.RoomDeleteReason]int{
	types.RoomDeleteEmpty:      0,
	types.RoomDeleteInactivity: 1,
	types.RoomDeleteAdmin:      2,
}

// MarkerStore records time-bounded explanations for why a user or room
// disappeared. Multiple triggers can fire for the same subject at nearly
// the same time; the highest-priority reason wins, and among equals the
// latest write wins.
type MarkerStore struct {
	kv        kvstore.Store
	MarkerTTL time.Duration
}

func NewMarkerStore(kv kvstore.Store) *MarkerStore {
	return &MarkerStore{
		kv:        kv,
		MarkerTTL: DefaultMarkerTTL,
	}
}

// SetUserKickMarker writes a kick marker for username unless a live
// marker with a strictly higher-priority reason already exists, in which
// case the new reason is silently dropped.
func (s *MarkerStore) SetUserKickMarker(ctx context.Context, username string, reason types.KickReason, roomDeleteReason types.RoomDeleteReason) error {
	existing, err := s.GetUserKickMarker(ctx, username)
	if err != nil {
		return err
	}
	if existing != nil && kickReasonRank[existing.Reason] > kickReasonRank[reason] {
		return nil
	}

	marker := types.KickMarker{
		Reason:           reason,
		RoomDeleteReason: roomDeleteReason,
		Timestamp:        time.Now().UTC(),
	}
	data, err := json.Marshal(marker)
	if err != nil {
		return fmt.Errorf("marshal kick marker for %q: %w", username, err)
	}
	return s.kv.SetEx(ctx, kickMarkerKey(username), string(data), s.MarkerTTL)
}

// GetUserKickMarker returns the live marker for username, or nil if none
// exists or it has expired.
func (s *MarkerStore) GetUserKickMarker(ctx context.Context, username string) (*types.KickMarker, error) {
	data, ok, err := s.kv.Get(ctx, kickMarkerKey(username))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var marker types.KickMarker
	if err := json.Unmarshal([]byte(data), &marker); err != nil {
		return nil, fmt.Errorf("unmarshal kick marker for %q: %w", username, err)
	}
	return &marker, nil
}

// SetRoomDeleteMarker follows the same priority contract against the
// room-delete rank table.
func (s *MarkerStore) SetRoomDeleteMarker(ctx context.Context, roomId string, reason types.RoomDeleteReason) error {
	existing, err := s.GetRoomDeleteMarker(ctx, roomId)
	if err != nil {
		return err
	}
	if existing != nil && roomDeleteReasonRank[existing.Reason] > roomDeleteReasonRank[reason] {
		return nil
	}

	marker := types.RoomDeleteMarker{
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(marker)
	if err != nil {
		return fmt.Errorf("marshal delete marker for %q: %w", roomId, err)
	}
	return s.kv.SetEx(ctx, deleteMarkerKey(roomId), string(data), s.MarkerTTL)
}

func (s *MarkerStore) GetRoomDeleteMarker(ctx context.Context, roomId string) (*types.RoomDeleteMarker, error) {
	data, ok, err := s.kv.Get(ctx, deleteMarkerKey(roomId))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var marker types.RoomDeleteMarker
	if err := json.Unmarshal([]byte(data), &marker); err != nil {
		return nil, fmt.Errorf("unmarshal delete marker for %q: %w", roomId, err)
	}
	return &marker, nil
}
