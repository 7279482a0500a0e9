package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/npezzotti/go-pairup/internal/kvstore"
	"github.com/npezzotti/go-pairup/internal/types"
)

// DefaultTombstoneTTL is how long a deleted room id remains
// distinguishable from one that never existed.
const DefaultTombstoneTTL = time.Minute

// RoomStore persists Room aggregates and maintains the two secondary
// facts derived from them: the lowercase name index and the set of all
// live room ids.
type RoomStore struct {
	kv           kvstore.Store
	TombstoneTTL time.Duration
}

func NewRoomStore(kv kvstore.Store) *RoomStore {
	return &RoomStore{
		kv:           kv,
		TombstoneTTL: DefaultTombstoneTTL,
	}
}

func (s *RoomStore) GetById(ctx context.Context, id string) (*types.Room, error) {
	data, ok, err := s.kv.Get(ctx, roomKey(id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("room %q: %w", id, ErrNotFound)
	}

	var room types.Room
	if err := json.Unmarshal([]byte(data), &room); err != nil {
		return nil, fmt.Errorf("unmarshal room %q: %w", id, err)
	}
	return &room, nil
}

// GetByName resolves a room through the lowercase name index. A dangling
// index entry whose room record is gone reports not found, same as no
// entry at all.
func (s *RoomStore) GetByName(ctx context.Context, name string) (*types.Room, error) {
	id, ok, err := s.kv.Get(ctx, roomNameKey(types.NameKey(name)))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("room named %q: %w", name, ErrNotFound)
	}
	return s.GetById(ctx, id)
}

// Save upserts the room record, its membership in the all-rooms set and
// the name index entry. The room record is written first so a concurrent
// reader following the name index never finds the index without the
// record.
func (s *RoomStore) Save(ctx context.Context, room *types.Room) error {
	room.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("marshal room %q: %w", room.Id, err)
	}

	if err := s.kv.Set(ctx, roomKey(room.Id), string(data)); err != nil {
		return err
	}
	if err := s.kv.SAdd(ctx, allRoomsKey, room.Id); err != nil {
		return err
	}
	return s.kv.Set(ctx, roomNameKey(types.NameKey(room.Name)), room.Id)
}

// Delete removes the room record, its set membership and its name index
// entry, then writes a short-lived tombstone. The name is looked up from
// the stored room, not taken as a parameter, so the index entry removed
// is always the one Save wrote.
func (s *RoomStore) Delete(ctx context.Context, id string) error {
	room, err := s.GetById(ctx, id)
	if err != nil {
		return err
	}

	if err := s.kv.Del(ctx, roomKey(id)); err != nil {
		return err
	}
	if err := s.kv.SRem(ctx, allRoomsKey, id); err != nil {
		return err
	}
	if err := s.kv.Del(ctx, roomNameKey(types.NameKey(room.Name))); err != nil {
		return err
	}

	ts := time.Now().UTC().Format(time.RFC3339)
	return s.kv.SetEx(ctx, tombstoneKey(id), ts, s.TombstoneTTL)
}

func (s *RoomStore) ListIds(ctx context.Context) ([]string, error) {
	return s.kv.SMembers(ctx, allRoomsKey)
}

// WasDeleted reports whether id was deleted recently enough that its
// tombstone has not yet expired. After expiry the deletion is
// indistinguishable from the room never having existed.
func (s *RoomStore) WasDeleted(ctx context.Context, id string) (bool, error) {
	_, ok, err := s.kv.Get(ctx, tombstoneKey(id))
	return ok, err
}
