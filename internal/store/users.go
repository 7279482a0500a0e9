package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/npezzotti/go-pairup/internal/kvstore"
	"github.com/npezzotti/go-pairup/internal/types"
)

// ActiveUserStore tracks the single active session per username. A
// username maps to at most one record, and the record's existence is
// what makes the username taken.
type ActiveUserStore struct {
	kv kvstore.Store
}

func NewActiveUserStore(kv kvstore.Store) *ActiveUserStore {
	return &ActiveUserStore{kv: kv}
}

func (s *ActiveUserStore) Get(ctx context.Context, username string) (*types.ActiveUser, error) {
	data, ok, err := s.kv.Get(ctx, activeUserKey(username))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("active user %q: %w", username, ErrNotFound)
	}

	var record types.ActiveUser
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("unmarshal active user %q: %w", username, err)
	}
	return &record, nil
}

func (s *ActiveUserStore) Save(ctx context.Context, record *types.ActiveUser) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal active user %q: %w", record.Username, err)
	}

	if err := s.kv.Set(ctx, activeUserKey(record.Username), string(data)); err != nil {
		return err
	}
	return s.kv.SAdd(ctx, allActiveUsersKey, record.Username)
}

func (s *ActiveUserStore) Delete(ctx context.Context, username string) error {
	if err := s.kv.Del(ctx, activeUserKey(username)); err != nil {
		return err
	}
	return s.kv.SRem(ctx, allActiveUsersKey, username)
}

// ListAll enumerates every active record. A username present in the set
// without a backing record may have been removed concurrently and is
// skipped.
func (s *ActiveUserStore) ListAll(ctx context.Context) ([]types.ActiveUser, error) {
	usernames, err := s.kv.SMembers(ctx, allActiveUsersKey)
	if err != nil {
		return nil, err
	}

	records := make([]types.ActiveUser, 0, len(usernames))
	for _, username := range usernames {
		data, ok, err := s.kv.Get(ctx, activeUserKey(username))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		var record types.ActiveUser
		if err := json.Unmarshal([]byte(data), &record); err != nil {
			return nil, fmt.Errorf("unmarshal active user %q: %w", username, err)
		}
		records = append(records, record)
	}
	return records, nil
}
