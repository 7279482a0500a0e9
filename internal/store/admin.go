package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/npezzotti/go-pairup/internal/kvstore"
	"golang.org/x/crypto/bcrypt"
)

// DefaultAdminSessionTTL is the fixed lifetime of an admin token. The
// TTL does not slide; re-authentication issues a fresh token.
const DefaultAdminSessionTTL = time.Hour

// AdminStore manages opaque admin bearer tokens, the stored admin
// password hash and the process-wide shutdown flag.
type AdminStore struct {
	kv         kvstore.Store
	SessionTTL time.Duration
}

func NewAdminStore(kv kvstore.Store) *AdminStore {
	return &AdminStore{
		kv:         kv,
		SessionTTL: DefaultAdminSessionTTL,
	}
}

// EnsurePassword stores a bcrypt hash of password if none is stored yet.
// An already-provisioned hash is left untouched so a changed flag value
// cannot silently rotate the credential.
func (s *AdminStore) EnsurePassword(ctx context.Context, password string) error {
	_, ok, err := s.kv.Get(ctx, adminPasswordKey)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	return s.kv.Set(ctx, adminPasswordKey, string(hash))
}

// Login verifies password against the stored hash and issues a new
// session token on success.
func (s *AdminStore) Login(ctx context.Context, password string) (string, error) {
	hash, ok, err := s.kv.Get(ctx, adminPasswordKey)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("admin password not provisioned: %w", ErrForbidden)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return "", fmt.Errorf("admin password mismatch: %w", ErrForbidden)
	}

	token := uuid.NewString()
	if err := s.StoreToken(ctx, token); err != nil {
		return "", err
	}
	return token, nil
}

func (s *AdminStore) StoreToken(ctx context.Context, token string) error {
	if err := s.kv.SAdd(ctx, adminSessionsKey, token); err != nil {
		return err
	}
	return s.kv.SetEx(ctx, adminTokenKey(token), "1", s.SessionTTL)
}

func (s *AdminStore) IsValid(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	_, ok, err := s.kv.Get(ctx, adminTokenKey(token))
	return ok, err
}

func (s *AdminStore) Revoke(ctx context.Context, token string) error {
	if err := s.kv.Del(ctx, adminTokenKey(token)); err != nil {
		return err
	}
	return s.kv.SRem(ctx, adminSessionsKey, token)
}

func (s *AdminStore) RemainingTTL(ctx context.Context, token string) (time.Duration, bool, error) {
	return s.kv.TTL(ctx, adminTokenKey(token))
}

// ListSessions enumerates live tokens. Any token in the session set
// whose TTL key has already expired is pruned during the listing rather
// than left as a phantom entry.
func (s *AdminStore) ListSessions(ctx context.Context) ([]string, error) {
	tokens, err := s.kv.SMembers(ctx, adminSessionsKey)
	if err != nil {
		return nil, err
	}

	live := make([]string, 0, len(tokens))
	for _, token := range tokens {
		_, ok, err := s.kv.Get(ctx, adminTokenKey(token))
		if err != nil {
			return nil, err
		}
		if !ok {
			if err := s.kv.SRem(ctx, adminSessionsKey, token); err != nil {
				return nil, err
			}
			continue
		}
		live = append(live, token)
	}
	return live, nil
}

func (s *AdminStore) SetShutdown(ctx context.Context, down bool) error {
	if down {
		return s.kv.Set(ctx, shutdownKey, "1")
	}
	return s.kv.Del(ctx, shutdownKey)
}

func (s *AdminStore) IsShutdown(ctx context.Context) (bool, error) {
	_, ok, err := s.kv.Get(ctx, shutdownKey)
	return ok, err
}
