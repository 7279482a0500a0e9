package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrBackend wraps any failure of the underlying store: network errors,
// malformed responses, or an error reported by the backend itself. A
// missing key is never an error; lookups report absence through their
// ok return instead.
var ErrBackend = errors.New("kv backend failure")

func errBackendf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrBackend}, args...)...)
}

// Store is the uniform key-value contract the domain layer is written
// against. Two properties hold for every implementation: reads after a
// key's TTL has elapsed never return stale data, and set membership is
// unordered and duplicate-free.
type Store interface {
	// Get returns the value for key, with ok false if the key does not
	// exist or has expired.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// SetEx stores value under key with an expiry. A ttl of zero or less
	// is a backend error, not a delete.
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	SAdd(ctx context.Context, key, member string) error
	SRem(ctx context.Context, key, member string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	// TTL returns the remaining lifetime of key, with ok false if the
	// key does not exist or has no expiry.
	TTL(ctx context.Context, key string) (time.Duration, bool, error)
}
