package kvstore

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore backs the Store contract with a native Redis connection.
// Every operation maps to a single Redis command, so TTL expiry and set
// semantics are Redis's own.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, errBackendf("get %q: %v", key, err)
	}
	return value, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return errBackendf("set %q: %v", key, err)
	}
	return nil
}

func (r *RedisStore) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return errBackendf("setex %q: non-positive ttl %s", key, ttl)
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return errBackendf("setex %q: %v", key, err)
	}
	return nil
}

func (r *RedisStore) Del(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return errBackendf("del %q: %v", key, err)
	}
	return nil
}

func (r *RedisStore) SAdd(ctx context.Context, key, member string) error {
	if err := r.client.SAdd(ctx, key, member).Err(); err != nil {
		return errBackendf("sadd %q: %v", key, err)
	}
	return nil
}

func (r *RedisStore) SRem(ctx context.Context, key, member string) error {
	if err := r.client.SRem(ctx, key, member).Err(); err != nil {
		return errBackendf("srem %q: %v", key, err)
	}
	return nil
}

func (r *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, errBackendf("smembers %q: %v", key, err)
	}
	return members, nil
}

func (r *RedisStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	d, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, false, errBackendf("ttl %q: %v", key, err)
	}
	// Redis reports -2 for a missing key and -1 for a key with no expiry.
	if d < 0 {
		return 0, false, nil
	}
	return d, true, nil
}

var _ Store = (*RedisStore)(nil)
