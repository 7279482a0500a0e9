package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	expires_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS kv_set_members (
	key TEXT NOT NULL,
	member TEXT NOT NULL,
	PRIMARY KEY (key, member)
);`

// PgStore is a durable Store implementation on Postgres. Expiry follows
// the same lazy model as the in-process store: a read of a key whose
// expires_at has passed deletes the row and reports absence.
type PgStore struct {
	conn *sql.DB
}

func NewPgStore(dsn string) (*PgStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if _, err := db.Exec(pgSchema); err != nil {
		return nil, errBackendf("create schema: %v", err)
	}

	return &PgStore{conn: db}, nil
}

func (p *PgStore) Close() error {
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func (p *PgStore) Get(ctx context.Context, key string) (string, bool, error) {
	row := p.conn.QueryRowContext(ctx,
		"SELECT value, expires_at FROM kv_entries WHERE key = $1", key)

	var value string
	var expiresAt sql.NullTime
	if err := row.Scan(&value, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, errBackendf("get %q: %v", key, err)
	}

	if expiresAt.Valid && !time.Now().Before(expiresAt.Time) {
		if err := p.Del(ctx, key); err != nil {
			return "", false, err
		}
		return "", false, nil
	}
	return value, true, nil
}

func (p *PgStore) Set(ctx context.Context, key, value string) error {
	_, err := p.conn.ExecContext(ctx,
		"INSERT INTO kv_entries (key, value, expires_at) VALUES ($1, $2, NULL) "+
			"ON CONFLICT (key) DO UPDATE SET value = $2, expires_at = NULL",
		key, value)
	if err != nil {
		return errBackendf("set %q: %v", key, err)
	}
	return nil
}

func (p *PgStore) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return errBackendf("setex %q: non-positive ttl %s", key, ttl)
	}
	expiresAt := time.Now().Add(ttl).UTC()
	_, err := p.conn.ExecContext(ctx,
		"INSERT INTO kv_entries (key, value, expires_at) VALUES ($1, $2, $3) "+
			"ON CONFLICT (key) DO UPDATE SET value = $2, expires_at = $3",
		key, value, expiresAt)
	if err != nil {
		return errBackendf("setex %q: %v", key, err)
	}
	return nil
}

func (p *PgStore) Del(ctx context.Context, key string) error {
	if _, err := p.conn.ExecContext(ctx,
		"DELETE FROM kv_entries WHERE key = $1", key); err != nil {
		return errBackendf("del %q: %v", key, err)
	}
	return nil
}

func (p *PgStore) SAdd(ctx context.Context, key, member string) error {
	_, err := p.conn.ExecContext(ctx,
		"INSERT INTO kv_set_members (key, member) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		key, member)
	if err != nil {
		return errBackendf("sadd %q: %v", key, err)
	}
	return nil
}

func (p *PgStore) SRem(ctx context.Context, key, member string) error {
	_, err := p.conn.ExecContext(ctx,
		"DELETE FROM kv_set_members WHERE key = $1 AND member = $2", key, member)
	if err != nil {
		return errBackendf("srem %q: %v", key, err)
	}
	return nil
}

func (p *PgStore) SMembers(ctx context.Context, key string) ([]string, error) {
	rows, err := p.conn.QueryContext(ctx,
		"SELECT member FROM kv_set_members WHERE key = $1", key)
	if err != nil {
		return nil, errBackendf("smembers %q: %v", key, err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var member string
		if err := rows.Scan(&member); err != nil {
			return nil, errBackendf("smembers %q: scan: %v", key, err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, errBackendf("smembers %q: %v", key, err)
	}
	return members, nil
}

func (p *PgStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	row := p.conn.QueryRowContext(ctx,
		"SELECT expires_at FROM kv_entries WHERE key = $1", key)

	var expiresAt sql.NullTime
	if err := row.Scan(&expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, errBackendf("ttl %q: %v", key, err)
	}
	if !expiresAt.Valid {
		return 0, false, nil
	}

	remaining := time.Until(expiresAt.Time)
	if remaining <= 0 {
		if err := p.Del(ctx, key); err != nil {
			return 0, false, err
		}
		return 0, false, nil
	}
	return remaining, true, nil
}

var _ Store = (*PgStore)(nil)
