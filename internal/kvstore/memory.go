package kvstore

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value string
	// expiresAt is zero for keys without a TTL.
	expiresAt time.Time
}

// MemoryStore is the in-process fallback implementation of Store. TTLs
// are simulated by storing an expiry timestamp and checking it lazily on
// every read; there is no background eviction, so expired entries occupy
// memory until the next read or an explicit Compact.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]memoryEntry
	sets   map[string]map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]memoryEntry),
		sets:   make(map[string]map[string]struct{}),
	}
}

func (m *MemoryStore) expired(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && !time.Now().Before(e.expiresAt)
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.values[key]
	if !ok {
		return "", false, nil
	}
	if m.expired(e) {
		delete(m.values, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = memoryEntry{value: value}
	return nil
}

func (m *MemoryStore) SetEx(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return errBackendf("setex %q: non-positive ttl %s", key, ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
	return nil
}

func (m *MemoryStore) SAdd(_ context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.sets[key]
	if !ok {
		set = make(map[string]struct{})
		m.sets[key] = set
	}
	set[member] = struct{}{}
	return nil
}

func (m *MemoryStore) SRem(_ context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if set, ok := m.sets[key]; ok {
		delete(set, member)
		if len(set) == 0 {
			delete(m.sets, key)
		}
	}
	return nil
}

func (m *MemoryStore) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	members := make([]string, 0, len(m.sets[key]))
	for member := range m.sets[key] {
		members = append(members, member)
	}
	return members, nil
}

func (m *MemoryStore) TTL(_ context.Context, key string) (time.Duration, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.values[key]
	if !ok || e.expiresAt.IsZero() {
		return 0, false, nil
	}
	if m.expired(e) {
		delete(m.values, key)
		return 0, false, nil
	}
	return time.Until(e.expiresAt), true, nil
}

// Compact removes every expired entry. Purely a memory optimization:
// correctness never depends on it running.
func (m *MemoryStore) Compact() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int
	for key, e := range m.values {
		if m.expired(e) {
			delete(m.values, key)
			removed++
		}
	}
	return removed
}
