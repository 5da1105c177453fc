package storage

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// In-process CounterStore used by tests and as a degraded single-process
// fallback when Redis is unreachable at startup. Implements the same
// contract as RedisClient, including TTL expiry on plain keys.
type MemoryStore struct {
	mu   sync.Mutex
	keys map[string]memoryValue
	sets map[string][]memoryMember
	now  func() time.Time
}

type memoryValue struct {
	value     string
	expiresAt time.Time
}

type memoryMember struct {
	score  float64
	member string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		keys: make(map[string]memoryValue),
		sets: make(map[string][]memoryMember),
		now:  time.Now,
	}
}

// Overrides the clock, for tests
func (m *MemoryStore) SetNow(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	val, ok := m.keys[key]
	if !ok || m.expired(val) {
		delete(m.keys, key)
		return "", ErrKeyNotFound
	}

	return val.value, nil
}

func (m *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	val := memoryValue{value: value}
	if ttl > 0 {
		val.expiresAt = m.now().Add(ttl)
	}
	m.keys[key] = val

	return nil
}

func (m *MemoryStore) Del(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.keys, key)
	return nil
}

func (m *MemoryStore) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	val, ok := m.keys[key]
	if !ok || m.expired(val) {
		val = memoryValue{}
	}

	count, _ := strconv.ParseInt(val.value, 10, 64)
	count++
	val.value = strconv.FormatInt(count, 10)
	m.keys[key] = val

	return count, nil
}

func (m *MemoryStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	val, ok := m.keys[key]
	if !ok {
		return nil
	}

	val.expiresAt = m.now().Add(ttl)
	m.keys[key] = val

	return nil
}

func (m *MemoryStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	members := m.sets[key]
	for i, existing := range members {
		if existing.member == member {
			members[i].score = score
			return nil
		}
	}

	m.sets[key] = append(members, memoryMember{score: score, member: member})
	return nil
}

func (m *MemoryStore) ZCount(ctx context.Context, key string, min, max float64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for _, member := range m.sets[key] {
		if member.score >= min && member.score <= max {
			count++
		}
	}

	return count, nil
}

func (m *MemoryStore) ZRemRangeByScore(ctx context.Context, key string, min, max float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	members := m.sets[key]
	kept := members[:0]
	for _, member := range members {
		if member.score < min || member.score > max {
			kept = append(kept, member)
		}
	}
	m.sets[key] = kept

	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryStore) expired(val memoryValue) bool {
	return !val.expiresAt.IsZero() && m.now().After(val.expiresAt)
}
