package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SnapshotStore keeps session snapshots for the lifetime of a page session.
type SnapshotStore interface {
	Save(ctx context.Context, sessionID string, snap Snapshot) error
	Load(ctx context.Context, sessionID string) (*Snapshot, error)
	Delete(ctx context.Context, sessionID string) error
}

// MemorySnapshotStore is the single-process SnapshotStore.
type MemorySnapshotStore struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.Mutex
	entries   map[string]memoryEntry
	nextPrune time.Time
}

type memoryEntry struct {
	snap    Snapshot
	expires time.Time
}

// NewMemorySnapshotStore creates an in-memory store whose entries expire
// after ttl.
func NewMemorySnapshotStore(ttl time.Duration) *MemorySnapshotStore {
	return &MemorySnapshotStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (m *MemorySnapshotStore) Save(_ context.Context, sessionID string, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.pruneLocked(now)
	m.entries[sessionID] = memoryEntry{snap: snap, expires: now.Add(m.ttl)}
	return nil
}

// pruneLocked drops expired entries at most once per TTL, so abandoned
// sessions do not accumulate.
func (m *MemorySnapshotStore) pruneLocked(now time.Time) {
	if now.Before(m.nextPrune) {
		return
	}
	for id, entry := range m.entries {
		if !now.Before(entry.expires) {
			delete(m.entries, id)
		}
	}
	m.nextPrune = now.Add(m.ttl)
}

// Len reports how many entries are held, expired or not.
func (m *MemorySnapshotStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemorySnapshotStore) Load(_ context.Context, sessionID string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[sessionID]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	if !m.now().Before(entry.expires) {
		delete(m.entries, sessionID)
		return nil, ErrSnapshotNotFound
	}
	snap := entry.snap
	return &snap, nil
}

func (m *MemorySnapshotStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, sessionID)
	return nil
}

// RedisSnapshotStore keeps snapshots in Redis so any replica can rebuild a
// session.
type RedisSnapshotStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisSnapshotStore creates a Redis-backed store with the given TTL.
func NewRedisSnapshotStore(client *redis.Client, ttl time.Duration) *RedisSnapshotStore {
	return &RedisSnapshotStore{redis: client, ttl: ttl}
}

func (s *RedisSnapshotStore) key(sessionID string) string {
	return fmt.Sprintf("checkout:session:%s", sessionID)
}

func (s *RedisSnapshotStore) Save(ctx context.Context, sessionID string, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("checkout: marshal snapshot: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("checkout: save snapshot: %w", err)
	}
	return nil
}

func (s *RedisSnapshotStore) Load(ctx context.Context, sessionID string) (*Snapshot, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("checkout: load snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("checkout: unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

func (s *RedisSnapshotStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("checkout: delete snapshot: %w", err)
	}
	return nil
}
