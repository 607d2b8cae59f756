package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Locker with the same expiry semantics as Redis.
// It only serializes callers sharing the instance.
type Memory struct {
	mu    sync.Mutex
	held  map[string]memoryEntry
	clock func() time.Time
}

type memoryEntry struct {
	owner   string
	expires time.Time
}

// NewMemory creates an empty in-memory locker.
func NewMemory() *Memory {
	return &Memory{held: make(map[string]memoryEntry), clock: time.Now}
}

// WithClock swaps the time source used for expiry.
func (m *Memory) WithClock(clock func() time.Time) *Memory {
	m.clock = clock
	return m
}

// Acquire takes key unless an unexpired lease holds it.
func (m *Memory) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock()
	if cur, ok := m.held[key]; ok && now.Before(cur.expires) {
		return nil, false, nil
	}
	owner := uuid.NewString()
	m.held[key] = memoryEntry{owner: owner, expires: now.Add(ttl)}
	return &memoryLease{m: m, key: key, owner: owner}, true, nil
}

// Held reports whether key is currently locked.
func (m *Memory) Held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.held[key]
	return ok && m.clock().Before(cur.expires)
}

type memoryLease struct {
	m     *Memory
	key   string
	owner string
}

func (l *memoryLease) Key() string { return l.key }

func (l *memoryLease) Release(context.Context) error {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()
	if cur, ok := l.m.held[l.key]; ok && cur.owner == l.owner {
		delete(l.m.held, l.key)
	}
	return nil
}
