package credential

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	nonceKeyPrefix = "qr_token:nonce:"
	nonceActive    = "active"
	nonceUsed      = "used"
)

// ErrNonceExists is returned when registering a nonce that is already present.
var ErrNonceExists = errors.New("nonce already registered")

// NonceStore is the ephemeral fast-path replay guard.
type NonceStore interface {
	Register(ctx context.Context, nonce string, ttl time.Duration) error
	Lookup(ctx context.Context, nonce string) (NonceState, error)
	// MarkUsed atomically flips an active nonce to used, keeping its TTL.
	// It reports false when the nonce was not active.
	MarkUsed(ctx context.Context, nonce string) (bool, error)
}

// markUsedScript is a compare-and-set: only an "active" value becomes "used",
// and the remaining TTL is carried over so eviction still happens.
var markUsedScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
	return 0
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl > 0 then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ttl)
else
	redis.call("SET", KEYS[1], ARGV[2])
end
return 1
`)

// RedisNonceStore keeps nonces under qr_token:nonce:{nonce}.
type RedisNonceStore struct {
	client *redis.Client
}

// NewRedisNonceStore builds the Redis nonce store.
func NewRedisNonceStore(client *redis.Client) *RedisNonceStore {
	return &RedisNonceStore{client: client}
}

func nonceKey(nonce string) string { return nonceKeyPrefix + nonce }

func (s *RedisNonceStore) Register(ctx context.Context, nonce string, ttl time.Duration) error {
	ok, err := s.client.SetNX(ctx, nonceKey(nonce), nonceActive, ttl).Result()
	if err != nil {
		return fmt.Errorf("register nonce: %w", err)
	}
	if !ok {
		return ErrNonceExists
	}
	return nil
}

func (s *RedisNonceStore) Lookup(ctx context.Context, nonce string) (NonceState, error) {
	v, err := s.client.Get(ctx, nonceKey(nonce)).Result()
	if errors.Is(err, redis.Nil) {
		return NonceAbsent, nil
	}
	if err != nil {
		return NonceAbsent, fmt.Errorf("lookup nonce: %w", err)
	}
	switch v {
	case nonceActive:
		return NonceActive, nil
	case nonceUsed:
		return NonceUsed, nil
	default:
		return NonceAbsent, fmt.Errorf("nonce %s holds unexpected value %q", nonce, v)
	}
}

func (s *RedisNonceStore) MarkUsed(ctx context.Context, nonce string) (bool, error) {
	n, err := markUsedScript.Run(ctx, s.client, []string{nonceKey(nonce)}, nonceActive, nonceUsed).Int()
	if err != nil {
		return false, fmt.Errorf("mark nonce used: %w", err)
	}
	return n == 1, nil
}

// MemoryNonceStore is an in-process NonceStore with TTL eviction.
type MemoryNonceStore struct {
	mu      sync.Mutex
	entries map[string]memoryNonce
	clock   func() time.Time
}

type memoryNonce struct {
	state   NonceState
	expires time.Time
}

// NewMemoryNonceStore creates an empty store.
func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{entries: make(map[string]memoryNonce), clock: time.Now}
}

// WithClock swaps the time source used for eviction.
func (m *MemoryNonceStore) WithClock(clock func() time.Time) *MemoryNonceStore {
	m.clock = clock
	return m
}

func (m *MemoryNonceStore) live(nonce string) (memoryNonce, bool) {
	e, ok := m.entries[nonce]
	if !ok {
		return memoryNonce{}, false
	}
	if !m.clock().Before(e.expires) {
		delete(m.entries, nonce)
		return memoryNonce{}, false
	}
	return e, true
}

func (m *MemoryNonceStore) Register(_ context.Context, nonce string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(nonce); ok {
		return ErrNonceExists
	}
	m.entries[nonce] = memoryNonce{state: NonceActive, expires: m.clock().Add(ttl)}
	return nil
}

func (m *MemoryNonceStore) Lookup(_ context.Context, nonce string) (NonceState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(nonce)
	if !ok {
		return NonceAbsent, nil
	}
	return e.state, nil
}

func (m *MemoryNonceStore) MarkUsed(_ context.Context, nonce string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(nonce)
	if !ok || e.state != NonceActive {
		return false, nil
	}
	e.state = NonceUsed
	m.entries[nonce] = e
	return true, nil
}

// Forget drops a nonce, simulating a flushed or misconfigured store.
func (m *MemoryNonceStore) Forget(nonce string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, nonce)
}
