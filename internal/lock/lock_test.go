package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLocker(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client), mr
}

func lockers(t *testing.T) map[string]Locker {
	r, _ := newRedisLocker(t)
	return map[string]Locker{"redis": r, "memory": NewMemory()}
}

func TestAcquireIsExclusiveUntilRelease(t *testing.T) {
	ctx := context.Background()
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			lease, ok, err := l.Acquire(ctx, "attendance_lock:s:u", 5*time.Second)
			require.NoError(t, err)
			require.True(t, ok)

			_, ok, err = l.Acquire(ctx, "attendance_lock:s:u", 5*time.Second)
			require.NoError(t, err)
			assert.False(t, ok, "second acquire must fail fast")

			require.NoError(t, lease.Release(ctx))

			again, ok, err := l.Acquire(ctx, "attendance_lock:s:u", 5*time.Second)
			require.NoError(t, err)
			assert.True(t, ok)
			require.NoError(t, again.Release(ctx))
		})
	}
}

func TestConcurrentAcquireHasOneWinner(t *testing.T) {
	ctx := context.Background()
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			var wins int32
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, ok, err := l.Acquire(ctx, "qr_token:claim:n", time.Minute)
					if err == nil && ok {
						atomic.AddInt32(&wins, 1)
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), wins)
		})
	}
}

func TestRedisLeaseExpiresAndStaleReleaseKeepsNewOwner(t *testing.T) {
	ctx := context.Background()
	l, mr := newRedisLocker(t)

	stale, ok, err := l.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	fresh, ok, err := l.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok, "expired lease must not block")

	require.NoError(t, stale.Release(ctx))
	assert.True(t, mr.Exists("k"), "stale release must not delete the new owner's key")

	require.NoError(t, fresh.Release(ctx))
	assert.False(t, mr.Exists("k"))
}

func TestMemoryLeaseExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	m := NewMemory().WithClock(func() time.Time { return now })

	_, ok, err := m.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, m.Held("k"))

	now = now.Add(2 * time.Second)
	assert.False(t, m.Held("k"))
	_, ok, err = m.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}
