// Package lock provides short-lived, TTL-bounded mutual exclusion that spans
// processes. Acquisition never blocks: a held key is reported as not acquired.
package lock

import (
	"context"
	"time"
)

// Lease is a held lock. Release only removes the key if this lease still owns it.
type Lease interface {
	Key() string
	Release(ctx context.Context) error
}

// Locker acquires leases with atomic set-if-absent semantics.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, bool, error)
}
