package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock taken with DistributedLocker.Lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes mutations of one session across replicas that
// share a session store. session.Manager falls back to in-process locks when
// none is configured.
type DistributedLocker interface {
	// Lock blocks until key is held or ctx is done. The lock expires after ttl
	// when its holder dies without unlocking.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
