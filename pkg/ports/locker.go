package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock obtained from a DistributedLocker.
// It only releases the lock while the caller still owns it.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes snapshot writes for one document across
// processes sharing a backend.
type DistributedLocker interface {
	// Lock blocks until the lock on key is held or ctx is done. The lock
	// expires after ttl if the holder never unlocks.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
