package lockmgr

import (
	"context"
	"time"
)

// ILockManager defines the interface for a lock provider.
type ILockManager interface {
	// AcquireLock tries once to acquire the lock for the given key. The lock expires after ttl
	// (0 = never, not recommended).
	// Returns whether the lock was acquired, the owner ID needed for release, and an error if the
	// store could not be asked. ok=false with a nil error means someone else holds the lock.
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (ok bool, ownerID []byte, err error)

	// ReleaseLock releases the lock for the given key if it is still held by ownerID.
	// Returns true if the lock is released afterward, also when it did not exist (expired or
	// already released). Returns false if another owner holds the lock; it is left untouched.
	ReleaseLock(ctx context.Context, key string, ownerID []byte) (ok bool, err error)
}
