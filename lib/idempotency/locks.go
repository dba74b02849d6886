package idempotency

import (
	"context"
	"time"

	"github.com/ValentinKolb/idemkv/lib/db/util"
	"github.com/ValentinKolb/idemkv/lib/lockmgr"
)

// LockHandle proves ownership of the execution lock for one token.
type LockHandle struct {
	Tenant     string
	Token      string
	OwnerID    []byte
	AcquiredAt time.Time
	TTL        time.Duration
}

// Expired reports whether the lease ran out at now; another request may hold the lock then.
func (h *LockHandle) Expired(now time.Time) bool {
	return !now.Before(h.AcquiredAt.Add(h.TTL))
}

// Locks hands out per-token execution locks.
type Locks struct {
	mgr   lockmgr.ILockManager
	keys  keyspace
	clock util.Clock
}

// NewLocks creates a lock adapter writing under prefix.
func NewLocks(mgr lockmgr.ILockManager, prefix string, clock util.Clock) *Locks {
	return &Locks{mgr: mgr, keys: keyspace{prefix: prefix}, clock: clock}
}

// TryAcquire makes one attempt to take the lock for (tenant, token).
func (l *Locks) TryAcquire(ctx context.Context, tenant, token string, ttl time.Duration) (*LockHandle, bool, error) {
	now := l.clock.Now()
	ok, owner, err := l.mgr.AcquireLock(ctx, l.keys.lock(tenant, token), ttl)
	if err != nil || !ok {
		return nil, false, err
	}
	return &LockHandle{
		Tenant:     tenant,
		Token:      token,
		OwnerID:    owner,
		AcquiredAt: now,
		TTL:        ttl,
	}, true, nil
}

// Release gives the lock back. Releasing twice or after expiry is not an error.
func (l *Locks) Release(ctx context.Context, h *LockHandle) error {
	_, err := l.mgr.ReleaseLock(ctx, l.keys.lock(h.Tenant, h.Token), h.OwnerID)
	return err
}
