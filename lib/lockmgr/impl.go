package lockmgr

import (
	"bytes"
	"context"
	"github.com/ValentinKolb/idemkv/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"time"
)

var log = logger.GetLogger("lockmgr")

type lockMgrImpl struct {
	store store.IStore
}

// NewLockManager creates a lock manager on top of the given store.
func NewLockManager(store store.IStore) ILockManager {
	return &lockMgrImpl{
		store: store,
	}
}

func (lm *lockMgrImpl) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, []byte, error) {
	ownerID, err := generateOwnerID()
	if err != nil {
		return false, nil, err
	}

	// SetEIfUnset is atomic in every store, the returned flag names the single winner
	stored, err := lm.store.SetEIfUnset(ctx, key, ownerID, ttl)
	if err != nil {
		return false, nil, err
	}
	if !stored {
		return false, nil, nil
	}
	return true, ownerID, nil
}

func (lm *lockMgrImpl) ReleaseLock(ctx context.Context, key string, ownerID []byte) (bool, error) {
	if cad, ok := lm.store.(store.ICompareAndDelete); ok {
		released, err := cad.DeleteIfEquals(ctx, key, ownerID)
		if err != nil {
			return false, err
		}
		if !released {
			log.Warningf("not releasing lock %q: held by another owner (own lease expired)", key)
		}
		return released, nil
	}

	value, ok, err := lm.store.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}

	// Get and Delete are two calls here. If our lease expires between them and another owner
	// acquires the key, the Delete removes that owner's lock. The window is bounded by the
	// lock ttl and only stores without DeleteIfEquals have it.
	if !bytes.Equal(ownerID, value) {
		log.Warningf("not releasing lock %q: held by another owner (own lease expired)", key)
		return false, nil
	}

	if err := lm.store.Delete(ctx, key); err != nil {
		return false, err
	}
	return true, nil
}
