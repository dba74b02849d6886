// Package lockmgr implements TTL-bounded mutual exclusion on any store.IStore.
//
// The lock manager only ever stores in the provided IStore and has no other internal
// state. Therefore it is safe to create it multiple times on the same store; as long as
// the same store is used, all locks work as expected.
//
// Implementation Approach:
//
//   - Acquisition: SetEIfUnset with a random 256 bit owner ID as value. The store reports
//     whether this call created the key, which makes the acquisition a single atomic step.
//     Acquisition never waits; retry policy belongs to the caller.
//
//   - Expiration: every lock carries a ttl so a crashed holder cannot block a key forever.
//     An expired lock counts as absent and can be acquired by the next caller.
//
//   - Release: reads the lock value and deletes it only if it still holds the caller's owner
//     ID. Releasing a missing lock succeeds, so release is idempotent. The read and the delete
//     are two store calls; a lock that expires and is re-acquired exactly between them can
//     be deleted by its previous owner. The owner check is a safety net against late
//     releases after an expired lease, not a fencing token.
//
// Thread Safety:
//
//	The lock manager is as thread-safe as the underlying store.IStore implementation.
//
// Example:
//
//	lm := lockmgr.NewLockManager(s)
//	ok, owner, err := lm.AcquireLock(ctx, "orders/42", 30*time.Second)
//	if err != nil || !ok {
//		return
//	}
//	defer lm.ReleaseLock(ctx, "orders/42", owner)
package lockmgr
