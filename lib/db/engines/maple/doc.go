// Package maple implements the in-memory db.KVDB engine used by every store in this module.
//
// Key Components:
//
//   - mapleImpl: the engine. Keys are spread over a fixed number of shards, each backed by
//     an xsync.MapOf. Conditional writes (SetEIfUnset) run inside MapOf.Compute so the
//     liveness check and the write are one atomic step per key.
//
//   - Entry: a value plus its absolute expiration time in unix nanoseconds. Visibility is
//     decided with the time passed by the caller, never with the engine's own clock.
//
//   - Garbage collector: a background goroutine that scans the shards every GCInterval and
//     removes entries that are expired according to DBOptions.Now. It only reclaims memory.
//
//   - Persistence: Save and Load use a versioned binary format (magic "MAPLEDB").
//     Snapshots are fuzzy with respect to concurrent writes; the raft state machine only
//     calls Save on a consistent view.
//
// Usage:
//
//	engine := maple.NewMapleDB(nil)
//	defer engine.Close()
//	now := time.Now().UnixNano()
//	engine.SetEIfUnset("lock/a", []byte("owner"), now, int64(30*time.Second))
package maple
