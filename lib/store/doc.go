// Package store provides the shared key-value store abstraction the lock manager and the
// idempotency coordinator are built on.
//
// Key Components:
//
//   - IStore Interface: context-aware key-value operations with wall clock TTLs. The
//     operation the rest of the module depends on is SetEIfUnset, an atomic
//     create-if-absent with TTL that reports whether the caller won.
//
//   - Error System: *Error carries a RetCode. RetCUnavailable marks errors where the store
//     could not be reached or did not answer in time; IsUnavailable lets callers fail closed
//     on those without string matching.
//
//   - DBFactory: abstracts the creation of the db.KVDB engine used by local and replicated
//     stores.
//
// Implementations:
//
//   - lstore: single-node store directly on a db.KVDB engine with an injectable clock.
//   - rstore: Redis store (SET NX PX) for deployments that already run Redis.
//   - dstore: replicated store on the Dragonboat raft library; every write is totally
//     ordered by the raft log.
//   - rpc/client: remote store that talks to an idemkv server over tcp or http.
//
// The storetest package holds a conformance suite shared by the implementations.
package store
