// Package db provides a standardized interface for key-value database engines.
//
// Key Components:
//
//   - KVDB Interface: the contract every engine satisfies. Basic operations (Set, Get,
//     Has, Delete), time-bounded writes (SetE) and the atomic create-if-absent
//     primitive (SetEIfUnset) that locks and idempotency records are built on.
//
//   - Feature Flags: engines advertise supported operations through SupportsFeature so
//     stores can reject unsupported calls instead of panicking.
//
//   - DatabaseInfo: key count, estimated size and implementation type of an engine.
//
// Note on Time:
//   - The engine never reads the wall clock for correctness decisions. Each call carries
//     the caller's notion of "now" in unix nanoseconds; TTLs are durations in nanoseconds.
//   - Get and Has never report an entry whose ttl has passed, even if the entry is still
//     physically present pending background removal.
//   - SetEIfUnset treats an expired entry as absent, so an expired lock can be taken over.
//
// Related Packages:
//
// The engines/maple package (github.com/ValentinKolb/idemkv/lib/db/engines/maple) provides
// the in-memory implementation used by all stores. The testing package provides a
// conformance suite every engine must pass.
package db
