// Package testing provides the conformance suite and benchmarks every db.KVDB engine must pass.
//
// The suite checks the properties the lock manager and the idempotency coordinator depend on:
// ttl visibility at the caller's time, copy semantics, exactly one winner for concurrent
// SetEIfUnset calls on the same key, and lossless Save/Load.
//
// Example usage:
//
//	factory := func() db.KVDB {
//		return NewMyDatabase()
//	}
//
//	dbtesting.RunKVDBTests(t, "MyDatabase", factory)
//	dbtesting.RunKVDBBenchmarks(b, "MyDatabase", factory)
package testing
