// Package lstore implements a local, in-memory, single-node store.IStore on top of any
// db.KVDB engine. Data is not persisted between process restarts.
//
// The store reads the time from a util.Clock (the wall clock by default) and hands it to
// the engine with every call, so tests can move time with a util.ManualClock instead of
// sleeping:
//
//	clock := util.NewManualClock(time.Time{})
//	s := lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) }, lstore.WithClock(clock))
//	ok, err := s.SetEIfUnset(ctx, "lock/a", owner, time.Minute)
//	clock.Advance(time.Minute) // the lock is now expired
//
// Before every operation the store checks the caller's context and the engine's feature
// flags; a done context yields a RetCUnavailable error, a missing feature
// RetCUnsupportedOperation.
//
// The local store is the default backend of `idemkv api --store memory` and of every test
// in this module. For multiple processes use the rpc client, rstore or dstore.
package lstore
