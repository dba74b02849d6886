// Package dstore implements a replicated store.IStore on the Dragonboat RAFT library.
// It is the backend to use when several coordinator processes must share one lock and
// result namespace and no single node may be a point of failure.
//
// Architecture:
//
//   - Store Client (store.go): serializes writes into internal.Command values, proposes them
//     with SyncPropose and reads with SyncRead (linearizable) or StaleRead (GetDBInfo only).
//
//   - State Machine (statemachine.go): a Dragonboat IConcurrentStateMachine that applies
//     committed commands to a db.KVDB engine and answers queries.
//
//   - Wire format (internal): compact binary commands that carry the proposer's clock.
//
// Time and TTL:
//
//	The engine decides expiry with the time carried in each command, not with the clock of
//	the replica applying it. Replicas that replay the log later therefore make the same
//	decisions as the leader did. SetEIfUnset returns the winner through the raft result, and
//	because every write goes through the single raft log, concurrent SetEIfUnset calls on one
//	key are totally ordered: exactly one caller observes stored=true.
//
//	Clock skew between proposers shifts ttls by the skew. Lock ttls are in the order of
//	seconds to minutes, so NTP-level skew is irrelevant.
//
// Errors:
//
//	ErrSystemBusy is retried with a short backoff. Timeouts, missing leaders and closed node
//	hosts are reported as store.RetCUnavailable so callers fail closed.
//
// Usage:
//
//	nh, err := dragonboat.NewNodeHost(nodeHostConfig)
//	dbFactory := func() db.KVDB { return maple.NewMapleDB(nil) }
//	err = nh.StartConcurrentReplica(members, false, dstore.CreateStateMachineFactory(dbFactory), shardConfig)
//	s := dstore.NewDistributedStore(nh, shardID, 5*time.Second)
//
// Deploy with an odd number of nodes; writes need a majority.
package dstore
