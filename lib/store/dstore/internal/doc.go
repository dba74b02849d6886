// Package internal contains the messages exchanged between the dstore client and its
// raft state machine.
//
// Writes are Commands. They are encoded with Command.Serialize, appended to the raft log
// and applied on every replica:
//
//	type      1 byte  (Set, SetE, SetIfUnset, Delete)
//	now       8 bytes proposer clock, unix nanos
//	ttl       8 bytes nanoseconds, 0 = no expiry
//	key len   4 bytes
//	key       key len bytes
//	value     rest of the entry, absent for Delete
//
// The proposer's clock travels with the command. Replicas replaying the log later make the
// same expiry decisions as the leader did, which keeps the state machines identical.
// SetIfUnset answers ResultStored or ResultRejected in the result data.
//
// Reads are Queries. They never enter the log and are passed to the state machine as Go
// values, so they have no wire format. Their Now is simply the reader's clock.
package internal
