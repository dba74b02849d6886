package dstore

import (
	"fmt"
	"io"
	"time"

	"github.com/ValentinKolb/idemkv/lib/db"
	"github.com/ValentinKolb/idemkv/lib/store"
	"github.com/ValentinKolb/idemkv/lib/store/dstore/internal"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

// slowBatch is the Update duration above which a batch is logged
const slowBatch = time.Millisecond

// KVStateMachine applies raft entries to a KVDB. It is a concurrent state machine: reads
// run alongside updates and snapshots are taken while the engine keeps serving.
type KVStateMachine struct {
	shardID   uint64
	replicaID uint64
	engine    db.KVDB
}

var _ sm.IConcurrentStateMachine = (*KVStateMachine)(nil)

// CreateStateMachineFactory returns the constructor dragonboat calls for every replica. Each
// replica gets a fresh engine from dbFactory.
func CreateStateMachineFactory(dbFactory store.DBFactory) func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
	return func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
		return &KVStateMachine{shardID: shardID, replicaID: replicaID, engine: dbFactory()}
	}
}

func failed(code store.RetCode, format string, args ...any) sm.Result {
	return sm.Result{Value: uint64(code), Data: []byte(fmt.Sprintf(format, args...))}
}

// Lookup answers an internal.Query.
func (fsm *KVStateMachine) Lookup(query interface{}) (interface{}, error) {
	q, ok := query.(internal.Query)
	if !ok {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("lookup: unexpected query %T", query))
	}

	switch q.Type {
	case internal.QueryTGet:
		if err := fsm.require(db.FeatureGet); err != nil {
			return nil, err
		}
		val, found := fsm.engine.Get(q.Key, q.Now)
		return internal.QueryResult{Ok: found, Value: val}, nil
	case internal.QueryTHas:
		if err := fsm.require(db.FeatureHas); err != nil {
			return nil, err
		}
		return fsm.engine.Has(q.Key, q.Now), nil
	case internal.QueryTGetDBInfo:
		return fsm.engine.GetInfo(), nil
	}
	return nil, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("lookup: unknown query %s", q.Type))
}

func (fsm *KVStateMachine) require(feature db.Feature) error {
	if fsm.engine.SupportsFeature(feature) {
		return nil
	}
	return store.NewError(store.RetCUnsupportedOperation, fmt.Sprintf("%s is not supported by the engine", feature))
}

// Update applies a batch of serialized commands. Expiry is decided with the clock each
// command carries, never with the local one.
func (fsm *KVStateMachine) Update(entries []sm.Entry) ([]sm.Entry, error) {
	start := time.Now()
	for i := range entries {
		entries[i].Result = fsm.apply(entries[i].Cmd)
	}
	if took := time.Since(start); took > slowBatch {
		log.Infof("shard %d replica %d: applying %d entries took %s", fsm.shardID, fsm.replicaID, len(entries), took)
	}
	return entries, nil
}

func (fsm *KVStateMachine) apply(data []byte) sm.Result {
	if len(data) == 0 {
		return failed(store.RetCInvalidOperation, "empty command")
	}

	var cmd internal.Command
	if err := cmd.Deserialize(data); err != nil {
		return failed(store.RetCInternalError, "decode command: %v", err)
	}
	feature, err := cmd.Type.ToDBFeature()
	if err != nil {
		return failed(store.RetCInvalidOperation, "%v", err)
	}
	if !fsm.engine.SupportsFeature(feature) {
		return failed(store.RetCUnsupportedOperation, "%s is not supported by the engine", cmd.Type)
	}

	ok := sm.Result{Value: uint64(store.RetCSuccess)}
	switch cmd.Type {
	case internal.CommandTSet:
		fsm.engine.Set(cmd.Key, cmd.Value, cmd.Now)
	case internal.CommandTSetE:
		fsm.engine.SetE(cmd.Key, cmd.Value, cmd.Now, cmd.TTL)
	case internal.CommandTSetIfUnset:
		ok.Data = internal.ResultRejected
		if fsm.engine.SetEIfUnset(cmd.Key, cmd.Value, cmd.Now, cmd.TTL) {
			ok.Data = internal.ResultStored
		}
	case internal.CommandTDelete:
		fsm.engine.Delete(cmd.Key, cmd.Now)
	}
	return ok
}

// PrepareSnapshot has nothing to capture, the engine snapshots itself while serving.
func (fsm *KVStateMachine) PrepareSnapshot() (interface{}, error) {
	return nil, nil
}

func (fsm *KVStateMachine) SaveSnapshot(_ interface{}, w io.Writer, _ sm.ISnapshotFileCollection, _ <-chan struct{}) error {
	if err := fsm.require(db.FeatureSave); err != nil {
		return err
	}
	return fsm.engine.Save(w)
}

func (fsm *KVStateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, _ <-chan struct{}) error {
	if err := fsm.require(db.FeatureLoad); err != nil {
		return err
	}
	return fsm.engine.Load(r)
}

func (fsm *KVStateMachine) Close() error {
	return fsm.engine.Close()
}
