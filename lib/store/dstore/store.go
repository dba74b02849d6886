package dstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/idemkv/lib/db"
	"github.com/ValentinKolb/idemkv/lib/db/util"
	"github.com/ValentinKolb/idemkv/lib/store"
	"github.com/ValentinKolb/idemkv/lib/store/dstore/internal"
	"github.com/lni/dragonboat/v4/logger"
	"time"

	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
)

var (
	retries = 5
	log     = logger.GetLogger("store")
)

// storeImpl encapsulates a Dragonboat NodeHost which is used to communicate with the state machine.
type storeImpl struct {
	nh      *dragonboat.NodeHost
	shardID uint64
	cs      *client.Session
	timeout time.Duration
	clock   util.Clock
}

// NewDistributedStore creates a new distributed store instance which uses raft consensus to ensure strict linearizability
// across multiple nodes. timeout bounds each single propose or read attempt; the caller's context bounds the whole call.
func NewDistributedStore(nh *dragonboat.NodeHost, shardID uint64, timeout time.Duration) store.IStore {
	return &storeImpl{
		nh:      nh,
		shardID: shardID,
		cs:      nh.GetNoOPSession(shardID),
		timeout: timeout,
		clock:   util.SystemClock,
	}
}

// convertError maps dragonboat errors to store errors. Timeouts, a closed node host and
// shards without a leader mean the store is not reachable right now.
func convertError(op string, err error) error {
	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		return storeErr
	}
	return store.Unavailable(op, err)
}

// backoff waits before the next retry, giving up early if the context is done
func (s *storeImpl) backoff(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.timeout / 10):
		return nil
	}
}

// --------------------------------------------------------------------------
// Internal write and read operations (used by interface methods)
// --------------------------------------------------------------------------

// write serializes a Command and sends it via SyncPropose.
// It returns the raft result data on success.
func (s *storeImpl) write(ctx context.Context, cmd internal.Command) ([]byte, error) {
	cmd.Now = s.clock.Now().UnixNano()
	data := cmd.Serialize()

	for i := 0; i < retries; i++ {
		attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
		res, err := s.nh.SyncPropose(attemptCtx, s.cs, data)
		cancel()

		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncPropose: System busy, retrying (%d/%d)...", i+1, retries)
			if err := s.backoff(ctx); err != nil {
				return nil, store.Unavailable(cmd.Type.String(), err)
			}
			continue
		}

		if err != nil {
			return nil, convertError(cmd.Type.String(), err)
		}
		if res.Value != uint64(store.RetCSuccess) {
			return nil, store.NewError(store.RetCode(res.Value), string(res.Data))
		}
		return res.Data, nil
	}
	return nil, store.NewError(store.RetCUnavailable, cmd.Type.String()+": system busy")
}

// read is a generic helper function that queries the statemachine
// and attempts to convert the response into the expected type R.
//
// This function uses SyncRead by default. If linearizability is not required,
// stale can be set to true to use the faster StaleRead.
func read[R any](ctx context.Context, s *storeImpl, q internal.Query, stale bool) (R, error) {
	var zero R
	q.Now = s.clock.Now().UnixNano()

	for i := 0; i < retries; i++ {
		var (
			res interface{}
			err error
		)

		if stale {
			res, err = s.nh.StaleRead(s.shardID, q)
		} else {
			attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
			res, err = s.nh.SyncRead(attemptCtx, s.shardID, q)
			cancel()
		}

		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncRead: System busy, retrying (%d/%d)...", i+1, retries)
			if err := s.backoff(ctx); err != nil {
				return zero, store.Unavailable(q.Type.String(), err)
			}
			continue
		}

		if err != nil {
			return zero, convertError(q.Type.String(), err)
		}

		casted, ok := res.(R)
		if !ok {
			return zero, store.NewError(store.RetCInternalError,
				fmt.Sprintf("unexpected type: received %T, expected %T", res, zero))
		}
		return casted, nil
	}
	return zero, store.NewError(store.RetCUnavailable, q.Type.String()+": system busy")
}

// --------------------------------------------------------------------------
// Interface Methods (docs see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.write(ctx, internal.Command{
		Type:  internal.CommandTSet,
		Key:   key,
		Value: value,
	})
	return err
}

func (s *storeImpl) SetE(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.write(ctx, internal.Command{
		Type:  internal.CommandTSetE,
		Key:   key,
		Value: value,
		TTL:   int64(ttl),
	})
	return err
}

func (s *storeImpl) SetEIfUnset(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	data, err := s.write(ctx, internal.Command{
		Type:  internal.CommandTSetIfUnset,
		Key:   key,
		Value: value,
		TTL:   int64(ttl),
	})
	if err != nil {
		return false, err
	}
	return bytes.Equal(data, internal.ResultStored), nil
}

func (s *storeImpl) Delete(ctx context.Context, key string) error {
	_, err := s.write(ctx, internal.Command{
		Type: internal.CommandTDelete,
		Key:  key,
	})
	return err
}

func (s *storeImpl) Get(ctx context.Context, key string) ([]byte, bool, error) {
	res, err := read[internal.QueryResult](ctx, s, internal.Query{
		Type: internal.QueryTGet,
		Key:  key,
	}, false)
	if err != nil {
		return nil, false, err
	}
	return res.Value, res.Ok, nil
}

func (s *storeImpl) Has(ctx context.Context, key string) (bool, error) {
	return read[bool](ctx, s, internal.Query{
		Type: internal.QueryTHas,
		Key:  key,
	}, false)
}

func (s *storeImpl) GetDBInfo(ctx context.Context) (db.DatabaseInfo, error) {
	return read[db.DatabaseInfo](ctx, s, internal.Query{
		Type: internal.QueryTGetDBInfo,
	}, true) // Note: allow for stale reads
}

// Close is a no-op, the node host is owned by whoever started it.
func (s *storeImpl) Close() error {
	return nil
}
