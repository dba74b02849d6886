package client

import (
	"context"
	"time"

	"github.com/ValentinKolb/idemkv/lib/lockmgr"
	"github.com/ValentinKolb/idemkv/rpc/common"
	"github.com/ValentinKolb/idemkv/rpc/serializer"
	"github.com/ValentinKolb/idemkv/rpc/transport"
)

// IRPCLockManager is a lock manager backed by a remote shard. Close releases the transport.
type IRPCLockManager interface {
	lockmgr.ILockManager
	Close() error
}

// NewRPCLockMgr creates a lockmgr.ILockManager served by a remote node.
// The transport is connected before returning.
func NewRPCLockMgr(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (IRPCLockManager, error) {
	adapter, err := newAdapter(shardId, config, transport, serializer)
	if err != nil {
		return nil, err
	}
	return &rpcLockMgr{adapter}, nil
}

type rpcLockMgr struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the lockmgr package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcLockMgr) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, []byte, error) {
	resp, err := i.invoke(ctx, common.NewAcquireRequest(key, ttl))
	if err != nil {
		return false, nil, err
	}
	return resp.Ok, resp.Value, nil
}

func (i *rpcLockMgr) ReleaseLock(ctx context.Context, key string, ownerID []byte) (bool, error) {
	resp, err := i.invoke(ctx, common.NewReleaseRequest(key, ownerID))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}
