package server

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/idemkv/lib/lockmgr"
	"github.com/ValentinKolb/idemkv/lib/store"
	"github.com/ValentinKolb/idemkv/rpc/common"
)

// NewLockManagerServerAdapter creates an adapter serving the lock messages against locks
func NewLockManagerServerAdapter(locks lockmgr.ILockManager) IRPCServerAdapter {
	return &lockMgrServerAdapter{locks: locks}
}

type lockMgrServerAdapter struct {
	locks lockmgr.ILockManager
}

func (adapter *lockMgrServerAdapter) Handle(ctx context.Context, req *common.Message) *common.Message {
	if adapter.locks == nil {
		return common.NewErrorResponse(store.RetCInternalError, "handler: lock manager is nil")
	}

	switch req.MsgType {
	case common.MsgTLCKAcquire:
		ok, ownerID, err := adapter.locks.AcquireLock(ctx, req.Key, req.TTLDuration())
		return common.NewAcquireResponse(ok, ownerID, err)
	case common.MsgTLCKRelease:
		ok, err := adapter.locks.ReleaseLock(ctx, req.Key, req.Value)
		return common.NewReleaseResponse(ok, err)
	default:
		return common.NewErrorResponse(store.RetCInvalidOperation,
			fmt.Sprintf("lock manager adapter: unsupported message type %s", req.MsgType))
	}
}
