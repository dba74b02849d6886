package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/idemkv/lib/store"
	"github.com/ValentinKolb/idemkv/rpc/common"
)

// NewIStoreServerAdapter creates an adapter serving the kv messages against s
func NewIStoreServerAdapter(s store.IStore) IRPCServerAdapter {
	return &iStoreServerAdapterImpl{store: s}
}

type iStoreServerAdapterImpl struct {
	store store.IStore
}

func (adapter *iStoreServerAdapterImpl) Handle(ctx context.Context, req *common.Message) *common.Message {
	s := adapter.store
	if s == nil {
		return common.NewErrorResponse(store.RetCInternalError, "handler: store is nil")
	}

	switch req.MsgType {
	case common.MsgTKVSet:
		return common.NewSetResponse(s.Set(ctx, req.Key, req.Value))
	case common.MsgTKVSetE:
		return common.NewSetEResponse(s.SetE(ctx, req.Key, req.Value, req.TTLDuration()))
	case common.MsgTKVSetEIfUnset:
		stored, err := s.SetEIfUnset(ctx, req.Key, req.Value, req.TTLDuration())
		return common.NewSetEIfUnsetResponse(stored, err)
	case common.MsgTKVDelete:
		return common.NewDeleteResponse(s.Delete(ctx, req.Key))
	case common.MsgTKVGet:
		val, ok, err := s.Get(ctx, req.Key)
		return common.NewGetResponse(val, ok, err)
	case common.MsgTKVHas:
		ok, err := s.Has(ctx, req.Key)
		return common.NewHasResponse(ok, err)
	case common.MsgTKVDBInfo:
		info, err := s.GetDBInfo(ctx)
		if err != nil {
			return common.NewDBInfoResponse(nil, err)
		}
		data, err := json.Marshal(info)
		return common.NewDBInfoResponse(data, err)
	default:
		return common.NewErrorResponse(store.RetCInvalidOperation,
			fmt.Sprintf("store adapter: unsupported message type %s", req.MsgType))
	}
}
