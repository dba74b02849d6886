package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ValentinKolb/idemkv/lib/db"
	"github.com/ValentinKolb/idemkv/lib/store"
	"github.com/ValentinKolb/idemkv/rpc/common"
	"github.com/ValentinKolb/idemkv/rpc/serializer"
	"github.com/ValentinKolb/idemkv/rpc/transport"
)

// NewRPCStore creates a store.IStore that forwards every operation to the shard
// served by a remote node. The transport is connected before returning.
func NewRPCStore(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (store.IStore, error) {
	adapter, err := newAdapter(shardId, config, transport, serializer)
	if err != nil {
		return nil, err
	}
	return &rpcStore{adapter}, nil
}

type rpcStore struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := i.invoke(ctx, common.NewSetRequest(key, value))
	return err
}

func (i *rpcStore) SetE(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := i.invoke(ctx, common.NewSetERequest(key, value, ttl))
	return err
}

func (i *rpcStore) SetEIfUnset(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	resp, err := i.invoke(ctx, common.NewSetEIfUnsetRequest(key, value, ttl))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (i *rpcStore) Delete(ctx context.Context, key string) error {
	_, err := i.invoke(ctx, common.NewDeleteRequest(key))
	return err
}

func (i *rpcStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	resp, err := i.invoke(ctx, common.NewGetRequest(key))
	if err != nil {
		return nil, false, err
	}
	return resp.Value, resp.Ok, nil
}

func (i *rpcStore) Has(ctx context.Context, key string) (bool, error) {
	resp, err := i.invoke(ctx, common.NewHasRequest(key))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (i *rpcStore) GetDBInfo(ctx context.Context) (db.DatabaseInfo, error) {
	resp, err := i.invoke(ctx, common.NewDBInfoRequest())
	if err != nil {
		return db.DatabaseInfo{}, err
	}
	var info db.DatabaseInfo
	if err := json.Unmarshal(resp.Value, &info); err != nil {
		return db.DatabaseInfo{}, store.NewError(store.RetCInternalError, fmt.Sprintf("rpc: decode db info: %v", err))
	}
	return info, nil
}
