package client

import (
	"context"
	"fmt"
	"time"

	"github.com/ValentinKolb/idemkv/lib/store"
	"github.com/ValentinKolb/idemkv/rpc/common"
	"github.com/ValentinKolb/idemkv/rpc/serializer"
	"github.com/ValentinKolb/idemkv/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	gometrics "github.com/rcrowley/go-metrics"
)

var (
	Logger = logger.GetLogger("rpc")

	// sendTimer tracks the round trip of every rpc request
	sendTimer = gometrics.GetOrRegisterTimer("rpc.client.send", gometrics.DefaultRegistry)
	// sendErrors counts requests that never got an answer
	sendErrors = gometrics.GetOrRegisterCounter("rpc.client.errors", gometrics.DefaultRegistry)
)

// rpcClientAdapter is a struct that stores all data needed for an implementation if an RPC client
// Used by the RPCStore and RPCLockMgr with composition pattern
type rpcClientAdapter struct {
	shardId    uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// newAdapter validates the config and connects the transport
func newAdapter(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (rpcClientAdapter, error) {
	if err := config.Validate(); err != nil {
		return rpcClientAdapter{}, err
	}
	if err := transport.Connect(config); err != nil {
		return rpcClientAdapter{}, err
	}
	return rpcClientAdapter{
		shardId:    shardId,
		config:     config,
		transport:  transport,
		serializer: serializer,
	}, nil
}

// invoke sends req and returns the decoded response.
// Transport failures and a done context are reported as store.RetCUnavailable,
// errors raised on the server keep the code they were sent with.
func (a *rpcClientAdapter) invoke(ctx context.Context, req *common.Message) (*common.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.Unavailable(req.MsgType.String(), err)
	}

	reqBytes, err := a.serializer.Serialize(*req)
	if err != nil {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("rpc: serialize %s: %v", req.MsgType, err))
	}

	start := time.Now()
	respBytes, err := a.transport.Send(ctx, a.shardId, reqBytes)
	sendTimer.UpdateSince(start)
	if err != nil {
		sendErrors.Inc(1)
		Logger.Debugf("rpc %s on shard %d failed: %v", req.MsgType, a.shardId, err)
		return nil, store.Unavailable("rpc "+req.MsgType.String(), err)
	}

	resp := &common.Message{}
	if err := a.serializer.Deserialize(respBytes, resp); err != nil {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("rpc: deserialize %s response: %v", req.MsgType, err))
	}

	if resp.MsgType == common.MsgTError || resp.Err != "" {
		if err := resp.Error(); err != nil {
			return nil, err
		}
		return nil, store.NewError(store.RetCInternalError, "rpc: error response without message")
	}

	if resp.MsgType != req.MsgType {
		return nil, store.NewError(store.RetCInternalError,
			fmt.Sprintf("rpc: unexpected message type %s, expected %s", resp.MsgType, req.MsgType))
	}

	return resp, nil
}

// Close closes the underlying transport
func (a *rpcClientAdapter) Close() error {
	return a.transport.Close()
}
