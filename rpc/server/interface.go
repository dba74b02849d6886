package server

import (
	"context"

	"github.com/ValentinKolb/idemkv/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters.
// An adapter is bound to the store or lock manager of one shard and
// translates requests into calls on it.
type IRPCServerAdapter interface {
	// Handle handles a request and returns a response.
	// If an error occurs, it is set in the response.
	Handle(ctx context.Context, req *common.Message) (resp *common.Message)
}
