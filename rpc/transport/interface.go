package transport

import (
	"context"

	"github.com/ValentinKolb/idemkv/rpc/common"
)

// ServerHandleFunc answers one request addressed to shardId. It must always return a
// response payload, failures are encoded in the payload itself.
type ServerHandleFunc func(shardId uint64, req []byte) (resp []byte)

// IRPCServerTransport receives requests and hands them to the registered handler.
type IRPCServerTransport interface {
	// RegisterHandler sets the handler. It must be called before Listen.
	RegisterHandler(handler ServerHandleFunc)
	// Listen serves config.Endpoint and blocks until Close is called, then returns nil.
	Listen(config common.ServerConfig) error
	// Close stops accepting requests.
	Close() error
}

// IRPCClientTransport sends requests to one of the configured endpoints.
type IRPCClientTransport interface {
	// Connect prepares the transport. It must be called once before Send.
	Connect(config common.ClientConfig) error
	// Send delivers req to shardId and waits for the response. It returns an error when
	// no endpoint answered after all retries or when ctx is done.
	Send(ctx context.Context, shardId uint64, req []byte) (resp []byte, err error)
	// Close releases all connections.
	Close() error
}
