package server

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/ValentinKolb/idemkv/lib/db"
	"github.com/ValentinKolb/idemkv/lib/db/engines/maple"
	"github.com/ValentinKolb/idemkv/lib/lockmgr"
	"github.com/ValentinKolb/idemkv/lib/store"
	"github.com/ValentinKolb/idemkv/lib/store/dstore"
	"github.com/ValentinKolb/idemkv/lib/store/lstore"
	"github.com/ValentinKolb/idemkv/rpc/common"
	"github.com/ValentinKolb/idemkv/rpc/serializer"
	"github.com/ValentinKolb/idemkv/rpc/transport"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// serverShard is a shard in the RPC server: the store it encapsulates and the adapter
// that handles requests for it
type serverShard struct {
	Store   store.IStore
	Adapter IRPCServerAdapter
}

// RPCServer serves the configured shards over a transport
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	shards     *xsync.MapOf[uint64, serverShard]
	nodeHost   *dragonboat.NodeHost
	dbFactory  store.DBFactory
	localOpts  []lstore.Option
}

// Option configures an RPCServer
type Option func(*RPCServer)

// WithLocalStoreOptions passes opts to every local store the server creates
func WithLocalStoreOptions(opts ...lstore.Option) Option {
	return func(s *RPCServer) {
		s.localOpts = append(s.localOpts, opts...)
	}
}

// NewRPCServer creates a new RPC server
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		tcp.NewTCPServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
	opts ...Option,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	s := &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		shards:     xsync.NewMapOf[uint64, serverShard](),
		dbFactory:  func() db.KVDB { return maple.NewMapleDB(nil) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve initializes the shards and blocks serving requests until Close is called
func (s *RPCServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}

// Close stops the transport and releases every shard
func (s *RPCServer) Close() error {
	var errs []error
	if err := s.transport.Close(); err != nil {
		errs = append(errs, err)
	}
	s.shards.Range(func(id uint64, shard serverShard) bool {
		if err := shard.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("shard %d: %w", id, err))
		}
		return true
	})
	if s.nodeHost != nil {
		s.nodeHost.Close()
		s.nodeHost = nil
	}
	return errors.Join(errs...)
}

// handle decodes one request, dispatches it to its shard and encodes the answer
func (s *RPCServer) handle(shardId uint64, req []byte) []byte {
	var respMsg *common.Message

	shard, ok := s.shards.Load(shardId)
	if !ok {
		respMsg = common.NewErrorResponse(store.RetCInvalidOperation, fmt.Sprintf("shard %d not found", shardId))
	} else {
		var msg common.Message
		if err := s.serializer.Deserialize(req, &msg); err != nil {
			respMsg = common.NewErrorResponse(store.RetCInvalidOperation, fmt.Sprintf("failed to deserialize request: %s", err))
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout())
			respMsg = shard.Adapter.Handle(ctx, &msg)
			cancel()
		}
	}

	val, err := s.serializer.Serialize(*respMsg)
	if err != nil {
		Logger.Errorf("failed to serialize response: %v", err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(store.RetCInternalError, "failed to serialize response"))
	}
	return val
}

func (s *RPCServer) init() error {
	if err := s.config.Validate(); err != nil {
		return err
	}
	if err := common.InitLoggers(s.config.LogLevel); err != nil {
		return err
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof("%s", s.config.String())

	// The NodeHost is only needed for raft replicated shards
	if s.config.HasRemoteShard() {
		nodeHost, err := dragonboat.NewNodeHost(s.config.ToNodeHostConfig())
		if err != nil {
			return fmt.Errorf("failed to create node host: %w", err)
		}
		s.nodeHost = nodeHost
	}

	// A single server can carry any number of local and remote shards,
	// each one either a plain store or a lock manager on top of a store.
	for _, shardConfig := range s.config.Shards {
		shard, err := s.createShard(shardConfig)
		if err != nil {
			return err
		}
		s.shards.Store(shardConfig.ShardID, shard)
		Logger.Infof("created %s for shard %d", shardConfig.Type, shardConfig.ShardID)
	}

	s.transport.RegisterHandler(s.handle)

	return nil
}

// createShard builds the store of a shard and binds the adapter matching its type
func (s *RPCServer) createShard(shardConfig common.ServerShard) (serverShard, error) {
	var st store.IStore

	switch shardConfig.Type {
	case common.ShardTypeLocalIStore, common.ShardTypeLocalILockManager:
		st = lstore.NewLocalStore(s.dbFactory, s.localOpts...)
	case common.ShardTypeRemoteIStore, common.ShardTypeRemoteILockManager:
		if s.nodeHost == nil {
			return serverShard{}, fmt.Errorf("node host is nil, cannot create remote shard %d", shardConfig.ShardID)
		}
		err := s.nodeHost.StartConcurrentReplica(
			s.config.ClusterMembers,
			false,
			dstore.CreateStateMachineFactory(s.dbFactory),
			s.config.ToDragonboatConfig(shardConfig.ShardID),
		)
		if err != nil {
			return serverShard{}, fmt.Errorf("failed to start shard %d: %w", shardConfig.ShardID, err)
		}
		st = dstore.NewDistributedStore(s.nodeHost, shardConfig.ShardID, s.config.Timeout())
	default:
		return serverShard{}, fmt.Errorf("invalid shard type: %s", shardConfig.Type)
	}

	if shardConfig.Type == common.ShardTypeLocalILockManager || shardConfig.Type == common.ShardTypeRemoteILockManager {
		return serverShard{Store: st, Adapter: NewLockManagerServerAdapter(lockmgr.NewLockManager(st))}, nil
	}
	return serverShard{Store: st, Adapter: NewIStoreServerAdapter(st)}, nil
}
