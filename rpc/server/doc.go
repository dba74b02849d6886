// Package server hosts store and lock manager shards for remote coordinators.
//
// A server owns a set of shards, each identified by a numeric id. Incoming requests are
// decoded, routed to the shard they address and answered by an adapter:
//
//   - NewIStoreServerAdapter maps kv messages onto a store.IStore.
//   - NewLockManagerServerAdapter maps acquire and release onto a lockmgr.ILockManager.
//
// A message a shard does not understand (a lock request sent to a store shard, say) is
// answered with RetCInvalidOperation. Requests for unknown shards get the same answer.
//
// Shard types:
//
//	local store            lstore in this process
//	remote store           dstore, replicated with raft across ClusterMembers
//	local lock manager     lockmgr on an lstore
//	remote lock manager    lockmgr on a dstore
//
// The remote types need the raft settings of ServerConfig (RTTMillisecond, DataDir,
// ReplicaID, ClusterMembers, ...); Serve refuses to start without them.
//
// Example:
//
//	s := server.NewRPCServer(common.ServerConfig{
//		Shards: []common.ServerShard{
//			{ShardID: 100, Type: common.ShardTypeLocalIStore},
//			{ShardID: 200, Type: common.ShardTypeLocalILockManager},
//		},
//		Endpoint:      "0.0.0.0:8080",
//		TimeoutSecond: 5,
//		LogLevel:      "info",
//	}, tcp.NewTCPServerTransport(), serializer.NewBinarySerializer())
//	go s.Serve()
//	defer s.Close()
//
// Each request is handled with a context bounded by ServerConfig.Timeout. Serve must be
// called at most once.
package server
