// Package client implements RPC clients for stores and lock managers served by remote nodes.
// It provides implementations of the store.IStore and lockmgr.ILockManager interfaces
// that communicate with remote servers via RPC.
//
// The package focuses on:
//   - Transparent RPC access to store and lock manager implementations
//   - Integration with the transport and serialization layers
//   - Error handling and conversion between RPC and domain errors
//
// Key Components:
//
//   - NewRPCStore: Factory function that creates a client implementing the store.IStore
//     interface. This client forwards all operations to remote servers via the configured
//     transport layer.
//
//   - NewRPCLockMgr: Factory function that creates a client implementing the
//     lockmgr.ILockManager interface for distributed locking operations.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  Endpoints:              []string{"localhost:5000"},
//	  TimeoutSecond:          5,
//	  RetryCount:             3,
//	  ConnectionsPerEndpoint: 1,
//	}
//	ser := serializer.NewBinarySerializer()
//
//	results, _ := client.NewRPCStore(1, config, tcp.NewTCPClientTransport(), ser)
//	locks, _ := client.NewRPCLockMgr(2, config, tcp.NewTCPClientTransport(), ser)
//
//	coord, _ := idempotency.NewCoordinator(results, idempotency.DefaultConfig(),
//	  idempotency.WithLockManager(locks))
//
// Errors:
//
//	Transport failures, timeouts and a done context come back as store errors with
//	code RetCUnavailable. Errors raised by the remote store keep their code.
//	Every round trip is timed in the go-metrics timer "rpc.client.send".
//
// Performance Considerations:
//
//   - For applications that frequently send large payloads, increasing ConnectionsPerEndpoint
//     can improve throughput by allowing parallel requests.
//
//   - For small messages, a single connection per endpoint is often more efficient due to
//     reduced connection overhead.
//
//   - The choice of serializer significantly affects performance. The binary serializer
//     provides the best performance and smallest payload size.
//
// Thread Safety:
//
//	All client implementations are thread-safe and can be used concurrently from
//	multiple goroutines without additional synchronization.
package client
