// Package rpc lets coordinators on many hosts share one result cache and one lock
// namespace. A node serves stores and lock managers as numbered shards, and
// coordinators reach them through clients that implement the same interfaces as
// the in-process implementations.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Message protocol, configuration structures, and logging.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, HTTP).
//
//   - serializer: Message serialization with two format options (Binary, JSON)
//     for converting between Message objects and byte arrays.
//
//   - client: RPC client implementations for the store and lock manager interfaces.
//     Errors that mean the node could not be asked are reported as
//     store.RetCUnavailable so the coordinator fails closed.
//
//   - server: RPC server components that handle incoming requests, including
//     adapters for store and lock manager operations.
package rpc
