// Package http implements an HTTP-based transport layer for RPC communication
// between coordinators and the nodes serving stores and lock managers. It provides
// concrete implementations of the transport interfaces defined in the parent package.
//
// Key Components:
//
//   - httpClientTransport: Implements IRPCClientTransport. Requests are spread
//     round-robin across the endpoints and retried on the next endpoint on failure.
//     Each attempt honors the caller's context.
//
//   - Server: Implements IRPCServerTransport on a chi router. Requests are routed to
//     the handler by the shard id in the URL path (POST /{shardId}). Handler exposes
//     the router for mounting or testing.
//
// Thread Safety:
//
//	The client transport is safe for concurrent use. It uses an atomic counter
//	for the round-robin selection.
package http
