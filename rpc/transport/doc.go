// Package transport declares how rpc messages travel between a store client and the
// server hosting the shard. Payloads are opaque bytes here; encoding is the job of the
// serializer package.
//
// Every request is addressed to a shard id. The server transport passes the id and the
// payload to a single ServerHandleFunc, which picks the shard and produces the response.
//
// Implementations live in the subpackages http (request per call, easy to debug) and tcp
// (persistent multiplexed connections, see package base).
package transport
