// Package base implements the stream transport shared by the tcp client and server.
// Protocol specific code lives behind two small connector interfaces; everything else
// (framing, request multiplexing, retries, worker limits) is handled here.
//
// Framing:
//
//	Every request and response is one frame: shard id, request id, payload length and
//	the payload. The client tags each request with a fresh request id and matches the
//	response frame by that id, so many requests share one connection and responses may
//	arrive out of order.
//
// Client:
//
//   - ClientConfig.ConnectionsPerEndpoint connections are opened per endpoint and used
//     round robin.
//   - A connection whose reader fails hands every waiting request an error and then
//     reconnects in the background with exponential backoff.
//   - Send retries on another connection (up to ClientConfig.RetryCount) and stops as
//     soon as its context is done. Callers never block past their deadline.
//
// Server:
//
//   - One goroutine reads frames per connection. Requests are handled concurrently up to
//     a per connection worker limit; writes back are serialized per connection.
//   - Read buffers come from a sync.Pool.
//
// All exported functions are safe for concurrent use.
package base
