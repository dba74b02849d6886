// Package tcp implements TCP socket-based transport for the RPC system that serves
// stores and lock managers to remote coordinators. It provides concrete implementations
// of the base package's connector interfaces.
//
// This package builds on the base package's transport functionality, inheriting its
// connection pooling, buffer reuse, and request routing. See the base package
// documentation for details on the frame format.
//
// Key Components:
//
//   - clientConnector: TCP-specific implementation of base.IClientConnector
//
//   - serverConnector: TCP-specific implementation of base.IServerConnector,
//     disables Nagle's algorithm and enables keep-alive on accepted connections
//
// The default server buffer size is 512 KB.
package tcp
