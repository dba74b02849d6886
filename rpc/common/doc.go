// Package common holds the types both ends of the rpc layer agree on.
//
//   - Message and MessageType: the single request/response envelope. Factory functions
//     build the request and response for each store and lock operation. Error responses
//     carry the store.RetCode so the client can rebuild a *store.Error; Unavailable in
//     particular must survive the round trip, the coordinator fails closed on it.
//   - ServerConfig: shard layout, endpoint and raft settings of a server, checked with
//     validator/v10 and convertible into dragonboat configs.
//   - ClientConfig: endpoints, timeout, retries and connection count of a client.
//   - logging: a dragonboat logger factory with a uniform line format. InitLoggers sets
//     the level of every project logger and keeps raft output at warning or above.
package common
