// Package rstore implements store.IStore on Redis using github.com/redis/go-redis/v9.
//
// SetEIfUnset maps to SET NX PX, which Redis executes atomically, so a single Redis
// primary provides the total order on create-if-absent the lock manager needs.
// TTLs are enforced by Redis with its own clock.
//
// Network failures, timeouts and cancelled contexts are reported with code RetCUnavailable;
// errors replied by the server with RetCInternalError.
package rstore
