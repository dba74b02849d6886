// Package cmd implements the command-line interface of idemkv. It wires the
// idempotency coordinator, the lock manager and the key-value stores into
// runnable processes and offers client commands for inspecting them.
//
// The package is organized into several subpackages:
//
//   - serve: starts an RPC server hosting store and lock manager shards (local or raft replicated)
//   - api: runs the HTTP product API behind the idempotency middleware
//   - kv: key-value operations against a running store shard
//   - lock: acquire and release locks on a lock manager shard
//   - probe: fires concurrent duplicate requests at the API and reports the outcome
//   - util: shared flag, config and transport helpers (internal use)
//
// Configuration is read from flags, from IDEMKV_* environment variables and from
// .env / .env.local files in the working directory, in that order of precedence.
//
// See idemkv -help for a list of all commands.
package cmd
