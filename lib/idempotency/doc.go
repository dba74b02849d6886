// Package idempotency makes effectful operations safe to retry.
//
// A caller attaches a token to a request. The Coordinator guarantees that, within the
// result ttl, the operation behind a (tenant, token) pair is executed at most once and
// every later request with the same token receives the recorded outcome.
//
// State machine of one Execute call:
//
//	START        -> lookup record   -> CACHE_HIT | CACHE_MISS
//	CACHE_HIT    -> fingerprint equal (or lenient mode) -> REPLAY
//	             -> fingerprint differs, strict mode   -> CONFLICT (409)
//	CACHE_MISS   -> try lock        -> LOCK_ACQUIRED | LOCK_DENIED
//	LOCK_ACQUIRED-> re-check cache, execute, store record, release lock
//	LOCK_DENIED  -> poll the cache MaxWaitAttempts times every PollInterval
//	             -> record appears  -> REPLAY
//	             -> budget exhausted -> LOCK_UNAVAILABLE (425)
//
// Any store error before execution fails closed with StoreUnavailable (503); the operation is
// not run. A store error after execution is logged and the response is still returned.
//
// Failed operations are recorded like successful ones and replayed with the same status.
// Wrap an error with NoCache to leave the token open for a retry.
//
// The lock is a lease: if an operation outlives LockTTL another request may acquire the lock
// and execute the operation a second time. Operations run under ExecutionTimeout, which is
// always shorter than LockTTL; overruns are logged and counted in
// idempotency_lease_overruns_total.
//
// Middleware adapts the coordinator to net/http. The ginidem package does the same for gin.
package idempotency
