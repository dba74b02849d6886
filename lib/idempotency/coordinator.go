package idempotency

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ValentinKolb/idemkv/lib/db/util"
	"github.com/ValentinKolb/idemkv/lib/fingerprint"
	"github.com/ValentinKolb/idemkv/lib/lockmgr"
	"github.com/ValentinKolb/idemkv/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	log    = logger.GetLogger("idempotency")
	tracer = otel.Tracer("github.com/ValentinKolb/idemkv/lib/idempotency")
)

// MaxTokenLength is the longest accepted idempotency token in bytes.
const MaxTokenLength = 255

// releaseTimeout bounds the lock release and the record write, which run detached from
// the caller's context so a disconnecting client cannot lose an executed outcome.
const releaseTimeout = 5 * time.Second

// Request identifies one coordinated call.
type Request struct {
	Tenant string
	Token  string // empty disables idempotency for the call
	Method string // HTTP method; read-only methods bypass coordination, empty counts as mutating
	Body   []byte // payload the fingerprint is computed from
}

// Operation is the effectful work guarded by the coordinator.
type Operation func(ctx context.Context) (*Response, error)

// ErrorMapper turns an operation error into the response that is recorded and replayed.
type ErrorMapper func(err error) (status int, body []byte)

// ICoordinator runs operations at most once per (tenant, token).
type ICoordinator interface {
	// Execute runs op unless an outcome for the token is already recorded, in which case that
	// outcome is replayed. See the package documentation for the full state machine.
	Execute(ctx context.Context, req Request, op Operation) (*Response, error)
}

// Option configures a coordinator.
type Option func(*coordinator)

// WithClock replaces the wall clock, used for lease bookkeeping and record timestamps.
func WithClock(clock util.Clock) Option {
	return func(c *coordinator) { c.clock = clock }
}

// WithErrorMapper sets how operation errors are turned into recorded responses.
func WithErrorMapper(m ErrorMapper) Option {
	return func(c *coordinator) { c.errorMapper = m }
}

// WithLockManager replaces the lock manager built on the store.
func WithLockManager(mgr lockmgr.ILockManager) Option {
	return func(c *coordinator) { c.lockMgr = mgr }
}

type coordinator struct {
	cfg         Config
	cache       *ResultCache
	locks       *Locks
	lockMgr     lockmgr.ILockManager
	clock       util.Clock
	errorMapper ErrorMapper
}

// NewCoordinator creates a coordinator on the given store.
func NewCoordinator(s store.IStore, cfg Config, opts ...Option) (ICoordinator, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &coordinator{
		cfg:         cfg,
		cache:       NewResultCache(s, cfg.KeyPrefix),
		clock:       util.SystemClock,
		errorMapper: DefaultErrorMapper,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.lockMgr == nil {
		c.lockMgr = lockmgr.NewLockManager(s)
	}
	c.locks = NewLocks(c.lockMgr, cfg.KeyPrefix, c.clock)
	return c, nil
}

// DefaultErrorMapper records operation errors as 500 with a JSON error body.
func DefaultErrorMapper(err error) (int, []byte) {
	body, _ := json.Marshal(map[string]string{"error": err.Error()})
	return http.StatusInternalServerError, body
}

// IsMutating reports whether requests with this method are coordinated.
func IsMutating(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	default:
		return true
	}
}

// --------------------------------------------------------------------------
// State machine
// --------------------------------------------------------------------------

func (c *coordinator) Execute(ctx context.Context, req Request, op Operation) (resp *Response, err error) {
	token := strings.TrimSpace(req.Token)
	if token == "" || !IsMutating(req.Method) {
		observeOutcome(outcomePassthrough)
		return op(ctx)
	}
	if len(token) > MaxTokenLength {
		observeOutcome(outcomeInvalid)
		return nil, &Error{Kind: KindInvalidToken, Msg: "token longer than 255 bytes"}
	}

	ctx, span := tracer.Start(ctx, "idempotency.Execute", trace.WithAttributes(
		attribute.String("idempotency.tenant", req.Tenant),
	))
	var outcome string
	defer func() {
		observeOutcome(outcome)
		span.SetAttributes(attribute.String("idempotency.outcome", outcome))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	fp := fingerprint.Of(req.Body)

	// START -> CACHE_HIT | CACHE_MISS
	rec, found, err := c.cache.Lookup(ctx, req.Tenant, token)
	if err != nil {
		outcome = outcomeStoreUnavailable
		return nil, c.storeUnavailable(token, "lookup", err)
	}
	if found {
		return c.replay(token, fp, rec, &outcome)
	}

	// CACHE_MISS -> LOCK_ACQUIRED | LOCK_DENIED
	handle, acquired, err := c.locks.TryAcquire(ctx, req.Tenant, token, c.cfg.LockTTL)
	if err != nil {
		outcome = outcomeStoreUnavailable
		return nil, c.storeUnavailable(token, "acquire lock", err)
	}
	if !acquired {
		return c.wait(ctx, req.Tenant, token, fp, &outcome)
	}

	return c.executeLocked(ctx, token, fp, handle, op, &outcome)
}

// executeLocked runs the operation while holding the lock and records its outcome.
// The lock is released on every path, including panics in op.
func (c *coordinator) executeLocked(ctx context.Context, token, fp string, handle *LockHandle, op Operation, outcome *string) (*Response, error) {
	detached := context.WithoutCancel(ctx)
	defer c.release(detached, handle)

	// a request with the same token may have stored its outcome and released the lock
	// between our lookup and our acquisition
	rec, found, err := c.cache.Lookup(ctx, handle.Tenant, token)
	if err != nil {
		*outcome = outcomeStoreUnavailable
		return nil, c.storeUnavailable(token, "lookup", err)
	}
	if found {
		return c.replay(token, fp, rec, outcome)
	}

	// LOCK_ACQUIRED -> EXECUTING
	execCtx, cancel := context.WithTimeout(ctx, c.cfg.ExecutionTimeout)
	defer cancel()
	start := time.Now()
	resp, opErr := op(execCtx)
	executionDuration.UpdateDuration(start)

	if handle.Expired(c.clock.Now()) {
		leaseOverruns.Inc()
		log.Warningf("execution for token %q outlived its lock (ttl %s), a concurrent request may have executed it again",
			token, handle.TTL)
	}

	if opErr != nil {
		*outcome = outcomeFailed
		failure := &Error{Kind: KindOperationFailed, Token: token, Err: opErr}

		// the caller is gone or asked for a retry: leave the token open
		if isNoCache(opErr) || ctx.Err() != nil {
			log.Debugf("not recording failure for token %q: %v", token, opErr)
			return nil, failure
		}

		status, body := c.errorMapper(opErr)
		resp = &Response{
			Status:  status,
			Headers: Headers{{Name: "Content-Type", Value: "application/json"}},
			Body:    body,
		}
		rec := newRecord(fp, resp, c.clock.Now(), c.cfg.ResultTTL)
		rec.Failed = true
		rec.Error = opErr.Error()
		c.store(detached, handle, rec)
		return resp, failure
	}

	if resp == nil {
		resp = &Response{Status: http.StatusNoContent}
	}

	// EXECUTING -> STORED
	*outcome = outcomeExecuted
	c.store(detached, handle, newRecord(fp, resp, c.clock.Now(), c.cfg.ResultTTL))
	return resp, nil
}

// wait polls the cache while another request holds the lock. It never executes.
func (c *coordinator) wait(ctx context.Context, tenant, token, fp string, outcome *string) (*Response, error) {
	timer := time.NewTimer(c.cfg.PollInterval)
	defer timer.Stop()

	for attempt := 1; attempt <= c.cfg.MaxWaitAttempts; attempt++ {
		if attempt > 1 {
			timer.Reset(c.cfg.PollInterval)
		}
		select {
		case <-ctx.Done():
			*outcome = outcomeWaitExhausted
			return nil, &Error{Kind: KindLockUnavailable, Token: token, Err: ctx.Err()}
		case <-timer.C:
		}
		if err := ctx.Err(); err != nil {
			*outcome = outcomeWaitExhausted
			return nil, &Error{Kind: KindLockUnavailable, Token: token, Err: err}
		}
		waitPolls.Inc()

		rec, found, err := c.cache.Lookup(ctx, tenant, token)
		if err != nil {
			*outcome = outcomeStoreUnavailable
			return nil, c.storeUnavailable(token, "lookup", err)
		}
		if found {
			return c.replay(token, fp, rec, outcome)
		}
	}

	*outcome = outcomeWaitExhausted
	log.Debugf("token %q still in progress after %d polls", token, c.cfg.MaxWaitAttempts)
	return nil, &Error{Kind: KindLockUnavailable, Token: token, Msg: "request with this token is still in progress"}
}

// replay answers from a stored record.
func (c *coordinator) replay(token, fp string, rec *Record, outcome *string) (*Response, error) {
	if rec.Fingerprint != fp {
		if c.cfg.Strict {
			*outcome = outcomeConflict
			return nil, &Error{Kind: KindTokenConflict, Token: token, Msg: "token reused with a different payload"}
		}
		log.Warningf("token %q reused with a different payload, replaying the first outcome (lenient mode)", token)
	}

	*outcome = outcomeReplayed
	resp := rec.Response()
	if rec.Failed {
		return resp, &Error{Kind: KindOperationFailed, Token: token, Msg: rec.Error}
	}
	return resp, nil
}

func (c *coordinator) store(ctx context.Context, handle *LockHandle, rec *Record) {
	ctx, cancel := context.WithTimeout(ctx, releaseTimeout)
	defer cancel()

	if err := c.cache.Store(ctx, handle.Tenant, handle.Token, rec, c.cfg.ResultTTL); err != nil {
		log.Errorf("failed to record outcome for token %q, a retry will execute again: %v", handle.Token, err)
	}
}

func (c *coordinator) release(ctx context.Context, handle *LockHandle) {
	ctx, cancel := context.WithTimeout(ctx, releaseTimeout)
	defer cancel()

	if err := c.locks.Release(ctx, handle); err != nil {
		log.Errorf("failed to release lock for token %q, it expires after %s: %v", handle.Token, handle.TTL, err)
	}
}

func (c *coordinator) storeUnavailable(token, op string, err error) error {
	if store.IsUnavailable(err) {
		log.Errorf("store unavailable during %s for token %q: %v", op, token, err)
	} else {
		// a store that answers with garbage cannot be trusted either
		log.Errorf("store error during %s for token %q, failing closed: %v", op, token, err)
	}
	return &Error{Kind: KindStoreUnavailable, Token: token, Msg: op + " failed", Err: err}
}
