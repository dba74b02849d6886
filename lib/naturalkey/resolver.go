package naturalkey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("naturalkey")

// FetchFunc loads the entity with the natural key of a tenant.
// It returns an error when the entity does not exist (yet).
type FetchFunc[E any] func(ctx context.Context, tenant, naturalKey string) (E, error)

// CreateFunc persists a new entity.
type CreateFunc[E any] func(ctx context.Context) (E, error)

// Option configures a Resolver.
type Option func(*options)

type options struct {
	constraint string
	attempts   int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// WithConstraint restricts Postgres conflict detection to one unique constraint.
func WithConstraint(name string) Option {
	return func(o *options) { o.constraint = name }
}

// WithFetchRetries configures the re-fetch after a conflict: up to attempts fetches, waiting
// base, 2*base, ... up to max between them.
func WithFetchRetries(attempts int, base, max time.Duration) Option {
	return func(o *options) {
		o.attempts = attempts
		o.baseDelay = base
		o.maxDelay = max
	}
}

// Resolver creates entities or returns the one already holding the natural key.
type Resolver[E any] struct {
	fetch FetchFunc[E]
	opts  options
}

// NewResolver creates a resolver that uses fetch to load the winner of a conflict.
func NewResolver[E any](fetch FetchFunc[E], opts ...Option) *Resolver[E] {
	o := options{
		attempts:  5,
		baseDelay: 10 * time.Millisecond,
		maxDelay:  200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.attempts < 1 {
		o.attempts = 1
	}
	return &Resolver[E]{fetch: fetch, opts: o}
}

// ResolveOrCreate runs create. If it fails with a uniqueness violation the existing entity of
// the tenant is fetched and returned with existing=true. Other errors are returned unchanged.
func (r *Resolver[E]) ResolveOrCreate(ctx context.Context, tenant, naturalKey string, create CreateFunc[E]) (entity E, existing bool, err error) {
	entity, err = create(ctx)
	if err == nil {
		return entity, false, nil
	}
	if !IsUniqueViolation(err, r.opts.constraint) {
		var zero E
		return zero, false, err
	}

	log.Debugf("natural key %q of tenant %q already exists, fetching it", naturalKey, tenant)
	entity, err = r.fetchExisting(ctx, tenant, naturalKey)
	if err != nil {
		var zero E
		return zero, false, err
	}
	return entity, true, nil
}

// fetchExisting retries while the winner's transaction is not visible yet.
func (r *Resolver[E]) fetchExisting(ctx context.Context, tenant, naturalKey string) (E, error) {
	var zero E
	var lastErr error
	delay := r.opts.baseDelay

	for attempt := 1; attempt <= r.opts.attempts; attempt++ {
		entity, err := r.fetch(ctx, tenant, naturalKey)
		if err == nil {
			return entity, nil
		}
		lastErr = err
		if attempt == r.opts.attempts {
			break
		}

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("%w: %w", ErrTransient, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
		if delay > r.opts.maxDelay {
			delay = r.opts.maxDelay
		}
	}

	log.Warningf("natural key %q of tenant %q conflicts but could not be fetched after %d attempts: %v",
		naturalKey, tenant, r.opts.attempts, lastErr)
	if errors.Is(lastErr, ErrTransient) {
		return zero, lastErr
	}
	return zero, fmt.Errorf("%w: %w", ErrTransient, lastErr)
}
