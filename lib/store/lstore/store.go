package lstore

import (
	"context"
	"github.com/ValentinKolb/idemkv/lib/db"
	"github.com/ValentinKolb/idemkv/lib/db/util"
	"github.com/ValentinKolb/idemkv/lib/store"
	"time"
)

type storeImpl struct {
	db    db.KVDB
	clock util.Clock
}

// Option configures a local store.
type Option func(*storeImpl)

// WithClock replaces the wall clock used for ttl decisions. Tests use a util.ManualClock.
func WithClock(clock util.Clock) Option {
	return func(s *storeImpl) {
		s.clock = clock
	}
}

// NewLocalStore creates a new local store instance.
// This store implementation is not distributed and only works on a single node.
// This works by using the maple engine from the db package directly.
func NewLocalStore(factory store.DBFactory, opts ...Option) store.IStore {
	s := &storeImpl{
		db:    factory(),
		clock: util.SystemClock,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *storeImpl) now() int64 {
	return s.clock.Now().UnixNano()
}

// check fails fast when the caller already gave up or the engine lacks the feature
func (s *storeImpl) check(ctx context.Context, feature db.Feature) error {
	if err := ctx.Err(); err != nil {
		return store.Unavailable(feature.String(), err)
	}
	if !s.db.SupportsFeature(feature) {
		return store.NewError(store.RetCUnsupportedOperation, feature.String()+" operation is not supported")
	}
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(ctx context.Context, key string, value []byte) error {
	if err := s.check(ctx, db.FeatureSet); err != nil {
		return err
	}
	s.db.Set(key, value, s.now())
	return nil
}

func (s *storeImpl) SetE(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.check(ctx, db.FeatureSetE); err != nil {
		return err
	}
	s.db.SetE(key, value, s.now(), int64(ttl))
	return nil
}

func (s *storeImpl) SetEIfUnset(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := s.check(ctx, db.FeatureSetEIfUnset); err != nil {
		return false, err
	}
	return s.db.SetEIfUnset(key, value, s.now(), int64(ttl)), nil
}

func (s *storeImpl) Delete(ctx context.Context, key string) error {
	if err := s.check(ctx, db.FeatureDelete); err != nil {
		return err
	}
	s.db.Delete(key, s.now())
	return nil
}

func (s *storeImpl) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.check(ctx, db.FeatureGet); err != nil {
		return nil, false, err
	}
	val, ok := s.db.Get(key, s.now())
	return val, ok, nil
}

func (s *storeImpl) Has(ctx context.Context, key string) (bool, error) {
	if err := s.check(ctx, db.FeatureHas); err != nil {
		return false, err
	}
	return s.db.Has(key, s.now()), nil
}

func (s *storeImpl) GetDBInfo(_ context.Context) (db.DatabaseInfo, error) {
	return s.db.GetInfo(), nil
}

func (s *storeImpl) Close() error {
	return s.db.Close()
}
