package idempotency

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/idemkv/lib/db"
	"github.com/ValentinKolb/idemkv/lib/db/engines/maple"
	"github.com/ValentinKolb/idemkv/lib/db/util"
	"github.com/ValentinKolb/idemkv/lib/store"
	"github.com/ValentinKolb/idemkv/lib/store/lstore"
	"github.com/stretchr/testify/require"
)

// faultyStore wraps a store and fails selected operations with RetCUnavailable.
type faultyStore struct {
	store.IStore
	failGet         atomic.Bool
	failSetE        atomic.Bool
	failSetEIfUnset atomic.Bool
}

var errInjected = errors.New("injected outage")

func (f *faultyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if f.failGet.Load() {
		return nil, false, store.Unavailable("get", errInjected)
	}
	return f.IStore.Get(ctx, key)
}

func (f *faultyStore) SetE(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if f.failSetE.Load() {
		return store.Unavailable("setE", errInjected)
	}
	return f.IStore.SetE(ctx, key, value, ttl)
}

func (f *faultyStore) SetEIfUnset(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if f.failSetEIfUnset.Load() {
		return false, store.Unavailable("setEIfUnset", errInjected)
	}
	return f.IStore.SetEIfUnset(ctx, key, value, ttl)
}

type testEnv struct {
	store *faultyStore
	clock *util.ManualClock
	coord ICoordinator
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.LockTTL = 10 * time.Second
	cfg.ResultTTL = time.Hour
	cfg.PollInterval = 2 * time.Millisecond
	cfg.MaxWaitAttempts = 1000
	return cfg
}

func newTestEnv(t *testing.T, cfg Config, opts ...Option) *testEnv {
	t.Helper()
	clock := util.NewManualClock(time.Time{})
	inner := lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) }, lstore.WithClock(clock))
	t.Cleanup(func() { _ = inner.Close() })

	fs := &faultyStore{IStore: inner}
	coord, err := NewCoordinator(fs, cfg, append([]Option{WithClock(clock)}, opts...)...)
	require.NoError(t, err)
	return &testEnv{store: fs, clock: clock, coord: coord}
}

// countingOp returns an operation answering with body and a pointer to its call counter.
func countingOp(status int, body string) (Operation, *atomic.Int32) {
	var calls atomic.Int32
	return func(ctx context.Context) (*Response, error) {
		calls.Add(1)
		return &Response{
			Status:  status,
			Headers: Headers{{Name: "Content-Type", Value: "application/json"}},
			Body:    []byte(body),
		}, nil
	}, &calls
}

func post(tenant, token, body string) Request {
	return Request{Tenant: tenant, Token: token, Method: "POST", Body: []byte(body)}
}
