package client

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/idemkv/lib/db"
	"github.com/ValentinKolb/idemkv/lib/db/util"
	"github.com/ValentinKolb/idemkv/lib/idempotency"
	"github.com/ValentinKolb/idemkv/lib/store"
	"github.com/ValentinKolb/idemkv/lib/store/lstore"
	"github.com/ValentinKolb/idemkv/lib/store/storetest"
	"github.com/ValentinKolb/idemkv/rpc/common"
	"github.com/ValentinKolb/idemkv/rpc/serializer"
	"github.com/ValentinKolb/idemkv/rpc/server"
	"github.com/ValentinKolb/idemkv/rpc/transport"
	rpchttp "github.com/ValentinKolb/idemkv/rpc/transport/http"
	"github.com/ValentinKolb/idemkv/rpc/transport/tcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	storeShard = 1
	lockShard  = 2
)

type transportPair struct {
	name   string
	server func() transport.IRPCServerTransport
	client func() transport.IRPCClientTransport
}

var transports = []transportPair{
	{"TCP", tcp.NewTCPServerTransport, tcp.NewTCPClientTransport},
	{"HTTP", func() transport.IRPCServerTransport { return rpchttp.NewHttpServerTransport() }, rpchttp.NewHttpClientTransport},
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

// startServer serves a local store and a local lock manager shard and returns the endpoint
func startServer(t *testing.T, tp transportPair, clock util.Clock) (string, *server.RPCServer) {
	t.Helper()
	addr := freeAddr(t)
	cfg := common.ServerConfig{
		Shards: []common.ServerShard{
			{ShardID: storeShard, Type: common.ShardTypeLocalIStore},
			{ShardID: lockShard, Type: common.ShardTypeLocalILockManager},
		},
		Endpoint:      addr,
		TimeoutSecond: 2,
		LogLevel:      "warn",
	}
	srv := server.NewRPCServer(cfg, tp.server(), serializer.NewBinarySerializer(),
		server.WithLocalStoreOptions(lstore.WithClock(clock)))
	go func() { _ = srv.Serve() }()
	t.Cleanup(func() { _ = srv.Close() })

	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 5*time.Second, 10*time.Millisecond)
	return addr, srv
}

func clientConfig(addr string) common.ClientConfig {
	return common.ClientConfig{
		Endpoints:     []string{addr},
		TimeoutSecond: 2,
		RetryCount:    1,
	}
}

func newStore(t *testing.T, tp transportPair, addr string) store.IStore {
	t.Helper()
	s, err := NewRPCStore(storeShard, clientConfig(addr), tp.client(), serializer.NewBinarySerializer())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newLockMgr(t *testing.T, tp transportPair, addr string) IRPCLockManager {
	t.Helper()
	l, err := NewRPCLockMgr(lockShard, clientConfig(addr), tp.client(), serializer.NewBinarySerializer())
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRPCStoreConformance(t *testing.T) {
	for _, tp := range transports {
		storetest.RunStoreTests(t, tp.name, func(t *testing.T) (store.IStore, func(time.Duration)) {
			clock := util.NewManualClock(time.Time{})
			addr, _ := startServer(t, tp, clock)
			return newStore(t, tp, addr), clock.Advance
		})
	}
}

func TestRPCStoreDBInfo(t *testing.T) {
	for _, tp := range transports {
		t.Run(tp.name, func(t *testing.T) {
			addr, _ := startServer(t, tp, util.SystemClock)
			s := newStore(t, tp, addr)
			ctx := context.Background()

			require.NoError(t, s.Set(ctx, "a", []byte("1")))
			require.NoError(t, s.Set(ctx, "b", []byte("2")))

			info, err := s.GetDBInfo(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, info.Keys)
			assert.Equal(t, db.ImplMaple, info.DbType)
		})
	}
}

func TestRPCLockManager(t *testing.T) {
	for _, tp := range transports {
		t.Run(tp.name, func(t *testing.T) {
			clock := util.NewManualClock(time.Time{})
			addr, _ := startServer(t, tp, clock)
			locks := newLockMgr(t, tp, addr)
			ctx := context.Background()

			ok, owner, err := locks.AcquireLock(ctx, "job", 10*time.Second)
			require.NoError(t, err)
			require.True(t, ok)
			require.NotEmpty(t, owner)

			ok, _, err = locks.AcquireLock(ctx, "job", 10*time.Second)
			require.NoError(t, err)
			assert.False(t, ok, "lock is held")

			released, err := locks.ReleaseLock(ctx, "job", []byte("someone else"))
			require.NoError(t, err)
			assert.False(t, released)

			released, err = locks.ReleaseLock(ctx, "job", owner)
			require.NoError(t, err)
			assert.True(t, released)

			// an expired lease can be taken over
			ok, _, err = locks.AcquireLock(ctx, "job", time.Second)
			require.NoError(t, err)
			require.True(t, ok)
			clock.Advance(2 * time.Second)
			ok, _, err = locks.AcquireLock(ctx, "job", time.Second)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestLockMessageOnStoreShard(t *testing.T) {
	tp := transports[0]
	addr, _ := startServer(t, tp, util.SystemClock)

	// a lock client pointed at the store shard is rejected by the adapter
	l, err := NewRPCLockMgr(storeShard, clientConfig(addr), tp.client(), serializer.NewBinarySerializer())
	require.NoError(t, err)
	defer l.Close()

	_, _, err = l.AcquireLock(context.Background(), "x", time.Second)
	require.Error(t, err)
	var se *store.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, store.RetCInvalidOperation, se.Code)
	assert.False(t, store.IsUnavailable(err))
}

func TestCancelledContextIsUnavailable(t *testing.T) {
	tp := transports[0]
	addr, _ := startServer(t, tp, util.SystemClock)
	s := newStore(t, tp, addr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.SetEIfUnset(ctx, "k", []byte("v"), time.Second)
	require.Error(t, err)
	assert.True(t, store.IsUnavailable(err))
}

func TestStoppedServerIsUnavailable(t *testing.T) {
	tp := transports[1]
	addr, srv := startServer(t, tp, util.SystemClock)
	s := newStore(t, tp, addr)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v")))
	require.NoError(t, srv.Close())

	_, _, err := s.Get(ctx, "k")
	require.Error(t, err)
	assert.True(t, store.IsUnavailable(err))
}

func TestInvalidClientConfig(t *testing.T) {
	_, err := NewRPCStore(storeShard, common.ClientConfig{TimeoutSecond: 1}, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
	assert.Error(t, err)
}

// TestCoordinatorOverRPC runs concurrent retries of one request against a coordinator
// whose results and locks both live on a remote node.
func TestCoordinatorOverRPC(t *testing.T) {
	for _, tp := range transports {
		t.Run(tp.name, func(t *testing.T) {
			addr, _ := startServer(t, tp, util.SystemClock)
			s := newStore(t, tp, addr)
			locks := newLockMgr(t, tp, addr)

			cfg := idempotency.DefaultConfig()
			cfg.PollInterval = 5 * time.Millisecond
			cfg.MaxWaitAttempts = 400
			coord, err := idempotency.NewCoordinator(s, cfg, idempotency.WithLockManager(locks))
			require.NoError(t, err)

			var calls atomic.Int32
			op := func(ctx context.Context) (*idempotency.Response, error) {
				calls.Add(1)
				time.Sleep(20 * time.Millisecond)
				return &idempotency.Response{Status: 201, Body: []byte(`{"id":"p-1"}`)}, nil
			}
			req := idempotency.Request{Tenant: "t1", Token: "tok-1", Method: "POST", Body: []byte(`{"sku":"A"}`)}

			const n = 8
			var wg sync.WaitGroup
			results := make([]*idempotency.Response, n)
			errs := make([]error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i], errs[i] = coord.Execute(context.Background(), req, op)
				}(i)
			}
			wg.Wait()

			assert.Equal(t, int32(1), calls.Load())
			for i := 0; i < n; i++ {
				require.NoError(t, errs[i])
				assert.Equal(t, 201, results[i].Status)
				assert.Equal(t, `{"id":"p-1"}`, string(results[i].Body))
			}
		})
	}
}
