package rstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/idemkv/lib/db"
	"github.com/ValentinKolb/idemkv/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/redis/go-redis/v9"
)

var log = logger.GetLogger("store")

// deleteIfEquals removes KEYS[1] only while it holds ARGV[1]. Returns 0 if another value is stored.
var deleteIfEquals = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if not current then
	return 1
end
if current == ARGV[1] then
	redis.call("DEL", KEYS[1])
	return 1
end
return 0
`)

var _ store.ICompareAndDelete = (*storeImpl)(nil)

type storeImpl struct {
	client redis.UniversalClient
	owned  bool
}

// NewRedisStore creates a store on an existing redis client.
// The caller keeps ownership of the client; Close on the store does not close it.
func NewRedisStore(client redis.UniversalClient) store.IStore {
	return &storeImpl{client: client}
}

// Connect opens a redis client for addr, verifies it with a PING and returns a store
// that closes the client on Close.
func Connect(ctx context.Context, addr, password string, database int) (store.IStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       database,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, store.Unavailable("connect "+addr, err)
	}
	log.Infof("connected to redis at %s (db %d)", addr, database)
	return &storeImpl{client: client, owned: true}, nil
}

// convertError maps redis errors to store errors.
// Errors sent by the server become RetCInternalError, everything else (network, timeouts,
// closed pool, cancelled context) means the store was not reachable.
func convertError(op string, err error) error {
	if err == nil {
		return nil
	}
	var serverErr redis.Error
	if errors.As(err, &serverErr) {
		return store.NewError(store.RetCInternalError, fmt.Sprintf("%s: %v", op, err))
	}
	return store.Unavailable(op, err)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(ctx context.Context, key string, value []byte) error {
	return convertError("set", s.client.Set(ctx, key, value, 0).Err())
}

func (s *storeImpl) SetE(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return convertError("setE", s.client.Set(ctx, key, value, ttl).Err())
}

func (s *storeImpl) SetEIfUnset(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	stored, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, convertError("setEIfUnset", err)
	}
	return stored, nil
}

func (s *storeImpl) Delete(ctx context.Context, key string) error {
	return convertError("delete", s.client.Del(ctx, key).Err())
}

// DeleteIfEquals runs the compare and the delete as one lua script on the server.
func (s *storeImpl) DeleteIfEquals(ctx context.Context, key string, value []byte) (bool, error) {
	n, err := deleteIfEquals.Run(ctx, s.client, []string{key}, value).Int()
	if err != nil {
		return false, convertError("deleteIfEquals", err)
	}
	return n == 1, nil
}

func (s *storeImpl) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, convertError("get", err)
	}
	return value, true, nil
}

func (s *storeImpl) Has(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, convertError("has", err)
	}
	return n > 0, nil
}

func (s *storeImpl) GetDBInfo(ctx context.Context) (db.DatabaseInfo, error) {
	n, err := s.client.DBSize(ctx).Result()
	if err != nil {
		return db.DatabaseInfo{}, convertError("info", err)
	}
	return db.DatabaseInfo{
		Keys:   int(n),
		DbType: db.ImplRedis,
		SupportedFeatures: []db.Feature{
			db.FeatureSet, db.FeatureSetE, db.FeatureSetEIfUnset,
			db.FeatureGet, db.FeatureDelete, db.FeatureHas,
		},
	}, nil
}

func (s *storeImpl) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}
