package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ValentinKolb/idemkv/lib/db"
	"github.com/ValentinKolb/idemkv/lib/store"
	"github.com/ValentinKolb/idemkv/rpc/common"
	"github.com/ValentinKolb/idemkv/rpc/serializer"
	"github.com/ValentinKolb/idemkv/rpc/transport/tcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *RPCServer {
	t.Helper()
	cfg := common.ServerConfig{
		Shards: []common.ServerShard{
			{ShardID: 1, Type: common.ShardTypeLocalIStore},
			{ShardID: 2, Type: common.ShardTypeLocalILockManager},
		},
		Endpoint:      "127.0.0.1:0",
		TimeoutSecond: 1,
		LogLevel:      "warn",
	}
	s := NewRPCServer(cfg, tcp.NewTCPServerTransport(), serializer.NewJSONSerializer())
	require.NoError(t, s.init())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// call runs one request through the server's transport handler
func call(t *testing.T, s *RPCServer, shard uint64, req *common.Message) *common.Message {
	t.Helper()
	data, err := s.serializer.Serialize(*req)
	require.NoError(t, err)

	var resp common.Message
	require.NoError(t, s.serializer.Deserialize(s.handle(shard, data), &resp))
	return &resp
}

func TestStoreShard(t *testing.T) {
	s := newTestServer(t)

	resp := call(t, s, 1, common.NewSetEIfUnsetRequest("k", []byte("v1"), time.Minute))
	require.Empty(t, resp.Err)
	assert.True(t, resp.Ok)

	resp = call(t, s, 1, common.NewSetEIfUnsetRequest("k", []byte("v2"), time.Minute))
	require.Empty(t, resp.Err)
	assert.False(t, resp.Ok, "second SetEIfUnset must not store")

	resp = call(t, s, 1, common.NewGetRequest("k"))
	assert.True(t, resp.Ok)
	assert.Equal(t, "v1", string(resp.Value))

	resp = call(t, s, 1, common.NewDeleteRequest("k"))
	require.Empty(t, resp.Err)
	resp = call(t, s, 1, common.NewHasRequest("k"))
	assert.False(t, resp.Ok)

	resp = call(t, s, 1, common.NewDBInfoRequest())
	require.Empty(t, resp.Err)
	var info db.DatabaseInfo
	require.NoError(t, json.Unmarshal(resp.Value, &info))
	assert.Equal(t, db.ImplMaple, info.DbType)
}

func TestLockShard(t *testing.T) {
	s := newTestServer(t)

	resp := call(t, s, 2, common.NewAcquireRequest("l", time.Minute))
	require.Empty(t, resp.Err)
	require.True(t, resp.Ok)
	owner := resp.Value

	resp = call(t, s, 2, common.NewAcquireRequest("l", time.Minute))
	assert.False(t, resp.Ok)

	resp = call(t, s, 2, common.NewReleaseRequest("l", owner))
	assert.True(t, resp.Ok)
}

func TestHandleErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name  string
		shard uint64
		req   *common.Message
	}{
		{"unknown shard", 99, common.NewGetRequest("k")},
		{"lock message on store shard", 1, common.NewAcquireRequest("k", time.Second)},
		{"kv message on lock shard", 2, common.NewGetRequest("k")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := call(t, s, tt.shard, tt.req)
			assert.Equal(t, common.MsgTError, resp.MsgType)
			assert.Equal(t, uint8(store.RetCInvalidOperation), resp.Code)
			assert.NotEmpty(t, resp.Err)
		})
	}

	t.Run("garbage request", func(t *testing.T) {
		var resp common.Message
		require.NoError(t, s.serializer.Deserialize(s.handle(1, []byte("not json")), &resp))
		assert.Equal(t, common.MsgTError, resp.MsgType)
	})
}

func TestInitRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		shards []common.ServerShard
	}{
		{"no shards", nil},
		{"duplicate shard", []common.ServerShard{
			{ShardID: 1, Type: common.ShardTypeLocalIStore},
			{ShardID: 1, Type: common.ShardTypeLocalILockManager},
		}},
		{"remote shard without raft settings", []common.ServerShard{
			{ShardID: 1, Type: common.ShardTypeRemoteIStore},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := common.ServerConfig{
				Shards:        tt.shards,
				Endpoint:      "127.0.0.1:0",
				TimeoutSecond: 1,
				LogLevel:      "warn",
			}
			s := NewRPCServer(cfg, tcp.NewTCPServerTransport(), serializer.NewBinarySerializer())
			assert.Error(t, s.init())
		})
	}
}
