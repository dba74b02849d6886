package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServerConfigValidate(t *testing.T) {
	base := func() ServerConfig {
		return ServerConfig{
			Shards:        []ServerShard{{ShardID: 100, Type: ShardTypeLocalIStore}, {ShardID: 200, Type: ShardTypeLocalILockManager}},
			TimeoutSecond: 5,
			Endpoint:      "localhost:8080",
			LogLevel:      "info",
		}
	}

	tests := []struct {
		name    string
		modify  func(c *ServerConfig)
		wantErr bool
	}{
		{"local_only", func(c *ServerConfig) {}, false},
		{"no_shards", func(c *ServerConfig) { c.Shards = nil }, true},
		{"duplicate_shard", func(c *ServerConfig) { c.Shards[1].ShardID = 100 }, true},
		{"unknown_shard_type", func(c *ServerConfig) { c.Shards[0].Type = "magic" }, true},
		{"bad_log_level", func(c *ServerConfig) { c.LogLevel = "loud" }, true},
		{"remote_without_raft", func(c *ServerConfig) { c.Shards[0].Type = ShardTypeRemoteIStore }, true},
		{"remote_with_raft", func(c *ServerConfig) {
			c.Shards[0].Type = ShardTypeRemoteIStore
			c.RTTMillisecond = 100
			c.DataDir = "/tmp/idemkv"
			c.ReplicaID = 1
			c.ClusterMembers = map[uint64]string{1: "localhost:63001"}
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.modify(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClientConfigValidate(t *testing.T) {
	c := ClientConfig{Endpoints: []string{"localhost:8080"}, TimeoutSecond: 5}
	assert.NoError(t, c.Validate())

	c.Endpoints = nil
	assert.Error(t, c.Validate())
}

func TestConfigString(t *testing.T) {
	local := ServerConfig{
		Shards:        []ServerShard{{ShardID: 100, Type: ShardTypeLocalIStore}},
		TimeoutSecond: 5,
		Endpoint:      "localhost:8080",
		LogLevel:      "info",
	}
	out := local.String()
	assert.Contains(t, out, "localhost:8080")
	assert.Contains(t, out, "local store")
	assert.NotContains(t, out, "RAFT")

	remote := local
	remote.Shards = []ServerShard{{ShardID: 100, Type: ShardTypeRemoteIStore}}
	remote.RTTMillisecond = 100
	remote.ReplicaID = 2
	remote.ClusterMembers = map[uint64]string{2: "node-b:63001", 1: "node-a:63001"}
	out = remote.String()
	assert.Contains(t, out, "RAFT")
	assert.Contains(t, out, "1000 ms") // election
	assert.Less(t, strings.Index(out, "node-a"), strings.LastIndex(out, "node-b"))

	client := ClientConfig{Endpoints: []string{"a:1", "b:2"}, TimeoutSecond: 3}
	assert.Contains(t, client.String(), "b:2")
	assert.Contains(t, client.String(), "3s")
}
