package common

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lni/dragonboat/v4/config"
)

var validate = validator.New()

// --------------------------------------------------------------------------
// helper functions for to interface with Dragonboat (for the server util)
// --------------------------------------------------------------------------

// Dragonboat uses RTT (Round Trip Time) to determine the timing of elections and heartbeats.
// These default values are selected according to the RAFT Paper
const (
	electionRTTFactor  = 10
	heartbeatRTTFactor = 1
)

// ToDragonboatConfig converts the ServerConfig to Dragonboat Config
func (c *ServerConfig) ToDragonboatConfig(shardId uint64) config.Config {
	return config.Config{
		ReplicaID:          c.ReplicaID,
		ShardID:            shardId,
		ElectionRTT:        electionRTTFactor,  // = c.RTTMillisecond * 10
		HeartbeatRTT:       heartbeatRTTFactor, // = c.RTTMillisecond * 2
		CheckQuorum:        true,
		SnapshotEntries:    c.SnapshotEntries,
		CompactionOverhead: c.CompactionOverhead,
		MaxInMemLogSize:    0,
	}
}

// ToNodeHostConfig creates a NodeHostConfig for Dragonboat
func (c *ServerConfig) ToNodeHostConfig() config.NodeHostConfig {
	return config.NodeHostConfig{
		WALDir:         c.DataDir,
		NodeHostDir:    c.DataDir,
		RTTMillisecond: c.RTTMillisecond,
		RaftAddress:    c.ClusterMembers[c.ReplicaID],
	}
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

type ServerShardType string

const (
	ShardTypeLocalIStore        ServerShardType = "local store"
	ShardTypeRemoteIStore       ServerShardType = "remote store"
	ShardTypeLocalILockManager  ServerShardType = "local lock manager"
	ShardTypeRemoteILockManager ServerShardType = "remote lock manager"
)

type ServerShard struct {
	// ShardID is the ID of the shard
	ShardID uint64 `validate:"gt=0"`
	// Type selects the store or lock manager served under the shard id
	Type ServerShardType `validate:"oneof='local store' 'remote store' 'local lock manager' 'remote lock manager'"`
}

// ServerConfig holds all configuration parameters for the RAFT cluster.
type ServerConfig struct {
	// Shards served by this node, local shards live in memory, remote shards are raft replicated
	Shards []ServerShard `validate:"required,dive"`

	// Dragonboat parameters
	RTTMillisecond     uint64
	SnapshotEntries    uint64
	CompactionOverhead uint64
	DataDir            string
	ReplicaID          uint64
	ClusterMembers     map[uint64]string

	// remote kvStore parameters
	TimeoutSecond int64 `validate:"gt=0"`

	// RPC endpoint settings
	Endpoint string `validate:"required"`

	// Logging configuration
	LogLevel string `validate:"oneof=debug info warn warning error"`
}

// Validate checks the configuration. Raft parameters are only checked when a remote shard is configured.
func (c *ServerConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}
	seen := make(map[uint64]bool, len(c.Shards))
	for _, shard := range c.Shards {
		if seen[shard.ShardID] {
			return fmt.Errorf("invalid server config: shard %d configured twice", shard.ShardID)
		}
		seen[shard.ShardID] = true
	}
	if c.HasRemoteShard() {
		if c.RTTMillisecond == 0 || c.DataDir == "" {
			return fmt.Errorf("invalid server config: remote shards need rtt and data dir")
		}
		if _, ok := c.ClusterMembers[c.ReplicaID]; !ok {
			return fmt.Errorf("invalid server config: replica %d is not a cluster member", c.ReplicaID)
		}
	}
	return nil
}

// Timeout returns the per request timeout.
func (c *ServerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// HasRemoteShard checks if the configuration contains any remote shards
func (c *ServerConfig) HasRemoteShard() bool {
	for _, shard := range c.Shards {
		if shard.Type == ShardTypeRemoteIStore || shard.Type == ShardTypeRemoteILockManager {
			return true
		}
	}
	return false
}

// String renders the configuration for the startup log
func (c *ServerConfig) String() string {
	var r report
	r.section("rpc server")
	r.field("endpoint", c.Endpoint)
	r.field("timeout", c.Timeout().String())
	r.field("log level", c.LogLevel)

	r.section("shards")
	for _, shard := range c.Shards {
		r.field(strconv.FormatUint(shard.ShardID, 10), string(shard.Type))
	}

	if !c.HasRemoteShard() {
		return r.String()
	}

	r.section("raft")
	r.field("replica id", strconv.FormatUint(c.ReplicaID, 10))
	r.field("raft address", c.ClusterMembers[c.ReplicaID])
	r.field("rtt", fmt.Sprintf("%d ms", c.RTTMillisecond))
	r.field("election", fmt.Sprintf("%d ms", c.RTTMillisecond*electionRTTFactor))
	r.field("heartbeat", fmt.Sprintf("%d ms", c.RTTMillisecond*heartbeatRTTFactor))
	r.field("snapshot entries", strconv.FormatUint(c.SnapshotEntries, 10))
	r.field("compaction overhead", strconv.FormatUint(c.CompactionOverhead, 10))
	r.field("data dir", c.DataDir)

	r.section("initial members")
	ids := make([]uint64, 0, len(c.ClusterMembers))
	for id := range c.ClusterMembers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		r.field(strconv.FormatUint(id, 10), c.ClusterMembers[id])
	}
	return r.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoints              []string `validate:"required,min=1,dive,required"`
	TimeoutSecond          int      `validate:"gt=0"`
	RetryCount             int      `validate:"gte=0"`
	ConnectionsPerEndpoint int      `validate:"gte=0"`
}

// Validate checks the client configuration.
func (c *ClientConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid client config: %w", err)
	}
	return nil
}

// Timeout returns the per request timeout.
func (c *ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// String renders the configuration for logs and the cli
func (c *ClientConfig) String() string {
	var r report
	r.section("rpc client")
	r.field("timeout", c.Timeout().String())
	r.field("retries", strconv.Itoa(c.RetryCount))
	r.field("conns per endpoint", strconv.Itoa(max(1, c.ConnectionsPerEndpoint)))

	r.section("endpoints")
	for i, endpoint := range c.Endpoints {
		r.field(strconv.Itoa(i), endpoint)
	}
	return r.String()
}

// report builds the aligned multi section text of the String methods
type report struct {
	strings.Builder
}

func (r *report) section(title string) {
	fmt.Fprintf(r, "\n%s\n", strings.ToUpper(title))
}

func (r *report) field(name, value string) {
	fmt.Fprintf(r, "  %-20s %s\n", name+":", value)
}
