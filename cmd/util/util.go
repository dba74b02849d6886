package util

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/idemkv/lib/db/util"
	"github.com/ValentinKolb/idemkv/rpc/common"
	"github.com/ValentinKolb/idemkv/rpc/serializer"
	"github.com/ValentinKolb/idemkv/rpc/transport"
	"github.com/ValentinKolb/idemkv/rpc/transport/http"
	"github.com/ValentinKolb/idemkv/rpc/transport/tcp"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of every environment variable read by the cli
	EnvPrefix = "idemkv"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig loads .env files and lets viper read IDEMKV_* environment variables
func InitConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// --------------------------------------------------------------------------
// RPC client flags
// --------------------------------------------------------------------------

// SetupRPCClientFlags adds common RPC connection flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of the client"))

	key = "transport-endpoints"
	cmd.PersistentFlags().String(key, "localhost:8080", WrapString("The address of the idemkv server. Multiple endpoints can be specified as a comma-separated list"))

	key = "transport-conn-per-endpoint"
	cmd.PersistentFlags().Int(key, 1, WrapString("Simultaneous connections per endpoint (tcp only)"))

	key = "transport-retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to retry the request"))
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	return ClientConfigFrom(
		viper.GetString("transport-endpoints"),
		viper.GetInt("timeout"),
		viper.GetInt("transport-retries"),
		viper.GetInt("transport-conn-per-endpoint"),
	)
}

// ClientConfigFrom builds a client config from a comma separated endpoint list
func ClientConfigFrom(endpoints string, timeoutSec, retries, connsPerEndpoint int) *common.ClientConfig {
	var eps []string
	for _, ep := range strings.Split(endpoints, ",") {
		if ep = strings.TrimSpace(ep); ep != "" {
			eps = append(eps, ep)
		}
	}
	return &common.ClientConfig{
		Endpoints:              eps,
		TimeoutSecond:          timeoutSec,
		RetryCount:             retries,
		ConnectionsPerEndpoint: connsPerEndpoint,
	}
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	return SerializerByName(viper.GetString("serializer"))
}

// SerializerByName returns the serializer registered under name
func SerializerByName(name string) (serializer.IRPCSerializer, error) {
	switch name {
	case "json":
		return serializer.NewJSONSerializer(), nil
	case "binary":
		return serializer.NewBinarySerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", name)
	}
}

// GetTransport creates the client transport based on configuration
func GetTransport() (transport.IRPCClientTransport, error) {
	return ClientTransportByName(viper.GetString("transport"))
}

// ClientTransportByName returns a new client transport of the given kind
func ClientTransportByName(name string) (transport.IRPCClientTransport, error) {
	switch name {
	case "http":
		return http.NewHttpClientTransport(), nil
	case "tcp":
		return tcp.NewTCPClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", name)
	}
}

// ServerTransportByName returns a new server transport of the given kind
func ServerTransportByName(name string) (transport.IRPCServerTransport, error) {
	switch name {
	case "http":
		return http.NewHttpServerTransport(), nil
	case "tcp":
		return tcp.NewTCPServerTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", name)
	}
}

// GetShardID retrieves the configured shard ID
func GetShardID() uint64 {
	return uint64(viper.GetInt("shard"))
}

// --------------------------------------------------------------------------
// Server flag parsing
// --------------------------------------------------------------------------

// ParseShards parses a list like "100=lstore,200=lockmgr(lstore)"
func ParseShards(s string) ([]common.ServerShard, error) {
	var shards []common.ServerShard
	for _, shardConfig := range strings.Split(s, ",") {
		parts := strings.Split(shardConfig, "=")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid shard format: %s (expected ID=TYPE)", shardConfig)
		}

		shardID, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid shard ID %s: %w", parts[0], err)
		}

		var shardType common.ServerShardType
		switch t := strings.TrimSpace(parts[1]); t {
		case "dstore":
			shardType = common.ShardTypeRemoteIStore
		case "lstore":
			shardType = common.ShardTypeLocalIStore
		case "lockmgr(dstore)":
			shardType = common.ShardTypeRemoteILockManager
		case "lockmgr(lstore)":
			shardType = common.ShardTypeLocalILockManager
		default:
			return nil, fmt.Errorf("invalid shard type: %s (expected one of: dstore, lstore, lockmgr(dstore), lockmgr(lstore))", t)
		}

		shards = append(shards, common.ServerShard{ShardID: shardID, Type: shardType})
	}
	return shards, nil
}

// ParseClusterMembers parses "node-1=host:port,..." into replica ids derived from the node names
func ParseClusterMembers(s string) (map[uint64]string, error) {
	members := make(map[uint64]string)
	for _, member := range strings.Split(s, ",") {
		parts := strings.Split(member, "=")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid cluster member format: %s (expected ID=address)", member)
		}
		members[ReplicaID(parts[0])] = parts[1]
	}
	return members, nil
}

// ReplicaID derives the numeric replica id from a node name
func ReplicaID(name string) uint64 {
	return util.HashString(name, 0)
}

// CallContext bounds a single cli call by the configured client timeout
func CallContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Duration(viper.GetInt("timeout"))*time.Second)
}

// DialFunc creates an rpc client for one shard
type DialFunc[C any] func(shardID uint64, config common.ClientConfig, t transport.IRPCClientTransport, s serializer.IRPCSerializer) (C, error)

// DialShard binds the flags of cmd and connects to the configured shard with dial
func DialShard[C any](cmd *cobra.Command, dial DialFunc[C]) (C, error) {
	var zero C
	if err := BindCommandFlags(cmd); err != nil {
		return zero, err
	}
	s, err := GetSerializer()
	if err != nil {
		return zero, err
	}
	t, err := GetTransport()
	if err != nil {
		return zero, err
	}
	return dial(GetShardID(), *GetClientConfig(), t, s)
}
