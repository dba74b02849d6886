package kv

import (
	"fmt"
	"os"
	"time"

	"github.com/ValentinKolb/idemkv/cmd/util"
	"github.com/spf13/cobra"

	gometrics "github.com/rcrowley/go-metrics"
)

func parseTTL(s string) (time.Duration, error) {
	ttl, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("ttl must be a duration like 30s or 5m: %w", err)
	}
	if ttl < 0 {
		return 0, fmt.Errorf("ttl must not be negative")
	}
	return ttl, nil
}

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cancel := util.CallContext()
			defer cancel()
			if err := rpcStore.Set(c, args[0], []byte(args[1])); err != nil {
				return err
			}
			fmt.Println("set successfully")
			return nil
		},
	}
	setECmd = &cobra.Command{
		Use:   "setE [key] [value] [ttl]",
		Short: "Sets the value for a key that expires after ttl (e.g. 30s)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, err := parseTTL(args[2])
			if err != nil {
				return err
			}
			c, cancel := util.CallContext()
			defer cancel()
			if err := rpcStore.SetE(c, args[0], []byte(args[1]), ttl); err != nil {
				return err
			}
			fmt.Println("setE successfully")
			return nil
		},
	}
	setEIfUnsetCmd = &cobra.Command{
		Use:   "setEIfUnset [key] [value] [ttl]",
		Short: "Sets the value for a key that expires after ttl if no live value exists",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, err := parseTTL(args[2])
			if err != nil {
				return err
			}
			c, cancel := util.CallContext()
			defer cancel()
			stored, err := rpcStore.SetEIfUnset(c, args[0], []byte(args[1]), ttl)
			if err != nil {
				return err
			}
			fmt.Printf("stored=%t\n", stored)
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cancel := util.CallContext()
			defer cancel()
			resp, ok, err := rpcStore.Get(c, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%v, resp=%s\n", args[0], ok, resp)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cancel := util.CallContext()
			defer cancel()
			if err := rpcStore.Delete(c, args[0]); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	hasCmd = &cobra.Command{
		Use:   "has [key]",
		Short: "Checks if a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cancel := util.CallContext()
			defer cancel()
			found, err := rpcStore.Has(c, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%t\n", args[0], found)
			return nil
		},
	}
	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Prints metadata of the database behind the shard and the client round trip time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cancel := util.CallContext()
			defer cancel()
			info, err := rpcStore.GetDBInfo(c)
			if err != nil {
				return err
			}
			fmt.Printf("db=%s, keys=%d, size=%d bytes\n", info.DbType, info.Keys, info.SizeBytes)
			for _, f := range info.SupportedFeatures {
				fmt.Printf("  supports %s\n", f)
			}
			gometrics.WriteOnce(gometrics.DefaultRegistry, os.Stdout)
			return nil
		},
	}
)
