package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/idemkv/cmd/api"
	"github.com/ValentinKolb/idemkv/cmd/kv"
	"github.com/ValentinKolb/idemkv/cmd/lock"
	"github.com/ValentinKolb/idemkv/cmd/probe"
	"github.com/ValentinKolb/idemkv/cmd/serve"
	"github.com/ValentinKolb/idemkv/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "idemkv",
		Short: "idempotent write coordinator",
		Long: fmt.Sprintf(`idemkv (v%s)

Exactly-once execution of retried write requests. Requests carrying an
Idempotency-Key run at most once per tenant; retries replay the cached
response. Backed by a local, redis or raft replicated key-value store.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of idemkv",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("idemkv v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(api.APICmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(lock.LockCommands)
	RootCmd.AddCommand(probe.ProbeCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (json, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (http, tcp)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
