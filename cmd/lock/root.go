package lock

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ValentinKolb/idemkv/cmd/util"
	"github.com/ValentinKolb/idemkv/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcLockMgr client.IRPCLockManager
	acquireTTL time.Duration

	// LockCommands represents the lock command group
	LockCommands = &cobra.Command{
		Use:                "lock",
		Short:              "Perform lock operations",
		PersistentPreRunE:  setupLockClient,
		PersistentPostRunE: closeLockClient,
	}

	// acquireCmd represents the acquire command
	acquireCmd = &cobra.Command{
		Use:   "acquire [key]",
		Short: "Acquire a lock",
		Args:  cobra.ExactArgs(1),
		RunE:  runAcquire,
	}

	// releaseCmd represents the release command
	releaseCmd = &cobra.Command{
		Use:   "release [key] [ownerID]",
		Short: "Release a previously acquired lock",
		Long:  "Release a lock using the key and owner ID. The owner ID is the hex string returned by the acquire command.",
		Args:  cobra.ExactArgs(2),
		RunE:  runRelease,
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	LockCommands.AddCommand(acquireCmd)
	LockCommands.AddCommand(releaseCmd)

	util.SetupRPCClientFlags(LockCommands)

	// default shard for lock operations (different from the kv default)
	LockCommands.PersistentFlags().Int("shard", 200, util.WrapString("ID of the shard to connect to"))

	acquireCmd.Flags().DurationVar(&acquireTTL, "ttl", 30*time.Second, "Lock lease (0 for no expiry)")
}

func setupLockClient(cmd *cobra.Command, _ []string) (err error) {
	rpcLockMgr, err = util.DialShard[client.IRPCLockManager](cmd, client.NewRPCLockMgr)
	return err
}

func closeLockClient(_ *cobra.Command, _ []string) error {
	if rpcLockMgr == nil {
		return nil
	}
	return rpcLockMgr.Close()
}

// runAcquire handles the acquire lock command
func runAcquire(_ *cobra.Command, args []string) error {
	ctx, cancel := util.CallContext()
	defer cancel()

	acquired, ownerID, err := rpcLockMgr.AcquireLock(ctx, args[0], acquireTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	if !acquired {
		fmt.Printf("acquired=false\n")
		return nil
	}

	fmt.Printf("acquired=true, ownerId=%s\n", hex.EncodeToString(ownerID))
	return nil
}

// runRelease handles the release lock command
func runRelease(_ *cobra.Command, args []string) error {
	ownerID, err := hex.DecodeString(args[1])
	if err != nil {
		return fmt.Errorf("invalid owner ID format: %w", err)
	}

	ctx, cancel := util.CallContext()
	defer cancel()

	released, err := rpcLockMgr.ReleaseLock(ctx, args[0], ownerID)
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	fmt.Printf("released=%v\n", released)
	return nil
}
