package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ValentinKolb/idemkv/api/catalog"
	cmdUtil "github.com/ValentinKolb/idemkv/cmd/util"
	"github.com/ValentinKolb/idemkv/lib/db"
	"github.com/ValentinKolb/idemkv/lib/db/engines/maple"
	"github.com/ValentinKolb/idemkv/lib/idempotency"
	"github.com/ValentinKolb/idemkv/lib/naturalkey"
	"github.com/ValentinKolb/idemkv/lib/store"
	"github.com/ValentinKolb/idemkv/lib/store/lstore"
	"github.com/ValentinKolb/idemkv/lib/store/rstore"
	"github.com/ValentinKolb/idemkv/rpc/client"
	"github.com/ValentinKolb/idemkv/rpc/common"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var log = logger.GetLogger("cli")

var APICmd = &cobra.Command{
	Use:   "api",
	Short: "Run the products API behind the idempotent write coordinator",
	Long: `Run the products API. Every POST carrying an Idempotency-Key header is executed at most once
per tenant and token, retries replay the recorded response. Flags can be set as environment
variables IDEMKV_<flag> (e.g. IDEMKV_LOCK_TTL=30s, IDEMKV_STORE=redis)`,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return cmdUtil.BindCommandFlags(cmd)
	},
	RunE: run,
}

func init() {
	cobra.OnInitialize(cmdUtil.InitConfig)

	defaults := idempotency.DefaultConfig()
	f := APICmd.Flags()

	f.String("listen", ":8081", cmdUtil.WrapString("Address the API listens on"))
	f.String("log-level", "info", cmdUtil.WrapString("Log level (debug, info, warn, error)"))

	// result cache and locks
	f.String("store", "memory", cmdUtil.WrapString("Backend of the result cache and the locks (memory, redis, rpc)"))
	f.String("redis-addr", "localhost:6379", cmdUtil.WrapString("Redis address for --store=redis"))
	f.String("redis-password", "", cmdUtil.WrapString("Redis password for --store=redis"))
	f.Int("redis-db", 0, cmdUtil.WrapString("Redis database for --store=redis"))
	f.String("rpc-endpoints", "localhost:8080", cmdUtil.WrapString("Comma separated server endpoints for --store=rpc"))
	f.Int("rpc-store-shard", 100, cmdUtil.WrapString("Shard serving the result cache for --store=rpc"))
	f.Int("rpc-lock-shard", 200, cmdUtil.WrapString("Shard serving the locks for --store=rpc"))
	f.Int("rpc-timeout", 5, cmdUtil.WrapString("Timeout in seconds of a single rpc for --store=rpc"))
	f.Int("rpc-retries", 2, cmdUtil.WrapString("Attempts per rpc for --store=rpc"))

	// products database
	f.String("db", "sqlite", cmdUtil.WrapString("Products database (sqlite, postgres)"))
	f.String("dsn", "idemkv.db", cmdUtil.WrapString("Database file for sqlite or connection string for postgres"))

	// coordinator
	f.Duration("lock-ttl", defaults.LockTTL, cmdUtil.WrapString("Lease of the per-token lock"))
	f.Duration("result-ttl", defaults.ResultTTL, cmdUtil.WrapString("How long a recorded response is replayed"))
	f.Int("max-wait-attempts", defaults.MaxWaitAttempts, cmdUtil.WrapString("Polls a request waits for a concurrent execution of the same token"))
	f.Duration("poll-interval", defaults.PollInterval, cmdUtil.WrapString("Delay between two polls"))
	f.Duration("execution-timeout", 0, cmdUtil.WrapString("Deadline of one execution, must be below lock-ttl (0 = 4/5 of lock-ttl)"))
	f.Bool("strict", defaults.Strict, cmdUtil.WrapString("Reject a token reused with a different payload (409). Disable to replay the first response anyway"))
	f.String("key-prefix", defaults.KeyPrefix, cmdUtil.WrapString("Prefix of all result and lock keys"))
}

// coordinatorConfig reads the coordinator settings from viper
func coordinatorConfig() (idempotency.Config, error) {
	cfg := idempotency.Config{
		LockTTL:          viper.GetDuration("lock-ttl"),
		ResultTTL:        viper.GetDuration("result-ttl"),
		MaxWaitAttempts:  viper.GetInt("max-wait-attempts"),
		PollInterval:     viper.GetDuration("poll-interval"),
		ExecutionTimeout: viper.GetDuration("execution-timeout"),
		Strict:           viper.GetBool("strict"),
		KeyPrefix:        viper.GetString("key-prefix"),
	}.Normalize()
	return cfg, cfg.Validate()
}

// backend is the result cache plus an optional separate lock manager
type backend struct {
	store  store.IStore
	locks  client.IRPCLockManager
	closer func() error
}

func openBackend(ctx context.Context) (*backend, error) {
	switch kind := viper.GetString("store"); kind {
	case "memory":
		s := lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) })
		return &backend{store: s, closer: s.Close}, nil

	case "redis":
		s, err := rstore.Connect(ctx, viper.GetString("redis-addr"), viper.GetString("redis-password"), viper.GetInt("redis-db"))
		if err != nil {
			return nil, err
		}
		return &backend{store: s, closer: s.Close}, nil

	case "rpc":
		conf := cmdUtil.ClientConfigFrom(viper.GetString("rpc-endpoints"), viper.GetInt("rpc-timeout"), viper.GetInt("rpc-retries"), 1)
		return openRPCBackend(*conf)

	default:
		return nil, fmt.Errorf("invalid store %s (expected memory, redis or rpc)", kind)
	}
}

func openRPCBackend(conf common.ClientConfig) (*backend, error) {
	ser, err := cmdUtil.GetSerializer()
	if err != nil {
		return nil, err
	}
	storeTransport, err := cmdUtil.GetTransport()
	if err != nil {
		return nil, err
	}
	lockTransport, err := cmdUtil.GetTransport()
	if err != nil {
		return nil, err
	}

	s, err := client.NewRPCStore(uint64(viper.GetInt("rpc-store-shard")), conf, storeTransport, ser)
	if err != nil {
		return nil, err
	}
	locks, err := client.NewRPCLockMgr(uint64(viper.GetInt("rpc-lock-shard")), conf, lockTransport, ser)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return &backend{
		store: s,
		locks: locks,
		closer: func() error {
			return errors.Join(locks.Close(), s.Close())
		},
	}, nil
}

func openRepository(ctx context.Context) (catalog.Repository, []naturalkey.Option, error) {
	switch kind := viper.GetString("db"); kind {
	case "sqlite":
		repo, err := catalog.NewSQLiteRepository(viper.GetString("dsn"))
		return repo, nil, err
	case "postgres":
		repo, err := catalog.NewPostgresRepository(ctx, viper.GetString("dsn"))
		return repo, []naturalkey.Option{naturalkey.WithConstraint(catalog.ProductsSKUConstraint)}, err
	default:
		return nil, nil, fmt.Errorf("invalid db %s (expected sqlite or postgres)", kind)
	}
}

func run(_ *cobra.Command, _ []string) error {
	if err := common.InitLoggers(viper.GetString("log-level")); err != nil {
		return err
	}

	cfg, err := coordinatorConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	be, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.closer(); err != nil {
			log.Warningf("closing store: %v", err)
		}
	}()

	repo, nkOpts, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()
	if err := repo.Migrate(ctx); err != nil {
		return err
	}

	var coordOpts []idempotency.Option
	if be.locks != nil {
		coordOpts = append(coordOpts, idempotency.WithLockManager(be.locks))
	}
	coord, err := idempotency.NewCoordinator(be.store, cfg, coordOpts...)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              viper.GetString("listen"),
		Handler:           catalog.NewRouter(catalog.NewService(repo, nkOpts...), coord),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Infof("coordinator: %s", cfg.String())
	log.Infof("listening on %s (store=%s, db=%s)", srv.Addr, viper.GetString("store"), viper.GetString("db"))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.LockTTL)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
