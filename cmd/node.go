package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mezonai/syncgate/config"
	"github.com/mezonai/syncgate/contract"
	"github.com/mezonai/syncgate/events"
	"github.com/mezonai/syncgate/exception"
	"github.com/mezonai/syncgate/interfaces"
	"github.com/mezonai/syncgate/jsonrpc"
	"github.com/mezonai/syncgate/logx"
	"github.com/mezonai/syncgate/mempool"
	"github.com/mezonai/syncgate/monitoring"
	"github.com/mezonai/syncgate/p2p"
	"github.com/mezonai/syncgate/ratelimit"
	"github.com/mezonai/syncgate/service"
	"github.com/mezonai/syncgate/store"
	"github.com/mezonai/syncgate/validation"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the node",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		return runNode(cfg)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runNode(cfg *config.NodeConfig) error {
	log := logx.New(cfg.Log)
	logx.SetDefault(log)
	monitoring.InitMetrics()

	stores, err := store.CreateStores(cfg.Storage, cfg.Sync)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	defer stores.Close()

	mp, err := mempool.NewMempool(stores.Pool, cfg.Admission.MaxPoolSize, log)
	if err != nil {
		return fmt.Errorf("initialize mempool: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gate, closeGate, err := initializeContractGate(ctx, cfg.Contract, log)
	if err != nil {
		return fmt.Errorf("initialize contract gate: %w", err)
	}
	defer closeGate()

	maxSupply, err := cfg.Admission.MaxSupply()
	if err != nil {
		return err
	}
	val := validation.NewValidator(maxSupply, gate, log)
	eventBus := events.NewEventBus(log)

	var (
		network *p2p.Network
		bc      interfaces.Broadcaster
		nodeID  = "local"
	)
	if cfg.P2P.Enabled {
		priv, err := p2p.LoadOrCreateIdentity(cfg.P2P.KeyFile)
		if err != nil {
			return fmt.Errorf("load node identity: %w", err)
		}
		network, err = p2p.NewNetwork(cfg.P2P, priv, log)
		if err != nil {
			return fmt.Errorf("initialize network: %w", err)
		}
		defer network.Close()
		bc = network
		nodeID = network.ID().String()
	}

	router := jsonrpc.NewRouter(bc, log)
	enablePostTx := cfg.Admission.EnablePostTx && network != nil
	txSvc := service.NewTxService(val, mp, eventBus, router, enablePostTx, log)
	syncSvc := service.NewSyncService(mp, stores, service.SyncServiceConfig{
		PeekLimit:        uint64(cfg.Sync.PeekLimit),
		DefaultChunkSize: uint64(cfg.Sync.DefaultChunkSize),
		MaxChunkSize:     uint64(cfg.Sync.MaxChunkSize),
	}, log)
	if err := jsonrpc.RegisterTxHandlers(router, txSvc); err != nil {
		return err
	}
	if err := jsonrpc.RegisterSyncHandlers(router, syncSvc); err != nil {
		return err
	}
	log.Info("NODE", "registered message types: ", router.Types())

	peers := func() int { return 0 }
	if network != nil {
		network.ServeSync(router.PeerMethodMap())
		limiter := p2p.NewRateLimitManager(&p2p.RateLimitConfig{
			MaxMessagesPerMinute: cfg.P2P.MaxRelayPerMinute,
			MaxBytesPerSecond:    p2p.DefaultRateLimitConfig().MaxBytesPerSecond,
		})
		relay := p2p.NewRelay(txSvc, mempool.NewDedupService(0), limiter, log)
		if err := network.StartRelay(relay); err != nil {
			return fmt.Errorf("start relay: %w", err)
		}
		peers = network.PeerCount
	}

	health := service.NewHealthService(mp, stores.Log, peers, nodeID).WithDataDir(cfg.Storage.Directory)
	server := jsonrpc.NewServer(cfg.RPC.ListenAddr, router, txSvc, health, log)
	if len(cfg.RPC.AllowedOrigins) > 0 {
		server.SetCORSConfig(jsonrpc.CORSConfig{
			AllowedOrigins: cfg.RPC.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
		})
	}
	if cfg.RPC.RateLimitPerSecond > 0 {
		server.SetRateLimiter(ratelimit.NewRateLimiter(&ratelimit.RateLimiterConfig{
			MaxRequests:     cfg.RPC.RateLimitPerSecond,
			WindowSize:      time.Second,
			CleanupInterval: time.Minute,
		}))
	}
	if corsCfg, ok := jsonrpc.CORSFromEnv(); ok {
		server.SetCORSConfig(corsCfg)
	}
	if err := server.Start(); err != nil {
		return err
	}

	subID, eventsCh := eventBus.Subscribe()
	defer eventBus.Unsubscribe(subID)
	exception.SafeGo("EventLogger", func() {
		logEvents(log, eventsCh)
	})

	log.Info("NODE", "node ", nodeID, " running")
	<-ctx.Done()
	log.Info("NODE", "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("NODE", "rpc shutdown: ", err)
	}
	return nil
}

func initializeContractGate(ctx context.Context, cfg config.ContractConfig, log *logx.Logger) (contract.Gate, func(), error) {
	noop := func() {}
	switch cfg.Engine {
	case "", "none":
		return contract.NewGate(nil, log), noop, nil
	case "wasm":
		engine, err := contract.LoadWasmEngine(ctx, cfg.WasmPath)
		if err != nil {
			return nil, noop, err
		}
		return contract.NewGate(engine, log), func() { _ = engine.Close(context.Background()) }, nil
	default:
		schema := contract.DefaultSchema()
		if cfg.SchemaPath != "" {
			loaded, err := contract.LoadSchema(cfg.SchemaPath)
			if err != nil {
				return nil, noop, err
			}
			schema = loaded
		}
		engine, err := contract.NewSchemaEngine(schema)
		if err != nil {
			return nil, noop, err
		}
		return contract.NewGate(engine, log), noop, nil
	}
}

// logEvents writes node events to the log until the channel closes.
func logEvents(log *logx.Logger, ch <-chan events.NodeEvent) {
	for ev := range ch {
		switch e := ev.(type) {
		case *events.TransactionAddedToMempool:
			log.Debug("EVENT", "tx ", e.Key(), " added (local=", e.Local(), ")")
		case *events.TransactionRejected:
			log.Debug("EVENT", "tx ", e.Key(), " rejected: ", e.Kind(), " (retryable=", e.Retryable(), ")")
		case *events.SnapshotPublished:
			log.Info("EVENT", "snapshot ", e.Key(), " published at height ", e.Meta().Height)
		}
	}
}
