package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"overmind/internal/config"
	"overmind/internal/dashboard"
	"overmind/internal/engine"
	"overmind/internal/factory"
	"overmind/internal/ledger"
	"overmind/internal/loop"
	"overmind/internal/store"
	"overmind/internal/types"
	"overmind/internal/wallet"
)

var (
	// Global flags
	verbose    bool
	configPath string
	dataDir    string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "overmind",
	Short: "overmind - autonomous swarm root controller",
	Long: `overmind is an autonomous root controller for a swarm of agents.

It runs a continuous six-phase cycle: observe the swarm, reason over a
weighted policy, decide on an action, act through the agent collaborators,
log the decision durably, and evolve the policy weights from the outcome.
Every action that touches the outside world is published to a ledger with
retry and fresh anti-replay material per attempt.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real env vars win over file entries
		_ = godotenv.Load()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		zcfg := zap.NewProductionConfig()
		if cfg.Logging.Format == "console" {
			zcfg = zap.NewDevelopmentConfig()
		}
		if lvl, lerr := zapcore.ParseLevel(cfg.Logging.Level); lerr == nil {
			zcfg.Level = zap.NewAtomicLevelAt(lvl)
		}
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLoop(cmd, args)
	},
}

// runCmd runs the autonomy loop until interrupted
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the autonomy loop until interrupted",
	Long: `Starts the root controller and runs cycles at the configured interval.

The loop stops cooperatively: on SIGINT/SIGTERM the current cycle finishes
all six phases before the process exits. Config file changes to the loop
interval are picked up live without a restart.`,
	RunE: runLoop,
}

// onceCmd executes exactly one cycle
var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Execute exactly one cycle and exit",
	RunE:  runOnce,
}

// statusCmd shows the current swarm state
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show swarm metrics, agents, and recent decisions",
	RunE:  showStatus,
}

// agentsCmd lists the agent roster
var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List all agents in the durable store",
	RunE:  listAgents,
}

// versionCmd prints the build version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the overmind version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("overmind %s\n", config.DefaultConfig().Version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "overmind.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Override the storage directory")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(onceCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// buildController wires the store, engine, ledger, wallets, and factory into
// a ready controller. The caller owns the store lifetime via the returned
// struct; nothing here starts the loop.
func buildController(cfg *config.Config) (*loop.Controller, *store.Store, error) {
	st, err := store.New(cfg.Storage.DataDir, logger.Named("store"))
	if err != nil {
		return nil, nil, err
	}

	var client ledger.Client
	if cfg.Ledger.Mode == "remote" {
		client = ledger.NewHTTPClient(cfg.Ledger.Endpoint, cfg.GetLedgerTimeout())
	} else {
		client = ledger.NewLocalClient()
	}
	submitter := ledger.NewSubmitter(client, st, logger.Named("ledger"),
		cfg.Ledger.MaxAttempts, cfg.GetRetryBase())

	eng := engine.New(engine.Thresholds{
		AgentFloor:      cfg.Thresholds.AgentFloor,
		AgentCeiling:    cfg.Thresholds.AgentCeiling,
		WeightMin:       cfg.Thresholds.WeightMin,
		WeightMax:       cfg.Thresholds.WeightMax,
		ReinforceStep:   cfg.Thresholds.ReinforceStep,
		SelectionJitter: cfg.Thresholds.SelectionJitter,
		LowSuccessRate:  cfg.Thresholds.LowSuccessRate,
		MinHistory:      cfg.Thresholds.MinHistory,
	}, logger.Named("engine"))

	wallets := wallet.NewManager(st, logger.Named("wallet"))
	fac := factory.New(logger.Named("factory"))

	ctrl := loop.New(loop.Options{
		RootID:              cfg.Loop.RootID,
		Interval:            cfg.GetInterval(),
		ErrorCooldown:       cfg.GetErrorCooldown(),
		ObservationWindow:   cfg.Loop.ObservationWindow,
		CriticalSuccessRate: cfg.Thresholds.CriticalSuccessRate,
		DegradedSuccessRate: cfg.Thresholds.DegradedSuccessRate,
		CriticalIdle:        cfg.GetCriticalIdle(),
		DegradedIdle:        cfg.GetDegradedIdle(),
		AgentFloor:          cfg.Thresholds.AgentFloor,
		LowSuccessRate:      cfg.Thresholds.LowSuccessRate,
		MinHistory:          cfg.Thresholds.MinHistory,
	}, st, eng, submitter, wallets, fac, logger.Named("loop"))

	return ctrl, st, nil
}

// runLoop starts the controller plus the config watcher and blocks until a
// shutdown signal arrives.
func runLoop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctrl, _, err := buildController(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("overmind starting",
		zap.String("version", cfg.Version),
		zap.Duration("interval", cfg.GetInterval()),
		zap.String("ledger_mode", cfg.Ledger.Mode),
		zap.String("data_dir", cfg.Storage.DataDir))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ctrl.Run(gctx)
	})

	g.Go(func() error {
		err := config.Watch(gctx, configPath, logger.Named("config"), func(next *config.Config) {
			ctrl.SetInterval(next.GetInterval())
		})
		if err != nil && gctx.Err() == nil {
			// A broken watcher degrades hot reload, not the loop.
			logger.Warn("config watcher stopped", zap.Error(err))
		}
		return nil
	})

	g.Go(func() error {
		drainEvents(gctx, ctrl.Events())
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("overmind stopped")
	return nil
}

// drainEvents consumes the controller's event stream; a verbose run prints
// each phase transition as a status line.
func drainEvents(ctx context.Context, events <-chan types.CycleEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if verbose {
				fmt.Println(dashboard.RenderEvent(ev))
			}
		}
	}
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctrl, st, err := buildController(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := ctrl.RunOnce(ctx); err != nil {
		return fmt.Errorf("cycle failed: %w", err)
	}

	recent := st.RecentDecisions(1)
	if len(recent) == 1 {
		rec := recent[0]
		fmt.Printf("cycle complete: %s -> %s (success=%v)\n",
			rec.Decision.Type, rec.Result.Outcome, rec.Result.Success)
	}
	return nil
}

func showStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := store.New(cfg.Storage.DataDir, logger.Named("store"))
	if err != nil {
		return err
	}

	agents := st.ListAgents()
	recent := st.RecentDecisions(10)
	fmt.Print(dashboard.Render(st.Metrics(), agents, recent))
	return nil
}

func listAgents(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := store.New(cfg.Storage.DataDir, logger.Named("store"))
	if err != nil {
		return err
	}

	agents := st.ListAgents()
	if len(agents) == 0 {
		fmt.Println("no agents yet")
		return nil
	}
	for i := range agents {
		a := &agents[i]
		fmt.Printf("%-24s %-10s %-10s %s\n", a.ID, a.Role, a.Status, a.Address)
	}
	return nil
}
