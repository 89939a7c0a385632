package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"nimbus-hq/sendgate/pkg/cli"
	"nimbus-hq/sendgate/pkg/config"
	"nimbus-hq/sendgate/pkg/quota"
	"nimbus-hq/sendgate/pkg/quota/retention"
	"nimbus-hq/sendgate/pkg/quota/store"
	"nimbus-hq/sendgate/pkg/server"
	"nimbus-hq/sendgate/pkg/telemetry/logging"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Sendgate quota server",
	Long: `Start the Sendgate quota server with the specified configuration.

The server listens on the configured address and serves admission checks,
usage recording, and threshold warnings over the configured counter store.

Examples:
  # Start with default config
  sendgate run

  # Start with custom config
  sendgate run --config /etc/sendgate/config.yaml

  # Override listen address
  sendgate run --listen 0.0.0.0:8080

  # Validate config without starting server
  sendgate run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.Setup(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	})
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Sendgate v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	ctx := cli.SetupSignalHandler()

	// Counter store
	slog.Info("initializing counter store", "backend", cfg.Storage.Backend)
	st, err := openStore(ctx, &cfg.Storage)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to open counter store: %w", err))
	}
	defer st.Close()
	fmt.Printf("✓ Counter store initialized (%s)\n", cfg.Storage.Backend)

	// Plan table: built-ins overlaid with configured plans
	plans := quota.NewPlanTable()
	plans.Replace(planOverrides(cfg))
	fmt.Printf("✓ Plan table loaded (%d plans)\n", len(plans.Names()))

	var metrics *quota.Metrics
	if cfg.Telemetry.Metrics.Enabled {
		metrics = quota.NewMetrics()
	}

	engine, err := quota.New(quota.Config{
		Store:             st,
		Plans:             plans,
		Metrics:           metrics,
		Logger:            logger,
		WarnRatio:         cfg.Quota.WarnRatio,
		IncrementAttempts: cfg.Quota.IncrementAttempts,
		IncrementBackoff:  cfg.Quota.IncrementBackoff,
		StoreTimeout:      cfg.Quota.StoreTimeout,
	})
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	// Retention pruner, for backends whose counters do not expire on their own
	if prunable, ok := st.(store.Prunable); ok && cfg.Retention.PruneSchedule != "" {
		pruner := retention.NewPruner(prunable, &retention.Config{
			KeepDays:      cfg.Retention.KeepDays,
			KeepMonths:    cfg.Retention.KeepMonths,
			PruneSchedule: cfg.Retention.PruneSchedule,
		})
		if err := pruner.Start(ctx); err != nil {
			slog.Warn("failed to start retention scheduler", "error", err)
		} else {
			defer pruner.Stop()
			if next := pruner.NextPruning(); next != nil {
				slog.Debug("retention scheduler started", "next_pruning", next)
			}
		}
	}

	// Hot reload: only the plan table is applied on reload; server and
	// storage changes require a restart.
	watcher, err := config.NewWatcher(cfgFile, logger)
	if err != nil {
		slog.Warn("config watcher unavailable, plan changes require restart", "error", err)
	} else {
		go func() {
			if err := watcher.Watch(ctx, func(newCfg *config.Config) {
				plans.Replace(planOverrides(newCfg))
				slog.Info("plan table reloaded", "plans", len(plans.Names()))
			}); err != nil {
				slog.Error("config watcher failed", "error", err)
			}
		}()
		defer watcher.Stop()
	}

	srv := server.NewServer(&cfg.Server, &cfg.Telemetry.Metrics, engine)

	fmt.Println()
	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/healthz\n", cfg.Server.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Println("✓ Server stopped")
	return nil
}

// openStore builds the counter store selected by the storage configuration.
func openStore(ctx context.Context, cfg *config.StorageConfig) (store.Store, error) {
	switch cfg.Backend {
	case "memory":
		return store.NewMemoryStore(), nil

	case "sqlite":
		return store.NewSQLiteStoreWithConfig(store.SQLiteConfig{
			Path:               cfg.SQLite.Path,
			BusyTimeout:        cfg.SQLite.BusyTimeout,
			CheckpointInterval: cfg.SQLite.CheckpointInterval,
		})

	case "postgres":
		return store.OpenPostgresStore(ctx, store.PostgresConfig{
			DSN:          postgresDSN(&cfg.Postgres),
			MaxOpenConns: cfg.Postgres.MaxOpenConns,
			MaxIdleConns: cfg.Postgres.MaxIdleConns,
		})

	case "redis":
		return store.NewRedisStore(ctx, store.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})

	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}

// postgresDSN assembles a lib/pq connection string from the configured
// fields.
func postgresDSN(cfg *config.PostgresConfig) string {
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.SSLMode)
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}
	return dsn
}

// planOverrides converts configured plans into policy overlays for the plan
// table.
func planOverrides(cfg *config.Config) map[string]quota.Policy {
	overrides := make(map[string]quota.Policy, len(cfg.Quota.Plans))
	for name, plan := range cfg.Quota.Plans {
		overrides[name] = quota.Policy{
			EmailsPerDayPerMailbox: plan.EmailsPerDayPerMailbox,
			EmailsPerMonth:         plan.EmailsPerMonth,
			LinkedInPerDay:         plan.LinkedInPerDay,
			LinkedInPerMonth:       plan.LinkedInPerMonth,
		}
	}
	return overrides
}
