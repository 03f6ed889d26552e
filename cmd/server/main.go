/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Warp workload engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, then load .env / environment
  2. Initialize logger and SQLite store
  3. Optionally import workers and records from JSON files
  4. Build the orchestrator (metrics, optional Redis mirror)
  5. Load the roster from the store and start the refresher
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  --port       HTTP server port (overrides PORT)
  --db         SQLite database path (overrides DB_PATH)
               Use ":memory:" for in-memory database
  --env-file   Env file to read (default: .env)
  --workers    JSON array of workers to import at startup
  --records    JSON array of work records to import at startup

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the refresher
  4. Flush pending roster publishes
  5. Close database and Redis connections

EXAMPLES:
  # Run with file database
  ./server --db=./data/workload.db

  # Run in memory with an imported roster
  ./server --db=:memory: --workers=workers.json --records=records.json

ENVIRONMENT:
  See config/config.go for the full list (PORT, DB_PATH, TIMEZONE,
  FREE_SLOT_MIN_DURATION, HORIZON_*, REDIS_*, LOG_*, METRICS_ENABLED).

SEE ALSO:
  - api/server.go: Router configuration
  - workload/orchestrator.go: Recompute and publish
  - config/config.go: Environment configuration
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/warp/workload-engine/api"
	"github.com/warp/workload-engine/cache"
	"github.com/warp/workload-engine/config"
	"github.com/warp/workload-engine/factory"
	"github.com/warp/workload-engine/logging"
	"github.com/warp/workload-engine/store/sqlite"
	"github.com/warp/workload-engine/workload"
)

var CLI struct {
	Port    int    `help:"HTTP server port (overrides PORT)."`
	DB      string `help:"SQLite database path (overrides DB_PATH)." name:"db"`
	EnvFile string `help:"Env file to read." default:".env" type:"path"`
	Workers string `help:"JSON file of workers to import at startup." type:"existingfile"`
	Records string `help:"JSON file of work records to import at startup." type:"existingfile"`
}

func main() {
	kong.Parse(&CLI,
		kong.Name("server"),
		kong.Description("Roster workload and availability engine"),
		kong.UsageOnError(),
	)

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(CLI.EnvFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if CLI.Port != 0 {
		cfg.Port = CLI.Port
	}
	if CLI.DB != "" {
		cfg.Database.Path = CLI.DB
	}

	logger, err := logging.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	cal := cfg.Engine.Calendar()
	if err := importFiles(context.Background(), store, factory.NewRecordFactory(cal)); err != nil {
		return err
	}

	// Orchestrator collaborators
	var inst *workload.Instrumentation
	if cfg.Metrics.Enabled {
		inst = workload.NewInstrumentation()
	}

	var publishers []workload.Publisher
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, roster mirror disabled", zap.Error(err))
		} else {
			defer client.Close()
			publishers = append(publishers, workload.NewRedisPublisher(client, cfg.Redis.Key, cfg.Redis.TTL))
		}
	}

	orch := workload.NewOrchestrator(workload.OrchestratorConfig{
		Horizon:         cfg.Engine.Horizon(time.Now()),
		Calendar:        cal,
		MinSlot:         cfg.Engine.MinFreeSlot,
		Logger:          logger,
		Instrumentation: inst,
		Publishers:      publishers,
	})
	defer orch.Flush()

	handler := api.NewHandler(store, orch, logger)
	if roster, err := handler.Reload(context.Background()); err != nil {
		logger.Warn("initial roster load failed", zap.Error(err))
	} else {
		logger.Info("roster loaded",
			zap.Int("workers", len(roster.Workers)),
			zap.Stringer("horizon", roster.Horizon),
		)
	}

	refresher := api.NewRefreshScheduler(handler)
	refresher.Horizon = cfg.Engine.Horizon
	refresher.Start()
	defer refresher.Stop()

	opts := api.RouterOptions{AllowedOrigins: cfg.CORS.AllowedOrigins}
	if inst != nil {
		opts.Metrics = inst.Handler()
	}

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(handler, opts),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// importFiles stores the workers file before the records file so records can
// reference the imported workers.
func importFiles(ctx context.Context, store workload.Store, f *factory.RecordFactory) error {
	if CLI.Workers != "" {
		data, err := os.ReadFile(CLI.Workers)
		if err != nil {
			return fmt.Errorf("read workers: %w", err)
		}
		workers, err := f.ParseWorkers(data)
		if err != nil {
			return fmt.Errorf("parse workers: %w", err)
		}
		for _, w := range workers {
			if err := store.SaveWorker(ctx, w); err != nil {
				return fmt.Errorf("save worker %s: %w", w.ID, err)
			}
		}
	}

	if CLI.Records != "" {
		data, err := os.ReadFile(CLI.Records)
		if err != nil {
			return fmt.Errorf("read records: %w", err)
		}
		records, err := f.ParseRecords(data)
		if err != nil {
			return fmt.Errorf("parse records: %w", err)
		}
		if err := store.SaveRecords(ctx, records); err != nil {
			return fmt.Errorf("save records: %w", err)
		}
	}
	return nil
}
