/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the carbon projection engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load configuration
  2. Build the logger
  3. Open the scenario store (memory, sqlite or postgres)
  4. Open the model cache (none, memory or redis)
  5. Create the scenario service, API handler and router
  6. Start the retention scheduler
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  TOML config file (default: carbon.toml, skipped if missing)
  -port    HTTP server port, overrides the config
  -db      SQLite database path, overrides the config and selects sqlite
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the retention scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (server.shutdown_timeout)
  4. Close cache and database connections
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/carbon.db"

  # Run against postgres and redis
  CARBON_STORAGE_DRIVER=postgres CARBON_POSTGRES_URL=postgres://... \
  CARBON_CACHE_DRIVER=redis CARBON_REDIS_ADDR=localhost:6379 ./server

ENVIRONMENT:
  CARBON_* variables override the config file, see config/config.go.
  A .env file in the working directory is loaded first.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - config/config.go: Configuration
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/carbon-engine/api"
	"github.com/warp/carbon-engine/cache"
	"github.com/warp/carbon-engine/config"
	"github.com/warp/carbon-engine/logging"
	"github.com/warp/carbon-engine/scenario"
	scenariostore "github.com/warp/carbon-engine/scenario/store"
	"github.com/warp/carbon-engine/store/postgres"
	"github.com/warp/carbon-engine/store/sqlite"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Flags
	configPath := flag.String("config", "carbon.toml", "TOML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Storage.Driver = config.StorageSQLite
		cfg.Storage.SQLitePath = *dbPath
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := context.Background()

	// Initialize store
	store, closeStore, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer closeStore()

	// Initialize cache
	modelCache, closeCache, err := openCache(ctx, cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer closeCache()

	svc := scenario.NewService(store,
		scenario.WithCache(modelCache),
		scenario.WithLogger(logger.Named("scenario")),
		scenario.WithPolicy(cfg.Engine.Policy()),
		scenario.WithRetention(cfg.Retention.Window()),
	)

	// Initialize handler
	handler := api.NewHandler(svc, logger.Named("http"))
	if cfg.Engine.SweepLimit > 0 {
		handler.SweepLimit = cfg.Engine.SweepLimit
	}

	// Start retention scheduler
	scheduler := api.NewRetentionScheduler(svc, logger.Named("retention"))
	scheduler.CheckInterval = cfg.Retention.GetCheckInterval()
	scheduler.Start()
	defer scheduler.Stop()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("storage", cfg.Storage.Driver),
			zap.String("cache", cfg.Cache.Driver),
			zap.String("invariant_policy", string(cfg.Engine.Policy())))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.GetShutdownTimeout())
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.StorageConfig) (scenario.Store, func(), error) {
	switch cfg.Driver {
	case config.StorageMemory:
		return scenariostore.NewMemory(), func() {}, nil
	case config.StoragePostgres:
		s, err := postgres.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	}
}

func openCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, func(), error) {
	switch cfg.Driver {
	case config.CacheNone:
		return cache.Nop{}, func() {}, nil
	case config.CacheRedis:
		c := cache.NewRedis(cfg.RedisAddr, cfg.GetTTL())
		if err := c.Ping(ctx); err != nil {
			c.Close()
			return nil, nil, fmt.Errorf("redis at %s: %w", cfg.RedisAddr, err)
		}
		return c, func() { c.Close() }, nil
	default:
		return cache.NewMemory(cfg.GetTTL()), func() {}, nil
	}
}
