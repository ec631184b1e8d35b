/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the payroll ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Build the zap logger
  3. Open the SQLite or PostgreSQL store (schema is migrated on open)
  4. Create API handler and router
  5. Start the ledger audit scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port       HTTP server port (default: 8080)
  -db         SQLite path or PostgreSQL URL (default: payroll.db)
              Use ":memory:" for an in-memory SQLite database
  -driver     sqlite or postgres (default: sqlite)
  -log-level  debug, info, warn, error (default: info)

ENVIRONMENT:
  See config/config.go. Flags win over environment variables.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (SHUTDOWN_TIMEOUT, default 30s)
  3. Stop the audit scheduler
  4. Close the connection pool
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/payroll.db"

  # Run against PostgreSQL
  DATABASE_URL=postgres://payroll@localhost/payroll?sslmode=disable ./server -driver=postgres

  # Run on different port with debug logs
  ./server -port=3000 -log-level=debug

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlstore/sqlstore.go: Store implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/payroll-ledger/api"
	"github.com/warp/payroll-ledger/config"
	"github.com/warp/payroll-ledger/logging"
	"github.com/warp/payroll-ledger/payroll"
	"github.com/warp/payroll-ledger/store/postgres"
	"github.com/warp/payroll-ledger/store/sqlite"
	"github.com/warp/payroll-ledger/store/sqlstore"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	// Initialize store
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := openStore(ctx, cfg)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()
	logger.Info("database ready",
		zap.String("driver", cfg.Driver),
		zap.Int("max_open_conns", cfg.Pool.MaxOpenConns),
		zap.Duration("acquire_timeout", cfg.Pool.AcquireTimeout),
	)

	// Initialize handler
	handler := api.NewHandler(store, logger, payroll.WithMaxAmount(cfg.MaxAmount))
	router := api.NewRouter(handler, cfg.AllowedOrigins)

	audit := api.NewAuditScheduler(handler.Ledger, handler.Directory, logger)
	audit.CheckInterval = cfg.AuditInterval
	audit.Start()
	defer audit.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return err
	case sig := <-quit:
		logger.Info("shutting down server", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.Config) (*sqlstore.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgres.New(ctx, cfg.DatabaseURL, cfg.Pool)
	default:
		return sqlite.New(ctx, cfg.DatabaseURL, cfg.Pool)
	}
}
