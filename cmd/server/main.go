/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the inventory engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Open the store (SQLite or MySQL) and migrate
  3. Build coordinator, engine, metrics, handler
  4. Start the low-stock auditor
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides HTTP_PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the auditor
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/inventory.db"

  # Run against MySQL
  DB_DRIVER=mysql DB_HOST=127.0.0.1 DB_USER=app DB_NAME=inventory ./server

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/inventory-engine/api"
	"github.com/warp/inventory-engine/config"
	"github.com/warp/inventory-engine/inventory"
	"github.com/warp/inventory-engine/metrics"
	"github.com/warp/inventory-engine/store/mysql"
	"github.com/warp/inventory-engine/store/sqlite"
	"github.com/warp/inventory-engine/store/sqlstore"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}

	// Flags
	port := flag.String("port", cfg.HTTPPort, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()
	cfg.HTTPPort = *port
	cfg.DBPath = *dbPath

	logger := config.NewLogger(cfg.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("server exited")
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	// Initialize store
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	recorder := metrics.New()
	if err := recorder.WatchDB(store.DB(), cfg.DBDriver); err != nil {
		logger.WithError(err).Warn("db stats collector not registered")
	}

	coordinator := inventory.NewCoordinator(store, cfg.UnitOfWork, logger.WithField("component", "uow"), recorder)
	engine := inventory.NewEngine(coordinator)

	handler := api.NewHandler(engine, store, logger.WithField("component", "api"))
	handler.LowStockThreshold = cfg.LowStockThreshold

	router := api.NewRouter(handler, api.RouterConfig{
		CORSOrigins: cfg.CORSOrigins,
		Metrics:     recorder.Handler(logger),
		Logger:      logger.WithField("component", "http"),
	})

	auditor := api.NewLowStockAuditor(store, recorder, logger.WithField("component", "low_stock"))
	auditor.Threshold = cfg.LowStockThreshold
	auditor.CheckInterval = cfg.LowStockInterval
	auditor.Start()
	defer auditor.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithFields(logrus.Fields{"addr": server.Addr, "driver": cfg.DBDriver}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config) (*sqlstore.Store, error) {
	switch cfg.DBDriver {
	case config.DriverMySQL:
		return mysql.New(ctx, cfg.MySQL.DSN(), cfg.Pool)
	default:
		return sqlite.NewWithPool(ctx, cfg.DBPath, cfg.Pool)
	}
}
