package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/soldash/soldash/service/config"
	"github.com/soldash/soldash/service/db"
	"github.com/soldash/soldash/service/ledger"
	"github.com/soldash/soldash/service/metrics"
	"github.com/soldash/soldash/service/nats"
	"github.com/soldash/soldash/service/server"
	"github.com/soldash/soldash/service/solana"
	"github.com/soldash/soldash/service/swap"
	"github.com/soldash/soldash/service/temporal"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
		"cluster", cfg.SolanaCluster,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	store := db.NewStore(dbPool)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	// Metrics
	m := metrics.NewMetrics(nil)

	// Solana RPC client
	// Note: For premium RPC endpoints, include API key in the URL
	solanaRPC := solana.NewRPCClient(cfg.SolanaRPCURL)
	solanaClient := solana.NewClient(solanaRPC, cfg.SolanaRPCURL, cfg.RPCTimeout, m, logger)
	logger.Info("initialized solana RPC client", "url", cfg.SolanaRPCURL)

	// NATS publisher is optional; the service degrades to no events.
	var publisher nats.Publisher
	if cfg.NATSURL != "" {
		p, err := nats.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Warn("failed to connect to NATS, events disabled", "error", err)
		} else {
			publisher = p
			defer p.Close()
			logger.Info("connected to NATS", "url", cfg.NATSURL)
		}
	}

	// Ledger service
	ledgerSvc := ledger.NewService(store, solanaClient, publisher, m, logger, cfg.SolanaCluster)

	// Swap providers
	swaps := swap.NewRegistry(
		swap.NewManual(cfg.ManualSwapRate, logger),
		swap.NewJupiter(cfg.JupiterAPIURL, logger),
		swap.NewRaydium(cfg.RaydiumAPIURL, logger),
	)

	// Temporal schedule for the reconcile poller. The worker binary runs the
	// workflow; the server only makes sure the schedule exists.
	temporalClient, err := temporal.NewClient(cfg.TemporalHost, cfg.TemporalNamespace, cfg.TemporalTaskQueue, logger)
	if err != nil {
		logger.Warn("failed to connect to Temporal, reconcile schedule not ensured", "error", err)
	} else {
		defer temporalClient.Close()
		if err := temporalClient.EnsureReconcileSchedule(ctx, cfg.ReconcileInterval, cfg.ReconcileMinAge, int32(cfg.ReconcileBatch)); err != nil {
			logger.Error("failed to ensure reconcile schedule", "error", err)
		}
	}

	httpServer := server.New(cfg.ServerAddr, cfg, ledgerSvc, solanaClient, swaps, m, logger)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}
