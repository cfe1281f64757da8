// cmd/api/main.go

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"wallace/internal/adapter/events"
	"wallace/internal/adapter/storage"
	"wallace/internal/bootstrap"
	"wallace/internal/config"
	"wallace/internal/server"
	"wallace/internal/server/handlers"
	"wallace/internal/service/pipeline"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Initialize storage; runs stay in memory without a database
	var store pipeline.Store
	if cfg.Database.Enabled {
		db, err := bootstrap.InitDatabase(ctx, cfg.Database)
		if err != nil {
			logger.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		simulationStore := storage.NewSimulationStore(db)
		if err := simulationStore.EnsureSchema(ctx); err != nil {
			logger.Error("Failed to create schema", "error", err)
			os.Exit(1)
		}
		store = simulationStore
	}

	// Initialize event streaming
	var publisher pipeline.Publisher
	var subscriber handlers.Subscriber
	if cfg.NATS.Enabled {
		natsConn, err := bootstrap.InitNATS(cfg.NATS, logger)
		if err != nil {
			logger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer natsConn.Close()

		publisher = events.NewPublisher(natsConn, cfg.Simulation.EventsTopic)
		subscriber = natsConn
	}

	runner := pipeline.NewSimulationRunner(
		bootstrap.NewTrendsClient(cfg.Trends),
		bootstrap.NewCaller(cfg.Trends, logger),
		store,
		publisher,
		logger,
		pipeline.RunnerConfig{
			MaxDepth:       cfg.Simulation.MaxDepth,
			BatchSize:      cfg.Simulation.BatchSize,
			PartialVolumes: cfg.Simulation.PartialVolumes,
		},
	)

	// Initialize HTTP server
	httpServer := server.NewServer(cfg.Server, runner, subscriber, cfg.Simulation.EventsTopic, logger)

	// Start HTTP server
	go func() {
		logger.Info("Starting HTTP server", "host", cfg.Server.Host, "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	<-shutdown
	logger.Info("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := runner.Stop(shutdownCtx); err != nil {
		logger.Error("Simulation runner shutdown error", "error", err)
	}

	logger.Info("Shutdown complete")
}
