package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"kharcha/internal/amqp"
	"kharcha/internal/config"
	applog "kharcha/internal/log"
	"kharcha/internal/storage"
	"kharcha/internal/store"
	"kharcha/internal/store/file"
	"kharcha/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	applog.Setup(cfg.LogLevel)
	slog.Info("Starting kharcha-worker")

	var (
		st  store.TransactionStore
		err error
	)
	switch cfg.StoreBackend {
	case "sqlite":
		st, err = storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	default:
		st, err = file.Open(cfg.FileStorePath)
	}
	if err != nil {
		slog.Error("Failed to initialize store", "error", err, "backend", cfg.StoreBackend)
		os.Exit(1)
	}
	defer st.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		slog.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	snapWorker := worker.NewSnapshotWorker(st, cfg.SnapshotPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Write an initial snapshot so a fresh worker starts from a known state
	if err := snapWorker.WriteSnapshot(ctx); err != nil {
		slog.Error("Initial snapshot failed", "error", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumeTransactionEvents(ctx, func(msg *amqp.TransactionEventMessage) error {
			return snapWorker.HandleEvent(ctx, msg)
		})
	})

	g.Go(func() error {
		return snapWorker.RunPeriodic(ctx, cfg.SnapshotInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	slog.Info("Worker shutdown complete")
}
