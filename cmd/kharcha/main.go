package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"kharcha/internal/amqp"
	"kharcha/internal/config"
	"kharcha/internal/core"
	apphttp "kharcha/internal/http"
	applog "kharcha/internal/log"
	"kharcha/internal/service"
	"kharcha/internal/storage"
	"kharcha/internal/store"
	"kharcha/internal/store/file"
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
	slog.Info("Initialized store", "backend", cfg.StoreBackend)

	// The broker is optional for the API, change events are best effort
	var publisher service.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			slog.Warn("AMQP unavailable, change events disabled", "error", err)
		} else {
			publisher = client
			slog.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	svc := service.NewTransactionService(st, publisher)
	defer svc.Close()

	formatter := core.NewCurrencyFormatter(cfg.Locale)
	srv := apphttp.NewServer(":"+cfg.Port, svc, formatter, cfg.DefaultCurrency)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		slog.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	slog.Info("Starting kharcha server", "port", cfg.Port, "backend", cfg.StoreBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	slog.Info("Server stopped gracefully")
}
