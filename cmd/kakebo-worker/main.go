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

	"kakebo/internal/amqp"
	"kakebo/internal/config"
	applog "kakebo/internal/log"
	ports "kakebo/internal/sheets"
	gsheet "kakebo/internal/sheets/google"
	mem "kakebo/internal/sheets/memory"
	"kakebo/internal/storage"
	"kakebo/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.ComponentWorker, slog.LevelInfo)
	applog.SetDefault(logger)

	logger.Info("Starting kakebo-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var mirror ports.LedgerMirror
	switch cfg.MirrorBackend {
	case "sheets":
		cli, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		mirror = cli
		logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	case "memory":
		mirror = mem.New()
		logger.Warn("Using in-memory mirror; mirrored rows do not survive restarts")
	default:
		logger.Info("Mirror disabled, nothing to do")
		return
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(repo, mirror, cfg.SyncBatchSize)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// First run against an existing spreadsheet: adopt its rows.
	if reader, ok := mirror.(ports.LedgerReader); ok {
		if err := syncWorker.SeedFromMirror(ctx, reader); err != nil {
			logger.Error("Failed to seed from remote ledger", "error", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	// Queue consumer: one goroutine per concern, first failure stops
	// the whole worker.
	g.Go(func() error {
		return amqpClient.ConsumeLedgerSync(gctx, func(msg *amqp.LedgerSyncMessage) error {
			return syncWorker.HandleSyncMessage(gctx, msg)
		})
	})

	// Recovery scan for rows whose queue message was lost.
	g.Go(func() error {
		return syncWorker.RunPendingScan(gctx, cfg.SyncInterval)
	})

	logger.Info("Worker running",
		"queue", cfg.AMQPQueue,
		"sync_interval", cfg.SyncInterval.String(),
		"batch_size", cfg.SyncBatchSize)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
