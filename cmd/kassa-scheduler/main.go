package main

import (
	"context"
	"log/slog"
	"time"

	"kassa/internal/cli"
	"kassa/internal/ledger"
	"kassa/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting kassa scheduler")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	amqpClient := cli.InitAMQP(logger, cfg)
	defer amqpClient.Close()

	engine := ledger.New(repo)
	// The scheduler process holds no summary cache of its own, so there
	// is nothing local to invalidate. A server backed by redis sees the
	// expiry-bounded staleness instead.
	processor := services.NewRecurringProcessor(repo, engine, amqpClient, nil)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	runOnce(ctx, logger, processor)

	ticker := time.NewTicker(cfg.SchedulerInterval)
	defer ticker.Stop()

	logger.Info("Scheduler running", "interval", cfg.SchedulerInterval.String())

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runOnce(ctx, logger, processor)
			}
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Scheduler stopped")
}

func runOnce(ctx context.Context, logger *slog.Logger, processor *services.RecurringProcessor) {
	executed, err := processor.RunDue(ctx, time.Now())
	if err != nil {
		logger.Error("Recurring run failed", "error", err)
		return
	}
	logger.Info("Recurring run finished", "executed", executed)
}
