package main

import (
	"os"
	"time"

	"kassa/internal/amqp"
	"kassa/internal/cli"
	"kassa/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting kassa auditor")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the auditor")
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	client := cli.InitAMQP(logger, cfg)
	defer client.Close()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	go func() {
		err := client.ConsumeLedgerEvents(ctx, func(msg *amqp.LedgerEventMessage) error {
			_, err := repo.AppendAuditEntry(ctx, storage.AuditEntry{
				Event:         msg.Event,
				TransactionID: msg.TransactionID,
				AccountID:     msg.AccountID,
				DeltaCents:    msg.DeltaCents,
				RecordedAt:    msg.Timestamp,
			})
			return err
		})
		if err != nil && ctx.Err() == nil {
			logger.Error("Consumer stopped unexpectedly", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("Auditor consuming ledger events", "queue", cfg.AMQPQueue)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Auditor stopped")
}
