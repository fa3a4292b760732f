package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"kassa/internal/amqp"
	"kassa/internal/core"
	"kassa/internal/ledger"
	"kassa/internal/storage"
)

// RecurringProcessor executes due recurring payments: for each one it
// records an expense through the ledger engine and advances the
// schedule cursor. One payment failing never stops the run.
type RecurringProcessor struct {
	repo       *storage.SQLiteRepository
	engine     *ledger.Engine
	amqpClient *amqp.Client
	caches     Invalidator

	runMu sync.Mutex
}

func NewRecurringProcessor(repo *storage.SQLiteRepository, engine *ledger.Engine, amqpClient *amqp.Client, caches Invalidator) *RecurringProcessor {
	return &RecurringProcessor{
		repo:       repo,
		engine:     engine,
		amqpClient: amqpClient,
		caches:     caches,
	}
}

// RunDue processes every active payment that is due at now and returns
// how many executed. Overlapping runs are skipped: if a previous run
// is still going, RunDue returns immediately with zero.
func (p *RecurringProcessor) RunDue(ctx context.Context, now time.Time) (int, error) {
	if p.repo == nil || p.engine == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}
	if !p.runMu.TryLock() {
		slog.InfoContext(ctx, "Recurring run already in progress, skipping")
		return 0, nil
	}
	defer p.runMu.Unlock()

	candidates, err := p.repo.ListDueCandidates(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list due candidates: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring payments",
		"candidates", len(candidates),
		"processing_date", now.Format("2006-01-02"))

	executed := 0
	for _, rp := range candidates {
		due, err := IsDue(rp, now)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to check dueness",
				"id", rp.ID, "frequency", rp.Frequency, "error", err)
			continue
		}
		if !due {
			continue
		}

		if err := p.execute(ctx, rp, now); err != nil {
			slog.ErrorContext(ctx, "Failed to execute recurring payment",
				"id", rp.ID, "description", rp.Description, "error", err)
			continue
		}
		executed++
	}

	slog.InfoContext(ctx, "Recurring payment processing complete",
		"executed", executed,
		"candidates", len(candidates))

	return executed, nil
}

func (p *RecurringProcessor) execute(ctx context.Context, rp core.RecurringPayment, now time.Time) error {
	created, err := p.engine.Apply(ctx, core.Transaction{
		AccountID:   rp.AccountID,
		CategoryID:  rp.CategoryID,
		Type:        core.TypeExpense,
		Amount:      rp.Amount,
		Description: rp.Description,
		Date:        now,
	})
	if err != nil {
		return fmt.Errorf("apply payment: %w", err)
	}

	// Advancing the cursor after the ledger commit means a crash in
	// between re-executes the payment on the next run rather than
	// silently dropping it.
	if err := p.repo.UpdateLastExecuted(ctx, rp.ID, now); err != nil {
		slog.ErrorContext(ctx, "Failed to advance schedule cursor",
			"id", rp.ID, "transaction_id", created.ID, "error", err)
	}

	msg := amqp.NewLedgerEventMessage(amqp.EventRecurringExecuted, created.ID, rp.AccountID, ledger.BalanceDelta(*created))
	msg.RecurringID = rp.ID
	if err := p.amqpClient.PublishLedgerEvent(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish recurring event",
			"id", rp.ID, "transaction_id", created.ID, "error", err)
	}

	if p.caches != nil {
		if userID, err := p.repo.GetAccountOwner(ctx, rp.AccountID); err == nil {
			p.caches.InvalidateUser(userID)
		}
	}

	slog.InfoContext(ctx, "Executed recurring payment",
		"id", rp.ID,
		"transaction_id", created.ID,
		"description", rp.Description,
		"amount_cents", rp.Amount.Cents,
		"frequency", rp.Frequency)

	return nil
}
