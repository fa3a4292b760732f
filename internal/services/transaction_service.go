package services

import (
	"context"
	"fmt"
	"log/slog"

	"kassa/internal/amqp"
	"kassa/internal/core"
	"kassa/internal/ledger"
	"kassa/internal/storage"
)

// Invalidator drops cached query results for a user after a write.
type Invalidator interface {
	InvalidateUser(userID int64)
}

// TransactionService orchestrates transaction writes: ownership checks,
// the ledger engine, the event stream and cache invalidation. Broker
// publish failures are logged and swallowed; the ledger commit is the
// source of truth.
type TransactionService struct {
	repo       *storage.SQLiteRepository
	engine     *ledger.Engine
	amqpClient *amqp.Client
	caches     Invalidator
}

func NewTransactionService(repo *storage.SQLiteRepository, engine *ledger.Engine, amqpClient *amqp.Client, caches Invalidator) *TransactionService {
	return &TransactionService{
		repo:       repo,
		engine:     engine,
		amqpClient: amqpClient,
		caches:     caches,
	}
}

// Create records a transaction on one of the user's accounts and
// applies its balance effect.
func (s *TransactionService) Create(ctx context.Context, userID int64, t core.Transaction) (*core.Transaction, error) {
	if err := s.checkOwnership(ctx, userID, t); err != nil {
		return nil, err
	}

	created, err := s.engine.Apply(ctx, t)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, amqp.EventTransactionCreated, *created, ledger.BalanceDelta(*created))
	s.invalidate(userID)
	return created, nil
}

// Update edits a transaction the user owns. The stored balance ends up
// as if the edited version had been recorded from the start.
func (s *TransactionService) Update(ctx context.Context, userID, transactionID int64, updated core.Transaction) (*core.Transaction, error) {
	old, err := s.repo.GetTransaction(ctx, userID, transactionID)
	if err != nil {
		return nil, err
	}
	if err := s.checkOwnership(ctx, userID, updated); err != nil {
		return nil, err
	}

	result, prior, err := s.engine.Update(ctx, *old, updated)
	if err != nil {
		return nil, err
	}

	// prior is what the engine actually reversed, which may be newer
	// than the row read above if another edit raced this one.
	s.publish(ctx, amqp.EventTransactionUpdated, *result, ledger.BalanceDelta(*result)-ledger.BalanceDelta(*prior))
	s.invalidate(userID)
	return result, nil
}

// Delete removes a transaction the user owns and undoes its balance
// effect.
func (s *TransactionService) Delete(ctx context.Context, userID, transactionID int64) error {
	old, err := s.repo.GetTransaction(ctx, userID, transactionID)
	if err != nil {
		return err
	}

	if err := s.engine.Reverse(ctx, *old); err != nil {
		return err
	}

	s.publish(ctx, amqp.EventTransactionDeleted, *old, -ledger.BalanceDelta(*old))
	s.invalidate(userID)
	return nil
}

// checkOwnership verifies the target account, and the category when
// set, belong to the user. Foreign rows surface as ErrNotFound.
func (s *TransactionService) checkOwnership(ctx context.Context, userID int64, t core.Transaction) error {
	if _, err := s.repo.GetAccount(ctx, userID, t.AccountID); err != nil {
		return fmt.Errorf("account %d: %w", t.AccountID, err)
	}
	if t.CategoryID != nil {
		if _, err := s.repo.GetCategory(ctx, userID, *t.CategoryID); err != nil {
			return fmt.Errorf("category %d: %w", *t.CategoryID, err)
		}
	}
	return nil
}

func (s *TransactionService) publish(ctx context.Context, event string, t core.Transaction, deltaCents int64) {
	msg := amqp.NewLedgerEventMessage(event, t.ID, t.AccountID, deltaCents)
	if err := s.amqpClient.PublishLedgerEvent(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"event", event, "transaction_id", t.ID, "error", err)
	}
}

func (s *TransactionService) invalidate(userID int64) {
	if s.caches != nil {
		s.caches.InvalidateUser(userID)
	}
}
