// Package ledger keeps account balances consistent with the set of
// their transactions. It is the only code path that mutates
// accounts.balance_cents: every create, edit and delete of a
// transaction flows through Apply, Update or Reverse, and each of
// those commits the transaction row and its balance effect in a single
// database transaction.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"kassa/internal/core"
	"kassa/internal/storage"
)

type Engine struct {
	repo  *storage.SQLiteRepository
	locks *keyedMutex
}

func New(repo *storage.SQLiteRepository) *Engine {
	return &Engine{
		repo:  repo,
		locks: newKeyedMutex(),
	}
}

// BalanceDelta is the signed effect a transaction has on its account:
// positive for income, negative for expense. Transfers carry no
// defined balance effect and yield zero until double-entry semantics
// exist for them.
func BalanceDelta(t core.Transaction) int64 {
	switch t.Type {
	case core.TypeIncome:
		return t.Amount.Cents
	case core.TypeExpense:
		return -t.Amount.Cents
	default:
		return 0
	}
}

// Apply validates the transaction, persists it and applies its balance
// effect to the owning account. The two writes commit together or not
// at all. Returns the stored transaction with its id set.
func (e *Engine) Apply(ctx context.Context, t core.Transaction) (*core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(t.AccountID)
	defer unlock()

	err := e.repo.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := storage.GetAccountTx(ctx, tx, t.AccountID); err != nil {
			return err
		}
		id, err := storage.InsertTransactionTx(ctx, tx, t)
		if err != nil {
			return err
		}
		t.ID = id
		if delta := BalanceDelta(t); delta != 0 {
			if err := storage.AdjustBalanceTx(ctx, tx, t.AccountID, delta); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("apply transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction applied",
		"id", t.ID,
		"account_id", t.AccountID,
		"type", t.Type,
		"amount_cents", t.Amount.Cents,
		"delta_cents", BalanceDelta(t))

	return &t, nil
}

// Reverse undoes the balance effect of a stored transaction and
// deletes its row, atomically. It is the exact inverse of Apply, used
// on delete and as the first half of Update.
func (e *Engine) Reverse(ctx context.Context, t core.Transaction) error {
	unlock := e.locks.Lock(t.AccountID)
	defer unlock()

	err := e.repo.Tx(ctx, func(tx *sql.Tx) error {
		if err := storage.DeleteTransactionTx(ctx, tx, t.ID); err != nil {
			return err
		}
		if delta := BalanceDelta(t); delta != 0 {
			if err := storage.AdjustBalanceTx(ctx, tx, t.AccountID, -delta); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("reverse transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction reversed",
		"id", t.ID,
		"account_id", t.AccountID,
		"type", t.Type,
		"amount_cents", t.Amount.Cents)

	return nil
}

// Update replaces a stored transaction with an edited version as
// reverse(stored) followed by apply(new) inside one database
// transaction. The caller's old snapshot is advisory: it orders the
// account locks, but the values reversed are re-read by id under the
// lock, so a concurrent edit of the same transaction cannot make two
// updates reverse the same stale state. Returns the stored
// transaction and the prior state that was reversed.
func (e *Engine) Update(ctx context.Context, old, updated core.Transaction) (*core.Transaction, *core.Transaction, error) {
	if err := updated.Validate(); err != nil {
		return nil, nil, err
	}
	updated.ID = old.ID

	unlock := e.locks.LockPair(old.AccountID, updated.AccountID)
	defer unlock()

	var prior *core.Transaction
	err := e.repo.Tx(ctx, func(tx *sql.Tx) error {
		stored, err := storage.GetTransactionTx(ctx, tx, updated.ID)
		if err != nil {
			return err
		}
		prior = stored
		if _, err := storage.GetAccountTx(ctx, tx, updated.AccountID); err != nil {
			return err
		}
		if delta := BalanceDelta(*stored); delta != 0 {
			if err := storage.AdjustBalanceTx(ctx, tx, stored.AccountID, -delta); err != nil {
				return err
			}
		}
		if err := storage.UpdateTransactionTx(ctx, tx, updated); err != nil {
			return err
		}
		if delta := BalanceDelta(updated); delta != 0 {
			if err := storage.AdjustBalanceTx(ctx, tx, updated.AccountID, delta); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("update transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction updated",
		"id", updated.ID,
		"account_id", updated.AccountID,
		"type", updated.Type,
		"amount_cents", updated.Amount.Cents,
		"previous_amount_cents", prior.Amount.Cents)

	return &updated, prior, nil
}
