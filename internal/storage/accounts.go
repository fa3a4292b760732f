package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"kassa/internal/core"
)

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) (*core.Account, error) {
	now := time.Now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (user_id, name, balance_cents, currency, icon, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.UserID, a.Name, a.Balance.Cents, string(a.Currency), a.Icon, toUnix(now))
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("account id: %w", err)
	}

	slog.InfoContext(ctx, "Account created",
		"id", id,
		"user_id", a.UserID,
		"name", a.Name,
		"currency", a.Currency,
		"balance_cents", a.Balance.Cents)

	a.ID = id
	a.CreatedAt = now.UTC()
	return &a, nil
}

// GetAccount returns the account only when it belongs to userID;
// foreign accounts are indistinguishable from missing ones.
func (r *SQLiteRepository) GetAccount(ctx context.Context, userID, accountID int64) (*core.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, balance_cents, currency, icon, created_at
		 FROM accounts WHERE id = ? AND user_id = ?`, accountID, userID)
	return scanAccount(row)
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context, userID int64) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, balance_cents, currency, icon, created_at
		 FROM accounts WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// DeleteAccount removes the account; its transactions and recurring
// payments go with it via ON DELETE CASCADE.
func (r *SQLiteRepository) DeleteAccount(ctx context.Context, userID, accountID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM accounts WHERE id = ? AND user_id = ?`, accountID, userID)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}

	slog.InfoContext(ctx, "Account deleted", "id", accountID, "user_id", userID)
	return nil
}

// GetAccountOwner resolves an account to its owning user, for system
// writes (the scheduler) that start from an account rather than a user.
func (r *SQLiteRepository) GetAccountOwner(ctx context.Context, accountID int64) (int64, error) {
	var userID int64
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id FROM accounts WHERE id = ?`, accountID).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, core.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get account owner: %w", err)
	}
	return userID, nil
}

// GetAccountTx reads an account inside an open transaction without
// user scoping. Callers resolve ownership before entering the ledger.
func GetAccountTx(ctx context.Context, tx *sql.Tx, accountID int64) (*core.Account, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT id, user_id, name, balance_cents, currency, icon, created_at
		 FROM accounts WHERE id = ?`, accountID)
	return scanAccount(row)
}

// AdjustBalanceTx applies a signed cent delta to an account balance
// inside an open transaction. Only the ledger engine calls this.
func AdjustBalanceTx(ctx context.Context, tx *sql.Tx, accountID, deltaCents int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance_cents = balance_cents + ? WHERE id = ?`,
		deltaCents, accountID)
	if err != nil {
		return fmt.Errorf("adjust balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("adjust balance: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*core.Account, error) {
	var (
		a         core.Account
		currency  string
		createdAt int64
	)
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Balance.Cents, &currency, &a.Icon, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	a.Currency = core.Currency(currency)
	a.CreatedAt = fromUnix(createdAt)
	return &a, nil
}
