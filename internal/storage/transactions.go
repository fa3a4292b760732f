package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kassa/internal/core"
)

// TransactionFilter is a typed filter specification interpreted into
// SQL. Zero-valued optional fields mean "no restriction".
type TransactionFilter struct {
	AccountID  int64
	Type       *core.TransactionType
	CategoryID *int64
	From       *time.Time // inclusive
	To         *time.Time // exclusive
	Limit      int
}

// InsertTransactionTx persists a transaction row inside an open
// database transaction. The ledger engine pairs this with the balance
// adjustment so the two commit or roll back together.
func InsertTransactionTx(ctx context.Context, tx *sql.Tx, t core.Transaction) (int64, error) {
	now := time.Now()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (account_id, category_id, type, amount_cents, description, date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.AccountID, nullInt64(t.CategoryID), string(t.Type), t.Amount.Cents,
		t.Description, toUnix(t.Date), toUnix(now))
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction id: %w", err)
	}
	return id, nil
}

// GetTransactionTx reads a transaction row by id inside an open
// database transaction, without user scoping. The ledger engine uses
// it to reverse exactly what is stored, not what a caller read
// earlier.
func GetTransactionTx(ctx context.Context, tx *sql.Tx, id int64) (*core.Transaction, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT id, account_id, category_id, type, amount_cents, description, date, created_at
		 FROM transactions WHERE id = ?`, id)
	return scanTransaction(row)
}

// UpdateTransactionTx rewrites all mutable fields of a transaction row
// inside an open database transaction.
func UpdateTransactionTx(ctx context.Context, tx *sql.Tx, t core.Transaction) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET account_id = ?, category_id = ?, type = ?, amount_cents = ?, description = ?, date = ?
		 WHERE id = ?`,
		t.AccountID, nullInt64(t.CategoryID), string(t.Type), t.Amount.Cents,
		t.Description, toUnix(t.Date), t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// DeleteTransactionTx removes a transaction row inside an open
// database transaction.
func DeleteTransactionTx(ctx context.Context, tx *sql.Tx, id int64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// GetTransaction returns the transaction only when its owning account
// belongs to userID.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, userID, transactionID int64) (*core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT t.id, t.account_id, t.category_id, t.type, t.amount_cents, t.description, t.date, t.created_at
		 FROM transactions t JOIN accounts a ON a.id = t.account_id
		 WHERE t.id = ? AND a.user_id = ?`, transactionID, userID)
	return scanTransaction(row)
}

// ListTransactions returns transactions matching the filter, newest
// event date first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error) {
	query := `SELECT id, account_id, category_id, type, amount_cents, description, date, created_at
	          FROM transactions WHERE account_id = ?`
	args := []any{f.AccountID}

	if f.Type != nil {
		query += ` AND type = ?`
		args = append(args, string(*f.Type))
	}
	if f.CategoryID != nil {
		query += ` AND category_id = ?`
		args = append(args, *f.CategoryID)
	}
	if f.From != nil {
		query += ` AND date >= ?`
		args = append(args, toUnix(*f.From))
	}
	if f.To != nil {
		query += ` AND date < ?`
		args = append(args, toUnix(*f.To))
	}
	query += ` ORDER BY date DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

// ListRecentTransactions returns the user's newest transactions across
// all accounts, for the dashboard.
func (r *SQLiteRepository) ListRecentTransactions(ctx context.Context, userID int64, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.id, t.account_id, t.category_id, t.type, t.amount_cents, t.description, t.date, t.created_at
		 FROM transactions t JOIN accounts a ON a.id = t.account_id
		 WHERE a.user_id = ? ORDER BY t.date DESC, t.id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent transactions: %w", err)
	}
	defer rows.Close()

	var transactions []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

// SumByType sums transaction amounts of one type over the user's
// accounts within [from, to). Returns zero when nothing matches.
func (r *SQLiteRepository) SumByType(ctx context.Context, userID int64, typ core.TransactionType, from, to *time.Time) (core.Money, error) {
	query := `SELECT COALESCE(SUM(t.amount_cents), 0)
	          FROM transactions t JOIN accounts a ON a.id = t.account_id
	          WHERE a.user_id = ? AND t.type = ?`
	args := []any{userID, string(typ)}
	if from != nil {
		query += ` AND t.date >= ?`
		args = append(args, toUnix(*from))
	}
	if to != nil {
		query += ` AND t.date < ?`
		args = append(args, toUnix(*to))
	}

	var cents int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&cents); err != nil {
		return core.Money{}, fmt.Errorf("sum by type: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

// SumAccountByType is SumByType restricted to a single account.
func (r *SQLiteRepository) SumAccountByType(ctx context.Context, accountID int64, typ core.TransactionType, from, to *time.Time) (core.Money, error) {
	query := `SELECT COALESCE(SUM(amount_cents), 0) FROM transactions WHERE account_id = ? AND type = ?`
	args := []any{accountID, string(typ)}
	if from != nil {
		query += ` AND date >= ?`
		args = append(args, toUnix(*from))
	}
	if to != nil {
		query += ` AND date < ?`
		args = append(args, toUnix(*to))
	}

	var cents int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&cents); err != nil {
		return core.Money{}, fmt.Errorf("sum account by type: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

// GroupByCategory sums amounts of one type per category over the
// user's accounts within [from, to), descending by sum. Transactions
// without a category form their own bucket with an empty name. A
// positive limit truncates to the top N groups.
func (r *SQLiteRepository) GroupByCategory(ctx context.Context, userID int64, typ core.TransactionType, from, to *time.Time, limit int) ([]core.CategoryAmount, error) {
	query := `SELECT t.category_id, COALESCE(c.name, ''), COALESCE(c.icon, ''), SUM(t.amount_cents)
	          FROM transactions t
	          JOIN accounts a ON a.id = t.account_id
	          LEFT JOIN categories c ON c.id = t.category_id
	          WHERE a.user_id = ? AND t.type = ?`
	args := []any{userID, string(typ)}
	if from != nil {
		query += ` AND t.date >= ?`
		args = append(args, toUnix(*from))
	}
	if to != nil {
		query += ` AND t.date < ?`
		args = append(args, toUnix(*to))
	}
	query += ` GROUP BY t.category_id ORDER BY SUM(t.amount_cents) DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("group by category: %w", err)
	}
	defer rows.Close()

	var groups []core.CategoryAmount
	for rows.Next() {
		var (
			ca         core.CategoryAmount
			categoryID sql.NullInt64
		)
		if err := rows.Scan(&categoryID, &ca.Name, &ca.Icon, &ca.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan category group: %w", err)
		}
		if categoryID.Valid {
			id := categoryID.Int64
			ca.CategoryID = &id
		}
		groups = append(groups, ca)
	}
	return groups, rows.Err()
}

// TotalBalance sums the balances of all of the user's accounts.
func (r *SQLiteRepository) TotalBalance(ctx context.Context, userID int64) (core.Money, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(balance_cents), 0) FROM accounts WHERE user_id = ?`,
		userID).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("total balance: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

func scanTransaction(row rowScanner) (*core.Transaction, error) {
	var (
		t          core.Transaction
		categoryID sql.NullInt64
		typ        string
		date       int64
		createdAt  int64
	)
	err := row.Scan(&t.ID, &t.AccountID, &categoryID, &typ, &t.Amount.Cents, &t.Description, &date, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	if categoryID.Valid {
		id := categoryID.Int64
		t.CategoryID = &id
	}
	t.Type = core.TransactionType(typ)
	t.Date = fromUnix(date)
	t.CreatedAt = fromUnix(createdAt)
	return &t, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
