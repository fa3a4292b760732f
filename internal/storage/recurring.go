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

func (r *SQLiteRepository) CreateRecurringPayment(ctx context.Context, rp core.RecurringPayment) (*core.RecurringPayment, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO recurring_payments (account_id, category_id, amount_cents, description, frequency, start_date, end_date, is_active, last_executed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rp.AccountID, nullInt64(rp.CategoryID), rp.Amount.Cents, rp.Description,
		string(rp.Frequency), toUnix(rp.StartDate), toNullUnix(rp.EndDate),
		boolToInt(rp.IsActive), toNullUnix(rp.LastExecuted))
	if err != nil {
		return nil, fmt.Errorf("create recurring payment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("recurring payment id: %w", err)
	}

	slog.InfoContext(ctx, "Recurring payment created",
		"id", id,
		"account_id", rp.AccountID,
		"description", rp.Description,
		"amount_cents", rp.Amount.Cents,
		"frequency", rp.Frequency)

	rp.ID = id
	return &rp, nil
}

// GetRecurringPayment returns the payment only when its account
// belongs to userID.
func (r *SQLiteRepository) GetRecurringPayment(ctx context.Context, userID, paymentID int64) (*core.RecurringPayment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT rp.id, rp.account_id, rp.category_id, rp.amount_cents, rp.description, rp.frequency,
		        rp.start_date, rp.end_date, rp.is_active, rp.last_executed
		 FROM recurring_payments rp JOIN accounts a ON a.id = rp.account_id
		 WHERE rp.id = ? AND a.user_id = ?`, paymentID, userID)
	return scanRecurringPayment(row)
}

func (r *SQLiteRepository) ListRecurringPayments(ctx context.Context, userID int64) ([]core.RecurringPayment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT rp.id, rp.account_id, rp.category_id, rp.amount_cents, rp.description, rp.frequency,
		        rp.start_date, rp.end_date, rp.is_active, rp.last_executed
		 FROM recurring_payments rp JOIN accounts a ON a.id = rp.account_id
		 WHERE a.user_id = ? ORDER BY rp.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list recurring payments: %w", err)
	}
	defer rows.Close()

	var payments []core.RecurringPayment
	for rows.Next() {
		rp, err := scanRecurringPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *rp)
	}
	return payments, rows.Err()
}

// ListDueCandidates returns active payments whose schedule has begun
// and not yet ended at now. Dueness itself is decided by the scheduler.
func (r *SQLiteRepository) ListDueCandidates(ctx context.Context, now time.Time) ([]core.RecurringPayment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, account_id, category_id, amount_cents, description, frequency,
		        start_date, end_date, is_active, last_executed
		 FROM recurring_payments
		 WHERE is_active = 1 AND start_date <= ? AND (end_date IS NULL OR end_date >= ?)
		 ORDER BY id`, toUnix(now), toUnix(now))
	if err != nil {
		return nil, fmt.Errorf("list due candidates: %w", err)
	}
	defer rows.Close()

	var payments []core.RecurringPayment
	for rows.Next() {
		rp, err := scanRecurringPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *rp)
	}
	return payments, rows.Err()
}

// SetRecurringActive toggles is_active without touching dates or
// last_executed.
func (r *SQLiteRepository) SetRecurringActive(ctx context.Context, userID, paymentID int64, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_payments SET is_active = ?
		 WHERE id = ? AND account_id IN (SELECT id FROM accounts WHERE user_id = ?)`,
		boolToInt(active), paymentID, userID)
	if err != nil {
		return fmt.Errorf("set recurring active: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set recurring active: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}

	slog.InfoContext(ctx, "Recurring payment toggled",
		"id", paymentID, "user_id", userID, "is_active", active)
	return nil
}

// UpdateLastExecuted advances the schedule cursor after an execution.
func (r *SQLiteRepository) UpdateLastExecuted(ctx context.Context, paymentID int64, executedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_payments SET last_executed = ? WHERE id = ?`,
		toUnix(executedAt), paymentID)
	if err != nil {
		return fmt.Errorf("update last executed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update last executed: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteRecurringPayment(ctx context.Context, userID, paymentID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM recurring_payments
		 WHERE id = ? AND account_id IN (SELECT id FROM accounts WHERE user_id = ?)`,
		paymentID, userID)
	if err != nil {
		return fmt.Errorf("delete recurring payment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete recurring payment: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}

	slog.InfoContext(ctx, "Recurring payment deleted", "id", paymentID, "user_id", userID)
	return nil
}

func scanRecurringPayment(row rowScanner) (*core.RecurringPayment, error) {
	var (
		rp           core.RecurringPayment
		categoryID   sql.NullInt64
		frequency    string
		startDate    int64
		endDate      sql.NullInt64
		isActive     int64
		lastExecuted sql.NullInt64
	)
	err := row.Scan(&rp.ID, &rp.AccountID, &categoryID, &rp.Amount.Cents, &rp.Description,
		&frequency, &startDate, &endDate, &isActive, &lastExecuted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan recurring payment: %w", err)
	}
	if categoryID.Valid {
		id := categoryID.Int64
		rp.CategoryID = &id
	}
	rp.Frequency = core.Frequency(frequency)
	rp.StartDate = fromUnix(startDate)
	rp.EndDate = fromNullUnix(endDate)
	rp.IsActive = isActive != 0
	rp.LastExecuted = fromNullUnix(lastExecuted)
	return &rp, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
