package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// AuditEntry is one row of the append-only ledger trail written by the
// auditor worker from consumed broker events.
type AuditEntry struct {
	ID            int64
	Event         string
	TransactionID int64
	AccountID     int64
	DeltaCents    int64
	RecordedAt    time.Time
}

func (r *SQLiteRepository) AppendAuditEntry(ctx context.Context, e AuditEntry) (int64, error) {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO ledger_audit (event, transaction_id, account_id, delta_cents, recorded_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.Event, e.TransactionID, e.AccountID, e.DeltaCents, toUnix(e.RecordedAt))
	if err != nil {
		return 0, fmt.Errorf("append audit entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("audit entry id: %w", err)
	}

	slog.InfoContext(ctx, "Audit entry recorded",
		"id", id,
		"event", e.Event,
		"transaction_id", e.TransactionID,
		"account_id", e.AccountID,
		"delta_cents", e.DeltaCents)

	return id, nil
}

// ListAuditEntries returns the newest audit rows for an account.
func (r *SQLiteRepository) ListAuditEntries(ctx context.Context, accountID int64, limit int) ([]AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event, transaction_id, account_id, delta_cents, recorded_at
		 FROM ledger_audit WHERE account_id = ? ORDER BY id DESC LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var (
			e          AuditEntry
			recordedAt int64
		)
		if err := rows.Scan(&e.ID, &e.Event, &e.TransactionID, &e.AccountID, &e.DeltaCents, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.RecordedAt = fromUnix(recordedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
