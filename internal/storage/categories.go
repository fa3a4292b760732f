package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"kassa/internal/core"
)

// EnsureCategory creates the category if the (user, name, type) triple
// is new, and returns the existing row otherwise. Duplicate creation is
// deliberately idempotent, never an error.
func (r *SQLiteRepository) EnsureCategory(ctx context.Context, c core.Category) (*core.Category, error) {
	if c.Icon == "" {
		c.Icon = "📊"
	}
	if c.Color == "" {
		c.Color = "#FF6B6B"
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (user_id, name, type, icon, color) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, name, type) DO NOTHING`,
		c.UserID, c.Name, string(c.Type), c.Icon, c.Color)
	if err != nil {
		return nil, fmt.Errorf("ensure category: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("ensure category: %w", err)
	}
	if n == 0 {
		// Conflict path: hand back the stored row.
		existing, err := r.getCategoryByTriple(ctx, c.UserID, c.Name, c.Type)
		if err != nil {
			return nil, err
		}
		slog.DebugContext(ctx, "Category already exists",
			"id", existing.ID, "user_id", c.UserID, "name", c.Name, "type", c.Type)
		return existing, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("category id: %w", err)
	}

	slog.InfoContext(ctx, "Category created",
		"id", id, "user_id", c.UserID, "name", c.Name, "type", c.Type)

	c.ID = id
	return &c, nil
}

func (r *SQLiteRepository) getCategoryByTriple(ctx context.Context, userID int64, name string, typ core.CategoryType) (*core.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, type, icon, color FROM categories
		 WHERE user_id = ? AND name = ? AND type = ?`, userID, name, string(typ))
	return scanCategory(row)
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, userID, categoryID int64) (*core.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, type, icon, color FROM categories
		 WHERE id = ? AND user_id = ?`, categoryID, userID)
	return scanCategory(row)
}

// ListCategories returns the user's categories, optionally restricted
// to one type.
func (r *SQLiteRepository) ListCategories(ctx context.Context, userID int64, typ *core.CategoryType) ([]core.Category, error) {
	query := `SELECT id, user_id, name, type, icon, color FROM categories WHERE user_id = ?`
	args := []any{userID}
	if typ != nil {
		query += ` AND type = ?`
		args = append(args, string(*typ))
	}
	query += ` ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

// DeleteCategory removes the category; referencing transactions and
// recurring payments keep their rows with a nulled category.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, userID, categoryID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM categories WHERE id = ? AND user_id = ?`, categoryID, userID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}

	slog.InfoContext(ctx, "Category deleted", "id", categoryID, "user_id", userID)
	return nil
}

func scanCategory(row rowScanner) (*core.Category, error) {
	var (
		c   core.Category
		typ string
	)
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &typ, &c.Icon, &c.Color)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan category: %w", err)
	}
	c.Type = core.CategoryType(typ)
	return &c, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
