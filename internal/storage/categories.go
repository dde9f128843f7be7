package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"moneytrees/internal/core"
)

// CategoryRepository persists spending categories. (user_id, name) is
// logically unique: inserts pre-check for an existing name and the store's
// unique index backstops races; deletes are by name so any duplicate rows
// that ever slipped in are healed in one statement.
type CategoryRepository struct {
	store *Store
}

const categoryColumns = "id, user_id, name, amount_cents"

func scanCategory(row interface{ Scan(...any) error }) (core.Category, error) {
	var c core.Category
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Amount.Cents)
	return c, err
}

// Insert adds a category, failing with core.ErrDuplicateCategory when the
// user already has one with the same name. The store is left unchanged on
// failure.
func (r *CategoryRepository) Insert(ctx context.Context, c core.Category) (int64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}

	if _, err := r.ByName(ctx, c.UserID, c.Name); err == nil {
		return 0, core.ErrDuplicateCategory
	} else if !errors.Is(err, core.ErrNotFound) {
		return 0, err
	}

	res, err := r.store.db.ExecContext(ctx,
		"INSERT INTO categories (user_id, name, amount_cents) VALUES (?, ?, ?)",
		c.UserID, c.Name, c.Amount.Cents,
	)
	if err != nil {
		mapped := mapErr(err)
		if errors.Is(mapped, core.ErrConstraintViolation) {
			// lost a race with a concurrent insert of the same name
			return 0, core.ErrDuplicateCategory
		}
		return 0, fmt.Errorf("insert category: %w", mapped)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert category id: %w", err)
	}

	slog.InfoContext(ctx, "Category created", "id", id, "user_id", c.UserID, "name", c.Name)
	r.store.feed.Publish(c.UserID, CategoryEntity)
	return id, nil
}

// Update replaces the budgeted amount of the row matched by c.ID.
func (r *CategoryRepository) Update(ctx context.Context, c core.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}

	res, err := r.store.db.ExecContext(ctx,
		"UPDATE categories SET amount_cents = ? WHERE id = ? AND user_id = ?",
		c.Amount.Cents, c.ID, c.UserID,
	)
	if err != nil {
		return fmt.Errorf("update category: %w", mapErr(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update category rows: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}

	r.store.feed.Publish(c.UserID, CategoryEntity)
	return nil
}

// DeleteByName removes every category row for (userID, name).
func (r *CategoryRepository) DeleteByName(ctx context.Context, userID int64, name string) error {
	res, err := r.store.db.ExecContext(ctx,
		"DELETE FROM categories WHERE user_id = ? AND name = ?", userID, name)
	if err != nil {
		return fmt.Errorf("delete category by name: %w", mapErr(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete category rows: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}

	slog.InfoContext(ctx, "Category deleted", "user_id", userID, "name", name, "rows", n)
	r.store.feed.Publish(userID, CategoryEntity)
	return nil
}

// DeleteAll removes every category for the user.
func (r *CategoryRepository) DeleteAll(ctx context.Context, userID int64) error {
	if _, err := r.store.db.ExecContext(ctx, "DELETE FROM categories WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("delete user categories: %w", mapErr(err))
	}
	slog.InfoContext(ctx, "Categories cleared", "user_id", userID)
	r.store.feed.Publish(userID, CategoryEntity)
	return nil
}

// List returns the user's categories ordered by name.
func (r *CategoryRepository) List(ctx context.Context, userID int64) ([]core.Category, error) {
	rows, err := r.store.db.QueryContext(ctx,
		"SELECT "+categoryColumns+" FROM categories WHERE user_id = ? ORDER BY name", userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", mapErr(err))
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// ByName returns the user's category with the given name.
func (r *CategoryRepository) ByName(ctx context.Context, userID int64, name string) (core.Category, error) {
	row := r.store.db.QueryRowContext(ctx,
		"SELECT "+categoryColumns+" FROM categories WHERE user_id = ? AND name = ? LIMIT 1", userID, name)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category by name: %w", mapErr(err))
	}
	return c, nil
}

// Subscribe streams the user's category list on every category write.
func (r *CategoryRepository) Subscribe(ctx context.Context, userID int64) <-chan []core.Category {
	return stream(ctx, r.store.feed, userID, CategoryEntity, func(ctx context.Context) ([]core.Category, error) {
		return r.List(ctx, userID)
	})
}
