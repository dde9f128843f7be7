package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"moneytrees/internal/core"
)

// ExpenseRepository persists expenses. The category reference is a display
// name plus a resolved category id; an expense whose name matches no
// category keeps a NULL id and is tolerated (logged, never rejected).
type ExpenseRepository struct {
	store *Store
}

const expenseColumns = "id, user_id, name, category, category_id, amount_cents, date, start_time, end_time, image_ref, created_at"

func scanExpense(row interface{ Scan(...any) error }) (core.Expense, error) {
	var (
		e        core.Expense
		date     string
		catID    sql.NullInt64
		imageRef sql.NullString
	)
	err := row.Scan(&e.ID, &e.UserID, &e.Name, &e.Category, &catID, &e.Amount.Cents,
		&date, &e.StartTime, &e.EndTime, &imageRef, &e.CreatedAt)
	if err != nil {
		return e, err
	}
	if e.Date, err = core.ParseDay(date); err != nil {
		return e, fmt.Errorf("stored date %q: %w", date, err)
	}
	if catID.Valid {
		e.CategoryID = &catID.Int64
	}
	e.ImageRef = imageRef.String
	return e, nil
}

// Insert adds an expense, resolving the category id from the display name.
func (r *ExpenseRepository) Insert(ctx context.Context, e core.Expense) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}

	var catID sql.NullInt64
	cat, err := r.store.Categories().ByName(ctx, e.UserID, e.Category)
	switch {
	case err == nil:
		catID = sql.NullInt64{Int64: cat.ID, Valid: true}
	case errors.Is(err, core.ErrNotFound):
		slog.WarnContext(ctx, "Expense references unknown category",
			"user_id", e.UserID,
			"category", e.Category)
	default:
		return 0, err
	}

	var imageRef sql.NullString
	if e.ImageRef != "" {
		imageRef = sql.NullString{String: e.ImageRef, Valid: true}
	}

	res, err := r.store.db.ExecContext(ctx,
		"INSERT INTO expenses (user_id, name, category, category_id, amount_cents, date, start_time, end_time, image_ref) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		e.UserID, e.Name, e.Category, catID, e.Amount.Cents, e.Date.String(), e.StartTime, e.EndTime, imageRef,
	)
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", mapErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert expense id: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", id,
		"user_id", e.UserID,
		"category", e.Category,
		"amount_cents", e.Amount.Cents,
		"date", e.Date.String())

	r.store.feed.Publish(e.UserID, ExpenseEntity)
	return id, nil
}

// List returns all of the user's expenses, newest date first.
func (r *ExpenseRepository) List(ctx context.Context, userID int64) ([]core.Expense, error) {
	return r.query(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE user_id = ? ORDER BY date DESC, id DESC", userID)
}

// Recent returns the user's n most recent expenses by date.
func (r *ExpenseRepository) Recent(ctx context.Context, userID int64, n int) ([]core.Expense, error) {
	return r.query(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE user_id = ? ORDER BY date DESC, id DESC LIMIT ?", userID, n)
}

// Between returns expenses dated within [from, to], oldest first.
func (r *ExpenseRepository) Between(ctx context.Context, userID int64, from, to core.Day) ([]core.Expense, error) {
	return r.query(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE user_id = ? AND date BETWEEN ? AND ? ORDER BY date ASC, id ASC",
		userID, from.String(), to.String())
}

// ByCategory returns the user's expenses carrying the given category name.
func (r *ExpenseRepository) ByCategory(ctx context.Context, userID int64, category string) ([]core.Expense, error) {
	return r.query(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE user_id = ? AND category = ? ORDER BY date DESC, id DESC",
		userID, category)
}

func (r *ExpenseRepository) query(ctx context.Context, q string, args ...any) ([]core.Expense, error) {
	rows, err := r.store.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", mapErr(err))
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

// Total returns the sum of all the user's expense amounts.
func (r *ExpenseRepository) Total(ctx context.Context, userID int64) (core.Money, error) {
	var cents int64
	err := r.store.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount_cents), 0) FROM expenses WHERE user_id = ?", userID).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("total expenses: %w", mapErr(err))
	}
	return core.Money{Cents: cents}, nil
}

// TotalBetween returns the spend total for expenses dated within [from, to].
func (r *ExpenseRepository) TotalBetween(ctx context.Context, userID int64, from, to core.Day) (core.Money, error) {
	var cents int64
	err := r.store.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount_cents), 0) FROM expenses WHERE user_id = ? AND date BETWEEN ? AND ?",
		userID, from.String(), to.String()).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("total expenses between: %w", mapErr(err))
	}
	return core.Money{Cents: cents}, nil
}

// Breakdown groups the user's expenses by category name and sums amounts.
func (r *ExpenseRepository) Breakdown(ctx context.Context, userID int64) (map[string]core.Money, error) {
	rows, err := r.store.db.QueryContext(ctx,
		"SELECT category, SUM(amount_cents) FROM expenses WHERE user_id = ? GROUP BY category", userID)
	if err != nil {
		return nil, fmt.Errorf("expense breakdown: %w", mapErr(err))
	}
	defer rows.Close()

	breakdown := make(map[string]core.Money)
	for rows.Next() {
		var (
			name  string
			cents int64
		)
		if err := rows.Scan(&name, &cents); err != nil {
			return nil, fmt.Errorf("scan breakdown: %w", err)
		}
		breakdown[name] = core.Money{Cents: cents}
	}
	return breakdown, rows.Err()
}

// DeleteAll removes every expense for the user.
func (r *ExpenseRepository) DeleteAll(ctx context.Context, userID int64) error {
	if _, err := r.store.db.ExecContext(ctx, "DELETE FROM expenses WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("delete user expenses: %w", mapErr(err))
	}
	slog.InfoContext(ctx, "Expenses cleared", "user_id", userID)
	r.store.feed.Publish(userID, ExpenseEntity)
	return nil
}

// SubscribeTotal streams the user's running spend total on every expense
// write, starting with the current value.
func (r *ExpenseRepository) SubscribeTotal(ctx context.Context, userID int64) <-chan core.Money {
	return stream(ctx, r.store.feed, userID, ExpenseEntity, func(ctx context.Context) (core.Money, error) {
		return r.Total(ctx, userID)
	})
}

// SubscribeBreakdown streams the per-category totals on every expense write.
func (r *ExpenseRepository) SubscribeBreakdown(ctx context.Context, userID int64) <-chan map[string]core.Money {
	return stream(ctx, r.store.feed, userID, ExpenseEntity, func(ctx context.Context) (map[string]core.Money, error) {
		return r.Breakdown(ctx, userID)
	})
}

// SubscribeList streams the full expense list on every expense write.
func (r *ExpenseRepository) SubscribeList(ctx context.Context, userID int64) <-chan []core.Expense {
	return stream(ctx, r.store.feed, userID, ExpenseEntity, func(ctx context.Context) ([]core.Expense, error) {
		return r.List(ctx, userID)
	})
}
