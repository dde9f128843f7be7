package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"moneytrees/internal/core"
)

// BudgetRepository persists budgets. Rows are append-only history: the
// current budget for a user is the most recently created row.
type BudgetRepository struct {
	store *Store
}

const budgetColumns = "id, user_id, budget_type, amount_cents, min_goal_cents, max_goal_cents, created_at"

func scanBudget(row interface{ Scan(...any) error }) (core.Budget, error) {
	var b core.Budget
	err := row.Scan(&b.ID, &b.UserID, &b.Type, &b.Amount.Cents, &b.MinGoal.Cents, &b.MaxGoal.Cents, &b.CreatedAt)
	return b, err
}

// Insert appends a budget row and returns its identifier. Identical fields
// produce a second row, never an upsert.
func (r *BudgetRepository) Insert(ctx context.Context, b core.Budget) (int64, error) {
	if err := b.Validate(); err != nil {
		return 0, err
	}

	res, err := r.store.db.ExecContext(ctx,
		"INSERT INTO budgets (user_id, budget_type, amount_cents, min_goal_cents, max_goal_cents) VALUES (?, ?, ?, ?, ?)",
		b.UserID, string(b.Type), b.Amount.Cents, b.MinGoal.Cents, b.MaxGoal.Cents,
	)
	if err != nil {
		return 0, fmt.Errorf("insert budget: %w", mapErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert budget id: %w", err)
	}

	slog.InfoContext(ctx, "Budget recorded",
		"id", id,
		"user_id", b.UserID,
		"type", string(b.Type),
		"amount_cents", b.Amount.Cents)

	r.store.feed.Publish(b.UserID, BudgetEntity)
	return id, nil
}

// Latest returns the current budget for the user, or nil when the user has
// never recorded one.
func (r *BudgetRepository) Latest(ctx context.Context, userID int64) (*core.Budget, error) {
	row := r.store.db.QueryRowContext(ctx,
		"SELECT "+budgetColumns+" FROM budgets WHERE user_id = ? ORDER BY id DESC LIMIT 1", userID)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest budget: %w", mapErr(err))
	}
	return &b, nil
}

// Since lists the user's budget history from a point in time, oldest first.
func (r *BudgetRepository) Since(ctx context.Context, userID int64, from time.Time) ([]core.Budget, error) {
	// created_at is written by CURRENT_TIMESTAMP, so compare in its format.
	rows, err := r.store.db.QueryContext(ctx,
		"SELECT "+budgetColumns+" FROM budgets WHERE user_id = ? AND created_at >= ? ORDER BY created_at ASC",
		userID, from.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return nil, fmt.Errorf("get budgets since: %w", mapErr(err))
	}
	defer rows.Close()

	var budgets []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

// DeleteAll removes every budget row for the user in one statement.
func (r *BudgetRepository) DeleteAll(ctx context.Context, userID int64) error {
	if _, err := r.store.db.ExecContext(ctx, "DELETE FROM budgets WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("delete user budgets: %w", mapErr(err))
	}
	slog.InfoContext(ctx, "Budgets cleared", "user_id", userID)
	r.store.feed.Publish(userID, BudgetEntity)
	return nil
}

// SubscribeLatest streams the user's current budget: the present value is
// delivered immediately, then again after every budget write for that user.
// The stream closes when ctx is cancelled.
func (r *BudgetRepository) SubscribeLatest(ctx context.Context, userID int64) <-chan *core.Budget {
	return stream(ctx, r.store.feed, userID, BudgetEntity, func(ctx context.Context) (*core.Budget, error) {
		return r.Latest(ctx, userID)
	})
}
