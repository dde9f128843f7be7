package services

import (
	"context"
	"fmt"
	"log/slog"

	"moneytrees/internal/core"
	"moneytrees/internal/storage"
)

// ResetService implements the "reset everything" operation: bulk delete of
// one user's budgets and categories. Expenses survive a reset, matching
// the product behavior; ResetAll with expenses included is separate.
type ResetService struct {
	budgets    *storage.BudgetRepository
	categories *storage.CategoryRepository
	expenses   *storage.ExpenseRepository
}

func NewResetService(budgets *storage.BudgetRepository, categories *storage.CategoryRepository, expenses *storage.ExpenseRepository) *ResetService {
	return &ResetService{
		budgets:    budgets,
		categories: categories,
		expenses:   expenses,
	}
}

// Reset clears the user's budgets and categories.
func (s *ResetService) Reset(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return core.ErrInvalidSession
	}

	if err := s.budgets.DeleteAll(ctx, userID); err != nil {
		return fmt.Errorf("reset budgets: %w", err)
	}
	if err := s.categories.DeleteAll(ctx, userID); err != nil {
		return fmt.Errorf("reset categories: %w", err)
	}

	slog.InfoContext(ctx, "User data reset", "user_id", userID)
	return nil
}

// ResetAll additionally clears the user's expenses.
func (s *ResetService) ResetAll(ctx context.Context, userID int64) error {
	if err := s.Reset(ctx, userID); err != nil {
		return err
	}
	if err := s.expenses.DeleteAll(ctx, userID); err != nil {
		return fmt.Errorf("reset expenses: %w", err)
	}
	return nil
}
