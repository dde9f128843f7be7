package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"moneytrees/internal/amqp"
	"moneytrees/internal/core"
	"moneytrees/internal/storage"
)

// NotifyWorker turns budget alert events into stored in-app notifications.
type NotifyWorker struct {
	notifications *storage.NotificationRepository
	users         *storage.UserRepository
}

func NewNotifyWorker(notifications *storage.NotificationRepository, users *storage.UserRepository) *NotifyWorker {
	return &NotifyWorker{
		notifications: notifications,
		users:         users,
	}
}

// HandleAlert processes a single budget alert message.
func (w *NotifyWorker) HandleAlert(ctx context.Context, msg *amqp.BudgetAlertMessage) error {
	slog.InfoContext(ctx, "Processing budget alert",
		"user_id", msg.UserID,
		"budget_id", msg.BudgetID)

	// The user must still exist; a stale event for a missing user is
	// dropped, not retried. Returning the error would have the consume
	// loop requeue the message forever.
	if _, err := w.users.ByID(ctx, msg.UserID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			slog.WarnContext(ctx, "Dropping alert for unknown user",
				"user_id", msg.UserID,
				"budget_id", msg.BudgetID)
			return nil
		}
		return fmt.Errorf("resolve alert user: %w", err)
	}

	spent := core.Money{Cents: msg.SpentCents}
	amount := core.Money{Cents: msg.AmountCents}
	over := spent.Sub(amount)

	n := core.Notification{
		UserID: msg.UserID,
		Title:  "Over budget",
		Body: fmt.Sprintf("You have spent %s of your %s budget (%s over).",
			spent, amount, over),
	}

	if _, err := w.notifications.Insert(ctx, n); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	return nil
}
