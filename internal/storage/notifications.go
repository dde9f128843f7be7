package storage

import (
	"context"
	"fmt"
	"log/slog"

	"moneytrees/internal/core"
)

// NotificationRepository persists in-app notifications written by the
// notify worker when budget alert events arrive.
type NotificationRepository struct {
	store *Store
}

func (r *NotificationRepository) Insert(ctx context.Context, n core.Notification) (int64, error) {
	if n.UserID <= 0 {
		return 0, core.ErrInvalidUser
	}

	res, err := r.store.db.ExecContext(ctx,
		"INSERT INTO notifications (user_id, title, body) VALUES (?, ?, ?)",
		n.UserID, n.Title, n.Body,
	)
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", mapErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert notification id: %w", err)
	}

	slog.InfoContext(ctx, "Notification stored", "id", id, "user_id", n.UserID, "title", n.Title)
	return id, nil
}

// List returns the user's notifications, newest first.
func (r *NotificationRepository) List(ctx context.Context, userID int64) ([]core.Notification, error) {
	rows, err := r.store.db.QueryContext(ctx,
		"SELECT id, user_id, title, body, read, created_at FROM notifications WHERE user_id = ? ORDER BY created_at DESC, id DESC",
		userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", mapErr(err))
	}
	defer rows.Close()

	var notifications []core.Notification
	for rows.Next() {
		var n core.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkRead flags one of the user's notifications as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id int64) error {
	res, err := r.store.db.ExecContext(ctx,
		"UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", mapErr(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notification rows: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
