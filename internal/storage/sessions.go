package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"moneytrees/internal/core"
)

// SessionRepository is the durable session store: the token row is the sole
// cross-restart record of who is logged in.
type SessionRepository struct {
	store *Store
}

func (r *SessionRepository) Create(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	if userID <= 0 {
		return core.ErrInvalidSession
	}
	if _, err := r.store.db.ExecContext(ctx,
		"INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)",
		token, userID, expiresAt.Unix(),
	); err != nil {
		return fmt.Errorf("create session: %w", mapErr(err))
	}
	return nil
}

// Validate resolves a token to its user id. Expired or unknown tokens fail
// with core.ErrInvalidSession.
func (r *SessionRepository) Validate(ctx context.Context, token string) (int64, error) {
	var userID int64
	err := r.store.db.QueryRowContext(ctx,
		"SELECT user_id FROM sessions WHERE token = ? AND expires_at > ?",
		token, time.Now().Unix()).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, core.ErrInvalidSession
	}
	if err != nil {
		return 0, fmt.Errorf("validate session: %w", mapErr(err))
	}
	return userID, nil
}

func (r *SessionRepository) Delete(ctx context.Context, token string) error {
	if _, err := r.store.db.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token); err != nil {
		return fmt.Errorf("delete session: %w", mapErr(err))
	}
	return nil
}

// CleanExpired removes every expired session row.
func (r *SessionRepository) CleanExpired(ctx context.Context) error {
	if _, err := r.store.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at <= ?", time.Now().Unix()); err != nil {
		return fmt.Errorf("clean expired sessions: %w", mapErr(err))
	}
	return nil
}
