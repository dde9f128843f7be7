package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"moneytrees/internal/core"
)

// UserRepository persists users. Username and email are globally unique;
// duplicates surface as core.ErrConstraintViolation at write time.
type UserRepository struct {
	store *Store
}

const userColumns = "id, full_name, surname, username, email, password_hash, created_at"

func scanUser(row interface{ Scan(...any) error }) (core.User, error) {
	var u core.User
	err := row.Scan(&u.ID, &u.FullName, &u.Surname, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

// Create inserts a user and returns its new identifier. The uniqueness
// pre-checks mirror the UNIQUE indexes so the common failure reads cleanly;
// the index remains the backstop under concurrent registration.
func (r *UserRepository) Create(ctx context.Context, u core.User) (int64, error) {
	if err := u.Validate(); err != nil {
		return 0, err
	}

	for _, check := range []struct {
		exists func(context.Context, string) (bool, error)
		value  string
		what   string
	}{
		{r.UsernameExists, u.Username, "username"},
		{r.EmailExists, u.Email, "email"},
	} {
		taken, err := check.exists(ctx, check.value)
		if err != nil {
			return 0, err
		}
		if taken {
			return 0, fmt.Errorf("%w: %s already registered", core.ErrConstraintViolation, check.what)
		}
	}

	res, err := r.store.db.ExecContext(ctx,
		"INSERT INTO users (full_name, surname, username, email, password_hash) VALUES (?, ?, ?, ?, ?)",
		u.FullName, u.Surname, u.Username, u.Email, u.PasswordHash,
	)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", mapErr(err))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert user id: %w", err)
	}

	slog.InfoContext(ctx, "User created", "id", id, "username", u.Username)
	return id, nil
}

func (r *UserRepository) ByID(ctx context.Context, id int64) (core.User, error) {
	row := r.store.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id)
	u, err := scanUser(row)
	if err != nil {
		return core.User{}, fmt.Errorf("get user by id: %w", mapErr(err))
	}
	return u, nil
}

func (r *UserRepository) ByUsername(ctx context.Context, username string) (core.User, error) {
	row := r.store.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = ?", username)
	u, err := scanUser(row)
	if err != nil {
		return core.User{}, fmt.Errorf("get user by username: %w", mapErr(err))
	}
	return u, nil
}

func (r *UserRepository) ByEmail(ctx context.Context, email string) (core.User, error) {
	row := r.store.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ?", email)
	u, err := scanUser(row)
	if err != nil {
		return core.User{}, fmt.Errorf("get user by email: %w", mapErr(err))
	}
	return u, nil
}

// Update replaces the row matched by u.ID.
func (r *UserRepository) Update(ctx context.Context, u core.User) error {
	if err := u.Validate(); err != nil {
		return err
	}

	res, err := r.store.db.ExecContext(ctx,
		"UPDATE users SET full_name = ?, surname = ?, username = ?, email = ?, password_hash = ? WHERE id = ?",
		u.FullName, u.Surname, u.Username, u.Email, u.PasswordHash, u.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", mapErr(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user rows: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *UserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "SELECT 1 FROM users WHERE username = ?", username)
}

func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "SELECT 1 FROM users WHERE email = ?", email)
}

func (r *UserRepository) exists(ctx context.Context, query, arg string) (bool, error) {
	var one int
	err := r.store.db.QueryRowContext(ctx, query, arg).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("existence check: %w", mapErr(err))
	}
	return true, nil
}
