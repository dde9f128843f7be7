package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"moneytrees/internal/core"
	"moneytrees/internal/storage"
)

// ErrBadCredentials covers both unknown-user and wrong-password so login
// failures don't leak which half was wrong.
var ErrBadCredentials = errors.New("invalid username or password")

// UserService handles registration, authentication and profile updates.
// Passwords are bcrypt-hashed before they reach the store.
type UserService struct {
	users      *storage.UserRepository
	bcryptCost int
}

func NewUserService(users *storage.UserRepository, bcryptCost int) *UserService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserService{
		users:      users,
		bcryptCost: bcryptCost,
	}
}

// Register validates the candidate user, hashes the password and inserts.
// Duplicate username or email surfaces as core.ErrConstraintViolation.
func (s *UserService) Register(ctx context.Context, u core.User, password string) (int64, error) {
	if err := u.Validate(); err != nil {
		return 0, err
	}
	if len(password) < 6 {
		return 0, core.ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)

	id, err := s.users.Create(ctx, u)
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "User registered", "id", id, "username", u.Username)
	return id, nil
}

// Authenticate verifies a username/password pair.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (core.User, error) {
	user, err := s.users.ByUsername(ctx, username)
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, ErrBadCredentials
	}
	if err != nil {
		return core.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return core.User{}, ErrBadCredentials
	}
	return user, nil
}

// UpdateProfile replaces the user's profile fields, re-hashing the
// password only when a new one is supplied.
func (s *UserService) UpdateProfile(ctx context.Context, u core.User, newPassword string) error {
	current, err := s.users.ByID(ctx, u.ID)
	if err != nil {
		return err
	}

	if newPassword != "" {
		if len(newPassword) < 6 {
			return core.ErrWeakPassword
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = string(hash)
	} else {
		u.PasswordHash = current.PasswordHash
	}

	return s.users.Update(ctx, u)
}
