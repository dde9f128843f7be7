package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"moneytrees/internal/core"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the shared entity store: one SQLite database holding users,
// budgets, categories, expenses, sessions and notifications, plus the
// in-process changefeed that repositories publish writes to.
type Store struct {
	db   *sql.DB
	feed *Changefeed
}

func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := migrateSchema(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{
		db:   db,
		feed: NewChangefeed(),
	}, nil
}

// migrateSchema brings the embedded schema up to date. Migrations run on
// their own connection: migrate.Close tears its database handle down, and
// the store's handle must outlive it.
func migrateSchema(dbPath string) error {
	mdb, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer mdb.Close()

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("read embedded migrations: %w", err)
	}
	drv, err := migratesqlite.WithInstance(mdb, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("wrap migration connection: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		return fmt.Errorf("build migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.feed != nil {
		s.feed.Close()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping verifies the database connection is still usable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return nil
}

// Feed exposes the changefeed for subscription streams.
func (s *Store) Feed() *Changefeed {
	return s.feed
}

// Users returns the user repository backed by this store.
func (s *Store) Users() *UserRepository {
	return &UserRepository{store: s}
}

// Budgets returns the budget repository backed by this store.
func (s *Store) Budgets() *BudgetRepository {
	return &BudgetRepository{store: s}
}

// Categories returns the category repository backed by this store.
func (s *Store) Categories() *CategoryRepository {
	return &CategoryRepository{store: s}
}

// Expenses returns the expense repository backed by this store.
func (s *Store) Expenses() *ExpenseRepository {
	return &ExpenseRepository{store: s}
}

// Notifications returns the notification repository backed by this store.
func (s *Store) Notifications() *NotificationRepository {
	return &NotificationRepository{store: s}
}

// Sessions returns the session repository backed by this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{store: s}
}

// mapErr translates driver errors into the core taxonomy so callers can
// branch with errors.Is without importing the driver.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return core.ErrNotFound
	case isConstraintErr(err):
		return fmt.Errorf("%w: %v", core.ErrConstraintViolation, err)
	case errors.Is(err, sql.ErrConnDone), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	default:
		return err
	}
}

func isConstraintErr(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "constraint")
}
