package core

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

const (
	Monthly BudgetType = "Monthly"
	Weekly  BudgetType = "Weekly"
)

type (
	BudgetType string

	// Day is a calendar day with no time zone attached.
	Day struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	User struct {
		ID           int64
		FullName     string
		Surname      string
		Username     string
		Email        string
		PasswordHash string
		CreatedAt    time.Time
	}

	// Budget rows are append-only history; the most recently created row
	// for a user is that user's current budget.
	Budget struct {
		ID        int64
		UserID    int64
		Type      BudgetType
		Amount    Money
		MinGoal   Money
		MaxGoal   Money
		CreatedAt time.Time
	}

	Category struct {
		ID     int64
		UserID int64
		Name   string
		Amount Money
	}

	// Expense references its category by display name. CategoryID is the
	// stable link, resolved at insert time; it stays nil when no category
	// with that name exists for the user (orphans are tolerated).
	Expense struct {
		ID         int64
		UserID     int64
		Name       string
		Category   string
		CategoryID *int64
		Amount     Money
		Date       Day
		StartTime  string
		EndTime    string
		ImageRef   string
		CreatedAt  time.Time
	}

	Notification struct {
		ID        int64
		UserID    int64
		Title     string
		Body      string
		Read      bool
		CreatedAt time.Time
	}
)

// Error taxonomy. Storage maps driver failures onto these; callers branch
// with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrDuplicateCategory   = errors.New("duplicate category")
	ErrInvalidSession      = errors.New("invalid session")
	ErrStoreUnavailable    = errors.New("store unavailable")

	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyName        = errors.New("empty name")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidTime      = errors.New("invalid time of day")
	ErrInvalidUser      = errors.New("invalid user")
	ErrInvalidBudget    = errors.New("invalid budget")
	ErrWeakPassword     = errors.New("password too short")
	ErrInvalidEmail     = errors.New("invalid email address")
)

const dayLayout = "2006-01-02"

// NewDay creates a Day from year, month, day.
func NewDay(year, month, day int) Day {
	return Day{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDay parses a yyyy-mm-dd string.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return Day{}, ErrInvalidDate
	}
	return Day{Time: t}, nil
}

// Today returns the current calendar day in UTC.
func Today() Day {
	now := time.Now().UTC()
	return NewDay(now.Year(), int(now.Month()), now.Day())
}

func (d Day) String() string {
	return d.Format(dayLayout)
}

func (d Day) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (bt BudgetType) IsValid() bool {
	switch bt {
	case Monthly, Weekly:
		return true
	default:
		return false
	}
}

func (u User) Validate() error {
	if strings.TrimSpace(u.FullName) == "" ||
		strings.TrimSpace(u.Surname) == "" ||
		strings.TrimSpace(u.Username) == "" {
		return ErrInvalidUser
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

func (b Budget) Validate() error {
	if b.UserID <= 0 {
		return ErrInvalidBudget
	}
	if !b.Type.IsValid() {
		return ErrInvalidBudget
	}
	if b.Amount.Cents < 0 || b.MinGoal.Cents < 0 || b.MaxGoal.Cents < 0 {
		return ErrInvalidAmount
	}
	// MinGoal <= MaxGoal is expected but deliberately not enforced; the
	// goal bar copes with any ordering.
	return nil
}

func (c Category) Validate() error {
	if c.UserID <= 0 {
		return ErrInvalidUser
	}
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if c.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e Expense) Validate() error {
	if e.UserID <= 0 {
		return ErrInvalidUser
	}
	if strings.TrimSpace(e.Name) == "" {
		return ErrEmptyName
	}
	if len(e.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	for _, tod := range []string{e.StartTime, e.EndTime} {
		if tod == "" {
			continue
		}
		if _, err := time.Parse("15:04", tod); err != nil {
			return ErrInvalidTime
		}
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
