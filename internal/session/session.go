// Package session scopes all repository and engine work to the active
// user. A Context is created by login (or resumed from the durable token
// store) and passed by injection; nothing reads the active user id out of
// ambient global state.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"moneytrees/internal/cache"
	"moneytrees/internal/core"
	"moneytrees/internal/storage"
)

// Resume is called per request, so validated tokens are cached briefly to
// keep the hot path off the database. The TTL is short enough that a
// deleted token stops resolving almost immediately.
const (
	tokenCacheSize = 1024
	tokenCacheTTL  = time.Minute
)

// Context holds the active user identifier for one login. It is immutable:
// logout discards it rather than mutating it.
type Context struct {
	userID int64
	token  string
}

func (c *Context) UserID() int64 {
	if c == nil {
		return 0
	}
	return c.userID
}

func (c *Context) Token() string {
	if c == nil {
		return ""
	}
	return c.token
}

func (c *Context) Valid() bool {
	return c != nil && c.userID > 0
}

// Authenticator verifies credentials. The user service implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (core.User, error)
}

// Manager is the single writer of session state: login mints a durable
// token and a Context, logout deletes both. Everything else only reads.
type Manager struct {
	auth     Authenticator
	sessions *storage.SessionRepository
	ttl      time.Duration
	tokens   *cache.LRU[int64]

	mu      sync.RWMutex
	current *Context
}

func NewManager(auth Authenticator, sessions *storage.SessionRepository, ttl time.Duration) *Manager {
	return &Manager{
		auth:     auth,
		sessions: sessions,
		ttl:      ttl,
		tokens:   cache.NewLRU[int64](tokenCacheSize, tokenCacheTTL),
	}
}

// Login verifies credentials, persists a session token and makes the new
// Context current.
func (m *Manager) Login(ctx context.Context, username, password string) (*Context, error) {
	user, err := m.auth.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}

	token, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("mint session token: %w", err)
	}
	if err := m.sessions.Create(ctx, token, user.ID, time.Now().Add(m.ttl)); err != nil {
		return nil, err
	}
	m.tokens.Put(token, user.ID)

	sess := &Context{userID: user.ID, token: token}
	m.mu.Lock()
	m.current = sess
	m.mu.Unlock()

	slog.InfoContext(ctx, "Session opened", "user_id", user.ID)
	return sess, nil
}

// Resume rebuilds a Context from a stored token, e.g. on each API request.
func (m *Manager) Resume(ctx context.Context, token string) (*Context, error) {
	userID, ok := m.tokens.Get(token)
	if !ok {
		var err error
		userID, err = m.sessions.Validate(ctx, token)
		if err != nil {
			return nil, err
		}
		m.tokens.Put(token, userID)
	}

	sess := &Context{userID: userID, token: token}
	m.mu.Lock()
	m.current = sess
	m.mu.Unlock()
	return sess, nil
}

// Logout deletes the session's token and clears it as current.
func (m *Manager) Logout(ctx context.Context, sess *Context) error {
	if !sess.Valid() {
		return core.ErrInvalidSession
	}
	if err := m.sessions.Delete(ctx, sess.Token()); err != nil {
		return err
	}
	m.tokens.Drop(sess.Token())

	m.mu.Lock()
	if m.current != nil && m.current.Token() == sess.Token() {
		m.current = nil
	}
	m.mu.Unlock()

	slog.InfoContext(ctx, "Session closed", "user_id", sess.UserID())
	return nil
}

// Current returns the most recently opened session, or nil.
func (m *Manager) Current() *Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// CleanExpired removes expired token rows.
func (m *Manager) CleanExpired(ctx context.Context) error {
	return m.sessions.CleanExpired(ctx)
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
