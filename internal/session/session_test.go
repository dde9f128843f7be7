package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneytrees/internal/core"
	"moneytrees/internal/services"
	"moneytrees/internal/storage"
)

func newTestManager(t *testing.T, ttl time.Duration) (*Manager, *storage.Store, int64) {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	users := services.NewUserService(store.Users(), 4) // low cost for test speed
	userID, err := users.Register(context.Background(), core.User{
		FullName: "Test",
		Surname:  "User",
		Username: "alice",
		Email:    "alice@example.com",
	}, "secret1")
	require.NoError(t, err)

	return NewManager(users, store.Sessions(), ttl), store, userID
}

func TestManager_LoginLogout(t *testing.T) {
	mgr, _, userID := newTestManager(t, time.Hour)
	ctx := context.Background()

	sess, err := mgr.Login(ctx, "alice", "secret1")
	require.NoError(t, err)
	assert.True(t, sess.Valid())
	assert.Equal(t, userID, sess.UserID())
	assert.NotEmpty(t, sess.Token())
	assert.Same(t, sess, mgr.Current())

	require.NoError(t, mgr.Logout(ctx, sess))
	assert.Nil(t, mgr.Current())

	// The token is gone from the durable store too.
	_, err = mgr.Resume(ctx, sess.Token())
	assert.ErrorIs(t, err, core.ErrInvalidSession)
}

func TestManager_LoginBadCredentials(t *testing.T) {
	mgr, _, _ := newTestManager(t, time.Hour)

	_, err := mgr.Login(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, services.ErrBadCredentials)
	assert.Nil(t, mgr.Current())
}

func TestManager_ResumeAcrossManagers(t *testing.T) {
	mgr, store, userID := newTestManager(t, time.Hour)
	ctx := context.Background()

	sess, err := mgr.Login(ctx, "alice", "secret1")
	require.NoError(t, err)

	// A fresh manager over the same store resumes the token, as after a
	// process restart.
	mgr2 := NewManager(nil, store.Sessions(), time.Hour)
	resumed, err := mgr2.Resume(ctx, sess.Token())
	require.NoError(t, err)
	assert.Equal(t, userID, resumed.UserID())
}

func TestManager_ResumeUnknownToken(t *testing.T) {
	mgr, _, _ := newTestManager(t, time.Hour)

	_, err := mgr.Resume(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, core.ErrInvalidSession)
}

func TestManager_ExpiredSessionRejected(t *testing.T) {
	mgr, _, _ := newTestManager(t, -time.Minute)
	ctx := context.Background()

	sess, err := mgr.Login(ctx, "alice", "secret1")
	require.NoError(t, err)

	// The freshly minted token sits in the validation cache; a new manager
	// over the same durable rows sees it expired.
	_, err = NewManager(nil, mgr.sessions, time.Hour).Resume(ctx, sess.Token())
	assert.ErrorIs(t, err, core.ErrInvalidSession)

	require.NoError(t, mgr.CleanExpired(ctx))
}

func TestManager_LogoutInvalidSession(t *testing.T) {
	mgr, _, _ := newTestManager(t, time.Hour)

	err := mgr.Logout(context.Background(), nil)
	assert.ErrorIs(t, err, core.ErrInvalidSession)
}
