package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneytrees/internal/engine"
	"moneytrees/internal/services"
	"moneytrees/internal/session"
	"moneytrees/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)

	users := services.NewUserService(store.Users(), 4)
	reset := services.NewResetService(store.Budgets(), store.Categories(), store.Expenses())
	sessions := session.NewManager(users, store.Sessions(), time.Hour)
	engines := engine.NewRegistry(engine.NewFactory(store))

	srv := NewServer(":0", store, users, reset, sessions, engines)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		store.Close()
	})
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "10.0.0.1:12345"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func registerAndLogin(t *testing.T, srv *Server, username string) string {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/api/register", "", map[string]string{
		"full_name": "Test",
		"surname":   "User",
		"username":  username,
		"email":     username + "@example.com",
		"password":  "secret1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, srv, http.MethodPost, "/api/login", "", map[string]string{
		"username": username,
		"password": "secret1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegister_Validation(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/register", "", map[string]string{
		"full_name": "Test",
		"surname":   "User",
		"username":  "alice",
		"email":     "alice@example.com",
		"password":  "abc",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "short password rejected")

	rec = doJSON(t, srv, http.MethodPost, "/api/register", "", map[string]string{"bogus": "field"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields rejected")
}

func TestLogin_BadCredentials(t *testing.T) {
	srv := newTestServer(t)
	registerAndLogin(t, srv, "alice")

	rec := doJSON(t, srv, http.MethodPost, "/api/login", "", map[string]string{
		"username": "alice",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/api/dashboard", "/api/categories", "/api/expenses", "/api/notifications"} {
		rec := doJSON(t, srv, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)

		rec = doJSON(t, srv, http.MethodGet, path, "bogus-token", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestCategories_CRUD(t *testing.T) {
	srv := newTestServer(t)
	token := registerAndLogin(t, srv, "alice")

	rec := doJSON(t, srv, http.MethodPost, "/api/categories", token, map[string]any{
		"name": "Food", "amount_cents": 30000,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Duplicate insert conflicts and leaves the stored row untouched.
	rec = doJSON(t, srv, http.MethodPost, "/api/categories", token, map[string]any{
		"name": "Food", "amount_cents": 99999,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, srv, http.MethodPut, "/api/categories", token, map[string]any{
		"name": "Food", "amount_cents": 45000,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, srv, http.MethodGet, "/api/categories", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cats []categoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cats))
	require.Len(t, cats, 1)
	assert.Equal(t, int64(45000), cats[0].Amount)

	rec = doJSON(t, srv, http.MethodDelete, "/api/categories?name=Food", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodDelete, "/api/categories?name=Food", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExpenses_CreateAndList(t *testing.T) {
	srv := newTestServer(t)
	token := registerAndLogin(t, srv, "alice")

	rec := doJSON(t, srv, http.MethodPost, "/api/expenses", token, map[string]any{
		"name": "Groceries", "category": "Food", "amount_cents": 12000, "date": "2025-03-10",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, srv, http.MethodPost, "/api/expenses", token, map[string]any{
		"name": "Bus", "category": "Transport", "amount_cents": 3000, "date": "2025-03-12",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/expenses", token, map[string]any{
		"name": "Coffee", "category": "Food", "amount": "24.50", "date": "2025-03-11",
	})
	require.Equal(t, http.StatusCreated, rec.Code, "decimal amount form accepted")

	rec = doJSON(t, srv, http.MethodPost, "/api/expenses", token, map[string]any{
		"name": "Bad amount", "category": "Food", "amount": "-5.00", "date": "2025-03-11",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/expenses", token, map[string]any{
		"name": "", "category": "Food", "amount_cents": 100, "date": "2025-03-10",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "empty name rejected")

	rec = doJSON(t, srv, http.MethodPost, "/api/expenses", token, map[string]any{
		"name": "Bad date", "category": "Food", "amount_cents": 100, "date": "10/03/2025",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/expenses", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var all []expenseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 3)

	rec = doJSON(t, srv, http.MethodGet, "/api/expenses?category=Food", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var food []expenseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &food))
	require.Len(t, food, 2)
	amounts := map[string]int64{}
	for _, e := range food {
		amounts[e.Name] = e.Amount
	}
	assert.Equal(t, int64(12000), amounts["Groceries"])
	assert.Equal(t, int64(2450), amounts["Coffee"])

	rec = doJSON(t, srv, http.MethodGet, "/api/expenses?from=2025-03-01&to=2025-03-11", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var ranged []expenseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ranged))
	assert.Len(t, ranged, 2)
}

func TestDashboard_AggregatesPerUser(t *testing.T) {
	srv := newTestServer(t)
	alice := registerAndLogin(t, srv, "alice")
	bob := registerAndLogin(t, srv, "bob")

	rec := doJSON(t, srv, http.MethodPost, "/api/budgets", alice, map[string]any{
		"type": "Monthly", "amount_cents": 200000, "min_goal_cents": 50000, "max_goal_cents": 180000,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, srv, http.MethodPost, "/api/expenses", alice, map[string]any{
		"name": "Train pass", "category": "Transport", "amount_cents": 75000, "date": "2025-03-10",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var dash dashboardResponse
	require.Eventually(t, func() bool {
		rec := doJSON(t, srv, http.MethodGet, "/api/dashboard", alice, nil)
		if rec.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &dash); err != nil {
			return false
		}
		return dash.HasBudget && dash.TotalSpent == 75000
	}, 3*time.Second, 20*time.Millisecond, "dashboard never converged")

	assert.Equal(t, 38, dash.Progress)
	assert.Equal(t, int64(125000), dash.Remaining)
	assert.Equal(t, int64(75000), dash.Breakdown["Transport"])
	assert.InDelta(t, 0.25, dash.GoalBar.Min, 1e-9)
	assert.InDelta(t, 1.0, dash.GoalBar.Max, 1e-9)

	// Bob's dashboard is untouched by alice's data.
	rec = doJSON(t, srv, http.MethodGet, "/api/dashboard", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var bobDash dashboardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bobDash))
	assert.False(t, bobDash.HasBudget)
	assert.Equal(t, int64(0), bobDash.TotalSpent)
}

func TestBudgets_LatestWins(t *testing.T) {
	srv := newTestServer(t)
	token := registerAndLogin(t, srv, "alice")

	rec := doJSON(t, srv, http.MethodGet, "/api/budgets", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "no budget yet")

	for _, cents := range []int64{100000, 150000} {
		rec := doJSON(t, srv, http.MethodPost, "/api/budgets", token, map[string]any{
			"type": "Monthly", "amount_cents": cents,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/budgets", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var b budgetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	assert.Equal(t, int64(150000), b.Amount)

	rec = doJSON(t, srv, http.MethodPost, "/api/budgets", token, map[string]any{
		"type": "Fortnightly", "amount_cents": 1000,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown budget type rejected")
}

func TestReset_ClearsBudgetsAndCategories(t *testing.T) {
	srv := newTestServer(t)
	token := registerAndLogin(t, srv, "alice")

	rec := doJSON(t, srv, http.MethodPost, "/api/budgets", token, map[string]any{
		"type": "Monthly", "amount_cents": 100000,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(t, srv, http.MethodPost, "/api/categories", token, map[string]any{
		"name": "Food", "amount_cents": 1000,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(t, srv, http.MethodPost, "/api/expenses", token, map[string]any{
		"name": "Groceries", "category": "Food", "amount_cents": 500, "date": "2025-03-10",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/reset", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/budgets", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/categories", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cats []categoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cats))
	assert.Empty(t, cats)

	rec = doJSON(t, srv, http.MethodGet, "/api/expenses", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var expenses []expenseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &expenses))
	assert.Len(t, expenses, 1, "expenses survive a plain reset")
}

func TestLogout_InvalidatesToken(t *testing.T) {
	srv := newTestServer(t)
	token := registerAndLogin(t, srv, "alice")

	rec := doJSON(t, srv, http.MethodPost, "/api/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/dashboard", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProfile_GetAndUpdate(t *testing.T) {
	srv := newTestServer(t)
	token := registerAndLogin(t, srv, "alice")

	rec := doJSON(t, srv, http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var p profileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "alice", p.Username)

	rec = doJSON(t, srv, http.MethodPut, "/api/profile", token, map[string]string{
		"email": "fresh@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, srv, http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "fresh@example.com", p.Email)
}
