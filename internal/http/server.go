package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"moneytrees/internal/engine"
	applog "moneytrees/internal/log"
	"moneytrees/internal/middleware/ratelimit"
	"moneytrees/internal/middleware/trace"
	"moneytrees/internal/services"
	"moneytrees/internal/session"
	"moneytrees/internal/storage"
)

// Server is the JSON API surface. It embeds http.Server so callers can use
// ListenAndServe directly.
type Server struct {
	http.Server

	store    *storage.Store
	users    *services.UserService
	reset    *services.ResetService
	sessions *session.Manager
	engines  *engine.Registry
	logger   *applog.Logger

	// Credential endpoints share one limiter keyed by client IP.
	authLimiter *ratelimit.Limiter

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, store *storage.Store, users *services.UserService, reset *services.ResetService, sessions *session.Manager, engines *engine.Registry) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:         addr,
			Handler:      trace.Middleware(mux),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		store:       store,
		users:       users,
		reset:       reset,
		sessions:    sessions,
		engines:     engines,
		logger:      applog.New(slog.LevelInfo, "http"),
		authLimiter: ratelimit.NewLimiter(30),
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	mux.HandleFunc("/api/register", s.withRateLimit(s.handleRegister))
	mux.HandleFunc("/api/login", s.withRateLimit(s.handleLogin))
	mux.HandleFunc("/api/logout", s.withSession(s.handleLogout))
	mux.HandleFunc("/api/profile", s.withSession(s.handleProfile))

	mux.HandleFunc("/api/budgets", s.withSession(s.handleBudgets))
	mux.HandleFunc("/api/dashboard", s.withSession(s.handleDashboard))
	mux.HandleFunc("/api/categories", s.withSession(s.handleCategories))
	mux.HandleFunc("/api/expenses", s.withSession(s.handleExpenses))
	mux.HandleFunc("/api/notifications", s.withSession(s.handleNotifications))
	mux.HandleFunc("/api/reset", s.withSession(s.handleReset))

	return s
}

// Shutdown stops background goroutines and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.authLimiter.Stop()
		s.engines.Close()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
