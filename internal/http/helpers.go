package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"moneytrees/internal/core"
	"moneytrees/internal/services"
	"moneytrees/internal/session"
)

type contextKey string

const sessionKey contextKey = "session"

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

// statusFor maps the domain error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDuplicateCategory),
		errors.Is(err, core.ErrConstraintViolation):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidSession):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrBadCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidTime),
		errors.Is(err, core.ErrInvalidUser),
		errors.Is(err, core.ErrInvalidBudget),
		errors.Is(err, core.ErrWeakPassword),
		errors.Is(err, core.ErrInvalidEmail):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON request body into dst, rejecting unknown fields
// and oversized payloads.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// requestAmount resolves a monetary amount from a request. Clients send
// either amount_cents or a decimal amount string such as "12.34"; the
// string form takes precedence when both are present.
func requestAmount(cents int64, decimal string) (core.Money, error) {
	if strings.TrimSpace(decimal) != "" {
		c, err := core.ParseDecimalToCents(decimal)
		if err != nil {
			return core.Money{}, err
		}
		return core.Money{Cents: c}, nil
	}
	return core.Money{Cents: cents}, nil
}

// clientIP extracts the client address, honoring X-Forwarded-For when a
// proxy sits in front.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// bearerToken pulls the session token from the Authorization header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

// withRateLimit guards credential endpoints against brute forcing.
func (s *Server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authLimiter.Allow(clientIP(r)) {
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}
		next(w, r)
	}
}

// withSession resumes the session named by the bearer token and stashes it
// in the request context. Requests without a valid token get 401.
func (s *Server) withSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, core.ErrInvalidSession)
			return
		}
		sess, err := s.sessions.Resume(r.Context(), token)
		if err != nil {
			writeError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey, sess)
		next(w, r.WithContext(ctx))
	}
}

// sessionFrom returns the session stored by withSession. It is only called
// from handlers behind that middleware.
func sessionFrom(r *http.Request) *session.Context {
	sess, _ := r.Context().Value(sessionKey).(*session.Context)
	return sess
}
