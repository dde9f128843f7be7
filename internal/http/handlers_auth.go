package http

import (
	"context"
	"net/http"

	"moneytrees/internal/core"
)

type registerRequest struct {
	FullName string `json:"full_name"`
	Surname  string `json:"surname"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token  string `json:"token"`
	UserID int64  `json:"user_id"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	u := core.User{
		FullName: req.FullName,
		Surname:  req.Surname,
		Username: req.Username,
		Email:    req.Email,
	}
	id, err := s.users.Register(r.Context(), u, req.Password)
	if err != nil {
		s.logger.WarnContext(r.Context(), "Registration failed", "username", req.Username, "error", err)
		writeError(w, err)
		return
	}

	s.logger.InfoContext(r.Context(), "User registered", "user_id", id, "username", req.Username)
	writeJSON(w, http.StatusCreated, map[string]int64{"user_id": id})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	sess, err := s.sessions.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.logger.WarnContext(r.Context(), "Login failed", "username", req.Username, "error", err)
		writeError(w, err)
		return
	}

	// Spin up the per-user aggregation engine so the first dashboard read
	// finds warm state.
	if _, err := s.engines.Acquire(context.Background(), sess); err != nil {
		s.logger.ErrorContext(r.Context(), "Engine start failed", "user_id", sess.UserID(), "error", err)
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: sess.Token(), UserID: sess.UserID()})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess := sessionFrom(r)
	s.engines.Release(sess.UserID())
	if err := s.sessions.Logout(r.Context(), sess); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

type profileResponse struct {
	UserID   int64  `json:"user_id"`
	FullName string `json:"full_name"`
	Surname  string `json:"surname"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type profileUpdateRequest struct {
	FullName    string `json:"full_name"`
	Surname     string `json:"surname"`
	Email       string `json:"email"`
	NewPassword string `json:"new_password"`
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)

	switch r.Method {
	case http.MethodGet:
		u, err := s.store.Users().ByID(r.Context(), sess.UserID())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, profileResponse{
			UserID:   u.ID,
			FullName: u.FullName,
			Surname:  u.Surname,
			Username: u.Username,
			Email:    u.Email,
		})
	case http.MethodPut, http.MethodPost:
		var req profileUpdateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		u, err := s.store.Users().ByID(r.Context(), sess.UserID())
		if err != nil {
			writeError(w, err)
			return
		}
		if req.FullName != "" {
			u.FullName = req.FullName
		}
		if req.Surname != "" {
			u.Surname = req.Surname
		}
		if req.Email != "" {
			u.Email = req.Email
		}
		if err := s.users.UpdateProfile(r.Context(), u, req.NewPassword); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
