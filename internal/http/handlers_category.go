package http

import (
	"net/http"
	"strings"

	"moneytrees/internal/core"
)

type categoryRequest struct {
	Name       string `json:"name"`
	Amount     int64  `json:"amount_cents"`
	AmountText string `json:"amount,omitempty"`
}

type categoryResponse struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Amount int64  `json:"amount_cents"`
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)

	switch r.Method {
	case http.MethodGet:
		cats, err := s.store.Categories().List(r.Context(), sess.UserID())
		if err != nil {
			writeError(w, err)
			return
		}
		resp := make([]categoryResponse, 0, len(cats))
		for _, c := range cats {
			resp = append(resp, categoryResponse{ID: c.ID, Name: c.Name, Amount: c.Amount.Cents})
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodPost:
		var req categoryRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		amount, err := requestAmount(req.Amount, req.AmountText)
		if err != nil {
			writeError(w, err)
			return
		}
		c := core.Category{
			UserID: sess.UserID(),
			Name:   strings.TrimSpace(req.Name),
			Amount: amount,
		}
		if err := c.Validate(); err != nil {
			writeError(w, err)
			return
		}
		id, err := s.store.Categories().Insert(r.Context(), c)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
	case http.MethodPut:
		var req categoryRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		amount, err := requestAmount(req.Amount, req.AmountText)
		if err != nil {
			writeError(w, err)
			return
		}
		c, err := s.store.Categories().ByName(r.Context(), sess.UserID(), strings.TrimSpace(req.Name))
		if err != nil {
			writeError(w, err)
			return
		}
		c.Amount = amount
		if err := s.store.Categories().Update(r.Context(), c); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	case http.MethodDelete:
		name := strings.TrimSpace(r.URL.Query().Get("name"))
		if name == "" {
			writeError(w, core.ErrEmptyName)
			return
		}
		if err := s.store.Categories().DeleteByName(r.Context(), sess.UserID(), name); err != nil {
			writeError(w, err)
			return
		}
		s.logger.InfoContext(r.Context(), "Category deleted", "user_id", sess.UserID(), "name", name)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
