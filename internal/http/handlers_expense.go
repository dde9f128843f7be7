package http

import (
	"net/http"
	"strconv"
	"strings"

	"moneytrees/internal/core"
)

type expenseRequest struct {
	Name       string `json:"name"`
	Category   string `json:"category"`
	Amount     int64  `json:"amount_cents"`
	AmountText string `json:"amount,omitempty"`
	Date       string `json:"date"`
	StartTime  string `json:"start_time,omitempty"`
	EndTime    string `json:"end_time,omitempty"`
	ImageRef   string `json:"image_ref,omitempty"`
}

type expenseResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	Amount    int64  `json:"amount_cents"`
	Date      string `json:"date"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	ImageRef  string `json:"image_ref,omitempty"`
}

func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)

	switch r.Method {
	case http.MethodPost:
		var req expenseRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}

		day, err := core.ParseDay(req.Date)
		if err != nil {
			writeError(w, err)
			return
		}
		amount, err := requestAmount(req.Amount, req.AmountText)
		if err != nil {
			writeError(w, err)
			return
		}
		e := core.Expense{
			UserID:    sess.UserID(),
			Name:      strings.TrimSpace(req.Name),
			Category:  strings.TrimSpace(req.Category),
			Amount:    amount,
			Date:      day,
			StartTime: req.StartTime,
			EndTime:   req.EndTime,
			ImageRef:  req.ImageRef,
		}
		if err := e.Validate(); err != nil {
			writeError(w, err)
			return
		}

		id, err := s.store.Expenses().Insert(r.Context(), e)
		if err != nil {
			s.logger.ErrorContext(r.Context(), "Expense insert failed", "user_id", sess.UserID(), "error", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
	case http.MethodGet:
		expenses, err := s.listExpenses(r)
		if err != nil {
			writeError(w, err)
			return
		}
		resp := make([]expenseResponse, 0, len(expenses))
		for _, e := range expenses {
			resp = append(resp, expenseResponse{
				ID:        e.ID,
				Name:      e.Name,
				Category:  e.Category,
				Amount:    e.Amount.Cents,
				Date:      e.Date.String(),
				StartTime: e.StartTime,
				EndTime:   e.EndTime,
				ImageRef:  e.ImageRef,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// listExpenses picks the query variant from the request parameters:
// ?category= filters by category name, ?from=&to= bounds by date, ?limit=
// caps at the most recent entries, otherwise the full list is returned.
func (s *Server) listExpenses(r *http.Request) ([]core.Expense, error) {
	sess := sessionFrom(r)
	repo := s.store.Expenses()
	q := r.URL.Query()

	if cat := strings.TrimSpace(q.Get("category")); cat != "" {
		return repo.ByCategory(r.Context(), sess.UserID(), cat)
	}
	if q.Get("from") != "" || q.Get("to") != "" {
		from, err := core.ParseDay(q.Get("from"))
		if err != nil {
			return nil, err
		}
		to, err := core.ParseDay(q.Get("to"))
		if err != nil {
			return nil, err
		}
		return repo.Between(r.Context(), sess.UserID(), from, to)
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, core.ErrInvalidAmount
		}
		return repo.Recent(r.Context(), sess.UserID(), n)
	}
	return repo.List(r.Context(), sess.UserID())
}
