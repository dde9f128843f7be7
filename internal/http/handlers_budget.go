package http

import (
	"context"
	"net/http"
	"time"

	"moneytrees/internal/core"
)

type budgetRequest struct {
	Type       string `json:"type"`
	Amount     int64  `json:"amount_cents"`
	AmountText string `json:"amount,omitempty"`
	MinGoal    int64  `json:"min_goal_cents"`
	MaxGoal    int64  `json:"max_goal_cents"`
}

type budgetResponse struct {
	ID      int64  `json:"id"`
	Type    string `json:"type"`
	Amount  int64  `json:"amount_cents"`
	MinGoal int64  `json:"min_goal_cents"`
	MaxGoal int64  `json:"max_goal_cents"`
	Created string `json:"created_at"`
}

func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)

	switch r.Method {
	case http.MethodPost:
		var req budgetRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}

		amount, err := requestAmount(req.Amount, req.AmountText)
		if err != nil {
			writeError(w, err)
			return
		}
		b := core.Budget{
			UserID:  sess.UserID(),
			Type:    core.BudgetType(req.Type),
			Amount:  amount,
			MinGoal: core.Money{Cents: req.MinGoal},
			MaxGoal: core.Money{Cents: req.MaxGoal},
		}
		if err := b.Validate(); err != nil {
			writeError(w, err)
			return
		}

		eng, err := s.engines.Acquire(context.Background(), sess)
		if err != nil {
			writeError(w, err)
			return
		}
		id, err := eng.RecordBudget(r.Context(), b)
		if err != nil {
			s.logger.ErrorContext(r.Context(), "Budget insert failed", "user_id", sess.UserID(), "error", err)
			writeError(w, err)
			return
		}

		s.logger.InfoContext(r.Context(), "Budget recorded", "user_id", sess.UserID(), "budget_id", id)
		writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
	case http.MethodGet:
		b, err := s.store.Budgets().Latest(r.Context(), sess.UserID())
		if err != nil {
			writeError(w, err)
			return
		}
		if b == nil {
			writeError(w, core.ErrNotFound)
			return
		}
		writeJSON(w, http.StatusOK, toBudgetResponse(*b))
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func toBudgetResponse(b core.Budget) budgetResponse {
	return budgetResponse{
		ID:      b.ID,
		Type:    string(b.Type),
		Amount:  b.Amount.Cents,
		MinGoal: b.MinGoal.Cents,
		MaxGoal: b.MaxGoal.Cents,
		Created: b.CreatedAt.Format(time.RFC3339),
	}
}

type goalBarResponse struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Spent float64 `json:"spent"`
}

type dashboardResponse struct {
	State         string           `json:"state"`
	HasBudget     bool             `json:"has_budget"`
	CurrentBudget *budgetResponse  `json:"current_budget,omitempty"`
	TotalSpent    int64            `json:"total_spent_cents"`
	Progress      int              `json:"progress_percent"`
	Remaining     int64            `json:"remaining_cents"`
	Breakdown     map[string]int64 `json:"breakdown_cents"`
	GoalBar       goalBarResponse  `json:"goal_bar"`
}

// handleDashboard serves the aggregated view for the session's user. The
// engine recombines last-known budget, total and breakdown values, so this
// read never touches the database.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess := sessionFrom(r)
	eng, err := s.engines.Acquire(context.Background(), sess)
	if err != nil {
		writeError(w, err)
		return
	}

	view := eng.Snapshot()
	resp := dashboardResponse{
		State:      eng.State().String(),
		HasBudget:  view.HasBudget,
		TotalSpent: view.TotalSpent.Cents,
		Progress:   view.Progress,
		Remaining:  view.Remaining.Cents,
		Breakdown:  make(map[string]int64, len(view.Breakdown)),
		GoalBar: goalBarResponse{
			Min:   view.GoalBar.Min,
			Max:   view.GoalBar.Max,
			Spent: view.GoalBar.Spent,
		},
	}
	for name, amt := range view.Breakdown {
		resp.Breakdown[name] = amt.Cents
	}
	if view.CurrentBudget != nil {
		b := toBudgetResponse(*view.CurrentBudget)
		resp.CurrentBudget = &b
	}

	writeJSON(w, http.StatusOK, resp)
}
