package http

import (
	"net/http"
	"strconv"
	"time"
)

type notificationResponse struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at"`
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)

	switch r.Method {
	case http.MethodGet:
		items, err := s.store.Notifications().List(r.Context(), sess.UserID())
		if err != nil {
			writeError(w, err)
			return
		}
		resp := make([]notificationResponse, 0, len(items))
		for _, n := range items {
			resp = append(resp, notificationResponse{
				ID:        n.ID,
				Title:     n.Title,
				Body:      n.Body,
				Read:      n.Read,
				CreatedAt: n.CreatedAt.Format(time.RFC3339),
			})
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodPost:
		// Marks the notification named by ?id= as read.
		id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
		if err != nil || id <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid notification id"})
			return
		}
		if err := s.store.Notifications().MarkRead(r.Context(), sess.UserID(), id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleReset clears the user's budgets and categories, keeping expense
// history. ?all=true clears expenses too.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess := sessionFrom(r)
	var err error
	if r.URL.Query().Get("all") == "true" {
		err = s.reset.ResetAll(r.Context(), sess.UserID())
	} else {
		err = s.reset.Reset(r.Context(), sess.UserID())
	}
	if err != nil {
		writeError(w, err)
		return
	}

	s.logger.InfoContext(r.Context(), "User data reset", "user_id", sess.UserID())
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
