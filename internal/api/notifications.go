package api

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Mschirtzinger/taskflow/internal/apperr"
	"github.com/Mschirtzinger/taskflow/internal/auth"
	"github.com/Mschirtzinger/taskflow/internal/schema"
)

// notificationLimit caps a listing to the newest entries.
const notificationLimit = 50

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	sess := auth.FromContext(r.Context())
	unreadOnly := r.URL.Query().Get("unreadOnly") == "true"

	notes, err := s.deps.DB.ListNotifications(r.Context(), sess.UserID, unreadOnly, notificationLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if notes == nil {
		notes = []*schema.Notification{}
	}
	writeJSON(w, http.StatusOK, notes)
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	sess := auth.FromContext(r.Context())
	if sess == nil {
		writeJSON(w, http.StatusOK, map[string]int{"count": 0})
		return
	}

	count, err := s.deps.DB.CountUnreadNotifications(r.Context(), sess.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	sess := auth.FromContext(r.Context())
	err := s.deps.DB.MarkNotificationRead(r.Context(), sess.UserID, chi.URLParam(r, "id"))
	if errors.Is(err, sql.ErrNoRows) {
		err = apperr.ErrNotFound
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
