package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/Mschirtzinger/taskflow/internal/apperr"
	"github.com/Mschirtzinger/taskflow/internal/auth"
	"github.com/Mschirtzinger/taskflow/internal/db"
	"github.com/Mschirtzinger/taskflow/internal/schema"
)

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    *int   `json:"priority"`
	AssigneeID  string `json:"assigneeId"`
	DueAt       string `json:"dueAt"`
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	sess := auth.FromContext(r.Context())
	q := r.URL.Query()

	filter := db.ListTasksFilter{UserID: sess.UserID, Repo: q.Get("repo")}
	if raw := q.Get("status"); raw != "" {
		status, err := schema.ParseStatus(raw)
		if err != nil {
			s.writeError(w, r, apperr.Invalid("status", err.Error()))
			return
		}
		filter.Status = status
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, r, apperr.Invalid("limit", "must be a non-negative integer"))
			return
		}
		filter.Limit = n
	}

	tasks, err := s.deps.DB.ListTasks(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []*schema.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	sess := auth.FromContext(r.Context())
	task, err := s.buildTask(r, sess.UserID, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.deps.DB.CreateTaskContext(r.Context(), task); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// buildTask validates a create request and returns the task to insert.
func (s *Server) buildTask(r *http.Request, creatorID string, req createTaskRequest) (*schema.Task, error) {
	v := &apperr.ValidationError{Fields: map[string]string{}}

	title := strings.TrimSpace(req.Title)
	switch {
	case title == "":
		v.Fields["title"] = "is required"
	case utf8.RuneCountInString(title) > schema.MaxTitleLength:
		v.Fields["title"] = fmt.Sprintf("must be %d characters or less", schema.MaxTitleLength)
	}

	priority := schema.DefaultPriority
	if req.Priority != nil {
		priority = *req.Priority
		if priority < 0 || priority > 4 {
			v.Fields["priority"] = "must be between 0 and 4"
		}
	}

	var dueAt *time.Time
	if req.DueAt != "" {
		t, err := time.Parse(time.RFC3339, req.DueAt)
		if err != nil {
			v.Fields["dueAt"] = "must be an RFC 3339 timestamp"
		} else {
			t = t.UTC()
			dueAt = &t
		}
	}

	assignee := strings.TrimSpace(req.AssigneeID)
	if assignee != "" {
		ok, err := s.deps.DB.UserExists(r.Context(), assignee)
		if err != nil {
			return nil, err
		}
		if !ok {
			v.Fields["assigneeId"] = "unknown user"
		}
	}

	if len(v.Fields) > 0 {
		return nil, v
	}

	task := &schema.Task{
		Title:       title,
		Description: req.Description,
		Priority:    priority,
		CreatorID:   creatorID,
		AssigneeID:  assignee,
		DueAt:       dueAt,
	}
	task.SetDefaults()
	return task, nil
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	status, err := schema.ParseStatus(req.Status)
	if err != nil {
		s.writeError(w, r, apperr.Invalid("status", err.Error()))
		return
	}

	sess := auth.FromContext(r.Context())
	task, err := s.visibleTask(r, sess.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	previous, err := s.deps.DB.UpdateTaskStatus(r.Context(), task.ID, status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	task.Status = status
	task.UpdatedAt = time.Now().UTC()
	if previous != status && s.deps.Emitter != nil {
		s.deps.Emitter.StatusChanged(r.Context(), task, previous, status, sess.UserID)
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleTaskEvents(w http.ResponseWriter, r *http.Request) {
	sess := auth.FromContext(r.Context())
	task, err := s.visibleTask(r, sess.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	evs, err := s.deps.DB.ListTaskEvents(r.Context(), task.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if evs == nil {
		evs = []*schema.TaskEvent{}
	}
	writeJSON(w, http.StatusOK, evs)
}

// visibleTask loads the {id} task when userID created it or is assigned to it.
// Tasks owned by others are reported as not found.
func (s *Server) visibleTask(r *http.Request, userID string) (*schema.Task, error) {
	task, err := s.deps.DB.GetTaskByIDContext(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if task.CreatorID != userID && task.AssigneeID != userID {
		return nil, apperr.ErrNotFound
	}
	return task, nil
}
