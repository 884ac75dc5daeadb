// Package schema provides the data structures stored and exchanged by TaskFlow.
package schema

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusOpen           Status = "OPEN"
	StatusInProgress     Status = "IN_PROGRESS"
	StatusReadyForReview Status = "READY_FOR_REVIEW"
	StatusDone           Status = "DONE"
)

// Statuses lists every valid status in workflow order.
var Statuses = []Status{StatusOpen, StatusInProgress, StatusReadyForReview, StatusDone}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStatus accepts a status in any case, with dashes or underscores.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), "-", "_")))
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}

// SourceGitHub identifies tasks mirrored from GitHub Issues.
const SourceGitHub = "github"

// MaxTitleLength is the longest title accepted, in characters.
const MaxTitleLength = 500

// DefaultPriority is used when a task is created without one (P2).
const DefaultPriority = 2

// ExternalRef points a task at the remote item it mirrors.
// (Source, Repo, Number) is unique across all tasks.
type ExternalRef struct {
	Source string `json:"source"`
	Repo   string `json:"repo"` // owner/name
	Number int    `json:"number"`
}

// Validate checks that every part of the reference is set.
func (r *ExternalRef) Validate() error {
	if r.Source == "" {
		return fmt.Errorf("external source is required")
	}
	if r.Repo == "" || !strings.Contains(r.Repo, "/") {
		return fmt.Errorf("external repo must be owner/name (got %q)", r.Repo)
	}
	if r.Number <= 0 {
		return fmt.Errorf("external number must be positive (got %d)", r.Number)
	}
	return nil
}

// String renders the reference as source:owner/name#number.
func (r *ExternalRef) String() string {
	return fmt.Sprintf("%s:%s#%d", r.Source, r.Repo, r.Number)
}

// Task is a unit of work owned by a creator and optionally assigned to another user.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      Status `json:"status"`
	Priority    int    `json:"priority"` // 0-4 (P0=critical, P4=backlog)

	CreatorID  string `json:"creatorId"`
	AssigneeID string `json:"assigneeId,omitempty"`

	DueAt    *time.Time   `json:"dueAt,omitempty"`
	External *ExternalRef `json:"external,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks if the Task has valid field values.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if n := utf8.RuneCountInString(t.Title); n > MaxTitleLength {
		return fmt.Errorf("title must be %d characters or less (got %d)", MaxTitleLength, n)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("invalid status %q", t.Status)
	}
	if t.Priority < 0 || t.Priority > 4 {
		return fmt.Errorf("priority must be between 0 and 4 (got %d)", t.Priority)
	}
	if t.CreatorID == "" {
		return fmt.Errorf("creator is required")
	}
	if t.External != nil {
		if err := t.External.Validate(); err != nil {
			return err
		}
	}
	if t.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if t.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	return nil
}

// SetDefaults fills in the ID, status, priority and timestamps when they are missing.
func (t *Task) SetDefaults() {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = StatusOpen
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}
}

// Summary returns the minimal fields embedded in notification listings.
func (t *Task) Summary() TaskSummary {
	return TaskSummary{ID: t.ID, Title: t.Title, Status: t.Status}
}

// TaskSummary is the compact task view attached to notifications.
type TaskSummary struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status Status `json:"status"`
}
