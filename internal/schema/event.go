package schema

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType classifies audit events.
type EventType string

const (
	// EventStatusChanged is written once per observed status transition.
	EventStatusChanged EventType = "STATUS_CHANGED"
)

// TaskEvent is an immutable audit record. Rows are only ever appended.
type TaskEvent struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	Type      EventType `json:"type"`
	OldStatus Status    `json:"oldStatus,omitempty"`
	NewStatus Status    `json:"newStatus"`
	ActorID   string    `json:"actorId"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewStatusEvent builds a STATUS_CHANGED event stamped with the current time.
func NewStatusEvent(taskID string, oldStatus, newStatus Status, actorID string) *TaskEvent {
	return &TaskEvent{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		Type:      EventStatusChanged,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		ActorID:   actorID,
		CreatedAt: time.Now().UTC(),
	}
}

// Validate checks if the TaskEvent has valid field values.
func (e *TaskEvent) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("id is required")
	}
	if e.TaskID == "" {
		return fmt.Errorf("task_id is required")
	}
	if e.Type == "" {
		return fmt.Errorf("type is required")
	}
	if !e.NewStatus.Valid() {
		return fmt.Errorf("invalid new status %q", e.NewStatus)
	}
	if e.OldStatus != "" && !e.OldStatus.Valid() {
		return fmt.Errorf("invalid old status %q", e.OldStatus)
	}
	if e.ActorID == "" {
		return fmt.Errorf("actor_id is required")
	}
	return nil
}

// Notification tells a user that something happened to a task.
// Read is the only field mutated after creation.
type Notification struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId"`
	TaskID    string       `json:"taskId"`
	Message   string       `json:"message"`
	Read      bool         `json:"read"`
	CreatedAt time.Time    `json:"createdAt"`
	Task      *TaskSummary `json:"task,omitempty"`
}

// Validate checks if the Notification has valid field values.
func (n *Notification) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("id is required")
	}
	if n.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if n.TaskID == "" {
		return fmt.Errorf("task_id is required")
	}
	return nil
}

// User is the local record of an identity-provider subject.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
