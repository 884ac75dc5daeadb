// Package events records task status transitions and tells the people involved.
package events

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/Mschirtzinger/taskflow/internal/live"
	"github.com/Mschirtzinger/taskflow/internal/schema"
)

// Store is the storage the emitter writes to. *db.DB satisfies it.
type Store interface {
	InsertTaskEvent(ctx context.Context, ev *schema.TaskEvent) error
	CreateNotification(ctx context.Context, n *schema.Notification) error
}

// Publisher delivers live messages to a user's open connections.
// *live.Hub satisfies it.
type Publisher interface {
	Publish(userID string, msg live.Message)
}

// Emitter fans a status change out to the audit log, notifications and live clients.
type Emitter struct {
	store     Store
	publisher Publisher
	logger    *log.Logger
}

// New creates an Emitter. publisher may be nil.
// If logger is nil, logs to stderr with an [events] prefix.
func New(store Store, publisher Publisher, logger *log.Logger) *Emitter {
	if logger == nil {
		logger = log.New(os.Stderr, "[events] ", log.LstdFlags)
	}
	return &Emitter{store: store, publisher: publisher, logger: logger}
}

// StatusChanged records that task moved from oldStatus to newStatus because of actorID.
//
// It appends a STATUS_CHANGED event, notifies the assignee when there is one
// and it is not the actor, and publishes a task_update to the creator and
// assignee. Failures are logged and never returned: the status change has
// already happened and must not be undone by a side effect.
func (e *Emitter) StatusChanged(ctx context.Context, task *schema.Task, oldStatus, newStatus schema.Status, actorID string) {
	if oldStatus == newStatus {
		return
	}

	ev := schema.NewStatusEvent(task.ID, oldStatus, newStatus, actorID)
	if err := e.store.InsertTaskEvent(ctx, ev); err != nil {
		e.logger.Printf("WARNING: Failed to record status change of task %s: %v", task.ID, err)
	}

	var note *schema.Notification
	if task.AssigneeID != "" && task.AssigneeID != actorID {
		note = &schema.Notification{
			ID:        uuid.NewString(),
			UserID:    task.AssigneeID,
			TaskID:    task.ID,
			Message:   statusMessage(task, oldStatus, newStatus),
			CreatedAt: time.Now().UTC(),
		}
		if err := e.store.CreateNotification(ctx, note); err != nil {
			e.logger.Printf("WARNING: Failed to notify %s about task %s: %v", task.AssigneeID, task.ID, err)
			note = nil
		}
	}

	e.publish(task, oldStatus, newStatus, actorID, note)
}

func (e *Emitter) publish(task *schema.Task, oldStatus, newStatus schema.Status, actorID string, note *schema.Notification) {
	if e.publisher == nil {
		return
	}

	update, err := live.NewMessage(live.MessageTypeTaskUpdate, live.TaskUpdateData{
		TaskID:    task.ID,
		Title:     task.Title,
		OldStatus: string(oldStatus),
		NewStatus: string(newStatus),
		ActorID:   actorID,
	})
	if err != nil {
		e.logger.Printf("Failed to build task update: %v", err)
		return
	}

	e.publisher.Publish(task.CreatorID, update)
	if task.AssigneeID != "" && task.AssigneeID != task.CreatorID {
		e.publisher.Publish(task.AssigneeID, update)
	}

	if note != nil {
		msg, err := live.NewMessage(live.MessageTypeNotification, live.NotificationData{
			NotificationID: note.ID,
			TaskID:         note.TaskID,
			Message:        note.Message,
		})
		if err != nil {
			e.logger.Printf("Failed to build notification message: %v", err)
			return
		}
		e.publisher.Publish(note.UserID, msg)
	}
}

func statusMessage(task *schema.Task, oldStatus, newStatus schema.Status) string {
	if oldStatus == "" {
		return fmt.Sprintf("%q is now %s", task.Title, newStatus)
	}
	return fmt.Sprintf("%q moved from %s to %s", task.Title, oldStatus, newStatus)
}
