package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Mschirtzinger/taskflow/internal/schema"
)

// InsertTaskEvent appends an audit event. Events are never updated.
func (db *DB) InsertTaskEvent(ctx context.Context, ev *schema.TaskEvent) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("invalid task event: %w", err)
	}

	query := `
	INSERT INTO task_events (id, task_id, type, old_status, new_status, actor_id, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.conn.ExecContext(ctx, query,
		ev.ID,
		ev.TaskID,
		string(ev.Type),
		stringToNull(string(ev.OldStatus)),
		string(ev.NewStatus),
		ev.ActorID,
		formatTime(ev.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event for task %s: %w", ev.TaskID, err)
	}
	return nil
}

// ListTaskEvents returns a task's audit trail, oldest first.
func (db *DB) ListTaskEvents(ctx context.Context, taskID string) ([]*schema.TaskEvent, error) {
	query := `
	SELECT id, task_id, type, old_status, new_status, actor_id, created_at
	FROM task_events
	WHERE task_id = ?
	ORDER BY created_at ASC, id ASC
	`
	rows, err := db.conn.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query task events: %w", err)
	}
	defer rows.Close()

	var events []*schema.TaskEvent
	for rows.Next() {
		var ev schema.TaskEvent
		var typ, newStatus, createdAt string
		var oldStatus sql.NullString

		if err := rows.Scan(&ev.ID, &ev.TaskID, &typ, &oldStatus, &newStatus, &ev.ActorID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan task event: %w", err)
		}
		ev.Type = schema.EventType(typ)
		ev.OldStatus = schema.Status(oldStatus.String)
		ev.NewStatus = schema.Status(newStatus)
		ev.CreatedAt = parseTime(createdAt)
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task events: %w", err)
	}
	return events, nil
}

// CreateNotification stores a new, unread notification.
func (db *DB) CreateNotification(ctx context.Context, n *schema.Notification) error {
	if err := n.Validate(); err != nil {
		return fmt.Errorf("invalid notification: %w", err)
	}

	query := `
	INSERT INTO notifications (id, user_id, task_id, message, read, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := db.conn.ExecContext(ctx, query,
		n.ID, n.UserID, n.TaskID, n.Message, boolToInt(n.Read), formatTime(n.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create notification for user %s: %w", n.UserID, err)
	}
	return nil
}

// ListNotifications returns a user's notifications, newest first, each with
// the id, title and status of its task.
func (db *DB) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*schema.Notification, error) {
	query := `
	SELECT n.id, n.user_id, n.task_id, n.message, n.read, n.created_at,
	       t.title, t.status
	FROM notifications n
	JOIN tasks t ON t.id = n.task_id
	WHERE n.user_id = ?`
	args := []any{userID}

	if unreadOnly {
		query += ` AND n.read = 0`
	}
	query += ` ORDER BY n.created_at DESC, n.id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	notifications := []*schema.Notification{}
	for rows.Next() {
		var n schema.Notification
		var read int
		var createdAt, title, status string

		if err := rows.Scan(&n.ID, &n.UserID, &n.TaskID, &n.Message, &read, &createdAt, &title, &status); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Read = read != 0
		n.CreatedAt = parseTime(createdAt)
		n.Task = &schema.TaskSummary{ID: n.TaskID, Title: title, Status: schema.Status(status)}
		notifications = append(notifications, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}
	return notifications, nil
}

// CountUnreadNotifications returns how many unread notifications a user has.
func (db *DB) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read = 0`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkNotificationRead flips the read flag of one of the user's notifications.
// Returns sql.ErrNoRows when the notification does not belong to the user.
func (db *DB) MarkNotificationRead(ctx context.Context, userID, id string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification %s read: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark notification %s read: %w", id, err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
