package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Mschirtzinger/taskflow/internal/schema"
)

const taskColumns = `id, title, description, status, priority, creator_id, assignee_id,
	due_at, external_source, external_repo, external_number, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// EnsureUser records a user the first time it is seen and refreshes the email after that.
func (db *DB) EnsureUser(ctx context.Context, id, email string) error {
	if id == "" {
		return fmt.Errorf("user id is required")
	}
	query := `
	INSERT INTO users (id, email, created_at) VALUES (?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET email = COALESCE(NULLIF(excluded.email, ''), users.email)
	`
	if _, err := db.conn.ExecContext(ctx, query, id, email, formatTime(time.Now())); err != nil {
		return fmt.Errorf("failed to ensure user %s: %w", id, err)
	}
	return nil
}

// UserExists reports whether a user with id has been recorded.
func (db *DB) UserExists(ctx context.Context, id string) (bool, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE id = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to look up user %s: %w", id, err)
	}
	return n > 0, nil
}

// CreateTask inserts a new task.
func (db *DB) CreateTask(task *schema.Task) error {
	return db.CreateTaskContext(context.Background(), task)
}

// CreateTaskContext inserts a new task with context support.
func (db *DB) CreateTaskContext(ctx context.Context, task *schema.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	source, repo, number := externalArgs(task.External)
	query := `INSERT INTO tasks (` + taskColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.conn.ExecContext(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		string(task.Status),
		task.Priority,
		task.CreatorID,
		stringToNull(task.AssigneeID),
		timeToNullString(task.DueAt),
		source,
		repo,
		number,
		formatTime(task.CreatedAt),
		formatTime(task.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// UpsertResult describes the outcome of UpsertTaskByExternalRef.
type UpsertResult struct {
	Task           *schema.Task
	Created        bool
	PreviousStatus schema.Status // empty when Created
}

// UpsertTaskByExternalRef creates or updates the task mirroring task.External.
//
// An existing row keeps its ID, creator, assignee, priority and due date;
// title, description, status and updated_at are overwritten. The write is a
// single INSERT .. ON CONFLICT statement on the external-reference index.
func (db *DB) UpsertTaskByExternalRef(ctx context.Context, task *schema.Task) (*UpsertResult, error) {
	if task.External == nil {
		return nil, fmt.Errorf("invalid task: external reference is required")
	}
	if err := task.Validate(); err != nil {
		return nil, fmt.Errorf("invalid task: %w", err)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var previous schema.Status
	existing, err := getTaskByExternalRef(ctx, tx, *task.External)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, err
	default:
		previous = existing.Status
	}

	source, repo, number := externalArgs(task.External)
	query := `INSERT INTO tasks (` + taskColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(external_source, external_repo, external_number) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		status = excluded.status,
		updated_at = excluded.updated_at
	`
	_, err = tx.ExecContext(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		string(task.Status),
		task.Priority,
		task.CreatorID,
		stringToNull(task.AssigneeID),
		timeToNullString(task.DueAt),
		source,
		repo,
		number,
		formatTime(task.CreatedAt),
		formatTime(task.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert task %s: %w", task.External, err)
	}

	stored, err := getTaskByExternalRef(ctx, tx, *task.External)
	if err != nil {
		return nil, fmt.Errorf("failed to reload task %s: %w", task.External, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &UpsertResult{
		Task:           stored,
		Created:        existing == nil,
		PreviousStatus: previous,
	}, nil
}

// GetTaskByID retrieves a single task by ID.
// Returns sql.ErrNoRows if the task is not found.
func (db *DB) GetTaskByID(id string) (*schema.Task, error) {
	return db.GetTaskByIDContext(context.Background(), id)
}

// GetTaskByIDContext retrieves a single task by ID with context support.
func (db *DB) GetTaskByIDContext(ctx context.Context, id string) (*schema.Task, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

// GetTaskByExternalRef retrieves the task mirroring ref.
// Returns sql.ErrNoRows if no task mirrors it yet.
func (db *DB) GetTaskByExternalRef(ctx context.Context, ref schema.ExternalRef) (*schema.Task, error) {
	return getTaskByExternalRef(ctx, db.conn, ref)
}

func getTaskByExternalRef(ctx context.Context, q queryer, ref schema.ExternalRef) (*schema.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks
	WHERE external_source = ? AND external_repo = ? AND external_number = ?`
	return scanTask(q.QueryRowContext(ctx, query, ref.Source, ref.Repo, ref.Number))
}

// UpdateTaskStatus sets a task's status and returns the status it had before.
// Returns sql.ErrNoRows if the task is not found.
func (db *DB) UpdateTaskStatus(ctx context.Context, id string, status schema.Status) (schema.Status, error) {
	if !status.Valid() {
		return "", fmt.Errorf("invalid status %q", status)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var previous string
	if err := tx.QueryRowContext(ctx, `SELECT status FROM tasks WHERE id = ?`, id).Scan(&previous); err != nil {
		return "", err
	}

	_, err = tx.ExecContext(ctx, `UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(time.Now()), id)
	if err != nil {
		return "", fmt.Errorf("failed to update status of task %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return schema.Status(previous), nil
}

// GetTaskCount returns the total number of tasks in the database.
func (db *DB) GetTaskCount() (int, error) {
	return db.GetTaskCountContext(context.Background())
}

// GetTaskCountContext returns the total number of tasks with context support.
func (db *DB) GetTaskCountContext(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get task count: %w", err)
	}
	return count, nil
}

// ListTasksFilter configures the ListTasks query.
type ListTasksFilter struct {
	// UserID limits results to tasks created by or assigned to this user (empty = all)
	UserID string
	// Status filters by task status (empty = all statuses)
	Status schema.Status
	// Repo filters to tasks mirroring this owner/name repository (empty = all)
	Repo string
	// Limit restricts the number of results (0 = no limit)
	Limit int
}

// ListTasks retrieves tasks matching the given filter, newest update first.
func (db *DB) ListTasks(ctx context.Context, filter ListTasksFilter) ([]*schema.Task, error) {
	var conditions []string
	var args []any

	if filter.UserID != "" {
		conditions = append(conditions, "(creator_id = ? OR assignee_id = ?)")
		args = append(args, filter.UserID, filter.UserID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Repo != "" {
		conditions = append(conditions, "external_repo = ?")
		args = append(args, filter.Repo)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY updated_at DESC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*schema.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

func scanTask(row rowScanner) (*schema.Task, error) {
	var task schema.Task
	var status string
	var assignee, dueAt, source, repo sql.NullString
	var number sql.NullInt64
	var createdAt, updatedAt string

	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&status,
		&task.Priority,
		&task.CreatorID,
		&assignee,
		&dueAt,
		&source,
		&repo,
		&number,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Status = schema.Status(status)
	task.AssigneeID = assignee.String
	task.DueAt = nullStringToTime(dueAt)
	task.CreatedAt = parseTime(createdAt)
	task.UpdatedAt = parseTime(updatedAt)
	if source.Valid {
		task.External = &schema.ExternalRef{
			Source: source.String,
			Repo:   repo.String,
			Number: int(number.Int64),
		}
	}
	return &task, nil
}

func externalArgs(ref *schema.ExternalRef) (sql.NullString, sql.NullString, sql.NullInt64) {
	if ref == nil {
		return sql.NullString{}, sql.NullString{}, sql.NullInt64{}
	}
	return sql.NullString{String: ref.Source, Valid: true},
		sql.NullString{String: ref.Repo, Valid: true},
		sql.NullInt64{Int64: int64(ref.Number), Valid: true}
}
