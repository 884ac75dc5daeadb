package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/Mschirtzinger/taskflow/internal/db"
	"github.com/Mschirtzinger/taskflow/internal/github"
	"github.com/Mschirtzinger/taskflow/internal/schema"
)

// TaskStore is the storage the reconciler writes to. *db.DB satisfies it.
type TaskStore interface {
	GetTaskByExternalRef(ctx context.Context, ref schema.ExternalRef) (*schema.Task, error)
	UpsertTaskByExternalRef(ctx context.Context, task *schema.Task) (*db.UpsertResult, error)
}

// StatusNotifier is told about every status transition sync causes.
type StatusNotifier interface {
	StatusChanged(ctx context.Context, task *schema.Task, oldStatus, newStatus schema.Status, actorID string)
}

// reconciler implements the Reconciler interface.
type reconciler struct {
	store    TaskStore
	notifier StatusNotifier
	logger   *log.Logger
}

// New creates a new Reconciler.
//
// The database must have its schema initialized. notifier may be nil, in
// which case status transitions are only logged.
//
// If logger is nil, a default logger writing to stderr is used.
//
// Example:
//
//	database, err := db.Open("data/taskflow.db")
//	if err != nil {
//	    return err
//	}
//	if err := database.InitSchema(); err != nil {
//	    return err
//	}
//	r := sync.New(database, emitter, nil)
func New(store TaskStore, notifier StatusNotifier, logger *log.Logger) Reconciler {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &reconciler{
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// SyncIssue implements Reconciler.SyncIssue.
func (r *reconciler) SyncIssue(ctx context.Context, userID, repo string, issue github.Issue) (Outcome, error) {
	if err := validateIssue(issue); err != nil {
		return 0, err
	}

	ref := schema.ExternalRef{Source: schema.SourceGitHub, Repo: NormalizeRepo(repo), Number: issue.Number}

	var existing *schema.Status
	current, err := r.store.GetTaskByExternalRef(ctx, ref)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return 0, fmt.Errorf("failed to look up task: %w", err)
	default:
		existing = &current.Status
	}

	now := time.Now().UTC()
	task := &schema.Task{
		Title:       strings.TrimSpace(issue.Title),
		Description: issue.Body,
		Status:      statusFor(issue, existing),
		Priority:    schema.DefaultPriority,
		CreatorID:   userID,
		External:    &ref,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	task.SetDefaults()

	res, err := r.store.UpsertTaskByExternalRef(ctx, task)
	if err != nil {
		return 0, fmt.Errorf("failed to sync task to database: %w", err)
	}

	if res.Created {
		r.logger.Printf("Created task %s from %s (%s)", res.Task.ID, ref.String(), res.Task.Title)
		return OutcomeCreated, nil
	}

	if res.PreviousStatus != res.Task.Status {
		r.logger.Printf("Status of %s changed: %s -> %s", ref.String(), res.PreviousStatus, res.Task.Status)
		if r.notifier != nil {
			r.notifier.StatusChanged(ctx, res.Task, res.PreviousStatus, res.Task.Status, userID)
		}
	}
	return OutcomeUpdated, nil
}

// Reconcile implements Reconciler.Reconcile.
func (r *reconciler) Reconcile(ctx context.Context, req Request) (*Result, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if req.Owner == "" || req.Repo == "" {
		return nil, fmt.Errorf("repository owner and name are required")
	}

	repo := req.FullName()
	r.logger.Printf("Starting sync of %s: %d issues", repo, len(req.Issues))

	res := &Result{Errors: []string{}}
	for _, issue := range req.Issues {
		outcome, err := r.SyncIssue(ctx, req.UserID, repo, issue)
		if err != nil {
			r.logger.Printf("WARNING: Failed to sync issue #%d of %s: %v", issue.Number, repo, err)
			res.Errors = append(res.Errors, fmt.Sprintf("#%d: %v", issue.Number, err))
			continue
		}

		switch outcome {
		case OutcomeCreated:
			res.Created++
		case OutcomeUpdated:
			res.Updated++
		}
	}

	r.logger.Printf("Sync of %s complete: created=%d updated=%d failed=%d",
		repo, res.Created, res.Updated, len(res.Errors))
	return res, nil
}

func validateIssue(issue github.Issue) error {
	if issue.Number <= 0 {
		return fmt.Errorf("issue number must be positive (got %d)", issue.Number)
	}
	if strings.TrimSpace(issue.Title) == "" {
		return fmt.Errorf("issue title is required")
	}
	return nil
}

// statusFor decides the local status of an issue's task. existing is the
// current local status, nil when no task mirrors the issue yet.
//
// New tasks start OPEN, or DONE for closed issues. For existing tasks a
// closed issue forces DONE and a reopened issue moves DONE back to OPEN;
// otherwise the local workflow status is kept.
func statusFor(issue github.Issue, existing *schema.Status) schema.Status {
	if issue.Closed() {
		return schema.StatusDone
	}
	if existing == nil || *existing == schema.StatusDone {
		return schema.StatusOpen
	}
	return *existing
}
