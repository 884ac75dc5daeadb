// Package sync mirrors GitHub issues into local tasks.
package sync

import (
	"context"
	"strings"

	"github.com/Mschirtzinger/taskflow/internal/github"
)

// Reconciler upserts fetched GitHub issues into the task table.
//
// The reconciler is designed to be resilient - a single bad issue never
// stops the batch. Per-issue failures are logged, counted and reported
// in the Result, and the remaining issues are still processed.
type Reconciler interface {
	// SyncIssue creates or updates the task mirroring one issue.
	//
	// Returns the outcome, or an error if the issue is invalid or the
	// database update fails.
	//
	// Example:
	//   outcome, err := r.SyncIssue(ctx, "user-1", "acme/web", issue)
	SyncIssue(ctx context.Context, userID, repo string, issue github.Issue) (Outcome, error)

	// Reconcile syncs every issue in req and tallies the outcomes.
	//
	// Running Reconcile twice with the same issues creates nothing the
	// second time. The returned error is reserved for an invalid request;
	// per-issue failures end up in Result.Errors.
	//
	// Example:
	//   res, err := r.Reconcile(ctx, sync.Request{UserID: "user-1", Owner: "acme", Repo: "web", Issues: issues})
	Reconcile(ctx context.Context, req Request) (*Result, error)
}

// Outcome is what happened to a single issue.
type Outcome int

const (
	OutcomeCreated Outcome = iota + 1
	OutcomeUpdated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	}
	return "unknown"
}

// Request is one batch of issues fetched from owner/repo on behalf of UserID.
type Request struct {
	UserID string
	Owner  string
	Repo   string
	Issues []github.Issue
}

// FullName returns owner/repo in lower case. GitHub names are
// case-insensitive, so this is the form stored in external references.
func (r Request) FullName() string {
	return NormalizeRepo(r.Owner + "/" + r.Repo)
}

// NormalizeRepo returns the canonical spelling of an owner/name pair.
func NormalizeRepo(fullName string) string {
	return strings.ToLower(strings.TrimSpace(fullName))
}

// Result tallies a Reconcile call. Errors holds one "#<number>: <reason>"
// message per failed issue.
type Result struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Errors  []string `json:"errors"`
}
