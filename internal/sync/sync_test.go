package sync

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Mschirtzinger/taskflow/internal/apperr"
	"github.com/Mschirtzinger/taskflow/internal/auth"
	"github.com/Mschirtzinger/taskflow/internal/db"
	"github.com/Mschirtzinger/taskflow/internal/github"
	"github.com/Mschirtzinger/taskflow/internal/schema"
)

type transition struct {
	taskID   string
	old, new schema.Status
	actor    string
}

type recordingNotifier struct {
	calls []transition
}

func (n *recordingNotifier) StatusChanged(ctx context.Context, task *schema.Task, oldStatus, newStatus schema.Status, actorID string) {
	n.calls = append(n.calls, transition{task.ID, oldStatus, newStatus, actorID})
}

// setupTestDB creates a temporary database with a user for testing.
func setupTestDB(t *testing.T) *db.DB {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.InitSchema(); err != nil {
		t.Fatalf("Failed to init schema: %v", err)
	}
	if err := database.EnsureUser(context.Background(), "user-1", "ada@example.com"); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return database
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func issues(n int) []github.Issue {
	out := make([]github.Issue, n)
	for i := range out {
		out[i] = github.Issue{Number: i + 1, Title: "Issue", Body: "body", State: "open"}
	}
	return out
}

// TestReconcile_Idempotent tests that a second identical sync creates nothing
func TestReconcile_Idempotent(t *testing.T) {
	database := setupTestDB(t)
	r := New(database, nil, quietLogger())
	ctx := context.Background()
	req := Request{UserID: "user-1", Owner: "acme", Repo: "web", Issues: issues(5)}

	first, err := r.Reconcile(ctx, req)
	if err != nil {
		t.Fatalf("first Reconcile() failed: %v", err)
	}
	if first.Created != 5 || first.Updated != 0 || len(first.Errors) != 0 {
		t.Errorf("first = %+v, want created=5", first)
	}

	second, err := r.Reconcile(ctx, req)
	if err != nil {
		t.Fatalf("second Reconcile() failed: %v", err)
	}
	if second.Created != 0 || second.Updated != 5 {
		t.Errorf("second = %+v, want created=0 updated=5", second)
	}

	count, err := database.GetTaskCount()
	if err != nil {
		t.Fatalf("GetTaskCount() failed: %v", err)
	}
	if count != 5 {
		t.Errorf("task count = %d, want 5", count)
	}
}

// TestReconcile_PartialFailure tests that one invalid issue does not abort the batch
func TestReconcile_PartialFailure(t *testing.T) {
	database := setupTestDB(t)
	r := New(database, nil, quietLogger())

	batch := issues(4)
	batch[2].Title = "   "

	res, err := r.Reconcile(context.Background(), Request{UserID: "user-1", Owner: "acme", Repo: "web", Issues: batch})
	if err != nil {
		t.Fatalf("Reconcile() failed: %v", err)
	}
	if res.Created != 3 {
		t.Errorf("Created = %d, want 3", res.Created)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("Errors = %v, want 1", res.Errors)
	}
	if res.Errors[0] != "#3: issue title is required" {
		t.Errorf("error message = %q", res.Errors[0])
	}

	batch = []github.Issue{{Number: 0, Title: "no number"}}
	res, _ = r.Reconcile(context.Background(), Request{UserID: "user-1", Owner: "acme", Repo: "web", Issues: batch})
	if res.Created != 0 || len(res.Errors) != 1 {
		t.Errorf("zero number result = %+v", res)
	}
}

// TestReconcile_MultibyteTitle tests that title length is counted in characters
func TestReconcile_MultibyteTitle(t *testing.T) {
	database := setupTestDB(t)
	r := New(database, nil, quietLogger())

	title := strings.Repeat("界", 200) // 600 bytes
	batch := []github.Issue{{Number: 1, Title: title, State: "open"}}
	res, err := r.Reconcile(context.Background(), Request{UserID: "user-1", Owner: "acme", Repo: "web", Issues: batch})
	if err != nil {
		t.Fatalf("Reconcile() failed: %v", err)
	}
	if res.Created != 1 || len(res.Errors) != 0 {
		t.Fatalf("result = %+v, want created=1", res)
	}

	task, err := database.GetTaskByExternalRef(context.Background(), schema.ExternalRef{Source: schema.SourceGitHub, Repo: "acme/web", Number: 1})
	if err != nil {
		t.Fatalf("GetTaskByExternalRef() failed: %v", err)
	}
	if task.Title != title {
		t.Errorf("title was altered: %d bytes", len(task.Title))
	}
}

// TestReconcile_RepoNameCase tests that owner/repo spelling does not split one issue into two tasks
func TestReconcile_RepoNameCase(t *testing.T) {
	database := setupTestDB(t)
	r := New(database, nil, quietLogger())
	ctx := context.Background()
	batch := []github.Issue{{Number: 1, Title: "Same issue", State: "open"}}

	first, err := r.Reconcile(ctx, Request{UserID: "user-1", Owner: "acme", Repo: "web", Issues: batch})
	if err != nil {
		t.Fatalf("first Reconcile() failed: %v", err)
	}
	second, err := r.Reconcile(ctx, Request{UserID: "user-1", Owner: "Acme", Repo: "Web", Issues: batch})
	if err != nil {
		t.Fatalf("second Reconcile() failed: %v", err)
	}
	if first.Created != 1 || second.Created != 0 || second.Updated != 1 {
		t.Errorf("first = %+v, second = %+v", first, second)
	}

	count, err := database.GetTaskCount()
	if err != nil {
		t.Fatalf("GetTaskCount() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("task count = %d, want 1", count)
	}

	task, err := database.GetTaskByExternalRef(ctx, schema.ExternalRef{Source: schema.SourceGitHub, Repo: "acme/web", Number: 1})
	if err != nil {
		t.Fatalf("GetTaskByExternalRef() failed: %v", err)
	}
	if task.External.Repo != "acme/web" {
		t.Errorf("stored repo = %q, want acme/web", task.External.Repo)
	}
}

// TestReconcile_NewIssueStatus tests the initial status of created tasks
func TestReconcile_NewIssueStatus(t *testing.T) {
	database := setupTestDB(t)
	r := New(database, nil, quietLogger())
	ctx := context.Background()

	batch := []github.Issue{
		{Number: 1, Title: "open one", State: "open"},
		{Number: 2, Title: "closed one", State: "closed"},
	}
	if _, err := r.Reconcile(ctx, Request{UserID: "user-1", Owner: "acme", Repo: "web", Issues: batch}); err != nil {
		t.Fatalf("Reconcile() failed: %v", err)
	}

	want := map[int]schema.Status{1: schema.StatusOpen, 2: schema.StatusDone}
	for number, status := range want {
		task, err := database.GetTaskByExternalRef(ctx, schema.ExternalRef{Source: schema.SourceGitHub, Repo: "acme/web", Number: number})
		if err != nil {
			t.Fatalf("GetTaskByExternalRef(#%d) failed: %v", number, err)
		}
		if task.Status != status {
			t.Errorf("#%d status = %s, want %s", number, task.Status, status)
		}
		if task.CreatorID != "user-1" {
			t.Errorf("#%d creator = %q", number, task.CreatorID)
		}
	}
}

// TestReconcile_StatusTransitions tests local status handling on update and notification
func TestReconcile_StatusTransitions(t *testing.T) {
	database := setupTestDB(t)
	notifier := &recordingNotifier{}
	r := New(database, notifier, quietLogger())
	ctx := context.Background()
	ref := schema.ExternalRef{Source: schema.SourceGitHub, Repo: "acme/web", Number: 1}

	sync := func(state, title string) {
		t.Helper()
		req := Request{UserID: "user-1", Owner: "acme", Repo: "web", Issues: []github.Issue{{Number: 1, Title: title, State: state}}}
		res, err := r.Reconcile(ctx, req)
		if err != nil || len(res.Errors) != 0 {
			t.Fatalf("Reconcile() = %+v, %v", res, err)
		}
	}
	status := func() schema.Status {
		t.Helper()
		task, err := database.GetTaskByExternalRef(ctx, ref)
		if err != nil {
			t.Fatalf("GetTaskByExternalRef() failed: %v", err)
		}
		return task.Status
	}

	sync("open", "Bug")
	task, _ := database.GetTaskByExternalRef(ctx, ref)
	if _, err := database.UpdateTaskStatus(ctx, task.ID, schema.StatusInProgress); err != nil {
		t.Fatalf("UpdateTaskStatus() failed: %v", err)
	}

	// Open upstream keeps the local workflow status.
	sync("open", "Bug (renamed)")
	if got := status(); got != schema.StatusInProgress {
		t.Errorf("after open resync status = %s, want IN_PROGRESS", got)
	}
	if len(notifier.calls) != 0 {
		t.Errorf("unexpected notifications: %+v", notifier.calls)
	}
	if task, _ := database.GetTaskByExternalRef(ctx, ref); task.Title != "Bug (renamed)" {
		t.Errorf("title = %q, want renamed", task.Title)
	}

	sync("closed", "Bug (renamed)")
	if got := status(); got != schema.StatusDone {
		t.Errorf("after close status = %s, want DONE", got)
	}

	sync("open", "Bug (renamed)")
	if got := status(); got != schema.StatusOpen {
		t.Errorf("after reopen status = %s, want OPEN", got)
	}

	want := []transition{
		{task.ID, schema.StatusInProgress, schema.StatusDone, "user-1"},
		{task.ID, schema.StatusDone, schema.StatusOpen, "user-1"},
	}
	if len(notifier.calls) != len(want) {
		t.Fatalf("notifications = %+v, want %d", notifier.calls, len(want))
	}
	for i := range want {
		if notifier.calls[i] != want[i] {
			t.Errorf("notification %d = %+v, want %+v", i, notifier.calls[i], want[i])
		}
	}
}

func TestReconcile_InvalidRequest(t *testing.T) {
	r := New(setupTestDB(t), nil, quietLogger())
	if _, err := r.Reconcile(context.Background(), Request{Owner: "acme", Repo: "web"}); err == nil {
		t.Error("expected error without user id")
	}
	if _, err := r.Reconcile(context.Background(), Request{UserID: "user-1", Repo: "web"}); err == nil {
		t.Error("expected error without owner")
	}
}

type staticTokens struct {
	token string
}

func (s staticTokens) Resolve(ctx context.Context, sess *auth.Session, provider string) (string, error) {
	if s.token == "" {
		return "", apperr.ErrNotConnected
	}
	return s.token, nil
}

type fakeFetcher struct {
	issues []github.Issue
	err    error
	token  string
}

func (f *fakeFetcher) ListIssues(ctx context.Context, token, owner, repo string) ([]github.Issue, error) {
	f.token = token
	return f.issues, f.err
}

func (f *fakeFetcher) ListRepositories(ctx context.Context, token string) ([]github.Repository, error) {
	f.token = token
	return []github.Repository{{FullName: "acme/web"}}, f.err
}

// TestService_SyncRepository tests the token, fetch and reconcile pipeline
func TestService_SyncRepository(t *testing.T) {
	database := setupTestDB(t)
	sess := &auth.Session{UserID: "user-1"}
	ctx := context.Background()

	fetcher := &fakeFetcher{issues: issues(3)}
	svc := NewService(staticTokens{"gho_x"}, fetcher, New(database, nil, quietLogger()))

	res, err := svc.SyncRepository(ctx, sess, "acme", "web")
	if err != nil {
		t.Fatalf("SyncRepository() failed: %v", err)
	}
	if res.Created != 3 || fetcher.token != "gho_x" {
		t.Errorf("result = %+v token = %q", res, fetcher.token)
	}

	if _, err := svc.SyncRepository(ctx, sess, "", " "); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("missing fields err = %v, want ErrValidation", err)
	}

	notConnected := NewService(staticTokens{}, fetcher, New(database, nil, quietLogger()))
	if _, err := notConnected.SyncRepository(ctx, sess, "acme", "web"); !errors.Is(err, apperr.ErrNotConnected) {
		t.Errorf("err = %v, want ErrNotConnected", err)
	}
	if _, err := notConnected.Repositories(ctx, sess); !errors.Is(err, apperr.ErrNotConnected) {
		t.Errorf("Repositories err = %v, want ErrNotConnected", err)
	}

	rateLimited := NewService(staticTokens{"gho_x"}, &fakeFetcher{err: &github.RateLimitError{}}, New(database, nil, quietLogger()))
	if _, err := rateLimited.SyncRepository(ctx, sess, "acme", "web"); err == nil {
		t.Error("expected fetch error to fail the sync")
	} else if _, ok := github.AsRateLimit(err); !ok {
		t.Errorf("err = %v, want RateLimitError", err)
	}
}
