package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Mschirtzinger/taskflow/internal/auth"
	"github.com/Mschirtzinger/taskflow/internal/db"
	"github.com/Mschirtzinger/taskflow/internal/events"
	"github.com/Mschirtzinger/taskflow/internal/github"
	"github.com/Mschirtzinger/taskflow/internal/live"
	"github.com/Mschirtzinger/taskflow/internal/schema"
	"github.com/Mschirtzinger/taskflow/internal/secret"
	tfsync "github.com/Mschirtzinger/taskflow/internal/sync"
	"github.com/Mschirtzinger/taskflow/internal/tokens"
)

// testEnv is a server backed by a real SQLite file and a fake GitHub API.
type testEnv struct {
	t       *testing.T
	server  *Server
	db      *db.DB
	auth    *auth.JWTAuthenticator
	tokens  *tokens.Store
	handler http.HandlerFunc // fake GitHub behaviour, swappable per test
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	quiet := log.New(io.Discard, "", 0)

	database, err := db.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := database.InitSchema(); err != nil {
		t.Fatalf("Failed to init schema: %v", err)
	}

	authn, err := auth.NewJWTAuthenticator("api-test-jwt-secret-value", "")
	if err != nil {
		t.Fatalf("NewJWTAuthenticator() failed: %v", err)
	}
	box, err := secret.New("api-test-encryption-key")
	if err != nil {
		t.Fatalf("secret.New() failed: %v", err)
	}

	env := &testEnv{t: t, db: database, auth: authn}
	env.handler = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}
	gh := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.handler(w, r)
	}))
	t.Cleanup(gh.Close)

	hub := live.NewHub(&live.Config{Logger: quiet})
	t.Cleanup(hub.Stop)

	env.tokens = tokens.New(database, box, quiet)
	emitter := events.New(database, hub, quiet)
	reconciler := tfsync.New(database, emitter, quiet)
	service := tfsync.NewService(env.tokens, github.NewClient(gh.URL, nil), reconciler)

	env.server = New(Deps{
		DB:      database,
		Auth:    authn,
		Tokens:  env.tokens,
		Sync:    service,
		Emitter: emitter,
		Live:    hub,
		Logger:  quiet,
	})
	return env
}

// token issues a session token, optionally carrying a GitHub token in metadata.
func (e *testEnv) token(userID, githubToken string) string {
	e.t.Helper()
	sess := &auth.Session{UserID: userID, Email: userID + "@example.com"}
	if githubToken != "" {
		sess.Metadata = map[string]any{tokens.MetadataKey(schema.ProviderGitHub): githubToken}
	}
	tok, err := e.auth.Issue(sess, time.Hour)
	if err != nil {
		e.t.Fatalf("Issue() failed: %v", err)
	}
	return tok
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func issuesJSON(issues ...github.Issue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(issues)
	}
}

// TestHealth tests the liveness endpoint
func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

// TestDataEndpoints_RequireSession tests that every data endpoint answers 401 without a session
func TestDataEndpoints_RequireSession(t *testing.T) {
	env := newTestEnv(t)

	endpoints := []struct{ method, path string }{
		{http.MethodGet, "/api/github/repos"},
		{http.MethodPost, "/api/github/sync"},
		{http.MethodGet, "/api/github/connect"},
		{http.MethodGet, "/api/github/callback"},
		{http.MethodDelete, "/api/github/connection"},
		{http.MethodGet, "/api/notifications"},
		{http.MethodPost, "/api/notifications/n1/read"},
		{http.MethodGet, "/api/tasks"},
		{http.MethodPost, "/api/tasks"},
		{http.MethodPatch, "/api/tasks/t1/status"},
		{http.MethodGet, "/api/tasks/t1/events"},
		{http.MethodGet, "/api/live"},
	}
	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			rec := env.do(ep.method, ep.path, "", nil)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			if body := decode[errorBody](t, rec); body.Error != "Unauthorized" {
				t.Errorf("error = %q", body.Error)
			}
		})
	}

	if rec := env.do(http.MethodGet, "/api/tasks", "not-a-jwt", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token status = %d, want 401", rec.Code)
	}
}

// TestUnreadCount_Anonymous tests that unread-count answers zero without a session
func TestUnreadCount_Anonymous(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/api/notifications/unread-count", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := decode[map[string]int](t, rec); got["count"] != 0 {
		t.Errorf("count = %d, want 0", got["count"])
	}
}

// TestSync_MissingToken tests that repos and sync answer 400 when GitHub is not connected
func TestSync_MissingToken(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token("user-1", "")

	rec := env.do(http.MethodGet, "/api/github/repos", tok, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("repos status = %d, want 400", rec.Code)
	}

	rec = env.do(http.MethodPost, "/api/github/sync", tok, syncRequest{RepoOwner: "acme", RepoName: "web"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("sync status = %d, want 400", rec.Code)
	}
	if body := decode[errorBody](t, rec); !strings.Contains(body.Error, "not connected") {
		t.Errorf("error = %q", body.Error)
	}
}

// TestSync_Validation tests that missing repo fields are reported per field
func TestSync_Validation(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token("user-1", "gho_meta")

	rec := env.do(http.MethodPost, "/api/github/sync", tok, syncRequest{RepoOwner: "acme"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := decode[errorBody](t, rec)
	if body.Details["repoName"] == "" {
		t.Errorf("details = %v, want repoName", body.Details)
	}
	if _, ok := body.Details["repoOwner"]; ok {
		t.Errorf("repoOwner should be valid: %v", body.Details)
	}
}

// TestSync_RateLimited tests that a GitHub rate limit becomes 429 with resetAt
func TestSync_RateLimited(t *testing.T) {
	env := newTestEnv(t)
	const reset = 1767225600 // 2026-01-01T00:00:00Z
	env.handler = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Reset", fmt.Sprint(reset))
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"API rate limit exceeded"}`))
	}
	tok := env.token("user-1", "gho_meta")

	for _, path := range []string{"/api/github/sync", "/api/github/repos"} {
		method := http.MethodPost
		var body any = syncRequest{RepoOwner: "acme", RepoName: "web"}
		if path == "/api/github/repos" {
			method, body = http.MethodGet, nil
		}

		rec := env.do(method, path, tok, body)
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("%s status = %d, want 429", path, rec.Code)
		}
		got := decode[errorBody](t, rec)
		if got.ResetAt != "2026-01-01T00:00:00.000Z" {
			t.Errorf("%s resetAt = %q", path, got.ResetAt)
		}
	}
}

// TestSync_UpstreamError tests that other GitHub failures keep their status
func TestSync_UpstreamError(t *testing.T) {
	env := newTestEnv(t)
	env.handler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
	}

	rec := env.do(http.MethodPost, "/api/github/sync", env.token("user-1", "gho_meta"),
		syncRequest{RepoOwner: "acme", RepoName: "missing"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

// TestSync_PartialFailureAndIdempotence tests one bad issue among many, then a repeat sync
func TestSync_PartialFailureAndIdempotence(t *testing.T) {
	env := newTestEnv(t)
	env.handler = issuesJSON(
		github.Issue{Number: 1, Title: "First", State: "open"},
		github.Issue{Number: 2, Title: "Second", State: "closed"},
		github.Issue{Number: 3, Title: "", State: "open"},
		github.Issue{Number: 4, Title: "Fourth", State: "open"},
	)
	tok := env.token("user-1", "gho_meta")
	req := syncRequest{RepoOwner: "acme", RepoName: "web"}

	rec := env.do(http.MethodPost, "/api/github/sync", tok, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	first := decode[syncResponse](t, rec)
	if !first.Success || first.Created != 3 || first.Updated != 0 || len(first.Errors) != 1 {
		t.Fatalf("first sync = %+v, want created=3 errors=1", first)
	}
	if !strings.HasPrefix(first.Errors[0], "#3") {
		t.Errorf("error = %q, want it to name issue #3", first.Errors[0])
	}

	second := decode[syncResponse](t, env.do(http.MethodPost, "/api/github/sync", tok, req))
	if second.Created != 0 || second.Updated != 3 {
		t.Errorf("second sync = %+v, want created=0 updated=3", second)
	}

	count, err := env.db.GetTaskCount()
	if err != nil {
		t.Fatalf("GetTaskCount() failed: %v", err)
	}
	if count != 3 {
		t.Errorf("task count = %d, want 3", count)
	}

	done, err := env.db.GetTaskByExternalRef(context.Background(),
		schema.ExternalRef{Source: schema.SourceGitHub, Repo: "acme/web", Number: 2})
	if err != nil {
		t.Fatalf("GetTaskByExternalRef() failed: %v", err)
	}
	if done.Status != schema.StatusDone {
		t.Errorf("closed issue status = %s, want DONE", done.Status)
	}
}

// TestSync_StoredCredential tests that a token saved through the token store is used
func TestSync_StoredCredential(t *testing.T) {
	env := newTestEnv(t)
	var gotAuth string
	env.handler = func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		issuesJSON(github.Issue{Number: 1, Title: "One", State: "open"})(w, r)
	}

	if err := env.db.EnsureUser(context.Background(), "user-1", ""); err != nil {
		t.Fatalf("EnsureUser() failed: %v", err)
	}
	if err := env.tokens.Save(context.Background(), "user-1", schema.ProviderGitHub, "gho_stored", "repo"); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	rec := env.do(http.MethodPost, "/api/github/sync", env.token("user-1", ""), syncRequest{RepoOwner: "acme", RepoName: "web"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if gotAuth != "Bearer gho_stored" {
		t.Errorf("Authorization = %q", gotAuth)
	}

	rec = env.do(http.MethodDelete, "/api/github/connection", env.token("user-1", ""), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("disconnect status = %d", rec.Code)
	}
	rec = env.do(http.MethodGet, "/api/github/repos", env.token("user-1", ""), nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("repos after disconnect = %d, want 400", rec.Code)
	}
}

// TestRepos_UndecryptableToken tests that a token sealed under another key is a server error
func TestRepos_UndecryptableToken(t *testing.T) {
	env := newTestEnv(t)
	env.handler = func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("GitHub called with %s", r.Header.Get("Authorization"))
	}

	oldBox, err := secret.New("an-old-rotated-encryption-key")
	if err != nil {
		t.Fatalf("secret.New() failed: %v", err)
	}
	if err := env.db.EnsureUser(context.Background(), "user-1", ""); err != nil {
		t.Fatalf("EnsureUser() failed: %v", err)
	}
	old := tokens.New(env.db, oldBox, log.New(io.Discard, "", 0))
	if err := old.Save(context.Background(), "user-1", schema.ProviderGitHub, "gho_stored", "repo"); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	rec := env.do(http.MethodGet, "/api/github/repos", env.token("user-1", ""), nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500: %s", rec.Code, rec.Body)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"error":"Internal server error"}` {
		t.Errorf("body = %s", got)
	}
}

// TestSync_ForbiddenPassthrough tests that a 403 with quota left is not reported as a rate limit
func TestSync_ForbiddenPassthrough(t *testing.T) {
	env := newTestEnv(t)
	env.handler = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "4999")
		w.Header().Set("X-RateLimit-Reset", "1767225600")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"Resource not accessible by integration"}`))
	}

	rec := env.do(http.MethodPost, "/api/github/sync", env.token("user-1", "gho_meta"), syncRequest{RepoOwner: "acme", RepoName: "web"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %s", rec.Code, rec.Body)
	}
	body := decode[errorBody](t, rec)
	if body.Error != "GitHub API error (status 403)" || body.ResetAt != "" {
		t.Errorf("body = %+v", body)
	}
}

// TestListRepos tests the repository summary listing
func TestListRepos(t *testing.T) {
	env := newTestEnv(t)
	env.handler = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":7,"name":"web","full_name":"acme/web","owner":{"login":"acme"},"private":true,"html_url":"https://github.com/acme/web"}]`))
	}

	rec := env.do(http.MethodGet, "/api/github/repos", env.token("user-1", "gho_meta"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	repos := decode[[]github.Repository](t, rec)
	if len(repos) != 1 || repos[0].FullName != "acme/web" || !repos[0].Private {
		t.Errorf("repos = %+v", repos)
	}
}

// TestTasks_CreateAndStatus tests creating a task, moving it, and reading the audit trail
func TestTasks_CreateAndStatus(t *testing.T) {
	env := newTestEnv(t)
	alice := env.token("alice", "")
	bob := env.token("bob", "")

	// bob must exist before alice can assign to him
	if rec := env.do(http.MethodGet, "/api/tasks", bob, nil); rec.Code != http.StatusOK {
		t.Fatalf("bob list status = %d", rec.Code)
	}

	rec := env.do(http.MethodPost, "/api/tasks", alice, map[string]any{
		"title":      "Write release notes",
		"assigneeId": "bob",
		"dueAt":      "2026-11-01T09:00:00Z",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body)
	}
	task := decode[schema.Task](t, rec)
	if task.Status != schema.StatusOpen || task.Priority != schema.DefaultPriority || task.CreatorID != "alice" {
		t.Fatalf("created task = %+v", task)
	}

	rec = env.do(http.MethodPatch, "/api/tasks/"+task.ID+"/status", alice, map[string]string{"status": "in-progress"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status update = %d: %s", rec.Code, rec.Body)
	}
	if got := decode[schema.Task](t, rec); got.Status != schema.StatusInProgress {
		t.Errorf("status = %s, want IN_PROGRESS", got.Status)
	}

	evs := decode[[]schema.TaskEvent](t, env.do(http.MethodGet, "/api/tasks/"+task.ID+"/events", bob, nil))
	if len(evs) != 1 || evs[0].OldStatus != schema.StatusOpen || evs[0].NewStatus != schema.StatusInProgress || evs[0].ActorID != "alice" {
		t.Errorf("events = %+v", evs)
	}

	// Same status again records nothing
	env.do(http.MethodPatch, "/api/tasks/"+task.ID+"/status", alice, map[string]string{"status": "IN_PROGRESS"})
	evs = decode[[]schema.TaskEvent](t, env.do(http.MethodGet, "/api/tasks/"+task.ID+"/events", alice, nil))
	if len(evs) != 1 {
		t.Errorf("events after no-op = %d, want 1", len(evs))
	}

	mine := decode[[]schema.Task](t, env.do(http.MethodGet, "/api/tasks?status=in_progress", bob, nil))
	if len(mine) != 1 || mine[0].ID != task.ID {
		t.Errorf("bob's tasks = %+v", mine)
	}

	carol := env.token("carol", "")
	if rec := env.do(http.MethodGet, "/api/tasks/"+task.ID+"/events", carol, nil); rec.Code != http.StatusNotFound {
		t.Errorf("stranger events status = %d, want 404", rec.Code)
	}
}

// TestTasks_CreateValidation tests field-level validation of new tasks
func TestTasks_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token("alice", "")

	tests := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{"missing title", map[string]any{"title": "  "}, "title"},
		{"title too long", map[string]any{"title": strings.Repeat("界", schema.MaxTitleLength+1)}, "title"},
		{"priority range", map[string]any{"title": "x", "priority": 9}, "priority"},
		{"bad due date", map[string]any{"title": "x", "dueAt": "tomorrow"}, "dueAt"},
		{"unknown assignee", map[string]any{"title": "x", "assigneeId": "ghost"}, "assigneeId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/api/tasks", tok, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if body := decode[errorBody](t, rec); body.Details[tt.field] == "" {
				t.Errorf("details = %v, want %s", body.Details, tt.field)
			}
		})
	}

	title := strings.Repeat("界", 300)
	rec := env.do(http.MethodPost, "/api/tasks", tok, map[string]any{"title": title})
	if rec.Code != http.StatusCreated {
		t.Fatalf("multibyte title status = %d, want 201: %s", rec.Code, rec.Body)
	}
	if got := decode[schema.Task](t, rec); got.Title != title {
		t.Errorf("title was altered")
	}

	req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rec.Code)
	}
}

// TestNotifications tests the assignee's notification listing, count and read flag
func TestNotifications(t *testing.T) {
	env := newTestEnv(t)
	alice := env.token("alice", "")
	bob := env.token("bob", "")
	env.do(http.MethodGet, "/api/tasks", bob, nil)

	task := decode[schema.Task](t, env.do(http.MethodPost, "/api/tasks", alice,
		map[string]any{"title": "Review PR", "assigneeId": "bob"}))
	env.do(http.MethodPatch, "/api/tasks/"+task.ID+"/status", alice, map[string]string{"status": "READY_FOR_REVIEW"})

	count := decode[map[string]int](t, env.do(http.MethodGet, "/api/notifications/unread-count", bob, nil))
	if count["count"] != 1 {
		t.Fatalf("unread count = %d, want 1", count["count"])
	}

	notes := decode[[]schema.Notification](t, env.do(http.MethodGet, "/api/notifications?unreadOnly=true", bob, nil))
	if len(notes) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notes))
	}
	if notes[0].Task == nil || notes[0].Task.Title != "Review PR" || notes[0].Task.Status != schema.StatusReadyForReview {
		t.Errorf("embedded task = %+v", notes[0].Task)
	}

	// The actor is never notified about their own change
	if got := decode[map[string]int](t, env.do(http.MethodGet, "/api/notifications/unread-count", alice, nil)); got["count"] != 0 {
		t.Errorf("alice unread = %d, want 0", got["count"])
	}

	if rec := env.do(http.MethodPost, "/api/notifications/"+notes[0].ID+"/read", alice, nil); rec.Code != http.StatusNotFound {
		t.Errorf("marking someone else's notification = %d, want 404", rec.Code)
	}
	if rec := env.do(http.MethodPost, "/api/notifications/"+notes[0].ID+"/read", bob, nil); rec.Code != http.StatusOK {
		t.Fatalf("mark read status = %d", rec.Code)
	}

	unread := decode[[]schema.Notification](t, env.do(http.MethodGet, "/api/notifications?unreadOnly=true", bob, nil))
	if len(unread) != 0 {
		t.Errorf("unread after marking = %d, want 0", len(unread))
	}
	all := decode[[]schema.Notification](t, env.do(http.MethodGet, "/api/notifications", bob, nil))
	if len(all) != 1 || !all[0].Read {
		t.Errorf("all notifications = %+v", all)
	}
}

// TestIntegrations_NotConfigured tests that unconfigured OAuth flows answer 503
func TestIntegrations_NotConfigured(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(http.MethodGet, "/api/slack/install", "", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("slack install = %d, want 503", rec.Code)
	}
	if rec := env.do(http.MethodGet, "/api/github/connect", env.token("user-1", ""), nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("github connect = %d, want 503", rec.Code)
	}
}

// TestRecoverJSON tests that a panicking handler yields a 500 JSON body
func TestRecoverJSON(t *testing.T) {
	env := newTestEnv(t)
	env.server.router.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	})

	rec := env.do(http.MethodGet, "/boom", "", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if body := decode[errorBody](t, rec); body.Error != "Internal server error" {
		t.Errorf("error = %q", body.Error)
	}
}

// TestNotFound tests the JSON 404 for unknown routes
func TestNotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/nope", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}
