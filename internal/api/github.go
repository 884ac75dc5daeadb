package api

import (
	"fmt"
	"net/http"

	"github.com/Mschirtzinger/taskflow/internal/apperr"
	"github.com/Mschirtzinger/taskflow/internal/auth"
	"github.com/Mschirtzinger/taskflow/internal/github"
	"github.com/Mschirtzinger/taskflow/internal/schema"
)

const (
	githubStateCookie = "github_oauth_state"
	githubStatePath   = "/api/github"
)

type syncRequest struct {
	RepoOwner string `json:"repoOwner"`
	RepoName  string `json:"repoName"`
}

type syncResponse struct {
	Success bool     `json:"success"`
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Errors  []string `json:"errors"`
}

func (s *Server) handleListRepos(w http.ResponseWriter, r *http.Request) {
	repos, err := s.deps.Sync.Repositories(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if repos == nil {
		repos = []github.Repository{}
	}
	writeJSON(w, http.StatusOK, repos)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	sess := auth.FromContext(r.Context())
	result, err := s.deps.Sync.SyncRepository(r.Context(), sess, req.RepoOwner, req.RepoName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := syncResponse{
		Success: true,
		Created: result.Created,
		Updated: result.Updated,
		Errors:  result.Errors,
	}
	if resp.Errors == nil {
		resp.Errors = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGitHubConnect(w http.ResponseWriter, r *http.Request) {
	if s.deps.GitHubOAuth == nil {
		s.writeError(w, r, fmt.Errorf("GitHub OAuth: %w", errNotConfigured))
		return
	}
	state, err := auth.IssueState(w, githubStateCookie, githubStatePath, s.deps.SecureCookies)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, s.deps.GitHubOAuth.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) handleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if s.deps.GitHubOAuth == nil {
		s.writeError(w, r, fmt.Errorf("GitHub OAuth: %w", errNotConfigured))
		return
	}
	if err := auth.CheckState(w, r, githubStateCookie, githubStatePath); err != nil {
		s.writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	if reason := q.Get("error"); reason != "" {
		s.writeError(w, r, apperr.Invalid("code", "authorization denied: "+reason))
		return
	}
	code := q.Get("code")
	if code == "" {
		s.writeError(w, r, apperr.Invalid("code", "is required"))
		return
	}

	token, scope, err := github.Exchange(r.Context(), s.deps.GitHubOAuth, code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	sess := auth.FromContext(r.Context())
	if err := s.deps.Tokens.Save(r.Context(), sess.UserID, schema.ProviderGitHub, token, scope); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"connected": true, "scope": scope})
}

func (s *Server) handleGitHubDisconnect(w http.ResponseWriter, r *http.Request) {
	sess := auth.FromContext(r.Context())
	if err := s.deps.Tokens.Disconnect(r.Context(), sess.UserID, schema.ProviderGitHub); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"connected": false})
}
