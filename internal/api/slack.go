package api

import (
	"fmt"
	"net/http"

	"github.com/Mschirtzinger/taskflow/internal/apperr"
	"github.com/Mschirtzinger/taskflow/internal/auth"
)

const (
	slackStateCookie = "slack_oauth_state"
	slackStatePath   = "/api/slack"
)

// handleSlackInstall starts the workspace install. GET redirects to Slack;
// POST returns the consent URL for clients that navigate themselves.
func (s *Server) handleSlackInstall(w http.ResponseWriter, r *http.Request) {
	if s.deps.Slack == nil {
		s.writeError(w, r, fmt.Errorf("Slack: %w", errNotConfigured))
		return
	}
	state, err := auth.IssueState(w, slackStateCookie, slackStatePath, s.deps.SecureCookies)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	url := s.deps.Slack.AuthorizeURL(state)
	if r.Method == http.MethodPost {
		writeJSON(w, http.StatusOK, map[string]string{"url": url})
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

func (s *Server) handleSlackRedirect(w http.ResponseWriter, r *http.Request) {
	if s.deps.Slack == nil {
		s.writeError(w, r, fmt.Errorf("Slack: %w", errNotConfigured))
		return
	}
	if err := auth.CheckState(w, r, slackStateCookie, slackStatePath); err != nil {
		s.writeError(w, r, err)
		return
	}
	if reason := r.URL.Query().Get("error"); reason != "" {
		s.writeError(w, r, apperr.Invalid("code", "installation cancelled: "+reason))
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		s.writeError(w, r, apperr.Invalid("code", "is required"))
		return
	}

	inst, err := s.deps.Slack.Complete(r.Context(), code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"teamId":   inst.TeamID,
		"teamName": inst.TeamName,
	})
}
