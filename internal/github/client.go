// Package github is a small client for the GitHub REST API endpoints
// TaskFlow needs: listing a repository's issues and the caller's repositories.
//
// Calls are made with the caller's OAuth token and are never retried. A
// rate-limit response surfaces as *RateLimitError carrying the reset time;
// any other non-200 response surfaces as *UpstreamError.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultBaseURL is the public GitHub API.
const DefaultBaseURL = "https://api.github.com"

// PageSize is the provider's maximum page size; one page is fetched per call.
const PageSize = 100

// Issue is the subset of a GitHub issue the reconciler consumes.
type Issue struct {
	Number      int              `json:"number"`
	Title       string           `json:"title"`
	Body        string           `json:"body"`
	State       string           `json:"state"`
	HTMLURL     string           `json:"html_url"`
	UpdatedAt   time.Time        `json:"updated_at"`
	PullRequest *json.RawMessage `json:"pull_request,omitempty"`
}

// Closed reports whether the issue is closed upstream.
func (i Issue) Closed() bool {
	return strings.EqualFold(i.State, "closed")
}

// Owner is the account that owns a repository.
type Owner struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatarUrl"`
}

// Repository is the summary returned by the repository listing.
type Repository struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	FullName    string `json:"fullName"`
	Owner       Owner  `json:"owner"`
	Description string `json:"description"`
	Private     bool   `json:"private"`
	URL         string `json:"url"`
}

// apiRepository is the wire shape of a repository.
type apiRepository struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	FullName    string  `json:"full_name"`
	Description *string `json:"description"`
	Private     bool    `json:"private"`
	HTMLURL     string  `json:"html_url"`
	Owner       struct {
		Login     string `json:"login"`
		AvatarURL string `json:"avatar_url"`
	} `json:"owner"`
}

// Client calls the GitHub REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for baseURL (DefaultBaseURL when empty).
// If httpClient is nil, a client with a 30s timeout is used.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// ListIssues returns the most recently updated issues of owner/repo, open and
// closed, up to PageSize. Pull requests are left out.
func (c *Client) ListIssues(ctx context.Context, token, owner, repo string) ([]Issue, error) {
	q := url.Values{}
	q.Set("state", "all")
	q.Set("sort", "updated")
	q.Set("direction", "desc")
	q.Set("per_page", strconv.Itoa(PageSize))
	path := fmt.Sprintf("/repos/%s/%s/issues?%s", url.PathEscape(owner), url.PathEscape(repo), q.Encode())

	var raw []Issue
	if err := c.get(ctx, token, path, &raw); err != nil {
		return nil, err
	}

	issues := make([]Issue, 0, len(raw))
	for _, issue := range raw {
		if issue.PullRequest != nil {
			continue
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

// ListRepositories returns the caller's repositories, most recently updated first.
func (c *Client) ListRepositories(ctx context.Context, token string) ([]Repository, error) {
	path := fmt.Sprintf("/user/repos?sort=updated&per_page=%d", PageSize)

	var raw []apiRepository
	if err := c.get(ctx, token, path, &raw); err != nil {
		return nil, err
	}

	repos := make([]Repository, 0, len(raw))
	for _, r := range raw {
		repo := Repository{
			ID:       r.ID,
			Name:     r.Name,
			FullName: r.FullName,
			Owner:    Owner{Login: r.Owner.Login, AvatarURL: r.Owner.AvatarURL},
			Private:  r.Private,
			URL:      r.HTMLURL,
		}
		if r.Description != nil {
			repo.Description = *r.Description
		}
		repos = append(repos, repo)
	}
	return repos, nil
}

func (c *Client) get(ctx context.Context, token, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := c.authorized(token).Do(req)
	if err != nil {
		return fmt.Errorf("github request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode github response: %w", err)
	}
	return nil
}

// authorized wraps the client's transport so every request carries token.
func (c *Client) authorized(token string) *http.Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	return &http.Client{
		Transport: &oauth2.Transport{Source: ts, Base: c.http.Transport},
		Timeout:   c.http.Timeout,
	}
}

func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := upstreamMessage(body)

	if isRateLimited(resp) {
		if reset := resp.Header.Get("X-RateLimit-Reset"); reset != "" {
			if secs, err := strconv.ParseInt(reset, 10, 64); err == nil {
				return &RateLimitError{ResetAt: time.Unix(secs, 0).UTC(), Message: msg}
			}
		}
	}
	return &UpstreamError{StatusCode: resp.StatusCode, Message: msg}
}

// isRateLimited reports whether resp was refused for quota. GitHub sends
// rate-limit headers on every response, so a 403 only counts when the
// remaining quota is zero or unreported.
func isRateLimited(resp *http.Response) bool {
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return true
	case http.StatusForbidden:
		remaining := resp.Header.Values("X-RateLimit-Remaining")
		return len(remaining) == 0 || strings.TrimSpace(remaining[0]) == "0"
	}
	return false
}

// upstreamMessage pulls the "message" field out of a GitHub error body.
func upstreamMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return strings.TrimSpace(string(body))
}
