package sync

import (
	"context"
	"strings"

	"github.com/Mschirtzinger/taskflow/internal/apperr"
	"github.com/Mschirtzinger/taskflow/internal/auth"
	"github.com/Mschirtzinger/taskflow/internal/github"
	"github.com/Mschirtzinger/taskflow/internal/schema"
)

// TokenResolver returns a plaintext provider token for a session.
// *tokens.Store satisfies it.
type TokenResolver interface {
	Resolve(ctx context.Context, sess *auth.Session, provider string) (string, error)
}

// IssueFetcher reads from the GitHub API. *github.Client satisfies it.
type IssueFetcher interface {
	ListIssues(ctx context.Context, token, owner, repo string) ([]github.Issue, error)
	ListRepositories(ctx context.Context, token string) ([]github.Repository, error)
}

// Service runs a whole sync for a caller: token, fetch, reconcile.
type Service struct {
	tokens     TokenResolver
	fetcher    IssueFetcher
	reconciler Reconciler
}

// NewService wires the sync pipeline.
func NewService(tokens TokenResolver, fetcher IssueFetcher, reconciler Reconciler) *Service {
	return &Service{tokens: tokens, fetcher: fetcher, reconciler: reconciler}
}

// SyncRepository fetches the most recently updated issues of owner/repo with
// the caller's GitHub token and reconciles them.
//
// Errors: apperr.ErrValidation for a missing owner or repo,
// apperr.ErrNotConnected when the caller has no token, and
// *github.RateLimitError / *github.UpstreamError from the fetch. A failed
// fetch fails the whole sync; nothing is retried.
func (s *Service) SyncRepository(ctx context.Context, sess *auth.Session, owner, repo string) (*Result, error) {
	owner, repo = strings.TrimSpace(owner), strings.TrimSpace(repo)
	if err := validateRepo(owner, repo); err != nil {
		return nil, err
	}

	token, err := s.tokens.Resolve(ctx, sess, schema.ProviderGitHub)
	if err != nil {
		return nil, err
	}

	issues, err := s.fetcher.ListIssues(ctx, token, owner, repo)
	if err != nil {
		return nil, err
	}

	return s.reconciler.Reconcile(ctx, Request{
		UserID: sess.UserID,
		Owner:  owner,
		Repo:   repo,
		Issues: issues,
	})
}

// Repositories lists the caller's GitHub repositories.
func (s *Service) Repositories(ctx context.Context, sess *auth.Session) ([]github.Repository, error) {
	token, err := s.tokens.Resolve(ctx, sess, schema.ProviderGitHub)
	if err != nil {
		return nil, err
	}
	return s.fetcher.ListRepositories(ctx, token)
}

func validateRepo(owner, repo string) error {
	v := &apperr.ValidationError{Fields: map[string]string{}}
	if owner == "" {
		v.Fields["repoOwner"] = "is required"
	}
	if repo == "" {
		v.Fields["repoName"] = "is required"
	}
	if len(v.Fields) > 0 {
		return v
	}
	return nil
}
