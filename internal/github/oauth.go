package github

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"
)

// Scopes requested when a user connects GitHub.
var Scopes = []string{"repo", "read:user"}

// OAuthConfig builds the OAuth app configuration used by the connect flow.
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
		Endpoint:     githuboauth.Endpoint,
	}
}

// Exchange trades an authorization code for an access token and the granted scope.
func Exchange(ctx context.Context, cfg *oauth2.Config, code string) (token, scope string, err error) {
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return "", "", fmt.Errorf("github code exchange failed: %w", err)
	}
	if tok.AccessToken == "" {
		return "", "", fmt.Errorf("github code exchange returned no access token")
	}
	scope, _ = tok.Extra("scope").(string)
	return tok.AccessToken, scope, nil
}
