// Package slack implements the "Add to Slack" OAuth v2 installation flow.
//
// The Installer is built once at startup from configuration and shared by
// the HTTP handlers. A completed installation is stored per workspace with
// its bot (and optional user) token encrypted.
package slack

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"golang.org/x/oauth2"

	"github.com/Mschirtzinger/taskflow/internal/schema"
)

// Slack OAuth v2 endpoints.
const (
	AuthURL  = "https://slack.com/oauth/v2/authorize"
	TokenURL = "https://slack.com/api/oauth.v2.access"
)

// DefaultScopes are the bot scopes requested when none are configured.
var DefaultScopes = []string{"chat:write", "commands", "users:read"}

// Config configures the installer.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	UserScopes   []string

	// AuthURL and TokenURL override the Slack endpoints (tests).
	AuthURL  string
	TokenURL string
}

// Validate checks the fields required to talk to Slack.
func (c Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("slack client id is required")
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("slack client secret is required")
	}
	return nil
}

// InstallationStore persists installations. *db.DB satisfies it.
type InstallationStore interface {
	UpsertSlackInstallation(ctx context.Context, inst *schema.SlackInstallation) error
}

// Sealer encrypts installation tokens. *tokens.Store satisfies it.
type Sealer interface {
	SealInstallation(inst *schema.SlackInstallation, botToken, userToken string) error
}

// Installer runs the OAuth flow and stores the result.
type Installer struct {
	oauth      *oauth2.Config
	userScopes []string
	store      InstallationStore
	sealer     Sealer
	logger     *log.Logger
}

// NewInstaller creates an Installer. If logger is nil, logs to stderr with a [slack] prefix.
func NewInstaller(cfg Config, store InstallationStore, sealer Sealer, logger *log.Logger) (*Installer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[slack] ", log.LstdFlags)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	endpoint := oauth2.Endpoint{AuthURL: AuthURL, TokenURL: TokenURL, AuthStyle: oauth2.AuthStyleInParams}
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}

	return &Installer{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		userScopes: cfg.UserScopes,
		store:      store,
		sealer:     sealer,
		logger:     logger,
	}, nil
}

// AuthorizeURL returns the Slack consent URL for state.
//
// Slack separates bot scopes with commas rather than spaces, so the scope
// parameter is set explicitly.
func (i *Installer) AuthorizeURL(state string) string {
	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("scope", strings.Join(i.oauth.Scopes, ",")),
	}
	if len(i.userScopes) > 0 {
		opts = append(opts, oauth2.SetAuthURLParam("user_scope", strings.Join(i.userScopes, ",")))
	}
	return i.oauth.AuthCodeURL(state, opts...)
}

// Complete exchanges code for tokens and stores the installation.
func (i *Installer) Complete(ctx context.Context, code string) (*schema.SlackInstallation, error) {
	if code == "" {
		return nil, fmt.Errorf("authorization code is required")
	}

	tok, err := i.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("slack code exchange failed: %w", err)
	}
	if ok, present := tok.Extra("ok").(bool); present && !ok {
		return nil, fmt.Errorf("slack code exchange failed: %v", tok.Extra("error"))
	}

	inst := &schema.SlackInstallation{
		BotUserID: stringExtra(tok, "bot_user_id"),
		Scope:     stringExtra(tok, "scope"),
	}
	if team, ok := tok.Extra("team").(map[string]any); ok {
		inst.TeamID, _ = team["id"].(string)
		inst.TeamName, _ = team["name"].(string)
	}
	if enterprise, ok := tok.Extra("enterprise").(map[string]any); ok {
		inst.EnterpriseID, _ = enterprise["id"].(string)
	}

	var userToken string
	if user, ok := tok.Extra("authed_user").(map[string]any); ok {
		inst.InstallerUserID, _ = user["id"].(string)
		userToken, _ = user["access_token"].(string)
	}

	if inst.TeamID == "" {
		return nil, fmt.Errorf("slack response did not include a team")
	}
	if err := i.sealer.SealInstallation(inst, tok.AccessToken, userToken); err != nil {
		return nil, err
	}
	if err := i.store.UpsertSlackInstallation(ctx, inst); err != nil {
		return nil, err
	}

	i.logger.Printf("Installed in workspace %s (%s)", inst.TeamName, inst.TeamID)
	return inst, nil
}

func stringExtra(tok *oauth2.Token, key string) string {
	s, _ := tok.Extra(key).(string)
	return s
}
