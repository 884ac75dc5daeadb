package schema

import (
	"fmt"
	"time"
)

// Providers with stored credentials.
const (
	ProviderGitHub = "github"
	ProviderSlack  = "slack"
)

// Credential is an encrypted per-user access token for an external provider.
// EncryptedToken never holds plaintext.
type Credential struct {
	UserID         string    `json:"userId"`
	Provider       string    `json:"provider"`
	EncryptedToken string    `json:"-"`
	Scope          string    `json:"scope,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Validate checks if the Credential has valid field values.
func (c *Credential) Validate() error {
	if c.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if c.EncryptedToken == "" {
		return fmt.Errorf("encrypted token is required")
	}
	return nil
}

// SlackInstallation is the stored result of a workspace authorizing the app.
type SlackInstallation struct {
	TeamID             string    `json:"teamId"`
	TeamName           string    `json:"teamName,omitempty"`
	EnterpriseID       string    `json:"enterpriseId,omitempty"`
	InstallerUserID    string    `json:"installerUserId,omitempty"`
	BotUserID          string    `json:"botUserId,omitempty"`
	EncryptedBotToken  string    `json:"-"`
	EncryptedUserToken string    `json:"-"`
	Scope              string    `json:"scope,omitempty"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Validate checks if the SlackInstallation has valid field values.
func (s *SlackInstallation) Validate() error {
	if s.TeamID == "" {
		return fmt.Errorf("team_id is required")
	}
	if s.EncryptedBotToken == "" {
		return fmt.Errorf("encrypted bot token is required")
	}
	return nil
}
