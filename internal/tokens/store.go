// Package tokens resolves and stores per-user provider access tokens.
//
// A token is looked up first in the session's identity-provider metadata
// (key "<provider>_token"), then in the encrypted credentials table.
// Plaintext tokens are only ever held in memory.
package tokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/Mschirtzinger/taskflow/internal/apperr"
	"github.com/Mschirtzinger/taskflow/internal/auth"
	"github.com/Mschirtzinger/taskflow/internal/schema"
	"github.com/Mschirtzinger/taskflow/internal/secret"
)

// Credentials is the storage the Store needs. *db.DB satisfies it.
type Credentials interface {
	GetCredential(ctx context.Context, userID, provider string) (*schema.Credential, error)
	UpsertCredential(ctx context.Context, c *schema.Credential) error
	DeleteCredential(ctx context.Context, userID, provider string) error
	GetSlackInstallation(ctx context.Context, teamID string) (*schema.SlackInstallation, error)
}

// Store resolves plaintext tokens for sessions.
type Store struct {
	creds  Credentials
	box    *secret.Box
	logger *log.Logger
}

// New creates a Store. If logger is nil, logs to stderr with a [tokens] prefix.
func New(creds Credentials, box *secret.Box, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(os.Stderr, "[tokens] ", log.LstdFlags)
	}
	return &Store{creds: creds, box: box, logger: logger}
}

// MetadataKey is the identity-provider metadata key holding a provider token.
func MetadataKey(provider string) string {
	return provider + "_token"
}

// Resolve returns the plaintext token for provider.
//
// Returns an error wrapping apperr.ErrNotConnected when neither the session
// nor storage has one, and apperr.ErrDecrypt when a stored token cannot be
// opened with the configured key.
func (s *Store) Resolve(ctx context.Context, sess *auth.Session, provider string) (string, error) {
	if sess == nil {
		return "", apperr.ErrUnauthorized
	}
	if token := sess.MetadataString(MetadataKey(provider)); token != "" {
		return token, nil
	}

	cred, err := s.creds.GetCredential(ctx, sess.UserID, provider)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s: %w", provider, apperr.ErrNotConnected)
	}
	if err != nil {
		return "", fmt.Errorf("failed to load %s credential: %w", provider, err)
	}

	token, err := s.box.Open(cred.EncryptedToken)
	if err != nil {
		s.logger.Printf("Error: stored %s token for user %s cannot be decrypted: %v", provider, sess.UserID, err)
		return "", fmt.Errorf("%s: %w", provider, apperr.ErrDecrypt)
	}
	if token == "" {
		return "", fmt.Errorf("%s: %w", provider, apperr.ErrNotConnected)
	}
	return token, nil
}

// Save encrypts token and stores it for (userID, provider), replacing any previous one.
func (s *Store) Save(ctx context.Context, userID, provider, token, scope string) error {
	if token == "" {
		return apperr.Invalid("token", "is required")
	}
	sealed, err := s.box.Seal(token)
	if err != nil {
		return fmt.Errorf("failed to encrypt %s token: %w", provider, err)
	}

	err = s.creds.UpsertCredential(ctx, &schema.Credential{
		UserID:         userID,
		Provider:       provider,
		EncryptedToken: sealed,
		Scope:          scope,
	})
	if err != nil {
		return err
	}
	s.logger.Printf("Stored %s credential for user %s", provider, userID)
	return nil
}

// Disconnect forgets the stored token for (userID, provider).
func (s *Store) Disconnect(ctx context.Context, userID, provider string) error {
	if err := s.creds.DeleteCredential(ctx, userID, provider); err != nil {
		return err
	}
	s.logger.Printf("Removed %s credential for user %s", provider, userID)
	return nil
}

// SealInstallation encrypts the bot and user tokens of a Slack installation.
func (s *Store) SealInstallation(inst *schema.SlackInstallation, botToken, userToken string) error {
	if botToken == "" {
		return apperr.Invalid("bot_token", "is required")
	}
	sealed, err := s.box.Seal(botToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt slack bot token: %w", err)
	}
	inst.EncryptedBotToken = sealed

	inst.EncryptedUserToken = ""
	if userToken != "" {
		if inst.EncryptedUserToken, err = s.box.Seal(userToken); err != nil {
			return fmt.Errorf("failed to encrypt slack user token: %w", err)
		}
	}
	return nil
}

// SlackBotToken returns the plaintext bot token of a workspace installation.
func (s *Store) SlackBotToken(ctx context.Context, teamID string) (string, error) {
	inst, err := s.creds.GetSlackInstallation(ctx, teamID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("slack team %s: %w", teamID, apperr.ErrNotConnected)
	}
	if err != nil {
		return "", fmt.Errorf("failed to load slack installation: %w", err)
	}

	token, err := s.box.Open(inst.EncryptedBotToken)
	if err != nil {
		s.logger.Printf("Error: slack bot token for team %s cannot be decrypted: %v", teamID, err)
		return "", fmt.Errorf("slack team %s: %w", teamID, apperr.ErrDecrypt)
	}
	return token, nil
}
