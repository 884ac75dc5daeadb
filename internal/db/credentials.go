package db

import (
	"context"
	"fmt"
	"time"

	"github.com/Mschirtzinger/taskflow/internal/schema"
)

// UpsertCredential stores an encrypted provider token for a user,
// replacing any token already stored for that (user, provider) pair.
func (db *DB) UpsertCredential(ctx context.Context, c *schema.Credential) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid credential: %w", err)
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now().UTC()
	}

	query := `
	INSERT INTO credentials (user_id, provider, encrypted_token, scope, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id, provider) DO UPDATE SET
		encrypted_token = excluded.encrypted_token,
		scope = excluded.scope,
		updated_at = excluded.updated_at
	`
	_, err := db.conn.ExecContext(ctx, query,
		c.UserID, c.Provider, c.EncryptedToken, c.Scope, formatTime(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert %s credential: %w", c.Provider, err)
	}
	return nil
}

// GetCredential returns the stored credential for (userID, provider).
// Returns sql.ErrNoRows if the user never connected the provider.
func (db *DB) GetCredential(ctx context.Context, userID, provider string) (*schema.Credential, error) {
	query := `
	SELECT user_id, provider, encrypted_token, scope, updated_at
	FROM credentials
	WHERE user_id = ? AND provider = ?
	`
	var c schema.Credential
	var updatedAt string
	err := db.conn.QueryRowContext(ctx, query, userID, provider).
		Scan(&c.UserID, &c.Provider, &c.EncryptedToken, &c.Scope, &updatedAt)
	if err != nil {
		return nil, err
	}
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

// DeleteCredential removes a stored credential. Returns nil if none exists.
func (db *DB) DeleteCredential(ctx context.Context, userID, provider string) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM credentials WHERE user_id = ? AND provider = ?`, userID, provider)
	if err != nil {
		return fmt.Errorf("failed to delete %s credential: %w", provider, err)
	}
	return nil
}

// UpsertSlackInstallation stores a workspace installation keyed by team id.
func (db *DB) UpsertSlackInstallation(ctx context.Context, inst *schema.SlackInstallation) error {
	if err := inst.Validate(); err != nil {
		return fmt.Errorf("invalid slack installation: %w", err)
	}
	if inst.UpdatedAt.IsZero() {
		inst.UpdatedAt = time.Now().UTC()
	}

	query := `
	INSERT INTO slack_installations (
		team_id, team_name, enterprise_id, installer_user_id, bot_user_id,
		encrypted_bot_token, encrypted_user_token, scope, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(team_id) DO UPDATE SET
		team_name = excluded.team_name,
		enterprise_id = excluded.enterprise_id,
		installer_user_id = excluded.installer_user_id,
		bot_user_id = excluded.bot_user_id,
		encrypted_bot_token = excluded.encrypted_bot_token,
		encrypted_user_token = excluded.encrypted_user_token,
		scope = excluded.scope,
		updated_at = excluded.updated_at
	`
	_, err := db.conn.ExecContext(ctx, query,
		inst.TeamID,
		inst.TeamName,
		inst.EnterpriseID,
		inst.InstallerUserID,
		inst.BotUserID,
		inst.EncryptedBotToken,
		inst.EncryptedUserToken,
		inst.Scope,
		formatTime(inst.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert slack installation %s: %w", inst.TeamID, err)
	}
	return nil
}

// GetSlackInstallation returns the installation for a team.
// Returns sql.ErrNoRows if the workspace never installed the app.
func (db *DB) GetSlackInstallation(ctx context.Context, teamID string) (*schema.SlackInstallation, error) {
	query := `
	SELECT team_id, team_name, enterprise_id, installer_user_id, bot_user_id,
	       encrypted_bot_token, encrypted_user_token, scope, updated_at
	FROM slack_installations
	WHERE team_id = ?
	`
	var inst schema.SlackInstallation
	var updatedAt string
	err := db.conn.QueryRowContext(ctx, query, teamID).Scan(
		&inst.TeamID,
		&inst.TeamName,
		&inst.EnterpriseID,
		&inst.InstallerUserID,
		&inst.BotUserID,
		&inst.EncryptedBotToken,
		&inst.EncryptedUserToken,
		&inst.Scope,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	inst.UpdatedAt = parseTime(updatedAt)
	return &inst, nil
}
