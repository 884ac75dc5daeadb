// Package config loads TaskFlow settings from taskflow.yaml, TASKFLOW_*
// environment variables and .env files.
//
// Precedence, highest first: environment (including values loaded from
// .env), config file, defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable, e.g. TASKFLOW_SERVER_ADDR.
const EnvPrefix = "TASKFLOW"

// Config is the complete TaskFlow configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Auth     AuthConfig     `mapstructure:"auth" yaml:"auth"`
	Secrets  SecretsConfig  `mapstructure:"secrets" yaml:"secrets"`
	GitHub   GitHubConfig   `mapstructure:"github" yaml:"github"`
	Slack    SlackConfig    `mapstructure:"slack" yaml:"slack"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
	// PublicURL is where browsers reach the server; used for OAuth redirects
	PublicURL string `mapstructure:"public_url" yaml:"public_url"`
	// AllowedOrigins for cross-origin WebSocket connections
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// DatabaseConfig selects the database. A path opens SQLite; libsql:// opens Turso.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// AuthConfig holds what is needed to verify identity-provider sessions.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	Audience  string `mapstructure:"audience" yaml:"audience"`
}

// SecretsConfig holds the key material for tokens at rest.
type SecretsConfig struct {
	EncryptionKey string `mapstructure:"encryption_key" yaml:"encryption_key"`
}

// GitHubConfig configures the GitHub API and OAuth app.
type GitHubConfig struct {
	APIURL       string `mapstructure:"api_url" yaml:"api_url"`
	ClientID     string `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret string `mapstructure:"client_secret" yaml:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url" yaml:"redirect_url"`
}

// OAuthEnabled reports whether the connect flow can run.
func (g GitHubConfig) OAuthEnabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// SlackConfig configures the Slack app installation.
type SlackConfig struct {
	ClientID     string   `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret string   `mapstructure:"client_secret" yaml:"client_secret"`
	RedirectURL  string   `mapstructure:"redirect_url" yaml:"redirect_url"`
	Scopes       []string `mapstructure:"scopes" yaml:"scopes"`
	UserScopes   []string `mapstructure:"user_scopes" yaml:"user_scopes"`
}

// Enabled reports whether the install flow can run.
func (s SlackConfig) Enabled() bool {
	return s.ClientID != "" && s.ClientSecret != ""
}

// LogConfig configures log output.
type LogConfig struct {
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Verbose    bool   `mapstructure:"verbose" yaml:"verbose"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.public_url", "http://localhost:8080")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("database.dsn", "data/taskflow.db")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.audience", "authenticated")
	v.SetDefault("secrets.encryption_key", "")
	v.SetDefault("github.api_url", "https://api.github.com")
	v.SetDefault("github.client_id", "")
	v.SetDefault("github.client_secret", "")
	v.SetDefault("github.redirect_url", "")
	v.SetDefault("slack.client_id", "")
	v.SetDefault("slack.client_secret", "")
	v.SetDefault("slack.redirect_url", "")
	v.SetDefault("slack.scopes", []string{"chat:write", "commands", "users:read"})
	v.SetDefault("slack.user_scopes", []string{})
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.verbose", false)
}

// Load reads configuration. When path is empty, taskflow.yaml is looked up
// in the working directory and ~/.taskflow; a missing file is not an error.
// A .env file in the working directory is loaded into the environment first
// without overriding variables that are already set.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("taskflow")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.taskflow")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.fillDerived()
	return &cfg, nil
}

// fillDerived computes OAuth redirect URLs from the public URL when unset.
func (c *Config) fillDerived() {
	base := strings.TrimRight(c.Server.PublicURL, "/")
	if c.GitHub.RedirectURL == "" && base != "" {
		c.GitHub.RedirectURL = base + "/api/github/callback"
	}
	if c.Slack.RedirectURL == "" && base != "" {
		c.Slack.RedirectURL = base + "/api/slack/oauth_redirect"
	}
}

// Validate checks the settings every server needs.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if len(c.Secrets.EncryptionKey) < 16 {
		return fmt.Errorf("secrets.encryption_key must be at least 16 characters")
	}
	if (c.GitHub.ClientID == "") != (c.GitHub.ClientSecret == "") {
		return fmt.Errorf("github.client_id and github.client_secret must be set together")
	}
	if (c.Slack.ClientID == "") != (c.Slack.ClientSecret == "") {
		return fmt.Errorf("slack.client_id and slack.client_secret must be set together")
	}
	return nil
}

const redacted = "********"

// Redacted returns a copy with secrets masked, for display.
func (c Config) Redacted() Config {
	mask := func(s *string) {
		if *s != "" {
			*s = redacted
		}
	}
	mask(&c.Auth.JWTSecret)
	mask(&c.Secrets.EncryptionKey)
	mask(&c.GitHub.ClientSecret)
	mask(&c.Slack.ClientSecret)
	return c
}

// YAML renders the configuration as YAML.
func (c Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return out, nil
}
