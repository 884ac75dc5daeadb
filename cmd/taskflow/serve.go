package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mschirtzinger/taskflow/internal/api"
	"github.com/Mschirtzinger/taskflow/internal/auth"
	"github.com/Mschirtzinger/taskflow/internal/config"
	"github.com/Mschirtzinger/taskflow/internal/events"
	"github.com/Mschirtzinger/taskflow/internal/github"
	"github.com/Mschirtzinger/taskflow/internal/live"
	"github.com/Mschirtzinger/taskflow/internal/logging"
	"github.com/Mschirtzinger/taskflow/internal/slack"
	tfsync "github.com/Mschirtzinger/taskflow/internal/sync"
	"github.com/Mschirtzinger/taskflow/internal/ui"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "server",
	Short:   "Start the HTTP API and live updates endpoint",
	Long: `Start the TaskFlow HTTP server.

The server exposes the JSON API under /api, a liveness probe at /health and
a WebSocket endpoint at /api/live that pushes task_update and notification
messages to the signed-in user.

The GitHub connect flow and the Slack install flow are enabled when their
client id and secret are configured; otherwise those routes answer 503.

When a config file is in use it is watched, and log.verbose takes effect
without a restart.

Example usage:
  taskflow serve
  taskflow serve --addr :9000`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustLoadConfig()
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		logs := logging.New(logging.Options{
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Verbose:    cfg.Log.Verbose,
		})
		defer logs.Close()

		database := mustOpenDatabase(cfg)
		defer database.Close()

		authn, err := auth.NewJWTAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Audience)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		store := mustTokenStore(cfg, database, logs)

		hub := live.NewHub(&live.Config{
			OriginPatterns: cfg.Server.AllowedOrigins,
			Logger:         logs.Logger("live"),
		})
		defer hub.Stop()

		emitter := events.New(database, hub, logs.Logger("events"))
		reconciler := tfsync.New(database, emitter, logs.Logger("sync"))
		client := github.NewClient(cfg.GitHub.APIURL, nil)
		service := tfsync.NewService(store, client, reconciler)

		deps := api.Deps{
			DB:            database,
			Auth:          authn,
			Tokens:        store,
			Sync:          service,
			Emitter:       emitter,
			Live:          hub,
			SecureCookies: strings.HasPrefix(cfg.Server.PublicURL, "https://"),
			Logger:        logs.Logger("api"),
		}
		if cfg.GitHub.OAuthEnabled() {
			deps.GitHubOAuth = github.OAuthConfig(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.GitHub.RedirectURL)
		}
		if cfg.Slack.Enabled() {
			deps.Slack = mustSlackInstaller(cfg, database, store, logs)
		}

		server := api.New(deps)
		if err := server.Start(cfg.Server.Addr); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to start server: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s TaskFlow listening on %s\n", ui.RenderPass("✓"), server.Addr())
		fmt.Printf("   Database: %s\n", cfg.Database.DSN)
		fmt.Printf("   GitHub OAuth: %s\n", enabledLabel(deps.GitHubOAuth != nil))
		fmt.Printf("   Slack install: %s\n", enabledLabel(deps.Slack != nil))
		fmt.Println("\nPress Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if configPath != "" {
			go watchVerbose(ctx, configPath, logs)
		}

		<-ctx.Done()

		fmt.Println("\nShutting down...")
		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		if err := server.Stop(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Server stopped")
	},
}

func mustSlackInstaller(cfg *config.Config, store slack.InstallationStore, sealer slack.Sealer, logs *logging.Factory) *slack.Installer {
	installer, err := slack.NewInstaller(slack.Config{
		ClientID:     cfg.Slack.ClientID,
		ClientSecret: cfg.Slack.ClientSecret,
		RedirectURL:  cfg.Slack.RedirectURL,
		Scopes:       cfg.Slack.Scopes,
		UserScopes:   cfg.Slack.UserScopes,
	}, store, sealer, logs.Logger("slack"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return installer
}

// watchVerbose applies log.verbose from the config file as it changes.
func watchVerbose(ctx context.Context, path string, logs *logging.Factory) {
	logger := logs.Logger("config")
	err := config.Watch(ctx, path, config.DefaultDebounce, logger, func(cfg *config.Config) {
		if cfg.Log.Verbose != logging.Verbose() {
			logging.SetVerbose(cfg.Log.Verbose)
			logger.Printf("Verbose logging %s", enabledLabel(cfg.Log.Verbose))
		}
	})
	if err != nil {
		logger.Printf("Config watch stopped: %v", err)
	}
}

func enabledLabel(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}
