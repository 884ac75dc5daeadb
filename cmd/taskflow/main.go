// Command taskflow runs the TaskFlow server and its maintenance commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Mschirtzinger/taskflow/internal/config"
	"github.com/Mschirtzinger/taskflow/internal/db"
	"github.com/Mschirtzinger/taskflow/internal/logging"
	"github.com/Mschirtzinger/taskflow/internal/secret"
	"github.com/Mschirtzinger/taskflow/internal/tokens"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "taskflow",
	Short: "Task tracking with GitHub Issues sync",
	Long: `TaskFlow keeps a task list in step with GitHub Issues.

Run 'taskflow serve' to start the HTTP API, or use the commands below to
sync a repository, manage stored tokens and inspect tasks from a terminal.

Configuration is read from taskflow.yaml (or --config), TASKFLOW_*
environment variables and a .env file in the working directory.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to taskflow.yaml")

	rootCmd.AddGroup(
		&cobra.Group{ID: "server", Title: "Server:"},
		&cobra.Group{ID: "sync", Title: "GitHub:"},
		&cobra.Group{ID: "tasks", Title: "Tasks:"},
		&cobra.Group{ID: "admin", Title: "Administration:"},
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// mustLoadConfig loads and validates configuration or exits.
func mustLoadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// mustOpenDatabase opens the configured database and makes sure the schema exists.
func mustOpenDatabase(cfg *config.Config) *db.DB {
	database, err := db.Open(cfg.Database.DSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	if err := database.InitSchema(); err != nil {
		database.Close()
		fmt.Fprintf(os.Stderr, "Error initializing schema: %v\n", err)
		os.Exit(1)
	}
	return database
}

// mustTokenStore builds the encrypted credential store.
func mustTokenStore(cfg *config.Config, database *db.DB, logs *logging.Factory) *tokens.Store {
	box, err := secret.New(cfg.Secrets.EncryptionKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return tokens.New(database, box, logs.Logger("tokens"))
}

// cliLogs sends component logs to stderr only in verbose mode, so command
// output stays readable.
func cliLogs(cfg *config.Config) *logging.Factory {
	if cfg.Log.Verbose {
		return logging.New(logging.Options{Verbose: true})
	}
	return logging.Discard()
}
