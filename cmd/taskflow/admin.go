package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Mschirtzinger/taskflow/internal/config"
	"github.com/Mschirtzinger/taskflow/internal/db"
	"github.com/Mschirtzinger/taskflow/internal/ui"
)

var dbCmd = &cobra.Command{
	Use:     "db",
	GroupID: "admin",
	Short:   "Database management",
}

var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database schema",
	Long: `Create the TaskFlow tables and indexes if they do not exist.

Safe to run repeatedly. database.dsn may be a SQLite path or a libsql://
URL for a remote Turso database.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		database, err := db.Open(cfg.Database.DSN)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
			os.Exit(1)
		}
		defer database.Close()

		if err := database.InitSchema(); err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing schema: %v\n", err)
			os.Exit(1)
		}

		count, err := database.GetTaskCount()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Schema ready\n", ui.RenderPass("✓"))
		fmt.Printf("   Database: %s\n", cfg.Database.DSN)
		fmt.Printf("   Tasks: %d\n", count)
	},
}

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "admin",
	Short:   "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		out, err := cfg.Redacted().YAML()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(string(out))

		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "\n%s %v\n", ui.RenderWarn("⚠"), err)
		}
	},
}

func init() {
	dbCmd.AddCommand(dbInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(configCmd)
}
