package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mschirtzinger/taskflow/internal/apperr"
	"github.com/Mschirtzinger/taskflow/internal/auth"
	"github.com/Mschirtzinger/taskflow/internal/github"
	tfsync "github.com/Mschirtzinger/taskflow/internal/sync"
	"github.com/Mschirtzinger/taskflow/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync <owner/repo>",
	GroupID: "sync",
	Short:   "Sync a repository's GitHub issues into tasks",
	Long: `Fetch the most recently updated issues of a repository and mirror them as tasks.

This performs the same sync as POST /api/github/sync:
  1. Resolves the user's stored GitHub token
  2. Fetches up to 100 issues (pull requests are skipped)
  3. Creates a task per new issue and updates the rest
  4. Records status changes and notifies assignees

Issues that fail are reported individually; the rest of the batch still syncs.
Store a token first with 'taskflow connect github'.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		userID, _ := cmd.Flags().GetString("user")
		owner, repo, ok := strings.Cut(args[0], "/")
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: repository must be owner/repo (got %q)\n", args[0])
			os.Exit(1)
		}

		cfg := mustLoadConfig()
		logs := cliLogs(cfg)
		database := mustOpenDatabase(cfg)
		defer database.Close()

		ctx := context.Background()
		if err := database.EnsureUser(ctx, userID, ""); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		store := mustTokenStore(cfg, database, logs)
		reconciler := tfsync.New(database, nil, logs.Logger("sync"))
		service := tfsync.NewService(store, github.NewClient(cfg.GitHub.APIURL, nil), reconciler)

		fmt.Printf("%s Syncing %s/%s...\n", ui.RenderAccent("🔄"), owner, repo)
		start := time.Now()

		result, err := service.SyncRepository(ctx, &auth.Session{UserID: userID}, owner, repo)
		if err != nil {
			reportSyncError(err)
			os.Exit(1)
		}

		fmt.Printf("%s Sync complete in %v\n", ui.RenderPass("✓"), time.Since(start).Round(time.Millisecond))
		fmt.Printf("   Created: %d\n", result.Created)
		fmt.Printf("   Updated: %d\n", result.Updated)
		if len(result.Errors) > 0 {
			fmt.Printf("%s %d issue(s) failed:\n", ui.RenderWarn("⚠"), len(result.Errors))
			for _, msg := range result.Errors {
				fmt.Printf("   %s\n", msg)
			}
		}
	},
}

func reportSyncError(err error) {
	if rl, ok := github.AsRateLimit(err); ok {
		fmt.Fprintf(os.Stderr, "Error: GitHub rate limit exceeded; resets at %s\n", github.FormatResetAt(rl.ResetAt))
		return
	}
	if errors.Is(err, apperr.ErrNotConnected) {
		fmt.Fprintf(os.Stderr, "Error: no GitHub token stored for this user\n")
		fmt.Fprintf(os.Stderr, "Run 'taskflow connect github --user <id>' first\n")
		return
	}
	fmt.Fprintf(os.Stderr, "Error during sync: %v\n", err)
}

func init() {
	syncCmd.Flags().StringP("user", "u", "", "User the tasks belong to (required)")
	_ = syncCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(syncCmd)
}
