package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Mschirtzinger/taskflow/internal/schema"
	"github.com/Mschirtzinger/taskflow/internal/ui"
)

var connectCmd = &cobra.Command{
	Use:     "connect",
	GroupID: "sync",
	Short:   "Store a provider token for a user",
}

var connectGitHubCmd = &cobra.Command{
	Use:   "github",
	Short: "Store a GitHub personal access token",
	Long: `Encrypt and store a GitHub token for a user.

The token is read from --token, or prompted for when stdin is a terminal.
It is sealed with secrets.encryption_key before it reaches the database.

Example usage:
  taskflow connect github --user 3f2c... --token ghp_xxx
  taskflow connect github --user 3f2c...          # prompts`,
	Run: func(cmd *cobra.Command, args []string) {
		userID, _ := cmd.Flags().GetString("user")
		token, _ := cmd.Flags().GetString("token")
		scope, _ := cmd.Flags().GetString("scope")

		if token == "" {
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				fmt.Fprintf(os.Stderr, "Error: --token is required when stdin is not a terminal\n")
				os.Exit(1)
			}
			prompted, err := promptToken("GitHub token")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			token = prompted
		}

		cfg := mustLoadConfig()
		database := mustOpenDatabase(cfg)
		defer database.Close()
		store := mustTokenStore(cfg, database, cliLogs(cfg))

		ctx := context.Background()
		if err := database.EnsureUser(ctx, userID, ""); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := store.Save(ctx, userID, schema.ProviderGitHub, token, scope); err != nil {
			fmt.Fprintf(os.Stderr, "Error storing token: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s GitHub connected for %s\n", ui.RenderPass("✓"), userID)
	},
}

var disconnectCmd = &cobra.Command{
	Use:     "disconnect <provider>",
	GroupID: "sync",
	Short:   "Remove a stored provider token",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		userID, _ := cmd.Flags().GetString("user")
		provider := strings.ToLower(args[0])
		if provider != schema.ProviderGitHub && provider != schema.ProviderSlack {
			fmt.Fprintf(os.Stderr, "Error: unknown provider %q (want github or slack)\n", args[0])
			os.Exit(1)
		}

		cfg := mustLoadConfig()
		database := mustOpenDatabase(cfg)
		defer database.Close()
		store := mustTokenStore(cfg, database, cliLogs(cfg))

		if err := store.Disconnect(context.Background(), userID, provider); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s Removed %s token for %s\n", ui.RenderPass("✓"), provider, userID)
	},
}

func promptToken(title string) (string, error) {
	var token string
	err := huh.NewInput().
		Title(title).
		EchoMode(huh.EchoModePassword).
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("token is required")
			}
			return nil
		}).
		Value(&token).
		Run()
	if err != nil {
		return "", fmt.Errorf("prompt cancelled: %w", err)
	}
	return strings.TrimSpace(token), nil
}

func init() {
	connectGitHubCmd.Flags().StringP("user", "u", "", "User to store the token for (required)")
	connectGitHubCmd.Flags().String("token", "", "Token value (prompted when omitted)")
	connectGitHubCmd.Flags().String("scope", "", "Scopes granted to the token, for the record")
	_ = connectGitHubCmd.MarkFlagRequired("user")

	disconnectCmd.Flags().StringP("user", "u", "", "User to remove the token for (required)")
	_ = disconnectCmd.MarkFlagRequired("user")

	connectCmd.AddCommand(connectGitHubCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(disconnectCmd)
}
