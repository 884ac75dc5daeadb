package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/Mschirtzinger/taskflow/internal/db"
	"github.com/Mschirtzinger/taskflow/internal/schema"
	"github.com/Mschirtzinger/taskflow/internal/ui"
)

var taskCmd = &cobra.Command{
	Use:     "task",
	GroupID: "tasks",
	Short:   "Create and list tasks",
}

var taskCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a task",
	Long: `Create a task owned by --user.

--due accepts a timestamp (2026-11-01T09:00:00Z), a date (2026-11-01) or
plain English such as "next friday" or "in 3 days".

Example usage:
  taskflow task create "Write release notes" --user alice --due "next friday"
  taskflow task create "Fix login" -u alice --assignee bob -p 1`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		userID, _ := cmd.Flags().GetString("user")
		assignee, _ := cmd.Flags().GetString("assignee")
		priority, _ := cmd.Flags().GetInt("priority")
		description, _ := cmd.Flags().GetString("description")
		due, _ := cmd.Flags().GetString("due")

		task := &schema.Task{
			Title:       strings.Join(args, " "),
			Description: description,
			Priority:    priority,
			CreatorID:   userID,
			AssigneeID:  assignee,
		}
		if due != "" {
			dueAt, err := parseDue(due, time.Now())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			task.DueAt = dueAt
		}
		task.SetDefaults()

		cfg := mustLoadConfig()
		database := mustOpenDatabase(cfg)
		defer database.Close()

		ctx := context.Background()
		if err := database.EnsureUser(ctx, userID, ""); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if assignee != "" {
			ok, err := database.UserExists(ctx, assignee)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if !ok {
				fmt.Fprintf(os.Stderr, "Error: unknown assignee %q\n", assignee)
				os.Exit(1)
			}
		}

		if err := database.CreateTaskContext(ctx, task); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating task: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Created task %s\n", ui.RenderPass("✓"), ui.RenderAccent(task.ID))
		fmt.Printf("   Title: %s\n", task.Title)
		fmt.Printf("   Priority: P%d\n", task.Priority)
		if task.DueAt != nil {
			fmt.Printf("   Due: %s\n", task.DueAt.Local().Format("Mon Jan 2 2006 15:04"))
		}
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Long: `List tasks, most recently updated first.

With --user, only tasks created by or assigned to that user are shown.`,
	Run: func(cmd *cobra.Command, args []string) {
		userID, _ := cmd.Flags().GetString("user")
		rawStatus, _ := cmd.Flags().GetString("status")
		repo, _ := cmd.Flags().GetString("repo")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := db.ListTasksFilter{UserID: userID, Repo: repo, Limit: limit}
		if rawStatus != "" {
			status, err := schema.ParseStatus(rawStatus)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			filter.Status = status
		}

		cfg := mustLoadConfig()
		database := mustOpenDatabase(cfg)
		defer database.Close()

		tasks, err := database.ListTasks(context.Background(), filter)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(ui.TaskTable(tasks))
	},
}

var dueParser = newDueParser()

func newDueParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// parseDue reads a due date relative to now. Exact formats win over
// natural language.
func parseDue(text string, now time.Time) (*time.Time, error) {
	text = strings.TrimSpace(text)
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, text, now.Location()); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}

	r, err := dueParser.Parse(text, now)
	if err != nil {
		return nil, fmt.Errorf("cannot parse due date %q: %w", text, err)
	}
	if r == nil {
		return nil, fmt.Errorf("cannot parse due date %q", text)
	}
	t := r.Time.UTC()
	return &t, nil
}

func init() {
	taskCreateCmd.Flags().StringP("user", "u", "", "Creator of the task (required)")
	taskCreateCmd.Flags().StringP("assignee", "a", "", "User to assign the task to")
	taskCreateCmd.Flags().IntP("priority", "p", schema.DefaultPriority, "Priority 0-4 (0=critical)")
	taskCreateCmd.Flags().StringP("description", "d", "", "Longer description")
	taskCreateCmd.Flags().String("due", "", "Due date (timestamp, date or natural language)")
	_ = taskCreateCmd.MarkFlagRequired("user")

	taskListCmd.Flags().StringP("user", "u", "", "Only tasks created by or assigned to this user")
	taskListCmd.Flags().StringP("status", "s", "", "Filter by status (open, in_progress, ready_for_review, done)")
	taskListCmd.Flags().String("repo", "", "Filter by mirrored repository (owner/name)")
	taskListCmd.Flags().IntP("limit", "n", 50, "Maximum number of tasks (0 = all)")

	taskCmd.AddCommand(taskCreateCmd)
	taskCmd.AddCommand(taskListCmd)
	rootCmd.AddCommand(taskCmd)
}
