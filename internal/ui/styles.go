// Package ui renders styled terminal output for the taskflow CLI.
//
// Colors are chosen by termenv from the terminal's capabilities and drop
// out entirely when output is not a TTY or NO_COLOR is set.
package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/Mschirtzinger/taskflow/internal/schema"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	lipgloss.SetColorProfile(termenv.NewOutput(os.Stdout).EnvColorProfile())
}

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#1a7f37", Dark: "#3fb950"}).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#9a6700", Dark: "#d29922"}).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#cf222e", Dark: "#f85149"}).Bold(true)
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#0969da", Dark: "#58a6ff"})
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#6e7781", Dark: "#8b949e"})
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)

	statusStyles = map[schema.Status]lipgloss.Style{
		schema.StatusOpen:           accentStyle,
		schema.StatusInProgress:     warnStyle,
		schema.StatusReadyForReview: lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#8250df", Dark: "#a371f7"}),
		schema.StatusDone:           passStyle,
	}
)

// RenderPass renders s as a success marker.
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderWarn renders s as a warning.
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderFail renders s as an error.
func RenderFail(s string) string { return failStyle.Render(s) }

// RenderAccent highlights s.
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderMuted dims s.
func RenderMuted(s string) string { return mutedStyle.Render(s) }

// RenderStatus colors a task status.
func RenderStatus(s schema.Status) string {
	style, ok := statusStyles[s]
	if !ok {
		return string(s)
	}
	return style.Render(string(s))
}

// TaskTable renders tasks as aligned rows: id, status, priority, title, source.
func TaskTable(tasks []*schema.Task) string {
	if len(tasks) == 0 {
		return RenderMuted("No tasks.") + "\n"
	}

	cell := lipgloss.NewStyle().PaddingRight(2)
	idCol := cell.Width(10)
	statusCol := cell.Width(18)
	prioCol := cell.Width(5)

	var b strings.Builder
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		idCol.Render(headerStyle.Render("ID")),
		statusCol.Render(headerStyle.Render("STATUS")),
		prioCol.Render(headerStyle.Render("PRI")),
		headerStyle.Render("TITLE"),
	))
	b.WriteString("\n")

	for _, t := range tasks {
		title := t.Title
		if t.External != nil {
			title += " " + RenderMuted(t.External.String())
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			idCol.Render(shortID(t.ID)),
			statusCol.Render(RenderStatus(t.Status)),
			prioCol.Render(fmt.Sprintf("P%d", t.Priority)),
			title,
		))
		b.WriteString("\n")
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
