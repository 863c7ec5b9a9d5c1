package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/taskmaster/taskmaster/internal/types"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7aa2f7"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#565f89"))
	tagStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7dcfff"))

	priorityStyles = map[types.Priority]lipgloss.Style{
		types.PriorityUrgent: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f7768e")).Underline(true),
		types.PriorityHigh:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f7768e")),
		types.PriorityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("#e0af68")),
		types.PriorityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a")),
	}

	statusSymbols = map[types.TaskStatus]string{
		types.StatusTodo:       "[ ]",
		types.StatusInProgress: "[~]",
		types.StatusCompleted:  "[x]",
		types.StatusBlocked:    "[!]",
		types.StatusArchived:   "[a]",
	}
)

// applyPlain strips styling for pipes and --plain.
func applyPlain(plain bool) {
	if plain || termenv.EnvNoColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

func renderTaskLine(t *types.Task) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s %s",
		mutedStyle.Render(fmt.Sprintf("#%-4d", t.ID)),
		statusSymbols[t.Status],
		titleStyle.Render(t.Title))

	if style, ok := priorityStyles[t.Priority]; ok {
		b.WriteString(" " + style.Render(string(t.Priority)))
	}
	if t.DueDate != nil {
		b.WriteString(" " + mutedStyle.Render("due "+t.DueDate.Format("2006-01-02")))
	}
	for _, tag := range t.Tags {
		b.WriteString(" " + tagStyle.Render("+"+tag.Name))
	}
	return b.String()
}

func renderTaskDetail(t *types.Task) string {
	var b strings.Builder

	b.WriteString(renderTaskLine(t) + "\n")
	if t.Description != "" {
		b.WriteString("  " + t.Description + "\n")
	}
	if t.EstimatedDuration != nil {
		fmt.Fprintf(&b, "  %s\n", mutedStyle.Render(fmt.Sprintf("estimate: %d min", *t.EstimatedDuration)))
	}
	if t.ActualDuration != nil {
		fmt.Fprintf(&b, "  %s\n", mutedStyle.Render(fmt.Sprintf("actual: %d min", *t.ActualDuration)))
	}
	if t.CompletedAt != nil {
		fmt.Fprintf(&b, "  %s\n", mutedStyle.Render("completed "+t.CompletedAt.Format(time.RFC3339)))
	}
	for i := range t.Subtasks {
		b.WriteString("  " + renderTaskLine(&t.Subtasks[i]) + "\n")
	}
	return b.String()
}
