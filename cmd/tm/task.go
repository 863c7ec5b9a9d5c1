package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/taskmaster/taskmaster/internal/store"
	"github.com/taskmaster/taskmaster/internal/taskops"
	"github.com/taskmaster/taskmaster/internal/types"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		plain, _ := cmd.Flags().GetBool("plain")
		applyPlain(plain)

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		filter := store.TaskFilter{Limit: 100}
		if s, _ := cmd.Flags().GetString("status"); s != "" {
			status, err := types.ParseStatus(s)
			if err != nil {
				return err
			}
			filter.Status = &status
		}
		if s, _ := cmd.Flags().GetString("priority"); s != "" {
			priority, err := types.ParsePriority(s)
			if err != nil {
				return err
			}
			filter.Priority = &priority
		}
		if all, _ := cmd.Flags().GetBool("all"); !all {
			filter.TopLevelOnly = true
		}

		tasks, err := a.svc.List(cmd.Context(), a.userID, filter)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Println("No tasks found.")
			return nil
		}
		for i := range tasks {
			fmt.Println(renderTaskLine(&tasks[i]))
		}
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a task",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plain, _ := cmd.Flags().GetBool("plain")
		applyPlain(plain)

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		in := taskops.CreateTaskInput{Title: strings.Join(args, " ")}
		if s, _ := cmd.Flags().GetString("priority"); s != "" {
			in.Priority = types.Priority(s)
		}
		if s, _ := cmd.Flags().GetString("description"); s != "" {
			in.Description = s
		}
		if s, _ := cmd.Flags().GetString("due"); s != "" {
			due, err := parseCLIDate(s)
			if err != nil {
				return err
			}
			in.DueDate = &due
		}
		if n, _ := cmd.Flags().GetInt("estimate"); n > 0 {
			in.EstimatedDuration = &n
		}
		if tags, _ := cmd.Flags().GetStringSlice("tag"); len(tags) > 0 {
			in.Tags = tags
		}
		if parent, _ := cmd.Flags().GetInt64("parent"); parent > 0 {
			in.ParentTaskID = &parent
		}

		task, err := a.svc.Create(cmd.Context(), a.userID, in)
		if err != nil {
			return err
		}
		fmt.Println(renderTaskLine(task))
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a task with its subtasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plain, _ := cmd.Flags().GetBool("plain")
		applyPlain(plain)

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := parseTaskID(args[0])
		if err != nil {
			return err
		}
		task, err := a.svc.Get(cmd.Context(), id, a.userID)
		if err != nil {
			return err
		}
		fmt.Print(renderTaskDetail(task))
		return nil
	},
}

var doneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a task completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plain, _ := cmd.Flags().GetBool("plain")
		applyPlain(plain)

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := parseTaskID(args[0])
		if err != nil {
			return err
		}

		var actual *int
		if n, _ := cmd.Flags().GetInt("actual"); n > 0 {
			actual = &n
		}

		task, err := a.svc.Complete(cmd.Context(), id, a.userID, actual)
		if err != nil {
			return err
		}
		fmt.Println(renderTaskLine(task))
		if acc, ok := task.Metadata["estimation_accuracy"]; ok {
			fmt.Println(mutedStyle.Render(fmt.Sprintf("estimation accuracy: %v%%", acc)))
		}
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plain, _ := cmd.Flags().GetBool("plain")
		applyPlain(plain)

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := parseTaskID(args[0])
		if err != nil {
			return err
		}
		cascade, _ := cmd.Flags().GetBool("cascade")
		force, _ := cmd.Flags().GetBool("force")

		task, err := a.svc.Get(cmd.Context(), id, a.userID)
		if err != nil {
			return err
		}
		if len(task.Subtasks) > 0 && !cascade {
			return fmt.Errorf("task %d has %d subtasks; pass --cascade to delete them too", id, len(task.Subtasks))
		}

		if !force {
			var confirmed bool
			prompt := huh.NewConfirm().
				Title(fmt.Sprintf("Delete task #%d %q?", task.ID, task.Title)).
				Value(&confirmed)
			if len(task.Subtasks) > 0 {
				prompt = prompt.Description(fmt.Sprintf("%d subtasks will be deleted as well.", len(task.Subtasks)))
			}
			if err := prompt.Run(); err != nil {
				return err
			}
			if !confirmed {
				fmt.Println("Aborted.")
				return nil
			}
		}

		if err := a.svc.Delete(cmd.Context(), id, a.userID, cascade); err != nil {
			return err
		}
		fmt.Printf("Deleted task #%d\n", id)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Search tasks by title and description",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plain, _ := cmd.Flags().GetBool("plain")
		applyPlain(plain)

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		tasks, err := a.svc.Search(cmd.Context(), a.userID, strings.Join(args, " "), 0, 50)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Println("No matching tasks.")
			return nil
		}
		for i := range tasks {
			fmt.Println(renderTaskLine(&tasks[i]))
		}
		return nil
	},
}

func parseTaskID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}

func init() {
	listCmd.Flags().String("status", "", "Filter by status")
	listCmd.Flags().String("priority", "", "Filter by priority")
	listCmd.Flags().Bool("all", false, "Include subtasks at top level")

	addCmd.Flags().StringP("description", "d", "", "Task description")
	addCmd.Flags().StringP("priority", "p", "", "Priority (low, medium, high, urgent)")
	addCmd.Flags().String("due", "", "Due date (YYYY-MM-DD or RFC 3339)")
	addCmd.Flags().Int("estimate", 0, "Estimated duration in minutes")
	addCmd.Flags().StringSlice("tag", nil, "Tag to attach (repeatable)")
	addCmd.Flags().Int64("parent", 0, "Parent task ID")

	doneCmd.Flags().Int("actual", 0, "Actual duration in minutes")

	rmCmd.Flags().Bool("cascade", false, "Delete subtasks too")
	rmCmd.Flags().BoolP("force", "f", false, "Skip confirmation")

	rootCmd.AddCommand(listCmd, addCmd, showCmd, doneCmd, rmCmd, searchCmd)
}
