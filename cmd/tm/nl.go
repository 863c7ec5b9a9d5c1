package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskmaster/taskmaster/internal/conversation"
	"github.com/taskmaster/taskmaster/internal/taskops"
)

var nlCmd = &cobra.Command{
	Use:   "nl <description>",
	Short: "Create a task from a natural-language description",
	Long: `Parse a plain-English description into a structured task and save it.

Examples:
  tm nl "urgent meeting with the team tomorrow at 3pm"
  tm nl "buy groceries this weekend"

With an API key configured the model extracts the fields; otherwise
built-in date and keyword rules do the parsing.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plain, _ := cmd.Flags().GetBool("plain")
		applyPlain(plain)

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		input := strings.Join(args, " ")
		userCtx, err := a.store.UserContext(cmd.Context(), a.userID)
		if err != nil {
			return err
		}

		recent, err := a.svc.Recent(cmd.Context(), a.userID, 10)
		if err != nil {
			return err
		}
		conversation.BuildTaskContext(recent).ApplyToPreferences(userCtx)

		parsed, err := a.parser.Parse(cmd.Context(), input, userCtx)
		if err != nil {
			return err
		}

		task, err := a.svc.Create(cmd.Context(), a.userID, taskops.CreateTaskInput{
			Title:             parsed.Title,
			Description:       parsed.Description,
			Priority:          parsed.Priority,
			DueDate:           parsed.DueDate,
			EstimatedDuration: parsed.EstimatedDuration,
			Tags:              parsed.Tags,
		})
		if err != nil {
			return err
		}
		fmt.Println(renderTaskLine(task))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(nlCmd)
}
