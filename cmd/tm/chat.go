package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskmaster/taskmaster/internal/agent"
	"github.com/taskmaster/taskmaster/internal/conversation"
	"github.com/taskmaster/taskmaster/internal/types"
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Chat with the task assistant",
	Long: `Talk to the AI assistant about your tasks. The assistant can create,
list, complete, and delete tasks on your behalf.

With a message argument it answers once and exits; without one it
starts an interactive session. Type "exit" or press Ctrl+D to leave.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		plain, _ := cmd.Flags().GetBool("plain")
		applyPlain(plain)

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		manager, err := conversation.NewManager(cmd.Context(), a.store, a.userID)
		if err != nil {
			return err
		}
		tools := agent.NewTools(a.svc, a.userID)
		ag := agent.New(a.client, tools, a.logger)

		runTurn := func(message string) error {
			response := ag.Run(cmd.Context(), message, manager.ModelMessages())
			if err := manager.AddMessage(cmd.Context(), types.RoleUser, message, nil, true); err != nil {
				return err
			}
			if err := manager.AddMessage(cmd.Context(), types.RoleAssistant, response, nil, true); err != nil {
				return err
			}
			fmt.Println(response)
			return nil
		}

		if len(args) > 0 {
			return runTurn(strings.Join(args, " "))
		}

		fmt.Println(mutedStyle.Render("Chatting with the task assistant. Type \"exit\" to leave."))
		defer func() { a.logger.Printf("chat session ended: %s", manager.Summarize()) }()

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				fmt.Println()
				return scanner.Err()
			}
			message := strings.TrimSpace(scanner.Text())
			if message == "" {
				continue
			}
			if message == "exit" || message == "quit" {
				return nil
			}
			if err := runTurn(message); err != nil {
				return err
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
