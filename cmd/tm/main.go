// Command tm is the taskmaster CLI: task CRUD, natural-language capture,
// an AI chat assistant, and the HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tm",
	Short: "AI-powered task management",
	Long: `tm manages tasks in a local SQLite database (or a hosted Turso
database) with optional AI assistance for parsing natural language,
prioritizing work, and chatting about your task list.

Set TASKMASTER_AI_API_KEY (or ai.api_key in taskmaster.yaml) to enable
the model-backed features; without a key every command still works on
built-in heuristics.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: taskmaster.yaml)")
	rootCmd.PersistentFlags().Int64("user", 0, "Act as this user ID (default from config)")
	rootCmd.PersistentFlags().Bool("plain", false, "Disable colored output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
