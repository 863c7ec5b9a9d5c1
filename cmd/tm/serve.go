package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/taskmaster/taskmaster/internal/config"
	"github.com/taskmaster/taskmaster/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the REST and WebSocket API server.

Endpoints live under /api/v1: task CRUD, natural-language task
creation, search, statistics, AI insights, and a chat assistant at
/api/v1/chat (plus a WebSocket variant at /api/v1/chat/ws).

The config file is watched; server-independent settings such as the
model provider key take effect on the next request without a restart.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		api := server.NewAPI(a.svc, a.store, a.parser, a.engine, a.client, a.cfg.DefaultUserID, a.logger)
		srv := server.NewServer(a.cfg.Server.Addr(), api.Routes(), a.logger)

		if err := srv.Start(); err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}

		a.loader.Watch(func(cfg *config.Config) {
			a.logger.Printf("config reloaded from %s", a.loader.ConfigFileUsed())
		})

		fmt.Printf("Server listening on http://%s\n", srv.Addr())
		fmt.Println("Press Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		<-ctx.Done()

		fmt.Println("\nShutting down...")
		if err := srv.Stop(); err != nil {
			return fmt.Errorf("failed to stop server: %w", err)
		}
		fmt.Println("Server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
