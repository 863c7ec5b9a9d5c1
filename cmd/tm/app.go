package main

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskmaster/taskmaster/internal/config"
	"github.com/taskmaster/taskmaster/internal/intelligence"
	"github.com/taskmaster/taskmaster/internal/llm"
	"github.com/taskmaster/taskmaster/internal/logging"
	"github.com/taskmaster/taskmaster/internal/parser"
	"github.com/taskmaster/taskmaster/internal/store"
	"github.com/taskmaster/taskmaster/internal/taskops"
)

// app holds the wired runtime every command works against.
type app struct {
	cfg    *config.Config
	loader *config.Loader
	logger *log.Logger
	store  *store.Store
	svc    *taskops.Service
	parser parser.TaskParser
	engine *intelligence.Engine
	client llm.Client
	userID int64
}

// newApp loads configuration and opens the store and AI stack for one
// command invocation. Callers must Close.
func newApp(cmd *cobra.Command) (*app, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	loader := config.NewLoader(cfgPath)
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	logger := logging.New(cfg.Log)

	st, err := store.OpenContext(cmd.Context(), cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Without an API key the AI surfaces run on deterministic fallbacks.
	client := llm.Disabled()
	heuristic := parser.NewHeuristicParser()
	var p parser.TaskParser = heuristic
	if cfg.AI.APIKey != "" {
		client, err = llm.New(llm.Config{
			Provider: cfg.AI.Provider,
			APIKey:   cfg.AI.APIKey,
			Model:    cfg.AI.Model,
		})
		if err != nil {
			st.Close()
			return nil, err
		}
		templates, err := parser.LoadTemplates(cfg.AI.PromptsFile)
		if err != nil {
			st.Close()
			return nil, err
		}
		p = parser.NewModelParser(client, heuristic, templates, logger)
	}

	userID := cfg.DefaultUserID
	if v, _ := cmd.Flags().GetInt64("user"); v > 0 {
		userID = v
	}

	return &app{
		cfg:    cfg,
		loader: loader,
		logger: logger,
		store:  st,
		svc:    taskops.New(st, logger),
		parser: p,
		engine: intelligence.New(client, cfg.AI.Temperature, cfg.AI.MaxTokens, logger),
		client: client,
		userID: userID,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

var cliDateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

func parseCLIDate(s string) (time.Time, error) {
	for _, layout := range cliDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD or RFC 3339)", s)
}
