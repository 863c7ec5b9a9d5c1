package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "absent.yaml"))

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Addr() != "127.0.0.1:8080" {
		t.Errorf("addr = %q", cfg.Server.Addr())
	}
	if cfg.AI.Provider != "gemini" || cfg.AI.Temperature != 0.7 || cfg.AI.MaxTokens != 1000 {
		t.Errorf("ai config = %+v", cfg.AI)
	}
	if cfg.Conversation.HistoryLimit != 10 {
		t.Errorf("history limit = %d, want 10", cfg.Conversation.HistoryLimit)
	}
	if cfg.DefaultUserID != 1 {
		t.Errorf("default user = %d, want 1", cfg.DefaultUserID)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskmaster.yaml")
	content := `
server:
  port: 9999
database:
  path: /tmp/tasks.db
ai:
  provider: anthropic
  model: claude-sonnet-4-5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.AI.Provider != "anthropic" || cfg.AI.Model != "claude-sonnet-4-5" {
		t.Errorf("ai config = %+v", cfg.AI)
	}
	// Untouched keys keep their defaults.
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("host = %q", cfg.Server.Host)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TASKMASTER_AI_API_KEY", "test-key")
	t.Setenv("TASKMASTER_SERVER_PORT", "7070")

	cfg, err := NewLoader(filepath.Join(t.TempDir(), "absent.yaml")).Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.AI.APIKey != "test-key" {
		t.Errorf("api key = %q", cfg.AI.APIKey)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want 7070", cfg.Server.Port)
	}
}

func TestDatabaseDSN(t *testing.T) {
	tests := []struct {
		cfg  DatabaseConfig
		want string
	}{
		{DatabaseConfig{Path: "tasks.db"}, "tasks.db"},
		{DatabaseConfig{URL: "libsql://db.turso.io"}, "libsql://db.turso.io"},
		{DatabaseConfig{URL: "libsql://db.turso.io", AuthToken: "tok"}, "libsql://db.turso.io?authToken=tok"},
	}
	for _, tt := range tests {
		if got := tt.cfg.DSN(); got != tt.want {
			t.Errorf("DSN() = %q, want %q", got, tt.want)
		}
	}
}
