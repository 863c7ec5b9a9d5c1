package parser

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/taskmaster/taskmaster/internal/llm"
	"github.com/taskmaster/taskmaster/internal/types"
)

// fakeClient returns a scripted response or error for every call.
type fakeClient struct {
	response string
	err      error

	lastPrompt string
}

func (f *fakeClient) Generate(_ context.Context, prompt string, _ ...llm.Option) (string, error) {
	f.lastPrompt = prompt
	return f.response, f.err
}

func (f *fakeClient) GenerateMessages(_ context.Context, msgs []llm.Message, _ ...llm.Option) (string, error) {
	if len(msgs) > 0 {
		f.lastPrompt = msgs[len(msgs)-1].Content
	}
	return f.response, f.err
}

func newModelParser(client llm.Client) *ModelParser {
	p := NewModelParser(client, newFixedParser(), DefaultTemplates(), log.New(io.Discard, "", 0))
	p.now = func() time.Time { return fixedNow }
	return p
}

func TestModelParserHappyPath(t *testing.T) {
	client := &fakeClient{response: "```json\n" + `{
		"title": "Call John about the project",
		"description": "Remind to call John tomorrow at 2pm",
		"due_date": "2025-03-13T14:00:00",
		"priority": "medium",
		"tags": ["communication", "project"],
		"estimated_duration": 30
	}` + "\n```"}

	parsed, err := newModelParser(client).Parse(context.Background(), "Remind me to call John tomorrow at 2pm", nil)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if parsed.Title != "Call John about the project" {
		t.Errorf("title = %q", parsed.Title)
	}
	if parsed.Priority != types.PriorityMedium {
		t.Errorf("priority = %s", parsed.Priority)
	}
	if parsed.DueDate == nil || parsed.DueDate.Hour() != 14 {
		t.Errorf("due date = %v, want 14:00", parsed.DueDate)
	}
	if parsed.EstimatedDuration == nil || *parsed.EstimatedDuration != 30 {
		t.Errorf("estimated duration = %v, want 30", parsed.EstimatedDuration)
	}
	if !strings.Contains(client.lastPrompt, "Remind me to call John tomorrow at 2pm") {
		t.Error("prompt should embed the input text")
	}
}

func TestModelParserFallsBackOnProviderError(t *testing.T) {
	client := &fakeClient{err: llm.ErrRateLimited}

	parsed, err := newModelParser(client).Parse(context.Background(), "buy groceries today", nil)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	// The heuristic result is recognizable by its keyword-driven fields.
	if parsed.Priority != types.PriorityHigh {
		t.Errorf("priority = %s, want high from the 'today' keyword", parsed.Priority)
	}
	if len(parsed.Tags) != 1 || parsed.Tags[0] != "errands" {
		t.Errorf("tags = %v, want [errands]", parsed.Tags)
	}
}

func TestModelParserFallsBackOnMalformedJSON(t *testing.T) {
	client := &fakeClient{response: "Sure! Here's your task: buy groceries."}

	parsed, err := newModelParser(client).Parse(context.Background(), "buy groceries", nil)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if parsed.Title == "" {
		t.Error("fallback should still produce a title")
	}
}

func TestModelParserFallsBackOnEmptyTitle(t *testing.T) {
	client := &fakeClient{response: `{"title": "  ", "description": "x"}`}

	parsed, err := newModelParser(client).Parse(context.Background(), "water the plants", nil)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if parsed.Title != "water the plants" {
		t.Errorf("title = %q, want heuristic title", parsed.Title)
	}
}

func TestModelParserUserContextInPrompt(t *testing.T) {
	client := &fakeClient{response: `{"title": "Plan sprint", "description": "Plan sprint"}`}
	userCtx := &types.UserContext{
		Preferences: map[string]any{
			"work_hours":       "9-5",
			"default_priority": "high",
		},
	}

	if _, err := newModelParser(client).Parse(context.Background(), "plan the sprint", userCtx); err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if !strings.Contains(client.lastPrompt, "Work Hours: 9-5") {
		t.Error("prompt should include user work hours")
	}
	if !strings.Contains(client.lastPrompt, "Preferred Priority: high") {
		t.Error("prompt should include preferred priority")
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{`{"a":1}`, `{"a":1}`},
		{"  ```json\n{}\n```  ", "{}"},
	}
	for _, tt := range tests {
		if got := StripCodeFence(tt.in); got != tt.want {
			t.Errorf("StripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadTemplatesOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompts.yaml")
	if err := os.WriteFile(path, []byte("parse: |\n  Custom prompt for {{.Input}}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	templates, err := LoadTemplates(path)
	if err != nil {
		t.Fatalf("LoadTemplates returned error: %v", err)
	}
	if !strings.Contains(templates.Parse, "Custom prompt for") {
		t.Errorf("override not applied: %q", templates.Parse)
	}

	// A missing file keeps the defaults.
	templates, err = LoadTemplates(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadTemplates on missing file returned error: %v", err)
	}
	if templates.Parse != defaultParseTemplate {
		t.Error("missing file should yield default templates")
	}
}
