package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/taskmaster/taskmaster/internal/llm"
	"github.com/taskmaster/taskmaster/internal/types"
)

// ModelParser asks a hosted model to extract task fields, falling back
// to a deterministic parser when the model is unavailable or returns
// something unusable. Callers never see a parse failure.
type ModelParser struct {
	client    llm.Client
	fallback  TaskParser
	templates PromptTemplates
	logger    *log.Logger

	now func() time.Time
}

// NewModelParser wraps client with fallback as the recovery strategy.
func NewModelParser(client llm.Client, fallback TaskParser, templates PromptTemplates, logger *log.Logger) *ModelParser {
	return &ModelParser{
		client:    client,
		fallback:  fallback,
		templates: templates,
		logger:    logger,
		now:       time.Now,
	}
}

// Parse extracts task fields via the model. Any failure along the way
// (provider error, malformed JSON, unusable fields) routes the input
// through the fallback parser instead.
func (p *ModelParser) Parse(ctx context.Context, input string, userCtx *types.UserContext) (*types.ParsedTask, error) {
	parsed, err := p.modelParse(ctx, input, userCtx)
	if err != nil {
		p.logger.Printf("model parsing failed: %v; falling back to rule-based parsing", err)
		return p.fallback.Parse(ctx, input, userCtx)
	}
	return parsed, nil
}

// taskWire is the JSON shape the prompt instructs the model to emit.
type taskWire struct {
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	DueDate           *string  `json:"due_date"`
	Priority          string   `json:"priority"`
	Tags              []string `json:"tags"`
	EstimatedDuration *int     `json:"estimated_duration"`
}

func (p *ModelParser) modelParse(ctx context.Context, input string, userCtx *types.UserContext) (*types.ParsedTask, error) {
	prompt, err := p.templates.buildParsePrompt(input, userCtx, p.now())
	if err != nil {
		return nil, err
	}

	text, err := p.client.Generate(ctx, prompt,
		llm.WithTemperature(0.3),
		llm.WithMaxOutputTokens(512),
		llm.WithJSONResponse(),
	)
	if err != nil {
		return nil, err
	}

	var wire taskWire
	if err := json.Unmarshal([]byte(StripCodeFence(text)), &wire); err != nil {
		return nil, fmt.Errorf("model returned malformed JSON: %w", err)
	}
	if strings.TrimSpace(wire.Title) == "" {
		return nil, fmt.Errorf("model returned no task title")
	}

	parsed := &types.ParsedTask{
		Title:             strings.TrimSpace(wire.Title),
		Description:       wire.Description,
		Priority:          types.PriorityMedium,
		Tags:              wire.Tags,
		EstimatedDuration: wire.EstimatedDuration,
	}
	if parsed.Description == "" {
		parsed.Description = input
	}
	if pr, err := types.ParsePriority(wire.Priority); err == nil {
		parsed.Priority = pr
	}
	if wire.DueDate != nil {
		if due, err := parseModelDate(*wire.DueDate); err == nil {
			parsed.DueDate = &due
		}
	}
	if len(parsed.Tags) > 5 {
		parsed.Tags = parsed.Tags[:5]
	}

	return parsed, nil
}

// modelDateLayouts covers the formats models actually emit when asked
// for ISO-8601.
var modelDateLayouts = []string{
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
}

func parseModelDate(s string) (time.Time, error) {
	for _, layout := range modelDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// StripCodeFence removes a surrounding markdown code fence, with or
// without a json language marker, from model output.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
