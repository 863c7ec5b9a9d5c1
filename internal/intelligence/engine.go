// Package intelligence layers model-backed task analysis over
// deterministic rules. Every operation has a rule-based fallback, so
// the engine keeps answering when the model provider does not.
package intelligence

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/taskmaster/taskmaster/internal/llm"
	"github.com/taskmaster/taskmaster/internal/parser"
	"github.com/taskmaster/taskmaster/internal/types"
)

// TaskAnalysis is the result of analyzing a single task.
type TaskAnalysis struct {
	SuggestedPriority types.Priority `json:"suggested_priority"`
	EstimatedDuration int            `json:"estimated_duration_minutes"`
	Complexity        string         `json:"complexity"`
	Recommendations   []string       `json:"recommendations"`
	Reasoning         string         `json:"reasoning"`
}

// ProductivityInsights summarizes a user's task statistics.
type ProductivityInsights struct {
	ProductivityScore int      `json:"productivity_score"`
	Insights          []string `json:"insights"`
	Recommendations   []string `json:"recommendations"`
	Trend             string   `json:"trend"`
}

// Engine runs task-intelligence operations against a model client.
type Engine struct {
	client llm.Client
	logger *log.Logger

	temperature float64
	maxTokens   int

	now func() time.Time
}

// New builds an engine. Temperature and maxTokens come from the AI
// service configuration.
func New(client llm.Client, temperature float64, maxTokens int, logger *log.Logger) *Engine {
	return &Engine{
		client:      client,
		logger:      logger,
		temperature: temperature,
		maxTokens:   maxTokens,
		now:         time.Now,
	}
}

// AnalyzeTask asks the model for priority, duration, and complexity
// suggestions. Model failures degrade to a due-date rule.
func (e *Engine) AnalyzeTask(ctx context.Context, task *types.Task) *TaskAnalysis {
	analysis, err := e.modelAnalysis(ctx, task)
	if err != nil {
		e.logger.Printf("task analysis failed: %v; using fallback", err)
		return e.fallbackAnalysis(task)
	}
	return analysis
}

func (e *Engine) modelAnalysis(ctx context.Context, task *types.Task) (*TaskAnalysis, error) {
	description := task.Description
	if description == "" {
		description = "No description"
	}
	dueDate := "Not set"
	if task.DueDate != nil {
		dueDate = task.DueDate.Format(time.RFC3339)
	}

	prompt := fmt.Sprintf(`Analyze this task and provide insights:

Task Title: %s
Description: %s
Current Priority: %s
Due Date: %s
Status: %s

Provide a JSON response with:
- suggested_priority: "low", "medium", or "high"
- estimated_duration_minutes: estimated time to complete (number)
- complexity: "low", "medium", or "high"
- recommendations: array of 2-3 actionable recommendations
- reasoning: brief explanation of your analysis

Be concise and practical.`, task.Title, description, task.Priority, dueDate, task.Status)

	text, err := e.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var wire struct {
		SuggestedPriority string   `json:"suggested_priority"`
		EstimatedDuration int      `json:"estimated_duration_minutes"`
		Complexity        string   `json:"complexity"`
		Recommendations   []string `json:"recommendations"`
		Reasoning         string   `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(parser.StripCodeFence(text)), &wire); err != nil {
		return nil, fmt.Errorf("model returned malformed analysis: %w", err)
	}

	analysis := &TaskAnalysis{
		SuggestedPriority: types.PriorityMedium,
		EstimatedDuration: wire.EstimatedDuration,
		Complexity:        wire.Complexity,
		Recommendations:   truncateList(wire.Recommendations, 3),
		Reasoning:         wire.Reasoning,
	}
	if pr, err := types.ParsePriority(wire.SuggestedPriority); err == nil {
		analysis.SuggestedPriority = pr
	}
	if analysis.EstimatedDuration <= 0 {
		analysis.EstimatedDuration = 60
	}
	if analysis.Complexity == "" {
		analysis.Complexity = "medium"
	}
	return analysis, nil
}

// fallbackAnalysis escalates to high inside one day of the due date and
// relaxes to low beyond seven days out.
func (e *Engine) fallbackAnalysis(task *types.Task) *TaskAnalysis {
	priority := types.PriorityMedium
	if task.DueDate != nil {
		daysUntilDue := int(task.DueDate.Sub(e.now()).Hours() / 24)
		if daysUntilDue <= 1 {
			priority = types.PriorityHigh
		} else if daysUntilDue > 7 {
			priority = types.PriorityLow
		}
	}

	return &TaskAnalysis{
		SuggestedPriority: priority,
		EstimatedDuration: 60,
		Complexity:        "medium",
		Recommendations: []string{
			"Break down into smaller subtasks",
			"Set a specific due date if not set",
		},
		Reasoning: "Based on due date analysis",
	}
}

// Insights generates productivity insights from task statistics,
// degrading to completion-rate thresholds on model failure.
func (e *Engine) Insights(ctx context.Context, stats *types.Statistics) *ProductivityInsights {
	insights, err := e.modelInsights(ctx, stats)
	if err != nil {
		e.logger.Printf("insights generation failed: %v; using fallback", err)
		return fallbackInsights(stats)
	}
	return insights
}

func (e *Engine) modelInsights(ctx context.Context, stats *types.Statistics) (*ProductivityInsights, error) {
	prompt := fmt.Sprintf(`Analyze these task statistics and provide productivity insights:

Statistics:
- Total Tasks: %d
- Completed: %d
- In Progress: %d
- Todo: %d
- Overdue: %d
- Completion Rate: %.1f%%

Provide a JSON response with:
- productivity_score: number between 0-100
- insights: array of 2-3 key observations
- recommendations: array of 2-3 actionable suggestions
- trend: "improving", "stable", or "declining"

Be encouraging but honest.`, stats.Total, stats.Completed, stats.InProgress, stats.Todo, stats.Overdue, stats.CompletionRate)

	text, err := e.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var wire ProductivityInsights
	if err := json.Unmarshal([]byte(parser.StripCodeFence(text)), &wire); err != nil {
		return nil, fmt.Errorf("model returned malformed insights: %w", err)
	}

	if wire.ProductivityScore < 0 || wire.ProductivityScore > 100 {
		wire.ProductivityScore = 50
	}
	if wire.Trend == "" {
		wire.Trend = "stable"
	}
	wire.Insights = truncateList(wire.Insights, 3)
	wire.Recommendations = truncateList(wire.Recommendations, 3)
	return &wire, nil
}

func fallbackInsights(stats *types.Statistics) *ProductivityInsights {
	switch {
	case stats.CompletionRate >= 70:
		return &ProductivityInsights{
			ProductivityScore: 80,
			Insights:          []string{"Good task completion rate"},
			Recommendations:   []string{"Keep up the good work"},
			Trend:             "stable",
		}
	case stats.CompletionRate >= 40:
		return &ProductivityInsights{
			ProductivityScore: 60,
			Insights:          []string{"Moderate completion rate"},
			Recommendations:   []string{"Focus on completing existing tasks"},
			Trend:             "stable",
		}
	default:
		return &ProductivityInsights{
			ProductivityScore: 40,
			Insights:          []string{"Low completion rate"},
			Recommendations:   []string{"Consider reducing task load", "Break tasks into smaller pieces"},
			Trend:             "stable",
		}
	}
}

// SuggestBreakdown proposes 3-7 subtask titles for a task. Model
// failures yield a fixed plan/execute/review template.
func (e *Engine) SuggestBreakdown(ctx context.Context, title, description string) []string {
	subtasks, err := e.modelBreakdown(ctx, title, description)
	if err != nil {
		e.logger.Printf("task breakdown failed: %v; using fallback", err)
		return fallbackBreakdown(title)
	}
	return subtasks
}

func (e *Engine) modelBreakdown(ctx context.Context, title, description string) ([]string, error) {
	prompt := fmt.Sprintf(`Break down this complex task into 3-7 manageable subtasks:

Task: %s
Description: %s

Provide a JSON array of subtask titles. Each subtask should be:
- Specific and actionable
- Independent (can be done separately)
- Clear and concise (max 10 words)
- Following a logical sequence

Example format: ["Research requirements", "Create draft outline", "Write first section"]

Return only the JSON array, nothing else.`, title, description)

	text, err := e.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	cleaned := parser.StripCodeFence(text)

	var subtasks []string
	if err := json.Unmarshal([]byte(cleaned), &subtasks); err != nil {
		// Models sometimes answer in prose. Salvage bullet or numbered
		// lines before giving up.
		subtasks = parseProseList(cleaned)
		if len(subtasks) == 0 {
			return nil, fmt.Errorf("model returned no usable subtask list")
		}
	}

	return truncateList(subtasks, 7), nil
}

func fallbackBreakdown(title string) []string {
	return []string{
		fmt.Sprintf("Plan %s", title),
		fmt.Sprintf("Execute %s", title),
		fmt.Sprintf("Review %s", title),
	}
}

func (e *Engine) generate(ctx context.Context, prompt string) (string, error) {
	return e.client.Generate(ctx, prompt,
		llm.WithTemperature(e.temperature),
		llm.WithMaxOutputTokens(e.maxTokens),
		llm.WithJSONResponse(),
	)
}

var listMarkerRe = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+`)

// parseProseList pulls list items out of free text by stripping bullet
// and numbered-list markers.
func parseProseList(text string) []string {
	var items []string
	for _, line := range strings.Split(text, "\n") {
		if !listMarkerRe.MatchString(line) {
			continue
		}
		item := strings.TrimSpace(listMarkerRe.ReplaceAllString(line, ""))
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

func truncateList(items []string, max int) []string {
	if len(items) > max {
		return items[:max]
	}
	return items
}
