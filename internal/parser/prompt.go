package parser

import (
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/taskmaster/taskmaster/internal/types"
)

// defaultParseTemplate instructs the model to emit a single JSON object
// matching ParsedTask. The worked examples carry concrete dates computed
// at call time so the model anchors relative expressions correctly.
const defaultParseTemplate = `You are an intelligent task parsing assistant. Your job is to extract structured task information from natural language input.
{{if .Context}}
User Context:
{{.Context}}
{{end}}
Extract the following information:
- title: Main task title (concise, actionable)
- description: Full task description
- due_date: ISO format date string (YYYY-MM-DDTHH:MM:SS) or null if no specific date mentioned
- priority: "low", "medium", or "high" (default to "medium" if unclear)
- tags: Array of relevant tags (2-5 tags max)
- estimated_duration: Estimated duration in minutes (null if not specified)

Examples:
Input: "Remind me to call John tomorrow at 2pm about the project"
Output: {
    "title": "Call John about the project",
    "description": "Remind to call John tomorrow at 2pm about the project",
    "due_date": "{{.Tomorrow}}T14:00:00",
    "priority": "medium",
    "tags": ["communication", "project"],
    "estimated_duration": 30
}

Input: "Finish the quarterly report by Friday"
Output: {
    "title": "Finish the quarterly report",
    "description": "Finish the quarterly report by Friday",
    "due_date": "{{.Friday}}T23:59:59",
    "priority": "high",
    "tags": ["work", "report", "deadline"],
    "estimated_duration": 240
}

Input: "Buy groceries on the way home"
Output: {
    "title": "Buy groceries",
    "description": "Buy groceries on the way home",
    "due_date": null,
    "priority": "medium",
    "tags": ["errand", "shopping"],
    "estimated_duration": 60
}

Now parse this input: "{{.Input}}"
`

// PromptTemplates holds the model prompt text. Operators can override
// individual templates from a prompts.yaml file.
type PromptTemplates struct {
	Parse string `yaml:"parse"`
}

// DefaultTemplates returns the built-in prompt set.
func DefaultTemplates() PromptTemplates {
	return PromptTemplates{Parse: defaultParseTemplate}
}

// LoadTemplates reads template overrides from a YAML file. A missing
// file yields the defaults; templates the file omits keep their
// built-in text.
func LoadTemplates(path string) (PromptTemplates, error) {
	templates := DefaultTemplates()
	if path == "" {
		return templates, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return templates, nil
		}
		return templates, fmt.Errorf("failed to read prompt templates: %w", err)
	}

	var overrides PromptTemplates
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return templates, fmt.Errorf("failed to parse prompt templates: %w", err)
	}
	if overrides.Parse != "" {
		templates.Parse = overrides.Parse
	}
	return templates, nil
}

type parsePromptData struct {
	Context  string
	Input    string
	Tomorrow string
	Friday   string
}

// buildParsePrompt renders the parse template for one input.
func (t PromptTemplates) buildParsePrompt(input string, userCtx *types.UserContext, now time.Time) (string, error) {
	tmpl, err := template.New("parse").Parse(t.Parse)
	if err != nil {
		return "", fmt.Errorf("invalid parse template: %w", err)
	}

	data := parsePromptData{
		Context:  formatUserContext(userCtx),
		Input:    input,
		Tomorrow: now.AddDate(0, 0, 1).Format("2006-01-02"),
		Friday:   nextWeekdayOrToday(now, time.Friday).Format("2006-01-02"),
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render parse prompt: %w", err)
	}
	return b.String(), nil
}

// formatUserContext renders the preferences relevant to parsing, or ""
// when there is nothing useful to say.
func formatUserContext(userCtx *types.UserContext) string {
	if userCtx == nil || len(userCtx.Preferences) == 0 {
		return ""
	}

	workHours := "N/A"
	if v, ok := userCtx.Preferences["work_hours"]; ok {
		workHours = fmt.Sprint(v)
	}
	defaultPriority := "medium"
	if v, ok := userCtx.Preferences["default_priority"]; ok {
		defaultPriority = fmt.Sprint(v)
	}
	categories := "[]"
	if v, ok := userCtx.Preferences["common_task_categories"]; ok {
		categories = fmt.Sprint(v)
	}

	return fmt.Sprintf("- Work Hours: %s\n- Preferred Priority: %s\n- Common Categories: %s",
		workHours, defaultPriority, categories)
}

// nextWeekdayOrToday returns the date of the next occurrence of day,
// counting today as a match.
func nextWeekdayOrToday(now time.Time, day time.Weekday) time.Time {
	ahead := (int(day) - int(now.Weekday()) + 7) % 7
	return now.AddDate(0, 0, ahead)
}
