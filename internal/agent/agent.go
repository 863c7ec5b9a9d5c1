// Package agent runs a bounded tool-calling loop: the model suggests an
// action in a fenced JSON block, the agent executes it against the task
// store and feeds the observation back, for at most five turns.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"

	"github.com/taskmaster/taskmaster/internal/llm"
	"github.com/taskmaster/taskmaster/internal/types"
)

// maxTurns bounds the reason/act loop.
const maxTurns = 5

// User-facing messages for the loop's terminal failure modes.
const (
	msgRateLimited   = "I'm currently hitting my rate limit with the AI provider. Please wait a minute and try again."
	msgBudgetSpent   = "I tried to help but reached my limit of steps."
	fmtProviderErr   = "I encountered an error communicating with the AI service: %s"
	fmtUnexpectedErr = "An unexpected error occurred: %s"
)

var actionBlockRe = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// Agent drives the tool-calling loop for one user.
type Agent struct {
	client llm.Client
	tools  *Tools
	logger *log.Logger
}

// New builds an agent over the given model client and tool surface.
func New(client llm.Client, tools *Tools, logger *log.Logger) *Agent {
	return &Agent{client: client, tools: tools, logger: logger}
}

// action is the JSON shape of a tool invocation emitted by the model.
type action struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// Run executes the loop for one user request. History is prior
// conversation turns, oldest first. The returned string is always a
// user-facing answer; model failures become explanatory messages
// rather than errors.
func (a *Agent) Run(ctx context.Context, userInput string, history []llm.Message) string {
	msgs := make([]llm.Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, llm.Message{Role: types.RoleUser, Content: buildSystemPrompt(userInput)})

	for turn := 0; turn < maxTurns; turn++ {
		text, err := a.client.GenerateMessages(ctx, msgs,
			llm.WithTemperature(0.1),
			llm.WithMaxOutputTokens(1024),
		)
		if err != nil {
			return a.explainModelError(err)
		}

		a.logger.Printf("agent step %d: %s", turn, text)

		match := actionBlockRe.FindStringSubmatch(text)
		if match == nil {
			// No action block: the model answered directly.
			return text
		}

		var act action
		if err := json.Unmarshal([]byte(match[1]), &act); err != nil {
			msgs = append(msgs,
				llm.Message{Role: types.RoleAssistant, Content: text},
				llm.Message{Role: types.RoleUser, Content: fmt.Sprintf("Observation: Error executing tool: %s", err)},
			)
			continue
		}

		if act.Tool == "final_answer" {
			if msg, ok := act.Args["message"].(string); ok && msg != "" {
				return msg
			}
			return text
		}

		observation := a.tools.Execute(ctx, act.Tool, act.Args)
		msgs = append(msgs,
			llm.Message{Role: types.RoleAssistant, Content: text},
			llm.Message{Role: types.RoleUser, Content: fmt.Sprintf("Observation: %s", observation)},
		)
	}

	return msgBudgetSpent
}

func (a *Agent) explainModelError(err error) string {
	switch {
	case errors.Is(err, llm.ErrRateLimited):
		return msgRateLimited
	case errors.Is(err, llm.ErrProvider):
		return fmt.Sprintf(fmtProviderErr, err)
	default:
		return fmt.Sprintf(fmtUnexpectedErr, err)
	}
}

func buildSystemPrompt(userInput string) string {
	return fmt.Sprintf(`You are a helpful task management assistant. You can access the user's database directly.

%s

To use a tool, output a JSON block like this:
`+"```json"+`
{
    "tool": "create_task",
    "args": {
        "title": "Buy milk",
        "priority": "high"
    }
}
`+"```"+`

When you have completed the request or need to reply to the user, use the 'final_answer' tool:
`+"```json"+`
{
    "tool": "final_answer",
    "args": {
        "message": "I have created the task for you."
    }
}
`+"```"+`

User Request: "%s"`, toolDefinitions, userInput)
}
