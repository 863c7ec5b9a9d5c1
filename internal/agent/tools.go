package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskmaster/taskmaster/internal/store"
	"github.com/taskmaster/taskmaster/internal/taskops"
	"github.com/taskmaster/taskmaster/internal/types"
)

// toolDefinitions is the tool list shown to the model verbatim.
const toolDefinitions = `Available Tools:
- list_tasks(status: str = None, limit: int = 10): List tasks. status can be 'todo', 'in_progress', 'completed'.
- create_task(title: str, description: str = None, priority: str = 'medium', due_date: str = None): Create a task.
- delete_task(task_id: int): Delete a task by ID.
- complete_task(task_id: int): Mark a task as completed.
- search_tasks(query: str): Search tasks by text.`

// Tools exposes task operations to the agent loop, scoped to one user.
type Tools struct {
	svc    *taskops.Service
	userID int64
}

// NewTools binds the tool surface to a user.
func NewTools(svc *taskops.Service, userID int64) *Tools {
	return &Tools{svc: svc, userID: userID}
}

// Execute runs the named tool and renders its result as an observation
// string. Unknown names and tool failures become observation text too,
// so the model can self-correct.
func (t *Tools) Execute(ctx context.Context, name string, args map[string]any) string {
	var (
		result any
		err    error
	)

	switch name {
	case "list_tasks":
		result, err = t.listTasks(ctx, args)
	case "create_task":
		result, err = t.createTask(ctx, args)
	case "delete_task":
		result, err = t.deleteTask(ctx, args)
	case "complete_task":
		result, err = t.completeTask(ctx, args)
	case "search_tasks":
		result, err = t.searchTasks(ctx, args)
	default:
		return fmt.Sprintf("Tool %s not found.", name)
	}

	if err != nil {
		return fmt.Sprintf("Error: %s", err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("Error: %s", err)
	}
	return string(data)
}

func (t *Tools) listTasks(ctx context.Context, args map[string]any) (any, error) {
	filter := store.TaskFilter{Limit: argInt(args, "limit", 10)}
	if s := argString(args, "status", ""); s != "" {
		status, err := types.ParseStatus(s)
		if err != nil {
			return nil, err
		}
		filter.Status = &status
	}
	return t.svc.List(ctx, t.userID, filter)
}

func (t *Tools) createTask(ctx context.Context, args map[string]any) (any, error) {
	in := taskops.CreateTaskInput{
		Title:       argString(args, "title", ""),
		Description: argString(args, "description", ""),
	}

	priority, err := types.ParsePriority(argString(args, "priority", "medium"))
	if err != nil {
		return nil, err
	}
	in.Priority = priority

	if s := argString(args, "due_date", ""); s != "" {
		due, err := parseISODate(s)
		if err != nil {
			return nil, err
		}
		in.DueDate = &due
	}

	return t.svc.Create(ctx, t.userID, in)
}

func (t *Tools) deleteTask(ctx context.Context, args map[string]any) (any, error) {
	id, err := argTaskID(args)
	if err != nil {
		return nil, err
	}
	if err := t.svc.Delete(ctx, id, t.userID, false); err != nil {
		return nil, err
	}
	return fmt.Sprintf("Task %d deleted successfully.", id), nil
}

func (t *Tools) completeTask(ctx context.Context, args map[string]any) (any, error) {
	id, err := argTaskID(args)
	if err != nil {
		return nil, err
	}
	return t.svc.Complete(ctx, id, t.userID, nil)
}

func (t *Tools) searchTasks(ctx context.Context, args map[string]any) (any, error) {
	query := argString(args, "query", "")
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	return t.svc.Search(ctx, t.userID, query, 0, 50)
}

var isoDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseISODate(s string) (time.Time, error) {
	for _, layout := range isoDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid due_date %q", s)
}

// JSON argument accessors. Numbers arrive as float64.

func argString(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return def
}

func argInt(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

func argTaskID(args map[string]any) (int64, error) {
	switch v := args["task_id"].(type) {
	case float64:
		return int64(v), nil
	case int:
		return int64(v), nil
	}
	return 0, fmt.Errorf("task_id is required")
}
