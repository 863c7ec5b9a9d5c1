// Package types provides the core data structures for the task manager.
package types

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// ErrInvalid marks input validation failures. Wrapped errors name the
// offending field.
var ErrInvalid = errors.New("invalid input")

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusBlocked    TaskStatus = "blocked"
	StatusArchived   TaskStatus = "archived"
)

// ParseStatus validates and converts a status string.
func ParseStatus(s string) (TaskStatus, error) {
	switch TaskStatus(s) {
	case StatusTodo, StatusInProgress, StatusCompleted, StatusBlocked, StatusArchived:
		return TaskStatus(s), nil
	}
	return "", fmt.Errorf("%w: invalid status %q (want todo, in_progress, completed, blocked, or archived)", ErrInvalid, s)
}

// Priority is the urgency level of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority validates and converts a priority string.
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return Priority(s), nil
	}
	return "", fmt.Errorf("%w: invalid priority %q (want low, medium, high, or urgent)", ErrInvalid, s)
}

// Task represents a user's task or to-do item.
//
// Tasks may form a parent/subtask tree through ParentTaskID and carry
// free-form metadata written by the AI layers (suggested priorities,
// estimation accuracy, breakdown provenance).
type Task struct {
	ID int64 `json:"id"`

	// Core fields
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	Priority    Priority   `json:"priority"`

	// Scheduling
	DueDate           *time.Time `json:"due_date,omitempty"`
	EstimatedDuration *int       `json:"estimated_duration,omitempty"` // minutes
	ActualDuration    *int       `json:"actual_duration,omitempty"`    // minutes

	// Timestamps
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Ownership & hierarchy
	UserID       int64  `json:"user_id"`
	ParentTaskID *int64 `json:"parent_task_id,omitempty"`

	// Free-form AI metadata
	Metadata map[string]any `json:"metadata,omitempty"`

	// Attached tags, loaded on demand
	Tags []Tag `json:"tags,omitempty"`

	// Direct subtasks, loaded on demand
	Subtasks []Task `json:"subtasks,omitempty"`
}

// Validate checks the task's field values. Errors name the offending field.
func (t *Task) Validate() error {
	if t.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if n := utf8.RuneCountInString(t.Title); n > 255 {
		return fmt.Errorf("%w: title must be 255 characters or less (got %d)", ErrInvalid, n)
	}
	if n := utf8.RuneCountInString(t.Description); n > 2000 {
		return fmt.Errorf("%w: description must be 2000 characters or less (got %d)", ErrInvalid, n)
	}
	if _, err := ParseStatus(string(t.Status)); err != nil {
		return err
	}
	if _, err := ParsePriority(string(t.Priority)); err != nil {
		return err
	}
	if t.EstimatedDuration != nil && *t.EstimatedDuration < 0 {
		return fmt.Errorf("%w: estimated_duration must be >= 0 (got %d)", ErrInvalid, *t.EstimatedDuration)
	}
	if t.ActualDuration != nil && *t.ActualDuration < 0 {
		return fmt.Errorf("%w: actual_duration must be >= 0 (got %d)", ErrInvalid, *t.ActualDuration)
	}
	if t.UserID == 0 {
		return fmt.Errorf("%w: user_id is required", ErrInvalid)
	}
	if t.ParentTaskID != nil && *t.ParentTaskID == t.ID && t.ID != 0 {
		return fmt.Errorf("%w: parent_task_id must not reference the task itself", ErrInvalid)
	}
	return nil
}

// MarkComplete sets the task to completed and stamps completion time.
func (t *Task) MarkComplete(now time.Time) {
	t.Status = StatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
}

// IsOverdue reports whether the task is past its due date and not completed.
func (t *Task) IsOverdue(now time.Time) bool {
	if t.DueDate == nil {
		return false
	}
	return t.Status != StatusCompleted && t.DueDate.Before(now)
}

// Tag categorizes tasks. Names are unique per owning user.
type Tag struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Color       string `json:"color,omitempty"` // hex color code
	Description string `json:"description,omitempty"`
	UserID      int64  `json:"user_id"`
}

// Validate checks the tag's field values.
func (t *Tag) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if n := utf8.RuneCountInString(t.Name); n > 50 {
		return fmt.Errorf("%w: name must be 50 characters or less (got %d)", ErrInvalid, n)
	}
	if t.Color != "" && len(t.Color) > 7 {
		return fmt.Errorf("%w: color must be a hex code of 7 characters or less", ErrInvalid)
	}
	if t.UserID == 0 {
		return fmt.Errorf("%w: user_id is required", ErrInvalid)
	}
	return nil
}

// Message roles for conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MaxMessageContent bounds stored conversation message length.
const MaxMessageContent = 5000

// ConversationMessage is one message in a user's chat history.
type ConversationMessage struct {
	ID        int64          `json:"id"`
	UserID    int64          `json:"user_id"`
	Role      string         `json:"role"` // user or assistant
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Validate checks the message's field values.
func (m *ConversationMessage) Validate() error {
	if m.UserID == 0 {
		return fmt.Errorf("%w: user_id is required", ErrInvalid)
	}
	if m.Role != RoleUser && m.Role != RoleAssistant {
		return fmt.Errorf("%w: invalid role %q (want user or assistant)", ErrInvalid, m.Role)
	}
	if m.Content == "" {
		return fmt.Errorf("%w: content is required", ErrInvalid)
	}
	if n := utf8.RuneCountInString(m.Content); n > MaxMessageContent {
		return fmt.Errorf("%w: content must be %d characters or less (got %d)", ErrInvalid, MaxMessageContent, n)
	}
	return nil
}

// UserContext holds per-user preferences, learned productivity patterns,
// and AI memory. One row per user, updated in place.
type UserContext struct {
	ID                   int64          `json:"id"`
	UserID               int64          `json:"user_id"`
	Preferences          map[string]any `json:"preferences,omitempty"`
	ProductivityPatterns map[string]any `json:"productivity_patterns,omitempty"`
	AIContext            map[string]any `json:"ai_context,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// Statistics summarizes a user's task counts.
type Statistics struct {
	Total          int     `json:"total"`
	Todo           int     `json:"todo"`
	InProgress     int     `json:"in_progress"`
	Completed      int     `json:"completed"`
	Blocked        int     `json:"blocked"`
	Archived       int     `json:"archived"`
	Overdue        int     `json:"overdue"`
	CompletionRate float64 `json:"completion_rate"`
}

// ParsedTask is the structured result of parsing free-form task text.
// Produced by both the heuristic and the model-backed parser.
type ParsedTask struct {
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	DueDate           *time.Time `json:"due_date,omitempty"`
	Priority          Priority   `json:"priority"`
	Tags              []string   `json:"tags,omitempty"`
	EstimatedDuration *int       `json:"estimated_duration,omitempty"` // minutes
}
