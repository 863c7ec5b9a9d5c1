package types

import (
	"strings"
	"testing"
	"time"
)

func TestTask_Validate(t *testing.T) {
	neg := -5
	self := int64(7)

	tests := []struct {
		name    string
		task    Task
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid task",
			task: Task{
				Title:    "Prepare quarterly budget analysis",
				Status:   StatusTodo,
				Priority: PriorityHigh,
				UserID:   1,
			},
			wantErr: false,
		},
		{
			name: "missing title",
			task: Task{
				Status:   StatusTodo,
				Priority: PriorityMedium,
				UserID:   1,
			},
			wantErr: true,
			errMsg:  "title is required",
		},
		{
			name: "title too long",
			task: Task{
				Title:    strings.Repeat("x", 256),
				Status:   StatusTodo,
				Priority: PriorityMedium,
				UserID:   1,
			},
			wantErr: true,
			errMsg:  "title must be 255 characters or less",
		},
		{
			name: "multi-byte title counted in characters",
			task: Task{
				Title:    strings.Repeat("é", 255),
				Status:   StatusTodo,
				Priority: PriorityMedium,
				UserID:   1,
			},
			wantErr: false,
		},
		{
			name: "invalid status",
			task: Task{
				Title:    "Test",
				Status:   "done",
				Priority: PriorityMedium,
				UserID:   1,
			},
			wantErr: true,
			errMsg:  "invalid status",
		},
		{
			name: "invalid priority",
			task: Task{
				Title:    "Test",
				Status:   StatusTodo,
				Priority: "critical",
				UserID:   1,
			},
			wantErr: true,
			errMsg:  "invalid priority",
		},
		{
			name: "negative estimated duration",
			task: Task{
				Title:             "Test",
				Status:            StatusTodo,
				Priority:          PriorityMedium,
				UserID:            1,
				EstimatedDuration: &neg,
			},
			wantErr: true,
			errMsg:  "estimated_duration must be >= 0",
		},
		{
			name: "missing user",
			task: Task{
				Title:    "Test",
				Status:   StatusTodo,
				Priority: PriorityMedium,
			},
			wantErr: true,
			errMsg:  "user_id is required",
		},
		{
			name: "self-referential parent",
			task: Task{
				ID:           7,
				Title:        "Test",
				Status:       StatusTodo,
				Priority:     PriorityMedium,
				UserID:       1,
				ParentTaskID: &self,
			},
			wantErr: true,
			errMsg:  "parent_task_id must not reference the task itself",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.task.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("error = %q, want substring %q", err.Error(), tt.errMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestTask_MarkComplete(t *testing.T) {
	task := Task{Title: "Test", Status: StatusInProgress, Priority: PriorityMedium, UserID: 1}
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	task.MarkComplete(now)

	if task.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", task.Status)
	}
	if task.CompletedAt == nil || !task.CompletedAt.Equal(now) {
		t.Errorf("completed_at = %v, want %v", task.CompletedAt, now)
	}
	if !task.UpdatedAt.Equal(now) {
		t.Errorf("updated_at = %v, want %v", task.UpdatedAt, now)
	}
}

func TestTask_IsOverdue(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		task Task
		want bool
	}{
		{"no due date", Task{Status: StatusTodo}, false},
		{"due in the past", Task{Status: StatusTodo, DueDate: &past}, true},
		{"due in the future", Task{Status: StatusTodo, DueDate: &future}, false},
		{"completed past due", Task{Status: StatusCompleted, DueDate: &past}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.task.IsOverdue(now); got != tt.want {
				t.Errorf("IsOverdue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	if _, err := ParseStatus("in_progress"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := ParseStatus("pending"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestParsePriority(t *testing.T) {
	for _, s := range []string{"low", "medium", "high", "urgent"} {
		if _, err := ParsePriority(s); err != nil {
			t.Errorf("ParsePriority(%q): unexpected error: %v", s, err)
		}
	}
	if _, err := ParsePriority("severe"); err == nil {
		t.Error("expected error for unknown priority")
	}
}

func TestConversationMessage_Validate(t *testing.T) {
	msg := ConversationMessage{UserID: 1, Role: "user", Content: "hello"}
	if err := msg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg.Role = "system"
	if err := msg.Validate(); err == nil {
		t.Error("expected error for invalid role")
	}

	msg.Role = "assistant"
	msg.Content = strings.Repeat("a", MaxMessageContent+1)
	if err := msg.Validate(); err == nil {
		t.Error("expected error for oversized content")
	}
}
