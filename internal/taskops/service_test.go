package taskops

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/taskmaster/taskmaster/internal/store"
	"github.com/taskmaster/taskmaster/internal/types"
)

var fixedNow = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) *Service {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	svc := New(st, log.New(io.Discard, "", 0))
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestCreateDefaults(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	task, err := svc.Create(ctx, 1, CreateTaskInput{Title: "Write minutes"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if task.Status != types.StatusTodo {
		t.Errorf("status = %s, want todo", task.Status)
	}
	if task.Priority != types.PriorityMedium {
		t.Errorf("priority = %s, want medium", task.Priority)
	}
	if task.Metadata == nil {
		t.Error("metadata should be initialized")
	}
}

func TestCreateWithTags(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	task, err := svc.Create(ctx, 1, CreateTaskInput{Title: "Email the team", Tags: []string{"work", "communication"}})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if len(task.Tags) != 2 {
		t.Fatalf("tags = %v, want 2", task.Tags)
	}
}

func TestRecentLoadsTags(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, 1, CreateTaskInput{Title: "File expenses", Tags: []string{"finance"}}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := svc.Create(ctx, 1, CreateTaskInput{Title: "Untagged"}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	recent, err := svc.Recent(ctx, 1, 10)
	if err != nil {
		t.Fatalf("Recent returned error: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d tasks, want 2", len(recent))
	}

	var tagged int
	for _, task := range recent {
		if len(task.Tags) > 0 {
			if task.Tags[0].Name != "finance" {
				t.Errorf("tag = %q, want finance", task.Tags[0].Name)
			}
			tagged++
		}
	}
	if tagged != 1 {
		t.Errorf("got %d tagged tasks, want 1", tagged)
	}
}

func TestCreateRejectsMissingParent(t *testing.T) {
	svc := newTestService(t)
	parentID := int64(999)

	_, err := svc.Create(context.Background(), 1, CreateTaskInput{Title: "Sub", ParentTaskID: &parentID})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateRejectsForeignParent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	parent, err := svc.Create(ctx, 2, CreateTaskInput{Title: "Someone else's"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.Create(ctx, 1, CreateTaskInput{Title: "Sub", ParentTaskID: &parent.ID})
	if !errors.Is(err, store.ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
}

func TestUpdateSelfParent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	task, err := svc.Create(ctx, 1, CreateTaskInput{Title: "Loop"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.Update(ctx, task.ID, 1, UpdateTaskInput{ParentTaskID: &task.ID})
	if !errors.Is(err, ErrSelfParent) {
		t.Errorf("err = %v, want ErrSelfParent", err)
	}
}

func TestUpdateDirectCycle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, 1, CreateTaskInput{Title: "A"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := svc.Create(ctx, 1, CreateTaskInput{Title: "B", ParentTaskID: &a.ID})
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.Update(ctx, a.ID, 1, UpdateTaskInput{ParentTaskID: &b.ID})
	if !errors.Is(err, ErrCycle) {
		t.Errorf("err = %v, want ErrCycle", err)
	}
}

func TestUpdateStatusStampsCompletedAt(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	task, err := svc.Create(ctx, 1, CreateTaskInput{Title: "Ship it"})
	if err != nil {
		t.Fatal(err)
	}

	completed := types.StatusCompleted
	updated, err := svc.Update(ctx, task.ID, 1, UpdateTaskInput{Status: &completed})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.CompletedAt == nil {
		t.Fatal("completed_at should be stamped")
	}

	// Reopening clears the stamp.
	todo := types.StatusTodo
	updated, err = svc.Update(ctx, task.ID, 1, UpdateTaskInput{Status: &todo})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.CompletedAt != nil {
		t.Error("completed_at should be cleared when leaving completed")
	}
}

func TestCompleteRecordsAccuracy(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	est := 60
	task, err := svc.Create(ctx, 1, CreateTaskInput{Title: "Prep deck", EstimatedDuration: &est})
	if err != nil {
		t.Fatal(err)
	}

	actual := 90
	completed, err := svc.Complete(ctx, task.ID, 1, &actual)
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if completed.Status != types.StatusCompleted {
		t.Errorf("status = %s, want completed", completed.Status)
	}
	if completed.CompletedAt == nil {
		t.Error("completed_at should be set")
	}
	accuracy, ok := completed.Metadata["estimation_accuracy"].(float64)
	if !ok {
		t.Fatalf("metadata = %v, want estimation_accuracy", completed.Metadata)
	}
	if accuracy != 50 {
		t.Errorf("accuracy = %v, want 50", accuracy)
	}
}

func TestEstimationAccuracy(t *testing.T) {
	tests := []struct {
		estimated, actual int
		want              float64
	}{
		{60, 60, 100},
		{60, 90, 50},
		{60, 30, 50},
		{60, 180, 0},
		{0, 30, 0},
		{100, 1, 1},
	}
	for _, tt := range tests {
		if got := EstimationAccuracy(tt.estimated, tt.actual); got != tt.want {
			t.Errorf("EstimationAccuracy(%d, %d) = %v, want %v", tt.estimated, tt.actual, got, tt.want)
		}
	}
}

func TestSuggestPriority(t *testing.T) {
	svc := newTestService(t)

	tests := []struct {
		name string
		due  *time.Time
		want types.Priority
	}{
		{"no due date", nil, types.PriorityMedium},
		{"due in 12 hours", timePtr(fixedNow.Add(12 * time.Hour)), types.PriorityHigh},
		{"due in 2 days", timePtr(fixedNow.Add(48 * time.Hour)), types.PriorityMedium},
		{"due in a week", timePtr(fixedNow.AddDate(0, 0, 7)), types.PriorityLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := svc.SuggestPriority(&types.Task{DueDate: tt.due})
			if got != tt.want {
				t.Errorf("SuggestPriority = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCreateSubtasksInherit(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	due := fixedNow.AddDate(0, 0, 5)
	parent, err := svc.Create(ctx, 1, CreateTaskInput{Title: "Launch", Priority: types.PriorityHigh, DueDate: &due})
	if err != nil {
		t.Fatal(err)
	}

	subtasks, err := svc.CreateSubtasks(ctx, parent.ID, 1, []string{"Plan Launch", "Execute Launch", "Review Launch"})
	if err != nil {
		t.Fatalf("CreateSubtasks returned error: %v", err)
	}
	if len(subtasks) != 3 {
		t.Fatalf("got %d subtasks, want 3", len(subtasks))
	}
	for _, sub := range subtasks {
		if sub.Priority != types.PriorityHigh {
			t.Errorf("subtask %q priority = %s, want high", sub.Title, sub.Priority)
		}
		if sub.DueDate == nil || !sub.DueDate.Equal(due) {
			t.Errorf("subtask %q due date = %v, want %v", sub.Title, sub.DueDate, due)
		}
		if sub.ParentTaskID == nil || *sub.ParentTaskID != parent.ID {
			t.Errorf("subtask %q parent = %v, want %d", sub.Title, sub.ParentTaskID, parent.ID)
		}
	}
}

func TestBulkUpdateStatusRejectsForeignTask(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	mine, err := svc.Create(ctx, 1, CreateTaskInput{Title: "Mine"})
	if err != nil {
		t.Fatal(err)
	}
	theirs, err := svc.Create(ctx, 2, CreateTaskInput{Title: "Theirs"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.BulkUpdateStatus(ctx, 1, []int64{mine.ID, theirs.ID}, types.StatusCompleted)
	if !errors.Is(err, store.ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}

	// The owned task alone goes through.
	n, err := svc.BulkUpdateStatus(ctx, 1, []int64{mine.ID}, types.StatusCompleted)
	if err != nil {
		t.Fatalf("BulkUpdateStatus returned error: %v", err)
	}
	if n != 1 {
		t.Errorf("updated = %d, want 1", n)
	}
}

func TestStatisticsCompletionRate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for i, title := range []string{"a", "b", "c"} {
		task, err := svc.Create(ctx, 1, CreateTaskInput{Title: title})
		if err != nil {
			t.Fatal(err)
		}
		if i == 0 {
			if _, err := svc.Complete(ctx, task.ID, 1, nil); err != nil {
				t.Fatal(err)
			}
		}
	}

	stats, err := svc.Statistics(ctx, 1)
	if err != nil {
		t.Fatalf("Statistics returned error: %v", err)
	}
	if stats.Total != 3 || stats.Completed != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.CompletionRate != 33.33 {
		t.Errorf("completion rate = %v, want 33.33", stats.CompletionRate)
	}
}

func timePtr(t time.Time) *time.Time { return &t }
