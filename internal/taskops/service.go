// Package taskops is the business layer over the task store. It owns
// parent/ownership validation, status-transition rules, and the derived
// metrics (estimation accuracy, completion rate, suggested priority)
// that the store itself does not compute.
package taskops

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/taskmaster/taskmaster/internal/store"
	"github.com/taskmaster/taskmaster/internal/types"
)

// Validation errors surfaced to clients as bad requests.
var (
	ErrSelfParent = errors.New("task cannot be its own parent")
	ErrCycle      = errors.New("parent assignment would create a cycle")
)

// Service implements task business logic over a Store.
type Service struct {
	store  *store.Store
	logger *log.Logger

	now func() time.Time
}

// New builds a Service.
func New(st *store.Store, logger *log.Logger) *Service {
	return &Service{store: st, logger: logger, now: time.Now}
}

// CreateTaskInput carries the client-settable fields for task creation.
// Zero values get defaults: status todo, priority medium.
type CreateTaskInput struct {
	Title             string
	Description       string
	Status            types.TaskStatus
	Priority          types.Priority
	DueDate           *time.Time
	EstimatedDuration *int
	ParentTaskID      *int64
	Metadata          map[string]any
	Tags              []string
}

// Create validates and stores a task, attaching any named tags.
func (s *Service) Create(ctx context.Context, userID int64, in CreateTaskInput) (*types.Task, error) {
	if in.ParentTaskID != nil {
		if _, err := s.store.GetTask(ctx, *in.ParentTaskID, userID); err != nil {
			return nil, fmt.Errorf("parent task %d: %w", *in.ParentTaskID, unwrapAccess(err))
		}
	}

	task := &types.Task{
		Title:             in.Title,
		Description:       in.Description,
		Status:            in.Status,
		Priority:          in.Priority,
		DueDate:           in.DueDate,
		EstimatedDuration: in.EstimatedDuration,
		UserID:            userID,
		ParentTaskID:      in.ParentTaskID,
		Metadata:          in.Metadata,
	}
	if task.Status == "" {
		task.Status = types.StatusTodo
	}
	if task.Priority == "" {
		task.Priority = types.PriorityMedium
	}
	if task.Metadata == nil {
		task.Metadata = map[string]any{}
	}

	created, err := s.store.CreateTask(ctx, task)
	if err != nil {
		return nil, err
	}

	if len(in.Tags) > 0 {
		for _, name := range in.Tags {
			if _, err := s.store.UpsertTag(ctx, userID, name, ""); err != nil {
				return nil, fmt.Errorf("failed to upsert tag %q: %w", name, err)
			}
		}
		if err := s.store.AttachTags(ctx, created.ID, userID, in.Tags); err != nil {
			return nil, err
		}
		tags, err := s.store.TagsForTask(ctx, created.ID)
		if err != nil {
			return nil, err
		}
		created.Tags = tags
	}

	return created, nil
}

// Get returns a task with its tags and direct subtasks loaded.
func (s *Service) Get(ctx context.Context, id, userID int64) (*types.Task, error) {
	task, err := s.store.GetTask(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if task.Tags, err = s.store.TagsForTask(ctx, id); err != nil {
		return nil, err
	}
	if task.Subtasks, err = s.store.Subtasks(ctx, id); err != nil {
		return nil, err
	}
	return task, nil
}

// List returns the user's tasks per the filter.
func (s *Service) List(ctx context.Context, userID int64, filter store.TaskFilter) ([]types.Task, error) {
	return s.store.ListTasks(ctx, userID, filter)
}

// Recent returns up to limit of the user's tasks with tags loaded, for
// building prompt context from recent activity.
func (s *Service) Recent(ctx context.Context, userID int64, limit int) ([]types.Task, error) {
	tasks, err := s.store.ListTasks(ctx, userID, store.TaskFilter{Limit: limit})
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		if tasks[i].Tags, err = s.store.TagsForTask(ctx, tasks[i].ID); err != nil {
			return nil, err
		}
	}
	return tasks, nil
}

// Search returns tasks matching the text query.
func (s *Service) Search(ctx context.Context, userID int64, query string, offset, limit int) ([]types.Task, error) {
	return s.store.SearchTasks(ctx, userID, query, offset, limit)
}

// UpdateTaskInput carries partial updates; nil fields are untouched.
// ClearDueDate removes an existing due date.
type UpdateTaskInput struct {
	Title             *string
	Description       *string
	Status            *types.TaskStatus
	Priority          *types.Priority
	DueDate           *time.Time
	ClearDueDate      bool
	EstimatedDuration *int
	ActualDuration    *int
	ParentTaskID      *int64
	Metadata          map[string]any
}

// Update applies a partial update with parent and status rules.
func (s *Service) Update(ctx context.Context, id, userID int64, in UpdateTaskInput) (*types.Task, error) {
	task, err := s.store.GetTask(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if in.ParentTaskID != nil {
		if err := s.validateParent(ctx, id, userID, *in.ParentTaskID); err != nil {
			return nil, err
		}
		task.ParentTaskID = in.ParentTaskID
	}

	if in.Title != nil {
		task.Title = *in.Title
	}
	if in.Description != nil {
		task.Description = *in.Description
	}
	if in.Priority != nil {
		task.Priority = *in.Priority
	}
	if in.DueDate != nil {
		task.DueDate = in.DueDate
	} else if in.ClearDueDate {
		task.DueDate = nil
	}
	if in.EstimatedDuration != nil {
		task.EstimatedDuration = in.EstimatedDuration
	}
	if in.ActualDuration != nil {
		task.ActualDuration = in.ActualDuration
	}
	if in.Metadata != nil {
		task.Metadata = in.Metadata
	}
	if in.Status != nil {
		s.applyStatusChange(task, *in.Status)
	}

	return s.store.UpdateTask(ctx, task)
}

// validateParent enforces the parent-assignment rules: the parent must
// exist, belong to the same user, not be the task itself, and not be a
// direct child of the task.
func (s *Service) validateParent(ctx context.Context, id, userID, parentID int64) error {
	if parentID == id {
		return ErrSelfParent
	}
	parent, err := s.store.GetTask(ctx, parentID, userID)
	if err != nil {
		return fmt.Errorf("parent task %d: %w", parentID, unwrapAccess(err))
	}
	if parent.ParentTaskID != nil && *parent.ParentTaskID == id {
		return ErrCycle
	}
	return nil
}

// applyStatusChange stamps or clears completed_at as the status crosses
// the completed boundary.
func (s *Service) applyStatusChange(task *types.Task, next types.TaskStatus) {
	if next == types.StatusCompleted && task.Status != types.StatusCompleted {
		now := s.now().UTC()
		task.CompletedAt = &now
	}
	if next != types.StatusCompleted && task.Status == types.StatusCompleted {
		task.CompletedAt = nil
	}
	task.Status = next
}

// Delete removes a task, cascading to direct subtasks when requested.
func (s *Service) Delete(ctx context.Context, id, userID int64, cascade bool) error {
	return s.store.DeleteTask(ctx, id, userID, cascade)
}

// Complete marks a task completed, recording the actual duration and,
// when an estimate exists, the estimation accuracy in task metadata.
func (s *Service) Complete(ctx context.Context, id, userID int64, actualDuration *int) (*types.Task, error) {
	task, err := s.store.GetTask(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	task.MarkComplete(s.now().UTC())

	if actualDuration != nil {
		task.ActualDuration = actualDuration
		if task.EstimatedDuration != nil {
			if task.Metadata == nil {
				task.Metadata = map[string]any{}
			}
			task.Metadata["estimation_accuracy"] = EstimationAccuracy(*task.EstimatedDuration, *actualDuration)
		}
	}

	return s.store.UpdateTask(ctx, task)
}

// Overdue returns tasks past their due date.
func (s *Service) Overdue(ctx context.Context, userID int64, offset, limit int) ([]types.Task, error) {
	return s.store.OverdueTasks(ctx, userID, offset, limit)
}

// Upcoming returns tasks due within the given number of days.
func (s *Service) Upcoming(ctx context.Context, userID int64, days, offset, limit int) ([]types.Task, error) {
	return s.store.UpcomingTasks(ctx, userID, days, offset, limit)
}

// Statistics returns the user's counts with completion rate filled in,
// rounded to two decimal places.
func (s *Service) Statistics(ctx context.Context, userID int64) (*types.Statistics, error) {
	stats, err := s.store.Statistics(ctx, userID)
	if err != nil {
		return nil, err
	}
	if stats.Total > 0 {
		stats.CompletionRate = round2(float64(stats.Completed) / float64(stats.Total) * 100)
	}
	return stats, nil
}

// SuggestPriority proposes a priority from the due date: within 24
// hours is high, within 3 days medium, further out low. No due date
// keeps the default medium.
func (s *Service) SuggestPriority(task *types.Task) types.Priority {
	if task.DueDate == nil {
		return types.PriorityMedium
	}

	untilDue := task.DueDate.Sub(s.now())
	switch {
	case untilDue <= 24*time.Hour:
		return types.PriorityHigh
	case untilDue <= 3*24*time.Hour:
		return types.PriorityMedium
	default:
		return types.PriorityLow
	}
}

// CreateSubtasks creates one subtask per title under the parent,
// inheriting the parent's priority and due date.
func (s *Service) CreateSubtasks(ctx context.Context, parentID, userID int64, titles []string) ([]types.Task, error) {
	parent, err := s.store.GetTask(ctx, parentID, userID)
	if err != nil {
		return nil, err
	}

	subtasks := make([]types.Task, 0, len(titles))
	for _, title := range titles {
		created, err := s.Create(ctx, userID, CreateTaskInput{
			Title:        title,
			Priority:     parent.Priority,
			DueDate:      parent.DueDate,
			ParentTaskID: &parentID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create subtask %q: %w", title, err)
		}
		subtasks = append(subtasks, *created)
	}
	return subtasks, nil
}

// BulkUpdateStatus sets the status on every listed task after checking
// that all of them belong to the user. Returns the number updated.
func (s *Service) BulkUpdateStatus(ctx context.Context, userID int64, taskIDs []int64, status types.TaskStatus) (int, error) {
	for _, id := range taskIDs {
		if _, err := s.store.GetTask(ctx, id, userID); err != nil {
			return 0, err
		}
	}
	return s.store.BulkUpdateStatus(ctx, userID, taskIDs, status)
}

// EstimationAccuracy scores how close an estimate was as a percentage,
// where 100 is a perfect match. A zero estimate is defined as 0.
func EstimationAccuracy(estimated, actual int) float64 {
	if estimated == 0 {
		return 0
	}
	diff := math.Abs(float64(estimated - actual))
	return round2(math.Max(0, 100-diff/float64(estimated)*100))
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// unwrapAccess keeps store sentinels intact so HTTP handlers can map
// them, while normalizing the wrapping text for parent lookups.
func unwrapAccess(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return store.ErrNotFound
	case errors.Is(err, store.ErrForbidden):
		return store.ErrForbidden
	default:
		return err
	}
}
