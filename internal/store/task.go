package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/taskmaster/taskmaster/internal/types"
)

// maxListLimit caps pagination for list and search queries.
const maxListLimit = 100

// TaskFilter narrows ListTasks results. Nil fields are ignored.
type TaskFilter struct {
	Status       *types.TaskStatus
	Priority     *types.Priority
	TopLevelOnly bool // exclude subtasks
	Offset       int
	Limit        int
}

const taskColumns = `id, title, description, status, priority, due_date,
	estimated_duration, actual_duration, created_at, updated_at, completed_at,
	user_id, parent_task_id, metadata`

// CreateTask inserts a task and returns it with its generated id.
func (s *Store) CreateTask(ctx context.Context, task *types.Task) (*types.Task, error) {
	if err := task.Validate(); err != nil {
		return nil, fmt.Errorf("invalid task: %w", err)
	}

	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	metaJSON, err := marshalMeta(task.Metadata)
	if err != nil {
		return nil, err
	}

	query := `
	INSERT INTO tasks (
		title, description, status, priority, due_date,
		estimated_duration, actual_duration, created_at, updated_at,
		completed_at, user_id, parent_task_id, metadata
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := s.conn.ExecContext(ctx, query,
		task.Title,
		task.Description,
		string(task.Status),
		string(task.Priority),
		timeToNullString(task.DueDate),
		task.EstimatedDuration,
		task.ActualDuration,
		task.CreatedAt.Format(time.RFC3339Nano),
		task.UpdatedAt.Format(time.RFC3339Nano),
		timeToNullString(task.CompletedAt),
		task.UserID,
		task.ParentTaskID,
		metaJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert task: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read inserted task id: %w", err)
	}
	task.ID = id

	return task, nil
}

// GetTask fetches a task by id, enforcing ownership.
// Returns ErrNotFound for missing tasks and ErrForbidden when the task
// belongs to another user.
func (s *Store) GetTask(ctx context.Context, id, userID int64) (*types.Task, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)

	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %d: %w", id, err)
	}
	if task.UserID != userID {
		return nil, fmt.Errorf("task %d: %w", id, ErrForbidden)
	}

	return task, nil
}

// ListTasks returns the user's tasks ordered by due date (nulls last)
// then priority. Limit is capped at 100.
func (s *Store) ListTasks(ctx context.Context, userID int64, filter TaskFilter) ([]types.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = ?`
	args := []any{userID}

	if filter.TopLevelOnly {
		query += ` AND parent_task_id IS NULL`
	}
	if filter.Status != nil {
		query += ` AND status = ?`
		args = append(args, string(*filter.Status))
	}
	if filter.Priority != nil {
		query += ` AND priority = ?`
		args = append(args, string(*filter.Priority))
	}

	limit := filter.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	query += `
	ORDER BY due_date IS NULL, due_date ASC,
		CASE priority
			WHEN 'urgent' THEN 0 WHEN 'high' THEN 1
			WHEN 'medium' THEN 2 ELSE 3
		END
	LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	return s.queryTasks(ctx, query, args...)
}

// SearchTasks matches the query text against titles and descriptions,
// most recently updated first.
func (s *Store) SearchTasks(ctx context.Context, userID int64, text string, offset, limit int) ([]types.Task, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	pattern := "%" + text + "%"
	query := `SELECT ` + taskColumns + ` FROM tasks
	WHERE user_id = ? AND (title LIKE ? COLLATE NOCASE OR description LIKE ? COLLATE NOCASE)
	ORDER BY updated_at DESC
	LIMIT ? OFFSET ?`

	return s.queryTasks(ctx, query, userID, pattern, pattern, limit, offset)
}

// UpdateTask persists the given task's mutable fields.
// Ownership must already be established by the caller via GetTask.
func (s *Store) UpdateTask(ctx context.Context, task *types.Task) (*types.Task, error) {
	if err := task.Validate(); err != nil {
		return nil, fmt.Errorf("invalid task: %w", err)
	}

	task.UpdatedAt = time.Now().UTC()

	metaJSON, err := marshalMeta(task.Metadata)
	if err != nil {
		return nil, err
	}

	query := `
	UPDATE tasks SET
		title = ?, description = ?, status = ?, priority = ?, due_date = ?,
		estimated_duration = ?, actual_duration = ?, updated_at = ?,
		completed_at = ?, parent_task_id = ?, metadata = ?
	WHERE id = ? AND user_id = ?`

	res, err := s.conn.ExecContext(ctx, query,
		task.Title,
		task.Description,
		string(task.Status),
		string(task.Priority),
		timeToNullString(task.DueDate),
		task.EstimatedDuration,
		task.ActualDuration,
		task.UpdatedAt.Format(time.RFC3339Nano),
		timeToNullString(task.CompletedAt),
		task.ParentTaskID,
		metaJSON,
		task.ID,
		task.UserID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update task %d: %w", task.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read update result: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("task %d: %w", task.ID, ErrNotFound)
	}

	return task, nil
}

// DeleteTask removes a task. If the task has subtasks the delete fails
// with ErrHasSubtasks unless cascade is set, in which case the whole
// subtree is removed in the same transaction.
func (s *Store) DeleteTask(ctx context.Context, id, userID int64, cascade bool) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var owner int64
	err = tx.QueryRowContext(ctx, `SELECT user_id FROM tasks WHERE id = ?`, id).Scan(&owner)
	if err == sql.ErrNoRows {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to look up task %d: %w", id, err)
	}
	if owner != userID {
		return fmt.Errorf("task %d: %w", id, ErrForbidden)
	}

	var subtasks int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE parent_task_id = ?`, id).Scan(&subtasks)
	if err != nil {
		return fmt.Errorf("failed to count subtasks of task %d: %w", id, err)
	}

	if subtasks > 0 {
		if !cascade {
			return fmt.Errorf("task %d: %w", id, ErrHasSubtasks)
		}
		// parent_task_id carries no ON DELETE action, so descendants
		// must be removed deepest-first before their parents.
		descendants, err := subtreeDeepestFirst(ctx, tx, id)
		if err != nil {
			return err
		}
		for _, subID := range descendants {
			if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, subID); err != nil {
				return fmt.Errorf("failed to delete subtask %d of task %d: %w", subID, id, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete task %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete of task %d: %w", id, err)
	}

	return nil
}

// subtreeDeepestFirst returns every descendant of the task, deepest
// level first, so they can be deleted without tripping the parent
// foreign key.
func subtreeDeepestFirst(ctx context.Context, tx *sql.Tx, id int64) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, `
	WITH RECURSIVE subtree(id, depth) AS (
		SELECT id, 1 FROM tasks WHERE parent_task_id = ?
		UNION ALL
		SELECT t.id, subtree.depth + 1
		FROM tasks t JOIN subtree ON t.parent_task_id = subtree.id
	)
	SELECT id FROM subtree ORDER BY depth DESC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to collect subtasks of task %d: %w", id, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var subID int64
		if err := rows.Scan(&subID); err != nil {
			return nil, fmt.Errorf("failed to scan subtask id: %w", err)
		}
		ids = append(ids, subID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subtasks of task %d: %w", id, err)
	}
	return ids, nil
}

// Subtasks returns the direct children of a task in creation order.
func (s *Store) Subtasks(ctx context.Context, parentID int64) ([]types.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks
	WHERE parent_task_id = ? ORDER BY created_at ASC`
	return s.queryTasks(ctx, query, parentID)
}

// OverdueTasks returns tasks past their due date and not completed.
func (s *Store) OverdueTasks(ctx context.Context, userID int64, offset, limit int) ([]types.Task, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	query := `SELECT ` + taskColumns + ` FROM tasks
	WHERE user_id = ? AND due_date IS NOT NULL AND due_date < ? AND status != 'completed'
	ORDER BY due_date ASC LIMIT ? OFFSET ?`
	return s.queryTasks(ctx, query, userID, now, limit, offset)
}

// UpcomingTasks returns incomplete tasks due within the next days.
func (s *Store) UpcomingTasks(ctx context.Context, userID int64, days, offset, limit int) ([]types.Task, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	now := time.Now().UTC()
	future := now.AddDate(0, 0, days)
	query := `SELECT ` + taskColumns + ` FROM tasks
	WHERE user_id = ? AND due_date BETWEEN ? AND ? AND status != 'completed'
	ORDER BY due_date ASC LIMIT ? OFFSET ?`
	return s.queryTasks(ctx, query, userID,
		now.Format(time.RFC3339Nano), future.Format(time.RFC3339Nano), limit, offset)
}

// TasksByTag returns the user's tasks carrying the named tag.
func (s *Store) TasksByTag(ctx context.Context, userID int64, tagName string, offset, limit int) ([]types.Task, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	query := `SELECT t.id, t.title, t.description, t.status, t.priority, t.due_date,
		t.estimated_duration, t.actual_duration, t.created_at, t.updated_at, t.completed_at,
		t.user_id, t.parent_task_id, t.metadata
	FROM tasks t
	JOIN task_tags tt ON tt.task_id = t.id
	JOIN tags g ON g.id = tt.tag_id
	WHERE t.user_id = ? AND g.name = ?
	LIMIT ? OFFSET ?`
	return s.queryTasks(ctx, query, userID, tagName, limit, offset)
}

// BulkUpdateStatus sets the status on every listed task owned by the user.
// Returns the number of tasks updated.
func (s *Store) BulkUpdateStatus(ctx context.Context, userID int64, taskIDs []int64, status types.TaskStatus) (int, error) {
	if len(taskIDs) == 0 {
		return 0, nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	var completedAt sql.NullString
	if status == types.StatusCompleted {
		completedAt = sql.NullString{String: now, Valid: true}
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	updated := 0
	for _, id := range taskIDs {
		res, err := tx.ExecContext(ctx,
			`UPDATE tasks SET status = ?, completed_at = ?, updated_at = ?
			WHERE id = ? AND user_id = ?`,
			string(status), completedAt, now, id, userID)
		if err != nil {
			return 0, fmt.Errorf("failed to update task %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read update result: %w", err)
		}
		updated += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit bulk update: %w", err)
	}

	return updated, nil
}

// Statistics returns the user's task counts by status plus overdue count.
func (s *Store) Statistics(ctx context.Context, userID int64) (*types.Statistics, error) {
	stats := &types.Statistics{}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM tasks WHERE user_id = ? GROUP BY status`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		stats.Total += count
		switch types.TaskStatus(status) {
		case types.StatusTodo:
			stats.Todo = count
		case types.StatusInProgress:
			stats.InProgress = count
		case types.StatusCompleted:
			stats.Completed = count
		case types.StatusBlocked:
			stats.Blocked = count
		case types.StatusArchived:
			stats.Archived = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate status counts: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	err = s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks
		WHERE user_id = ? AND due_date IS NOT NULL AND due_date < ? AND status != 'completed'`,
		userID, now).Scan(&stats.Overdue)
	if err != nil {
		return nil, fmt.Errorf("failed to count overdue tasks: %w", err)
	}

	return stats, nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanTask.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(sc scanner) (*types.Task, error) {
	var (
		task        types.Task
		status      string
		priority    string
		due         sql.NullString
		estDur      sql.NullInt64
		actDur      sql.NullInt64
		createdAt   string
		updatedAt   string
		completedAt sql.NullString
		parentID    sql.NullInt64
		metaRaw     string
	)

	err := sc.Scan(&task.ID, &task.Title, &task.Description, &status, &priority,
		&due, &estDur, &actDur, &createdAt, &updatedAt, &completedAt,
		&task.UserID, &parentID, &metaRaw)
	if err != nil {
		return nil, err
	}

	task.Status = types.TaskStatus(status)
	task.Priority = types.Priority(priority)

	if task.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if task.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	if task.DueDate, err = nullStringToTime(due); err != nil {
		return nil, err
	}
	if task.CompletedAt, err = nullStringToTime(completedAt); err != nil {
		return nil, err
	}
	if estDur.Valid {
		v := int(estDur.Int64)
		task.EstimatedDuration = &v
	}
	if actDur.Valid {
		v := int(actDur.Int64)
		task.ActualDuration = &v
	}
	if parentID.Valid {
		task.ParentTaskID = &parentID.Int64
	}
	if task.Metadata, err = unmarshalMeta(metaRaw); err != nil {
		return nil, err
	}

	return &task, nil
}

func (s *Store) queryTasks(ctx context.Context, query string, args ...any) ([]types.Task, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []types.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return tasks, nil
}
