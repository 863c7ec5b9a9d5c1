package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/taskmaster/taskmaster/internal/types"
)

// UpsertTag creates the named tag for the user, or returns the existing
// one. Tag names are unique per user.
func (s *Store) UpsertTag(ctx context.Context, userID int64, name, color string) (*types.Tag, error) {
	tag := &types.Tag{Name: name, Color: color, UserID: userID}
	if err := tag.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tag: %w", err)
	}

	var id int64
	err := s.conn.QueryRowContext(ctx,
		`SELECT id FROM tags WHERE user_id = ? AND name = ?`, userID, name).Scan(&id)
	if err == nil {
		tag.ID = id
		return tag, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to look up tag %q: %w", name, err)
	}

	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO tags (name, color, description, user_id) VALUES (?, ?, '', ?)`,
		name, color, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert tag %q: %w", name, err)
	}

	if tag.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("failed to read inserted tag id: %w", err)
	}

	return tag, nil
}

// AttachTags links the named tags to a task, creating tags as needed.
func (s *Store) AttachTags(ctx context.Context, taskID, userID int64, names []string) error {
	for _, name := range names {
		tag, err := s.UpsertTag(ctx, userID, name, "")
		if err != nil {
			return err
		}
		_, err = s.conn.ExecContext(ctx,
			`INSERT OR IGNORE INTO task_tags (task_id, tag_id) VALUES (?, ?)`,
			taskID, tag.ID)
		if err != nil {
			return fmt.Errorf("failed to attach tag %q to task %d: %w", name, taskID, err)
		}
	}
	return nil
}

// DetachTag removes the link between a task and a tag.
func (s *Store) DetachTag(ctx context.Context, taskID, tagID int64) error {
	_, err := s.conn.ExecContext(ctx,
		`DELETE FROM task_tags WHERE task_id = ? AND tag_id = ?`, taskID, tagID)
	if err != nil {
		return fmt.Errorf("failed to detach tag %d from task %d: %w", tagID, taskID, err)
	}
	return nil
}

// TagsForTask returns the tags attached to a task.
func (s *Store) TagsForTask(ctx context.Context, taskID int64) ([]types.Tag, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT g.id, g.name, g.color, g.description, g.user_id
		FROM tags g JOIN task_tags tt ON tt.tag_id = g.id
		WHERE tt.task_id = ? ORDER BY g.name`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags for task %d: %w", taskID, err)
	}
	defer rows.Close()

	var tags []types.Tag
	for rows.Next() {
		var tag types.Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Color, &tag.Description, &tag.UserID); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tags: %w", err)
	}

	return tags, nil
}

// ListTags returns all of the user's tags.
func (s *Store) ListTags(ctx context.Context, userID int64) ([]types.Tag, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, name, color, description, user_id FROM tags
		WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	var tags []types.Tag
	for rows.Next() {
		var tag types.Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Color, &tag.Description, &tag.UserID); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tags: %w", err)
	}

	return tags, nil
}
