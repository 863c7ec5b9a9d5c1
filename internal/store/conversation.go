package store

import (
	"context"
	"fmt"
	"time"

	"github.com/taskmaster/taskmaster/internal/types"
)

// AppendMessage durably stores a conversation message.
func (s *Store) AppendMessage(ctx context.Context, msg *types.ConversationMessage) (*types.ConversationMessage, error) {
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	metaJSON, err := marshalMeta(msg.Metadata)
	if err != nil {
		return nil, err
	}

	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO conversation_messages (user_id, role, content, metadata, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		msg.UserID, msg.Role, msg.Content, metaJSON,
		msg.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	if msg.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("failed to read inserted message id: %w", err)
	}

	return msg, nil
}

// RecentMessages returns the user's most recent messages in chronological
// order, suitable for seeding a conversation window.
func (s *Store) RecentMessages(ctx context.Context, userID int64, limit int) ([]types.ConversationMessage, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, user_id, role, content, metadata, created_at
		FROM conversation_messages
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []types.ConversationMessage
	for rows.Next() {
		var (
			msg       types.ConversationMessage
			metaRaw   string
			createdAt string
		)
		if err := rows.Scan(&msg.ID, &msg.UserID, &msg.Role, &msg.Content, &metaRaw, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if msg.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse message timestamp: %w", err)
		}
		if msg.Metadata, err = unmarshalMeta(metaRaw); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	// Reverse newest-first into chronological order for prompt context.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}
