package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/taskmaster/taskmaster/internal/types"
)

// UserContext returns the user's context row, creating an empty one if
// this is the first access.
func (s *Store) UserContext(ctx context.Context, userID int64) (*types.UserContext, error) {
	uc, err := s.getUserContext(ctx, userID)
	if err == nil {
		return uc, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get user context: %w", err)
	}

	now := time.Now().UTC()
	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO user_contexts (user_id, preferences, productivity_patterns, ai_context, created_at, updated_at)
		VALUES (?, '{}', '{}', '{}', ?, ?)`,
		userID, now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to create user context: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read inserted context id: %w", err)
	}

	return &types.UserContext{
		ID:                   id,
		UserID:               userID,
		Preferences:          map[string]any{},
		ProductivityPatterns: map[string]any{},
		AIContext:            map[string]any{},
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

// UpdateUserContext persists the context's three maps.
func (s *Store) UpdateUserContext(ctx context.Context, uc *types.UserContext) error {
	prefs, err := marshalMeta(uc.Preferences)
	if err != nil {
		return err
	}
	patterns, err := marshalMeta(uc.ProductivityPatterns)
	if err != nil {
		return err
	}
	aiCtx, err := marshalMeta(uc.AIContext)
	if err != nil {
		return err
	}

	uc.UpdatedAt = time.Now().UTC()

	res, err := s.conn.ExecContext(ctx,
		`UPDATE user_contexts SET preferences = ?, productivity_patterns = ?, ai_context = ?, updated_at = ?
		WHERE user_id = ?`,
		prefs, patterns, aiCtx, uc.UpdatedAt.Format(time.RFC3339Nano), uc.UserID)
	if err != nil {
		return fmt.Errorf("failed to update user context: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user context for user %d: %w", uc.UserID, ErrNotFound)
	}

	return nil
}

func (s *Store) getUserContext(ctx context.Context, userID int64) (*types.UserContext, error) {
	var (
		uc        types.UserContext
		prefs     string
		patterns  string
		aiCtx     string
		createdAt string
		updatedAt string
	)

	err := s.conn.QueryRowContext(ctx,
		`SELECT id, user_id, preferences, productivity_patterns, ai_context, created_at, updated_at
		FROM user_contexts WHERE user_id = ?`, userID).
		Scan(&uc.ID, &uc.UserID, &prefs, &patterns, &aiCtx, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if uc.Preferences, err = unmarshalMeta(prefs); err != nil {
		return nil, err
	}
	if uc.ProductivityPatterns, err = unmarshalMeta(patterns); err != nil {
		return nil, err
	}
	if uc.AIContext, err = unmarshalMeta(aiCtx); err != nil {
		return nil, err
	}
	if uc.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if uc.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return &uc, nil
}
