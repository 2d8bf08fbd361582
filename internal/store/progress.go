package store

import (
	"context"
	"time"

	"github.com/shrimpsizemoose/semla/internal/apperrors"
	"github.com/shrimpsizemoose/semla/internal/models"
)

func (s *BaseStore) CreateProgress(ctx context.Context, entry *models.ProgressEntry) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if entry.Data == nil {
		entry.Data = models.Payload{}
	}
	entry.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)

	query := s.Converter(`
		INSERT INTO progress (user_id, data, created_at)
		VALUES (?, ?, ?)
		RETURNING id
	`)
	err := s.DB.GetContext(ctx, &entry.ID, query, entry.UserID, entry.Data, entry.CreatedAt)
	return apperrors.FromStore("failed to create progress entry", err)
}

func (s *BaseStore) ListProgressByUser(ctx context.Context, userID int64) ([]models.ProgressEntry, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	entries := []models.ProgressEntry{}
	query := s.Converter(`
		SELECT id, user_id, data, created_at
		FROM progress
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`)
	if err := s.DB.SelectContext(ctx, &entries, query, userID); err != nil {
		return nil, apperrors.FromStore("failed to list progress", err)
	}
	return entries, nil
}

func (s *BaseStore) ListProgress(ctx context.Context) ([]models.ProgressWithOwner, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	entries := []models.ProgressWithOwner{}
	err := s.DB.SelectContext(ctx, &entries, `
		SELECT p.id, p.user_id, p.data, p.created_at, u.username, u.email
		FROM progress p
		JOIN users u ON p.user_id = u.id
		ORDER BY p.created_at DESC, p.id DESC
	`)
	if err != nil {
		return nil, apperrors.FromStore("failed to list all progress", err)
	}
	return entries, nil
}
