package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shrimpsizemoose/semla/internal/apperrors"
	"github.com/shrimpsizemoose/semla/internal/models"
)

const submissionColumns = `id, user_id, title, type, filename, stored_filename, filepath, notes, status, submitted_at`

func (s *BaseStore) CreateSubmission(ctx context.Context, sub *models.Submission) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if sub.Status == "" {
		sub.Status = models.StatusPending
	}
	if sub.Type == "" {
		sub.Type = models.DefaultSubmissionType
	}
	sub.SubmittedAt = time.Now().UTC().Truncate(time.Microsecond)

	query := s.Converter(`
		INSERT INTO submissions (user_id, title, type, filename, stored_filename, filepath, notes, status, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	err := s.DB.GetContext(ctx, &sub.ID, query,
		sub.UserID,
		sub.Title,
		sub.Type,
		sub.Filename,
		sub.StoredFilename,
		sub.Filepath,
		sub.Notes,
		sub.Status,
		sub.SubmittedAt,
	)
	return s.classify("failed to create submission", err)
}

func (s *BaseStore) getSubmission(ctx context.Context, op, where string, args ...any) (*models.Submission, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var sub models.Submission
	query := s.Converter(`SELECT ` + submissionColumns + ` FROM submissions WHERE ` + where)
	err := s.DB.GetContext(ctx, &sub, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.FromStore(op, err)
	}
	return &sub, nil
}

func (s *BaseStore) GetSubmission(ctx context.Context, id int64) (*models.Submission, error) {
	return s.getSubmission(ctx, "failed to get submission", "id = ?", id)
}

func (s *BaseStore) GetSubmissionByStoredFilename(ctx context.Context, storedFilename string) (*models.Submission, error) {
	return s.getSubmission(ctx, "failed to get submission by stored filename", "stored_filename = ?", storedFilename)
}

func (s *BaseStore) ListSubmissionsByUser(ctx context.Context, userID int64) ([]models.Submission, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	subs := []models.Submission{}
	query := s.Converter(`
		SELECT ` + submissionColumns + `
		FROM submissions
		WHERE user_id = ?
		ORDER BY submitted_at DESC, id DESC
	`)
	if err := s.DB.SelectContext(ctx, &subs, query, userID); err != nil {
		return nil, apperrors.FromStore("failed to list submissions", err)
	}
	return subs, nil
}

func (s *BaseStore) ListSubmissions(ctx context.Context) ([]models.SubmissionWithOwner, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	subs := []models.SubmissionWithOwner{}
	err := s.DB.SelectContext(ctx, &subs, `
		SELECT
			s.id, s.user_id, s.title, s.type, s.filename, s.stored_filename,
			s.filepath, s.notes, s.status, s.submitted_at,
			u.username, u.email
		FROM submissions s
		JOIN users u ON s.user_id = u.id
		ORDER BY s.submitted_at DESC, s.id DESC
	`)
	if err != nil {
		return nil, apperrors.FromStore("failed to list all submissions", err)
	}
	return subs, nil
}

// UpdateSubmission applies the non-nil fields of update and returns the updated row.
// It returns nil, nil when nothing was changed.
func (s *BaseStore) UpdateSubmission(ctx context.Context, id int64, update models.SubmissionUpdate) (*models.Submission, error) {
	if update.Empty() {
		return nil, nil
	}

	var (
		sets []string
		args []any
	)
	if update.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *update.Title)
	}
	if update.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *update.Status)
	}
	if update.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *update.Notes)
	}
	args = append(args, id)

	changed, err := s.execUpdate(ctx, "failed to update submission",
		`UPDATE submissions SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil || !changed {
		return nil, err
	}
	return s.GetSubmission(ctx, id)
}

// DeleteSubmission removes the row and returns it, nil, nil if there was none.
// The backing file is left for the caller.
func (s *BaseStore) DeleteSubmission(ctx context.Context, id int64) (*models.Submission, error) {
	sub, err := s.GetSubmission(ctx, id)
	if err != nil || sub == nil {
		return nil, err
	}

	if _, err := s.execUpdate(ctx, "failed to delete submission", `DELETE FROM submissions WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return sub, nil
}
