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

const userColumns = `id, username, email, password_hash, created_at`

func (s *BaseStore) CreateUser(ctx context.Context, user *models.User) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	query := s.Converter(`
		INSERT INTO users (username, email, password_hash, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`)
	err := s.DB.GetContext(ctx, &user.ID, query, user.Username, user.Email, user.PasswordHash, user.CreatedAt)
	return s.classify("failed to create user", err)
}

func (s *BaseStore) getUser(ctx context.Context, op, where string, args ...any) (*models.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var user models.User
	query := s.Converter(`SELECT ` + userColumns + ` FROM users WHERE ` + where + ` LIMIT 1`)
	err := s.DB.GetContext(ctx, &user, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.FromStore(op, err)
	}
	return &user, nil
}

func (s *BaseStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.getUser(ctx, "failed to get user", "id = ?", id)
}

func (s *BaseStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, "failed to get user by username", "username = ?", username)
}

func (s *BaseStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "failed to get user by email", "email = ?", email)
}

// GetUserByIdentifier matches a single login identifier against username or email.
func (s *BaseStore) GetUserByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	return s.getUser(ctx, "failed to get user by identifier", "username = ? OR email = ?", identifier, identifier)
}

// FindUserByUsernameOrEmail returns any user colliding with either value.
func (s *BaseStore) FindUserByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	return s.getUser(ctx, "failed to look up user", "username = ? OR email = ?", username, email)
}

func (s *BaseStore) ListUsers(ctx context.Context) ([]models.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var users []models.User
	err := s.DB.SelectContext(ctx, &users, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, apperrors.FromStore("failed to list users", err)
	}
	return users, nil
}

// UpdateUser applies the non-nil fields of update. It returns nil, nil when nothing
// was changed, either because update is empty or because the user does not exist.
func (s *BaseStore) UpdateUser(ctx context.Context, id int64, update models.UserUpdate) (*models.User, error) {
	if update.Empty() {
		return nil, nil
	}

	var (
		sets []string
		args []any
	)
	if update.Username != nil {
		sets = append(sets, "username = ?")
		args = append(args, *update.Username)
	}
	if update.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *update.Email)
	}
	if update.PasswordHash != nil {
		sets = append(sets, "password_hash = ?")
		args = append(args, *update.PasswordHash)
	}
	args = append(args, id)

	changed, err := s.execUpdate(ctx, "failed to update user",
		`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil || !changed {
		return nil, err
	}
	return s.GetUserByID(ctx, id)
}

// DeleteUser removes the user together with their submissions and progress, and
// returns the stored file paths of the removed submissions so the caller can
// clean them up.
func (s *BaseStore) DeleteUser(ctx context.Context, id int64) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperrors.FromStore("failed to delete user", err)
	}
	defer tx.Rollback()

	var paths []string
	err = tx.SelectContext(ctx, &paths, s.Converter(`SELECT filepath FROM submissions WHERE user_id = ?`), id)
	if err != nil {
		return nil, apperrors.FromStore("failed to list user files", err)
	}

	// progress and submissions go with the user via ON DELETE CASCADE
	res, err := tx.ExecContext(ctx, s.Converter(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return nil, apperrors.FromStore("failed to delete user", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperrors.NotFound("User not found.")
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.FromStore("failed to delete user", err)
	}
	return paths, nil
}

func (s *BaseStore) GetUserStats(ctx context.Context, id int64) (*models.UserStats, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var stats models.UserStats
	query := s.Converter(`
		SELECT
			EXISTS (SELECT 1 FROM users WHERE id = ?) AS user_exists,
			(SELECT COUNT(*) FROM submissions WHERE user_id = ?) AS submission_count,
			(SELECT COUNT(*) FROM progress WHERE user_id = ?) AS progress_count
	`)
	if err := s.DB.GetContext(ctx, &stats, query, id, id, id); err != nil {
		return nil, apperrors.FromStore("failed to get user stats", err)
	}
	return &stats, nil
}

func (s *BaseStore) execUpdate(ctx context.Context, op, query string, args ...any) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.DB.ExecContext(ctx, s.Converter(query), args...)
	if err != nil {
		return false, s.classify(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.FromStore(op, err)
	}
	return n > 0, nil
}
