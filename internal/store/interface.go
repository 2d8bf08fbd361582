package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/semla/internal/apperrors"
	"github.com/shrimpsizemoose/semla/internal/models"
)

type DataStore interface {
	Close() error
	ApplyMigrations(dir string) error
	RawDB() *sql.DB

	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	FindUserByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, id int64, update models.UserUpdate) (*models.User, error)
	DeleteUser(ctx context.Context, id int64) ([]string, error)
	GetUserStats(ctx context.Context, id int64) (*models.UserStats, error)

	CreateSubmission(ctx context.Context, sub *models.Submission) error
	GetSubmission(ctx context.Context, id int64) (*models.Submission, error)
	GetSubmissionByStoredFilename(ctx context.Context, storedFilename string) (*models.Submission, error)
	ListSubmissionsByUser(ctx context.Context, userID int64) ([]models.Submission, error)
	ListSubmissions(ctx context.Context) ([]models.SubmissionWithOwner, error)
	UpdateSubmission(ctx context.Context, id int64, update models.SubmissionUpdate) (*models.Submission, error)
	DeleteSubmission(ctx context.Context, id int64) (*models.Submission, error)

	CreateProgress(ctx context.Context, entry *models.ProgressEntry) error
	ListProgressByUser(ctx context.Context, userID int64) ([]models.ProgressEntry, error)
	ListProgress(ctx context.Context) ([]models.ProgressWithOwner, error)
}

// BaseStore provides common functionality for different DB implementations.
// Queries are written with ? placeholders and passed through Converter.
type BaseStore struct {
	DB           *sqlx.DB
	Converter    func(string) string
	QueryTimeout time.Duration
	// IsUniqueViolation reports driver errors raised by UNIQUE constraints.
	IsUniqueViolation func(error) bool
}

// RawDB exposes the pool for stats collection.
func (s *BaseStore) RawDB() *sql.DB {
	return s.DB.DB
}

func (s *BaseStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// Configure applies pool limits from cfg.
func (s *BaseStore) Configure(cfg DBConfig) {
	cfg = cfg.WithDefaults()
	s.DB.SetMaxOpenConns(cfg.MaxOpenConns)
	s.DB.SetMaxIdleConns(cfg.MaxIdleConns)
	s.DB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	s.QueryTimeout = cfg.QueryTimeout
}

func (s *BaseStore) classify(op string, err error) error {
	if err != nil && s.IsUniqueViolation != nil && s.IsUniqueViolation(err) {
		return apperrors.Conflict(op, err)
	}
	return apperrors.FromStore(op, err)
}

func (s *BaseStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.QueryTimeout
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// ApplyMigrations applies SQL migrations from a directory, translating dialect if needed
func (s *BaseStore) ApplyMigrations(dir string, translateSQL func(string) string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	for _, file := range files {
		if !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file.Name(), err)
		}

		sql := string(content)
		if translateSQL != nil {
			sql = translateSQL(sql)
		}

		logger.Debug.Printf("Applying migration: %s", file.Name())
		if _, err := s.DB.Exec(sql); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file.Name(), err)
		}
	}

	return nil
}
