package migrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/semla/internal/metrics"
	"github.com/shrimpsizemoose/semla/internal/models"
	"github.com/shrimpsizemoose/semla/internal/store"
)

var ErrNoLegacyData = errors.New("legacy data file not found")

// Count tracks one record kind. Migrated + Skipped + Failed == Total.
// Duplicates is the part of Skipped that repeated an earlier record of the same file.
type Count struct {
	Total      int
	Migrated   int
	Skipped    int
	Failed     int
	Duplicates int
}

type Report struct {
	Users       Count
	Submissions Count
	Progress    Count
	BackupPath  string
}

func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "- Users: %d/%d (skipped %d, failed %d)\n", r.Users.Migrated, r.Users.Total, r.Users.Skipped, r.Users.Failed)
	fmt.Fprintf(&b, "- Submissions: %d/%d (skipped %d, failed %d)\n", r.Submissions.Migrated, r.Submissions.Total, r.Submissions.Skipped, r.Submissions.Failed)
	fmt.Fprintf(&b, "- Progress entries: %d/%d (skipped %d, of them %d duplicates within the file, failed %d)",
		r.Progress.Migrated, r.Progress.Total, r.Progress.Skipped, r.Progress.Duplicates, r.Progress.Failed)
	return b.String()
}

func (c *Count) record(kind, outcome string) {
	switch outcome {
	case "migrated":
		c.Migrated++
	case "skipped":
		c.Skipped++
	case "duplicate":
		c.Skipped++
		c.Duplicates++
	default:
		c.Failed++
	}
	metrics.MigratedRecordsTotal.WithLabelValues(kind, outcome).Inc()
}

// Migrator copies a legacy data document into the store. Running it again over the
// same document adds nothing.
type Migrator struct {
	store        store.DataStore
	backupSuffix string
}

func NewMigrator(st store.DataStore, backupSuffix string) *Migrator {
	if backupSuffix == "" {
		backupSuffix = ".backup"
	}
	return &Migrator{store: st, backupSuffix: backupSuffix}
}

// Run imports the file at path and then writes a backup copy next to it.
// A missing file yields ErrNoLegacyData and no report.
func (m *Migrator) Run(ctx context.Context, path string) (*Report, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoLegacyData
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read legacy data: %w", err)
	}

	data, err := ParseLegacy(raw)
	if err != nil {
		return nil, err
	}
	logger.Info.Printf("Found %d users, %d submissions, %d progress entries",
		len(data.Users), len(data.Submissions), data.ProgressCount())

	report := m.Import(ctx, data)

	backup := path + m.backupSuffix
	if err := copyFile(path, backup); err != nil {
		return report, fmt.Errorf("failed to back up legacy data: %w", err)
	}
	report.BackupPath = backup

	return report, nil
}

// Import migrates users first so submissions and progress can be attached to the
// ids they received. Per-record failures are logged and counted, never returned.
func (m *Migrator) Import(ctx context.Context, data *LegacyData) *Report {
	report := &Report{
		Users:       Count{Total: len(data.Users)},
		Submissions: Count{Total: len(data.Submissions)},
		Progress:    Count{Total: data.ProgressCount()},
	}

	ids := m.importUsers(ctx, data.Users, &report.Users)
	m.importSubmissions(ctx, data.Submissions, ids, &report.Submissions)
	m.importProgress(ctx, data.Progress, ids, &report.Progress)

	return report
}

// importUsers returns legacy id -> current id for every user that exists afterwards,
// whether created now or found already present.
func (m *Migrator) importUsers(ctx context.Context, users []LegacyUser, count *Count) map[LegacyID]int64 {
	ids := make(map[LegacyID]int64, len(users))

	for _, lu := range users {
		username := strings.TrimSpace(lu.Username)
		email := strings.TrimSpace(lu.Email)
		if username == "" || email == "" || lu.PasswordHash == "" {
			logger.Error.Printf("Legacy user %q is incomplete, skipping", lu.ID)
			count.record("user", "failed")
			continue
		}

		existing, err := m.store.FindUserByUsernameOrEmail(ctx, username, email)
		if err != nil {
			logger.Error.Printf("Error migrating user %s: %v", username, err)
			count.record("user", "failed")
			continue
		}
		if existing != nil {
			logger.Info.Printf("User %s already exists, skipping", username)
			if lu.ID != "" {
				ids[lu.ID] = existing.ID
			}
			count.record("user", "skipped")
			continue
		}

		user := &models.User{Username: username, Email: email, PasswordHash: lu.PasswordHash}
		if err := m.store.CreateUser(ctx, user); err != nil {
			logger.Error.Printf("Error migrating user %s: %v", username, err)
			count.record("user", "failed")
			continue
		}
		if lu.ID != "" {
			ids[lu.ID] = user.ID
		}
		logger.Debug.Printf("Migrated user %s as %d", username, user.ID)
		count.record("user", "migrated")
	}

	return ids
}

func legacyStatus(status string) string {
	switch status {
	case models.StatusPending, models.StatusReviewed, models.StatusGraded:
		return status
	}
	return models.StatusPending
}

func (m *Migrator) importSubmissions(ctx context.Context, subs []LegacySubmission, ids map[LegacyID]int64, count *Count) {
	for _, ls := range subs {
		userID, ok := ids[ls.UserID]
		if !ok {
			logger.Info.Printf("User ID %s not found, skipping submission %s", ls.UserID, ls.ID)
			count.record("submission", "skipped")
			continue
		}
		if ls.StoredFilename == "" || strings.TrimSpace(ls.Title) == "" {
			logger.Error.Printf("Legacy submission %s is incomplete, skipping", ls.ID)
			count.record("submission", "failed")
			continue
		}

		existing, err := m.store.GetSubmissionByStoredFilename(ctx, ls.StoredFilename)
		if err != nil {
			logger.Error.Printf("Error migrating submission %s: %v", ls.ID, err)
			count.record("submission", "failed")
			continue
		}
		if existing != nil {
			count.record("submission", "skipped")
			continue
		}

		sub := &models.Submission{
			UserID:         userID,
			Title:          strings.TrimSpace(ls.Title),
			Type:           ls.Type,
			Filename:       ls.Filename,
			StoredFilename: ls.StoredFilename,
			Filepath:       ls.Filepath,
			Notes:          ls.Notes,
			Status:         legacyStatus(ls.Status),
		}
		if err := m.store.CreateSubmission(ctx, sub); err != nil {
			logger.Error.Printf("Error migrating submission %s: %v", ls.ID, err)
			count.record("submission", "failed")
			continue
		}
		logger.Debug.Printf("Migrated submission: %s", sub.Title)
		count.record("submission", "migrated")
	}
}

func (m *Migrator) importProgress(ctx context.Context, progress map[string][]json.RawMessage, ids map[LegacyID]int64, count *Count) {
	// deterministic order keeps logs comparable between runs
	keys := make([]string, 0, len(progress))
	for k := range progress {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		entries := progress[key]
		userID, ok := ids[LegacyID(strings.TrimSpace(key))]
		if !ok {
			logger.Info.Printf("User ID %s not found, skipping %d progress entries", key, len(entries))
			for range entries {
				count.record("progress", "skipped")
			}
			continue
		}

		stored, err := m.existingPayloads(ctx, userID)
		if err != nil {
			logger.Error.Printf("Error migrating progress for user %s: %v", key, err)
			for range entries {
				count.record("progress", "failed")
			}
			continue
		}

		inFile := make(map[string]struct{}, len(entries))
		for i, raw := range entries {
			var data models.Payload
			if err := json.Unmarshal(raw, &data); err != nil || data == nil {
				logger.Error.Printf("Progress entry of user %s is not an object, skipping", key)
				count.record("progress", "failed")
				continue
			}

			canonical, err := data.Canonical()
			if err != nil {
				count.record("progress", "failed")
				continue
			}
			if _, dup := inFile[canonical]; dup {
				logger.Info.Printf("Progress entry %d of user %s duplicates an earlier entry in the file, skipping", i, key)
				count.record("progress", "duplicate")
				continue
			}
			inFile[canonical] = struct{}{}
			if _, dup := stored[canonical]; dup {
				logger.Debug.Printf("Progress entry %d of user %s is already stored, skipping", i, key)
				count.record("progress", "skipped")
				continue
			}

			entry := &models.ProgressEntry{UserID: userID, Data: data}
			if err := m.store.CreateProgress(ctx, entry); err != nil {
				logger.Error.Printf("Error migrating progress for user %s: %v", key, err)
				count.record("progress", "failed")
				continue
			}
			count.record("progress", "migrated")
		}
	}
}

func (m *Migrator) existingPayloads(ctx context.Context, userID int64) (map[string]struct{}, error) {
	entries, err := m.store.ListProgressByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		canonical, err := e.Data.Canonical()
		if err != nil {
			continue
		}
		seen[canonical] = struct{}{}
	}
	return seen, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
