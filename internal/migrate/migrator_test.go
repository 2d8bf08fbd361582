package migrate

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/semla/internal/models"
	"github.com/shrimpsizemoose/semla/internal/store"
	"github.com/shrimpsizemoose/semla/internal/store/sqlite"
)

const legacyDoc = `{
  "users": [
    {"id": 1, "username": "alice", "email": "alice@old.com", "passwordHash": "$2b$12$alice"},
    {"id": "2", "username": "bob", "email": "bob@x.com", "passwordHash": "$2b$12$bob"},
    {"id": 3, "username": "", "email": "ghost@x.com", "passwordHash": "x"}
  ],
  "submissions": [
    {"id": 10, "userId": 1, "title": "HW1", "filename": "hw1.pdf", "storedFilename": "1_1700000000000_hw1.pdf", "filepath": "submissions/1_1700000000000_hw1.pdf", "status": "graded"},
    {"id": 11, "userId": "2", "title": "HW1", "type": "homework", "filename": "b.pdf", "storedFilename": "2_1700000000001_b.pdf", "notes": "late", "status": "weird"},
    {"id": 12, "userId": 99, "title": "orphan", "storedFilename": "99_1_x.pdf"}
  ],
  "progress": {
    "1": [{"items": [{"correct": true}], "at": "2024-01-01T00:00:00Z"}, {"items": [], "at": "2024-01-02T00:00:00Z"}],
    "2": [{"items": [{"correct": false}]}, "not an object"],
    "99": [{"items": []}]
  }
}`

func setupTestDB(t *testing.T) (*sqlite.SQLiteStore, func()) {
	s, err := sqlite.NewSQLiteStore(store.DBConfig{
		DSN:           ":memory:",
		MigrationsDir: "../../migrations",
	})
	require.NoError(t, err, "Failed to create store")

	cleanup := func() {
		err := s.Close()
		require.NoError(t, err, "Failed to close database")
	}
	return s, cleanup
}

func writeLegacy(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestDB(t)
	defer cleanup()

	// alice registered on the new system before the import
	alice := &models.User{Username: "alice", Email: "alice@x.com", PasswordHash: "new-hash"}
	require.NoError(t, s.CreateUser(ctx, alice))

	path := writeLegacy(t, legacyDoc)
	m := NewMigrator(s, "")

	report, err := m.Run(ctx, path)
	require.NoError(t, err)

	t.Run("existing username is skipped", func(t *testing.T) {
		assert.Equal(t, Count{Total: 3, Migrated: 1, Skipped: 1, Failed: 1}, report.Users)

		existing, err := s.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "new-hash", existing.PasswordHash, "existing account is untouched")
	})

	t.Run("submissions follow mapped owners", func(t *testing.T) {
		assert.Equal(t, Count{Total: 3, Migrated: 2, Skipped: 1}, report.Submissions)

		subs, err := s.ListSubmissionsByUser(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, models.StatusGraded, subs[0].Status)
		assert.Equal(t, models.DefaultSubmissionType, subs[0].Type)

		bob, err := s.GetUserByUsername(ctx, "bob")
		require.NoError(t, err)
		require.NotNil(t, bob)
		subs, err = s.ListSubmissionsByUser(ctx, bob.ID)
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, models.StatusPending, subs[0].Status, "unknown status falls back to pending")
		require.NotNil(t, subs[0].Notes)
		assert.Equal(t, "late", *subs[0].Notes)
	})

	t.Run("progress", func(t *testing.T) {
		assert.Equal(t, Count{Total: 5, Migrated: 3, Skipped: 1, Failed: 1}, report.Progress)

		entries, err := s.ListProgressByUser(ctx, alice.ID)
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("backup written", func(t *testing.T) {
		assert.Equal(t, path+".backup", report.BackupPath)
		backup, err := os.ReadFile(report.BackupPath)
		require.NoError(t, err)
		assert.Equal(t, legacyDoc, string(backup))
	})

	t.Run("second run adds nothing", func(t *testing.T) {
		again, err := m.Run(ctx, path)
		require.NoError(t, err)

		assert.Equal(t, 0, again.Users.Migrated)
		assert.Equal(t, 0, again.Submissions.Migrated)
		assert.Equal(t, 0, again.Progress.Migrated)
		assert.Equal(t, 2, again.Users.Skipped)
		assert.Equal(t, 3, again.Submissions.Skipped)

		users, err := s.ListUsers(ctx)
		require.NoError(t, err)
		assert.Len(t, users, 2)
		all, err := s.ListProgress(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})
}

func TestRunDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, s.CreateUser(ctx, &models.User{Username: "carol", Email: "carol@new.com", PasswordHash: "h"}))

	path := writeLegacy(t, `{"users":[
		{"id":1,"username":"carol","email":"carol@old.com","passwordHash":"h1"},
		{"id":2,"username":"dave","email":"dave@x.com","passwordHash":"h2"},
		{"id":3,"username":"erin","email":"erin@x.com","passwordHash":"h3"}
	]}`)

	report, err := NewMigrator(s, ".bak").Run(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, report.Users.Total-1, report.Users.Migrated)
	assert.FileExists(t, path+".bak")
}

func TestRunRepeatedProgress(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestDB(t)
	defer cleanup()

	path := writeLegacy(t, `{
		"users": [{"id": 1, "username": "frank", "email": "frank@x.com", "passwordHash": "h"}],
		"progress": {"1": [
			{"items": [{"correct": true}], "at": "2024-01-01T00:00:00Z"},
			{"at": "2024-01-01T00:00:00Z", "items": [{"correct": true}]},
			{"items": [], "at": "2024-01-02T00:00:00Z"}
		]}
	}`)
	m := NewMigrator(s, "")

	report, err := m.Run(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, Count{Total: 3, Migrated: 2, Skipped: 1, Duplicates: 1}, report.Progress)
	assert.Contains(t, report.String(), "of them 1 duplicates within the file")

	again, err := m.Run(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, Count{Total: 3, Skipped: 3, Duplicates: 1}, again.Progress,
		"stored entries are skipped, repeats are still reported as repeats")
}

func TestRunFailures(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestDB(t)
	defer cleanup()
	m := NewMigrator(s, "")

	t.Run("missing file", func(t *testing.T) {
		report, err := m.Run(ctx, filepath.Join(t.TempDir(), "data.json"))
		assert.ErrorIs(t, err, ErrNoLegacyData)
		assert.Nil(t, report)
	})

	t.Run("corrupt file", func(t *testing.T) {
		path := writeLegacy(t, `{"users": [`)
		_, err := m.Run(ctx, path)
		require.Error(t, err)
		assert.NoFileExists(t, path+".backup")
	})

	t.Run("empty file", func(t *testing.T) {
		report, err := m.Run(ctx, writeLegacy(t, "  "))
		require.NoError(t, err)
		assert.Equal(t, Count{}, report.Users)
	})

	t.Run("backup failure", func(t *testing.T) {
		path := writeLegacy(t, `{}`)
		require.NoError(t, os.Mkdir(path+".backup", 0o755))

		report, err := m.Run(ctx, path)
		require.Error(t, err)
		assert.NotNil(t, report)
	})
}

func TestLegacyID(t *testing.T) {
	var got struct {
		A LegacyID `json:"a"`
		B LegacyID `json:"b"`
		C LegacyID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 17, "b": " 18 ", "c": null}`), &got))
	assert.Equal(t, LegacyID("17"), got.A)
	assert.Equal(t, LegacyID("18"), got.B)
	assert.Equal(t, LegacyID(""), got.C)

	assert.Error(t, json.Unmarshal([]byte(`{"a": {}}`), &got))
}
