package postgres

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/shrimpsizemoose/semla/internal/apperrors"
	"github.com/shrimpsizemoose/semla/internal/models"
	"github.com/shrimpsizemoose/semla/internal/store"
)

// setupTestDB starts a throwaway Postgres and applies the migrations
func setupTestDB(t *testing.T) (*PostgresStore, func()) {
	ctx := context.Background()

	container, err := postgres.Run(
		ctx,
		"postgres:16-alpine",
		testcontainers.WithEnv(map[string]string{
			"POSTGRES_DB":       "testdb",
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
		}),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := NewPostgresStore(store.DBConfig{
		DSN:           dsn,
		MigrationsDir: "../../../migrations",
		MaxOpenConns:  4,
	})
	require.NoError(t, err, "Failed to create store")

	cleanup := func() {
		s.Close()
		container.Terminate(ctx)
	}

	return s, cleanup
}

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		log.Println("Skipping Postgres integration tests. Use -short=false to run them.")
		os.Exit(0)
	}
	log.Println("Starting Postgres store tests...")
	code := m.Run()
	log.Println("Finished Postgres store tests")
	os.Exit(code)
}

func TestRebind(t *testing.T) {
	assert.Equal(t,
		"SELECT 1 FROM users WHERE username = $1 OR email = $2",
		rebind("SELECT 1 FROM users WHERE username = ? OR email = ?"),
	)
	assert.Equal(t, "SELECT 1", rebind("SELECT 1"))
}

func TestUsersAndSubmissions(t *testing.T) {
	s, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	alice := &models.User{Username: "alice", Email: "alice@x.com", PasswordHash: "hash"}
	require.NoError(t, s.CreateUser(ctx, alice))

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		err := s.CreateUser(ctx, &models.User{Username: "alice2", Email: "alice@x.com", PasswordHash: "hash"})
		assert.ErrorIs(t, err, apperrors.ErrConflict)
		assert.NotErrorIs(t, err, apperrors.ErrPersistence)
	})

	t.Run("submission defaults", func(t *testing.T) {
		sub := &models.Submission{
			UserID:         alice.ID,
			Title:          "HW1",
			Filename:       "hw1.pdf",
			StoredFilename: "1_1_hw1.pdf",
			Filepath:       "/tmp/1_1_hw1.pdf",
		}
		require.NoError(t, s.CreateSubmission(ctx, sub))

		subs, err := s.ListSubmissionsByUser(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, "HW1", subs[0].Title)
		assert.Equal(t, models.StatusPending, subs[0].Status)
		assert.True(t, sub.SubmittedAt.Equal(subs[0].SubmittedAt))
	})

	t.Run("cascade on user delete", func(t *testing.T) {
		paths, err := s.DeleteUser(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"/tmp/1_1_hw1.pdf"}, paths)

		subs, err := s.ListSubmissions(ctx)
		require.NoError(t, err)
		assert.Empty(t, subs)
	})
}

func TestProgressRoundTrip(t *testing.T) {
	s, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	alice := &models.User{Username: "alice", Email: "alice@x.com", PasswordHash: "hash"}
	require.NoError(t, s.CreateUser(ctx, alice))

	var payload models.Payload
	require.NoError(t, json.Unmarshal([]byte(`{
		"items": [{"question":"7x6","answer":"42","correct":true,"time":1700000000000}],
		"meta": {"nested": [1, [2, 3]], "note": null}
	}`), &payload))

	require.NoError(t, s.CreateProgress(ctx, &models.ProgressEntry{UserID: alice.ID, Data: payload}))

	entries, err := s.ListProgressByUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, payload, entries[0].Data)

	all, err := s.ListProgress(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "alice", all[0].Username)
}

func TestQueryTimeout(t *testing.T) {
	s, cleanup := setupTestDB(t)
	defer cleanup()

	s.QueryTimeout = 50 * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	time.Sleep(5 * time.Millisecond)

	_, err := s.ListUsers(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
}
