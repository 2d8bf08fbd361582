package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shrimpsizemoose/semla/internal/apperrors"
)

const (
	timeFormat    = "2006-01-02 15:04:05"
	sessionPrefix = "sess-"
	sessionBytes  = 32
)

type Session struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
}

// SessionManager keeps server-side sessions in redis as session:<id> hashes with a
// sliding TTL. session:user:<userID> is a set of the user's session ids, so all of
// them can be revoked at once.
type SessionManager struct {
	redis     *redis.Client
	keyPrefix string
	ttl       time.Duration
}

func NewSessionManager(client *redis.Client, keyPrefix string, ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{redis: client, keyPrefix: keyPrefix, ttl: ttl}
}

// ConnectSessions parses the URL and checks the server is reachable.
func ConnectSessions(ctx context.Context, redisURL, keyPrefix string, ttl time.Duration) (*SessionManager, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewSessionManager(client, keyPrefix, ttl), nil
}

func generateSessionID() (string, error) {
	randomBytes := make([]byte, sessionBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return sessionPrefix + hex.EncodeToString(randomBytes), nil
}

func validSessionID(id string) bool {
	raw, ok := strings.CutPrefix(id, sessionPrefix)
	if !ok || len(raw) != sessionBytes*2 {
		return false
	}
	_, err := hex.DecodeString(raw)
	return err == nil
}

func (sm *SessionManager) key(id string) string {
	return fmt.Sprintf("%s:%s", sm.keyPrefix, id)
}

func (sm *SessionManager) userKey(userID int64) string {
	return fmt.Sprintf("%s:user:%d", sm.keyPrefix, userID)
}

func (sm *SessionManager) Create(ctx context.Context, userID int64) (*Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	key := sm.key(id)

	pipe := sm.redis.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"user_id":            userID,
		"created_dttm_utc":   now.Format(timeFormat),
		"last_seen_dttm_utc": now.Format(timeFormat),
	})
	pipe.Expire(ctx, key, sm.ttl)
	pipe.SAdd(ctx, sm.userKey(userID), id)
	pipe.Expire(ctx, sm.userKey(userID), sm.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &Session{ID: id, UserID: userID, CreatedAt: now}, nil
}

// Resolve maps a session id to its user and extends the session lifetime.
func (sm *SessionManager) Resolve(ctx context.Context, id string) (int64, error) {
	if !validSessionID(id) {
		return 0, apperrors.Unauthenticated()
	}
	key := sm.key(id)

	raw, err := sm.redis.HGet(ctx, key, "user_id").Result()
	if errors.Is(err, redis.Nil) {
		return 0, apperrors.Unauthenticated()
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve session: %w", err)
	}

	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperrors.Unauthenticated()
	}

	pipe := sm.redis.Pipeline()
	pipe.HSet(ctx, key, "last_seen_dttm_utc", time.Now().UTC().Format(timeFormat))
	pipe.Expire(ctx, key, sm.ttl)
	pipe.Expire(ctx, sm.userKey(userID), sm.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to touch session: %w", err)
	}

	return userID, nil
}

func (sm *SessionManager) Destroy(ctx context.Context, id string) error {
	if !validSessionID(id) {
		return nil
	}
	key := sm.key(id)

	raw, err := sm.redis.HGet(ctx, key, "user_id").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to destroy session: %w", err)
	}

	pipe := sm.redis.TxPipeline()
	pipe.Del(ctx, key)
	if userID, err := strconv.ParseInt(raw, 10, 64); err == nil {
		pipe.SRem(ctx, sm.userKey(userID), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

// DestroyUser revokes every session of the user and returns how many were live.
func (sm *SessionManager) DestroyUser(ctx context.Context, userID int64) (int, error) {
	userKey := sm.userKey(userID)

	ids, err := sm.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions of user %d: %w", userID, err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sm.key(id))
	}
	keys = append(keys, userKey)

	// the set itself counts among the deleted keys
	n, err := sm.redis.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to destroy sessions of user %d: %w", userID, err)
	}
	if len(ids) > 0 {
		n--
	}
	return int(n), nil
}

func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

func (sm *SessionManager) Close() error {
	if sm.redis != nil {
		return sm.redis.Close()
	}
	return nil
}
