package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Payload is an opaque JSON object. It is stored verbatim and decoded back on read,
// nothing inside it is interpreted by the store.
type Payload map[string]any

func (p Payload) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	// lib/pq sends []byte as bytea, jsonb wants text
	return string(b), nil
}

func (p *Payload) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported payload column type %T", src)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	*p = decoded
	return nil
}

// Canonical returns a stable encoding usable for equality checks. Map keys are sorted
// by encoding/json.
func (p Payload) Canonical() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type ProgressEntry struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"userId"`
	Data      Payload   `db:"data" json:"data"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type ProgressWithOwner struct {
	ProgressEntry
	Username string `db:"username" json:"username"`
	Email    string `db:"email" json:"email"`
}
