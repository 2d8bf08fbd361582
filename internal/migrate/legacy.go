package migrate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// LegacyID accepts ids written either as numbers or as strings.
type LegacyID string

func (id *LegacyID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = LegacyID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid legacy id %s", data)
	}
	*id = LegacyID(n.String())
	return nil
}

type LegacyUser struct {
	ID           LegacyID `json:"id"`
	Username     string   `json:"username"`
	Email        string   `json:"email"`
	PasswordHash string   `json:"passwordHash"`
}

type LegacySubmission struct {
	ID             LegacyID `json:"id"`
	UserID         LegacyID `json:"userId"`
	Title          string   `json:"title"`
	Type           string   `json:"type"`
	Filename       string   `json:"filename"`
	StoredFilename string   `json:"storedFilename"`
	Filepath       string   `json:"filepath"`
	Notes          *string  `json:"notes"`
	Status         string   `json:"status"`
}

// LegacyData is the single JSON document the previous version kept all state in.
// Progress is keyed by legacy user id.
type LegacyData struct {
	Users       []LegacyUser                 `json:"users"`
	Submissions []LegacySubmission           `json:"submissions"`
	Progress    map[string][]json.RawMessage `json:"progress"`
}

func ParseLegacy(raw []byte) (*LegacyData, error) {
	var data LegacyData
	if len(bytes.TrimSpace(raw)) == 0 {
		return &data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse legacy data: %w", err)
	}
	return &data, nil
}

func (d *LegacyData) ProgressCount() int {
	n := 0
	for _, entries := range d.Progress {
		n += len(entries)
	}
	return n
}
