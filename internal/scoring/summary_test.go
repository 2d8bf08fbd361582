package scoring

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/semla/internal/models"
)

func entry(t *testing.T, raw string) models.ProgressEntry {
	t.Helper()
	var p models.Payload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return models.ProgressEntry{Data: p}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name     string
		entries  []string
		expected Summary
	}{
		{
			name:     "no history",
			expected: Summary{},
		},
		{
			name: "two practice sessions",
			entries: []string{
				`{"items":[{"question":"7x6","correct":true},{"question":"7x6","correct":false},{"question":"7x6","correct":true}]}`,
				`{"items":[{"question":"7x6","correct":true},{"question":"7x6","correct":false}]}`,
			},
			expected: Summary{Entries: 2, TotalAttempts: 5, Correct: 3},
		},
		{
			name: "payloads without items",
			entries: []string{
				`{"lesson":"intro"}`,
				`{"items":"not a list"}`,
				`{"items":[{"correct":true}]}`,
			},
			expected: Summary{Entries: 3, TotalAttempts: 1, Correct: 1},
		},
		{
			name: "non boolean correct flags",
			entries: []string{
				`{"items":[{"correct":"yes"},{"correct":1},42,{"correct":true}]}`,
			},
			expected: Summary{Entries: 1, TotalAttempts: 4, Correct: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var entries []models.ProgressEntry
			for _, raw := range tt.entries {
				entries = append(entries, entry(t, raw))
			}
			assert.Equal(t, tt.expected, Summarize(entries))
		})
	}
}

func TestItemCount(t *testing.T) {
	assert.Equal(t, 0, ItemCount(nil))
	assert.Equal(t, 2, ItemCount(entry(t, `{"items":[1,2]}`).Data))
}
