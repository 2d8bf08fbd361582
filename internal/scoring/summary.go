// internal/scoring/summary.go
package scoring

import (
	"github.com/shrimpsizemoose/semla/internal/models"
)

// Summary aggregates a user's practice history.
type Summary struct {
	Entries       int `json:"entries"`
	TotalAttempts int `json:"totalAttempts"`
	Correct       int `json:"correct"`
}

// Items returns the payload's "items" array, nil when it is absent or not an array.
func Items(p models.Payload) []any {
	items, _ := p["items"].([]any)
	return items
}

func ItemCount(p models.Payload) int {
	return len(Items(p))
}

// CorrectCount counts items whose "correct" field is the boolean true.
func CorrectCount(p models.Payload) int {
	n := 0
	for _, raw := range Items(p) {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if correct, _ := item["correct"].(bool); correct {
			n++
		}
	}
	return n
}

func Summarize(entries []models.ProgressEntry) Summary {
	s := Summary{Entries: len(entries)}
	for _, e := range entries {
		s.TotalAttempts += ItemCount(e.Data)
		s.Correct += CorrectCount(e.Data)
	}
	return s
}
