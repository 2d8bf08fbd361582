package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckPassword(t *testing.T) {
	tests := []struct {
		password string
		expected string
	}{
		{"Abcdef1!", ""},
		{"Ab1!", "Password must be at least 8 characters long."},
		{"abcdefg1!", "Password must contain at least one uppercase letter."},
		{"ABCDEFG1!", "Password must contain at least one lowercase letter."},
		{"Abcdefgh!", "Password must contain at least one number."},
		{"Abcdefgh1", "Password must contain at least one special character (!@#$%^&*...)."},
		{"Abcdefg1_", "Password must contain at least one special character (!@#$%^&*...)."},
		{"Abcdef1\"", ""},
		// non-ascii letters and digits do not count
		{"Ääääää1!", "Password must contain at least one uppercase letter."},
		{"Abcdefg١!", "Password must contain at least one number."},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			assert.Equal(t, tt.expected, CheckPassword(tt.password))
		})
	}
}
