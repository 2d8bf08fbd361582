package app

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MinPasswordLength = 8
	PasswordSpecials  = `!@#$%^&*(),.?":{}|<>`
)

// CheckPassword returns "" for an acceptable password, otherwise the first failing
// rule as a message for the user.
func CheckPassword(password string) string {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return fmt.Sprintf("Password must be at least %d characters long.", MinPasswordLength)
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(PasswordSpecials, r):
			special = true
		}
	}

	switch {
	case !upper:
		return "Password must contain at least one uppercase letter."
	case !lower:
		return "Password must contain at least one lowercase letter."
	case !digit:
		return "Password must contain at least one number."
	case !special:
		return "Password must contain at least one special character (!@#$%^&*...)."
	}
	return ""
}
