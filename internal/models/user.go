package models

import "time"

type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// UserUpdate is a partial update, nil fields are left untouched.
type UserUpdate struct {
	Username     *string
	Email        *string
	PasswordHash *string
}

func (u UserUpdate) Empty() bool {
	return u.Username == nil && u.Email == nil && u.PasswordHash == nil
}

type UserStats struct {
	UserExists      bool  `db:"user_exists" json:"userExists"`
	SubmissionCount int64 `db:"submission_count" json:"submissionCount"`
	ProgressCount   int64 `db:"progress_count" json:"progressCount"`
}
