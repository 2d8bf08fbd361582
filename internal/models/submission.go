package models

import "time"

const (
	StatusPending  = "pending"
	StatusReviewed = "reviewed"
	StatusGraded   = "graded"

	DefaultSubmissionType = "assignment"
)

type Submission struct {
	ID             int64     `db:"id" json:"id"`
	UserID         int64     `db:"user_id" json:"userId"`
	Title          string    `db:"title" json:"title"`
	Type           string    `db:"type" json:"type"`
	Filename       string    `db:"filename" json:"filename"`
	StoredFilename string    `db:"stored_filename" json:"storedFilename"`
	Filepath       string    `db:"filepath" json:"filepath"`
	Notes          *string   `db:"notes" json:"notes"`
	Status         string    `db:"status" json:"status"`
	SubmittedAt    time.Time `db:"submitted_at" json:"submittedAt"`
}

// SubmissionWithOwner is a submission row joined to its owner for admin listings.
type SubmissionWithOwner struct {
	Submission
	Username string `db:"username" json:"username"`
	Email    string `db:"email" json:"email"`
}

type SubmissionUpdate struct {
	Title  *string
	Status *string
	Notes  *string
}

func (u SubmissionUpdate) Empty() bool {
	return u.Title == nil && u.Status == nil && u.Notes == nil
}
