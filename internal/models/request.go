package models

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)
	emailRegex    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRegex.MatchString(fl.Field().String())
	})
	v.RegisterValidation("email_shape", func(fl validator.FieldLevel) bool {
		return emailRegex.MatchString(fl.Field().String())
	})
	return v
}

type SignupRequest struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"required,email_shape"`
	Password string `json:"password" validate:"required"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type SubmissionRequest struct {
	Title string `validate:"required,max=200"`
	Type  string `validate:"required,max=50"`
	Notes string `validate:"max=2000"`
}

func (r *SignupRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
}

func (r *SignupRequest) Validate() error {
	return describe(validate.Struct(r))
}

func (r *LoginRequest) Validate() error {
	return describe(validate.Struct(r))
}

func (r *SubmissionRequest) Validate() error {
	return describe(validate.Struct(r))
}

// describe turns the first validator failure into a message fit for the client.
func describe(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "username":
		return errors.New("Username must be 3-20 characters and contain only letters, numbers, and underscores.")
	case "email_shape":
		return errors.New("Invalid email format.")
	case "required":
		return errors.New(fe.Field() + " is required.")
	case "max":
		return errors.New(fe.Field() + " is too long.")
	}
	return errors.New("Invalid " + fe.Field() + ".")
}

// SubmissionPatch is the admin edit of a submission, absent fields stay as they are.
type SubmissionPatch struct {
	Title  *string `json:"title" validate:"omitempty,max=200"`
	Status *string `json:"status" validate:"omitempty,oneof=pending reviewed graded"`
	Notes  *string `json:"notes" validate:"omitempty,max=2000"`
}

func (p *SubmissionPatch) Validate() error {
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return errors.New("Title is required.")
		}
		p.Title = &title
	}
	if p.Status != nil && *p.Status == "" {
		return errors.New("Invalid Status.")
	}
	return describe(validate.Struct(p))
}

func (p SubmissionPatch) Update() SubmissionUpdate {
	return SubmissionUpdate{Title: p.Title, Status: p.Status, Notes: p.Notes}
}
