package apperrors

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrPersistence        = errors.New("persistence error")
	ErrTimeout            = errors.New("operation timed out")
	ErrNotFound           = errors.New("resource not found")
	ErrConflict           = errors.New("already exists")
)

// Error carries a kind, the failing operation and an optional user-facing message.
// errors.Is matches both the kind and the wrapped cause.
type Error struct {
	Kind    error
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil && e.Op != "":
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	default:
		return e.Kind.Error()
	}
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func Validation(message string) error {
	return &Error{Kind: ErrValidation, Message: message}
}

func InvalidCredentials() error {
	return &Error{Kind: ErrInvalidCredentials, Message: "Invalid credentials."}
}

func Unauthenticated() error {
	return &Error{Kind: ErrUnauthenticated, Message: "Authentication required."}
}

func NotFound(message string) error {
	return &Error{Kind: ErrNotFound, Message: message}
}

// Conflict marks a write rejected by a uniqueness constraint.
func Conflict(op string, err error) error {
	return &Error{Kind: ErrConflict, Op: op, Err: err}
}

// FromStore classifies a storage failure as Timeout or Persistence.
func FromStore(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: ErrTimeout, Op: op, Err: err}
	}
	return &Error{Kind: ErrPersistence, Op: op, Err: err}
}

// MessageOf returns the user-facing message of err, or fallback.
func MessageOf(err error, fallback string) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}
