package registration

import (
	"errors"
	"fmt"

	"eventreg/internal/domain/registrations"
)

var (
	ErrNotFound         = registrations.ErrNotFound
	ErrAlreadyConfirmed = registrations.ErrAlreadyConfirmed
)

// ValidationError is a missing or malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// NotificationError is a confirmation email that could not be delivered.
// It is logged and never fails the request that triggered it.
type NotificationError struct {
	Template string
	Email    string
	Cause    error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("failed to send %s to %s: %v", e.Template, e.Email, e.Cause)
}

func (e *NotificationError) Unwrap() error {
	return e.Cause
}
