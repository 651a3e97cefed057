package helper

import (
	"errors"
	"fmt"
)

// Error wraps an error with the operation that failed
type Error struct {
	Operation string
	Err       error
}

// NewError creates a new operation error
func NewError(operation string, err error) error {
	return &Error{
		Operation: operation,
		Err:       err,
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ValidationError reports invalid caller input.
// It is mapped to a client error at the HTTP boundary.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a validation error for the given field
func NewValidationError(field string, format string, args ...interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidationError reports whether err or any error it wraps is a ValidationError
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}
