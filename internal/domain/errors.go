package domain

import (
	"errors"
	"fmt"
)

// Common domain errors that can occur during rating operations.
var (
	// ErrNotFound indicates that a referenced faculty or review does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation is matched by every *ValidationError through errors.Is.
	ErrValidation = errors.New("validation failed")

	// ErrNoFeedbackFound indicates the generated text carried the
	// NO_FEEDBACK_FOUND sentinel: the input held nothing about the faculty.
	ErrNoFeedbackFound = errors.New("no feedback found for faculty")

	// ErrInsufficientEvidence indicates that no sub-rating could be parsed
	// from the generated text and the policy forbids inventing values.
	ErrInsufficientEvidence = errors.New("insufficient evidence to rate faculty")

	// ErrInvalidTransition indicates an illegal review lifecycle transition.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// NotFoundError reports which entity lookup failed.
type NotFoundError struct {
	// Entity is the kind of record that was looked up ("faculty", "review").
	Entity string

	// Key identifies the record that was requested.
	Key any
}

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %v", e.Entity, e.Key)
}

// Unwrap returns ErrNotFound so callers can match with errors.Is.
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFoundError creates a new NotFoundError for the given entity and key.
func NewNotFoundError(entity string, key any) *NotFoundError {
	return &NotFoundError{Entity: entity, Key: key}
}

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// AddErrorf adds a formatted error message to the validation error.
func (e *ValidationError) AddErrorf(format string, args ...any) {
	e.AddError(fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// OrNil returns the receiver when it holds errors and nil otherwise, so
// callers can return the result of a validation pass directly.
func (e *ValidationError) OrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}

// TransitionError describes a rejected review lifecycle transition.
type TransitionError struct {
	From ReviewState
	To   ReviewState
}

// Error implements the error interface for TransitionError.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: %s -> %s", e.From, e.To)
}

// Unwrap returns ErrInvalidTransition.
func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
