// Package apperr defines the error taxonomy shared by stores, the
// lifecycle controller, and HTTP handlers:
//
//   - Validation: a required field is empty or a participant id is
//     unavailable/duplicate; surfaced to the user verbatim.
//   - InvalidState: a transition was attempted from a status that does
//     not permit it.
//   - NotFound: a referenced document is absent.
//   - Forbidden: the actor's role or ownership does not permit the
//     operation.
//   - Store: the underlying persistence call failed; surfaced
//     generically, logged with detail.
//
// Handlers match with errors.Is against the sentinels; wrapping
// preserves the category while carrying a specific message.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrInvalidState = errors.New("invalid state")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrStore        = errors.New("store error")
)

// Validation returns a user-facing validation error.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// InvalidState returns an error for a transition from a non-permitting
// status.
func InvalidState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

// NotFound returns an error for an absent document.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Forbidden returns an error for an operation the actor may not
// perform.
func Forbidden(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

// Store wraps a persistence failure. The cause is retained for logging;
// callers surface only the generic category to users.
func Store(op string, cause error) error {
	return fmt.Errorf("%w: %s: %v", ErrStore, op, cause)
}
