// ABOUTME: Error taxonomy of the conversation service
// ABOUTME: Callers classify with errors.Is; ValidationError names the offending field

package conversation

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the conversation does not exist for this owner.
	ErrNotFound = errors.New("conversation not found")

	// ErrValidation means the input was malformed or empty.
	ErrValidation = errors.New("validation failed")

	// ErrServiceUnavailable means the agent could not produce a reply.
	ErrServiceUnavailable = errors.New("agent service unavailable")
)

// ValidationError is returned for bad input. It matches ErrValidation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
