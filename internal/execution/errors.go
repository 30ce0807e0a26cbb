package execution

import (
	"errors"
	"fmt"

	"agorahub.app/backbone/internal/domain"
)

// ValidationError means the payload was malformed. Nothing was written.
type ValidationError struct {
	Msg string
	Err error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("validation: %s", e.Msg)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// AuthorizationError means the actor lacks the required capability.
// Nothing was written.
type AuthorizationError struct {
	Required domain.Capability
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("authorization: requires %s", e.Required)
}

// ConflictError means an aggregate precondition failed, e.g. an
// optimistic-concurrency version mismatch. The command aborted cleanly.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s", e.Msg)
}

// Conflict builds a ConflictError.
func Conflict(format string, args ...any) error {
	return &ConflictError{Msg: fmt.Sprintf(format, args...)}
}

// ErrUnknownOperation is returned by raw invocation for unregistered names.
var ErrUnknownOperation = errors.New("unknown operation")

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsAuthorization reports whether err is an AuthorizationError.
func IsAuthorization(err error) bool {
	var ae *AuthorizationError
	return errors.As(err, &ae)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
