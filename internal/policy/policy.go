package policy

import (
	"context"
	"errors"
	"fmt"

	"agorahub.app/backbone/internal/domain"
	"agorahub.app/backbone/internal/execution"
	"agorahub.app/backbone/internal/model"
)

// Handler reacts to committed events. Handlers must be idempotent: the relay
// delivers at least once, so the same event can arrive again after a crash or
// a retry. Returning nil acknowledges the delivery.
type Handler interface {
	Name() string
	Events() []domain.EventName
	Handle(ctx context.Context, s execution.StoreProvider, evt model.Event) error
}

// TransientError marks a failure worth retrying: the same delivery may
// succeed later without any code or data change.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure that no retry can fix. The relay dead
// letters the delivery immediately instead of burning attempts.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return fmt.Sprintf("permanent: %v", e.Err) }
func (e *PermanentError) Unwrap() error { return e.Err }

func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err carries a PermanentError anywhere in its
// chain. Unclassified errors count as transient; retrying is the safe
// default and the attempt cap bounds the damage.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}
